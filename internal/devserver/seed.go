package devserver

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/jonathan/hireops/internal/schemas"
	"github.com/jonathan/hireops/internal/types"
)

//go:embed seed.json
var defaultSeed []byte

// DefaultSeed returns the embedded fixture document.
func DefaultSeed() []byte {
	return defaultSeed
}

// SeedUser is a user as written in a seed file, with a plaintext password.
// A missing is_active means active.
type SeedUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
	Password string `json:"password"`
}

// Seed is a parsed seed document.
type Seed struct {
	Users        []SeedUser          `json:"users"`
	Jobs         []types.Job         `json:"jobs"`
	Candidates   []types.Candidate   `json:"candidates"`
	Applications []types.Application `json:"applications"`
}

// ParseSeed validates doc against the seed schema and decodes it.
func ParseSeed(doc []byte) (*Seed, error) {
	if err := schemas.ValidateSeed(doc); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(doc, &seed); err != nil {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	return &seed, nil
}

// Dataset hashes user passwords and returns records ready for Load.
func (s *Seed) Dataset(hasher *Hasher) (Dataset, error) {
	ds := Dataset{
		Users:        make([]StoredUser, 0, len(s.Users)),
		Jobs:         s.Jobs,
		Candidates:   s.Candidates,
		Applications: s.Applications,
	}
	for _, u := range s.Users {
		hash, err := hasher.Hash(u.Password)
		if err != nil {
			return Dataset{}, fmt.Errorf("failed to hash password for %s: %w", u.Username, err)
		}
		user := types.User{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			FullName: u.FullName,
			Role:     u.Role,
			IsActive: u.IsActive == nil || *u.IsActive,
		}
		if user.Role == "" {
			user.Role = "recruiter"
		}
		ds.Users = append(ds.Users, StoredUser{User: user, PasswordHash: hash})
	}
	return ds, nil
}
