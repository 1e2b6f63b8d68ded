// Package auth persists the API bearer token between CLI invocations and
// checks it before any request is made.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/afero"
)

// ErrNoToken is returned when no token has been stored.
var ErrNoToken = errors.New("not logged in: run 'hireops login' first")

// ErrTokenExpired is returned when the stored token's exp claim is in the past.
var ErrTokenExpired = errors.New("session expired: run 'hireops login' again")

// TokenStore reads and writes the bearer token file.
type TokenStore struct {
	fs   afero.Fs
	path string
	now  func() time.Time
}

// NewTokenStore creates a store backed by the OS filesystem.
func NewTokenStore(path string) *TokenStore {
	return NewTokenStoreWithFs(afero.NewOsFs(), path)
}

// NewTokenStoreWithFs creates a store on an arbitrary filesystem.
func NewTokenStoreWithFs(fs afero.Fs, path string) *TokenStore {
	return &TokenStore{fs: fs, path: path, now: time.Now}
}

// Path returns the token file location.
func (s *TokenStore) Path() string {
	return s.path
}

// Save writes the token with owner-only permissions.
func (s *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("refusing to save empty token")
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// Load returns the stored token, or ErrNoToken.
func (s *TokenStore) Load() (string, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Clear removes the stored token. Clearing a missing token is not an error.
func (s *TokenStore) Clear() error {
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}

// Token returns a stored token that has not expired. It implements the API
// client's token source.
func (s *TokenStore) Token() (string, error) {
	token, err := s.Load()
	if err != nil {
		return "", err
	}
	expiresAt, err := ExpiresAt(token)
	if err != nil {
		// Opaque tokens are passed through; the server decides.
		return token, nil
	}
	if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
		return "", ErrTokenExpired
	}
	return token, nil
}

// ExpiresAt reads the exp claim without verifying the signature; only the
// server holds the key. A token without exp yields the zero time.
func ExpiresAt(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("malformed token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// Subject returns the sub claim, if any, without verifying the signature.
func Subject(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}
