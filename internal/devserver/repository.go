package devserver

import (
	"context"

	"github.com/jonathan/hireops/internal/types"
)

// StoredUser is a user plus its password hash.
type StoredUser struct {
	types.User
	PasswordHash string
}

// Dataset is a complete set of records to install into a repository.
type Dataset struct {
	Users        []StoredUser
	Jobs         []types.Job
	Candidates   []types.Candidate
	Applications []types.Application
}

// StatusChange describes one status update applied by the repository.
type StatusChange struct {
	Status    types.Status
	Reason    string
	Notes     string
	ChangedBy int64
}

// Repository persists the dev backend's records.
type Repository interface {
	// Load replaces every record with ds.
	Load(ctx context.Context, ds Dataset) error

	ListJobs(ctx context.Context) ([]types.Job, error)
	ListCandidates(ctx context.Context) ([]types.Candidate, error)
	ListApplications(ctx context.Context) ([]types.Application, error)
	GetApplication(ctx context.Context, id int64) (*types.Application, error)

	// CreateApplication inserts a new application in the applied stage.
	CreateApplication(ctx context.Context, req types.CreateApplicationRequest) (*types.Application, error)

	// UpdateStatus sets the status and appends a history entry atomically.
	// check runs against the current status before anything is written.
	UpdateStatus(ctx context.Context, id int64, change StatusChange, check func(from types.Status) error) (*types.Application, error)

	// StatusHistory returns entries newest first.
	StatusHistory(ctx context.Context, id int64) ([]types.StatusHistoryEntry, error)

	UserByUsername(ctx context.Context, username string) (*StoredUser, error)
	UserByID(ctx context.Context, id int64) (*types.User, error)

	Close()
}
