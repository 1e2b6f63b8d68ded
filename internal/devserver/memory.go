package devserver

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonathan/hireops/internal/types"
)

// MemoryRepository is an in-memory Repository. It is the default backend.
type MemoryRepository struct {
	mu           sync.RWMutex
	users        []StoredUser
	jobs         []types.Job
	candidates   []types.Candidate
	applications []types.Application
	history      []types.StatusHistoryEntry
	nextAppID    int64
	nextEntryID  int64
	now          func() time.Time
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextAppID: 1, nextEntryID: 1, now: time.Now}
}

// Load implements Repository.
func (m *MemoryRepository) Load(_ context.Context, ds Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = slices.Clone(ds.Users)
	m.jobs = slices.Clone(ds.Jobs)
	m.candidates = slices.Clone(ds.Candidates)
	m.applications = make([]types.Application, 0, len(ds.Applications))
	m.history = nil
	m.nextAppID, m.nextEntryID = 1, 1

	for _, app := range ds.Applications {
		app = app.Clone()
		app.Job, app.Candidate = nil, nil
		if app.AppliedAt.IsZero() {
			app.AppliedAt = m.now()
		}
		m.applications = append(m.applications, app)
		if app.ID >= m.nextAppID {
			m.nextAppID = app.ID + 1
		}
		m.appendHistory(app.ID, "", app.Status, StatusChange{Reason: "seeded"}, app.AppliedAt)
	}
	return nil
}

// ListJobs implements Repository.
func (m *MemoryRepository) ListJobs(context.Context) ([]types.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Job, len(m.jobs))
	for i, job := range m.jobs {
		job.ApplicationsCount = 0
		for _, app := range m.applications {
			if app.JobID == job.ID {
				job.ApplicationsCount++
			}
		}
		out[i] = job
	}
	return out, nil
}

// ListCandidates implements Repository.
func (m *MemoryRepository) ListCandidates(context.Context) ([]types.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.candidates), nil
}

// ListApplications implements Repository. Nested job and candidate
// records are attached.
func (m *MemoryRepository) ListApplications(context.Context) ([]types.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Application, len(m.applications))
	for i, app := range m.applications {
		out[i] = m.withRelations(app)
	}
	return out, nil
}

// GetApplication implements Repository.
func (m *MemoryRepository) GetApplication(_ context.Context, id int64) (*types.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil, notFound("Application")
	}
	app := m.withRelations(m.applications[i])
	return &app, nil
}

// CreateApplication implements Repository.
func (m *MemoryRepository) CreateApplication(_ context.Context, req types.CreateApplicationRequest) (*types.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.job(req.JobID)
	if job == nil || job.EffectiveStatus() != types.JobStatusActive {
		return nil, &ErrNotFoundDetail{Detail: "Job not found or inactive"}
	}
	if m.candidate(req.CandidateID) == nil {
		return nil, notFound("Candidate")
	}
	for _, app := range m.applications {
		if app.JobID == req.JobID && app.CandidateID == req.CandidateID {
			return nil, fmt.Errorf("%w: Application already exists for this job-candidate combination", ErrConflict)
		}
	}

	now := m.now()
	app := types.Application{
		ID:          m.nextAppID,
		JobID:       req.JobID,
		CandidateID: req.CandidateID,
		Status:      types.StatusApplied,
		Source:      req.Source,
		Notes:       req.Notes,
		AppliedAt:   now,
	}
	m.nextAppID++
	m.applications = append(m.applications, app)
	m.appendHistory(app.ID, "", app.Status, StatusChange{}, now)

	out := m.withRelations(app)
	return &out, nil
}

// UpdateStatus implements Repository.
func (m *MemoryRepository) UpdateStatus(_ context.Context, id int64, change StatusChange, check func(types.Status) error) (*types.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil, notFound("Application")
	}
	from := m.applications[i].Status
	if check != nil {
		if err := check(from); err != nil {
			return nil, err
		}
	}

	now := m.now()
	m.applications[i].Status = change.Status
	m.applications[i].UpdatedAt = &now
	if change.Notes != "" {
		m.applications[i].Notes = change.Notes
	}
	m.appendHistory(id, from, change.Status, change, now)

	out := m.withRelations(m.applications[i])
	return &out, nil
}

// StatusHistory implements Repository.
func (m *MemoryRepository) StatusHistory(_ context.Context, id int64) ([]types.StatusHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.indexOf(id) < 0 {
		return nil, notFound("Application")
	}
	var out []types.StatusHistoryEntry
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ApplicationID == id {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

// UserByUsername implements Repository.
func (m *MemoryRepository) UserByUsername(_ context.Context, username string) (*StoredUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, notFound("User")
}

// UserByID implements Repository.
func (m *MemoryRepository) UserByID(_ context.Context, id int64) (*types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.ID == id {
			user := u.User
			return &user, nil
		}
	}
	return nil, notFound("User")
}

// Close implements Repository.
func (m *MemoryRepository) Close() {}

// Callers must hold mu.
func (m *MemoryRepository) appendHistory(appID int64, from, to types.Status, change StatusChange, at time.Time) {
	m.history = append(m.history, types.StatusHistoryEntry{
		ID:            m.nextEntryID,
		ApplicationID: appID,
		FromStatus:    from,
		ToStatus:      to,
		Reason:        change.Reason,
		Notes:         change.Notes,
		ChangedBy:     change.ChangedBy,
		ChangedAt:     at,
	})
	m.nextEntryID++
}

func (m *MemoryRepository) indexOf(id int64) int {
	return slices.IndexFunc(m.applications, func(a types.Application) bool { return a.ID == id })
}

func (m *MemoryRepository) job(id int64) *types.Job {
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			return &m.jobs[i]
		}
	}
	return nil
}

func (m *MemoryRepository) candidate(id int64) *types.Candidate {
	for i := range m.candidates {
		if m.candidates[i].ID == id {
			return &m.candidates[i]
		}
	}
	return nil
}

func (m *MemoryRepository) withRelations(app types.Application) types.Application {
	out := app.Clone()
	if job := m.job(app.JobID); job != nil {
		j := *job
		out.Job = &j
	}
	if c := m.candidate(app.CandidateID); c != nil {
		cand := *c
		out.Candidate = &cand
	}
	return out
}
