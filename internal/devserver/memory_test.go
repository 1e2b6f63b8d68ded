package devserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hireops/internal/types"
)

func testDataset() Dataset {
	inactive := false
	return Dataset{
		Users: []StoredUser{{User: types.User{ID: 1, Username: "recruiter", IsActive: true}, PasswordHash: "x"}},
		Jobs: []types.Job{
			{ID: 1, Title: "Backend Engineer"},
			{ID: 2, Title: "Closed Role", IsActive: &inactive},
		},
		Candidates: []types.Candidate{
			{ID: 1, FirstName: "Ada", LastName: "Lovelace"},
			{ID: 2, FirstName: "Grace", LastName: "Hopper"},
		},
		Applications: []types.Application{
			{ID: 10, JobID: 1, CandidateID: 1, Status: types.StatusApplied},
		},
	}
}

func newMemory(t *testing.T) *MemoryRepository {
	t.Helper()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Load(context.Background(), testDataset()))
	return repo
}

func TestMemoryRepository_LoadAndList(t *testing.T) {
	repo := newMemory(t)
	ctx := context.Background()

	apps, err := repo.ListApplications(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.NotNil(t, apps[0].Job)
	require.NotNil(t, apps[0].Candidate)
	assert.Equal(t, "Backend Engineer", apps[0].Job.Title)
	assert.Equal(t, "Ada Lovelace", apps[0].Candidate.FullName())
	assert.False(t, apps[0].AppliedAt.IsZero())

	jobs, err := repo.ListJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, jobs[0].ApplicationsCount)
	assert.Equal(t, 0, jobs[1].ApplicationsCount)

	history, err := repo.StatusHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.StatusApplied, history[0].ToStatus)
	assert.Equal(t, "seeded", history[0].Reason)
}

func TestMemoryRepository_CreateApplication(t *testing.T) {
	repo := newMemory(t)
	ctx := context.Background()

	app, err := repo.CreateApplication(ctx, types.CreateApplicationRequest{JobID: 1, CandidateID: 2, Source: "referral"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), app.ID, "ids continue after the seeded maximum")
	assert.Equal(t, types.StatusApplied, app.Status)
	assert.Equal(t, "referral", app.Source)

	_, err = repo.CreateApplication(ctx, types.CreateApplicationRequest{JobID: 1, CandidateID: 2})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = repo.CreateApplication(ctx, types.CreateApplicationRequest{JobID: 2, CandidateID: 2})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "Job not found or inactive")

	_, err = repo.CreateApplication(ctx, types.CreateApplicationRequest{JobID: 1, CandidateID: 99})
	assert.EqualError(t, err, "Candidate not found")
}

func TestMemoryRepository_UpdateStatus(t *testing.T) {
	repo := newMemory(t)
	repo.now = func() time.Time { return time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	app, err := repo.UpdateStatus(ctx, 10, StatusChange{Status: types.StatusScreening, Reason: "strong CV", ChangedBy: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusScreening, app.Status)
	require.NotNil(t, app.UpdatedAt)

	history, err := repo.StatusHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.StatusApplied, history[0].FromStatus, "newest first")
	assert.Equal(t, types.StatusScreening, history[0].ToStatus)
	assert.Equal(t, "strong CV", history[0].Reason)
	assert.Equal(t, int64(1), history[0].ChangedBy)
}

func TestMemoryRepository_UpdateStatusCheckAborts(t *testing.T) {
	repo := newMemory(t)
	ctx := context.Background()
	refused := errors.New("refused")

	var seen types.Status
	_, err := repo.UpdateStatus(ctx, 10, StatusChange{Status: types.StatusHired}, func(from types.Status) error {
		seen = from
		return refused
	})
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, types.StatusApplied, seen)

	app, err := repo.GetApplication(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApplied, app.Status)

	history, err := repo.StatusHistory(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMemoryRepository_NotFound(t *testing.T) {
	repo := newMemory(t)
	ctx := context.Background()

	_, err := repo.GetApplication(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.UpdateStatus(ctx, 404, StatusChange{Status: types.StatusHired}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.StatusHistory(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.UserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.UserByID(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := newMemory(t)
	ctx := context.Background()

	apps, err := repo.ListApplications(ctx)
	require.NoError(t, err)
	apps[0].Status = types.StatusHired
	apps[0].Job.Title = "mutated"

	app, err := repo.GetApplication(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApplied, app.Status)
	assert.Equal(t, "Backend Engineer", app.Job.Title)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 404, HTTPStatus(notFound("Application")))
	assert.Equal(t, 401, HTTPStatus(ErrInvalidCredentials))
	assert.Equal(t, 400, HTTPStatus(&ErrRejected{Detail: "no"}))
	assert.Equal(t, 400, HTTPStatus(ErrConflict))
	assert.Equal(t, 422, HTTPStatus(&ErrValidation{}))
	assert.Equal(t, 500, HTTPStatus(errors.New("boom")))
}
