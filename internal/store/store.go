// Package store holds the latest fetched snapshot of jobs, candidates and
// applications and serves id lookups from memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/hireops/internal/types"
)

// Collection names used in AggregateLoadError.
const (
	CollectionJobs         = "jobs"
	CollectionCandidates   = "candidates"
	CollectionApplications = "applications"
)

// ErrNotFound is returned by lookups for ids that are not cached.
var ErrNotFound = errors.New("not found")

// ErrAggregateLoad matches every *AggregateLoadError.
var ErrAggregateLoad = errors.New("aggregate load failed")

// AggregateLoadError reports that LoadAll failed as a unit. Failed names the
// collections whose fetch failed; Cause is the first failure.
type AggregateLoadError struct {
	Failed []string
	Cause  error
}

func (e *AggregateLoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", strings.Join(e.Failed, ", "), e.Cause)
}

func (e *AggregateLoadError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrAggregateLoad) succeed.
func (e *AggregateLoadError) Is(target error) bool {
	return target == ErrAggregateLoad
}

// Fetcher retrieves the three collections. *api.Client implements it.
type Fetcher interface {
	ListJobs(ctx context.Context) ([]types.Job, error)
	ListCandidates(ctx context.Context) ([]types.Candidate, error)
	ListApplications(ctx context.Context) ([]types.Application, error)
}

// Store is the in-memory record cache. It is safe for concurrent use.
type Store struct {
	fetcher Fetcher

	mu         sync.RWMutex
	jobs       []types.Job
	candidates []types.Candidate
	apps       []types.Application
	appIndex   map[int64]int
	jobIndex   map[int64]int
	candIndex  map[int64]int
	loaded     bool
	version    uint64
}

// New creates an empty store that loads through fetcher.
func New(fetcher Fetcher) *Store {
	s := &Store{fetcher: fetcher}
	s.clear()
	return s
}

// Init performs the first load.
func (s *Store) Init(ctx context.Context) error {
	return s.LoadAll(ctx)
}

// Reset drops every cached record.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.version++
}

func (s *Store) clear() {
	s.jobs = nil
	s.candidates = nil
	s.apps = nil
	s.appIndex = map[int64]int{}
	s.jobIndex = map[int64]int{}
	s.candIndex = map[int64]int{}
	s.loaded = false
}

// LoadAll fetches the three collections concurrently and swaps them in only
// if all three succeed. On failure the previous snapshot is kept and an
// *AggregateLoadError is returned.
func (s *Store) LoadAll(ctx context.Context) error {
	jobs, candidates, apps, err := s.fetchAll(ctx)
	if err != nil {
		return err
	}
	s.install(jobs, candidates, apps, nil)
	return nil
}

// LoadAllUnless is LoadAll with a guard. The fetched snapshot is discarded,
// and swapped is false, when the store was mutated during the fetch or when
// skip reports true. skip runs under the store's write lock right before the
// swap, so it must not call back into the store.
func (s *Store) LoadAllUnless(ctx context.Context, skip func() bool) (swapped bool, err error) {
	base := s.Version()
	jobs, candidates, apps, err := s.fetchAll(ctx)
	if err != nil {
		return false, err
	}
	return s.install(jobs, candidates, apps, func() bool {
		return s.version != base || (skip != nil && skip())
	}), nil
}

func (s *Store) fetchAll(ctx context.Context) ([]types.Job, []types.Candidate, []types.Application, error) {
	if s.fetcher == nil {
		return nil, nil, nil, &AggregateLoadError{
			Failed: []string{CollectionJobs, CollectionCandidates, CollectionApplications},
			Cause:  errors.New("no fetcher configured"),
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	var (
		jobs       []types.Job
		candidates []types.Candidate
		apps       []types.Application

		failMu sync.Mutex
		failed []string
	)
	fail := func(name string, err error) error {
		// Siblings cancelled by the first failure are not failures themselves.
		if ctx.Err() == nil && gCtx.Err() != nil && errors.Is(err, context.Canceled) {
			return err
		}
		failMu.Lock()
		failed = append(failed, name)
		failMu.Unlock()
		return fmt.Errorf("%s: %w", name, err)
	}

	g.Go(func() error {
		result, err := s.fetcher.ListJobs(gCtx)
		if err != nil {
			return fail(CollectionJobs, err)
		}
		jobs = result
		return nil
	})
	g.Go(func() error {
		result, err := s.fetcher.ListCandidates(gCtx)
		if err != nil {
			return fail(CollectionCandidates, err)
		}
		candidates = result
		return nil
	})
	g.Go(func() error {
		result, err := s.fetcher.ListApplications(gCtx)
		if err != nil {
			return fail(CollectionApplications, err)
		}
		apps = result
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, nil, &AggregateLoadError{Failed: sortedCollections(failed), Cause: err}
	}
	return jobs, candidates, apps, nil
}

// sortedCollections orders names the way the collections are fetched so
// error messages are stable regardless of completion order.
func sortedCollections(names []string) []string {
	out := make([]string, 0, len(names))
	for _, c := range []string{CollectionJobs, CollectionCandidates, CollectionApplications} {
		for _, n := range names {
			if n == c {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Load installs a snapshot directly, bypassing the fetcher.
func (s *Store) Load(jobs []types.Job, candidates []types.Candidate, apps []types.Application) {
	s.install(jobs, candidates, apps, nil)
}

// install swaps in a snapshot unless skip, checked under the write lock,
// reports true. It returns whether the swap happened.
func (s *Store) install(jobs []types.Job, candidates []types.Candidate, apps []types.Application, skip func() bool) bool {
	appIndex := make(map[int64]int, len(apps))
	copied := make([]types.Application, len(apps))
	for i, a := range apps {
		copied[i] = a.Clone()
		appIndex[a.ID] = i
	}
	jobIndex := make(map[int64]int, len(jobs))
	for i, j := range jobs {
		jobIndex[j.ID] = i
	}
	candIndex := make(map[int64]int, len(candidates))
	for i, c := range candidates {
		candIndex[c.ID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if skip != nil && skip() {
		return false
	}
	s.jobs = append([]types.Job(nil), jobs...)
	s.candidates = append([]types.Candidate(nil), candidates...)
	s.apps = copied
	s.appIndex = appIndex
	s.jobIndex = jobIndex
	s.candIndex = candIndex
	s.loaded = true
	s.version++
	return true
}

// Loaded reports whether a snapshot has been installed since the last Reset.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Version increases on every mutation. It counts changes rather than
// describing content: a rolled back transition leaves the records as they
// were but advances Version twice.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Application returns a copy of the cached application, or ErrNotFound.
func (s *Store) Application(id int64) (types.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.appIndex[id]
	if !ok {
		return types.Application{}, fmt.Errorf("application %d: %w", id, ErrNotFound)
	}
	return s.apps[i].Clone(), nil
}

// GetApplicationByID is an alias of Application.
func (s *Store) GetApplicationByID(id int64) (types.Application, error) {
	return s.Application(id)
}

// Job returns the cached job, or ErrNotFound.
func (s *Store) Job(id int64) (types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.jobIndex[id]
	if !ok {
		return types.Job{}, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	return s.jobs[i], nil
}

// Candidate returns the cached candidate, or ErrNotFound.
func (s *Store) Candidate(id int64) (types.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.candIndex[id]
	if !ok {
		return types.Candidate{}, fmt.Errorf("candidate %d: %w", id, ErrNotFound)
	}
	return s.candidates[i], nil
}

// Applications returns a copy of all applications in server order.
func (s *Store) Applications() []types.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Application, len(s.apps))
	for i, a := range s.apps {
		out[i] = a.Clone()
	}
	return out
}

// Jobs returns a copy of all jobs.
func (s *Store) Jobs() []types.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Job(nil), s.jobs...)
}

// Candidates returns a copy of all candidates.
func (s *Store) Candidates() []types.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Candidate(nil), s.candidates...)
}

// SetStatus sets an application's status and returns the previous one.
func (s *Store) SetStatus(id int64, status types.Status) (types.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.appIndex[id]
	if !ok {
		return "", fmt.Errorf("application %d: %w", id, ErrNotFound)
	}
	prev := s.apps[i].Status
	s.apps[i].Status = status
	s.version++
	return prev, nil
}

// ReplaceApplication installs a server-confirmed record for an id that is
// already cached. Nested job and candidate records are kept when the new
// record omits them.
func (s *Store) ReplaceApplication(app types.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.appIndex[app.ID]
	if !ok {
		return fmt.Errorf("application %d: %w", app.ID, ErrNotFound)
	}
	next := app.Clone()
	if next.Job == nil {
		next.Job = s.apps[i].Job
	}
	if next.Candidate == nil {
		next.Candidate = s.apps[i].Candidate
	}
	s.apps[i] = next
	s.version++
	return nil
}

// JobTitle resolves an application's job title from the nested record or the
// job collection.
func (s *Store) JobTitle(app types.Application) string {
	if app.Job != nil && app.Job.Title != "" {
		return app.Job.Title
	}
	if job, err := s.Job(app.JobID); err == nil {
		return job.Title
	}
	return fmt.Sprintf("Job #%d", app.JobID)
}

// CandidateName resolves an application's candidate name from the nested
// record or the candidate collection.
func (s *Store) CandidateName(app types.Application) string {
	if app.Candidate != nil && app.Candidate.FullName() != "" {
		return app.Candidate.FullName()
	}
	if c, err := s.Candidate(app.CandidateID); err == nil && c.FullName() != "" {
		return c.FullName()
	}
	return fmt.Sprintf("Candidate #%d", app.CandidateID)
}
