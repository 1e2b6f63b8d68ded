package board

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hireops/internal/api"
	"github.com/jonathan/hireops/internal/event"
	"github.com/jonathan/hireops/internal/store"
	"github.com/jonathan/hireops/internal/transition"
	"github.com/jonathan/hireops/internal/types"
)

type fakeClient struct {
	mu            sync.Mutex
	apps          []types.Application
	candidatesErr error
	updateErr     error
	updateGate    chan struct{}
	listCalls     atomic.Int32

	// listGate holds ListApplications after it has taken its snapshot.
	listGate chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{apps: []types.Application{
		{ID: 42, JobID: 1, CandidateID: 7, Status: types.StatusApplied},
		{ID: 43, JobID: 1, CandidateID: 7, Status: types.StatusScreening},
		{ID: 44, JobID: 1, CandidateID: 7, Status: types.StatusRejected},
	}}
}

func (f *fakeClient) ListJobs(context.Context) ([]types.Job, error) {
	return []types.Job{{ID: 1, Title: "Backend Engineer"}}, nil
}

func (f *fakeClient) ListCandidates(context.Context) ([]types.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candidatesErr != nil {
		return nil, f.candidatesErr
	}
	return []types.Candidate{{ID: 7, FirstName: "Ada", LastName: "Lovelace"}}, nil
}

func (f *fakeClient) ListApplications(context.Context) ([]types.Application, error) {
	f.listCalls.Add(1)
	f.mu.Lock()
	apps := append([]types.Application(nil), f.apps...)
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return apps, nil
}

func (f *fakeClient) UpdateApplicationStatus(ctx context.Context, id int64, req types.StatusUpdateRequest) (*types.Application, error) {
	if f.updateGate != nil {
		select {
		case <-f.updateGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.apps {
		if f.apps[i].ID == id {
			f.apps[i].Status = req.Status
		}
	}
	return nil, nil
}

func (f *fakeClient) CreateApplication(_ context.Context, req types.CreateApplicationRequest) (*types.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app := types.Application{ID: int64(100 + len(f.apps)), JobID: req.JobID, CandidateID: req.CandidateID, Status: types.StatusApplied}
	f.apps = append(f.apps, app)
	return &app, nil
}

func TestBoard_InitAndGrouping(t *testing.T) {
	b := New(newFakeClient(), Options{})

	var loaded []event.BoardLoadedEvent
	b.Subscribe(event.TypeBoardLoaded, func(e event.Event) {
		loaded = append(loaded, e.(event.BoardLoadedEvent))
	})

	require.NoError(t, b.Init(context.Background()))
	require.Len(t, loaded, 1)
	assert.Equal(t, 3, loaded[0].Applications)

	g := b.Grouping()
	assert.Equal(t, types.KanbanStatuses, g.Stages)
	assert.Equal(t, 1, g.Count(types.StatusApplied))
	assert.Equal(t, 1, g.Count(types.StatusScreening))
	assert.Equal(t, 1, g.Excluded, "rejected is not a kanban column")
	assert.Equal(t, "Ada Lovelace", b.Store().CandidateName(g.Stage(types.StatusApplied)[0]))
}

func TestBoard_AllStages(t *testing.T) {
	b := New(newFakeClient(), Options{Stages: types.AllStatuses})
	require.NoError(t, b.Init(context.Background()))

	g := b.Grouping()
	assert.Equal(t, 1, g.Count(types.StatusRejected))
	assert.Zero(t, g.Excluded)
}

func TestBoard_LoadFailure(t *testing.T) {
	client := newFakeClient()
	client.candidatesErr = &api.ServerError{StatusCode: 503, Detail: "maintenance"}
	b := New(client, Options{})

	var reasons []string
	b.Subscribe(event.TypeBoardLoadFailed, func(e event.Event) {
		reasons = append(reasons, e.(event.BoardLoadFailedEvent).Reason)
	})

	err := b.Init(context.Background())
	assert.ErrorIs(t, err, store.ErrAggregateLoad)
	assert.Equal(t, []string{"failed to load candidates: maintenance"}, reasons)
	assert.Zero(t, b.Grouping().Total())
}

func TestBoard_TransitionThroughEventSink(t *testing.T) {
	b := New(newFakeClient(), Options{})
	require.NoError(t, b.Init(context.Background()))

	var succeeded atomic.Int32
	b.Subscribe(event.TypeTransitionSucceeded, func(event.Event) { succeeded.Add(1) })

	before := b.Version()
	results, err := b.OnTransitionRequested(context.Background(), 42, types.StatusScreening)
	require.NoError(t, err)
	res := <-results
	assert.True(t, res.OK())

	assert.Greater(t, b.Version(), before)
	assert.Equal(t, 2, b.Grouping().Count(types.StatusScreening))
	assert.Equal(t, int32(1), succeeded.Load())

	_, err = b.OnTransitionRequested(context.Background(), 999, types.StatusScreening)
	assert.ErrorIs(t, err, transition.ErrInvalidTransitionRequest)
}

func TestBoard_FailedMoveSnapsBack(t *testing.T) {
	client := newFakeClient()
	client.updateErr = &api.ServerError{StatusCode: 500, Detail: "boom"}
	b := New(client, Options{})
	require.NoError(t, b.Init(context.Background()))

	var failed []event.TransitionFailedEvent
	b.Subscribe(event.TypeTransitionFailed, func(e event.Event) {
		failed = append(failed, e.(event.TransitionFailedEvent))
	})

	_, err := b.Move(context.Background(), 42, types.StatusInterviewScheduled)
	assert.ErrorIs(t, err, api.ErrServerRejected)
	assert.Equal(t, 1, b.Grouping().Count(types.StatusApplied))
	assert.Zero(t, b.Grouping().Count(types.StatusInterviewScheduled))
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].Reason)
}

func TestBoard_RefreshSkippedWhileTransitionInFlight(t *testing.T) {
	client := newFakeClient()
	client.updateGate = make(chan struct{})
	b := New(client, Options{})
	require.NoError(t, b.Init(context.Background()))
	calls := client.listCalls.Load()

	results, err := b.OnTransitionRequested(context.Background(), 42, types.StatusScreening)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Controller().InFlight())

	ran, err := b.RefreshIfIdle(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, calls, client.listCalls.Load())

	close(client.updateGate)
	<-results

	ran, err = b.RefreshIfIdle(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, types.StatusScreening, mustApp(t, b, 42).Status)
}

func TestBoard_OnTransitionRequestedAppliesImmediately(t *testing.T) {
	client := newFakeClient()
	client.updateGate = make(chan struct{})
	b := New(client, Options{})
	require.NoError(t, b.Init(context.Background()))

	results, err := b.OnTransitionRequested(context.Background(), 42, types.StatusScreening)
	require.NoError(t, err)

	// No waiting: the server has not answered yet.
	assert.Equal(t, types.StatusScreening, mustApp(t, b, 42).Status)
	assert.Equal(t, transition.Requested, b.Controller().State(42))
	g := b.Grouping()
	col, _, ok := g.Locate(42)
	require.True(t, ok)
	assert.Equal(t, g.StageIndex(types.StatusScreening), col)
	assert.Equal(t, 2, g.Count(types.StatusScreening))
	assert.Zero(t, g.Count(types.StatusApplied))

	close(client.updateGate)
	res := <-results
	assert.True(t, res.OK())
	assert.Equal(t, types.StatusApplied, res.From)
}

type refreshOutcome struct {
	ran bool
	err error
}

// startGatedRefresh runs RefreshIfIdle with ListApplications held after it
// has read the server state. Closing the returned gate lets it finish.
func startGatedRefresh(t *testing.T, b *Board, client *fakeClient) (chan struct{}, <-chan refreshOutcome) {
	t.Helper()
	gate := make(chan struct{})
	client.mu.Lock()
	client.listGate = gate
	client.mu.Unlock()

	calls := client.listCalls.Load()
	out := make(chan refreshOutcome, 1)
	go func() {
		ran, err := b.RefreshIfIdle(context.Background())
		out <- refreshOutcome{ran: ran, err: err}
	}()
	require.Eventually(t, func() bool { return client.listCalls.Load() > calls }, time.Second, time.Millisecond)
	return gate, out
}

func TestBoard_RefreshIfIdleDropsSnapshotWhenMoveStartsDuringLoad(t *testing.T) {
	client := newFakeClient()
	client.updateGate = make(chan struct{})
	b := New(client, Options{})
	require.NoError(t, b.Init(context.Background()))

	gate, refreshed := startGatedRefresh(t, b, client)

	results, err := b.OnTransitionRequested(context.Background(), 42, types.StatusScreening)
	require.NoError(t, err)
	close(gate)

	out := <-refreshed
	require.NoError(t, out.err)
	assert.False(t, out.ran)
	assert.Equal(t, types.StatusScreening, mustApp(t, b, 42).Status, "stale snapshot must not undo the move")

	close(client.updateGate)
	assert.True(t, (<-results).OK())
	assert.Equal(t, types.StatusScreening, mustApp(t, b, 42).Status)
}

func TestBoard_RefreshIfIdleDropsSnapshotWhenMoveEndsDuringLoad(t *testing.T) {
	client := newFakeClient()
	b := New(client, Options{})
	require.NoError(t, b.Init(context.Background()))

	gate, refreshed := startGatedRefresh(t, b, client)

	// The move is confirmed and leaves nothing in flight before the load ends.
	res, err := b.Move(context.Background(), 42, types.StatusScreening)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Zero(t, b.Controller().InFlight())
	close(gate)

	out := <-refreshed
	require.NoError(t, out.err)
	assert.False(t, out.ran)
	assert.Equal(t, types.StatusScreening, mustApp(t, b, 42).Status)

	client.mu.Lock()
	client.listGate = nil
	client.mu.Unlock()
	ran, err := b.RefreshIfIdle(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, types.StatusScreening, mustApp(t, b, 42).Status)
}

func TestBoard_ResetAndRefreshPruneTransitionState(t *testing.T) {
	client := newFakeClient()
	b := New(client, Options{})
	require.NoError(t, b.Init(context.Background()))

	_, err := b.Move(context.Background(), 43, types.StatusInterviewScheduled)
	require.NoError(t, err)
	assert.Equal(t, transition.Confirmed, b.Controller().State(43))

	client.mu.Lock()
	client.apps = client.apps[:1]
	client.mu.Unlock()
	require.NoError(t, b.Refresh(context.Background()))
	assert.Equal(t, transition.Idle, b.Controller().State(43), "record no longer on the server")

	_, err = b.Move(context.Background(), 42, types.StatusScreening)
	require.NoError(t, err)
	b.Reset()
	assert.Equal(t, transition.Idle, b.Controller().State(42))
}

func TestBoard_StartAutoRefresh(t *testing.T) {
	client := newFakeClient()
	b := New(client, Options{})
	require.NoError(t, b.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.StartAutoRefresh(ctx, 10*time.Millisecond)

	client.mu.Lock()
	client.apps = append(client.apps, types.Application{ID: 50, Status: types.StatusOfferExtended})
	client.mu.Unlock()

	require.Eventually(t, func() bool {
		return b.Grouping().Count(types.StatusOfferExtended) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBoard_CreateApplication(t *testing.T) {
	b := New(newFakeClient(), Options{})
	require.NoError(t, b.Init(context.Background()))

	app, err := b.CreateApplication(context.Background(), types.CreateApplicationRequest{JobID: 1, CandidateID: 7})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Grouping().Count(types.StatusApplied))
	assert.Equal(t, types.StatusApplied, mustApp(t, b, app.ID).Status)

	_, err = b.CreateApplication(context.Background(), types.CreateApplicationRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobid is required")
}

func TestBoard_Reset(t *testing.T) {
	b := New(newFakeClient(), Options{})
	require.NoError(t, b.Init(context.Background()))

	changed := 0
	id := b.Subscribe(event.TypeBoardChanged, func(event.Event) { changed++ })
	b.Reset()
	assert.Equal(t, 1, changed)
	assert.Zero(t, b.Grouping().Total())

	assert.True(t, b.Unsubscribe(id))
	_, err := b.OnTransitionRequested(context.Background(), 42, types.StatusHired)
	assert.True(t, errors.Is(err, transition.ErrInvalidTransitionRequest))
}

func mustApp(t *testing.T, b *Board, id int64) types.Application {
	t.Helper()
	app, err := b.Store().Application(id)
	require.NoError(t, err)
	return app
}
