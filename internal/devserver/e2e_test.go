package devserver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hireops/internal/api"
	"github.com/jonathan/hireops/internal/board"
	"github.com/jonathan/hireops/internal/devserver"
	"github.com/jonathan/hireops/internal/event"
	"github.com/jonathan/hireops/internal/pipeline"
	"github.com/jonathan/hireops/internal/transition"
	"github.com/jonathan/hireops/internal/types"
)

type e2e struct {
	server *devserver.Server
	client *api.Client
	board  *board.Board
}

func setup(t *testing.T, route string) *e2e {
	t.Helper()
	srv, err := devserver.New(devserver.NewMemoryRepository(), devserver.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, srv.Seed(context.Background(), devserver.DefaultSeed()))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	anon, err := api.New(ts.URL+"/api", nil)
	require.NoError(t, err)
	token, err := anon.Login(context.Background(), types.LoginRequest{Username: "recruiter", Password: "recruiter123"})
	require.NoError(t, err)

	opts := api.DefaultOptions()
	opts.Tokens = api.StaticToken(token.AccessToken)
	opts.StatusRoute = route
	client, err := api.New(ts.URL+"/api", opts)
	require.NoError(t, err)

	b := board.New(client, board.Options{})
	require.NoError(t, b.Init(context.Background()))
	return &e2e{server: srv, client: client, board: b}
}

func stageOf(g pipeline.Grouping, id int64) types.Status {
	col, _, ok := g.Locate(id)
	if !ok {
		return ""
	}
	return g.Stages[col]
}

func TestBoard_MoveThroughRealAPI(t *testing.T) {
	for _, route := range []string{api.RoutePatchStatus, api.RoutePutStatus, api.RoutePut} {
		t.Run(route, func(t *testing.T) {
			env := setup(t, route)

			g := env.board.Grouping()
			assert.Equal(t, 2, g.Count(types.StatusApplied))
			assert.Equal(t, 2, g.Count(types.StatusScreening))
			assert.Equal(t, 1, g.Count(types.StatusInterviewScheduled))
			assert.Equal(t, 1, g.Count(types.StatusOfferExtended))
			assert.Equal(t, 2, g.Excluded)

			res, err := env.board.Move(context.Background(), 1, types.StatusScreening, transition.WithReason("phone screen booked"))
			require.NoError(t, err)
			assert.True(t, res.OK())

			g = env.board.Grouping()
			assert.Equal(t, 1, g.Count(types.StatusApplied))
			assert.Equal(t, 3, g.Count(types.StatusScreening))

			history, err := env.client.StatusHistory(context.Background(), 1)
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, types.StatusScreening, history[0].ToStatus)
			assert.Equal(t, "phone screen booked", history[0].Reason)
		})
	}
}

func TestBoard_RollbackOnServerFailure(t *testing.T) {
	env := setup(t, api.RoutePatchStatus)

	var (
		mu     sync.Mutex
		failed []event.TransitionFailedEvent
	)
	env.board.Subscribe(event.TypeTransitionFailed, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, e.(event.TransitionFailedEvent))
	})

	env.server.FailStatusUpdates(1, http.StatusInternalServerError)
	res, err := env.board.Move(context.Background(), 3, types.StatusOfferExtended)
	require.Error(t, err)
	assert.Equal(t, transition.Failed, res.State)

	var serverErr *api.ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, http.StatusInternalServerError, serverErr.StatusCode)

	g := env.board.Grouping()
	assert.Equal(t, types.StatusInterviewScheduled, stageOf(g, 3), "card snaps back")

	mu.Lock()
	require.Len(t, failed, 1)
	assert.Equal(t, "Internal Server Error", failed[0].Reason)
	assert.Equal(t, types.StatusInterviewScheduled, failed[0].From)
	mu.Unlock()

	// The server state agrees with the rolled-back board.
	require.NoError(t, env.board.Refresh(context.Background()))
	assert.Equal(t, types.StatusInterviewScheduled, stageOf(env.board.Grouping(), 3))
}

func TestBoard_ServerRejectsSameStatus(t *testing.T) {
	env := setup(t, api.RoutePatchStatus)

	// The controller short-circuits same-status moves, so the server's
	// rejection is only reachable through the raw client.
	_, err := env.client.UpdateApplicationStatus(context.Background(), 1, types.StatusUpdateRequest{Status: types.StatusApplied})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrServerRejected)
	assert.Equal(t, "Application is already in the specified status", api.Reason(err))

	res, err := env.board.Move(context.Background(), 1, types.StatusApplied)
	require.NoError(t, err)
	assert.True(t, res.NoOp)
}

func TestBoard_CreateApplicationRefreshes(t *testing.T) {
	env := setup(t, api.RoutePatchStatus)

	app, err := env.board.CreateApplication(context.Background(), types.CreateApplicationRequest{JobID: 2, CandidateID: 3})
	require.NoError(t, err)
	require.NotNil(t, app)

	g := env.board.Grouping()
	assert.Equal(t, 3, g.Count(types.StatusApplied))
	assert.Equal(t, types.StatusApplied, stageOf(g, app.ID))
	assert.Equal(t, "Product Designer", env.board.Store().JobTitle(*app))
}

func TestClient_MeAgainstDevServer(t *testing.T) {
	env := setup(t, api.RoutePatchStatus)

	user, err := env.client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "recruiter", user.Username)
	assert.Equal(t, "Riley Recruiter", user.FullName)
}
