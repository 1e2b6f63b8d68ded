// Package board composes the record store, the grouping engine and the
// transition controller into the object renderers and input adapters talk to.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/hireops/internal/api"
	"github.com/jonathan/hireops/internal/event"
	"github.com/jonathan/hireops/internal/logging"
	"github.com/jonathan/hireops/internal/pipeline"
	"github.com/jonathan/hireops/internal/store"
	"github.com/jonathan/hireops/internal/transition"
	"github.com/jonathan/hireops/internal/types"
)

// DefaultRefreshInterval matches the dashboard's 30 second reload.
const DefaultRefreshInterval = 30 * time.Second

// Client is the API surface the board needs. *api.Client implements it.
type Client interface {
	store.Fetcher
	transition.Updater
	CreateApplication(ctx context.Context, req types.CreateApplicationRequest) (*types.Application, error)
}

// Options configures a Board.
type Options struct {
	// Stages are the board columns in order. Empty means the kanban subset.
	Stages            []types.Status
	Policy            transition.Policy
	TransitionTimeout time.Duration
	Logger            *logging.Logger
}

// Board owns one store, one controller and one event bus.
type Board struct {
	client     Client
	stages     []types.Status
	store      *store.Store
	controller *transition.Controller
	bus        *event.Bus
	logger     *logging.Logger

	refreshMu sync.Mutex
}

// New creates a board. Call Init to load it.
func New(client Client, opts Options) *Board {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	stages := opts.Stages
	if len(stages) == 0 {
		stages = types.KanbanStatuses
	}

	bus := event.NewBus(logger)
	s := store.New(client)
	return &Board{
		client: client,
		stages: append([]types.Status(nil), stages...),
		store:  s,
		controller: transition.New(s, client, transition.Options{
			Policy:  opts.Policy,
			Timeout: opts.TransitionTimeout,
			Bus:     bus,
			Logger:  logger,
		}),
		bus:    bus,
		logger: logger.WithComponent("board"),
	}
}

// Init performs the first load.
func (b *Board) Init(ctx context.Context) error {
	return b.Refresh(ctx)
}

// Reset empties the board.
func (b *Board) Reset() {
	b.store.Reset()
	b.controller.Prune()
	b.bus.Publish(event.NewBoardChangedEvent(b.store.Version()))
}

// Stages returns the board columns.
func (b *Board) Stages() []types.Status {
	return append([]types.Status(nil), b.stages...)
}

// Grouping returns the current stage partition.
func (b *Board) Grouping() pipeline.Grouping {
	return pipeline.Group(b.store.Applications(), b.stages)
}

// Version changes whenever the grouping may have changed.
func (b *Board) Version() uint64 {
	return b.store.Version()
}

// Store returns the underlying record store for lookups.
func (b *Board) Store() *store.Store {
	return b.store
}

// Controller returns the transition controller.
func (b *Board) Controller() *transition.Controller {
	return b.controller
}

// OnTransitionRequested hands a move from an input adapter to the controller.
// Invalid requests fail synchronously; otherwise the result arrives on the
// returned channel.
func (b *Board) OnTransitionRequested(ctx context.Context, id int64, target types.Status) (<-chan transition.Result, error) {
	return b.controller.Submit(ctx, id, target)
}

// Move is the blocking form of OnTransitionRequested.
func (b *Board) Move(ctx context.Context, id int64, target types.Status, opts ...transition.RequestOption) (transition.Result, error) {
	return b.controller.Request(ctx, id, target, opts...)
}

// Subscribe registers handler for eventType, or for every event when
// eventType is "*".
func (b *Board) Subscribe(eventType string, handler event.Handler) string {
	return b.bus.Subscribe(eventType, handler)
}

// Unsubscribe removes a subscription.
func (b *Board) Unsubscribe(id string) bool {
	return b.bus.Unsubscribe(id)
}

// Refresh reloads all collections. A failed load keeps the previous snapshot.
func (b *Board) Refresh(ctx context.Context) error {
	_, err := b.refresh(ctx, nil)
	return err
}

// refresh loads through the store. With a non-nil busy the snapshot is
// only installed if the store did not change during the fetch and busy
// reports false at swap time.
func (b *Board) refresh(ctx context.Context, busy func() bool) (bool, error) {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()

	start := time.Now()
	var err error
	if busy == nil {
		err = b.store.LoadAll(ctx)
	} else {
		var swapped bool
		swapped, err = b.store.LoadAllUnless(ctx, busy)
		if err == nil && !swapped {
			b.logger.Debug("refresh discarded: board changed during load", "duration", time.Since(start))
			return false, nil
		}
	}
	if err != nil {
		b.logger.Warn("board load failed", "error", err)
		b.bus.Publish(event.NewBoardLoadFailedEvent(loadFailureReason(err)))
		return false, err
	}
	b.controller.Prune()

	jobs, candidates, apps := len(b.store.Jobs()), len(b.store.Candidates()), len(b.store.Applications())
	b.logger.Debug("board loaded", "jobs", jobs, "candidates", candidates, "applications", apps,
		"duration", time.Since(start))
	b.bus.Publish(event.NewBoardLoadedEvent(jobs, candidates, apps))
	b.bus.Publish(event.NewBoardChangedEvent(b.store.Version()))
	return true, nil
}

// StartAutoRefresh reloads the board every interval until ctx is done.
// A tick is skipped while any transition is outstanding so a reload cannot
// overwrite an optimistic update.
func (b *Board) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := b.RefreshIfIdle(ctx); err != nil {
					b.logger.Debug("auto refresh failed", "error", err)
				}
			}
		}
	}()
}

// RefreshIfIdle refreshes unless a transition is outstanding. It reports
// whether a new snapshot was installed. A move that starts or finishes while
// the fetch is running makes the fetched snapshot stale, so it is dropped.
func (b *Board) RefreshIfIdle(ctx context.Context) (bool, error) {
	if n := b.controller.InFlight(); n > 0 {
		b.logger.Debug("refresh skipped: transitions in flight", "count", n)
		return false, nil
	}
	return b.refresh(ctx, func() bool { return b.controller.InFlight() > 0 })
}

// CreateApplication pairs a job and candidate, then reloads the board.
func (b *Board) CreateApplication(ctx context.Context, req types.CreateApplicationRequest) (*types.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid application: %s", strings.Join(types.ValidationMessages(err), "; "))
	}
	app, err := b.client.CreateApplication(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := b.Refresh(ctx); err != nil {
		return app, fmt.Errorf("application %d created but reload failed: %w", app.ID, err)
	}
	return app, nil
}

func loadFailureReason(err error) string {
	var loadErr *store.AggregateLoadError
	if errors.As(err, &loadErr) && len(loadErr.Failed) > 0 {
		return fmt.Sprintf("failed to load %s: %s", strings.Join(loadErr.Failed, ", "), api.Reason(loadErr.Cause))
	}
	return api.Reason(err)
}
