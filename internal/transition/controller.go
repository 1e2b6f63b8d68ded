// Package transition moves applications between pipeline stages. A move is
// applied to the record store optimistically, confirmed with the server, and
// rolled back if the server does not confirm it.
package transition

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonathan/hireops/internal/api"
	"github.com/jonathan/hireops/internal/event"
	"github.com/jonathan/hireops/internal/logging"
	"github.com/jonathan/hireops/internal/store"
	"github.com/jonathan/hireops/internal/types"
)

// Policy decides what happens to a request for an application that already
// has a transition outstanding.
type Policy string

const (
	// PolicyQueue runs same-application requests one after another, in
	// arrival order.
	PolicyQueue Policy = "queue"
	// PolicyReject fails the second request with ErrTransitionInFlight.
	PolicyReject Policy = "reject"
)

// State of the latest transition of an application.
type State int

const (
	Idle State = iota
	Requested
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Requested:
		return "requested"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Result is the outcome of one transition.
type Result struct {
	ApplicationID int64
	From          types.Status
	To            types.Status
	State         State
	Err           error
	NoOp          bool
	Duration      time.Duration
}

// OK reports whether the transition was confirmed.
func (r Result) OK() bool {
	return r.State == Confirmed
}

// Records is the subset of the record store the controller mutates.
type Records interface {
	Application(id int64) (types.Application, error)
	SetStatus(id int64, status types.Status) (types.Status, error)
	ReplaceApplication(app types.Application) error
	Version() uint64
}

// Updater confirms a status change with the server. *api.Client implements it.
type Updater interface {
	UpdateApplicationStatus(ctx context.Context, id int64, req types.StatusUpdateRequest) (*types.Application, error)
}

// Options configures a Controller.
type Options struct {
	Policy  Policy
	Timeout time.Duration // per server call; zero leaves it to the client
	Bus     *event.Bus
	Logger  *logging.Logger
}

// RequestOption adds optional fields to the status update body.
type RequestOption func(*types.StatusUpdateRequest)

// WithNotes attaches notes to the status change.
func WithNotes(notes string) RequestOption {
	return func(r *types.StatusUpdateRequest) { r.Notes = notes }
}

// WithReason attaches a reason to the status change.
func WithReason(reason string) RequestOption {
	return func(r *types.StatusUpdateRequest) { r.Reason = reason }
}

// lane serializes transitions of one application. tail is closed when the
// most recently enqueued transition finishes.
type lane struct {
	tail    chan struct{}
	pending int
}

// Controller mediates status transitions. It is safe for concurrent use.
type Controller struct {
	records Records
	updater Updater
	bus     *event.Bus
	logger  *logging.Logger
	policy  Policy
	timeout time.Duration

	mu     sync.Mutex
	lanes  map[int64]*lane
	states map[int64]State
}

// New creates a controller over records that confirms through updater.
func New(records Records, updater Updater, opts Options) *Controller {
	c := &Controller{
		records: records,
		updater: updater,
		bus:     opts.Bus,
		logger:  opts.Logger,
		policy:  opts.Policy,
		timeout: opts.Timeout,
		lanes:   map[int64]*lane{},
		states:  map[int64]State{},
	}
	if c.logger == nil {
		c.logger = logging.NopLogger()
	}
	c.logger = c.logger.WithComponent("transition")
	if c.bus == nil {
		c.bus = event.NewBus(c.logger)
	}
	if c.policy == "" {
		c.policy = PolicyQueue
	}
	return c
}

// Bus returns the bus transition events are published on.
func (c *Controller) Bus() *event.Bus {
	return c.bus
}

// Policy returns the in-flight policy.
func (c *Controller) Policy() Policy {
	return c.policy
}

// State returns the state of the latest transition of id.
func (c *Controller) State(id int64) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[id]
}

// InFlight returns the number of applications with a transition outstanding
// or queued.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lanes)
}

// Request moves application id to status and blocks until the server
// confirms or the move has been rolled back. The returned error is nil only
// for a confirmed transition.
func (c *Controller) Request(ctx context.Context, id int64, status types.Status, opts ...RequestOption) (Result, error) {
	if err := c.validate(id, status); err != nil {
		return Result{ApplicationID: id, To: status, Err: err}, err
	}
	wait, done, err := c.enqueue(id, status)
	if err != nil {
		return Result{ApplicationID: id, To: status, Err: err}, err
	}
	res := c.run(ctx, id, status, opts, wait, done)
	return res, res.Err
}

// Submit validates synchronously and resolves the transition in the
// background. The channel receives exactly one Result and is then closed.
//
// When no other transition of id is outstanding, the optimistic update and
// the transition.requested event happen before Submit returns, so the store
// already shows the target status. A request queued behind another one for
// the same id applies its update once its turn comes.
func (c *Controller) Submit(ctx context.Context, id int64, status types.Status, opts ...RequestOption) (<-chan Result, error) {
	if err := c.validate(id, status); err != nil {
		return nil, err
	}
	wait, done, err := c.enqueue(id, status)
	if err != nil {
		return nil, err
	}

	out := make(chan Result, 1)
	if wait != nil {
		go func() {
			defer close(out)
			out <- c.run(ctx, id, status, opts, wait, done)
		}()
		return out, nil
	}

	start := time.Now()
	res, applied := c.apply(id, status, start)
	if !applied {
		c.release(id, done)
		out <- res
		close(out)
		return out, nil
	}
	go func() {
		defer close(out)
		out <- c.confirm(ctx, res, opts, done, start)
	}()
	return out, nil
}

// Prune forgets the state of applications that are no longer cached and
// have nothing in flight.
func (c *Controller) Prune() {
	c.mu.Lock()
	ids := make([]int64, 0, len(c.states))
	for id := range c.states {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	// The store is consulted without c.mu held; the store may call InFlight
	// while holding its own lock.
	var gone []int64
	for _, id := range ids {
		if _, err := c.records.Application(id); err != nil {
			gone = append(gone, id)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range gone {
		if _, busy := c.lanes[id]; !busy {
			delete(c.states, id)
		}
	}
}

func (c *Controller) validate(id int64, status types.Status) error {
	if !status.Valid() {
		return &InvalidRequestError{ApplicationID: id, Status: status, Reason: "unknown status"}
	}
	if _, err := c.records.Application(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &InvalidRequestError{ApplicationID: id, Status: status, Reason: "application not found"}
		}
		return &InvalidRequestError{ApplicationID: id, Status: status, Reason: err.Error()}
	}
	return nil
}

// enqueue reserves the next slot in id's lane. wait is closed when the
// previous transition of id finishes; it is nil when the lane was idle.
func (c *Controller) enqueue(id int64, status types.Status) (wait <-chan struct{}, done chan struct{}, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.lanes[id]
	if !ok {
		l = &lane{}
		c.lanes[id] = l
	}
	if c.policy == PolicyReject && l.pending > 0 {
		c.logger.Info("transition rejected: already in flight", "application_id", id, "to", status)
		return nil, nil, ErrTransitionInFlight
	}

	if l.tail != nil {
		wait = l.tail
	}
	done = make(chan struct{})
	l.tail = done
	l.pending++
	return wait, done, nil
}

func (c *Controller) release(id int64, done chan struct{}) {
	close(done)

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.lanes[id]; ok {
		l.pending--
		if l.pending == 0 {
			delete(c.lanes, id)
		}
	}
}

func (c *Controller) setState(id int64, s State) {
	c.mu.Lock()
	c.states[id] = s
	c.mu.Unlock()
}

func (c *Controller) run(ctx context.Context, id int64, to types.Status, opts []RequestOption, wait <-chan struct{}, done chan struct{}) Result {
	start := time.Now()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			// Keep the lane ordered: the slot is handed on only after the
			// predecessor has finished.
			go func() {
				<-wait
				c.release(id, done)
			}()
			return Result{ApplicationID: id, To: to, Err: ctx.Err(), Duration: time.Since(start)}
		}
	}

	res, applied := c.apply(id, to, start)
	if !applied {
		c.release(id, done)
		return res
	}
	return c.confirm(ctx, res, opts, done, start)
}

// apply performs the optimistic update. It reports false when nothing was
// applied: a no-op or a record that vanished. In that case res is final.
func (c *Controller) apply(id int64, to types.Status, start time.Time) (Result, bool) {
	res := Result{ApplicationID: id, To: to}

	// The record may have moved or vanished while queued.
	current, err := c.records.Application(id)
	if err != nil {
		res.Err = &InvalidRequestError{ApplicationID: id, Status: to, Reason: "application not found"}
		res.Duration = time.Since(start)
		return res, false
	}
	res.From = current.Status

	if current.Status == to {
		c.setState(id, Confirmed)
		res.State = Confirmed
		res.NoOp = true
		res.Duration = time.Since(start)
		c.logger.Debug("transition is a no-op", "application_id", id, "status", to)
		c.bus.Publish(event.NewTransitionSucceededEvent(id, to, to, true))
		return res, false
	}

	prev, err := c.records.SetStatus(id, to)
	if err != nil {
		res.Err = &InvalidRequestError{ApplicationID: id, Status: to, Reason: err.Error()}
		res.Duration = time.Since(start)
		return res, false
	}
	res.From = prev
	res.State = Requested
	c.setState(id, Requested)
	c.logger.Info("transition requested", "application_id", id, "from", prev, "to", to)
	c.bus.Publish(event.NewTransitionRequestedEvent(id, prev, to))
	c.bus.Publish(event.NewBoardChangedEvent(c.records.Version()))
	return res, true
}

// confirm sends the applied transition to the server, then keeps it or rolls
// it back. It releases the lane slot.
func (c *Controller) confirm(ctx context.Context, res Result, opts []RequestOption, done chan struct{}, start time.Time) Result {
	id, prev, to := res.ApplicationID, res.From, res.To
	defer c.release(id, done)

	req := types.StatusUpdateRequest{Status: to}
	for _, opt := range opts {
		opt(&req)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	echo, err := c.updater.UpdateApplicationStatus(callCtx, id, req)
	res.Duration = time.Since(start)

	if err != nil {
		// The rollback advances the store version like any other mutation.
		if _, rbErr := c.records.SetStatus(id, prev); rbErr != nil {
			c.logger.Error("rollback failed", "application_id", id, "to", prev, "error", rbErr)
		}
		c.setState(id, Failed)
		res.State = Failed
		res.Err = err
		reason := api.Reason(err)
		c.logger.Warn("transition failed, rolled back", "application_id", id, "from", prev, "to", to,
			"reason", reason, "duration", res.Duration)
		c.bus.Publish(event.NewTransitionFailedEvent(id, prev, to, reason))
		c.bus.Publish(event.NewBoardChangedEvent(c.records.Version()))
		return res
	}

	if echo != nil && echo.ID == id {
		confirmed := echo.Clone()
		confirmed.Status = to
		if err := c.records.ReplaceApplication(confirmed); err != nil {
			c.logger.Warn("failed to apply server record", "application_id", id, "error", err)
		}
	}
	c.setState(id, Confirmed)
	res.State = Confirmed
	c.logger.Info("transition confirmed", "application_id", id, "from", prev, "to", to, "duration", res.Duration)
	c.bus.Publish(event.NewTransitionSucceededEvent(id, prev, to, false))
	return res
}
