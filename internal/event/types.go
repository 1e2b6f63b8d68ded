package event

import (
	"time"

	"github.com/jonathan/hireops/internal/types"
)

// Event is implemented by everything published on the Bus.
type Event interface {
	// EventType returns the "category.action" identifier.
	EventType() string
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeTransitionRequested = "transition.requested"
	TypeTransitionSucceeded = "transition.succeeded"
	TypeTransitionFailed    = "transition.failed"
	TypeBoardLoaded         = "board.loaded"
	TypeBoardLoadFailed     = "board.load_failed"
	TypeBoardChanged        = "board.changed"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// TransitionRequestedEvent is published after the optimistic update has been
// applied and before the server is asked to confirm it.
type TransitionRequestedEvent struct {
	baseEvent
	ApplicationID int64
	From          types.Status
	To            types.Status
}

// NewTransitionRequestedEvent creates a TransitionRequestedEvent.
func NewTransitionRequestedEvent(id int64, from, to types.Status) TransitionRequestedEvent {
	return TransitionRequestedEvent{
		baseEvent:     newBaseEvent(TypeTransitionRequested),
		ApplicationID: id,
		From:          from,
		To:            to,
	}
}

// TransitionSucceededEvent is published once the server confirms a transition.
type TransitionSucceededEvent struct {
	baseEvent
	ApplicationID int64
	From          types.Status
	To            types.Status
	NoOp          bool // target equalled the current status; no request was sent
}

// NewTransitionSucceededEvent creates a TransitionSucceededEvent.
func NewTransitionSucceededEvent(id int64, from, to types.Status, noOp bool) TransitionSucceededEvent {
	return TransitionSucceededEvent{
		baseEvent:     newBaseEvent(TypeTransitionSucceeded),
		ApplicationID: id,
		From:          from,
		To:            to,
		NoOp:          noOp,
	}
}

// TransitionFailedEvent is published after a failed transition was rolled back.
type TransitionFailedEvent struct {
	baseEvent
	ApplicationID int64
	From          types.Status // status restored by the rollback
	To            types.Status // target that was rejected
	Reason        string
}

// NewTransitionFailedEvent creates a TransitionFailedEvent.
func NewTransitionFailedEvent(id int64, from, to types.Status, reason string) TransitionFailedEvent {
	return TransitionFailedEvent{
		baseEvent:     newBaseEvent(TypeTransitionFailed),
		ApplicationID: id,
		From:          from,
		To:            to,
		Reason:        reason,
	}
}

// BoardLoadedEvent is published after a successful aggregate load.
type BoardLoadedEvent struct {
	baseEvent
	Jobs         int
	Candidates   int
	Applications int
}

// NewBoardLoadedEvent creates a BoardLoadedEvent.
func NewBoardLoadedEvent(jobs, candidates, applications int) BoardLoadedEvent {
	return BoardLoadedEvent{
		baseEvent:    newBaseEvent(TypeBoardLoaded),
		Jobs:         jobs,
		Candidates:   candidates,
		Applications: applications,
	}
}

// BoardLoadFailedEvent is published when an aggregate load fails.
type BoardLoadFailedEvent struct {
	baseEvent
	Reason string
}

// NewBoardLoadFailedEvent creates a BoardLoadFailedEvent.
func NewBoardLoadFailedEvent(reason string) BoardLoadFailedEvent {
	return BoardLoadFailedEvent{baseEvent: newBaseEvent(TypeBoardLoadFailed), Reason: reason}
}

// BoardChangedEvent is published whenever the record store version moves.
type BoardChangedEvent struct {
	baseEvent
	Version uint64
}

// NewBoardChangedEvent creates a BoardChangedEvent.
func NewBoardChangedEvent(version uint64) BoardChangedEvent {
	return BoardChangedEvent{baseEvent: newBaseEvent(TypeBoardChanged), Version: version}
}
