package transition

import (
	"errors"
	"fmt"

	"github.com/jonathan/hireops/internal/types"
)

var (
	// ErrInvalidTransitionRequest matches every *InvalidRequestError.
	ErrInvalidTransitionRequest = errors.New("invalid transition request")
	// ErrTransitionInFlight is returned under PolicyReject when the same
	// application already has a transition outstanding.
	ErrTransitionInFlight = errors.New("transition already in flight")
)

// InvalidRequestError is a request rejected before any mutation or network
// call: unknown application id or a status outside the enumeration.
type InvalidRequestError struct {
	ApplicationID int64
	Status        types.Status
	Reason        string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid transition of application %d to %q: %s", e.ApplicationID, e.Status, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidTransitionRequest) succeed.
func (e *InvalidRequestError) Is(target error) bool {
	return target == ErrInvalidTransitionRequest
}
