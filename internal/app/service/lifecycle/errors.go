package lifecycle

import (
	"errors"
	"fmt"

	types "github.com/coldpilot/billing/pkg/types"
)

// ErrInvalidTransition is the sentinel matched by errors.Is for any rejected
// lifecycle transition.
var ErrInvalidTransition = errors.New("invalid subscription transition")

// InvalidTransitionError names the rejected (current, requested) pair.
type InvalidTransitionError struct {
	Current   types.SubscriptionStatus
	Requested types.SubscriptionStatus
	// Reason is set when the pair is in the table but a guard rejected it.
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid subscription transition %s -> %s: %s", e.Current, e.Requested, e.Reason)
	}
	return fmt.Sprintf("invalid subscription transition %s -> %s", e.Current, e.Requested)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
