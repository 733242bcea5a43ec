package lifecycle

import (
	"fmt"

	models "github.com/coldpilot/billing/internal/models"
	types "github.com/coldpilot/billing/pkg/types"
)

// transitionTable lists every allowed (current -> requested) pair. Anything
// not listed is rejected, never silently coerced.
var transitionTable = map[types.SubscriptionStatus][]types.SubscriptionStatus{
	types.SubscriptionStatusTrialing: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusCanceled,
	},
	types.SubscriptionStatusActive: {
		types.SubscriptionStatusPaused,
		types.SubscriptionStatusPastDue,
		types.SubscriptionStatusCanceled,
	},
	types.SubscriptionStatusPaused: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusCanceled,
	},
	types.SubscriptionStatusPastDue: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusCanceled,
	},
	// canceled is terminal: no outgoing transitions.
	types.SubscriptionStatusCanceled: nil,
}

// CanTransition reports whether the bare status pair is in the table. It does
// not check per-subscription guards; use Validate for that.
func CanTransition(current, requested types.SubscriptionStatus) bool {
	for _, next := range transitionTable[current] {
		if next == requested {
			return true
		}
	}
	return false
}

// Validate checks a requested status change against the transition table and
// per-subscription guards. It returns an InvalidTransitionError naming the
// rejected pair, or nil when the transition is legal.
func Validate(sub *models.Subscription, requested types.SubscriptionStatus) error {
	current := sub.Status
	if !CanTransition(current, requested) {
		return &InvalidTransitionError{Current: current, Requested: requested}
	}

	// A subscription already scheduled to cancel at period end cannot be
	// paused.
	if current == types.SubscriptionStatusActive &&
		requested == types.SubscriptionStatusPaused &&
		sub.CancelAtPeriodEnd {
		return &InvalidTransitionError{
			Current:   current,
			Requested: requested,
			Reason:    "cancel_at_period_end is set",
		}
	}

	return nil
}

// Apply validates and executes a status change in place. Transitioning to
// paused must not rewrite current_period_start/current_period_end: consumers
// interpret paused as suspended invoicing, not a shifted clock — Apply only
// ever touches Status.
func Apply(sub *models.Subscription, requested types.SubscriptionStatus) error {
	if err := Validate(sub, requested); err != nil {
		return fmt.Errorf("apply %s -> %s: %w", sub.Status, requested, err)
	}
	sub.Status = requested
	return nil
}

// ActionTypeFor maps a status transition to the journal entry type recorded
// for it.
func ActionTypeFor(current, requested types.SubscriptionStatus) types.ActionType {
	switch requested {
	case types.SubscriptionStatusPaused:
		return types.ActionTypePause
	case types.SubscriptionStatusCanceled:
		return types.ActionTypeCancel
	case types.SubscriptionStatusActive:
		if current == types.SubscriptionStatusTrialing {
			return types.ActionTypeTrialEnd
		}
		return types.ActionTypeResume
	default:
		return types.ActionTypeResume
	}
}
