package lifecycle

import (
	"errors"
	"fmt"
	"testing"
	"time"

	models "github.com/coldpilot/billing/internal/models"
	types "github.com/coldpilot/billing/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []types.SubscriptionStatus{
	types.SubscriptionStatusTrialing,
	types.SubscriptionStatusActive,
	types.SubscriptionStatusPaused,
	types.SubscriptionStatusPastDue,
	types.SubscriptionStatusCanceled,
}

// Every (current, requested) pair not in the transition table must be
// rejected, and the subscription left unchanged.
func TestValidate_FullMatrix(t *testing.T) {
	allowed := map[types.SubscriptionStatus][]types.SubscriptionStatus{
		types.SubscriptionStatusTrialing: {types.SubscriptionStatusActive, types.SubscriptionStatusCanceled},
		types.SubscriptionStatusActive:   {types.SubscriptionStatusPaused, types.SubscriptionStatusPastDue, types.SubscriptionStatusCanceled},
		types.SubscriptionStatusPaused:   {types.SubscriptionStatusActive, types.SubscriptionStatusCanceled},
		types.SubscriptionStatusPastDue:  {types.SubscriptionStatusActive, types.SubscriptionStatusCanceled},
		types.SubscriptionStatusCanceled: nil,
	}

	for _, current := range allStatuses {
		for _, requested := range allStatuses {
			name := fmt.Sprintf("%s_to_%s", current, requested)
			t.Run(name, func(t *testing.T) {
				sub := &models.Subscription{ID: "sub-1", Status: current}
				err := Validate(sub, requested)

				legal := false
				for _, next := range allowed[current] {
					if next == requested {
						legal = true
					}
				}

				if legal {
					require.NoError(t, err)
					return
				}
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidTransition))
				var ite *InvalidTransitionError
				require.True(t, errors.As(err, &ite))
				assert.Equal(t, current, ite.Current)
				assert.Equal(t, requested, ite.Requested)
				// rejected requests never mutate the subscription
				assert.Equal(t, current, sub.Status)
			})
		}
	}
}

func TestValidate_PauseRejectedWhenCancelAtPeriodEnd(t *testing.T) {
	sub := &models.Subscription{
		ID:                "sub-1",
		Status:            types.SubscriptionStatusActive,
		CancelAtPeriodEnd: true,
	}
	err := Validate(sub, types.SubscriptionStatusPaused)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, types.SubscriptionStatusActive, sub.Status)

	// cancel stays legal with the flag set
	require.NoError(t, Validate(sub, types.SubscriptionStatusCanceled))
}

// Pausing must not rewrite the billing period: consumers interpret paused as
// suspended invoicing, not a shifted clock.
func TestApply_PausePreservesPeriodDates(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	sub := &models.Subscription{
		ID:                 "sub-1",
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
	}

	require.NoError(t, Apply(sub, types.SubscriptionStatusPaused))
	assert.Equal(t, types.SubscriptionStatusPaused, sub.Status)
	assert.Equal(t, start, sub.CurrentPeriodStart)
	assert.Equal(t, end, sub.CurrentPeriodEnd)
}

func TestApply_CanceledIsTerminal(t *testing.T) {
	sub := &models.Subscription{ID: "sub-1", Status: types.SubscriptionStatusCanceled}
	for _, requested := range allStatuses {
		err := Apply(sub, requested)
		require.Error(t, err, "canceled -> %s must fail", requested)
		require.True(t, errors.Is(err, ErrInvalidTransition))
	}
}

func TestActionTypeFor(t *testing.T) {
	assert.Equal(t, types.ActionTypePause, ActionTypeFor(types.SubscriptionStatusActive, types.SubscriptionStatusPaused))
	assert.Equal(t, types.ActionTypeResume, ActionTypeFor(types.SubscriptionStatusPaused, types.SubscriptionStatusActive))
	assert.Equal(t, types.ActionTypeResume, ActionTypeFor(types.SubscriptionStatusPastDue, types.SubscriptionStatusActive))
	assert.Equal(t, types.ActionTypeTrialEnd, ActionTypeFor(types.SubscriptionStatusTrialing, types.SubscriptionStatusActive))
	assert.Equal(t, types.ActionTypeCancel, ActionTypeFor(types.SubscriptionStatusActive, types.SubscriptionStatusCanceled))
}

func TestErrInvalidTransition_IsWrapFriendly(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &InvalidTransitionError{
		Current:   types.SubscriptionStatusCanceled,
		Requested: types.SubscriptionStatusActive,
	})
	require.True(t, errors.Is(err, ErrInvalidTransition))
}
