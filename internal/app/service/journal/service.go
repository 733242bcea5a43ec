package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	models "github.com/coldpilot/billing/internal/models"
	"github.com/coldpilot/billing/pkg/logctx"
	"github.com/coldpilot/billing/pkg/tool"
	types "github.com/coldpilot/billing/pkg/types"

	"go.uber.org/zap"
)

var (
	// ErrActionInFlight is returned when a subscription already has a pending
	// action; at most one in-flight mutation is allowed per subscription.
	ErrActionInFlight = errors.New("subscription already has a pending action")
	// ErrActionTerminal is returned when completing or cancelling an action
	// that already reached completed/cancelled. Terminal entries are
	// immutable; append a new action instead.
	ErrActionTerminal = errors.New("action is already in a terminal status")
	// ErrActionNotFound is surfaced by repositories for missing entries.
	ErrActionNotFound = errors.New("action not found")
)

// ActionRepository is the persistence boundary for the append-only action
// journal.
type ActionRepository interface {
	Create(ctx context.Context, action *models.SubscriptionAction) error
	GetByID(ctx context.Context, id string) (*models.SubscriptionAction, error)
	Save(ctx context.Context, action *models.SubscriptionAction) error
	// PendingBySubscription returns the pending action for the subscription,
	// or nil when none exists.
	PendingBySubscription(ctx context.Context, subscriptionID string) (*models.SubscriptionAction, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*models.SubscriptionAction, error)
}

// Service owns the SubscriptionAction journal: an auditable history and the
// idempotency boundary for lifecycle mutations.
type Service struct {
	actions ActionRepository
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewService(actions ActionRepository, log *zap.SugaredLogger) *Service {
	return &Service{actions: actions, log: log, now: time.Now}
}

// Append creates a new journal entry in pending status. It fails with
// ErrActionInFlight when the subscription already has one.
func (s *Service) Append(ctx context.Context, action *models.SubscriptionAction) (*models.SubscriptionAction, error) {
	pending, err := s.actions.PendingBySubscription(ctx, action.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending action for subscription %s: %w", action.SubscriptionID, err)
	}
	if pending != nil {
		return nil, fmt.Errorf("subscription %s has pending action %s (%s): %w", action.SubscriptionID, pending.ID, pending.Type, ErrActionInFlight)
	}

	if action.ID == "" {
		action.ID = tool.GenerateUUIDV7()
	}
	action.Status = types.ActionStatusPending
	if action.EffectiveDate.IsZero() {
		action.EffectiveDate = s.now()
	}

	if err := s.actions.Create(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to append action: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("action appended",
		"action_id", action.ID,
		"subscription_id", action.SubscriptionID,
		"type", action.Type,
	)
	return action, nil
}

// Complete moves a pending action to completed once its effect has been
// durably applied.
func (s *Service) Complete(ctx context.Context, actionID string) (*models.SubscriptionAction, error) {
	return s.resolve(ctx, actionID, types.ActionStatusCompleted)
}

// Cancel moves a pending action to cancelled; only legal while its effects
// have not been applied. Completed actions require a new compensating action,
// never an edit.
func (s *Service) Cancel(ctx context.Context, actionID string) (*models.SubscriptionAction, error) {
	return s.resolve(ctx, actionID, types.ActionStatusCancelled)
}

func (s *Service) resolve(ctx context.Context, actionID string, target types.ActionStatus) (*models.SubscriptionAction, error) {
	action, err := s.actions.GetByID(ctx, actionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load action %s: %w", actionID, err)
	}
	if action.Status.Terminal() {
		return nil, fmt.Errorf("resolve action %s to %s (status %s): %w", actionID, target, action.Status, ErrActionTerminal)
	}
	action.Status = target
	if err := s.actions.Save(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to save action %s: %w", actionID, err)
	}
	logctx.FromCtx(ctx, s.log).Infow("action resolved", "action_id", actionID, "status", target)
	return action, nil
}

// Pending returns the subscription's in-flight action, or nil.
func (s *Service) Pending(ctx context.Context, subscriptionID string) (*models.SubscriptionAction, error) {
	return s.actions.PendingBySubscription(ctx, subscriptionID)
}

// PendingAge reports how long the subscription's pending action has existed,
// so a caller can detect a stuck pending->completed handoff and recover it.
// The zero duration and false are returned when nothing is pending.
func (s *Service) PendingAge(ctx context.Context, subscriptionID string) (time.Duration, bool, error) {
	pending, err := s.actions.PendingBySubscription(ctx, subscriptionID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to check pending action for subscription %s: %w", subscriptionID, err)
	}
	if pending == nil {
		return 0, false, nil
	}
	return pending.Age(s.now()), true, nil
}

// History lists all journal entries for a subscription.
func (s *Service) History(ctx context.Context, subscriptionID string) ([]*models.SubscriptionAction, error) {
	return s.actions.ListBySubscription(ctx, subscriptionID)
}
