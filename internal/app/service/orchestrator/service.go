package orchestrator

import (
	"context"
	"fmt"
	"time"

	models "github.com/coldpilot/billing/internal/models"
	"github.com/coldpilot/billing/internal/app/service/journal"
	"github.com/coldpilot/billing/internal/app/service/ledger"
	"github.com/coldpilot/billing/internal/app/service/lifecycle"
	"github.com/coldpilot/billing/internal/app/service/proration"
	"github.com/coldpilot/billing/pkg/config"
	"github.com/coldpilot/billing/pkg/logctx"
	"github.com/coldpilot/billing/pkg/tool"
	types "github.com/coldpilot/billing/pkg/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// SubscriptionRepository is the persistence boundary for subscriptions and
// their audit log.
type SubscriptionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Subscription, error)
	Save(ctx context.Context, sub *models.Subscription) error
	SaveLog(log *models.SubscriptionLog) error
}

// Service composes the state machine, proration calculator, credit ledger and
// action journal into the caller-facing lifecycle operations.
type Service struct {
	cfg     *config.Config
	subs    SubscriptionRepository
	ledger  *ledger.Service
	journal *journal.Service
	log     *zap.SugaredLogger
	locks   *subscriptionLocks
	now     func() time.Time
}

func NewService(cfg *config.Config, subs SubscriptionRepository, led *ledger.Service, jnl *journal.Service, log *zap.SugaredLogger) *Service {
	return &Service{
		cfg:     cfg,
		subs:    subs,
		ledger:  led,
		journal: jnl,
		log:     log,
		locks:   newSubscriptionLocks(),
		now:     time.Now,
	}
}

// PlanChangeResult is returned by RequestPlanChange and ProrationPreview.
// Previews never partially render: either every field is populated or the
// call fails.
type PlanChangeResult struct {
	Action        *models.SubscriptionAction `json:"action,omitempty"`
	Proration     *proration.Result          `json:"proration"`
	OldPlanID     string                     `json:"old_plan_id"`
	NewPlanID     string                     `json:"new_plan_id"`
	CreditApplied decimal.Decimal            `json:"credit_applied"`
	// AmountDue is the next invoice amount after the credit offset.
	AmountDue decimal.Decimal `json:"amount_due"`
}

// daysBetweenCeil counts whole days between from and to, rounding any partial
// day up, clamped to 0 when from is not before to.
func daysBetweenCeil(from, to time.Time) int {
	if !from.Before(to) {
		return 0
	}
	d := to.Sub(from)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

func (s *Service) prepare(ctx context.Context, sub *models.Subscription, newPlanID string, effectiveDate time.Time) (*types.Plan, *proration.Result, error) {
	plan := s.cfg.GetPlanByID(newPlanID)
	if plan == nil {
		return nil, nil, fmt.Errorf("plan %s: %w", newPlanID, ErrPlanNotFound)
	}
	if !types.SameCurrency(plan.Currency, sub.Currency) {
		return nil, nil, fmt.Errorf("plan %s priced in %s, subscription %s in %s: %w", plan.ID, plan.Currency, sub.ID, sub.Currency, ErrPlanCurrencyMismatch)
	}

	totalDays := daysBetweenCeil(sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	daysRemaining := daysBetweenCeil(effectiveDate, sub.CurrentPeriodEnd)

	res, err := proration.Prorate(sub.CurrentPrice(), plan.PriceFor(sub.BillingCycle), daysRemaining, totalDays, sub.Currency)
	if err != nil {
		return nil, nil, err
	}
	return plan, res, nil
}

// ProrationPreview computes the proration for a prospective plan change
// without mutating anything. UI consumers render the returned fields as-is.
func (s *Service) ProrationPreview(ctx context.Context, subscriptionID, newPlanID string, effectiveDate time.Time) (*PlanChangeResult, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription %s: %w", subscriptionID, err)
	}
	if sub.Status.Terminal() {
		return nil, fmt.Errorf("subscription %s: %w", subscriptionID, ErrSubscriptionTerminal)
	}

	_, res, err := s.prepare(ctx, sub, newPlanID, effectiveDate)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.RemainingBalance(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	applicable := decimal.Min(balance, res.NextInvoiceAmount)

	return &PlanChangeResult{
		Proration:     res,
		OldPlanID:     sub.PlanID,
		NewPlanID:     newPlanID,
		CreditApplied: applicable,
		AmountDue:     res.NextInvoiceAmount.Sub(applicable),
	}, nil
}

// RequestPlanChange validates, prorates, offsets available credits and
// records the plan change as a journal action, completing it once the new
// plan figures are saved on the subscription.
func (s *Service) RequestPlanChange(ctx context.Context, subscriptionID, newPlanID string, effectiveDate time.Time) (*PlanChangeResult, error) {
	unlock := s.locks.Lock(subscriptionID)
	defer unlock()

	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription %s: %w", subscriptionID, err)
	}

	if pending, err := s.journal.Pending(ctx, subscriptionID); err != nil {
		return nil, fmt.Errorf("failed to check pending action: %w", err)
	} else if pending != nil {
		return nil, fmt.Errorf("subscription %s has pending action %s: %w", subscriptionID, pending.ID, journal.ErrActionInFlight)
	}
	if sub.Status.Terminal() {
		return nil, fmt.Errorf("subscription %s: %w", subscriptionID, ErrSubscriptionTerminal)
	}

	plan, res, err := s.prepare(ctx, sub, newPlanID, effectiveDate)
	if err != nil {
		return nil, err
	}

	// Offset the charge against available credits, soonest expiry first.
	creditApplied := decimal.Zero
	charge := res.NextInvoiceAmount
	if charge.IsPositive() {
		credits, err := s.ledger.ActiveCredits(ctx, subscriptionID)
		if err != nil {
			return nil, err
		}
		for _, c := range credits {
			if !charge.GreaterThan(creditApplied) {
				break
			}
			take := decimal.Min(c.RemainingAmount(), charge.Sub(creditApplied))
			if !take.IsPositive() {
				continue
			}
			if _, err := s.ledger.Debit(ctx, c.ID, take, ""); err != nil {
				return nil, fmt.Errorf("failed to debit credit %s: %w", c.ID, err)
			}
			creditApplied = creditApplied.Add(take)
		}
	}

	actionType := types.ActionTypeDowngrade
	if proration.IsUpgrade(sub.CurrentPrice(), plan.PriceFor(sub.BillingCycle)) {
		actionType = types.ActionTypeUpgrade
	}

	oldPlanID := sub.PlanID
	prorationAmount := res.ProrationAmount
	action, err := s.journal.Append(ctx, &models.SubscriptionAction{
		SubscriptionID:  subscriptionID,
		Type:            actionType,
		EffectiveDate:   effectiveDate,
		OldPlanID:       &oldPlanID,
		NewPlanID:       &plan.ID,
		ProrationAmount: &prorationAmount,
		IsCredit:        res.IsCredit,
		CreditApplied:   creditApplied,
	})
	if err != nil {
		return nil, err
	}

	before := *sub
	sub.PlanID = plan.ID
	sub.MonthlyPrice = plan.PriceMonthly
	sub.YearlyPrice = plan.PriceYearly
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription %s: %w", subscriptionID, err)
	}
	s.writeAuditLog(ctx, &before, sub, actionType)

	if _, err := s.journal.Complete(ctx, action.ID); err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("plan change applied",
		"subscription_id", subscriptionID,
		"action", actionType,
		"old_plan", oldPlanID,
		"new_plan", plan.ID,
		"proration_amount", res.ProrationAmount.String(),
		"is_credit", res.IsCredit,
		"credit_applied", creditApplied.String(),
	)

	return &PlanChangeResult{
		Action:        action,
		Proration:     res,
		OldPlanID:     oldPlanID,
		NewPlanID:     plan.ID,
		CreditApplied: creditApplied,
		AmountDue:     res.NextInvoiceAmount.Sub(creditApplied),
	}, nil
}

// CreateSubscriptionParams describes a signup.
type CreateSubscriptionParams struct {
	OrganizationID string             `json:"organization_id"`
	PlanID         string             `json:"plan_id"`
	BillingCycle   types.BillingCycle `json:"billing_cycle"`
	// TrialDays > 0 starts the subscription in trialing; 0 starts it active.
	TrialDays int `json:"trial_days"`
}

// CreateSubscription creates a subscription on signup. With a trial the
// subscription starts trialing and a trial_start action is journaled.
func (s *Service) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*models.Subscription, error) {
	plan := s.cfg.GetPlanByID(params.PlanID)
	if plan == nil {
		return nil, fmt.Errorf("plan %s: %w", params.PlanID, ErrPlanNotFound)
	}
	cycle := params.BillingCycle
	if cycle == "" {
		cycle = types.BillingCycleMonthly
	}

	now := s.now()
	periodEnd := now.AddDate(0, 1, 0)
	if cycle == types.BillingCycleYearly {
		periodEnd = now.AddDate(1, 0, 0)
	}

	sub := &models.Subscription{
		ID:                 tool.GenerateUUIDV7(),
		OrganizationID:     params.OrganizationID,
		PlanID:             plan.ID,
		BillingCycle:       cycle,
		MonthlyPrice:       plan.PriceMonthly,
		YearlyPrice:        plan.PriceYearly,
		Currency:           plan.Currency,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
		Status:             types.SubscriptionStatusActive,
	}
	if params.TrialDays > 0 {
		trialStart := now
		trialEnd := now.AddDate(0, 0, params.TrialDays)
		sub.Status = types.SubscriptionStatusTrialing
		sub.TrialStart = &trialStart
		sub.TrialEnd = &trialEnd
	}

	unlock := s.locks.Lock(sub.ID)
	defer unlock()

	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription %s: %w", sub.ID, err)
	}

	if sub.Status == types.SubscriptionStatusTrialing {
		action, err := s.journal.Append(ctx, &models.SubscriptionAction{
			SubscriptionID: sub.ID,
			Type:           types.ActionTypeTrialStart,
			EffectiveDate:  now,
			ScheduledDate:  sub.TrialEnd,
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.journal.Complete(ctx, action.ID); err != nil {
			return nil, err
		}
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription created",
		"subscription_id", sub.ID,
		"organization_id", sub.OrganizationID,
		"plan", plan.ID,
		"status", sub.Status,
	)
	return sub, nil
}

// CreditIssueResult pairs an issued credit with its journal entry.
type CreditIssueResult struct {
	Credit *models.Credit             `json:"credit"`
	Action *models.SubscriptionAction `json:"action"`
}

// IssueCredit issues a credit through the ledger and journals it as a
// credit_added action, so issuance shows up in the subscription's history
// like every other mutation.
func (s *Service) IssueCredit(ctx context.Context, subscriptionID string, amount decimal.Decimal, currency string, creditType types.CreditType, expiresAt *time.Time) (*CreditIssueResult, error) {
	unlock := s.locks.Lock(subscriptionID)
	defer unlock()

	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription %s: %w", subscriptionID, err)
	}
	if pending, err := s.journal.Pending(ctx, subscriptionID); err != nil {
		return nil, fmt.Errorf("failed to check pending action: %w", err)
	} else if pending != nil {
		return nil, fmt.Errorf("subscription %s has pending action %s: %w", subscriptionID, pending.ID, journal.ErrActionInFlight)
	}
	if sub.Status.Terminal() {
		return nil, fmt.Errorf("subscription %s: %w", subscriptionID, ErrSubscriptionTerminal)
	}

	credit, err := s.ledger.Issue(ctx, subscriptionID, amount, currency, creditType, expiresAt)
	if err != nil {
		return nil, err
	}

	action, err := s.journal.Append(ctx, &models.SubscriptionAction{
		SubscriptionID: subscriptionID,
		Type:           types.ActionTypeCreditAdded,
		EffectiveDate:  s.now(),
		Extra: datatypes.JSONMap{
			"credit_id":   credit.ID,
			"credit_type": string(creditType),
			"amount":      amount.String(),
		},
	})
	if err != nil {
		return nil, err
	}
	completed, err := s.journal.Complete(ctx, action.ID)
	if err != nil {
		return nil, err
	}

	return &CreditIssueResult{Credit: credit, Action: completed}, nil
}

// RequestPause suspends invoicing for an active subscription. Billing period
// dates are left untouched.
func (s *Service) RequestPause(ctx context.Context, subscriptionID string) (*models.SubscriptionAction, error) {
	return s.transition(ctx, subscriptionID, types.SubscriptionStatusPaused, nil)
}

// RequestResume reactivates a paused subscription.
func (s *Service) RequestResume(ctx context.Context, subscriptionID string) (*models.SubscriptionAction, error) {
	return s.transition(ctx, subscriptionID, types.SubscriptionStatusActive, nil)
}

// RequestCancel cancels the subscription. With atPeriodEnd the subscription
// keeps its status and only the cancel_at_period_end flag is set; the status
// flips to canceled when ProcessPeriodEnd observes the period boundary.
func (s *Service) RequestCancel(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*models.SubscriptionAction, error) {
	if !atPeriodEnd {
		return s.transition(ctx, subscriptionID, types.SubscriptionStatusCanceled, nil)
	}

	unlock := s.locks.Lock(subscriptionID)
	defer unlock()

	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription %s: %w", subscriptionID, err)
	}
	if sub.Status.Terminal() {
		return nil, fmt.Errorf("subscription %s: %w", subscriptionID, ErrSubscriptionTerminal)
	}

	scheduled := sub.CurrentPeriodEnd
	action, err := s.journal.Append(ctx, &models.SubscriptionAction{
		SubscriptionID: subscriptionID,
		Type:           types.ActionTypeCancel,
		EffectiveDate:  s.now(),
		ScheduledDate:  &scheduled,
	})
	if err != nil {
		return nil, err
	}

	before := *sub
	sub.CancelAtPeriodEnd = true
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription %s: %w", subscriptionID, err)
	}
	s.writeAuditLog(ctx, &before, sub, types.ActionTypeCancel)

	return s.journal.Complete(ctx, action.ID)
}

// PeriodEndResult tells a scheduler caller whether ProcessPeriodEnd applied a
// scheduled cancel. Reason is set when nothing was applied.
type PeriodEndResult struct {
	Applied bool                       `json:"applied"`
	Reason  string                     `json:"reason,omitempty"`
	Action  *models.SubscriptionAction `json:"action,omitempty"`
}

// ProcessPeriodEnd applies a scheduled cancel-at-period-end once the current
// period has elapsed. Subscriptions without the flag, or whose period is still
// running, are reported as not applied rather than silently skipped.
func (s *Service) ProcessPeriodEnd(ctx context.Context, subscriptionID string) (*PeriodEndResult, error) {
	unlock := s.locks.Lock(subscriptionID)
	defer unlock()

	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription %s: %w", subscriptionID, err)
	}
	switch {
	case sub.Status.Terminal():
		return &PeriodEndResult{Reason: "subscription already canceled"}, nil
	case !sub.CancelAtPeriodEnd:
		return &PeriodEndResult{Reason: "cancel_at_period_end not set"}, nil
	case s.now().Before(sub.CurrentPeriodEnd):
		return &PeriodEndResult{Reason: "period still running"}, nil
	}

	action, err := s.transitionLocked(ctx, sub, types.SubscriptionStatusCanceled, nil)
	if err != nil {
		return nil, err
	}
	return &PeriodEndResult{Applied: true, Action: action}, nil
}

// ConvertTrial converts a trialing subscription to active after a successful
// payment capture, recording a trial_end action.
func (s *Service) ConvertTrial(ctx context.Context, subscriptionID string) (*models.SubscriptionAction, error) {
	now := s.now()
	return s.transition(ctx, subscriptionID, types.SubscriptionStatusActive, func(sub *models.Subscription) {
		if sub.TrialEnd == nil || sub.TrialEnd.After(now) {
			sub.TrialEnd = &now
		}
	})
}

// HandlePaymentFailure moves an active subscription to past_due. The failure
// signal comes from the invoicing collaborator.
func (s *Service) HandlePaymentFailure(ctx context.Context, subscriptionID string) (*models.SubscriptionAction, error) {
	return s.transition(ctx, subscriptionID, types.SubscriptionStatusPastDue, nil)
}

// HandlePaymentRecovered moves a past_due subscription back to active after a
// successful retry.
func (s *Service) HandlePaymentRecovered(ctx context.Context, subscriptionID string) (*models.SubscriptionAction, error) {
	return s.transition(ctx, subscriptionID, types.SubscriptionStatusActive, nil)
}

// ExpireGrace cancels a past_due subscription once the external grace period
// has elapsed.
func (s *Service) ExpireGrace(ctx context.Context, subscriptionID string) (*models.SubscriptionAction, error) {
	return s.transition(ctx, subscriptionID, types.SubscriptionStatusCanceled, nil)
}

func (s *Service) transition(ctx context.Context, subscriptionID string, target types.SubscriptionStatus, mutate func(*models.Subscription)) (*models.SubscriptionAction, error) {
	unlock := s.locks.Lock(subscriptionID)
	defer unlock()

	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription %s: %w", subscriptionID, err)
	}
	return s.transitionLocked(ctx, sub, target, mutate)
}

func (s *Service) transitionLocked(ctx context.Context, sub *models.Subscription, target types.SubscriptionStatus, mutate func(*models.Subscription)) (*models.SubscriptionAction, error) {
	if pending, err := s.journal.Pending(ctx, sub.ID); err != nil {
		return nil, fmt.Errorf("failed to check pending action: %w", err)
	} else if pending != nil {
		return nil, fmt.Errorf("subscription %s has pending action %s: %w", sub.ID, pending.ID, journal.ErrActionInFlight)
	}
	if sub.Status.Terminal() {
		return nil, fmt.Errorf("subscription %s: %w", sub.ID, ErrSubscriptionTerminal)
	}

	if err := lifecycle.Validate(sub, target); err != nil {
		return nil, err
	}
	actionType := lifecycle.ActionTypeFor(sub.Status, target)

	action, err := s.journal.Append(ctx, &models.SubscriptionAction{
		SubscriptionID: sub.ID,
		Type:           actionType,
		EffectiveDate:  s.now(),
	})
	if err != nil {
		return nil, err
	}

	before := *sub
	if err := lifecycle.Apply(sub, target); err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(sub)
	}
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription %s: %w", sub.ID, err)
	}
	s.writeAuditLog(ctx, &before, sub, actionType)

	completed, err := s.journal.Complete(ctx, action.ID)
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription transitioned",
		"subscription_id", sub.ID,
		"from", before.Status,
		"to", sub.Status,
		"action", actionType,
	)
	return completed, nil
}

// writeAuditLog records before/after snapshots asynchronously; errors are
// logged but not returned.
func (s *Service) writeAuditLog(ctx context.Context, before, after *models.Subscription, actionType types.ActionType) {
	go func(b, a models.Subscription) {
		entry := &models.SubscriptionLog{
			ID:             tool.GenerateUUIDV7(),
			SubscriptionID: a.ID,
			ActionType:     actionType,
			Before:         datatypes.NewJSONType(&b),
			After:          datatypes.NewJSONType(&a),
			Extra:          datatypes.JSONMap{},
		}
		if err := s.subs.SaveLog(entry); err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save subscription log: %v", err)
		}
	}(*before, *after)
}

// SubscriptionView pairs a subscription with its in-flight action, if any.
type SubscriptionView struct {
	Subscription      *models.Subscription       `json:"subscription"`
	PendingAction     *models.SubscriptionAction `json:"pending_action,omitempty"`
	PendingAgeSeconds *int64                     `json:"pending_age_seconds,omitempty"`
}

// GetSubscription loads a subscription together with its pending action and
// the action's age, for caller-side liveness checks.
func (s *Service) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionView, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription %s: %w", subscriptionID, err)
	}
	view := &SubscriptionView{Subscription: sub}
	if pending, err := s.journal.Pending(ctx, subscriptionID); err != nil {
		return nil, fmt.Errorf("failed to check pending action: %w", err)
	} else if pending != nil {
		age := int64(pending.Age(s.now()).Seconds())
		view.PendingAction = pending
		view.PendingAgeSeconds = &age
	}
	return view, nil
}
