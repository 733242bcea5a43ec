package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coldpilot/billing/internal/app/service/journal"
	"github.com/coldpilot/billing/internal/app/service/ledger"
	"github.com/coldpilot/billing/internal/app/service/lifecycle"
	models "github.com/coldpilot/billing/internal/models"
	"github.com/coldpilot/billing/pkg/config"
	types "github.com/coldpilot/billing/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memStore struct {
	mu      sync.Mutex
	subs    map[string]*models.Subscription
	credits map[string]*models.Credit
	actions map[string]*models.SubscriptionAction
	logs    []*models.SubscriptionLog
	seq     int
}

func newMemStore() *memStore {
	return &memStore{
		subs:    map[string]*models.Subscription{},
		credits: map[string]*models.Credit{},
		actions: map[string]*models.SubscriptionAction{},
	}
}

func (s *memStore) nextCreatedAt() time.Time {
	s.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second)
}

// SubscriptionRepository + ledger.SubscriptionGetter

func (s *memStore) GetByID(_ context.Context, id string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, errors.New("subscription not found")
	}
	cp := *sub
	return &cp, nil
}

func (s *memStore) Save(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *memStore) SaveLog(log *models.SubscriptionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

type memCreditRepo struct{ s *memStore }

func (r *memCreditRepo) Create(_ context.Context, credit *models.Credit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if credit.CreatedAt.IsZero() {
		credit.CreatedAt = r.s.nextCreatedAt()
	}
	cp := *credit
	r.s.credits[credit.ID] = &cp
	return nil
}

func (r *memCreditRepo) GetByID(_ context.Context, id string) (*models.Credit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.credits[id]
	if !ok {
		return nil, errors.New("credit not found")
	}
	cp := *c
	return &cp, nil
}

func (r *memCreditRepo) Save(_ context.Context, credit *models.Credit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *credit
	r.s.credits[credit.ID] = &cp
	return nil
}

func (r *memCreditRepo) ListBySubscription(_ context.Context, subscriptionID string) ([]*models.Credit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Credit
	for _, c := range r.s.credits {
		if c.SubscriptionID == subscriptionID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memActionRepo struct{ s *memStore }

func (r *memActionRepo) Create(_ context.Context, action *models.SubscriptionAction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = r.s.nextCreatedAt()
	}
	cp := *action
	r.s.actions[action.ID] = &cp
	return nil
}

func (r *memActionRepo) GetByID(_ context.Context, id string) (*models.SubscriptionAction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.actions[id]
	if !ok {
		return nil, journal.ErrActionNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memActionRepo) Save(_ context.Context, action *models.SubscriptionAction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *action
	r.s.actions[action.ID] = &cp
	return nil
}

func (r *memActionRepo) PendingBySubscription(_ context.Context, subscriptionID string) (*models.SubscriptionAction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.actions {
		if a.SubscriptionID == subscriptionID && a.Status == types.ActionStatusPending {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memActionRepo) ListBySubscription(_ context.Context, subscriptionID string) ([]*models.SubscriptionAction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.SubscriptionAction
	for _, a := range r.s.actions {
		if a.SubscriptionID == subscriptionID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

var (
	periodStart = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) // 30 days
	testNow     = time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC)
)

func testCatalog() *config.Config {
	return &config.Config{Plans: []*types.Plan{
		{ID: "starter", Code: "starter", Name: "Starter", PriceMonthly: d("30.00"), PriceYearly: d("300.00"), Currency: "usd"},
		{ID: "growth", Code: "growth", Name: "Growth", PriceMonthly: d("60.00"), PriceYearly: d("600.00"), Currency: "usd"},
		{ID: "lite", Code: "lite", Name: "Lite", PriceMonthly: d("10.00"), PriceYearly: d("100.00"), Currency: "usd"},
		{ID: "tokyo", Code: "tokyo", Name: "Tokyo", PriceMonthly: d("3000"), PriceYearly: d("30000"), Currency: "jpy"},
	}}
}

func newFixture(t *testing.T) (*Service, *ledger.Service, *journal.Service, *memStore) {
	t.Helper()
	store := newMemStore()
	log := zap.NewNop().Sugar()
	led := ledger.NewService(&memCreditRepo{s: store}, store, log)
	jnl := journal.NewService(&memActionRepo{s: store}, log)
	svc := NewService(testCatalog(), store, led, jnl, log)
	svc.now = func() time.Time { return testNow }
	return svc, led, jnl, store
}

func seedSubscription(store *memStore, status types.SubscriptionStatus) *models.Subscription {
	sub := &models.Subscription{
		ID:                 "sub-1",
		OrganizationID:     "org-1",
		PlanID:             "starter",
		BillingCycle:       types.BillingCycleMonthly,
		MonthlyPrice:       d("30.00"),
		YearlyPrice:        d("300.00"),
		Currency:           "usd",
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
		Status:             status,
	}
	store.subs[sub.ID] = sub
	return sub
}

func TestDaysBetweenCeil(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{"full period", periodStart, periodEnd, 30},
		{"half period", testNow, periodEnd, 15},
		{"partial day rounds up", periodEnd.Add(-36 * time.Hour), periodEnd, 2},
		{"at period end", periodEnd, periodEnd, 0},
		{"after period end clamps to zero", periodEnd.Add(time.Hour), periodEnd, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, daysBetweenCeil(tt.from, tt.to))
		})
	}
}

func TestRequestPlanChange_UpgradeWithCreditOffset(t *testing.T) {
	svc, led, jnl, store := newFixture(t)
	seedSubscription(store, types.SubscriptionStatusActive)
	ctx := context.Background()

	soon := testNow.Add(48 * time.Hour)
	small, err := led.Issue(ctx, "sub-1", d("5.00"), "usd", types.CreditTypePromotional, &soon)
	require.NoError(t, err)
	large, err := led.Issue(ctx, "sub-1", d("100.00"), "usd", types.CreditTypeRefund, nil)
	require.NoError(t, err)

	res, err := svc.RequestPlanChange(ctx, "sub-1", "growth", testNow)
	require.NoError(t, err)

	// prorate(30, 60, 15, 30): delta = 30 - 15 = 15, next invoice 75
	assert.True(t, res.Proration.ProrationAmount.Equal(d("15")), "got %s", res.Proration.ProrationAmount)
	assert.False(t, res.Proration.IsCredit)
	assert.True(t, res.Proration.NextInvoiceAmount.Equal(d("75")), "got %s", res.Proration.NextInvoiceAmount)
	assert.Equal(t, 15, res.Proration.DaysRemaining)
	assert.Equal(t, 30, res.Proration.TotalDays)

	// the full 105.00 balance is not consumed, only the 75.00 charge
	assert.True(t, res.CreditApplied.Equal(d("75")), "got %s", res.CreditApplied)
	assert.True(t, res.AmountDue.IsZero(), "got %s", res.AmountDue)

	// the soonest-expiring credit is exhausted first
	_, err = led.Debit(ctx, small.ID, d("1.00"), "")
	require.True(t, errors.Is(err, ledger.ErrOverdraft))
	balance, err := led.RemainingBalance(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("30")), "got %s", balance)
	largeRow := store.credits[large.ID]
	assert.True(t, largeRow.UsedAmount.Equal(d("70")), "got %s", largeRow.UsedAmount)

	// journal entry is completed with the plan-change payload
	require.NotNil(t, res.Action)
	history, err := jnl.History(ctx, "sub-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	action := history[0]
	assert.Equal(t, types.ActionTypeUpgrade, action.Type)
	assert.Equal(t, types.ActionStatusCompleted, action.Status)
	require.NotNil(t, action.OldPlanID)
	require.NotNil(t, action.NewPlanID)
	assert.Equal(t, "starter", *action.OldPlanID)
	assert.Equal(t, "growth", *action.NewPlanID)
	require.NotNil(t, action.ProrationAmount)
	assert.True(t, action.ProrationAmount.Equal(d("15")))
	assert.True(t, action.CreditApplied.Equal(d("75")))

	// subscription now carries the new plan and prices, same period
	sub := store.subs["sub-1"]
	assert.Equal(t, "growth", sub.PlanID)
	assert.True(t, sub.MonthlyPrice.Equal(d("60.00")))
	assert.Equal(t, periodStart, sub.CurrentPeriodStart)
	assert.Equal(t, periodEnd, sub.CurrentPeriodEnd)
	assert.Equal(t, types.SubscriptionStatusActive, sub.Status)
}

func TestRequestPlanChange_Downgrade(t *testing.T) {
	svc, _, _, store := newFixture(t)
	seedSubscription(store, types.SubscriptionStatusActive)
	ctx := context.Background()

	// prorate(30, 10, 15, 30): costNew=5, unusedOld=15, delta=-10
	res, err := svc.RequestPlanChange(ctx, "sub-1", "lite", testNow)
	require.NoError(t, err)
	assert.True(t, res.Proration.IsCredit)
	assert.True(t, res.Proration.ProrationAmount.Equal(d("10")), "got %s", res.Proration.ProrationAmount)
	assert.True(t, res.Proration.NextInvoiceAmount.Equal(d("0")), "got %s", res.Proration.NextInvoiceAmount)
	assert.Equal(t, types.ActionTypeDowngrade, res.Action.Type)
	assert.True(t, res.CreditApplied.IsZero())
}

func TestRequestPlanChange_InFlightActionRejected(t *testing.T) {
	svc, _, jnl, store := newFixture(t)
	seedSubscription(store, types.SubscriptionStatusActive)
	ctx := context.Background()

	_, err := jnl.Append(ctx, &models.SubscriptionAction{
		SubscriptionID: "sub-1",
		Type:           types.ActionTypePause,
	})
	require.NoError(t, err)

	_, err = svc.RequestPlanChange(ctx, "sub-1", "growth", testNow)
	require.True(t, errors.Is(err, journal.ErrActionInFlight))

	// still exactly one pending action
	pending, err := jnl.Pending(ctx, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, types.ActionTypePause, pending.Type)
}

func TestRequestPlanChange_TerminalSubscription(t *testing.T) {
	svc, _, _, store := newFixture(t)
	seedSubscription(store, types.SubscriptionStatusCanceled)

	_, err := svc.RequestPlanChange(context.Background(), "sub-1", "growth", testNow)
	require.True(t, errors.Is(err, ErrSubscriptionTerminal))
}

func TestRequestPlanChange_PlanValidation(t *testing.T) {
	svc, _, _, store := newFixture(t)
	seedSubscription(store, types.SubscriptionStatusActive)
	ctx := context.Background()

	_, err := svc.RequestPlanChange(ctx, "sub-1", "nope", testNow)
	require.True(t, errors.Is(err, ErrPlanNotFound))

	_, err = svc.RequestPlanChange(ctx, "sub-1", "tokyo", testNow)
	require.True(t, errors.Is(err, ErrPlanCurrencyMismatch))
}

func TestRequestPlanChange_EffectiveAfterPeriodEnd(t *testing.T) {
	svc, _, _, store := newFixture(t)
	seedSubscription(store, types.SubscriptionStatusActive)

	res, err := svc.RequestPlanChange(context.Background(), "sub-1", "growth", periodEnd.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Proration.DaysRemaining)
	assert.True(t, res.Proration.ProrationAmount.IsZero())
	assert.False(t, res.Proration.IsCredit)
	assert.True(t, res.Proration.NextInvoiceAmount.Equal(d("60.00")))
}

func TestProrationPreview_DoesNotMutate(t *testing.T) {
	svc, led, jnl, store := newFixture(t)
	seedSubscription(store, types.SubscriptionStatusActive)
	ctx := context.Background()

	_, err := led.Issue(ctx, "sub-1", d("20.00"), "usd", types.CreditTypeAdjustment, nil)
	require.NoError(t, err)

	res, err := svc.ProrationPreview(ctx, "sub-1", "growth", testNow)
	require.NoError(t, err)
	assert.True(t, res.Proration.ProrationAmount.Equal(d("15")))
	assert.True(t, res.CreditApplied.Equal(d("20")))
	assert.True(t, res.AmountDue.Equal(d("55")), "got %s", res.AmountDue)
	assert.Nil(t, res.Action)

	// nothing moved: no journal entries, credits untouched, plan unchanged
	history, err := jnl.History(ctx, "sub-1")
	require.NoError(t, err)
	assert.Empty(t, history)
	balance, err := led.RemainingBalance(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("20.00")))
	assert.Equal(t, "starter", store.subs["sub-1"].PlanID)
}

func TestRequestPause(t *testing.T) {
	svc, _, _, store := newFixture(t)
	seedSubscription(store, types.SubscriptionStatusActive)
	ctx := context.Background()

	action, err := svc.RequestPause(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, types.ActionTypePause, action.Type)
	assert.Equal(t, types.ActionStatusCompleted, action.Status)

	sub := store.subs["sub-1"]
	assert.Equal(t, types.SubscriptionStatusPaused, sub.Status)
	// pausing never rewrites the billing period
	assert.Equal(t, periodStart, sub.CurrentPeriodStart)
	assert.Equal(t, periodEnd, sub.CurrentPeriodEnd)

	action, err = svc.RequestResume(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, types.ActionTypeResume, action.Type)
	assert.Equal(t, types.SubscriptionStatusActive, store.subs["sub-1"].Status)
}

func TestRequestPause_RejectedWhenCancelAtPeriodEnd(t *testing.T) {
	svc, _, _, store := newFixture(t)
	sub := seedSubscription(store, types.SubscriptionStatusActive)
	sub.CancelAtPeriodEnd = true

	_, err := svc.RequestPause(context.Background(), "sub-1")
	require.True(t, errors.Is(err, lifecycle.ErrInvalidTransition))
	assert.Equal(t, types.SubscriptionStatusActive, store.subs["sub-1"].Status)
}

func TestRequestCancel_Immediate(t *testing.T) {
	svc, _, _, store := newFixture(t)
	seedSubscription(store, types.SubscriptionStatusActive)

	action, err := svc.RequestCancel(context.Background(), "sub-1", false)
	require.NoError(t, err)
	assert.Equal(t, types.ActionTypeCancel, action.Type)
	assert.Equal(t, types.SubscriptionStatusCanceled, store.subs["sub-1"].Status)

	// terminal thereafter
	_, err = svc.RequestResume(context.Background(), "sub-1")
	require.True(t, errors.Is(err, ErrSubscriptionTerminal))
}

func TestRequestCancel_AtPeriodEnd(t *testing.T) {
	svc, _, _, store := newFixture(t)
	seedSubscription(store, types.SubscriptionStatusActive)
	ctx := context.Background()

	action, err := svc.RequestCancel(ctx, "sub-1", true)
	require.NoError(t, err)
	assert.Equal(t, types.ActionStatusCompleted, action.Status)
	require.NotNil(t, action.ScheduledDate)
	assert.Equal(t, periodEnd, *action.ScheduledDate)

	sub := store.subs["sub-1"]
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, types.SubscriptionStatusActive, sub.Status)

	// before the boundary nothing happens, and the caller is told why
	res, err := svc.ProcessPeriodEnd(ctx, "sub-1")
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, "period still running", res.Reason)
	assert.Nil(t, res.Action)
	assert.Equal(t, types.SubscriptionStatusActive, store.subs["sub-1"].Status)

	// once the period has elapsed the cancel applies
	svc.now = func() time.Time { return periodEnd.Add(time.Minute) }
	res, err = svc.ProcessPeriodEnd(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	require.NotNil(t, res.Action)
	assert.Equal(t, types.ActionTypeCancel, res.Action.Type)
	assert.Equal(t, types.SubscriptionStatusCanceled, store.subs["sub-1"].Status)
}

// A scheduler sweeping subscriptions must be able to tell "cancelled now"
// apart from "nothing to do".
func TestProcessPeriodEnd_ReportsNoOps(t *testing.T) {
	ctx := context.Background()

	t.Run("flag not set", func(t *testing.T) {
		svc, _, _, store := newFixture(t)
		seedSubscription(store, types.SubscriptionStatusActive)
		svc.now = func() time.Time { return periodEnd.Add(time.Minute) }

		res, err := svc.ProcessPeriodEnd(ctx, "sub-1")
		require.NoError(t, err)
		assert.False(t, res.Applied)
		assert.Equal(t, "cancel_at_period_end not set", res.Reason)
		assert.Equal(t, types.SubscriptionStatusActive, store.subs["sub-1"].Status)
	})

	t.Run("already canceled", func(t *testing.T) {
		svc, _, _, store := newFixture(t)
		sub := seedSubscription(store, types.SubscriptionStatusCanceled)
		sub.CancelAtPeriodEnd = true
		svc.now = func() time.Time { return periodEnd.Add(time.Minute) }

		res, err := svc.ProcessPeriodEnd(ctx, "sub-1")
		require.NoError(t, err)
		assert.False(t, res.Applied)
		assert.Equal(t, "subscription already canceled", res.Reason)
	})
}

func TestExternallySignaledTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("trial conversion", func(t *testing.T) {
		svc, _, _, store := newFixture(t)
		sub := seedSubscription(store, types.SubscriptionStatusTrialing)
		trialStart := periodStart
		sub.TrialStart = &trialStart

		action, err := svc.ConvertTrial(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, types.ActionTypeTrialEnd, action.Type)
		got := store.subs["sub-1"]
		assert.Equal(t, types.SubscriptionStatusActive, got.Status)
		require.NotNil(t, got.TrialEnd)
		assert.Equal(t, testNow, *got.TrialEnd)
	})

	t.Run("payment failure and recovery", func(t *testing.T) {
		svc, _, _, store := newFixture(t)
		seedSubscription(store, types.SubscriptionStatusActive)

		_, err := svc.HandlePaymentFailure(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, types.SubscriptionStatusPastDue, store.subs["sub-1"].Status)

		_, err = svc.HandlePaymentRecovered(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, types.SubscriptionStatusActive, store.subs["sub-1"].Status)
	})

	t.Run("grace expiry", func(t *testing.T) {
		svc, _, _, store := newFixture(t)
		seedSubscription(store, types.SubscriptionStatusPastDue)

		_, err := svc.ExpireGrace(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, types.SubscriptionStatusCanceled, store.subs["sub-1"].Status)
	})

	t.Run("failure signal on paused subscription is rejected", func(t *testing.T) {
		svc, _, _, store := newFixture(t)
		seedSubscription(store, types.SubscriptionStatusPaused)

		_, err := svc.HandlePaymentFailure(ctx, "sub-1")
		require.True(t, errors.Is(err, lifecycle.ErrInvalidTransition))
		assert.Equal(t, types.SubscriptionStatusPaused, store.subs["sub-1"].Status)
	})
}

// Issuing a credit must leave an auditable credit_added entry in the journal,
// like every other mutation.
func TestIssueCredit_JournalsCreditAdded(t *testing.T) {
	svc, led, jnl, store := newFixture(t)
	seedSubscription(store, types.SubscriptionStatusActive)
	ctx := context.Background()

	res, err := svc.IssueCredit(ctx, "sub-1", d("25.00"), "usd", types.CreditTypePromotional, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Credit)
	require.NotNil(t, res.Action)

	history, err := jnl.History(ctx, "sub-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	action := history[0]
	assert.Equal(t, types.ActionTypeCreditAdded, action.Type)
	assert.Equal(t, types.ActionStatusCompleted, action.Status)
	assert.Equal(t, res.Credit.ID, action.Extra["credit_id"])
	assert.Equal(t, "25", action.Extra["amount"])

	balance, err := led.RemainingBalance(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("25.00")))
}

func TestIssueCredit_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("in-flight action", func(t *testing.T) {
		svc, led, jnl, store := newFixture(t)
		seedSubscription(store, types.SubscriptionStatusActive)

		_, err := jnl.Append(ctx, &models.SubscriptionAction{
			SubscriptionID: "sub-1",
			Type:           types.ActionTypePause,
		})
		require.NoError(t, err)

		_, err = svc.IssueCredit(ctx, "sub-1", d("5.00"), "usd", types.CreditTypeAdjustment, nil)
		require.True(t, errors.Is(err, journal.ErrActionInFlight))

		// no credit row was written either
		balance, err := led.RemainingBalance(ctx, "sub-1")
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("terminal subscription", func(t *testing.T) {
		svc, _, _, store := newFixture(t)
		seedSubscription(store, types.SubscriptionStatusCanceled)

		_, err := svc.IssueCredit(ctx, "sub-1", d("5.00"), "usd", types.CreditTypeAdjustment, nil)
		require.True(t, errors.Is(err, ErrSubscriptionTerminal))
	})

	t.Run("currency mismatch", func(t *testing.T) {
		svc, _, jnl, store := newFixture(t)
		seedSubscription(store, types.SubscriptionStatusActive)

		_, err := svc.IssueCredit(ctx, "sub-1", d("5.00"), "eur", types.CreditTypeAdjustment, nil)
		require.True(t, errors.Is(err, ledger.ErrCurrencyMismatch))

		// nothing journaled for the failed issuance
		history, err := jnl.History(ctx, "sub-1")
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestCreateSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("with trial", func(t *testing.T) {
		svc, _, jnl, store := newFixture(t)

		sub, err := svc.CreateSubscription(ctx, CreateSubscriptionParams{
			OrganizationID: "org-1",
			PlanID:         "starter",
			BillingCycle:   types.BillingCycleMonthly,
			TrialDays:      14,
		})
		require.NoError(t, err)
		assert.Equal(t, types.SubscriptionStatusTrialing, sub.Status)
		require.NotNil(t, sub.TrialStart)
		require.NotNil(t, sub.TrialEnd)
		assert.Equal(t, testNow, *sub.TrialStart)
		assert.Equal(t, testNow.AddDate(0, 0, 14), *sub.TrialEnd)
		assert.True(t, sub.PeriodValid())
		assert.True(t, sub.MonthlyPrice.Equal(d("30.00")))

		history, err := jnl.History(ctx, sub.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, types.ActionTypeTrialStart, history[0].Type)
		assert.Equal(t, types.ActionStatusCompleted, history[0].Status)
		require.NotNil(t, history[0].ScheduledDate)
		assert.Equal(t, *sub.TrialEnd, *history[0].ScheduledDate)

		_, ok := store.subs[sub.ID]
		assert.True(t, ok)
	})

	t.Run("without trial", func(t *testing.T) {
		svc, _, jnl, _ := newFixture(t)

		sub, err := svc.CreateSubscription(ctx, CreateSubscriptionParams{
			OrganizationID: "org-1",
			PlanID:         "growth",
			BillingCycle:   types.BillingCycleYearly,
		})
		require.NoError(t, err)
		assert.Equal(t, types.SubscriptionStatusActive, sub.Status)
		assert.Nil(t, sub.TrialStart)
		assert.Equal(t, testNow.AddDate(1, 0, 0), sub.CurrentPeriodEnd)

		history, err := jnl.History(ctx, sub.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("unknown plan", func(t *testing.T) {
		svc, _, _, _ := newFixture(t)

		_, err := svc.CreateSubscription(ctx, CreateSubscriptionParams{
			OrganizationID: "org-1",
			PlanID:         "nope",
		})
		require.True(t, errors.Is(err, ErrPlanNotFound))
	})
}

func TestGetSubscription_ExposesPendingAge(t *testing.T) {
	svc, _, jnl, store := newFixture(t)
	seedSubscription(store, types.SubscriptionStatusActive)
	ctx := context.Background()

	view, err := svc.GetSubscription(ctx, "sub-1")
	require.NoError(t, err)
	assert.Nil(t, view.PendingAction)
	assert.Nil(t, view.PendingAgeSeconds)

	action, err := jnl.Append(ctx, &models.SubscriptionAction{
		SubscriptionID: "sub-1",
		Type:           types.ActionTypeUpgrade,
	})
	require.NoError(t, err)
	store.actions[action.ID].CreatedAt = testNow.Add(-2 * time.Minute)

	view, err = svc.GetSubscription(ctx, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, view.PendingAction)
	require.NotNil(t, view.PendingAgeSeconds)
	assert.Equal(t, int64(120), *view.PendingAgeSeconds)
}
