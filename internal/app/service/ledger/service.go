package ledger

import (
	"context"
	"fmt"
	"slices"
	"time"

	models "github.com/coldpilot/billing/internal/models"
	"github.com/coldpilot/billing/pkg/logctx"
	"github.com/coldpilot/billing/pkg/tool"
	types "github.com/coldpilot/billing/pkg/types"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreditRepository is the persistence boundary for credits. The GORM
// implementation lives in internal/repository; tests inject in-memory fakes.
type CreditRepository interface {
	Create(ctx context.Context, credit *models.Credit) error
	GetByID(ctx context.Context, id string) (*models.Credit, error)
	Save(ctx context.Context, credit *models.Credit) error
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*models.Credit, error)
}

// SubscriptionGetter supplies the owning subscription for currency checks.
type SubscriptionGetter interface {
	GetByID(ctx context.Context, id string) (*models.Subscription, error)
}

// Service tracks issuance and consumption of account credits. Amounts are
// immutable after issuance; only used_amount grows.
type Service struct {
	credits CreditRepository
	subs    SubscriptionGetter
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewService(credits CreditRepository, subs SubscriptionGetter, log *zap.SugaredLogger) *Service {
	return &Service{credits: credits, subs: subs, log: log, now: time.Now}
}

// Issue creates a credit with used_amount = 0. The currency must equal the
// owning subscription's currency.
func (s *Service) Issue(ctx context.Context, subscriptionID string, amount decimal.Decimal, currency string, creditType types.CreditType, expiresAt *time.Time) (*models.Credit, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("issue credit for subscription %s: %w", subscriptionID, ErrInvalidCreditAmount)
	}

	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription %s: %w", subscriptionID, err)
	}
	if !types.SameCurrency(currency, sub.Currency) {
		return nil, fmt.Errorf("issue %s credit for %s subscription %s: %w", currency, sub.Currency, subscriptionID, ErrCurrencyMismatch)
	}

	credit := &models.Credit{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: subscriptionID,
		Type:           creditType,
		Amount:         amount,
		UsedAmount:     decimal.Zero,
		Currency:       sub.Currency,
		ExpiresAt:      expiresAt,
	}
	if err := s.credits.Create(ctx, credit); err != nil {
		return nil, fmt.Errorf("failed to create credit: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("credit issued",
		"credit_id", credit.ID,
		"subscription_id", subscriptionID,
		"type", creditType,
		"amount", amount.String(),
	)
	return credit, nil
}

// Debit increases used_amount by amount. invoiceID identifies the invoice the
// debit settles; the debit that exhausts the credit records it as
// applied_to_invoice. Status is recomputed before the debit is attempted:
// expired credits cannot be debited no matter the remaining balance.
func (s *Service) Debit(ctx context.Context, creditID string, amount decimal.Decimal, invoiceID string) (*models.Credit, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("debit credit %s: %w", creditID, ErrInvalidCreditAmount)
	}

	credit, err := s.credits.GetByID(ctx, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit %s: %w", creditID, err)
	}

	switch credit.EffectiveStatus(s.now()) {
	case types.CreditStatusExpired:
		return nil, fmt.Errorf("debit credit %s: %w", creditID, ErrCreditExpired)
	case types.CreditStatusCancelled:
		return nil, fmt.Errorf("debit credit %s: %w", creditID, ErrCreditNotUsable)
	}

	// An exhausted credit fails here: any positive debit overdraws a zero
	// remaining balance.
	if amount.GreaterThan(credit.RemainingAmount()) {
		return nil, fmt.Errorf("debit %s from credit %s with remaining %s: %w", amount, creditID, credit.RemainingAmount(), ErrOverdraft)
	}

	credit.UsedAmount = credit.UsedAmount.Add(amount)
	if credit.RemainingAmount().IsZero() && invoiceID != "" {
		credit.AppliedToInvoiceID = &invoiceID
	}
	if err := s.credits.Save(ctx, credit); err != nil {
		return nil, fmt.Errorf("failed to save credit %s: %w", creditID, err)
	}

	logctx.FromCtx(ctx, s.log).Infow("credit debited",
		"credit_id", creditID,
		"amount", amount.String(),
		"remaining", credit.RemainingAmount().String(),
		"invoice_id", invoiceID,
	)
	return credit, nil
}

// Cancel marks a credit cancelled via explicit administrative action.
func (s *Service) Cancel(ctx context.Context, creditID string) (*models.Credit, error) {
	credit, err := s.credits.GetByID(ctx, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit %s: %w", creditID, err)
	}
	if credit.EffectiveStatus(s.now()) != types.CreditStatusActive {
		return nil, fmt.Errorf("cancel credit %s (status %s): %w", creditID, credit.EffectiveStatus(s.now()), ErrCreditNotUsable)
	}
	credit.Cancelled = true
	if err := s.credits.Save(ctx, credit); err != nil {
		return nil, fmt.Errorf("failed to save credit %s: %w", creditID, err)
	}
	logctx.FromCtx(ctx, s.log).Infow("credit cancelled", "credit_id", creditID)
	return credit, nil
}

// ActiveCredits returns the subscription's debitable credits ordered by the
// consumption policy: soonest expires_at first (use-it-or-lose-it, credits
// without expiry last), oldest created first as tie-break.
func (s *Service) ActiveCredits(ctx context.Context, subscriptionID string) ([]*models.Credit, error) {
	all, err := s.credits.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credits for subscription %s: %w", subscriptionID, err)
	}

	now := s.now()
	active := lo.Filter(all, func(c *models.Credit, _ int) bool {
		return c.EffectiveStatus(now) == types.CreditStatusActive
	})

	slices.SortStableFunc(active, func(a, b *models.Credit) int {
		switch {
		case a.ExpiresAt == nil && b.ExpiresAt == nil:
			return a.CreatedAt.Compare(b.CreatedAt)
		case a.ExpiresAt == nil:
			return 1
		case b.ExpiresAt == nil:
			return -1
		}
		if c := a.ExpiresAt.Compare(*b.ExpiresAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return active, nil
}

// RemainingBalance sums remaining_amount over all active credits for the
// subscription.
func (s *Service) RemainingBalance(ctx context.Context, subscriptionID string) (decimal.Decimal, error) {
	active, err := s.ActiveCredits(ctx, subscriptionID)
	if err != nil {
		return decimal.Zero, err
	}
	return lo.Reduce(active, func(acc decimal.Decimal, c *models.Credit, _ int) decimal.Decimal {
		return acc.Add(c.RemainingAmount())
	}, decimal.Zero), nil
}
