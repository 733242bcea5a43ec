package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/coldpilot/billing/internal/models"
	types "github.com/coldpilot/billing/pkg/types"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service computes operational statistics over subscriptions, the action
// journal and the credit ledger, for the admin dashboard.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

type statusCount struct {
	Status types.SubscriptionStatus `gorm:"column:status"`
	Count  int64                    `gorm:"column:count"`
}

// Overview is the admin statistics payload.
type Overview struct {
	// SubscriptionsByStatus counts subscriptions per lifecycle status.
	SubscriptionsByStatus map[types.SubscriptionStatus]int64 `json:"subscriptions_by_status"`
	// OutstandingCreditBalance sums remaining balance over non-cancelled,
	// non-expired credits.
	OutstandingCreditBalance decimal.Decimal `json:"outstanding_credit_balance"`
	// PendingActionCount is how many actions are currently in flight.
	PendingActionCount int64 `json:"pending_action_count"`
	// OldestPendingActionAgeSeconds exposes pending-action age so operators
	// can detect a stuck pending->completed handoff.
	OldestPendingActionAgeSeconds *int64 `json:"oldest_pending_action_age_seconds"`
}

func (s *Service) GetOverview(ctx context.Context) (*Overview, error) {
	now := time.Now()
	out := &Overview{SubscriptionsByStatus: map[types.SubscriptionStatus]int64{}}

	var counts []statusCount
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Select("status, count(*) as count").Group("status").Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count subscriptions by status: %w", err)
	}
	for _, c := range counts {
		out.SubscriptionsByStatus[c.Status] = c.Count
	}

	var credits []*models.Credit
	if err := s.db.WithContext(ctx).
		Where("cancelled = false").
		Where("expires_at IS NULL OR expires_at > ?", now).
		Find(&credits).Error; err != nil {
		return nil, fmt.Errorf("failed to load credits: %w", err)
	}
	out.OutstandingCreditBalance = lo.Reduce(credits, func(acc decimal.Decimal, c *models.Credit, _ int) decimal.Decimal {
		return acc.Add(c.RemainingAmount())
	}, decimal.Zero)

	var pending []*models.SubscriptionAction
	if err := s.db.WithContext(ctx).
		Where("status = ?", types.ActionStatusPending).
		Order("created_at asc").
		Find(&pending).Error; err != nil {
		return nil, fmt.Errorf("failed to load pending actions: %w", err)
	}
	out.PendingActionCount = int64(len(pending))
	if len(pending) > 0 {
		age := int64(pending[0].Age(now).Seconds())
		out.OldestPendingActionAgeSeconds = &age
	}

	return out, nil
}
