package models

import (
	"time"

	"github.com/coldpilot/billing/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Subscription stores the billing state of one organization's plan.
// Status is owned by the lifecycle state machine; rows are never hard-deleted
// (canceled is terminal but retained for audit).
type Subscription struct {
	ID             string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	OrganizationID string `gorm:"column:organization_id;type:varchar(64);not null;index" json:"organization_id"`
	PlanID         string `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	// External payment-processor identifiers; opaque strings, never interpreted here.
	ExternalCustomerID     string `gorm:"column:external_customer_id;type:varchar(128)" json:"external_customer_id"`
	ExternalSubscriptionID string `gorm:"column:external_subscription_id;type:varchar(128)" json:"external_subscription_id"`

	BillingCycle types.BillingCycle `gorm:"column:billing_cycle;type:varchar(16);not null" json:"billing_cycle"`
	MonthlyPrice decimal.Decimal    `gorm:"column:monthly_price;type:numeric;not null" json:"monthly_price"`
	YearlyPrice  decimal.Decimal    `gorm:"column:yearly_price;type:numeric;not null" json:"yearly_price"`
	Currency     string             `gorm:"column:currency;type:varchar(8);not null" json:"currency"`

	// CurrentPeriodEnd is always strictly after CurrentPeriodStart.
	CurrentPeriodStart time.Time `gorm:"column:current_period_start;not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time `gorm:"column:current_period_end;not null" json:"current_period_end"`

	CancelAtPeriodEnd bool       `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`
	TrialStart        *time.Time `gorm:"column:trial_start;default:null" json:"trial_start"`
	TrialEnd          *time.Time `gorm:"column:trial_end;default:null" json:"trial_end"`

	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`

	// Extra stores additional JSON data (for example promotion details).
	Extra     datatypes.JSON `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// CurrentPrice returns the recurring price for the active billing cycle.
func (s *Subscription) CurrentPrice() decimal.Decimal {
	if s.BillingCycle == types.BillingCycleYearly {
		return s.YearlyPrice
	}
	return s.MonthlyPrice
}

// PeriodValid reports whether the billing period invariant holds.
func (s *Subscription) PeriodValid() bool {
	return s != nil && s.CurrentPeriodEnd.After(s.CurrentPeriodStart)
}
