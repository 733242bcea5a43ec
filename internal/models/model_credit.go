package models

import (
	"time"

	"github.com/coldpilot/billing/pkg/types"
	"github.com/shopspring/decimal"
)

// Credit is one account-credit grant. Amount is fixed at issuance; UsedAmount
// only grows. Credits are never deleted, only exhausted, expired or cancelled.
type Credit struct {
	ID             string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string           `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	Type           types.CreditType `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Amount         decimal.Decimal  `gorm:"column:amount;type:numeric;not null" json:"amount"`
	UsedAmount     decimal.Decimal  `gorm:"column:used_amount;type:numeric;not null;default:0" json:"used_amount"`
	Currency       string           `gorm:"column:currency;type:varchar(8);not null" json:"currency"`

	ExpiresAt *time.Time `gorm:"column:expires_at;default:null" json:"expires_at"`
	// AppliedToInvoiceID is set by the debit that exhausts the credit.
	AppliedToInvoiceID *string `gorm:"column:applied_to_invoice_id;type:varchar(64);default:null" json:"applied_to_invoice_id"`

	// Cancelled is the explicit administrative marker; every other status is
	// derived on read via EffectiveStatus.
	Cancelled bool `gorm:"column:cancelled;not null;default:false" json:"cancelled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Credit) TableName() string {
	return "credit"
}

// RemainingAmount is derived; it is never stored independently of the
// used_amount invariant.
func (c *Credit) RemainingAmount() decimal.Decimal {
	return c.Amount.Sub(c.UsedAmount)
}

// EffectiveStatus recomputes the credit status at the given instant. Expired
// takes precedence over used/active once ExpiresAt has passed, even with a
// positive remaining balance.
func (c *Credit) EffectiveStatus(now time.Time) types.CreditStatus {
	if c.Cancelled {
		return types.CreditStatusCancelled
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return types.CreditStatusExpired
	}
	if c.RemainingAmount().LessThanOrEqual(decimal.Zero) {
		return types.CreditStatusUsed
	}
	return types.CreditStatusActive
}
