package models

import (
	"time"

	"github.com/coldpilot/billing/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SubscriptionAction is an append-only journal entry for one lifecycle
// mutation. Entries are created pending and move to completed or cancelled;
// terminal entries are never edited, a new action is appended instead.
type SubscriptionAction struct {
	ID             string             `gorm:"column:id;type:uuid;primary_key;index:idx_action_sub_id,priority:2,sort:desc" json:"id"`
	SubscriptionID string             `gorm:"column:subscription_id;type:uuid;not null;index:idx_action_sub_id,priority:1" json:"subscription_id"`
	Type           types.ActionType   `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Status         types.ActionStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`

	// EffectiveDate is when the change takes (or took) effect. ScheduledDate
	// is set for future-dated changes only.
	EffectiveDate time.Time  `gorm:"column:effective_date;not null" json:"effective_date"`
	ScheduledDate *time.Time `gorm:"column:scheduled_date;default:null" json:"scheduled_date"`

	// OldPlanID/NewPlanID are present only for upgrade/downgrade actions.
	OldPlanID *string `gorm:"column:old_plan_id;type:varchar(64);default:null" json:"old_plan_id"`
	NewPlanID *string `gorm:"column:new_plan_id;type:varchar(64);default:null" json:"new_plan_id"`

	// ProrationAmount is non-negative and currency-matched to the
	// subscription; present only when a plan change occurred. IsCredit tells
	// whether the amount is owed to the customer.
	ProrationAmount *decimal.Decimal `gorm:"column:proration_amount;type:numeric;default:null" json:"proration_amount"`
	IsCredit        bool             `gorm:"column:is_credit;not null;default:false" json:"is_credit"`
	// CreditApplied is the credit-ledger offset consumed against this action.
	CreditApplied decimal.Decimal `gorm:"column:credit_applied;type:numeric;not null;default:0" json:"credit_applied"`

	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (SubscriptionAction) TableName() string {
	return "subscription_action"
}

// Age returns how long the action has existed, for pending-action liveness
// checks by the caller.
func (a *SubscriptionAction) Age(now time.Time) time.Duration {
	return now.Sub(a.CreatedAt)
}

func (a *SubscriptionAction) IsPlanChange() bool {
	return a.Type == types.ActionTypeUpgrade || a.Type == types.ActionTypeDowngrade
}
