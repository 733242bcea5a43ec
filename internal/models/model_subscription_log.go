package models

import (
	"time"

	"github.com/coldpilot/billing/pkg/types"
	"gorm.io/datatypes"
)

// SubscriptionLog records before/after snapshots of subscription mutations.
// Use case: troubleshooting.
type SubscriptionLog struct {
	ID             string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string `gorm:"column:subscription_id;type:uuid;index:idx_sub_log_sub_id,priority:1;not null"`
	// ActionType is the lifecycle action that caused the change.
	ActionType types.ActionType `gorm:"column:action_type;type:varchar(32);not null"`
	// Before stores subscription data before the change in JSON format.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'"`
	// After stores subscription data after the change in JSON format.
	After datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'"`
	// Extra stores additional context such as trigger source.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
