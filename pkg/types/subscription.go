package types

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPaused   SubscriptionStatus = "paused"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	// SubscriptionStatusCanceled is terminal; canceled subscriptions are kept for audit.
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Terminal reports whether no further lifecycle transitions are allowed.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionStatusCanceled
}

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

type ActionType string

const (
	ActionTypePause       ActionType = "pause"
	ActionTypeResume      ActionType = "resume"
	ActionTypeUpgrade     ActionType = "upgrade"
	ActionTypeDowngrade   ActionType = "downgrade"
	ActionTypeCancel      ActionType = "cancel"
	ActionTypeTrialStart  ActionType = "trial_start"
	ActionTypeTrialEnd    ActionType = "trial_end"
	ActionTypeCreditAdded ActionType = "credit_added"
)

type ActionStatus string

const (
	// ActionStatusPending is the only non-terminal action status. At most one
	// pending action may exist per subscription at a time.
	ActionStatusPending   ActionStatus = "pending"
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusCancelled ActionStatus = "cancelled"
)

func (s ActionStatus) Terminal() bool {
	return s == ActionStatusCompleted || s == ActionStatusCancelled
}

type CreditType string

const (
	CreditTypeAdjustment   CreditType = "adjustment"
	CreditTypeRefund       CreditType = "refund"
	CreditTypePromotional  CreditType = "promotional"
	CreditTypeCompensation CreditType = "compensation"
)

// CreditStatus is derived on read, never trusted from storage except for the
// explicit administrative "cancelled" marker.
type CreditStatus string

const (
	CreditStatusActive    CreditStatus = "active"
	CreditStatusUsed      CreditStatus = "used"
	CreditStatusExpired   CreditStatus = "expired"
	CreditStatusCancelled CreditStatus = "cancelled"
)
