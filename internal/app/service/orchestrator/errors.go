package orchestrator

import "errors"

var (
	// ErrSubscriptionTerminal is returned for any mutation request on a
	// canceled subscription.
	ErrSubscriptionTerminal = errors.New("subscription is canceled")
	// ErrPlanNotFound is returned when the requested plan id is not in the
	// catalog.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrPlanCurrencyMismatch is returned when the target plan is priced in a
	// different currency than the subscription.
	ErrPlanCurrencyMismatch = errors.New("plan currency does not match subscription currency")
)
