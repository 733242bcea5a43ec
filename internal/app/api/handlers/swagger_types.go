package handlers

import (
	"github.com/coldpilot/billing/internal/app/service/orchestrator"
	"github.com/coldpilot/billing/internal/app/service/statistics"
	models "github.com/coldpilot/billing/internal/models"
	"github.com/coldpilot/billing/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespPlanChange wraps PlanChangeResult in the standard envelope.
type RespPlanChange struct {
	Code    response.APIResponseCode      `json:"code"`
	Message string                        `json:"message"`
	Data    orchestrator.PlanChangeResult `json:"data"`
}

// RespSubscription wraps SubscriptionView in the standard envelope.
type RespSubscription struct {
	Code    response.APIResponseCode      `json:"code"`
	Message string                        `json:"message"`
	Data    orchestrator.SubscriptionView `json:"data"`
}

// RespAction wraps a single journal action in the standard envelope.
type RespAction struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    models.SubscriptionAction `json:"data"`
}

// RespActionList wraps a journal listing in the standard envelope.
type RespActionList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListActionsResponse      `json:"data"`
}

// RespSubscriptionModel wraps a bare subscription row in the standard envelope.
type RespSubscriptionModel struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Subscription      `json:"data"`
}

// RespPeriodEnd wraps a period-end sweep result in the standard envelope.
type RespPeriodEnd struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    orchestrator.PeriodEndResult `json:"data"`
}

// RespCreditIssue wraps a credit issuance result in the standard envelope.
type RespCreditIssue struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    IssueCreditResponse      `json:"data"`
}

// RespCredit wraps a credit view in the standard envelope.
type RespCredit struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    CreditItem               `json:"data"`
}

// RespStatistics wraps the statistics overview in the standard envelope.
type RespStatistics struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    statistics.Overview      `json:"data"`
}
