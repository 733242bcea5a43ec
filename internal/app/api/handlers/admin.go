package handlers

import (
	"net/http"
	"time"

	"github.com/coldpilot/billing/internal/app/service/ledger"
	"github.com/coldpilot/billing/internal/app/service/orchestrator"
	"github.com/coldpilot/billing/internal/app/service/statistics"
	models "github.com/coldpilot/billing/internal/models"
	"github.com/coldpilot/billing/pkg/response"
	"github.com/coldpilot/billing/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type issueCreditRequest struct {
	SubscriptionID string           `json:"subscription_id" binding:"required"`
	Amount         decimal.Decimal  `json:"amount" binding:"required"`
	Currency       string           `json:"currency" binding:"required"`
	Type           types.CreditType `json:"type" binding:"required"`
	ExpiresAt      *time.Time       `json:"expires_at"`
}

// IssueCreditResponse pairs the issued credit with its journal entry.
type IssueCreditResponse struct {
	Credit *CreditItem                `json:"credit"`
	Action *models.SubscriptionAction `json:"action"`
}

// @Summary      Issue Credit (Admin)
// @Description  Issues an account credit against a subscription and journals a credit_added action.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body issueCreditRequest true "Credit issuance request"
// @Success      200  {object}  handlers.RespCreditIssue
// @Router       /api/v1/admin/credits [post]
func ApiIssueCredit(orch *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req issueCreditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := orch.IssueCredit(c.Request.Context(), req.SubscriptionID, req.Amount, req.Currency, req.Type, req.ExpiresAt)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(IssueCreditResponse{Credit: toCreditItem(res.Credit), Action: res.Action}))
	}
}

// @Summary      Cancel Credit (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Credit ID"
// @Success      200  {object}  handlers.RespCredit
// @Router       /api/v1/admin/credits/{id}/cancel [post]
func ApiCancelCredit(led *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		credit, err := led.Cancel(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(toCreditItem(credit)))
	}
}

type debitCreditRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	InvoiceID string          `json:"invoice_id"`
}

// @Summary      Debit Credit (Admin)
// @Description  Invoicing-collaborator surface: consumes part of a credit against an invoice.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id      path  string              true "Credit ID"
// @Param        request body  debitCreditRequest  true "Debit request"
// @Success      200  {object}  handlers.RespCredit
// @Router       /api/v1/admin/credits/{id}/debit [post]
func ApiDebitCredit(led *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req debitCreditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		credit, err := led.Debit(c.Request.Context(), c.Param("id"), req.Amount, req.InvoiceID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(toCreditItem(credit)))
	}
}

// CreditItem is the admin-facing view of a credit, with the derived fields
// materialized.
type CreditItem struct {
	ID                 string             `json:"id"`
	SubscriptionID     string             `json:"subscription_id"`
	Type               types.CreditType   `json:"type"`
	Amount             decimal.Decimal    `json:"amount"`
	UsedAmount         decimal.Decimal    `json:"used_amount"`
	RemainingAmount    decimal.Decimal    `json:"remaining_amount"`
	Currency           string             `json:"currency"`
	Status             types.CreditStatus `json:"status"`
	ExpiresAt          *time.Time         `json:"expires_at"`
	AppliedToInvoiceID *string            `json:"applied_to_invoice_id"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func toCreditItem(m *models.Credit) *CreditItem {
	return &CreditItem{
		ID:                 m.ID,
		SubscriptionID:     m.SubscriptionID,
		Type:               m.Type,
		Amount:             m.Amount,
		UsedAmount:         m.UsedAmount,
		RemainingAmount:    m.RemainingAmount(),
		Currency:           m.Currency,
		Status:             m.EffectiveStatus(time.Now()),
		ExpiresAt:          m.ExpiresAt,
		AppliedToInvoiceID: m.AppliedToInvoiceID,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

type ListActionsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// filtersWhere wraps a list of filters to a single clause.Expression
type filtersWhere struct{ filters []*types.CommonFilter }

func (w filtersWhere) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, f := range w.filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		f.Build(builder)
	}
}

type ListActionsResponse struct {
	Items []*models.SubscriptionAction `json:"items"`
	Total int64                        `json:"total"`
}

// @Summary      List Actions (Admin)
// @Description  Retrieves a paginated and filterable list of journal actions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListActionsRequest true "List actions request"
// @Success      200  {object}  handlers.RespActionList
// @Router       /api/v1/admin/actions/list [post]
func ApiListActions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListActionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.Size <= 0 || req.Size > 200 {
			req.Size = 50
		}
		sortBy := lo.Ternary(req.SortBy != "", req.SortBy, "created_at")
		sortOrder := lo.Ternary(req.SortOrder == "asc", "asc", "desc")

		q := db.WithContext(c.Request.Context()).
			Model(&models.SubscriptionAction{}).
			Clauses(clause.Where{Exprs: []clause.Expression{filtersWhere{filters: req.Filters}}})

		var total int64
		if err := q.Count(&total).Error; err != nil {
			respondErr(c, err)
			return
		}

		var items []*models.SubscriptionAction
		if err := q.Order(sortBy + " " + sortOrder).Offset(req.From).Limit(req.Size).Find(&items).Error; err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(ListActionsResponse{Items: items, Total: total}))
	}
}

// @Summary      Statistics Overview (Admin)
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespStatistics
// @Router       /api/v1/admin/statistics [get]
func ApiStatistics(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		overview, err := stats.GetOverview(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(overview))
	}
}

// lifecycleSignal adapts an externally-signaled transition to a handler.
func lifecycleSignal(fn func(c *gin.Context) (*models.SubscriptionAction, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		action, err := fn(c)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(action))
	}
}

// @Summary      Process Period End (Admin)
// @Description  Applies a scheduled cancel-at-period-end once the period has elapsed. Reports whether a cancel was applied so scheduler callers can tell a no-op apart.
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespPeriodEnd
// @Router       /api/v1/admin/subscriptions/{id}/process-period-end [post]
func ApiProcessPeriodEnd(orch *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := orch.ProcessPeriodEnd(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, orch *orchestrator.Service, led *ledger.Service, stats *statistics.Service, db *gorm.DB) {
	r.POST("/credits", ApiIssueCredit(orch))
	r.POST("/credits/:id/cancel", ApiCancelCredit(led))
	r.POST("/credits/:id/debit", ApiDebitCredit(led))
	r.POST("/actions/list", ApiListActions(db))
	r.GET("/statistics", ApiStatistics(stats))

	// Invoicing/scheduler collaborator signals.
	r.POST("/subscriptions/:id/payment-failed", lifecycleSignal(func(c *gin.Context) (*models.SubscriptionAction, error) {
		return orch.HandlePaymentFailure(c.Request.Context(), c.Param("id"))
	}))
	r.POST("/subscriptions/:id/payment-recovered", lifecycleSignal(func(c *gin.Context) (*models.SubscriptionAction, error) {
		return orch.HandlePaymentRecovered(c.Request.Context(), c.Param("id"))
	}))
	r.POST("/subscriptions/:id/convert-trial", lifecycleSignal(func(c *gin.Context) (*models.SubscriptionAction, error) {
		return orch.ConvertTrial(c.Request.Context(), c.Param("id"))
	}))
	r.POST("/subscriptions/:id/expire-grace", lifecycleSignal(func(c *gin.Context) (*models.SubscriptionAction, error) {
		return orch.ExpireGrace(c.Request.Context(), c.Param("id"))
	}))
	r.POST("/subscriptions/:id/process-period-end", ApiProcessPeriodEnd(orch))
}
