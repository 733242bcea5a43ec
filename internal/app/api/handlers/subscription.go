package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/coldpilot/billing/internal/app/service/journal"
	"github.com/coldpilot/billing/internal/app/service/ledger"
	"github.com/coldpilot/billing/internal/app/service/lifecycle"
	"github.com/coldpilot/billing/internal/app/service/orchestrator"
	"github.com/coldpilot/billing/internal/app/service/proration"
	"github.com/coldpilot/billing/internal/repository"
	"github.com/coldpilot/billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondErr maps engine errors to the response envelope. Expected,
// recoverable conditions (a change already pending, an illegal transition)
// are reported as bad requests; anything else is a server error.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, journal.ErrActionInFlight),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, orchestrator.ErrSubscriptionTerminal),
		errors.Is(err, orchestrator.ErrPlanNotFound),
		errors.Is(err, orchestrator.ErrPlanCurrencyMismatch),
		errors.Is(err, proration.ErrInvalidProrationInput),
		errors.Is(err, ledger.ErrCurrencyMismatch),
		errors.Is(err, ledger.ErrOverdraft),
		errors.Is(err, ledger.ErrCreditNotUsable),
		errors.Is(err, ledger.ErrCreditExpired),
		errors.Is(err, ledger.ErrInvalidCreditAmount),
		errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
	default:
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
	}
}

// @Summary      Create Subscription
// @Description  Creates a subscription on signup. With trial_days > 0 the subscription starts trialing and a trial_start action is journaled.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        request body orchestrator.CreateSubscriptionParams true "Signup request"
// @Success      200  {object}  handlers.RespSubscriptionModel
// @Router       /api/v1/subscriptions [post]
func ApiCreateSubscription(orch *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params orchestrator.CreateSubscriptionParams
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		sub, err := orch.CreateSubscription(c.Request.Context(), params)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

type planChangeRequest struct {
	NewPlanID     string     `json:"new_plan_id" binding:"required"`
	EffectiveDate *time.Time `json:"effective_date"`
}

// @Summary      Request Plan Change
// @Description  Validates, prorates and applies an upgrade or downgrade, offsetting available credits.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id      path  string             true "Subscription ID"
// @Param        request body  planChangeRequest  true "Plan change request"
// @Success      200  {object}  handlers.RespPlanChange
// @Router       /api/v1/subscriptions/{id}/plan-change [post]
func ApiRequestPlanChange(orch *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req planChangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		effective := time.Now()
		if req.EffectiveDate != nil {
			effective = *req.EffectiveDate
		}
		res, err := orch.RequestPlanChange(c.Request.Context(), c.Param("id"), req.NewPlanID, effective)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Proration Preview
// @Description  Computes the proration for a prospective plan change without applying it. Never partially rendered: the call fails rather than returning a zero amount.
// @Tags         Subscription
// @Produce      json
// @Param        id             path   string true  "Subscription ID"
// @Param        new_plan_id    query  string true  "Target plan ID"
// @Param        effective_date query  string false "RFC3339 effective date (default: now)"
// @Success      200  {object}  handlers.RespPlanChange
// @Router       /api/v1/subscriptions/{id}/proration-preview [get]
func ApiProrationPreview(orch *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		newPlanID := c.Query("new_plan_id")
		if newPlanID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "new_plan_id is required"))
			return
		}
		effective := time.Now()
		if raw := c.Query("effective_date"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			effective = parsed
		}
		res, err := orch.ProrationPreview(c.Request.Context(), c.Param("id"), newPlanID, effective)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Pause Subscription
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespAction
// @Router       /api/v1/subscriptions/{id}/pause [post]
func ApiRequestPause(orch *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		action, err := orch.RequestPause(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(action))
	}
}

// @Summary      Resume Subscription
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespAction
// @Router       /api/v1/subscriptions/{id}/resume [post]
func ApiRequestResume(orch *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		action, err := orch.RequestResume(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(action))
	}
}

type cancelRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

// @Summary      Cancel Subscription
// @Description  Cancels immediately, or schedules a cancel at period end.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id      path  string         true "Subscription ID"
// @Param        request body  cancelRequest  false "Cancel options"
// @Success      200  {object}  handlers.RespAction
// @Router       /api/v1/subscriptions/{id}/cancel [post]
func ApiRequestCancel(orch *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cancelRequest
		if c.Request.Body != nil && c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
		}
		action, err := orch.RequestCancel(c.Request.Context(), c.Param("id"), req.AtPeriodEnd)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(action))
	}
}

// @Summary      Get Subscription
// @Description  Returns the subscription with its pending action and the action's age.
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id} [get]
func ApiGetSubscription(orch *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := orch.GetSubscription(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(view))
	}
}

// @Summary      Credit Balance
// @Description  Sum of remaining amounts over active credits for the subscription.
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/subscriptions/{id}/credits/balance [get]
func ApiCreditBalance(led *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		balance, err := led.RemainingBalance(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]string{"balance": balance.String()}))
	}
}

// @Summary      Action History
// @Description  Lists the subscription's journal entries, newest first.
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespActionList
// @Router       /api/v1/subscriptions/{id}/actions [get]
func ApiActionHistory(jnl *journal.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actions, err := jnl.History(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(actions))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, orch *orchestrator.Service, jnl *journal.Service, led *ledger.Service) {
	r.POST("/subscriptions", ApiCreateSubscription(orch))
	r.GET("/subscriptions/:id", ApiGetSubscription(orch))
	r.POST("/subscriptions/:id/plan-change", ApiRequestPlanChange(orch))
	r.GET("/subscriptions/:id/proration-preview", ApiProrationPreview(orch))
	r.POST("/subscriptions/:id/pause", ApiRequestPause(orch))
	r.POST("/subscriptions/:id/resume", ApiRequestResume(orch))
	r.POST("/subscriptions/:id/cancel", ApiRequestCancel(orch))
	r.GET("/subscriptions/:id/credits/balance", ApiCreditBalance(led))
	r.GET("/subscriptions/:id/actions", ApiActionHistory(jnl))
}
