package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"goalwise/internal/models"
	"goalwise/internal/services"
)

// DashboardHandler serves the dashboard, portfolio and suggestion read
// models.
type DashboardHandler struct {
	dashboardService  services.DashboardServicer
	suggestionService services.SuggestionServicer
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService services.DashboardServicer, suggestionService services.SuggestionServicer) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, suggestionService: suggestionService}
}

// SuggestionsQuery holds the investment suggestion query parameters.
type SuggestionsQuery struct {
	GoalID       string  `form:"goal_id" binding:"omitempty,uuid"`
	RiskLevel    string  `form:"risk_level" binding:"omitempty,risk_level"`
	TargetAmount float64 `form:"target_amount" binding:"gte=0"`
}

// GetDashboard handles dashboard requests
// @Summary     Dashboard
// @Description Total asset value, active goals, average one-month return, the five most urgent goals and the five newest assets
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.DashboardSummary
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /dashboard [get]
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	ctx, err := requestContext(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	summary, err := h.dashboardService.Summary(ctx)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetPortfolio handles portfolio statistics requests
// @Summary     Portfolio statistics
// @Description Totals with gain or loss, broken down by asset type and risk level
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.PortfolioStats
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio [get]
func (h *DashboardHandler) GetPortfolio(c *gin.Context) {
	ctx, err := requestContext(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	stats, err := h.dashboardService.Portfolio(ctx)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetSuggestions handles investment suggestion requests
// @Summary     Investment suggestions
// @Description Suggested allocation for a risk level, scaled to a target amount or a goal's remaining amount
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Param       goal_id       query string false "Goal to plan for"
// @Param       risk_level    query string false "low, moderate or high"
// @Param       target_amount query number false "Amount to invest"
// @Success     200 {object} services.SuggestionSet
// @Failure     400 {object} ErrorResponse "Invalid query"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /suggestions [get]
func (h *DashboardHandler) GetSuggestions(c *gin.Context) {
	ctx, err := requestContext(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q SuggestionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	set, err := h.suggestionService.Suggest(ctx, q.GoalID, models.RiskLevel(q.RiskLevel), q.TargetAmount)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}
