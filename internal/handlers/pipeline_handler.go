package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"goalwise/internal/services"
)

// PipelineHandler serves endpoints called by scheduled jobs.
type PipelineHandler struct {
	pricingService services.PricingServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(pricingService services.PricingServicer) *PipelineHandler {
	return &PipelineHandler{pricingService: pricingService}
}

// RefreshAssets handles the scheduled repricing run
// @Summary     Reprice all assets
// @Description Reprice every stock, ETF, fund and crypto holding of every user. Individual failures are reported in the summary.
// @Tags        pipeline
// @Produce     json
// @Security    PipelineKey
// @Success     200 {object} services.RefreshSummary
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     503 {object} ErrorResponse "Pipeline not configured"
// @Router      /pipeline/assets/refresh [post]
func (h *PipelineHandler) RefreshAssets(c *gin.Context) {
	summary, err := h.pricingService.RefreshAll(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
