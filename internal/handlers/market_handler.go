package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"goalwise/internal/marketdata"
)

const chartCacheControl = "public, max-age=300, s-maxage=3600"

// MarketHandler serves market data.
type MarketHandler struct {
	fetcher marketdata.Fetcher
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(fetcher marketdata.Fetcher) *MarketHandler {
	return &MarketHandler{fetcher: fetcher}
}

// ChartQuery holds the chart query parameters. Periods are epoch seconds.
type ChartQuery struct {
	Symbol   string `form:"symbol" binding:"required,symbol" example:"AAPL"`
	Period1  int64  `form:"period1" binding:"required,gt=0" example:"1704067200"`
	Period2  int64  `form:"period2" binding:"required,gtfield=Period1" example:"1735689600"`
	Interval string `form:"interval" binding:"omitempty,interval" example:"1d"`
}

// GetChart handles chart requests
// @Summary     Price chart
// @Description OHLCV bars for a symbol between two epoch-second bounds
// @Tags        market
// @Produce     json
// @Param       symbol   query string true  "Ticker symbol"
// @Param       period1  query int    true  "Start (epoch seconds)"
// @Param       period2  query int    true  "End (epoch seconds)"
// @Param       interval query string false "Bar interval (default 1d)"
// @Success     200 {object} marketdata.Chart
// @Failure     400 {object} ErrorResponse "Missing or invalid parameters"
// @Failure     404 {object} ErrorResponse "No data for symbol"
// @Failure     500 {object} ErrorResponse "Unexpected failure"
// @Failure     502 {object} ErrorResponse "Upstream returned an invalid response"
// @Failure     504 {object} ErrorResponse "Upstream timed out"
// @Router      /market/chart [get]
func (h *MarketHandler) GetChart(c *gin.Context) {
	var q ChartQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	chart, err := h.fetcher.FetchBars(c.Request.Context(), marketdata.Query{
		Symbol:   q.Symbol,
		Period1:  q.Period1,
		Period2:  q.Period2,
		Interval: q.Interval,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Cache-Control", chartCacheControl)
	c.JSON(http.StatusOK, chart)
}
