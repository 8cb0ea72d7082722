package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"goalwise/internal/models"
	"goalwise/internal/pagination"
	"goalwise/internal/services"
)

// AssetHandler handles asset requests.
type AssetHandler struct {
	assetService   services.AssetServicer
	pricingService services.PricingServicer
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetService services.AssetServicer, pricingService services.PricingServicer) *AssetHandler {
	return &AssetHandler{assetService: assetService, pricingService: pricingService}
}

// StockDetailRequest holds stock-specific fields.
type StockDetailRequest struct {
	Exchange      string   `json:"exchange" binding:"max=50"`
	Sector        string   `json:"sector" binding:"max=100"`
	DividendYield *float64 `json:"dividend_yield" binding:"omitempty,gte=0"`
}

// MutualFundDetailRequest holds mutual-fund-specific fields.
type MutualFundDetailRequest struct {
	FundHouse    string   `json:"fund_house" binding:"max=200"`
	SchemeCode   string   `json:"scheme_code" binding:"max=50"`
	FundCategory string   `json:"fund_category" binding:"max=100"`
	ExpenseRatio *float64 `json:"expense_ratio" binding:"omitempty,gte=0,lte=100"`
}

// ETFDetailRequest holds ETF-specific fields.
type ETFDetailRequest struct {
	Exchange      string   `json:"exchange" binding:"max=50"`
	TrackingIndex string   `json:"tracking_index" binding:"max=200"`
	ExpenseRatio  *float64 `json:"expense_ratio" binding:"omitempty,gte=0,lte=100"`
}

// FixedDepositDetailRequest holds fixed-deposit-specific fields.
type FixedDepositDetailRequest struct {
	BankName             string  `json:"bank_name" binding:"max=200"`
	InterestRate         float64 `json:"interest_rate" binding:"gte=0"`
	MaturityDate         string  `json:"maturity_date" binding:"omitempty,datetime=2006-01-02"`
	CompoundingFrequency string  `json:"compounding_frequency" binding:"omitempty,oneof=monthly quarterly half_yearly yearly"`
}

// CreateAssetRequest represents the request payload for creating an asset.
// Only the detail object matching Type is stored.
type CreateAssetRequest struct {
	Name          string                     `json:"name" binding:"required,min=1,max=200"`
	Type          string                     `json:"type" binding:"required,asset_type" example:"stock"`
	Symbol        string                     `json:"symbol" binding:"omitempty,symbol" example:"AAPL"`
	Quantity      float64                    `json:"quantity" binding:"required,gt=0"`
	PurchasePrice float64                    `json:"purchase_price" binding:"required,gt=0"`
	PurchaseDate  string                     `json:"purchase_date" binding:"omitempty,datetime=2006-01-02"`
	Currency      string                     `json:"currency" binding:"omitempty,iso4217"`
	RiskLevel     string                     `json:"risk_level" binding:"omitempty,risk_level"`
	GoalID        string                     `json:"goal_id" binding:"omitempty,uuid"`
	Stock         *StockDetailRequest        `json:"stock_detail"`
	MutualFund    *MutualFundDetailRequest   `json:"mutual_fund_detail"`
	ETF           *ETFDetailRequest          `json:"etf_detail"`
	FixedDeposit  *FixedDepositDetailRequest `json:"fixed_deposit_detail"`
}

// UpdateAssetRequest represents the request payload for updating an asset.
type UpdateAssetRequest struct {
	Name          *string  `json:"name" binding:"omitempty,min=1,max=200"`
	Symbol        *string  `json:"symbol" binding:"omitempty,symbol"`
	Quantity      *float64 `json:"quantity" binding:"omitempty,gt=0"`
	PurchasePrice *float64 `json:"purchase_price" binding:"omitempty,gt=0"`
	PurchaseDate  *string  `json:"purchase_date" binding:"omitempty,datetime=2006-01-02"`
	Currency      *string  `json:"currency" binding:"omitempty,iso4217"`
	RiskLevel     *string  `json:"risk_level" binding:"omitempty,risk_level"`
	GoalID        *string  `json:"goal_id" binding:"omitempty,uuid"`
	UnlinkGoal    bool     `json:"unlink_goal" binding:"excluded_with=GoalID"`
}

// ListAssetsQuery holds the asset listing query parameters.
type ListAssetsQuery struct {
	pagination.PageRequest
	GoalID string `form:"goal_id" binding:"omitempty,uuid"`
}

// CreateAsset handles asset creation
// @Summary     Create an asset
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateAssetRequest true "Asset details"
// @Success     201 {object} models.Asset "Asset created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /assets [post]
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	ctx, err := requestContext(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.assetService.Create(ctx, in)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"asset": asset})
}

// ListAssets handles listing assets
// @Summary     List assets
// @Description List the caller's assets, newest first, optionally for one goal
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Page size (max 100)"
// @Param       goal_id   query string false "Only assets linked to this goal"
// @Success     200 {object} pagination.PageResponse[models.Asset]
// @Failure     400 {object} ErrorResponse "Invalid query"
// @Router      /assets [get]
func (h *AssetHandler) ListAssets(c *gin.Context) {
	ctx, err := requestContext(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q ListAssetsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	var goalID *string
	if q.GoalID != "" {
		goalID = &q.GoalID
	}

	page, err := h.assetService.List(ctx, q.PageRequest, goalID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetAsset handles fetching an asset
// @Summary     Get an asset
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Asset ID"
// @Success     200 {object} models.Asset
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /assets/{id} [get]
func (h *AssetHandler) GetAsset(c *gin.Context) {
	h.withAsset(c, func(c *gin.Context, id string) (any, error) {
		asset, err := h.assetService.GetByID(c.Request.Context(), id)
		if err != nil {
			return nil, err
		}
		return gin.H{"asset": asset}, nil
	})
}

// UpdateAsset handles asset updates
// @Summary     Update an asset
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Asset ID"
// @Param       request body UpdateAssetRequest true "Fields to update"
// @Success     200 {object} models.Asset
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /assets/{id} [put]
func (h *AssetHandler) UpdateAsset(c *gin.Context) {
	h.withAsset(c, func(c *gin.Context, id string) (any, error) {
		var req UpdateAssetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, bindError(err)
		}
		in, err := req.toInput()
		if err != nil {
			return nil, err
		}
		asset, err := h.assetService.Update(c.Request.Context(), id, in)
		if err != nil {
			return nil, err
		}
		return gin.H{"asset": asset}, nil
	})
}

// DeleteAsset handles asset deletion
// @Summary     Delete an asset
// @Tags        assets
// @Security    BearerAuth
// @Param       id path string true "Asset ID"
// @Success     204
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /assets/{id} [delete]
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	ctx, err := requestContext(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.assetService.Delete(ctx, id); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RefreshAsset handles repricing one asset
// @Summary     Refresh an asset's market value
// @Description Reprice a stock, ETF, fund or crypto holding from market data and store its returns
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Asset ID"
// @Success     200 {object} services.RefreshResult
// @Failure     400 {object} ErrorResponse "Asset cannot be priced"
// @Failure     404 {object} ErrorResponse "Asset or price data not found"
// @Failure     504 {object} ErrorResponse "Market data timed out"
// @Router      /assets/{id}/refresh [post]
func (h *AssetHandler) RefreshAsset(c *gin.Context) {
	h.withAsset(c, func(c *gin.Context, id string) (any, error) {
		result, err := h.pricingService.RefreshAsset(c.Request.Context(), id)
		if err != nil {
			return nil, err
		}
		return gin.H{"refresh": result}, nil
	})
}

// GetAssetPerformance handles asset performance requests
// @Summary     Asset performance
// @Description Cost basis, current value, gain or loss and stored return snapshots
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Asset ID"
// @Success     200 {object} services.AssetPerformanceReport
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /assets/{id}/performance [get]
func (h *AssetHandler) GetAssetPerformance(c *gin.Context) {
	h.withAsset(c, func(c *gin.Context, id string) (any, error) {
		report, err := h.assetService.Performance(c.Request.Context(), id)
		if err != nil {
			return nil, err
		}
		return gin.H{"performance": report}, nil
	})
}

func (h *AssetHandler) withAsset(c *gin.Context, fn func(c *gin.Context, id string) (any, error)) {
	ctx, err := requestContext(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.Request = c.Request.WithContext(ctx)

	body, err := fn(c, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (r *CreateAssetRequest) toInput() (services.CreateAssetInput, error) {
	purchaseDate, err := parseDate(r.PurchaseDate)
	if err != nil {
		return services.CreateAssetInput{}, err
	}
	in := services.CreateAssetInput{
		Name:          r.Name,
		Type:          models.AssetType(r.Type),
		Symbol:        r.Symbol,
		Quantity:      r.Quantity,
		PurchasePrice: r.PurchasePrice,
		PurchaseDate:  purchaseDate,
		Currency:      r.Currency,
		RiskLevel:     models.RiskLevel(r.RiskLevel),
	}
	if r.GoalID != "" {
		id := r.GoalID
		in.GoalID = &id
	}
	if d := r.Stock; d != nil {
		in.Stock = &models.StockDetail{Exchange: d.Exchange, Sector: d.Sector, DividendYield: d.DividendYield}
	}
	if d := r.MutualFund; d != nil {
		in.MutualFund = &models.MutualFundDetail{
			FundHouse: d.FundHouse, SchemeCode: d.SchemeCode, FundCategory: d.FundCategory, ExpenseRatio: d.ExpenseRatio,
		}
	}
	if d := r.ETF; d != nil {
		in.ETF = &models.ETFDetail{Exchange: d.Exchange, TrackingIndex: d.TrackingIndex, ExpenseRatio: d.ExpenseRatio}
	}
	if d := r.FixedDeposit; d != nil {
		fd := &models.FixedDepositDetail{
			BankName: d.BankName, InterestRate: d.InterestRate, CompoundingFrequency: d.CompoundingFrequency,
		}
		if d.MaturityDate != "" {
			maturity, err := parseDate(d.MaturityDate)
			if err != nil {
				return in, err
			}
			fd.MaturityDate = &maturity
		}
		in.FixedDeposit = fd
	}
	return in, nil
}

func (r *UpdateAssetRequest) toInput() (services.UpdateAssetInput, error) {
	in := services.UpdateAssetInput{
		Name:          r.Name,
		Symbol:        r.Symbol,
		Quantity:      r.Quantity,
		PurchasePrice: r.PurchasePrice,
		Currency:      r.Currency,
		GoalID:        r.GoalID,
		UnlinkGoal:    r.UnlinkGoal,
	}
	if r.RiskLevel != nil {
		risk := models.RiskLevel(*r.RiskLevel)
		in.RiskLevel = &risk
	}
	if r.PurchaseDate != nil {
		t, err := parseDate(*r.PurchaseDate)
		if err != nil {
			return in, err
		}
		in.PurchaseDate = &t
	}
	return in, nil
}
