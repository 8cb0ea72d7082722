package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "goalwise/internal/errors"
	"goalwise/internal/models"
	"goalwise/internal/pagination"
)

const maxPerformanceSnapshots = 30

// assetService handles asset-related business logic.
type assetService struct {
	db    *gorm.DB
	audit AuditServicer
	cache CacheInvalidator
	now   func() time.Time
}

// NewAssetService creates a new AssetServicer.
func NewAssetService(db *gorm.DB, audit AuditServicer, cache CacheInvalidator) AssetServicer {
	return &assetService{db: db, audit: audit, cache: cache, now: time.Now}
}

// Create validates and stores a holding with its type-specific detail. A
// goal link must point at one of the caller's own goals.
func (s *assetService) Create(ctx context.Context, in CreateAssetInput) (*models.Asset, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	asset, err := s.buildAsset(userID, in)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if asset.GoalID != nil {
			if err := requireOwnGoal(tx, userID, *asset.GoalID); err != nil {
				return err
			}
		}
		if err := tx.Create(asset).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, "CREATE_ASSET", "asset", asset.ID, map[string]any{
		"name":     asset.Name,
		"type":     asset.Type,
		"symbol":   asset.Symbol,
		"quantity": asset.Quantity,
		"goal_id":  asset.GoalID,
	})
	s.cache.Invalidate(userID)
	return asset, nil
}

// List returns a page of the caller's assets, newest first, optionally
// restricted to one goal.
func (s *assetService) List(ctx context.Context, page pagination.PageRequest, goalID *string) (*pagination.PageResponse[models.Asset], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	page.Normalize()

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", userID)
		if goalID != nil {
			db = db.Where("goal_id = ?", *goalID)
		}
		return db
	}

	var totalItems int64
	if err := s.db.WithContext(ctx).Model(&models.Asset{}).Scopes(scope).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var assets []models.Asset
	if err := s.db.WithContext(ctx).Scopes(scope, pagination.Paginate(page)).
		Order("created_at DESC").Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(assets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetByID returns the caller's asset with its details.
func (s *assetService) GetByID(ctx context.Context, assetID string) (*models.Asset, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return findAsset(ctx, s.db, userID, assetID, true)
}

// SearchByName returns the caller's assets whose name or symbol contains
// query, case-insensitively.
func (s *assetService) SearchByName(ctx context.Context, query string) ([]models.Asset, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Search query is required")
	}

	pattern := likePattern(query)
	assets := []models.Asset{}
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(symbol) LIKE ? ESCAPE '\')`, pattern, pattern).
		Order("created_at ASC").Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return assets, nil
}

// Update applies a partial update to the caller's asset.
func (s *assetService) Update(ctx context.Context, assetID string, in UpdateAssetInput) (*models.Asset, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	var asset *models.Asset
	changes := map[string]any{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		asset, err = findAsset(ctx, tx, userID, assetID, false)
		if err != nil {
			return err
		}

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "Asset name cannot be empty")
			}
			asset.Name = name
			changes["name"] = name
		}
		if in.Symbol != nil {
			asset.Symbol = strings.ToUpper(strings.TrimSpace(*in.Symbol))
			changes["symbol"] = asset.Symbol
		}
		if in.Quantity != nil {
			if *in.Quantity <= 0 {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "Quantity must be positive")
			}
			asset.Quantity = *in.Quantity
			// Cached value no longer matches the holding size.
			asset.CurrentValue = nil
			changes["quantity"] = asset.Quantity
		}
		if in.PurchasePrice != nil {
			if *in.PurchasePrice <= 0 {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "Purchase price must be positive")
			}
			asset.PurchasePrice = money4(*in.PurchasePrice)
			changes["purchase_price"] = asset.PurchasePrice.String()
		}
		if in.PurchaseDate != nil {
			asset.PurchaseDate = in.PurchaseDate.UTC()
			changes["purchase_date"] = asset.PurchaseDate
		}
		if in.Currency != nil {
			asset.Currency = strings.ToUpper(strings.TrimSpace(*in.Currency))
			changes["currency"] = asset.Currency
		}
		if in.RiskLevel != nil {
			if !in.RiskLevel.IsValid() {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "Risk level must be low, moderate or high")
			}
			asset.RiskLevel = *in.RiskLevel
			changes["risk_level"] = asset.RiskLevel
		}
		switch {
		case in.UnlinkGoal:
			asset.GoalID = nil
			changes["goal_id"] = nil
		case in.GoalID != nil:
			if err := requireOwnGoal(tx, userID, *in.GoalID); err != nil {
				return err
			}
			asset.GoalID = in.GoalID
			changes["goal_id"] = *in.GoalID
		}

		if err := tx.Save(asset).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, "UPDATE_ASSET", "asset", asset.ID, changes)
	s.cache.Invalidate(userID)
	return asset, nil
}

// Delete removes the caller's asset with its details and snapshots.
func (s *assetService) Delete(ctx context.Context, assetID string) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}

	var name string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		asset, err := findAsset(ctx, tx, userID, assetID, false)
		if err != nil {
			return err
		}
		name = asset.Name
		return deleteAssetRows(tx, []string{asset.ID})
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, "DELETE_ASSET", "asset", assetID, map[string]any{"name": name})
	s.cache.Invalidate(userID)
	return nil
}

// Performance reports cost basis, cached value and recent return snapshots.
func (s *assetService) Performance(ctx context.Context, assetID string) (*AssetPerformanceReport, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	asset, err := findAsset(ctx, s.db, userID, assetID, false)
	if err != nil {
		return nil, err
	}

	snapshots := []models.AssetPerformance{}
	if err := s.db.WithContext(ctx).Where("asset_id = ?", asset.ID).
		Order("recorded_at DESC").Limit(maxPerformanceSnapshots).
		Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	cost := toFloat(asset.CostBasis())
	report := &AssetPerformanceReport{
		AssetID:      asset.ID,
		Name:         asset.Name,
		Symbol:       asset.Symbol,
		CostBasis:    cost,
		CurrentValue: toFloatPtr(asset.CurrentValue),
		LastPricedAt: asset.LastPricedAt,
		Snapshots:    snapshots,
	}
	if report.CurrentValue != nil {
		gain := *report.CurrentValue - cost
		report.GainLoss = &gain
		if cost > 0 {
			pct := gain / cost * 100
			report.GainLossPct = &pct
		}
	}
	return report, nil
}

func (s *assetService) buildAsset(userID string, in CreateAssetInput) (*models.Asset, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Asset name is required")
	}
	if !in.Type.IsValid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown asset type: "+string(in.Type))
	}
	if in.Quantity <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Quantity must be positive")
	}
	if in.PurchasePrice <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Purchase price must be positive")
	}

	risk := in.RiskLevel
	if risk == "" {
		risk = models.RiskModerate
	}
	if !risk.IsValid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Risk level must be low, moderate or high")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}

	purchaseDate := in.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = s.now()
	}

	asset := &models.Asset{
		UserID:        userID,
		Name:          name,
		Type:          in.Type,
		Symbol:        strings.ToUpper(strings.TrimSpace(in.Symbol)),
		Quantity:      in.Quantity,
		PurchasePrice: money4(in.PurchasePrice),
		PurchaseDate:  purchaseDate.UTC(),
		Currency:      currency,
		RiskLevel:     risk,
		GoalID:        in.GoalID,
	}
	if asset.GoalID != nil && strings.TrimSpace(*asset.GoalID) == "" {
		asset.GoalID = nil
	}

	switch in.Type {
	case models.AssetTypeStock:
		if in.Stock != nil {
			d := *in.Stock
			d.Base, d.AssetID = models.Base{}, ""
			asset.StockDetail = &d
		}
	case models.AssetTypeMutualFund:
		if in.MutualFund != nil {
			d := *in.MutualFund
			d.Base, d.AssetID = models.Base{}, ""
			asset.MutualFundDetail = &d
		}
	case models.AssetTypeETF:
		if in.ETF != nil {
			d := *in.ETF
			d.Base, d.AssetID = models.Base{}, ""
			asset.ETFDetail = &d
		}
	case models.AssetTypeFixedDeposit:
		if in.FixedDeposit != nil {
			d := *in.FixedDeposit
			d.Base, d.AssetID = models.Base{}, ""
			asset.FixedDepositDetail = &d
		}
	}
	return asset, nil
}

func findAsset(ctx context.Context, db *gorm.DB, userID, assetID string, withDetails bool) (*models.Asset, error) {
	q := db.WithContext(ctx)
	if withDetails {
		q = q.Preload("StockDetail").Preload("MutualFundDetail").
			Preload("ETFDetail").Preload("FixedDepositDetail")
	}
	return loadOwned[models.Asset](q, userID, assetID, apperrors.ErrAssetNotFound)
}

// requireOwnGoal fails with GOAL_NOT_FOUND unless goalID is one of userID's
// goals.
func requireOwnGoal(db *gorm.DB, userID, goalID string) error {
	_, err := loadOwned[models.Goal](db.Select("id", "user_id"), userID, goalID, apperrors.ErrGoalNotFound)
	return err
}

// deleteAssetRows removes assets and their dependent rows. It must run
// inside a transaction.
func deleteAssetRows(tx *gorm.DB, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}
	dependents := []interface{}{
		&models.StockDetail{},
		&models.MutualFundDetail{},
		&models.ETFDetail{},
		&models.FixedDepositDetail{},
		&models.AssetPerformance{},
	}
	for _, m := range dependents {
		if err := tx.Where("asset_id IN ?", assetIDs).Delete(m).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	if err := tx.Where("id IN ?", assetIDs).Delete(&models.Asset{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
