package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"goalwise/internal/auth"
	apperrors "goalwise/internal/errors"
	"goalwise/internal/finmath"
	"goalwise/internal/logger"
	"goalwise/internal/marketdata"
	"goalwise/internal/models"
)

const (
	refreshConcurrency = 4
	oneMonthWindow     = 30 * 24 * time.Hour
)

// pricingService reprices holdings through a PriceLookup and records
// return snapshots.
type pricingService struct {
	db     *gorm.DB
	lookup finmath.PriceLookup
	audit  AuditServicer
	cache  CacheInvalidator
	now    func() time.Time
}

// NewPricingService creates a new PricingServicer.
func NewPricingService(db *gorm.DB, lookup finmath.PriceLookup, audit AuditServicer, cache CacheInvalidator) PricingServicer {
	return &pricingService{db: db, lookup: lookup, audit: audit, cache: cache, now: time.Now}
}

// RefreshAsset reprices one of the caller's assets.
func (s *pricingService) RefreshAsset(ctx context.Context, assetID string) (*RefreshResult, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	asset, err := findAsset(ctx, s.db, userID, assetID, true)
	if err != nil {
		return nil, err
	}
	if !asset.Type.Priceable() || asset.Symbol == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
			"Asset "+asset.Name+" has no market symbol to price")
	}

	result, err := s.refresh(ctx, asset)
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, "REFRESH_ASSET", "asset", asset.ID, map[string]any{
		"symbol":        asset.Symbol,
		"current_value": result.CurrentValue,
	})
	s.cache.Invalidate(userID)
	return result, nil
}

// RefreshAll reprices every priceable asset with a symbol. Failures are
// collected per asset; only a failure to list assets aborts the run.
func (s *pricingService) RefreshAll(ctx context.Context) (*RefreshSummary, error) {
	log := logger.Named("pricing")

	var assets []models.Asset
	types := []models.AssetType{models.AssetTypeStock, models.AssetTypeETF, models.AssetTypeMutualFund, models.AssetTypeCrypto}
	if err := s.db.WithContext(ctx).
		Preload("StockDetail").Preload("ETFDetail").
		Where("type IN ? AND symbol <> ''", types).
		Order("user_id, id").
		Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	summary := &RefreshSummary{Total: len(assets), Failed: []RefreshFailure{}}
	touched := make(map[string]struct{})
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for i := range assets {
		asset := &assets[i]
		g.Go(func() error {
			actx := WithAuditSource(auth.WithCaller(gctx, auth.CallerID(asset.UserID)), models.AuditSourcePipeline, "")
			result, err := s.refresh(actx, asset)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warnw("asset refresh failed", "asset_id", asset.ID, "symbol", asset.Symbol, "error", err)
				summary.Failed = append(summary.Failed, RefreshFailure{
					AssetID: asset.ID,
					Symbol:  asset.Symbol,
					Error:   err.Error(),
				})
				return nil
			}
			summary.Refreshed++
			touched[asset.UserID] = struct{}{}
			s.audit.Log(actx, "REFRESH_ASSET", "asset", asset.ID, map[string]any{
				"symbol":        asset.Symbol,
				"current_value": result.CurrentValue,
			})
			return nil
		})
	}
	_ = g.Wait()

	for userID := range touched {
		s.cache.Invalidate(userID)
	}
	log.Infow("refresh complete", "total", summary.Total, "refreshed", summary.Refreshed, "failed", len(summary.Failed))
	return summary, nil
}

// refresh computes growth since purchase and the trailing one-month
// return, then stores the new value with both snapshots.
func (s *pricingService) refresh(ctx context.Context, asset *models.Asset) (*RefreshResult, error) {
	now := s.now()
	symbol := quoteSymbol(asset)
	growth := finmath.AssetGrowth(ctx, symbol, asset.PurchaseDate, asset.Quantity, s.lookup, now)
	if !growth.Success {
		return nil, growth.Err()
	}

	result := &RefreshResult{
		AssetID:      asset.ID,
		Symbol:       symbol,
		CurrentValue: toFloat(money(growth.CurrentValue)),
		Growth:       growth,
		PricedAt:     now,
	}

	// A missing one-month return does not fail the refresh.
	if points, err := s.lookup(ctx, symbol, now.Add(-oneMonthWindow), now); err == nil {
		if r, err := finmath.PeriodReturn(points); err == nil {
			result.OneMonthReturn = &r
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Asset{}).Where("id = ?", asset.ID).Updates(map[string]any{
			"current_value":  money(growth.CurrentValue),
			"last_priced_at": now,
		}).Error; err != nil {
			return err
		}
		snapshots := []models.AssetPerformance{{
			AssetID:    asset.ID,
			Period:     models.PerformancePeriodSincePurchase,
			ReturnPct:  growth.GrowthPercentage,
			RecordedAt: now,
		}}
		if result.OneMonthReturn != nil {
			snapshots = append(snapshots, models.AssetPerformance{
				AssetID:    asset.ID,
				Period:     models.PerformancePeriodOneMonth,
				ReturnPct:  *result.OneMonthReturn,
				RecordedAt: now,
			})
		}
		return tx.Create(&snapshots).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// quoteSymbol is the market-data symbol for asset: listings on a non-US
// exchange carry the provider's exchange suffix.
func quoteSymbol(asset *models.Asset) string {
	var exchange string
	switch {
	case asset.StockDetail != nil:
		exchange = asset.StockDetail.Exchange
	case asset.ETFDetail != nil:
		exchange = asset.ETFDetail.Exchange
	}
	return marketdata.YahooSymbol(asset.Symbol, exchange)
}
