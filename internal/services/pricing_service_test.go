package services

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "goalwise/internal/errors"
	"goalwise/internal/finmath"
	"goalwise/internal/models"
	"goalwise/internal/testutil"
)

func price(v float64) *float64 { return &v }

// stubLookup prices every symbol at 100 around purchase, 110 a month ago
// and 120 yesterday. Symbols in missing return no data.
func stubLookup(calls *atomic.Int32, missing ...string) finmath.PriceLookup {
	return func(_ context.Context, symbol string, from, to time.Time) ([]finmath.PricePoint, error) {
		if calls != nil {
			calls.Add(1)
		}
		for _, m := range missing {
			if m == symbol {
				return nil, apperrors.ErrNoData
			}
		}
		now := time.Now()
		if to.Before(now.Add(-48 * time.Hour)) {
			mid := from.Add(to.Sub(from) / 2)
			return []finmath.PricePoint{{Time: mid, Close: price(100)}}, nil
		}
		return []finmath.PricePoint{
			{Time: now.Add(-29 * 24 * time.Hour), Close: price(110)},
			{Time: now.Add(-15 * 24 * time.Hour), Close: nil},
			{Time: now.Add(-24 * time.Hour), Close: price(120)},
		}, nil
	}
}

// symbolRecorder wraps a lookup and records every symbol it is asked for.
type symbolRecorder struct {
	mu      sync.Mutex
	symbols map[string]int
}

func (r *symbolRecorder) wrap(next finmath.PriceLookup) finmath.PriceLookup {
	return func(ctx context.Context, symbol string, from, to time.Time) ([]finmath.PricePoint, error) {
		r.mu.Lock()
		if r.symbols == nil {
			r.symbols = make(map[string]int)
		}
		r.symbols[symbol]++
		r.mu.Unlock()
		return next(ctx, symbol, from, to)
	}
}

func (r *symbolRecorder) seen(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.symbols[symbol] > 0
}

func TestRefreshAsset(t *testing.T) {
	t.Run("stores_value_and_snapshots", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		cache := &recordingCache{}
		svc := NewPricingService(db, stubLookup(nil), NewAuditService(db), cache)
		user := testutil.NewUserID()
		asset := testutil.CreateTestAsset(t, db, user)

		result, err := svc.RefreshAsset(asCaller(user), asset.ID)
		testutil.AssertNoError(t, err)

		if result.CurrentValue != 1200 {
			t.Errorf("expected value 1200, got %v", result.CurrentValue)
		}
		if result.Growth.GrowthPercentage != 20 {
			t.Errorf("expected growth 20%%, got %v", result.Growth.GrowthPercentage)
		}
		if result.OneMonthReturn == nil || math.Abs(*result.OneMonthReturn-9.0909) > 0.001 {
			t.Errorf("expected one-month return ~9.09, got %v", result.OneMonthReturn)
		}

		var stored models.Asset
		testutil.AssertNoError(t, db.First(&stored, "id = ?", asset.ID).Error)
		if stored.CurrentValue == nil || stored.CurrentValue.String() != "1200" {
			t.Errorf("expected stored value 1200, got %v", stored.CurrentValue)
		}
		if stored.LastPricedAt == nil {
			t.Error("expected last_priced_at to be set")
		}

		var periods []string
		db.Model(&models.AssetPerformance{}).Where("asset_id = ?", asset.ID).Order("period").Pluck("period", &periods)
		if len(periods) != 2 || periods[0] != models.PerformancePeriodOneMonth || periods[1] != models.PerformancePeriodSincePurchase {
			t.Errorf("expected one_month and since_purchase snapshots, got %v", periods)
		}
		if cache.count(user) != 1 {
			t.Errorf("expected cache invalidation, got %d", cache.count(user))
		}
		if actions := auditActions(t, db, user); len(actions) != 1 || actions[0] != "REFRESH_ASSET" {
			t.Errorf("expected REFRESH_ASSET audit, got %v", actions)
		}
	})

	t.Run("exchange_suffix", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		rec := &symbolRecorder{}
		svc := NewPricingService(db, rec.wrap(stubLookup(nil, "RELIANCE")), NewAuditService(db), &recordingCache{})
		user := testutil.NewUserID()
		asset := testutil.CreateTestAssetWith(t, db, user, func(a *models.Asset) {
			a.Name = "Reliance Industries"
			a.Symbol = "RELIANCE"
			a.Currency = "INR"
			a.StockDetail = &models.StockDetail{Exchange: "NSE"}
		})

		result, err := svc.RefreshAsset(asCaller(user), asset.ID)
		testutil.AssertNoError(t, err)

		if result.Symbol != "RELIANCE.NS" {
			t.Errorf("expected RELIANCE.NS, got %s", result.Symbol)
		}
		if !rec.seen("RELIANCE.NS") || rec.seen("RELIANCE") {
			t.Errorf("expected lookups for RELIANCE.NS only, got %v", rec.symbols)
		}
	})

	t.Run("etf_exchange_suffix", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		rec := &symbolRecorder{}
		svc := NewPricingService(db, rec.wrap(stubLookup(nil)), NewAuditService(db), &recordingCache{})
		user := testutil.NewUserID()
		asset := testutil.CreateTestAssetWith(t, db, user, func(a *models.Asset) {
			a.Type = models.AssetTypeETF
			a.Symbol = "vusa"
			a.ETFDetail = &models.ETFDetail{Exchange: "LSE"}
		})

		_, err := svc.RefreshAsset(asCaller(user), asset.ID)
		testutil.AssertNoError(t, err)
		if !rec.seen("VUSA.L") {
			t.Errorf("expected lookup for VUSA.L, got %v", rec.symbols)
		}
	})

	t.Run("not_priceable", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPricingService(db, stubLookup(nil), NewAuditService(db), &recordingCache{})
		user := testutil.NewUserID()
		asset := testutil.CreateTestAssetWith(t, db, user, func(a *models.Asset) {
			a.Type = models.AssetTypeFixedDeposit
			a.Symbol = ""
		})

		_, err := svc.RefreshAsset(asCaller(user), asset.ID)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("no_data", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		cache := &recordingCache{}
		svc := NewPricingService(db, stubLookup(nil, "GONE"), NewAuditService(db), cache)
		user := testutil.NewUserID()
		asset := testutil.CreateTestAssetWith(t, db, user, func(a *models.Asset) { a.Symbol = "GONE" })

		_, err := svc.RefreshAsset(asCaller(user), asset.ID)
		if err == nil {
			t.Fatal("expected an error")
		}
		if cache.count(user) != 0 {
			t.Error("expected no invalidation on failure")
		}
		var count int64
		db.Model(&models.AssetPerformance{}).Where("asset_id = ?", asset.ID).Count(&count)
		if count != 0 {
			t.Errorf("expected no snapshots, got %d", count)
		}
	})

	t.Run("other_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		var calls atomic.Int32
		svc := NewPricingService(db, stubLookup(&calls), NewAuditService(db), &recordingCache{})
		asset := testutil.CreateTestAsset(t, db, testutil.NewUserID())

		_, err := svc.RefreshAsset(asCaller(testutil.NewUserID()), asset.ID)
		testutil.AssertAppError(t, err, "ASSET_NOT_FOUND")
		if calls.Load() != 0 {
			t.Error("expected no market data lookups for a foreign asset")
		}
	})
}

func TestRefreshAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	cache := &recordingCache{}
	svc := NewPricingService(db, stubLookup(nil, "GONE"), NewAuditService(db), cache)
	alice, bob := testutil.NewUserID(), testutil.NewUserID()

	testutil.CreateTestAsset(t, db, alice)
	testutil.CreateTestAsset(t, db, alice)
	testutil.CreateTestAsset(t, db, bob)
	failing := testutil.CreateTestAssetWith(t, db, bob, func(a *models.Asset) { a.Symbol = "GONE" })
	testutil.CreateTestAssetWith(t, db, bob, func(a *models.Asset) {
		a.Type = models.AssetTypeGold
		a.Symbol = ""
	})

	summary, err := svc.RefreshAll(context.Background())
	testutil.AssertNoError(t, err)

	if summary.Total != 4 {
		t.Errorf("expected 4 priceable assets, got %d", summary.Total)
	}
	if summary.Refreshed != 3 {
		t.Errorf("expected 3 refreshed, got %d", summary.Refreshed)
	}
	if len(summary.Failed) != 1 || summary.Failed[0].AssetID != failing.ID {
		t.Errorf("expected failure for %s, got %+v", failing.ID, summary.Failed)
	}
	if cache.count(alice) != 1 || cache.count(bob) != 1 {
		t.Errorf("expected one invalidation per owner, got %v", cache.users)
	}

	t.Run("exchange_suffix", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		rec := &symbolRecorder{}
		svc := NewPricingService(db, rec.wrap(stubLookup(nil, "RELIANCE")), NewAuditService(db), &recordingCache{})
		testutil.CreateTestAssetWith(t, db, testutil.NewUserID(), func(a *models.Asset) {
			a.Symbol = "RELIANCE"
			a.StockDetail = &models.StockDetail{Exchange: "NSE"}
		})

		summary, err := svc.RefreshAll(context.Background())
		testutil.AssertNoError(t, err)
		if summary.Refreshed != 1 || len(summary.Failed) != 0 {
			t.Errorf("expected the NSE listing to refresh, got %+v", summary)
		}
		if !rec.seen("RELIANCE.NS") {
			t.Errorf("expected lookup for RELIANCE.NS, got %v", rec.symbols)
		}
	})

	var sources []string
	db.Model(&models.AuditLog{}).Distinct("source").Pluck("source", &sources)
	if len(sources) != 1 || sources[0] != models.AuditSourcePipeline {
		t.Errorf("expected pipeline audit source, got %v", sources)
	}
}
