package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"goalwise/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewUserID returns a unique caller id for a test.
func NewUserID() string {
	return fmt.Sprintf("user_%d", nextID())
}

// CreateTestGoal creates an active medium-priority goal a year out.
func CreateTestGoal(t *testing.T, db *gorm.DB, userID string) *models.Goal {
	t.Helper()
	return CreateTestGoalWith(t, db, userID, func(*models.Goal) {})
}

// CreateTestGoalWith creates a goal after applying mutate to the defaults.
func CreateTestGoalWith(t *testing.T, db *gorm.DB, userID string, mutate func(*models.Goal)) *models.Goal {
	t.Helper()

	goal := &models.Goal{
		UserID:                     userID,
		Name:                       fmt.Sprintf("Test Goal %d", nextID()),
		Categories:                 datatypes.JSONSlice[models.GoalCategory]{models.GoalCategoryOther},
		CurrentAmt:                 decimal.NewFromInt(1000),
		TargetAmt:                  decimal.NewFromInt(10000),
		TargetAmtInflationAdjusted: decimal.NewFromInt(10600),
		TargetDate:                 time.Now().AddDate(1, 0, 0).UTC(),
		Priority:                   models.PriorityMedium,
	}
	mutate(goal)
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}

// CreateTestAsset creates a ten-unit stock holding bought at 100.
func CreateTestAsset(t *testing.T, db *gorm.DB, userID string) *models.Asset {
	t.Helper()
	return CreateTestAssetWith(t, db, userID, func(*models.Asset) {})
}

// CreateTestAssetWith creates an asset after applying mutate to the defaults.
func CreateTestAssetWith(t *testing.T, db *gorm.DB, userID string, mutate func(*models.Asset)) *models.Asset {
	t.Helper()

	n := nextID()
	asset := &models.Asset{
		UserID:        userID,
		Name:          fmt.Sprintf("Test Stock %d", n),
		Type:          models.AssetTypeStock,
		Symbol:        fmt.Sprintf("TST%d", n),
		Quantity:      10,
		PurchasePrice: decimal.NewFromInt(100),
		PurchaseDate:  time.Now().AddDate(0, -6, 0).UTC(),
		Currency:      "USD",
		RiskLevel:     models.RiskModerate,
	}
	mutate(asset)
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}
	return asset
}

// CreateTestPerformance records a return snapshot for an asset.
func CreateTestPerformance(t *testing.T, db *gorm.DB, assetID, period string, returnPct float64) *models.AssetPerformance {
	t.Helper()

	perf := &models.AssetPerformance{
		AssetID:    assetID,
		Period:     period,
		ReturnPct:  returnPct,
		RecordedAt: time.Now().UTC(),
	}
	if err := db.Create(perf).Error; err != nil {
		t.Fatalf("failed to create test performance: %v", err)
	}
	return perf
}
