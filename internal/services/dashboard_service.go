package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"gorm.io/gorm"

	apperrors "goalwise/internal/errors"
	"goalwise/internal/finmath"
	"goalwise/internal/logger"
	"goalwise/internal/models"
)

const dashboardListSize = 5

// dashboardService builds per-owner read models and caches them until a
// mutation invalidates them or the TTL expires.
//
// Each owner has a version that Invalidate bumps. A read model is only
// stored if the version it was built under is still current, so a build
// that overlaps a mutation is never cached.
type dashboardService struct {
	db    *gorm.DB
	cache *ristretto.Cache
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	versions map[string]uint64
}

// NewDashboardService creates a new DashboardServicer. A zero ttl disables
// caching.
func NewDashboardService(db *gorm.DB, ttl time.Duration) (DashboardServicer, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating dashboard cache: %w", err)
	}
	return &dashboardService{
		db:       db,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
		versions: make(map[string]uint64),
	}, nil
}

func summaryKey(userID string) string   { return "dashboard:" + userID }
func portfolioKey(userID string) string { return "portfolio:" + userID }

// Invalidate drops the cached dashboard and portfolio of userID.
func (s *dashboardService) Invalidate(userID string) {
	s.mu.Lock()
	s.versions[userID]++
	s.cache.Del(summaryKey(userID))
	s.cache.Del(portfolioKey(userID))
	s.cache.Wait()
	s.mu.Unlock()
	logger.Named("dashboard").Debugw("cache invalidated", "user_id", userID)
}

// Summary returns the caller's dashboard: total holding value, active goal
// count, mean one-month return, the five most urgent goals and the five
// newest assets.
func (s *dashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.cached(summaryKey(userID)); ok {
		if summary, ok := cached.(*DashboardSummary); ok {
			return summary, nil
		}
	}
	version := s.version(userID)

	db := s.db.WithContext(ctx)

	var goals []models.Goal
	if err := db.Where("user_id = ? AND completed_at IS NULL", userID).Find(&goals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var assets []models.Asset
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	growth, err := s.monthlyGrowth(db, assets)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rows := make([]DashboardGoal, 0, len(goals))
	for _, g := range goals {
		current, target := toFloat(g.CurrentAmt), toFloat(g.TargetAmt)
		p := finmath.GoalProgress(current, target, g.TargetDate, now)
		rows = append(rows, DashboardGoal{
			ID:            g.ID,
			Name:          g.Name,
			Priority:      g.Priority,
			CurrentAmt:    current,
			TargetAmt:     target,
			TargetDate:    g.TargetDate,
			ProgressPct:   p.PercentComplete,
			DaysRemaining: p.DaysRemaining,
		})
	}
	finmath.SortByPriority(rows,
		func(g DashboardGoal) string { return string(g.Priority) },
		func(g DashboardGoal) float64 { return g.ProgressPct })
	if len(rows) > dashboardListSize {
		rows = rows[:dashboardListSize]
	}

	var total float64
	for i := range assets {
		total += toFloat(assets[i].ValueOrCost())
	}
	recent := assets
	if len(recent) > dashboardListSize {
		recent = recent[:dashboardListSize]
	}
	if recent == nil {
		recent = []models.Asset{}
	}

	summary := &DashboardSummary{
		TotalAssetsValue: total,
		ActiveGoalsCount: int64(len(goals)),
		MonthlyGrowth:    growth,
		Goals:            rows,
		RecentAssets:     recent,
	}
	s.store(userID, version, summaryKey(userID), summary)
	return summary, nil
}

// monthlyGrowth is the mean of each asset's latest one-month return. Assets
// without a snapshot are skipped; no snapshots at all yields 0.
func (s *dashboardService) monthlyGrowth(db *gorm.DB, assets []models.Asset) (float64, error) {
	if len(assets) == 0 {
		return 0, nil
	}
	ids := make([]string, len(assets))
	for i := range assets {
		ids[i] = assets[i].ID
	}

	var snapshots []models.AssetPerformance
	if err := db.Where("asset_id IN ? AND period = ?", ids, models.PerformancePeriodOneMonth).
		Order("recorded_at DESC").Find(&snapshots).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	latest := make(map[string]float64, len(assets))
	for _, snap := range snapshots {
		if _, seen := latest[snap.AssetID]; !seen {
			latest[snap.AssetID] = snap.ReturnPct
		}
	}

	var sum float64
	for _, r := range latest {
		sum += r
	}
	n := len(latest)
	if n == 0 {
		n = 1
	}
	return sum / float64(n), nil
}

// Portfolio aggregates all of the caller's holdings by type and risk.
func (s *dashboardService) Portfolio(ctx context.Context) (*PortfolioStats, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.cached(portfolioKey(userID)); ok {
		if stats, ok := cached.(*PortfolioStats); ok {
			return stats, nil
		}
	}
	version := s.version(userID)

	var assets []models.Asset
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	stats := &PortfolioStats{
		ByType: make(map[models.AssetType]Bucket),
		ByRisk: make(map[models.RiskLevel]Bucket),
	}
	for i := range assets {
		a := &assets[i]
		value := toFloat(a.ValueOrCost())
		stats.TotalValue += value
		stats.TotalCostBasis += toFloat(a.CostBasis())
		stats.AssetCount++
		if a.CurrentValue == nil {
			stats.UnpricedCount++
		}
		stats.ByType[a.Type] = addTo(stats.ByType[a.Type], value)
		stats.ByRisk[a.RiskLevel] = addTo(stats.ByRisk[a.RiskLevel], value)
		if a.GoalID != nil {
			stats.LinkedToGoals = addTo(stats.LinkedToGoals, value)
		}
	}
	stats.TotalGainLoss = stats.TotalValue - stats.TotalCostBasis
	if stats.TotalCostBasis > 0 {
		stats.GainLossPct = stats.TotalGainLoss / stats.TotalCostBasis * 100
	}

	s.store(userID, version, portfolioKey(userID), stats)
	return stats, nil
}

func addTo(b Bucket, value float64) Bucket {
	b.Value += value
	b.Count++
	return b
}

func (s *dashboardService) cached(key string) (interface{}, bool) {
	if s.ttl <= 0 {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *dashboardService) version(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[userID]
}

// store caches value unless userID was invalidated after version was read.
func (s *dashboardService) store(userID string, version uint64, key string, value interface{}) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[userID] != version {
		logger.Named("dashboard").Debugw("skipped caching stale read model", "user_id", userID, "key", key)
		return
	}
	s.cache.SetWithTTL(key, value, 1, s.ttl)
	s.cache.Wait()
}
