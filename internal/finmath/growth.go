package finmath

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	apperrors "goalwise/internal/errors"
)

const (
	historicalWindow   = 7 * 24 * time.Hour
	trailingWindow     = 30 * 24 * time.Hour
	maxGrowthMagnitude = 1000.0
)

// PricePoint is a single closing price observation. Close is nil when the
// provider reported no close for that bar.
type PricePoint struct {
	Time  time.Time
	Close *float64
}

// PriceLookup returns the price points for symbol between from and to.
type PriceLookup func(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error)

// GrowthResult is the outcome of AssetGrowth. Callers branch on Success;
// on failure ErrorCode and Error describe what went wrong.
type GrowthResult struct {
	Success          bool      `json:"success"`
	Symbol           string    `json:"symbol"`
	HistoricalPrice  float64   `json:"historical_price,omitempty"`
	HistoricalDate   time.Time `json:"historical_date,omitempty"`
	LatestPrice      float64   `json:"latest_price,omitempty"`
	LatestDate       time.Time `json:"latest_date,omitempty"`
	GrowthPercentage float64   `json:"growth_percentage"`
	CurrentValue     float64   `json:"current_value,omitempty"`
	ErrorCode        string    `json:"error_code,omitempty"`
	Error            string    `json:"error,omitempty"`

	err error
}

// Err returns the typed failure behind an unsuccessful result, or nil.
func (r GrowthResult) Err() error {
	if r.Success {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return apperrors.WithMessage(apperrors.ErrDataUnavailable, r.Error)
}

// AssetGrowth measures how a holding of quantity units of symbol has grown
// since purchaseDate. The historical reference is the bar nearest to the
// purchase date within a 7-day window either side; the latest price is the
// most recent bar of the trailing 30 days. Growth is clamped to ±1000%.
func AssetGrowth(ctx context.Context, symbol string, purchaseDate time.Time, quantity float64, lookup PriceLookup, now time.Time) GrowthResult {
	result := GrowthResult{Symbol: symbol}

	if purchaseDate.After(now) {
		purchaseDate = now
	}

	historical, err := lookup(ctx, symbol, purchaseDate.Add(-historicalWindow), purchaseDate.Add(historicalWindow))
	if err != nil {
		return failGrowth(result, lookupError(err))
	}
	if len(historical) == 0 {
		return failGrowth(result, apperrors.WithMessage(apperrors.ErrDataUnavailable,
			"No historical price data around "+purchaseDate.Format("2006-01-02")+" for "+symbol))
	}

	recent, err := lookup(ctx, symbol, now.Add(-trailingWindow), now)
	if err != nil {
		return failGrowth(result, lookupError(err))
	}
	if len(recent) == 0 {
		return failGrowth(result, apperrors.WithMessage(apperrors.ErrDataUnavailable,
			"No recent price data for "+symbol))
	}

	hist := nearest(historical, purchaseDate)
	latest := mostRecent(recent)

	if !validClose(hist.Close) || !validClose(latest.Close) {
		return failGrowth(result, apperrors.WithMessage(apperrors.ErrInvalidPrice, "Missing close price for "+symbol))
	}
	if *hist.Close <= 0 {
		return failGrowth(result, apperrors.WithMessage(apperrors.ErrInvalidPrice, "Historical price for "+symbol+" is not positive"))
	}

	growth := (*latest.Close - *hist.Close) / *hist.Close * 100

	result.Success = true
	result.HistoricalPrice = *hist.Close
	result.HistoricalDate = hist.Time
	result.LatestPrice = *latest.Close
	result.LatestDate = latest.Time
	result.GrowthPercentage = clamp(growth, -maxGrowthMagnitude, maxGrowthMagnitude)
	result.CurrentValue = quantity * *latest.Close
	return result
}

// nearest returns the point closest to target; ties keep the first seen.
func nearest(points []PricePoint, target time.Time) PricePoint {
	best := points[0]
	bestDist := absDuration(points[0].Time.Sub(target))
	for _, p := range points[1:] {
		if d := absDuration(p.Time.Sub(target)); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

func mostRecent(points []PricePoint) PricePoint {
	latest := points[0]
	for _, p := range points[1:] {
		if p.Time.After(latest.Time) {
			latest = p
		}
	}
	return latest
}

func validClose(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// lookupError folds "symbol has no bars" into DataUnavailable and keeps
// every other gateway error as is.
func lookupError(err error) error {
	if errors.Is(err, apperrors.ErrNoData) {
		return apperrors.Wrap(apperrors.ErrDataUnavailable, err)
	}
	return err
}

func failGrowth(result GrowthResult, err error) GrowthResult {
	result.Success = false
	result.err = err
	result.ErrorCode = apperrors.CodeOf(err)
	result.Error = err.Error()
	if strings.TrimSpace(result.Error) == "" {
		result.Error = "price lookup failed"
	}
	return result
}

// PeriodReturn is the percentage change from the earliest to the latest
// valid close in points. It fails with DataUnavailable when fewer than two
// valid closes exist and InvalidPrice when the earliest close is not positive.
func PeriodReturn(points []PricePoint) (float64, error) {
	var first, last *PricePoint
	for i := range points {
		p := &points[i]
		if !validClose(p.Close) {
			continue
		}
		if first == nil || p.Time.Before(first.Time) {
			first = p
		}
		if last == nil || p.Time.After(last.Time) {
			last = p
		}
	}
	if first == nil || last == nil || first == last {
		return 0, apperrors.WithMessage(apperrors.ErrDataUnavailable, "Not enough price data for period return")
	}
	if *first.Close <= 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidPrice, "Period start price is not positive")
	}
	ret := (*last.Close - *first.Close) / *first.Close * 100
	return clamp(ret, -maxGrowthMagnitude, maxGrowthMagnitude), nil
}
