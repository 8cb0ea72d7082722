// Package finmath holds the deterministic money math behind goals and
// holdings: inflation projection, retirement corpus sizing, goal progress
// and purchase-to-date growth. Nothing here performs I/O except through the
// price lookup handed to AssetGrowth.
package finmath

import (
	"math"
	"sort"
	"strings"
	"time"

	apperrors "goalwise/internal/errors"
)

// Defaults used when a caller does not override them.
const (
	DefaultInflationRate        = 0.06
	DefaultLifeExpectancy       = 85
	DefaultPostRetirementReturn = 0.05
)

const (
	daysPerYear  = 365.25
	daysPerMonth = 30
)

// FutureCost projects currentCost forward by years of compounded inflation.
func FutureCost(currentCost, years, inflationRate float64) float64 {
	return currentCost * math.Pow(1+inflationRate, years)
}

// YearsBetween returns the fractional number of years from "from" to "to",
// floored at zero.
func YearsBetween(from, to time.Time) float64 {
	years := to.Sub(from).Hours() / 24 / daysPerYear
	if years < 0 {
		return 0
	}
	return years
}

// RetirementOption overrides a retirement corpus assumption.
type RetirementOption func(*retirementParams)

type retirementParams struct {
	lifeExpectancy       int
	inflationRate        float64
	postRetirementReturn float64
}

// WithLifeExpectancy sets the age up to which expenses must be funded.
func WithLifeExpectancy(age int) RetirementOption {
	return func(p *retirementParams) { p.lifeExpectancy = age }
}

// WithInflationRate sets the annual inflation rate applied until retirement.
func WithInflationRate(rate float64) RetirementOption {
	return func(p *retirementParams) { p.inflationRate = rate }
}

// WithPostRetirementReturn sets the annual return earned on the corpus.
func WithPostRetirementReturn(rate float64) RetirementOption {
	return func(p *retirementParams) { p.postRetirementReturn = rate }
}

// RetirementCorpus sizes the lump sum needed at retirement to fund the
// inflated monthly expenses until life expectancy. The corpus is the present
// value of an annuity paying one year of expenses for each retirement year,
// rounded to the nearest whole currency unit.
func RetirementCorpus(monthlyExpenses float64, currentAge, retirementAge int, opts ...RetirementOption) (float64, error) {
	p := retirementParams{
		lifeExpectancy:       DefaultLifeExpectancy,
		inflationRate:        DefaultInflationRate,
		postRetirementReturn: DefaultPostRetirementReturn,
	}
	for _, opt := range opts {
		opt(&p)
	}

	if monthlyExpenses <= 0 || math.IsNaN(monthlyExpenses) {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidDomainInput, "Monthly expenses must be positive")
	}
	if retirementAge <= currentAge {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidDomainInput, "Retirement age must be greater than current age")
	}
	retirementYears := p.lifeExpectancy - retirementAge
	if retirementYears <= 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidDomainInput, "Life expectancy must be greater than retirement age")
	}

	yearsUntilRetirement := float64(retirementAge - currentAge)
	futureMonthly := FutureCost(monthlyExpenses, yearsUntilRetirement, p.inflationRate)
	annual := futureMonthly * 12

	r := p.postRetirementReturn
	n := float64(retirementYears)
	var corpus float64
	if r == 0 {
		corpus = annual * n
	} else {
		corpus = annual * (1 - math.Pow(1+r, -n)) / r
	}
	return math.Round(corpus), nil
}

// Progress describes how far a goal is from its target.
type Progress struct {
	PercentComplete float64 `json:"percent_complete"`
	// RemainingAmount is negative when the goal is overfunded.
	RemainingAmount float64 `json:"remaining_amount"`
	// DaysRemaining is floored at zero; SignedDaysRemaining is not.
	DaysRemaining       int     `json:"days_remaining"`
	SignedDaysRemaining int     `json:"signed_days_remaining"`
	MonthsRemaining     float64 `json:"months_remaining"`
	// RequiredMonthlySaving is nil once the target date has passed.
	RequiredMonthlySaving *float64 `json:"required_monthly_saving"`
	Overdue               bool     `json:"overdue"`
}

// GoalProgress computes completion and the monthly saving still needed.
// Months are approximated as 30 days.
func GoalProgress(currentAmt, targetAmt float64, targetDate, now time.Time) Progress {
	var pct float64
	if targetAmt > 0 {
		pct = clamp(currentAmt/targetAmt*100, 0, 100)
	}

	signedDays := int(math.Ceil(targetDate.Sub(now).Hours() / 24))
	days := signedDays
	if days < 0 {
		days = 0
	}
	months := float64(days) / daysPerMonth
	remaining := targetAmt - currentAmt

	p := Progress{
		PercentComplete:     pct,
		RemainingAmount:     remaining,
		DaysRemaining:       days,
		SignedDaysRemaining: signedDays,
		MonthsRemaining:     months,
		Overdue:             signedDays <= 0,
	}
	if months > 0 {
		saving := remaining / months
		p.RequiredMonthlySaving = &saving
	}
	return p
}

// PriorityRank maps a priority to its sort rank. Comparison is
// case-insensitive and unknown priorities sort last.
func PriorityRank(priority string) int {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 999
	}
}

// SortByPriority stably orders items by priority rank, then by progress
// percentage descending. Items equal on both keys keep their input order.
func SortByPriority[T any](items []T, priority func(T) string, progress func(T) float64) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := PriorityRank(priority(items[i])), PriorityRank(priority(items[j]))
		if ri != rj {
			return ri < rj
		}
		return progress(items[i]) > progress(items[j])
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
