package services

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v2"
	"gorm.io/gorm"

	apperrors "goalwise/internal/errors"
	"goalwise/internal/finmath"
	"goalwise/internal/models"
)

//go:embed suggestions.yaml
var defaultCatalog []byte

// SuggestionCatalog maps each risk level to its model portfolio.
type SuggestionCatalog map[models.RiskLevel][]Suggestion

// LoadSuggestionCatalog parses the catalog at path, or the embedded default
// when path is empty.
func LoadSuggestionCatalog(path string) (SuggestionCatalog, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading suggestion catalog: %w", err)
		}
	}
	return ParseSuggestionCatalog(data)
}

// ParseSuggestionCatalog decodes and validates a YAML catalog. Every risk
// level must be present and its allocations must sum to 100.
func ParseSuggestionCatalog(data []byte) (SuggestionCatalog, error) {
	var catalog SuggestionCatalog
	if err := yaml.UnmarshalStrict(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing suggestion catalog: %w", err)
	}
	for _, risk := range []models.RiskLevel{models.RiskLow, models.RiskModerate, models.RiskHigh} {
		entries, ok := catalog[risk]
		if !ok || len(entries) == 0 {
			return nil, fmt.Errorf("suggestion catalog has no %q portfolio", risk)
		}
		var total float64
		for _, e := range entries {
			if !e.Type.IsValid() {
				return nil, fmt.Errorf("suggestion %q has unknown type %q", e.Name, e.Type)
			}
			total += e.AllocationPct
		}
		if math.Abs(total-100) > 0.01 {
			return nil, fmt.Errorf("%q allocations sum to %v, want 100", risk, total)
		}
	}
	return catalog, nil
}

// suggestionService scales the model portfolios to a caller's target.
type suggestionService struct {
	db      *gorm.DB
	catalog SuggestionCatalog
	now     func() time.Time
}

// NewSuggestionService creates a new SuggestionServicer.
func NewSuggestionService(db *gorm.DB, catalog SuggestionCatalog) SuggestionServicer {
	return &suggestionService{db: db, catalog: catalog, now: time.Now}
}

// Suggest returns the model portfolio for risk scaled to targetAmount.
// With a goalID, the goal must belong to the caller; a non-positive
// targetAmount then defaults to the goal's remaining amount and each
// allocation is projected to the goal's target date.
func (s *suggestionService) Suggest(ctx context.Context, goalID string, risk models.RiskLevel, targetAmount float64) (*SuggestionSet, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if risk == "" {
		risk = models.RiskModerate
	}
	if !risk.IsValid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Risk level must be low, moderate or high")
	}

	set := &SuggestionSet{GoalID: goalID, RiskLevel: risk}

	if goalID != "" {
		goal, err := loadOwned[models.Goal](s.db.WithContext(ctx), userID, goalID, apperrors.ErrGoalNotFound)
		if err != nil {
			return nil, err
		}
		if targetAmount <= 0 {
			remaining := toFloat(goal.TargetAmt.Sub(goal.CurrentAmt))
			if remaining <= 0 {
				remaining = toFloat(goal.TargetAmt)
			}
			targetAmount = remaining
		}
		set.HorizonYears = math.Round(finmath.YearsBetween(s.now(), goal.TargetDate)*100) / 100
	}

	if targetAmount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Target amount must be positive")
	}
	set.TargetAmount = targetAmount

	entries := s.catalog[risk]
	set.Suggestions = make([]Suggestion, 0, len(entries))
	for _, e := range entries {
		e.Amount = math.Round(targetAmount*e.AllocationPct) / 100
		if set.HorizonYears > 0 {
			projected := math.Round(finmath.FutureCost(e.Amount, set.HorizonYears, e.ExpectedReturn/100)*100) / 100
			e.ProjectedValue = &projected
		}
		set.ExpectedReturn += e.AllocationPct * e.ExpectedReturn / 100
		set.Suggestions = append(set.Suggestions, e)
	}
	set.ExpectedReturn = math.Round(set.ExpectedReturn*100) / 100
	return set, nil
}
