package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "goalwise/internal/errors"
	"goalwise/internal/finmath"
	"goalwise/internal/models"
	"goalwise/internal/pagination"
)

// goalService handles goal-related business logic.
type goalService struct {
	db            *gorm.DB
	assets        AssetServicer
	audit         AuditServicer
	cache         CacheInvalidator
	inflationRate float64
	now           func() time.Time
}

// NewGoalService creates a new GoalServicer. Suggested assets passed to
// CreateWithAssets are created through assets.
func NewGoalService(db *gorm.DB, assets AssetServicer, audit AuditServicer, cache CacheInvalidator, inflationRate float64) GoalServicer {
	return &goalService{
		db:            db,
		assets:        assets,
		audit:         audit,
		cache:         cache,
		inflationRate: inflationRate,
		now:           time.Now,
	}
}

// Create validates and stores a new goal.
func (s *goalService) Create(ctx context.Context, in CreateGoalInput) (*models.Goal, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	goal, err := s.buildGoal(userID, in)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.audit.Log(ctx, "CREATE_GOAL", "goal", goal.ID, map[string]any{
		"name":       goal.Name,
		"target_amt": goal.TargetAmt.String(),
		"categories": goal.Categories,
	})
	s.cache.Invalidate(userID)
	return goal, nil
}

// CreateWithAssets creates the goal and then each suggested asset linked to
// it. Asset failures do not roll the goal back; they are reported per asset
// so the caller can retry only what failed.
func (s *goalService) CreateWithAssets(ctx context.Context, in CreateGoalInput, assets []CreateAssetInput) (*CreateGoalResult, error) {
	goal, err := s.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	result := &CreateGoalResult{Goal: goal, Assets: []models.Asset{}, FailedAssets: []FailedAsset{}}
	for i, a := range assets {
		a.GoalID = &goal.ID
		asset, err := s.assets.Create(ctx, a)
		if err != nil {
			result.FailedAssets = append(result.FailedAssets, FailedAsset{Index: i, Name: a.Name, Error: err.Error()})
			continue
		}
		result.Assets = append(result.Assets, *asset)
	}
	return result, nil
}

// List returns a page of the caller's goals, soonest target date first.
func (s *goalService) List(ctx context.Context, page pagination.PageRequest, status GoalStatus) (*pagination.PageResponse[models.Goal], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	page.Normalize()

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", userID)
		switch status {
		case GoalStatusActive:
			db = db.Where("completed_at IS NULL")
		case GoalStatusCompleted:
			db = db.Where("completed_at IS NOT NULL")
		}
		return db
	}

	var totalItems int64
	if err := s.db.WithContext(ctx).Model(&models.Goal{}).Scopes(scope).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var goals []models.Goal
	if err := s.db.WithContext(ctx).Scopes(scope, pagination.Paginate(page)).
		Order("target_date ASC").Find(&goals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(goals, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetByID returns the caller's goal with its linked assets. A goal owned by
// someone else is reported as not found.
func (s *goalService) GetByID(ctx context.Context, goalID string) (*models.Goal, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, s.db, userID, goalID, true)
}

func (s *goalService) find(ctx context.Context, db *gorm.DB, userID, goalID string, withAssets bool) (*models.Goal, error) {
	q := db.WithContext(ctx)
	if withAssets {
		q = q.Preload("Assets", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") })
	}
	return loadOwned[models.Goal](q, userID, goalID, apperrors.ErrGoalNotFound)
}

// SearchByName returns the caller's goals whose name or description
// contains query, or whose category equals it, case-insensitively. No match
// is an empty slice, not an error.
func (s *goalService) SearchByName(ctx context.Context, query string) ([]models.Goal, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Search query is required")
	}

	var all []models.Goal
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at ASC").Find(&all).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	categoryQuery := strings.ReplaceAll(query, " ", "_")
	matches := []models.Goal{}
	for _, g := range all {
		if strings.Contains(strings.ToLower(g.Name), query) ||
			strings.Contains(strings.ToLower(g.Description), query) ||
			g.HasCategory(models.GoalCategory(categoryQuery)) {
			matches = append(matches, g)
		}
	}
	return matches, nil
}

// Update applies a partial update. The inflation-adjusted target is
// recomputed whenever the target amount or date changes.
func (s *goalService) Update(ctx context.Context, goalID string, in UpdateGoalInput) (*models.Goal, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	goal, err := s.find(ctx, s.db, userID, goalID, false)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Goal name cannot be empty")
		}
		goal.Name = name
		changes["name"] = name
	}
	if in.Description != nil {
		goal.Description = strings.TrimSpace(*in.Description)
		changes["description"] = goal.Description
	}
	if in.Categories != nil {
		cats, err := normalizeCategories(in.Categories)
		if err != nil {
			return nil, err
		}
		goal.Categories = cats
		changes["categories"] = cats
	}
	if in.CurrentAmt != nil {
		if *in.CurrentAmt < 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Current amount cannot be negative")
		}
		goal.CurrentAmt = money(*in.CurrentAmt)
		changes["current_amt"] = goal.CurrentAmt.String()
	}
	if in.Priority != nil {
		p, err := normalizePriority(*in.Priority)
		if err != nil {
			return nil, err
		}
		goal.Priority = p
		changes["priority"] = p
	}
	applyDetails(goal, in.Details)

	retargeted := false
	if in.TargetAmt == nil && detailsTouchRetirement(in.Details) {
		if err := s.retirementError(goal); err != nil {
			return nil, err
		}
		if target, ok := s.retirementTarget(goal); ok {
			goal.TargetAmt = money(target)
			retargeted = true
		}
	}
	if in.TargetAmt != nil {
		if *in.TargetAmt <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Target amount must be positive")
		}
		goal.TargetAmt = money(*in.TargetAmt)
		retargeted = true
	}
	if in.TargetDate != nil {
		if in.TargetDate.IsZero() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Target date is required")
		}
		goal.TargetDate = in.TargetDate.UTC()
		retargeted = true
		changes["target_date"] = goal.TargetDate
	}
	if retargeted {
		goal.TargetAmtInflationAdjusted = s.inflationAdjusted(toFloat(goal.TargetAmt), goal.TargetDate)
		changes["target_amt"] = goal.TargetAmt.String()
	}

	if err := s.db.WithContext(ctx).Save(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.audit.Log(ctx, "UPDATE_GOAL", "goal", goal.ID, changes)
	s.cache.Invalidate(userID)
	return goal, nil
}

// Complete marks the goal as achieved. Completing a completed goal keeps
// the original completion time.
func (s *goalService) Complete(ctx context.Context, goalID string) (*models.Goal, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	goal, err := s.find(ctx, s.db, userID, goalID, false)
	if err != nil {
		return nil, err
	}
	if goal.CompletedAt != nil {
		return goal, nil
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(goal).Update("completed_at", now).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	goal.CompletedAt = &now

	s.audit.Log(ctx, "COMPLETE_GOAL", "goal", goal.ID, nil)
	s.cache.Invalidate(userID)
	return goal, nil
}

// Delete removes the goal and every asset linked to it in one transaction.
func (s *goalService) Delete(ctx context.Context, goalID string) (*DeleteGoalResult, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	result := &DeleteGoalResult{GoalID: goalID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		goal, err := s.find(ctx, tx, userID, goalID, false)
		if err != nil {
			return err
		}
		result.Name = goal.Name

		var assetIDs []string
		if err := tx.Model(&models.Asset{}).
			Where("goal_id = ? AND user_id = ?", goal.ID, userID).
			Pluck("id", &assetIDs).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := deleteAssetRows(tx, assetIDs); err != nil {
			return err
		}
		result.DeletedAssets = int64(len(assetIDs))

		if err := tx.Delete(goal).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, "DELETE_GOAL", "goal", goalID, map[string]any{
		"name":           result.Name,
		"deleted_assets": result.DeletedAssets,
	})
	s.cache.Invalidate(userID)
	return result, nil
}

// Progress computes the goal's progress as of now.
func (s *goalService) Progress(ctx context.Context, goalID string) (*GoalProgressReport, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	goal, err := s.find(ctx, s.db, userID, goalID, false)
	if err != nil {
		return nil, err
	}

	current, target := toFloat(goal.CurrentAmt), toFloat(goal.TargetAmt)
	return &GoalProgressReport{
		GoalID:     goal.ID,
		Name:       goal.Name,
		CurrentAmt: current,
		TargetAmt:  target,
		TargetDate: goal.TargetDate,
		Completed:  !goal.IsActive(),
		Progress:   finmath.GoalProgress(current, target, goal.TargetDate, s.now()),
	}, nil
}

// buildGoal validates a create input and derives the computed amounts.
func (s *goalService) buildGoal(userID string, in CreateGoalInput) (*models.Goal, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Goal name is required")
	}
	cats, err := normalizeCategories(in.Categories)
	if err != nil {
		return nil, err
	}
	if in.CurrentAmt < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Current amount cannot be negative")
	}
	priority, err := normalizePriority(in.Priority)
	if err != nil {
		return nil, err
	}

	goal := &models.Goal{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Categories:  cats,
		CurrentAmt:  money(in.CurrentAmt),
		TargetDate:  in.TargetDate.UTC(),
		Priority:    priority,
	}
	applyDetails(goal, in.Details)

	now := s.now()
	target := in.TargetAmt
	if corpus, ok := s.retirementTarget(goal); ok {
		target = corpus
		if in.TargetDate.IsZero() {
			years := *goal.RetirementAge - *goal.CurrentAge
			goal.TargetDate = now.AddDate(years, 0, 0).UTC()
		}
	} else if err := s.retirementError(goal); err != nil {
		return nil, err
	}

	if target <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Target amount must be positive")
	}
	if goal.TargetDate.IsZero() || !goal.TargetDate.After(now) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Target date must be in the future")
	}

	goal.TargetAmt = money(target)
	goal.TargetAmtInflationAdjusted = s.inflationAdjusted(target, goal.TargetDate)
	return goal, nil
}

// retirementTarget returns the corpus for a retirement goal whose inputs
// are complete and valid.
func (s *goalService) retirementTarget(goal *models.Goal) (float64, bool) {
	if !hasRetirementInputs(goal) {
		return 0, false
	}
	corpus, err := s.corpus(goal)
	if err != nil {
		return 0, false
	}
	return corpus, true
}

// retirementError reports invalid retirement inputs so that they are not
// silently replaced by a caller-supplied target.
func (s *goalService) retirementError(goal *models.Goal) error {
	if !hasRetirementInputs(goal) {
		return nil
	}
	_, err := s.corpus(goal)
	return err
}

func (s *goalService) corpus(goal *models.Goal) (float64, error) {
	opts := []finmath.RetirementOption{finmath.WithInflationRate(s.inflationRate)}
	if goal.LifeExpectancy != nil {
		opts = append(opts, finmath.WithLifeExpectancy(*goal.LifeExpectancy))
	}
	return finmath.RetirementCorpus(toFloat(*goal.MonthlyExpenses), *goal.CurrentAge, *goal.RetirementAge, opts...)
}

func (s *goalService) inflationAdjusted(target float64, targetDate time.Time) decimal.Decimal {
	years := finmath.YearsBetween(s.now(), targetDate)
	return money(finmath.FutureCost(target, years, s.inflationRate))
}

func hasRetirementInputs(goal *models.Goal) bool {
	return goal.HasCategory(models.GoalCategoryRetirement) &&
		goal.MonthlyExpenses != nil && goal.CurrentAge != nil && goal.RetirementAge != nil
}

func detailsTouchRetirement(d GoalDetails) bool {
	return d.MonthlyExpenses != nil || d.CurrentAge != nil || d.RetirementAge != nil || d.LifeExpectancy != nil
}

func normalizeCategories(in []models.GoalCategory) (datatypes.JSONSlice[models.GoalCategory], error) {
	if len(in) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "At least one category is required")
	}
	seen := make(map[models.GoalCategory]bool, len(in))
	out := make(datatypes.JSONSlice[models.GoalCategory], 0, len(in))
	for _, c := range in {
		c = models.GoalCategory(strings.ToLower(strings.TrimSpace(string(c))))
		if !c.IsValid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown goal category: "+string(c))
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func normalizePriority(p string) (models.GoalPriority, error) {
	if strings.TrimSpace(p) == "" {
		return models.PriorityMedium, nil
	}
	switch n := models.NormalizePriority(p); n {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		return n, nil
	}
	return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Priority must be high, medium or low")
}

func applyDetails(goal *models.Goal, d GoalDetails) {
	if d.MonthlyExpenses != nil {
		goal.MonthlyExpenses = moneyPtr(d.MonthlyExpenses)
	}
	if d.CurrentAge != nil {
		goal.CurrentAge = d.CurrentAge
	}
	if d.RetirementAge != nil {
		goal.RetirementAge = d.RetirementAge
	}
	if d.LifeExpectancy != nil {
		goal.LifeExpectancy = d.LifeExpectancy
	}
	if d.DownPaymentPercentage != nil {
		goal.DownPaymentPercentage = d.DownPaymentPercentage
	}
	if d.LoanRequired != nil {
		goal.LoanRequired = d.LoanRequired
	}
	if d.CourseDurationYears != nil {
		goal.CourseDurationYears = d.CourseDurationYears
	}
	if d.InstitutionType != nil {
		goal.InstitutionType = d.InstitutionType
	}
	if d.Destination != nil {
		goal.Destination = d.Destination
	}
	if d.Travelers != nil {
		goal.Travelers = d.Travelers
	}
	if d.GuestCount != nil {
		goal.GuestCount = d.GuestCount
	}
	if d.HoneymoonIncluded != nil {
		goal.HoneymoonIncluded = d.HoneymoonIncluded
	}
	if d.MonthlyIncome != nil {
		goal.MonthlyIncome = moneyPtr(d.MonthlyIncome)
	}
	if d.CoverageMonths != nil {
		goal.CoverageMonths = d.CoverageMonths
	}
	if d.InterestRate != nil {
		goal.InterestRate = d.InterestRate
	}
	if d.MinimumPayment != nil {
		goal.MinimumPayment = moneyPtr(d.MinimumPayment)
	}
}
