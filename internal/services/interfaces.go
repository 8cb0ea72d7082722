package services

import (
	"context"
	"time"

	"goalwise/internal/finmath"
	"goalwise/internal/models"
	"goalwise/internal/pagination"
)

// Every service method resolves the caller from ctx (see auth.RequireCaller)
// before touching the database and scopes all queries to that caller.

// GoalStatus filters goal listings.
type GoalStatus string

const (
	GoalStatusAll       GoalStatus = ""
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
)

// GoalDetails carries the sparse category-specific goal fields. Nil fields
// are left unset on create and unchanged on update.
type GoalDetails struct {
	MonthlyExpenses       *float64
	CurrentAge            *int
	RetirementAge         *int
	LifeExpectancy        *int
	DownPaymentPercentage *float64
	LoanRequired          *bool
	CourseDurationYears   *int
	InstitutionType       *string
	Destination           *string
	Travelers             *int
	GuestCount            *int
	HoneymoonIncluded     *bool
	MonthlyIncome         *float64
	CoverageMonths        *int
	InterestRate          *float64
	MinimumPayment        *float64
}

// CreateGoalInput describes a new goal. For retirement goals with monthly
// expenses and both ages set, TargetAmt is replaced by the computed corpus
// and a zero TargetDate defaults to the retirement date.
type CreateGoalInput struct {
	Name        string
	Description string
	Categories  []models.GoalCategory
	CurrentAmt  float64
	TargetAmt   float64
	TargetDate  time.Time
	Priority    string
	Details     GoalDetails
}

// UpdateGoalInput holds a partial goal update. Nil fields are unchanged.
type UpdateGoalInput struct {
	Name        *string
	Description *string
	Categories  []models.GoalCategory
	CurrentAmt  *float64
	TargetAmt   *float64
	TargetDate  *time.Time
	Priority    *string
	Details     GoalDetails
}

// FailedAsset is one suggested asset that could not be created.
type FailedAsset struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// CreateGoalResult is the outcome of creating a goal with suggested assets.
// The goal is kept even when some assets fail.
type CreateGoalResult struct {
	Goal         *models.Goal   `json:"goal"`
	Assets       []models.Asset `json:"assets"`
	FailedAssets []FailedAsset  `json:"failed_assets"`
}

// Partial reports whether at least one suggested asset failed.
func (r *CreateGoalResult) Partial() bool { return len(r.FailedAssets) > 0 }

// DeleteGoalResult reports what a goal deletion removed.
type DeleteGoalResult struct {
	GoalID        string `json:"goal_id"`
	Name          string `json:"name"`
	DeletedAssets int64  `json:"deleted_assets"`
}

// GoalProgressReport is a goal's progress computed at request time.
type GoalProgressReport struct {
	GoalID     string    `json:"goal_id"`
	Name       string    `json:"name"`
	CurrentAmt float64   `json:"current_amt"`
	TargetAmt  float64   `json:"target_amt"`
	TargetDate time.Time `json:"target_date"`
	Completed  bool      `json:"completed"`
	finmath.Progress
}

// GoalServicer defines the contract for goal-related business logic.
type GoalServicer interface {
	Create(ctx context.Context, in CreateGoalInput) (*models.Goal, error)
	CreateWithAssets(ctx context.Context, in CreateGoalInput, assets []CreateAssetInput) (*CreateGoalResult, error)
	List(ctx context.Context, page pagination.PageRequest, status GoalStatus) (*pagination.PageResponse[models.Goal], error)
	GetByID(ctx context.Context, goalID string) (*models.Goal, error)
	SearchByName(ctx context.Context, query string) ([]models.Goal, error)
	Update(ctx context.Context, goalID string, in UpdateGoalInput) (*models.Goal, error)
	Complete(ctx context.Context, goalID string) (*models.Goal, error)
	Delete(ctx context.Context, goalID string) (*DeleteGoalResult, error)
	Progress(ctx context.Context, goalID string) (*GoalProgressReport, error)
}

// CreateAssetInput describes a new holding. Only the detail matching Type
// is stored.
type CreateAssetInput struct {
	Name          string
	Type          models.AssetType
	Symbol        string
	Quantity      float64
	PurchasePrice float64
	PurchaseDate  time.Time
	Currency      string
	RiskLevel     models.RiskLevel
	GoalID        *string

	Stock        *models.StockDetail
	MutualFund   *models.MutualFundDetail
	ETF          *models.ETFDetail
	FixedDeposit *models.FixedDepositDetail
}

// UpdateAssetInput holds a partial asset update. Nil fields are unchanged;
// UnlinkGoal clears the goal link.
type UpdateAssetInput struct {
	Name          *string
	Symbol        *string
	Quantity      *float64
	PurchasePrice *float64
	PurchaseDate  *time.Time
	Currency      *string
	RiskLevel     *models.RiskLevel
	GoalID        *string
	UnlinkGoal    bool
}

// AssetPerformanceReport summarizes a holding's value and stored returns.
type AssetPerformanceReport struct {
	AssetID      string                    `json:"asset_id"`
	Name         string                    `json:"name"`
	Symbol       string                    `json:"symbol,omitempty"`
	CostBasis    float64                   `json:"cost_basis"`
	CurrentValue *float64                  `json:"current_value"`
	GainLoss     *float64                  `json:"gain_loss"`
	GainLossPct  *float64                  `json:"gain_loss_pct"`
	LastPricedAt *time.Time                `json:"last_priced_at,omitempty"`
	Snapshots    []models.AssetPerformance `json:"snapshots"`
}

// AssetServicer defines the contract for asset-related business logic.
type AssetServicer interface {
	Create(ctx context.Context, in CreateAssetInput) (*models.Asset, error)
	List(ctx context.Context, page pagination.PageRequest, goalID *string) (*pagination.PageResponse[models.Asset], error)
	GetByID(ctx context.Context, assetID string) (*models.Asset, error)
	SearchByName(ctx context.Context, query string) ([]models.Asset, error)
	Update(ctx context.Context, assetID string, in UpdateAssetInput) (*models.Asset, error)
	Delete(ctx context.Context, assetID string) error
	Performance(ctx context.Context, assetID string) (*AssetPerformanceReport, error)
}

// RefreshResult is the outcome of repricing one asset.
type RefreshResult struct {
	AssetID        string               `json:"asset_id"`
	Symbol         string               `json:"symbol"`
	CurrentValue   float64              `json:"current_value"`
	OneMonthReturn *float64             `json:"one_month_return"`
	Growth         finmath.GrowthResult `json:"growth"`
	PricedAt       time.Time            `json:"priced_at"`
}

// RefreshFailure records an asset the pipeline could not reprice.
type RefreshFailure struct {
	AssetID string `json:"asset_id"`
	Symbol  string `json:"symbol"`
	Error   string `json:"error"`
}

// RefreshSummary is the outcome of a pipeline repricing run.
type RefreshSummary struct {
	Total     int              `json:"total"`
	Refreshed int              `json:"refreshed"`
	Failed    []RefreshFailure `json:"failed"`
}

// PricingServicer reprices holdings against market data.
type PricingServicer interface {
	RefreshAsset(ctx context.Context, assetID string) (*RefreshResult, error)
	// RefreshAll reprices every priceable asset of every user. It is only
	// reachable from the pipeline endpoint and does not require a caller.
	RefreshAll(ctx context.Context) (*RefreshSummary, error)
}

// DashboardGoal is a goal row on the dashboard.
type DashboardGoal struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Priority      models.GoalPriority `json:"priority"`
	CurrentAmt    float64             `json:"current_amt"`
	TargetAmt     float64             `json:"target_amt"`
	TargetDate    time.Time           `json:"target_date"`
	ProgressPct   float64             `json:"progress_pct"`
	DaysRemaining int                 `json:"days_remaining"`
}

// DashboardSummary is the dashboard read model.
type DashboardSummary struct {
	TotalAssetsValue float64         `json:"total_assets_value"`
	ActiveGoalsCount int64           `json:"active_goals_count"`
	MonthlyGrowth    float64         `json:"monthly_growth"`
	Goals            []DashboardGoal `json:"goals"`
	RecentAssets     []models.Asset  `json:"recent_assets"`
}

// Bucket aggregates value and count for one asset grouping.
type Bucket struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// PortfolioStats aggregates every holding of the caller.
type PortfolioStats struct {
	TotalValue     float64                     `json:"total_value"`
	TotalCostBasis float64                     `json:"total_cost_basis"`
	TotalGainLoss  float64                     `json:"total_gain_loss"`
	GainLossPct    float64                     `json:"gain_loss_pct"`
	AssetCount     int                         `json:"asset_count"`
	UnpricedCount  int                         `json:"unpriced_count"`
	ByType         map[models.AssetType]Bucket `json:"by_type"`
	ByRisk         map[models.RiskLevel]Bucket `json:"by_risk"`
	LinkedToGoals  Bucket                      `json:"linked_to_goals"`
}

// CacheInvalidator drops cached read models for an owner.
type CacheInvalidator interface {
	Invalidate(userID string)
}

// DashboardServicer builds the cached dashboard and portfolio read models.
type DashboardServicer interface {
	CacheInvalidator
	Summary(ctx context.Context) (*DashboardSummary, error)
	Portfolio(ctx context.Context) (*PortfolioStats, error)
}

// Suggestion is one allocation in a suggested portfolio.
type Suggestion struct {
	Name           string           `json:"name" yaml:"name"`
	Type           models.AssetType `json:"type" yaml:"type"`
	Symbol         string           `json:"symbol,omitempty" yaml:"symbol"`
	AllocationPct  float64          `json:"allocation_pct" yaml:"allocation_pct"`
	ExpectedReturn float64          `json:"expected_return" yaml:"expected_return"`
	Rationale      string           `json:"rationale" yaml:"rationale"`
	Amount         float64          `json:"amount" yaml:"-"`
	ProjectedValue *float64         `json:"projected_value,omitempty" yaml:"-"`
}

// SuggestionSet is the suggested portfolio for a target amount.
type SuggestionSet struct {
	GoalID         string           `json:"goal_id,omitempty"`
	RiskLevel      models.RiskLevel `json:"risk_level"`
	TargetAmount   float64          `json:"target_amount"`
	HorizonYears   float64          `json:"horizon_years,omitempty"`
	ExpectedReturn float64          `json:"expected_return"`
	Suggestions    []Suggestion     `json:"suggestions"`
}

// SuggestionServicer suggests allocations by risk level.
type SuggestionServicer interface {
	Suggest(ctx context.Context, goalID string, risk models.RiskLevel, targetAmount float64) (*SuggestionSet, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, action, resourceType, resourceID string, changes map[string]interface{})
}
