package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// GoalCategory is one of the fixed keywords describing what a goal saves for.
type GoalCategory string

const (
	GoalCategoryHome          GoalCategory = "home"
	GoalCategoryEducation     GoalCategory = "education"
	GoalCategoryRetirement    GoalCategory = "retirement"
	GoalCategoryTravel        GoalCategory = "travel"
	GoalCategoryCar           GoalCategory = "car"
	GoalCategoryWedding       GoalCategory = "wedding"
	GoalCategoryEmergencyFund GoalCategory = "emergency_fund"
	GoalCategoryDebtRepayment GoalCategory = "debt_repayment"
	GoalCategoryBusiness      GoalCategory = "business"
	GoalCategoryHealth        GoalCategory = "health"
	GoalCategoryCharity       GoalCategory = "charity"
	GoalCategoryInheritance   GoalCategory = "inheritance"
	GoalCategoryOther         GoalCategory = "other"
)

// GoalCategories lists every valid category in display order.
var GoalCategories = []GoalCategory{
	GoalCategoryHome, GoalCategoryEducation, GoalCategoryRetirement, GoalCategoryTravel,
	GoalCategoryCar, GoalCategoryWedding, GoalCategoryEmergencyFund, GoalCategoryDebtRepayment,
	GoalCategoryBusiness, GoalCategoryHealth, GoalCategoryCharity, GoalCategoryInheritance,
	GoalCategoryOther,
}

// IsValid reports whether c is a known category.
func (c GoalCategory) IsValid() bool {
	for _, known := range GoalCategories {
		if c == known {
			return true
		}
	}
	return false
}

// GoalPriority ranks goals on the dashboard.
type GoalPriority string

const (
	PriorityHigh   GoalPriority = "high"
	PriorityMedium GoalPriority = "medium"
	PriorityLow    GoalPriority = "low"
)

// NormalizePriority lower-cases and trims p. Unknown values are returned
// as-is so that they keep sorting after the known priorities.
func NormalizePriority(p string) GoalPriority {
	return GoalPriority(strings.ToLower(strings.TrimSpace(p)))
}

// Goal is a savings target owned by exactly one user.
//
// Category-specific fields are pointers so that unset values are omitted
// from JSON instead of rendered as zero values.
type Goal struct {
	Base
	UserID                     string                            `gorm:"not null;index" json:"user_id"`
	Name                       string                            `gorm:"not null" json:"name"`
	Description                string                            `json:"description,omitempty"`
	Categories                 datatypes.JSONSlice[GoalCategory] `gorm:"not null" json:"categories"`
	CurrentAmt                 decimal.Decimal                   `gorm:"type:numeric(18,2);not null;default:0" json:"current_amt"`
	TargetAmt                  decimal.Decimal                   `gorm:"type:numeric(18,2);not null" json:"target_amt"`
	TargetAmtInflationAdjusted decimal.Decimal                   `gorm:"type:numeric(18,2);not null" json:"target_amt_inflation_adjusted"`
	TargetDate                 time.Time                         `gorm:"not null" json:"target_date"`
	Priority                   GoalPriority                      `gorm:"not null;default:'medium'" json:"priority"`
	CompletedAt                *time.Time                        `json:"completed_at"`

	// Retirement
	MonthlyExpenses *decimal.Decimal `gorm:"type:numeric(18,2)" json:"monthly_expenses,omitempty"`
	CurrentAge      *int             `json:"current_age,omitempty"`
	RetirementAge   *int             `json:"retirement_age,omitempty"`
	LifeExpectancy  *int             `json:"life_expectancy,omitempty"`

	// Home and car
	DownPaymentPercentage *float64 `json:"down_payment_percentage,omitempty"`
	LoanRequired          *bool    `json:"loan_required,omitempty"`

	// Education
	CourseDurationYears *int    `json:"course_duration_years,omitempty"`
	InstitutionType     *string `json:"institution_type,omitempty"`

	// Travel
	Destination *string `json:"destination,omitempty"`
	Travelers   *int    `json:"travelers,omitempty"`

	// Wedding
	GuestCount        *int  `json:"guest_count,omitempty"`
	HoneymoonIncluded *bool `json:"honeymoon_included,omitempty"`

	// Emergency fund
	MonthlyIncome  *decimal.Decimal `gorm:"type:numeric(18,2)" json:"monthly_income,omitempty"`
	CoverageMonths *int             `json:"coverage_months,omitempty"`

	// Debt repayment
	InterestRate   *float64         `json:"interest_rate,omitempty"`
	MinimumPayment *decimal.Decimal `gorm:"type:numeric(18,2)" json:"minimum_payment,omitempty"`

	Assets []Asset `gorm:"foreignKey:GoalID" json:"assets,omitempty"`
}

// IsActive reports whether the goal has not been completed.
func (g *Goal) IsActive() bool { return g.CompletedAt == nil }

// HasCategory reports whether c is one of the goal's categories.
func (g *Goal) HasCategory(c GoalCategory) bool {
	for _, have := range g.Categories {
		if have == c {
			return true
		}
	}
	return false
}

// OwnerID returns the owning user. A nil goal has no owner.
func (g *Goal) OwnerID() string {
	if g == nil {
		return ""
	}
	return g.UserID
}
