package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssetType represents the type of investment asset.
type AssetType string

const (
	AssetTypeStock        AssetType = "stock"
	AssetTypeMutualFund   AssetType = "mutual_fund"
	AssetTypeETF          AssetType = "etf"
	AssetTypeFixedDeposit AssetType = "fixed_deposit"
	AssetTypeBond         AssetType = "bond"
	AssetTypeCrypto       AssetType = "crypto"
	AssetTypeGold         AssetType = "gold"
	AssetTypeRealEstate   AssetType = "real_estate"
	AssetTypeOther        AssetType = "other"
)

// IsValid reports whether t is a known asset type.
func (t AssetType) IsValid() bool {
	switch t {
	case AssetTypeStock, AssetTypeMutualFund, AssetTypeETF, AssetTypeFixedDeposit, AssetTypeBond,
		AssetTypeCrypto, AssetTypeGold, AssetTypeRealEstate, AssetTypeOther:
		return true
	}
	return false
}

// Priceable reports whether the asset type has a market-data symbol.
func (t AssetType) Priceable() bool {
	switch t {
	case AssetTypeStock, AssetTypeETF, AssetTypeMutualFund, AssetTypeCrypto:
		return true
	}
	return false
}

// RiskLevel is the owner's risk classification of a holding.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// IsValid reports whether r is a known risk level.
func (r RiskLevel) IsValid() bool {
	return r == RiskLow || r == RiskModerate || r == RiskHigh
}

// Snapshot periods. The one-month return feeds dashboard growth.
const (
	PerformancePeriodOneMonth      = "one_month"
	PerformancePeriodSincePurchase = "since_purchase"
)

// Asset is an investment holding, optionally earmarked toward a goal.
type Asset struct {
	Base
	UserID        string           `gorm:"not null;index" json:"user_id"`
	Name          string           `gorm:"not null" json:"name"`
	Type          AssetType        `gorm:"not null" json:"type"`
	Symbol        string           `json:"symbol,omitempty"`
	Quantity      float64          `gorm:"not null" json:"quantity"`
	PurchasePrice decimal.Decimal  `gorm:"type:numeric(18,4);not null" json:"purchase_price"`
	PurchaseDate  time.Time        `gorm:"not null" json:"purchase_date"`
	Currency      string           `gorm:"not null;default:'USD'" json:"currency"`
	RiskLevel     RiskLevel        `gorm:"not null;default:'moderate'" json:"risk_level"`
	GoalID        *string          `gorm:"type:uuid;index" json:"goal_id,omitempty"`
	CurrentValue  *decimal.Decimal `gorm:"type:numeric(18,2)" json:"current_value"`
	LastPricedAt  *time.Time       `json:"last_priced_at,omitempty"`

	StockDetail        *StockDetail        `gorm:"foreignKey:AssetID" json:"stock_detail,omitempty"`
	MutualFundDetail   *MutualFundDetail   `gorm:"foreignKey:AssetID" json:"mutual_fund_detail,omitempty"`
	ETFDetail          *ETFDetail          `gorm:"foreignKey:AssetID" json:"etf_detail,omitempty"`
	FixedDepositDetail *FixedDepositDetail `gorm:"foreignKey:AssetID" json:"fixed_deposit_detail,omitempty"`
	Performance        []AssetPerformance  `gorm:"foreignKey:AssetID" json:"performance,omitempty"`
}

// CostBasis returns quantity times purchase price.
func (a *Asset) CostBasis() decimal.Decimal {
	return a.PurchasePrice.Mul(decimal.NewFromFloat(a.Quantity))
}

// ValueOrCost returns the cached market value, or the cost basis when the
// asset has not been priced yet.
func (a *Asset) ValueOrCost() decimal.Decimal {
	if a.CurrentValue != nil {
		return *a.CurrentValue
	}
	return a.CostBasis()
}

// StockDetail holds stock-specific fields.
type StockDetail struct {
	Base
	AssetID       string   `gorm:"type:uuid;not null;uniqueIndex" json:"asset_id"`
	Exchange      string   `json:"exchange,omitempty"`
	Sector        string   `json:"sector,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty"`
}

// MutualFundDetail holds mutual-fund-specific fields.
type MutualFundDetail struct {
	Base
	AssetID      string   `gorm:"type:uuid;not null;uniqueIndex" json:"asset_id"`
	FundHouse    string   `json:"fund_house,omitempty"`
	SchemeCode   string   `json:"scheme_code,omitempty"`
	FundCategory string   `json:"fund_category,omitempty"`
	ExpenseRatio *float64 `json:"expense_ratio,omitempty"`
}

// ETFDetail holds ETF-specific fields.
type ETFDetail struct {
	Base
	AssetID       string   `gorm:"type:uuid;not null;uniqueIndex" json:"asset_id"`
	Exchange      string   `json:"exchange,omitempty"`
	TrackingIndex string   `json:"tracking_index,omitempty"`
	ExpenseRatio  *float64 `json:"expense_ratio,omitempty"`
}

// FixedDepositDetail holds fixed-deposit-specific fields.
type FixedDepositDetail struct {
	Base
	AssetID              string     `gorm:"type:uuid;not null;uniqueIndex" json:"asset_id"`
	BankName             string     `json:"bank_name,omitempty"`
	InterestRate         float64    `json:"interest_rate"`
	MaturityDate         *time.Time `json:"maturity_date,omitempty"`
	CompoundingFrequency string     `json:"compounding_frequency,omitempty"`
}

// AssetPerformance is a return snapshot over a named period.
// This is immutable time-series data, so it has no UpdatedAt.
type AssetPerformance struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	AssetID    string    `gorm:"type:uuid;not null;index" json:"asset_id"`
	Period     string    `gorm:"not null" json:"period"`
	ReturnPct  float64   `gorm:"not null" json:"return_pct"`
	RecordedAt time.Time `gorm:"not null" json:"recorded_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *AssetPerformance) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}

// OwnerID returns the owning user. A nil asset has no owner.
func (a *Asset) OwnerID() string {
	if a == nil {
		return ""
	}
	return a.UserID
}
