// Package validator provides custom validation functions shared by Gin's
// binding engine and the assistant tool argument decoder.
package validator

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"goalwise/internal/models"
)

var symbolRegex = regexp.MustCompile(`^[A-Za-z0-9.\-^=]{1,20}$`)

// validCurrencies contains the ISO 4217 codes accepted for holdings.
var validCurrencies = map[string]bool{
	"AED": true, "AUD": true, "BRL": true, "CAD": true, "CHF": true,
	"CNY": true, "DKK": true, "EUR": true, "GBP": true, "HKD": true,
	"IDR": true, "ILS": true, "INR": true, "JPY": true, "KRW": true,
	"MXN": true, "MYR": true, "NOK": true, "NZD": true, "PHP": true,
	"PLN": true, "SAR": true, "SEK": true, "SGD": true, "THB": true,
	"TRY": true, "TWD": true, "USD": true, "VND": true, "ZAR": true,
}

// validIntervals are the chart intervals the market data provider accepts.
var validIntervals = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true, "60m": true, "90m": true,
	"1h": true, "1d": true, "5d": true, "1wk": true, "1mo": true, "3mo": true,
}

var (
	standalone     *validator.Validate
	standaloneOnce sync.Once
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterAll(v)
	}
}

// RegisterAll installs the custom tags on v.
func RegisterAll(v *validator.Validate) {
	_ = v.RegisterValidation("iso4217", validateISO4217)
	_ = v.RegisterValidation("goal_category", validateGoalCategory)
	_ = v.RegisterValidation("priority", validatePriority)
	_ = v.RegisterValidation("asset_type", validateAssetType)
	_ = v.RegisterValidation("risk_level", validateRiskLevel)
	_ = v.RegisterValidation("interval", validateInterval)
	_ = v.RegisterValidation("symbol", validateSymbol)
}

// New returns a process-wide validator with the custom tags installed, for
// code paths that do not go through Gin binding.
func New() *validator.Validate {
	standaloneOnce.Do(func() {
		standalone = validator.New(validator.WithRequiredStructEnabled())
		standalone.RegisterTagNameFunc(jsonFieldName)
		RegisterAll(standalone)
	})
	return standalone
}

func validateISO4217(fl validator.FieldLevel) bool {
	return validCurrencies[strings.ToUpper(fl.Field().String())]
}

func validateGoalCategory(fl validator.FieldLevel) bool {
	return models.GoalCategory(fl.Field().String()).IsValid()
}

func validatePriority(fl validator.FieldLevel) bool {
	switch models.NormalizePriority(fl.Field().String()) {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		return true
	}
	return false
}

func validateAssetType(fl validator.FieldLevel) bool {
	return models.AssetType(fl.Field().String()).IsValid()
}

func validateRiskLevel(fl validator.FieldLevel) bool {
	return models.RiskLevel(fl.Field().String()).IsValid()
}

func validateInterval(fl validator.FieldLevel) bool {
	return validIntervals[fl.Field().String()]
}

func validateSymbol(fl validator.FieldLevel) bool {
	return symbolRegex.MatchString(fl.Field().String())
}

// jsonFieldName reports fields by their JSON name so that messages match
// the argument names callers sent.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}
