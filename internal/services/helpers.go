package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"goalwise/internal/auth"
	apperrors "goalwise/internal/errors"
)

// callerID resolves the authenticated caller. Every public service method
// calls it first so that unauthenticated requests never reach the database.
func callerID(ctx context.Context) (string, error) {
	id, err := auth.RequireCaller(ctx)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// money converts a float amount to a decimal rounded to cents.
func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// money4 converts a unit price to a decimal rounded to four places.
func money4(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(4)
}

func moneyPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := money(*f)
	return &d
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func toFloatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := toFloat(*d)
	return &f
}

// lookupError maps a missing row to notFound and wraps anything else.
func lookupError(err error, notFound *apperrors.AppError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

// loadOwned loads the record with id through q and checks it belongs to
// userID. A foreign record fails with notFound, exactly like a missing one.
func loadOwned[T any, P interface {
	*T
	auth.Owned
}](q *gorm.DB, userID, id string, notFound *apperrors.AppError) (P, error) {
	var rec T
	if err := q.Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, lookupError(err, notFound)
	}
	owned := P(&rec)
	if err := auth.RequireOwnership(owned, auth.CallerID(userID), notFound); err != nil {
		return nil, err
	}
	return owned, nil
}

// likePattern builds a case-insensitive LIKE pattern for a user search term,
// escaping the LIKE wildcards it may contain.
func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
}
