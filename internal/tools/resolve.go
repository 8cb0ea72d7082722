package tools

import (
	"context"
	"fmt"
	"time"

	apperrors "goalwise/internal/errors"
	"goalwise/internal/models"
	"goalwise/internal/services"
)

const dateLayout = "2006-01-02"

// Match is one candidate of an ambiguous by-name lookup.
type Match struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol,omitempty"`
}

// ambiguousError is returned when a name or keyword matches more than one
// record. Nothing is changed; the candidates are reported so that the
// assistant can ask which one was meant.
type ambiguousError struct {
	kind    string
	query   string
	matches []Match
}

func (e *ambiguousError) Error() string {
	return fmt.Sprintf("%d %ss match %q. Ask the user which one they mean, then retry with its %s_id.",
		len(e.matches), e.kind, e.query, e.kind)
}

func (e *ambiguousError) Unwrap() error { return apperrors.ErrAmbiguousMatch }

// resolveGoal finds the goal a mutation targets. An id selects exactly that
// goal; otherwise keyword must match a single goal.
func resolveGoal(ctx context.Context, goals services.GoalServicer, id, keyword string) (*models.Goal, error) {
	if id != "" {
		return goals.GetByID(ctx, id)
	}
	found, err := goals.SearchByName(ctx, keyword)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, apperrors.WithMessage(apperrors.ErrGoalNotFound, fmt.Sprintf("No goal matches %q", keyword))
	case 1:
		return &found[0], nil
	}

	matches := make([]Match, len(found))
	for i, g := range found {
		matches[i] = Match{ID: g.ID, Name: g.Name}
	}
	return nil, &ambiguousError{kind: "goal", query: keyword, matches: matches}
}

// resolveAsset finds the asset a mutation targets. An id selects exactly
// that asset; otherwise nameOrSymbol must match a single asset. Lots that
// share a name and symbol can only be told apart by id.
func resolveAsset(ctx context.Context, assets services.AssetServicer, id, nameOrSymbol string) (*models.Asset, error) {
	if id != "" {
		return assets.GetByID(ctx, id)
	}
	found, err := assets.SearchByName(ctx, nameOrSymbol)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, apperrors.WithMessage(apperrors.ErrAssetNotFound, fmt.Sprintf("No asset matches %q", nameOrSymbol))
	case 1:
		return &found[0], nil
	}

	matches := make([]Match, len(found))
	for i, a := range found {
		matches[i] = Match{ID: a.ID, Name: a.Name, Symbol: a.Symbol}
	}
	return nil, &ambiguousError{kind: "asset", query: nameOrSymbol, matches: matches}
}

// parseDate parses an optional YYYY-MM-DD argument. Validation has already
// checked the layout.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidArguments, "Dates must use YYYY-MM-DD, got "+s)
	}
	return t, nil
}

func parseDatePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
