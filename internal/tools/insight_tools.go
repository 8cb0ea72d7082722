package tools

import (
	"context"
	"math"

	"goalwise/internal/finmath"
	"goalwise/internal/models"
)

type noArgs struct{}

type suggestionArgs struct {
	GoalID       string  `json:"goal_id" validate:"omitempty,uuid"`
	RiskLevel    string  `json:"risk_level" validate:"omitempty,risk_level"`
	TargetAmount float64 `json:"target_amount" validate:"gte=0"`
}

type retirementArgs struct {
	MonthlyExpenses      float64  `json:"monthly_expenses" validate:"required,gt=0"`
	CurrentAge           int      `json:"current_age" validate:"required,gt=0,lt=120"`
	RetirementAge        int      `json:"retirement_age" validate:"required,gt=0,lt=120"`
	LifeExpectancy       *int     `json:"life_expectancy" validate:"omitempty,gt=0,lt=130"`
	InflationRate        *float64 `json:"inflation_rate" validate:"omitempty,gte=0,lte=1"`
	PostRetirementReturn *float64 `json:"post_retirement_return" validate:"omitempty,gte=0,lte=1"`
}

type futureCostArgs struct {
	CurrentCost   float64  `json:"current_cost" validate:"required,gt=0"`
	Years         float64  `json:"years" validate:"gte=0,lte=100"`
	InflationRate *float64 `json:"inflation_rate" validate:"omitempty,gte=0,lte=1"`
}

func insightTools(svc *Services) []Tool {
	return []Tool{
		&tool[noArgs]{
			name: "get_dashboard_stats",
			description: "Get the user's dashboard: total asset value, active goal count, average one-month " +
				"return, the five most urgent goals and the five newest assets.",
			schema: object(nil),
			svc:    svc,
			run: func(ctx context.Context, svc *Services, _ *noArgs) (Result, error) {
				summary, err := svc.Dashboard.Summary(ctx)
				if err != nil {
					return nil, err
				}
				return Result{"dashboard": summary}, nil
			},
		},
		&tool[noArgs]{
			name:        "get_portfolio_stats",
			description: "Get portfolio totals with gain or loss and a breakdown by asset type and risk level.",
			schema:      object(nil),
			svc:         svc,
			run: func(ctx context.Context, svc *Services, _ *noArgs) (Result, error) {
				stats, err := svc.Dashboard.Portfolio(ctx)
				if err != nil {
					return nil, err
				}
				return Result{"portfolio": stats}, nil
			},
		},
		&tool[suggestionArgs]{
			name: "get_investment_suggestions",
			description: "Suggest an allocation for a risk level scaled to a target amount. With a goal id the " +
				"target defaults to the goal's remaining amount and values are projected to its date.",
			schema: object(map[string]Property{
				"goal_id":       str("Goal id to plan for"),
				"risk_level":    enum("Risk appetite (default moderate)", riskNames...),
				"target_amount": number("Amount to invest"),
			}),
			svc: svc,
			run: suggestions,
		},
		&tool[retirementArgs]{
			name:        "calculate_retirement_corpus",
			description: "Calculate the lump sum needed at retirement to fund inflation-adjusted expenses until life expectancy.",
			schema: object(map[string]Property{
				"monthly_expenses":       number("Current monthly expenses"),
				"current_age":            integer("Current age"),
				"retirement_age":         integer("Planned retirement age"),
				"life_expectancy":        integer("Age to fund expenses until (default 85)"),
				"inflation_rate":         number("Annual inflation as a fraction, e.g. 0.06"),
				"post_retirement_return": number("Annual return after retirement as a fraction, e.g. 0.05"),
			}, "monthly_expenses", "current_age", "retirement_age"),
			svc: svc,
			run: retirementCorpus,
		},
		&tool[futureCostArgs]{
			name:        "calculate_future_cost",
			description: "Project today's cost forward with compounded inflation.",
			schema: object(map[string]Property{
				"current_cost":   number("Cost in today's money"),
				"years":          number("Years from now"),
				"inflation_rate": number("Annual inflation as a fraction (default configured rate)"),
			}, "current_cost", "years"),
			svc: svc,
			run: futureCost,
		},
	}
}

func suggestions(ctx context.Context, svc *Services, args *suggestionArgs) (Result, error) {
	set, err := svc.Suggestions.Suggest(ctx, args.GoalID, models.RiskLevel(args.RiskLevel), args.TargetAmount)
	if err != nil {
		return nil, err
	}
	return Result{"suggestions": set}, nil
}

func retirementCorpus(_ context.Context, svc *Services, args *retirementArgs) (Result, error) {
	inflation := svc.InflationRate
	if args.InflationRate != nil {
		inflation = *args.InflationRate
	}
	opts := []finmath.RetirementOption{finmath.WithInflationRate(inflation)}
	if args.LifeExpectancy != nil {
		opts = append(opts, finmath.WithLifeExpectancy(*args.LifeExpectancy))
	}
	if args.PostRetirementReturn != nil {
		opts = append(opts, finmath.WithPostRetirementReturn(*args.PostRetirementReturn))
	}

	corpus, err := finmath.RetirementCorpus(args.MonthlyExpenses, args.CurrentAge, args.RetirementAge, opts...)
	if err != nil {
		return nil, err
	}
	return Result{
		"corpus":                roundCents(corpus),
		"years_to_retirement":   args.RetirementAge - args.CurrentAge,
		"inflation_rate":        inflation,
		"monthly_expenses_then": roundCents(finmath.FutureCost(args.MonthlyExpenses, float64(args.RetirementAge-args.CurrentAge), inflation)),
	}, nil
}

func futureCost(_ context.Context, svc *Services, args *futureCostArgs) (Result, error) {
	rate := svc.InflationRate
	if args.InflationRate != nil {
		rate = *args.InflationRate
	}
	return Result{
		"current_cost":   args.CurrentCost,
		"years":          args.Years,
		"inflation_rate": rate,
		"future_cost":    roundCents(finmath.FutureCost(args.CurrentCost, args.Years, rate)),
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
