package tools

import (
	"context"

	"goalwise/internal/models"
	"goalwise/internal/pagination"
	"goalwise/internal/services"
)

var (
	categoryNames = func() []string {
		out := make([]string, len(models.GoalCategories))
		for i, c := range models.GoalCategories {
			out[i] = string(c)
		}
		return out
	}()
	priorityNames = []string{"high", "medium", "low"}
)

// goalDetailArgs are the sparse category-specific goal fields.
type goalDetailArgs struct {
	MonthlyExpenses       *float64 `json:"monthly_expenses" validate:"omitempty,gt=0"`
	CurrentAge            *int     `json:"current_age" validate:"omitempty,gt=0,lt=120"`
	RetirementAge         *int     `json:"retirement_age" validate:"omitempty,gt=0,lt=120"`
	LifeExpectancy        *int     `json:"life_expectancy" validate:"omitempty,gt=0,lt=130"`
	DownPaymentPercentage *float64 `json:"down_payment_percentage" validate:"omitempty,gte=0,lte=100"`
	LoanRequired          *bool    `json:"loan_required"`
	CourseDurationYears   *int     `json:"course_duration_years" validate:"omitempty,gt=0"`
	InstitutionType       *string  `json:"institution_type" validate:"omitempty,max=100"`
	Destination           *string  `json:"destination" validate:"omitempty,max=200"`
	Travelers             *int     `json:"travelers" validate:"omitempty,gt=0"`
	GuestCount            *int     `json:"guest_count" validate:"omitempty,gt=0"`
	HoneymoonIncluded     *bool    `json:"honeymoon_included"`
	MonthlyIncome         *float64 `json:"monthly_income" validate:"omitempty,gt=0"`
	CoverageMonths        *int     `json:"coverage_months" validate:"omitempty,gt=0"`
	InterestRate          *float64 `json:"interest_rate" validate:"omitempty,gte=0"`
	MinimumPayment        *float64 `json:"minimum_payment" validate:"omitempty,gte=0"`
}

func (d goalDetailArgs) toDetails() services.GoalDetails {
	return services.GoalDetails{
		MonthlyExpenses:       d.MonthlyExpenses,
		CurrentAge:            d.CurrentAge,
		RetirementAge:         d.RetirementAge,
		LifeExpectancy:        d.LifeExpectancy,
		DownPaymentPercentage: d.DownPaymentPercentage,
		LoanRequired:          d.LoanRequired,
		CourseDurationYears:   d.CourseDurationYears,
		InstitutionType:       d.InstitutionType,
		Destination:           d.Destination,
		Travelers:             d.Travelers,
		GuestCount:            d.GuestCount,
		HoneymoonIncluded:     d.HoneymoonIncluded,
		MonthlyIncome:         d.MonthlyIncome,
		CoverageMonths:        d.CoverageMonths,
		InterestRate:          d.InterestRate,
		MinimumPayment:        d.MinimumPayment,
	}
}

func goalDetailProperties(into map[string]Property) map[string]Property {
	into["monthly_expenses"] = number("Retirement: current monthly expenses")
	into["current_age"] = integer("Retirement: the user's current age")
	into["retirement_age"] = integer("Retirement: planned retirement age")
	into["life_expectancy"] = integer("Retirement: age to fund expenses until (default 85)")
	into["down_payment_percentage"] = number("Home or car: down payment percentage")
	into["loan_required"] = boolean("Home or car: whether a loan is needed")
	into["course_duration_years"] = integer("Education: course length in years")
	into["institution_type"] = str("Education: type of institution")
	into["destination"] = str("Travel: destination")
	into["travelers"] = integer("Travel: number of travelers")
	into["guest_count"] = integer("Wedding: number of guests")
	into["honeymoon_included"] = boolean("Wedding: whether the honeymoon is included")
	into["monthly_income"] = number("Emergency fund: monthly income")
	into["coverage_months"] = integer("Emergency fund: months of expenses to cover")
	into["interest_rate"] = number("Debt repayment: annual interest rate in percent")
	into["minimum_payment"] = number("Debt repayment: minimum monthly payment")
	return into
}

type listGoalsArgs struct {
	Status   string `json:"status" validate:"omitempty,oneof=active completed all"`
	Page     int    `json:"page" validate:"omitempty,min=1"`
	PageSize int    `json:"page_size" validate:"omitempty,min=1,max=100"`
}

type createGoalArgs struct {
	Name            string            `json:"name" validate:"required,min=1,max=200"`
	Description     string            `json:"description" validate:"max=1000"`
	Categories      []string          `json:"categories" validate:"required,min=1,dive,goal_category"`
	CurrentAmount   float64           `json:"current_amount" validate:"gte=0"`
	TargetAmount    float64           `json:"target_amount" validate:"gte=0"`
	TargetDate      string            `json:"target_date" validate:"omitempty,datetime=2006-01-02"`
	Priority        string            `json:"priority" validate:"omitempty,priority"`
	SuggestedAssets []createAssetArgs `json:"suggested_assets" validate:"omitempty,max=20,dive"`
	goalDetailArgs
}

type searchArgs struct {
	Query string `json:"query" validate:"required,min=1,max=200"`
}

type goalUpdates struct {
	Name          *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description   *string  `json:"description" validate:"omitempty,max=1000"`
	Categories    []string `json:"categories" validate:"omitempty,min=1,dive,goal_category"`
	CurrentAmount *float64 `json:"current_amount" validate:"omitempty,gte=0"`
	TargetAmount  *float64 `json:"target_amount" validate:"omitempty,gt=0"`
	TargetDate    *string  `json:"target_date" validate:"omitempty,datetime=2006-01-02"`
	Priority      *string  `json:"priority" validate:"omitempty,priority"`
	goalDetailArgs
}

type updateGoalArgs struct {
	GoalID        string      `json:"goal_id" validate:"omitempty,uuid"`
	NameOrKeyword string      `json:"name_or_keyword" validate:"required_without=GoalID,max=200"`
	Updates       goalUpdates `json:"updates"`
}

type goalKeywordArgs struct {
	GoalID        string `json:"goal_id" validate:"omitempty,uuid"`
	NameOrKeyword string `json:"name_or_keyword" validate:"required_without=GoalID,max=200"`
}

type goalIDArgs struct {
	GoalID string `json:"goal_id" validate:"required,uuid"`
}

func goalTools(svc *Services) []Tool {
	createProps := goalDetailProperties(map[string]Property{
		"name":           str("Short goal name, e.g. \"Europe trip\""),
		"description":    str("Optional longer description"),
		"categories":     arrayOf("One or more categories", enum("Goal category", categoryNames...)),
		"current_amount": number("Amount already saved toward the goal"),
		"target_amount":  number("Amount needed in today's money. Computed for retirement goals with expenses and ages"),
		"target_date":    date("When the money is needed. Defaults to the retirement date for retirement goals"),
		"priority":       enum("Goal priority (default medium)", priorityNames...),
		"suggested_assets": arrayOf("Assets to create and link to the new goal",
			nested("Asset", assetCreateProperties(false), "name", "type", "quantity", "purchase_price")),
	})

	updateProps := goalDetailProperties(map[string]Property{
		"name":           str("New name"),
		"description":    str("New description"),
		"categories":     arrayOf("Replacement categories", enum("Goal category", categoryNames...)),
		"current_amount": number("New amount saved"),
		"target_amount":  number("New target amount"),
		"target_date":    date("New target date"),
		"priority":       enum("New priority", priorityNames...),
	})

	return []Tool{
		&tool[listGoalsArgs]{
			name:        "list_goals",
			description: "List the user's goals, soonest target date first.",
			schema: object(map[string]Property{
				"status":    enum("Filter by status (default all)", "active", "completed", "all"),
				"page":      integer("Page number starting at 1"),
				"page_size": integer("Goals per page, up to 100"),
			}),
			svc: svc,
			run: listGoals,
		},
		&tool[createGoalArgs]{
			name: "create_goal",
			description: "Create a financial goal. Optionally create suggested assets linked to it; " +
				"if some assets fail the goal is kept and the failures are listed.",
			schema:  object(createProps, "name", "categories"),
			mutates: true,
			svc:     svc,
			run:     createGoal,
		},
		&tool[searchArgs]{
			name:        "search_goals_by_name",
			description: "Find the user's goals by name, description or category keyword. Returns zero, one or many goals.",
			schema:      object(map[string]Property{"query": str("Name or keyword to search for")}, "query"),
			svc:         svc,
			run:         searchGoals,
		},
		&tool[updateGoalArgs]{
			name: "update_goal_by_name",
			description: "Update a goal found by name or keyword, or by goal_id. Only the fields in updates change. " +
				"If several goals match nothing is changed and the matches are returned; retry with the chosen goal_id.",
			schema: object(map[string]Property{
				"goal_id":         str("Goal id, when known or after disambiguation"),
				"name_or_keyword": str("Name or keyword identifying the goal"),
				"updates":         nested("Fields to change", updateProps),
			}, "updates"),
			mutates: true,
			svc:     svc,
			run:     updateGoal,
		},
		&tool[goalKeywordArgs]{
			name: "delete_goal_by_name",
			description: "Delete a goal found by name or keyword, or by goal_id, together with every asset linked to it. " +
				"If several goals match nothing is deleted and the matches are returned; retry with the chosen goal_id.",
			schema: object(map[string]Property{
				"goal_id":         str("Goal id, when known or after disambiguation"),
				"name_or_keyword": str("Name or keyword identifying the goal"),
			}),
			mutates: true,
			svc:     svc,
			run:     deleteGoal,
		},
		&tool[goalIDArgs]{
			name:        "compute_goal_progress",
			description: "Compute percent complete, amount remaining and the monthly saving needed for a goal.",
			schema:      object(map[string]Property{"goal_id": str("Goal id")}, "goal_id"),
			svc:         svc,
			run:         goalProgress,
		},
		&tool[goalIDArgs]{
			name:        "complete_goal",
			description: "Mark a goal as achieved.",
			schema:      object(map[string]Property{"goal_id": str("Goal id")}, "goal_id"),
			mutates:     true,
			svc:         svc,
			run:         completeGoal,
		},
	}
}

func listGoals(ctx context.Context, svc *Services, args *listGoalsArgs) (Result, error) {
	status := services.GoalStatus(args.Status)
	if status == "all" {
		status = services.GoalStatusAll
	}
	page, err := svc.Goals.List(ctx, pagination.PageRequest{Page: args.Page, PageSize: args.PageSize}, status)
	if err != nil {
		return nil, err
	}
	return Result{
		"goals":       page.Data,
		"page":        page.Page,
		"total_items": page.TotalItems,
		"total_pages": page.TotalPages,
	}, nil
}

func createGoal(ctx context.Context, svc *Services, args *createGoalArgs) (Result, error) {
	targetDate, err := parseDate(args.TargetDate)
	if err != nil {
		return nil, err
	}
	in := services.CreateGoalInput{
		Name:        args.Name,
		Description: args.Description,
		Categories:  toCategories(args.Categories),
		CurrentAmt:  args.CurrentAmount,
		TargetAmt:   args.TargetAmount,
		TargetDate:  targetDate,
		Priority:    args.Priority,
		Details:     args.goalDetailArgs.toDetails(),
	}

	if len(args.SuggestedAssets) == 0 {
		goal, err := svc.Goals.Create(ctx, in)
		if err != nil {
			return nil, err
		}
		return Result{"goal": goal}, nil
	}

	assets := make([]services.CreateAssetInput, 0, len(args.SuggestedAssets))
	for i := range args.SuggestedAssets {
		a, err := args.SuggestedAssets[i].toInput()
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}

	result, err := svc.Goals.CreateWithAssets(ctx, in, assets)
	if err != nil {
		return nil, err
	}
	return Result{
		"goal":          result.Goal,
		"assets":        result.Assets,
		"failed_assets": result.FailedAssets,
		"partial":       result.Partial(),
	}, nil
}

func searchGoals(ctx context.Context, svc *Services, args *searchArgs) (Result, error) {
	goals, err := svc.Goals.SearchByName(ctx, args.Query)
	if err != nil {
		return nil, err
	}
	return Result{"goals": goals, "count": len(goals)}, nil
}

func updateGoal(ctx context.Context, svc *Services, args *updateGoalArgs) (Result, error) {
	goal, err := resolveGoal(ctx, svc.Goals, args.GoalID, args.NameOrKeyword)
	if err != nil {
		return nil, err
	}
	u := args.Updates
	targetDate, err := parseDatePtr(u.TargetDate)
	if err != nil {
		return nil, err
	}
	in := services.UpdateGoalInput{
		Name:        u.Name,
		Description: u.Description,
		CurrentAmt:  u.CurrentAmount,
		TargetAmt:   u.TargetAmount,
		TargetDate:  targetDate,
		Priority:    u.Priority,
		Details:     u.goalDetailArgs.toDetails(),
	}
	if u.Categories != nil {
		in.Categories = toCategories(u.Categories)
	}

	updated, err := svc.Goals.Update(ctx, goal.ID, in)
	if err != nil {
		return nil, err
	}
	return Result{"goal": updated}, nil
}

func deleteGoal(ctx context.Context, svc *Services, args *goalKeywordArgs) (Result, error) {
	goal, err := resolveGoal(ctx, svc.Goals, args.GoalID, args.NameOrKeyword)
	if err != nil {
		return nil, err
	}
	deleted, err := svc.Goals.Delete(ctx, goal.ID)
	if err != nil {
		return nil, err
	}
	return Result{"deleted": deleted}, nil
}

func goalProgress(ctx context.Context, svc *Services, args *goalIDArgs) (Result, error) {
	report, err := svc.Goals.Progress(ctx, args.GoalID)
	if err != nil {
		return nil, err
	}
	return Result{"progress": report}, nil
}

func completeGoal(ctx context.Context, svc *Services, args *goalIDArgs) (Result, error) {
	goal, err := svc.Goals.Complete(ctx, args.GoalID)
	if err != nil {
		return nil, err
	}
	return Result{"goal": goal}, nil
}

func toCategories(in []string) []models.GoalCategory {
	out := make([]models.GoalCategory, len(in))
	for i, c := range in {
		out[i] = models.GoalCategory(c)
	}
	return out
}
