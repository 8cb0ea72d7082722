package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "goalwise/internal/errors"
	"goalwise/internal/models"
	"goalwise/internal/pagination"
	"goalwise/internal/services"
)

const dateLayout = "2006-01-02"

// GoalHandler handles goal requests.
type GoalHandler struct {
	goalService services.GoalServicer
}

// NewGoalHandler creates a new GoalHandler.
func NewGoalHandler(goalService services.GoalServicer) *GoalHandler {
	return &GoalHandler{goalService: goalService}
}

// GoalDetailsRequest holds the optional category-specific goal fields.
type GoalDetailsRequest struct {
	MonthlyExpenses       *float64 `json:"monthly_expenses" binding:"omitempty,gt=0"`
	CurrentAge            *int     `json:"current_age" binding:"omitempty,gt=0,lt=120"`
	RetirementAge         *int     `json:"retirement_age" binding:"omitempty,gt=0,lt=120"`
	LifeExpectancy        *int     `json:"life_expectancy" binding:"omitempty,gt=0,lt=130"`
	DownPaymentPercentage *float64 `json:"down_payment_percentage" binding:"omitempty,gte=0,lte=100"`
	LoanRequired          *bool    `json:"loan_required"`
	CourseDurationYears   *int     `json:"course_duration_years" binding:"omitempty,gt=0"`
	InstitutionType       *string  `json:"institution_type" binding:"omitempty,max=100"`
	Destination           *string  `json:"destination" binding:"omitempty,max=200"`
	Travelers             *int     `json:"travelers" binding:"omitempty,gt=0"`
	GuestCount            *int     `json:"guest_count" binding:"omitempty,gt=0"`
	HoneymoonIncluded     *bool    `json:"honeymoon_included"`
	MonthlyIncome         *float64 `json:"monthly_income" binding:"omitempty,gt=0"`
	CoverageMonths        *int     `json:"coverage_months" binding:"omitempty,gt=0"`
	InterestRate          *float64 `json:"interest_rate" binding:"omitempty,gte=0"`
	MinimumPayment        *float64 `json:"minimum_payment" binding:"omitempty,gte=0"`
}

func (d GoalDetailsRequest) toDetails() services.GoalDetails {
	return services.GoalDetails(d)
}

// CreateGoalRequest represents the request payload for creating a goal.
// Suggested assets are created after the goal and linked to it; failures
// among them are reported without undoing the goal.
type CreateGoalRequest struct {
	Name            string               `json:"name" binding:"required,min=1,max=200"`
	Description     string               `json:"description" binding:"max=1000"`
	Categories      []string             `json:"categories" binding:"required,min=1,dive,goal_category"`
	CurrentAmt      float64              `json:"current_amt" binding:"gte=0"`
	TargetAmt       float64              `json:"target_amt" binding:"gte=0"`
	TargetDate      string               `json:"target_date" binding:"omitempty,datetime=2006-01-02" example:"2030-12-31"`
	Priority        string               `json:"priority" binding:"omitempty,priority" example:"high"`
	SuggestedAssets []CreateAssetRequest `json:"suggested_assets" binding:"omitempty,max=20,dive"`
	GoalDetailsRequest
}

// UpdateGoalRequest represents the request payload for updating a goal.
type UpdateGoalRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string  `json:"description" binding:"omitempty,max=1000"`
	Categories  []string `json:"categories" binding:"omitempty,min=1,dive,goal_category"`
	CurrentAmt  *float64 `json:"current_amt" binding:"omitempty,gte=0"`
	TargetAmt   *float64 `json:"target_amt" binding:"omitempty,gt=0"`
	TargetDate  *string  `json:"target_date" binding:"omitempty,datetime=2006-01-02"`
	Priority    *string  `json:"priority" binding:"omitempty,priority"`
	GoalDetailsRequest
}

// ListGoalsQuery holds the goal listing query parameters.
type ListGoalsQuery struct {
	pagination.PageRequest
	Status string `form:"status" binding:"omitempty,oneof=active completed"`
}

// CreateGoal handles goal creation
// @Summary     Create a goal
// @Description Create a savings goal. Retirement goals with monthly expenses and ages get their target computed.
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateGoalRequest true "Goal details"
// @Success     201 {object} services.CreateGoalResult "Goal created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Invalid retirement inputs"
// @Router      /goals [post]
func (h *GoalHandler) CreateGoal(c *gin.Context) {
	ctx, err := requestContext(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	in, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return
	}

	if len(req.SuggestedAssets) == 0 {
		goal, err := h.goalService.Create(ctx, in)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"goal": goal})
		return
	}

	assets := make([]services.CreateAssetInput, 0, len(req.SuggestedAssets))
	for i := range req.SuggestedAssets {
		a, err := req.SuggestedAssets[i].toInput()
		if err != nil {
			respondWithError(c, err)
			return
		}
		assets = append(assets, a)
	}

	result, err := h.goalService.CreateWithAssets(ctx, in, assets)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"goal":          result.Goal,
		"assets":        result.Assets,
		"failed_assets": result.FailedAssets,
		"partial":       result.Partial(),
	})
}

// ListGoals handles listing goals
// @Summary     List goals
// @Description List the caller's goals, soonest target date first
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Page size (max 100)"
// @Param       status    query string false "active or completed"
// @Success     200 {object} pagination.PageResponse[models.Goal]
// @Failure     400 {object} ErrorResponse "Invalid query"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /goals [get]
func (h *GoalHandler) ListGoals(c *gin.Context) {
	ctx, err := requestContext(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q ListGoalsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	page, err := h.goalService.List(ctx, q.PageRequest, services.GoalStatus(q.Status))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetGoal handles fetching a goal
// @Summary     Get a goal
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Goal ID"
// @Success     200 {object} models.Goal
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /goals/{id} [get]
func (h *GoalHandler) GetGoal(c *gin.Context) {
	h.withGoal(c, func(c *gin.Context, id string) (any, error) {
		goal, err := h.goalService.GetByID(c.Request.Context(), id)
		if err != nil {
			return nil, err
		}
		return gin.H{"goal": goal}, nil
	})
}

// UpdateGoal handles goal updates
// @Summary     Update a goal
// @Description Partially update a goal. The inflation-adjusted target is recomputed when the target changes.
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Goal ID"
// @Param       request body UpdateGoalRequest true "Fields to update"
// @Success     200 {object} models.Goal
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /goals/{id} [put]
func (h *GoalHandler) UpdateGoal(c *gin.Context) {
	h.withGoal(c, func(c *gin.Context, id string) (any, error) {
		var req UpdateGoalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, bindError(err)
		}
		in, err := req.toInput()
		if err != nil {
			return nil, err
		}
		goal, err := h.goalService.Update(c.Request.Context(), id, in)
		if err != nil {
			return nil, err
		}
		return gin.H{"goal": goal}, nil
	})
}

// DeleteGoal handles goal deletion
// @Summary     Delete a goal
// @Description Delete a goal and the assets linked to it
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Goal ID"
// @Success     200 {object} services.DeleteGoalResult
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /goals/{id} [delete]
func (h *GoalHandler) DeleteGoal(c *gin.Context) {
	h.withGoal(c, func(c *gin.Context, id string) (any, error) {
		result, err := h.goalService.Delete(c.Request.Context(), id)
		if err != nil {
			return nil, err
		}
		return gin.H{"deleted": result}, nil
	})
}

// CompleteGoal handles marking a goal complete
// @Summary     Complete a goal
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Goal ID"
// @Success     200 {object} models.Goal
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /goals/{id}/complete [post]
func (h *GoalHandler) CompleteGoal(c *gin.Context) {
	h.withGoal(c, func(c *gin.Context, id string) (any, error) {
		goal, err := h.goalService.Complete(c.Request.Context(), id)
		if err != nil {
			return nil, err
		}
		return gin.H{"goal": goal}, nil
	})
}

// GetGoalProgress handles goal progress requests
// @Summary     Goal progress
// @Description Percent complete, remaining amount and required monthly saving
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Goal ID"
// @Success     200 {object} services.GoalProgressReport
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /goals/{id}/progress [get]
func (h *GoalHandler) GetGoalProgress(c *gin.Context) {
	h.withGoal(c, func(c *gin.Context, id string) (any, error) {
		report, err := h.goalService.Progress(c.Request.Context(), id)
		if err != nil {
			return nil, err
		}
		return gin.H{"progress": report}, nil
	})
}

// withGoal resolves the caller and the :id parameter, runs fn with the
// request context prepared and writes its result as 200.
func (h *GoalHandler) withGoal(c *gin.Context, fn func(c *gin.Context, id string) (any, error)) {
	ctx, err := requestContext(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.Request = c.Request.WithContext(ctx)

	body, err := fn(c, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (r *CreateGoalRequest) toInput() (services.CreateGoalInput, error) {
	targetDate, err := parseDate(r.TargetDate)
	if err != nil {
		return services.CreateGoalInput{}, err
	}
	return services.CreateGoalInput{
		Name:        r.Name,
		Description: r.Description,
		Categories:  toCategories(r.Categories),
		CurrentAmt:  r.CurrentAmt,
		TargetAmt:   r.TargetAmt,
		TargetDate:  targetDate,
		Priority:    r.Priority,
		Details:     r.GoalDetailsRequest.toDetails(),
	}, nil
}

func (r *UpdateGoalRequest) toInput() (services.UpdateGoalInput, error) {
	in := services.UpdateGoalInput{
		Name:        r.Name,
		Description: r.Description,
		Categories:  toCategories(r.Categories),
		CurrentAmt:  r.CurrentAmt,
		TargetAmt:   r.TargetAmt,
		Priority:    r.Priority,
		Details:     r.GoalDetailsRequest.toDetails(),
	}
	if r.TargetDate != nil {
		t, err := parseDate(*r.TargetDate)
		if err != nil {
			return in, err
		}
		in.TargetDate = &t
	}
	return in, nil
}

func toCategories(names []string) []models.GoalCategory {
	if names == nil {
		return nil
	}
	out := make([]models.GoalCategory, len(names))
	for i, n := range names {
		out[i] = models.GoalCategory(n)
	}
	return out
}

// parseDate parses an optional YYYY-MM-DD value.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "Dates must use YYYY-MM-DD")
	}
	return t, nil
}
