package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"goalwise/internal/auth"
	"goalwise/internal/finmath"
	"goalwise/internal/models"
	"goalwise/internal/services"
	"goalwise/internal/testutil"
)

func flatLookup(_ context.Context, _ string, from, to time.Time) ([]finmath.PricePoint, error) {
	p := 100.0
	return []finmath.PricePoint{{Time: from.Add(to.Sub(from) / 2), Close: &p}}, nil
}

func newTestRegistry(t *testing.T) (*Registry, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	dashboard, err := services.NewDashboardService(db, 0)
	testutil.AssertNoError(t, err)
	catalog, err := services.LoadSuggestionCatalog("")
	testutil.AssertNoError(t, err)

	audit := services.NewAuditService(db)
	assets := services.NewAssetService(db, audit, dashboard)
	return NewRegistry(&Services{
		Goals:         services.NewGoalService(db, assets, audit, dashboard, 0.06),
		Assets:        assets,
		Pricing:       services.NewPricingService(db, flatLookup, audit, dashboard),
		Dashboard:     dashboard,
		Suggestions:   services.NewSuggestionService(db, catalog),
		InflationRate: 0.06,
	}), db
}

func exec(t *testing.T, r *Registry, caller, name string, args any) Result {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return r.Execute(context.Background(), auth.CallerID(caller), name, raw)
}

func assertFailure(t *testing.T, res Result, code string) {
	t.Helper()
	if res.Success() {
		t.Fatalf("expected failure %s, got success: %v", code, res)
	}
	if msg, _ := res["error"].(string); msg == "" {
		t.Errorf("expected an error message, got %v", res)
	}
	if code != "" && res["code"] != code {
		t.Errorf("expected code %s, got %v (%v)", code, res["code"], res["error"])
	}
}

func assertSuccess(t *testing.T, res Result) {
	t.Helper()
	if !res.Success() {
		t.Fatalf("expected success, got %v", res)
	}
}

func TestRegistry_Catalog(t *testing.T) {
	r, _ := newTestRegistry(t)

	want := []string{
		"calculate_future_cost", "calculate_retirement_corpus", "complete_goal", "compute_goal_progress",
		"create_asset", "create_goal", "delete_asset", "delete_goal_by_name", "get_asset_performance",
		"get_dashboard_stats", "get_investment_suggestions", "get_portfolio_stats", "list_goals",
		"refresh_asset_price", "search_assets_by_name", "search_goals_by_name", "update_asset",
		"update_goal_by_name",
	}
	got := r.Tools()
	if len(got) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(got))
	}
	for i, tl := range got {
		if tl.Name() != want[i] {
			t.Errorf("tool %d: expected %s, got %s", i, want[i], tl.Name())
		}
		if tl.Description() == "" {
			t.Errorf("%s has no description", tl.Name())
		}
		schema := tl.Schema()
		for _, req := range schema.Required {
			if _, ok := schema.Properties[req]; !ok {
				t.Errorf("%s requires undeclared property %s", tl.Name(), req)
			}
		}
	}
}

func TestRegistry_MalformedArgumentsNeverThrow(t *testing.T) {
	r, _ := newTestRegistry(t)
	caller := testutil.NewUserID()

	inputs := map[string]string{
		"truncated":     `{"name":`,
		"array":         `[1,2,3]`,
		"wrong_types":   `{"name":42,"query":false,"goal_id":7,"asset_id":[],"current_cost":"x"}`,
		"unknown_field": `{"definitely_not_an_argument":1}`,
	}
	for _, tl := range r.Tools() {
		for label, raw := range inputs {
			t.Run(tl.Name()+"/"+label, func(t *testing.T) {
				res := r.Execute(context.Background(), auth.CallerID(caller), tl.Name(), json.RawMessage(raw))
				assertFailure(t, res, "INVALID_ARGUMENTS")
				if _, err := json.Marshal(res); err != nil {
					t.Errorf("result not serializable: %v", err)
				}
			})
		}
	}
}

func TestRegistry_Execute(t *testing.T) {
	t.Run("unknown_tool", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		assertFailure(t, exec(t, r, testutil.NewUserID(), "drop_database", nil), "INVALID_ARGUMENTS")
	})

	t.Run("no_caller", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		assertFailure(t, exec(t, r, "", "get_dashboard_stats", nil), "UNAUTHENTICATED")
	})

	t.Run("panic_is_recovered", func(t *testing.T) {
		boom := &tool[noArgs]{
			name: "boom",
			run: func(context.Context, *Services, *noArgs) (Result, error) {
				panic("kaboom")
			},
		}
		res := boom.Execute(context.Background(), "user_1", nil)
		assertFailure(t, res, "INTERNAL_ERROR")
		if strings.Contains(res["error"].(string), "kaboom") {
			t.Error("expected panic value not to leak to the model")
		}
	})

	t.Run("validation_message_names_field", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		res := exec(t, r, testutil.NewUserID(), "create_goal", map[string]any{"name": "Car"})
		assertFailure(t, res, "INVALID_ARGUMENTS")
		if !strings.Contains(res["error"].(string), "categories is required") {
			t.Errorf("expected message to name the missing field, got %v", res["error"])
		}
	})
}

func TestGoalTools(t *testing.T) {
	t.Run("search_with_no_match_is_empty_success", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		testutil.CreateTestGoalWith(t, db, user, func(g *models.Goal) { g.Name = "New car" })

		res := exec(t, r, user, "search_goals_by_name", map[string]any{"query": "wedding"})
		assertSuccess(t, res)
		if !strings.Contains(res.JSON(), `"goals":[]`) {
			t.Errorf("expected empty goals array, got %s", res.JSON())
		}
	})

	t.Run("create_retirement_goal", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		res := exec(t, r, testutil.NewUserID(), "create_goal", map[string]any{
			"name":             "Retirement",
			"categories":       []string{"retirement"},
			"monthly_expenses": 50000,
			"current_age":      30,
			"retirement_age":   60,
			"life_expectancy":  85,
		})
		assertSuccess(t, res)

		goal := res["goal"].(*models.Goal)
		if !goal.TargetAmt.IsPositive() {
			t.Errorf("expected corpus as target, got %s", goal.TargetAmt)
		}
		if goal.TargetDate.Year() != time.Now().AddDate(30, 0, 0).Year() {
			t.Errorf("expected target date at retirement, got %v", goal.TargetDate)
		}
		if !goal.TargetAmtInflationAdjusted.GreaterThan(goal.TargetAmt) {
			t.Error("expected inflation-adjusted target above the corpus")
		}
		if res["dashboard_invalidated"] != true {
			t.Error("expected mutation to report dashboard invalidation")
		}
	})

	t.Run("create_with_suggested_assets_partial", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()

		res := exec(t, r, user, "create_goal", map[string]any{
			"name":          "House",
			"categories":    []string{"home"},
			"target_amount": 100000,
			"target_date":   time.Now().AddDate(5, 0, 0).Format(dateLayout),
			"suggested_assets": []map[string]any{
				{"name": "Index ETF", "type": "etf", "symbol": "VOO", "quantity": 10, "purchase_price": 400},
				{"name": "   ", "type": "stock", "quantity": 1, "purchase_price": 10},
			},
		})
		assertSuccess(t, res)

		if res["partial"] != true {
			t.Error("expected partial result")
		}
		failed := res["failed_assets"].([]services.FailedAsset)
		if len(failed) != 1 || failed[0].Index != 1 {
			t.Errorf("expected second asset to fail, got %+v", failed)
		}
		var goals int64
		db.Model(&models.Goal{}).Where("user_id = ?", user).Count(&goals)
		if goals != 1 {
			t.Errorf("expected goal to be kept, got %d goals", goals)
		}
	})

	t.Run("update_by_keyword", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		testutil.CreateTestGoalWith(t, db, user, func(g *models.Goal) { g.Name = "Japan trip" })

		res := exec(t, r, user, "update_goal_by_name", map[string]any{
			"name_or_keyword": "japan",
			"updates":         map[string]any{"priority": "high", "target_amount": 8000},
		})
		assertSuccess(t, res)
		goal := res["goal"].(*models.Goal)
		if goal.Priority != models.PriorityHigh || goal.TargetAmt.String() != "8000" {
			t.Errorf("unexpected goal after update: %s %s", goal.Priority, goal.TargetAmt)
		}
	})

	t.Run("ambiguous_delete_changes_nothing", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		testutil.CreateTestGoalWith(t, db, user, func(g *models.Goal) { g.Name = "Car for me" })
		testutil.CreateTestGoalWith(t, db, user, func(g *models.Goal) { g.Name = "Car for partner" })

		res := exec(t, r, user, "delete_goal_by_name", map[string]any{"name_or_keyword": "car"})
		assertFailure(t, res, "AMBIGUOUS_MATCH")
		if matches := res["matches"].([]Match); len(matches) != 2 {
			t.Errorf("expected 2 matches, got %d", len(matches))
		}
		var count int64
		db.Model(&models.Goal{}).Where("user_id = ?", user).Count(&count)
		if count != 2 {
			t.Errorf("expected both goals to remain, got %d", count)
		}
	})

	t.Run("goal_id_settles_ambiguity", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		keep := testutil.CreateTestGoalWith(t, db, user, func(g *models.Goal) { g.Name = "Car" })
		drop := testutil.CreateTestGoalWith(t, db, user, func(g *models.Goal) { g.Name = "Car for partner" })

		res := exec(t, r, user, "delete_goal_by_name", map[string]any{"name_or_keyword": "Car"})
		assertFailure(t, res, "AMBIGUOUS_MATCH")
		if !strings.Contains(res["error"].(string), "goal_id") {
			t.Errorf("expected the error to point at goal_id, got %v", res["error"])
		}

		res = exec(t, r, user, "delete_goal_by_name", map[string]any{"goal_id": drop.ID})
		assertSuccess(t, res)

		var ids []string
		db.Model(&models.Goal{}).Where("user_id = ?", user).Pluck("id", &ids)
		if len(ids) != 1 || ids[0] != keep.ID {
			t.Errorf("expected only %s to remain, got %v", keep.ID, ids)
		}
	})

	t.Run("update_by_goal_id", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		goal := testutil.CreateTestGoal(t, db, user)

		res := exec(t, r, user, "update_goal_by_name", map[string]any{
			"goal_id": goal.ID,
			"updates": map[string]any{"priority": "low"},
		})
		assertSuccess(t, res)
		if res["goal"].(*models.Goal).Priority != models.PriorityLow {
			t.Errorf("expected low priority, got %v", res["goal"])
		}

		res = exec(t, r, user, "update_goal_by_name", map[string]any{"updates": map[string]any{"priority": "low"}})
		assertFailure(t, res, "INVALID_ARGUMENTS")
	})

	t.Run("foreign_goal_id", func(t *testing.T) {
		r, db := newTestRegistry(t)
		foreign := testutil.CreateTestGoal(t, db, testutil.NewUserID())

		res := exec(t, r, testutil.NewUserID(), "delete_goal_by_name", map[string]any{"goal_id": foreign.ID})
		assertFailure(t, res, "GOAL_NOT_FOUND")

		var count int64
		db.Model(&models.Goal{}).Where("id = ?", foreign.ID).Count(&count)
		if count != 1 {
			t.Error("expected foreign goal to remain")
		}
	})

	t.Run("ownership_isolation", func(t *testing.T) {
		r, db := newTestRegistry(t)
		foreign := testutil.CreateTestGoal(t, db, testutil.NewUserID())
		caller := testutil.NewUserID()

		for _, name := range []string{"compute_goal_progress", "complete_goal"} {
			forOther := exec(t, r, caller, name, map[string]any{"goal_id": foreign.ID})
			missing := exec(t, r, caller, name, map[string]any{"goal_id": uuid.NewString()})
			assertFailure(t, forOther, "GOAL_NOT_FOUND")
			if forOther["error"] != missing["error"] || forOther["code"] != missing["code"] {
				t.Errorf("%s: foreign %v differs from missing %v", name, forOther, missing)
			}
		}

		var goal models.Goal
		testutil.AssertNoError(t, db.First(&goal, "id = ?", foreign.ID).Error)
		if goal.CompletedAt != nil {
			t.Error("expected foreign goal to be untouched")
		}
	})

	t.Run("progress", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		goal := testutil.CreateTestGoal(t, db, user)

		res := exec(t, r, user, "compute_goal_progress", map[string]any{"goal_id": goal.ID})
		assertSuccess(t, res)
		report := res["progress"].(*services.GoalProgressReport)
		if report.PercentComplete != 10 {
			t.Errorf("expected 10%%, got %v", report.PercentComplete)
		}
	})
}

func TestAssetTools(t *testing.T) {
	seedTesla := func(t *testing.T, db *gorm.DB, user string) {
		t.Helper()
		testutil.CreateTestAssetWith(t, db, user, func(a *models.Asset) { a.Name = "Tesla (broker A)"; a.Symbol = "TSLA" })
		testutil.CreateTestAssetWith(t, db, user, func(a *models.Asset) { a.Name = "Tesla (broker B)"; a.Symbol = "TSLA" })
	}

	t.Run("ambiguous_delete_changes_nothing", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		seedTesla(t, db, user)

		res := exec(t, r, user, "delete_asset", map[string]any{"name_or_symbol": "tesla", "confirm_deletion": true})
		assertFailure(t, res, "AMBIGUOUS_MATCH")

		var count int64
		db.Model(&models.Asset{}).Where("user_id = ?", user).Count(&count)
		if count != 2 {
			t.Errorf("expected both assets to remain, got %d", count)
		}
	})

	t.Run("search_then_delete", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		seedTesla(t, db, user)

		search := exec(t, r, user, "search_assets_by_name", map[string]any{"query": "tesla"})
		assertSuccess(t, search)
		if search["count"] != 2 {
			t.Fatalf("expected 2 matches, got %v", search["count"])
		}

		res := exec(t, r, user, "delete_asset", map[string]any{"name_or_symbol": "Tesla (broker B)", "confirm_deletion": true})
		assertSuccess(t, res)
		if res["dashboard_invalidated"] != true {
			t.Error("expected dashboard invalidation to be reported")
		}

		var names []string
		db.Model(&models.Asset{}).Where("user_id = ?", user).Pluck("name", &names)
		if len(names) != 1 || names[0] != "Tesla (broker A)" {
			t.Errorf("expected only broker A to remain, got %v", names)
		}
	})

	t.Run("exact_name_still_ambiguous", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		testutil.CreateTestAssetWith(t, db, user, func(a *models.Asset) { a.Name = "Tesla"; a.Symbol = "TSLA" })
		testutil.CreateTestAssetWith(t, db, user, func(a *models.Asset) { a.Name = "Tesla Bond"; a.Symbol = "TSLA29" })

		res := exec(t, r, user, "delete_asset", map[string]any{"name_or_symbol": "Tesla", "confirm_deletion": true})
		assertFailure(t, res, "AMBIGUOUS_MATCH")
		if matches := res["matches"].([]Match); len(matches) != 2 {
			t.Errorf("expected 2 matches, got %d", len(matches))
		}

		var count int64
		db.Model(&models.Asset{}).Where("user_id = ?", user).Count(&count)
		if count != 2 {
			t.Errorf("expected both assets to remain, got %d", count)
		}
	})

	t.Run("identical_lots_deleted_by_id", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		lot := func(a *models.Asset) { a.Name = "Tesla"; a.Symbol = "TSLA" }
		first := testutil.CreateTestAssetWith(t, db, user, lot)
		second := testutil.CreateTestAssetWith(t, db, user, lot)

		res := exec(t, r, user, "delete_asset", map[string]any{"name_or_symbol": "TSLA", "confirm_deletion": true})
		assertFailure(t, res, "AMBIGUOUS_MATCH")

		res = exec(t, r, user, "delete_asset", map[string]any{"asset_id": second.ID, "confirm_deletion": true})
		assertSuccess(t, res)
		if deleted := res["deleted"].(Match); deleted.ID != second.ID {
			t.Errorf("expected %s deleted, got %s", second.ID, deleted.ID)
		}

		var ids []string
		db.Model(&models.Asset{}).Where("user_id = ?", user).Pluck("id", &ids)
		if len(ids) != 1 || ids[0] != first.ID {
			t.Errorf("expected only %s to remain, got %v", first.ID, ids)
		}
	})

	t.Run("update_by_asset_id", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		seedTesla(t, db, user)
		var target models.Asset
		testutil.AssertNoError(t, db.Where("user_id = ? AND name = ?", user, "Tesla (broker A)").First(&target).Error)

		res := exec(t, r, user, "update_asset", map[string]any{
			"asset_id": target.ID,
			"updates":  map[string]any{"quantity": 3},
		})
		assertSuccess(t, res)
		if res["asset"].(*models.Asset).Quantity != 3 {
			t.Errorf("expected quantity 3, got %v", res["asset"])
		}
	})

	t.Run("foreign_asset_id", func(t *testing.T) {
		r, db := newTestRegistry(t)
		foreign := testutil.CreateTestAsset(t, db, testutil.NewUserID())
		caller := testutil.NewUserID()

		byID := exec(t, r, caller, "delete_asset", map[string]any{"asset_id": foreign.ID, "confirm_deletion": true})
		missing := exec(t, r, caller, "delete_asset", map[string]any{"asset_id": uuid.NewString(), "confirm_deletion": true})
		assertFailure(t, byID, "ASSET_NOT_FOUND")
		if byID["error"] != missing["error"] {
			t.Errorf("foreign %v differs from missing %v", byID, missing)
		}

		var count int64
		db.Model(&models.Asset{}).Where("id = ?", foreign.ID).Count(&count)
		if count != 1 {
			t.Error("expected foreign asset to remain")
		}
	})

	t.Run("unconfirmed_delete", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		asset := testutil.CreateTestAsset(t, db, user)

		res := exec(t, r, user, "delete_asset", map[string]any{"name_or_symbol": asset.Symbol})
		assertFailure(t, res, "INVALID_ARGUMENTS")

		var count int64
		db.Model(&models.Asset{}).Where("id = ?", asset.ID).Count(&count)
		if count != 1 {
			t.Error("expected asset to remain")
		}
	})

	t.Run("foreign_asset_not_found", func(t *testing.T) {
		r, db := newTestRegistry(t)
		foreign := testutil.CreateTestAsset(t, db, testutil.NewUserID())
		caller := testutil.NewUserID()

		forOther := exec(t, r, caller, "get_asset_performance", map[string]any{"asset_id": foreign.ID})
		missing := exec(t, r, caller, "get_asset_performance", map[string]any{"asset_id": uuid.NewString()})
		assertFailure(t, forOther, "ASSET_NOT_FOUND")
		if forOther["error"] != missing["error"] {
			t.Errorf("foreign %v differs from missing %v", forOther, missing)
		}

		byName := exec(t, r, caller, "delete_asset", map[string]any{"name_or_symbol": foreign.Symbol, "confirm_deletion": true})
		assertFailure(t, byName, "ASSET_NOT_FOUND")
	})

	t.Run("create_with_fixed_deposit_detail", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		res := exec(t, r, testutil.NewUserID(), "create_asset", map[string]any{
			"name":           "Bank FD",
			"type":           "fixed_deposit",
			"quantity":       1,
			"purchase_price": 5000,
			"bank_name":      "First Bank",
			"interest_rate":  7.1,
			"maturity_date":  "2030-01-31",
			"risk_level":     "low",
		})
		assertSuccess(t, res)
		asset := res["asset"].(*models.Asset)
		if asset.FixedDepositDetail == nil || asset.FixedDepositDetail.BankName != "First Bank" {
			t.Errorf("expected fixed deposit detail, got %+v", asset.FixedDepositDetail)
		}
	})

	t.Run("refresh_by_symbol", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		asset := testutil.CreateTestAsset(t, db, user)

		res := exec(t, r, user, "refresh_asset_price", map[string]any{"name_or_symbol": asset.Symbol})
		assertSuccess(t, res)
		refresh := res["refresh"].(*services.RefreshResult)
		if refresh.CurrentValue != 1000 {
			t.Errorf("expected value 1000 at flat prices, got %v", refresh.CurrentValue)
		}
	})
}

func TestInsightTools(t *testing.T) {
	t.Run("future_cost", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		res := exec(t, r, testutil.NewUserID(), "calculate_future_cost", map[string]any{
			"current_cost": 100, "years": 2, "inflation_rate": 0.1,
		})
		assertSuccess(t, res)
		if res["future_cost"] != 121.0 {
			t.Errorf("expected 121, got %v", res["future_cost"])
		}
	})

	t.Run("retirement_invalid_ages", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		res := exec(t, r, testutil.NewUserID(), "calculate_retirement_corpus", map[string]any{
			"monthly_expenses": 1000, "current_age": 60, "retirement_age": 55,
		})
		assertFailure(t, res, "INVALID_DOMAIN_INPUT")
	})

	t.Run("dashboard", func(t *testing.T) {
		r, db := newTestRegistry(t)
		user := testutil.NewUserID()
		testutil.CreateTestAsset(t, db, user)

		res := exec(t, r, user, "get_dashboard_stats", nil)
		assertSuccess(t, res)
		summary := res["dashboard"].(*services.DashboardSummary)
		if summary.TotalAssetsValue != 1000 {
			t.Errorf("expected 1000, got %v", summary.TotalAssetsValue)
		}
	})

	t.Run("suggestions", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		res := exec(t, r, testutil.NewUserID(), "get_investment_suggestions", map[string]any{
			"risk_level": "low", "target_amount": 5000,
		})
		assertSuccess(t, res)
		set := res["suggestions"].(*services.SuggestionSet)
		if set.RiskLevel != models.RiskLow || len(set.Suggestions) == 0 {
			t.Errorf("unexpected suggestion set %+v", set)
		}
	})
}
