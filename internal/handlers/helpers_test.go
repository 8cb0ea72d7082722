package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"goalwise/internal/auth"
	"goalwise/internal/logger"
	"goalwise/internal/middleware"
	"goalwise/internal/models"
	"goalwise/internal/services"
	"goalwise/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

const testCaller = auth.CallerID("user_test")

func injectCaller(caller auth.CallerID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CallerIDKey, caller)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

// callerOf returns the caller the handler attached to ctx, failing the test
// when there is none.
func callerOf(t *testing.T, ctx context.Context) auth.CallerID {
	t.Helper()
	caller, err := auth.RequireCaller(ctx)
	if err != nil {
		t.Fatalf("expected caller in service context: %v", err)
	}
	return caller
}

// --- mock services ---

type mockDashboardService struct {
	summaryFn   func(ctx context.Context) (*services.DashboardSummary, error)
	portfolioFn func(ctx context.Context) (*services.PortfolioStats, error)
}

func (m *mockDashboardService) Invalidate(string) {}

func (m *mockDashboardService) Summary(ctx context.Context) (*services.DashboardSummary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx)
	}
	return &services.DashboardSummary{}, nil
}

func (m *mockDashboardService) Portfolio(ctx context.Context) (*services.PortfolioStats, error) {
	if m.portfolioFn != nil {
		return m.portfolioFn(ctx)
	}
	return &services.PortfolioStats{}, nil
}

type mockSuggestionService struct {
	suggestFn func(ctx context.Context, goalID string, risk string, target float64) (*services.SuggestionSet, error)
}

func (m *mockSuggestionService) Suggest(ctx context.Context, goalID string, risk models.RiskLevel, target float64) (*services.SuggestionSet, error) {
	if m.suggestFn != nil {
		return m.suggestFn(ctx, goalID, string(risk), target)
	}
	return &services.SuggestionSet{}, nil
}

type mockPricingService struct {
	refreshAssetFn func(ctx context.Context, assetID string) (*services.RefreshResult, error)
	refreshAllFn   func(ctx context.Context) (*services.RefreshSummary, error)
}

func (m *mockPricingService) RefreshAsset(ctx context.Context, assetID string) (*services.RefreshResult, error) {
	if m.refreshAssetFn != nil {
		return m.refreshAssetFn(ctx, assetID)
	}
	return &services.RefreshResult{AssetID: assetID}, nil
}

func (m *mockPricingService) RefreshAll(ctx context.Context) (*services.RefreshSummary, error) {
	if m.refreshAllFn != nil {
		return m.refreshAllFn(ctx)
	}
	return &services.RefreshSummary{Failed: []services.RefreshFailure{}}, nil
}

// verify interface compliance
var (
	_ services.DashboardServicer  = (*mockDashboardService)(nil)
	_ services.SuggestionServicer = (*mockSuggestionService)(nil)
	_ services.PricingServicer    = (*mockPricingService)(nil)
)
