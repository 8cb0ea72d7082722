package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "goalwise/internal/errors"
	"goalwise/internal/models"
	"goalwise/internal/pagination"
	"goalwise/internal/services"
)

// --- mock asset service ---

type mockAssetService struct {
	createFn      func(ctx context.Context, in services.CreateAssetInput) (*models.Asset, error)
	listFn        func(ctx context.Context, page pagination.PageRequest, goalID *string) (*pagination.PageResponse[models.Asset], error)
	getByIDFn     func(ctx context.Context, assetID string) (*models.Asset, error)
	updateFn      func(ctx context.Context, assetID string, in services.UpdateAssetInput) (*models.Asset, error)
	deleteFn      func(ctx context.Context, assetID string) error
	performanceFn func(ctx context.Context, assetID string) (*services.AssetPerformanceReport, error)
}

func (m *mockAssetService) Create(ctx context.Context, in services.CreateAssetInput) (*models.Asset, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &models.Asset{Name: in.Name, Type: in.Type}, nil
}

func (m *mockAssetService) List(ctx context.Context, page pagination.PageRequest, goalID *string) (*pagination.PageResponse[models.Asset], error) {
	if m.listFn != nil {
		return m.listFn(ctx, page, goalID)
	}
	resp := pagination.NewPageResponse([]models.Asset{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockAssetService) GetByID(ctx context.Context, assetID string) (*models.Asset, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, assetID)
	}
	return &models.Asset{Base: models.Base{ID: assetID}}, nil
}

func (m *mockAssetService) SearchByName(context.Context, string) ([]models.Asset, error) {
	return []models.Asset{}, nil
}

func (m *mockAssetService) Update(ctx context.Context, assetID string, in services.UpdateAssetInput) (*models.Asset, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, assetID, in)
	}
	return &models.Asset{Base: models.Base{ID: assetID}}, nil
}

func (m *mockAssetService) Delete(ctx context.Context, assetID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, assetID)
	}
	return nil
}

func (m *mockAssetService) Performance(ctx context.Context, assetID string) (*services.AssetPerformanceReport, error) {
	if m.performanceFn != nil {
		return m.performanceFn(ctx, assetID)
	}
	return &services.AssetPerformanceReport{AssetID: assetID}, nil
}

var _ services.AssetServicer = (*mockAssetService)(nil)

const testAssetID = "0190f4b4-7d2c-7c1a-8b8e-3f2b9d1e6a02"

func setupAssetRouter(assets services.AssetServicer, pricing services.PricingServicer) *gin.Engine {
	handler := NewAssetHandler(assets, pricing)
	r := gin.New()
	authed := r.Group("", injectCaller(testCaller))
	authed.POST("/assets", handler.CreateAsset)
	authed.GET("/assets", handler.ListAssets)
	authed.GET("/assets/:id", handler.GetAsset)
	authed.PUT("/assets/:id", handler.UpdateAsset)
	authed.DELETE("/assets/:id", handler.DeleteAsset)
	authed.POST("/assets/:id/refresh", handler.RefreshAsset)
	authed.GET("/assets/:id/performance", handler.GetAssetPerformance)
	return r
}

func TestAssetHandler_CreateAsset(t *testing.T) {
	t.Run("returns 201 with type detail", func(t *testing.T) {
		var got services.CreateAssetInput
		svc := &mockAssetService{
			createFn: func(ctx context.Context, in services.CreateAssetInput) (*models.Asset, error) {
				callerOf(t, ctx)
				got = in
				return &models.Asset{
					Base:          models.Base{ID: testAssetID},
					Name:          in.Name,
					Type:          in.Type,
					Quantity:      in.Quantity,
					PurchasePrice: decimal.NewFromFloat(in.PurchasePrice),
				}, nil
			},
		}
		r := setupAssetRouter(svc, &mockPricingService{})

		rec := doRequest(r, "POST", "/assets", `{
			"name":"HDFC FD","type":"fixed_deposit","quantity":1,"purchase_price":10000,
			"goal_id":"`+testGoalID+`",
			"fixed_deposit_detail":{"bank_name":"HDFC","interest_rate":7.1,"maturity_date":"2027-04-01","compounding_frequency":"quarterly"}}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.GoalID == nil || *got.GoalID != testGoalID {
			t.Errorf("expected goal link %s, got %v", testGoalID, got.GoalID)
		}
		fd := got.FixedDeposit
		if fd == nil || fd.BankName != "HDFC" || fd.MaturityDate == nil || fd.MaturityDate.Year() != 2027 {
			t.Errorf("unexpected fixed deposit detail %+v", fd)
		}
		if got.Stock != nil || got.ETF != nil {
			t.Error("expected only the fixed deposit detail to be set")
		}
		asset := parseJSON(t, rec)["asset"].(map[string]interface{})
		if asset["id"] != testAssetID {
			t.Errorf("expected id %s, got %v", testAssetID, asset["id"])
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{"unknown_type", `{"name":"X","type":"nft","quantity":1,"purchase_price":1}`},
		{"zero_quantity", `{"name":"X","type":"stock","quantity":0,"purchase_price":1}`},
		{"bad_currency", `{"name":"X","type":"stock","quantity":1,"purchase_price":1,"currency":"rupees"}`},
		{"bad_goal_id", `{"name":"X","type":"stock","quantity":1,"purchase_price":1,"goal_id":"abc"}`},
		{"bad_compounding", `{"name":"X","type":"fixed_deposit","quantity":1,"purchase_price":1,"fixed_deposit_detail":{"compounding_frequency":"daily"}}`},
		{"malformed_json", `{"name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupAssetRouter(&mockAssetService{}, &mockPricingService{})
			rec := doRequest(r, "POST", "/assets", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
		})
	}

	t.Run("returns 404 when goal belongs to someone else", func(t *testing.T) {
		svc := &mockAssetService{
			createFn: func(context.Context, services.CreateAssetInput) (*models.Asset, error) {
				return nil, apperrors.ErrGoalNotFound
			},
		}
		r := setupAssetRouter(svc, &mockPricingService{})
		rec := doRequest(r, "POST", "/assets",
			`{"name":"X","type":"stock","symbol":"AAPL","quantity":1,"purchase_price":1,"goal_id":"`+testGoalID+`"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "GOAL_NOT_FOUND")
	})
}

func TestAssetHandler_ListAssets(t *testing.T) {
	t.Run("filters by goal", func(t *testing.T) {
		svc := &mockAssetService{
			listFn: func(_ context.Context, _ pagination.PageRequest, goalID *string) (*pagination.PageResponse[models.Asset], error) {
				if goalID == nil || *goalID != testGoalID {
					t.Errorf("expected goal filter %s, got %v", testGoalID, goalID)
				}
				resp := pagination.NewPageResponse([]models.Asset{{Name: "VOO"}}, 1, 20, 1)
				return &resp, nil
			},
		}
		r := setupAssetRouter(svc, &mockPricingService{})
		rec := doRequest(r, "GET", "/assets?goal_id="+testGoalID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if data := parseJSON(t, rec)["data"].([]interface{}); len(data) != 1 {
			t.Errorf("expected 1 asset, got %d", len(data))
		}
	})

	t.Run("no filter passes nil", func(t *testing.T) {
		svc := &mockAssetService{
			listFn: func(_ context.Context, _ pagination.PageRequest, goalID *string) (*pagination.PageResponse[models.Asset], error) {
				if goalID != nil {
					t.Errorf("expected no goal filter, got %v", *goalID)
				}
				resp := pagination.NewPageResponse([]models.Asset{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupAssetRouter(svc, &mockPricingService{})
		if rec := doRequest(r, "GET", "/assets", ""); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestAssetHandler_ByID(t *testing.T) {
	t.Run("update rejects goal_id with unlink_goal", func(t *testing.T) {
		r := setupAssetRouter(&mockAssetService{}, &mockPricingService{})
		rec := doRequest(r, "PUT", "/assets/"+testAssetID, `{"goal_id":"`+testGoalID+`","unlink_goal":true}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("update passes unlink", func(t *testing.T) {
		svc := &mockAssetService{
			updateFn: func(_ context.Context, id string, in services.UpdateAssetInput) (*models.Asset, error) {
				if !in.UnlinkGoal || in.GoalID != nil {
					t.Errorf("unexpected update %+v", in)
				}
				if in.RiskLevel == nil || *in.RiskLevel != models.RiskLevel("high") {
					t.Errorf("expected risk level high, got %v", in.RiskLevel)
				}
				return &models.Asset{Base: models.Base{ID: id}}, nil
			},
		}
		r := setupAssetRouter(svc, &mockPricingService{})
		rec := doRequest(r, "PUT", "/assets/"+testAssetID, `{"unlink_goal":true,"risk_level":"high"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("delete returns 204", func(t *testing.T) {
		var deleted string
		svc := &mockAssetService{
			deleteFn: func(_ context.Context, id string) error {
				deleted = id
				return nil
			},
		}
		r := setupAssetRouter(svc, &mockPricingService{})
		rec := doRequest(r, "DELETE", "/assets/"+testAssetID, "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if deleted != testAssetID {
			t.Errorf("expected %s deleted, got %q", testAssetID, deleted)
		}
	})

	t.Run("delete of missing asset returns 404", func(t *testing.T) {
		svc := &mockAssetService{
			deleteFn: func(context.Context, string) error { return apperrors.ErrAssetNotFound },
		}
		r := setupAssetRouter(svc, &mockPricingService{})
		rec := doRequest(r, "DELETE", "/assets/"+testAssetID, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "ASSET_NOT_FOUND")
	})

	t.Run("refresh maps upstream timeout", func(t *testing.T) {
		pricing := &mockPricingService{
			refreshAssetFn: func(ctx context.Context, _ string) (*services.RefreshResult, error) {
				callerOf(t, ctx)
				return nil, apperrors.ErrUpstreamTimeout
			},
		}
		r := setupAssetRouter(&mockAssetService{}, pricing)
		rec := doRequest(r, "POST", "/assets/"+testAssetID+"/refresh", "")
		if rec.Code != http.StatusGatewayTimeout {
			t.Fatalf("expected 504, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "UPSTREAM_TIMEOUT")
	})

	t.Run("refresh returns result", func(t *testing.T) {
		pricing := &mockPricingService{
			refreshAssetFn: func(_ context.Context, id string) (*services.RefreshResult, error) {
				return &services.RefreshResult{AssetID: id, Symbol: "AAPL", CurrentValue: 1900}, nil
			},
		}
		r := setupAssetRouter(&mockAssetService{}, pricing)
		rec := doRequest(r, "POST", "/assets/"+testAssetID+"/refresh", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		refresh := parseJSON(t, rec)["refresh"].(map[string]interface{})
		if refresh["current_value"] != float64(1900) {
			t.Errorf("expected 1900, got %v", refresh["current_value"])
		}
	})

	t.Run("performance", func(t *testing.T) {
		r := setupAssetRouter(&mockAssetService{}, &mockPricingService{})
		rec := doRequest(r, "GET", "/assets/"+testAssetID+"/performance", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		perf := parseJSON(t, rec)["performance"].(map[string]interface{})
		if perf["asset_id"] != testAssetID {
			t.Errorf("expected asset id %s, got %v", testAssetID, perf["asset_id"])
		}
	})
}
