package tools

import (
	"context"

	apperrors "goalwise/internal/errors"
	"goalwise/internal/models"
	"goalwise/internal/services"
)

var (
	assetTypeNames = []string{
		string(models.AssetTypeStock), string(models.AssetTypeMutualFund), string(models.AssetTypeETF),
		string(models.AssetTypeFixedDeposit), string(models.AssetTypeBond), string(models.AssetTypeCrypto),
		string(models.AssetTypeGold), string(models.AssetTypeRealEstate), string(models.AssetTypeOther),
	}
	riskNames = []string{string(models.RiskLow), string(models.RiskModerate), string(models.RiskHigh)}
)

type createAssetArgs struct {
	Name          string  `json:"name" validate:"required,min=1,max=200"`
	Type          string  `json:"type" validate:"required,asset_type"`
	Symbol        string  `json:"symbol" validate:"omitempty,symbol"`
	Quantity      float64 `json:"quantity" validate:"required,gt=0"`
	PurchasePrice float64 `json:"purchase_price" validate:"required,gt=0"`
	PurchaseDate  string  `json:"purchase_date" validate:"omitempty,datetime=2006-01-02"`
	Currency      string  `json:"currency" validate:"omitempty,iso4217"`
	RiskLevel     string  `json:"risk_level" validate:"omitempty,risk_level"`
	GoalID        string  `json:"goal_id" validate:"omitempty,uuid"`

	Exchange      string   `json:"exchange" validate:"max=50"`
	Sector        string   `json:"sector" validate:"max=100"`
	FundHouse     string   `json:"fund_house" validate:"max=200"`
	SchemeCode    string   `json:"scheme_code" validate:"max=50"`
	FundCategory  string   `json:"fund_category" validate:"max=100"`
	ExpenseRatio  *float64 `json:"expense_ratio" validate:"omitempty,gte=0,lte=100"`
	TrackingIndex string   `json:"tracking_index" validate:"max=200"`
	BankName      string   `json:"bank_name" validate:"max=200"`
	InterestRate  *float64 `json:"interest_rate" validate:"omitempty,gte=0"`
	MaturityDate  string   `json:"maturity_date" validate:"omitempty,datetime=2006-01-02"`
}

// toInput converts the arguments, attaching the detail that matches the
// asset type.
func (a *createAssetArgs) toInput() (services.CreateAssetInput, error) {
	purchaseDate, err := parseDate(a.PurchaseDate)
	if err != nil {
		return services.CreateAssetInput{}, err
	}
	in := services.CreateAssetInput{
		Name:          a.Name,
		Type:          models.AssetType(a.Type),
		Symbol:        a.Symbol,
		Quantity:      a.Quantity,
		PurchasePrice: a.PurchasePrice,
		PurchaseDate:  purchaseDate,
		Currency:      a.Currency,
		RiskLevel:     models.RiskLevel(a.RiskLevel),
	}
	if a.GoalID != "" {
		id := a.GoalID
		in.GoalID = &id
	}

	switch in.Type {
	case models.AssetTypeStock:
		in.Stock = &models.StockDetail{Exchange: a.Exchange, Sector: a.Sector}
	case models.AssetTypeMutualFund:
		in.MutualFund = &models.MutualFundDetail{
			FundHouse: a.FundHouse, SchemeCode: a.SchemeCode, FundCategory: a.FundCategory, ExpenseRatio: a.ExpenseRatio,
		}
	case models.AssetTypeETF:
		in.ETF = &models.ETFDetail{Exchange: a.Exchange, TrackingIndex: a.TrackingIndex, ExpenseRatio: a.ExpenseRatio}
	case models.AssetTypeFixedDeposit:
		fd := &models.FixedDepositDetail{BankName: a.BankName}
		if a.MaturityDate != "" {
			maturity, err := parseDate(a.MaturityDate)
			if err != nil {
				return services.CreateAssetInput{}, err
			}
			fd.MaturityDate = &maturity
		}
		if a.InterestRate != nil {
			fd.InterestRate = *a.InterestRate
		}
		in.FixedDeposit = fd
	}
	return in, nil
}

func assetCreateProperties(withGoal bool) map[string]Property {
	props := map[string]Property{
		"name":           str("Holding name, e.g. \"Apple shares\""),
		"type":           enum("Asset type", assetTypeNames...),
		"symbol":         str("Market symbol for stocks, ETFs, funds and crypto, e.g. AAPL or BTC-USD"),
		"quantity":       number("Units held"),
		"purchase_price": number("Price paid per unit"),
		"purchase_date":  date("Purchase date (default today)"),
		"currency":       str("ISO 4217 currency code (default USD)"),
		"risk_level":     enum("Risk classification (default moderate)", riskNames...),
		"exchange":       str("Stock or ETF: exchange"),
		"sector":         str("Stock: sector"),
		"fund_house":     str("Mutual fund: fund house"),
		"scheme_code":    str("Mutual fund: scheme code"),
		"fund_category":  str("Mutual fund: category"),
		"expense_ratio":  number("Fund or ETF: expense ratio in percent"),
		"tracking_index": str("ETF: index tracked"),
		"bank_name":      str("Fixed deposit: bank"),
		"interest_rate":  number("Fixed deposit: annual interest rate in percent"),
		"maturity_date":  date("Fixed deposit: maturity date"),
	}
	if withGoal {
		props["goal_id"] = str("Goal id to link the asset to")
	}
	return props
}

type assetUpdates struct {
	Name          *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Symbol        *string  `json:"symbol" validate:"omitempty,symbol"`
	Quantity      *float64 `json:"quantity" validate:"omitempty,gt=0"`
	PurchasePrice *float64 `json:"purchase_price" validate:"omitempty,gt=0"`
	PurchaseDate  *string  `json:"purchase_date" validate:"omitempty,datetime=2006-01-02"`
	Currency      *string  `json:"currency" validate:"omitempty,iso4217"`
	RiskLevel     *string  `json:"risk_level" validate:"omitempty,risk_level"`
	GoalID        *string  `json:"goal_id" validate:"omitempty,uuid"`
	UnlinkGoal    bool     `json:"unlink_goal" validate:"excluded_with=GoalID"`
}

type updateAssetArgs struct {
	AssetID      string       `json:"asset_id" validate:"omitempty,uuid"`
	NameOrSymbol string       `json:"name_or_symbol" validate:"required_without=AssetID,max=200"`
	Updates      assetUpdates `json:"updates"`
}

type deleteAssetArgs struct {
	AssetID         string `json:"asset_id" validate:"omitempty,uuid"`
	NameOrSymbol    string `json:"name_or_symbol" validate:"required_without=AssetID,max=200"`
	ConfirmDeletion bool   `json:"confirm_deletion"`
}

type assetIDArgs struct {
	AssetID string `json:"asset_id" validate:"required,uuid"`
}

type refreshAssetArgs struct {
	AssetID      string `json:"asset_id" validate:"required_without=NameOrSymbol,omitempty,uuid"`
	NameOrSymbol string `json:"name_or_symbol" validate:"required_without=AssetID,max=200"`
}

func assetTools(svc *Services) []Tool {
	return []Tool{
		&tool[createAssetArgs]{
			name:        "create_asset",
			description: "Record an investment holding, optionally linked to one of the user's goals.",
			schema:      object(assetCreateProperties(true), "name", "type", "quantity", "purchase_price"),
			mutates:     true,
			svc:         svc,
			run:         createAsset,
		},
		&tool[searchArgs]{
			name:        "search_assets_by_name",
			description: "Find the user's assets by name or symbol. Returns zero, one or many assets.",
			schema:      object(map[string]Property{"query": str("Name or symbol to search for")}, "query"),
			svc:         svc,
			run:         searchAssets,
		},
		&tool[updateAssetArgs]{
			name: "update_asset",
			description: "Update an asset found by name or symbol, or by asset_id. Only the fields in updates change. " +
				"If several assets match nothing is changed and the matches are returned; retry with the chosen asset_id.",
			schema: object(map[string]Property{
				"asset_id":       str("Asset id, when known or after disambiguation"),
				"name_or_symbol": str("Name or symbol identifying the asset"),
				"updates": nested("Fields to change", map[string]Property{
					"name":           str("New name"),
					"symbol":         str("New market symbol"),
					"quantity":       number("New quantity"),
					"purchase_price": number("New purchase price per unit"),
					"purchase_date":  date("New purchase date"),
					"currency":       str("New ISO 4217 currency"),
					"risk_level":     enum("New risk level", riskNames...),
					"goal_id":        str("Goal id to link the asset to"),
					"unlink_goal":    boolean("Remove the goal link"),
				}),
			}, "updates"),
			mutates: true,
			svc:     svc,
			run:     updateAsset,
		},
		&tool[deleteAssetArgs]{
			name: "delete_asset",
			description: "Delete an asset found by name or symbol, or by asset_id. Search first, confirm with the user, " +
				"then call with confirm_deletion=true. If several assets match nothing is deleted; retry with the chosen asset_id.",
			schema: object(map[string]Property{
				"asset_id":         str("Asset id, when known or after disambiguation"),
				"name_or_symbol":   str("Name or symbol identifying the asset"),
				"confirm_deletion": boolean("Must be true; set only after the user confirmed"),
			}, "confirm_deletion"),
			mutates: true,
			svc:     svc,
			run:     deleteAsset,
		},
		&tool[assetIDArgs]{
			name:        "get_asset_performance",
			description: "Report an asset's cost basis, current value, gain or loss and recent return snapshots.",
			schema:      object(map[string]Property{"asset_id": str("Asset id")}, "asset_id"),
			svc:         svc,
			run:         assetPerformance,
		},
		&tool[refreshAssetArgs]{
			name:        "refresh_asset_price",
			description: "Fetch the latest market price for an asset and store its value and growth since purchase.",
			schema: object(map[string]Property{
				"asset_id":       str("Asset id"),
				"name_or_symbol": str("Name or symbol, when the id is not known"),
			}),
			mutates: true,
			svc:     svc,
			run:     refreshAsset,
		},
	}
}

func createAsset(ctx context.Context, svc *Services, args *createAssetArgs) (Result, error) {
	in, err := args.toInput()
	if err != nil {
		return nil, err
	}
	asset, err := svc.Assets.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	return Result{"asset": asset}, nil
}

func searchAssets(ctx context.Context, svc *Services, args *searchArgs) (Result, error) {
	assets, err := svc.Assets.SearchByName(ctx, args.Query)
	if err != nil {
		return nil, err
	}
	return Result{"assets": assets, "count": len(assets)}, nil
}

func updateAsset(ctx context.Context, svc *Services, args *updateAssetArgs) (Result, error) {
	asset, err := resolveAsset(ctx, svc.Assets, args.AssetID, args.NameOrSymbol)
	if err != nil {
		return nil, err
	}
	u := args.Updates
	purchaseDate, err := parseDatePtr(u.PurchaseDate)
	if err != nil {
		return nil, err
	}
	in := services.UpdateAssetInput{
		Name:          u.Name,
		Symbol:        u.Symbol,
		Quantity:      u.Quantity,
		PurchasePrice: u.PurchasePrice,
		PurchaseDate:  purchaseDate,
		Currency:      u.Currency,
		GoalID:        u.GoalID,
		UnlinkGoal:    u.UnlinkGoal,
	}
	if u.RiskLevel != nil {
		risk := models.RiskLevel(*u.RiskLevel)
		in.RiskLevel = &risk
	}

	updated, err := svc.Assets.Update(ctx, asset.ID, in)
	if err != nil {
		return nil, err
	}
	return Result{"asset": updated}, nil
}

func deleteAsset(ctx context.Context, svc *Services, args *deleteAssetArgs) (Result, error) {
	asset, err := resolveAsset(ctx, svc.Assets, args.AssetID, args.NameOrSymbol)
	if err != nil {
		return nil, err
	}
	if !args.ConfirmDeletion {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidArguments,
			"Deletion of "+asset.Name+" was not confirmed. Ask the user, then retry with confirm_deletion=true.")
	}
	if err := svc.Assets.Delete(ctx, asset.ID); err != nil {
		return nil, err
	}
	return Result{"deleted": Match{ID: asset.ID, Name: asset.Name, Symbol: asset.Symbol}}, nil
}

func assetPerformance(ctx context.Context, svc *Services, args *assetIDArgs) (Result, error) {
	report, err := svc.Assets.Performance(ctx, args.AssetID)
	if err != nil {
		return nil, err
	}
	return Result{"performance": report}, nil
}

func refreshAsset(ctx context.Context, svc *Services, args *refreshAssetArgs) (Result, error) {
	id := args.AssetID
	if id == "" {
		asset, err := resolveAsset(ctx, svc.Assets, "", args.NameOrSymbol)
		if err != nil {
			return nil, err
		}
		id = asset.ID
	}
	result, err := svc.Pricing.RefreshAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	return Result{"refresh": result}, nil
}
