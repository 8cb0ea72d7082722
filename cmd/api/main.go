package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"goalwise/internal/agent"
	"goalwise/internal/config"
	"goalwise/internal/database"
	"goalwise/internal/handlers"
	"goalwise/internal/logger"
	"goalwise/internal/marketdata"
	"goalwise/internal/server"
	"goalwise/internal/services"
	"goalwise/internal/tools"
	"goalwise/internal/validator"

	_ "goalwise/internal/docs" // Import swagger docs
)

// @title           Goalwise API
// @version         1.0
// @description     Goalwise tracks savings goals and the investments earmarked for them, and answers questions about them through a tool-using assistant.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey PipelineKey
// @in header
// @name X-API-Key

const shutdownTimeout = 15 * time.Second

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	// Market data
	gateway, err := marketdata.NewGateway(&http.Client{},
		marketdata.WithBaseURL(appConfig.MarketDataURL),
		marketdata.WithTimeout(appConfig.MarketDataTimeout),
		marketdata.WithCacheTTL(appConfig.MarketDataCacheTTL),
	)
	if err != nil {
		return fmt.Errorf("failed to create market data gateway: %w", err)
	}
	defer gateway.Close()

	// Initialize services
	db := dbManager.DB()
	auditService := services.NewAuditService(db)
	dashboardService, err := services.NewDashboardService(db, appConfig.DashboardCacheTTL)
	if err != nil {
		return fmt.Errorf("failed to create dashboard service: %w", err)
	}
	assetService := services.NewAssetService(db, auditService, dashboardService)
	goalService := services.NewGoalService(db, assetService, auditService, dashboardService, appConfig.InflationRate)
	pricingService := services.NewPricingService(db, gateway.PriceLookup(), auditService, dashboardService)

	catalog, err := services.LoadSuggestionCatalog(appConfig.SuggestionsFile)
	if err != nil {
		return fmt.Errorf("failed to load suggestion catalog: %w", err)
	}
	suggestionService := services.NewSuggestionService(db, catalog)

	// Assistant
	registry := tools.NewRegistry(&tools.Services{
		Goals:         goalService,
		Assets:        assetService,
		Pricing:       pricingService,
		Dashboard:     dashboardService,
		Suggestions:   suggestionService,
		InflationRate: appConfig.InflationRate,
	})
	var runner handlers.ConversationRunner
	if appConfig.AnthropicAPIKey != "" {
		runtime := agent.NewAnthropicRuntime(appConfig.AnthropicAPIKey, appConfig.LLMModel, appConfig.LLMMaxTokens)
		runner = agent.NewOrchestrator(runtime, registry, appConfig.AgentMaxSteps)
		log.Infof("Assistant enabled with model %s and %d tools", appConfig.LLMModel, len(registry.Tools()))
	} else {
		log.Warn("ANTHROPIC_API_KEY not set, assistant endpoints are disabled")
	}

	router := server.NewRouter(server.Handlers{
		Health:    handlers.NewHealthHandler(dbManager),
		Goals:     handlers.NewGoalHandler(goalService),
		Assets:    handlers.NewAssetHandler(assetService, pricingService),
		Dashboard: handlers.NewDashboardHandler(dashboardService, suggestionService),
		Market:    handlers.NewMarketHandler(gateway),
		Chat:      handlers.NewChatHandler(runner),
		Pipeline:  handlers.NewPipelineHandler(pricingService),
	}, server.Options{
		JWTSecret:      appConfig.JWTSecret,
		PipelineAPIKey: appConfig.PipelineAPIKey,
		Swagger:        appConfig.Env != "production",
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Goalwise server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
