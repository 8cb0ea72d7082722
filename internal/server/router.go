// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"goalwise/internal/handlers"
	"goalwise/internal/middleware"
)

// Handlers are the route handlers mounted by NewRouter.
type Handlers struct {
	Health    *handlers.HealthHandler
	Goals     *handlers.GoalHandler
	Assets    *handlers.AssetHandler
	Dashboard *handlers.DashboardHandler
	Market    *handlers.MarketHandler
	Chat      *handlers.ChatHandler
	Pipeline  *handlers.PipelineHandler
}

// Options configures authentication for the router.
type Options struct {
	JWTSecret      string
	PipelineAPIKey string
	// Swagger mounts the API documentation at /swagger.
	Swagger bool
}

// NewRouter builds the gin engine with middleware and every API route.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	if opts.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Health check endpoint
	router.GET("/api/health", h.Health.Health)

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public market data
	v1.GET("/market/chart", h.Market.GetChart)

	// Pipeline routes
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(opts.PipelineAPIKey))
	pipeline.POST("/refresh-assets", h.Pipeline.RefreshAssets)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(opts.JWTSecret))

	goals := protected.Group("/goals")
	goals.POST("", h.Goals.CreateGoal)
	goals.GET("", h.Goals.ListGoals)
	goals.GET("/:id", h.Goals.GetGoal)
	goals.PUT("/:id", h.Goals.UpdateGoal)
	goals.DELETE("/:id", h.Goals.DeleteGoal)
	goals.POST("/:id/complete", h.Goals.CompleteGoal)
	goals.GET("/:id/progress", h.Goals.GetGoalProgress)

	assets := protected.Group("/assets")
	assets.POST("", h.Assets.CreateAsset)
	assets.GET("", h.Assets.ListAssets)
	assets.GET("/:id", h.Assets.GetAsset)
	assets.PUT("/:id", h.Assets.UpdateAsset)
	assets.DELETE("/:id", h.Assets.DeleteAsset)
	assets.POST("/:id/refresh", h.Assets.RefreshAsset)
	assets.GET("/:id/performance", h.Assets.GetAssetPerformance)

	protected.GET("/dashboard", h.Dashboard.GetDashboard)
	protected.GET("/portfolio", h.Dashboard.GetPortfolio)
	protected.GET("/suggestions", h.Dashboard.GetSuggestions)

	protected.POST("/chat", h.Chat.Chat)
	protected.GET("/chat/ws", h.Chat.ChatWebSocket)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
