package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Env  string
	Port string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Identity provider tokens are HS256 signed with this secret.
	JWTSecret string

	// Pipeline endpoints (scheduled price refresh)
	PipelineAPIKey string

	// LLM
	AnthropicAPIKey string
	LLMModel        string
	LLMMaxTokens    int64
	AgentMaxSteps   int

	// Market data
	MarketDataURL      string
	MarketDataTimeout  time.Duration
	MarketDataCacheTTL time.Duration

	// Dashboard
	DashboardCacheTTL time.Duration

	// Financial defaults
	InflationRate float64

	// Optional YAML file replacing the embedded suggestion catalog
	SuggestionsFile string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "goalwise"),
		DBPassword: getEnv("DB_PASSWORD", "goalwise"),
		DBName:     getEnv("DB_NAME", "goalwise"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "goalwise.db"),

		JWTSecret:      getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		PipelineAPIKey: getEnv("PIPELINE_API_KEY", ""),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "claude-sonnet-4-20250514"),
		LLMMaxTokens:    int64(getEnvInt("LLM_MAX_TOKENS", 4096)),
		AgentMaxSteps:   getEnvInt("AGENT_MAX_STEPS", 10),

		MarketDataURL:      getEnv("MARKET_DATA_URL", "https://query1.finance.yahoo.com/v8/finance/chart"),
		MarketDataTimeout:  getEnvDuration("MARKET_DATA_TIMEOUT", 8*time.Second),
		MarketDataCacheTTL: getEnvDuration("MARKET_DATA_CACHE_TTL", 5*time.Minute),
		DashboardCacheTTL:  getEnvDuration("DASHBOARD_CACHE_TTL", 2*time.Minute),

		InflationRate:   getEnvFloat("INFLATION_RATE", 0.06),
		SuggestionsFile: getEnv("SUGGESTIONS_FILE", ""),
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %v\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
