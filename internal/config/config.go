package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Logging      LoggingConfig
	State        StateConfig
	OpenAI       OpenAIConfig
	Catalog      CatalogConfig
	Telegram     TelegramConfig
	Presentation PresentationConfig
	Ranking      RankingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int    `validate:"gte=1,lte=65535"`
	Host           string `validate:"required"`
	GinMode        string
	AllowedOrigins string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
	File  string // empty disables the rotating file sink
	Prod  bool
}

// StateConfig selects and tunes the conversation state store
type StateConfig struct {
	Backend            string `validate:"oneof=memory postgres"`
	DSN                string
	TTL                time.Duration
	MaxConnections     int
	MaxIdleConnections int
}

// OpenAIConfig holds the generation provider configuration
type OpenAIConfig struct {
	APIKey      string
	APIBase     string
	ChatModel   string `validate:"required"`
	Temperature float32
	Timeout     time.Duration
	Enabled     bool
}

// CatalogConfig holds the WooCommerce catalog provider configuration
type CatalogConfig struct {
	BaseURL     string
	Key         string
	Secret      string
	PageSize    int           `validate:"gte=1,lte=100"`
	MaxPages    int           `validate:"gte=1"`
	MaxInFlight int           `validate:"gte=1"`
	PageTimeout time.Duration `validate:"gt=0"`
}

// TelegramConfig holds the outbound messaging configuration
type TelegramConfig struct {
	BotToken          string
	WebhookURL        string // empty skips webhook registration at startup
	DisableWebPreview bool
}

// PresentationConfig holds display conversion knobs.
// PriceDivisor scales catalog minor units into the display currency
// (e.g. IRR to Toman: divide by 10).
type PresentationConfig struct {
	PriceDivisor  int64  `validate:"gte=1"`
	CurrencyLabel string `validate:"required"`
	ResultsLimit  int    `validate:"gte=1"`
}

// RankingConfig holds the scoring constants. Defaults preserve the order
// relationships the ranker relies on: hard filters before soft scores, budget
// fit dominating attribute match, hints capped below a single attribute match.
type RankingConfig struct {
	BudgetFitScore   float64
	BudgetNearScore  float64
	BudgetSlack      float64 `validate:"gte=0,lt=1"`
	AttributeScore   float64
	AttributePenalty float64
	HintScore        float64
	HintBonusCap     float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
			Prod:  getEnv("GIN_MODE", "release") == "release",
		},
		State: StateConfig{
			Backend:            getEnv("STATE_BACKEND", "memory"),
			DSN:                getEnv("DATABASE_URL", ""),
			TTL:                getEnvAsDuration("STATE_TTL", time.Hour),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			APIBase:     getEnv("OPENAI_API_BASE", ""),
			ChatModel:   getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			Temperature: float32(getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.2)),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 20*time.Second),
			Enabled:     getEnv("OPENAI_API_KEY", "") != "",
		},
		Catalog: CatalogConfig{
			BaseURL:     getEnv("WC_BASE_URL", ""),
			Key:         getEnv("WC_KEY", ""),
			Secret:      getEnv("WC_SECRET", ""),
			PageSize:    getEnvAsInt("WC_PAGE_SIZE", 50),
			MaxPages:    getEnvAsInt("WC_MAX_PAGES", 5),
			MaxInFlight: getEnvAsInt("WC_MAX_IN_FLIGHT", 4),
			PageTimeout: getEnvAsDuration("WC_PAGE_TIMEOUT", 8*time.Second),
		},
		Telegram: TelegramConfig{
			BotToken:          getEnv("TELEGRAM_BOT_TOKEN", ""),
			WebhookURL:        getEnv("TELEGRAM_WEBHOOK_URL", ""),
			DisableWebPreview: getEnvAsBool("TELEGRAM_DISABLE_WEB_PREVIEW", false),
		},
		Presentation: PresentationConfig{
			PriceDivisor:  int64(getEnvAsInt("PRICE_DIVISOR", 1)),
			CurrencyLabel: getEnv("CURRENCY_LABEL", "تومان"),
			ResultsLimit:  getEnvAsInt("RESULTS_LIMIT", 5),
		},
		Ranking: RankingConfig{
			BudgetFitScore:   getEnvAsFloat("RANK_BUDGET_FIT", 3),
			BudgetNearScore:  getEnvAsFloat("RANK_BUDGET_NEAR", 1),
			BudgetSlack:      getEnvAsFloat("RANK_BUDGET_SLACK", 0.15),
			AttributeScore:   getEnvAsFloat("RANK_ATTRIBUTE_MATCH", 2),
			AttributePenalty: getEnvAsFloat("RANK_ATTRIBUTE_MISMATCH", -1),
			HintScore:        getEnvAsFloat("RANK_HINT", 0.5),
			HintBonusCap:     getEnvAsFloat("RANK_HINT_CAP", 2),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.State.Backend == "postgres" && cfg.State.DSN == "" {
		return nil, fmt.Errorf("STATE_BACKEND=postgres requires DATABASE_URL")
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
