package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Ledger persistence
	Ledger LedgerConfig

	// Battle run settings
	Battle BattleConfig

	// Forecast sources
	OpenAI   SourceConfig
	DeepSeek SourceConfig
	Gemini   SourceConfig
	Retry    RetryConfig

	// Market quotes
	Quotes QuotesConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// LedgerConfig where the ledger and report documents live
type LedgerConfig struct {
	Backend    string // file, postgres
	Path       string // ledger document (file backend)
	ReportPath string // report document
}

// BattleConfig per-run behavior
type BattleConfig struct {
	HorizonDays    int
	SourceDelay    time.Duration // 연속 forecast source 호출 간격
	SettlementMode string        // strict, lenient
	HistoryDays    int           // 프롬프트용 시세 조회 기간
	CatalogPath    string        // 비어 있으면 내장 카탈로그
	Schedule       string        // cron spec (초 단위 포함)
	SettleSchedule string        // 미판정 재시도, 비어 있으면 비활성
	Timezone       string
}

// SourceConfig one forecast provider
type SourceConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// RetryConfig backoff for forecast source calls
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// QuotesConfig market data provider settings
type QuotesConfig struct {
	CacheTTL        time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// Ledger backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Ledger: LedgerConfig{
			Backend:    getEnv("LEDGER_BACKEND", BackendFile),
			Path:       getEnv("LEDGER_PATH", "ai_history.json"),
			ReportPath: getEnv("REPORT_PATH", "ai_predictions.json"),
		},

		Battle: BattleConfig{
			HorizonDays:    getEnvAsInt("HORIZON_DAYS", 5),
			SourceDelay:    getEnvAsDuration("SOURCE_DELAY", "2s"),
			SettlementMode: getEnv("SETTLEMENT_MODE", "strict"),
			HistoryDays:    getEnvAsInt("HISTORY_DAYS", 60),
			CatalogPath:    getEnv("CATALOG_PATH", ""),
			Schedule:       getEnv("SCHEDULE", "0 0 7 * * 1-5"), // 평일 07:00
			SettleSchedule: getEnv("SETTLE_SCHEDULE", ""),
			Timezone:       getEnv("TZ_NAME", "Asia/Tokyo"),
		},

		// Forecast sources
		OpenAI: SourceConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Timeout: getEnvAsDuration("OPENAI_TIMEOUT", "60s"),
		},
		DeepSeek: SourceConfig{
			APIKey:  getEnv("DEEPSEEK_API_KEY", ""),
			Model:   getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
			BaseURL: getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/"),
			Timeout: getEnvAsDuration("DEEPSEEK_TIMEOUT", "60s"),
		},
		Gemini: SourceConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Timeout: getEnvAsDuration("GEMINI_TIMEOUT", "60s"),
		},
		Retry: RetryConfig{
			MaxRetries:     getEnvAsInt("SOURCE_MAX_RETRIES", 3),
			InitialBackoff: getEnvAsDuration("SOURCE_INITIAL_BACKOFF", "1s"),
			MaxBackoff:     getEnvAsDuration("SOURCE_MAX_BACKOFF", "10s"),
		},

		Quotes: QuotesConfig{
			CacheTTL:        getEnvAsDuration("QUOTES_CACHE_TTL", "1h"),
			BreakerFailures: getEnvAsInt("QUOTES_BREAKER_FAILURES", 3),
			BreakerTimeout:  getEnvAsDuration("QUOTES_BREAKER_TIMEOUT", "30s"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Ledger.Backend {
	case BackendFile:
		if c.Ledger.Path == "" {
			return fmt.Errorf("LEDGER_PATH is required for the file backend")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("LEDGER_BACKEND must be one of: file, postgres")
	}

	if c.Battle.SettlementMode != "strict" && c.Battle.SettlementMode != "lenient" {
		return fmt.Errorf("SETTLEMENT_MODE must be one of: strict, lenient")
	}

	if c.Battle.HorizonDays <= 0 {
		return fmt.Errorf("HORIZON_DAYS must be positive")
	}

	if _, err := time.LoadLocation(c.Battle.Timezone); err != nil {
		return fmt.Errorf("TZ_NAME invalid: %w", err)
	}

	return nil
}

// Location battle calendar timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Battle.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",           // Current directory
		"config/.env",    // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
