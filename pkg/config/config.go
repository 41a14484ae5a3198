package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port   string
	Env    string // development, staging, production
	Server ServerConfig

	// Storage
	StoreDriver string // postgres, memory
	Database    DatabaseConfig

	// Redis (optional shared rate-limit window)
	Redis RedisConfig

	// Market data provider
	Finnhub FinnhubConfig

	// Pipeline
	Pipeline PipelineConfig

	// Scheduler
	Schedule ScheduleConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// ServerConfig holds the HTTP API timeouts. WriteTimeout bounds the CSV
// export; ShutdownTimeout bounds how long in-flight requests may drain.
type ServerConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool

	// SharedRateLimit makes every process draw from one Redis-held call window
	SharedRateLimit bool
	KeyPrefix       string
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

// FinnhubConfig holds the market data API configuration
type FinnhubConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Exchange string // listing used as the default universe
}

// PipelineConfig holds funnel execution settings
type PipelineConfig struct {
	Workers    int
	ParamsFile string
	ExportDir  string
	DefaultTop int

	// Provider selects the collaborator: finnhub, or fake for a seeded
	// synthetic market of FakeListings symbols
	Provider     string
	FakeListings int
}

// ScheduleConfig holds the cron specs (with seconds) of the scheduled tiers
type ScheduleConfig struct {
	MasterList string
	Screening  string
	Analysis   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),
		Server: ServerConfig{
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", "60s"),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
		},

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:            getEnv("REDIS_HOST", "localhost"),
			Port:            getEnv("REDIS_PORT", "6379"),
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getEnvAsInt("REDIS_DB", 0),
			Enabled:         getEnvAsBool("REDIS_ENABLED", false),
			SharedRateLimit: getEnvAsBool("SHARED_RATE_LIMIT", false),
			KeyPrefix:       getEnv("REDIS_KEY_PREFIX", "dipscreener"),
		},

		Finnhub: FinnhubConfig{
			APIKey:   getEnv("FINNHUB_API_KEY", ""),
			BaseURL:  getEnv("FINNHUB_BASE_URL", "https://finnhub.io/api/v1"),
			Timeout:  getEnvAsDuration("FINNHUB_TIMEOUT", "10s"),
			Exchange: getEnv("FINNHUB_EXCHANGE", "US"),
		},

		Pipeline: PipelineConfig{
			Workers:      getEnvAsInt("PIPELINE_WORKERS", 4),
			ParamsFile:   getEnv("PARAMS_FILE", "config/scoring_parameters.yaml"),
			ExportDir:    getEnv("EXPORT_DIR", "exports"),
			DefaultTop:   getEnvAsInt("DEFAULT_TOP", 50),
			Provider:     strings.ToLower(getEnv("MARKET_PROVIDER", "finnhub")),
			FakeListings: getEnvAsInt("FAKE_LISTINGS", 120),
		},

		Schedule: ScheduleConfig{
			MasterList: getEnv("SCHEDULE_MASTER_LIST", "0 0 6 * * 1"),
			Screening:  getEnv("SCHEDULE_SCREEN", "0 30 21 * * 1-5"),
			Analysis:   getEnv("SCHEDULE_ANALYZE", "0 0 22 * * 1-5"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be one of: postgres, memory")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SERVER_READ_TIMEOUT, SERVER_WRITE_TIMEOUT and SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}

	if c.Pipeline.DefaultTop < 1 {
		return fmt.Errorf("DEFAULT_TOP must be at least 1")
	}

	switch c.Pipeline.Provider {
	case "finnhub":
		if c.IsProduction() && c.Finnhub.APIKey == "" {
			return fmt.Errorf("FINNHUB_API_KEY is required in production")
		}
	case "fake":
		if c.Pipeline.FakeListings < 1 {
			return fmt.Errorf("FAKE_LISTINGS must be at least 1")
		}
	default:
		return fmt.Errorf("MARKET_PROVIDER must be one of: finnhub, fake")
	}

	if c.Redis.SharedRateLimit && !c.Redis.Enabled {
		return fmt.Errorf("SHARED_RATE_LIMIT requires REDIS_ENABLED=true")
	}

	return nil
}

// IsProduction reports whether the process runs with production settings
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// loadEnvFile loads .env and then the ENV-specific override (.env.production etc.)
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	if env := os.Getenv("ENV"); env != "" {
		override := ".env." + env
		if _, err := os.Stat(override); err == nil {
			_ = godotenv.Overload(override)
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
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
