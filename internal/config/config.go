// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Chain endpoints
	EVMRPCURL       string
	ChainID         int64
	USDCContract    string // ERC20 contract used for USDC probing (optional)
	BTCExplorerURL  string // Esplora-compatible API base (optional)
	FeeSpikeGwei    int64  // EVM gas price above this is a fee spike
	BTCFeeSpikeSat  int64  // sat/vB above this is a fee spike
	ProbeBreakerMax int    // consecutive failures before a chain circuit opens

	// Evaluation settings
	PerCheckTimeoutMs  int64
	OverallTimeoutMs   int64
	BalanceBufferPct   int64 // 110 = balance must exceed amount+fee by 10%
	BTCDustSat         int64
	HistoryWindowDays  int64
	HistorySampleCount int64

	// Reporting
	ReportDedupeWindowHours int64
	ReportRateLimitRPM      int

	// Tracing
	OTLPEndpoint string
}

const (
	DefaultPort      = "8080"
	DefaultEnv       = "development"
	DefaultLogLevel  = "info"
	DefaultEVMRPCURL = "https://sepolia.base.org"
	DefaultChainID   = 84532 // Base Sepolia

	DefaultPerCheckTimeoutMs  = 5000
	DefaultOverallTimeoutMs   = 15000
	DefaultFeeSpikeGwei       = 100
	DefaultBTCFeeSpikeSat     = 100
	DefaultBalanceBufferPct   = 110
	DefaultBTCDustSat         = 1000
	DefaultHistoryWindowDays  = 30
	DefaultHistorySampleCount = 20
	DefaultDedupeWindowHours  = 24
	DefaultReportRateLimit    = 60
	DefaultProbeBreakerMax    = 5
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", DefaultPort),
		Env:         getEnv("ENV", DefaultEnv),
		LogLevel:    getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL: os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set

		EVMRPCURL:       getEnv("RPC_URL", DefaultEVMRPCURL),
		ChainID:         getEnvInt64("CHAIN_ID", DefaultChainID),
		USDCContract:    os.Getenv("USDC_CONTRACT"),
		BTCExplorerURL:  os.Getenv("BTC_EXPLORER_URL"),
		FeeSpikeGwei:    getEnvInt64("FEE_SPIKE_GWEI", DefaultFeeSpikeGwei),
		BTCFeeSpikeSat:  getEnvInt64("BTC_FEE_SPIKE_SAT_VB", DefaultBTCFeeSpikeSat),
		ProbeBreakerMax: int(getEnvInt64("PROBE_BREAKER_MAX", DefaultProbeBreakerMax)),

		PerCheckTimeoutMs:  getEnvInt64("PER_CHECK_TIMEOUT_MS", DefaultPerCheckTimeoutMs),
		OverallTimeoutMs:   getEnvInt64("OVERALL_TIMEOUT_MS", DefaultOverallTimeoutMs),
		BalanceBufferPct:   getEnvInt64("BALANCE_BUFFER_PCT", DefaultBalanceBufferPct),
		BTCDustSat:         getEnvInt64("BTC_DUST_SAT", DefaultBTCDustSat),
		HistoryWindowDays:  getEnvInt64("HISTORY_WINDOW_DAYS", DefaultHistoryWindowDays),
		HistorySampleCount: getEnvInt64("HISTORY_SAMPLE_COUNT", DefaultHistorySampleCount),

		ReportDedupeWindowHours: getEnvInt64("REPORT_DEDUPE_WINDOW_HOURS", DefaultDedupeWindowHours),
		ReportRateLimitRPM:      int(getEnvInt64("REPORT_RATE_LIMIT_RPM", DefaultReportRateLimit)),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent
func (c *Config) Validate() error {
	if c.PerCheckTimeoutMs <= 0 {
		return fmt.Errorf("PER_CHECK_TIMEOUT_MS must be positive")
	}
	if c.OverallTimeoutMs <= 0 {
		return fmt.Errorf("OVERALL_TIMEOUT_MS must be positive")
	}
	if c.OverallTimeoutMs < c.PerCheckTimeoutMs {
		return fmt.Errorf("OVERALL_TIMEOUT_MS must be at least PER_CHECK_TIMEOUT_MS")
	}
	if c.BalanceBufferPct < 100 {
		return fmt.Errorf("BALANCE_BUFFER_PCT must be at least 100")
	}
	if c.HistorySampleCount <= 0 {
		return fmt.Errorf("HISTORY_SAMPLE_COUNT must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}
