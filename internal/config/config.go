// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for all databases (always absolute)
	Port            int
	LogLevel        string
	DevMode         bool
	AnalysisWorkers int    // Worker goroutines for batch analysis
	RefreshSchedule string // Cron expression for the nightly refresh
	SellThreshold   float64
	WeightProforma  float64
	WeightMarket    float64
	WeightPortfolio float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("BRICKFOLIO_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("PORT", 8080),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		AnalysisWorkers: getEnvAsInt("ANALYSIS_WORKERS", 10),
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 0 2 * * *"), // 2 AM daily
		SellThreshold:   getEnvAsFloat("SELL_THRESHOLD", -0.30),
		WeightProforma:  getEnvAsFloat("WEIGHT_PROFORMA", 1.0/3.0),
		WeightMarket:    getEnvAsFloat("WEIGHT_MARKET", 1.0/3.0),
		WeightPortfolio: getEnvAsFloat("WEIGHT_PORTFOLIO", 1.0/3.0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SellThreshold >= 0 {
		return fmt.Errorf("sell threshold must be negative, got %v", c.SellThreshold)
	}
	if c.WeightProforma < 0 || c.WeightMarket < 0 || c.WeightPortfolio < 0 {
		return fmt.Errorf("suggestion tier weights must be non-negative")
	}
	return nil
}

// PortfolioDBPath returns the portfolio database location
func (c *Config) PortfolioDBPath() string {
	return filepath.Join(c.DataDir, "portfolio.db")
}

// CacheDBPath returns the cache database location
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
