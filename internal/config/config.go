// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Pricing modes.
const (
	PricingRandom = "random"
	PricingFixed  = "fixed"
)

// devJWTSecret is used outside production when JWT_SECRET is unset.
const devJWTSecret = "dev-secret-change-me"

// Config holds all application configuration.
type Config struct {
	Port        string
	Environment string // "development", "production" or "test"
	LogLevel    string

	// Storage
	DatabaseURL string // empty selects the in-memory store
	RedisURL    string // empty disables the reference data cache

	// Reference data
	RefdataCacheTTL   time.Duration
	LolesportsAPIKey  string // empty selects the built-in static catalog
	LolesportsBaseURL string
	LeagueName        string
	ReservedPlayer    string

	// Pricing
	PricingMode string
	FixedPrice  decimal.Decimal
	PriceMin    int64
	PriceMax    int64

	// Market rules
	StartingBalance    decimal.Decimal
	OfferTTL           time.Duration
	EnforceCapsOnTrade bool

	// ExpirySweepInterval of zero disables the background sweep.
	ExpirySweepInterval time.Duration

	JWTSecret string
}

// Load reads an optional .env file and then the process environment.
// Variables already present in the environment win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Port:              envOr("PORT", "8080"),
		Environment:       envOr("ENVIRONMENT", "development"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		LolesportsAPIKey:  os.Getenv("LOLESPORTS_API_KEY"),
		LolesportsBaseURL: os.Getenv("LOLESPORTS_BASE_URL"),
		LeagueName:        envOr("LEAGUE_NAME", "LEC"),
		ReservedPlayer:    envOr("RESERVED_PLAYER", "Ben01"),
		PricingMode:       strings.ToLower(envOr("PRICING_MODE", PricingRandom)),
		JWTSecret:         os.Getenv("JWT_SECRET"),
	}

	var err error
	if cfg.RefdataCacheTTL, err = durationEnv("REFDATA_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OfferTTL, err = durationEnv("OFFER_TTL", 48*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ExpirySweepInterval, err = durationEnv("EXPIRY_SWEEP_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.StartingBalance, err = decimalEnv("STARTING_BALANCE", decimal.NewFromInt(75)); err != nil {
		return nil, err
	}
	if cfg.FixedPrice, err = decimalEnv("FIXED_PRICE", decimal.NewFromInt(7)); err != nil {
		return nil, err
	}
	if cfg.PriceMin, err = intEnv("PRICE_MIN", 5); err != nil {
		return nil, err
	}
	if cfg.PriceMax, err = intEnv("PRICE_MAX", 9); err != nil {
		return nil, err
	}
	if cfg.EnforceCapsOnTrade, err = boolEnv("ENFORCE_CAPS_ON_TRADE", false); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.PricingMode {
	case PricingRandom:
		if c.PriceMin < 1 || c.PriceMax < c.PriceMin {
			return fmt.Errorf("PRICE_MIN/PRICE_MAX: invalid range %d..%d", c.PriceMin, c.PriceMax)
		}
	case PricingFixed:
		if !c.FixedPrice.IsPositive() || !c.FixedPrice.IsInteger() {
			return fmt.Errorf("FIXED_PRICE must be a positive whole number, got %s", c.FixedPrice)
		}
	default:
		return fmt.Errorf("PRICING_MODE must be %q or %q, got %q", PricingRandom, PricingFixed, c.PricingMode)
	}

	if !c.StartingBalance.IsPositive() || !c.StartingBalance.IsInteger() {
		return fmt.Errorf("STARTING_BALANCE must be a positive whole number, got %s", c.StartingBalance)
	}
	if c.OfferTTL <= 0 {
		return fmt.Errorf("OFFER_TTL must be positive, got %s", c.OfferTTL)
	}
	if c.ExpirySweepInterval < 0 {
		return fmt.Errorf("EXPIRY_SWEEP_INTERVAL must not be negative, got %s", c.ExpirySweepInterval)
	}

	if c.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		c.JWTSecret = devJWTSecret
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ConfigureLogging sets the global logrus level and formatter.
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("log_level", c.LogLevel).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if c.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func decimalEnv(key string, def decimal.Decimal) (decimal.Decimal, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
