package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file and environment leave a value empty.
const (
	DefaultConfigFile               = "config.yaml"
	DefaultAddr                     = ":8080"
	DefaultJWTExpiry                = 24 * time.Hour
	DefaultRedeemRateLimit          = 10
	DefaultRedeemRateWindow         = time.Minute
	DefaultCommissionDispatchPeriod = 30 * time.Second
)

// AppConfig holds process-level flags.
type AppConfig struct {
	ConfigPath  string
	MigrateOnly bool
}

// JWTConfig configures token signing.
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// RedeemConfig configures the redemption rate limiter.
type RedeemConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Config is the resolved runtime configuration.
type Config struct {
	Addr                     string
	Mode                     string
	DatabaseDSN              string
	RedisURL                 string
	JWT                      JWTConfig
	Redeem                   RedeemConfig
	Log                      LogConfig
	CommissionDispatchPeriod time.Duration
}

// fileConfig mirrors the YAML layout.
type fileConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
		Mode string `yaml:"mode"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	JWT struct {
		Secret string `yaml:"secret"`
		Expiry string `yaml:"expiry"`
	} `yaml:"jwt"`
	Redeem struct {
		RateLimit  int    `yaml:"rate-limit"`
		RateWindow string `yaml:"rate-window"`
	} `yaml:"redeem"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max-size-mb"`
		MaxBackups int    `yaml:"max-backups"`
		MaxAgeDays int    `yaml:"max-age-days"`
	} `yaml:"log"`
	Commission struct {
		DispatchInterval string `yaml:"dispatch-interval"`
	} `yaml:"commission"`
}

// ResolveConfigPath picks the config file: explicit path, ALCMS_CONFIG, then the default file.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv("ALCMS_CONFIG")); env != "" {
		return env
	}
	return DefaultConfigFile
}

// Load reads .env, the YAML file at path (if present) and environment overrides.
func Load(path string) (Config, error) {
	// A missing .env is the normal production case.
	_ = godotenv.Load()

	var fc fileConfig
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &fc); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	cfg := Config{
		Addr:        firstNonEmpty(os.Getenv("HTTP_ADDR"), fc.Server.Addr, DefaultAddr),
		Mode:        firstNonEmpty(os.Getenv("GIN_MODE"), fc.Server.Mode, "release"),
		DatabaseDSN: firstNonEmpty(os.Getenv("DATABASE_DSN"), fc.Database.DSN),
		RedisURL:    firstNonEmpty(os.Getenv("REDIS_URL"), fc.Redis.URL),
		JWT: JWTConfig{
			Secret: firstNonEmpty(os.Getenv("JWT_SECRET"), fc.JWT.Secret),
		},
		Redeem: RedeemConfig{
			RateLimit: fc.Redeem.RateLimit,
		},
		Log: LogConfig{
			Level:      firstNonEmpty(os.Getenv("LOG_LEVEL"), fc.Log.Level, "info"),
			File:       fc.Log.File,
			MaxSizeMB:  fc.Log.MaxSizeMB,
			MaxBackups: fc.Log.MaxBackups,
			MaxAgeDays: fc.Log.MaxAgeDays,
		},
	}

	var err error
	if cfg.JWT.Expiry, err = parseDuration(fc.JWT.Expiry, DefaultJWTExpiry); err != nil {
		return Config{}, fmt.Errorf("config: jwt.expiry: %w", err)
	}
	if cfg.Redeem.RateWindow, err = parseDuration(fc.Redeem.RateWindow, DefaultRedeemRateWindow); err != nil {
		return Config{}, fmt.Errorf("config: redeem.rate-window: %w", err)
	}
	if cfg.CommissionDispatchPeriod, err = parseDuration(fc.Commission.DispatchInterval, DefaultCommissionDispatchPeriod); err != nil {
		return Config{}, fmt.Errorf("config: commission.dispatch-interval: %w", err)
	}
	if raw := strings.TrimSpace(os.Getenv("REDEEM_RATE_LIMIT")); raw != "" {
		n, errAtoi := strconv.Atoi(raw)
		if errAtoi != nil {
			return Config{}, fmt.Errorf("config: invalid REDEEM_RATE_LIMIT: %w", errAtoi)
		}
		cfg.Redeem.RateLimit = n
	}
	if cfg.Redeem.RateLimit <= 0 {
		cfg.Redeem.RateLimit = DefaultRedeemRateLimit
	}

	if cfg.DatabaseDSN == "" {
		return Config{}, errors.New("config: database dsn is required")
	}
	if cfg.JWT.Secret == "" {
		return Config{}, errors.New("config: jwt secret is required")
	}
	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", raw)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
