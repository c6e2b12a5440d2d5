package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Shop       ShopConfig       `yaml:"shop"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications. Push delivery is
// disabled when the keys are empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// SchedulingConfig holds the engine's runtime settings.
type SchedulingConfig struct {
	Timezone                  string         `yaml:"timezone"`
	Location                  *time.Location `yaml:"-"`
	BreakSweepIntervalSeconds int            `yaml:"break_sweep_interval_seconds"`
	BreakSweepInterval        time.Duration  `yaml:"-"`
	RecomputeTimeoutSeconds   int            `yaml:"recompute_timeout_seconds"`
	RecomputeTimeout          time.Duration  `yaml:"-"`
}

// ShopConfig seeds the shop-wide settings row on first start.
type ShopConfig struct {
	DefaultOverheadPercent float64 `yaml:"default_overhead_percent"`
	DefaultBreakMinutes    int     `yaml:"default_break_minutes"`
	LoanerVehicleCount     int     `yaml:"loaner_vehicle_count"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres | sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Scheduling.Timezone == "" {
		cfg.Scheduling.Timezone = "Europe/Berlin"
	}
	loc, err := time.LoadLocation(cfg.Scheduling.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Scheduling.Timezone, err)
	}
	cfg.Scheduling.Location = loc

	if cfg.Scheduling.BreakSweepIntervalSeconds <= 0 {
		cfg.Scheduling.BreakSweepIntervalSeconds = 60
	}
	cfg.Scheduling.BreakSweepInterval = time.Duration(cfg.Scheduling.BreakSweepIntervalSeconds) * time.Second

	if cfg.Scheduling.RecomputeTimeoutSeconds <= 0 {
		cfg.Scheduling.RecomputeTimeoutSeconds = 300
	}
	cfg.Scheduling.RecomputeTimeout = time.Duration(cfg.Scheduling.RecomputeTimeoutSeconds) * time.Second

	if cfg.Shop.DefaultBreakMinutes <= 0 {
		cfg.Shop.DefaultBreakMinutes = 30
	}
	if cfg.Shop.LoanerVehicleCount < 0 {
		cfg.Shop.LoanerVehicleCount = 0
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return nil
}
