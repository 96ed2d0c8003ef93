package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Env         string            `yaml:"env"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Reservation ReservationConfig `yaml:"reservation"`
	Inventory   InventoryConfig   `yaml:"inventory"`
	Push        PushConfig        `yaml:"push"`
	WorkerPool  WorkerPoolConfig  `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
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

// CacheTTL returns the GET response cache lifetime.
func (s ServerConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// ReservationConfig tunes the allocation engine.
type ReservationConfig struct {
	// LegacyPolicy reproduces the historical per-room-type rules.
	LegacyPolicy bool `yaml:"legacy_policy"`
	MaxAttempts  int  `yaml:"max_attempts"`
}

// InventoryConfig holds the room inventory sync configuration.
type InventoryConfig struct {
	Enabled         bool             `yaml:"enabled"`
	IntervalSeconds int              `yaml:"interval_seconds"`
	Interval        time.Duration    `yaml:"-"` // Ignored by YAML parser
	HTTPProxy       string           `yaml:"http_proxy"`
	FoyerID         int64            `yaml:"foyer_id"`
	Request         InventoryRequest `yaml:"request"`
}

// InventoryRequest defines the HTTP request sent to the housing registry.
type InventoryRequest struct {
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers"`
	PageSize int               `yaml:"pageSize"`
	Payload  map[string]any    `yaml:"payload"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// Load reads the configuration from the given path. Values from a .env file
// in the working directory, or from the process environment, take precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded environment overrides from .env")
	}

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

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			log.Printf("ignoring invalid SERVER_PORT %q", v)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "development"
	}

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
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Reservation.MaxAttempts <= 0 {
		cfg.Reservation.MaxAttempts = 3
	}

	if cfg.Inventory.IntervalSeconds <= 0 {
		cfg.Inventory.IntervalSeconds = 3600
	}
	cfg.Inventory.Interval = time.Duration(cfg.Inventory.IntervalSeconds) * time.Second

	if cfg.Inventory.Request.PageSize <= 0 {
		cfg.Inventory.Request.PageSize = 100
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
