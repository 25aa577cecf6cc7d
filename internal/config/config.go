// Package config loads the service configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

// Storage drivers.
const (
	DriverArena    = "arena"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StorageConfig selects and parameterizes the store backend.
type StorageConfig struct {
	Driver         string `yaml:"driver"`
	ArenaDir       string `yaml:"arena_dir"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	CheckpointSpec string `yaml:"checkpoint_spec"`
}

// RedisConfig enables the optional info read cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds the token signing secret.
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// ChainConfig parameterizes the collaborator RPC client.
type ChainConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig bounds per-caller request rates.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Storage   StorageConfig        `yaml:"storage"`
	Redis     RedisConfig          `yaml:"redis"`
	Auth      AuthConfig           `yaml:"auth"`
	Chain     ChainConfig          `yaml:"chain"`
	RateLimit RateLimitConfig      `yaml:"rate_limit"`
	CORS      []string             `yaml:"cors_origins"`
}

// Default returns the configuration used when nothing is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: logger.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Storage: StorageConfig{
			Driver:         DriverArena,
			ArenaDir:       "data/arena",
			CheckpointSpec: "@every 10m",
		},
		Chain:     ChainConfig{Timeout: 30 * time.Second},
		RateLimit: RateLimitConfig{RequestsPerSecond: 20, Burst: 40},
		CORS:      []string{"*"},
	}
}

// Load reads the config file at path (optional) and applies environment
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Storage.Driver != DriverArena && cfg.Storage.Driver != DriverMemory && cfg.Storage.Driver != DriverPostgres {
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver == DriverPostgres && cfg.Storage.PostgresDSN == "" {
		return nil, fmt.Errorf("storage driver postgres requires a DSN")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("UNIVOICE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("UNIVOICE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("UNIVOICE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("UNIVOICE_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("UNIVOICE_ARENA_DIR"); v != "" {
		cfg.Storage.ArenaDir = v
	}
	if v := os.Getenv("UNIVOICE_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("UNIVOICE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("UNIVOICE_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
}
