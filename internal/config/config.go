package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTP     HTTPConfig
	Supabase SupabaseConfig

	// Env is the deployment name. Cookies are Secure only in production.
	Env             string        `env:"APP_ENV" envDefault:"development"`
	IdentityTimeout time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"5s"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	// TaskStore is auto, rest, postgres or memory. Auto picks postgres when
	// DATABASE_URL is set and rest otherwise.
	TaskStore       string        `env:"TASK_STORE" envDefault:"auto"`
	AuditLogFile    string        `env:"AUDIT_LOG_FILE" envDefault:"./data/audit.log"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	MetricsEnabled  bool          `env:"METRICS_ENABLED" envDefault:"true"`
}

type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"20s"`
}

// SupabaseConfig is checked when the gateway client is built, not here.
type SupabaseConfig struct {
	URL     string `env:"SUPABASE_URL"`
	AnonKey string `env:"SUPABASE_ANON_KEY"`
}

// StoreBackend resolves TaskStore=auto.
func (c Config) StoreBackend() string {
	if c.TaskStore != "auto" {
		return c.TaskStore
	}
	if c.DatabaseURL != "" {
		return "postgres"
	}
	return "rest"
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Supabase.URL = strings.TrimSpace(cfg.Supabase.URL)
	cfg.Supabase.AnonKey = strings.TrimSpace(cfg.Supabase.AnonKey)

	if cfg.HTTP.Addr == "" {
		return Config{}, fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("HTTP_READ_TIMEOUT must be > 0")
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		return Config{}, fmt.Errorf("HTTP_WRITE_TIMEOUT must be > 0")
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be > 0")
	}
	if cfg.IdentityTimeout <= 0 {
		return Config{}, fmt.Errorf("IDENTITY_TIMEOUT must be > 0")
	}
	switch cfg.TaskStore {
	case "auto", "rest", "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("TASK_STORE=postgres requires DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("TASK_STORE must be one of auto, rest, postgres, memory")
	}
	if cfg.AuditLogFile == "" {
		return Config{}, fmt.Errorf("AUDIT_LOG_FILE must not be empty")
	}

	return cfg, nil
}
