package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Message backends.
const (
	MessageBackendMemory = "memory"
	MessageBackendSQLite = "sqlite"
)

// Session persistence backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
	SessionBackendSQLite = "sqlite"
)

// Config captures environment driven configuration values for the TimeCapsule server.
type Config struct {
	HTTPPort  int    `env:"TIMECAPSULE_HTTP_PORT" envDefault:"8080"`
	LogLevel  string `env:"TIMECAPSULE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TIMECAPSULE_LOG_FORMAT" envDefault:"json"`

	Latency     time.Duration `env:"TIMECAPSULE_LATENCY" envDefault:"800ms"`
	AuthLatency time.Duration `env:"TIMECAPSULE_AUTH_LATENCY" envDefault:"1s"`

	MessageBackend string `env:"TIMECAPSULE_MESSAGE_BACKEND" envDefault:"memory"`
	SQLiteDSN      string `env:"TIMECAPSULE_SQLITE_DSN" envDefault:"file:timecapsule.db"`

	SessionBackend string `env:"TIMECAPSULE_SESSION_BACKEND" envDefault:"file"`
	SessionFile    string `env:"TIMECAPSULE_SESSION_FILE" envDefault:".timecapsule-session.json"`
	RedisAddr      string `env:"TIMECAPSULE_REDIS_ADDR"`
	RedisPassword  string `env:"TIMECAPSULE_REDIS_PASSWORD"`
	RedisPrefix    string `env:"TIMECAPSULE_REDIS_PREFIX" envDefault:"timecapsule:"`

	SeedFile      string `env:"TIMECAPSULE_SEED_FILE"`
	VerifySecrets bool   `env:"TIMECAPSULE_VERIFY_SECRETS" envDefault:"false"`
}

// Load parses configuration values from the current process environment.
//
// Values that fail to parse are reported by the env library. Values that parse
// but are out of range are collected and reported together, as are required
// values that are missing for the selected backends.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.MessageBackend = strings.ToLower(strings.TrimSpace(cfg.MessageBackend))
	cfg.SessionBackend = strings.ToLower(strings.TrimSpace(cfg.SessionBackend))
	cfg.SQLiteDSN = strings.TrimSpace(cfg.SQLiteDSN)
	cfg.SessionFile = strings.TrimSpace(cfg.SessionFile)
	cfg.RedisAddr = strings.TrimSpace(cfg.RedisAddr)
	cfg.SeedFile = strings.TrimSpace(cfg.SeedFile)

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = append(invalid, "TIMECAPSULE_HTTP_PORT")
	}
	if !oneOf(cfg.LogLevel, "debug", "info", "warn", "error") {
		invalid = append(invalid, "TIMECAPSULE_LOG_LEVEL")
	}
	if !oneOf(cfg.LogFormat, "json", "text") {
		invalid = append(invalid, "TIMECAPSULE_LOG_FORMAT")
	}
	if cfg.Latency < 0 {
		invalid = append(invalid, "TIMECAPSULE_LATENCY")
	}
	if cfg.AuthLatency < 0 {
		invalid = append(invalid, "TIMECAPSULE_AUTH_LATENCY")
	}
	if !oneOf(cfg.MessageBackend, MessageBackendMemory, MessageBackendSQLite) {
		invalid = append(invalid, "TIMECAPSULE_MESSAGE_BACKEND")
	}
	if !oneOf(cfg.SessionBackend, SessionBackendMemory, SessionBackendFile, SessionBackendRedis, SessionBackendSQLite) {
		invalid = append(invalid, "TIMECAPSULE_SESSION_BACKEND")
	}

	if cfg.UsesSQLite() && cfg.SQLiteDSN == "" {
		missing = append(missing, "TIMECAPSULE_SQLITE_DSN")
	}
	if cfg.SessionBackend == SessionBackendFile && cfg.SessionFile == "" {
		missing = append(missing, "TIMECAPSULE_SESSION_FILE")
	}
	if cfg.SessionBackend == SessionBackendRedis && cfg.RedisAddr == "" {
		missing = append(missing, "TIMECAPSULE_REDIS_ADDR")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// UsesSQLite reports whether any backend needs the SQLite database.
func (c Config) UsesSQLite() bool {
	return c.MessageBackend == MessageBackendSQLite || c.SessionBackend == SessionBackendSQLite
}

func oneOf(value string, allowed ...string) bool {
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}
