package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"marketplace-gateway/middleware/security/logging"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "GATEWAY_"

type config struct {
	Server    serverConfig    `koanf:"server"`
	Log       logConfig       `koanf:"log"`
	Store     storeConfig     `koanf:"store"`
	Database  databaseConfig  `koanf:"database"`
	Auth      authConfig      `koanf:"auth"`
	RateLimit rateLimitConfig `koanf:"ratelimit"`
	Burst     burstConfig     `koanf:"burst"`
	Stats     statsConfig     `koanf:"stats"`
}

type serverConfig struct {
	ListenAddr string `koanf:"listen_addr"`
	// MaxInFlight limita requisições simultâneas (0 = sem limite).
	MaxInFlight    int           `koanf:"max_in_flight"`
	AcquireTimeout time.Duration `koanf:"acquire_timeout"`
}

type logConfig struct {
	Level string `koanf:"level"`
}

type storeConfig struct {
	// Type é onde ficam os registros do rate limit: redis, database ou memory.
	Type  string      `koanf:"type"`
	Redis redisConfig `koanf:"redis"`
}

type redisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// databaseConfig guarda projetos e security_logs (e o rate limit quando
// store.type=database).
type databaseConfig struct {
	Driver  string `koanf:"driver"` // sqlite, postgres
	DSN     string `koanf:"dsn"`
	Verbose bool   `koanf:"verbose"`
}

type authConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	Issuer    string        `koanf:"issuer"`
	Leeway    time.Duration `koanf:"leeway"`
}

type rateLimitConfig struct {
	// Window e MaxRequests sobrescrevem a política do endpoint quando > 0.
	Window              time.Duration `koanf:"window"`
	MaxRequests         int           `koanf:"max_requests"`
	InlineCleanup       bool          `koanf:"inline_cleanup"`
	SweepEvery          time.Duration `koanf:"sweep_every"`
	FailClosed          bool          `koanf:"fail_closed"`
	StoreMaxInFlight    int           `koanf:"store_max_in_flight"`
	StoreAcquireTimeout time.Duration `koanf:"store_acquire_timeout"`
	Headers             bool          `koanf:"headers"`
}

type burstConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

type statsConfig struct {
	Type      string        `koanf:"type"` // none, memory, redis, prometheus
	Prefix    string        `koanf:"prefix"`
	TTL       time.Duration `koanf:"ttl"`
	Bucket    string        `koanf:"bucket"`
	TrackKeys bool          `koanf:"track_keys"`
}

var defaults = map[string]any{
	"server.listen_addr":              ":8080",
	"server.max_in_flight":            100,
	"server.acquire_timeout":          "0s",
	"log.level":                       "info",
	"store.type":                      "memory",
	"store.redis.addr":                "localhost:6379",
	"store.redis.prefix":              "gateway:ratelimit",
	"database.driver":                 "sqlite",
	"database.dsn":                    "gateway.db",
	"ratelimit.inline_cleanup":        true,
	"ratelimit.sweep_every":           "1m",
	"ratelimit.store_acquire_timeout": "0s",
	"burst.rps":                       10.0,
	"burst.burst":                     20,
	"stats.type":                      "none",
	"stats.prefix":                    "gateway:stats",
	"stats.ttl":                       "24h",
	"stats.bucket":                    "minute",
}

// loadConfig lê o yaml (opcional) e depois as variáveis GATEWAY_*, que têm
// precedência. "__" separa níveis: GATEWAY_STORE__REDIS__ADDR.
func loadConfig(path string) (config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return config{}, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg config
	if err := k.Unmarshal("", &cfg); err != nil {
		return config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	if c.Server.MaxInFlight < 0 {
		return errors.New("server.max_in_flight must be >= 0")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Store.Type {
	case "memory", "database":
	case "redis":
		if strings.TrimSpace(c.Store.Redis.Addr) == "" {
			return errors.New("store.redis.addr is required when store.type=redis")
		}
	default:
		return fmt.Errorf("store.type must be redis, database or memory, got %q", c.Store.Type)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.RateLimit.Window < 0 {
		return errors.New("ratelimit.window must be >= 0")
	}
	if c.RateLimit.MaxRequests < 0 {
		return errors.New("ratelimit.max_requests must be >= 0")
	}
	if !c.RateLimit.InlineCleanup && c.RateLimit.SweepEvery <= 0 {
		return errors.New("ratelimit.sweep_every must be > 0 when inline_cleanup=false")
	}
	if c.RateLimit.StoreMaxInFlight < 0 {
		return errors.New("ratelimit.store_max_in_flight must be >= 0")
	}
	if c.Burst.Enabled {
		if c.Burst.RPS <= 0 {
			return errors.New("burst.rps must be > 0")
		}
		if c.Burst.Burst <= 0 {
			return errors.New("burst.burst must be > 0")
		}
	}
	switch c.Stats.Type {
	case "none", "memory", "prometheus":
	case "redis":
		if strings.TrimSpace(c.Store.Redis.Addr) == "" {
			return errors.New("store.redis.addr is required when stats.type=redis")
		}
	default:
		return fmt.Errorf("stats.type must be none, memory, redis or prometheus, got %q", c.Stats.Type)
	}
	return nil
}
