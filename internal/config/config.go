package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by Load. They match the original
// deployment environment so existing .env files keep working.
const (
	EnvConfigPath           = "CONFIG_PATH"
	EnvPort                 = "PORT"
	EnvCacheTTLSeconds      = "CACHE_TTL_SECONDS"
	EnvRateLimitWindowMS    = "RATE_LIMIT_WINDOW_MS"
	EnvRateLimitMaxRequests = "RATE_LIMIT_MAX_REQUESTS"
	EnvRoblosecurity        = "ROBLOSECURITY"
	EnvAllowedOrigins       = "ALLOWED_ORIGINS"
	EnvRedisAddr            = "RATE_LIMIT_REDIS_ADDR"
	EnvRedisPassword        = "RATE_LIMIT_REDIS_PASSWORD"
	EnvRedisDB              = "RATE_LIMIT_REDIS_DB"
	EnvRedisPrefix          = "RATE_LIMIT_REDIS_PREFIX"
)

// Defaults applied when neither the config file nor the environment supplies
// a value.
const (
	DefaultPort            = 3000
	DefaultCacheTTL        = 10 * time.Second
	DefaultRateLimitWindow = 60 * time.Second
	DefaultRateLimitMax    = 30
	DefaultRedisPrefix     = "rlpf"
)

// RedisConfig holds the optional Redis backend for the shared rate limiter.
// An empty Addr means the limiter runs in-memory only.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RateLimitConfig holds the per-client sliding-window settings.
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
	Redis       RedisConfig
}

// UpstreamConfig holds the Roblox service base URLs. Overridable so tests can
// point the client at local servers.
type UpstreamConfig struct {
	Users      string `yaml:"users"`
	Presence   string `yaml:"presence"`
	Games      string `yaml:"games"`
	Thumbnails string `yaml:"thumbnails"`
}

// Config is the resolved process configuration, immutable after Load.
type Config struct {
	Port           int
	CacheTTL       time.Duration
	RateLimit      RateLimitConfig
	Roblosecurity  string
	AllowedOrigins []string
	Upstreams      UpstreamConfig
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load builds the configuration from defaults, then the YAML file at path if
// one exists, then environment overrides. A missing config file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Config{
		Port:     DefaultPort,
		CacheTTL: DefaultCacheTTL,
		RateLimit: RateLimitConfig{
			Window:      DefaultRateLimitWindow,
			MaxRequests: DefaultRateLimitMax,
			Redis:       RedisConfig{Prefix: DefaultRedisPrefix},
		},
		AllowedOrigins: []string{"*"},
		Upstreams: UpstreamConfig{
			Users:      "https://users.roblox.com",
			Presence:   "https://presence.roblox.com",
			Games:      "https://games.roblox.com",
			Thumbnails: "https://thumbnails.roblox.com",
		},
	}

	if errFile := applyFile(&cfg, ResolveConfigPath(path)); errFile != nil {
		return Config{}, errFile
	}
	if errEnv := applyEnv(&cfg); errEnv != nil {
		return Config{}, errEnv
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = DefaultRateLimitWindow
	}
	if cfg.RateLimit.MaxRequests <= 0 {
		cfg.RateLimit.MaxRequests = DefaultRateLimitMax
	}
	if cfg.RateLimit.Redis.DB < 0 {
		cfg.RateLimit.Redis.DB = 0
	}
	if strings.TrimSpace(cfg.RateLimit.Redis.Prefix) == "" {
		cfg.RateLimit.Redis.Prefix = DefaultRedisPrefix
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	// fileConfig maps the YAML fields onto the resolved configuration.
	type fileConfig struct {
		Port            int `yaml:"port"`
		CacheTTLSeconds int `yaml:"cache-ttl-seconds"`
		RateLimit       struct {
			WindowMS    int         `yaml:"window-ms"`
			MaxRequests int         `yaml:"max-requests"`
			Redis       RedisConfig `yaml:"redis"`
		} `yaml:"rate-limit"`
		Roblosecurity  string         `yaml:"roblosecurity"`
		AllowedOrigins []string       `yaml:"allowed-origins"`
		Upstreams      UpstreamConfig `yaml:"upstreams"`
	}

	data, errRead := os.ReadFile(path)
	if errRead != nil {
		if os.IsNotExist(errRead) {
			return nil
		}
		return fmt.Errorf("read config file: %w", errRead)
	}

	var file fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &file); errUnmarshal != nil {
		return fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if file.Port > 0 {
		cfg.Port = file.Port
	}
	if file.CacheTTLSeconds > 0 {
		cfg.CacheTTL = time.Duration(file.CacheTTLSeconds) * time.Second
	}
	if file.RateLimit.WindowMS > 0 {
		cfg.RateLimit.Window = time.Duration(file.RateLimit.WindowMS) * time.Millisecond
	}
	if file.RateLimit.MaxRequests > 0 {
		cfg.RateLimit.MaxRequests = file.RateLimit.MaxRequests
	}
	if addr := strings.TrimSpace(file.RateLimit.Redis.Addr); addr != "" {
		cfg.RateLimit.Redis.Addr = addr
		cfg.RateLimit.Redis.Password = strings.TrimSpace(file.RateLimit.Redis.Password)
		cfg.RateLimit.Redis.DB = file.RateLimit.Redis.DB
	}
	if prefix := strings.TrimSpace(file.RateLimit.Redis.Prefix); prefix != "" {
		cfg.RateLimit.Redis.Prefix = prefix
	}
	if secret := strings.TrimSpace(file.Roblosecurity); secret != "" {
		cfg.Roblosecurity = secret
	}
	if len(file.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = file.AllowedOrigins
	}
	if u := strings.TrimSpace(file.Upstreams.Users); u != "" {
		cfg.Upstreams.Users = u
	}
	if u := strings.TrimSpace(file.Upstreams.Presence); u != "" {
		cfg.Upstreams.Presence = u
	}
	if u := strings.TrimSpace(file.Upstreams.Games); u != "" {
		cfg.Upstreams.Games = u
	}
	if u := strings.TrimSpace(file.Upstreams.Thumbnails); u != "" {
		cfg.Upstreams.Thumbnails = u
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		port, errParse := strconv.Atoi(raw)
		if errParse != nil {
			return fmt.Errorf("parse %s: %w", EnvPort, errParse)
		}
		cfg.Port = port
	}
	if raw := strings.TrimSpace(os.Getenv(EnvCacheTTLSeconds)); raw != "" {
		if seconds, errParse := strconv.Atoi(raw); errParse == nil && seconds > 0 {
			cfg.CacheTTL = time.Duration(seconds) * time.Second
		}
	}
	if raw := strings.TrimSpace(os.Getenv(EnvRateLimitWindowMS)); raw != "" {
		if ms, errParse := strconv.Atoi(raw); errParse == nil && ms > 0 {
			cfg.RateLimit.Window = time.Duration(ms) * time.Millisecond
		}
	}
	if raw := strings.TrimSpace(os.Getenv(EnvRateLimitMaxRequests)); raw != "" {
		if max, errParse := strconv.Atoi(raw); errParse == nil && max > 0 {
			cfg.RateLimit.MaxRequests = max
		}
	}
	if secret := strings.TrimSpace(os.Getenv(EnvRoblosecurity)); secret != "" {
		cfg.Roblosecurity = secret
	}
	if raw := strings.TrimSpace(os.Getenv(EnvAllowedOrigins)); raw != "" {
		cfg.AllowedOrigins = splitOrigins(raw)
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.RateLimit.Redis.Addr = addr
	}
	if password := strings.TrimSpace(os.Getenv(EnvRedisPassword)); password != "" {
		cfg.RateLimit.Redis.Password = password
	}
	if raw := strings.TrimSpace(os.Getenv(EnvRedisDB)); raw != "" {
		if db, errParse := strconv.Atoi(raw); errParse == nil && db >= 0 {
			cfg.RateLimit.Redis.DB = db
		}
	}
	if prefix := strings.TrimSpace(os.Getenv(EnvRedisPrefix)); prefix != "" {
		cfg.RateLimit.Redis.Prefix = prefix
	}
	return nil
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
