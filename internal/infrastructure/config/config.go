package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all console configuration
type Config struct {
	App       AppConfig
	API       APIConfig
	Session   SessionConfig
	Redis     RedisConfig
	Log       LogConfig
	Cache     CacheConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// APIConfig describes the remote mall-admin API
type APIConfig struct {
	BaseURL     string
	Timeout     time.Duration
	LoginPath   string
	ProfilePath string
	RateLimit   float64 // requests per second, 0 disables limiting
	MaxRetries  int     // retries for idempotent reads
}

// SessionConfig selects where the session document is persisted
type SessionConfig struct {
	Backend string // memory, file, redis
	Path    string // file backend only
	Key     string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// CacheConfig holds query cache settings
type CacheConfig struct {
	KeepPreviousData       bool
	StaleTime              time.Duration
	BroadcastInvalidations bool
	Channel                string
}

// TelemetryConfig holds OpenTelemetry and metrics configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsAddr       string // empty disables the /metrics listener
}

// Load loads configuration from the first mall-admin.{toml,yaml} found in the
// working directory or $HOME/.mall-admin, then environment variables.
// Priority (highest to lowest):
// 1. Environment variables with MALL_ADMIN_ prefix (e.g., MALL_ADMIN_API_BASE_URL)
// 2. config file
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file. An empty path searches the
// default locations.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mall-admin")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mall-admin"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MALL_ADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("cache.keep_previous_data", true)
	v.SetDefault("api.max_retries", 1)
	v.SetDefault("telemetry.insecure", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		API: APIConfig{
			BaseURL:     v.GetString("api.base_url"),
			Timeout:     v.GetDuration("api.timeout"),
			LoginPath:   v.GetString("api.login_path"),
			ProfilePath: v.GetString("api.profile_path"),
			RateLimit:   v.GetFloat64("api.rate_limit"),
			MaxRetries:  v.GetInt("api.max_retries"),
		},
		Session: SessionConfig{
			Backend: v.GetString("session.backend"),
			Path:    v.GetString("session.path"),
			Key:     v.GetString("session.key"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Cache: CacheConfig{
			KeepPreviousData:       v.GetBool("cache.keep_previous_data"),
			StaleTime:              v.GetDuration("cache.stale_time"),
			BroadcastInvalidations: v.GetBool("cache.broadcast_invalidations"),
			Channel:                v.GetString("cache.channel"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsAddr:       v.GetString("telemetry.metrics_addr"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "mall-admin"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8888"
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 15 * time.Second
	}
	if cfg.API.LoginPath == "" {
		cfg.API.LoginPath = "/admin/login"
	}
	if cfg.API.ProfilePath == "" {
		cfg.API.ProfilePath = "/admin/info"
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "file"
	}
	if cfg.Session.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Session.Path = filepath.Join(home, ".mall-admin", "session.json")
		} else {
			cfg.Session.Path = "session.json"
		}
	}
	if cfg.Session.Key == "" {
		cfg.Session.Key = "mall-admin/session"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Cache.Channel == "" {
		cfg.Cache.Channel = "mall-admin:cache:invalidate"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "mall-admin-console"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit cannot be negative")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries cannot be negative")
	}

	switch c.Session.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("session.backend must be one of memory, file, redis, got %q", c.Session.Backend)
	}

	if c.Cache.StaleTime < 0 {
		return fmt.Errorf("cache.stale_time cannot be negative")
	}

	if c.App.Env == "production" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must use https in production")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// NeedsRedis reports whether any configured component talks to Redis
func (c *Config) NeedsRedis() bool {
	return c.Session.Backend == "redis" || c.Cache.BroadcastInvalidations
}
