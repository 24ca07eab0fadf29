// Package config loads service configuration from YAML, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. TICSITE_DATABASE_DSN.
const EnvPrefix = "TICSITE"

// Config is the root configuration of the site backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Engagement EngagementConfig `mapstructure:"engagement"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Events     EventsConfig     `mapstructure:"events"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	PublicURL       string        `mapstructure:"public_url"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Address != "" }

type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	CookieName        string        `mapstructure:"cookie_name"`
	CookieSecure      bool          `mapstructure:"cookie_secure"`
	AllowRegistration bool          `mapstructure:"allow_registration"`
	Issuer            string        `mapstructure:"issuer"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	OIDC              OIDCConfig    `mapstructure:"oidc"`
}

// OIDCConfig enables bearer tokens minted by an external identity provider.
type OIDCConfig struct {
	Issuer   string   `mapstructure:"issuer"`
	Audience []string `mapstructure:"audience"`
}

type EngagementConfig struct {
	ViewWindow time.Duration `mapstructure:"view_window"`
}

type UploadConfig struct {
	Provider     string   `mapstructure:"provider"`
	LocalDir     string   `mapstructure:"local_dir"`
	PublicBase   string   `mapstructure:"public_base"`
	Endpoint     string   `mapstructure:"endpoint"`
	APIKey       string   `mapstructure:"api_key"`
	MaxBytes     int64    `mapstructure:"max_bytes"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type EventsConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RateLimitConfig struct {
	Window time.Duration `mapstructure:"window"`
	Limit  int           `mapstructure:"limit"`
}

type TelemetryConfig struct {
	Tracing     bool   `mapstructure:"tracing"`
	Metrics     bool   `mapstructure:"metrics"`
	ServiceName string `mapstructure:"service_name"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration. An empty path falls back to ./config.yaml when it
// exists; a missing explicit path is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.public_url", "http://localhost:8080")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:ticsite.db?_foreign_keys=on")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", 30*24*time.Hour)
	v.SetDefault("auth.cookie_name", "ticsite_session")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.allow_registration", false)
	v.SetDefault("auth.issuer", "ticsite")
	v.SetDefault("auth.cleanup_interval", time.Hour)
	v.SetDefault("auth.oidc.issuer", "")
	v.SetDefault("auth.oidc.audience", []string{})

	v.SetDefault("engagement.view_window", 24*time.Hour)

	v.SetDefault("upload.provider", "local")
	v.SetDefault("upload.local_dir", "./uploads")
	v.SetDefault("upload.public_base", "/uploads")
	v.SetDefault("upload.endpoint", "")
	v.SetDefault("upload.api_key", "")
	v.SetDefault("upload.max_bytes", 8<<20)
	v.SetDefault("upload.allowed_types", []string{
		"image/png", "image/jpeg", "image/webp", "image/gif", "application/pdf",
	})

	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", "ticsite.content")

	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.limit", 30)

	v.SetDefault("telemetry.tracing", false)
	v.SetDefault("telemetry.metrics", false)
	v.SetDefault("telemetry.service_name", "ticsite")

	v.SetDefault("log.level", "info")
}

// Validate checks invariants that defaults cannot guarantee.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: required"))
	}
	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret: must be at least 32 bytes"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl: must be positive"))
	}
	if c.Engagement.ViewWindow < 0 {
		errs = append(errs, errors.New("engagement.view_window: must not be negative"))
	}
	switch c.Upload.Provider {
	case "local":
		if c.Upload.LocalDir == "" {
			errs = append(errs, errors.New("upload.local_dir: required for local provider"))
		}
	case "hosted":
		if c.Upload.Endpoint == "" {
			errs = append(errs, errors.New("upload.endpoint: required for hosted provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("upload.provider: unsupported provider %q", c.Upload.Provider))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.max_bytes: must be positive"))
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit: limit and window must be positive"))
	}
	return errors.Join(errs...)
}
