// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Mirrors  MirrorsConfig  `mapstructure:"mirrors"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// BrowserConfig configures the headless rendering subsystem.
type BrowserConfig struct {
	MaxParallel   int `mapstructure:"max_parallel"`
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
}

// FetchConfig governs fetch attempt behavior and the static HTTP client.
type FetchConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	Retries          int    `mapstructure:"retries"`
	UserAgent        string `mapstructure:"user_agent"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
}

// MirrorsConfig holds the mirror instance pool parameters.
type MirrorsConfig struct {
	Instances       []string `mapstructure:"instances"`
	Strategy        string   `mapstructure:"strategy"`
	CooldownSeconds int      `mapstructure:"cooldown_seconds"`
	MaxPerRequest   int      `mapstructure:"max_per_request"`
	RPS             float64  `mapstructure:"rps"`
	Burst           int      `mapstructure:"burst"`
}

// ResolverConfig tunes social profile resolution.
type ResolverConfig struct {
	PreferPrimary  bool `mapstructure:"prefer_primary"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	Retries        int  `mapstructure:"retries"`
}

// StorageConfig sets paths and content types for snapshot persistence.
type StorageConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("browser.max_parallel", 2)
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("fetch.timeout_seconds", 45)
	v.SetDefault("fetch.retries", 1)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("fetch.backoff_initial_ms", 250)
	v.SetDefault("fetch.backoff_max_ms", 2000)
	v.SetDefault("mirrors.instances", []string{
		"https://nitter.net",
		"https://nitter.privacyredirect.com",
		"https://nitter.poast.org",
	})
	v.SetDefault("mirrors.strategy", "round_robin")
	v.SetDefault("mirrors.cooldown_seconds", 120)
	v.SetDefault("mirrors.max_per_request", 3)
	v.SetDefault("mirrors.rps", 1.0)
	v.SetDefault("mirrors.burst", 2)
	v.SetDefault("resolver.prefer_primary", false)
	v.SetDefault("resolver.timeout_seconds", 60)
	v.SetDefault("resolver.retries", 1)
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Browser.MaxParallel < 0 {
		return fmt.Errorf("browser.max_parallel must be >= 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if s := c.Mirrors.Strategy; s != "" && s != "round_robin" && s != "random" {
		return fmt.Errorf("mirrors.strategy must be round_robin or random")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout converts the fetch timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// MirrorCooldown converts the mirror cooldown config into a duration.
func (c Config) MirrorCooldown() time.Duration {
	return time.Duration(c.Mirrors.CooldownSeconds) * time.Second
}

// ResolverTimeout converts the resolver timeout config into a duration.
func (c Config) ResolverTimeout() time.Duration {
	return time.Duration(c.Resolver.TimeoutSeconds) * time.Second
}
