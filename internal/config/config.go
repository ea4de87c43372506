// Package config loads and validates harvester configuration via Viper.
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
	LeetCode LeetCodeConfig `mapstructure:"leetcode"`
	DB       DBConfig       `mapstructure:"db"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Notify   NotifyConfig   `mapstructure:"notify"`
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

// LeetCodeConfig governs the remote catalog client.
// The header fields present the client as a standard browser; the upstream
// endpoint gates on them.
type LeetCodeConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	UserAgent      string `mapstructure:"user_agent"`
	Origin         string `mapstructure:"origin"`
	Referer        string `mapstructure:"referer"`
	AcceptLanguage string `mapstructure:"accept_language"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	RetryDelayMs   int    `mapstructure:"retry_delay_ms"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// HarvestConfig sets the ingestion pipeline defaults.
type HarvestConfig struct {
	Limit        int  `mapstructure:"limit"`
	FetchDetails bool `mapstructure:"fetch_details"`
	DelayMinMs   int  `mapstructure:"delay_min_ms"`
	DelayMaxMs   int  `mapstructure:"delay_max_ms"`
	StrictStats  bool `mapstructure:"strict_stats"`
}

// ArchiveConfig selects where raw payloads are archived.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig selects where run summaries are published.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
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
	v.SetDefault("leetcode.endpoint", "https://leetcode.cn/graphql")
	v.SetDefault("leetcode.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("leetcode.origin", "https://leetcode.cn")
	v.SetDefault("leetcode.referer", "https://leetcode.cn/problemset/all/")
	v.SetDefault("leetcode.accept_language", "zh-CN,zh;q=0.9,en;q=0.8")
	v.SetDefault("leetcode.timeout_seconds", 15)
	v.SetDefault("leetcode.max_retries", 2)
	v.SetDefault("leetcode.retry_delay_ms", 250)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("harvest.limit", 200)
	v.SetDefault("harvest.fetch_details", false)
	v.SetDefault("harvest.delay_min_ms", 1000)
	v.SetDefault("harvest.delay_max_ms", 3000)
	v.SetDefault("harvest.strict_stats", false)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.dir", "data/archive")
	v.SetDefault("archive.prefix", "details")
	v.SetDefault("notify.provider", "none")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.LeetCode.Endpoint == "" {
		return fmt.Errorf("leetcode.endpoint is required")
	}
	if c.LeetCode.TimeoutSeconds <= 0 {
		return fmt.Errorf("leetcode.timeout_seconds must be > 0")
	}
	if c.LeetCode.MaxRetries < 0 {
		return fmt.Errorf("leetcode.max_retries must be >= 0")
	}
	if c.Harvest.Limit <= 0 {
		return fmt.Errorf("harvest.limit must be > 0")
	}
	if c.Harvest.DelayMinMs < 0 || c.Harvest.DelayMaxMs < c.Harvest.DelayMinMs {
		return fmt.Errorf("harvest delay range must satisfy 0 <= min <= max")
	}
	switch c.Archive.Provider {
	case "none", "fs", "memory":
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown archive provider: %s", c.Archive.Provider)
	}
	switch c.Notify.Provider {
	case "none", "memory":
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.TopicID == "" {
			return fmt.Errorf("notify.project_id and notify.topic_id must be set when notify.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown notify provider: %s", c.Notify.Provider)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// ClientTimeout converts the configured request timeout to a duration.
func (c LeetCodeConfig) ClientTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay converts the flat retry delay to a duration.
func (c LeetCodeConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// DelayRange converts the throttle window to durations.
func (c HarvestConfig) DelayRange() (time.Duration, time.Duration) {
	return time.Duration(c.DelayMinMs) * time.Millisecond,
		time.Duration(c.DelayMaxMs) * time.Millisecond
}

// ConnLifetime converts the pool connection lifetime to a duration.
func (c DBConfig) ConnLifetime() time.Duration {
	return time.Duration(c.ConnLifetimeMin) * time.Minute
}
