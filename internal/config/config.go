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
	Server     ServerConfig     `mapstructure:"server"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Render     RenderConfig     `mapstructure:"render"`
	DB         DBConfig         `mapstructure:"db"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	PageSpeed  PageSpeedConfig  `mapstructure:"pagespeed"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port       int `mapstructure:"port"`
	QueueDepth int `mapstructure:"queue_depth"`
	Workers    int `mapstructure:"workers"`
}

// EnrichConfig governs the per-business enrichment pipeline.
type EnrichConfig struct {
	PageCap          int           `mapstructure:"page_cap"`
	BusinessWindow   time.Duration `mapstructure:"business_window"`
	PageAIWindow     time.Duration `mapstructure:"page_ai_window"`
	AuditConcurrency int           `mapstructure:"audit_concurrency"`
}

// RenderConfig configures the page render pool.
type RenderConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	// Headless selects the chromedp backend; off means plain HTTP fetching.
	Headless  bool    `mapstructure:"headless"`
	DomainQPS float64 `mapstructure:"domain_qps"`
	UserAgent string  `mapstructure:"user_agent"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// StorageConfig sets bucket and path layout for HTML snapshot persistence.
type StorageConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for run-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// OpenRouterConfig configures the LLM vendor used for summaries and
// classification.
type OpenRouterConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// PageSpeedConfig configures the performance audit vendor.
type PageSpeedConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Strategy string        `mapstructure:"strategy"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PARADANE")
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
	v.SetDefault("server.queue_depth", 64)
	v.SetDefault("server.workers", 2)
	v.SetDefault("enrich.page_cap", 20)
	v.SetDefault("enrich.business_window", "24h")
	v.SetDefault("enrich.page_ai_window", "168h")
	v.SetDefault("enrich.audit_concurrency", 4)
	v.SetDefault("render.concurrency", 2)
	v.SetDefault("render.max_attempts", 3)
	v.SetDefault("render.attempt_timeout", "60s")
	v.SetDefault("render.headless", true)
	v.SetDefault("render.domain_qps", 1.0)
	v.SetDefault("render.user_agent", "paradane-business-bot/1.0")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("storage.prefix", "businesses")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "meta-llama/llama-3.3-70b-instruct")
	v.SetDefault("openrouter.max_attempts", 3)
	v.SetDefault("openrouter.timeout", "60s")
	v.SetDefault("pagespeed.strategy", "desktop")
	v.SetDefault("pagespeed.timeout", "6m")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.QueueDepth <= 0 {
		return fmt.Errorf("server.queue_depth must be > 0")
	}
	if c.Server.Workers <= 0 {
		return fmt.Errorf("server.workers must be > 0")
	}
	if c.Enrich.PageCap <= 0 {
		return fmt.Errorf("enrich.page_cap must be > 0")
	}
	if c.Enrich.BusinessWindow <= 0 {
		return fmt.Errorf("enrich.business_window must be > 0")
	}
	if c.Enrich.PageAIWindow <= 0 {
		return fmt.Errorf("enrich.page_ai_window must be > 0")
	}
	if c.Render.Concurrency <= 0 {
		return fmt.Errorf("render.concurrency must be > 0")
	}
	if c.Render.MaxAttempts <= 0 {
		return fmt.Errorf("render.max_attempts must be > 0")
	}
	return nil
}
