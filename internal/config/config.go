// Package config loads runtime configuration from environment variables and
// an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the memo store. An empty URL runs on the in-memory
// store.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// LLMConfig wires the completion provider.
type LLMConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// FetchConfig controls the content fetchers and the shared browser.
type FetchConfig struct {
	UserAgent          string        `mapstructure:"user_agent"`
	NativeLanguage     string        `mapstructure:"native_language"`
	Locale             string        `mapstructure:"locale"`
	Timezone           string        `mapstructure:"timezone"`
	CookieFile         string        `mapstructure:"cookie_file"`
	SocialUsername     string        `mapstructure:"social_username"`
	SocialPassword     string        `mapstructure:"social_password"`
	BrowserEnabled     bool          `mapstructure:"browser_enabled"`
	BrowserMaxParallel int           `mapstructure:"browser_max_parallel"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout"`
}

// AnalysisConfig sizes the job scheduler.
type AnalysisConfig struct {
	Workers     int `mapstructure:"workers"`
	QueueDepth  int `mapstructure:"queue_depth"`
	MaxAttempts int `mapstructure:"max_attempts"`
}

// ProgressConfig controls the notification hub.
type ProgressConfig struct {
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from the environment (prefix ZENTEL) and, when
// path is non-empty, from a config file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ZENTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.url", "")

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_retries", 3)

	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.native_language", "ko")
	v.SetDefault("fetch.locale", "ko-KR")
	v.SetDefault("fetch.timezone", "Asia/Seoul")
	v.SetDefault("fetch.cookie_file", "")
	v.SetDefault("fetch.social_username", "")
	v.SetDefault("fetch.social_password", "")
	v.SetDefault("fetch.browser_enabled", true)
	v.SetDefault("fetch.browser_max_parallel", 2)
	v.SetDefault("fetch.navigation_timeout", 30*time.Second)

	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.queue_depth", 64)
	v.SetDefault("analysis.max_attempts", 3)

	v.SetDefault("progress.subscriber_buffer", 64)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// Validate checks invariants that would otherwise surface as runtime
// failures deep in the pipeline.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	if c.Analysis.Workers <= 0 {
		return fmt.Errorf("analysis.workers must be positive, got %d", c.Analysis.Workers)
	}
	if c.Analysis.QueueDepth <= 0 {
		return fmt.Errorf("analysis.queue_depth must be positive, got %d", c.Analysis.QueueDepth)
	}
	if c.Analysis.MaxAttempts <= 0 {
		return fmt.Errorf("analysis.max_attempts must be positive, got %d", c.Analysis.MaxAttempts)
	}
	if c.Fetch.BrowserMaxParallel < 0 {
		return fmt.Errorf("fetch.browser_max_parallel must not be negative, got %d", c.Fetch.BrowserMaxParallel)
	}
	if len(c.Fetch.NativeLanguage) != 2 {
		return fmt.Errorf("fetch.native_language must be an ISO 639-1 code, got %q", c.Fetch.NativeLanguage)
	}
	return nil
}
