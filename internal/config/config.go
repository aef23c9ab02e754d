// Package config handles application configuration using Viper.
// Viper merges defaults, an optional YAML file and environment variables, in that priority order.
// Go convention: configuration is loaded into structs, not accessed as raw key-value pairs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
//
// A Config is built once at startup and passed by pointer into every component
// that needs it. Components never mutate it.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	CORS      CORSConfig      `mapstructure:"cors"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Materials MaterialsConfig `mapstructure:"materials"`
	Usage     UsageConfig     `mapstructure:"usage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// MaxBodyBytes caps request bodies. Base64 photos are ~4/3 of the JPEG size.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
	// WriteTimeout must outlast the slowest LLM call of a report.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LLMConfig struct {
	// ProviderOrder controls which LLM providers are used and in what order.
	// First provider is primary, rest are failovers. Example: ["openai", "anthropic"]
	ProviderOrder []string        `mapstructure:"provider_order"`
	OpenAI        OpenAIConfig    `mapstructure:"openai"`
	Anthropic     AnthropicConfig `mapstructure:"anthropic"`
	Temperature   float64         `mapstructure:"temperature"`
	MaxTokens     int             `mapstructure:"max_tokens"`
	// Timeout bounds every outbound call, including the wait on the rate limiter.
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerMinute int           `mapstructure:"rate_per_minute"`
	Burst         int           `mapstructure:"burst"`
	// MaxConcurrency caps in-flight material queries per report. 0 = one goroutine per material.
	MaxConcurrency int  `mapstructure:"max_concurrency"`
	VerifyOnStart  bool `mapstructure:"verify_on_start"`
	// Prompts overrides the built-in prompt templates, keyed by prompt id.
	Prompts map[string]string `mapstructure:"prompts"`
}

type OpenAIConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	Model       string `mapstructure:"model"`
	VisionModel string `mapstructure:"vision_model"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type DetectorConfig struct {
	// MaxDimension is the longest edge, in pixels, of images sent to the vision model.
	MaxDimension int `mapstructure:"max_dimension"`
}

type MaterialsConfig struct {
	// ListPath points to a newline-separated material list. Empty uses the built-in EU list.
	ListPath string `mapstructure:"list_path"`
}

type UsageConfig struct {
	// DatabasePath for LLM call accounting. Empty disables accounting.
	DatabasePath string `mapstructure:"database_path"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from a YAML file and environment variables.
// A missing explicit file is an error; a missing default file is not.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Defaults apply when neither file nor env provides a value
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.max_body_bytes", 16<<20)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("llm.provider_order", []string{"openai", "anthropic"})
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.vision_model", "gpt-4o")
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.max_tokens", 256)
	v.SetDefault("llm.timeout", 45*time.Second)
	v.SetDefault("llm.rate_per_minute", 600)
	v.SetDefault("llm.burst", 50)
	v.SetDefault("llm.max_concurrency", 0)
	v.SetDefault("llm.verify_on_start", true)
	v.SetDefault("detector.max_dimension", 1024)
	v.SetDefault("materials.list_path", "")
	v.SetDefault("usage.database_path", "./storage/crm-service.db")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 2)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("log.level", "info")

	// Read from YAML config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found": defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment variables override everything.
	// CRM_ prefix + nested keys: CRM_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys are also picked up from their conventional names, so an
	// existing .env with OPENAI_API_KEY works unchanged.
	if err := v.BindEnv("llm.openai.api_key", "CRM_LLM_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding openai key: %w", err)
	}
	if err := v.BindEnv("llm.anthropic.api_key", "CRM_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding anthropic key: %w", err)
	}

	// Unmarshal into our Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.LLM.RatePerMinute <= 0 {
		return fmt.Errorf("llm.rate_per_minute must be positive, got %d", c.LLM.RatePerMinute)
	}
	if c.LLM.MaxConcurrency < 0 {
		return fmt.Errorf("llm.max_concurrency must not be negative, got %d", c.LLM.MaxConcurrency)
	}
	if len(c.LLM.ProviderOrder) == 0 {
		return fmt.Errorf("llm.provider_order must list at least one provider")
	}
	return nil
}

// Address returns the listen address string like "0.0.0.0:8000".
// This is a method on ServerConfig.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
