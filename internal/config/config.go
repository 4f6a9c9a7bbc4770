// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Providers  []ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Keys       KeysConfig       `yaml:"keys" mapstructure:"keys"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit" mapstructure:"ratelimit"`
	Prompts    PromptsConfig    `yaml:"prompts" mapstructure:"prompts"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ProviderConfig describes one completion provider in the fallback chain.
type ProviderConfig struct {
	Name         string   `yaml:"name" mapstructure:"name"`
	Family       string   `yaml:"family" mapstructure:"family"` // anthropic, perplexity, mistral, openai
	Model        string   `yaml:"model" mapstructure:"model"`
	Priority     int      `yaml:"priority" mapstructure:"priority"` // lower tried first
	Enabled      bool     `yaml:"enabled" mapstructure:"enabled"`
	Capabilities []string `yaml:"capabilities" mapstructure:"capabilities"`
	PerMinute    int      `yaml:"per_minute" mapstructure:"per_minute"`
	PerDay       int      `yaml:"per_day" mapstructure:"per_day"`
	// KeyRef names the entry in Keys that resolves this provider's
	// credential. The raw secret never lives on the descriptor.
	KeyRef string `yaml:"key_ref" mapstructure:"key_ref"`
}

// KeysConfig maps credential references to API keys. Populate via
// DOCPIPE_KEYS_* environment variables rather than the config file.
type KeysConfig struct {
	Anthropic  string `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity string `yaml:"perplexity" mapstructure:"perplexity"`
	Mistral    string `yaml:"mistral" mapstructure:"mistral"`
	OpenAI     string `yaml:"openai" mapstructure:"openai"`
}

// Resolve returns the API key for a credential reference.
func (k KeysConfig) Resolve(ref string) string {
	switch ref {
	case "anthropic":
		return k.Anthropic
	case "perplexity":
		return k.Perplexity
	case "mistral":
		return k.Mistral
	case "openai":
		return k.OpenAI
	default:
		return ""
	}
}

// PipelineConfig configures extraction behavior.
type PipelineConfig struct {
	MinTextLength       int `yaml:"min_text_length" mapstructure:"min_text_length"`
	ProviderTimeoutSecs int `yaml:"provider_timeout_secs" mapstructure:"provider_timeout_secs"`
	MaxTokens           int `yaml:"max_tokens" mapstructure:"max_tokens"`
	RetryAttempts       int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// ThresholdsConfig holds the confidence gates. The validation and review
// thresholds are deliberately independent knobs.
type ThresholdsConfig struct {
	LowConfidence   float64 `yaml:"low_confidence" mapstructure:"low_confidence"`
	ReviewOverall   float64 `yaml:"review_overall" mapstructure:"review_overall"`
	ReviewReference float64 `yaml:"review_reference" mapstructure:"review_reference"`
}

// RatePreset bounds admissions for one call class.
type RatePreset struct {
	WindowSecs  int `yaml:"window_secs" mapstructure:"window_secs"`
	MaxRequests int `yaml:"max_requests" mapstructure:"max_requests"`
}

// RateLimitConfig configures the rate governor.
type RateLimitConfig struct {
	Extraction        RatePreset `yaml:"extraction" mapstructure:"extraction"`
	Read              RatePreset `yaml:"read" mapstructure:"read"`
	SweepIntervalSecs int        `yaml:"sweep_interval_secs" mapstructure:"sweep_interval_secs"`
}

// PromptsConfig points at an optional YAML template file overriding the
// compiled-in prompt library.
type PromptsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// OCRConfig selects how PDF documents are converted to text.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"` // local or mistral
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// StoreConfig configures the optional extraction audit store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentDocuments int `yaml:"max_concurrent_documents" mapstructure:"max_concurrent_documents"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from docpipe.yaml and DOCPIPE_* environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("docpipe")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.docpipe")
	v.AddConfigPath("/etc/docpipe")

	v.SetEnvPrefix("DOCPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("pipeline.min_text_length", 50)
	v.SetDefault("pipeline.provider_timeout_secs", 60)
	v.SetDefault("pipeline.max_tokens", 4096)
	v.SetDefault("pipeline.retry_attempts", 2)
	v.SetDefault("thresholds.low_confidence", 0.5)
	v.SetDefault("thresholds.review_overall", 0.7)
	v.SetDefault("thresholds.review_reference", 0.6)
	v.SetDefault("ratelimit.extraction.window_secs", 60)
	v.SetDefault("ratelimit.extraction.max_requests", 10)
	v.SetDefault("ratelimit.read.window_secs", 60)
	v.SetDefault("ratelimit.read.max_requests", 120)
	v.SetDefault("ratelimit.sweep_interval_secs", 60)
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "docpipe.db")
	v.SetDefault("batch.max_concurrent_documents", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
