package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Verify     VerifyConfig     `yaml:"verify" mapstructure:"verify"`
	Schema     SchemaConfig     `yaml:"schema" mapstructure:"schema"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	UploadDir      string   `yaml:"upload_dir" mapstructure:"upload_dir"`
}

// OCRConfig configures text recognition.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
}

// AnthropicConfig holds settings for extraction Source A.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	Model         string `yaml:"model" mapstructure:"model"`
	MaxTokens     int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	PromptVersion string `yaml:"prompt_version" mapstructure:"prompt_version"`
}

// GeminiConfig holds settings for extraction Source B.
type GeminiConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	Temperature   float32 `yaml:"temperature" mapstructure:"temperature"`
	PromptVersion string  `yaml:"prompt_version" mapstructure:"prompt_version"`
}

// SourcesConfig controls how both extraction sources are called.
type SourcesConfig struct {
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst            int     `yaml:"burst" mapstructure:"burst"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Timeout returns the per-call extraction timeout.
func (c SourcesConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// VerifyConfig holds the verification thresholds. NumericMaxDigitEdits is a
// pointer because 0 is a meaningful setting (exact numbers only).
type VerifyConfig struct {
	TextConfirm                 float64 `yaml:"text_confirm" mapstructure:"text_confirm"`
	TextSuspicious              float64 `yaml:"text_suspicious" mapstructure:"text_suspicious"`
	NumericMaxDigitEdits        *int    `yaml:"numeric_max_digit_edits" mapstructure:"numeric_max_digit_edits"`
	NumericSuspiciousSimilarity float64 `yaml:"numeric_suspicious_similarity" mapstructure:"numeric_suspicious_similarity"`
}

// SchemaConfig points at an optional YAML file overriding built-in schemas.
type SchemaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MonitoringConfig configures the health checker started by serve.
type MonitoringConfig struct {
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	LookbackHours         int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ReviewRateThreshold   float64 `yaml:"review_rate_threshold" mapstructure:"review_rate_threshold"`
	StuckJobThresholdMins int     `yaml:"stuck_job_threshold_mins" mapstructure:"stuck_job_threshold_mins"`
	AlertCooldownMins     int     `yaml:"alert_cooldown_mins" mapstructure:"alert_cooldown_mins"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOCEXTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "docextract.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_api_key", "")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.prompt_version", "v1")
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.temperature", 0.0)
	v.SetDefault("gemini.prompt_version", "v1")
	v.SetDefault("sources.timeout_secs", 120)
	v.SetDefault("sources.rate_per_sec", 2.0)
	v.SetDefault("sources.burst", 2)
	v.SetDefault("sources.max_attempts", 3)
	v.SetDefault("sources.initial_backoff_ms", 500)
	v.SetDefault("sources.max_backoff_ms", 10000)
	v.SetDefault("sources.failure_threshold", 5)
	v.SetDefault("sources.reset_timeout_secs", 30)
	v.SetDefault("verify.text_confirm", 0.90)
	v.SetDefault("verify.text_suspicious", 0.70)
	v.SetDefault("verify.numeric_max_digit_edits", 1)
	v.SetDefault("verify.numeric_suspicious_similarity", 0.80)
	v.SetDefault("schema.path", "")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.review_rate_threshold", 0.40)
	v.SetDefault("monitoring.stuck_job_threshold_mins", 30)
	v.SetDefault("monitoring.alert_cooldown_mins", 60)
}

// Validate checks the settings required by mode: "extract" needs both
// extraction sources, "serve" also needs a usable port. Store settings are
// always checked.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if mode == "extract" || mode == "serve" {
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Gemini.Key == "" {
			errs = append(errs, "gemini.key is required")
		}
		if c.OCR.Provider == "mistral" && c.OCR.MistralKey == "" {
			errs = append(errs, "ocr.mistral_api_key is required for the mistral provider")
		}
		if c.Verify.TextSuspicious > c.Verify.TextConfirm {
			errs = append(errs, "verify.text_suspicious must not exceed verify.text_confirm")
		}
		if n := c.Verify.NumericMaxDigitEdits; n != nil && *n < 0 {
			errs = append(errs, "verify.numeric_max_digit_edits must not be negative")
		}
	}
	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
