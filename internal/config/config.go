// Package config provides configuration management for CodeHelper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted by CODEHELPER_PROVIDER.
const (
	ProviderAuto      = "auto"
	ProviderGemini    = "gemini"
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderOrder is the order in which "auto" looks for an API key.
var ProviderOrder = []string{ProviderGemini, ProviderGroq, ProviderOpenAI, ProviderAnthropic}

// Config holds all configuration for the CodeHelper server.
type Config struct {
	// ServerAddr is the address the HTTP server listens on (e.g., ":5000").
	ServerAddr string

	// DataDir is the directory for persistent data (SQLite DB, config file).
	DataDir string

	// ConfigFile is the env-format file that was consulted, if any.
	ConfigFile string

	// DBDriver is "sqlite" or "postgres". DBDSN is the file path or the
	// lib/pq connection string.
	DBDriver string
	DBDSN    string

	// Provider selects the completion backend ("auto" picks the first
	// provider with a key, see ProviderOrder).
	Provider string

	GeminiAPIKey    string
	GroqAPIKey      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// LLM request settings. Empty model / base URL select provider defaults.
	LLMModel       string
	LLMBaseURL     string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMTimeout     time.Duration
	LLMMaxRetries  int

	// MaxCodeBytes caps the code field of a request (0 disables).
	MaxCodeBytes int
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64

	// RateLimit is the sustained code-helper requests per second across all
	// callers. 0 disables limiting.
	RateLimit float64
	RateBurst int

	// TemplatesFile optionally overrides prompt templates (YAML).
	TemplatesFile string

	// StrictAuthStatus reports auth failures with 4xx statuses instead of
	// 200 with success=false.
	StrictAuthStatus bool

	LogLevel  string
	LogFormat string

	// Telegram integration (optional -- long polling, no public URL needed).
	TelegramBotToken string

	// Slack integration (optional -- Socket Mode).
	// SlackBotToken is the Bot User OAuth Token (xoxb-...).
	SlackBotToken string
	// SlackAppToken is the App-Level Token (xapp-...) required for Socket Mode.
	SlackAppToken string
}

const (
	defaultAddr         = ":5000"
	defaultMaxCodeBytes = 64 * 1024
	defaultMaxBodyBytes = 1 << 20
)

// Load creates a Config from the config file and environment variables.
// Values are resolved in order: environment variable > config file > default.
func Load() (*Config, error) {
	dataDir := os.Getenv("CODEHELPER_DATA_DIR")
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	v := viper.New()
	setDefaults(v, dataDir)
	v.AutomaticEnv()

	configFile := FilePath()
	v.SetConfigFile(configFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
		configFile = ""
	}

	cfg := &Config{
		ServerAddr:       serverAddr(v),
		DataDir:          dataDir,
		ConfigFile:       configFile,
		DBDriver:         strings.ToLower(v.GetString("CODEHELPER_DB_DRIVER")),
		DBDSN:            v.GetString("CODEHELPER_DB_DSN"),
		Provider:         strings.ToLower(v.GetString("CODEHELPER_PROVIDER")),
		GeminiAPIKey:     v.GetString("GEMINI_API_KEY"),
		GroqAPIKey:       v.GetString("GROQ_API_KEY"),
		OpenAIAPIKey:     v.GetString("OPENAI_API_KEY"),
		AnthropicAPIKey:  v.GetString("ANTHROPIC_API_KEY"),
		LLMModel:         v.GetString("CODEHELPER_LLM_MODEL"),
		LLMBaseURL:       v.GetString("CODEHELPER_LLM_BASE_URL"),
		LLMTemperature:   v.GetFloat64("CODEHELPER_LLM_TEMPERATURE"),
		LLMMaxTokens:     v.GetInt("CODEHELPER_LLM_MAX_TOKENS"),
		LLMTimeout:       v.GetDuration("CODEHELPER_LLM_TIMEOUT"),
		LLMMaxRetries:    v.GetInt("CODEHELPER_LLM_MAX_RETRIES"),
		MaxCodeBytes:     v.GetInt("CODEHELPER_MAX_CODE_BYTES"),
		MaxBodyBytes:     v.GetInt64("CODEHELPER_MAX_BODY_BYTES"),
		RateLimit:        v.GetFloat64("CODEHELPER_RATE_LIMIT"),
		RateBurst:        v.GetInt("CODEHELPER_RATE_BURST"),
		TemplatesFile:    v.GetString("CODEHELPER_TEMPLATES_FILE"),
		StrictAuthStatus: v.GetBool("CODEHELPER_STRICT_AUTH_STATUS"),
		LogLevel:         v.GetString("CODEHELPER_LOG_LEVEL"),
		LogFormat:        v.GetString("CODEHELPER_LOG_FORMAT"),
		TelegramBotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
		SlackBotToken:    v.GetString("SLACK_BOT_TOKEN"),
		SlackAppToken:    v.GetString("SLACK_APP_TOKEN"),
	}
	if cfg.DBDSN == "" && cfg.DBDriver == "sqlite" {
		cfg.DBDSN = filepath.Join(dataDir, "codehelper.db")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("CODEHELPER_DB_DRIVER", "sqlite")
	v.SetDefault("CODEHELPER_PROVIDER", ProviderAuto)
	v.SetDefault("CODEHELPER_LLM_TEMPERATURE", 0.3)
	v.SetDefault("CODEHELPER_LLM_MAX_TOKENS", 2048)
	v.SetDefault("CODEHELPER_LLM_TIMEOUT", 30*time.Second)
	v.SetDefault("CODEHELPER_LLM_MAX_RETRIES", 0)
	v.SetDefault("CODEHELPER_MAX_CODE_BYTES", defaultMaxCodeBytes)
	v.SetDefault("CODEHELPER_MAX_BODY_BYTES", defaultMaxBodyBytes)
	v.SetDefault("CODEHELPER_RATE_LIMIT", 0)
	v.SetDefault("CODEHELPER_RATE_BURST", 5)
	v.SetDefault("CODEHELPER_STRICT_AUTH_STATUS", false)
	v.SetDefault("CODEHELPER_LOG_LEVEL", "info")
	v.SetDefault("CODEHELPER_LOG_FORMAT", "json")
}

// serverAddr honours CODEHELPER_ADDR, then a bare PORT (as set by most
// hosting platforms), then the default.
func serverAddr(v *viper.Viper) string {
	if addr := v.GetString("CODEHELPER_ADDR"); addr != "" {
		return addr
	}
	if port := v.GetString("PORT"); port != "" {
		return ":" + port
	}
	return defaultAddr
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if _, err := c.ResolvedProvider(); err != nil {
		return err
	}

	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("CODEHELPER_DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("CODEHELPER_DB_DSN is required for the %s driver", c.DBDriver)
	}

	if c.LLMTimeout <= 0 {
		return fmt.Errorf("CODEHELPER_LLM_TIMEOUT must be positive")
	}
	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("CODEHELPER_LLM_MAX_TOKENS must be positive")
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("CODEHELPER_LLM_TEMPERATURE must be between 0 and 2")
	}
	if c.LLMMaxRetries < 0 {
		return fmt.Errorf("CODEHELPER_LLM_MAX_RETRIES must not be negative")
	}
	if c.MaxCodeBytes < 0 || c.MaxBodyBytes <= 0 {
		return fmt.Errorf("CODEHELPER_MAX_CODE_BYTES must not be negative and CODEHELPER_MAX_BODY_BYTES must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("CODEHELPER_RATE_LIMIT must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("CODEHELPER_RATE_BURST must be at least 1 when rate limiting is on")
	}
	if c.SlackBotToken != "" && c.SlackAppToken == "" {
		return fmt.Errorf("SLACK_APP_TOKEN is required when SLACK_BOT_TOKEN is set")
	}
	return nil
}

// ResolvedProvider returns the concrete provider to use. It fails when the
// provider is unknown or has no API key.
func (c *Config) ResolvedProvider() (string, error) {
	switch c.Provider {
	case ProviderAuto, "":
		for _, p := range ProviderOrder {
			if c.APIKey(p) != "" {
				return p, nil
			}
		}
		return "", fmt.Errorf("no LLM API key configured: set one of GEMINI_API_KEY, GROQ_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY")
	case ProviderGemini, ProviderGroq, ProviderOpenAI, ProviderAnthropic:
		if c.APIKey(c.Provider) == "" {
			return "", fmt.Errorf("%s is required for provider %q", APIKeyEnv(c.Provider), c.Provider)
		}
		return c.Provider, nil
	default:
		return "", fmt.Errorf("unknown CODEHELPER_PROVIDER %q", c.Provider)
	}
}

// APIKey returns the configured key for a provider.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	}
	return ""
}

// APIKeyEnv returns the environment variable holding a provider's key.
func APIKeyEnv(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// SlackEnabled returns true if Slack Socket Mode is configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackAppToken != ""
}

// TelegramEnabled returns true if the Telegram bot is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

// FilePath returns the env-format config file read by Load:
// CODEHELPER_CONFIG, else config.env in the data directory.
func FilePath() string {
	if p := os.Getenv("CODEHELPER_CONFIG"); p != "" {
		return p
	}
	dataDir := os.Getenv("CODEHELPER_DATA_DIR")
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	return filepath.Join(dataDir, "config.env")
}

// DefaultDataDir returns ~/.codehelper.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codehelper"
	}
	return filepath.Join(home, ".codehelper")
}
