// Package config loads bot configuration from the environment, optionally
// seeded from a local .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Greeter LLM provider selectors.
const (
	GreeterProviderOpenAI = "openai"
	GreeterProviderGemini = "gemini"
)

// Config holds all runtime settings for the bot process.
type Config struct {
	TelegramAppID    int    `env:"TELEGRAM_APP_ID,required,notEmpty"`
	TelegramAppHash  string `env:"TELEGRAM_APP_HASH,required,notEmpty"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`

	// SessionDir stores the Telegram session file between restarts.
	SessionDir string `env:"SESSION_DIR" envDefault:"session"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// AdminIDs lists actor IDs allowed to run administrative commands.
	AdminIDs []string `env:"ADMIN_IDS" envSeparator:","`

	// TrackedSpaceIDs lists spaces whose invite activity is tracked from startup.
	TrackedSpaceIDs []string `env:"TRACKED_SPACE_IDS" envSeparator:","`

	// GreeterProvider selects the optional LLM backend for welcome lines.
	// Empty disables LLM generation; the greeter falls back to templates.
	GreeterProvider string `env:"GREETER_PROVIDER"`
	GreeterModel    string `env:"GREETER_MODEL"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`

	ModuleHookTimeout   time.Duration `env:"MODULE_HOOK_TIMEOUT" envDefault:"3s"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	SubscriptionBuffer  int           `env:"SUBSCRIPTION_BUFFER" envDefault:"256"`
	SubscriptionWorkers int           `env:"SUBSCRIPTION_WORKERS" envDefault:"2"`
}

// Load reads configuration from a .env file when present and the process
// environment, then validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// normalize trims list entries and drops empties left by trailing separators.
func (c *Config) normalize() {
	c.AdminIDs = trimNonEmpty(c.AdminIDs)
	c.TrackedSpaceIDs = trimNonEmpty(c.TrackedSpaceIDs)
	c.GreeterProvider = strings.ToLower(strings.TrimSpace(c.GreeterProvider))
	c.GreeterModel = strings.TrimSpace(c.GreeterModel)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

func (c *Config) validate() error {
	if c.ModuleHookTimeout <= 0 {
		return fmt.Errorf("MODULE_HOOK_TIMEOUT must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.SubscriptionBuffer <= 0 {
		return fmt.Errorf("SUBSCRIPTION_BUFFER must be > 0")
	}
	if c.SubscriptionWorkers <= 0 {
		return fmt.Errorf("SUBSCRIPTION_WORKERS must be > 0")
	}

	switch c.GreeterProvider {
	case "":
	case GreeterProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("GREETER_PROVIDER=openai requires OPENAI_API_KEY")
		}
	case GreeterProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GREETER_PROVIDER=gemini requires GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unsupported GREETER_PROVIDER %q", c.GreeterProvider)
	}

	return nil
}

func trimNonEmpty(values []string) []string {
	trimmed := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			trimmed = append(trimmed, value)
		}
	}

	return trimmed
}
