package main

import (
	"log/slog"
	"testing"

	"usher/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{level: "debug", want: slog.LevelDebug},
		{level: "info", want: slog.LevelInfo},
		{level: "warn", want: slog.LevelWarn},
		{level: "warning", want: slog.LevelWarn},
		{level: "error", want: slog.LevelError},
		{level: "", want: slog.LevelInfo},
		{level: "verbose", want: slog.LevelInfo},
	}

	for _, testCase := range tests {
		if got := parseLogLevel(testCase.level); got != testCase.want {
			t.Fatalf("parseLogLevel(%q) = %v, want %v", testCase.level, got, testCase.want)
		}
	}
}

func TestNewWelcomeProviderDisabled(t *testing.T) {
	t.Parallel()

	provider, err := newWelcomeProvider(config.Config{})
	if err != nil {
		t.Fatalf("disabled provider failed: %v", err)
	}
	if provider != nil {
		t.Fatal("expected nil provider when selector is empty")
	}
}

func TestNewWelcomeProviderResolvesConfiguredBackend(t *testing.T) {
	t.Parallel()

	provider, err := newWelcomeProvider(config.Config{
		GreeterProvider: config.GreeterProviderOpenAI,
		OpenAIAPIKey:    "sk-test",
	})
	if err != nil {
		t.Fatalf("openai provider failed: %v", err)
	}
	if provider == nil {
		t.Fatal("expected configured provider")
	}
}

func TestNewWelcomeProviderMissingKeyFails(t *testing.T) {
	t.Parallel()

	if _, err := newWelcomeProvider(config.Config{GreeterProvider: config.GreeterProviderOpenAI}); err == nil {
		t.Fatal("expected missing API key to fail")
	}
}
