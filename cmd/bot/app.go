// Command bot runs the invite-attribution bot: a Telegram driver feeding the
// module kernel, with invite tracking, admin commands, and join greetings.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"usher/internal/config"
	"usher/internal/driver/telegram"
	"usher/internal/kernel"
	"usher/modules/greeter"
	"usher/modules/help"
	"usher/modules/invitecmd"
	"usher/modules/invitetracker"
	"usher/modules/pingpong"
	"usher/pkg/llm"
	"usher/pkg/llm/providers/gemini"
	"usher/pkg/llm/providers/openai"
	"usher/pkg/usher"
)

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kernelRuntime := buildKernelRuntime(cfg, logger)

	telegramRuntime, err := telegram.NewRuntime(telegram.RuntimeConfig{
		AppID:           cfg.TelegramAppID,
		AppHash:         cfg.TelegramAppHash,
		BotToken:        cfg.TelegramBotToken,
		SessionDir:      cfg.SessionDir,
		TrackedSpaceIDs: cfg.TrackedSpaceIDs,
	}, logger)
	if err != nil {
		return fmt.Errorf("build telegram runtime: %w", err)
	}

	if err := registerRuntimeServices(kernelRuntime, logger, telegramRuntime); err != nil {
		return fmt.Errorf("register services: %w", err)
	}
	if err := registerRuntimeModules(ctx, kernelRuntime, cfg); err != nil {
		return fmt.Errorf("register modules: %w", err)
	}
	if err := kernelRuntime.RegisterDriver(telegramRuntime.Driver); err != nil {
		return fmt.Errorf("register telegram driver: %w", err)
	}

	logger.InfoContext(ctx, "bot starting",
		slog.String("driver", telegramRuntime.Driver.Name()),
		slog.Int("tracked_spaces", len(cfg.TrackedSpaceIDs)),
	)

	if err := kernelRuntime.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run kernel: %w", err)
	}

	logger.Info("bot stopped")

	return nil
}

func buildKernelRuntime(cfg config.Config, logger *slog.Logger) *kernel.Kernel {
	return kernel.New(
		kernel.WithLogger(logger),
		kernel.WithModuleHookTimeout(cfg.ModuleHookTimeout),
		kernel.WithShutdownTimeout(cfg.ShutdownTimeout),
		kernel.WithDefaultSubscriptionBuffer(cfg.SubscriptionBuffer),
		kernel.WithDefaultSubscriptionWorkers(cfg.SubscriptionWorkers),
	)
}

func registerRuntimeServices(
	kernelRuntime *kernel.Kernel,
	logger *slog.Logger,
	telegramRuntime *telegram.Runtime,
) error {
	if err := kernelRuntime.RegisterService(usher.ServiceLogger, logger); err != nil {
		return err
	}
	if err := kernelRuntime.RegisterService(usher.ServiceInviteLister, telegramRuntime.Invites); err != nil {
		return err
	}

	return kernelRuntime.RegisterService(usher.ServiceOutboundDispatcher, telegramRuntime.Outbound)
}

// registerRuntimeModules wires the module set in dependency order: the greeter
// registers the join-announcer service before the invite tracker resolves it.
func registerRuntimeModules(ctx context.Context, kernelRuntime *kernel.Kernel, cfg config.Config) error {
	welcomeProvider, err := newWelcomeProvider(cfg)
	if err != nil {
		return err
	}

	greeterOptions := make([]greeter.Option, 0, 1)
	if welcomeProvider != nil {
		greeterOptions = append(greeterOptions, greeter.WithProvider(welcomeProvider, cfg.GreeterModel))
	}

	modules := []usher.Module{
		greeter.New(greeterOptions...),
		invitetracker.New(),
		invitecmd.New(invitecmd.WithAdmins(cfg.AdminIDs)),
		pingpong.New(),
		help.New(),
	}
	for _, module := range modules {
		if err := kernelRuntime.RegisterModule(ctx, module); err != nil {
			return fmt.Errorf("register module %s: %w", module.Name(), err)
		}
	}

	return nil
}

// newWelcomeProvider builds the configured LLM backends and resolves the one
// selected for join greetings. An empty selector disables generation and the
// greeter falls back to its templates.
func newWelcomeProvider(cfg config.Config) (llm.Provider, error) {
	if cfg.GreeterProvider == "" {
		return nil, nil
	}

	providers := make(map[string]llm.Provider, 2)
	if cfg.OpenAIAPIKey != "" {
		provider, err := openai.New(openai.ProviderConfig{APIKey: cfg.OpenAIAPIKey})
		if err != nil {
			return nil, fmt.Errorf("build openai provider: %w", err)
		}
		providers[config.GreeterProviderOpenAI] = provider
	}
	if cfg.GeminiAPIKey != "" {
		provider, err := gemini.New(gemini.ProviderConfig{APIKey: cfg.GeminiAPIKey})
		if err != nil {
			return nil, fmt.Errorf("build gemini provider: %w", err)
		}
		providers[config.GreeterProviderGemini] = provider
	}

	registry, err := llm.NewRegistry(providers)
	if err != nil {
		return nil, fmt.Errorf("build llm registry: %w", err)
	}

	provider, err := registry.Resolve(cfg.GreeterProvider)
	if err != nil {
		return nil, fmt.Errorf("resolve greeter provider: %w", err)
	}

	return provider, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
