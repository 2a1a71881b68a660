package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/session"
	gotdtelegram "github.com/gotd/td/telegram"
)

const (
	defaultRuntimeSessionDir     = "session"
	defaultRuntimeSessionFile    = "telegram.session.json"
	defaultRuntimePublishTimeout = 2 * time.Second
	defaultRuntimeAuthTimeout    = 1 * time.Minute
)

// RuntimeConfig describes one Telegram bot driver runtime.
type RuntimeConfig struct {
	// AppID is the Telegram API application identifier.
	AppID int
	// AppHash is the Telegram API application hash.
	AppHash string
	// BotToken authenticates the bot account.
	BotToken string
	// SessionDir stores the MTProto session file. Defaults to "session".
	SessionDir string
	// TrackedSpaceIDs are announced as space.ready at session start.
	TrackedSpaceIDs []string
	// UpdateBuffer bounds the raw update channel between gotd and the mapper.
	UpdateBuffer int
	// PublishTimeout bounds each event publish into the kernel bus.
	PublishTimeout time.Duration
}

func (cfg *RuntimeConfig) normalize() error {
	if cfg.AppID <= 0 {
		return fmt.Errorf("app id must be > 0")
	}
	cfg.AppHash = strings.TrimSpace(cfg.AppHash)
	if cfg.AppHash == "" {
		return fmt.Errorf("app hash is required")
	}
	cfg.BotToken = strings.TrimSpace(cfg.BotToken)
	if cfg.BotToken == "" {
		return fmt.Errorf("bot token is required")
	}
	cfg.SessionDir = strings.TrimSpace(cfg.SessionDir)
	if cfg.SessionDir == "" {
		cfg.SessionDir = defaultRuntimeSessionDir
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultRuntimePublishTimeout
	}

	return nil
}

// Runtime bundles the driver with the platform services it backs.
type Runtime struct {
	// Driver is the inbound event adapter registered with the kernel.
	Driver *Driver
	// Invites lists exported invite links for attribution snapshots.
	Invites *GotdInviteLister
	// Outbound sends neutral messages through the bot session.
	Outbound *OutboundDispatcher
}

// NewRuntime builds a Telegram bot runtime from configuration.
func NewRuntime(cfg RuntimeConfig, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("new telegram runtime: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	updateChannel, err := NewGotdUpdateChannel(cfg.UpdateBuffer)
	if err != nil {
		return nil, fmt.Errorf("new gotd update channel: %w", err)
	}

	sessionStorage, err := newGotdSessionStorage(filepath.Join(cfg.SessionDir, defaultRuntimeSessionFile))
	if err != nil {
		return nil, fmt.Errorf("new gotd session storage: %w", err)
	}

	client := gotdtelegram.NewClient(cfg.AppID, cfg.AppHash, gotdtelegram.Options{
		UpdateHandler:  updateChannel,
		SessionStorage: sessionStorage,
	})

	peers := NewPeerCache()
	source, err := NewGotdBotSource(
		gotdAuthenticatedClient{
			client: client,
			authenticate: func(ctx context.Context) error {
				return authenticateGotdBot(ctx, logger, client, cfg.BotToken)
			},
		},
		updateChannel,
		NewDefaultGotdUpdateMapper(
			WithPeerCache(peers),
			WithSelfID(botSelfID(cfg.BotToken)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("new gotd bot source: %w", err)
	}

	driver, err := NewDriver(
		source,
		NewDefaultDecoder(),
		WithPublishTimeout(cfg.PublishTimeout),
		WithTrackedSpaces(cfg.TrackedSpaceIDs),
		WithErrorHandler(func(_ context.Context, err error) {
			logger.Error("telegram driver async error", "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("new telegram driver: %w", err)
	}

	invites, err := NewGotdInviteLister(client.API(), peers)
	if err != nil {
		return nil, fmt.Errorf("new gotd invite lister: %w", err)
	}

	outbound, err := NewOutboundDispatcher(
		client,
		peers,
		WithOutboundTimeout(cfg.PublishTimeout),
		WithOutboundLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("new telegram outbound dispatcher: %w", err)
	}

	return &Runtime{
		Driver:   driver,
		Invites:  invites,
		Outbound: outbound,
	}, nil
}

func newGotdSessionStorage(path string) (*session.FileStorage, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, fmt.Errorf("empty session file path")
	}

	absPath, err := filepath.Abs(trimmedPath)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute session file path: %w", err)
	}
	sessionDir := filepath.Dir(absPath)
	if err := os.MkdirAll(sessionDir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory %s: %w", sessionDir, err)
	}

	return &session.FileStorage{Path: absPath}, nil
}

type gotdAuthenticatedClient struct {
	client       *gotdtelegram.Client
	authenticate func(ctx context.Context) error
}

// Run executes client runtime and performs authentication before invoking fn.
func (c gotdAuthenticatedClient) Run(ctx context.Context, fn func(runCtx context.Context) error) error {
	if c.client == nil {
		return fmt.Errorf("run gotd authenticated client: nil client")
	}
	if c.authenticate == nil {
		return fmt.Errorf("run gotd authenticated client: nil authenticate callback")
	}
	if fn == nil {
		return fmt.Errorf("run gotd authenticated client: nil run callback")
	}

	if err := c.client.Run(ctx, func(runCtx context.Context) error {
		if err := c.authenticate(runCtx); err != nil {
			return fmt.Errorf("authenticate gotd client: %w", err)
		}
		if err := fn(runCtx); err != nil {
			return fmt.Errorf("run gotd client callback: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("run gotd authenticated client: %w", err)
	}

	return nil
}

func authenticateGotdBot(
	ctx context.Context,
	logger *slog.Logger,
	client *gotdtelegram.Client,
	botToken string,
) error {
	if client == nil {
		return fmt.Errorf("authenticate gotd bot: nil client")
	}

	authCtx, cancel := context.WithTimeout(ctx, defaultRuntimeAuthTimeout)
	defer cancel()

	status, err := client.Auth().Status(authCtx)
	if err != nil {
		return fmt.Errorf("check auth status: %w", err)
	}
	if status.Authorized {
		logger.Info("telegram session restored from local storage")
		return nil
	}

	if _, err := client.Auth().Bot(authCtx, botToken); err != nil {
		return fmt.Errorf("authenticate bot: %w", err)
	}
	logger.Info("telegram authorized with bot token")

	return nil
}

// botSelfID derives the bot account ID from the numeric bot token prefix.
// Returns 0 when the token does not carry one.
func botSelfID(botToken string) int64 {
	prefix, _, found := strings.Cut(botToken, ":")
	if !found {
		return 0
	}

	id, err := strconv.ParseInt(strings.TrimSpace(prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}

	return id
}
