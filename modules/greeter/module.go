// Package greeter announces attributed joins in the space, optionally
// decorating the announcement with an LLM-generated welcome line.
package greeter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"usher/pkg/llm"
	"usher/pkg/usher"
)

const (
	// welcomeSystemPrompt keeps generated lines short and on-topic.
	welcomeSystemPrompt = "You write a single short, warm welcome line for a new chat member. " +
		"Reply with one sentence of plain text, no quotes, no emoji spam."

	defaultTemperature     = 0.8
	defaultMaxOutputTokens = 60
)

// Option mutates greeter configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// WithProvider enables LLM-generated welcome lines using the given model.
func WithProvider(provider llm.Provider, model string) Option {
	return func(module *Module) {
		module.provider = provider
		module.model = strings.TrimSpace(model)
	}
}

// Module sends join announcements on behalf of the invite tracker.
type Module struct {
	logger     *slog.Logger
	dispatcher usher.OutboundDispatcher
	provider   llm.Provider
	model      string
}

// New creates the greeter module.
func New(options ...Option) *Module {
	module := &Module{
		logger: slog.Default(),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "greeter"
}

// Spec declares no handlers; the greeter is invoked through the
// join-announcer service rather than by event subscription.
func (m *Module) Spec() usher.ModuleSpec {
	return usher.ModuleSpec{}
}

// OnRegister resolves the dispatcher and registers this module as the
// join announcer. The greeter must register before the invite tracker so
// the tracker finds the service.
func (m *Module) OnRegister(_ context.Context, runtime usher.ModuleRuntime) error {
	logger, err := usher.ResolveAs[*slog.Logger](runtime.Services(), usher.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, usher.ErrServiceNotFound):
	default:
		return fmt.Errorf("greeter resolve logger: %w", err)
	}

	dispatcher, err := usher.ResolveAs[usher.OutboundDispatcher](
		runtime.Services(),
		usher.ServiceOutboundDispatcher,
	)
	if err != nil {
		return fmt.Errorf("greeter resolve outbound dispatcher: %w", err)
	}
	m.dispatcher = dispatcher

	if err := runtime.Services().Register(usher.ServiceJoinAnnouncer, usher.JoinAnnouncer(m)); err != nil {
		return fmt.Errorf("greeter register service %s: %w", usher.ServiceJoinAnnouncer, err)
	}

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(ctx context.Context) error {
	m.logger.InfoContext(ctx,
		"greeter started",
		"module", m.Name(),
		"llm_enabled", m.provider != nil,
		"model", m.model,
	)

	return nil
}

// OnShutdown ends the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

// AnnounceJoin sends one attributed-join announcement to the space.
func (m *Module) AnnounceJoin(ctx context.Context, announcement usher.Announcement) error {
	if m.dispatcher == nil {
		return fmt.Errorf("greeter announce join: dispatcher is not configured")
	}

	text := m.announcementText(ctx, announcement)

	_, err := m.dispatcher.SendMessage(ctx, usher.SendMessageRequest{
		Target: usher.OutboundTarget{Space: announcement.Space},
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("greeter send announcement: %w", err)
	}

	return nil
}

// announcementText prefers an LLM one-liner and falls back to the template
// on any generation failure.
func (m *Module) announcementText(ctx context.Context, announcement usher.Announcement) string {
	fallback := fallbackText(announcement)
	if m.provider == nil || m.model == "" {
		return fallback
	}

	generated, err := m.provider.Generate(ctx, llm.GenerateRequest{
		Model: m.model,
		Messages: []llm.Message{
			{Role: llm.MessageRoleSystem, Content: welcomeSystemPrompt},
			{Role: llm.MessageRoleUser, Content: welcomePrompt(announcement)},
		},
		Temperature:     defaultTemperature,
		MaxOutputTokens: defaultMaxOutputTokens,
	})
	if err != nil {
		m.logger.WarnContext(ctx,
			"welcome line generation failed",
			"module", m.Name(),
			"space_id", announcement.Space.ID,
			"error", err,
		)

		return fallback
	}

	line := firstLine(generated)
	if line == "" {
		return fallback
	}

	return fallback + "\n" + line
}

func fallbackText(announcement usher.Announcement) string {
	member := actorLabel(announcement.Member)
	text := fmt.Sprintf("%s joined, invited by %s.", member, announcement.InviterID)
	if announcement.RejoinCount > 0 {
		text = fmt.Sprintf("%s rejoined (rejoin #%d), invited by %s.",
			member,
			announcement.RejoinCount,
			announcement.InviterID,
		)
	}

	return text
}

func welcomePrompt(announcement usher.Announcement) string {
	prompt := fmt.Sprintf("New member %q joined the group %q.",
		actorLabel(announcement.Member),
		announcement.Space.Title,
	)
	if announcement.RejoinCount > 0 {
		prompt += fmt.Sprintf(" They have rejoined %d time(s) before.", announcement.RejoinCount)
	}

	return prompt
}

func actorLabel(actor usher.Actor) string {
	if actor.DisplayName != "" {
		return actor.DisplayName
	}
	if actor.Username != "" {
		return "@" + actor.Username
	}

	return actor.ID
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}

	return ""
}

var (
	_ usher.Module        = (*Module)(nil)
	_ usher.JoinAnnouncer = (*Module)(nil)
)
