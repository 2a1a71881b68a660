// Package invitecmd exposes invite counters and attribution history through
// chat commands, including administrative counter mutations.
package invitecmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"usher/pkg/usher"
)

const (
	invitesCommandName       = "invites"
	inviterCommandName       = "inviter"
	resetInvitesCommandName  = "resetinvites"
	addInvitesCommandName    = "addinvites"
	removeInvitesCommandName = "removeinvites"
)

const notAllowedReply = "you are not allowed to use this command."

// Option mutates invite command module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// WithAdmins sets the actor IDs allowed to run administrative commands.
func WithAdmins(adminIDs []string) Option {
	return func(module *Module) {
		module.admins = make(map[string]struct{}, len(adminIDs))
		for _, id := range adminIDs {
			module.admins[id] = struct{}{}
		}
	}
}

// Module serves the invite query and administration commands.
type Module struct {
	logger     *slog.Logger
	dispatcher usher.OutboundDispatcher
	ledger     usher.InviteLedger
	admins     map[string]struct{}
}

// New creates the invite command module.
func New(options ...Option) *Module {
	module := &Module{
		logger: slog.Default(),
		admins: make(map[string]struct{}),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "invitecmd"
}

// Spec declares the command handler and its command registrations.
func (m *Module) Spec() usher.ModuleSpec {
	return usher.ModuleSpec{
		Handlers: []usher.ModuleHandler{
			{
				Capability: usher.Capability{
					Name:        "invite-command-handler",
					Description: "answers invite counter queries and administrative mutations",
					Interest: usher.InterestSet{
						Kinds:          []usher.EventKind{usher.EventKindCommandReceived},
						RequireCommand: true,
						CommandNames: []string{
							invitesCommandName,
							inviterCommandName,
							resetInvitesCommandName,
							addInvitesCommandName,
							removeInvitesCommandName,
						},
					},
					RequiredServices: []string{
						usher.ServiceInviteLedger,
						usher.ServiceOutboundDispatcher,
					},
				},
				Subscription: usher.NewDefaultSubscriptionSpec("invite-command-handler"),
				Handler:      m.handleCommand,
			},
		},
		Commands: []usher.CommandSpec{
			{
				Name:        invitesCommandName,
				Description: "show how many members a user has invited",
				ArgsUsage:   "[user_id]",
				MaxArgs:     1,
			},
			{
				Name:        inviterCommandName,
				Description: "show who invited a member",
				ArgsUsage:   "<member_id>",
				MinArgs:     1,
				MaxArgs:     1,
			},
			{
				Name:        resetInvitesCommandName,
				Description: "reset a user's invite counter to zero",
				ArgsUsage:   "<user_id>",
				MinArgs:     1,
				MaxArgs:     1,
				AdminOnly:   true,
			},
			{
				Name:        addInvitesCommandName,
				Description: "add invites to a user's counter",
				ArgsUsage:   "<user_id> <amount>",
				MinArgs:     2,
				MaxArgs:     2,
				AdminOnly:   true,
			},
			{
				Name:        removeInvitesCommandName,
				Description: "remove invites from a user's counter, floored at zero",
				ArgsUsage:   "<user_id> <amount>",
				MinArgs:     2,
				MaxArgs:     2,
				AdminOnly:   true,
			},
		},
	}
}

// OnRegister resolves the ledger and outbound dispatcher services.
func (m *Module) OnRegister(_ context.Context, runtime usher.ModuleRuntime) error {
	logger, err := usher.ResolveAs[*slog.Logger](runtime.Services(), usher.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, usher.ErrServiceNotFound):
	default:
		return fmt.Errorf("invitecmd resolve logger: %w", err)
	}

	ledger, err := usher.ResolveAs[usher.InviteLedger](runtime.Services(), usher.ServiceInviteLedger)
	if err != nil {
		return fmt.Errorf("invitecmd resolve invite ledger: %w", err)
	}
	m.ledger = ledger

	dispatcher, err := usher.ResolveAs[usher.OutboundDispatcher](
		runtime.Services(),
		usher.ServiceOutboundDispatcher,
	)
	if err != nil {
		return fmt.Errorf("invitecmd resolve outbound dispatcher: %w", err)
	}
	m.dispatcher = dispatcher

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(ctx context.Context) error {
	m.logger.InfoContext(ctx,
		"invite command module started",
		"module", m.Name(),
		"admins", len(m.admins),
	)

	return nil
}

// OnShutdown ends the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleCommand(ctx context.Context, event *usher.Event) error {
	if event == nil || event.Command == nil {
		return nil
	}
	command := event.Command

	if m.isAdminCommand(command.Name) && !m.isAdmin(event.Actor.ID) {
		m.logger.WarnContext(ctx,
			"administrative command refused",
			"module", m.Name(),
			"command", command.Name,
			"actor_id", event.Actor.ID,
			"space_id", event.Space.ID,
		)

		return m.reply(ctx, event, notAllowedReply)
	}

	switch command.Name {
	case invitesCommandName:
		return m.handleInvites(ctx, event)
	case inviterCommandName:
		return m.handleInviter(ctx, event)
	case resetInvitesCommandName:
		return m.handleResetInvites(ctx, event)
	case addInvitesCommandName:
		return m.handleAddInvites(ctx, event, 1)
	case removeInvitesCommandName:
		return m.handleAddInvites(ctx, event, -1)
	default:
		return nil
	}
}

func (m *Module) handleInvites(ctx context.Context, event *usher.Event) error {
	userID := event.Actor.ID
	if len(event.Command.Args) > 0 {
		userID = event.Command.Args[0]
	}

	count, err := m.ledger.InviteCount(ctx, event.Space.ID, userID)
	if err != nil {
		return fmt.Errorf("invites query for %s: %w", userID, err)
	}

	if userID == event.Actor.ID {
		return m.reply(ctx, event, fmt.Sprintf("you have invited %d member(s).", count))
	}

	return m.reply(ctx, event, fmt.Sprintf("user %s has invited %d member(s).", userID, count))
}

func (m *Module) handleInviter(ctx context.Context, event *usher.Event) error {
	memberID := event.Command.Args[0]

	history, ok, err := m.ledger.InviterInfo(ctx, event.Space.ID, memberID)
	if err != nil {
		return fmt.Errorf("inviter query for %s: %w", memberID, err)
	}
	if !ok {
		return m.reply(ctx, event, fmt.Sprintf("no invite attribution recorded for member %s.", memberID))
	}

	presence := "present"
	if !history.Present {
		presence = "left"
	}

	return m.reply(ctx, event, fmt.Sprintf(
		"member %s was invited by %s (%s, rejoins: %d).",
		memberID,
		history.InviterID,
		presence,
		history.RejoinCount,
	))
}

func (m *Module) handleResetInvites(ctx context.Context, event *usher.Event) error {
	userID := event.Command.Args[0]
	if err := m.ledger.ResetCount(ctx, event.Space.ID, userID); err != nil {
		return fmt.Errorf("reset invites for %s: %w", userID, err)
	}

	return m.reply(ctx, event, fmt.Sprintf("invite count for user %s reset to 0.", userID))
}

// handleAddInvites applies add and remove; direction is +1 or -1.
func (m *Module) handleAddInvites(ctx context.Context, event *usher.Event, direction int) error {
	userID := event.Command.Args[0]
	amount, err := strconv.Atoi(event.Command.Args[1])
	if err != nil || amount <= 0 {
		return m.reply(ctx, event, "amount must be a positive integer.")
	}

	var count int
	if direction >= 0 {
		count, err = m.ledger.AddInvites(ctx, event.Space.ID, userID, amount)
	} else {
		count, err = m.ledger.RemoveInvites(ctx, event.Space.ID, userID, amount)
	}
	if errors.Is(err, usher.ErrInvalidAmount) {
		return m.reply(ctx, event, "amount must be a positive integer.")
	}
	if err != nil {
		return fmt.Errorf("adjust invites for %s: %w", userID, err)
	}

	return m.reply(ctx, event, fmt.Sprintf("invite count for user %s is now %d.", userID, count))
}

func (m *Module) reply(ctx context.Context, event *usher.Event, text string) error {
	target, err := usher.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("derive reply target: %w", err)
	}

	replyTo := ""
	if event.Message != nil {
		replyTo = event.Message.ID
	}

	_, err = m.dispatcher.SendMessage(ctx, usher.SendMessageRequest{
		Target:           target,
		Text:             text,
		ReplyToMessageID: replyTo,
	})
	if err != nil {
		return fmt.Errorf("send command reply: %w", err)
	}

	return nil
}

func (m *Module) isAdminCommand(name string) bool {
	switch name {
	case resetInvitesCommandName, addInvitesCommandName, removeInvitesCommandName:
		return true
	default:
		return false
	}
}

func (m *Module) isAdmin(actorID string) bool {
	_, ok := m.admins[actorID]

	return ok
}

var _ usher.Module = (*Module)(nil)
