// Package help replies with the registered command reference for /help.
package help

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"usher/pkg/usher"
)

const helpCommandName = "help"

// Module replies with command reference text when it receives a /help command.
type Module struct {
	dispatcher     usher.OutboundDispatcher
	commandCatalog usher.CommandCatalog
}

// New creates a help module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "help"
}

// Spec declares interest in help command events.
func (m *Module) Spec() usher.ModuleSpec {
	return usher.ModuleSpec{
		Handlers: []usher.ModuleHandler{
			{
				Capability: usher.Capability{
					Name:        "help-command-handler",
					Description: "renders registered command help for /help",
					Interest: usher.InterestSet{
						Kinds:          []usher.EventKind{usher.EventKindCommandReceived},
						RequireCommand: true,
						CommandNames:   []string{helpCommandName},
					},
					RequiredServices: []string{
						usher.ServiceOutboundDispatcher,
						usher.ServiceCommandCatalog,
					},
				},
				Subscription: usher.NewDefaultSubscriptionSpec("help-commands"),
				Handler:      m.handleCommand,
			},
		},
		Commands: []usher.CommandSpec{
			{
				Name:        helpCommandName,
				Description: "show all available commands",
			},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime usher.ModuleRuntime) error {
	dispatcher, err := usher.ResolveAs[usher.OutboundDispatcher](
		runtime.Services(),
		usher.ServiceOutboundDispatcher,
	)
	if err != nil {
		return fmt.Errorf("help resolve outbound dispatcher: %w", err)
	}
	commandCatalog, err := usher.ResolveAs[usher.CommandCatalog](
		runtime.Services(),
		usher.ServiceCommandCatalog,
	)
	if err != nil {
		return fmt.Errorf("help resolve command catalog: %w", err)
	}

	m.dispatcher = dispatcher
	m.commandCatalog = commandCatalog

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(_ context.Context) error {
	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleCommand(ctx context.Context, event *usher.Event) error {
	if event == nil || event.Command == nil {
		return nil
	}
	if event.Kind != usher.EventKindCommandReceived {
		return nil
	}
	if event.Command.Name != helpCommandName {
		return nil
	}
	if m.dispatcher == nil {
		return fmt.Errorf("help handle command: outbound dispatcher not configured")
	}
	if m.commandCatalog == nil {
		return fmt.Errorf("help handle command: command catalog not configured")
	}

	commands, err := m.commandCatalog.ListCommands(ctx)
	if err != nil {
		return fmt.Errorf("help list commands: %w", err)
	}
	body := renderHelp(commands)

	target, err := usher.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("help derive outbound target: %w", err)
	}

	replyTo := ""
	if event.Message != nil {
		replyTo = event.Message.ID
	}
	_, err = m.dispatcher.SendMessage(ctx, usher.SendMessageRequest{
		Target:           target,
		Text:             body,
		ReplyToMessageID: replyTo,
	})
	if err != nil {
		return fmt.Errorf("help send help message: %w", err)
	}

	return nil
}

func renderHelp(commands []usher.RegisteredCommand) string {
	if len(commands) == 0 {
		return "Available commands:\n(none)"
	}

	sorted := append([]usher.RegisteredCommand(nil), commands...)
	sort.Slice(sorted, func(i, j int) bool {
		left := sorted[i].Command.Usage()
		right := sorted[j].Command.Usage()
		if left == right {
			return sorted[i].ModuleName < sorted[j].ModuleName
		}
		return left < right
	})

	lines := make([]string, 0, len(sorted)*3+1)
	lines = append(lines, "Available commands:\n")
	for index, command := range sorted {
		if index > 0 {
			lines = append(lines, "")
		}

		usage := command.Command.Usage()
		if command.Command.AdminOnly {
			usage += " (admin)"
		}
		lines = append(lines, usage)

		description := strings.TrimSpace(command.Command.Description)
		if description != "" {
			lines = append(lines, description)
		}

		moduleName := strings.TrimSpace(command.ModuleName)
		if moduleName == "" {
			moduleName = "unknown"
		}
		lines = append(lines, fmt.Sprintf("(%s)", moduleName))
	}

	return strings.Join(lines, "\n")
}

var _ usher.Module = (*Module)(nil)
