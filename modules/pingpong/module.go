// Package pingpong replies with pong to /ping, useful as a liveness probe.
package pingpong

import (
	"context"
	"fmt"

	"usher/pkg/usher"
)

const pingCommandName = "ping"

// Module replies "pong!" to the ping command.
type Module struct {
	dispatcher usher.OutboundDispatcher
}

// New creates a pingpong module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "pingpong"
}

// Spec declares interest in ping command events.
func (m *Module) Spec() usher.ModuleSpec {
	return usher.ModuleSpec{
		Handlers: []usher.ModuleHandler{
			{
				Capability: usher.Capability{
					Name:        "ping-command-handler",
					Description: "replies with pong to /ping",
					Interest: usher.InterestSet{
						Kinds:          []usher.EventKind{usher.EventKindCommandReceived},
						RequireCommand: true,
						CommandNames:   []string{pingCommandName},
					},
					RequiredServices: []string{usher.ServiceOutboundDispatcher},
				},
				Subscription: usher.NewDefaultSubscriptionSpec("ping-commands"),
				Handler:      m.handleCommand,
			},
		},
		Commands: []usher.CommandSpec{
			{
				Name:        pingCommandName,
				Description: "reply with pong",
			},
		},
	}
}

// OnRegister resolves the outbound dispatcher.
func (m *Module) OnRegister(_ context.Context, runtime usher.ModuleRuntime) error {
	dispatcher, err := usher.ResolveAs[usher.OutboundDispatcher](
		runtime.Services(),
		usher.ServiceOutboundDispatcher,
	)
	if err != nil {
		return fmt.Errorf("pingpong resolve outbound dispatcher: %w", err)
	}
	m.dispatcher = dispatcher

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
	if event.Command.Name != pingCommandName {
		return nil
	}
	if m.dispatcher == nil {
		return fmt.Errorf("pingpong handle command: outbound dispatcher not configured")
	}

	target, err := usher.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("pingpong derive outbound target: %w", err)
	}

	replyTo := ""
	if event.Message != nil {
		replyTo = event.Message.ID
	}
	_, err = m.dispatcher.SendMessage(ctx, usher.SendMessageRequest{
		Target:           target,
		Text:             "pong!",
		ReplyToMessageID: replyTo,
	})
	if err != nil {
		return fmt.Errorf("pingpong send pong: %w", err)
	}

	return nil
}

var _ usher.Module = (*Module)(nil)
