package kernel

import (
	"context"
	"fmt"
	"strings"

	"usher/pkg/usher"
)

type commandRegistration struct {
	moduleName string
	spec       usher.CommandSpec
}

// registerModuleCommands validates and registers module-owned command specs.
func (k *Kernel) registerModuleCommands(
	_ context.Context,
	moduleName string,
	commands []usher.CommandSpec,
) error {
	if len(commands) == 0 {
		return nil
	}

	normalized := make([]usher.CommandSpec, 0, len(commands))
	seenInModule := make(map[string]struct{}, len(commands))
	for index, command := range commands {
		if err := command.Validate(); err != nil {
			return fmt.Errorf("register command[%d] for module %s: %w", index, moduleName, err)
		}

		command = cloneCommandSpec(command)
		key := commandRegistryKey(command.Name)
		if _, exists := seenInModule[key]; exists {
			return fmt.Errorf(
				"register command %s%s for module %s: duplicate declaration",
				usher.CommandPrefix,
				command.Name,
				moduleName,
			)
		}
		seenInModule[key] = struct{}{}
		normalized = append(normalized, command)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, command := range normalized {
		key := commandRegistryKey(command.Name)
		existing, exists := k.commands[key]
		if exists {
			return fmt.Errorf(
				"register command %s%s for module %s: already registered by module %s",
				usher.CommandPrefix,
				command.Name,
				moduleName,
				existing.moduleName,
			)
		}
	}
	for _, command := range normalized {
		key := commandRegistryKey(command.Name)
		k.commands[key] = commandRegistration{
			moduleName: moduleName,
			spec:       command,
		}
	}

	return nil
}

// unregisterModuleCommands removes every command owned by one module.
func (k *Kernel) unregisterModuleCommands(moduleName string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for key, registration := range k.commands {
		if registration.moduleName == moduleName {
			delete(k.commands, key)
		}
	}
}

// lookupCommand resolves one command spec by normalized name.
func (k *Kernel) lookupCommand(name string) (usher.CommandSpec, bool) {
	key := commandRegistryKey(name)

	k.mu.RLock()
	registration, exists := k.commands[key]
	k.mu.RUnlock()
	if !exists {
		return usher.CommandSpec{}, false
	}

	return cloneCommandSpec(registration.spec), true
}

// newDriverEventSink creates the source-event sink wrapped with command derivation.
func (k *Kernel) newDriverEventSink() usher.EventSink {
	return &commandDerivingSink{
		base:          k.bus,
		lookupCommand: k.lookupCommand,
		serviceLookup: k.services,
		reportAsync:   k.cfg.onAsyncError,
	}
}

// commandDerivingSink publishes source events and derives command events.
type commandDerivingSink struct {
	base          usher.EventSink
	lookupCommand func(name string) (usher.CommandSpec, bool)
	serviceLookup usher.ServiceRegistry
	reportAsync   func(context.Context, string, error)
}

// Publish forwards one source event and conditionally derives one command event.
func (s *commandDerivingSink) Publish(ctx context.Context, event *usher.Event) error {
	if event == nil {
		return fmt.Errorf("publish command deriving sink: nil event")
	}
	if s.base == nil {
		return fmt.Errorf("publish command deriving sink: nil base sink")
	}

	if err := s.base.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish source event %s: %w", event.Kind, err)
	}

	if event.Kind != usher.EventKindMessageCreated || event.Message == nil {
		return nil
	}

	candidate, matched, parseErr := usher.ParseCommandCandidate(event.Message.Text)
	if !matched {
		return nil
	}
	if parseErr != nil {
		return nil
	}

	spec, registered := s.lookupCommand(candidate.Name)
	if !registered {
		return nil
	}

	invocation, bindErr := usher.BindCommand(candidate, spec, event)
	if bindErr != nil {
		s.replyCommandError(ctx, event, spec, bindErr)
		return nil
	}

	commandEvent := derivedCommandEvent(event, invocation)
	if err := s.base.Publish(ctx, commandEvent); err != nil {
		return fmt.Errorf("publish derived command %s: %w", invocation.Name, err)
	}

	return nil
}

// replyCommandError answers malformed invocations of registered commands with usage text.
func (s *commandDerivingSink) replyCommandError(
	ctx context.Context,
	sourceEvent *usher.Event,
	spec usher.CommandSpec,
	bindErr error,
) {
	if s.serviceLookup == nil {
		s.reportAsyncError(ctx, "command error reply resolve dispatcher", fmt.Errorf("service lookup unavailable"))
		return
	}

	dispatcher, err := usher.ResolveAs[usher.OutboundDispatcher](
		s.serviceLookup,
		usher.ServiceOutboundDispatcher,
	)
	if err != nil {
		s.reportAsyncError(ctx, "command error reply resolve dispatcher", err)
		return
	}

	target, err := usher.OutboundTargetFromEvent(sourceEvent)
	if err != nil {
		s.reportAsyncError(ctx, "command error reply derive target", err)
		return
	}

	_, err = dispatcher.SendMessage(ctx, usher.SendMessageRequest{
		Target:           target,
		Text:             formatCommandErrorReply(spec, bindErr),
		ReplyToMessageID: commandReplyToMessageID(sourceEvent),
	})
	if err != nil {
		s.reportAsyncError(ctx, "command error reply send", err)
	}
}

func (s *commandDerivingSink) reportAsyncError(ctx context.Context, scope string, err error) {
	if s.reportAsync != nil {
		s.reportAsync(ctx, scope, err)
	}
}

// derivedCommandEvent builds the command.received event from its source message.
func derivedCommandEvent(
	sourceEvent *usher.Event,
	invocation usher.CommandInvocation,
) *usher.Event {
	message := *sourceEvent.Message
	cloned := invocation
	if len(invocation.Args) > 0 {
		cloned.Args = append([]string(nil), invocation.Args...)
	}

	return &usher.Event{
		ID:         sourceEvent.ID + "#command",
		Kind:       usher.EventKindCommandReceived,
		OccurredAt: sourceEvent.OccurredAt,
		Platform:   sourceEvent.Platform,
		Space:      sourceEvent.Space,
		Actor:      sourceEvent.Actor,
		Message:    &message,
		Command:    &cloned,
		Metadata:   cloneStringMap(sourceEvent.Metadata),
	}
}

func commandReplyToMessageID(event *usher.Event) string {
	if event == nil || event.Message == nil {
		return ""
	}

	return event.Message.ID
}

func formatCommandErrorReply(spec usher.CommandSpec, bindErr error) string {
	if bindErr == nil {
		return "usage: " + spec.Usage()
	}

	return fmt.Sprintf("%s\nusage: %s", bindErr.Error(), spec.Usage())
}

func commandRegistryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func cloneCommandSpec(spec usher.CommandSpec) usher.CommandSpec {
	cloned := spec
	cloned.Name = commandRegistryKey(spec.Name)

	return cloned
}

func cloneStringMap(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}

	cloned := make(map[string]string, len(metadata))
	for key, value := range metadata {
		cloned[key] = value
	}

	return cloned
}
