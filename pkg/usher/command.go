package usher

import (
	"fmt"
	"strings"
)

// CommandPrefix is the leading token that introduces a command invocation.
const CommandPrefix = "/"

// CommandCandidate is a parsed command-looking message before command-spec binding.
type CommandCandidate struct {
	// Name is the normalized command name without prefix and mention suffix.
	Name string
	// Mention is the optional mention suffix from `<name>@<mention>`.
	Mention string
	// RawInput is the original untrimmed message text.
	RawInput string
	// Args stores whitespace-separated tokens after the command header token.
	Args []string
}

// CommandInvocation carries one validated command event payload.
type CommandInvocation struct {
	// Name is the normalized command name.
	Name string
	// Mention is the optional mention suffix from `<name>@<mention>`.
	Mention string
	// Args stores positional arguments bound against the command spec.
	Args []string
	// SourceEventID identifies the inbound source event that produced this command.
	SourceEventID string
	// SourceEventKind identifies the inbound source event kind.
	SourceEventKind EventKind
	// RawInput stores the original inbound message text.
	RawInput string
}

// Validate checks command invocation contract fields.
func (c *CommandInvocation) Validate() error {
	if c == nil {
		return fmt.Errorf("validate command invocation: nil invocation")
	}
	if normalizeCommandName(c.Name) == "" {
		return fmt.Errorf("validate command invocation: missing name")
	}
	if c.SourceEventID == "" {
		return fmt.Errorf("validate command invocation: missing source_event_id")
	}
	if c.SourceEventKind == "" {
		return fmt.Errorf("validate command invocation: missing source_event_kind")
	}

	return nil
}

// CommandSpec declares one module command registration.
type CommandSpec struct {
	// Name is the command name without prefix and mention suffix.
	Name string
	// Description describes command behavior for diagnostics and help text.
	Description string
	// ArgsUsage documents positional arguments for usage replies, for
	// example `<user_id> <amount>`.
	ArgsUsage string
	// MinArgs is the minimum accepted positional argument count.
	MinArgs int
	// MaxArgs is the maximum accepted positional argument count.
	// Negative means unlimited.
	MaxArgs int
	// AdminOnly restricts the command to configured administrator actors.
	AdminOnly bool
}

// Validate checks command specification coherence.
func (s CommandSpec) Validate() error {
	if normalizeCommandName(s.Name) == "" {
		return fmt.Errorf("validate command spec: missing name")
	}
	if strings.ContainsAny(s.Name, " \t\r\n") {
		return fmt.Errorf("validate command spec: name %q contains whitespace", s.Name)
	}
	if s.MinArgs < 0 {
		return fmt.Errorf("validate command spec %s: negative min args", s.Name)
	}
	if s.MaxArgs >= 0 && s.MaxArgs < s.MinArgs {
		return fmt.Errorf("validate command spec %s: max args below min args", s.Name)
	}

	return nil
}

// Usage renders the command header and argument placeholders for replies.
func (s CommandSpec) Usage() string {
	usage := CommandPrefix + normalizeCommandName(s.Name)
	if s.ArgsUsage != "" {
		usage += " " + s.ArgsUsage
	}

	return usage
}

// ParseCommandCandidate parses one input text into a command candidate.
//
// matched is false when text does not look like a command. When matched is
// true, candidate fields are populated as much as possible and err reports
// syntax issues such as a missing command name.
func ParseCommandCandidate(text string) (candidate CommandCandidate, matched bool, err error) {
	candidate.RawInput = text

	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return candidate, false, nil
	}
	header := fields[0]
	if !strings.HasPrefix(header, CommandPrefix) {
		return candidate, false, nil
	}

	name, mention := splitCommandHeader(header[len(CommandPrefix):])
	candidate.Name = normalizeCommandName(name)
	candidate.Mention = strings.TrimSpace(mention)
	if candidate.Name == "" {
		return candidate, true, fmt.Errorf("parse command candidate: missing command name")
	}

	if len(fields) > 1 {
		candidate.Args = append([]string(nil), fields[1:]...)
	}

	return candidate, true, nil
}

// BindCommand validates one parsed candidate against one command spec.
//
// sourceEvent must identify the inbound event that produced this command.
func BindCommand(
	candidate CommandCandidate,
	spec CommandSpec,
	sourceEvent *Event,
) (CommandInvocation, error) {
	if sourceEvent == nil {
		return CommandInvocation{}, fmt.Errorf("bind command: nil source event")
	}
	if err := spec.Validate(); err != nil {
		return CommandInvocation{}, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}

	specName := normalizeCommandName(spec.Name)
	if normalizeCommandName(candidate.Name) != specName {
		return CommandInvocation{}, fmt.Errorf(
			"bind command %s: name mismatch, got %q",
			spec.Name,
			candidate.Name,
		)
	}

	if len(candidate.Args) < spec.MinArgs {
		return CommandInvocation{}, fmt.Errorf(
			"bind command %s: expected at least %d argument(s), got %d",
			spec.Name,
			spec.MinArgs,
			len(candidate.Args),
		)
	}
	if spec.MaxArgs >= 0 && len(candidate.Args) > spec.MaxArgs {
		return CommandInvocation{}, fmt.Errorf(
			"bind command %s: expected at most %d argument(s), got %d",
			spec.Name,
			spec.MaxArgs,
			len(candidate.Args),
		)
	}

	invocation := CommandInvocation{
		Name:            specName,
		Mention:         candidate.Mention,
		Args:            append([]string(nil), candidate.Args...),
		SourceEventID:   sourceEvent.ID,
		SourceEventKind: sourceEvent.Kind,
		RawInput:        candidate.RawInput,
	}
	if err := invocation.Validate(); err != nil {
		return CommandInvocation{}, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}

	return invocation, nil
}

func splitCommandHeader(token string) (name string, mention string) {
	if token == "" {
		return "", ""
	}
	separator := strings.Index(token, "@")
	if separator < 0 {
		return token, ""
	}

	return token[:separator], token[separator+1:]
}

func normalizeCommandName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
