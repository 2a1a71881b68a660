package usher

import (
	"fmt"
	"time"
)

// EventKind identifies a neutral domain event type.
type EventKind string

const (
	// EventKindSpaceReady is emitted when a tracked space becomes known at startup.
	EventKindSpaceReady EventKind = "space.ready"
	// EventKindSpaceJoined is emitted when the bot account joins a new space.
	EventKindSpaceJoined EventKind = "space.joined"
	// EventKindInviteCreated is emitted when an invite link is created in a space.
	EventKindInviteCreated EventKind = "invite.created"
	// EventKindInviteDeleted is emitted when an invite link is revoked or deleted.
	EventKindInviteDeleted EventKind = "invite.deleted"
	// EventKindMemberJoined is emitted when a member joins a space.
	EventKindMemberJoined EventKind = "member.joined"
	// EventKindMemberLeft is emitted when a member leaves a space.
	EventKindMemberLeft EventKind = "member.left"
	// EventKindMessageCreated is emitted when a new message is posted.
	EventKindMessageCreated EventKind = "message.created"
	// EventKindCommandReceived is emitted when a registered command is parsed
	// from a message.created event.
	EventKindCommandReceived EventKind = "command.received"
)

// Platform identifies an external chat platform source.
type Platform string

const (
	// PlatformTelegram is Telegram.
	PlatformTelegram Platform = "telegram"
)

// SpaceType identifies space scope.
type SpaceType string

const (
	// SpaceTypePrivate is a direct/private conversation.
	SpaceTypePrivate SpaceType = "private"
	// SpaceTypeGroup is a group space.
	SpaceTypeGroup SpaceType = "group"
	// SpaceTypeChannel is a channel-style space.
	SpaceTypeChannel SpaceType = "channel"
)

// Event is the neutral envelope that all drivers publish and modules consume.
//
// Invite, Member, Message, and Command are optional payload branches selected
// by Kind to avoid platform-specific leakage.
type Event struct {
	// ID is a stable identifier for this event instance.
	ID string
	// Kind selects which payload branch is expected.
	Kind EventKind
	// OccurredAt is the source-platform timestamp for the event.
	OccurredAt time.Time
	// Platform identifies the upstream platform that produced the event.
	Platform Platform
	// Space identifies the community space where the event happened.
	Space Space
	// Actor identifies who initiated the event when available.
	Actor Actor
	// Invite carries invite metadata for invite.created and invite.deleted.
	Invite *Invite
	// Member carries join/leave transitions for member.joined and member.left.
	Member *MemberChange
	// Message carries message content for message.created events.
	Message *Message
	// Command carries the bound invocation for command.received events.
	Command *CommandInvocation
	// Metadata stores optional driver-provided key/value context.
	Metadata map[string]string
}

// Space identifies the neutral community space where an event occurred.
type Space struct {
	// ID is the stable space identifier on the source platform.
	ID string
	// Type describes the space scope.
	Type SpaceType
	// Title is a best-effort display label for the space.
	Title string
}

// Actor identifies the user/account that initiated an event.
type Actor struct {
	// ID is the stable actor identifier on the source platform.
	ID string
	// Username is the platform handle when available.
	Username string
	// DisplayName is the human-readable actor name.
	DisplayName string
	// IsBot reports whether the actor is an automated account.
	IsBot bool
}

// Invite describes one invite link as reported by the platform.
type Invite struct {
	// Code is the invite token, unique within its space.
	Code string
	// Uses is the aggregate use counter reported by the platform.
	Uses int
	// InviterID identifies the member who owns the invite when known.
	InviterID string
}

// MemberChange captures join/leave transitions.
type MemberChange struct {
	// Member identifies the member affected by the transition.
	Member Actor
	// Inviter identifies who added the member when the platform reports it
	// directly (manual adds). Link joins leave this nil; attribution is
	// inferred from invite-use snapshots instead.
	Inviter *Actor
	// JoinedAt is the join timestamp when provided by the source platform.
	JoinedAt time.Time
}

// Message holds neutral message content.
type Message struct {
	// ID is the message identifier on the source platform.
	ID string
	// ReplyToID is the parent message identifier when this is a reply.
	ReplyToID string
	// Text is the normalized message text body.
	Text string
}

// Validate checks event envelope and payload coherence.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	if e.Space.ID == "" {
		return fmt.Errorf("%w: missing space id", ErrInvalidEvent)
	}

	return validatePayloadByKind(e)
}

// validatePayloadByKind enforces payload branch requirements for each event kind.
func validatePayloadByKind(e *Event) error {
	switch e.Kind {
	case EventKindSpaceReady, EventKindSpaceJoined:
	case EventKindInviteCreated, EventKindInviteDeleted:
		if e.Invite == nil {
			return fmt.Errorf("%w: %s requires invite payload", ErrInvalidEvent, e.Kind)
		}
		if e.Invite.Code == "" {
			return fmt.Errorf("%w: %s requires invite code", ErrInvalidEvent, e.Kind)
		}
	case EventKindMemberJoined, EventKindMemberLeft:
		if e.Member == nil {
			return fmt.Errorf("%w: %s requires member payload", ErrInvalidEvent, e.Kind)
		}
		if e.Member.Member.ID == "" {
			return fmt.Errorf("%w: %s requires member id", ErrInvalidEvent, e.Kind)
		}
	case EventKindMessageCreated:
		if e.Message == nil {
			return fmt.Errorf("%w: message.created requires message payload", ErrInvalidEvent)
		}
	case EventKindCommandReceived:
		if e.Command == nil {
			return fmt.Errorf("%w: command.received requires command payload", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, e.Kind)
	}

	return nil
}
