package telegram

import (
	"context"
	"fmt"
	"time"

	"usher/pkg/usher"
)

// Decoder converts Telegram update DTOs into neutral usher events.
type Decoder interface {
	// Decode maps one adapter update into a validated neutral event envelope.
	Decode(ctx context.Context, update Update) (*usher.Event, error)
}

// DefaultDecoder provides default Telegram-to-usher mappings.
type DefaultDecoder struct{}

// NewDefaultDecoder creates a default decoder.
func NewDefaultDecoder() DefaultDecoder {
	return DefaultDecoder{}
}

// Decode converts a Telegram update into a neutral event.
func (d DefaultDecoder) Decode(_ context.Context, update Update) (*usher.Event, error) {
	event := newBaseEvent(update)

	switch update.Type {
	case UpdateTypeMessage:
		event.Kind = usher.EventKindMessageCreated
		message, err := decodeMessage(update.Message)
		if err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		event.Message = message
	case UpdateTypeMemberJoin, UpdateTypeMemberLeave:
		event.Kind = mapMembershipKind(update.Type)
		member, err := decodeMember(update.Member)
		if err != nil {
			return nil, fmt.Errorf("decode member update: %w", err)
		}
		event.Member = member
	case UpdateTypeInviteCreated, UpdateTypeInviteDeleted:
		event.Kind = mapInviteKind(update.Type)
		invite, err := decodeInvite(update.Invite)
		if err != nil {
			return nil, fmt.Errorf("decode invite update: %w", err)
		}
		event.Invite = invite
	case UpdateTypeSpaceJoined:
		event.Kind = usher.EventKindSpaceJoined
	case UpdateTypeSpaceReady:
		event.Kind = usher.EventKindSpaceReady
	default:
		return nil, fmt.Errorf("decode update %s: unsupported type", update.Type)
	}

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("decode update %s: %w", update.Type, err)
	}

	return event, nil
}

// newBaseEvent builds the shared envelope fields used by all update mappings.
func newBaseEvent(update Update) *usher.Event {
	occurredAt := update.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return &usher.Event{
		ID:         update.ID,
		OccurredAt: occurredAt,
		Platform:   usher.PlatformTelegram,
		Space: usher.Space{
			ID:    update.Chat.ID,
			Type:  update.Chat.Type,
			Title: update.Chat.Title,
		},
		Actor: usher.Actor{
			ID:          update.Actor.ID,
			Username:    update.Actor.Username,
			DisplayName: update.Actor.DisplayName,
			IsBot:       update.Actor.IsBot,
		},
		Metadata: update.Metadata,
	}
}

// decodeMessage maps Telegram message payload into neutral message content.
func decodeMessage(payload *MessagePayload) (*usher.Message, error) {
	if payload == nil {
		return nil, fmt.Errorf("missing message payload")
	}

	return &usher.Message{
		ID:        payload.ID,
		ReplyToID: payload.ReplyToID,
		Text:      payload.Text,
	}, nil
}

// decodeMember maps join/leave transitions into neutral member changes.
func decodeMember(payload *MemberPayload) (*usher.MemberChange, error) {
	if payload == nil {
		return nil, fmt.Errorf("missing member payload")
	}

	var inviter *usher.Actor
	if payload.Inviter != nil {
		mapped := mapActor(*payload.Inviter)
		inviter = &mapped
	}

	return &usher.MemberChange{
		Member:   mapActor(payload.Member),
		Inviter:  inviter,
		JoinedAt: payload.JoinedAt,
	}, nil
}

// decodeInvite maps invite link metadata into the neutral invite payload.
func decodeInvite(payload *InvitePayload) (*usher.Invite, error) {
	if payload == nil {
		return nil, fmt.Errorf("missing invite payload")
	}

	return &usher.Invite{
		Code:      payload.Code,
		Uses:      payload.Uses,
		InviterID: payload.InviterID,
	}, nil
}

// mapMembershipKind derives neutral kind from Telegram membership update type.
func mapMembershipKind(updateType UpdateType) usher.EventKind {
	if updateType == UpdateTypeMemberLeave {
		return usher.EventKindMemberLeft
	}

	return usher.EventKindMemberJoined
}

// mapInviteKind derives neutral kind from Telegram invite update type.
func mapInviteKind(updateType UpdateType) usher.EventKind {
	if updateType == UpdateTypeInviteDeleted {
		return usher.EventKindInviteDeleted
	}

	return usher.EventKindInviteCreated
}

// mapActor converts adapter actor references to neutral actor values.
func mapActor(actor ActorRef) usher.Actor {
	return usher.Actor{
		ID:          actor.ID,
		Username:    actor.Username,
		DisplayName: actor.DisplayName,
		IsBot:       actor.IsBot,
	}
}
