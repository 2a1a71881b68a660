package telegram

import (
	"time"

	"usher/pkg/usher"
)

// UpdateType identifies the Telegram update semantic category.
type UpdateType string

const (
	// UpdateTypeMessage identifies new message updates.
	UpdateTypeMessage UpdateType = "message"
	// UpdateTypeMemberJoin identifies member join updates.
	UpdateTypeMemberJoin UpdateType = "member_join"
	// UpdateTypeMemberLeave identifies member leave updates.
	UpdateTypeMemberLeave UpdateType = "member_leave"
	// UpdateTypeInviteCreated identifies invite link creation updates.
	UpdateTypeInviteCreated UpdateType = "invite_created"
	// UpdateTypeInviteDeleted identifies invite link revocation updates.
	UpdateTypeInviteDeleted UpdateType = "invite_deleted"
	// UpdateTypeSpaceJoined identifies the bot account being added to a space.
	UpdateTypeSpaceJoined UpdateType = "space_joined"
	// UpdateTypeSpaceReady identifies a tracked space announced at startup.
	UpdateTypeSpaceReady UpdateType = "space_ready"
)

// Update is the Telegram adapter's internal DTO before neutral decoding.
type Update struct {
	ID         string
	Type       UpdateType
	OccurredAt time.Time
	Chat       ChatRef
	Actor      ActorRef
	Message    *MessagePayload
	Member     *MemberPayload
	Invite     *InvitePayload
	Metadata   map[string]string
}

// ChatRef identifies Telegram chat context.
type ChatRef struct {
	ID    string
	Title string
	Type  usher.SpaceType
}

// ActorRef identifies Telegram actor context.
type ActorRef struct {
	ID          string
	Username    string
	DisplayName string
	IsBot       bool
}

// MessagePayload represents a Telegram message projection.
type MessagePayload struct {
	ID        string
	ReplyToID string
	Text      string
}

// MemberPayload captures join/leave transitions.
//
// Inviter is populated only for manual adds where Telegram names the adding
// account directly. Link joins keep it nil so attribution stays with the
// invite-use snapshot comparison.
type MemberPayload struct {
	Member   ActorRef
	Inviter  *ActorRef
	Reason   string
	JoinedAt time.Time
}

// InvitePayload captures invite link metadata.
type InvitePayload struct {
	Code      string
	Uses      int
	InviterID string
}
