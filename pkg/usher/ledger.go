package usher

import "context"

// Attribution names the invite that brought a member into a space.
type Attribution struct {
	// Code is the invite code whose use count increased.
	Code string
	// InviterID identifies the invite owner when the platform reports one.
	InviterID string
}

// MemberHistory records one member's join/leave history within a space.
//
// InviterID is set once at first attribution and never changes afterwards,
// even when the member rejoins through a different invite.
type MemberHistory struct {
	// MemberID identifies the member within the space.
	MemberID string
	// InviterID identifies who first invited the member.
	InviterID string
	// Present reports whether the member is currently in the space.
	Present bool
	// RejoinCount counts left-to-present transitions after the first join.
	RejoinCount int
}

// InviteLedger is the query and administration facade over invite attribution
// state, registered under ServiceInviteLedger by the tracker module.
//
// Administrative mutations adjust counters directly and never touch member
// histories, so counters and histories may legitimately diverge.
type InviteLedger interface {
	// InviteCount returns the current invite counter for one inviter.
	// Unknown inviters count zero.
	InviteCount(ctx context.Context, spaceID, inviterID string) (int, error)
	// InviterInfo returns the stored history for one member. The boolean is
	// false when the member was never successfully attributed.
	InviterInfo(ctx context.Context, spaceID, memberID string) (MemberHistory, bool, error)
	// ResetCount sets one inviter's counter to zero.
	ResetCount(ctx context.Context, spaceID, inviterID string) error
	// AddInvites raises one inviter's counter by amount and returns the new
	// value. Amount must be positive.
	AddInvites(ctx context.Context, spaceID, inviterID string, amount int) (int, error)
	// RemoveInvites lowers one inviter's counter by amount, clamped at zero,
	// and returns the new value. Amount must be positive.
	RemoveInvites(ctx context.Context, spaceID, inviterID string, amount int) (int, error)
}
