package usher

import "context"

// Announcement describes one attributed join for user-facing announcement.
type Announcement struct {
	// Space is where the join happened.
	Space Space
	// Member is the member who joined.
	Member Actor
	// InviterID identifies who the join was attributed to.
	InviterID string
	// InviteCode is the invite code that brought the member in.
	InviteCode string
	// RejoinCount is the member's rejoin count after this join.
	RejoinCount int
}

// JoinAnnouncer publishes attributed-join announcements to the space.
//
// The announcer is optional: the tracker resolves ServiceJoinAnnouncer at
// registration and silently skips announcements when none is registered.
type JoinAnnouncer interface {
	// AnnounceJoin announces one attributed join. Failures must not affect
	// attribution state and are reported for logging only.
	AnnounceJoin(ctx context.Context, announcement Announcement) error
}
