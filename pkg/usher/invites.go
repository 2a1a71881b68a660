package usher

import "context"

// InviteRecord is one invite link snapshot entry as reported by the platform.
type InviteRecord struct {
	// Code is the invite token, unique within its space.
	Code string
	// Uses is the aggregate use counter reported by the platform.
	Uses int
	// InviterID identifies the member who owns the invite when known.
	InviterID string
}

// InviteLister fetches the current invite list for one space.
//
// Drivers register an implementation under ServiceInviteLister. List order is
// platform-defined and meaningful: attribution picks the first invite whose
// use count increased, so implementations must preserve fetch order.
type InviteLister interface {
	// ListInvites returns every invite currently active in the space.
	ListInvites(ctx context.Context, spaceID string) ([]InviteRecord, error)
}
