package invitetracker

import (
	"context"
	"fmt"

	"usher/pkg/usher"
)

// attributionResolver infers which invite a fresh join consumed by diffing
// the platform's current invite list against the cached snapshot.
type attributionResolver struct {
	lister    usher.InviteLister
	snapshots *snapshotStore
}

// Resolve fetches the space's invite list and declares the first invite in
// fetch order whose use count strictly exceeds the cached value (absent
// cache entries count as zero) as the consumed one. The snapshot is then
// refreshed with every fetched record regardless of outcome, so a code's
// increase is never re-declared on a later join.
//
// When several codes increased between two fetches the first one in fetch
// order wins. That tie-break is deterministic but order-dependent.
//
// A fetch error returns not-ok with the error; no increase returns not-ok
// with a nil error. Neither mutates membership or counters.
func (r *attributionResolver) Resolve(ctx context.Context, spaceID string) (usher.Attribution, bool, error) {
	invites, err := r.lister.ListInvites(ctx, spaceID)
	if err != nil {
		return usher.Attribution{}, false, fmt.Errorf("list invites for space %s: %w", spaceID, err)
	}

	var attribution usher.Attribution
	resolved := false
	for _, invite := range invites {
		if resolved || invite.Code == "" {
			continue
		}
		cached, _ := r.snapshots.Uses(spaceID, invite.Code)
		if invite.Uses > cached {
			attribution = usher.Attribution{Code: invite.Code, InviterID: invite.InviterID}
			resolved = true
		}
	}

	for _, invite := range invites {
		r.snapshots.Upsert(spaceID, invite)
	}

	return attribution, resolved, nil
}
