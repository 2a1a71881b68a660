package invitetracker

import (
	"sync"

	"usher/pkg/usher"
)

// snapshotStore caches the last observed use count and owner of every invite
// code, keyed by space. It is the diff baseline the resolver compares fresh
// fetches against.
type snapshotStore struct {
	mu     sync.RWMutex
	spaces map[string]map[string]usher.InviteRecord
}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{
		spaces: make(map[string]map[string]usher.InviteRecord),
	}
}

// Snapshot returns a copy of the cached records for one space.
func (s *snapshotStore) Snapshot(spaceID string) map[string]usher.InviteRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]usher.InviteRecord, len(s.spaces[spaceID]))
	for code, record := range s.spaces[spaceID] {
		snapshot[code] = record
	}

	return snapshot
}

// ReplaceAll swaps the whole cached snapshot for one space, used at warm-up.
func (s *snapshotStore) ReplaceAll(spaceID string, invites []usher.InviteRecord) {
	records := make(map[string]usher.InviteRecord, len(invites))
	for _, invite := range invites {
		if invite.Code == "" {
			continue
		}
		records[invite.Code] = clampRecord(invite)
	}

	s.mu.Lock()
	s.spaces[spaceID] = records
	s.mu.Unlock()
}

// Upsert inserts or updates a single cached record.
func (s *snapshotStore) Upsert(spaceID string, invite usher.InviteRecord) {
	if invite.Code == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.spaces[spaceID]
	if !ok {
		records = make(map[string]usher.InviteRecord)
		s.spaces[spaceID] = records
	}
	records[invite.Code] = clampRecord(invite)
}

// Remove drops one invite code from the space snapshot.
func (s *snapshotStore) Remove(spaceID, code string) {
	s.mu.Lock()
	delete(s.spaces[spaceID], code)
	s.mu.Unlock()
}

// Uses returns the cached use count for one code. Absent codes report zero.
func (s *snapshotStore) Uses(spaceID, code string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.spaces[spaceID][code]
	if !ok {
		return 0, false
	}

	return record.Uses, true
}

// clampRecord floors negative platform-reported use counts at zero.
func clampRecord(invite usher.InviteRecord) usher.InviteRecord {
	if invite.Uses < 0 {
		invite.Uses = 0
	}

	return invite
}
