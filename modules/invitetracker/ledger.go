package invitetracker

import (
	"sync"

	"usher/pkg/usher"
)

// joinOutcome classifies one RecordJoin transition.
type joinOutcome int

const (
	// joinOutcomeFirst is the member's first attributed join in the space.
	joinOutcomeFirst joinOutcome = iota
	// joinOutcomeRejoin is a left-to-present transition.
	joinOutcomeRejoin
	// joinOutcomeRepeat is a join while already marked present; no mutation.
	joinOutcomeRepeat
)

// membershipLedger stores per-member attribution history per space.
//
// Entries exist only for members attributed at least once. The inviter stored
// on first attribution is sticky: rejoins through a different invite keep it.
type membershipLedger struct {
	mu      sync.RWMutex
	members map[string]map[string]*usher.MemberHistory
}

func newMembershipLedger() *membershipLedger {
	return &membershipLedger{
		members: make(map[string]map[string]*usher.MemberHistory),
	}
}

// RecordJoin applies an attributed join and returns the resulting history.
// The rejoin counter moves only on a left-to-present transition.
func (l *membershipLedger) RecordJoin(spaceID, memberID, inviterID string) (usher.MemberHistory, joinOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()

	histories, ok := l.members[spaceID]
	if !ok {
		histories = make(map[string]*usher.MemberHistory)
		l.members[spaceID] = histories
	}

	history, ok := histories[memberID]
	if !ok {
		history = &usher.MemberHistory{
			MemberID:  memberID,
			InviterID: inviterID,
			Present:   true,
		}
		histories[memberID] = history

		return *history, joinOutcomeFirst
	}

	if history.Present {
		return *history, joinOutcomeRepeat
	}

	history.Present = true
	history.RejoinCount++

	return *history, joinOutcomeRejoin
}

// MarkLeft records a leave and returns the stored inviter for counter
// decrement. It reports false when the member has no present entry, in which
// case nothing changed.
func (l *membershipLedger) MarkLeft(spaceID, memberID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	history, ok := l.members[spaceID][memberID]
	if !ok || !history.Present {
		return "", false
	}
	history.Present = false

	return history.InviterID, true
}

// History returns the stored entry for one member. The boolean is false for
// members never successfully attributed.
func (l *membershipLedger) History(spaceID, memberID string) (usher.MemberHistory, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history, ok := l.members[spaceID][memberID]
	if !ok {
		return usher.MemberHistory{}, false
	}

	return *history, true
}
