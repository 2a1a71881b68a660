package invitetracker

import "sync"

// counterTable tracks the number of currently-present members attributed to
// each inviter, keyed by space. Values never go below zero.
//
// Administrative Set and Add bypass the membership ledger, so counters may
// legitimately diverge from the count of present attributed members.
type counterTable struct {
	mu     sync.RWMutex
	counts map[string]map[string]int
}

func newCounterTable() *counterTable {
	return &counterTable{
		counts: make(map[string]map[string]int),
	}
}

// Increment raises one inviter's counter by one and returns the new value.
func (t *counterTable) Increment(spaceID, inviterID string) int {
	return t.apply(spaceID, inviterID, func(current int) int {
		return current + 1
	})
}

// Decrement lowers one inviter's counter by one, floored at zero.
func (t *counterTable) Decrement(spaceID, inviterID string) int {
	return t.apply(spaceID, inviterID, func(current int) int {
		return current - 1
	})
}

// Get returns the current counter. Unknown inviters count zero.
func (t *counterTable) Get(spaceID, inviterID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.counts[spaceID][inviterID]
}

// Set overwrites the counter, clamping negative inputs to zero.
func (t *counterTable) Set(spaceID, inviterID string, value int) int {
	return t.apply(spaceID, inviterID, func(int) int {
		return value
	})
}

// Add shifts the counter by delta, clamping the result at zero.
func (t *counterTable) Add(spaceID, inviterID string, delta int) int {
	return t.apply(spaceID, inviterID, func(current int) int {
		return current + delta
	})
}

func (t *counterTable) apply(spaceID, inviterID string, mutate func(int) int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts, ok := t.counts[spaceID]
	if !ok {
		counts = make(map[string]int)
		t.counts[spaceID] = counts
	}

	next := mutate(counts[inviterID])
	if next < 0 {
		next = 0
	}
	counts[inviterID] = next

	return next
}
