// Package invitetracker attributes member joins to invite codes by diffing
// invite use counts, and maintains per-inviter membership counters.
package invitetracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"usher/pkg/usher"
)

// Option mutates invite tracker configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// Module owns the snapshot cache, membership ledger, and inviter counters
// for every tracked space, and serves as the InviteLedger service.
type Module struct {
	logger    *slog.Logger
	resolver  *attributionResolver
	snapshots *snapshotStore
	ledger    *membershipLedger
	counters  *counterTable
	announcer usher.JoinAnnouncer

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates an invite tracker with empty in-memory state.
func New(options ...Option) *Module {
	snapshots := newSnapshotStore()
	module := &Module{
		logger:    slog.Default(),
		snapshots: snapshots,
		ledger:    newMembershipLedger(),
		counters:  newCounterTable(),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "invitetracker"
}

// Spec declares the single serialized attribution handler.
//
// The subscription runs one worker with blocking backpressure so that events
// are consumed in publish order; per-space locks then let distinct spaces
// proceed independently while one space's diff-then-update stays atomic.
func (m *Module) Spec() usher.ModuleSpec {
	return usher.ModuleSpec{
		Handlers: []usher.ModuleHandler{
			{
				Capability: usher.Capability{
					Name:        "invite-attribution",
					Description: "tracks invite use counts and attributes member joins to inviters",
					Interest: usher.InterestSet{
						Kinds: []usher.EventKind{
							usher.EventKindSpaceReady,
							usher.EventKindSpaceJoined,
							usher.EventKindInviteCreated,
							usher.EventKindInviteDeleted,
							usher.EventKindMemberJoined,
							usher.EventKindMemberLeft,
						},
					},
					RequiredServices: []string{usher.ServiceInviteLister},
				},
				Subscription: usher.SubscriptionSpec{
					Name:         "invite-attribution",
					Buffer:       64,
					Workers:      1,
					Backpressure: usher.BackpressureBlock,
				},
				Handler: m.handleEvent,
			},
		},
	}
}

// OnRegister resolves dependencies and registers this module as InviteLedger.
func (m *Module) OnRegister(_ context.Context, runtime usher.ModuleRuntime) error {
	logger, err := usher.ResolveAs[*slog.Logger](runtime.Services(), usher.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, usher.ErrServiceNotFound):
	default:
		return fmt.Errorf("invitetracker resolve logger: %w", err)
	}

	lister, err := usher.ResolveAs[usher.InviteLister](runtime.Services(), usher.ServiceInviteLister)
	if err != nil {
		return fmt.Errorf("invitetracker resolve invite lister: %w", err)
	}
	m.resolver = &attributionResolver{lister: lister, snapshots: m.snapshots}

	announcer, err := usher.ResolveAs[usher.JoinAnnouncer](runtime.Services(), usher.ServiceJoinAnnouncer)
	switch {
	case err == nil:
		m.announcer = announcer
	case errors.Is(err, usher.ErrServiceNotFound):
	default:
		return fmt.Errorf("invitetracker resolve join announcer: %w", err)
	}

	if err := runtime.Services().Register(usher.ServiceInviteLedger, usher.InviteLedger(m)); err != nil {
		return fmt.Errorf("invitetracker register service %s: %w", usher.ServiceInviteLedger, err)
	}

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(ctx context.Context) error {
	m.logger.InfoContext(ctx,
		"invite tracker started",
		"module", m.Name(),
		"announcer", m.announcer != nil,
	)

	return nil
}

// OnShutdown ends the module lifecycle. State is in-memory only and is
// deliberately lost on restart.
func (m *Module) OnShutdown(ctx context.Context) error {
	m.logger.InfoContext(ctx, "invite tracker shutdown", "module", m.Name())

	return nil
}

func (m *Module) handleEvent(ctx context.Context, event *usher.Event) error {
	lock := m.spaceLock(event.Space.ID)
	lock.Lock()
	defer lock.Unlock()

	switch event.Kind {
	case usher.EventKindSpaceReady, usher.EventKindSpaceJoined:
		m.warmUp(ctx, event.Space.ID)
	case usher.EventKindInviteCreated:
		m.snapshots.Upsert(event.Space.ID, usher.InviteRecord{
			Code:      event.Invite.Code,
			Uses:      event.Invite.Uses,
			InviterID: event.Invite.InviterID,
		})
	case usher.EventKindInviteDeleted:
		m.snapshots.Remove(event.Space.ID, event.Invite.Code)
	case usher.EventKindMemberJoined:
		m.handleJoin(ctx, event)
	case usher.EventKindMemberLeft:
		m.handleLeave(ctx, event)
	}

	return nil
}

// warmUp populates the snapshot baseline so the next join diffs against
// current counts. A join racing ahead of warm-up sees an empty cache and
// resolves unknown; that window is accepted rather than patched.
func (m *Module) warmUp(ctx context.Context, spaceID string) {
	invites, err := m.resolver.lister.ListInvites(ctx, spaceID)
	if err != nil {
		m.logger.WarnContext(ctx,
			"invite snapshot warm-up failed",
			"module", m.Name(),
			"space_id", spaceID,
			"error", err,
		)

		return
	}

	m.snapshots.ReplaceAll(spaceID, invites)
	m.logger.InfoContext(ctx,
		"invite snapshot populated",
		"module", m.Name(),
		"space_id", spaceID,
		"invites", len(invites),
	)
}

func (m *Module) handleJoin(ctx context.Context, event *usher.Event) {
	spaceID := event.Space.ID
	member := event.Member.Member

	attribution, ok, err := m.resolver.Resolve(ctx, spaceID)
	if err != nil {
		m.logger.WarnContext(ctx,
			"invite attribution fetch failed",
			"module", m.Name(),
			"space_id", spaceID,
			"member_id", member.ID,
			"error", err,
		)
		ok = false
	}

	// Manual adds report the inviter on the event itself; fall back to it
	// when no invite code shows an increase.
	if !ok && event.Member.Inviter != nil && event.Member.Inviter.ID != "" {
		attribution = usher.Attribution{InviterID: event.Member.Inviter.ID}
		ok = true
	}

	if !ok || attribution.InviterID == "" {
		m.logger.DebugContext(ctx,
			"member join unattributed",
			"module", m.Name(),
			"space_id", spaceID,
			"member_id", member.ID,
		)

		return
	}

	history, outcome := m.ledger.RecordJoin(spaceID, member.ID, attribution.InviterID)
	if outcome == joinOutcomeRepeat {
		return
	}

	// Increment credits the stored inviter, which on a rejoin may differ
	// from this join's resolved inviter. First inviter stays sticky.
	count := m.counters.Increment(spaceID, history.InviterID)
	m.logger.InfoContext(ctx,
		"member join attributed",
		"module", m.Name(),
		"space_id", spaceID,
		"member_id", member.ID,
		"inviter_id", history.InviterID,
		"invite_code", attribution.Code,
		"rejoin_count", history.RejoinCount,
		"inviter_total", count,
	)

	if m.announcer == nil {
		return
	}
	announcement := usher.Announcement{
		Space:       event.Space,
		Member:      member,
		InviterID:   history.InviterID,
		InviteCode:  attribution.Code,
		RejoinCount: history.RejoinCount,
	}
	if err := m.announcer.AnnounceJoin(ctx, announcement); err != nil {
		m.logger.WarnContext(ctx,
			"join announcement failed",
			"module", m.Name(),
			"space_id", spaceID,
			"member_id", member.ID,
			"error", err,
		)
	}
}

func (m *Module) handleLeave(ctx context.Context, event *usher.Event) {
	spaceID := event.Space.ID
	memberID := event.Member.Member.ID

	inviterID, ok := m.ledger.MarkLeft(spaceID, memberID)
	if !ok {
		return
	}

	count := m.counters.Decrement(spaceID, inviterID)
	m.logger.InfoContext(ctx,
		"member left",
		"module", m.Name(),
		"space_id", spaceID,
		"member_id", memberID,
		"inviter_id", inviterID,
		"inviter_total", count,
	)
}

// InviteCount returns the current counter for one inviter.
func (m *Module) InviteCount(_ context.Context, spaceID, inviterID string) (int, error) {
	return m.counters.Get(spaceID, inviterID), nil
}

// InviterInfo returns the stored history for one member.
func (m *Module) InviterInfo(_ context.Context, spaceID, memberID string) (usher.MemberHistory, bool, error) {
	history, ok := m.ledger.History(spaceID, memberID)

	return history, ok, nil
}

// ResetCount zeroes one inviter's counter without touching member histories.
func (m *Module) ResetCount(_ context.Context, spaceID, inviterID string) error {
	m.counters.Set(spaceID, inviterID, 0)

	return nil
}

// AddInvites raises the counter by a positive amount.
func (m *Module) AddInvites(_ context.Context, spaceID, inviterID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: add %d", usher.ErrInvalidAmount, amount)
	}

	return m.counters.Add(spaceID, inviterID, amount), nil
}

// RemoveInvites lowers the counter by a positive amount, clamped at zero.
func (m *Module) RemoveInvites(_ context.Context, spaceID, inviterID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: remove %d", usher.ErrInvalidAmount, amount)
	}

	return m.counters.Add(spaceID, inviterID, -amount), nil
}

func (m *Module) spaceLock(spaceID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	lock, ok := m.locks[spaceID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[spaceID] = lock
	}

	return lock
}

var (
	_ usher.Module       = (*Module)(nil)
	_ usher.InviteLedger = (*Module)(nil)
)
