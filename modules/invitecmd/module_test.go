package invitecmd

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"usher/pkg/usher"
)

func TestModuleHandleCommand(t *testing.T) {
	tests := []struct {
		name      string
		actorID   string
		command   string
		args      []string
		wantReply string
		wantCalls map[string]int
	}{
		{
			name:      "invites without args reports self",
			actorID:   "100",
			command:   invitesCommandName,
			wantReply: "you have invited 4 member(s).",
		},
		{
			name:      "invites with target user",
			actorID:   "100",
			command:   invitesCommandName,
			args:      []string{"200"},
			wantReply: "user 200 has invited 4 member(s).",
		},
		{
			name:      "inviter for attributed member",
			actorID:   "100",
			command:   inviterCommandName,
			args:      []string{"member-1"},
			wantReply: "member member-1 was invited by X (present, rejoins: 1).",
		},
		{
			name:      "inviter for unknown member",
			actorID:   "100",
			command:   inviterCommandName,
			args:      []string{"ghost"},
			wantReply: "no invite attribution recorded for member ghost.",
		},
		{
			name:      "admin reset succeeds",
			actorID:   "admin-1",
			command:   resetInvitesCommandName,
			args:      []string{"200"},
			wantReply: "invite count for user 200 reset to 0.",
			wantCalls: map[string]int{"reset": 1},
		},
		{
			name:      "admin add reports new count",
			actorID:   "admin-1",
			command:   addInvitesCommandName,
			args:      []string{"200", "5"},
			wantReply: "invite count for user 200 is now 9.",
			wantCalls: map[string]int{"add": 1},
		},
		{
			name:      "admin remove clamps and reports",
			actorID:   "admin-1",
			command:   removeInvitesCommandName,
			args:      []string{"200", "10"},
			wantReply: "invite count for user 200 is now 0.",
			wantCalls: map[string]int{"remove": 1},
		},
		{
			name:      "non-admin reset refused",
			actorID:   "100",
			command:   resetInvitesCommandName,
			args:      []string{"200"},
			wantReply: notAllowedReply,
			wantCalls: map[string]int{"reset": 0},
		},
		{
			name:      "non-admin add refused",
			actorID:   "100",
			command:   addInvitesCommandName,
			args:      []string{"200", "5"},
			wantReply: notAllowedReply,
			wantCalls: map[string]int{"add": 0},
		},
		{
			name:      "add with non-numeric amount rejected",
			actorID:   "admin-1",
			command:   addInvitesCommandName,
			args:      []string{"200", "many"},
			wantReply: "amount must be a positive integer.",
			wantCalls: map[string]int{"add": 0},
		},
		{
			name:      "add with zero amount rejected",
			actorID:   "admin-1",
			command:   addInvitesCommandName,
			args:      []string{"200", "0"},
			wantReply: "amount must be a positive integer.",
			wantCalls: map[string]int{"add": 0},
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			ledger := &stubLedger{count: 4}
			dispatcher := &captureDispatcher{}
			module := New(WithAdmins([]string{"admin-1"}))
			module.ledger = ledger
			module.dispatcher = dispatcher

			event := newCommandEvent(testCase.actorID, testCase.command, testCase.args)
			if err := module.handleCommand(context.Background(), event); err != nil {
				t.Fatalf("handle command failed: %v", err)
			}

			if dispatcher.calls.Load() != 1 {
				t.Fatalf("reply calls = %d, want 1", dispatcher.calls.Load())
			}
			if dispatcher.lastRequest.Text != testCase.wantReply {
				t.Fatalf("reply = %q, want %q", dispatcher.lastRequest.Text, testCase.wantReply)
			}
			if dispatcher.lastRequest.ReplyToMessageID != "msg-1" {
				t.Fatalf("reply_to = %q, want msg-1", dispatcher.lastRequest.ReplyToMessageID)
			}

			for operation, want := range testCase.wantCalls {
				if got := ledger.operationCalls(operation); got != want {
					t.Fatalf("%s calls = %d, want %d", operation, got, want)
				}
			}
		})
	}
}

func TestModuleSpecDeclaresAllCommands(t *testing.T) {
	t.Parallel()

	spec := New().Spec()
	if len(spec.Handlers) != 1 {
		t.Fatalf("handler count = %d, want 1", len(spec.Handlers))
	}
	if len(spec.Commands) != 5 {
		t.Fatalf("command count = %d, want 5", len(spec.Commands))
	}

	adminOnly := map[string]bool{}
	for _, command := range spec.Commands {
		adminOnly[command.Name] = command.AdminOnly
	}
	for _, name := range []string{resetInvitesCommandName, addInvitesCommandName, removeInvitesCommandName} {
		if !adminOnly[name] {
			t.Fatalf("command %s should be admin only", name)
		}
	}
	for _, name := range []string{invitesCommandName, inviterCommandName} {
		if adminOnly[name] {
			t.Fatalf("command %s should not be admin only", name)
		}
	}

	interest := spec.Handlers[0].Capability.Interest
	if !interest.RequireCommand {
		t.Fatal("expected RequireCommand to be true")
	}
	if len(interest.CommandNames) != 5 {
		t.Fatalf("interest command names = %v, want all 5", interest.CommandNames)
	}
}

func TestModuleOnRegisterRequiresLedgerAndDispatcher(t *testing.T) {
	t.Parallel()

	module := New()
	registry := serviceRegistryStub{values: map[string]any{
		usher.ServiceOutboundDispatcher: usher.OutboundDispatcher(&captureDispatcher{}),
	}}

	err := module.OnRegister(context.Background(), moduleRuntimeStub{registry: registry})
	if err == nil || !strings.Contains(err.Error(), "invite ledger") {
		t.Fatalf("error = %v, want missing invite ledger", err)
	}
}

func newCommandEvent(actorID, name string, args []string) *usher.Event {
	return &usher.Event{
		ID:         "evt-1#command",
		Kind:       usher.EventKindCommandReceived,
		OccurredAt: time.Unix(1, 0).UTC(),
		Platform:   usher.PlatformTelegram,
		Space:      usher.Space{ID: "space-1", Type: usher.SpaceTypeGroup},
		Actor:      usher.Actor{ID: actorID},
		Message:    &usher.Message{ID: "msg-1", Text: usher.CommandPrefix + name},
		Command: &usher.CommandInvocation{
			Name:            name,
			Args:            args,
			SourceEventID:   "evt-1",
			SourceEventKind: usher.EventKindMessageCreated,
		},
	}
}

// stubLedger reports a fixed counter and records mutation calls.
type stubLedger struct {
	count       int
	resetCalls  atomic.Int64
	addCalls    atomic.Int64
	removeCalls atomic.Int64
}

func (l *stubLedger) InviteCount(context.Context, string, string) (int, error) {
	return l.count, nil
}

func (l *stubLedger) InviterInfo(_ context.Context, _ string, memberID string) (usher.MemberHistory, bool, error) {
	if memberID == "ghost" {
		return usher.MemberHistory{}, false, nil
	}

	return usher.MemberHistory{
		MemberID:    memberID,
		InviterID:   "X",
		Present:     true,
		RejoinCount: 1,
	}, true, nil
}

func (l *stubLedger) ResetCount(context.Context, string, string) error {
	l.resetCalls.Add(1)
	return nil
}

func (l *stubLedger) AddInvites(_ context.Context, _, _ string, amount int) (int, error) {
	if amount <= 0 {
		return 0, usher.ErrInvalidAmount
	}
	l.addCalls.Add(1)

	return l.count + amount, nil
}

func (l *stubLedger) RemoveInvites(_ context.Context, _, _ string, amount int) (int, error) {
	if amount <= 0 {
		return 0, usher.ErrInvalidAmount
	}
	l.removeCalls.Add(1)
	next := l.count - amount
	if next < 0 {
		next = 0
	}

	return next, nil
}

func (l *stubLedger) operationCalls(operation string) int {
	switch operation {
	case "reset":
		return int(l.resetCalls.Load())
	case "add":
		return int(l.addCalls.Load())
	case "remove":
		return int(l.removeCalls.Load())
	default:
		return 0
	}
}

type captureDispatcher struct {
	calls       atomic.Int64
	sendErr     error
	lastRequest usher.SendMessageRequest
}

func (d *captureDispatcher) SendMessage(
	_ context.Context,
	request usher.SendMessageRequest,
) (*usher.OutboundMessage, error) {
	d.calls.Add(1)
	d.lastRequest = request
	if d.sendErr != nil {
		return nil, d.sendErr
	}

	return &usher.OutboundMessage{ID: "sent-1", Target: request.Target}, nil
}

type moduleRuntimeStub struct {
	registry usher.ServiceRegistry
}

func (s moduleRuntimeStub) Services() usher.ServiceRegistry {
	return s.registry
}

func (moduleRuntimeStub) Subscribe(
	context.Context,
	usher.SubscriptionSpec,
	usher.EventHandler,
) (usher.Subscription, error) {
	return nil, nil
}

type serviceRegistryStub struct {
	values map[string]any
}

func (s serviceRegistryStub) Register(string, any) error {
	return nil
}

func (s serviceRegistryStub) Resolve(name string) (any, error) {
	value, ok := s.values[name]
	if !ok {
		return nil, usher.ErrServiceNotFound
	}

	return value, nil
}
