package usher

import (
	"errors"
	"testing"
	"time"
)

func validMemberJoinedEvent() *Event {
	return &Event{
		ID:         "evt-1",
		Kind:       EventKindMemberJoined,
		OccurredAt: time.Unix(100, 0).UTC(),
		Platform:   PlatformTelegram,
		Space:      Space{ID: "space-1", Type: SpaceTypeGroup, Title: "Test Group"},
		Member: &MemberChange{
			Member: Actor{ID: "u1", Username: "alice"},
		},
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	t.Run("accepts valid member joined", func(t *testing.T) {
		t.Parallel()

		if err := validMemberJoinedEvent().Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects nil event", func(t *testing.T) {
		t.Parallel()

		var event *Event
		if err := event.Validate(); !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("error = %v, want ErrInvalidEvent", err)
		}
	})

	t.Run("rejects envelope field gaps", func(t *testing.T) {
		t.Parallel()

		mutations := []func(*Event){
			func(e *Event) { e.ID = "" },
			func(e *Event) { e.Kind = "" },
			func(e *Event) { e.OccurredAt = time.Time{} },
			func(e *Event) { e.Space.ID = "" },
		}
		for _, mutate := range mutations {
			event := validMemberJoinedEvent()
			mutate(event)
			if err := event.Validate(); !errors.Is(err, ErrInvalidEvent) {
				t.Fatalf("error = %v, want ErrInvalidEvent", err)
			}
		}
	})

	t.Run("rejects unsupported kind", func(t *testing.T) {
		t.Parallel()

		event := validMemberJoinedEvent()
		event.Kind = EventKind("member.renamed")
		if err := event.Validate(); !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("error = %v, want ErrInvalidEvent", err)
		}
	})
}

func TestEventValidatePayloadByKind(t *testing.T) {
	t.Parallel()

	base := func(kind EventKind) *Event {
		return &Event{
			ID:         "evt-2",
			Kind:       kind,
			OccurredAt: time.Unix(200, 0).UTC(),
			Platform:   PlatformTelegram,
			Space:      Space{ID: "space-1", Type: SpaceTypeGroup},
		}
	}

	tests := []struct {
		name    string
		event   *Event
		wantErr bool
	}{
		{
			name:  "space ready needs no payload",
			event: base(EventKindSpaceReady),
		},
		{
			name:  "space joined needs no payload",
			event: base(EventKindSpaceJoined),
		},
		{
			name:    "invite created requires invite payload",
			event:   base(EventKindInviteCreated),
			wantErr: true,
		},
		{
			name: "invite deleted requires code",
			event: func() *Event {
				event := base(EventKindInviteDeleted)
				event.Invite = &Invite{Uses: 3}
				return event
			}(),
			wantErr: true,
		},
		{
			name: "invite created with code",
			event: func() *Event {
				event := base(EventKindInviteCreated)
				event.Invite = &Invite{Code: "abc", InviterID: "u9"}
				return event
			}(),
		},
		{
			name:    "member left requires member payload",
			event:   base(EventKindMemberLeft),
			wantErr: true,
		},
		{
			name: "member joined requires member id",
			event: func() *Event {
				event := base(EventKindMemberJoined)
				event.Member = &MemberChange{}
				return event
			}(),
			wantErr: true,
		},
		{
			name:    "message created requires message payload",
			event:   base(EventKindMessageCreated),
			wantErr: true,
		},
		{
			name:    "command received requires command payload",
			event:   base(EventKindCommandReceived),
			wantErr: true,
		},
		{
			name: "command received with command",
			event: func() *Event {
				event := base(EventKindCommandReceived)
				event.Command = &CommandInvocation{
					Name:            "ping",
					SourceEventID:   "evt-2",
					SourceEventKind: EventKindMessageCreated,
				}
				return event
			}(),
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.event.Validate()
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidEvent) {
					t.Fatalf("error = %v, want ErrInvalidEvent", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
