package greeter

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"usher/pkg/llm"
	"usher/pkg/usher"
)

func TestAnnounceJoinFallbackText(t *testing.T) {
	tests := []struct {
		name         string
		announcement usher.Announcement
		wantText     string
	}{
		{
			name: "first join uses display name",
			announcement: usher.Announcement{
				Space:     usher.Space{ID: "space-1", Type: usher.SpaceTypeGroup, Title: "Gophers"},
				Member:    usher.Actor{ID: "42", DisplayName: "Alice"},
				InviterID: "X",
			},
			wantText: "Alice joined, invited by X.",
		},
		{
			name: "rejoin mentions rejoin count",
			announcement: usher.Announcement{
				Space:       usher.Space{ID: "space-1", Type: usher.SpaceTypeGroup},
				Member:      usher.Actor{ID: "42", Username: "alice"},
				InviterID:   "X",
				RejoinCount: 2,
			},
			wantText: "@alice rejoined (rejoin #2), invited by X.",
		},
		{
			name: "falls back to member id",
			announcement: usher.Announcement{
				Space:     usher.Space{ID: "space-1", Type: usher.SpaceTypeGroup},
				Member:    usher.Actor{ID: "42"},
				InviterID: "X",
			},
			wantText: "42 joined, invited by X.",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			dispatcher := &captureDispatcher{}
			module := New()
			module.dispatcher = dispatcher

			if err := module.AnnounceJoin(context.Background(), testCase.announcement); err != nil {
				t.Fatalf("AnnounceJoin failed: %v", err)
			}
			if dispatcher.calls.Load() != 1 {
				t.Fatalf("send calls = %d, want 1", dispatcher.calls.Load())
			}
			if dispatcher.lastRequest.Text != testCase.wantText {
				t.Fatalf("text = %q, want %q", dispatcher.lastRequest.Text, testCase.wantText)
			}
			if dispatcher.lastRequest.Target.Space.ID != testCase.announcement.Space.ID {
				t.Fatalf(
					"target space = %q, want %q",
					dispatcher.lastRequest.Target.Space.ID,
					testCase.announcement.Space.ID,
				)
			}
		})
	}
}

func TestAnnounceJoinAppendsGeneratedLine(t *testing.T) {
	t.Parallel()

	dispatcher := &captureDispatcher{}
	module := New(WithProvider(&stubProvider{text: "Great to have you here!\n\nignored"}, "gpt-4o-mini"))
	module.dispatcher = dispatcher

	announcement := usher.Announcement{
		Space:     usher.Space{ID: "space-1", Type: usher.SpaceTypeGroup, Title: "Gophers"},
		Member:    usher.Actor{ID: "42", DisplayName: "Alice"},
		InviterID: "X",
	}
	if err := module.AnnounceJoin(context.Background(), announcement); err != nil {
		t.Fatalf("AnnounceJoin failed: %v", err)
	}

	want := "Alice joined, invited by X.\nGreat to have you here!"
	if dispatcher.lastRequest.Text != want {
		t.Fatalf("text = %q, want %q", dispatcher.lastRequest.Text, want)
	}
}

func TestAnnounceJoinGenerationFailureFallsBack(t *testing.T) {
	t.Parallel()

	dispatcher := &captureDispatcher{}
	module := New(WithProvider(&stubProvider{err: errors.New("rate limited")}, "gpt-4o-mini"))
	module.dispatcher = dispatcher

	announcement := usher.Announcement{
		Space:     usher.Space{ID: "space-1", Type: usher.SpaceTypeGroup},
		Member:    usher.Actor{ID: "42", DisplayName: "Alice"},
		InviterID: "X",
	}
	if err := module.AnnounceJoin(context.Background(), announcement); err != nil {
		t.Fatalf("AnnounceJoin failed: %v", err)
	}
	if dispatcher.lastRequest.Text != "Alice joined, invited by X." {
		t.Fatalf("text = %q, want plain fallback", dispatcher.lastRequest.Text)
	}
}

func TestAnnounceJoinSendFailureSurfaces(t *testing.T) {
	t.Parallel()

	module := New()
	module.dispatcher = &captureDispatcher{sendErr: errors.New("forbidden")}

	err := module.AnnounceJoin(context.Background(), usher.Announcement{
		Space:     usher.Space{ID: "space-1", Type: usher.SpaceTypeGroup},
		Member:    usher.Actor{ID: "42"},
		InviterID: "X",
	})
	if err == nil || !strings.Contains(err.Error(), "send announcement") {
		t.Fatalf("error = %v, want send announcement failure", err)
	}
}

func TestModuleOnRegisterRegistersAnnouncer(t *testing.T) {
	t.Parallel()

	module := New()
	registry := newRegistryStub()
	registry.values[usher.ServiceOutboundDispatcher] = usher.OutboundDispatcher(&captureDispatcher{})

	if err := module.OnRegister(context.Background(), moduleRuntimeStub{registry: registry}); err != nil {
		t.Fatalf("OnRegister failed: %v", err)
	}

	announcer, err := registry.Resolve(usher.ServiceJoinAnnouncer)
	if err != nil {
		t.Fatalf("resolve announcer failed: %v", err)
	}
	if _, ok := announcer.(usher.JoinAnnouncer); !ok {
		t.Fatalf("announcer type = %T, want usher.JoinAnnouncer", announcer)
	}
}

type stubProvider struct {
	text string
	err  error
}

func (p *stubProvider) Generate(context.Context, llm.GenerateRequest) (string, error) {
	if p.err != nil {
		return "", p.err
	}

	return p.text, nil
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

type registryStub struct {
	values map[string]any
}

func newRegistryStub() *registryStub {
	return &registryStub{values: make(map[string]any)}
}

func (s *registryStub) Register(name string, service any) error {
	if _, exists := s.values[name]; exists {
		return usher.ErrServiceAlreadyRegistered
	}
	s.values[name] = service

	return nil
}

func (s *registryStub) Resolve(name string) (any, error) {
	value, ok := s.values[name]
	if !ok {
		return nil, usher.ErrServiceNotFound
	}

	return value, nil
}
