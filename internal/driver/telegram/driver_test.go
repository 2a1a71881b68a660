package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"usher/pkg/usher"
)

type captureSink struct {
	mu     sync.Mutex
	events []*usher.Event
	err    error
}

func (s *captureSink) Publish(_ context.Context, event *usher.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)

	return nil
}

func (s *captureSink) kinds() []usher.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := make([]usher.EventKind, 0, len(s.events))
	for _, event := range s.events {
		kinds = append(kinds, event.Kind)
	}

	return kinds
}

type failingDecoder struct {
	err error
}

func (d failingDecoder) Decode(context.Context, Update) (*usher.Event, error) {
	return nil, d.err
}

func newMessageUpdate() Update {
	return Update{
		ID:         "tg:message:100:10",
		Type:       UpdateTypeMessage,
		OccurredAt: time.Unix(1700000000, 0).UTC(),
		Chat:       ChatRef{ID: "100", Type: usher.SpaceTypeGroup},
		Actor:      ActorRef{ID: "7"},
		Message:    &MessagePayload{ID: "10", Text: "hi"},
	}
}

func TestDriverStartAnnouncesTrackedSpacesFirst(t *testing.T) {
	t.Parallel()

	updates := make(chan Update, 1)
	updates <- newMessageUpdate()
	close(updates)

	driver, err := NewDriver(
		ChannelSource{Updates: updates},
		NewDefaultDecoder(),
		WithTrackedSpaces([]string{"100", "200"}),
	)
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}

	sink := &captureSink{}
	if err := driver.Start(context.Background(), sink); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	kinds := sink.kinds()
	want := []usher.EventKind{
		usher.EventKindSpaceReady,
		usher.EventKindSpaceReady,
		usher.EventKindMessageCreated,
	}
	if len(kinds) != len(want) {
		t.Fatalf("event kinds = %v, want %v", kinds, want)
	}
	for index := range want {
		if kinds[index] != want[index] {
			t.Fatalf("event kinds = %v, want %v", kinds, want)
		}
	}
	if sink.events[0].Space.ID != "100" || sink.events[1].Space.ID != "200" {
		t.Fatalf("ready spaces = %s, %s", sink.events[0].Space.ID, sink.events[1].Space.ID)
	}
}

func TestDriverStartDecodeFailureReportsAsyncError(t *testing.T) {
	t.Parallel()

	updates := make(chan Update, 1)
	updates <- newMessageUpdate()
	close(updates)

	var reported error
	driver, err := NewDriver(
		ChannelSource{Updates: updates},
		failingDecoder{err: errors.New("bad payload")},
		WithErrorHandler(func(_ context.Context, err error) {
			reported = err
		}),
	)
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}

	if err := driver.Start(context.Background(), &captureSink{}); err == nil {
		t.Fatal("expected decode failure to surface")
	}
	if reported == nil {
		t.Fatal("expected async error callback")
	}
}

func TestDriverStartPublishFailureSurfaces(t *testing.T) {
	t.Parallel()

	updates := make(chan Update, 1)
	updates <- newMessageUpdate()
	close(updates)

	driver, err := NewDriver(ChannelSource{Updates: updates}, NewDefaultDecoder())
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}

	if err := driver.Start(context.Background(), &captureSink{err: errors.New("bus closed")}); err == nil {
		t.Fatal("expected publish failure to surface")
	}
}

func TestDriverStartContextCancellationIsClean(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	driver, err := NewDriver(ChannelSource{Updates: make(chan Update)}, NewDefaultDecoder())
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}

	if err := driver.Start(ctx, &captureSink{}); err != nil {
		t.Fatalf("start after cancel = %v, want nil", err)
	}
}

func TestDriverName(t *testing.T) {
	t.Parallel()

	driver, err := NewDriver(
		ChannelSource{Updates: make(chan Update)},
		NewDefaultDecoder(),
		WithName("telegram-main"),
	)
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}
	if driver.Name() != "telegram-main" {
		t.Fatalf("name = %q, want telegram-main", driver.Name())
	}
}
