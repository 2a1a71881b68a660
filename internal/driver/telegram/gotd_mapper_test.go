package telegram

import (
	"context"
	"testing"
	"time"

	"usher/pkg/usher"

	"github.com/gotd/td/tg"
)

func newGotdUser(id int64, username, firstName string) *tg.User {
	user := &tg.User{ID: id}
	if username != "" {
		user.SetUsername(username)
	}
	if firstName != "" {
		user.SetFirstName(firstName)
	}

	return user
}

func newTestEnvelope(update tg.UpdateClass, users []tg.UserClass, chats []tg.ChatClass) gotdUpdateEnvelope {
	return gotdUpdateEnvelope{
		update:      update,
		occurredAt:  time.Unix(1700000000, 0).UTC(),
		usersByID:   indexGotdUsers(users),
		chatsByID:   indexGotdChats(chats),
		updateClass: update.TypeName(),
	}
}

func TestMapNewMessage(t *testing.T) {
	t.Parallel()

	message := &tg.Message{
		ID:      10,
		PeerID:  &tg.PeerChat{ChatID: 100},
		Date:    1700000000,
		Message: "/ping",
	}
	message.SetFromID(&tg.PeerUser{UserID: 7})
	envelope := newTestEnvelope(
		&tg.UpdateNewMessage{Message: message},
		[]tg.UserClass{newGotdUser(7, "alice", "Alice")},
		[]tg.ChatClass{&tg.Chat{ID: 100, Title: "Gophers"}},
	)

	mapped, accepted, err := NewDefaultGotdUpdateMapper().Map(context.Background(), envelope)
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if !accepted {
		t.Fatal("expected update to be accepted")
	}
	if mapped.Type != UpdateTypeMessage {
		t.Fatalf("type = %s, want message", mapped.Type)
	}
	if mapped.Chat.ID != "100" || mapped.Chat.Type != usher.SpaceTypeGroup || mapped.Chat.Title != "Gophers" {
		t.Fatalf("chat = %+v", mapped.Chat)
	}
	if mapped.Actor.ID != "7" || mapped.Actor.Username != "alice" {
		t.Fatalf("actor = %+v", mapped.Actor)
	}
	if mapped.Message == nil || mapped.Message.Text != "/ping" {
		t.Fatalf("message = %+v", mapped.Message)
	}
}

func TestMapChatParticipantAddCarriesInviter(t *testing.T) {
	t.Parallel()

	envelope := newTestEnvelope(
		&tg.UpdateChatParticipantAdd{ChatID: 100, UserID: 7, InviterID: 5, Date: 1700000000},
		[]tg.UserClass{newGotdUser(7, "alice", "Alice"), newGotdUser(5, "eve", "Eve")},
		[]tg.ChatClass{&tg.Chat{ID: 100, Title: "Gophers"}},
	)

	mapped, accepted, err := NewDefaultGotdUpdateMapper().Map(context.Background(), envelope)
	if err != nil || !accepted {
		t.Fatalf("map failed: accepted=%v err=%v", accepted, err)
	}
	if mapped.Type != UpdateTypeMemberJoin {
		t.Fatalf("type = %s, want member_join", mapped.Type)
	}
	if mapped.Member == nil || mapped.Member.Member.ID != "7" {
		t.Fatalf("member = %+v", mapped.Member)
	}
	if mapped.Member.Inviter == nil || mapped.Member.Inviter.ID != "5" {
		t.Fatalf("inviter = %+v, want 5", mapped.Member.Inviter)
	}
}

func TestMapJoinedByLinkLeavesInviterNil(t *testing.T) {
	t.Parallel()

	service := &tg.MessageService{
		ID:     11,
		PeerID: &tg.PeerChat{ChatID: 100},
		Date:   1700000000,
		Action: &tg.MessageActionChatJoinedByLink{InviterID: 5},
	}
	service.SetFromID(&tg.PeerUser{UserID: 7})
	envelope := newTestEnvelope(
		&tg.UpdateNewMessage{Message: service},
		[]tg.UserClass{newGotdUser(7, "alice", "Alice")},
		[]tg.ChatClass{&tg.Chat{ID: 100, Title: "Gophers"}},
	)

	mapped, accepted, err := NewDefaultGotdUpdateMapper().Map(context.Background(), envelope)
	if err != nil || !accepted {
		t.Fatalf("map failed: accepted=%v err=%v", accepted, err)
	}
	if mapped.Type != UpdateTypeMemberJoin {
		t.Fatalf("type = %s, want member_join", mapped.Type)
	}
	if mapped.Member.Inviter != nil {
		t.Fatalf("inviter = %+v, want nil for link join", mapped.Member.Inviter)
	}
	if mapped.Member.Member.ID != "7" {
		t.Fatalf("member id = %s, want 7", mapped.Member.Member.ID)
	}
}

func TestMapChannelParticipantInviteJoinLeavesInviterNil(t *testing.T) {
	t.Parallel()

	update := &tg.UpdateChannelParticipant{
		ChannelID: 200,
		UserID:    7,
		ActorID:   5,
		Date:      1700000000,
	}
	update.SetNewParticipant(&tg.ChannelParticipant{UserID: 7})
	update.SetInvite(&tg.ChatInviteExported{Link: "https://t.me/+abc"})

	channel := &tg.Channel{ID: 200, Title: "Announcements"}
	channel.SetAccessHash(42)
	envelope := newTestEnvelope(
		update,
		[]tg.UserClass{newGotdUser(7, "alice", "Alice"), newGotdUser(5, "eve", "Eve")},
		[]tg.ChatClass{channel},
	)

	mapped, accepted, err := NewDefaultGotdUpdateMapper().Map(context.Background(), envelope)
	if err != nil || !accepted {
		t.Fatalf("map failed: accepted=%v err=%v", accepted, err)
	}
	if mapped.Type != UpdateTypeMemberJoin {
		t.Fatalf("type = %s, want member_join", mapped.Type)
	}
	if mapped.Member.Inviter != nil {
		t.Fatalf("inviter = %+v, want nil for invite join", mapped.Member.Inviter)
	}
}

func TestMapChannelParticipantManualAddCarriesInviter(t *testing.T) {
	t.Parallel()

	update := &tg.UpdateChannelParticipant{
		ChannelID: 200,
		UserID:    7,
		ActorID:   5,
		Date:      1700000000,
	}
	update.SetNewParticipant(&tg.ChannelParticipant{UserID: 7})

	envelope := newTestEnvelope(
		update,
		[]tg.UserClass{newGotdUser(7, "alice", "Alice"), newGotdUser(5, "eve", "Eve")},
		nil,
	)

	mapped, accepted, err := NewDefaultGotdUpdateMapper().Map(context.Background(), envelope)
	if err != nil || !accepted {
		t.Fatalf("map failed: accepted=%v err=%v", accepted, err)
	}
	if mapped.Member.Inviter == nil || mapped.Member.Inviter.ID != "5" {
		t.Fatalf("inviter = %+v, want 5", mapped.Member.Inviter)
	}
}

func TestMapChannelParticipantLeave(t *testing.T) {
	t.Parallel()

	update := &tg.UpdateChannelParticipant{
		ChannelID: 200,
		UserID:    7,
		ActorID:   7,
		Date:      1700000000,
	}
	update.SetPrevParticipant(&tg.ChannelParticipant{UserID: 7})

	mapped, accepted, err := NewDefaultGotdUpdateMapper().Map(
		context.Background(),
		newTestEnvelope(update, []tg.UserClass{newGotdUser(7, "alice", "Alice")}, nil),
	)
	if err != nil || !accepted {
		t.Fatalf("map failed: accepted=%v err=%v", accepted, err)
	}
	if mapped.Type != UpdateTypeMemberLeave {
		t.Fatalf("type = %s, want member_leave", mapped.Type)
	}
}

func TestMapSelfJoinBecomesSpaceJoined(t *testing.T) {
	t.Parallel()

	envelope := newTestEnvelope(
		&tg.UpdateChatParticipantAdd{ChatID: 100, UserID: 9000, InviterID: 5, Date: 1700000000},
		[]tg.UserClass{newGotdUser(9000, "usherbot", "Usher"), newGotdUser(5, "eve", "Eve")},
		[]tg.ChatClass{&tg.Chat{ID: 100, Title: "Gophers"}},
	)

	mapper := NewDefaultGotdUpdateMapper(WithSelfID(9000))
	mapped, accepted, err := mapper.Map(context.Background(), envelope)
	if err != nil || !accepted {
		t.Fatalf("map failed: accepted=%v err=%v", accepted, err)
	}
	if mapped.Type != UpdateTypeSpaceJoined {
		t.Fatalf("type = %s, want space_joined", mapped.Type)
	}
}

func TestMapChatParticipantDelete(t *testing.T) {
	t.Parallel()

	envelope := newTestEnvelope(
		&tg.UpdateChatParticipantDelete{ChatID: 100, UserID: 7},
		[]tg.UserClass{newGotdUser(7, "alice", "Alice")},
		[]tg.ChatClass{&tg.Chat{ID: 100, Title: "Gophers"}},
	)

	mapped, accepted, err := NewDefaultGotdUpdateMapper().Map(context.Background(), envelope)
	if err != nil || !accepted {
		t.Fatalf("map failed: accepted=%v err=%v", accepted, err)
	}
	if mapped.Type != UpdateTypeMemberLeave {
		t.Fatalf("type = %s, want member_leave", mapped.Type)
	}
	if mapped.Member.Member.ID != "7" {
		t.Fatalf("member id = %s, want 7", mapped.Member.Member.ID)
	}
}

func TestMapUnsupportedUpdateSkipped(t *testing.T) {
	t.Parallel()

	_, accepted, err := NewDefaultGotdUpdateMapper().Map(
		context.Background(),
		newTestEnvelope(&tg.UpdateUserTyping{UserID: 7}, nil, nil),
	)
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if accepted {
		t.Fatal("expected unsupported update to be skipped")
	}
}

func TestMapPopulatesPeerCache(t *testing.T) {
	t.Parallel()

	peers := NewPeerCache()
	message := &tg.Message{
		ID:      10,
		PeerID:  &tg.PeerChat{ChatID: 100},
		Date:    1700000000,
		Message: "hello",
	}
	message.SetFromID(&tg.PeerUser{UserID: 7})
	envelope := newTestEnvelope(
		&tg.UpdateNewMessage{Message: message},
		[]tg.UserClass{newGotdUser(7, "alice", "Alice")},
		[]tg.ChatClass{&tg.Chat{ID: 100, Title: "Gophers"}},
	)

	mapper := NewDefaultGotdUpdateMapper(WithPeerCache(peers))
	if _, _, err := mapper.Map(context.Background(), envelope); err != nil {
		t.Fatalf("map failed: %v", err)
	}

	peer, err := peers.Resolve(usher.Space{ID: "100", Type: usher.SpaceTypeGroup})
	if err != nil {
		t.Fatalf("resolve peer failed: %v", err)
	}
	if _, ok := peer.(*tg.InputPeerChat); !ok {
		t.Fatalf("peer type = %T, want *tg.InputPeerChat", peer)
	}
}
