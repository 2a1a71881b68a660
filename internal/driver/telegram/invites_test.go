package telegram

import (
	"context"
	"errors"
	"testing"

	"usher/pkg/usher"

	"github.com/gotd/td/tg"
)

type invitesRPCStub struct {
	invitesByAdmin  map[int64][]tg.ExportedChatInviteClass
	participants    tg.ChannelsChannelParticipantsClass
	invitesErr      error
	participantsErr error
	adminCalls      []int64
}

func (s *invitesRPCStub) MessagesGetExportedChatInvites(
	_ context.Context,
	request *tg.MessagesGetExportedChatInvitesRequest,
) (*tg.MessagesExportedChatInvites, error) {
	if s.invitesErr != nil {
		return nil, s.invitesErr
	}

	adminID := int64(0)
	if admin, ok := request.AdminID.(*tg.InputUser); ok {
		adminID = admin.UserID
	}
	s.adminCalls = append(s.adminCalls, adminID)

	return &tg.MessagesExportedChatInvites{
		Invites: s.invitesByAdmin[adminID],
	}, nil
}

func (s *invitesRPCStub) ChannelsGetParticipants(
	_ context.Context,
	_ *tg.ChannelsGetParticipantsRequest,
) (tg.ChannelsChannelParticipantsClass, error) {
	if s.participantsErr != nil {
		return nil, s.participantsErr
	}

	return s.participants, nil
}

func newExportedInvite(link string, usage int, adminID int64, revoked bool) *tg.ChatInviteExported {
	invite := &tg.ChatInviteExported{
		Link:    link,
		AdminID: adminID,
		Revoked: revoked,
	}
	invite.SetUsage(usage)

	return invite
}

func newChannelPeerCache(t *testing.T, spaceID string, channelID int64) *PeerCache {
	t.Helper()

	cache := NewPeerCache()
	cache.RememberSpace(
		ChatRef{ID: spaceID, Type: usher.SpaceTypeChannel},
		&tg.InputPeerChannel{ChannelID: channelID, AccessHash: 42},
	)

	return cache
}

func TestListInvitesWalksChannelAdminsInOrder(t *testing.T) {
	t.Parallel()

	rpc := &invitesRPCStub{
		participants: &tg.ChannelsChannelParticipants{
			Users: []tg.UserClass{
				newGotdUser(5, "eve", "Eve"),
				newGotdUser(6, "bob", "Bob"),
			},
		},
		invitesByAdmin: map[int64][]tg.ExportedChatInviteClass{
			5: {
				newExportedInvite("https://t.me/+abc", 3, 5, false),
				newExportedInvite("https://t.me/+revoked", 9, 5, true),
			},
			6: {
				newExportedInvite("https://t.me/joinchat/def", 0, 6, false),
			},
		},
	}

	lister, err := NewGotdInviteLister(rpc, newChannelPeerCache(t, "200", 200))
	if err != nil {
		t.Fatalf("new lister failed: %v", err)
	}

	records, err := lister.ListInvites(context.Background(), "200")
	if err != nil {
		t.Fatalf("list invites failed: %v", err)
	}

	want := []usher.InviteRecord{
		{Code: "abc", Uses: 3, InviterID: "5"},
		{Code: "def", Uses: 0, InviterID: "6"},
	}
	if len(records) != len(want) {
		t.Fatalf("records = %+v, want %+v", records, want)
	}
	for index := range want {
		if records[index] != want[index] {
			t.Fatalf("record[%d] = %+v, want %+v", index, records[index], want[index])
		}
	}
	if len(rpc.adminCalls) != 2 || rpc.adminCalls[0] != 5 || rpc.adminCalls[1] != 6 {
		t.Fatalf("admin calls = %v, want [5 6]", rpc.adminCalls)
	}
}

func TestListInvitesLegacyGroupUsesSelf(t *testing.T) {
	t.Parallel()

	rpc := &invitesRPCStub{
		invitesByAdmin: map[int64][]tg.ExportedChatInviteClass{
			0: {newExportedInvite("https://t.me/+ghi", 1, 9000, false)},
		},
	}
	cache := NewPeerCache()
	cache.RememberSpace(ChatRef{ID: "100", Type: usher.SpaceTypeGroup}, &tg.InputPeerChat{ChatID: 100})

	lister, err := NewGotdInviteLister(rpc, cache)
	if err != nil {
		t.Fatalf("new lister failed: %v", err)
	}

	records, err := lister.ListInvites(context.Background(), "100")
	if err != nil {
		t.Fatalf("list invites failed: %v", err)
	}
	if len(records) != 1 || records[0].Code != "ghi" || records[0].InviterID != "9000" {
		t.Fatalf("records = %+v", records)
	}
	if len(rpc.adminCalls) != 1 || rpc.adminCalls[0] != 0 {
		t.Fatalf("admin calls = %v, want [0]", rpc.adminCalls)
	}
}

func TestListInvitesUnknownSpaceFails(t *testing.T) {
	t.Parallel()

	lister, err := NewGotdInviteLister(&invitesRPCStub{}, NewPeerCache())
	if err != nil {
		t.Fatalf("new lister failed: %v", err)
	}

	if _, err := lister.ListInvites(context.Background(), "404"); err == nil {
		t.Fatal("expected unknown space to fail")
	}
}

func TestListInvitesRPCFailureSurfaces(t *testing.T) {
	t.Parallel()

	rpc := &invitesRPCStub{
		participants: &tg.ChannelsChannelParticipants{
			Users: []tg.UserClass{newGotdUser(5, "eve", "Eve")},
		},
		invitesErr: errors.New("FLOOD_WAIT_3"),
	}

	lister, err := NewGotdInviteLister(rpc, newChannelPeerCache(t, "200", 200))
	if err != nil {
		t.Fatalf("new lister failed: %v", err)
	}

	if _, err := lister.ListInvites(context.Background(), "200"); err == nil {
		t.Fatal("expected invite RPC failure to surface")
	}
}

func TestListInvitesAdminLookupFailureSurfaces(t *testing.T) {
	t.Parallel()

	rpc := &invitesRPCStub{participantsErr: errors.New("CHANNEL_PRIVATE")}
	lister, err := NewGotdInviteLister(rpc, newChannelPeerCache(t, "200", 200))
	if err != nil {
		t.Fatalf("new lister failed: %v", err)
	}

	if _, err := lister.ListInvites(context.Background(), "200"); err == nil {
		t.Fatal("expected admin lookup failure to surface")
	}
}

func TestInviteCodeFromLink(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{link: "https://t.me/+AbCd123", want: "AbCd123"},
		{link: "https://t.me/joinchat/XyZ", want: "XyZ"},
		{link: "t.me/+short", want: "short"},
		{link: "  ", want: ""},
	}

	for _, testCase := range tests {
		if got := inviteCodeFromLink(testCase.link); got != testCase.want {
			t.Fatalf("inviteCodeFromLink(%q) = %q, want %q", testCase.link, got, testCase.want)
		}
	}
}
