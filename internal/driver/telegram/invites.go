package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"usher/pkg/usher"

	"github.com/gotd/td/tg"
)

const inviteListLimit = 100

// invitesRPC is the raw Telegram surface needed for invite listing.
type invitesRPC interface {
	MessagesGetExportedChatInvites(
		ctx context.Context,
		request *tg.MessagesGetExportedChatInvitesRequest,
	) (*tg.MessagesExportedChatInvites, error)
	ChannelsGetParticipants(
		ctx context.Context,
		request *tg.ChannelsGetParticipantsRequest,
	) (tg.ChannelsChannelParticipantsClass, error)
}

// GotdInviteLister fetches active invite links for a space.
//
// Telegram scopes exported invites per admin, so listing walks the admin set
// and concatenates each admin's links in the order the platform returns them.
// That concatenation order is the fetch order attribution depends on.
type GotdInviteLister struct {
	rpc   invitesRPC
	peers *PeerCache
}

// NewGotdInviteLister creates an invite lister backed by gotd raw RPC.
func NewGotdInviteLister(rpc invitesRPC, peers *PeerCache) (*GotdInviteLister, error) {
	if rpc == nil {
		return nil, fmt.Errorf("new gotd invite lister: nil rpc")
	}
	if peers == nil {
		return nil, fmt.Errorf("new gotd invite lister: nil peer cache")
	}

	return &GotdInviteLister{
		rpc:   rpc,
		peers: peers,
	}, nil
}

// ListInvites returns every active invite currently exported in the space.
func (l *GotdInviteLister) ListInvites(ctx context.Context, spaceID string) ([]usher.InviteRecord, error) {
	peer, err := l.peers.ResolveSpaceID(spaceID)
	if err != nil {
		return nil, fmt.Errorf("list invites for space %s: %w", spaceID, err)
	}

	admins, err := l.listInviteAdmins(ctx, peer)
	if err != nil {
		return nil, fmt.Errorf("list invites for space %s: %w", spaceID, err)
	}

	records := make([]usher.InviteRecord, 0)
	for _, admin := range admins {
		result, err := l.rpc.MessagesGetExportedChatInvites(ctx, &tg.MessagesGetExportedChatInvitesRequest{
			Peer:    peer,
			AdminID: admin,
			Limit:   inviteListLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("list invites for space %s: %w", spaceID, err)
		}

		records = append(records, mapExportedInvites(result.Invites)...)
	}

	return records, nil
}

// listInviteAdmins returns the admin identities whose invites should be listed.
//
// Channels and megagroups expose the full admin set. Legacy small groups fall
// back to the bot's own links.
func (l *GotdInviteLister) listInviteAdmins(
	ctx context.Context,
	peer tg.InputPeerClass,
) ([]tg.InputUserClass, error) {
	channelPeer, ok := peer.(*tg.InputPeerChannel)
	if !ok {
		return []tg.InputUserClass{&tg.InputUserSelf{}}, nil
	}

	result, err := l.rpc.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
		Channel: &tg.InputChannel{
			ChannelID:  channelPeer.ChannelID,
			AccessHash: channelPeer.AccessHash,
		},
		Filter: &tg.ChannelParticipantsAdmins{},
		Limit:  inviteListLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list channel admins: %w", err)
	}

	typed, ok := result.(*tg.ChannelsChannelParticipants)
	if !ok {
		return nil, fmt.Errorf("list channel admins: unexpected response %T", result)
	}

	admins := make([]tg.InputUserClass, 0, len(typed.Users))
	for _, user := range typed.Users {
		if user == nil {
			continue
		}
		notEmpty, ok := user.AsNotEmpty()
		if !ok || notEmpty == nil {
			continue
		}
		admins = append(admins, notEmpty.AsInput())
	}
	if len(admins) == 0 {
		admins = append(admins, &tg.InputUserSelf{})
	}

	return admins, nil
}

// mapExportedInvites converts raw exported invites, skipping revoked links.
func mapExportedInvites(invites []tg.ExportedChatInviteClass) []usher.InviteRecord {
	records := make([]usher.InviteRecord, 0, len(invites))
	for _, raw := range invites {
		invite, ok := raw.(*tg.ChatInviteExported)
		if !ok || invite == nil || invite.Revoked {
			continue
		}

		code := inviteCodeFromLink(invite.Link)
		if code == "" {
			continue
		}
		records = append(records, usher.InviteRecord{
			Code:      code,
			Uses:      invite.Usage,
			InviterID: strconv.FormatInt(invite.AdminID, 10),
		})
	}

	return records
}

// inviteCodeFromLink extracts the stable invite token from a t.me link.
func inviteCodeFromLink(link string) string {
	trimmed := strings.TrimSpace(link)
	if trimmed == "" {
		return ""
	}
	if index := strings.LastIndex(trimmed, "/"); index >= 0 {
		trimmed = trimmed[index+1:]
	}
	trimmed = strings.TrimPrefix(trimmed, "+")
	trimmed = strings.TrimPrefix(trimmed, "joinchat/")

	return trimmed
}

var _ usher.InviteLister = (*GotdInviteLister)(nil)
