package telegram

import (
	"fmt"
	"strconv"
	"sync"

	"usher/pkg/usher"

	"github.com/gotd/td/tg"
)

// PeerCache stores Telegram input peers discovered from inbound updates.
//
// Outbound dispatch and invite listing use it to resolve neutral space
// identifiers back into Telegram input peers.
type PeerCache struct {
	mu      sync.RWMutex
	bySpace map[string]tg.InputPeerClass
}

// NewPeerCache creates an empty, concurrency-safe Telegram peer cache.
func NewPeerCache() *PeerCache {
	return &PeerCache{
		bySpace: make(map[string]tg.InputPeerClass),
	}
}

// RememberEnvelope ingests entity data attached to one gotd update envelope.
func (c *PeerCache) RememberEnvelope(envelope gotdUpdateEnvelope) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for userID, user := range envelope.usersByID {
		if user == nil {
			continue
		}
		peer := user.AsInputPeer()
		if peer == nil {
			continue
		}
		c.bySpace[spaceKey(usher.SpaceTypePrivate, strconv.FormatInt(userID, 10))] = cloneInputPeer(peer)
	}

	for id, chat := range envelope.chatsByID {
		if chat.inputPeer == nil {
			continue
		}

		idStr := strconv.FormatInt(id, 10)
		c.bySpace[spaceKey(chat.kind, idStr)] = cloneInputPeer(chat.inputPeer)

		// Megagroups surface as "group" in neutral events but use channel peers for outbound RPC.
		if chat.kind == usher.SpaceTypeGroup {
			if _, isChannel := chat.inputPeer.(*tg.InputPeerChannel); isChannel {
				c.bySpace[spaceKey(usher.SpaceTypeChannel, idStr)] = cloneInputPeer(chat.inputPeer)
			}
		}
	}
}

// RememberSpace stores one explicit space-to-peer mapping.
func (c *PeerCache) RememberSpace(chat ChatRef, peer tg.InputPeerClass) {
	if c == nil || peer == nil || chat.ID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySpace[spaceKey(chat.Type, chat.ID)] = cloneInputPeer(peer)

	if chat.Type == usher.SpaceTypeGroup {
		if _, isChannel := peer.(*tg.InputPeerChannel); isChannel {
			c.bySpace[spaceKey(usher.SpaceTypeChannel, chat.ID)] = cloneInputPeer(peer)
		}
	}
}

// Resolve returns an input peer for an outbound target space.
func (c *PeerCache) Resolve(space usher.Space) (tg.InputPeerClass, error) {
	if c == nil {
		return nil, fmt.Errorf("resolve peer: nil cache")
	}
	if space.ID == "" || space.Type == "" {
		return nil, fmt.Errorf("resolve peer: invalid space")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if peer, ok := c.bySpace[spaceKey(space.Type, space.ID)]; ok {
		return cloneInputPeer(peer), nil
	}

	switch space.Type {
	case usher.SpaceTypePrivate:
		// No alternate peer kind exists for private spaces.
	case usher.SpaceTypeGroup:
		if peer, ok := c.bySpace[spaceKey(usher.SpaceTypeChannel, space.ID)]; ok {
			return cloneInputPeer(peer), nil
		}
	case usher.SpaceTypeChannel:
		if peer, ok := c.bySpace[spaceKey(usher.SpaceTypeGroup, space.ID)]; ok {
			return cloneInputPeer(peer), nil
		}
	default:
		// Unknown space kinds have no compatibility fallback.
	}

	return nil, fmt.Errorf("resolve peer: space %s/%s not found", space.Type, space.ID)
}

// ResolveSpaceID returns an input peer for a bare space identifier.
//
// Invite listing receives only the space ID, so lookup tries group, channel,
// and private keys in that order.
func (c *PeerCache) ResolveSpaceID(spaceID string) (tg.InputPeerClass, error) {
	if c == nil {
		return nil, fmt.Errorf("resolve peer: nil cache")
	}
	if spaceID == "" {
		return nil, fmt.Errorf("resolve peer: empty space id")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, spaceType := range []usher.SpaceType{
		usher.SpaceTypeGroup,
		usher.SpaceTypeChannel,
		usher.SpaceTypePrivate,
	} {
		if peer, ok := c.bySpace[spaceKey(spaceType, spaceID)]; ok {
			return cloneInputPeer(peer), nil
		}
	}

	return nil, fmt.Errorf("resolve peer: space %s not found", spaceID)
}

func spaceKey(spaceType usher.SpaceType, id string) string {
	return string(spaceType) + ":" + id
}

func cloneInputPeer(peer tg.InputPeerClass) tg.InputPeerClass {
	switch typed := peer.(type) {
	case *tg.InputPeerUser:
		copyPeer := *typed
		return &copyPeer
	case *tg.InputPeerChat:
		copyPeer := *typed
		return &copyPeer
	case *tg.InputPeerChannel:
		copyPeer := *typed
		return &copyPeer
	case *tg.InputPeerSelf:
		copyPeer := *typed
		return &copyPeer
	default:
		return peer
	}
}
