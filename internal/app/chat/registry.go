/*
Package chat contains the realtime messaging core.

This file defines the Registry, the process-wide mapping from conversation id to
the set of currently-connected sessions subscribed to it. The registry is the
unit of local fan-out: a broadcast bus delivers every published frame to the
registry, which writes it to each subscriber's send queue.
*/
package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"parley/internal/pkg/logx"
)

// room holds the subscriber set for one conversation. Each room carries its own
// lock so join/leave traffic in one conversation never serializes another.
type room struct {
	mu      sync.RWMutex
	members map[*Session]struct{}
}

// Registry maps conversation ids to their active rooms. An empty room is removed
// from the map; absence of members is equivalent to non-existence.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[int64]*room
	logger zerolog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[int64]*room),
		logger: logx.Logger().With().Str("component", "registry").Logger(),
	}
}

// Subscribe adds the session to the conversation's room, creating the room if it
// does not exist yet. Subscribing an already-subscribed session is a no-op.
func (reg *Registry) Subscribe(conversationID int64, s *Session) {
	reg.mu.Lock()
	rm, ok := reg.rooms[conversationID]
	if !ok {
		rm = &room{members: make(map[*Session]struct{})}
		reg.rooms[conversationID] = rm
	}

	// Membership changes stay under the registry lock so a concurrent
	// last-leaver teardown cannot orphan this subscriber.
	rm.mu.Lock()
	rm.members[s] = struct{}{}
	total := len(rm.members)
	rm.mu.Unlock()
	reg.mu.Unlock()

	reg.logger.Info().
		Int64("conversation_id", conversationID).
		Int("total_sessions", total).
		Msg("Session subscribed to room.")
}

// Unsubscribe removes the session from the conversation's room. Removing a
// session that is not subscribed is a no-op. The last leaver tears the room down.
func (reg *Registry) Unsubscribe(conversationID int64, s *Session) {
	reg.mu.Lock()
	rm, ok := reg.rooms[conversationID]
	if !ok {
		reg.mu.Unlock()
		return
	}

	rm.mu.Lock()
	delete(rm.members, s)
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		delete(reg.rooms, conversationID)
	}
	reg.mu.Unlock()

	reg.logger.Info().
		Int64("conversation_id", conversationID).
		Bool("room_removed", empty).
		Msg("Session unsubscribed from room.")
}

// Broadcast queues the already-serialized frame on every session currently
// subscribed to the conversation, the publisher included. A session whose send
// queue is full has the frame dropped rather than blocking the whole room.
func (reg *Registry) Broadcast(conversationID int64, frame []byte) {
	reg.mu.RLock()
	rm, ok := reg.rooms[conversationID]
	reg.mu.RUnlock()

	if !ok {
		return
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for s := range rm.members {
		s.queueFrame(frame)
	}
}

// Members reports how many sessions are currently subscribed to the conversation.
func (reg *Registry) Members(conversationID int64) int {
	reg.mu.RLock()
	rm, ok := reg.rooms[conversationID]
	reg.mu.RUnlock()

	if !ok {
		return 0
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	return len(rm.members)
}
