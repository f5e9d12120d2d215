/*
Package chat contains the realtime messaging core: per-conversation rooms,
WebSocket sessions, the broadcast bus, and the message ingest pipeline.

This file defines the event protocol shared by every session in a conversation.
Events are published to the bus by one session (or the ingest pipeline) and
serialized verbatim to every subscribed session's transport.
*/
package chat

import (
	"time"

	"parley/internal/app/user"
)

// EventType is the discriminator carried in the "type" field of every frame.
type EventType string

const (
	// EventMessage is a persisted chat message. It is the default type for
	// inbound frames that omit the discriminator.
	EventMessage EventType = "message"

	// EventTyping is an ephemeral typing indicator. Never persisted.
	EventTyping EventType = "typing"

	// EventUserJoin announces a session joining the conversation's room.
	EventUserJoin EventType = "user_join"

	// EventUserLeave announces a session leaving the conversation's room.
	EventUserLeave EventType = "user_leave"
)

// Event is the server-to-client frame, published to a conversation's room and
// delivered to every subscribed session. Fields beyond the sender identity are
// populated per event type.
type Event struct {
	Type EventType `json:"type"`

	// Sender identity, present on every event type.
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`

	// EventMessage fields. Timestamp is ISO-8601.
	Message   string `json:"message,omitempty"`
	MessageID int64  `json:"message_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	// EventTyping field. A pointer so that "typing": false still serializes.
	Typing *bool `json:"typing,omitempty"`
}

// InboundFrame is the client-to-server frame. An empty Type is treated as
// EventMessage; unrecognized types are ignored by the session dispatch.
type InboundFrame struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
	Typing  bool      `json:"typing"`
}

// NewUserEvent builds a user_join or user_leave event for u.
func NewUserEvent(t EventType, u user.User) Event {
	return Event{
		Type:        t,
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
	}
}

// NewTypingEvent builds a typing indicator event for u.
func NewTypingEvent(u user.User, typing bool) Event {
	return Event{
		Type:        EventTyping,
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Typing:      &typing,
	}
}

// NewMessageEvent builds a message event carrying the server-assigned id and
// creation timestamp of an already-persisted message.
func NewMessageEvent(sender user.User, messageID int64, content string, createdAt time.Time) Event {
	return Event{
		Type:        EventMessage,
		UserID:      sender.ID,
		Username:    sender.Username,
		DisplayName: sender.DisplayName,
		Message:     content,
		MessageID:   messageID,
		Timestamp:   createdAt.UTC().Format(time.RFC3339Nano),
	}
}
