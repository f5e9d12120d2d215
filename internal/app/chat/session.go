/*
Package chat contains the realtime messaging core.

This file defines the Session struct, representing one authenticated WebSocket
connection bound to exactly one conversation. It manages the connection's
lifecycle, the read/write pumps, explicit inbound event dispatch, and the
guaranteed leave notice on disconnect.
*/
package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"parley/internal/app/user"
	"parley/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 8192

	// MaxContentBytes is the maximum allowed size (in bytes) for message content.
	MaxContentBytes = 5000

	// capacity of the per-session outbound frame queue.
	sendQueueSize = 256
)

// Ingestor is the Session's view of the message ingest pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, conversationID int64, sender user.User, content string) (PersistedMessage, error)
}

// Session represents an active WebSocket connection joined to one conversation.
// All outbound event frames reach the client through the bus and the send queue;
// a session never writes directly in response to its own inbound events.
type Session struct {
	// the conversation this session is bound to for its lifetime.
	conversationID int64

	// authenticated identity of the connected user.
	user user.User

	// underlying WebSocket connection object.
	conn *websocket.Conn

	registry *Registry
	bus      Bus
	ingest   Ingestor

	// buffered queue of serialized frames waiting to be written to the client.
	send chan []byte

	// cleanup guards the disconnect path so it runs exactly once even under
	// concurrent close and error.
	cleanup sync.Once

	// structured logger with session context.
	logger zerolog.Logger
}

// NewSession constructs a Session for an already-authenticated, already-authorized
// connection. The caller is expected to invoke Run.
func NewSession(conversationID int64, u user.User, conn *websocket.Conn, registry *Registry, bus Bus, ingest Ingestor) *Session {
	sessionLogger := logx.Logger().With().
		Int64("user_id", u.ID).
		Int64("conversation_id", conversationID).
		Logger()

	return &Session{
		conversationID: conversationID,
		user:           u,
		conn:           conn,
		registry:       registry,
		bus:            bus,
		ingest:         ingest,
		send:           make(chan []byte, sendQueueSize),
		logger:         sessionLogger,
	}
}

// Run joins the session to its room, announces the join, and services the
// connection until it closes. It blocks until the read pump terminates; the
// disconnect cleanup (deregistration plus leave notice) is guaranteed to run
// on every exit path, graceful or abrupt.
func (s *Session) Run(ctx context.Context) {
	s.registry.Subscribe(s.conversationID, s)

	go s.writePump()

	if err := s.bus.Publish(ctx, s.conversationID, NewUserEvent(EventUserJoin, s.user)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to publish user_join event.")
	}

	s.readPump(ctx)
}

// readPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), frame dispatch, and performs cleanup upon connection closure.
func (s *Session) readPump(ctx context.Context) {
	defer s.disconnect()

	s.conn.SetReadLimit(maxFrameSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frameBytes, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		s.handleFrame(ctx, frameBytes)
	}
}

// handleFrame dispatches one inbound frame by its type discriminator.
// A missing type means "message". Unknown types are dropped without error so the
// receive path stays forward-compatible with newer clients.
func (s *Session) handleFrame(ctx context.Context, frameBytes []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(frameBytes, &frame); err != nil {
		s.logger.Warn().Err(err).Msg("Client sent invalid JSON frame. Dropping.")
		return
	}

	eventType := frame.Type
	if eventType == "" {
		eventType = EventMessage
	}

	switch eventType {
	case EventMessage:
		// Persistence and fan-out happen inside the pipeline; rejected events
		// are dropped with no error frame to the sender.
		if _, err := s.ingest.Ingest(ctx, s.conversationID, s.user, frame.Message); err != nil {
			s.logger.Warn().Err(err).Msg("Inbound message rejected by ingest pipeline. Dropping.")
		}

	case EventTyping:
		if err := s.bus.Publish(ctx, s.conversationID, NewTypingEvent(s.user, frame.Typing)); err != nil {
			s.logger.Error().Err(err).Msg("Failed to publish typing event.")
		}

	default:
		s.logger.Debug().Str("event_type", string(eventType)).Msg("Ignoring unknown inbound event type.")
	}
}

// disconnect runs the cleanup path exactly once: deregister from the room,
// announce the leave, and shut down both pumps.
func (s *Session) disconnect() {
	s.cleanup.Do(func() {
		s.logger.Info().Msg("Session disconnect cleanup starting.")

		s.registry.Unsubscribe(s.conversationID, s)

		// The leave notice must go out even on abrupt disconnects, so it uses
		// its own bounded context rather than the (possibly canceled) request one.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.bus.Publish(ctx, s.conversationID, NewUserEvent(EventUserLeave, s.user)); err != nil {
			s.logger.Error().Err(err).Msg("Failed to publish user_leave event.")
		}

		// Closing the send queue terminates the write pump, which closes the
		// connection. Unsubscribe happened first, so no broadcast can enqueue
		// on the closed channel.
		close(s.send)
	})
}

// queueFrame enqueues a serialized frame for delivery to this session's client.
// A full queue drops the frame rather than blocking the broadcasting room.
func (s *Session) queueFrame(frame []byte) {
	select {
	case s.send <- frame:
	default:
		s.logger.Warn().Int("queue_len", len(s.send)).Msg("Session send queue full, dropping frame.")
	}
}

// writePump handles writing frames from the send queue to the WebSocket connection.
// It also maintains the ping heartbeat.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Session connection close error in writePump")
		}
	}()

	for {
		select {
		case frame, ok := <-s.send:
			if !s.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !s.writePing() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame pulled from the send queue to the WebSocket.
// Returns true if the write pump loop should continue, false if it should terminate.
func (s *Session) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			s.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		s.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePing sends a periodic WebSocket Ping to maintain the connection heartbeat.
// Returns false if the write pump loop should terminate due to write failure.
func (s *Session) writePing() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		s.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
