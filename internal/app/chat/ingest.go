/*
Package chat contains the realtime messaging core.

This file defines the message ingest pipeline: validate, persist, then publish.
The pipeline is the sole path that places a message event on the bus, which
guarantees that any broadcast message is already durable.
*/
package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"parley/internal/app/user"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
)

// PersistedMessage carries the server-assigned fields of a durably saved message.
type PersistedMessage struct {
	ID        int64
	CreatedAt time.Time
}

// Store is the pipeline's view of the persistence collaborator.
type Store interface {
	// IsParticipant reports whether the user belongs to the conversation's
	// participant set. A missing conversation reports false, not an error.
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)

	// SaveMessage durably creates a message row and returns its server-assigned
	// id and creation timestamp.
	SaveMessage(ctx context.Context, conversationID, senderID int64, content string) (PersistedMessage, error)
}

// Pipeline validates an inbound chat message, persists it synchronously, and
// publishes the persisted result to the conversation's room.
type Pipeline struct {
	store  Store
	bus    Bus
	logger zerolog.Logger
}

// NewPipeline constructs a Pipeline over the given store and bus.
func NewPipeline(store Store, bus Bus) *Pipeline {
	return &Pipeline{
		store:  store,
		bus:    bus,
		logger: logx.Logger().With().Str("component", "ingest").Logger(),
	}
}

// Ingest runs the persist-then-fan-out protocol for one inbound message.
// Membership is re-checked on every message, not just at join time, so a
// long-lived session loses write access as soon as it is removed from the
// conversation. Validation failures never reach persistence or publish.
func (p *Pipeline) Ingest(ctx context.Context, conversationID int64, sender user.User, content string) (PersistedMessage, error) {
	isMember, err := p.store.IsParticipant(ctx, conversationID, sender.ID)
	if err != nil {
		p.logger.Error().Err(err).Int64("conversation_id", conversationID).Msg("Participant check failed.")
		return PersistedMessage{}, errs.NewError(errs.ErrStorageFailure)
	}
	if !isMember {
		return PersistedMessage{}, errs.NewError(errs.ErrNotParticipant)
	}

	if content == "" {
		return PersistedMessage{}, errs.NewError(errs.ErrEmptyMessage)
	}
	if len(content) > MaxContentBytes {
		return PersistedMessage{}, errs.NewError(errs.ErrMessageContentTooLong)
	}

	saved, err := p.store.SaveMessage(ctx, conversationID, sender.ID, content)
	if err != nil {
		p.logger.Error().Err(err).Int64("conversation_id", conversationID).Msg("Message persistence failed.")
		return PersistedMessage{}, errs.NewError(errs.ErrStorageFailure)
	}

	// Publish strictly after the insert commits: a client that fetches history
	// right after receiving this frame must see the message.
	ev := NewMessageEvent(sender, saved.ID, content, saved.CreatedAt)
	if err := p.bus.Publish(ctx, conversationID, ev); err != nil {
		// The message is durable; only the fan-out failed. Subscribers will see
		// it on their next history fetch.
		p.logger.Error().Err(err).Int64("message_id", saved.ID).Msg("Failed to publish persisted message.")
	}

	return saved, nil
}
