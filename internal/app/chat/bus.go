/*
Package chat contains the realtime messaging core.

This file defines the Bus, the publish/subscribe mechanism that delivers an event
published to a conversation to every subscribed session. The in-memory bus serves
a single process; the Redis-backed bus fans events out across every process
sharing the broker, with identical behavior from the session's point of view.
*/
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"parley/internal/pkg/logx"
)

// redisChannelPrefix namespaces the per-conversation broker channels.
const redisChannelPrefix = "parley:conversation:"

// Bus delivers a published event to every session subscribed to the
// conversation's room, the publisher included. Delivery order matches publish
// order for events originating from the same process.
type Bus interface {
	Publish(ctx context.Context, conversationID int64, ev Event) error
	Close() error
}

// MemoryBus is the single-process Bus: publishing serializes the event once and
// hands it straight to the local registry for fan-out.
type MemoryBus struct {
	registry *Registry
}

// NewMemoryBus constructs a Bus backed by the local registry only.
func NewMemoryBus(registry *Registry) *MemoryBus {
	return &MemoryBus{registry: registry}
}

// Publish serializes the event and broadcasts it to the conversation's room.
func (b *MemoryBus) Publish(_ context.Context, conversationID int64, ev Event) error {
	frame, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	b.registry.Broadcast(conversationID, frame)
	return nil
}

// Close implements Bus. The memory bus holds no resources.
func (b *MemoryBus) Close() error {
	return nil
}

// RedisBus is the multi-process Bus. Publishing PUBLISHes the serialized event
// on a per-conversation channel; a pattern subscription feeds every received
// frame (local publishes included) into the local registry.
type RedisBus struct {
	client   *redis.Client
	registry *Registry
	sub      *redis.PubSub
	logger   zerolog.Logger
}

// NewRedisBus connects the bus to the broker and starts the subscriber loop.
// The provided context bounds the initial subscription handshake only.
func NewRedisBus(ctx context.Context, client *redis.Client, registry *Registry) (*RedisBus, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	sub := client.PSubscribe(ctx, redisChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe to broker channels: %w", err)
	}

	b := &RedisBus{
		client:   client,
		registry: registry,
		sub:      sub,
		logger:   logx.Logger().With().Str("component", "redis_bus").Logger(),
	}

	go b.readLoop()

	return b, nil
}

// Publish sends the serialized event to the conversation's broker channel.
// Local delivery happens when the subscriber loop receives it back, so every
// process (this one included) fans out through the same path.
func (b *RedisBus) Publish(ctx context.Context, conversationID int64, ev Event) error {
	frame, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	channel := redisChannelPrefix + strconv.FormatInt(conversationID, 10)
	if err := b.client.Publish(ctx, channel, frame).Err(); err != nil {
		return fmt.Errorf("publish to broker: %w", err)
	}

	return nil
}

// readLoop drains the pattern subscription, routing each frame to the local room
// named by the channel suffix. It exits when the subscription is closed.
func (b *RedisBus) readLoop() {
	for msg := range b.sub.Channel() {
		idStr := strings.TrimPrefix(msg.Channel, redisChannelPrefix)
		conversationID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			b.logger.Warn().Str("channel", msg.Channel).Msg("Ignoring frame on unparsable channel.")
			continue
		}

		b.registry.Broadcast(conversationID, []byte(msg.Payload))
	}

	b.logger.Info().Msg("Broker subscription closed. Read loop finished.")
}

// Close terminates the subscription and the broker connection.
func (b *RedisBus) Close() error {
	if err := b.sub.Close(); err != nil {
		b.logger.Error().Err(err).Msg("Error closing broker subscription.")
	}
	return b.client.Close()
}
