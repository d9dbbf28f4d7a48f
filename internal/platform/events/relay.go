// Package events relays queue-board events between server instances over
// Redis pub/sub so every instance's WebSocket clients see every transition.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/johnnysally/SmartCare360-sub000/internal/platform/websocket"
)

// DefaultChannel is the Redis channel used for board events.
const DefaultChannel = "smartcare:queue:board"

// Relay publishes board events to Redis and, in Listen, feeds events received
// from Redis into the local hub. Events published by this instance come back
// through Listen as well, so local clients are served only once.
type Relay struct {
	client  *redis.Client
	channel string
	local   websocket.EventPublisher
	logger  zerolog.Logger
}

func NewRelay(client *redis.Client, channel string, local websocket.EventPublisher, logger zerolog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger.With().Str("component", "redis_relay").Str("channel", channel).Logger(),
	}
}

// Publish implements websocket.EventPublisher.
func (r *Relay) Publish(ctx context.Context, event websocket.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal board event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish board event: %w", err)
	}
	return nil
}

// Listen subscribes to the channel and forwards messages to the local hub
// until ctx is cancelled.
func (r *Relay) Listen(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info().Msg("listening for board events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(ctx, msg.Payload)
		}
	}
}

func (r *Relay) handle(ctx context.Context, payload string) {
	var event websocket.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		r.logger.Warn().Err(err).Msg("discarding malformed board event")
		return
	}
	if err := r.local.Publish(ctx, event); err != nil {
		r.logger.Warn().Err(err).Str("topic", event.Topic).Msg("local broadcast failed")
	}
}
