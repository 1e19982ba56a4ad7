package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goride/internal/service"
)

// EventsChannel is the pub/sub channel shared by every instance.
const EventsChannel = "goride:events"

// EventBus relays envelopes between instances through Redis pub/sub.
type EventBus struct {
	client *redis.Client
	logger *zap.Logger
}

// NewEventBus creates a new EventBus.
func NewEventBus(client *redis.Client, logger *zap.Logger) *EventBus {
	return &EventBus{client: client, logger: logger}
}

// Publish sends an envelope to every subscribed instance, this one included.
func (b *EventBus) Publish(ctx context.Context, env service.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return b.client.Publish(ctx, EventsChannel, payload).Err()
}

// Subscribe delivers every envelope published on the bus until ctx is done.
// It returns once the subscription is confirmed.
func (b *EventBus) Subscribe(ctx context.Context, deliver func(ctx context.Context, env service.Envelope) error) error {
	pubsub := b.client.Subscribe(ctx, EventsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", EventsChannel, err)
	}

	go func() {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				env, err := decodeEnvelope(msg.Payload)
				if err != nil {
					b.logger.Debug("drop malformed event", zap.Error(err))
					continue
				}
				if err := deliver(ctx, env); err != nil {
					b.logger.Debug("deliver event", zap.String("channel", env.Channel), zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func decodeEnvelope(payload string) (service.Envelope, error) {
	var env service.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return env, err
	}
	if env.Channel == "" || env.Event == "" {
		return env, fmt.Errorf("envelope missing channel or event")
	}
	return env, nil
}
