package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/erazemk/izposoja/internal/model"
)

// RelayChannel is the Redis channel notifications are relayed on.
const RelayChannel = "izposoja:notifications"

// Relay publishes notifications through Redis so that every instance's hub
// sees them, including the one the recipient is connected to.
type Relay struct {
	rdb *redis.Client
	hub *Hub
}

// NewRelay creates a relay that forwards relayed notifications into hub.
func NewRelay(rdb *redis.Client, hub *Hub) *Relay {
	return &Relay{rdb: rdb, hub: hub}
}

// Publish sends n to the relay channel.
func (r *Relay) Publish(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	if err := r.rdb.Publish(ctx, RelayChannel, payload).Err(); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}

// Start subscribes to the relay channel and forwards messages to the local
// hub until ctx is cancelled. It returns once the subscription is confirmed.
func (r *Relay) Start(ctx context.Context) error {
	pubsub := r.rdb.Subscribe(ctx, RelayChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribing to %s: %w", RelayChannel, err)
	}

	go func() {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var n model.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					slog.Warn("skipping malformed relayed notification", "error", err)
					continue
				}
				if err := r.hub.Publish(ctx, n); err != nil {
					slog.Warn("relayed notification push failed", "notification", n.ID, "error", err)
				}
			}
		}
	}()

	return nil
}

// Close closes the Redis client.
func (r *Relay) Close() error {
	return r.rdb.Close()
}
