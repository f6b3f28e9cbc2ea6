package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"opal-bid-monitor/internal/domain"
	"opal-bid-monitor/pkg/logger"
)

type RedisEventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client: client,
		log:    log,
	}
}

// SubscribeToBidEvents blocks, handing each event to handler until ctx is
// cancelled.
func (r *RedisEventSubscriber) SubscribeToBidEvents(ctx context.Context, handler domain.EventHandler) error {
	pubsub := r.client.Subscribe(ctx, eventsChannel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reading messages.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()

	r.log.Info("Subscribed to auction events", "channel", eventsChannel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := parseEventData(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(event); err != nil {
				r.log.Error("Failed to handle event", "event_id", event.ID, "type", event.Type, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func parseEventData(payload string) (*domain.BidEvent, error) {
	var event domain.BidEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	if event.AuctionID == "" || event.Type == "" {
		return nil, fmt.Errorf("invalid event payload: missing auction id or type")
	}
	return &event, nil
}
