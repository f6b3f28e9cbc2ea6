// Package natsbus carries observations from scrapers, webhooks and the
// browser extension to the bid monitor over NATS.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"opal-bid-monitor/internal/config"
	"opal-bid-monitor/internal/domain"
	"opal-bid-monitor/pkg/logger"
	"opal-bid-monitor/pkg/utils"
)

var errNotConnected = errors.New("nats: not connected")

type ObservationBus struct {
	nc      *nats.Conn
	subject string
	queue   string
	log     logger.Logger
}

func NewObservationBus(cfg config.NATSConfig, name string, log logger.Logger) (*ObservationBus, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = "opal.observations"
	}
	return &ObservationBus{nc: nc, subject: subject, queue: cfg.Queue, log: log}, nil
}

func (b *ObservationBus) PublishObservation(_ context.Context, obs *domain.Observation) error {
	if err := obs.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(obs)
	if err != nil {
		return err
	}
	return b.nc.Publish(b.subject, data)
}

// SubscribeToObservations blocks until ctx is cancelled. With a queue
// group configured, each observation goes to one monitor instance.
func (b *ObservationBus) SubscribeToObservations(ctx context.Context, handler domain.ObservationHandler) error {
	onMsg := func(msg *nats.Msg) {
		obs, err := decodeObservation(msg.Data, time.Now())
		if err != nil {
			b.log.Warn("Dropping malformed observation", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, obs); err != nil {
			b.log.Error("Failed to handle observation", "observation_id", obs.ID, "auction_id", obs.AuctionID, "error", err)
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if b.queue != "" {
		sub, err = b.nc.QueueSubscribe(b.subject, b.queue, onMsg)
	} else {
		sub, err = b.nc.Subscribe(b.subject, onMsg)
	}
	if err != nil {
		return err
	}

	b.log.Info("Subscribed to observations", "subject", b.subject, "queue", b.queue)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		b.log.Warn("Failed to drain observation subscription", "error", err)
	}
	return ctx.Err()
}

func (b *ObservationBus) Ping(context.Context) error {
	if !b.nc.IsConnected() {
		return errNotConnected
	}
	return nil
}

func (b *ObservationBus) Close() {
	b.nc.Close()
}

func decodeObservation(data []byte, now time.Time) (*domain.Observation, error) {
	var obs domain.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, err
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	if obs.ID == "" {
		obs.ID = utils.GenerateID("obs")
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = now
	}
	if obs.Source == "" {
		obs.Source = domain.SourceScraper
	}
	return &obs, nil
}
