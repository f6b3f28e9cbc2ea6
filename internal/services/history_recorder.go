package services

import (
	"context"
	"time"

	"opal-bid-monitor/internal/domain"
	"opal-bid-monitor/pkg/logger"
)

// HistoryRecorder persists accepted and rejected bid events.
type HistoryRecorder struct {
	repo domain.BidRepository
	log  logger.Logger
}

func NewHistoryRecorder(repo domain.BidRepository, log logger.Logger) *HistoryRecorder {
	return &HistoryRecorder{repo: repo, log: log}
}

func (h *HistoryRecorder) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	h.log.Info("Starting bid history recorder")
	return subscriber.SubscribeToBidEvents(ctx, h.HandleEvent)
}

func (h *HistoryRecorder) HandleEvent(event *domain.BidEvent) error {
	switch event.Type {
	case domain.BidAccepted, domain.BidRejected:
	default:
		h.log.Debug("Skipping event", "type", event.Type, "auction_id", event.AuctionID)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.repo.SaveBidEvent(ctx, event); err != nil {
		h.log.Error("Failed to record bid event", "event_id", event.ID, "error", err)
		return err
	}
	return nil
}
