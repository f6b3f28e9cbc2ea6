package services

import (
	"context"
	"time"

	"opal-bid-monitor/internal/domain"
	"opal-bid-monitor/pkg/logger"
	"opal-bid-monitor/pkg/utils"
)

// AuctionLifecycle ends auctions whose end time has passed. Only the
// elected leader sweeps.
type AuctionLifecycle struct {
	expirer        domain.AuctionExpirer
	eventPub       domain.EventPublisher
	leaderElection domain.LeaderElection
	instanceID     string
	log            logger.Logger
	now            func() time.Time
}

func NewAuctionLifecycle(
	expirer domain.AuctionExpirer,
	eventPub domain.EventPublisher,
	leaderElection domain.LeaderElection,
	instanceID string,
	log logger.Logger,
) *AuctionLifecycle {
	return &AuctionLifecycle{
		expirer:        expirer,
		eventPub:       eventPub,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		log:            log,
		now:            time.Now,
	}
}

// SweepExpired moves expired active auctions to ended and announces each
// one. A follower returns nil, nil.
func (l *AuctionLifecycle) SweepExpired(ctx context.Context) ([]string, error) {
	if l.leaderElection != nil {
		isLeader, err := l.leaderElection.IsLeader(ctx, l.instanceID)
		if err != nil || !isLeader {
			return nil, err
		}
	}

	now := l.now()
	ended, err := l.expirer.EndExpiredAuctions(ctx, now)
	if err != nil {
		return nil, err
	}

	for _, auctionID := range ended {
		l.log.Info("Auction ended", "auction_id", auctionID)
		if l.eventPub == nil {
			continue
		}
		err := l.eventPub.PublishBidEvent(ctx, &domain.BidEvent{
			ID:        utils.GenerateID("evt"),
			Type:      domain.EventAuctionEnded,
			AuctionID: auctionID,
			Timestamp: now.UTC(),
		})
		if err != nil {
			l.log.Error("Failed to publish auction ended event", "auction_id", auctionID, "error", err)
		}
	}
	return ended, nil
}
