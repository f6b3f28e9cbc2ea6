package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStore is the system of record the bid pipeline reads from and
// commits to.
type AuctionStore interface {
	GetAuction(ctx context.Context, auctionID string) (*AuctionState, error)
	// ConditionalUpdateBid sets the current bid only if the auction is still
	// active and its effective current bid still equals expectedEffective.
	// A false result with a nil error is a conflict.
	ConditionalUpdateBid(ctx context.Context, auctionID string, expectedEffective, newAmount decimal.Decimal, bidderName string) (bool, error)
}

// AuctionExpirer ends active auctions whose end time has passed and reports
// which ones it ended.
type AuctionExpirer interface {
	EndExpiredAuctions(ctx context.Context, now time.Time) ([]string, error)
}

type BidRepository interface {
	SaveBidEvent(ctx context.Context, event *BidEvent) error
	GetBidHistory(ctx context.Context, auctionID string) ([]*BidEvent, error)
}

// Event interfaces
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *BidEvent) error
}

type EventSubscriber interface {
	SubscribeToBidEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *BidEvent) error

// Observation ingress
type ObservationSubscriber interface {
	SubscribeToObservations(ctx context.Context, handler ObservationHandler) error
}

type ObservationHandler func(ctx context.Context, obs *Observation) error

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
