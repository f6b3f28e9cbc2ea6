package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"opal-bid-monitor/internal/domain"
	"opal-bid-monitor/internal/infrastructure/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*domain.BidEvent
	err    error
}

func (p *fakePublisher) PublishBidEvent(_ context.Context, event *domain.BidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []*domain.BidEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*domain.BidEvent, len(p.events))
	copy(out, p.events)
	return out
}

// racingStore lets another writer slip in before the first N commits.
type racingStore struct {
	*memory.AuctionStore
	mu        sync.Mutex
	conflicts int
	calls     int
	rival     func()
}

func (s *racingStore) ConditionalUpdateBid(ctx context.Context, auctionID string, expected, amount decimal.Decimal, bidder string) (bool, error) {
	s.mu.Lock()
	s.calls++
	conflict := s.calls <= s.conflicts
	s.mu.Unlock()

	if conflict {
		if s.rival != nil {
			s.rival()
		}
		return false, nil
	}
	return s.AuctionStore.ConditionalUpdateBid(ctx, auctionID, expected, amount, bidder)
}

type fakeLeader struct {
	leader bool
	err    error
}

func (l *fakeLeader) BecomeLeader(context.Context, string) (bool, error) { return l.leader, l.err }
func (l *fakeLeader) IsLeader(context.Context, string) (bool, error)     { return l.leader, l.err }
func (l *fakeLeader) ReleaseLeadership(context.Context, string) error     { return nil }

type fakeRepo struct {
	mu    sync.Mutex
	saved []*domain.BidEvent
	err   error
}

func (r *fakeRepo) SaveBidEvent(_ context.Context, event *domain.BidEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, event)
	return nil
}

func (r *fakeRepo) GetBidHistory(_ context.Context, auctionID string) ([]*domain.BidEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.BidEvent
	for _, e := range r.saved {
		if e.AuctionID == auctionID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeSubscriber struct {
	events []*domain.BidEvent
}

func (s *fakeSubscriber) SubscribeToBidEvents(_ context.Context, handler domain.EventHandler) error {
	for _, e := range s.events {
		_ = handler(e)
	}
	return nil
}

var errBoom = errors.New("boom")

func seededStore(endTime *time.Time) *memory.AuctionStore {
	store := memory.NewAuctionStore()
	store.Put(domain.AuctionState{
		ID:           "opal_1",
		StartingBid:  decimal.NewFromInt(20),
		BidIncrement: decimal.NewFromInt(5),
		Status:       domain.AuctionActive,
		EndTime:      endTime,
	})
	return store
}
