// Package memory is a process-local AuctionStore for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"opal-bid-monitor/internal/domain"
)

type AuctionStore struct {
	mu       sync.RWMutex
	auctions map[string]domain.AuctionState
}

func NewAuctionStore() *AuctionStore {
	return &AuctionStore{auctions: make(map[string]domain.AuctionState)}
}

// Put inserts or replaces an auction.
func (s *AuctionStore) Put(auction domain.AuctionState) {
	if auction.Status == "" {
		auction.Status = domain.AuctionActive
	}
	if auction.UpdatedAt.IsZero() {
		auction.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[auction.ID] = auction
}

// GetAuction returns a copy; callers cannot mutate stored state.
func (s *AuctionStore) GetAuction(_ context.Context, auctionID string) (*domain.AuctionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	if auction.EndTime != nil {
		endTime := *auction.EndTime
		auction.EndTime = &endTime
	}
	return &auction, nil
}

func (s *AuctionStore) ConditionalUpdateBid(_ context.Context, auctionID string, expectedEffective, newAmount decimal.Decimal, bidderName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return false, domain.ErrAuctionNotFound
	}

	newAmount = domain.NormalizeAmount(newAmount)
	effective := domain.NormalizeAmount(auction.EffectiveCurrentBid())
	if !auction.Status.IsActive() || !effective.Equal(domain.NormalizeAmount(expectedEffective)) || !newAmount.GreaterThan(effective) {
		return false, nil
	}

	auction.CurrentBid = decimal.NewNullDecimal(newAmount)
	auction.CurrentBidder = bidderName
	auction.UpdatedAt = time.Now()
	s.auctions[auctionID] = auction
	return true, nil
}

func (s *AuctionStore) SetAuctionStatus(_ context.Context, auctionID string, status domain.AuctionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	auction.Status = status
	auction.UpdatedAt = time.Now()
	s.auctions[auctionID] = auction
	return nil
}

func (s *AuctionStore) EndExpiredAuctions(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ended []string
	for id, auction := range s.auctions {
		if !auction.Status.IsActive() || auction.EndTime == nil || auction.EndTime.After(now) {
			continue
		}
		auction.Status = domain.AuctionEnded
		auction.UpdatedAt = now
		s.auctions[id] = auction
		ended = append(ended, id)
	}
	sort.Strings(ended)
	return ended, nil
}

func (s *AuctionStore) Ping(context.Context) error {
	return nil
}
