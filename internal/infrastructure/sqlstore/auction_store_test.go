package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"opal-bid-monitor/internal/domain"
)

func createTestAuction(t *testing.T, store *AuctionStore, endTime *time.Time) string {
	t.Helper()
	id := uniqueID(t)
	err := store.CreateAuction(context.Background(), domain.AuctionState{
		ID:           id,
		StartingBid:  decimal.NewFromInt(20),
		BidIncrement: decimal.NewFromInt(5),
		Status:       domain.AuctionActive,
		EndTime:      endTime,
	})
	assert.NoError(t, err)
	return id
}

func TestAuctionStore_CreateAndGet(t *testing.T) {
	store := NewAuctionStore(openTestDB(t))
	id := createTestAuction(t, store, nil)

	auction, err := store.GetAuction(context.Background(), id)
	assert.NoError(t, err)
	check.Equal(t, id, auction.ID)
	check.Equal(t, "20", auction.StartingBid.String())
	check.Equal(t, "5", auction.BidIncrement.String())
	check.False(t, auction.CurrentBid.Valid)
	check.Equal(t, domain.AuctionActive, auction.Status)
	check.True(t, auction.EndTime == nil)

	_, err = store.GetAuction(context.Background(), "missing")
	check.True(t, errors.Is(err, domain.ErrAuctionNotFound))
}

func TestAuctionStore_ConditionalUpdateBid(t *testing.T) {
	store := NewAuctionStore(openTestDB(t))
	ctx := context.Background()
	id := createTestAuction(t, store, nil)

	ok, err := store.ConditionalUpdateBid(ctx, id, decimal.NewFromInt(20), decimal.NewFromInt(30), "Jane")
	assert.NoError(t, err)
	check.True(t, ok)

	ok, err = store.ConditionalUpdateBid(ctx, id, decimal.NewFromInt(20), decimal.NewFromInt(40), "Bob")
	assert.NoError(t, err)
	check.False(t, ok)

	auction, err := store.GetAuction(ctx, id)
	assert.NoError(t, err)
	check.Equal(t, "30", auction.CurrentBid.Decimal.String())
	check.Equal(t, "Jane", auction.CurrentBidder)

	_, err = store.ConditionalUpdateBid(ctx, "missing", decimal.NewFromInt(20), decimal.NewFromInt(40), "Bob")
	check.True(t, errors.Is(err, domain.ErrAuctionNotFound))

	assert.NoError(t, store.SetAuctionStatus(ctx, id, domain.AuctionLost))
	ok, err = store.ConditionalUpdateBid(ctx, id, decimal.NewFromInt(30), decimal.NewFromInt(40), "Bob")
	assert.NoError(t, err)
	check.False(t, ok)
}

func TestAuctionStore_ConcurrentBidsConvergeToHighest(t *testing.T) {
	store := NewAuctionStore(openTestDB(t))
	ctx := context.Background()
	id := createTestAuction(t, store, nil)

	var wg sync.WaitGroup
	for _, amount := range []int64{50, 60} {
		wg.Add(1)
		go func(amount decimal.Decimal) {
			defer wg.Done()
			for attempt := 0; attempt < 10; attempt++ {
				auction, err := store.GetAuction(ctx, id)
				if err != nil || !amount.GreaterThan(auction.EffectiveCurrentBid()) {
					return
				}
				ok, err := store.ConditionalUpdateBid(ctx, id, auction.EffectiveCurrentBid(), amount, "bidder")
				if err != nil || ok {
					return
				}
			}
		}(decimal.NewFromInt(amount))
	}
	wg.Wait()

	auction, err := store.GetAuction(ctx, id)
	assert.NoError(t, err)
	check.Equal(t, "60", auction.CurrentBid.Decimal.String())
}

func TestAuctionStore_EndExpiredAuctions(t *testing.T) {
	store := NewAuctionStore(openTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	expired := createTestAuction(t, store, &past)
	running := createTestAuction(t, store, &future)

	ended, err := store.EndExpiredAuctions(ctx, now)
	assert.NoError(t, err)

	found := false
	for _, id := range ended {
		check.NotEqual(t, running, id)
		if id == expired {
			found = true
		}
	}
	check.True(t, found)

	auction, err := store.GetAuction(ctx, expired)
	assert.NoError(t, err)
	check.Equal(t, domain.AuctionEnded, auction.Status)
}
