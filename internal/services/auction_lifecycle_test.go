package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"opal-bid-monitor/internal/domain"
	"opal-bid-monitor/pkg/logger"
)

func TestAuctionLifecycle_SweepsAsLeader(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	store := seededStore(&past)
	pub := &fakePublisher{}
	lifecycle := NewAuctionLifecycle(store, pub, &fakeLeader{leader: true}, "node-a", logger.NewNop())

	ended, err := lifecycle.SweepExpired(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, len(ended))
	check.Equal(t, "opal_1", ended[0])

	auction, err := store.GetAuction(context.Background(), "opal_1")
	assert.NoError(t, err)
	check.Equal(t, domain.AuctionEnded, auction.Status)

	events := pub.published()
	assert.Equal(t, 1, len(events))
	check.Equal(t, domain.EventAuctionEnded, events[0].Type)
	check.Equal(t, "opal_1", events[0].AuctionID)
}

func TestAuctionLifecycle_FollowerDoesNothing(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	store := seededStore(&past)
	pub := &fakePublisher{}
	lifecycle := NewAuctionLifecycle(store, pub, &fakeLeader{leader: false}, "node-b", logger.NewNop())

	ended, err := lifecycle.SweepExpired(context.Background())
	assert.NoError(t, err)
	check.Equal(t, 0, len(ended))
	check.Equal(t, 0, len(pub.published()))

	auction, err := store.GetAuction(context.Background(), "opal_1")
	assert.NoError(t, err)
	check.Equal(t, domain.AuctionActive, auction.Status)
}

func TestAuctionLifecycle_LeaderCheckError(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	lifecycle := NewAuctionLifecycle(seededStore(&past), &fakePublisher{}, &fakeLeader{err: errBoom}, "node-a", logger.NewNop())

	_, err := lifecycle.SweepExpired(context.Background())
	check.True(t, errors.Is(err, errBoom))
}

func TestAuctionLifecycle_PublishFailureStillEnds(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	store := seededStore(&past)
	lifecycle := NewAuctionLifecycle(store, &fakePublisher{err: errBoom}, nil, "node-a", logger.NewNop())

	ended, err := lifecycle.SweepExpired(context.Background())
	assert.NoError(t, err)
	check.Equal(t, 1, len(ended))
}

func TestCronSweepScheduler_RunsSweep(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	store := seededStore(&past)
	pub := &fakePublisher{}
	lifecycle := NewAuctionLifecycle(store, pub, nil, "node-a", logger.NewNop())
	scheduler := NewCronSweepScheduler("@every 1s", lifecycle, logger.NewNop())

	assert.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for len(pub.published()) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	check.Equal(t, 1, len(pub.published()))
}

func TestCronSweepScheduler_InvalidSchedule(t *testing.T) {
	lifecycle := NewAuctionLifecycle(seededStore(nil), nil, nil, "node-a", logger.NewNop())
	scheduler := NewCronSweepScheduler("not a schedule", lifecycle, logger.NewNop())

	check.Error(t, scheduler.Start(context.Background()))
}
