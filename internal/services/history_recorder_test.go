package services

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"opal-bid-monitor/internal/domain"
	"opal-bid-monitor/pkg/logger"
)

func TestHistoryRecorder_RecordsBidEvents(t *testing.T) {
	repo := &fakeRepo{}
	recorder := NewHistoryRecorder(repo, logger.NewNop())

	subscriber := &fakeSubscriber{events: []*domain.BidEvent{
		{ID: "evt_1", Type: domain.BidAccepted, AuctionID: "opal_1"},
		{ID: "evt_2", Type: domain.BidRejected, AuctionID: "opal_1"},
		{ID: "evt_3", Type: domain.EventAuctionEnded, AuctionID: "opal_1"},
		{ID: "evt_4", Type: domain.BidAccepted, AuctionID: "opal_2"},
	}}
	assert.NoError(t, recorder.Start(context.Background(), subscriber))

	history, err := repo.GetBidHistory(context.Background(), "opal_1")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(history))
	check.Equal(t, "evt_1", history[0].ID)
	check.Equal(t, "evt_2", history[1].ID)
}

func TestHistoryRecorder_ReturnsSaveError(t *testing.T) {
	recorder := NewHistoryRecorder(&fakeRepo{err: errBoom}, logger.NewNop())

	err := recorder.HandleEvent(&domain.BidEvent{ID: "evt_1", Type: domain.BidAccepted, AuctionID: "opal_1"})
	check.True(t, errors.Is(err, errBoom))

	check.NoError(t, recorder.HandleEvent(&domain.BidEvent{ID: "evt_2", Type: domain.EventAuctionEnded, AuctionID: "opal_1"}))
}
