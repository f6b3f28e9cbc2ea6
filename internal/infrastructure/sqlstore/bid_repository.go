package sqlstore

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"opal-bid-monitor/internal/domain"
)

type bidEventRow struct {
	ID          string              `db:"id"`
	Type        string              `db:"type"`
	AuctionID   string              `db:"auction_id"`
	Bidder      string              `db:"bidder"`
	Amount      decimal.Decimal     `db:"amount"`
	PreviousBid decimal.NullDecimal `db:"previous_bid"`
	Reason      string              `db:"reason"`
	Source      string              `db:"source"`
	OccurredAt  time.Time           `db:"occurred_at"`
}

type BidRepository struct {
	db *DB
}

func NewBidRepository(db *DB) *BidRepository {
	return &BidRepository{db: db}
}

func (r *BidRepository) SaveBidEvent(ctx context.Context, event *domain.BidEvent) error {
	query := r.db.Rebind(`
        INSERT INTO bid_events (id, type, auction_id, bidder, amount, previous_bid, reason, source, occurred_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	_, err := r.db.ExecContext(ctx, query,
		event.ID, string(event.Type), event.AuctionID, event.Bidder,
		event.Amount, event.PreviousBid, event.Reason, string(event.Source),
		event.Timestamp.UTC())
	return err
}

// GetBidHistory returns the recorded events for an auction, oldest first.
func (r *BidRepository) GetBidHistory(ctx context.Context, auctionID string) ([]*domain.BidEvent, error) {
	query := r.db.Rebind(`
        SELECT id, type, auction_id, bidder, amount, previous_bid, reason, source, occurred_at
        FROM bid_events
        WHERE auction_id = ?
        ORDER BY occurred_at ASC, id ASC
    `)

	var rows []bidEventRow
	if err := r.db.SelectContext(ctx, &rows, query, auctionID); err != nil {
		return nil, err
	}

	events := make([]*domain.BidEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, &domain.BidEvent{
			ID:          row.ID,
			Type:        domain.BidEventType(row.Type),
			AuctionID:   row.AuctionID,
			Bidder:      row.Bidder,
			Amount:      row.Amount,
			PreviousBid: row.PreviousBid,
			Reason:      row.Reason,
			Source:      domain.ObservationSource(row.Source),
			Timestamp:   row.OccurredAt.UTC(),
		})
	}
	return events, nil
}
