package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"opal-bid-monitor/internal/domain"
)

type auctionRow struct {
	ID            string              `db:"id"`
	StartingBid   decimal.Decimal     `db:"starting_bid"`
	CurrentBid    decimal.NullDecimal `db:"current_bid"`
	CurrentBidder string              `db:"current_bidder"`
	BidIncrement  decimal.Decimal     `db:"bid_increment"`
	Status        string              `db:"status"`
	EndTime       sql.NullTime        `db:"end_time"`
	UpdatedAt     time.Time           `db:"updated_at"`
}

func (r auctionRow) toDomain() (*domain.AuctionState, error) {
	status, err := domain.ParseAuctionStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("auction %s: %w", r.ID, err)
	}

	auction := &domain.AuctionState{
		ID:            r.ID,
		StartingBid:   r.StartingBid,
		CurrentBid:    r.CurrentBid,
		CurrentBidder: r.CurrentBidder,
		BidIncrement:  r.BidIncrement,
		Status:        status,
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if r.EndTime.Valid {
		endTime := r.EndTime.Time.UTC()
		auction.EndTime = &endTime
	}
	return auction, nil
}

// AuctionStore commits bids with a single conditional UPDATE.
type AuctionStore struct {
	db *DB
}

func NewAuctionStore(db *DB) *AuctionStore {
	return &AuctionStore{db: db}
}

func (s *AuctionStore) CreateAuction(ctx context.Context, auction domain.AuctionState) error {
	status := auction.Status
	if status == "" {
		status = domain.AuctionActive
	}
	updatedAt := auction.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	var endTime sql.NullTime
	if auction.EndTime != nil {
		endTime = sql.NullTime{Time: auction.EndTime.UTC(), Valid: true}
	}

	query := s.db.Rebind(`
        INSERT INTO auctions (id, starting_bid, current_bid, current_bidder, bid_increment, status, end_time, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `)
	_, err := s.db.ExecContext(ctx, query,
		auction.ID, auction.StartingBid, auction.CurrentBid, auction.CurrentBidder,
		auction.Increment(), status.String(), endTime, updatedAt.UTC())
	return err
}

func (s *AuctionStore) GetAuction(ctx context.Context, auctionID string) (*domain.AuctionState, error) {
	query := s.db.Rebind(`
        SELECT id, starting_bid, current_bid, current_bidder, bid_increment, status, end_time, updated_at
        FROM auctions WHERE id = ?
    `)

	var row auctionRow
	if err := s.db.GetContext(ctx, &row, query, auctionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}
	return row.toDomain()
}

func (s *AuctionStore) ConditionalUpdateBid(ctx context.Context, auctionID string, expectedEffective, newAmount decimal.Decimal, bidderName string) (bool, error) {
	query := s.db.Rebind(`
        UPDATE auctions
        SET current_bid = ?, current_bidder = ?, updated_at = ?
        WHERE id = ?
          AND status = 'active'
          AND COALESCE(current_bid, starting_bid) = CAST(? AS DECIMAL(12, 2))
          AND CAST(? AS DECIMAL(12, 2)) > COALESCE(current_bid, starting_bid)
    `)

	result, err := s.db.ExecContext(ctx, query,
		newAmount.StringFixed(domain.AmountPlaces), bidderName, time.Now().UTC(), auctionID,
		expectedEffective.StringFixed(domain.AmountPlaces), newAmount.StringFixed(domain.AmountPlaces))
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	exists, err := s.exists(ctx, auctionID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrAuctionNotFound
	}
	return false, nil
}

func (s *AuctionStore) exists(ctx context.Context, auctionID string) (bool, error) {
	var count int
	query := s.db.Rebind(`SELECT COUNT(*) FROM auctions WHERE id = ?`)
	if err := s.db.GetContext(ctx, &count, query, auctionID); err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetAuctionStatus records a manual transition such as won or lost.
func (s *AuctionStore) SetAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	query := s.db.Rebind(`UPDATE auctions SET status = ?, updated_at = ? WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, status.String(), time.Now().UTC(), auctionID)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrAuctionNotFound
	}
	return nil
}

func (s *AuctionStore) EndExpiredAuctions(ctx context.Context, now time.Time) ([]string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var ids []string
	selectQuery := tx.Rebind(`
        SELECT id FROM auctions
        WHERE status = 'active' AND end_time IS NOT NULL AND end_time <= ?
        ORDER BY end_time
        FOR UPDATE
    `)
	if err := tx.SelectContext(ctx, &ids, selectQuery, now.UTC()); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	updateQuery, args, err := sqlx.In(`UPDATE auctions SET status = 'ended', updated_at = ? WHERE status = 'active' AND id IN (?)`, now.UTC(), ids)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(updateQuery), args...); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ids, nil
}

func (s *AuctionStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
