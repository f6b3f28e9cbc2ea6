package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"opal-bid-monitor/internal/domain"
)

const endTimesKey = "auctions:end_times"

// Amounts are stored as fixed two-decimal strings so the CAS script can
// compare them as strings.
var conditionalUpdateScript = redis.NewScript(`
	local key = KEYS[1]
	if redis.call('EXISTS', key) == 0 then
		return -1
	end
	if redis.call('HGET', key, 'status') ~= 'active' then
		return 0
	end

	local effective = redis.call('HGET', key, 'current_bid')
	if (not effective) or effective == '' then
		effective = redis.call('HGET', key, 'starting_bid')
	end
	if effective ~= ARGV[1] then
		return 0
	end
	if tonumber(ARGV[2]) <= tonumber(effective) then
		return 0
	end

	redis.call('HSET', key,
		'current_bid', ARGV[2],
		'current_bidder', ARGV[3],
		'updated_at', ARGV[4])
	return 1
`)

var endAuctionScript = redis.NewScript(`
	redis.call('ZREM', KEYS[2], ARGV[1])
	if redis.call('HGET', KEYS[1], 'status') ~= 'active' then
		return 0
	end
	redis.call('HSET', KEYS[1], 'status', 'ended', 'updated_at', ARGV[2])
	return 1
`)

// AuctionStore keeps auction state in one hash per auction, plus a sorted
// set of end times for the expiry sweep.
type AuctionStore struct {
	client *redis.Client
}

func NewAuctionStore(client *redis.Client) *AuctionStore {
	return &AuctionStore{client: client}
}

func auctionKey(auctionID string) string {
	return fmt.Sprintf("auction:%s", auctionID)
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(domain.AmountPlaces)
}

// SaveAuction writes the full auction state, replacing whatever was there.
func (r *AuctionStore) SaveAuction(ctx context.Context, auction domain.AuctionState) error {
	key := auctionKey(auction.ID)

	currentBid := ""
	if auction.CurrentBid.Valid {
		currentBid = formatAmount(auction.CurrentBid.Decimal)
	}
	endTime := ""
	if auction.EndTime != nil {
		endTime = strconv.FormatInt(auction.EndTime.Unix(), 10)
	}
	status := auction.Status
	if status == "" {
		status = domain.AuctionActive
	}
	updatedAt := auction.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			"starting_bid":   formatAmount(auction.StartingBid),
			"current_bid":    currentBid,
			"current_bidder": auction.CurrentBidder,
			"bid_increment":  formatAmount(auction.BidIncrement),
			"status":         status.String(),
			"end_time":       endTime,
			"updated_at":     strconv.FormatInt(updatedAt.Unix(), 10),
		})
		if auction.EndTime != nil && status.IsActive() {
			pipe.ZAdd(ctx, endTimesKey, &redis.Z{
				Score:  float64(auction.EndTime.Unix()),
				Member: auction.ID,
			})
		} else {
			pipe.ZRem(ctx, endTimesKey, auction.ID)
		}
		return nil
	})
	return err
}

func (r *AuctionStore) GetAuction(ctx context.Context, auctionID string) (*domain.AuctionState, error) {
	fields, err := r.client.HGetAll(ctx, auctionKey(auctionID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.ErrAuctionNotFound
	}
	return parseAuction(auctionID, fields)
}

func parseAuction(auctionID string, fields map[string]string) (*domain.AuctionState, error) {
	auction := &domain.AuctionState{
		ID:            auctionID,
		CurrentBidder: fields["current_bidder"],
	}

	var err error
	if auction.StartingBid, err = decimal.NewFromString(fields["starting_bid"]); err != nil {
		return nil, fmt.Errorf("auction %s: starting_bid: %w", auctionID, err)
	}
	if raw := fields["current_bid"]; raw != "" {
		current, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("auction %s: current_bid: %w", auctionID, err)
		}
		auction.CurrentBid = decimal.NewNullDecimal(current)
	}
	if raw := fields["bid_increment"]; raw != "" {
		if auction.BidIncrement, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("auction %s: bid_increment: %w", auctionID, err)
		}
	}
	if auction.Status, err = domain.ParseAuctionStatus(fields["status"]); err != nil {
		return nil, fmt.Errorf("auction %s: %w", auctionID, err)
	}
	if raw := fields["end_time"]; raw != "" {
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("auction %s: end_time: %w", auctionID, err)
		}
		endTime := time.Unix(unix, 0).UTC()
		auction.EndTime = &endTime
	}
	if raw := fields["updated_at"]; raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			auction.UpdatedAt = time.Unix(unix, 0).UTC()
		}
	}
	return auction, nil
}

func (r *AuctionStore) ConditionalUpdateBid(ctx context.Context, auctionID string, expectedEffective, newAmount decimal.Decimal, bidderName string) (bool, error) {
	result, err := conditionalUpdateScript.Run(ctx, r.client, []string{auctionKey(auctionID)},
		formatAmount(expectedEffective),
		formatAmount(newAmount),
		bidderName,
		strconv.FormatInt(time.Now().Unix(), 10),
	).Int64()
	if err != nil {
		return false, err
	}

	switch result {
	case -1:
		return false, domain.ErrAuctionNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

// SetAuctionStatus records a manual transition such as won or lost.
func (r *AuctionStore) SetAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	key := auctionKey(auctionID)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return domain.ErrAuctionNotFound
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "status", status.String(), "updated_at", strconv.FormatInt(time.Now().Unix(), 10))
		if !status.IsActive() {
			pipe.ZRem(ctx, endTimesKey, auctionID)
		}
		return nil
	})
	return err
}

func (r *AuctionStore) EndExpiredAuctions(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := r.client.ZRangeByScore(ctx, endTimesKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	var ended []string
	for _, id := range ids {
		result, err := endAuctionScript.Run(ctx, r.client, []string{auctionKey(id), endTimesKey},
			id, strconv.FormatInt(now.Unix(), 10)).Int64()
		if err != nil {
			return ended, err
		}
		if result == 1 {
			ended = append(ended, id)
		}
	}
	return ended, nil
}

func (r *AuctionStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
