package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"opal-bid-monitor/internal/domain"
	"opal-bid-monitor/internal/extractor"
	"opal-bid-monitor/internal/resolver"
	"opal-bid-monitor/pkg/logger"
	"opal-bid-monitor/pkg/utils"
)

type BidServiceConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

// BidService turns observations into committed bids: extract candidates,
// resolve them against the stored auction, then commit with a conditional
// update, re-reading and re-resolving on conflict.
type BidService struct {
	store        domain.AuctionStore
	publisher    domain.EventPublisher
	extractor    *extractor.Extractor
	maxAttempts  int
	retryBackoff time.Duration
	log          logger.Logger
	now          func() time.Time
}

func NewBidService(
	store domain.AuctionStore,
	publisher domain.EventPublisher,
	ext *extractor.Extractor,
	cfg BidServiceConfig,
	log logger.Logger,
) *BidService {
	if ext == nil {
		ext = extractor.New()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	return &BidService{
		store:        store,
		publisher:    publisher,
		extractor:    ext,
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
		log:          log,
		now:          time.Now,
	}
}

// Process handles one observation. Business outcomes (accepted, rejected,
// no candidates) come back as a Resolution; only store faults and retry
// exhaustion are errors.
func (s *BidService) Process(ctx context.Context, obs *domain.Observation) (*domain.Resolution, error) {
	if err := obs.Validate(); err != nil {
		return nil, err
	}

	resolve := s.resolverFor(obs)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		auction, err := s.store.GetAuction(ctx, obs.AuctionID)
		if err != nil {
			if errors.Is(err, domain.ErrAuctionNotFound) {
				s.log.Warn("Dropping observation for unknown auction", "auction_id", obs.AuctionID, "observation_id", obs.ID)
			}
			return nil, err
		}

		res := resolve(*auction)
		switch res.Outcome {
		case domain.OutcomeNoCandidates:
			s.log.Debug("No bid candidates", "auction_id", obs.AuctionID, "observation_id", obs.ID)
			return &res, nil

		case domain.OutcomeRejected:
			s.log.Info("Bid rejected",
				"auction_id", obs.AuctionID,
				"reason", res.Reason,
				"attempted", res.AttemptedAmount.String(),
				"minimum", res.MinimumAcceptable.String())
			s.publish(ctx, s.rejectedEvent(obs, res))
			return &res, nil
		}

		committed, err := s.store.ConditionalUpdateBid(ctx, obs.AuctionID, res.CurrentEffectiveBid, res.Amount, res.BidderName)
		if err != nil {
			s.log.Error("Failed to commit bid", "auction_id", obs.AuctionID, "error", err)
			return nil, err
		}
		if committed {
			s.log.Info("Bid accepted",
				"auction_id", obs.AuctionID,
				"bidder", res.BidderName,
				"amount", res.Amount.String(),
				"previous", res.CurrentEffectiveBid.String())
			s.publish(ctx, s.acceptedEvent(obs, res))
			return &res, nil
		}

		s.log.Debug("Bid conflict, re-resolving", "auction_id", obs.AuctionID, "attempt", attempt)
		if attempt < s.maxAttempts {
			if err := s.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	s.log.Warn("Bid commit retries exhausted", "auction_id", obs.AuctionID, "attempts", s.maxAttempts)
	return nil, fmt.Errorf("auction %s: %w: %w", obs.AuctionID, domain.ErrRetriesExhausted, domain.ErrBidConflict)
}

// resolverFor extracts candidates once; only the auction state changes
// between attempts.
func (s *BidService) resolverFor(obs *domain.Observation) func(domain.AuctionState) domain.Resolution {
	if obs.Amount.Valid {
		bidder := extractor.CleanLabel(obs.Bidder)
		return func(auction domain.AuctionState) domain.Resolution {
			return resolver.ResolveAmount(auction, obs.Amount.Decimal, bidder, s.extractor.Range())
		}
	}

	var candidates []domain.BidCandidate
	switch {
	case len(obs.Comments) > 0:
		candidates = s.extractor.ExtractFromComments(obs.Comments)
	case obs.HTML != "":
		candidates = s.extractor.ExtractCandidates(extractor.VisibleText(obs.HTML))
	default:
		candidates = s.extractor.ExtractCandidates(obs.Text)
	}

	if len(obs.Comments) == 0 && obs.Bidder != "" {
		bidder := extractor.CleanLabel(obs.Bidder)
		for i := range candidates {
			candidates[i].BidderName = bidder
		}
	}

	return func(auction domain.AuctionState) domain.Resolution {
		return resolver.Resolve(auction, candidates)
	}
}

// backoff sleeps attempt*RetryBackoff plus up to one RetryBackoff of jitter.
func (s *BidService) backoff(ctx context.Context, attempt int) error {
	if s.retryBackoff <= 0 {
		return ctx.Err()
	}
	delay := time.Duration(attempt)*s.retryBackoff + time.Duration(rand.Int63n(int64(s.retryBackoff)))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *BidService) acceptedEvent(obs *domain.Observation, res domain.Resolution) *domain.BidEvent {
	event := s.newEvent(domain.BidAccepted, obs, res)
	event.Amount = res.Amount
	return event
}

func (s *BidService) rejectedEvent(obs *domain.Observation, res domain.Resolution) *domain.BidEvent {
	event := s.newEvent(domain.BidRejected, obs, res)
	event.Amount = res.AttemptedAmount
	event.Reason = string(res.Reason)
	return event
}

func (s *BidService) newEvent(eventType domain.BidEventType, obs *domain.Observation, res domain.Resolution) *domain.BidEvent {
	event := &domain.BidEvent{
		ID:        utils.GenerateID("evt"),
		Type:      eventType,
		AuctionID: obs.AuctionID,
		Bidder:    res.BidderName,
		Source:    obs.Source,
		Timestamp: s.now().UTC(),
	}
	event.PreviousBid.Decimal = res.CurrentEffectiveBid
	event.PreviousBid.Valid = true
	return event
}

// publish never fails the caller; a committed bid stays committed.
func (s *BidService) publish(ctx context.Context, event *domain.BidEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishBidEvent(ctx, event); err != nil {
		s.log.Error("Failed to publish bid event", "type", event.Type, "auction_id", event.AuctionID, "error", err)
	}
}
