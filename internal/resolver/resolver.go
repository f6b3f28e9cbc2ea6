// Package resolver decides whether extracted candidates produce a new bid
// on an auction. It is pure: it never reads or writes the store.
package resolver

import (
	"github.com/shopspring/decimal"

	"opal-bid-monitor/internal/domain"
)

// Resolve picks the highest candidate and checks it against the auction's
// minimum acceptable bid. The auction is not modified.
func Resolve(auction domain.AuctionState, candidates []domain.BidCandidate) domain.Resolution {
	if !auction.Status.IsActive() {
		return domain.Resolution{
			Outcome:             domain.OutcomeRejected,
			Reason:              domain.ReasonAuctionNotActive,
			CurrentEffectiveBid: auction.EffectiveCurrentBid(),
		}
	}

	effective := auction.EffectiveCurrentBid()
	minimum := auction.MinimumAcceptable()

	best, ok := highest(candidates)
	if !ok {
		return domain.Resolution{
			Outcome:             domain.OutcomeNoCandidates,
			CurrentEffectiveBid: effective,
		}
	}

	if best.Amount.LessThan(minimum) {
		return domain.Resolution{
			Outcome:             domain.OutcomeRejected,
			Reason:              domain.ReasonBelowMinimumIncrement,
			BidderName:          bidderOrUnknown(best.BidderName),
			CurrentEffectiveBid: effective,
			AttemptedAmount:     best.Amount,
			MinimumAcceptable:   minimum,
		}
	}

	return domain.Resolution{
		Outcome:             domain.OutcomeAccepted,
		Amount:              best.Amount,
		BidderName:          bidderOrUnknown(best.BidderName),
		CurrentEffectiveBid: effective,
		MinimumAcceptable:   minimum,
	}
}

// ResolveAmount resolves a single amount parsed upstream, e.g. by a webhook.
// Amounts outside rng are treated as no candidate at all.
func ResolveAmount(auction domain.AuctionState, amount decimal.Decimal, bidder string, rng domain.BidRange) domain.Resolution {
	amount = domain.NormalizeAmount(amount)

	var candidates []domain.BidCandidate
	if rng.Contains(amount) {
		candidates = append(candidates, domain.BidCandidate{
			Amount:     amount,
			BidderName: bidder,
			SourceSpan: amount.String(),
			Confidence: domain.RankSupplied,
		})
	}
	return Resolve(auction, candidates)
}

// highest returns the candidate with the greatest amount; ties go to the
// lower rank, then to the earlier element.
func highest(candidates []domain.BidCandidate) (domain.BidCandidate, bool) {
	if len(candidates) == 0 {
		return domain.BidCandidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		switch cmp := c.Amount.Cmp(best.Amount); {
		case cmp > 0:
			best = c
		case cmp == 0 && c.Confidence < best.Confidence:
			best = c
		}
	}
	return best, true
}

func bidderOrUnknown(name string) string {
	if name == "" {
		return domain.UnknownBidder
	}
	return name
}
