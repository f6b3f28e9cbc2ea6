package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownBidder labels a bid whose author could not be determined.
const UnknownBidder = "Unknown"

type AuctionStatus string

const (
	AuctionActive AuctionStatus = "active"
	AuctionEnded  AuctionStatus = "ended"
	AuctionWon    AuctionStatus = "won"
	AuctionLost   AuctionStatus = "lost"
)

func (s AuctionStatus) String() string {
	return string(s)
}

func (s AuctionStatus) IsActive() bool {
	return s == AuctionActive
}

func ParseAuctionStatus(raw string) (AuctionStatus, error) {
	switch status := AuctionStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case AuctionActive, AuctionEnded, AuctionWon, AuctionLost:
		return status, nil
	default:
		return "", fmt.Errorf("unknown auction status %q", raw)
	}
}

// AuctionState is the store's view of one auction, read before resolution.
type AuctionState struct {
	ID            string
	StartingBid   decimal.Decimal
	CurrentBid    decimal.NullDecimal
	CurrentBidder string
	BidIncrement  decimal.Decimal
	Status        AuctionStatus
	EndTime       *time.Time
	UpdatedAt     time.Time
}

// EffectiveCurrentBid is the current bid, or the starting bid when no bid
// has been accepted yet.
func (a AuctionState) EffectiveCurrentBid() decimal.Decimal {
	if a.CurrentBid.Valid {
		return a.CurrentBid.Decimal
	}
	return a.StartingBid
}

// Increment returns the bid increment, defaulting to 1 when unset.
func (a AuctionState) Increment() decimal.Decimal {
	if a.BidIncrement.IsPositive() {
		return a.BidIncrement
	}
	return decimal.NewFromInt(1)
}

// MinimumAcceptable is the smallest amount a new bid may have.
func (a AuctionState) MinimumAcceptable() decimal.Decimal {
	return a.EffectiveCurrentBid().Add(a.Increment())
}

// Rank orders extraction patterns; a lower rank is a more explicit match.
type Rank int

const (
	RankSupplied Rank = iota
	RankCurrency
	RankKeyword
	RankUnit
	RankBare
)

func (r Rank) String() string {
	switch r {
	case RankSupplied:
		return "supplied"
	case RankCurrency:
		return "currency"
	case RankKeyword:
		return "keyword"
	case RankUnit:
		return "unit"
	case RankBare:
		return "bare"
	default:
		return "unknown"
	}
}

type BidCandidate struct {
	Amount     decimal.Decimal
	BidderName string
	SourceSpan string
	Confidence Rank
}

// BidRange is the inclusive range of amounts considered plausible bids.
type BidRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// AmountPlaces is the precision bids are stored and compared at.
const AmountPlaces = 2

// NormalizeAmount rounds a bid to AmountPlaces, half away from zero.
func NormalizeAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

func DefaultBidRange() BidRange {
	return BidRange{
		Min: decimal.NewFromInt(20),
		Max: decimal.NewFromInt(2000),
	}
}

func (r BidRange) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(r.Min) && amount.LessThanOrEqual(r.Max)
}

type Outcome string

const (
	OutcomeAccepted     Outcome = "accepted"
	OutcomeRejected     Outcome = "rejected"
	OutcomeNoCandidates Outcome = "no_candidates"
)

type RejectReason string

const (
	ReasonAuctionNotActive      RejectReason = "auction_not_active"
	ReasonBelowMinimumIncrement RejectReason = "below_minimum_increment"
)

// Resolution is the decision for one auction and one set of candidates.
// Amount and BidderName are set when accepted; AttemptedAmount and
// MinimumAcceptable when rejected below the increment.
type Resolution struct {
	Outcome             Outcome
	Reason              RejectReason
	Amount              decimal.Decimal
	BidderName          string
	CurrentEffectiveBid decimal.Decimal
	AttemptedAmount     decimal.Decimal
	MinimumAcceptable   decimal.Decimal
}

func (r Resolution) Accepted() bool {
	return r.Outcome == OutcomeAccepted
}

type Comment struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

type ObservationSource string

const (
	SourceScraper   ObservationSource = "scraper"
	SourceWebhook   ObservationSource = "webhook"
	SourceExtension ObservationSource = "extension"
	SourceManual    ObservationSource = "manual"
)

// Observation is one piece of text seen for an auction. Exactly one of
// Amount, Comments, HTML or Text is used, in that order of preference.
type Observation struct {
	ID         string              `json:"id,omitempty"`
	AuctionID  string              `json:"auction_id"`
	Source     ObservationSource   `json:"source"`
	Text       string              `json:"text,omitempty"`
	HTML       string              `json:"html,omitempty"`
	Comments   []Comment           `json:"comments,omitempty"`
	Amount     decimal.NullDecimal `json:"amount"`
	Bidder     string              `json:"bidder,omitempty"`
	ObservedAt time.Time           `json:"observed_at"`
}

func (o *Observation) Validate() error {
	if o == nil || strings.TrimSpace(o.AuctionID) == "" {
		return ErrInvalidObservation
	}
	return nil
}

type BidEvent struct {
	ID          string              `json:"id"`
	Type        BidEventType        `json:"type"`
	AuctionID   string              `json:"auction_id"`
	Bidder      string              `json:"bidder,omitempty"`
	Amount      decimal.Decimal     `json:"amount"`
	PreviousBid decimal.NullDecimal `json:"previous_bid"`
	Reason      string              `json:"reason,omitempty"`
	Source      ObservationSource   `json:"source,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

type BidEventType string

const (
	BidAccepted       BidEventType = "bid_accepted"
	BidRejected       BidEventType = "bid_rejected"
	EventAuctionEnded BidEventType = "auction_ended"
)
