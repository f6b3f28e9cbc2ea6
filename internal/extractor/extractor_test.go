package extractor

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"opal-bid-monitor/internal/domain"
)

func TestExtractCandidates_CurrencyMarked(t *testing.T) {
	candidates := ExtractCandidates("$200 or best offer")

	assert.Equal(t, 1, len(candidates))
	check.Equal(t, "200", candidates[0].Amount.String())
	check.Equal(t, domain.RankCurrency, candidates[0].Confidence)
	check.Equal(t, "$200", candidates[0].SourceSpan)
	check.Equal(t, domain.UnknownBidder, candidates[0].BidderName)
}

func TestExtractCandidates_KeywordMarked(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		amount string
	}{
		{"verb before", "I'll go 150 for me", "150"},
		{"verb with filler words", "I'll take it for 300", "300"},
		{"verb with colon", "Bid: 95", "95"},
		{"amount before for me", "220 for me please", "220"},
		{"amount before bid", "ok 250 bid", "250"},
		{"uppercase verb", "PAY 180 NOW", "180"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := ExtractCandidates(tt.text)
			assert.Equal(t, 1, len(candidates))
			check.Equal(t, tt.amount, candidates[0].Amount.String())
			check.Equal(t, domain.RankKeyword, candidates[0].Confidence)
		})
	}
}

func TestExtractCandidates_UnitSuffixed(t *testing.T) {
	candidates := ExtractCandidates("maybe 75 bucks")

	assert.Equal(t, 1, len(candidates))
	check.Equal(t, "75", candidates[0].Amount.String())
	check.Equal(t, domain.RankUnit, candidates[0].Confidence)
	check.Equal(t, "75 bucks", candidates[0].SourceSpan)
}

func TestExtractCandidates_BareNumber(t *testing.T) {
	candidates := ExtractCandidates("45.50 then")

	assert.Equal(t, 1, len(candidates))
	check.Equal(t, "45.5", candidates[0].Amount.String())
	check.Equal(t, domain.RankBare, candidates[0].Confidence)
}

func TestExtractCandidates_NoDigits(t *testing.T) {
	for _, text := range []string{
		"",
		"   \n\t ",
		"Beautiful crystal opal, who wants it?",
		"bid bid bid $ dollars",
	} {
		candidates := ExtractCandidates(text)
		check.NotNil(t, candidates)
		check.Equal(t, 0, len(candidates))
	}
}

func TestExtractCandidates_OutOfRangeBareNumbers(t *testing.T) {
	candidates := ExtractCandidates("I have 15 stones and 5000 photos and 19 more")
	check.Equal(t, 0, len(candidates))
}

func TestExtractCandidates_DenylistSuppressesBareOnly(t *testing.T) {
	check.Equal(t, 0, len(ExtractCandidates("This group has 250 members")))
	check.Equal(t, 0, len(ExtractCandidates("shipping 25 extra")))
	check.Equal(t, 0, len(ExtractCandidates("Weighs 35 carats")))

	candidates := ExtractCandidates("Shipping is $25")
	assert.Equal(t, 1, len(candidates))
	check.Equal(t, "25", candidates[0].Amount.String())
	check.Equal(t, domain.RankCurrency, candidates[0].Confidence)
}

func TestExtractCandidates_NotStandalone(t *testing.T) {
	for _, text := range []string{
		"item A250 and 300ml",
		"pickup 10:45 tomorrow",
		"50% off",
		"weight 12.345 oz",
	} {
		check.Equal(t, 0, len(ExtractCandidates(text)))
	}
}

func TestExtractCandidates_OrderAndDedupe(t *testing.T) {
	candidates := ExtractCandidates("bid 300, or $250, maybe 275 dollars")

	assert.Equal(t, 3, len(candidates))

	check.Equal(t, "300", candidates[0].Amount.String())
	check.Equal(t, domain.RankKeyword, candidates[0].Confidence)
	check.Equal(t, "bid 300", candidates[0].SourceSpan)

	check.Equal(t, "275", candidates[1].Amount.String())
	check.Equal(t, domain.RankUnit, candidates[1].Confidence)

	check.Equal(t, "250", candidates[2].Amount.String())
	check.Equal(t, domain.RankCurrency, candidates[2].Confidence)
}

func TestExtractCandidates_EquivalentAmountsCollapse(t *testing.T) {
	candidates := ExtractCandidates("$200.00 ... 200 bid")

	assert.Equal(t, 1, len(candidates))
	check.Equal(t, "200", candidates[0].Amount.String())
	check.Equal(t, domain.RankCurrency, candidates[0].Confidence)
}

func TestExtractCandidates_CurrencyFormats(t *testing.T) {
	tests := []struct {
		text   string
		amount string
	}{
		{"$123.50", "123.5"},
		{"$ 80", "80"},
		{"$1,200 firm", "1200"},
	}

	for _, tt := range tests {
		candidates := ExtractCandidates(tt.text)
		assert.Equal(t, 1, len(candidates))
		check.Equal(t, tt.amount, candidates[0].Amount.String())
		check.Equal(t, domain.RankCurrency, candidates[0].Confidence)
	}
}

func TestExtractCandidates_CustomRange(t *testing.T) {
	check.Equal(t, 0, len(ExtractCandidates("bid 7")))

	e := New(WithRange(domain.BidRange{Min: decimal.NewFromInt(5), Max: decimal.NewFromInt(999)}))
	candidates := e.ExtractCandidates("bid 7 or $1500")

	assert.Equal(t, 1, len(candidates))
	check.Equal(t, "7", candidates[0].Amount.String())
}

func TestExtractCandidates_CustomDenylist(t *testing.T) {
	e := New(WithDenylist([]string{" Lot "}))

	check.Equal(t, 0, len(e.ExtractCandidates("lot 42 opened")))

	candidates := e.ExtractCandidates("This group has 250 members")
	assert.Equal(t, 1, len(candidates))
	check.Equal(t, "250", candidates[0].Amount.String())
}

func TestExtractCandidates_Idempotent(t *testing.T) {
	text := "Lovely boulder opal. $120 from me, bid 140, 160 for me. 2 carats, 300 members"

	first := ExtractCandidates(text)
	second := ExtractCandidates(text)

	assert.Equal(t, len(first), len(second))
	for i := range first {
		check.True(t, first[i].Amount.Equal(second[i].Amount))
		check.Equal(t, first[i].Confidence, second[i].Confidence)
		check.Equal(t, first[i].SourceSpan, second[i].SourceSpan)
		check.Equal(t, first[i].BidderName, second[i].BidderName)
	}
}

func TestExtractCandidates_KeywordStopsAtSentenceEnd(t *testing.T) {
	check.Equal(t, 0, len(ExtractCandidates("Good to go! 250 members now")))
	check.Equal(t, 0, len(ExtractCandidates("Worth a bid. 300 members watching")))

	candidates := ExtractCandidates("Happy to go. 275 bucks")
	assert.Equal(t, 1, len(candidates))
	check.Equal(t, domain.RankUnit, candidates[0].Confidence)
}

func TestExtractCandidates_DenylistMatchesWholeWords(t *testing.T) {
	for _, text := range []string{"Update: 300", "Sometimes 300"} {
		candidates := ExtractCandidates(text)
		assert.Equal(t, 1, len(candidates))
		check.Equal(t, "300", candidates[0].Amount.String())
		check.Equal(t, domain.RankBare, candidates[0].Confidence)
	}

	check.Equal(t, 0, len(ExtractCandidates("Delivery date 300 days out")))
	check.Equal(t, 0, len(ExtractCandidates("MEMBERS: 300")))
}

func TestExtractCandidates_CommaSeparatedFigures(t *testing.T) {
	candidates := ExtractCandidates("bids so far: 25,30,45")

	assert.Equal(t, 3, len(candidates))
	check.Equal(t, "45", candidates[0].Amount.String())
	check.Equal(t, domain.RankBare, candidates[0].Confidence)
	check.Equal(t, "30", candidates[1].Amount.String())
	check.Equal(t, "25", candidates[2].Amount.String())
	check.Equal(t, domain.RankKeyword, candidates[2].Confidence)

	candidates = ExtractCandidates("bid 1,250")
	assert.Equal(t, 1, len(candidates))
	check.Equal(t, "1250", candidates[0].Amount.String())
}
