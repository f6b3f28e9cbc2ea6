package extractor

import (
	"regexp"

	"opal-bid-monitor/internal/domain"
)

// amountExpr matches 1,200 / 1200 / 1200.5 / 1200.50 and captures the whole figure.
const amountExpr = `((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?)`

// keywordGap is one separator character between a bid verb and its amount.
const keywordGap = `[^\w$\n.!?;]`

const bidVerbs = `bid|bids|bidding|offer|offers|offering|take|takes|taking|pay|pays|paying|go|goes|going`

// pattern is one class of bid mention. The amount is always capture group 1.
type pattern struct {
	rank domain.Rank
	re   *regexp.Regexp
}

var (
	currencyPattern = pattern{
		rank: domain.RankCurrency,
		re:   regexp.MustCompile(`\$\s?` + amountExpr),
	}

	// Verb first, up to two words in between: "bid 200", "I'll go 150", "take it for 300".
	// The gap never crosses a line or sentence end.
	keywordBeforePattern = pattern{
		rank: domain.RankKeyword,
		re:   regexp.MustCompile(`(?i)\b(?:` + bidVerbs + `)\b(?:` + keywordGap + `+[a-z']+){0,2}?` + keywordGap + `*\$?` + amountExpr),
	}

	// Amount first: "200 for me", "200 or best offer", "250 bid".
	keywordAfterPattern = pattern{
		rank: domain.RankKeyword,
		re:   regexp.MustCompile(`(?i)` + amountExpr + `[^\S\n]*(?:[a-z']+[^\S\n]+){0,2}?(?:for[^\S\n]+me|bid|offer)\b`),
	}

	unitPattern = pattern{
		rank: domain.RankUnit,
		re:   regexp.MustCompile(`(?i)` + amountExpr + `[^\S\n]*(?:dollars?|bucks?)\b`),
	}

	// Every numeric token; standalone-ness is checked by hand since RE2 has
	// no lookbehind.
	barePattern = pattern{
		rank: domain.RankBare,
		re:   regexp.MustCompile(amountExpr),
	}
)

// patterns in evaluation order.
var patterns = []pattern{
	currencyPattern,
	keywordBeforePattern,
	keywordAfterPattern,
	unitPattern,
	barePattern,
}

// DefaultDenylist suppresses bare numbers that sit next to non-bid mentions.
var DefaultDenylist = []string{"members", "carats", "date", "time", "shipping", "comments"}

const (
	contextRadius = 20
	bareMinDigits = 2
	bareMaxDigits = 4
)
