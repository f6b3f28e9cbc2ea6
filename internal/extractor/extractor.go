// Package extractor finds bid amounts in free text such as comments,
// scraped pages and webhook bodies.
package extractor

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"opal-bid-monitor/internal/domain"
)

type Extractor struct {
	bidRange domain.BidRange
	denylist []string
	denyRe   *regexp.Regexp
}

type Option func(*Extractor)

// WithRange overrides the plausible bid range.
func WithRange(r domain.BidRange) Option {
	return func(e *Extractor) {
		e.bidRange = r
	}
}

// WithDenylist replaces the terms that suppress bare numbers.
func WithDenylist(terms []string) Option {
	return func(e *Extractor) {
		cleaned := make([]string, 0, len(terms))
		for _, term := range terms {
			if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
				cleaned = append(cleaned, term)
			}
		}
		e.denylist = cleaned
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		bidRange: domain.DefaultBidRange(),
		denylist: DefaultDenylist,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.denyRe = compileDenylist(e.denylist)
	return e
}

// compileDenylist matches any term as a whole word, case-insensitively.
func compileDenylist(terms []string) *regexp.Regexp {
	if len(terms) == 0 {
		return nil
	}
	alts := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		expr := regexp.QuoteMeta(term)
		if isWordByte(term[0]) {
			expr = `\b` + expr
		}
		if isWordByte(term[len(term)-1]) {
			expr += `\b`
		}
		alts = append(alts, expr)
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
}

var defaultExtractor = New()

// ExtractCandidates scans text with the default range and denylist.
func ExtractCandidates(text string) []domain.BidCandidate {
	return defaultExtractor.ExtractCandidates(text)
}

func (e *Extractor) Range() domain.BidRange {
	return e.bidRange
}

// ExtractCandidates returns the plausible bids in text, one per distinct
// amount, highest amount first. Bidder names are UnknownBidder.
func (e *Extractor) ExtractCandidates(text string) []domain.BidCandidate {
	set := newCandidateSet()
	e.scan(text, domain.UnknownBidder, set)
	return set.sorted()
}

func (e *Extractor) scan(text, bidder string, set *candidateSet) {
	if strings.TrimSpace(text) == "" {
		return
	}

	var denied [][]int
	if e.denyRe != nil {
		denied = e.denyRe.FindAllStringIndex(text, -1)
	}

	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			amountStart, amountEnd := loc[2], loc[3]
			if !isolatedFigure(text, amountStart, amountEnd) {
				continue
			}

			raw := text[amountStart:amountEnd]
			if p.rank == domain.RankBare {
				if !standalone(text, amountStart, amountEnd) || !bareDigits(raw) || nearDenied(text, denied, amountStart, amountEnd) {
					continue
				}
			}

			amount, ok := parseAmount(raw)
			if !ok || !e.bidRange.Contains(amount) {
				continue
			}

			set.add(domain.BidCandidate{
				Amount:     amount,
				BidderName: bidder,
				SourceSpan: strings.TrimSpace(text[loc[0]:loc[1]]),
				Confidence: p.rank,
			})
		}
	}
}

// nearDenied reports whether a denylisted word lies entirely within
// contextRadius of the figure.
func nearDenied(text string, denied [][]int, start, end int) bool {
	if len(denied) == 0 {
		return false
	}

	lo := start - contextRadius
	if lo < 0 {
		lo = 0
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	hi := end + contextRadius
	if hi > len(text) {
		hi = len(text)
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}

	for _, m := range denied {
		if m[0] >= lo && m[1] <= hi {
			return true
		}
	}
	return false
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil || !amount.IsPositive() {
		return decimal.Decimal{}, false
	}
	return amount, true
}

// isolatedFigure rejects matches that are a fragment of a longer number,
// e.g. the "345" in "12.345" or the "1" in "1,2345". A comma only joins
// numbers when it is followed by a full three-digit group, so "25,30,45"
// is three figures.
func isolatedFigure(text string, start, end int) bool {
	if start > 0 {
		prev := text[start-1]
		if isDigit(prev) {
			return false
		}
		if prev == '.' && start > 1 && isDigit(text[start-2]) {
			return false
		}
		if prev == ',' && start > 1 && isDigit(text[start-2]) && thousandsGroup(text[start:]) {
			return false
		}
	}
	if end < len(text) {
		next := text[end]
		if isDigit(next) {
			return false
		}
		if next == '.' && end+1 < len(text) && isDigit(text[end+1]) {
			return false
		}
		if next == ',' && thousandsGroup(text[end+1:]) {
			return false
		}
	}
	return true
}

// thousandsGroup reports whether s starts with exactly three digits.
func thousandsGroup(s string) bool {
	if len(s) < 3 || !isDigit(s[0]) || !isDigit(s[1]) || !isDigit(s[2]) {
		return false
	}
	return len(s) == 3 || !isDigit(s[3])
}

// standalone reports whether a bare figure is its own token: not glued to
// letters, a currency sign, a percent sign, or another number via / : -.
func standalone(text string, start, end int) bool {
	if start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(prev) || prev == '$' || prev == '_' {
			return false
		}
		if strings.ContainsRune("/:-", prev) && start > 1 && isDigit(text[start-2]) {
			return false
		}
	}
	if end < len(text) {
		next, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(next) || next == '%' || next == '_' {
			return false
		}
		if strings.ContainsRune("/:-", next) && end+1 < len(text) && isDigit(text[end+1]) {
			return false
		}
	}
	return true
}

// bareDigits limits bare figures to 2-4 digits before any cents.
func bareDigits(raw string) bool {
	whole := raw
	if i := strings.IndexByte(whole, '.'); i >= 0 {
		whole = whole[:i]
	}
	n := len(strings.ReplaceAll(whole, ",", ""))
	return n >= bareMinDigits && n <= bareMaxDigits
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isWordByte(b byte) bool {
	return isDigit(b) || b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// candidateSet keeps one candidate per amount, preferring the lowest rank
// and, within a rank, the first one seen.
type candidateSet struct {
	byAmount map[string]int
	items    []domain.BidCandidate
}

func newCandidateSet() *candidateSet {
	return &candidateSet{byAmount: make(map[string]int)}
}

func (s *candidateSet) add(c domain.BidCandidate) {
	key := c.Amount.StringFixed(2)
	if i, ok := s.byAmount[key]; ok {
		if c.Confidence < s.items[i].Confidence {
			s.items[i] = c
		}
		return
	}
	s.byAmount[key] = len(s.items)
	s.items = append(s.items, c)
}

func (s *candidateSet) sorted() []domain.BidCandidate {
	out := make([]domain.BidCandidate, len(s.items))
	copy(out, s.items)
	sort.SliceStable(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Confidence < out[j].Confidence
	})
	return out
}
