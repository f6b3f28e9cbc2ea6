package extractor

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"opal-bid-monitor/internal/domain"
)

const maxLabelRunes = 80

var strictPolicy = bluemonday.StrictPolicy()

// blockElements break the visible text onto a new line.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "nav": true, "ol": true, "p": true,
	"pre": true, "section": true, "table": true, "tr": true, "ul": true,
}

// VisibleText flattens an HTML page into the text a reader would see.
// Block elements start a new line; inline text is joined with spaces.
// Scripts, styles and templates are dropped.
func VisibleText(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return CleanText(page)
	}
	doc.Find("script, style, noscript, template, head").Remove()

	var w lineWriter
	w.collect(doc.Selection)
	w.flush()
	return strings.Join(w.lines, "\n")
}

type lineWriter struct {
	lines []string
	words []string
}

func (w *lineWriter) collect(s *goquery.Selection) {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		switch name := goquery.NodeName(child); {
		case name == "#text":
			w.words = append(w.words, strings.Fields(child.Text())...)
		case name == "#comment":
		case blockElements[name]:
			w.flush()
			w.collect(child)
			w.flush()
		default:
			w.collect(child)
		}
	})
}

func (w *lineWriter) flush() {
	if len(w.words) > 0 {
		w.lines = append(w.lines, strings.Join(w.words, " "))
		w.words = nil
	}
}

// CleanText strips markup from user-supplied text and collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(strictPolicy.Sanitize(s))), " ")
}

// CleanLabel turns an author field into a short plain-text bidder label,
// defaulting to domain.UnknownBidder.
func CleanLabel(s string) string {
	label := CleanText(s)
	if label == "" {
		return domain.UnknownBidder
	}
	if utf8.RuneCountInString(label) > maxLabelRunes {
		label = strings.TrimSpace(string([]rune(label)[:maxLabelRunes]))
	}
	return label
}
