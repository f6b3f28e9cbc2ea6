package extractor

import (
	"opal-bid-monitor/internal/domain"
)

// ExtractFromComments scans each comment on its own and attributes its
// candidates to the comment's author. When two comments mention the same
// amount, the more explicit mention wins; on equal rank the earlier comment
// keeps it.
func (e *Extractor) ExtractFromComments(comments []domain.Comment) []domain.BidCandidate {
	set := newCandidateSet()
	for _, comment := range comments {
		e.scan(CleanText(comment.Text), CleanLabel(comment.Author), set)
	}
	return set.sorted()
}

// ExtractFromComments scans comments with the default range and denylist.
func ExtractFromComments(comments []domain.Comment) []domain.BidCandidate {
	return defaultExtractor.ExtractFromComments(comments)
}
