package perception

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"redraft/internal/logging"
	"redraft/internal/types"
)

// Resolution confidences, one per priority tier.
const (
	ConfidenceExplicit  = 1.0
	ConfidenceQuoted    = 0.95
	ConfidenceImplicit  = 0.8
	ConfidenceSingle    = 0.7
	ConfidenceAmbiguous = 0.5
)

// PreviewLength is the rune length of candidate previews.
const PreviewLength = 80

// quotePatterns capture text between the quote glyphs users paste.
var quotePatterns = mustAll(
	`"([^"]{5,})"`,
	`“([^”]{5,})”`,
	`‘([^’]{5,})’`,
	`«([^»]{5,})»`,
	`「([^」]{5,})」`,
	`'([^']{5,})'`,
)

// SourceResolver decides which prior assistant output a transform applies to.
type SourceResolver struct {
	// MinSourceLength is the rune count a prior output needs to be a valid source.
	MinSourceLength int
	// MaxCandidates bounds the candidates returned when the source is ambiguous.
	MaxCandidates int
}

// NewSourceResolver returns a resolver with the stock thresholds.
func NewSourceResolver() *SourceResolver {
	return &SourceResolver{MinSourceLength: 30, MaxCandidates: 5}
}

// IsValidSource reports whether an assistant message can serve as a source.
func (r *SourceResolver) IsValidSource(m types.Message) bool {
	if m.Role != types.RoleAssistant {
		return false
	}
	content := strings.TrimSpace(m.Content)
	if utf8.RuneCountInString(content) < r.MinSourceLength {
		return false
	}
	return !IsRefusal(content)
}

// Resolve picks the source for input. Priority, first match wins: explicit id,
// quoted text, implicit reference, ambiguity among several outputs, the single
// valid output, none.
func (r *SourceResolver) Resolve(input string, messages []types.Message, explicitSourceID string) types.SourceResolution {
	if explicitSourceID != "" {
		for _, m := range messages {
			if m.ID == explicitSourceID {
				logging.PerceptionDebug("source: explicit %s", m.ID)
				return types.SourceResolution{
					Status:          types.SourceExplicit,
					SourceMessageID: m.ID,
					SourceContent:   m.Content,
					Confidence:      ConfidenceExplicit,
				}
			}
		}
		logging.Get(logging.CategoryPerception).Warn("source: explicit id %s not in conversation, falling back to heuristics", explicitSourceID)
	}

	if m, ok := findQuotedSource(input, messages); ok {
		logging.PerceptionDebug("source: quoted match in %s", m.ID)
		return types.SourceResolution{
			Status:          types.SourceQuoted,
			SourceMessageID: m.ID,
			SourceContent:   m.Content,
			Confidence:      ConfidenceQuoted,
		}
	}

	valid := r.validSources(messages)

	if len(valid) > 0 && HasImplicitReference(input) {
		last := valid[len(valid)-1]
		logging.PerceptionDebug("source: implicit reference -> %s", last.ID)
		return types.SourceResolution{
			Status:          types.SourceImplicit,
			SourceMessageID: last.ID,
			SourceContent:   last.Content,
			Confidence:      ConfidenceImplicit,
		}
	}

	switch {
	case len(valid) > 1:
		res := types.SourceResolution{
			Status:     types.SourceAmbiguous,
			Confidence: ConfidenceAmbiguous,
		}
		for i := len(valid) - 1; i >= 0 && len(res.Candidates) < r.MaxCandidates; i-- {
			res.Candidates = append(res.Candidates, types.SourceCandidate{
				MessageID: valid[i].ID,
				Preview:   Preview(valid[i].Content, PreviewLength),
			})
		}
		logging.PerceptionDebug("source: ambiguous among %d outputs", len(valid))
		return res
	case len(valid) == 1:
		return types.SourceResolution{
			Status:          types.SourceImplicit,
			SourceMessageID: valid[0].ID,
			SourceContent:   valid[0].Content,
			Confidence:      ConfidenceSingle,
		}
	}

	logging.PerceptionDebug("source: none")
	return types.SourceResolution{Status: types.SourceNone}
}

func (r *SourceResolver) validSources(messages []types.Message) []types.Message {
	var valid []types.Message
	for _, m := range messages {
		if r.IsValidSource(m) {
			valid = append(valid, m)
		}
	}
	return valid
}

// findQuotedSource looks for a quoted fragment of input inside an assistant
// message, newest first. Comparison is NFC-normalized and case-insensitive.
func findQuotedSource(input string, messages []types.Message) (types.Message, bool) {
	quotes := extractQuotes(input)
	if len(quotes) == 0 {
		return types.Message{}, false
	}
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != types.RoleAssistant {
			continue
		}
		haystack := foldText(m.Content)
		for _, q := range quotes {
			if strings.Contains(haystack, q) {
				return m, true
			}
		}
	}
	return types.Message{}, false
}

func extractQuotes(input string) []string {
	var quotes []string
	for _, re := range quotePatterns {
		for _, sub := range re.FindAllStringSubmatch(input, -1) {
			if q := foldText(strings.TrimSpace(sub[1])); q != "" {
				quotes = append(quotes, q)
			}
		}
	}
	return quotes
}

var spaceRun = regexp.MustCompile(`\s+`)

// foldText NFC-normalizes, lower-cases and collapses whitespace.
func foldText(s string) string {
	s = norm.NFC.String(s)
	return spaceRun.ReplaceAllString(strings.ToLower(s), " ")
}

// Preview returns the first n runes of s on one line, with an ellipsis when cut.
func Preview(s string, n int) string {
	s = spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return leadingRunes(s, n) + "…"
}
