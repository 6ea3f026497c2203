package topiclock

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"redraft/internal/logging"
	"redraft/internal/types"
)

const (
	// MaxSummaryLength caps the topic summary in runes.
	MaxSummaryLength = 150
	// MaxKeywords is how many keywords a locked context keeps.
	MaxKeywords = 20
	// MaxMustKeep bounds the must-keep list.
	MaxMustKeep = 5
	// minKeywordRunes drops single-rune tokens from keywords.
	minKeywordRunes = 2
)

// Extractor builds locked contexts. Now is injectable for tests.
type Extractor struct {
	Now func() time.Time
}

// NewExtractor returns an extractor using the wall clock.
func NewExtractor() *Extractor {
	return &Extractor{Now: time.Now}
}

// Extract builds the locked context of a source text. It is called once per
// transform attempt on the current source; results are never reused for a
// different text.
func (e *Extractor) Extract(source, sourceMessageID string) *types.LockedContext {
	timer := logging.StartTimer(logging.CategoryContext, "extract")
	defer timer.Stop()

	ctx := &types.LockedContext{
		Entities:        ExtractEntities(source),
		TopicSummary:    TopicSummary(source),
		TopicKeywords:   Keywords(source, MaxKeywords),
		RequiredFormat:  DetectFormat(source),
		MustKeep:        MustKeep(source),
		SourceMessageID: sourceMessageID,
		ExtractedAt:     e.Now(),
	}
	if ctx.Entities == nil {
		ctx.Entities = []types.LockedEntity{}
	}

	logging.ContextDebug("extract %s: %d entities (%d critical), %d keywords, format=%s, must_keep=%d",
		sourceMessageID, len(ctx.Entities), len(ctx.CriticalEntities()),
		len(ctx.TopicKeywords), ctx.RequiredFormat, len(ctx.MustKeep))
	return ctx
}

// Extract builds a locked context with the wall clock.
func Extract(source, sourceMessageID string) *types.LockedContext {
	return NewExtractor().Extract(source, sourceMessageID)
}

// TopicSummary is the first sentence of the first paragraph, capped at
// MaxSummaryLength runes.
func TopicSummary(source string) string {
	paras := Paragraphs(source)
	if len(paras) == 0 {
		return ""
	}
	sentences := SplitSentences(paras[0])
	if len(sentences) == 0 {
		return ""
	}
	return truncateRunes(StripMarker(sentences[0]), MaxSummaryLength)
}

// Keywords returns the top n folded tokens by frequency after stop-word
// removal. Ties keep first-occurrence order.
func Keywords(source string, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, w := range Words(source) {
		if utf8.RuneCountInString(w) < minKeywordRunes || isNumeric(w) || stopWords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	if order == nil {
		return []string{}
	}
	return order
}

// MustKeep returns up to MaxMustKeep headings or importance sentences in
// source order.
func MustKeep(source string) []string {
	var out []string
	seen := make(map[string]bool)
	push := func(s string) bool {
		if s == "" || seen[s] {
			return len(out) < MaxMustKeep
		}
		seen[s] = true
		out = append(out, s)
		return len(out) < MaxMustKeep
	}

	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if headingLine.MatchString(trimmed) {
			if !push(StripMarker(trimmed)) {
				return out
			}
			continue
		}
		for _, sentence := range SplitSentences(trimmed) {
			if hasImportanceWord(sentence) {
				if !push(StripMarker(sentence)) {
					return out
				}
			}
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

func hasImportanceWord(sentence string) bool {
	folded := Fold(sentence)
	for _, w := range importanceWords {
		if strings.Contains(folded, w) {
			return true
		}
	}
	return false
}
