package perception

import (
	"regexp"
	"sort"
	"strings"

	"redraft/internal/logging"
	"redraft/internal/types"
)

// DefaultConfidence is assigned when no pattern matches.
const DefaultConfidence = 0.5

// ImplicitReferenceBoost is added to transform matches that also point at a
// prior output ("bài này", "that one").
const ImplicitReferenceBoost = 0.1

type actionMatch struct {
	order   int
	pattern ActionPattern
	signals []string
}

// ClassifyAction maps free text to an action intent.
//
// Matches are ranked by weight, then by number of matched signals, then by
// table order. Unmatched input falls through to the Unclassified policy:
// CREATE_CONTENT at DefaultConfidence with no signals.
func ClassifyAction(input string) types.ActionClassification {
	text := normalizeInput(input)

	var matches []actionMatch
	for i, entry := range ActionPatterns {
		if signals := collectSignals(text, entry.Patterns); len(signals) > 0 {
			matches = append(matches, actionMatch{order: i, pattern: entry, signals: signals})
		}
	}

	if len(matches) == 0 {
		logging.PerceptionDebug("classify: no pattern matched, applying default policy")
		return types.ActionClassification{
			Type:           types.ActionCreateContent,
			Category:       types.CategoryGeneration,
			Confidence:     DefaultConfidence,
			Signals:        []string{},
			RequiresSource: false,
			Unclassified:   true,
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.pattern.Weight != b.pattern.Weight {
			return a.pattern.Weight > b.pattern.Weight
		}
		if len(a.signals) != len(b.signals) {
			return len(a.signals) > len(b.signals)
		}
		return a.order < b.order
	})

	best := matches[0]
	category := types.CategoryOf(best.pattern.Action)
	confidence := best.pattern.Weight
	if category == types.CategoryTransform && HasImplicitReference(text) {
		confidence += ImplicitReferenceBoost
		if confidence > 1.0 {
			confidence = 1.0
		}
	}

	result := types.ActionClassification{
		Type:           best.pattern.Action,
		Category:       category,
		Confidence:     confidence,
		Signals:        best.signals,
		RequiresSource: types.RequiresSource(best.pattern.Action),
	}
	if category == types.CategoryTransform {
		result.TransformMode = DetectTransformMode(text)
	}

	logging.PerceptionDebug("classify: %s (%.2f) signals=%v mode=%s",
		result.Type, result.Confidence, result.Signals, result.TransformMode)
	return result
}

// HasImplicitReference reports whether the text refers to "the previous output".
func HasImplicitReference(input string) bool {
	text := normalizeInput(input)
	for _, re := range ImplicitReferencePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// DetectTransformMode separates a bare operation from one carrying a directive.
// One strong directive match is enough; weak directives need
// WeakDirectiveThreshold matches in total.
func DetectTransformMode(input string) types.TransformMode {
	text := normalizeInput(input)
	for _, re := range StrongDirectivePatterns {
		if re.MatchString(text) {
			return types.DirectedTransform
		}
	}

	weak := 0
	for _, re := range WeakDirectivePatterns {
		weak += len(re.FindAllStringIndex(text, -1))
	}
	if weak >= WeakDirectiveThreshold {
		return types.DirectedTransform
	}
	return types.PureTransform
}

// collectSignals returns every distinct literal substring matched by the patterns.
func collectSignals(text string, patterns []*regexp.Regexp) []string {
	var signals []string
	seen := make(map[string]bool)
	for _, re := range patterns {
		for _, m := range re.FindAllString(text, -1) {
			m = strings.TrimSpace(m)
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			signals = append(signals, m)
		}
	}
	return signals
}

func normalizeInput(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}
