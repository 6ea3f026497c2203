package topiclock

import (
	"fmt"
	"strings"

	"redraft/internal/logging"
	"redraft/internal/types"
)

const (
	// DefaultDriftThreshold is the keyword overlap an output needs to stay on topic.
	DefaultDriftThreshold = 0.5
	// DefaultRecoverableDrift is the overlap above which an off-topic output is a near miss.
	DefaultRecoverableDrift = 0.3
	// DriftKeywords is how many of the source keywords the drift check compares.
	DriftKeywords = 15
	// DriftTokenRunes is the minimum token length for the drift check.
	DriftTokenRunes = 3
)

// CheckResult is the common part of every topic-lock check.
type CheckResult struct {
	Passed  bool    `json:"passed"`
	Score   float64 `json:"score"`
	Details string  `json:"details"`
}

// EntityPresence reports which critical entities survived.
type EntityPresence struct {
	CheckResult
	Present []string `json:"present_entities"`
	Missing []string `json:"missing_entities"`
}

// TopicDrift reports keyword overlap between source and output.
type TopicDrift struct {
	CheckResult
	KeywordOverlap float64  `json:"keyword_overlap"`
	Matched        []string `json:"matched_keywords"`
	Drifted        []string `json:"drifted_keywords"`
}

// FormatCompliance reports the structural comparison.
type FormatCompliance struct {
	CheckResult
	Expected types.Format `json:"expected_format"`
	Detected types.Format `json:"detected_format"`
}

// Validation is the outcome of scoring one output against a locked context.
type Validation struct {
	OverallPassed    bool             `json:"overall_passed"`
	EntityPresence   EntityPresence   `json:"entity_presence"`
	TopicDrift       TopicDrift       `json:"topic_drift"`
	FormatCompliance FormatCompliance `json:"format_compliance"`
}

// Validator scores outputs against locked contexts.
type Validator struct {
	DriftThreshold   float64
	RecoverableDrift float64
}

// NewValidator returns a validator with the default thresholds.
func NewValidator() *Validator {
	return &Validator{
		DriftThreshold:   DefaultDriftThreshold,
		RecoverableDrift: DefaultRecoverableDrift,
	}
}

// Validate runs the entity, drift and format checks. Overall pass needs all three.
func (v *Validator) Validate(ctx *types.LockedContext, output string) Validation {
	res := Validation{
		EntityPresence:   v.CheckEntities(ctx, output),
		TopicDrift:       v.CheckDrift(ctx, output),
		FormatCompliance: v.CheckFormat(ctx.RequiredFormat, output),
	}
	res.OverallPassed = res.EntityPresence.Passed && res.TopicDrift.Passed && res.FormatCompliance.Passed

	logging.ContextDebug("topic lock: passed=%v entities=%.2f drift=%.2f format=%v(%s->%s)",
		res.OverallPassed, res.EntityPresence.Score, res.TopicDrift.Score,
		res.FormatCompliance.Passed, res.FormatCompliance.Expected, res.FormatCompliance.Detected)
	return res
}

// CheckEntities matches every critical entity case-insensitively. Passes only
// when none is missing.
func (v *Validator) CheckEntities(ctx *types.LockedContext, output string) EntityPresence {
	critical := ctx.CriticalEntities()
	res := EntityPresence{Present: []string{}, Missing: []string{}}
	if len(critical) == 0 {
		res.CheckResult = CheckResult{Passed: true, Score: 1, Details: "no critical entities"}
		return res
	}

	folded := Fold(output)
	for _, e := range critical {
		if strings.Contains(folded, Fold(e.Value)) {
			res.Present = append(res.Present, e.Value)
		} else {
			res.Missing = append(res.Missing, e.Value)
		}
	}
	res.Score = float64(len(res.Present)) / float64(len(critical))
	res.Passed = len(res.Missing) == 0
	if res.Passed {
		res.Details = fmt.Sprintf("all %d critical entities present", len(critical))
	} else {
		res.Details = fmt.Sprintf("missing %d of %d critical entities: %s",
			len(res.Missing), len(critical), strings.Join(res.Missing, ", "))
	}
	return res
}

// CheckDrift compares the top source keywords against output tokens.
func (v *Validator) CheckDrift(ctx *types.LockedContext, output string) TopicDrift {
	res := TopicDrift{Matched: []string{}, Drifted: []string{}}

	keywords := ctx.TopicKeywords
	if len(keywords) > DriftKeywords {
		keywords = keywords[:DriftKeywords]
	}
	var reference []string
	seen := make(map[string]bool)
	for _, kw := range keywords {
		for tok := range TokenSet(kw, DriftTokenRunes) {
			if !seen[tok] {
				seen[tok] = true
				reference = append(reference, tok)
			}
		}
	}
	if len(reference) == 0 {
		res.CheckResult = CheckResult{Passed: true, Score: 1, Details: "no topic keywords"}
		res.KeywordOverlap = 1
		return res
	}

	outTokens := TokenSet(output, DriftTokenRunes)
	for _, tok := range reference {
		if outTokens[tok] {
			res.Matched = append(res.Matched, tok)
		} else {
			res.Drifted = append(res.Drifted, tok)
		}
	}
	res.KeywordOverlap = float64(len(res.Matched)) / float64(len(reference))
	res.Score = res.KeywordOverlap
	res.Passed = res.KeywordOverlap >= v.DriftThreshold
	res.Details = fmt.Sprintf("%d/%d topic keywords kept", len(res.Matched), len(reference))
	return res
}

// CheckFormat compares the detected output format with the required one.
func (v *Validator) CheckFormat(required types.Format, output string) FormatCompliance {
	detected := DetectFormat(output)
	res := FormatCompliance{Expected: required, Detected: detected}
	if FormatsCompatible(required, detected) {
		res.CheckResult = CheckResult{Passed: true, Score: 1, Details: "format compatible"}
	} else {
		res.CheckResult = CheckResult{
			Passed:  false,
			Details: fmt.Sprintf("expected %s, got %s", required, detected),
		}
	}
	return res
}

// IsRecoverable reports whether a stricter attempt could plausibly fix the
// failure: entity or format misses, or a near-miss drift score.
func (v *Validator) IsRecoverable(res Validation) bool {
	if !res.EntityPresence.Passed || !res.FormatCompliance.Passed {
		return true
	}
	return res.TopicDrift.Score >= v.RecoverableDrift
}

// ValidateTopicLock scores output with the default thresholds.
func ValidateTopicLock(ctx *types.LockedContext, output string) Validation {
	return NewValidator().Validate(ctx, output)
}
