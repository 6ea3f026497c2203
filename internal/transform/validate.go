package transform

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"redraft/internal/articulation"
	"redraft/internal/perception"
	"redraft/internal/topiclock"
	"redraft/internal/types"
)

// Strategy selects which checks gate an action's output.
type Strategy string

const (
	// StrategyTopicOnly skips format compliance.
	StrategyTopicOnly Strategy = "topic_only"
	// StrategyLengthAware also requires the length to move past a threshold.
	StrategyLengthAware Strategy = "length_aware"
	// StrategyFull runs every check unmodified.
	StrategyFull Strategy = "full"
)

// Length thresholds relative to the source, in runes.
const (
	ShortenMaxRatio = 0.9
	ExpandMinRatio  = 1.1
)

// Meaningful-reply floor: max(MinMeaningfulRunes, MeaningfulSourceFrac * source).
const (
	MinMeaningfulRunes   = 20
	MeaningfulSourceFrac = 0.2
)

// StrategyFor returns the validation strategy of an action.
func StrategyFor(a types.ActionType) Strategy {
	switch a {
	case types.ActionRewrite, types.ActionChangeTone, types.ActionTranslate:
		return StrategyTopicOnly
	case types.ActionShorten, types.ActionExpand:
		return StrategyLengthAware
	default:
		return StrategyFull
	}
}

// Check is the outcome of validating one reply.
type Check struct {
	Passed      bool                        `json:"passed"`
	Recoverable bool                        `json:"recoverable"`
	Strategy    Strategy                    `json:"strategy"`
	TopicLock   topiclock.Validation        `json:"topic_lock"`
	Contract    articulation.ContractResult `json:"contract"`
	LengthRatio float64                     `json:"length_ratio"`
	Reasons     []string                    `json:"reasons"`
	Warnings    []string                    `json:"warnings"`
}

// CheckInput is what a reply is validated against.
type CheckInput struct {
	Action   types.ActionType
	Locked   *types.LockedContext
	Source   string
	Output   string
	Contract articulation.Contract
	// RequiredFormat overrides the source format when set (format conversion).
	RequiredFormat types.Format
}

// CheckOutput validates a reply with the action's strategy, then against the
// output contract. A contract LENGTH miss after a topic-lock pass is recoverable.
func CheckOutput(v *topiclock.Validator, in CheckInput) Check {
	locked := *in.Locked
	if in.RequiredFormat != "" {
		locked.RequiredFormat = in.RequiredFormat
	}

	res := Check{
		Strategy:    StrategyFor(in.Action),
		TopicLock:   v.Validate(&locked, in.Output),
		LengthRatio: lengthRatio(in.Source, in.Output),
		Reasons:     []string{},
		Warnings:    []string{},
	}
	tl := &res.TopicLock

	switch res.Strategy {
	case StrategyTopicOnly:
		tl.FormatCompliance.Passed = true
		tl.FormatCompliance.Score = 1
		tl.FormatCompliance.Details = "format not checked for this action"
	case StrategyLengthAware:
		if msg, ok := lengthCrossed(in.Action, res.LengthRatio); !ok {
			tl.FormatCompliance.Passed = false
			tl.FormatCompliance.Score = 0
			tl.FormatCompliance.Details = msg
		}
	}
	tl.OverallPassed = tl.EntityPresence.Passed && tl.TopicDrift.Passed && tl.FormatCompliance.Passed

	res.Contract = articulation.ValidateContract(in.Output, in.Contract)
	for _, viol := range res.Contract.Violations {
		if viol.Severity == articulation.SeveritySoft {
			res.Warnings = append(res.Warnings, viol.Message)
		}
	}

	if !tl.OverallPassed {
		res.Reasons = append(res.Reasons, failureReasons(tl)...)
		res.Recoverable = v.IsRecoverable(*tl)
	}
	if !res.Contract.Passed {
		for _, viol := range res.Contract.HardViolations() {
			res.Reasons = append(res.Reasons, viol.Message)
		}
		if tl.OverallPassed {
			res.Recoverable = true
		}
	}
	res.Passed = tl.OverallPassed && res.Contract.Passed
	return res
}

func lengthRatio(source, output string) float64 {
	src := utf8.RuneCountInString(strings.TrimSpace(source))
	if src == 0 {
		return 0
	}
	return float64(utf8.RuneCountInString(strings.TrimSpace(output))) / float64(src)
}

func lengthCrossed(a types.ActionType, ratio float64) (string, bool) {
	switch a {
	case types.ActionShorten:
		if ratio >= ShortenMaxRatio {
			return fmt.Sprintf("output is %.0f%% of the source, must be under %.0f%%", ratio*100, ShortenMaxRatio*100), false
		}
	case types.ActionExpand:
		if ratio <= ExpandMinRatio {
			return fmt.Sprintf("output is %.0f%% of the source, must be over %.0f%%", ratio*100, ExpandMinRatio*100), false
		}
	}
	return "", true
}

func failureReasons(tl *topiclock.Validation) []string {
	var out []string
	if !tl.EntityPresence.Passed {
		out = append(out, tl.EntityPresence.Details)
	}
	if !tl.TopicDrift.Passed {
		out = append(out, "topic drift: "+tl.TopicDrift.Details)
	}
	if !tl.FormatCompliance.Passed {
		out = append(out, "format: "+tl.FormatCompliance.Details)
	}
	return out
}

// ReplyKind is how a raw reply is triaged before validation.
type ReplyKind string

const (
	ReplyUsable      ReplyKind = "usable"
	ReplyRefusal     ReplyKind = "refusal"
	ReplyMeaningless ReplyKind = "meaningless"
)

// Triage classifies a sanitized reply. Refusals and meaningless replies
// escalate without validation.
func Triage(reply, source string) ReplyKind {
	if perception.IsRefusal(reply) {
		return ReplyRefusal
	}
	if !IsMeaningful(reply, source) {
		return ReplyMeaningless
	}
	return ReplyUsable
}

// IsMeaningful reports whether a reply is long enough relative to the source
// and is not the source echoed back.
func IsMeaningful(reply, source string) bool {
	floor := MinMeaningfulRunes
	if frac := int(MeaningfulSourceFrac * float64(utf8.RuneCountInString(strings.TrimSpace(source)))); frac > floor {
		floor = frac
	}
	if utf8.RuneCountInString(strings.TrimSpace(reply)) < floor {
		return false
	}
	return collapse(reply) != collapse(source)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
