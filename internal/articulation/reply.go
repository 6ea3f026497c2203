package articulation

import (
	"encoding/json"
	"regexp"
	"strings"
)

// =============================================================================
// REPLY PROCESSOR - raw model reply -> clean candidate text
// =============================================================================
// Models wrap answers in code fences, JSON envelopes and chatty preambles.
// Every check downstream (refusal, meaningfulness, topic lock) runs on the
// cleaned text.

// Parse methods recorded on a Reply.
const (
	MethodPlain    = "plain"
	MethodJSON     = "json"
	MethodFenced   = "fenced"
	MethodPreamble = "preamble"
)

// Reply is a cleaned model reply.
type Reply struct {
	Content  string
	Method   string
	Warnings []string
	Raw      string
}

// ProcessorStats tracks how replies were cleaned.
type ProcessorStats struct {
	TotalProcessed int
	JSONUnwrapped  int
	FenceStripped  int
	PreambleCut    int
}

// ReplyProcessor cleans raw model replies.
type ReplyProcessor struct {
	stats ProcessorStats
}

// NewReplyProcessor creates a processor.
func NewReplyProcessor() *ReplyProcessor {
	return &ReplyProcessor{}
}

var (
	fencePattern    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n(.*?)\\n?```$")
	preamblePattern = regexp.MustCompile(`(?i)^(?:here is|here's|here are|sure|certainly|of course|okay|ok|dưới đây là|đây là|sau đây là|vâng|dạ|được rồi|bản (?:viết lại|rút gọn|mở rộng|chỉnh sửa|dịch))[^\n]{0,120}:\s*$`)
	wrapQuotes      = [][2]string{{`"`, `"`}, {"“", "”"}, {"«", "»"}}
)

// envelopeKeys are the JSON fields that may carry the answer text.
var envelopeKeys = []string{"content", "text", "output", "result", "answer"}

// Process cleans one raw reply. It never fails: an unrecognized shape is
// returned trimmed as plain text.
func (p *ReplyProcessor) Process(raw string) Reply {
	p.stats.TotalProcessed++
	r := Reply{Raw: raw, Method: MethodPlain, Warnings: []string{}}
	text := strings.TrimSpace(raw)

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
		r.Method = MethodFenced
		p.stats.FenceStripped++
	}

	if strings.HasPrefix(text, "{") {
		if content, ok := unwrapEnvelope(text); ok {
			text = strings.TrimSpace(content)
			r.Method = MethodJSON
			p.stats.JSONUnwrapped++
		} else {
			r.Warnings = append(r.Warnings, "reply looks like JSON but carries no content field")
		}
	}

	if first, rest, found := strings.Cut(text, "\n"); found && preamblePattern.MatchString(strings.TrimSpace(first)) {
		text = strings.TrimSpace(rest)
		r.Method = MethodPreamble
		p.stats.PreambleCut++
	}

	for _, q := range wrapQuotes {
		if strings.HasPrefix(text, q[0]) && strings.HasSuffix(text, q[1]) && len(text) > len(q[0])+len(q[1]) {
			inner := text[len(q[0]) : len(text)-len(q[1])]
			if !strings.ContainsAny(inner, q[0]+q[1]) {
				text = strings.TrimSpace(inner)
				r.Warnings = append(r.Warnings, "surrounding quotes removed")
			}
			break
		}
	}

	r.Content = text
	return r
}

// GetStats returns current processing statistics.
func (p *ReplyProcessor) GetStats() ProcessorStats {
	return p.stats
}

// unwrapEnvelope pulls the answer text out of a JSON object reply.
func unwrapEnvelope(s string) (string, bool) {
	obj := firstObject(s)
	if obj == "" {
		return "", false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return "", false
	}
	for _, key := range envelopeKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil && strings.TrimSpace(text) != "" {
			return text, true
		}
	}
	if data, ok := fields["data"]; ok {
		return unwrapEnvelope(string(data))
	}
	return "", false
}

// firstObject returns the first balanced top-level JSON object in s.
// Braces inside string literals are skipped.
func firstObject(s string) string {
	depth, start := 0, -1
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case c == '}' && depth > 0:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
