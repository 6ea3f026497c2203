package topiclock

import (
	"regexp"
	"strings"

	"redraft/internal/types"
)

var (
	bulletLine   = regexp.MustCompile(`^[-*•+]\s+\S`)
	numberedLine = regexp.MustCompile(`^\d{1,3}[.)]\s+\S`)
	headingLine  = regexp.MustCompile(`^(#{1,6}\s+\S|\*\*[^*]+\*\*:?$)`)
	lineMarker   = regexp.MustCompile(`^(?:#{1,6}\s+|[-*•+]\s+|\d{1,3}[.)]\s+)`)
)

// Structure thresholds: a structure applies when at least MinStructuredLines
// lines match it and they are at least StructuredLineRatio of non-empty lines.
const (
	MinStructuredLines  = 3
	StructuredLineRatio = 0.5
)

// LineKinds counts non-empty lines by structural kind.
type LineKinds struct {
	Total    int
	Bullet   int
	Numbered int
	Heading  int
}

// CountLines classifies every non-empty line of text.
func CountLines(text string) LineKinds {
	var k LineKinds
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k.Total++
		switch {
		case headingLine.MatchString(line):
			k.Heading++
		case bulletLine.MatchString(line):
			k.Bullet++
		case numberedLine.MatchString(line):
			k.Numbered++
		}
	}
	return k
}

func (k LineKinds) applies(n int) bool {
	return n >= MinStructuredLines && float64(n) >= StructuredLineRatio*float64(k.Total)
}

// DetectFormat classifies text as bullet, numbered, heading, mixed or paragraph.
func DetectFormat(text string) types.Format {
	k := CountLines(text)

	var qualified []types.Format
	if k.applies(k.Bullet) {
		qualified = append(qualified, types.FormatBullet)
	}
	if k.applies(k.Numbered) {
		qualified = append(qualified, types.FormatNumbered)
	}
	if k.applies(k.Heading) {
		qualified = append(qualified, types.FormatHeading)
	}

	switch len(qualified) {
	case 0:
	case 1:
		return qualified[0]
	default:
		return types.FormatMixed
	}

	kinds := 0
	for _, n := range []int{k.Bullet, k.Numbered, k.Heading} {
		if n > 0 {
			kinds++
		}
	}
	if kinds >= 2 && k.applies(k.Bullet+k.Numbered+k.Heading) {
		return types.FormatMixed
	}
	return types.FormatParagraph
}

// FormatsCompatible reports whether an output format satisfies the required one:
// equal formats, bullet and numbered, or either side mixed.
func FormatsCompatible(required, detected types.Format) bool {
	if required == "" || required == detected {
		return true
	}
	if required == types.FormatMixed || detected == types.FormatMixed {
		return true
	}
	pair := func(a, b types.Format) bool {
		return (required == a && detected == b) || (required == b && detected == a)
	}
	return pair(types.FormatBullet, types.FormatNumbered)
}

// StripMarker removes list and heading markers from the start of a line.
func StripMarker(line string) string {
	line = lineMarker.ReplaceAllString(strings.TrimSpace(line), "")
	if strings.HasPrefix(line, "**") {
		line = strings.TrimSuffix(strings.Trim(strings.TrimSuffix(line, ":"), "*"), ":")
	}
	return strings.TrimSpace(line)
}
