package diff

import (
	"fmt"
	"strings"
)

// Inline renders a word revision wdiff style: [-removed-]{+added+}.
func (r *Revision) Inline() string {
	var sb strings.Builder
	for _, s := range r.Segments {
		switch s.Op {
		case OpInsert:
			writeMarked(&sb, s.Text, "{+", "+}")
		case OpDelete:
			writeMarked(&sb, s.Text, "[-", "-]")
		default:
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}

// writeMarked wraps text in markers, keeping surrounding whitespace outside.
func writeMarked(sb *strings.Builder, text, open, closing string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		sb.WriteString(text)
		return
	}
	lead := text[:strings.Index(text, trimmed)]
	trail := text[len(lead)+len(trimmed):]
	sb.WriteString(lead)
	sb.WriteString(open)
	sb.WriteString(trimmed)
	sb.WriteString(closing)
	sb.WriteString(trail)
}

// Unified renders a line revision with -, + and space prefixes.
func (r *Revision) Unified() string {
	var sb strings.Builder
	for _, s := range r.Segments {
		prefix := "  "
		switch s.Op {
		case OpInsert:
			prefix = "+ "
		case OpDelete:
			prefix = "- "
		}
		for _, line := range strings.Split(strings.TrimSuffix(s.Text, "\n"), "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Summary is a one-line description of the stats.
func (s Stats) Summary() string {
	if !s.Changed() {
		return "no changes"
	}
	return fmt.Sprintf("%d words kept, %d added, %d removed", s.Kept, s.Inserted, s.Deleted)
}
