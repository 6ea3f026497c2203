package topiclock

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	wordPattern    = regexp.MustCompile(`[\p{L}\p{N}]+`)
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
)

// Fold NFC-normalizes and lower-cases text so composed and decomposed
// Vietnamese diacritics compare equal.
func Fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// Words returns the folded word tokens of s in order.
func Words(s string) []string {
	return wordPattern.FindAllString(Fold(s), -1)
}

// TokenSet returns the distinct folded tokens of s with at least minRunes runes.
func TokenSet(s string, minRunes int) map[string]bool {
	set := make(map[string]bool)
	for _, w := range Words(s) {
		if utf8.RuneCountInString(w) >= minRunes {
			set[w] = true
		}
	}
	return set
}

// WordCount counts whitespace-separated words that contain a letter or digit.
func WordCount(s string) int {
	n := 0
	for _, f := range strings.Fields(s) {
		if strings.IndexFunc(f, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			n++
		}
	}
	return n
}

func isNumeric(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return w != ""
}

// SplitSentences breaks text into trimmed sentences. Line breaks always end a
// sentence; '.', '!', '?' and '…' end one when followed by space or end of text.
func SplitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '…' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return out
}

// Paragraphs splits text on blank lines.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
