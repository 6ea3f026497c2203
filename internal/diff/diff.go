// Package diff compares a source draft with its transformed version using the
// sergi/go-diff library. Prose is diffed word by word; lists line by line.
package diff

import (
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the kind of a diff segment.
type Op int

const (
	OpEqual  Op = iota // Present in both versions
	OpInsert           // Only in the revision
	OpDelete           // Only in the source
)

// Segment is a run of text sharing one Op.
type Segment struct {
	Op   Op
	Text string
}

// Revision is the diff between a source and its rewrite.
type Revision struct {
	Segments []Segment
	Stats    Stats
}

// Stats counts words per Op.
type Stats struct {
	Kept     int `json:"kept"`
	Inserted int `json:"inserted"`
	Deleted  int `json:"deleted"`
}

// Changed reports whether the revision differs from its source at all.
func (s Stats) Changed() bool { return s.Inserted > 0 || s.Deleted > 0 }

// Engine computes revisions and caches them by input pair.
type Engine struct {
	dmp   *diffmatchpatch.DiffMatchPatch
	cache sync.Map
}

type cacheKey struct {
	before, after uint64
	lines         bool
}

// maxTokens bounds the token vocabulary of a word diff. Past it the engine
// falls back to a character diff.
const maxTokens = 0xFFFD

// NewEngine creates a diff engine.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp}
}

// DefaultEngine is shared by the package-level helpers.
var DefaultEngine = NewEngine()

// Words diffs before and after at word granularity.
func (e *Engine) Words(before, after string) *Revision {
	key := cacheKey{before: hash(before), after: hash(after)}
	if cached, ok := e.cache.Load(key); ok {
		return cached.(*Revision)
	}

	var diffs []diffmatchpatch.Diff
	a, b, vocab, ok := tokensToRunes(before, after)
	if ok {
		diffs = e.dmp.DiffMainRunes(a, b, false)
		diffs = e.dmp.DiffCleanupSemantic(diffs)
		diffs = runesToTokens(diffs, vocab)
	} else {
		diffs = e.dmp.DiffMain(before, after, false)
		diffs = e.dmp.DiffCleanupSemantic(diffs)
	}

	rev := build(diffs)
	e.cache.Store(key, rev)
	return rev
}

// Lines diffs before and after at line granularity.
func (e *Engine) Lines(before, after string) *Revision {
	key := cacheKey{before: hash(before), after: hash(after), lines: true}
	if cached, ok := e.cache.Load(key); ok {
		return cached.(*Revision)
	}

	a, b, lineArray := e.dmp.DiffLinesToChars(before, after)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	rev := build(diffs)
	e.cache.Store(key, rev)
	return rev
}

// ClearCache drops all cached revisions.
func (e *Engine) ClearCache() {
	e.cache.Range(func(k, _ any) bool {
		e.cache.Delete(k)
		return true
	})
}

// Words is a convenience wrapper over DefaultEngine.
func Words(before, after string) *Revision { return DefaultEngine.Words(before, after) }

// Lines is a convenience wrapper over DefaultEngine.
func Lines(before, after string) *Revision { return DefaultEngine.Lines(before, after) }

func build(diffs []diffmatchpatch.Diff) *Revision {
	rev := &Revision{Segments: make([]Segment, 0, len(diffs))}
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		seg := Segment{Text: d.Text}
		n := len(strings.Fields(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			seg.Op = OpInsert
			rev.Stats.Inserted += n
		case diffmatchpatch.DiffDelete:
			seg.Op = OpDelete
			rev.Stats.Deleted += n
		default:
			seg.Op = OpEqual
			rev.Stats.Kept += n
		}
		rev.Segments = append(rev.Segments, seg)
	}
	return rev
}

// tokenize splits s into alternating runs of space and non-space.
func tokenize(s string) []string {
	var out []string
	start := 0
	var inSpace bool
	for i, r := range s {
		sp := unicode.IsSpace(r)
		if i > start && sp != inSpace {
			out = append(out, s[start:i])
			start = i
		}
		inSpace = sp
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// tokensToRunes encodes each distinct token as one rune in a private-use
// plane, the word-level analogue of DiffLinesToChars.
func tokensToRunes(before, after string) ([]rune, []rune, []string, bool) {
	index := make(map[string]rune)
	var vocab []string
	encode := func(s string) ([]rune, bool) {
		toks := tokenize(s)
		out := make([]rune, 0, len(toks))
		for _, t := range toks {
			r, ok := index[t]
			if !ok {
				if len(vocab) >= maxTokens {
					return nil, false
				}
				r = rune(0xF0000 + len(vocab))
				index[t] = r
				vocab = append(vocab, t)
			}
			out = append(out, r)
		}
		return out, true
	}
	a, ok := encode(before)
	if !ok {
		return nil, nil, nil, false
	}
	b, ok := encode(after)
	if !ok {
		return nil, nil, nil, false
	}
	return a, b, vocab, true
}

func runesToTokens(diffs []diffmatchpatch.Diff, vocab []string) []diffmatchpatch.Diff {
	out := make([]diffmatchpatch.Diff, 0, len(diffs))
	for _, d := range diffs {
		var sb strings.Builder
		for _, r := range d.Text {
			i := int(r - 0xF0000)
			if i >= 0 && i < len(vocab) {
				sb.WriteString(vocab[i])
			}
		}
		out = append(out, diffmatchpatch.Diff{Type: d.Type, Text: sb.String()})
	}
	return out
}

func hash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
