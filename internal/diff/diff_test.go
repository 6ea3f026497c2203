package diff

import (
	"strings"
	"testing"
)

func TestWords_Replacement(t *testing.T) {
	before := "Giảm 30% cho mọi đồ uống size L."
	after := "Giảm 30% cho toàn bộ đồ uống size L."

	rev := NewEngine().Words(before, after)

	got := rev.Inline()
	want := "Giảm 30% cho [-mọi-]{+toàn bộ+} đồ uống size L."
	if got != want {
		t.Errorf("Inline() = %q, want %q", got, want)
	}
	if rev.Stats.Deleted != 1 || rev.Stats.Inserted != 2 {
		t.Errorf("unexpected stats: %+v", rev.Stats)
	}
	if rev.Stats.Kept != 7 {
		t.Errorf("expected 7 kept words, got %d", rev.Stats.Kept)
	}
}

func TestWords_Identical(t *testing.T) {
	rev := NewEngine().Words("same text here", "same text here")
	if rev.Stats.Changed() {
		t.Errorf("identical input should not change: %+v", rev.Stats)
	}
	if rev.Stats.Summary() != "no changes" {
		t.Errorf("unexpected summary %q", rev.Stats.Summary())
	}
	if rev.Inline() != "same text here" {
		t.Errorf("unexpected inline %q", rev.Inline())
	}
}

func TestWords_WholeWordsOnly(t *testing.T) {
	// A character diff would match the shared "coffee" prefix.
	rev := NewEngine().Words("coffee", "coffeehouse")
	got := rev.Inline()
	if got != "[-coffee-]{+coffeehouse+}" {
		t.Errorf("expected whole-word replacement, got %q", got)
	}
}

func TestWords_Appended(t *testing.T) {
	rev := Words("Open at 7am.", "Open at 7am. Free wifi.")
	if rev.Stats.Inserted != 2 || rev.Stats.Deleted != 0 {
		t.Errorf("unexpected stats: %+v", rev.Stats)
	}
	if !strings.HasSuffix(rev.Inline(), "{+Free wifi.+}") {
		t.Errorf("unexpected inline %q", rev.Inline())
	}
}

func TestWords_Cached(t *testing.T) {
	e := NewEngine()
	first := e.Words("a b c", "a c")
	second := e.Words("a b c", "a c")
	if first != second {
		t.Error("expected cached revision to be reused")
	}
	e.ClearCache()
	if third := e.Words("a b c", "a c"); third == first {
		t.Error("expected a fresh revision after ClearCache")
	}
}

func TestLines_Unified(t *testing.T) {
	before := "- 30% off all drinks\n- Open at 7am\n- Free wifi"
	after := "- 30% off all drinks\n- Free wifi"

	rev := Lines(before, after)
	got := rev.Unified()
	want := "  - 30% off all drinks\n- - Open at 7am\n  - Free wifi\n"
	if got != want {
		t.Errorf("Unified() =\n%s\nwant\n%s", got, want)
	}
	if rev.Stats.Deleted != 4 {
		t.Errorf("expected 4 deleted words, got %d", rev.Stats.Deleted)
	}
}

func TestLinesAndWordsCacheSeparately(t *testing.T) {
	e := NewEngine()
	w := e.Words("x\ny", "x\nz")
	l := e.Lines("x\ny", "x\nz")
	if w == l {
		t.Error("word and line revisions must not share a cache entry")
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("  hai  từ\n")
	want := []string{"  ", "hai", "  ", "từ", "\n"}
	if len(got) != len(want) {
		t.Fatalf("tokenize = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStatsSummary(t *testing.T) {
	s := Stats{Kept: 3, Inserted: 2, Deleted: 1}
	if s.Summary() != "3 words kept, 2 added, 1 removed" {
		t.Errorf("unexpected summary %q", s.Summary())
	}
}
