package perception

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redraft/internal/types"
)

const (
	draftOne = "Ưu đãi tháng 10: giảm 30% toàn bộ menu cà phê tại quán, áp dụng đến hết 31/10."
	draftTwo = "Bộ sưu tập mùa thu của chúng tôi đã lên kệ với 12 mẫu áo khoác mới, giá từ 499.000đ."
)

func conversation() []types.Message {
	return []types.Message{
		{ID: "u1", Role: types.RoleUser, Content: "Viết bài khuyến mãi cà phê"},
		{ID: "a1", Role: types.RoleAssistant, Content: draftOne},
		{ID: "u2", Role: types.RoleUser, Content: "Viết bài về bộ sưu tập mùa thu"},
		{ID: "a2", Role: types.RoleAssistant, Content: draftTwo},
	}
}

func TestResolve_Ambiguous(t *testing.T) {
	r := NewSourceResolver()
	got := r.Resolve("viết ngắn hơn", conversation(), "")

	want := types.SourceResolution{
		Status:     types.SourceAmbiguous,
		Confidence: ConfidenceAmbiguous,
		Candidates: []types.SourceCandidate{
			{MessageID: "a2", Preview: Preview(draftTwo, PreviewLength)},
			{MessageID: "a1", Preview: Preview(draftOne, PreviewLength)},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, got.Resolved())
}

func TestResolve_CandidatesCapped(t *testing.T) {
	r := NewSourceResolver()
	var msgs []types.Message
	for i := 0; i < 8; i++ {
		msgs = append(msgs, types.Message{
			ID:      string(rune('a' + i)),
			Role:    types.RoleAssistant,
			Content: draftOne,
		})
	}
	got := r.Resolve("viết ngắn hơn", msgs, "")
	require.Equal(t, types.SourceAmbiguous, got.Status)
	require.Len(t, got.Candidates, 5)
	assert.Equal(t, "h", got.Candidates[0].MessageID)
	assert.Equal(t, "d", got.Candidates[4].MessageID)
}

func TestResolve_Explicit(t *testing.T) {
	r := NewSourceResolver()
	msgs := append(conversation(), types.Message{ID: "a3", Role: types.RoleAssistant, Content: "Xin lỗi."})

	// Explicit choice is trusted even when the message fails the validity filter.
	got := r.Resolve("viết lại", msgs, "a3")
	assert.Equal(t, types.SourceExplicit, got.Status)
	assert.Equal(t, "a3", got.SourceMessageID)
	assert.Equal(t, ConfidenceExplicit, got.Confidence)

	// Unknown ids fall through to heuristics.
	got = r.Resolve("viết lại bài này", msgs, "missing")
	assert.Equal(t, types.SourceImplicit, got.Status)
	assert.Equal(t, "a2", got.SourceMessageID)
}

func TestResolve_Quoted(t *testing.T) {
	r := NewSourceResolver()
	for _, input := range []string{
		`rút gọn bài có câu "giảm 30% toàn bộ menu"`,
		"rút gọn bài có câu “GIẢM 30% toàn bộ menu”",
		"rút gọn «giảm 30%   toàn bộ menu»",
	} {
		got := r.Resolve(input, conversation(), "")
		assert.Equal(t, types.SourceQuoted, got.Status, input)
		assert.Equal(t, "a1", got.SourceMessageID, input)
		assert.Equal(t, ConfidenceQuoted, got.Confidence, input)
	}

	// A quote that appears nowhere does not resolve.
	got := r.Resolve(`rút gọn "không có trong bài nào"`, conversation(), "")
	assert.Equal(t, types.SourceAmbiguous, got.Status)
}

func TestResolve_ImplicitAndSingle(t *testing.T) {
	r := NewSourceResolver()

	got := r.Resolve("rút gọn bài trên", conversation(), "")
	assert.Equal(t, types.SourceImplicit, got.Status)
	assert.Equal(t, "a2", got.SourceMessageID)
	assert.Equal(t, ConfidenceImplicit, got.Confidence)

	single := conversation()[:2]
	got = r.Resolve("viết ngắn hơn", single, "")
	assert.Equal(t, types.SourceImplicit, got.Status)
	assert.Equal(t, "a1", got.SourceMessageID)
	assert.Equal(t, ConfidenceSingle, got.Confidence)
	assert.True(t, got.Resolved())
}

func TestResolve_None(t *testing.T) {
	r := NewSourceResolver()
	msgs := []types.Message{
		{ID: "u1", Role: types.RoleUser, Content: "Viết ngắn hơn cho mình một bài dài thật dài"},
		{ID: "a1", Role: types.RoleAssistant, Content: "Xin lỗi, tôi không thể giúp với yêu cầu này ngay bây giờ."},
		{ID: "a2", Role: types.RoleAssistant, Content: "Ok"},
	}
	got := r.Resolve("rút gọn bài này", msgs, "")
	assert.Equal(t, types.SourceNone, got.Status)
	assert.Empty(t, got.SourceMessageID)
	assert.False(t, got.Resolved())
}

func TestIsValidSource(t *testing.T) {
	r := NewSourceResolver()
	assert.True(t, r.IsValidSource(types.Message{Role: types.RoleAssistant, Content: draftOne}))
	assert.False(t, r.IsValidSource(types.Message{Role: types.RoleUser, Content: draftOne}))
	assert.False(t, r.IsValidSource(types.Message{Role: types.RoleAssistant, Content: "quá ngắn để làm nguồn"}))
	assert.False(t, r.IsValidSource(types.Message{Role: types.RoleAssistant, Content: "I'm sorry, but I cannot rewrite content without more context."}))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short text", Preview("  short\n text ", 80))
	assert.Equal(t, "abcde…", Preview("abcdefgh", 5))
}
