package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redraft/internal/articulation"
	"redraft/internal/topiclock"
	"redraft/internal/types"
)

func TestStrategyFor(t *testing.T) {
	want := map[types.ActionType]Strategy{
		types.ActionRewrite:       StrategyTopicOnly,
		types.ActionChangeTone:    StrategyTopicOnly,
		types.ActionTranslate:     StrategyTopicOnly,
		types.ActionShorten:       StrategyLengthAware,
		types.ActionExpand:        StrategyLengthAware,
		types.ActionFormatConvert: StrategyFull,
		types.ActionOptimize:      StrategyFull,
	}
	for a, s := range want {
		assert.Equal(t, s, StrategyFor(a), a)
	}
}

func check(action types.ActionType, output, instruction string, required types.Format) Check {
	return CheckOutput(topiclock.NewValidator(), CheckInput{
		Action:         action,
		Locked:         topiclock.Extract(coffeeSource, "a1"),
		Source:         coffeeSource,
		Output:         output,
		Contract:       articulation.ExtractContract(instruction, coffeeSource),
		RequiredFormat: required,
	})
}

func TestCheckOutput_TopicOnlyIgnoresFormat(t *testing.T) {
	bullets := "- Enjoy 30% off every coffee drink at Highlands until 31/10.\n- The discount covers the whole coffee menu.\n- Visit a Highlands store and claim it."
	res := check(types.ActionRewrite, bullets, "", "")
	assert.True(t, res.Passed, res.Reasons)
	assert.Equal(t, StrategyTopicOnly, res.Strategy)
	assert.True(t, res.TopicLock.FormatCompliance.Passed)

	res = check(types.ActionOptimize, bullets, "", "")
	assert.False(t, res.TopicLock.FormatCompliance.Passed)
	assert.False(t, res.Passed)
	assert.True(t, res.Recoverable)
}

func TestCheckOutput_LengthAware(t *testing.T) {
	res := check(types.ActionShorten, goodShorten, "", "")
	assert.True(t, res.Passed, res.Reasons)
	assert.Less(t, res.LengthRatio, ShortenMaxRatio)

	// About the length of the source: neither shorter nor longer enough.
	same := "Highlands coffee discount: 30% off coffee until 31/10. The coffee discount covers every single coffee drink on the menu. Visit any Highlands store to claim the discount."
	res = check(types.ActionShorten, same, "", "")
	assert.False(t, res.Passed)
	assert.True(t, res.Recoverable)
	assert.Contains(t, strings.Join(res.Reasons, " "), "must be under 90%")

	res = check(types.ActionExpand, same, "", "")
	assert.False(t, res.Passed)
	assert.Contains(t, strings.Join(res.Reasons, " "), "must be over 110%")
}

func TestCheckOutput_RequiredFormatOverride(t *testing.T) {
	numbered := "1. Highlands coffee discount: 30% off coffee until 31/10.\n2. The coffee discount covers every coffee drink on the menu.\n3. Visit a Highlands store to claim the discount."
	res := check(types.ActionFormatConvert, numbered, "", types.FormatNumbered)
	assert.True(t, res.Passed, res.Reasons)

	res = check(types.ActionFormatConvert, numbered, "", types.FormatBullet)
	assert.True(t, res.Passed, "lists are interchangeable")

	res = check(types.ActionFormatConvert, numbered, "", types.FormatParagraph)
	assert.False(t, res.Passed)
}

func TestCheckOutput_Recoverability(t *testing.T) {
	res := check(types.ActionRewrite, missingDate, "", "")
	require.False(t, res.Passed)
	assert.True(t, res.Recoverable)
	assert.Equal(t, []string{"31/10"}, res.TopicLock.EntityPresence.Missing)

	res = check(types.ActionRewrite, offTopic, "", "")
	require.False(t, res.Passed)
	assert.False(t, res.Recoverable)
}

func TestCheckOutput_Contract(t *testing.T) {
	res := check(types.ActionRewrite, goodRewrite, "rewrite this in at most 12 words", "")
	assert.True(t, res.TopicLock.OverallPassed)
	assert.False(t, res.Contract.Passed)
	assert.False(t, res.Passed)
	assert.True(t, res.Recoverable)

	res = check(types.ActionRewrite, twelveWordCopy, "rewrite this in at most 12 words", "")
	assert.True(t, res.Passed, res.Reasons)
}

func TestTriage(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  ReplyKind
	}{
		{"usable", goodRewrite, ReplyUsable},
		{"english refusal", refusal, ReplyRefusal},
		{"vietnamese refusal", "Xin lỗi, tôi không thể giúp với yêu cầu này.", ReplyRefusal},
		{"too short to be an answer", "Done!", ReplyRefusal},
		{"under the source floor", "ok, done here!!!!!!!!!", ReplyMeaningless},
		{"echo", coffeeSource, ReplyMeaningless},
		{"echo with other spacing", strings.ReplaceAll(coffeeSource, ". ", ".\n"), ReplyMeaningless},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Triage(tt.reply, coffeeSource))
		})
	}
}

func TestIsMeaningful_Floor(t *testing.T) {
	assert.True(t, IsMeaningful("twenty one characters", "short"))
	assert.False(t, IsMeaningful("nineteen characters", "short"))

	long := strings.Repeat("a", 500)
	assert.False(t, IsMeaningful(strings.Repeat("b", 99), long))
	assert.True(t, IsMeaningful(strings.Repeat("b", 100), long))
}
