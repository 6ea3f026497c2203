package transform

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redraft/internal/articulation"
	"redraft/internal/executor"
	"redraft/internal/topiclock"
	"redraft/internal/types"
)

func TestFallback_Shorten(t *testing.T) {
	out, err := Fallback(FallbackInput{Action: types.ActionShorten, Source: promoSource})
	require.NoError(t, err)

	// The top two sentences by entity score miss "3 chi nhánh", so the
	// third is kept too and only the note is dropped.
	sentences := topiclock.SplitSentences(out)
	require.Len(t, sentences, 3)
	assert.Equal(t, "Ưu đãi tháng 10 tại Highlands: giảm 30% cho mọi đồ uống size L.", sentences[0])
	for _, s := range sentences {
		assert.Contains(t, promoSource, s)
	}
	assert.NotContains(t, out, "Lưu ý")
	assert.Less(t, utf8.RuneCountInString(out), utf8.RuneCountInString(promoSource))
	assertKeepsCritical(t, promoSource, out)
}

func TestFallback_ShortenSingleSentence(t *testing.T) {
	src := "Giảm 30% toàn bộ đồ uống tại Highlands đến hết ngày 31/10 này."
	out, err := Fallback(FallbackInput{Action: types.ActionShorten, Source: src})
	require.NoError(t, err)
	assert.Equal(t, "Giảm 30% toàn bộ đồ uống tại Highlands đến hết ngày 31/10…", out)
	assertKeepsCritical(t, src, out)
}

func TestFallback_ShortenSentenceEndingInEntities(t *testing.T) {
	// Every prefix short of the whole sentence drops the date.
	src := "Ưu đãi dành cho khách đặt trước, giảm 30% đến 31/10"
	out, err := Fallback(FallbackInput{Action: types.ActionShorten, Source: src})
	require.NoError(t, err)
	assert.Equal(t, "…khách đặt trước, giảm 30% đến 31/10", out)
	assert.Less(t, utf8.RuneCountInString(out), utf8.RuneCountInString(src))
	assertKeepsCritical(t, src, out)
}

func TestFallback_ShortenEveryUnitCritical(t *testing.T) {
	src := "- Giảm 30% cho toàn bộ đồ uống size L\n- Áp dụng tại mọi cửa hàng đến 31/10\n- Giá chỉ từ 29.000đ cho mỗi ly lớn"
	out, err := Fallback(FallbackInput{Action: types.ActionShorten, Source: src})
	require.NoError(t, err)
	assert.Equal(t, "- Giảm 30% cho toàn bộ đồ…\n- …mọi cửa hàng đến 31/10\n- Giá chỉ từ 29.000đ cho…", out)
	assert.Less(t, utf8.RuneCountInString(out), utf8.RuneCountInString(src))
	assertKeepsCritical(t, src, out)
}

func assertKeepsCritical(t *testing.T, src, out string) {
	t.Helper()
	locked := topiclock.Extract(src, "")
	require.NotEmpty(t, locked.CriticalEntities())
	res := topiclock.NewValidator().CheckEntities(locked, out)
	assert.True(t, res.Passed, "missing=%v in %q", res.Missing, out)
}

func TestFallback_ShortenKeepsListStructure(t *testing.T) {
	src := "- Giảm 30% đồ uống\n- Mở cửa sớm\n- Wifi nhanh\n- Chỗ ngồi rộng\n- Áp dụng đến 31/10"
	out, err := Fallback(FallbackInput{Action: types.ActionShorten, Source: src})
	require.NoError(t, err)
	assert.Equal(t, "- Giảm 30% đồ uống\n- Áp dụng đến 31/10", out)
}

func TestFallback_Expand(t *testing.T) {
	out, err := Fallback(FallbackInput{Action: types.ActionExpand, Source: promoSource})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, promoSource))
	assert.Contains(t, out, "Tóm lại: Ưu đãi tháng 10 tại Highlands: giảm 30% cho mọi đồ uống size L.")
	assert.Greater(t, utf8.RuneCountInString(out), utf8.RuneCountInString(promoSource)*112/100)
}

func TestFallback_ExpandEnglishList(t *testing.T) {
	src := "- 30% off all drinks\n- Open at 7am\n- Free wifi"
	out, err := Fallback(FallbackInput{Action: types.ActionExpand, Source: src})
	require.NoError(t, err)

	assert.Contains(t, out, "- The 30% figure is the highlight you should not miss.")
	assert.Equal(t, types.FormatBullet, topiclock.DetectFormat(out))
}

func TestFallback_Rewrite(t *testing.T) {
	out, err := Fallback(FallbackInput{Action: types.ActionRewrite, Source: coffeeSource})
	require.NoError(t, err)

	assert.NotEqual(t, coffeeSource, out)
	hasHook := false
	for _, h := range hooks[false] {
		hasHook = hasHook || strings.HasPrefix(out, h+" ")
	}
	assert.True(t, hasHook, out)
	hasCTASuffix := false
	for _, c := range ctas[false] {
		hasCTASuffix = hasCTASuffix || strings.HasSuffix(out, c)
	}
	assert.True(t, hasCTASuffix, out)

	again, err := Fallback(FallbackInput{Action: types.ActionRewrite, Source: coffeeSource})
	require.NoError(t, err)
	assert.Equal(t, out, again, "fallback is deterministic")
}

func TestFallback_RewriteKeepsExistingCTA(t *testing.T) {
	src := "Mở cửa từ 7 giờ sáng. Gọi ngay hoặc liên hệ hotline để đặt bàn."
	require.True(t, hasCTA(src))
	out, err := Fallback(FallbackInput{Action: types.ActionOptimize, Source: src})
	require.NoError(t, err)
	for _, c := range ctas[true] {
		assert.False(t, strings.HasSuffix(out, c))
	}
	assert.Contains(t, out, "Gọi ngay hoặc liên hệ hotline để đặt bàn. Mở cửa từ 7 giờ sáng.")
}

func TestFallback_Tone(t *testing.T) {
	tests := []struct {
		name string
		src  string
		tone string
		want string
	}{
		{"formal to casual", "Quý khách vui lòng liên hệ chúng tôi để được hỗ trợ.", "", "Bạn nhớ liên hệ tụi mình để được hỗ trợ."},
		{"casual to formal", "Bạn ghé tụi mình nhé!", "professional", "Quý khách ghé chúng tôi nhé!"},
		{"english casual", "We would like to assist our customers.", "friendly", "We want to help our friends."},
		{"no phrase matched", "Highlands mở cửa lúc 7 giờ.", "friendly", "Chào bạn! Highlands mở cửa lúc 7 giờ."},
		{"english no phrase", "Open at 7am.", "professional", "Dear valued customer, Open at 7am."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Fallback(FallbackInput{
				Action:   types.ActionChangeTone,
				Source:   tt.src,
				Contract: articulation.Contract{RequiredTone: tt.tone},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestFallback_Format(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		target types.Format
		want   string
	}{
		{"prose to bullets", coffeeSource, "",
			"- Highlands coffee discount: 30% off coffee until 31/10.\n- The coffee discount covers every coffee drink on the menu.\n- Visit a Highlands store to claim the discount."},
		{"prose to numbered", "Mở cửa 7 giờ. Đóng cửa 22 giờ.", types.FormatNumbered,
			"1. Mở cửa 7 giờ.\n2. Đóng cửa 22 giờ."},
		{"list to paragraph", "- Một\n- Hai\n- Ba", types.FormatParagraph, "Một. Hai. Ba."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Fallback(FallbackInput{Action: types.ActionFormatConvert, Source: tt.src, TargetFormat: tt.target})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestFallback_Heading(t *testing.T) {
	out, err := Fallback(FallbackInput{Action: types.ActionFormatConvert, Source: coffeeSource, TargetFormat: types.FormatHeading})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "## "), out)
	assert.Contains(t, out, "\n- Visit a Highlands store to claim the discount.")
}

func TestFallback_Unavailable(t *testing.T) {
	for _, a := range []types.ActionType{types.ActionTranslate, types.ActionEvaluate, types.ActionCreateContent} {
		_, err := Fallback(FallbackInput{Action: a, Source: coffeeSource})
		assert.Equal(t, types.CodeNoFallback, executor.CodeOf(err), a)
		var xe *executor.Error
		require.ErrorAs(t, err, &xe)
		assert.Equal(t, "The model could not complete this request and it has no offline fallback. Please try again.", xe.Message, a)
	}

	_, err := Fallback(FallbackInput{Action: types.ActionShorten, Source: "   "})
	assert.Equal(t, types.CodeRewriteNoContext, executor.CodeOf(err))
}

func TestFallback_NeverEchoesSource(t *testing.T) {
	// Nothing to re-render.
	src := "Mở cửa 7 giờ."
	out, err := Fallback(FallbackInput{Action: types.ActionFormatConvert, Source: src, TargetFormat: types.FormatParagraph})
	require.NoError(t, err)
	assert.NotEqual(t, src, out)
	assert.Contains(t, out, src)
}

func TestFallback_ShortenNeverGrows(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"Mở cửa 7 giờ.", "…cửa 7 giờ."},
		{"Khai trương!", "Khai…"},
		{"Highlands!", "Highlands"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			out, err := Fallback(FallbackInput{Action: types.ActionShorten, Source: tt.src})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			assert.Less(t, utf8.RuneCountInString(out), utf8.RuneCountInString(tt.src))
		})
	}
}

func TestIsVietnamese(t *testing.T) {
	assert.True(t, isVietnamese("Ưu đãi"))
	assert.True(t, isVietnamese("giảm giá"))
	assert.False(t, isVietnamese("30% off"))
}
