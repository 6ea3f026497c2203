package topiclock

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redraft/internal/types"
)

const promoPost = `Ưu đãi tháng 10 tại Highlands: giảm 30% cho mọi đồ uống size L. Giá chỉ từ 29.000đ, áp dụng đến 31/10.

Chị Lan, quản lý chi nhánh ở Đà Nẵng, cho biết ưu đãi áp dụng cho 3 chi nhánh. Lưu ý: không áp dụng cùng khuyến mãi khác.`

func entityValues(es []types.LockedEntity) map[string]types.EntityType {
	m := make(map[string]types.EntityType, len(es))
	for _, e := range es {
		m[e.Value] = e.Type
	}
	return m
}

func TestExtractEntities(t *testing.T) {
	got := entityValues(ExtractEntities(promoPost))

	want := map[string]types.EntityType{
		"30%":         types.EntityPercentage,
		"3 chi nhánh": types.EntityNumber,
		"29.000đ":     types.EntityPrice,
		"tháng 10":    types.EntityDate,
		"31/10":       types.EntityDate,
		"Highlands":   types.EntityBrand,
		"Lan":         types.EntityPerson,
		"Đà Nẵng":     types.EntityLocation,
	}
	for value, typ := range want {
		assert.Equal(t, typ, got[value], "entity %q", value)
	}
}

func TestExtractEntities_CriticalFlags(t *testing.T) {
	for _, e := range ExtractEntities(promoPost) {
		switch e.Type {
		case types.EntityPerson, types.EntityLocation:
			assert.False(t, e.Critical, e.Value)
		default:
			assert.True(t, e.Critical, e.Value)
		}
		assert.NotEmpty(t, e.Context, e.Value)
	}
}

func TestExtractEntities_DedupAndCaps(t *testing.T) {
	text := "Giảm 50% hôm nay, giảm 50% ngày mai. Mua tại VNPAY hoặc GIẢM GIÁ SALE."
	es := ExtractEntities(text)

	count := 0
	for _, e := range es {
		if e.Value == "50%" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	values := entityValues(es)
	assert.Equal(t, types.EntityBrand, values["VNPAY"])
	assert.NotContains(t, values, "SALE")
	assert.NotContains(t, values, "GIẢM")
}

func TestExtractEntities_PriceUnitsDoNotSwallowWords(t *testing.T) {
	values := entityValues(ExtractEntities("Combo 2 người chỉ 150k, tặng 10 khách đầu tiên."))
	assert.Equal(t, types.EntityPrice, values["150k"])
	assert.Equal(t, types.EntityNumber, values["2 người"])
	assert.Equal(t, types.EntityNumber, values["10 khách"])
}

func TestTopicSummary(t *testing.T) {
	assert.Equal(t, "Ưu đãi tháng 10 tại Highlands: giảm 30% cho mọi đồ uống size L.", TopicSummary(promoPost))
	assert.Equal(t, "Menu mới", TopicSummary("## Menu mới\n- Trà đào\n- Bạc xỉu"))
	assert.Equal(t, "", TopicSummary("  \n\n "))

	long := ""
	for i := 0; i < 40; i++ {
		long += "chữ "
	}
	assert.Equal(t, MaxSummaryLength, len([]rune(TopicSummary(long))))
}

func TestKeywords(t *testing.T) {
	got := Keywords("giá ưu đãi giá ưu đãi giá và của 2024 x", 20)
	assert.Equal(t, []string{"giá", "ưu", "đãi"}, got)

	got = Keywords("the coffee and the tea and the coffee", 20)
	assert.Equal(t, []string{"coffee", "tea"}, got)

	assert.Equal(t, []string{}, Keywords("và của là", 20))
	assert.Len(t, Keywords(promoPost, 5), 5)
}

func TestMustKeep(t *testing.T) {
	text := "# Khai trương\nQuán mở cửa từ 7h. Lưu ý: miễn phí gửi xe.\n## Thực đơn\n## Liên hệ\n## Giờ mở cửa\n## Địa chỉ\n## Thêm"
	got := MustKeep(text)
	assert.Equal(t, []string{"Khai trương", "Lưu ý: miễn phí gửi xe.", "Thực đơn", "Liên hệ", "Giờ mở cửa"}, got)
	assert.Equal(t, []string{}, MustKeep("Không có gì đặc biệt ở đây."))
}

func TestExtract(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	e := &Extractor{Now: func() time.Time { return now }}

	got := e.Extract("- Trà đào\n- Bạc xỉu\n- Cà phê muối", "a1")
	want := &types.LockedContext{
		Entities:        []types.LockedEntity{},
		TopicSummary:    "Trà đào",
		TopicKeywords:   []string{"trà", "đào", "bạc", "xỉu", "cà", "phê", "muối"},
		RequiredFormat:  types.FormatBullet,
		MustKeep:        []string{},
		SourceMessageID: "a1",
		ExtractedAt:     now,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_FreshPerSource(t *testing.T) {
	a := Extract(promoPost, "a1")
	b := Extract("Bộ sưu tập mùa thu có 12 mẫu áo khoác mới.", "a2")
	require.NotEqual(t, a.SourceMessageID, b.SourceMessageID)
	if diff := cmp.Diff(a, b, cmpopts.IgnoreFields(types.LockedContext{}, "ExtractedAt")); diff == "" {
		t.Error("contexts for different sources should differ")
	}
	assert.Contains(t, entityValues(b.Entities), "12 mẫu")
}
