package topiclock

import (
	"regexp"
	"strings"
	"unicode"

	"redraft/internal/types"
)

// entityFamily is one typed regex family. Group selects the capture group
// holding the value (0 = whole match).
type entityFamily struct {
	Type     types.EntityType
	Critical bool
	Patterns []*regexp.Regexp
	Group    int
}

// Families run in this order; a later match overlapping an earlier one is skipped.
// Go's \b is ASCII-only, so Vietnamese word edges use explicit classes.
var entityFamilies = []entityFamily{
	{
		Type:     types.EntityPercentage,
		Critical: true,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\d+(?:[.,]\d+)?\s?%`),
		},
	},
	{
		Type:     types.EntityNumber,
		Critical: true,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\d+(?:[.,]\d+)?\s?(?:người|khách hàng|khách|sản phẩm|mẫu|món|lần|giờ|phút|chi nhánh|cửa hàng|suất|vé|chiếc|cốc|ly|lít|(?:km|kg|ml|cm)\b|(?:items?|people|products|hours?|minutes?|stores?|branches|cups?)\b)`),
		},
	},
	{
		Type:     types.EntityPrice,
		Critical: true,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\d{1,3}(?:[.,]\d{3})+\s?(?:đồng|vnđ|vnd|đ|₫)`),
			regexp.MustCompile(`(?i)\d+(?:[.,]\d+)?\s?(?:triệu|nghìn|ngàn|tỷ|tr\b|k\b)(?:\s?(?:đồng|vnđ|đ))?`),
			regexp.MustCompile(`(?i)\d+(?:[.,]\d+)?\s?(?:đồng|vnđ|vnd|₫)`),
			regexp.MustCompile(`\$\s?\d+(?:[.,]\d+)?`),
			regexp.MustCompile(`(?i)\d+(?:[.,]\d+)?\s?usd\b`),
		},
	},
	{
		Type:     types.EntityDate,
		Critical: true,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
			regexp.MustCompile(`\d{1,2}/\d{1,2}(?:/\d{2,4})?`),
			regexp.MustCompile(`(?i)ngày \d{1,2}(?: tháng \d{1,2})?(?: năm \d{4})?`),
			regexp.MustCompile(`(?i)tháng \d{1,2}(?:/\d{4}| năm \d{4})?`),
			regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.? \d{1,2}(?:, \d{4})?`),
		},
	},
	{
		Type:     types.EntityBrand,
		Critical: true,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:highlands|starbucks|shopee|lazada|tiki|grab|vinamilk|viettel|vingroup|vinfast|apple|samsung|nike|adidas|google|facebook|tiktok|zalo|momo|iphone)\b`),
			regexp.MustCompile(`(?i)phúc long|trung nguyên|the coffee house|thế giới di động`),
		},
	},
	{
		Type:     types.EntityPerson,
		Critical: false,
		Group:    1,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:^|[^\p{L}])(?:[Aa]nh|[Cc]hị|[Ôô]ng|[Bb]à|[Cc]ô|[Cc]hú|[Bb]ác|[Tt]hầy|Mr\.?|Mrs\.?|Ms\.?)\s+(\p{Lu}\p{Ll}*(?: \p{Lu}\p{Ll}*){0,2})`),
		},
	},
	{
		Type:     types.EntityLocation,
		Critical: false,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`Hà Nội|TP\.? ?HCM|Hồ Chí Minh|Sài Gòn|Đà Nẵng|Hải Phòng|Cần Thơ|Nha Trang|Đà Lạt|Phú Quốc|Hội An|Vũng Tàu|Huế|Quận \d+|Hanoi|Saigon|Da Nang`),
		},
	},
	{
		Type:     types.EntityLocation,
		Critical: false,
		Group:    1,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:^|[^\p{L}])(?:tại|ở)\s+(\p{Lu}\p{Ll}*(?: \p{Lu}\p{Ll}*){0,3})`),
		},
	},
}

// capsStopWords are all-caps tokens that are emphasis, not brands.
var capsStopWords = map[string]bool{
	"SALE": true, "HOT": true, "NEW": true, "FREE": true, "OK": true,
	"CTA": true, "SEO": true, "FAQ": true, "VIP": true, "TOP": true,
}

var capsToken = regexp.MustCompile(`[\p{L}\p{N}&]+`)

type span struct{ start, end int }

func overlaps(claimed []span, s span) bool {
	for _, c := range claimed {
		if s.start < c.end && c.start < s.end {
			return true
		}
	}
	return false
}

// ExtractEntities runs the entity families over the raw text. Values are
// deduplicated by exact string; the first family to claim a span wins.
func ExtractEntities(text string) []types.LockedEntity {
	var (
		entities []types.LockedEntity
		claimed  []span
		seen     = make(map[string]bool)
	)

	add := func(typ types.EntityType, critical bool, s span) {
		value := strings.TrimSpace(text[s.start:s.end])
		if value == "" || overlaps(claimed, s) {
			return
		}
		claimed = append(claimed, s)
		if seen[value] {
			return
		}
		seen[value] = true
		entities = append(entities, types.LockedEntity{
			Type:     typ,
			Value:    value,
			Critical: critical,
			Context:  surrounding(text, s, 30),
		})
	}

	for _, fam := range entityFamilies {
		for _, re := range fam.Patterns {
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				start, end := loc[2*fam.Group], loc[2*fam.Group+1]
				if start < 0 {
					continue
				}
				add(fam.Type, fam.Critical, span{start, end})
			}
		}
		// ALL-CAPS brands run after the known-brand list.
		if fam.Type == types.EntityBrand {
			for _, loc := range capsToken.FindAllStringIndex(text, -1) {
				if isBrandToken(text[loc[0]:loc[1]]) {
					add(types.EntityBrand, true, span{loc[0], loc[1]})
				}
			}
		}
	}
	return entities
}

// isBrandToken accepts ASCII all-caps tokens of two or more letters.
func isBrandToken(tok string) bool {
	letters := 0
	for _, r := range tok {
		switch {
		case r >= 'A' && r <= 'Z':
			letters++
		case r >= '0' && r <= '9', r == '&':
		default:
			return false
		}
	}
	return letters >= 2 && !capsStopWords[tok]
}

// surrounding returns up to n bytes of context on either side, aligned to runes.
func surrounding(text string, s span, n int) string {
	start, end := s.start-n, s.end+n
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !isRuneStart(text[start]) {
		start--
	}
	for end < len(text) && !isRuneStart(text[end]) {
		end++
	}
	return strings.TrimFunc(strings.ReplaceAll(text[start:end], "\n", " "), unicode.IsSpace)
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
