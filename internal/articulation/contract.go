package articulation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"redraft/internal/logging"
	"redraft/internal/topiclock"
)

// =============================================================================
// OUTPUT CONTRACT - hard requirements parsed from the user's instruction
// =============================================================================

// StructureElement is a structural feature the user asked for.
type StructureElement string

const (
	StructureBulletList   StructureElement = "bullet_list"
	StructureNumberedList StructureElement = "numbered_list"
	StructureHeadings     StructureElement = "headings"
	StructureHashtags     StructureElement = "hashtags"
	StructureEmoji        StructureElement = "emoji"
	StructureCallToAction StructureElement = "call_to_action"
)

// approxPercent is the band, in percent, applied to "about X words".
const approxPercent = 5

// Contract is what the instruction demands of the output, independent of the
// locked context. It is immutable once built.
type Contract struct {
	RequiredMinWords  *int               `json:"requiredMinWords,omitempty"`
	RequiredMaxWords  *int               `json:"requiredMaxWords,omitempty"`
	RequiredTone      string             `json:"requiredTone,omitempty"`
	RequiredStructure []StructureElement `json:"requiredStructure"`
	IsStrict          bool               `json:"isStrict"`
}

// HasStructure reports whether el was requested.
func (c Contract) HasStructure(el StructureElement) bool {
	for _, s := range c.RequiredStructure {
		if s == el {
			return true
		}
	}
	return false
}

// Requirements renders the contract as prompt lines.
func (c Contract) Requirements() []string {
	var lines []string
	switch {
	case c.RequiredMinWords != nil && c.RequiredMaxWords != nil:
		lines = append(lines, fmt.Sprintf("Length: between %d and %d words.", *c.RequiredMinWords, *c.RequiredMaxWords))
	case c.RequiredMinWords != nil:
		lines = append(lines, fmt.Sprintf("Length: at least %d words.", *c.RequiredMinWords))
	case c.RequiredMaxWords != nil:
		lines = append(lines, fmt.Sprintf("Length: at most %d words.", *c.RequiredMaxWords))
	}
	if c.RequiredTone != "" {
		lines = append(lines, fmt.Sprintf("Tone: %s.", c.RequiredTone))
	}
	for _, s := range c.RequiredStructure {
		lines = append(lines, fmt.Sprintf("Include: %s.", strings.ReplaceAll(string(s), "_", " ")))
	}
	return lines
}

const wordUnit = `\s*(?:từ|chữ|words?)`

var (
	rangePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s*(?:-|–|đến|tới)\s*(\d+)` + wordUnit),
		regexp.MustCompile(`(\d+)\s*(?:-|–|to)\s*(\d+)` + wordUnit),
		regexp.MustCompile(`between\s+(\d+)\s+and\s+(\d+)` + wordUnit),
	}
	minPattern    = regexp.MustCompile(`(?:ít nhất|tối thiểu|không dưới|trên|at least|minimum(?: of)?|no fewer than)\s*(\d+)` + wordUnit)
	maxPattern    = regexp.MustCompile(`(?:tối đa|không quá|nhiều nhất|dưới|at most|maximum(?: of)?|no more than|under|up to)\s*(\d+)` + wordUnit)
	approxPattern = regexp.MustCompile(`(?:khoảng|tầm|chừng|cỡ|around|about|approximately|roughly|~)\s*(\d+)` + wordUnit)
	plainPattern  = regexp.MustCompile(`(\d+)` + wordUnit)

	// "từ khóa" (keyword) and friends would otherwise read as "N words".
	wordCompounds = regexp.MustCompile(`từ (?:khóa|khoá|ngữ|vựng)`)

	halfPattern   = regexp.MustCompile(`(?:một nửa|1/2|\bhalf\b)`)
	doublePattern = regexp.MustCompile(`(?:gấp đôi|x2|\bdouble\b|\btwice\b)`)
)

type toneRule struct {
	tone    string
	pattern *regexp.Regexp
}

var toneRules = []toneRule{
	{"professional", regexp.MustCompile(`chuyên nghiệp|trang trọng|lịch sự|\bprofessional\b|\bformal\b`)},
	{"friendly", regexp.MustCompile(`thân thiện|gần gũi|thân mật|\bfriendly\b|\bcasual\b`)},
	{"humorous", regexp.MustCompile(`hài hước|vui nhộn|dí dỏm|\bfunny\b|\bhumorous\b|\bwitty\b`)},
	{"emotional", regexp.MustCompile(`cảm xúc|truyền cảm|sâu lắng|\bemotional\b|\bheartfelt\b`)},
	{"youthful", regexp.MustCompile(`trẻ trung|gen ?z|\byouthful\b`)},
}

type structureRule struct {
	element StructureElement
	pattern *regexp.Regexp
}

var structureRules = []structureRule{
	{StructureBulletList, regexp.MustCompile(`gạch đầu dòng|liệt kê|danh sách|\bbullets?\b|\blist\b`)},
	{StructureNumberedList, regexp.MustCompile(`đánh số|các bước|\bnumbered\b|\bsteps\b`)},
	{StructureHeadings, regexp.MustCompile(`tiêu đề|đề mục|\bheadings?\b|\bheadlines?\b`)},
	{StructureHashtags, regexp.MustCompile(`hashtag`)},
	{StructureEmoji, regexp.MustCompile(`emoji|icon|biểu tượng cảm xúc`)},
	{StructureCallToAction, regexp.MustCompile(`\bcta\b|kêu gọi hành động|lời kêu gọi|call to action`)},
}

// ExtractContract parses word bounds, tone and structure from an instruction.
// The source is only consulted for relative lengths ("một nửa", "double").
func ExtractContract(instruction, source string) Contract {
	text := strings.ToLower(strings.TrimSpace(instruction))
	c := Contract{RequiredStructure: []StructureElement{}}

	minW, maxW := parseWordBounds(wordCompounds.ReplaceAllString(text, "keyterm"), topiclock.WordCount(source))
	c.RequiredMinWords, c.RequiredMaxWords = minW, maxW
	c.IsStrict = minW != nil || maxW != nil

	for _, r := range toneRules {
		if r.pattern.MatchString(text) {
			c.RequiredTone = r.tone
			break
		}
	}
	for _, r := range structureRules {
		if r.pattern.MatchString(text) {
			c.RequiredStructure = append(c.RequiredStructure, r.element)
		}
	}

	logging.Get(logging.CategoryPrompt).Debug("contract: min=%v max=%v tone=%q structure=%v strict=%v",
		deref(minW), deref(maxW), c.RequiredTone, c.RequiredStructure, c.IsStrict)
	return c
}

func parseWordBounds(text string, sourceWords int) (minW, maxW *int) {
	for _, re := range rangePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			lo, hi := atoi(m[1]), atoi(m[2])
			if lo > hi {
				lo, hi = hi, lo
			}
			return &lo, &hi
		}
	}

	minLoc := minPattern.FindStringSubmatchIndex(text)
	if minLoc != nil {
		n := atoi(text[minLoc[2]:minLoc[3]])
		minW = &n
	}
	// "không dưới 100 từ" is a minimum; its "dưới" must not also count as a maximum.
	if loc := maxPattern.FindStringSubmatchIndex(text); loc != nil && (minLoc == nil || loc[0] >= minLoc[1] || loc[1] <= minLoc[0]) {
		n := atoi(text[loc[2]:loc[3]])
		maxW = &n
	}
	if minW != nil || maxW != nil {
		return minW, maxW
	}

	m := approxPattern.FindStringSubmatch(text)
	if m == nil {
		m = plainPattern.FindStringSubmatch(text)
	}
	if m != nil {
		x := atoi(m[1])
		lo := x * (100 - approxPercent) / 100
		hi := (x*(100+approxPercent) + 99) / 100
		return &lo, &hi
	}

	if sourceWords > 0 {
		if halfPattern.MatchString(text) {
			hi := (sourceWords + 1) / 2
			return nil, &hi
		}
		if doublePattern.MatchString(text) {
			lo := sourceWords * 2
			return &lo, nil
		}
	}
	return nil, nil
}

// =============================================================================
// CONTRACT VALIDATION
// =============================================================================

// ViolationType classifies a contract violation.
type ViolationType string

const (
	ViolationLength    ViolationType = "LENGTH"
	ViolationStructure ViolationType = "STRUCTURE"
)

// Severity says whether a violation blocks the output.
type Severity string

const (
	SeverityHard Severity = "HARD"
	SeveritySoft Severity = "SOFT"
)

// Violation is one unmet requirement.
type Violation struct {
	Type     ViolationType `json:"type"`
	Severity Severity      `json:"severity"`
	Message  string        `json:"message"`
}

// ContractResult is the outcome of checking an output against a contract.
type ContractResult struct {
	Passed            bool               `json:"passed"`
	Violations        []Violation        `json:"violations"`
	WordCount         int                `json:"wordCount"`
	StructureDetected []StructureElement `json:"structureDetected"`
	CanRetry          bool               `json:"canRetry"`
}

// HardViolations returns only the blocking violations.
func (r ContractResult) HardViolations() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityHard {
			out = append(out, v)
		}
	}
	return out
}

// ValidateContract checks an output. LENGTH violations are HARD and make the
// result retryable; STRUCTURE violations are SOFT and never fail it.
func ValidateContract(output string, c Contract) ContractResult {
	res := ContractResult{
		Violations:        []Violation{},
		WordCount:         topiclock.WordCount(output),
		StructureDetected: DetectStructure(output),
	}

	if c.RequiredMinWords != nil && res.WordCount < *c.RequiredMinWords {
		res.Violations = append(res.Violations, Violation{
			Type:     ViolationLength,
			Severity: SeverityHard,
			Message:  fmt.Sprintf("output has %d words, at least %d required", res.WordCount, *c.RequiredMinWords),
		})
	}
	if c.RequiredMaxWords != nil && res.WordCount > *c.RequiredMaxWords {
		res.Violations = append(res.Violations, Violation{
			Type:     ViolationLength,
			Severity: SeverityHard,
			Message:  fmt.Sprintf("output has %d words, at most %d allowed", res.WordCount, *c.RequiredMaxWords),
		})
	}

	detected := make(map[StructureElement]bool, len(res.StructureDetected))
	for _, s := range res.StructureDetected {
		detected[s] = true
	}
	for _, want := range c.RequiredStructure {
		if !detected[want] {
			res.Violations = append(res.Violations, Violation{
				Type:     ViolationStructure,
				Severity: SeveritySoft,
				Message:  fmt.Sprintf("requested %s not found", strings.ReplaceAll(string(want), "_", " ")),
			})
		}
	}

	hard := len(res.HardViolations())
	res.Passed = hard == 0
	res.CanRetry = hard > 0
	return res
}

var (
	hashtagPattern = regexp.MustCompile(`(?:^|\s)#[\p{L}\p{N}_]+`)
	ctaPattern     = regexp.MustCompile(`(?i)liên hệ|đặt ngay|mua ngay|inbox|đăng ký|gọi ngay|ghé ngay|order now|buy now|sign up|contact us|book now|shop now|click`)
)

// DetectStructure lists the structural features present in text.
func DetectStructure(text string) []StructureElement {
	found := []StructureElement{}
	lines := topiclock.CountLines(text)
	if lines.Bullet >= 2 {
		found = append(found, StructureBulletList)
	}
	if lines.Numbered >= 2 {
		found = append(found, StructureNumberedList)
	}
	if lines.Heading >= 1 {
		found = append(found, StructureHeadings)
	}
	if hashtagPattern.MatchString(text) {
		found = append(found, StructureHashtags)
	}
	if strings.IndexFunc(text, isEmoji) >= 0 {
		found = append(found, StructureEmoji)
	}
	if ctaPattern.MatchString(text) {
		found = append(found, StructureCallToAction)
	}
	return found
}

func isEmoji(r rune) bool {
	return r >= 0x1F300 && r <= 0x1FAFF || r >= 0x2600 && r <= 0x27BF || unicode.Is(unicode.So, r) && r > 0x2000
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
