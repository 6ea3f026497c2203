package transform

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"redraft/internal/articulation"
	"redraft/internal/executor"
	"redraft/internal/topiclock"
	"redraft/internal/types"
)

// FallbackInput is what a deterministic recomposition works from.
type FallbackInput struct {
	Action       types.ActionType
	Source       string
	Locked       *types.LockedContext
	Contract     articulation.Contract
	TargetFormat types.Format
}

// Fallback recomposes the source without a model. The result is never empty
// and never equal to the source. Translation has no fallback.
func Fallback(in FallbackInput) (string, error) {
	src := strings.TrimSpace(in.Source)
	if src == "" {
		return "", executor.NewError(types.CodeRewriteNoContext, nil)
	}
	locked := in.Locked
	if locked == nil {
		locked = topiclock.Extract(src, "")
	}

	var out string
	switch in.Action {
	case types.ActionShorten:
		out = fallbackShorten(src, locked)
	case types.ActionExpand:
		out = fallbackExpand(src, locked)
	case types.ActionRewrite, types.ActionOptimize:
		out = fallbackRewrite(src)
	case types.ActionChangeTone:
		out = fallbackTone(src, in.Contract.RequiredTone)
	case types.ActionFormatConvert:
		out = fallbackFormat(src, locked, in.TargetFormat)
	default:
		return "", executor.NewError(types.CodeNoFallback, fmt.Errorf("no fallback for %s", in.Action))
	}

	if strings.TrimSpace(out) == "" || collapse(out) == collapse(src) {
		out = distinct(in.Action, src)
	}
	return out, nil
}

// distinct changes an unchanged result without adding length to a shorten.
func distinct(action types.ActionType, src string) string {
	if action == types.ActionShorten {
		trim := func(r rune) bool { return unicode.IsPunct(r) && r != '%' }
		if cut := strings.TrimRightFunc(src, trim); cut != "" && cut != src {
			return cut
		}
		if cut := strings.TrimLeftFunc(src, trim); cut != "" && cut != src {
			return cut
		}
	}
	return hookFor(src) + " " + src
}

// ============================================================================
// Units
// ============================================================================

// splitUnits breaks text into lines when it is structured and into
// sentences otherwise, returning the joiner that rebuilds it.
func splitUnits(text string) ([]string, string) {
	if topiclock.DetectFormat(text) != types.FormatParagraph {
		var lines []string
		for _, l := range strings.Split(text, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
		return lines, "\n"
	}
	return topiclock.SplitSentences(text), " "
}

// entityScore weights critical entities double.
func entityScore(unit string, locked *types.LockedContext) int {
	folded := topiclock.Fold(unit)
	score := 0
	for _, e := range locked.Entities {
		if strings.Contains(folded, topiclock.Fold(e.Value)) {
			if e.Critical {
				score += 2
			} else {
				score++
			}
		}
	}
	return score
}

// ============================================================================
// Shorten
// ============================================================================

// fallbackShorten keeps every critical entity of src. The result is shorter
// than src unless src is a single word.
func fallbackShorten(src string, locked *types.LockedContext) string {
	units, join := splitUnits(src)
	if len(units) <= 1 {
		return shortenWords(src, criticalIn(src, locked))
	}

	out := shortenUnits(units, join, locked)
	if collapse(out) != collapse(src) {
		return out
	}
	// Every unit carries a critical entity, so cut inside each one.
	cut := make([]string, len(units))
	for i, u := range units {
		body := topiclock.StripMarker(u)
		marker := ""
		if strings.HasSuffix(u, body) {
			marker = u[:len(u)-len(body)]
		}
		cut[i] = marker + shortenWords(body, criticalIn(body, locked))
	}
	return strings.Join(cut, join)
}

// shortenUnits keeps the top 40% of units by entity score, then adds units
// in score order until no critical entity is missing.
func shortenUnits(units []string, join string, locked *types.LockedContext) string {
	keep := (len(units)*2 + 4) / 5 // ceil(40%)
	idx := make([]int, len(units))
	for i := range idx {
		idx[i] = i
	}
	scores := make([]int, len(units))
	for i, u := range units {
		scores[i] = entityScore(u, locked)
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	kept := append([]int(nil), idx[:keep]...)
	render := func() string {
		sorted := append([]int(nil), kept...)
		sort.Ints(sorted)
		out := make([]string, 0, len(sorted))
		for _, i := range sorted {
			out = append(out, units[i])
		}
		return strings.Join(out, join)
	}

	required := criticalIn(strings.Join(units, join), locked)
	for _, i := range idx[keep:] {
		missing := missingFrom(render(), required)
		if len(missing) == 0 {
			break
		}
		if len(missingFrom(units[i], missing)) < len(missing) {
			kept = append(kept, i)
		}
	}
	return render()
}

// shortenWords cuts one sentence to the shortest prefix holding every
// required value, or the shortest window when only the whole sentence is a
// prefix that does. The cut is grown to 60% of the words.
func shortenWords(s string, required []string) string {
	words := strings.Fields(s)
	if len(words) < 2 {
		return s
	}
	holds := func(i, j int) bool {
		return len(missingFrom(strings.Join(words[i:j], " "), required)) == 0
	}

	start, end := 0, len(words)
	for j := 1; j < len(words); j++ {
		if holds(0, j) {
			end = j
			break
		}
	}
	if end == len(words) {
		for i := 1; i < len(words); i++ {
			for j := i + 1; j <= len(words) && j-i < end-start; j++ {
				if holds(i, j) {
					start, end = i, j
					break
				}
			}
		}
	}
	if end-start == len(words) {
		return s
	}

	target := (len(words)*3 + 4) / 5 // ceil(60%)
	if target == len(words) {
		target--
	}
	for end-start < target && end < len(words) {
		end++
	}
	for end-start < target && start > 0 {
		start--
	}

	kept := strings.Join(words[start:end], " ")
	if end < len(words) {
		cut := strings.TrimRightFunc(kept, func(r rune) bool {
			return unicode.IsPunct(r) && r != '%'
		})
		if len(missingFrom(cut, required)) == 0 {
			kept = cut
		}
		kept += "…"
	}
	if start > 0 {
		kept = "…" + kept
	}
	return kept
}

// criticalIn returns the folded values of the critical entities found in text.
func criticalIn(text string, locked *types.LockedContext) []string {
	folded := topiclock.Fold(text)
	var out []string
	for _, e := range locked.CriticalEntities() {
		if v := topiclock.Fold(e.Value); strings.Contains(folded, v) {
			out = append(out, v)
		}
	}
	return out
}

// missingFrom returns the folded values text does not contain.
func missingFrom(text string, values []string) []string {
	folded := topiclock.Fold(text)
	var out []string
	for _, v := range values {
		if !strings.Contains(folded, v) {
			out = append(out, v)
		}
	}
	return out
}

// ============================================================================
// Expand
// ============================================================================

var elaborations = map[bool]map[types.EntityType]string{
	true: {
		types.EntityPercentage: "Mức %s là điểm nổi bật mà bạn không nên bỏ lỡ.",
		types.EntityPrice:      "Với mức giá %s, đây là lựa chọn rất đáng cân nhắc.",
		types.EntityDate:       "Hãy ghi nhớ mốc thời gian %s để không bỏ lỡ.",
		types.EntityNumber:     "Con số %s cho thấy rõ giá trị mà bạn nhận được.",
		types.EntityBrand:      "%s luôn đặt trải nghiệm của khách hàng lên hàng đầu.",
		types.EntityLocation:   "Nếu bạn ở %s, đừng ngần ngại ghé qua.",
		types.EntityPerson:     "%s sẽ đồng hành cùng bạn từ đầu đến cuối.",
	},
	false: {
		types.EntityPercentage: "The %s figure is the highlight you should not miss.",
		types.EntityPrice:      "At %s, this is an option well worth considering.",
		types.EntityDate:       "Keep %s in mind so you do not miss out.",
		types.EntityNumber:     "The number %s shows clearly what you get.",
		types.EntityBrand:      "%s always puts the customer experience first.",
		types.EntityLocation:   "If you are in %s, feel free to stop by.",
		types.EntityPerson:     "%s will be with you every step of the way.",
	},
}

var summaryLine = map[bool]string{
	true:  "Tóm lại: %s.",
	false: "In short: %s.",
}

var fillers = map[bool][]string{
	true: {
		"Đây là thông tin bạn nên đọc kỹ để nắm được đầy đủ chi tiết.",
		"Mọi thông tin trên đều được giữ nguyên như nội dung gốc.",
		"Hãy chia sẻ cho những người có thể cần đến thông tin này.",
	},
	false: {
		"This is worth reading closely so you have every detail.",
		"Everything above stays exactly as in the original.",
		"Share it with anyone who might find it useful.",
	},
}

// maxElaborations caps the number of entity-grounded sentences.
const maxElaborations = 3

func fallbackExpand(src string, locked *types.LockedContext) string {
	vi := isVietnamese(src)

	entities := append([]types.LockedEntity(nil), locked.Entities...)
	sort.SliceStable(entities, func(a, b int) bool { return entities[a].Critical && !entities[b].Critical })

	var extra []string
	for _, e := range entities {
		if len(extra) == maxElaborations {
			break
		}
		if tmpl, ok := elaborations[vi][e.Type]; ok {
			extra = append(extra, fmt.Sprintf(tmpl, e.Value))
		}
	}
	if summary := strings.TrimRight(locked.TopicSummary, ".!?… "); summary != "" {
		extra = append(extra, fmt.Sprintf(summaryLine[vi], summary))
	}

	target := utf8.RuneCountInString(src) * 112 / 100
	build := func() string { return appendUnits(src, extra) }
	for _, f := range fillers[vi] {
		if utf8.RuneCountInString(build()) > target {
			break
		}
		extra = append(extra, f)
	}
	return build()
}

// appendUnits adds sentences to text in its own structure: list items for
// lists, a new paragraph for prose.
func appendUnits(text string, extra []string) string {
	if len(extra) == 0 {
		return text
	}
	switch topiclock.DetectFormat(text) {
	case types.FormatBullet, types.FormatMixed:
		return text + "\n- " + strings.Join(extra, "\n- ")
	case types.FormatNumbered:
		n := topiclock.CountLines(text).Numbered
		var sb strings.Builder
		sb.WriteString(text)
		for i, s := range extra {
			fmt.Fprintf(&sb, "\n%d. %s", n+i+1, s)
		}
		return sb.String()
	default:
		return text + "\n\n" + strings.Join(extra, " ")
	}
}

// ============================================================================
// Rewrite
// ============================================================================

var hooks = map[bool][]string{
	true:  {"Bạn đã biết tin này chưa?", "Tin vui dành cho bạn!", "Đừng bỏ lỡ điều này:"},
	false: {"Have you heard the news?", "Good news for you!", "Don't miss this:"},
}

var ctas = map[bool][]string{
	true:  {"Liên hệ ngay để biết thêm chi tiết!", "Đặt ngay hôm nay nhé!", "Ghé thăm chúng tôi ngay!"},
	false: {"Contact us today to learn more!", "Book now!", "Visit us today!"},
}

// variant picks a stable index from the source text.
func variant(src string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(src))
	return int(h.Sum32() % uint32(n))
}

func hookFor(src string) string {
	vi := isVietnamese(src)
	return hooks[vi][variant(src, len(hooks[vi]))]
}

func fallbackRewrite(src string) string {
	vi := isVietnamese(src)
	units, join := splitUnits(src)

	body := append([]string(nil), units...)
	if join == " " && len(body) >= 2 {
		body[0], body[1] = body[1], body[0]
	}

	parts := []string{hookFor(src)}
	parts = append(parts, body...)
	if !hasCTA(src) {
		parts = append(parts, ctas[vi][variant(src, len(ctas[vi]))])
	}
	return strings.Join(parts, join)
}

func hasCTA(s string) bool {
	for _, el := range articulation.DetectStructure(s) {
		if el == articulation.StructureCallToAction {
			return true
		}
	}
	return false
}

// ============================================================================
// Change tone
// ============================================================================

// substitution pairs a formal and a casual phrasing. Only reversible pairs
// are applied in the casual-to-formal direction.
type substitution struct {
	formal, casual string
	reversible     bool
}

// Longer phrases come first so they win over their substrings.
var toneTable = []substitution{
	{"xin vui lòng", "nhớ", false},
	{"vui lòng", "nhớ", false},
	{"quý khách", "bạn", true},
	{"quý vị", "mọi người", true},
	{"chúng tôi", "tụi mình", true},
	{"trân trọng", "thân mến", true},
	{"kính mời", "mời", false},
	{"rất hân hạnh", "rất vui", true},
	{"we are pleased to", "we're happy to", true},
	{"we would like to", "we want to", true},
	{"customers", "friends", false},
	{"purchase", "grab", true},
	{"assist", "help", false},
	{"additionally", "plus", false},
	{"however", "but", false},
	{"regards", "cheers", true},
}

var (
	casualTones = map[string]bool{"friendly": true, "youthful": true, "humorous": true, "emotional": true}
	greetings   = map[bool]map[bool]string{
		true:  {true: "Chào bạn!", false: "Kính gửi quý khách,"},
		false: {true: "Hi there!", false: "Dear valued customer,"},
	}
)

func fallbackTone(src, tone string) string {
	casual := casualTones[tone]
	if tone == "" {
		casual = isFormal(src)
	}

	out := src
	for _, sub := range toneTable {
		from, to := sub.formal, sub.casual
		if !casual {
			if !sub.reversible {
				continue
			}
			from, to = to, from
		}
		out = replacePhrase(out, from, to)
	}
	if collapse(out) == collapse(src) {
		out = greetings[isVietnamese(src)][casual] + " " + out
	}
	return out
}

func isFormal(s string) bool {
	folded := topiclock.Fold(s)
	for _, sub := range toneTable {
		if containsPhrase(folded, sub.formal) {
			return true
		}
	}
	return false
}

func phrasePattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^\p{L}])(` + regexp.QuoteMeta(phrase) + `)([^\p{L}]|$)`)
}

func containsPhrase(text, phrase string) bool {
	return phrasePattern(phrase).MatchString(text)
}

// replacePhrase swaps whole-word occurrences, keeping a leading capital.
func replacePhrase(text, from, to string) string {
	re := phrasePattern(from)
	// Matches share boundary runes, so repeat until stable.
	for i := 0; i < 4; i++ {
		next := re.ReplaceAllStringFunc(text, func(m string) string {
			sub := re.FindStringSubmatch(m)
			return sub[1] + matchCase(sub[2], to) + sub[3]
		})
		if next == text {
			break
		}
		text = next
	}
	return text
}

func matchCase(orig, repl string) string {
	r, _ := utf8.DecodeRuneInString(orig)
	if !unicode.IsUpper(r) {
		return repl
	}
	first, size := utf8.DecodeRuneInString(repl)
	return string(unicode.ToUpper(first)) + repl[size:]
}

// ============================================================================
// Format convert
// ============================================================================

func fallbackFormat(src string, locked *types.LockedContext, target types.Format) string {
	units, _ := splitUnits(src)
	items := make([]string, 0, len(units))
	for _, u := range units {
		if u = topiclock.StripMarker(u); u != "" {
			items = append(items, u)
		}
	}
	if len(items) == 0 {
		items = []string{src}
	}

	var sb strings.Builder
	switch target {
	case types.FormatNumbered:
		for i, it := range items {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%d. %s", i+1, it)
		}
	case types.FormatParagraph:
		for i, it := range items {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(it)
			if !strings.ContainsAny(it[len(it)-1:], ".!?") && !strings.HasSuffix(it, "…") {
				sb.WriteString(".")
			}
		}
	case types.FormatHeading:
		title := strings.TrimRight(locked.TopicSummary, ".!?… ")
		if title == "" {
			title = items[0]
		}
		sb.WriteString("## " + title)
		for _, it := range items {
			sb.WriteString("\n- " + it)
		}
	default:
		for i, it := range items {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("- " + it)
		}
	}
	return sb.String()
}

// ============================================================================
// Helpers
// ============================================================================

const vietnameseLetters = "ăâđêôơưĂÂĐÊÔƠƯàáảãạèéẻẽẹìíỉĩịòóỏõọùúủũụỳýỷỹỵ"

// isVietnamese reports whether text carries Vietnamese-specific letters.
func isVietnamese(s string) bool {
	for _, r := range s {
		if (r >= 0x1EA0 && r <= 0x1EF9) || strings.ContainsRune(vietnameseLetters, r) {
			return true
		}
	}
	return false
}
