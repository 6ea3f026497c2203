package perception

import (
	"regexp"

	"redraft/internal/types"
)

// =============================================================================
// ACTION PATTERN TABLE
// =============================================================================
// Evaluated top to bottom against the trimmed, lower-cased input. Table order
// is the final tie-break after weight and signal count, so do not re-sort it.
// Go's \b is ASCII-only; Vietnamese entries rely on plain substring regexes.

// ActionPattern is one row of the classifier table.
type ActionPattern struct {
	Action   types.ActionType
	Patterns []*regexp.Regexp
	Weight   float64
}

func mustAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// ActionPatterns is the ordered classifier table.
var ActionPatterns = []ActionPattern{
	{
		Action: types.ActionTranslate,
		Weight: 0.95,
		Patterns: mustAll(
			`dịch (sang|qua|ra)`,
			`sang tiếng (anh|việt|nhật|hàn|trung|pháp|đức)`,
			`bản tiếng (anh|việt|nhật|hàn|trung)`,
			`\btranslat(e|ion)\b`,
			`\b(in|into) (english|vietnamese|japanese|korean|chinese|french)\b`,
		),
	},
	{
		Action: types.ActionShorten,
		Weight: 0.9,
		Patterns: mustAll(
			`rút gọn`,
			`ngắn gọn`,
			`ngắn hơn`,
			`ngắn lại`,
			`cô đọng`,
			`tóm (tắt|gọn)`,
			`bớt dài`,
			`\bshorten\b`,
			`\bshorter\b`,
			`\bcondense\b`,
			`\bsummari[sz]e\b`,
			`\bcut (it )?down\b`,
		),
	},
	{
		Action: types.ActionExpand,
		Weight: 0.9,
		Patterns: mustAll(
			`mở rộng`,
			`dài hơn`,
			`chi tiết hơn`,
			`viết thêm`,
			`bổ sung thêm`,
			`triển khai thêm`,
			`\bexpand\b`,
			`\belaborate\b`,
			`\blonger\b`,
			`\bmore detail(s|ed)?\b`,
		),
	},
	{
		Action: types.ActionChangeTone,
		Weight: 0.88,
		Patterns: mustAll(
			`giọng`,
			`văn phong`,
			`(chuyên nghiệp|thân thiện|trang trọng|gần gũi|hài hước|lịch sự|trẻ trung) hơn`,
			`\btone\b`,
			`\bmore (formal|casual|friendly|professional|playful)\b`,
		),
	},
	{
		Action: types.ActionFormatConvert,
		Weight: 0.88,
		Patterns: mustAll(
			`gạch đầu dòng`,
			`dạng (bảng|danh sách|list|bullet|gạch)`,
			`chuyển (thành|sang) (dạng )?(danh sách|bullet|bảng|list)`,
			`liệt kê`,
			`\bbullet( points?| list)?\b`,
			`\bas a (list|table)\b`,
			`\bformat (it )?as\b`,
			`\bconvert (it )?(to|into)\b`,
		),
	},
	{
		Action: types.ActionOptimize,
		Weight: 0.85,
		Patterns: mustAll(
			`tối ưu`,
			`chuẩn seo`,
			`(^|\s)seo(\s|$)`,
			`cải thiện`,
			`hấp dẫn hơn`,
			`làm hay hơn`,
			`\boptimi[sz]e\b`,
			`\bimprove\b`,
		),
	},
	{
		Action: types.ActionEvaluate,
		Weight: 0.85,
		Patterns: mustAll(
			`đánh giá`,
			`chấm điểm`,
			`nhận xét`,
			`góp ý`,
			`có ổn không`,
			`có hay không`,
			`\breview\b`,
			`\bevaluate\b`,
			`\brate (this|it)\b`,
			`\bfeedback\b`,
		),
	},
	{
		Action: types.ActionRewrite,
		Weight: 0.8,
		Patterns: mustAll(
			`viết lại`,
			`sửa lại`,
			`chỉnh lại`,
			`diễn đạt lại`,
			`làm lại`,
			`\brewrite\b`,
			`\breword\b`,
			`\brephrase\b`,
			`\bparaphrase\b`,
		),
	},
	{
		Action: types.ActionMeta,
		Weight: 0.9,
		Patterns: mustAll(
			`bạn là ai`,
			`bạn (có thể )?làm (được )?gì`,
			`hướng dẫn sử dụng`,
			`trợ giúp`,
			`^help$`,
			`\bwhat can you do\b`,
			`\bwho are you\b`,
			`\bhow do i use\b`,
		),
	},
	{
		Action: types.ActionCreateContent,
		Weight: 0.7,
		Patterns: mustAll(
			`viết`,
			`tạo`,
			`soạn`,
			`sáng tác`,
			`lên ý tưởng`,
			`bài đăng`,
			`\bwrite\b`,
			`\bcreate\b`,
			`\bdraft\b`,
			`\bcompose\b`,
			`\bgenerate\b`,
		),
	},
}

// ImplicitReferencePatterns point at "the thing we were just talking about".
var ImplicitReferencePatterns = mustAll(
	`bài (này|đó|trên|vừa rồi|vừa nãy|kia)`,
	`đoạn (này|đó|trên|vừa rồi)`,
	`nội dung (này|đó|trên|vừa rồi)`,
	`(cái|bản|caption) (này|đó|trên|vừa rồi)`,
	`\b(that|this) (one|post|draft|text|version|caption)\b`,
	`\bthe (above|last|previous) (one|post|draft|text|version)\b`,
)

// =============================================================================
// TRANSFORM MODE PATTERNS
// =============================================================================

// StrongDirectivePatterns force DIRECTED_TRANSFORM on a single match.
var StrongDirectivePatterns = mustAll(
	// target audience
	`cho (giới |đối tượng |người )?(trẻ|gen ?z|sinh viên|học sinh|mẹ bỉm|doanh nghiệp|nhân viên|khách hàng|người mới|phụ huynh|dân văn phòng)`,
	`dành cho`,
	`hướng tới`,
	`\baudience\b`,
	`\bfor (a |an )?(young|gen ?z|students?|parents|beginners|business(es)?|customers|kids|teens|professionals)\b`,
	// explicit style directive
	`giọng`,
	`văn phong`,
	`phong cách`,
	`theo kiểu`,
	`\btone\b`,
	`\bstyle\b`,
	`\bvoice\b`,
	// emphasis
	`nhấn mạnh`,
	`tập trung vào`,
	`làm nổi bật`,
	`chú trọng`,
	`\bemphasi[sz]e\b`,
	`\bfocus on\b`,
	`\bhighlight\b`,
	// add/remove instruction
	`(thêm|bổ sung|bỏ|loại bỏ|xóa|xoá|bớt) (phần|đoạn|ý|câu|chi tiết|thông tin|emoji|hashtag|lời kêu gọi|cta|số liệu|ví dụ)`,
	`\b(add|remove|include|drop|delete)\b`,
)

// WeakDirectivePatterns only force DIRECTED_TRANSFORM when they match at
// least WeakDirectiveThreshold times in total.
var WeakDirectivePatterns = mustAll(
	// adjective-only style words
	`tự nhiên|chuyên nghiệp|thân thiện|hài hước|trẻ trung|sinh động|hấp dẫn|gần gũi|trang trọng|cảm xúc|sáng tạo`,
	`\b(formal|casual|friendly|professional|funny|engaging|catchy|natural|playful)\b`,
	// bare comparatives
	`\p{L}+ hơn`,
	`\bmore [a-z]+\b`,
)

// WeakDirectiveThreshold is the number of weak matches that count as a directive.
const WeakDirectiveThreshold = 2
