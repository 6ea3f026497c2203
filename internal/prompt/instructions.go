package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"redraft/internal/articulation"
	"redraft/internal/types"
)

// actionTemplates is the task line per action type.
var actionTemplates = map[types.ActionType]string{
	types.ActionRewrite:       "Rewrite the source text with fresh wording and sentence structure. Keep the same meaning, facts and roughly the same length.",
	types.ActionShorten:       "Shorten the source text so it is clearly shorter than the original (under 90% of its length). Keep every critical entity and the core message; cut repetition and secondary detail.",
	types.ActionExpand:        "Expand the source text so it is clearly longer than the original (over 110% of its length). Elaborate only on what the source already says; add no new facts.",
	types.ActionChangeTone:    "Change the tone of the source text as requested. Keep the content, facts and structure; change word choice and register only.",
	types.ActionFormatConvert: "Convert the source text into a %s. Keep every point and fact from the source.",
	types.ActionTranslate:     "Translate the source text into %s. Keep numbers, prices, dates and brand names exactly as written.",
	types.ActionOptimize:      "Improve the source text for engagement and clarity: a stronger hook, smoother flow and a clear call to action. Keep its facts and topic.",
	types.ActionEvaluate:      "Evaluate the source text. List its strengths, its weaknesses and concrete suggestions. Do not rewrite it.",
	types.ActionCreateContent: "Write new content following the user's request.",
}

// modeEmphasis is appended to the task line on escalated attempts.
var modeEmphasis = map[types.StrictnessMode]string{
	types.ModeStrict:  "This is a retry: the previous answer ignored the constraints. Follow the source closely and keep every critical entity verbatim.",
	types.ModeRelaxed: "You may rephrase freely, but stay on the same topic and keep every critical entity verbatim.",
}

// InstructionRequest carries everything the user prompt of one attempt needs.
type InstructionRequest struct {
	Action          types.ActionType
	Mode            types.StrictnessMode
	TransformMode   types.TransformMode
	UserInstruction string
	Source          string
	Contract        articulation.Contract
	TargetFormat    types.Format
}

// BuildInstruction renders the user prompt: task, mode emphasis, directive,
// the user's own words, output requirements and the delimited source.
func BuildInstruction(req InstructionRequest) string {
	var sb strings.Builder

	sb.WriteString("TASK: ")
	sb.WriteString(taskLine(req))
	if emphasis := modeEmphasis[req.Mode]; emphasis != "" {
		sb.WriteString("\n")
		sb.WriteString(emphasis)
	}
	if req.TransformMode == types.PureTransform {
		sb.WriteString("\nApply only this operation; change nothing else.")
	} else if req.TransformMode == types.DirectedTransform {
		sb.WriteString("\nApply the user's directive below on top of the operation.")
	}

	if instr := strings.TrimSpace(req.UserInstruction); instr != "" {
		sb.WriteString("\n\nUSER INSTRUCTION: ")
		sb.WriteString(instr)
	}

	if reqs := req.Contract.Requirements(); len(reqs) > 0 {
		sb.WriteString("\n\nOUTPUT REQUIREMENTS:")
		for _, line := range reqs {
			sb.WriteString("\n- ")
			sb.WriteString(line)
		}
	}

	if req.Source != "" {
		sb.WriteString("\n\nSOURCE TEXT:\n<<<\n")
		sb.WriteString(strings.TrimSpace(req.Source))
		sb.WriteString("\n>>>")
	}
	return sb.String()
}

func taskLine(req InstructionRequest) string {
	tmpl, ok := actionTemplates[req.Action]
	if !ok {
		tmpl = actionTemplates[types.ActionRewrite]
	}
	switch req.Action {
	case types.ActionFormatConvert:
		return fmt.Sprintf(tmpl, describeTarget(req.TargetFormat))
	case types.ActionTranslate:
		return fmt.Sprintf(tmpl, TargetLanguage(req.UserInstruction))
	}
	return tmpl
}

func describeTarget(f types.Format) string {
	switch f {
	case types.FormatNumbered:
		return "numbered list"
	case types.FormatHeading:
		return "set of sections with headings"
	case types.FormatParagraph:
		return "flowing paragraph"
	default:
		return "bullet list, one point per line starting with \"- \""
	}
}

var languages = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"Vietnamese", regexp.MustCompile(`(?i)tiếng việt|\bvietnamese\b`)},
	{"Japanese", regexp.MustCompile(`(?i)tiếng nhật|\bjapanese\b`)},
	{"Korean", regexp.MustCompile(`(?i)tiếng hàn|\bkorean\b`)},
	{"Chinese", regexp.MustCompile(`(?i)tiếng trung|\bchinese\b`)},
	{"French", regexp.MustCompile(`(?i)tiếng pháp|\bfrench\b`)},
	{"German", regexp.MustCompile(`(?i)tiếng đức|\bgerman\b`)},
	{"English", regexp.MustCompile(`(?i)tiếng anh|\benglish\b`)},
}

// TargetLanguage names the language a translate instruction asks for.
// English is assumed when none is named.
func TargetLanguage(instruction string) string {
	for _, l := range languages {
		if l.pattern.MatchString(instruction) {
			return l.name
		}
	}
	return "English"
}

var targetFormats = []struct {
	format  types.Format
	pattern *regexp.Regexp
}{
	{types.FormatNumbered, regexp.MustCompile(`(?i)đánh số|số thứ tự|\bnumbered\b|\bsteps?\b|từng bước`)},
	{types.FormatHeading, regexp.MustCompile(`(?i)tiêu đề|đề mục|\bheadings?\b|\bsections?\b`)},
	{types.FormatParagraph, regexp.MustCompile(`(?i)đoạn văn|văn xuôi|\bparagraphs?\b|\bprose\b`)},
	{types.FormatBullet, regexp.MustCompile(`(?i)gạch đầu dòng|\bbullets?\b|danh sách|\blist\b`)},
}

// ParseTargetFormat names the format a format-convert instruction asks for.
// A bullet list is assumed when none is named.
func ParseTargetFormat(instruction string) types.Format {
	for _, f := range targetFormats {
		if f.pattern.MatchString(instruction) {
			return f.format
		}
	}
	return types.FormatBullet
}
