package prompt

import (
	"fmt"
	"strings"

	"redraft/internal/logging"
	"redraft/internal/types"
)

// TransformContract is prepended to every constrained system prompt,
// whatever the strictness mode.
const TransformContract = `TRANSFORM CONTRACT (always applies)
- You are transforming the SOURCE TEXT supplied by the user. Stay on its topic.
- Do not invent facts, numbers, prices, dates, names or offers that the source does not contain.
- Do not refuse, apologize or ask for more information. The source text is complete.
- The output must be visibly derived from the source: same subject, same claims, same key terms.
- Reply with the transformed text only, in the language of the source unless told otherwise.`

// Section is one titled group of constraint lines.
type Section struct {
	Title string
	Lines []string
}

// ConstraintBlock is the rendered constraint system prompt for one attempt.
type ConstraintBlock struct {
	Mode     types.StrictnessMode
	Header   string
	Sections []Section
}

// String renders the block. Output depends only on the context and mode.
func (b ConstraintBlock) String() string {
	var sb strings.Builder
	sb.WriteString(b.Header)
	for _, s := range b.Sections {
		sb.WriteString("\n\n## ")
		sb.WriteString(s.Title)
		for _, line := range s.Lines {
			sb.WriteString("\n")
			sb.WriteString(line)
		}
	}
	return sb.String()
}

// BuildConstraintBlock renders the locked context under a strictness mode.
//
// NORMAL lists critical and preserve-if-relevant entities plus topic, format
// and must-keep. STRICT adds rejection-on-deviation language. RELAXED keeps
// the critical entities and topic anchor, drops format and must-keep, and
// lets the model rephrase everything else.
func BuildConstraintBlock(ctx *types.LockedContext, mode types.StrictnessMode) ConstraintBlock {
	block := ConstraintBlock{Mode: mode, Header: TransformContract}
	if ctx == nil {
		return block
	}

	if critical := ctx.CriticalEntities(); len(critical) > 0 {
		title := "CRITICAL ENTITIES (must appear verbatim)"
		if mode == types.ModeStrict {
			title = "CRITICAL ENTITIES (must appear verbatim, character for character)"
		}
		block.Sections = append(block.Sections, Section{Title: title, Lines: entityLines(critical)})
	}

	if mode != types.ModeRelaxed {
		if optional := ctx.OptionalEntities(); len(optional) > 0 {
			block.Sections = append(block.Sections, Section{
				Title: "PRESERVE IF RELEVANT",
				Lines: entityLines(optional),
			})
		}
	}

	if topic := topicLines(ctx); len(topic) > 0 {
		block.Sections = append(block.Sections, Section{Title: "TOPIC ANCHOR", Lines: topic})
	}

	if mode != types.ModeRelaxed {
		if ctx.RequiredFormat != "" && ctx.RequiredFormat != types.FormatParagraph {
			block.Sections = append(block.Sections, Section{
				Title: "FORMAT",
				Lines: []string{fmt.Sprintf("Keep the source structure: %s.", describeFormat(ctx.RequiredFormat))},
			})
		}
		if len(ctx.MustKeep) > 0 {
			lines := make([]string, len(ctx.MustKeep))
			for i, item := range ctx.MustKeep {
				lines[i] = "- " + item
			}
			block.Sections = append(block.Sections, Section{Title: "MUST KEEP", Lines: lines})
		}
	}

	switch mode {
	case types.ModeStrict:
		block.Sections = append(block.Sections, Section{
			Title: "STRICT MODE",
			Lines: []string{
				"A previous answer did not respect these constraints.",
				"Any output that drops a critical entity, changes the topic or breaks the format will be rejected.",
				"Do not add commentary before or after the text.",
			},
		})
	case types.ModeRelaxed:
		block.Sections = append(block.Sections, Section{
			Title: "RELAXED MODE",
			Lines: []string{
				"You may freely rephrase, restructure and restyle everything not listed above.",
				"Critical entities and the topic anchor remain mandatory.",
			},
		})
	}

	logging.PromptDebug("constraint block: mode=%s sections=%d", mode, len(block.Sections))
	return block
}

// InjectConstraints prepends the constraint block to a template system prompt.
func InjectConstraints(systemPrompt string, ctx *types.LockedContext, mode types.StrictnessMode) string {
	block := BuildConstraintBlock(ctx, mode).String()
	systemPrompt = strings.TrimSpace(systemPrompt)
	if systemPrompt == "" {
		return block
	}
	return block + "\n\n## TEMPLATE INSTRUCTIONS\n" + systemPrompt
}

func entityLines(entities []types.LockedEntity) []string {
	lines := make([]string, len(entities))
	for i, e := range entities {
		lines[i] = fmt.Sprintf("- %s (%s)", e.Value, e.Type)
	}
	return lines
}

func topicLines(ctx *types.LockedContext) []string {
	var lines []string
	if ctx.TopicSummary != "" {
		lines = append(lines, "Summary: "+ctx.TopicSummary)
	}
	if len(ctx.TopicKeywords) > 0 {
		kws := ctx.TopicKeywords
		if len(kws) > 10 {
			kws = kws[:10]
		}
		lines = append(lines, "Keywords: "+strings.Join(kws, ", "))
	}
	return lines
}

func describeFormat(f types.Format) string {
	switch f {
	case types.FormatBullet:
		return "bullet list"
	case types.FormatNumbered:
		return "numbered list"
	case types.FormatHeading:
		return "sections with headings"
	case types.FormatMixed:
		return "headings and lists as in the source"
	default:
		return "paragraphs"
	}
}
