package types

// ActionType is the intent behind a user's free-text instruction.
type ActionType string

const (
	ActionCreateContent ActionType = "CREATE_CONTENT"
	ActionRewrite       ActionType = "REWRITE"
	ActionShorten       ActionType = "SHORTEN"
	ActionExpand        ActionType = "EXPAND"
	ActionChangeTone    ActionType = "CHANGE_TONE"
	ActionFormatConvert ActionType = "FORMAT_CONVERT"
	ActionTranslate     ActionType = "TRANSLATE"
	ActionOptimize      ActionType = "OPTIMIZE"
	ActionEvaluate      ActionType = "EVALUATE"
	ActionMeta          ActionType = "META"
)

// ActionCategory groups action types by what the pipeline does with them.
type ActionCategory string

const (
	CategoryGeneration ActionCategory = "generation"
	CategoryTransform  ActionCategory = "transform"
	CategoryEvaluation ActionCategory = "evaluation"
	CategoryMeta       ActionCategory = "meta"
)

// CategoryOf returns the category an action type belongs to.
func CategoryOf(a ActionType) ActionCategory {
	switch a {
	case ActionRewrite, ActionShorten, ActionExpand, ActionChangeTone,
		ActionFormatConvert, ActionTranslate, ActionOptimize:
		return CategoryTransform
	case ActionEvaluate:
		return CategoryEvaluation
	case ActionMeta:
		return CategoryMeta
	default:
		return CategoryGeneration
	}
}

// RequiresSource reports whether an action operates on a prior output.
func RequiresSource(a ActionType) bool {
	c := CategoryOf(a)
	return c == CategoryTransform || c == CategoryEvaluation
}

// ParseActionType maps a loose name ("shorten", "CHANGE_TONE") to an ActionType.
// The second return value is false when the name is not recognized.
func ParseActionType(name string) (ActionType, bool) {
	switch normalizeName(name) {
	case "CREATE_CONTENT", "CREATE":
		return ActionCreateContent, true
	case "REWRITE":
		return ActionRewrite, true
	case "SHORTEN":
		return ActionShorten, true
	case "EXPAND":
		return ActionExpand, true
	case "CHANGE_TONE", "TONE":
		return ActionChangeTone, true
	case "FORMAT_CONVERT", "FORMAT":
		return ActionFormatConvert, true
	case "TRANSLATE":
		return ActionTranslate, true
	case "OPTIMIZE":
		return ActionOptimize, true
	case "EVALUATE":
		return ActionEvaluate, true
	case "META":
		return ActionMeta, true
	}
	return "", false
}

func normalizeName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c == '-' || c == ' ':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// TransformMode distinguishes a bare operation from one carrying a directive.
type TransformMode string

const (
	PureTransform     TransformMode = "PURE_TRANSFORM"
	DirectedTransform TransformMode = "DIRECTED_TRANSFORM"
)

// StrictnessMode selects how hard the constraint block leans on the model.
type StrictnessMode string

const (
	ModeNormal  StrictnessMode = "NORMAL"
	ModeStrict  StrictnessMode = "STRICT"
	ModeRelaxed StrictnessMode = "RELAXED"
)

// ActionClassification is the result of classifying one user input.
type ActionClassification struct {
	Type           ActionType     `json:"type"`
	Category       ActionCategory `json:"category"`
	Confidence     float64        `json:"confidence"`
	Signals        []string       `json:"signals"`
	RequiresSource bool           `json:"requiresSource"`
	TransformMode  TransformMode  `json:"transformMode,omitempty"`

	// Unclassified is set when no pattern matched and the default policy
	// (CREATE_CONTENT at 0.5) was applied.
	Unclassified bool `json:"unclassified,omitempty"`
}
