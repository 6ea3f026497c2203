package types

// SourceStatus says how the source of a transform was determined.
type SourceStatus string

const (
	SourceExplicit  SourceStatus = "explicit"
	SourceQuoted    SourceStatus = "quoted"
	SourceImplicit  SourceStatus = "implicit"
	SourceAmbiguous SourceStatus = "ambiguous"
	SourceNone      SourceStatus = "none"
)

// SourceCandidate is an output offered to the user when the source is ambiguous.
type SourceCandidate struct {
	MessageID string `json:"messageId"`
	Preview   string `json:"preview"`
}

// SourceResolution is the outcome of deciding which prior output is the source.
type SourceResolution struct {
	Status          SourceStatus      `json:"status"`
	SourceMessageID string            `json:"sourceMessageId,omitempty"`
	SourceContent   string            `json:"sourceContent,omitempty"`
	Candidates      []SourceCandidate `json:"candidates,omitempty"`
	Confidence      float64           `json:"confidence"`
}

// Resolved reports whether a single source was chosen.
func (r SourceResolution) Resolved() bool {
	return r.SourceMessageID != "" && r.Status != SourceAmbiguous && r.Status != SourceNone
}
