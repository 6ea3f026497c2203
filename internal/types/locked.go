package types

import "time"

// EntityType is the regex family an entity was extracted by.
type EntityType string

const (
	EntityPercentage EntityType = "percentage"
	EntityPrice      EntityType = "price"
	EntityDate       EntityType = "date"
	EntityNumber     EntityType = "number"
	EntityBrand      EntityType = "brand"
	EntityPerson     EntityType = "person"
	EntityLocation   EntityType = "location"
)

// LockedEntity is a literal taken from the source text.
// Critical entities must reappear verbatim in any transform.
type LockedEntity struct {
	Type     EntityType `json:"type"`
	Value    string     `json:"value"`
	Critical bool       `json:"critical"`
	Context  string     `json:"context"`
}

// Format is the structural shape of a text.
type Format string

const (
	FormatParagraph Format = "paragraph"
	FormatBullet    Format = "bullet"
	FormatNumbered  Format = "numbered"
	FormatHeading   Format = "heading"
	FormatMixed     Format = "mixed"
)

// LockedContext is everything a transform of one source text must respect.
type LockedContext struct {
	Entities        []LockedEntity `json:"entities"`
	TopicSummary    string         `json:"topicSummary"`
	TopicKeywords   []string       `json:"topicKeywords"`
	RequiredFormat  Format         `json:"requiredFormat"`
	MustKeep        []string       `json:"mustKeep"`
	SourceMessageID string         `json:"sourceMessageId"`
	ExtractedAt     time.Time      `json:"extractedAt"`
}

// CriticalEntities returns the entities that must be preserved verbatim.
func (c *LockedContext) CriticalEntities() []LockedEntity {
	var out []LockedEntity
	for _, e := range c.Entities {
		if e.Critical {
			out = append(out, e)
		}
	}
	return out
}

// OptionalEntities returns the entities to preserve when relevant.
func (c *LockedContext) OptionalEntities() []LockedEntity {
	var out []LockedEntity
	for _, e := range c.Entities {
		if !e.Critical {
			out = append(out, e)
		}
	}
	return out
}
