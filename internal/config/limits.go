package config

import "fmt"

// GateConfig bounds what the execution gate accepts.
type GateConfig struct {
	TokenTTL      string `yaml:"token_ttl" json:"token_ttl"`           // Authorization token lifetime
	MaxActionAge  string `yaml:"max_action_age" json:"max_action_age"` // Staleness cutoff for user actions
	DedupCapacity int    `yaml:"dedup_capacity" json:"dedup_capacity"` // Seen-event set size before eviction
}

// TransformConfig holds validation thresholds for the transform pipeline.
type TransformConfig struct {
	DriftThreshold   float64 `yaml:"drift_threshold" json:"drift_threshold"`         // Keyword overlap needed to pass
	RecoverableDrift float64 `yaml:"recoverable_drift" json:"recoverable_drift"`     // Near-miss overlap worth escalating
	MinSourceLength  int     `yaml:"min_source_length" json:"min_source_length"`     // Runes for a prior output to count as a source
	MaxCandidates    int     `yaml:"max_candidates" json:"max_candidates"`           // Candidates offered when ambiguous
}

// ValidateLimits checks that gate and transform limits are within acceptable ranges.
func (c *Config) ValidateLimits() error {
	if c.Gate.DedupCapacity < 2 {
		return fmt.Errorf("gate.dedup_capacity must be >= 2")
	}
	if c.Transform.DriftThreshold <= 0 || c.Transform.DriftThreshold > 1 {
		return fmt.Errorf("transform.drift_threshold must be in (0, 1]")
	}
	if c.Transform.RecoverableDrift < 0 || c.Transform.RecoverableDrift > c.Transform.DriftThreshold {
		return fmt.Errorf("transform.recoverable_drift must be in [0, drift_threshold]")
	}
	if c.Transform.MaxCandidates < 1 {
		return fmt.Errorf("transform.max_candidates must be >= 1")
	}
	return nil
}
