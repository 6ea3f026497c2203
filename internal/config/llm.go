package config

// LLMConfig configures the model invocation boundary.
// The endpoint speaks the {systemMessage, userPrompt} JSON contract; it is
// usually a thin proxy in front of the actual provider.
type LLMConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"` // hard cap per call, default 60s

	// MinRequestInterval paces consecutive calls from one process.
	MinRequestInterval string `yaml:"min_request_interval"`
}
