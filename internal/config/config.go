package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all redraft configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Model invocation boundary
	LLM LLMConfig `yaml:"llm"`

	// Execution gate limits
	Gate GateConfig `yaml:"gate"`

	// Transform validation thresholds
	Transform TransformConfig `yaml:"transform"`

	// Conversation state persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "redraft",
		Version: "0.4.0",

		LLM: LLMConfig{
			Endpoint:           "http://localhost:8787/api/llm",
			Timeout:            "60s",
			MinRequestInterval: "100ms",
		},

		Gate: GateConfig{
			TokenTTL:      "30s",
			MaxActionAge:  "5s",
			DedupCapacity: 1000,
		},

		Transform: TransformConfig{
			DriftThreshold:   0.5,
			RecoverableDrift: 0.3,
			MinSourceLength:  30,
			MaxCandidates:    5,
		},

		Store: StoreConfig{
			Driver: "memory",
			Path:   "data/redraft.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("REDRAFT_ENDPOINT"); url != "" {
		c.LLM.Endpoint = url
	}
	if key := os.Getenv("REDRAFT_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if path := os.Getenv("REDRAFT_DB"); path != "" {
		c.Store.Path = path
		if c.Store.Driver == "" || c.Store.Driver == "memory" {
			c.Store.Driver = "sqlite"
		}
	}
	if level := os.Getenv("REDRAFT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetLLMTimeout returns the model call timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 60*time.Second)
}

// GetMinRequestInterval returns the pacing interval between model calls.
func (c *Config) GetMinRequestInterval() time.Duration {
	return parseDuration(c.LLM.MinRequestInterval, 0)
}

// GetTokenTTL returns the authorization token lifetime.
func (c *Config) GetTokenTTL() time.Duration {
	return parseDuration(c.Gate.TokenTTL, 30*time.Second)
}

// GetMaxActionAge returns how old a user action may be before it is stale.
func (c *Config) GetMaxActionAge() time.Duration {
	return parseDuration(c.Gate.MaxActionAge, 5*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// ValidStoreDrivers lists all supported store drivers.
var ValidStoreDrivers = []string{"memory", "sqlite"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("llm endpoint not configured (set llm.endpoint or REDRAFT_ENDPOINT)")
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); c.LLM.Timeout != "" && err != nil {
		return fmt.Errorf("invalid llm timeout %q: %w", c.LLM.Timeout, err)
	}

	validDriver := false
	for _, d := range ValidStoreDrivers {
		if c.Store.Driver == d {
			validDriver = true
			break
		}
	}
	if !validDriver {
		return fmt.Errorf("invalid store driver: %s (valid: %v)", c.Store.Driver, ValidStoreDrivers)
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("store path required for sqlite driver")
	}

	if err := c.ValidateLimits(); err != nil {
		return err
	}
	return nil
}
