package config

// StoreConfig configures where conversation state is persisted.
type StoreConfig struct {
	// Driver: "memory" (process lifetime) or "sqlite"
	Driver string `yaml:"driver" json:"driver"`

	// Path of the SQLite database file (sqlite driver only)
	Path string `yaml:"path" json:"path"`
}
