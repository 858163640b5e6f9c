package store

// Config holds configuration for the DynamoDB-backed store.
type Config struct {
	// Table is the name of the records table (pk: "{kind}:{id}").
	// Default: "corkboard_records"
	Table string

	// ParentIndex is the name of the GSI keyed by the parent attribute
	// (hash: parent, range: created_at). It serves child enumeration and
	// board listing by owner.
	// Default: "parent-index"
	ParentIndex string
}

// DefaultConfig returns the default table layout.
func DefaultConfig() Config {
	return Config{
		Table:       "corkboard_records",
		ParentIndex: "parent-index",
	}
}

// validate fills in defaults for zero values.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "corkboard_records"
	}
	if c.ParentIndex == "" {
		c.ParentIndex = "parent-index"
	}
}
