package driven

// ConfigStore provides access to persisted tool configuration.
type ConfigStore interface {
	// GetString retrieves a string configuration value, "" when unset.
	GetString(key string) string

	// GetInt retrieves an integer configuration value, 0 when unset.
	GetInt(key string) int

	// GetFloat retrieves a float configuration value, 0 when unset.
	GetFloat(key string) float64

	// Set stores a configuration value and persists immediately.
	Set(key string, value any) error
}
