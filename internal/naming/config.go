// Package naming derives the generated GraphQL root field names (list,
// connection, aggregate and mutation fields) from type names, including
// pluralization and collision handling.
package naming

// Config holds naming customization options
type Config struct {
	// PluralOverrides maps a type name to a custom plural.
	// Example: {"Person": "People", "Status": "Statuses"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PluralOverrides: make(map[string]string),
	}
}
