package naming

import (
	"log/slog"
	"strings"
)

// Namer derives root operation field names from type names. It handles
// pluralization and collisions between types that pluralize identically.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset clears the collision resolver state, allowing the namer to be reused
// for a new schema compilation.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// RootNames holds the generated root field names for one type.
type RootNames struct {
	// Plural is the camelCase plural, also used as the mutation response field.
	Plural     string
	List       string
	Connection string
	Aggregate  string
	Create     string
	Update     string
	Delete     string
}

// RootNames registers typeName and returns its root field names. plural,
// when non-empty, is the value of an explicit @plural directive.
// Example: "Movie" -> movies, moviesConnection, moviesAggregate, createMovies
func (n *Namer) RootNames(typeName, plural string) RootNames {
	if plural == "" {
		plural = n.Pluralize(typeName)
	}
	list := n.resolver.RegisterQuery(LowerFirst(plural), typeName)
	pascal := UpperFirst(list)
	return RootNames{
		Plural:     list,
		List:       list,
		Connection: list + "Connection",
		Aggregate:  list + "Aggregate",
		Create:     "create" + pascal,
		Update:     "update" + pascal,
		Delete:     "delete" + pascal,
	}
}

// ConnectionFieldName returns the connection field generated for a
// relationship field. Example: "actors" -> "actorsConnection"
func ConnectionFieldName(field string) string {
	return field + "Connection"
}

// AggregateFieldName returns the aggregate field generated for a
// relationship field. Example: "actors" -> "actorsAggregate"
func AggregateFieldName(field string) string {
	return field + "Aggregate"
}

// IsReservedTypeName reports whether name cannot be used for a node type.
func IsReservedTypeName(name string) bool {
	if strings.HasPrefix(name, "__") {
		return true
	}
	switch name {
	case "Query", "Mutation", "Subscription", "PageInfo", "String", "Int", "Float", "Boolean", "ID":
		return true
	}
	return false
}

// LowerFirst lowercases the first rune of s.
func LowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// UpperFirst uppercases the first rune of s.
func UpperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
