package naming

import (
	"fmt"
	"log/slog"
)

// CollisionResolver tracks registered root field names and resolves
// collisions by applying numeric suffixes when duplicates are detected.
type CollisionResolver struct {
	seenQueries map[string]string // root field name -> source type
	logger      *slog.Logger
}

// NewCollisionResolver creates a new collision resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		seenQueries: make(map[string]string),
		logger:      logger,
	}
}

// RegisterQuery registers a root field name and returns the resolved name.
// If a collision occurs, applies a numeric suffix and logs a warning.
func (c *CollisionResolver) RegisterQuery(fieldName, typeName string) string {
	if _, exists := c.seenQueries[fieldName]; !exists {
		c.seenQueries[fieldName] = typeName
		return fieldName
	}

	c.logger.Warn("root field naming collision detected, applying suffix",
		slog.String("name", fieldName),
		slog.String("existing_type", c.seenQueries[fieldName]),
		slog.String("new_type", typeName),
	)

	for i := 2; ; i++ {
		suffixed := fmt.Sprintf("%s%d", fieldName, i)
		if _, exists := c.seenQueries[suffixed]; !exists {
			c.seenQueries[suffixed] = typeName
			return suffixed
		}
	}
}
