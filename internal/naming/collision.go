package naming

import (
	"fmt"
	"log/slog"
)

// CollisionResolver tracks generated names and reports duplicates.
type CollisionResolver struct {
	seenTypes  map[string]string // GraphQL type name → source
	seenFields map[string]string // root field name → source
	logger     *slog.Logger
}

// NewCollisionResolver creates a new collision resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		seenTypes:  make(map[string]string),
		seenFields: make(map[string]string),
		logger:     logger,
	}
}

// RegisterType claims a GraphQL type name for source.
func (c *CollisionResolver) RegisterType(name, source string) error {
	return c.claim(name, c.seenTypes, source, "type")
}

// RegisterRootField claims a Query or Mutation field name for source.
func (c *CollisionResolver) RegisterRootField(name, source string) error {
	return c.claim(name, c.seenFields, source, "root field")
}

func (c *CollisionResolver) claim(name string, seen map[string]string, source, kind string) error {
	existing, exists := seen[name]
	if !exists {
		seen[name] = source
		return nil
	}
	if existing == source {
		return nil
	}
	c.logger.Warn("naming collision detected",
		slog.String("name", name),
		slog.String("kind", kind),
		slog.String("existing_source", existing),
		slog.String("new_source", source),
	)
	return fmt.Errorf("the generated GraphQL %s %q of %s collides with the one generated for %s", kind, name, source, existing)
}
