package schemarefresh

import (
	"context"
	"net/http"
	"time"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/listconfig"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/resolver"
	"cms-graphql/internal/store"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
)

// Snapshot is an immutable build of one version of the list definitions.
// Requests hold on to the snapshot they started with across a reload.
type Snapshot struct {
	Schema      *graphql.Schema
	Handler     http.Handler
	Lists       *lists.Lists
	DBSchema    *dbschema.Schema
	Store       store.Client
	Resolver    *resolver.Resolver
	BuiltAt     time.Time
	Fingerprint string
}

func (s *Snapshot) listCount() int {
	if s == nil || s.Lists == nil {
		return 0
	}
	return len(s.Lists.Keys)
}

// buildSnapshot parses the raw definitions and builds the schema, store
// client and resolver on top of them.
func (m *Manager) buildSnapshot(ctx context.Context, data []byte, fingerprint string) (*Snapshot, error) {
	file, err := listconfig.Parse(data)
	if err != nil {
		return nil, err
	}
	cfg, err := file.Config()
	if err != nil {
		return nil, err
	}
	built, err := BuildSchema(ctx, BuildSchemaConfig{
		Lists:           cfg,
		OpenStore:       m.openStore,
		MaxTotalResults: m.maxTotalResults,
		Session:         m.session,
		Naming:          m.naming,
		Logger:          m.logger.Logger,
	})
	if err != nil {
		return nil, err
	}

	schema := built.GraphQLSchema
	return &Snapshot{
		Schema: &schema,
		Handler: handler.New(&handler.Config{
			Schema:     &schema,
			Pretty:     true,
			GraphiQL:   m.graphiQL,
			Playground: m.playground,
		}),
		Lists:       built.Lists,
		DBSchema:    built.DBSchema,
		Store:       built.Store,
		Resolver:    built.Resolver,
		BuiltAt:     time.Now(),
		Fingerprint: fingerprint,
	}, nil
}
