package schemarefresh

import (
	"context"
	"fmt"
	"log/slog"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/naming"
	"cms-graphql/internal/resolver"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"

	"github.com/graphql-go/graphql"
)

// StoreOpener returns a store client serving the tables or collections of
// one generated schema.
type StoreOpener func(ctx context.Context, s *dbschema.Schema) (store.Client, error)

// BuildSchemaConfig defines inputs for shared schema assembly.
type BuildSchemaConfig struct {
	Lists           schema.Config
	OpenStore       StoreOpener
	MaxTotalResults int
	Session         func(ctx context.Context) any
	// Naming overrides the generated plural and singular names. Nil uses
	// the defaults.
	Naming *naming.Config
	Logger *slog.Logger
}

// BuildSchemaResult contains schema artifacts produced by BuildSchema.
type BuildSchemaResult struct {
	Lists         *lists.Lists
	DBSchema      *dbschema.Schema
	Store         store.Client
	Resolver      *resolver.Resolver
	GraphQLSchema graphql.Schema
}

// BuildSchema runs the canonical schema assembly pipeline used by runtime and tests.
func BuildSchema(ctx context.Context, cfg BuildSchemaConfig) (*BuildSchemaResult, error) {
	if cfg.OpenStore == nil {
		return nil, fmt.Errorf("schema builder requires a store opener")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var namer *naming.Namer
	if cfg.Naming != nil {
		namer = naming.New(*cfg.Naming, cfg.Logger)
	}

	ls, err := lists.Initialise(cfg.Lists, lists.Options{
		Namer:         namer,
		Logger:        cfg.Logger,
		FieldResolver: resolver.FieldResolver,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise lists: %w", err)
	}

	dbSchema, err := dbschema.Build(ls)
	if err != nil {
		return nil, fmt.Errorf("failed to build storage schema: %w", err)
	}

	client, err := cfg.OpenStore(ctx, dbSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	res, err := resolver.New(ls, client, resolver.Options{
		MaxTotalResults: cfg.MaxTotalResults,
		Session:         cfg.Session,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}
	graphqlSchema, err := res.Schema()
	if err != nil {
		return nil, fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	return &BuildSchemaResult{
		Lists:         ls,
		DBSchema:      dbSchema,
		Store:         client,
		Resolver:      res,
		GraphQLSchema: graphqlSchema,
	}, nil
}
