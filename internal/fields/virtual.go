package fields

import (
	"context"

	"github.com/graphql-go/graphql"

	"cms-graphql/internal/schema"
)

// VirtualConfig configures a virtual field.
type VirtualConfig struct {
	Config
	// Type returns the GraphQL type of the field. It may reference other
	// lists' output types.
	Type func(types schema.TypesLookup) graphql.Output
	Args graphql.FieldConfigArgument
	// Resolve computes the value from the stored item.
	Resolve func(ctx context.Context, item schema.Item, args map[string]any) (any, error)
	// ReturnFragment is the selection the admin UI requests for object types.
	ReturnFragment string
}

// Virtual is a read-only field computed at query time. It has no storage.
func Virtual(cfg VirtualConfig) schema.FieldFunc {
	return func(fc schema.FieldContext) (*schema.Field, error) {
		if cfg.Type == nil || cfg.Resolve == nil {
			return nil, invalidConfig(fc, "virtual fields need a type and a resolver")
		}
		args := cfg.Args
		f := &schema.Field{
			Type:    "virtual",
			DBField: schema.DBField{Kind: schema.DBNone},
			Output: &schema.FieldOutput{
				Type: cfg.Type,
				Args: func(schema.TypesLookup) graphql.FieldConfigArgument { return args },
				Resolve: func(ctx context.Context, p schema.OutputParams) (any, error) {
					return cfg.Resolve(ctx, p.Item, p.Args)
				},
			},
			AdminMeta: func(schema.AdminMetaRoot) (map[string]any, error) {
				return map[string]any{"graphQLReturnFragment": cfg.ReturnFragment}, nil
			},
		}
		cfg.apply(f)
		return f, nil
	}
}
