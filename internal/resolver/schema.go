package resolver

import (
	"context"

	"github.com/graphql-go/graphql"

	"cms-graphql/internal/lists"
	"cms-graphql/internal/schema"
)

// Schema assembles the executable schema: the generated queries and
// mutations of every list plus the `keystone` admin metadata root.
func (r *Resolver) Schema() (graphql.Schema, error) {
	queryFields := graphql.Fields{}
	mutationFields := graphql.Fields{}
	var types []graphql.Type
	for _, key := range r.lists.Keys {
		list := r.lists.ByKey[key]
		if !list.Enabled.Type {
			continue
		}
		types = append(types, list.Types.Output)
		r.addQueries(queryFields, list)
		r.addMutations(mutationFields, list)
	}
	queryFields["keystone"] = r.meta.Field()

	schemaConfig := graphql.SchemaConfig{
		Query:      graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queryFields}),
		Types:      types,
		Extensions: []graphql.Extension{operationExtension{r: r}},
	}
	if len(mutationFields) > 0 {
		schemaConfig.Mutation = graphql.NewObject(graphql.ObjectConfig{
			Name:   "Mutation",
			Fields: mutationFields,
		})
	}
	return graphql.NewSchema(schemaConfig)
}

func (r *Resolver) addQueries(fields graphql.Fields, list *lists.List) {
	if !list.Enabled.Query {
		return
	}
	g := list.Names.GQL
	t := list.Types

	fields[g.ItemQueryName] = &graphql.Field{
		Type: t.Output,
		Args: graphql.FieldConfigArgument{
			"where": {Type: graphql.NewNonNull(t.UniqueWhere)},
		},
		Resolve: r.rootResolver(list, "find_one", func(ctx context.Context, p graphql.ResolveParams) (any, error) {
			where, _ := p.Args["where"].(map[string]any)
			item, err := r.findOne(ctx, list, where)
			if err != nil || item == nil {
				return nil, err
			}
			return item, nil
		}),
	}

	fields[g.ListQueryName] = &graphql.Field{
		Type: graphql.NewList(graphql.NewNonNull(t.Output)),
		Args: t.FindManyArgs,
		Resolve: r.rootResolver(list, "find_many", func(ctx context.Context, p graphql.ResolveParams) (any, error) {
			return r.findMany(ctx, list, p.Args, nil)
		}),
	}

	fields[g.ListQueryCountName] = &graphql.Field{
		Type: graphql.Int,
		Args: graphql.FieldConfigArgument{
			"where": {Type: t.Where, DefaultValue: map[string]any{}},
		},
		Resolve: r.rootResolver(list, "count", func(ctx context.Context, p graphql.ResolveParams) (any, error) {
			where, _ := p.Args["where"].(map[string]any)
			return r.count(ctx, list, where, nil)
		}),
	}
}

func (r *Resolver) addMutations(fields graphql.Fields, list *lists.List) {
	g := list.Names.GQL
	t := list.Types
	uniqueWhere := graphql.NewNonNull(t.UniqueWhere)

	if list.Enabled.Create && t.Create != nil {
		fields[g.CreateMutationName] = &graphql.Field{
			Type: t.Output,
			Args: graphql.FieldConfigArgument{
				"data": {Type: graphql.NewNonNull(t.Create)},
			},
			Resolve: r.rootResolver(list, "create", func(ctx context.Context, p graphql.ResolveParams) (any, error) {
				data, _ := p.Args["data"].(map[string]any)
				return nilItem(r.createOne(ctx, list, data))
			}),
		}
		fields[g.CreateManyMutationName] = &graphql.Field{
			Type: graphql.NewList(t.Output),
			Args: graphql.FieldConfigArgument{
				"data": {Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.Create)))},
			},
			Resolve: r.rootResolver(list, "create_many", func(ctx context.Context, p graphql.ResolveParams) (any, error) {
				inputs, _ := p.Args["data"].([]any)
				return many(ctx, inputs, func(ctx context.Context, data map[string]any) (schema.Item, error) {
					return r.createOne(ctx, list, data)
				}), nil
			}),
		}
	}

	if list.Enabled.Update && t.Update != nil {
		fields[g.UpdateMutationName] = &graphql.Field{
			Type: t.Output,
			Args: graphql.FieldConfigArgument{
				"where": {Type: uniqueWhere},
				"data":  {Type: graphql.NewNonNull(t.Update)},
			},
			Resolve: r.rootResolver(list, "update", func(ctx context.Context, p graphql.ResolveParams) (any, error) {
				where, _ := p.Args["where"].(map[string]any)
				data, _ := p.Args["data"].(map[string]any)
				return nilItem(r.updateOne(ctx, list, where, data))
			}),
		}
		fields[g.UpdateManyMutationName] = &graphql.Field{
			Type: graphql.NewList(t.Output),
			Args: graphql.FieldConfigArgument{
				"data": {Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.UpdateArgs)))},
			},
			Resolve: r.rootResolver(list, "update_many", func(ctx context.Context, p graphql.ResolveParams) (any, error) {
				inputs, _ := p.Args["data"].([]any)
				return many(ctx, inputs, func(ctx context.Context, input map[string]any) (schema.Item, error) {
					where, _ := input["where"].(map[string]any)
					data, _ := input["data"].(map[string]any)
					return r.updateOne(ctx, list, where, data)
				}), nil
			}),
		}
	}

	if list.Enabled.Delete {
		fields[g.DeleteMutationName] = &graphql.Field{
			Type: t.Output,
			Args: graphql.FieldConfigArgument{
				"where": {Type: uniqueWhere},
			},
			Resolve: r.rootResolver(list, "delete", func(ctx context.Context, p graphql.ResolveParams) (any, error) {
				where, _ := p.Args["where"].(map[string]any)
				return nilItem(r.deleteSingle(ctx, list, where))
			}),
		}
		fields[g.DeleteManyMutationName] = &graphql.Field{
			Type: graphql.NewList(t.Output),
			Args: graphql.FieldConfigArgument{
				"where": {Type: graphql.NewNonNull(graphql.NewList(uniqueWhere))},
			},
			Resolve: r.rootResolver(list, "delete_many", func(ctx context.Context, p graphql.ResolveParams) (any, error) {
				inputs, _ := p.Args["where"].([]any)
				return many(ctx, inputs, func(ctx context.Context, where map[string]any) (schema.Item, error) {
					return r.deleteSingle(ctx, list, where)
				}), nil
			}),
		}
	}
}

// rootResolver adapts an operation to a root field resolver.
func (r *Resolver) rootResolver(list *lists.List, operation string, fn func(ctx context.Context, p graphql.ResolveParams) (any, error)) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		return r.observe(p.Context, list, operation, func(ctx context.Context) (any, error) {
			return fn(ctx, p)
		})
	}
}

// nilItem keeps a nil item from becoming a non-nil interface value.
func nilItem(item schema.Item, err error) (any, error) {
	if err != nil || item == nil {
		return nil, err
	}
	return item, nil
}
