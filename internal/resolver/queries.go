package resolver

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"cms-graphql/internal/gqlerrors"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/observability"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"
)

// findManyArgs are the arguments shared by list queries and to-many
// relation fields.
type findManyArgs struct {
	where   map[string]any
	orderBy []any
	sortBy  []any
	take    *int
	skip    int
}

func parseFindManyArgs(args map[string]any) findManyArgs {
	var out findManyArgs
	out.where, _ = args["where"].(map[string]any)
	out.orderBy, _ = args["orderBy"].([]any)
	out.sortBy, _ = args["sortBy"].([]any)
	if take, ok := intArg(args["take"]); ok {
		out.take = &take
	}
	out.skip, _ = intArg(args["skip"])
	return out
}

func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// classifyInput reports resolver failures of caller supplied input as user
// input errors.
func classifyInput(err error) error {
	if err == nil || gqlerrors.IsClassified(err) {
		return err
	}
	return gqlerrors.UserInput(err.Error())
}

func (r *Resolver) resolveWhere(ctx context.Context, list *lists.List, where map[string]any) (store.Filter, error) {
	resolved, err := r.inputs.ResolveInput(ctx, list.Key, schema.KindWhere, where)
	if err != nil {
		return nil, classifyInput(err)
	}
	return resolved, nil
}

// resolveUniqueWhere checks and resolves a unique where input. The result has
// exactly one key.
func (r *Resolver) resolveUniqueWhere(ctx context.Context, list *lists.List, input map[string]any) (map[string]any, error) {
	if len(input) != 1 {
		return nil, gqlerrors.UserInputf("Exactly one key must be passed in a unique where input but %d keys were passed", len(input))
	}
	for _, v := range input {
		if v == nil {
			return nil, gqlerrors.UserInput("The unique value provided in a unique where input must not be null")
		}
	}
	resolved, err := r.inputs.ResolveInput(ctx, list.Key, schema.KindUniqueWhere, input)
	if err != nil {
		return nil, classifyInput(err)
	}
	return resolved, nil
}

// orderTerm is one sort key and its raw direction, before resolution.
type orderTerm struct {
	key       string
	direction any
}

// resolveOrderBy checks the shape of every orderBy entry, then resolves the
// sort keys concurrently. One failure fails the whole ordering. Legacy sortBy
// terms follow the orderBy ones.
func (r *Resolver) resolveOrderBy(ctx context.Context, list *lists.List, entries, sortBy []any) ([]store.OrderBy, error) {
	inputName := list.Names.GQL.ListOrderName
	terms := make([]orderTerm, 0, len(entries)+len(sortBy))
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok || len(m) != 1 {
			return nil, gqlerrors.UserInputf("Only a single key must be passed to %s", inputName)
		}
		for key, direction := range m {
			if direction == nil {
				return nil, gqlerrors.UserInput("null cannot be passed as an order direction")
			}
			terms = append(terms, orderTerm{key: key, direction: direction})
		}
	}
	for _, entry := range sortBy {
		s, _ := entry.(string)
		if k, ok := strings.CutSuffix(s, "_ASC"); ok {
			terms = append(terms, orderTerm{key: k, direction: store.Asc})
		} else if k, ok := strings.CutSuffix(s, "_DESC"); ok {
			terms = append(terms, orderTerm{key: k, direction: store.Desc})
		} else {
			return nil, gqlerrors.UserInputf("invalid sortBy value %q", s)
		}
	}

	out := make([]store.OrderBy, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	for i, term := range terms {
		g.Go(func() error {
			order, err := resolveOrderField(gctx, list, term.key, term.direction)
			if err != nil {
				return err
			}
			out[i] = order
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveOrderField(ctx context.Context, list *lists.List, key string, direction any) (store.OrderBy, error) {
	field, ok := list.Field(key)
	if !ok || field.Input.OrderBy == nil || !field.Enabled.OrderBy {
		return store.OrderBy{}, gqlerrors.UserInputf("%s cannot be ordered by %q", list.Key, key)
	}
	resolved := direction
	if field.Input.OrderBy.Resolve != nil {
		var err error
		resolved, err = field.Input.OrderBy.Resolve(ctx, direction)
		if err != nil {
			return store.OrderBy{}, classifyInput(err)
		}
	}
	column := key
	if field.DBField.Kind == schema.DBMulti {
		m, ok := resolved.(map[string]any)
		if !ok || len(m) != 1 {
			return store.OrderBy{}, gqlerrors.Systemf("the orderBy resolver of %s must return an object with exactly one key", schema.Path(list.Key, key))
		}
		for sub, v := range m {
			column, resolved = schema.MultiKey(key, sub), v
		}
	}
	dir, _ := resolved.(string)
	if dir != store.Asc && dir != store.Desc {
		return store.OrderBy{}, gqlerrors.UserInputf("invalid order direction %v for %s", resolved, schema.Path(list.Key, key))
	}
	return store.OrderBy{Field: column, Direction: dir}, nil
}

// findOne returns the item matching a unique where input, or nil when there
// is none or the read access filter excludes it. A caller denied read access
// to the whole list gets KS_ACCESS_DENIED.
func (r *Resolver) findOne(ctx context.Context, list *lists.List, where map[string]any) (schema.Item, error) {
	unique, err := r.resolveUniqueWhere(ctx, list, where)
	if err != nil {
		return nil, err
	}
	access, err := r.listAccessFilter(ctx, list, schema.OpRead, schema.AccessArgs{})
	if err != nil {
		return nil, err
	}
	m, err := r.model(list)
	if err != nil {
		return nil, err
	}
	item, err := m.FindFirst(ctx, and(store.UniqueFilter(unique), access))
	if err != nil {
		return nil, gqlerrors.Database(err)
	}
	return item, nil
}

// findMany runs a list query. extra further restricts the items, e.g. to the
// ones related to a parent item.
func (r *Resolver) findMany(ctx context.Context, list *lists.List, args map[string]any, extra store.Filter) ([]schema.Item, error) {
	parsed := parseFindManyArgs(args)
	if parsed.skip < 0 {
		return nil, gqlerrors.UserInput("skip must not be negative")
	}
	if parsed.take != nil && *parsed.take < 0 {
		return nil, gqlerrors.UserInput("take must not be negative")
	}
	// Ordering, early limit, where, access. The first failure wins.
	orderBy, err := r.resolveOrderBy(ctx, list, parsed.orderBy, parsed.sortBy)
	if err != nil {
		return nil, err
	}
	if list.MaxResults > 0 && parsed.take != nil && *parsed.take > list.MaxResults {
		return nil, gqlerrors.LimitsExceeded(list.Key, gqlerrors.LimitMaxResults, list.MaxResults)
	}
	where, err := r.resolveWhere(ctx, list, parsed.where)
	if err != nil {
		return nil, err
	}
	access, err := r.listAccessFilter(ctx, list, schema.OpRead, schema.AccessArgs{})
	if err != nil {
		return nil, err
	}

	m, err := r.model(list)
	if err != nil {
		return nil, err
	}
	findArgs := store.FindArgs{Where: and(where, access, extra), OrderBy: orderBy, Take: parsed.take, Skip: parsed.skip}
	if findArgs.Take == nil && list.MaxResults > 0 {
		// One more than allowed is enough to detect an oversized result.
		limit := list.MaxResults + 1
		findArgs.Take = &limit
	}
	items, err := m.FindMany(ctx, findArgs)
	if err != nil {
		return nil, gqlerrors.Database(err)
	}
	if list.MaxResults > 0 && len(items) > list.MaxResults {
		return nil, gqlerrors.LimitsExceeded(list.Key, gqlerrors.LimitMaxResults, list.MaxResults)
	}
	if rc := requestFromContext(ctx); rc != nil {
		if _, ok := rc.addResults(len(items)); !ok {
			return nil, gqlerrors.LimitsExceeded(list.Key, gqlerrors.LimitMaxTotalResults, rc.maxTotalResults)
		}
	}
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordItemsReturned(ctx, list.Key, len(items))
	}
	return items, nil
}

// count counts the items matching where that the caller may read. Like
// findMany it fails with KS_ACCESS_DENIED when read access is denied.
func (r *Resolver) count(ctx context.Context, list *lists.List, where map[string]any, extra store.Filter) (int, error) {
	resolved, err := r.resolveWhere(ctx, list, where)
	if err != nil {
		return 0, err
	}
	access, err := r.listAccessFilter(ctx, list, schema.OpRead, schema.AccessArgs{})
	if err != nil {
		return 0, err
	}
	m, err := r.model(list)
	if err != nil {
		return 0, err
	}
	n, err := m.Count(ctx, and(resolved, access, extra))
	if err != nil {
		return 0, gqlerrors.Database(err)
	}
	return n, nil
}
