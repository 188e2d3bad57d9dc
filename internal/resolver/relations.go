package resolver

import (
	"context"

	"github.com/graphql-go/graphql"

	"cms-graphql/internal/gqlerrors"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"
)

// FieldResolver builds the resolver of a list output field: it applies field
// read access, hands relation fields an accessor bound to the request and
// regroups multi fields. Pass it as lists.Options.FieldResolver.
func FieldResolver(list *lists.List, field *lists.Field, output *schema.FieldOutput) graphql.FieldResolveFn {
	path := schema.Path(list.Key, field.Key)
	return func(p graphql.ResolveParams) (interface{}, error) {
		item, ok := p.Source.(schema.Item)
		if !ok {
			return nil, gqlerrors.Systemf("%s: unexpected source %T", path, p.Source)
		}
		rc := requestFromContext(p.Context)
		if rc == nil {
			return nil, gqlerrors.Systemf("%s was resolved outside of a request", path)
		}
		allowed, err := rc.resolver.fieldAllowed(p.Context, list, field, schema.OpRead, item, nil)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, nil
		}

		value := item[field.Key]
		switch {
		case field.Relation() != nil:
			value = &relationAccessor{r: rc.resolver, list: list, field: field, item: item}
		case field.DBField.Kind == schema.DBMulti:
			parts := make(map[string]any, len(field.DBField.Multi))
			for _, sub := range field.DBField.Multi {
				parts[sub.Key] = item[schema.MultiKey(field.Key, sub.Key)]
			}
			value = parts
		}
		return output.Resolve(p.Context, schema.OutputParams{
			ListKey:  list.Key,
			FieldKey: field.Key,
			Value:    value,
			Item:     item,
			Args:     p.Args,
		})
	}
}

// relationAccessor queries the items related to one item through one
// relationship field.
type relationAccessor struct {
	r     *Resolver
	list  *lists.List
	field *lists.Field
	item  schema.Item
}

var _ schema.RelationAccessor = (*relationAccessor)(nil)

func (a *relationAccessor) target() (*lists.List, error) {
	rel := a.field.Relation()
	target, ok := a.r.lists.Get(rel.List)
	if !ok {
		return nil, gqlerrors.Systemf("%s refers to the unknown list %q", schema.Path(a.list.Key, a.field.Key), rel.List)
	}
	return target, nil
}

// related builds the filter on the target list selecting the related items.
// It returns nil when the item holds no reference.
func (a *relationAccessor) related(target *lists.List) (store.Filter, error) {
	rel := a.field.Relation()
	if res := rel.Resolved; res != nil && res.ForeignKey != "" {
		fk := a.item[res.ForeignKey]
		if fk == nil {
			return nil, nil
		}
		return store.IDFilter(fk), nil
	}
	opposite, ok := target.Field(rel.Field)
	if !ok || opposite.Relation() == nil {
		return nil, gqlerrors.Systemf("%s has no opposite field %q on %s", schema.Path(a.list.Key, a.field.Key), rel.Field, target.Key)
	}
	self := store.IDFilter(a.item["id"])
	if opposite.Relation().Cardinality == schema.Many {
		return store.Filter{rel.Field: map[string]any{"some": self}}, nil
	}
	return store.Filter{rel.Field: self}, nil
}

func (a *relationAccessor) FindMany(ctx context.Context, args map[string]any) ([]schema.Item, error) {
	target, err := a.target()
	if err != nil {
		return nil, err
	}
	filter, err := a.related(target)
	if err != nil || filter == nil {
		return []schema.Item{}, err
	}
	return a.r.findMany(ctx, target, args, filter)
}

func (a *relationAccessor) Count(ctx context.Context, args map[string]any) (int, error) {
	target, err := a.target()
	if err != nil {
		return 0, err
	}
	filter, err := a.related(target)
	if err != nil || filter == nil {
		return 0, err
	}
	where, _ := args["where"].(map[string]any)
	return a.r.count(ctx, target, where, filter)
}

// FindOne returns the related item of a to-one field, or nil when there is
// none or the read access filter excludes it.
func (a *relationAccessor) FindOne(ctx context.Context) (schema.Item, error) {
	target, err := a.target()
	if err != nil {
		return nil, err
	}
	filter, err := a.related(target)
	if err != nil || filter == nil {
		return nil, err
	}
	access, err := a.r.listAccessFilter(ctx, target, schema.OpRead, schema.AccessArgs{})
	if err != nil {
		return nil, err
	}
	m, err := a.r.model(target)
	if err != nil {
		return nil, err
	}
	item, err := m.FindFirst(ctx, and(filter, access))
	if err != nil {
		return nil, gqlerrors.Database(err)
	}
	return item, nil
}
