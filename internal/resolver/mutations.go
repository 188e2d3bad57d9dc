package resolver

import (
	"context"

	"golang.org/x/sync/errgroup"

	"cms-graphql/internal/gqlerrors"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"
)

// afterFunc runs the afterChange hooks of a written item.
type afterFunc func(ctx context.Context) error

// createSingle creates one item. The returned afterFunc runs the
// afterChange hooks of the item and of everything created through its
// relationship inputs.
func (r *Resolver) createSingle(ctx context.Context, list *lists.List, data map[string]any) (schema.Item, afterFunc, error) {
	if data == nil {
		data = map[string]any{}
	}
	if err := r.createAllowed(ctx, list, data); err != nil {
		return nil, nil, err
	}
	if err := r.checkInputFieldAccess(ctx, list, schema.OpCreate, nil, data); err != nil {
		return nil, nil, err
	}

	nested := newNestedMutationState(r)
	var resolved map[string]any
	if len(data) > 0 {
		var err error
		resolved, err = r.inputs.WithRelations(nested.relations).ResolveInput(ctx, list.Key, schema.KindCreate, data)
		if err != nil {
			return nil, nil, classifyInput(err)
		}
	} else {
		resolved = map[string]any{}
	}
	if err := applyDefaults(ctx, list, resolved); err != nil {
		return nil, nil, err
	}

	args := r.hookArgs(ctx, list, schema.OpCreate)
	args.OriginalInput = data
	args.ResolvedData = resolved
	resolved, err := r.resolveInputHooks(ctx, list, args)
	if err != nil {
		return nil, nil, err
	}
	args.ResolvedData = resolved
	if err := r.validate(ctx, list, args); err != nil {
		return nil, nil, err
	}
	if err := r.beforeChange(ctx, list, args); err != nil {
		return nil, nil, err
	}

	m, err := r.model(list)
	if err != nil {
		return nil, nil, err
	}
	item, err := r.persist(ctx, func() (map[string]any, error) {
		return m.Create(ctx, storeData(list, resolved))
	})
	if err != nil {
		return nil, nil, err
	}
	after := func(ctx context.Context) error {
		if err := nested.afterChange(ctx); err != nil {
			return err
		}
		afterArgs := args
		afterArgs.Item = item
		return r.afterChange(ctx, list, afterArgs)
	}
	return item, after, nil
}

// applyDefaults fills the fields the create input left out.
func applyDefaults(ctx context.Context, list *lists.List, resolved map[string]any) error {
	for _, field := range list.Fields {
		if field.Field == nil || field.DefaultValue == nil {
			continue
		}
		if _, ok := resolved[field.Key]; ok {
			continue
		}
		v, err := field.DefaultValue(ctx)
		if err != nil {
			return gqlerrors.Systemf("the default value of %s failed: %v", schema.Path(list.Key, field.Key), err)
		}
		resolved[field.Key] = v
	}
	return nil
}

// storeData drops relationship fields that carry no write.
func storeData(list *lists.List, resolved map[string]any) store.Data {
	out := make(store.Data, len(resolved))
	for k, v := range resolved {
		if v == nil {
			if field, ok := list.Field(k); ok && field.Relation() != nil {
				continue
			}
		}
		out[k] = v
	}
	return out
}

// existingItem fetches the item a unique where input targets, limited to
// items the caller may both read and run op on. A missing item and a denied
// one are indistinguishable to the caller.
func (r *Resolver) existingItem(ctx context.Context, list *lists.List, op schema.Operation, where map[string]any, data map[string]any) (schema.Item, error) {
	var (
		unique               map[string]any
		readFilter, opFilter store.Filter
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		unique, err = r.resolveUniqueWhere(gctx, list, where)
		return err
	})
	g.Go(func() (err error) {
		readFilter, err = r.listAccessFilter(gctx, list, schema.OpRead, schema.AccessArgs{})
		return err
	})
	g.Go(func() (err error) {
		opFilter, err = r.listAccessFilter(gctx, list, op, schema.AccessArgs{OriginalInput: data})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m, err := r.model(list)
	if err != nil {
		return nil, err
	}
	item, err := m.FindFirst(ctx, and(store.UniqueFilter(unique), readFilter, opFilter))
	if err != nil {
		return nil, gqlerrors.Database(err)
	}
	if item == nil {
		return nil, gqlerrors.AccessDenied()
	}
	return item, nil
}

// updateSingle updates one item. Nothing is written, nested items
// included, until access to the existing item has been confirmed.
func (r *Resolver) updateSingle(ctx context.Context, list *lists.List, where, data map[string]any) (schema.Item, afterFunc, error) {
	if data == nil {
		data = map[string]any{}
	}
	existing, err := r.existingItem(ctx, list, schema.OpUpdate, where, data)
	if err != nil {
		return nil, nil, err
	}
	if err := r.checkInputFieldAccess(ctx, list, schema.OpUpdate, existing, data); err != nil {
		return nil, nil, err
	}

	nested := newNestedMutationState(r)
	resolved := map[string]any{}
	if len(data) > 0 {
		resolved, err = r.inputs.WithRelations(nested.relations).ResolveInput(ctx, list.Key, schema.KindUpdate, data)
		if err != nil {
			return nil, nil, classifyInput(err)
		}
	}

	args := r.hookArgs(ctx, list, schema.OpUpdate)
	args.OriginalInput = data
	args.ResolvedData = resolved
	args.ExistingItem = existing
	resolved, err = r.resolveInputHooks(ctx, list, args)
	if err != nil {
		return nil, nil, err
	}
	args.ResolvedData = resolved
	if err := r.validate(ctx, list, args); err != nil {
		return nil, nil, err
	}
	if err := r.beforeChange(ctx, list, args); err != nil {
		return nil, nil, err
	}

	m, err := r.model(list)
	if err != nil {
		return nil, nil, err
	}
	item, err := r.persist(ctx, func() (map[string]any, error) {
		return m.Update(ctx, existing["id"], storeData(list, resolved))
	})
	if err != nil {
		return nil, nil, err
	}
	after := func(ctx context.Context) error {
		if err := nested.afterChange(ctx); err != nil {
			return err
		}
		afterArgs := args
		afterArgs.Item = item
		return r.afterChange(ctx, list, afterArgs)
	}
	return item, after, nil
}

// deleteSingle deletes one item and returns it as it was.
func (r *Resolver) deleteSingle(ctx context.Context, list *lists.List, where map[string]any) (schema.Item, error) {
	existing, err := r.existingItem(ctx, list, schema.OpDelete, where, nil)
	if err != nil {
		return nil, err
	}
	args := r.hookArgs(ctx, list, schema.OpDelete)
	args.ExistingItem = existing
	if err := r.validate(ctx, list, args); err != nil {
		return nil, err
	}
	if err := r.beforeDelete(ctx, list, args); err != nil {
		return nil, err
	}

	m, err := r.model(list)
	if err != nil {
		return nil, err
	}
	if _, err := r.persist(ctx, func() (map[string]any, error) {
		return m.Delete(ctx, existing["id"])
	}); err != nil {
		return nil, err
	}
	if err := r.afterDelete(ctx, list, args); err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *Resolver) createOne(ctx context.Context, list *lists.List, data map[string]any) (schema.Item, error) {
	item, after, err := r.createSingle(ctx, list, data)
	if err != nil {
		return nil, err
	}
	if err := after(ctx); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *Resolver) updateOne(ctx context.Context, list *lists.List, where, data map[string]any) (schema.Item, error) {
	item, after, err := r.updateSingle(ctx, list, where, data)
	if err != nil {
		return nil, err
	}
	if err := after(ctx); err != nil {
		return nil, err
	}
	return item, nil
}

// many runs op for every input concurrently. A failed entry becomes null in
// the result and its error is reported at its index.
func many(ctx context.Context, inputs []any, op func(ctx context.Context, input map[string]any) (schema.Item, error)) []any {
	tasks := make([]func(context.Context) (schema.Item, error), len(inputs))
	for i, input := range inputs {
		m, _ := input.(map[string]any)
		tasks[i] = func(ctx context.Context) (schema.Item, error) { return op(ctx, m) }
	}
	out := make([]any, len(inputs))
	for i, res := range gqlerrors.AllSettled(ctx, tasks) {
		if res.Err != nil {
			err := res.Err
			out[i] = func() (any, error) { return nil, err }
			continue
		}
		out[i] = res.Value
	}
	return out
}
