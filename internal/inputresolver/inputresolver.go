// Package inputresolver turns GraphQL input values into database-ready values
// by walking them against the input type they were parsed with.
package inputresolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql"
	"golang.org/x/sync/errgroup"

	"cms-graphql/internal/gqlerrors"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/schema"
)

// RelationHandler receives the unresolved value of a relationship field in a
// create or update input and returns the value to store under the field key.
type RelationHandler func(ctx context.Context, list *lists.List, field *lists.Field, value any) (any, error)

// Resolver resolves inputs for one set of lists.
type Resolver struct {
	lists *lists.Lists
	// Relations handles relationship fields of create and update inputs.
	// When nil they resolve like any other field.
	Relations RelationHandler
}

// New creates a Resolver.
func New(ls *lists.Lists) *Resolver {
	return &Resolver{lists: ls}
}

// WithRelations returns a copy of r that delegates relationship writes to h.
func (r *Resolver) WithRelations(h RelationHandler) *Resolver {
	cp := *r
	cp.Relations = h
	return &cp
}

// Resolve resolves value, which was parsed against t.
func (r *Resolver) Resolve(ctx context.Context, value any, t graphql.Input) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch t := t.(type) {
	case *graphql.NonNull:
		inner, ok := t.OfType.(graphql.Input)
		if !ok {
			return nil, gqlerrors.Systemf("%s wraps a non-input type", t.Name())
		}
		return r.Resolve(ctx, value, inner)
	case *graphql.List:
		inner, ok := t.OfType.(graphql.Input)
		if !ok {
			return nil, gqlerrors.Systemf("%s wraps a non-input type", t.Name())
		}
		items, ok := value.([]any)
		if !ok {
			return nil, gqlerrors.Systemf("expected a list for %s but received %T", t.String(), value)
		}
		return r.resolveList(ctx, items, inner)
	case *graphql.InputObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, gqlerrors.Systemf("expected an object for %s but received %T", t.Name(), value)
		}
		if tag, ok := r.lists.TagOf(t); ok {
			return r.resolveListInput(ctx, tag, t, obj)
		}
		return r.resolveObject(ctx, t, obj)
	default:
		return value, nil
	}
}

// ResolveInput resolves the input of kind for listKey.
func (r *Resolver) ResolveInput(ctx context.Context, listKey string, kind schema.InputKind, value map[string]any) (map[string]any, error) {
	list, ok := r.lists.Get(listKey)
	if !ok {
		return nil, gqlerrors.Systemf("unknown list %q", listKey)
	}
	t := inputType(list.Types, kind)
	if t == nil {
		return nil, gqlerrors.Systemf("%s has no %s input", listKey, kind)
	}
	if value == nil {
		value = map[string]any{}
	}
	return r.resolveListInput(ctx, lists.Tag{ListKey: listKey, Kind: kind}, t, value)
}

func inputType(types *schema.TypesForList, kind schema.InputKind) *graphql.InputObject {
	switch kind {
	case schema.KindWhere:
		return types.Where
	case schema.KindUniqueWhere:
		return types.UniqueWhere
	case schema.KindCreate:
		return types.Create
	case schema.KindUpdate:
		return types.Update
	case schema.KindOrderBy:
		return types.OrderBy
	}
	return nil
}

func (r *Resolver) resolveList(ctx context.Context, items []any, inner graphql.Input) ([]any, error) {
	out := make([]any, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			resolved, err := r.Resolve(gctx, item, inner)
			if err != nil {
				return err
			}
			out[i] = resolved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) resolveObject(ctx context.Context, t *graphql.InputObject, obj map[string]any) (map[string]any, error) {
	defs := t.Fields()
	out := make(map[string]any, len(obj))
	for _, key := range sortedKeys(obj) {
		def, ok := defs[key]
		if !ok {
			return nil, gqlerrors.Systemf("%s has no field %q", t.Name(), key)
		}
		resolved, err := r.Resolve(ctx, obj[key], def.Type)
		if err != nil {
			return nil, err
		}
		out[key] = resolved
	}
	return out, nil
}

type fieldResult struct {
	key   string
	value map[string]any
}

func (r *Resolver) resolveListInput(ctx context.Context, tag lists.Tag, t *graphql.InputObject, obj map[string]any) (map[string]any, error) {
	list, ok := r.lists.Get(tag.ListKey)
	if !ok {
		return nil, gqlerrors.Systemf("unknown list %q", tag.ListKey)
	}
	defs := t.Fields()
	keys := sortedKeys(obj)
	tasks := make([]func(context.Context) (fieldResult, error), 0, len(keys))
	relation := make([]bool, len(keys))
	for i, key := range keys {
		def, ok := defs[key]
		if !ok {
			return nil, gqlerrors.Systemf("%s has no field %q", t.Name(), key)
		}
		value := obj[key]
		if tag.Kind == schema.KindWhere && isLogical(key) {
			tasks = append(tasks, func(ctx context.Context) (fieldResult, error) {
				resolved, err := r.Resolve(ctx, value, def.Type)
				return fieldResult{key: key, value: map[string]any{key: resolved}}, err
			})
			continue
		}
		field, ok := list.Field(key)
		if !ok {
			return nil, gqlerrors.Systemf("%s has no field %q", list.Key, key)
		}
		relation[i] = r.handlesRelation(field, tag.Kind)
		tasks = append(tasks, func(ctx context.Context) (fieldResult, error) {
			resolved, err := r.resolveField(ctx, list, field, tag.Kind, value, def.Type)
			return fieldResult{key: key, value: resolved}, err
		})
	}

	results := gqlerrors.AllSettled(ctx, tasks)
	out := make(map[string]any, len(obj))
	var firstErr error
	var related []string
	for i, res := range results {
		if res.Err != nil {
			if relation[i] {
				related = append(related, fmt.Sprintf("%s: %s", schema.Path(list.Key, keys[i]), res.Err.Error()))
			} else if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		for k, v := range res.Value.value {
			out[k] = v
		}
	}
	// Nested writes of sibling relationship fields fail together.
	if len(related) > 0 {
		return nil, gqlerrors.Relationship(related)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// resolveField returns the storage entries produced by one field. Most
// fields produce one entry; multi fields produce one per sub-field.
func (r *Resolver) resolveField(ctx context.Context, list *lists.List, field *lists.Field, kind schema.InputKind, value any, t graphql.Input) (map[string]any, error) {
	if r.handlesRelation(field, kind) {
		resolved, err := r.Relations(ctx, list, field, value)
		if err != nil {
			return nil, err
		}
		return map[string]any{field.Key: resolved}, nil
	}

	resolved, err := r.Resolve(ctx, value, t)
	if err != nil {
		return nil, err
	}
	if input := field.Input.For(kind); input != nil && input.Resolve != nil {
		resolved, err = input.Resolve(ctx, resolved)
		if err != nil {
			return nil, err
		}
	}
	if field.DBField.Kind != schema.DBMulti {
		return map[string]any{field.Key: resolved}, nil
	}
	return expandMulti(field, kind, resolved)
}

// expandMulti flattens a multi field into <field>__<sub> keys, reading the
// sub-fields from the declared schema.
func expandMulti(field *lists.Field, kind schema.InputKind, resolved any) (map[string]any, error) {
	out := map[string]any{}
	parts, ok := resolved.(map[string]any)
	if resolved != nil && !ok {
		return nil, gqlerrors.Systemf("the %s resolver of %s must return an object but returned %T", kind, field.Key, resolved)
	}
	for _, sub := range field.DBField.Multi {
		v, present := parts[sub.Key]
		if !present && kind != schema.KindCreate && kind != schema.KindUpdate {
			continue
		}
		out[schema.MultiKey(field.Key, sub.Key)] = v
	}
	return out, nil
}

func (r *Resolver) handlesRelation(field *lists.Field, kind schema.InputKind) bool {
	return field.Relation() != nil && r.Relations != nil && (kind == schema.KindCreate || kind == schema.KindUpdate)
}

func isLogical(key string) bool {
	return key == "AND" || key == "OR" || key == "NOT"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
