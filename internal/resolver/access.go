package resolver

import (
	"context"
	"errors"

	"cms-graphql/internal/gqlerrors"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"
)

func listRule(access schema.ListAccess, op schema.Operation) schema.AccessRule {
	switch op {
	case schema.OpCreate:
		return access.Create
	case schema.OpUpdate:
		return access.Update
	case schema.OpDelete:
		return access.Delete
	default:
		return access.Read
	}
}

func fieldRule(access schema.FieldAccess, op schema.Operation) schema.AccessRule {
	switch op {
	case schema.OpCreate:
		return access.Create
	case schema.OpUpdate:
		return access.Update
	default:
		return access.Read
	}
}

// accessFailed classifies an error returned by an access rule.
func accessFailed(path string, op schema.Operation, err error) error {
	if gqlerrors.IsClassified(err) {
		return err
	}
	if errors.Is(err, schema.ErrFilterNotAllowed) {
		return gqlerrors.Systemf("the %s access rule of %s must return a boolean", op, path)
	}
	return gqlerrors.Systemf("the %s access rule of %s failed: %v", op, path, err)
}

// listAccessFilter evaluates the list rule of op. It returns the resolved
// filter that scopes the operation, or nil when every item is accessible.
func (r *Resolver) listAccessFilter(ctx context.Context, list *lists.List, op schema.Operation, args schema.AccessArgs) (store.Filter, error) {
	args.Session = SessionFromContext(ctx)
	args.ListKey = list.Key
	args.Operation = op
	res, err := listRule(list.Access, op).Evaluate(ctx, args)
	if err != nil {
		return nil, accessFailed(list.Key, op, err)
	}
	if !res.Allowed {
		return nil, gqlerrors.AccessDenied()
	}
	if res.Filter == nil {
		return nil, nil
	}
	resolved, err := r.inputs.ResolveInput(ctx, list.Key, schema.KindWhere, res.Filter)
	if err != nil {
		return nil, gqlerrors.Systemf("the %s access filter of %s is invalid: %v", op, list.Key, err)
	}
	return resolved, nil
}

// createAllowed evaluates the boolean create rule of a list.
func (r *Resolver) createAllowed(ctx context.Context, list *lists.List, data map[string]any) error {
	allowed, err := list.Access.Create.EvaluateBool(ctx, schema.AccessArgs{
		Session:       SessionFromContext(ctx),
		ListKey:       list.Key,
		Operation:     schema.OpCreate,
		OriginalInput: data,
	})
	if err != nil {
		return accessFailed(list.Key, schema.OpCreate, err)
	}
	if !allowed {
		return gqlerrors.AccessDenied()
	}
	return nil
}

// fieldAllowed evaluates the rule of one field.
func (r *Resolver) fieldAllowed(ctx context.Context, list *lists.List, field *lists.Field, op schema.Operation, item schema.Item, data map[string]any) (bool, error) {
	args := schema.AccessArgs{
		Session:       SessionFromContext(ctx),
		ListKey:       list.Key,
		FieldKey:      field.Key,
		Operation:     op,
		Item:          item,
		OriginalInput: data,
	}
	if item != nil {
		args.ItemID = item["id"]
	}
	allowed, err := fieldRule(field.Access, op).EvaluateBool(ctx, args)
	if err != nil {
		return false, accessFailed(schema.Path(list.Key, field.Key), op, err)
	}
	return allowed, nil
}

// checkInputFieldAccess denies the write when any field of data may not be
// written by the caller.
func (r *Resolver) checkInputFieldAccess(ctx context.Context, list *lists.List, op schema.Operation, item schema.Item, data map[string]any) error {
	for key := range data {
		field, ok := list.Field(key)
		if !ok {
			return gqlerrors.UserInputf("%s has no field %q", list.Key, key)
		}
		allowed, err := r.fieldAllowed(ctx, list, field, op, item, data)
		if err != nil {
			return err
		}
		if !allowed {
			return gqlerrors.AccessDenied()
		}
	}
	return nil
}

// and combines filters, dropping empty ones.
func and(filters ...store.Filter) store.Filter {
	var parts []any
	for _, f := range filters {
		if len(f) > 0 {
			parts = append(parts, f)
		}
	}
	switch len(parts) {
	case 0:
		return store.Filter{}
	case 1:
		return parts[0].(store.Filter)
	}
	return store.Filter{"AND": parts}
}
