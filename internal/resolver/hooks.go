package resolver

import (
	"context"
	"fmt"
	"sync"

	"cms-graphql/internal/gqlerrors"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/schema"
)

type sideEffectHook = func(ctx context.Context, args schema.HookArgs) error

type validationHook = func(ctx context.Context, args schema.HookArgs, addError schema.AddValidationError) error

func (r *Resolver) hookArgs(ctx context.Context, list *lists.List, op schema.Operation) schema.HookArgs {
	return schema.HookArgs{
		ListKey:   list.Key,
		Operation: op,
		Session:   SessionFromContext(ctx),
	}
}

// runFieldHooks runs, concurrently, the hook call built for every field.
// Fields for which build returns nil are skipped, as are fields include
// rejects.
func runFieldHooks(list *lists.List, runner *gqlerrors.HookRunner, include func(string) bool, build func(field *lists.Field) func() error) {
	var wg sync.WaitGroup
	for _, field := range list.Fields {
		if field.Field == nil || (include != nil && !include(field.Key)) {
			continue
		}
		call := build(field)
		if call == nil {
			continue
		}
		wg.Go(func() {
			runner.Run(schema.Path(list.Key, field.Key), call)
		})
	}
	wg.Wait()
}

// resolveInputHooks runs the field and then the list resolveInput hooks and
// returns the data to persist.
func (r *Resolver) resolveInputHooks(ctx context.Context, list *lists.List, args schema.HookArgs) (map[string]any, error) {
	resolved := make(map[string]any, len(args.ResolvedData))
	for k, v := range args.ResolvedData {
		resolved[k] = v
	}

	runner := &gqlerrors.HookRunner{Name: "resolveInput"}
	var mu sync.Mutex
	updates := map[string]any{}
	runFieldHooks(list, runner, nil, func(field *lists.Field) func() error {
		hook := field.Hooks.ResolveInput
		if hook == nil {
			return nil
		}
		return func() error {
			fieldArgs := args
			fieldArgs.FieldKey = field.Key
			fieldArgs.ResolvedData = resolved
			v, err := hook(ctx, fieldArgs)
			if err != nil {
				return err
			}
			mu.Lock()
			updates[field.Key] = v
			mu.Unlock()
			return nil
		}
	})
	if err := runner.Err(); err != nil {
		return nil, err
	}
	for key, v := range updates {
		// A hook returning nil for a field the caller left out keeps it out.
		if _, present := resolved[key]; present || v != nil {
			resolved[key] = v
		}
	}

	if list.Hooks.ResolveInput == nil {
		return resolved, nil
	}
	listRunner := &gqlerrors.HookRunner{Name: "resolveInput"}
	listArgs := args
	listArgs.ResolvedData = resolved
	listRunner.Run(list.Key, func() error {
		out, err := list.Hooks.ResolveInput(ctx, listArgs)
		if err != nil {
			return err
		}
		if out == nil {
			return fmt.Errorf("resolveInput must return the data to persist")
		}
		resolved = out
		return nil
	})
	if err := listRunner.Err(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// validate runs the required checks and validation hooks of a create or
// update, or the validateDelete hooks of a delete.
func (r *Resolver) validate(ctx context.Context, list *lists.List, args schema.HookArgs) error {
	var (
		mu       sync.Mutex
		messages []string
	)
	addError := func(msg string) {
		mu.Lock()
		messages = append(messages, msg)
		mu.Unlock()
	}

	name := "validateInput"
	pick := func(h schema.FieldHooks) validationHook { return h.ValidateInput }
	listHook := list.Hooks.ValidateInput
	if args.Operation == schema.OpDelete {
		name = "validateDelete"
		pick = func(h schema.FieldHooks) validationHook { return h.ValidateDelete }
		listHook = list.Hooks.ValidateDelete
	} else {
		for _, field := range list.Fields {
			if field.Field == nil || !field.IsRequired {
				continue
			}
			value, present := args.ResolvedData[field.Key]
			if value == nil && (present || args.Operation == schema.OpCreate) {
				addError(fmt.Sprintf("Required field %q is null or undefined.", field.Key))
			}
		}
	}

	runner := &gqlerrors.HookRunner{Name: name}
	runFieldHooks(list, runner, nil, func(field *lists.Field) func() error {
		hook := pick(field.Hooks)
		if hook == nil {
			return nil
		}
		return func() error {
			fieldArgs := args
			fieldArgs.FieldKey = field.Key
			return hook(ctx, fieldArgs, addError)
		}
	})
	if listHook != nil {
		runner.Run(list.Key, func() error { return listHook(ctx, args, addError) })
	}
	if err := runner.Err(); err != nil {
		return err
	}
	if len(messages) > 0 {
		return gqlerrors.Validation(messages)
	}
	return nil
}

// sideEffects runs a before or after hook of the fields and then of the
// list. Field hooks run only for fields present in the original input,
// except on delete where every field hook runs.
func (r *Resolver) sideEffects(ctx context.Context, list *lists.List, name string, args schema.HookArgs, pick func(schema.FieldHooks) sideEffectHook, listHook sideEffectHook) error {
	include := func(key string) bool {
		if args.Operation == schema.OpDelete {
			return true
		}
		_, ok := args.OriginalInput[key]
		return ok
	}
	runner := &gqlerrors.HookRunner{Name: name}
	runFieldHooks(list, runner, include, func(field *lists.Field) func() error {
		hook := pick(field.Hooks)
		if hook == nil {
			return nil
		}
		return func() error {
			fieldArgs := args
			fieldArgs.FieldKey = field.Key
			return hook(ctx, fieldArgs)
		}
	})
	if err := runner.Err(); err != nil {
		return err
	}
	if listHook == nil {
		return nil
	}
	listRunner := &gqlerrors.HookRunner{Name: name}
	listRunner.Run(list.Key, func() error { return listHook(ctx, args) })
	return listRunner.Err()
}

func (r *Resolver) beforeChange(ctx context.Context, list *lists.List, args schema.HookArgs) error {
	return r.sideEffects(ctx, list, "beforeChange", args, func(h schema.FieldHooks) sideEffectHook { return h.BeforeChange }, list.Hooks.BeforeChange)
}

func (r *Resolver) afterChange(ctx context.Context, list *lists.List, args schema.HookArgs) error {
	return r.sideEffects(ctx, list, "afterChange", args, func(h schema.FieldHooks) sideEffectHook { return h.AfterChange }, list.Hooks.AfterChange)
}

func (r *Resolver) beforeDelete(ctx context.Context, list *lists.List, args schema.HookArgs) error {
	return r.sideEffects(ctx, list, "beforeDelete", args, func(h schema.FieldHooks) sideEffectHook { return h.BeforeDelete }, list.Hooks.BeforeDelete)
}

func (r *Resolver) afterDelete(ctx context.Context, list *lists.List, args schema.HookArgs) error {
	return r.sideEffects(ctx, list, "afterDelete", args, func(h schema.FieldHooks) sideEffectHook { return h.AfterDelete }, list.Hooks.AfterDelete)
}
