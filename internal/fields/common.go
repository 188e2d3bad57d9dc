// Package fields provides the built-in field types.
package fields

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"

	"cms-graphql/internal/filters"
	"cms-graphql/internal/schema"
)

// Config holds the options every field type accepts.
type Config struct {
	Access  schema.FieldAccess
	Hooks   schema.FieldHooks
	GraphQL schema.FieldGraphQLConfig
	UI      schema.FieldUI
}

func (c Config) apply(f *schema.Field) *schema.Field {
	f.Access = c.Access
	f.Hooks = c.Hooks
	f.GraphQL = c.GraphQL
	f.UI = c.UI
	return f
}

func staticArg(t graphql.Input) func(schema.TypesLookup) graphql.Input {
	return func(schema.TypesLookup) graphql.Input { return t }
}

func staticOutput(t graphql.Output) func(schema.TypesLookup) graphql.Output {
	return func(schema.TypesLookup) graphql.Output { return t }
}

func orderByInput(lib *filters.Library) *schema.FieldInput {
	return &schema.FieldInput{Arg: staticArg(lib.OrderDirection)}
}

func passthroughOutput(t graphql.Output) *schema.FieldOutput {
	return &schema.FieldOutput{
		Type: staticOutput(t),
		Resolve: func(_ context.Context, p schema.OutputParams) (any, error) {
			return p.Value, nil
		},
	}
}

// scalarInputs wires the common where/create/update/orderBy inputs of a
// scalar field, plus uniqueWhere when isUnique is set.
func scalarInputs(lib *filters.Library, scalar graphql.Input, filter *graphql.InputObject, isUnique bool) schema.FieldInputs {
	inputs := schema.FieldInputs{
		Where:   &schema.FieldInput{Arg: staticArg(filter)},
		Create:  &schema.FieldInput{Arg: staticArg(scalar)},
		Update:  &schema.FieldInput{Arg: staticArg(scalar)},
		OrderBy: orderByInput(lib),
	}
	if isUnique {
		inputs.UniqueWhere = &schema.FieldInput{Arg: staticArg(scalar)}
	}
	return inputs
}

func staticDefault(value any) func(context.Context) (any, error) {
	if value == nil {
		return nil
	}
	return func(context.Context) (any, error) { return value, nil }
}

// withValidation runs check before the user supplied validateInput hook.
func withValidation(hooks schema.FieldHooks, check func(ctx context.Context, args schema.HookArgs, addError schema.AddValidationError) error) schema.FieldHooks {
	user := hooks.ValidateInput
	hooks.ValidateInput = func(ctx context.Context, args schema.HookArgs, addError schema.AddValidationError) error {
		if err := check(ctx, args, addError); err != nil {
			return err
		}
		if user != nil {
			return user(ctx, args, addError)
		}
		return nil
	}
	return hooks
}

func fieldLabel(fc schema.FieldContext, ui schema.FieldUI) string {
	if ui.Label != "" {
		return ui.Label
	}
	return fc.FieldKey
}

func invalidConfig(fc schema.FieldContext, format string, args ...any) error {
	return fmt.Errorf("%s: %s", schema.Path(fc.ListKey, fc.FieldKey), fmt.Sprintf(format, args...))
}
