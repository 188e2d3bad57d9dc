package fields

import (
	"github.com/graphql-go/graphql"

	"cms-graphql/internal/schema"
)

// IntegerConfig configures an integer field.
type IntegerConfig struct {
	Config
	DefaultValue *int
	IsRequired   bool
	IsUnique     bool
}

// Integer stores a whole number.
func Integer(cfg IntegerConfig) schema.FieldFunc {
	return func(fc schema.FieldContext) (*schema.Field, error) {
		db := schema.Scalar(schema.ScalarInt, schema.ModeOptional)
		db.IsUnique = cfg.IsUnique
		f := &schema.Field{
			Type:       "integer",
			DBField:    db,
			Input:      scalarInputs(fc.Filters, graphql.Int, fc.Filters.IntFilter, cfg.IsUnique),
			Output:     passthroughOutput(graphql.Int),
			IsRequired: cfg.IsRequired,
		}
		if cfg.DefaultValue != nil {
			f.DefaultValue = staticDefault(*cfg.DefaultValue)
		}
		return cfg.apply(f), nil
	}
}

// FloatConfig configures a float field.
type FloatConfig struct {
	Config
	DefaultValue *float64
	IsRequired   bool
}

// Float stores a floating point number.
func Float(cfg FloatConfig) schema.FieldFunc {
	return func(fc schema.FieldContext) (*schema.Field, error) {
		f := &schema.Field{
			Type:       "float",
			DBField:    schema.Scalar(schema.ScalarFloat, schema.ModeOptional),
			Input:      scalarInputs(fc.Filters, graphql.Float, fc.Filters.FloatFilter, false),
			Output:     passthroughOutput(graphql.Float),
			IsRequired: cfg.IsRequired,
		}
		if cfg.DefaultValue != nil {
			f.DefaultValue = staticDefault(*cfg.DefaultValue)
		}
		return cfg.apply(f), nil
	}
}

// CheckboxConfig configures a checkbox field.
type CheckboxConfig struct {
	Config
	DefaultValue *bool
	IsRequired   bool
}

// Checkbox stores a boolean.
func Checkbox(cfg CheckboxConfig) schema.FieldFunc {
	return func(fc schema.FieldContext) (*schema.Field, error) {
		f := &schema.Field{
			Type:    "checkbox",
			DBField: schema.Scalar(schema.ScalarBoolean, schema.ModeOptional),
			Input: schema.FieldInputs{
				Where:   &schema.FieldInput{Arg: staticArg(fc.Filters.BooleanFilter)},
				Create:  &schema.FieldInput{Arg: staticArg(graphql.Boolean)},
				Update:  &schema.FieldInput{Arg: staticArg(graphql.Boolean)},
				OrderBy: orderByInput(fc.Filters),
			},
			Output:     passthroughOutput(graphql.Boolean),
			IsRequired: cfg.IsRequired,
		}
		if cfg.DefaultValue != nil {
			f.DefaultValue = staticDefault(*cfg.DefaultValue)
		}
		return cfg.apply(f), nil
	}
}
