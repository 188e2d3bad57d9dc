package fields

import (
	"context"
	"time"

	"github.com/graphql-go/graphql"

	"cms-graphql/internal/filters"
	"cms-graphql/internal/schema"
)

// TimestampConfig configures a timestamp field.
type TimestampConfig struct {
	Config
	// DefaultValue is an ISO-8601 instant.
	DefaultValue string
	IsRequired   bool
	IsUnique     bool
}

// Timestamp stores an instant. It is exchanged as an ISO-8601 string and
// stored as a UTC time.Time.
func Timestamp(cfg TimestampConfig) schema.FieldFunc {
	return func(fc schema.FieldContext) (*schema.Field, error) {
		db := schema.Scalar(schema.ScalarDateTime, schema.ModeOptional)
		db.IsUnique = cfg.IsUnique

		parse := func(_ context.Context, value any) (any, error) {
			return filters.ParseTimestamp(value)
		}
		f := &schema.Field{
			Type:    "timestamp",
			DBField: db,
			Input: schema.FieldInputs{
				Where: &schema.FieldInput{
					Arg: staticArg(fc.Filters.DateTimeFilter),
					Resolve: func(_ context.Context, value any) (any, error) {
						return filters.ResolveDateTimeFilter(value)
					},
				},
				Create:  &schema.FieldInput{Arg: staticArg(graphql.String), Resolve: parse},
				Update:  &schema.FieldInput{Arg: staticArg(graphql.String), Resolve: parse},
				OrderBy: orderByInput(fc.Filters),
			},
			Output: &schema.FieldOutput{
				Type: staticOutput(graphql.String),
				Resolve: func(_ context.Context, p schema.OutputParams) (any, error) {
					t, ok := p.Value.(time.Time)
					if !ok {
						return p.Value, nil
					}
					return filters.FormatTimestamp(t), nil
				},
			},
			IsRequired: cfg.IsRequired,
		}
		if cfg.IsUnique {
			f.Input.UniqueWhere = &schema.FieldInput{Arg: staticArg(graphql.String), Resolve: parse}
		}
		if cfg.DefaultValue != "" {
			def, err := filters.ParseTimestamp(cfg.DefaultValue)
			if err != nil {
				return nil, invalidConfig(fc, "invalid default value: %v", err)
			}
			f.DefaultValue = staticDefault(def)
		}
		return cfg.apply(f), nil
	}
}
