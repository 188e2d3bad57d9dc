package fields

import (
	"context"

	"github.com/google/uuid"
	"github.com/graphql-go/graphql"

	"cms-graphql/internal/schema"
)

// IDFieldKey is the key every list's identifier field is registered under.
const IDFieldKey = "id"

// ID is the identifier field added to every list. Values are random UUIDs
// assigned on create.
func ID() schema.FieldFunc {
	return func(fc schema.FieldContext) (*schema.Field, error) {
		db := schema.Scalar(schema.ScalarString, schema.ModeRequired)
		db.IsUnique = true
		db.IsID = true
		f := &schema.Field{
			Type:    "id",
			DBField: db,
			Input: schema.FieldInputs{
				Where:       &schema.FieldInput{Arg: staticArg(fc.Filters.IDFilter)},
				UniqueWhere: &schema.FieldInput{Arg: staticArg(graphql.ID)},
				OrderBy:     orderByInput(fc.Filters),
			},
			Output: &schema.FieldOutput{
				Type: staticOutput(graphql.NewNonNull(graphql.ID)),
				Resolve: func(_ context.Context, p schema.OutputParams) (any, error) {
					return p.Item[IDFieldKey], nil
				},
			},
			DefaultValue: func(context.Context) (any, error) {
				return uuid.NewString(), nil
			},
		}
		return f, nil
	}
}
