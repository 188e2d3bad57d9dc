package fields

import (
	"github.com/graphql-go/graphql"

	"cms-graphql/internal/schema"
)

// TextConfig configures a text field.
type TextConfig struct {
	Config
	DefaultValue *string
	IsRequired   bool
	IsUnique     bool
	// DisplayMode is "input" (default) or "textarea".
	DisplayMode string
}

// Text stores a string.
func Text(cfg TextConfig) schema.FieldFunc {
	return func(fc schema.FieldContext) (*schema.Field, error) {
		displayMode := cfg.DisplayMode
		switch displayMode {
		case "":
			displayMode = "input"
		case "input", "textarea":
		default:
			return nil, invalidConfig(fc, "unknown text display mode %q", cfg.DisplayMode)
		}
		db := schema.Scalar(schema.ScalarString, schema.ModeOptional)
		db.IsUnique = cfg.IsUnique

		f := &schema.Field{
			Type:       "text",
			DBField:    db,
			Input:      scalarInputs(fc.Filters, graphql.String, fc.Filters.StringFilter, cfg.IsUnique),
			Output:     passthroughOutput(graphql.String),
			IsRequired: cfg.IsRequired,
			AdminMeta: func(schema.AdminMetaRoot) (map[string]any, error) {
				return map[string]any{"displayMode": displayMode}, nil
			},
		}
		if cfg.DefaultValue != nil {
			f.DefaultValue = staticDefault(*cfg.DefaultValue)
		}
		return cfg.apply(f), nil
	}
}
