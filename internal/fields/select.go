package fields

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/graphql-go/graphql"

	"cms-graphql/internal/schema"
)

// Select data types.
const (
	SelectString  = "string"
	SelectEnum    = "enum"
	SelectInteger = "integer"
)

var enumValuePattern = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// SelectOption is one choice. Value is a string, or an int for integer selects.
type SelectOption struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// SelectConfig configures a select field.
type SelectConfig struct {
	Config
	Options []SelectOption
	// DataType is "string" (default), "enum" or "integer".
	DataType string
	// EnumName names the GraphQL enum of an enum select. Defaults to
	// <List><Field>Type.
	EnumName     string
	DefaultValue any
	IsRequired   bool
	IsUnique     bool
	// DisplayMode is "select" (default) or "segmented-control".
	DisplayMode string
}

// Select stores one value out of a fixed set of options.
func Select(cfg SelectConfig) schema.FieldFunc {
	return func(fc schema.FieldContext) (*schema.Field, error) {
		if len(cfg.Options) == 0 {
			return nil, invalidConfig(fc, "select fields need at least one option")
		}
		dataType := cfg.DataType
		if dataType == "" {
			dataType = SelectString
		}
		displayMode := cfg.DisplayMode
		if displayMode == "" {
			displayMode = "select"
		}
		if displayMode != "select" && displayMode != "segmented-control" {
			return nil, invalidConfig(fc, "unknown select display mode %q", cfg.DisplayMode)
		}

		f := &schema.Field{Type: "select", IsRequired: cfg.IsRequired}
		var allowed []any
		switch dataType {
		case SelectInteger:
			for _, opt := range cfg.Options {
				n, ok := toInt(opt.Value)
				if !ok {
					return nil, invalidConfig(fc, "option %q of an integer select must have an integer value", opt.Label)
				}
				allowed = append(allowed, n)
			}
			f.DBField = schema.Scalar(schema.ScalarInt, schema.ModeOptional)
			f.Input = scalarInputs(fc.Filters, graphql.Int, fc.Filters.IntFilter, cfg.IsUnique)
			f.Output = passthroughOutput(graphql.Int)
		case SelectString:
			for _, opt := range cfg.Options {
				s, ok := opt.Value.(string)
				if !ok {
					return nil, invalidConfig(fc, "option %q of a string select must have a string value", opt.Label)
				}
				allowed = append(allowed, s)
			}
			f.DBField = schema.Scalar(schema.ScalarString, schema.ModeOptional)
			f.Input = scalarInputs(fc.Filters, graphql.String, fc.Filters.StringFilter, cfg.IsUnique)
			f.Output = passthroughOutput(graphql.String)
		case SelectEnum:
			enumName := cfg.EnumName
			if enumName == "" {
				enumName = fc.ListKey + strings.ToUpper(fc.FieldKey[:1]) + fc.FieldKey[1:] + "Type"
			}
			values := make([]string, 0, len(cfg.Options))
			enumValues := graphql.EnumValueConfigMap{}
			for _, opt := range cfg.Options {
				s, ok := opt.Value.(string)
				if !ok || !enumValuePattern.MatchString(s) {
					return nil, invalidConfig(fc, "option %q of an enum select must be a valid GraphQL enum value", opt.Label)
				}
				values = append(values, s)
				enumValues[s] = &graphql.EnumValueConfig{Value: s}
				allowed = append(allowed, s)
			}
			enumType, ok := fc.Filters.Shared(enumName, func() graphql.Type {
				return graphql.NewEnum(graphql.EnumConfig{Name: enumName, Values: enumValues})
			}).(*graphql.Enum)
			if !ok {
				return nil, invalidConfig(fc, "the name %q is already used by another type", enumName)
			}
			f.DBField = schema.DBField{
				Kind:       schema.DBEnum,
				Scalar:     schema.ScalarString,
				Mode:       schema.ModeOptional,
				IsUnique:   cfg.IsUnique,
				EnumValues: values,
			}
			f.Input = schema.FieldInputs{
				Where:   &schema.FieldInput{Arg: staticArg(fc.Filters.EnumFilter(enumName+"Filter", enumType))},
				Create:  &schema.FieldInput{Arg: staticArg(enumType)},
				Update:  &schema.FieldInput{Arg: staticArg(enumType)},
				OrderBy: orderByInput(fc.Filters),
			}
			f.Output = passthroughOutput(enumType)
		default:
			return nil, invalidConfig(fc, "unknown select data type %q", cfg.DataType)
		}
		f.DBField.IsUnique = cfg.IsUnique

		if cfg.DefaultValue != nil {
			if !containsOption(allowed, cfg.DefaultValue) {
				return nil, invalidConfig(fc, "default value %v is not one of the options", cfg.DefaultValue)
			}
			f.DefaultValue = staticDefault(cfg.DefaultValue)
		}

		options := cfg.Options
		f.AdminMeta = func(schema.AdminMetaRoot) (map[string]any, error) {
			return map[string]any{
				"options":     options,
				"dataType":    dataType,
				"displayMode": displayMode,
			}, nil
		}
		cfg.apply(f)
		f.Hooks = withValidation(f.Hooks, func(_ context.Context, args schema.HookArgs, addError schema.AddValidationError) error {
			value, present := args.ResolvedData[fc.FieldKey]
			if !present || value == nil {
				return nil
			}
			if !containsOption(allowed, value) {
				addError(fmt.Sprintf("%s has an invalid value %v", fieldLabel(fc, cfg.UI), value))
			}
			return nil
		})
		return f, nil
	}
}

func containsOption(allowed []any, value any) bool {
	if n, ok := toInt(value); ok {
		value = n
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}
