package fields

import (
	"context"
	"fmt"
	"strings"

	"github.com/graphql-go/graphql"

	"cms-graphql/internal/schema"
)

// RelationshipDisplay is how the admin UI renders a relationship. It is
// either SelectDisplay or CardsDisplay.
type RelationshipDisplay interface {
	adminMeta(root schema.AdminMetaRoot, refListKey string) (map[string]any, error)
}

// SelectDisplay renders related items in a select. LabelField defaults to the
// related list's label field.
type SelectDisplay struct {
	LabelField string
}

func (d SelectDisplay) adminMeta(root schema.AdminMetaRoot, refListKey string) (map[string]any, error) {
	labelField := d.LabelField
	if labelField == "" {
		lf, ok := root.ListLabelField(refListKey)
		if !ok {
			return nil, fmt.Errorf("unknown list %q", refListKey)
		}
		labelField = lf
	}
	return map[string]any{
		"displayMode":   "select",
		"refLabelField": labelField,
	}, nil
}

// InlineFields lists the fields shown by an inline card form.
type InlineFields struct {
	Fields []string `json:"fields"`
}

// CardsDisplay renders related items as cards.
type CardsDisplay struct {
	CardFields []string
	LinkToItem bool
	// RemoveMode is "disconnect" (default) or "none".
	RemoveMode    string
	InlineCreate  *InlineFields
	InlineEdit    *InlineFields
	InlineConnect bool
}

func (d CardsDisplay) adminMeta(schema.AdminMetaRoot, string) (map[string]any, error) {
	removeMode := d.RemoveMode
	if removeMode == "" {
		removeMode = "disconnect"
	}
	return map[string]any{
		"displayMode":   "cards",
		"cardFields":    d.CardFields,
		"linkToItem":    d.LinkToItem,
		"removeMode":    removeMode,
		"inlineCreate":  d.InlineCreate,
		"inlineEdit":    d.InlineEdit,
		"inlineConnect": d.InlineConnect,
	}, nil
}

// RelationshipConfig configures a relationship field.
type RelationshipConfig struct {
	Config
	// Ref is "List" for a one-sided reference or "List.field" to pair with
	// the opposite field.
	Ref  string
	Many bool
	// ForeignMany, when set, asserts the cardinality of the opposite field.
	ForeignMany *bool
	HideCreate  bool
	Display     RelationshipDisplay
}

// Relationship links items of this list to items of another list.
func Relationship(cfg RelationshipConfig) schema.FieldFunc {
	return func(fc schema.FieldContext) (*schema.Field, error) {
		target, targetField, _ := strings.Cut(cfg.Ref, ".")
		if target == "" {
			return nil, invalidConfig(fc, "relationship ref %q is invalid", cfg.Ref)
		}
		switch cfg.Display.(type) {
		case nil, SelectDisplay, CardsDisplay:
		default:
			return nil, invalidConfig(fc, "unknown relationship display %T", cfg.Display)
		}
		if cards, ok := cfg.Display.(CardsDisplay); ok {
			if cards.RemoveMode != "" && cards.RemoveMode != "disconnect" && cards.RemoveMode != "none" {
				return nil, invalidConfig(fc, "unknown remove mode %q", cards.RemoveMode)
			}
			if !cfg.Many {
				return nil, invalidConfig(fc, "the cards display mode requires a to-many relationship")
			}
		}

		rel := &schema.Relation{List: target, Field: targetField, Cardinality: schema.One}
		if cfg.Many {
			rel.Cardinality = schema.Many
		}
		if cfg.ForeignMany != nil {
			rel.ForeignCardinality = schema.One
			if *cfg.ForeignMany {
				rel.ForeignCardinality = schema.Many
			}
		}

		f := &schema.Field{
			Type:    "relationship",
			DBField: schema.DBField{Kind: schema.DBRelation, Relation: rel},
		}
		if cfg.Many {
			f.Input = schema.FieldInputs{
				Where:  relationArg(target, func(t *schema.TypesForList) graphql.Input { return nilInput(t.ManyRelationFilter) }),
				Create: relationArg(target, func(t *schema.TypesForList) graphql.Input { return nilInput(t.RelateToManyForCreate) }),
				Update: relationArg(target, func(t *schema.TypesForList) graphql.Input { return nilInput(t.RelateToManyForUpdate) }),
			}
			f.Output = &schema.FieldOutput{
				Type: func(types schema.TypesLookup) graphql.Output {
					t := types[target]
					if t == nil || t.Output == nil {
						return nil
					}
					return graphql.NewList(graphql.NewNonNull(t.Output))
				},
				Args: func(types schema.TypesLookup) graphql.FieldConfigArgument {
					if t := types[target]; t != nil {
						return t.FindManyArgs
					}
					return nil
				},
				Resolve: func(ctx context.Context, p schema.OutputParams) (any, error) {
					acc, err := accessor(p)
					if err != nil {
						return nil, err
					}
					return acc.FindMany(ctx, p.Args)
				},
			}
			f.ExtraOutputFields = map[string]*schema.FieldOutput{
				fc.FieldKey + "Count": {
					Type: func(types schema.TypesLookup) graphql.Output {
						if t := types[target]; t == nil || t.Output == nil {
							return nil
						}
						return graphql.Int
					},
					Args: func(types schema.TypesLookup) graphql.FieldConfigArgument {
						t := types[target]
						if t == nil || t.Where == nil {
							return nil
						}
						return graphql.FieldConfigArgument{
							"where": &graphql.ArgumentConfig{Type: t.Where, DefaultValue: map[string]any{}},
						}
					},
					Resolve: func(ctx context.Context, p schema.OutputParams) (any, error) {
						acc, err := accessor(p)
						if err != nil {
							return nil, err
						}
						return acc.Count(ctx, p.Args)
					},
				},
			}
		} else {
			f.Input = schema.FieldInputs{
				Where:  relationArg(target, func(t *schema.TypesForList) graphql.Input { return nilInput(t.Where) }),
				Create: relationArg(target, func(t *schema.TypesForList) graphql.Input { return nilInput(t.RelateToOneForCreate) }),
				Update: relationArg(target, func(t *schema.TypesForList) graphql.Input { return nilInput(t.RelateToOneForUpdate) }),
			}
			f.Output = &schema.FieldOutput{
				Type: func(types schema.TypesLookup) graphql.Output {
					t := types[target]
					if t == nil || t.Output == nil {
						return nil
					}
					return t.Output
				},
				Resolve: func(ctx context.Context, p schema.OutputParams) (any, error) {
					acc, err := accessor(p)
					if err != nil {
						return nil, err
					}
					item, err := acc.FindOne(ctx)
					if err != nil || item == nil {
						return nil, err
					}
					return item, nil
				},
			}
		}

		display := cfg.Display
		if display == nil {
			display = SelectDisplay{}
		}
		many, hideCreate := cfg.Many, cfg.HideCreate
		path := schema.Path(fc.ListKey, fc.FieldKey)
		f.AdminMeta = func(root schema.AdminMetaRoot) (map[string]any, error) {
			meta, err := display.adminMeta(root, target)
			if err != nil {
				return nil, fmt.Errorf("the ref [%s] on relationship [%s] is invalid: %w", cfg.Ref, path, err)
			}
			meta["refListKey"] = target
			meta["many"] = many
			meta["hideCreate"] = hideCreate
			return meta, nil
		}
		return cfg.apply(f), nil
	}
}

func relationArg(target string, pick func(*schema.TypesForList) graphql.Input) *schema.FieldInput {
	return &schema.FieldInput{
		Arg: func(types schema.TypesLookup) graphql.Input {
			t := types[target]
			if t == nil {
				return nil
			}
			return pick(t)
		},
	}
}

// nilInput keeps a nil *graphql.InputObject from becoming a non-nil
// graphql.Input interface value.
func nilInput(obj *graphql.InputObject) graphql.Input {
	if obj == nil {
		return nil
	}
	return obj
}

func accessor(p schema.OutputParams) (schema.RelationAccessor, error) {
	acc, ok := p.Value.(schema.RelationAccessor)
	if !ok {
		return nil, fmt.Errorf("%s: expected a relation accessor, got %T", schema.Path(p.ListKey, p.FieldKey), p.Value)
	}
	return acc, nil
}
