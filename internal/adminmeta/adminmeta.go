// Package adminmeta derives the metadata the admin UI reads through
// `keystone { adminMeta }`: labels, paths and per-field display hints of
// every list.
package adminmeta

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"cms-graphql/internal/filters"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/naming"
	"cms-graphql/internal/scalars"
)

// Meta is the admin metadata of every list, in list key order.
type Meta struct {
	Lists  []*ListMeta
	byKey  map[string]*ListMeta
	lib    *filters.Library
	schema *graphql.Object
}

// List returns the metadata of one list.
func (m *Meta) List(key string) (*ListMeta, bool) {
	l, ok := m.byKey[key]
	return l, ok
}

// ListMeta describes one list.
type ListMeta struct {
	Key            string
	Label          string
	Singular       string
	Plural         string
	Path           string
	Description    string
	LabelField     string
	InitialColumns []string
	HideCreate     bool
	HideDelete     bool
	GQLNames       naming.GQLNames
	Fields         []*FieldMeta
}

// FieldMeta describes one field of a list.
type FieldMeta struct {
	Path         string
	Label        string
	IsOrderable  bool
	IsFilterable bool
	FieldMeta    map[string]any
}

// Build computes the metadata of ls. Field metadata functions run here, so
// an invalid display configuration fails initialisation.
func Build(ls *lists.Lists) (*Meta, error) {
	meta := &Meta{byKey: map[string]*ListMeta{}, lib: ls.Filters}
	for _, key := range ls.Keys {
		list := ls.ByKey[key]
		if !list.Enabled.Type {
			continue
		}
		lm := &ListMeta{
			Key:         key,
			Label:       list.Names.Label,
			Singular:    list.Names.Singular,
			Plural:      list.Names.Plural,
			Path:        list.Names.Path,
			Description: list.Description,
			LabelField:  list.LabelField,
			HideCreate:  list.UI.HideCreate || !list.Enabled.Create,
			HideDelete:  list.UI.HideDelete || !list.Enabled.Delete,
			GQLNames:    list.Names.GQL,
		}
		for _, f := range list.Fields {
			if f.Implicit || !f.Enabled.Read {
				continue
			}
			fm := &FieldMeta{
				Path:         f.Key,
				Label:        f.UI.Label,
				IsOrderable:  f.Enabled.OrderBy && f.Input.OrderBy != nil,
				IsFilterable: f.Enabled.Filter && f.Input.Where != nil,
			}
			if fm.Label == "" {
				fm.Label = naming.Humanize(f.Key)
			}
			if f.AdminMeta != nil {
				fieldMeta, err := f.AdminMeta(ls)
				if err != nil {
					return nil, err
				}
				fm.FieldMeta = fieldMeta
			}
			lm.Fields = append(lm.Fields, fm)
		}
		columns, err := initialColumns(list)
		if err != nil {
			return nil, err
		}
		lm.InitialColumns = columns
		meta.Lists = append(meta.Lists, lm)
		meta.byKey[key] = lm
	}
	return meta, nil
}

func initialColumns(list *lists.List) ([]string, error) {
	if len(list.UI.InitialColumns) == 0 {
		return []string{list.LabelField}, nil
	}
	for _, col := range list.UI.InitialColumns {
		f, ok := list.Field(col)
		if !ok || f.Implicit {
			return nil, fmt.Errorf("%s: ui.initialColumns contains %q which is not a field of the list", list.Key, col)
		}
	}
	return append([]string(nil), list.UI.InitialColumns...), nil
}

// Field returns the `keystone` root query field. The GraphQL types are
// built once per Meta.
func (m *Meta) Field() *graphql.Field {
	if m.schema == nil {
		m.schema = m.buildTypes()
	}
	return &graphql.Field{
		Type: graphql.NewNonNull(m.schema),
		Resolve: func(graphql.ResolveParams) (any, error) {
			return m, nil
		},
	}
}

func (m *Meta) buildTypes() *graphql.Object {
	json := m.lib.Shared("JSON", func() graphql.Type { return scalars.JSON() })
	nonNullString := graphql.NewNonNull(graphql.String)
	nonNullBool := graphql.NewNonNull(graphql.Boolean)

	fieldMeta := graphql.NewObject(graphql.ObjectConfig{
		Name: "KeystoneAdminUIFieldMeta",
		Fields: graphql.Fields{
			"path":         {Type: nonNullString, Resolve: fieldResolver(func(f *FieldMeta) any { return f.Path })},
			"label":        {Type: nonNullString, Resolve: fieldResolver(func(f *FieldMeta) any { return f.Label })},
			"isOrderable":  {Type: nonNullBool, Resolve: fieldResolver(func(f *FieldMeta) any { return f.IsOrderable })},
			"isFilterable": {Type: nonNullBool, Resolve: fieldResolver(func(f *FieldMeta) any { return f.IsFilterable })},
			"fieldMeta":    {Type: json, Resolve: fieldResolver(func(f *FieldMeta) any { return f.FieldMeta })},
		},
	})

	listMeta := graphql.NewObject(graphql.ObjectConfig{
		Name: "KeystoneAdminUIListMeta",
		Fields: graphql.Fields{
			"key":            {Type: nonNullString, Resolve: listResolver(func(l *ListMeta) any { return l.Key })},
			"itemQueryName":  {Type: nonNullString, Resolve: listResolver(func(l *ListMeta) any { return l.GQLNames.ItemQueryName })},
			"listQueryName":  {Type: nonNullString, Resolve: listResolver(func(l *ListMeta) any { return l.GQLNames.ListQueryName })},
			"label":          {Type: nonNullString, Resolve: listResolver(func(l *ListMeta) any { return l.Label })},
			"singular":       {Type: nonNullString, Resolve: listResolver(func(l *ListMeta) any { return l.Singular })},
			"plural":         {Type: nonNullString, Resolve: listResolver(func(l *ListMeta) any { return l.Plural })},
			"path":           {Type: nonNullString, Resolve: listResolver(func(l *ListMeta) any { return l.Path })},
			"description":    {Type: graphql.String, Resolve: listResolver(func(l *ListMeta) any { return nilIfEmpty(l.Description) })},
			"labelField":     {Type: nonNullString, Resolve: listResolver(func(l *ListMeta) any { return l.LabelField })},
			"initialColumns": {Type: graphql.NewNonNull(graphql.NewList(nonNullString)), Resolve: listResolver(func(l *ListMeta) any { return l.InitialColumns })},
			"hideCreate":     {Type: nonNullBool, Resolve: listResolver(func(l *ListMeta) any { return l.HideCreate })},
			"hideDelete":     {Type: nonNullBool, Resolve: listResolver(func(l *ListMeta) any { return l.HideDelete })},
			"gqlNames":       {Type: graphql.NewNonNull(json), Resolve: listResolver(func(l *ListMeta) any { return l.GQLNames })},
			"fields": {
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(fieldMeta))),
				Resolve: listResolver(func(l *ListMeta) any { return l.Fields }),
			},
		},
	})

	adminMeta := graphql.NewObject(graphql.ObjectConfig{
		Name: "KeystoneAdminMeta",
		Fields: graphql.Fields{
			"lists": {
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(listMeta))),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					meta, _ := p.Source.(*Meta)
					if meta == nil {
						return nil, nil
					}
					return meta.Lists, nil
				},
			},
			"list": {
				Type: listMeta,
				Args: graphql.FieldConfigArgument{"key": {Type: nonNullString}},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					meta, _ := p.Source.(*Meta)
					key, _ := p.Args["key"].(string)
					if meta == nil {
						return nil, nil
					}
					if l, ok := meta.List(key); ok {
						return l, nil
					}
					return nil, nil
				},
			},
		},
	})

	return graphql.NewObject(graphql.ObjectConfig{
		Name: "KeystoneMeta",
		Fields: graphql.Fields{
			"adminMeta": {
				Type: graphql.NewNonNull(adminMeta),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source, nil
				},
			},
		},
	})
}

func listResolver(get func(*ListMeta) any) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		l, ok := p.Source.(*ListMeta)
		if !ok {
			return nil, nil
		}
		return get(l), nil
	}
}

func fieldResolver(get func(*FieldMeta) any) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		f, ok := p.Source.(*FieldMeta)
		if !ok {
			return nil, nil
		}
		return get(f), nil
	}
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
