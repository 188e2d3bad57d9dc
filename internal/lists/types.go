package lists

import (
	"github.com/graphql-go/graphql"

	"cms-graphql/internal/schema"
)

// declareTypes creates every named type of list. Field sets are thunks that
// run when the schema is assembled, after all lists have declared theirs.
func (ls *Lists) declareTypes(list *List, opts Options) {
	types := &schema.TypesForList{ListKey: list.Key}
	ls.Types[list.Key] = types
	list.Types = types
	if !list.Enabled.Type {
		return
	}
	g := list.Names.GQL

	types.Output = graphql.NewObject(graphql.ObjectConfig{
		Name:        g.OutputTypeName,
		Description: list.Description,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return ls.outputFields(list, opts)
		}),
	})

	types.Where = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: g.WhereInputName,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fieldMap := ls.inputFields(list, schema.KindWhere)
			self := graphql.NewList(graphql.NewNonNull(types.Where))
			fieldMap["AND"] = &graphql.InputObjectFieldConfig{Type: self}
			fieldMap["OR"] = &graphql.InputObjectFieldConfig{Type: self}
			fieldMap["NOT"] = &graphql.InputObjectFieldConfig{Type: self}
			return fieldMap
		}),
	})
	ls.tags[types.Where] = Tag{ListKey: list.Key, Kind: schema.KindWhere}

	types.UniqueWhere = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: g.WhereUniqueInputName,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			return ls.inputFields(list, schema.KindUniqueWhere)
		}),
	})
	ls.tags[types.UniqueWhere] = Tag{ListKey: list.Key, Kind: schema.KindUniqueWhere}

	if list.Enabled.Create && ls.hasInputs(list, schema.KindCreate) {
		types.Create = graphql.NewInputObject(graphql.InputObjectConfig{
			Name: g.CreateInputName,
			Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
				return ls.inputFields(list, schema.KindCreate)
			}),
		})
		ls.tags[types.Create] = Tag{ListKey: list.Key, Kind: schema.KindCreate}
	}

	if list.Enabled.Update && ls.hasInputs(list, schema.KindUpdate) {
		types.Update = graphql.NewInputObject(graphql.InputObjectConfig{
			Name: g.UpdateInputName,
			Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
				return ls.inputFields(list, schema.KindUpdate)
			}),
		})
		ls.tags[types.Update] = Tag{ListKey: list.Key, Kind: schema.KindUpdate}
		types.UpdateArgs = graphql.NewInputObject(graphql.InputObjectConfig{
			Name: g.UpdateManyArgsName,
			Fields: graphql.InputObjectConfigFieldMap{
				"where": {Type: graphql.NewNonNull(types.UniqueWhere)},
				"data":  {Type: graphql.NewNonNull(types.Update)},
			},
		})
	}

	types.OrderBy = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: g.ListOrderName,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			return ls.inputFields(list, schema.KindOrderBy)
		}),
	})
	ls.tags[types.OrderBy] = Tag{ListKey: list.Key, Kind: schema.KindOrderBy}

	sortValues := graphql.EnumValueConfigMap{}
	for _, f := range list.Fields {
		if f.Enabled.OrderBy && f.Input.OrderBy != nil {
			sortValues[f.Key+"_ASC"] = &graphql.EnumValueConfig{Value: f.Key + "_ASC"}
			sortValues[f.Key+"_DESC"] = &graphql.EnumValueConfig{Value: f.Key + "_DESC"}
		}
	}
	types.SortBy = graphql.NewEnum(graphql.EnumConfig{Name: g.ListSortName, Values: sortValues})

	types.FindManyArgs = graphql.FieldConfigArgument{
		"where":   {Type: types.Where, DefaultValue: map[string]any{}},
		"orderBy": {Type: graphql.NewList(graphql.NewNonNull(types.OrderBy)), DefaultValue: []any{}},
		"sortBy":  {Type: graphql.NewList(graphql.NewNonNull(types.SortBy))},
		"take":    {Type: graphql.Int},
		"skip":    {Type: graphql.Int, DefaultValue: 0},
	}

	types.ManyRelationFilter = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: g.ManyRelationFilterName,
		Fields: graphql.InputObjectConfigFieldMap{
			"every": {Type: types.Where},
			"some":  {Type: types.Where},
			"none":  {Type: types.Where},
		},
	})

	manyUnique := graphql.NewList(graphql.NewNonNull(types.UniqueWhere))
	createMany := graphql.InputObjectConfigFieldMap{"connect": {Type: manyUnique}}
	updateMany := graphql.InputObjectConfigFieldMap{
		"connect":    {Type: manyUnique},
		"disconnect": {Type: manyUnique},
		"set":        {Type: manyUnique},
	}
	createOne := graphql.InputObjectConfigFieldMap{"connect": {Type: types.UniqueWhere}}
	updateOne := graphql.InputObjectConfigFieldMap{
		"connect":    {Type: types.UniqueWhere},
		"disconnect": {Type: graphql.Boolean},
	}
	if types.Create != nil {
		manyCreate := graphql.NewList(graphql.NewNonNull(types.Create))
		createMany["create"] = &graphql.InputObjectFieldConfig{Type: manyCreate}
		updateMany["create"] = &graphql.InputObjectFieldConfig{Type: manyCreate}
		createOne["create"] = &graphql.InputObjectFieldConfig{Type: types.Create}
		updateOne["create"] = &graphql.InputObjectFieldConfig{Type: types.Create}
	}
	types.RelateToManyForCreate = graphql.NewInputObject(graphql.InputObjectConfig{Name: g.RelateToManyForCreateInputName, Fields: createMany})
	types.RelateToManyForUpdate = graphql.NewInputObject(graphql.InputObjectConfig{Name: g.RelateToManyForUpdateInputName, Fields: updateMany})
	types.RelateToOneForCreate = graphql.NewInputObject(graphql.InputObjectConfig{Name: g.RelateToOneForCreateInputName, Fields: createOne})
	types.RelateToOneForUpdate = graphql.NewInputObject(graphql.InputObjectConfig{Name: g.RelateToOneForUpdateInputName, Fields: updateOne})
}

// hasInputs reports whether any field may contribute to an input of kind.
// Relationship fields count only when their target list exposes a type.
func (ls *Lists) hasInputs(list *List, kind schema.InputKind) bool {
	for _, f := range list.Fields {
		if f.Input.For(kind) == nil || !f.inputEnabled(kind) {
			continue
		}
		if rel := f.Relation(); rel != nil {
			if target, ok := ls.ByKey[rel.List]; !ok || !target.Enabled.Type {
				continue
			}
		}
		return true
	}
	return false
}

func (f *Field) inputEnabled(kind schema.InputKind) bool {
	switch kind {
	case schema.KindWhere, schema.KindUniqueWhere:
		return f.Enabled.Filter
	case schema.KindCreate:
		return f.Enabled.Create
	case schema.KindUpdate:
		return f.Enabled.Update
	case schema.KindOrderBy:
		return f.Enabled.OrderBy
	}
	return false
}

func (ls *Lists) inputFields(list *List, kind schema.InputKind) graphql.InputObjectConfigFieldMap {
	out := graphql.InputObjectConfigFieldMap{}
	for _, f := range list.Fields {
		input := f.Input.For(kind)
		if input == nil || input.Arg == nil || !f.inputEnabled(kind) {
			continue
		}
		arg := input.Arg(ls.Types)
		if arg == nil {
			continue
		}
		out[f.Key] = &graphql.InputObjectFieldConfig{
			Type:         arg,
			DefaultValue: input.DefaultValue,
			Description:  f.UI.Description,
		}
	}
	return out
}

func (ls *Lists) outputFields(list *List, opts Options) graphql.Fields {
	out := graphql.Fields{}
	for _, f := range list.Fields {
		if !f.Enabled.Read || f.Output == nil {
			continue
		}
		if field := ls.outputField(list, f, f.Output, opts); field != nil {
			field.Description = f.UI.Description
			out[f.Key] = field
		}
		for name, extra := range f.ExtraOutputFields {
			if field := ls.outputField(list, f, extra, opts); field != nil {
				out[name] = field
			}
		}
	}
	return out
}

func (ls *Lists) outputField(list *List, f *Field, output *schema.FieldOutput, opts Options) *graphql.Field {
	t := output.Type(ls.Types)
	if t == nil {
		return nil
	}
	field := &graphql.Field{Type: t}
	if output.Args != nil {
		field.Args = output.Args(ls.Types)
	}
	if opts.FieldResolver != nil {
		field.Resolve = opts.FieldResolver(list, f, output)
	} else {
		field.Resolve = passthroughResolver(list, f, output)
	}
	return field
}

func passthroughResolver(list *List, f *Field, output *schema.FieldOutput) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		item, _ := p.Source.(schema.Item)
		return output.Resolve(p.Context, schema.OutputParams{
			ListKey:  list.Key,
			FieldKey: f.Key,
			Value:    item[f.Key],
			Item:     item,
			Args:     p.Args,
		})
	}
}
