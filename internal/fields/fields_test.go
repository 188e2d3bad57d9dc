package fields

import (
	"context"
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-graphql/internal/filters"
	"cms-graphql/internal/schema"
)

func fieldContext(lib *filters.Library, key string) schema.FieldContext {
	return schema.FieldContext{ListKey: "Post", FieldKey: key, Filters: lib}
}

type labelRoot map[string]string

func (r labelRoot) ListLabelField(listKey string) (string, bool) {
	lf, ok := r[listKey]
	return lf, ok
}

func collectErrors(t *testing.T, f *schema.Field, args schema.HookArgs) []string {
	t.Helper()
	var msgs []string
	require.NotNil(t, f.Hooks.ValidateInput)
	err := f.Hooks.ValidateInput(context.Background(), args, func(msg string) { msgs = append(msgs, msg) })
	require.NoError(t, err)
	return msgs
}

func TestTextField(t *testing.T) {
	lib := filters.New()
	def := "untitled"
	f, err := Text(TextConfig{DefaultValue: &def, IsUnique: true})(fieldContext(lib, "title"))
	require.NoError(t, err)

	assert.Equal(t, schema.DBScalar, f.DBField.Kind)
	assert.Equal(t, schema.ScalarString, f.DBField.Scalar)
	assert.True(t, f.DBField.IsUnique)
	assert.Equal(t, lib.StringFilter, f.Input.Where.Arg(nil))
	assert.Equal(t, graphql.String, f.Input.UniqueWhere.Arg(nil))
	assert.Equal(t, lib.OrderDirection, f.Input.OrderBy.Arg(nil))

	v, err := f.DefaultValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "untitled", v)

	meta, err := f.AdminMeta(nil)
	require.NoError(t, err)
	assert.Equal(t, "input", meta["displayMode"])

	_, err = Text(TextConfig{DisplayMode: "wysiwyg"})(fieldContext(lib, "title"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Post.title")
}

func TestNonUniqueScalarsHaveNoUniqueWhere(t *testing.T) {
	lib := filters.New()
	f, err := Integer(IntegerConfig{})(fieldContext(lib, "views"))
	require.NoError(t, err)
	assert.Nil(t, f.Input.UniqueWhere)
	assert.Equal(t, lib.IntFilter, f.Input.Where.Arg(nil))
	assert.Nil(t, f.DefaultValue)

	f, err = Checkbox(CheckboxConfig{})(fieldContext(lib, "published"))
	require.NoError(t, err)
	assert.Equal(t, lib.BooleanFilter, f.Input.Where.Arg(nil))
	assert.Equal(t, schema.ScalarBoolean, f.DBField.Scalar)
}

func TestSelectEnumSharesNamedTypes(t *testing.T) {
	lib := filters.New()
	cfg := SelectConfig{
		DataType: SelectEnum,
		Options:  []SelectOption{{Label: "Draft", Value: "draft"}, {Label: "Published", Value: "published"}},
	}
	f, err := Select(cfg)(fieldContext(lib, "status"))
	require.NoError(t, err)
	assert.Equal(t, schema.DBEnum, f.DBField.Kind)
	assert.Equal(t, []string{"draft", "published"}, f.DBField.EnumValues)

	enumType, ok := f.Input.Create.Arg(nil).(*graphql.Enum)
	require.True(t, ok)
	assert.Equal(t, "PostStatusType", enumType.Name())
	assert.Equal(t, "PostStatusTypeFilter", f.Input.Where.Arg(nil).Name())

	again, err := Select(cfg)(fieldContext(lib, "status"))
	require.NoError(t, err)
	assert.Same(t, enumType, again.Input.Create.Arg(nil))
}

func TestSelectRejectsBadConfig(t *testing.T) {
	lib := filters.New()
	tests := []struct {
		name string
		cfg  SelectConfig
	}{
		{name: "no options", cfg: SelectConfig{}},
		{name: "integer with string value", cfg: SelectConfig{DataType: SelectInteger, Options: []SelectOption{{Label: "One", Value: "1"}}}},
		{name: "enum with invalid name", cfg: SelectConfig{DataType: SelectEnum, Options: []SelectOption{{Label: "A", Value: "a b"}}}},
		{name: "default not an option", cfg: SelectConfig{DefaultValue: "c", Options: []SelectOption{{Label: "A", Value: "a"}}}},
		{name: "unknown data type", cfg: SelectConfig{DataType: "float", Options: []SelectOption{{Label: "A", Value: "a"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Select(tt.cfg)(fieldContext(lib, "status"))
			require.Error(t, err)
		})
	}
}

func TestSelectValidatesValues(t *testing.T) {
	lib := filters.New()
	f, err := Select(SelectConfig{
		DataType: SelectInteger,
		Options:  []SelectOption{{Label: "Low", Value: 1}, {Label: "High", Value: 2}},
	})(fieldContext(lib, "priority"))
	require.NoError(t, err)

	assert.Empty(t, collectErrors(t, f, schema.HookArgs{ResolvedData: map[string]any{"priority": 2}}))
	assert.Empty(t, collectErrors(t, f, schema.HookArgs{ResolvedData: map[string]any{"priority": nil}}))
	assert.Equal(t, []string{"priority has an invalid value 3"},
		collectErrors(t, f, schema.HookArgs{ResolvedData: map[string]any{"priority": 3}}))
}

func TestSelectRunsUserValidationAfterOptions(t *testing.T) {
	lib := filters.New()
	var calls int
	cfg := SelectConfig{Options: []SelectOption{{Label: "A", Value: "a"}}}
	cfg.Hooks.ValidateInput = func(_ context.Context, _ schema.HookArgs, addError schema.AddValidationError) error {
		calls++
		addError("custom")
		return nil
	}
	f, err := Select(cfg)(fieldContext(lib, "kind"))
	require.NoError(t, err)
	assert.Equal(t, []string{"kind has an invalid value b", "custom"},
		collectErrors(t, f, schema.HookArgs{ResolvedData: map[string]any{"kind": "b"}}))
	assert.Equal(t, 1, calls)
}

func TestTimestampRoundTrip(t *testing.T) {
	lib := filters.New()
	f, err := Timestamp(TimestampConfig{DefaultValue: "2021-01-02T03:04:05.000Z"})(fieldContext(lib, "publishedAt"))
	require.NoError(t, err)

	stored, err := f.Input.Create.Resolve(context.Background(), "2021-03-04T05:06:07.089+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 4, 3, 6, 7, 89_000_000, time.UTC), stored)

	out, err := f.Output.Resolve(context.Background(), schema.OutputParams{Value: stored})
	require.NoError(t, err)
	assert.Equal(t, "2021-03-04T03:06:07.089Z", out)

	_, err = f.Input.Update.Resolve(context.Background(), "yesterday")
	require.Error(t, err)

	def, err := f.DefaultValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC), def)
}

func TestPasswordHashesAndHidesValue(t *testing.T) {
	lib := filters.New()
	f, err := Password(PasswordConfig{})(fieldContext(lib, "password"))
	require.NoError(t, err)

	hashed, err := f.Input.Create.Resolve(context.Background(), "correct horse")
	require.NoError(t, err)
	hash, ok := hashed.(string)
	require.True(t, ok)
	assert.NotEqual(t, "correct horse", hash)

	match, err := f.Secret.Compare("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, match)
	match, err = f.Secret.Compare("battery staple", hash)
	require.NoError(t, err)
	assert.False(t, match)

	out, err := f.Output.Resolve(context.Background(), schema.OutputParams{Value: hash})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"isSet": true}, out)
	out, err = f.Output.Resolve(context.Background(), schema.OutputParams{Value: nil})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"isSet": false}, out)

	passthrough, err := f.Input.Update.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, passthrough)

	assert.Equal(t, []string{"password must be at least 8 characters long."},
		collectErrors(t, f, schema.HookArgs{OriginalInput: map[string]any{"password": "short"}}))
	assert.Empty(t, collectErrors(t, f, schema.HookArgs{OriginalInput: map[string]any{"password": "long enough"}}))

	meta, err := f.AdminMeta(nil)
	require.NoError(t, err)
	assert.Equal(t, 8, meta["minLength"])
}

func TestRelationshipDeclaresRelation(t *testing.T) {
	lib := filters.New()
	foreignOne := false
	f, err := Relationship(RelationshipConfig{Ref: "User.posts", ForeignMany: &foreignOne})(fieldContext(lib, "author"))
	require.NoError(t, err)
	require.NotNil(t, f.DBField.Relation)
	assert.Equal(t, schema.DBRelation, f.DBField.Kind)
	assert.Equal(t, "User", f.DBField.Relation.List)
	assert.Equal(t, "posts", f.DBField.Relation.Field)
	assert.Equal(t, schema.One, f.DBField.Relation.Cardinality)
	assert.Equal(t, schema.One, f.DBField.Relation.ForeignCardinality)

	// Missing target types contribute nothing.
	assert.Nil(t, f.Input.Create.Arg(schema.TypesLookup{}))
	assert.Nil(t, f.Output.Type(schema.TypesLookup{}))
	assert.Nil(t, f.Input.Create.Arg(schema.TypesLookup{"User": {ListKey: "User"}}))

	f, err = Relationship(RelationshipConfig{Ref: "Tag", Many: true})(fieldContext(lib, "tags"))
	require.NoError(t, err)
	assert.Equal(t, "", f.DBField.Relation.Field)
	assert.Equal(t, schema.Many, f.DBField.Relation.Cardinality)
	assert.Contains(t, f.ExtraOutputFields, "tagsCount")
}

func TestRelationshipAdminMeta(t *testing.T) {
	lib := filters.New()
	root := labelRoot{"User": "name"}

	f, err := Relationship(RelationshipConfig{Ref: "User.posts"})(fieldContext(lib, "author"))
	require.NoError(t, err)
	meta, err := f.AdminMeta(root)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"refListKey":    "User",
		"many":          false,
		"hideCreate":    false,
		"displayMode":   "select",
		"refLabelField": "name",
	}, meta)

	f, err = Relationship(RelationshipConfig{
		Ref:     "Tag",
		Many:    true,
		Display: CardsDisplay{CardFields: []string{"name"}, InlineConnect: true},
	})(fieldContext(lib, "tags"))
	require.NoError(t, err)
	meta, err = f.AdminMeta(root)
	require.NoError(t, err)
	assert.Equal(t, "cards", meta["displayMode"])
	assert.Equal(t, "disconnect", meta["removeMode"])
	assert.Equal(t, true, meta["inlineConnect"])

	f, err = Relationship(RelationshipConfig{Ref: "Missing"})(fieldContext(lib, "other"))
	require.NoError(t, err)
	_, err = f.AdminMeta(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Post.other")
}

func TestRelationshipRejectsCardsOnToOne(t *testing.T) {
	_, err := Relationship(RelationshipConfig{Ref: "User", Display: CardsDisplay{}})(fieldContext(filters.New(), "author"))
	require.Error(t, err)
}

type stubAccessor struct{ items []schema.Item }

func (s stubAccessor) FindMany(context.Context, map[string]any) ([]schema.Item, error) {
	return s.items, nil
}

func (s stubAccessor) Count(context.Context, map[string]any) (int, error) {
	return len(s.items), nil
}

func (s stubAccessor) FindOne(context.Context) (schema.Item, error) {
	if len(s.items) == 0 {
		return nil, nil
	}
	return s.items[0], nil
}

func TestRelationshipOutputsUseAccessor(t *testing.T) {
	lib := filters.New()
	ctx := context.Background()
	acc := stubAccessor{items: []schema.Item{{"id": "1"}, {"id": "2"}}}

	many, err := Relationship(RelationshipConfig{Ref: "Tag", Many: true})(fieldContext(lib, "tags"))
	require.NoError(t, err)
	items, err := many.Output.Resolve(ctx, schema.OutputParams{Value: acc})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	count, err := many.ExtraOutputFields["tagsCount"].Resolve(ctx, schema.OutputParams{Value: acc})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	one, err := Relationship(RelationshipConfig{Ref: "User"})(fieldContext(lib, "author"))
	require.NoError(t, err)
	item, err := one.Output.Resolve(ctx, schema.OutputParams{Value: stubAccessor{}})
	require.NoError(t, err)
	assert.Nil(t, item)

	_, err = one.Output.Resolve(ctx, schema.OutputParams{ListKey: "Post", FieldKey: "author", Value: "nope"})
	require.Error(t, err)
}

func TestVirtualField(t *testing.T) {
	lib := filters.New()
	f, err := Virtual(VirtualConfig{
		Type: func(schema.TypesLookup) graphql.Output { return graphql.String },
		Resolve: func(_ context.Context, item schema.Item, _ map[string]any) (any, error) {
			return "Hello " + item["name"].(string), nil
		},
		ReturnFragment: "",
	})(fieldContext(lib, "greeting"))
	require.NoError(t, err)
	assert.Equal(t, schema.DBNone, f.DBField.Kind)
	out, err := f.Output.Resolve(context.Background(), schema.OutputParams{Item: schema.Item{"name": "Ada"}})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", out)

	_, err = Virtual(VirtualConfig{})(fieldContext(lib, "broken"))
	require.Error(t, err)
}

func TestIDField(t *testing.T) {
	lib := filters.New()
	f, err := ID()(fieldContext(lib, IDFieldKey))
	require.NoError(t, err)
	assert.True(t, f.DBField.IsID)
	assert.Equal(t, schema.ModeRequired, f.DBField.Mode)
	assert.Equal(t, lib.IDFilter, f.Input.Where.Arg(nil))
	assert.Nil(t, f.Input.Create)

	first, err := f.DefaultValue(context.Background())
	require.NoError(t, err)
	second, err := f.DefaultValue(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Len(t, first, 36)
}
