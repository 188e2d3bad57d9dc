package lists

import (
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-graphql/internal/fields"
	"cms-graphql/internal/schema"
)

func blogConfig() schema.Config {
	return schema.Config{Lists: map[string]schema.ListConfig{
		"User": {
			Fields: schema.Fields(
				schema.F("name", fields.Text(fields.TextConfig{IsRequired: true})),
				schema.F("email", fields.Text(fields.TextConfig{IsUnique: true})),
				schema.F("password", fields.Password(fields.PasswordConfig{})),
				schema.F("posts", fields.Relationship(fields.RelationshipConfig{Ref: "Post.author", Many: true})),
			),
		},
		"Post": {
			Fields: schema.Fields(
				schema.F("title", fields.Text(fields.TextConfig{})),
				schema.F("author", fields.Relationship(fields.RelationshipConfig{Ref: "User.posts"})),
				schema.F("category", fields.Relationship(fields.RelationshipConfig{Ref: "Category"})),
			),
			GraphQL: schema.ListGraphQLConfig{MaxResults: 10},
		},
		"Category": {
			Fields: schema.Fields(schema.F("name", fields.Text(fields.TextConfig{}))),
			GraphQL: schema.ListGraphQLConfig{
				Plural: "Categories",
			},
			Access: schema.ListAccess{Create: schema.Deny()},
		},
	}}
}

// buildSchema forces every thunk by assembling a schema that references all
// generated types.
func buildSchema(t *testing.T, ls *Lists) graphql.Schema {
	t.Helper()
	queryFields := graphql.Fields{}
	mutationFields := graphql.Fields{}
	for _, key := range ls.Keys {
		list := ls.ByKey[key]
		types := list.Types
		if types.Output == nil {
			continue
		}
		queryFields[list.Names.GQL.ListQueryName] = &graphql.Field{
			Type: graphql.NewList(types.Output),
			Args: types.FindManyArgs,
		}
		queryFields[list.Names.GQL.ItemQueryName] = &graphql.Field{
			Type: types.Output,
			Args: graphql.FieldConfigArgument{"where": {Type: graphql.NewNonNull(types.UniqueWhere)}},
		}
		if types.Create != nil {
			mutationFields[list.Names.GQL.CreateMutationName] = &graphql.Field{
				Type: types.Output,
				Args: graphql.FieldConfigArgument{"data": {Type: types.Create}},
			}
		}
		if types.UpdateArgs != nil {
			mutationFields[list.Names.GQL.UpdateManyMutationName] = &graphql.Field{
				Type: graphql.NewList(types.Output),
				Args: graphql.FieldConfigArgument{"data": {Type: graphql.NewList(types.UpdateArgs)}},
			}
		}
	}
	s, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queryFields}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: mutationFields}),
	})
	require.NoError(t, err)
	return s
}

func TestInitialiseBuildsNamesAndTypes(t *testing.T) {
	ls, err := Initialise(blogConfig(), Options{})
	require.NoError(t, err)
	buildSchema(t, ls)

	assert.Equal(t, []string{"Category", "Post", "User"}, ls.Keys)
	post := ls.ByKey["Post"]
	assert.Equal(t, "allPosts", post.Names.GQL.ListQueryName)
	assert.Equal(t, "PostWhereInput", post.Types.Where.Name())
	assert.Equal(t, "SortPostsBy", post.Types.SortBy.Name())
	assert.Equal(t, 10, post.MaxResults)
	assert.Equal(t, "id", post.Fields[0].Key)

	where := post.Types.Where.Fields()
	for _, key := range []string{"id", "title", "author", "category", "AND", "OR", "NOT"} {
		assert.Contains(t, where, key)
	}
	assert.Equal(t, "UserWhereInput", where["author"].Type.Name())

	unique := ls.ByKey["User"].Types.UniqueWhere.Fields()
	assert.Contains(t, unique, "id")
	assert.Contains(t, unique, "email")
	assert.NotContains(t, unique, "name")

	create := ls.ByKey["User"].Types.Create.Fields()
	assert.NotContains(t, create, "id")
	assert.Equal(t, "PostRelateToManyForCreateInput", create["posts"].Type.Name())

	output := ls.ByKey["User"].Types.Output.Fields()
	assert.Contains(t, output, "posts")
	assert.Contains(t, output, "postsCount")
	assert.Equal(t, "PasswordState", output["password"].Type.Name())
}

func TestImplicitOppositeIsHidden(t *testing.T) {
	ls, err := Initialise(blogConfig(), Options{})
	require.NoError(t, err)
	buildSchema(t, ls)

	category := ls.ByKey["Category"]
	implicit, ok := category.Field("from_Post_category")
	require.True(t, ok)
	assert.True(t, implicit.Implicit)
	assert.Equal(t, schema.Many, implicit.Relation().Cardinality)
	assert.NotContains(t, category.Types.Output.Fields(), "from_Post_category")
	assert.NotContains(t, category.Types.Where.Fields(), "from_Post_category")

	fk := ls.ByKey["Post"].FieldsByKey["category"].Relation().Resolved.ForeignKey
	assert.Equal(t, "categoryId", fk)
}

func TestStaticCreateDenyOmitsCreateInputs(t *testing.T) {
	ls, err := Initialise(blogConfig(), Options{})
	require.NoError(t, err)
	buildSchema(t, ls)

	category := ls.ByKey["Category"]
	assert.False(t, category.Enabled.Create)
	assert.Nil(t, category.Types.Create)
	relate := category.Types.RelateToOneForCreate.Fields()
	assert.Contains(t, relate, "connect")
	assert.NotContains(t, relate, "create")

	relateUser := ls.ByKey["User"].Types.RelateToManyForUpdate.Fields()
	for _, key := range []string{"create", "connect", "disconnect", "set"} {
		assert.Contains(t, relateUser, key)
	}
}

func TestWhereNestingIsSelfReferential(t *testing.T) {
	ls, err := Initialise(blogConfig(), Options{})
	require.NoError(t, err)
	buildSchema(t, ls)

	where := ls.ByKey["Post"].Types.Where
	and := where.Fields()["AND"].Type.(*graphql.List).OfType.(*graphql.NonNull).OfType
	assert.Same(t, where, and)
}

func TestTagsIdentifyGeneratedInputs(t *testing.T) {
	ls, err := Initialise(blogConfig(), Options{})
	require.NoError(t, err)

	post := ls.ByKey["Post"].Types
	tag, ok := ls.TagOf(post.Create)
	require.True(t, ok)
	assert.Equal(t, Tag{ListKey: "Post", Kind: schema.KindCreate}, tag)
	tag, ok = ls.TagOf(post.Where)
	require.True(t, ok)
	assert.Equal(t, schema.KindWhere, tag.Kind)
	_, ok = ls.TagOf(post.ManyRelationFilter)
	assert.False(t, ok)
}

func TestFieldAccessDisablesInputs(t *testing.T) {
	cfg := schema.Config{Lists: map[string]schema.ListConfig{
		"Note": {Fields: schema.Fields(
			schema.F("body", fields.Text(fields.TextConfig{})),
			schema.F("secret", fields.Text(fields.TextConfig{Config: fields.Config{
				Access: schema.FieldAccess{Read: schema.Deny()},
			}})),
			schema.F("locked", fields.Text(fields.TextConfig{Config: fields.Config{
				Access: schema.FieldAccess{Update: schema.Deny()},
			}})),
		)},
	}}
	ls, err := Initialise(cfg, Options{})
	require.NoError(t, err)
	buildSchema(t, ls)

	types := ls.ByKey["Note"].Types
	assert.NotContains(t, types.Output.Fields(), "secret")
	assert.NotContains(t, types.Where.Fields(), "secret")
	assert.Contains(t, types.Create.Fields(), "secret")
	assert.Contains(t, types.Create.Fields(), "locked")
	assert.NotContains(t, types.Update.Fields(), "locked")
	_, hasSort := enumValueNames(types.SortBy)["secret_ASC"]
	assert.False(t, hasSort)
}

func enumValueNames(e *graphql.Enum) map[string]bool {
	out := map[string]bool{}
	for _, v := range e.Values() {
		out[v.Name] = true
	}
	return out
}

func TestInitialiseConfigurationErrors(t *testing.T) {
	foreignOne := false
	tests := []struct {
		name string
		cfg  schema.Config
		want string
	}{
		{
			name: "nil field function",
			cfg: schema.Config{Lists: map[string]schema.ListConfig{
				"Post": {Fields: schema.Fields(schema.F("title", nil))},
			}},
			want: "The field at Post.title does not provide a function",
		},
		{
			name: "mismatched foreign cardinality",
			cfg: schema.Config{Lists: map[string]schema.ListConfig{
				"Post": {Fields: schema.Fields(schema.F("author", fields.Relationship(fields.RelationshipConfig{Ref: "User.posts", ForeignMany: &foreignOne})))},
				"User": {Fields: schema.Fields(schema.F("posts", fields.Relationship(fields.RelationshipConfig{Ref: "Post.author", Many: true})))},
			}},
			want: "Post.author expects User.posts to be a to-one relationship but it is to-many",
		},
		{
			name: "reserved id",
			cfg: schema.Config{Lists: map[string]schema.ListConfig{
				"Post": {Fields: schema.Fields(schema.F("id", fields.Text(fields.TextConfig{})))},
			}},
			want: `Post: the field key "id" is reserved for the item identifier`,
		},
		{
			name: "plural equals key",
			cfg: schema.Config{Lists: map[string]schema.ListConfig{
				"Sheep": {},
			}},
			want: "the list key and the plural name used in GraphQL must be different",
		},
		{
			name: "unknown label field",
			cfg: schema.Config{Lists: map[string]schema.ListConfig{
				"Post": {UI: schema.ListUIConfig{LabelField: "headline"}},
			}},
			want: `Post: ui.labelField "headline" is not a field of the list`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Initialise(tt.cfg, Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLabelFieldDefaults(t *testing.T) {
	ls, err := Initialise(blogConfig(), Options{})
	require.NoError(t, err)
	label, ok := ls.ListLabelField("User")
	require.True(t, ok)
	assert.Equal(t, "name", label)
	label, _ = ls.ListLabelField("Post")
	assert.Equal(t, "id", label)
	_, ok = ls.ListLabelField("Nope")
	assert.False(t, ok)
}

func TestOmittedListHasNoTypes(t *testing.T) {
	cfg := blogConfig()
	hidden := cfg.Lists["Category"]
	hidden.GraphQL.Omit = true
	cfg.Lists["Category"] = hidden

	ls, err := Initialise(cfg, Options{})
	require.NoError(t, err)
	buildSchema(t, ls)
	assert.Nil(t, ls.ByKey["Category"].Types.Output)
	assert.NotContains(t, ls.ByKey["Post"].Types.Output.Fields(), "category")
	assert.NotContains(t, ls.ByKey["Post"].Types.Create.Fields(), "category")
}
