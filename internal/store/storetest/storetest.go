// Package storetest is the behaviour suite every store backend runs: the
// same blog data, filters and relation writes, checked against each
// backend's own storage.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/fields"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"
)

// BlogConfig declares User, Post and Tag lists with a one-to-many and a
// many-to-many relationship.
func BlogConfig() schema.Config {
	return schema.Config{Lists: map[string]schema.ListConfig{
		"User": {Fields: schema.Fields(
			schema.F("name", fields.Text(fields.TextConfig{})),
			schema.F("email", fields.Text(fields.TextConfig{IsUnique: true})),
			schema.F("posts", fields.Relationship(fields.RelationshipConfig{Ref: "Post.author", Many: true})),
		)},
		"Post": {Fields: schema.Fields(
			schema.F("title", fields.Text(fields.TextConfig{})),
			schema.F("views", fields.Integer(fields.IntegerConfig{})),
			schema.F("publishedAt", fields.Timestamp(fields.TimestampConfig{})),
			schema.F("author", fields.Relationship(fields.RelationshipConfig{Ref: "User.posts"})),
			schema.F("tags", fields.Relationship(fields.RelationshipConfig{Ref: "Tag.posts", Many: true})),
		)},
		"Tag": {Fields: schema.Fields(
			schema.F("name", fields.Text(fields.TextConfig{})),
			schema.F("posts", fields.Relationship(fields.RelationshipConfig{Ref: "Post.tags", Many: true})),
		)},
	}}
}

// BlogSchema is the storage model of BlogConfig.
func BlogSchema(t testing.TB) *dbschema.Schema {
	t.Helper()
	ls, err := lists.Initialise(BlogConfig(), lists.Options{})
	require.NoError(t, err)
	s, err := dbschema.Build(ls)
	require.NoError(t, err)
	return s
}

// Suite runs the shared scenarios against one backend.
type Suite struct {
	// Open returns an empty client for s.
	Open func(t *testing.T, s *dbschema.Schema) store.Client
	// CaseInsensitiveCollation is set for backends whose default string
	// comparison ignores case.
	CaseInsensitiveCollation bool
}

// Fixture holds the models of a seeded blog.
type Fixture struct {
	Client             store.Client
	Users, Posts, Tags store.Model
}

// Seed opens a client and creates users u1/u2, tags t1/t2 and posts p1-p4.
// p3 has no views and p4 no author.
func (s Suite) Seed(t *testing.T) Fixture {
	t.Helper()
	ctx := context.Background()
	client := s.Open(t, BlogSchema(t))
	model := func(key string) store.Model {
		m, err := client.Model(key)
		require.NoError(t, err)
		return m
	}
	f := Fixture{Client: client, Users: model("User"), Posts: model("Post"), Tags: model("Tag")}
	for _, u := range []store.Data{
		{"id": "u1", "name": "Ada", "email": "ada@example.com"},
		{"id": "u2", "name": "Grace", "email": "grace@example.com"},
	} {
		_, err := f.Users.Create(ctx, u)
		require.NoError(t, err)
	}
	for _, tag := range []store.Data{{"id": "t1", "name": "go"}, {"id": "t2", "name": "sql"}} {
		_, err := f.Tags.Create(ctx, tag)
		require.NoError(t, err)
	}
	for _, p := range []store.Data{
		{"id": "p1", "title": "Hello World", "views": 10, "publishedAt": Day(1), "author": store.RelateOne{Connect: "u1"}, "tags": store.RelateMany{Connect: []any{"t1", "t2"}}},
		{"id": "p2", "title": "hello again", "views": 5, "publishedAt": Day(2), "author": store.RelateOne{Connect: "u1"}, "tags": store.RelateMany{Connect: []any{"t1"}}},
		{"id": "p3", "title": "Draft 50%", "views": nil, "author": store.RelateOne{Connect: "u2"}},
		{"id": "p4", "title": "Orphan", "views": 7},
	} {
		_, err := f.Posts.Create(ctx, p)
		require.NoError(t, err)
	}
	return f
}

// Day is midnight UTC on the given day of January 2021.
func Day(d int) time.Time { return time.Date(2021, 1, d, 0, 0, 0, 0, time.UTC) }

// IDs lists the ids of items in order.
func IDs(items []schema.Item) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item["id"]
	}
	return out
}

// Run runs every scenario as a subtest.
func (s Suite) Run(t *testing.T) {
	t.Run("ScalarFilters", s.testScalarFilters)
	t.Run("RelationFilters", s.testRelationFilters)
	t.Run("OrderSkipTake", s.testOrderSkipTake)
	t.Run("StoredValues", s.testStoredValues)
	t.Run("RelationWrites", s.testRelationWrites)
	t.Run("ToOneTargetSide", s.testToOneTargetSide)
	t.Run("DeleteClearsReferences", s.testDeleteClearsReferences)
	t.Run("UniqueViolation", s.testUniqueViolation)
	t.Run("UnknownModel", s.testUnknownModel)
}

type filterCase struct {
	name  string
	model func(Fixture) store.Model
	where store.Filter
	want  []any
}

func posts(f Fixture) store.Model { return f.Posts }
func users(f Fixture) store.Model { return f.Users }
func tags(f Fixture) store.Model  { return f.Tags }

func (s Suite) runFilters(t *testing.T, cases []filterCase) {
	f := s.Seed(t)
	ctx := context.Background()
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			items, err := tt.model(f).FindMany(ctx, store.FindArgs{Where: tt.where})
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, IDs(items))
		})
	}
}

func (s Suite) testScalarFilters(t *testing.T) {
	sensitive := []any{"p2"}
	if s.CaseInsensitiveCollation {
		sensitive = []any{"p1", "p2"}
	}
	s.runFilters(t, []filterCase{
		{"equals", posts, store.Filter{"title": map[string]any{"equals": "Orphan"}}, []any{"p4"}},
		{"equals null", posts, store.Filter{"views": map[string]any{"equals": nil}}, []any{"p3"}},
		{"contains", posts, store.Filter{"title": map[string]any{"contains": "hello"}}, sensitive},
		{"contains insensitive", posts, store.Filter{"title": map[string]any{"contains": "HELLO", "mode": "insensitive"}}, []any{"p1", "p2"}},
		{"equals insensitive", posts, store.Filter{"title": map[string]any{"equals": "orphan", "mode": "insensitive"}}, []any{"p4"}},
		{"startsWith", posts, store.Filter{"title": map[string]any{"startsWith": "Or"}}, []any{"p4"}},
		{"endsWith wildcard literally", posts, store.Filter{"title": map[string]any{"endsWith": "50%"}}, []any{"p3"}},
		{"contains no match on wildcard", posts, store.Filter{"title": map[string]any{"contains": "_"}}, []any{}},
		{"in", posts, store.Filter{"views": map[string]any{"in": []any{5, 7}}}, []any{"p2", "p4"}},
		{"in empty", posts, store.Filter{"views": map[string]any{"in": []any{}}}, []any{}},
		{"notIn skips nulls", posts, store.Filter{"views": map[string]any{"notIn": []any{5}}}, []any{"p1", "p4"}},
		{"gt", posts, store.Filter{"views": map[string]any{"gt": 6}}, []any{"p1", "p4"}},
		{"timestamp lte", posts, store.Filter{"publishedAt": map[string]any{"lte": Day(1)}}, []any{"p1"}},
		{"not", posts, store.Filter{"views": map[string]any{"not": map[string]any{"equals": 10}}}, []any{"p2", "p4"}},
		{"not null", posts, store.Filter{"views": map[string]any{"not": nil}}, []any{"p1", "p2", "p4"}},
		{"OR", posts, store.Filter{"OR": []any{
			map[string]any{"title": map[string]any{"equals": "Orphan"}},
			map[string]any{"views": map[string]any{"equals": 5}},
		}}, []any{"p2", "p4"}},
		{"empty OR", posts, store.Filter{"OR": []any{}}, []any{}},
		{"empty AND", posts, store.Filter{"AND": []any{}}, []any{"p1", "p2", "p3", "p4"}},
		{"NOT keeps nulls", posts, store.Filter{"NOT": []any{map[string]any{"views": map[string]any{"gte": 7}}}}, []any{"p2", "p3"}},
		{"AND", posts, store.Filter{"AND": []any{
			map[string]any{"views": map[string]any{"gte": 5}},
			map[string]any{"views": map[string]any{"lt": 10}},
		}}, []any{"p2", "p4"}},
		{"single filter logical", posts, store.Filter{"AND": map[string]any{"views": map[string]any{"equals": 7}}}, []any{"p4"}},
	})
}

func (s Suite) testRelationFilters(t *testing.T) {
	s.runFilters(t, []filterCase{
		{"to-one nested", posts, store.Filter{"author": map[string]any{"name": map[string]any{"equals": "Ada"}}}, []any{"p1", "p2"}},
		{"to-one null", posts, store.Filter{"author": nil}, []any{"p4"}},
		{"some", users, store.Filter{"posts": map[string]any{"some": map[string]any{"title": map[string]any{"startsWith": "Draft"}}}}, []any{"u2"}},
		{"every", users, store.Filter{"posts": map[string]any{"every": map[string]any{"views": map[string]any{"gte": 5}}}}, []any{"u1"}},
		{"none", users, store.Filter{"posts": map[string]any{"none": map[string]any{"views": map[string]any{"gt": 8}}}}, []any{"u2"}},
		{"junction some", tags, store.Filter{"posts": map[string]any{"some": map[string]any{"id": map[string]any{"equals": "p2"}}}}, []any{"t1"}},
		{"junction from other side", posts, store.Filter{"tags": map[string]any{"some": map[string]any{"name": map[string]any{"equals": "sql"}}}}, []any{"p1"}},
		{"junction none", posts, store.Filter{"tags": map[string]any{"none": map[string]any{}}}, []any{"p3", "p4"}},
		{"junction every", posts, store.Filter{"tags": map[string]any{"every": map[string]any{"name": map[string]any{"equals": "go"}}}}, []any{"p2", "p3", "p4"}},
		{"nested two levels", tags, store.Filter{"posts": map[string]any{"some": map[string]any{"author": map[string]any{"name": map[string]any{"equals": "Ada"}}}}}, []any{"t1", "t2"}},
	})
}

func (s Suite) testOrderSkipTake(t *testing.T) {
	f := s.Seed(t)
	ctx := context.Background()

	items, err := f.Posts.FindMany(ctx, store.FindArgs{OrderBy: []store.OrderBy{{Field: "views", Direction: store.Asc}}})
	require.NoError(t, err)
	assert.Equal(t, []any{"p3", "p2", "p4", "p1"}, IDs(items))

	take := 2
	items, err = f.Posts.FindMany(ctx, store.FindArgs{
		OrderBy: []store.OrderBy{{Field: "views", Direction: store.Desc}},
		Skip:    1,
		Take:    &take,
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"p4", "p2"}, IDs(items))

	items, err = f.Posts.FindMany(ctx, store.FindArgs{
		OrderBy: []store.OrderBy{{Field: "views", Direction: store.Desc}},
		Skip:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"p2", "p3"}, IDs(items))

	zero := 0
	items, err = f.Posts.FindMany(ctx, store.FindArgs{Take: &zero})
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = f.Posts.FindMany(ctx, store.FindArgs{OrderBy: []store.OrderBy{{Field: "nope"}}})
	assert.Error(t, err)

	n, err := f.Posts.Count(ctx, store.Filter{"views": map[string]any{"not": nil}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func (s Suite) testStoredValues(t *testing.T) {
	f := s.Seed(t)
	ctx := context.Background()

	p1, err := f.Posts.FindUnique(ctx, map[string]any{"id": "p1"})
	require.NoError(t, err)
	require.NotNil(t, p1)
	assert.Equal(t, 10, p1["views"])
	assert.Equal(t, "u1", p1["authorId"])
	require.IsType(t, time.Time{}, p1["publishedAt"])
	assert.True(t, Day(1).Equal(p1["publishedAt"].(time.Time)))

	p3, err := f.Posts.FindFirst(ctx, store.Filter{"title": map[string]any{"startsWith": "Draft"}})
	require.NoError(t, err)
	require.NotNil(t, p3)
	assert.Contains(t, p3, "views")
	assert.Nil(t, p3["views"])

	missing, err := f.Posts.FindUnique(ctx, map[string]any{"id": "nope"})
	require.NoError(t, err)
	assert.Nil(t, missing)

	byEmail, err := f.Users.FindUnique(ctx, map[string]any{"email": "grace@example.com"})
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "u2", byEmail["id"])

	updated, err := f.Posts.Update(ctx, "p1", store.Data{"title": "Renamed", "views": nil})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated["title"])
	assert.Nil(t, updated["views"])

	_, err = f.Posts.Update(ctx, "nope", store.Data{"title": "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func (s Suite) testRelationWrites(t *testing.T) {
	f := s.Seed(t)
	ctx := context.Background()

	_, err := f.Users.Update(ctx, "u2", store.Data{"posts": store.RelateMany{Set: []any{"p1"}, SetGiven: true}})
	require.NoError(t, err)
	p1, _ := f.Posts.FindUnique(ctx, map[string]any{"id": "p1"})
	assert.Equal(t, "u2", p1["authorId"])
	p3, _ := f.Posts.FindUnique(ctx, map[string]any{"id": "p3"})
	assert.Nil(t, p3["authorId"])

	_, err = f.Posts.Update(ctx, "p1", store.Data{"tags": store.RelateMany{Disconnect: []any{"t1"}, Connect: []any{"t2"}}})
	require.NoError(t, err)
	tagged, err := f.Tags.FindMany(ctx, store.FindArgs{Where: store.Filter{"posts": map[string]any{"some": map[string]any{"id": map[string]any{"equals": "p1"}}}}})
	require.NoError(t, err)
	assert.Equal(t, []any{"t2"}, IDs(tagged))

	_, err = f.Tags.Update(ctx, "t2", store.Data{"posts": store.RelateMany{Set: []any{"p4"}, SetGiven: true}})
	require.NoError(t, err)
	onT2, err := f.Posts.FindMany(ctx, store.FindArgs{Where: store.Filter{"tags": map[string]any{"some": map[string]any{"id": map[string]any{"equals": "t2"}}}}})
	require.NoError(t, err)
	assert.Equal(t, []any{"p4"}, IDs(onT2))

	_, err = f.Posts.Update(ctx, "p2", store.Data{"author": store.RelateOne{Disconnect: true}})
	require.NoError(t, err)
	p2, _ := f.Posts.FindUnique(ctx, map[string]any{"id": "p2"})
	assert.Nil(t, p2["authorId"])

	_, err = f.Posts.Update(ctx, "p2", store.Data{"author": store.RelateOne{Connect: "missing"}})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.Posts.Create(ctx, store.Data{"title": "x", "tags": store.RelateMany{Connect: []any{"t1", "missing"}}})
	assert.ErrorIs(t, err, store.ErrNotFound)
	n, err := f.Posts.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

// testToOneTargetSide writes the one side of a one-to-many from the many
// side's opposite, where the key lives on the target.
func (s Suite) testToOneTargetSide(t *testing.T) {
	f := s.Seed(t)
	ctx := context.Background()

	_, err := f.Users.Update(ctx, "u1", store.Data{"posts": store.RelateMany{Connect: []any{"p4"}}})
	require.NoError(t, err)
	n, err := f.Posts.Count(ctx, store.Filter{"author": map[string]any{"id": map[string]any{"equals": "u1"}}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = f.Users.Update(ctx, "u1", store.Data{"posts": store.RelateMany{Disconnect: []any{"p1", "p3"}}})
	require.NoError(t, err)
	p3, _ := f.Posts.FindUnique(ctx, map[string]any{"id": "p3"})
	assert.Equal(t, "u2", p3["authorId"], "disconnect leaves items related elsewhere alone")
	n, err = f.Posts.Count(ctx, store.Filter{"author": map[string]any{"id": map[string]any{"equals": "u1"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func (s Suite) testDeleteClearsReferences(t *testing.T) {
	f := s.Seed(t)
	ctx := context.Background()

	deleted, err := f.Users.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", deleted["name"])
	p1, _ := f.Posts.FindUnique(ctx, map[string]any{"id": "p1"})
	assert.Nil(t, p1["authorId"])

	_, err = f.Tags.Delete(ctx, "t1")
	require.NoError(t, err)
	n, err := f.Posts.Count(ctx, store.Filter{"tags": map[string]any{"some": map[string]any{}}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.Users.Delete(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func (s Suite) testUniqueViolation(t *testing.T) {
	f := s.Seed(t)
	ctx := context.Background()

	_, err := f.Users.Create(ctx, store.Data{"name": "Copy", "email": "ada@example.com", "posts": store.RelateMany{Connect: []any{"p4"}}})
	require.Error(t, err)

	n, err := f.Users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	p4, _ := f.Posts.FindUnique(ctx, map[string]any{"id": "p4"})
	assert.Nil(t, p4["authorId"])

	created, err := f.Users.Create(ctx, store.Data{"name": "Linus"})
	require.NoError(t, err)
	assert.NotEmpty(t, created["id"])
	assert.Contains(t, created, "email")
	assert.Nil(t, created["email"])

	// Two items without the unique value do not collide.
	_, err = f.Users.Create(ctx, store.Data{"name": "Ken"})
	require.NoError(t, err)
}

func (s Suite) testUnknownModel(t *testing.T) {
	client := s.Open(t, BlogSchema(t))
	_, err := client.Model("Nope")
	assert.ErrorIs(t, err, store.ErrUnknownModel)
}
