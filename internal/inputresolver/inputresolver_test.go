package inputresolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-graphql/internal/fields"
	"cms-graphql/internal/gqlerrors"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/schema"
)

// coordinates is a multi field stored as two columns.
func coordinates() schema.FieldFunc {
	return func(fc schema.FieldContext) (*schema.Field, error) {
		input := graphql.NewInputObject(graphql.InputObjectConfig{
			Name: fc.ListKey + "CoordinatesInput",
			Fields: graphql.InputObjectConfigFieldMap{
				"lat": {Type: graphql.Float},
				"lng": {Type: graphql.Float},
			},
		})
		withExtra := func(_ context.Context, v any) (any, error) {
			m, _ := v.(map[string]any)
			if m == nil {
				return nil, nil
			}
			out := map[string]any{"untrusted": true}
			for k, val := range m {
				out[k] = val
			}
			return out, nil
		}
		return &schema.Field{
			Type: "coordinates",
			DBField: schema.DBField{Kind: schema.DBMulti, Multi: []schema.SubField{
				{Key: "lat", DBField: schema.Scalar(schema.ScalarFloat, schema.ModeOptional)},
				{Key: "lng", DBField: schema.Scalar(schema.ScalarFloat, schema.ModeOptional)},
			}},
			Input: schema.FieldInputs{
				Create: &schema.FieldInput{Arg: func(schema.TypesLookup) graphql.Input { return input }, Resolve: withExtra},
				Update: &schema.FieldInput{Arg: func(schema.TypesLookup) graphql.Input { return input }, Resolve: withExtra},
				OrderBy: &schema.FieldInput{
					Arg: func(schema.TypesLookup) graphql.Input { return fc.Filters.OrderDirection },
					Resolve: func(_ context.Context, v any) (any, error) {
						return map[string]any{"lat": v}, nil
					},
				},
			},
			Output: &schema.FieldOutput{
				Type:    func(schema.TypesLookup) graphql.Output { return graphql.String },
				Resolve: func(context.Context, schema.OutputParams) (any, error) { return nil, nil },
			},
		}, nil
	}
}

func testLists(t *testing.T) *lists.Lists {
	t.Helper()
	ls, err := lists.Initialise(schema.Config{Lists: map[string]schema.ListConfig{
		"User": {Fields: schema.Fields(
			schema.F("name", fields.Text(fields.TextConfig{})),
			schema.F("posts", fields.Relationship(fields.RelationshipConfig{Ref: "Post.author", Many: true})),
		)},
		"Post": {Fields: schema.Fields(
			schema.F("title", fields.Text(fields.TextConfig{})),
			schema.F("publishedAt", fields.Timestamp(fields.TimestampConfig{})),
			schema.F("author", fields.Relationship(fields.RelationshipConfig{Ref: "User.posts"})),
			schema.F("location", coordinates()),
		)},
	}}, lists.Options{})
	require.NoError(t, err)
	return ls
}

func TestWhereNestingResolvesLeaves(t *testing.T) {
	ls := testLists(t)
	r := New(ls)

	where := map[string]any{
		"AND": []any{
			map[string]any{"title": map[string]any{"equals": "a"}},
			map[string]any{"OR": []any{
				map[string]any{"NOT": []any{
					map[string]any{"publishedAt": map[string]any{"gt": "2021-01-01T00:00:00.000Z"}},
				}},
				map[string]any{"author": map[string]any{"name": map[string]any{"equals": "Ada"}}},
			}},
		},
	}
	out, err := r.ResolveInput(context.Background(), "Post", schema.KindWhere, where)
	require.NoError(t, err)

	or := out["AND"].([]any)[1].(map[string]any)["OR"].([]any)
	not := or[0].(map[string]any)["NOT"].([]any)
	gt := not[0].(map[string]any)["publishedAt"].(map[string]any)["gt"]
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), gt)
	assert.Equal(t, map[string]any{"name": map[string]any{"equals": "Ada"}}, or[1].(map[string]any)["author"])
}

func TestManyRelationFilterResolvesTargetWhere(t *testing.T) {
	ls := testLists(t)
	out, err := New(ls).ResolveInput(context.Background(), "User", schema.KindWhere, map[string]any{
		"posts": map[string]any{"some": map[string]any{"publishedAt": map[string]any{"lt": "2020-05-06T07:08:09.000Z"}}},
	})
	require.NoError(t, err)
	lt := out["posts"].(map[string]any)["some"].(map[string]any)["publishedAt"].(map[string]any)["lt"]
	assert.IsType(t, time.Time{}, lt)
}

func TestCreateAppliesFieldResolversAndRelationHandler(t *testing.T) {
	ls := testLists(t)
	var mu sync.Mutex
	var seen []any
	r := New(ls).WithRelations(func(_ context.Context, list *lists.List, field *lists.Field, value any) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "Post", list.Key)
		assert.Equal(t, "author", field.Key)
		seen = append(seen, value)
		return "user-1", nil
	})

	raw := map[string]any{"connect": map[string]any{"id": "user-1"}}
	out, err := r.ResolveInput(context.Background(), "Post", schema.KindCreate, map[string]any{
		"title":       "Hello",
		"publishedAt": "2021-02-03T04:05:06.000Z",
		"author":      raw,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", out["title"])
	assert.Equal(t, time.Date(2021, 2, 3, 4, 5, 6, 0, time.UTC), out["publishedAt"])
	assert.Equal(t, "user-1", out["author"])
	require.Len(t, seen, 1)
	assert.Equal(t, raw, seen[0])
}

func TestMultiFieldExpandsFromDeclaredSubFields(t *testing.T) {
	ls := testLists(t)
	r := New(ls)

	out, err := r.ResolveInput(context.Background(), "Post", schema.KindCreate, map[string]any{
		"location": map[string]any{"lat": 1.5},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"location__lat": 1.5, "location__lng": nil}, out)

	out, err = r.ResolveInput(context.Background(), "Post", schema.KindOrderBy, map[string]any{"location": "desc"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"location__lat": "desc"}, out)
}

func TestNonListValueForListTypeIsSystemError(t *testing.T) {
	ls := testLists(t)
	r := New(ls)
	listType := graphql.NewList(graphql.NewNonNull(ls.ByKey["Post"].Types.Where))

	_, err := r.Resolve(context.Background(), map[string]any{"title": nil}, listType)
	require.Error(t, err)
	assert.Equal(t, gqlerrors.CodeSystem, gqlerrors.CodeOf(err))

	_, err = r.ResolveInput(context.Background(), "Post", schema.KindWhere, map[string]any{"AND": "nope"})
	require.Error(t, err)
	assert.Equal(t, gqlerrors.CodeSystem, gqlerrors.CodeOf(err))
}

func TestListElementsKeepOrder(t *testing.T) {
	ls := testLists(t)
	r := New(ls)
	items := make([]any, 50)
	for i := range items {
		items[i] = map[string]any{"title": map[string]any{"equals": string(rune('a' + i%26))}}
	}
	out, err := r.Resolve(context.Background(), items, graphql.NewList(ls.ByKey["Post"].Types.Where))
	require.NoError(t, err)
	resolved := out.([]any)
	require.Len(t, resolved, 50)
	for i := range items {
		assert.Equal(t, items[i], resolved[i])
	}
}

func TestUnknownInputsAreSystemErrors(t *testing.T) {
	ls := testLists(t)
	r := New(ls)
	_, err := r.ResolveInput(context.Background(), "Nope", schema.KindWhere, nil)
	assert.Equal(t, gqlerrors.CodeSystem, gqlerrors.CodeOf(err))
	_, err = r.ResolveInput(context.Background(), "Post", schema.KindWhere, map[string]any{"bogus": 1})
	assert.Equal(t, gqlerrors.CodeSystem, gqlerrors.CodeOf(err))
}
