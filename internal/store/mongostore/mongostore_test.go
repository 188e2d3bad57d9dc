package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"
	"cms-graphql/internal/store/storetest"
)

type distinctCall struct {
	collection, field string
	filter            bson.D
}

type fakeLookup struct {
	calls   []distinctCall
	results map[string][]any
}

func (f *fakeLookup) distinct(_ context.Context, collection, field string, filter bson.D) ([]any, error) {
	f.calls = append(f.calls, distinctCall{collection, field, filter})
	return f.results[collection+"."+field], nil
}

func newTranslator(t *testing.T, results map[string][]any) (*Store, *fakeLookup) {
	t.Helper()
	fake := &fakeLookup{results: results}
	return &Store{schema: storetest.BlogSchema(t), lookup: fake}, fake
}

func postModel(t *testing.T, s *Store) *dbschema.Model {
	t.Helper()
	m, ok := s.schema.Model("Post")
	require.True(t, ok)
	return m
}

func TestTranslateScalars(t *testing.T) {
	s, _ := newTranslator(t, nil)
	m := postModel(t, s)

	tests := []struct {
		name  string
		where store.Filter
		want  bson.D
	}{
		{
			"equals id",
			store.Filter{"id": map[string]any{"equals": "p1"}},
			bson.D{{Key: "_id", Value: bson.D{{Key: "$eq", Value: "p1"}}}},
		},
		{
			"equals null",
			store.Filter{"views": map[string]any{"equals": nil}},
			bson.D{{Key: "views", Value: nil}},
		},
		{
			"contains insensitive",
			store.Filter{"title": map[string]any{"contains": "a.b", "mode": "insensitive"}},
			bson.D{{Key: "title", Value: primitive.Regex{Pattern: `a\.b`, Options: "i"}}},
		},
		{
			"startsWith",
			store.Filter{"title": map[string]any{"startsWith": "He"}},
			bson.D{{Key: "title", Value: primitive.Regex{Pattern: "^He"}}},
		},
		{
			"notIn excludes null",
			store.Filter{"views": map[string]any{"notIn": []any{5}}},
			bson.D{{Key: "views", Value: bson.D{{Key: "$nin", Value: bson.A{5}}, {Key: "$ne", Value: nil}}}},
		},
		{
			"range",
			store.Filter{"views": map[string]any{"gte": 1, "lt": 9}},
			bson.D{{Key: "$and", Value: []bson.D{
				{{Key: "views", Value: bson.D{{Key: "$gte", Value: 1}}}},
				{{Key: "views", Value: bson.D{{Key: "$lt", Value: 9}}}},
			}}},
		},
		{
			"not",
			store.Filter{"views": map[string]any{"not": map[string]any{"equals": 3}}},
			bson.D{{Key: "$and", Value: []bson.D{
				{{Key: "views", Value: bson.D{{Key: "$ne", Value: nil}}}},
				{{Key: "$nor", Value: bson.A{bson.D{{Key: "views", Value: bson.D{{Key: "$eq", Value: 3}}}}}}},
			}}},
		},
		{
			"empty OR",
			store.Filter{"OR": []any{}},
			matchNothing,
		},
		{
			"NOT",
			store.Filter{"NOT": []any{map[string]any{"views": map[string]any{"gt": 2}}}},
			bson.D{{Key: "$nor", Value: []bson.D{{{Key: "views", Value: bson.D{{Key: "$gt", Value: 2}}}}}}},
		},
		{
			"empty filter",
			store.Filter{},
			bson.D{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.translate(context.Background(), m, tt.where)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslateErrors(t *testing.T) {
	s, _ := newTranslator(t, nil)
	m := postModel(t, s)
	ctx := context.Background()

	_, err := s.translate(ctx, m, store.Filter{"nope": map[string]any{"equals": 1}})
	assert.EqualError(t, err, "unknown column: Post.nope")
	_, err = s.translate(ctx, m, store.Filter{"views": map[string]any{"between": 1}})
	assert.Error(t, err)
	_, err = s.translate(ctx, m, store.Filter{"title": map[string]any{"contains": 1}})
	assert.Error(t, err)
}

func TestTranslateToOneRelation(t *testing.T) {
	s, fake := newTranslator(t, map[string][]any{"User._id": {"u1"}})
	m := postModel(t, s)

	got, err := s.translate(context.Background(), m, store.Filter{
		"author": map[string]any{"name": map[string]any{"equals": "Ada"}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "authorId", Value: bson.D{{Key: "$in", Value: []any{"u1"}}}}}, got)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "User", fake.calls[0].collection)
	assert.Equal(t, bson.D{{Key: "name", Value: bson.D{{Key: "$eq", Value: "Ada"}}}}, fake.calls[0].filter)
}

func TestTranslateEveryThroughJunction(t *testing.T) {
	s, fake := newTranslator(t, map[string][]any{
		"Tag._id":                      {"t2"},
		"_Tag___posts___Post___tags.A": {"p1"},
	})
	m := postModel(t, s)

	got, err := s.translate(context.Background(), m, store.Filter{
		"tags": map[string]any{"every": map[string]any{"name": map[string]any{"equals": "go"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "_id", Value: bson.D{{Key: "$nin", Value: []any{"p1"}}}}}, got)

	require.Len(t, fake.calls, 2)
	assert.Equal(t, bson.D{{Key: "$nor", Value: bson.A{bson.D{{Key: "name", Value: bson.D{{Key: "$eq", Value: "go"}}}}}}}, fake.calls[0].filter)
	assert.Equal(t, "_Tag___posts___Post___tags", fake.calls[1].collection)
	assert.Equal(t, "A", fake.calls[1].field)
	assert.Equal(t, bson.D{{Key: "B", Value: bson.D{{Key: "$in", Value: []any{"t2"}}}}}, fake.calls[1].filter)
}

func TestTranslateSomeByTargetKey(t *testing.T) {
	s, fake := newTranslator(t, nil)
	users, ok := s.schema.Model("User")
	require.True(t, ok)

	got, err := s.translate(context.Background(), users, store.Filter{
		"posts": map[string]any{"some": map[string]any{}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: []any{}}}}}, got)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "Post", fake.calls[0].collection)
	assert.Equal(t, "authorId", fake.calls[0].field)
	assert.Equal(t, bson.D{{Key: "authorId", Value: bson.D{{Key: "$ne", Value: nil}}}}, fake.calls[0].filter)
}

func TestDocuments(t *testing.T) {
	doc := toDocument(map[string]any{"id": "p1", "title": "Hi", "views": nil})
	assert.Equal(t, bson.D{{Key: "_id", Value: "p1"}, {Key: "title", Value: "Hi"}}, doc)

	update := updateDocument(map[string]any{"title": "Hi", "views": nil})
	assert.Equal(t, bson.D{
		{Key: "$set", Value: bson.D{{Key: "title", Value: "Hi"}}},
		{Key: "$unset", Value: bson.D{{Key: "views", Value: ""}}},
	}, update)

	s, _ := newTranslator(t, nil)
	m := postModel(t, s)
	published := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	item := fromDocument(m, bson.M{
		"_id":         "p1",
		"views":       int32(4),
		"publishedAt": primitive.NewDateTimeFromTime(published),
	})
	assert.Equal(t, schema.Item{
		"id":          "p1",
		"title":       nil,
		"views":       4,
		"publishedAt": published,
		"authorId":    nil,
	}, item)
}

func TestFindOptions(t *testing.T) {
	s, _ := newTranslator(t, nil)
	m := postModel(t, s)
	take := 3
	opts, err := findOptions(m, store.FindArgs{
		OrderBy: []store.OrderBy{{Field: "id", Direction: store.Desc}, {Field: "views", Direction: store.Asc}},
		Skip:    2,
		Take:    &take,
	})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "_id", Value: -1}, {Key: "views", Value: 1}}, opts.Sort)
	assert.Equal(t, int64(2), *opts.Skip)
	assert.Equal(t, int64(3), *opts.Limit)

	_, err = findOptions(m, store.FindArgs{OrderBy: []store.OrderBy{{Field: "nope"}}})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	err := classify(mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}})
	var coded interface{ BackendCode() string }
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, "11000", coded.BackendCode())
	assert.Nil(t, classify(nil))
}
