package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/sqlutil"
	"cms-graphql/internal/store"
	"cms-graphql/internal/store/storetest"
)

func newMockStore(t *testing.T, d sqlutil.Dialect) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, d, storetest.BlogSchema(t), nil), mock
}

var postColumns = []string{"id", "title", "views", "publishedAt", "authorId"}

func TestFindManyPostgresSQL(t *testing.T) {
	s, mock := newMockStore(t, sqlutil.PostgreSQL)
	posts, err := s.Model("Post")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "title", "views", "publishedAt", "authorId" FROM "Post" WHERE ("authorId" IN (SELECT "id" FROM "User" WHERE "name" = $1) AND "views" > $2) ORDER BY "views" DESC NULLS LAST LIMIT 5 OFFSET 2`)).
		WithArgs("Ada", 3).
		WillReturnRows(sqlmock.NewRows(postColumns).
			AddRow("p1", "Hello", int64(10), nil, "u1"))

	take := 5
	items, err := posts.FindMany(context.Background(), store.FindArgs{
		Where: store.Filter{
			"author": map[string]any{"name": map[string]any{"equals": "Ada"}},
			"views":  map[string]any{"gt": 3},
		},
		OrderBy: []store.OrderBy{{Field: "views", Direction: store.Desc}},
		Take:    &take,
		Skip:    2,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 10, items[0]["views"])
	assert.Nil(t, items[0]["publishedAt"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindManyMySQLOffsetNeedsLimit(t *testing.T) {
	s, mock := newMockStore(t, sqlutil.MySQL)
	posts, err := s.Model("Post")
	require.NoError(t, err)

	mock.ExpectQuery("FROM `Post` WHERE `title` LIKE \\? ORDER BY `title` ASC LIMIT 9223372036854775807 OFFSET 1").
		WithArgs("%go%").
		WillReturnRows(sqlmock.NewRows(postColumns))

	items, err := posts.FindMany(context.Background(), store.FindArgs{
		Where:   store.Filter{"title": map[string]any{"contains": "go"}},
		OrderBy: []store.OrderBy{{Field: "title"}},
		Skip:    1,
	})
	require.NoError(t, err)
	assert.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountWithEveryFilter(t *testing.T) {
	s, mock := newMockStore(t, sqlutil.PostgreSQL)
	users, err := s.Model("User")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "User" WHERE "id" NOT IN (SELECT "authorId" FROM "Post" WHERE NOT COALESCE(("views" >= $1), FALSE) AND "authorId" IS NOT NULL)`)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	n, err := users.Count(context.Background(), store.Filter{
		"posts": map[string]any{"every": map[string]any{"views": map[string]any{"gte": 5}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnknownFilterColumn(t *testing.T) {
	s, _ := newMockStore(t, sqlutil.PostgreSQL)
	posts, err := s.Model("Post")
	require.NoError(t, err)
	_, err = posts.FindMany(context.Background(), store.FindArgs{Where: store.Filter{"nope": map[string]any{"equals": 1}}})
	assert.EqualError(t, err, "unknown column: Post.nope")
}

func TestUpdateMissingItemRollsBack(t *testing.T) {
	s, mock := newMockStore(t, sqlutil.PostgreSQL)
	posts, err := s.Model("Post")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM "Post" WHERE "id" = \$1 LIMIT 1`).
		WithArgs("p9").
		WillReturnRows(sqlmock.NewRows(postColumns))
	mock.ExpectRollback()

	_, err = posts.Update(context.Background(), "p9", store.Data{"title": "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateConnectsJunction(t *testing.T) {
	s, mock := newMockStore(t, sqlutil.PostgreSQL)
	posts, err := s.Model("Post")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "Tag" WHERE "id" IN ($1,$2)`)).
		WithArgs("t1", "t2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t1").AddRow("t2"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "Post" ("id","title") VALUES ($1,$2)`)).
		WithArgs("p1", "Hello").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT "B" FROM "_Tag___posts___Post___tags" WHERE \(?"A" = \$1 AND "B" IN \(\$2,\$3\)`).
		WithArgs("p1", "t1", "t2").
		WillReturnRows(sqlmock.NewRows([]string{"B"}).AddRow("t2"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "_Tag___posts___Post___tags" ("A","B") VALUES ($1,$2)`)).
		WithArgs("p1", "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM "Post" WHERE "id" = \$1 LIMIT 1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(postColumns).AddRow("p1", "Hello", nil, nil, nil))
	mock.ExpectCommit()

	created, err := posts.Create(context.Background(), store.Data{
		"id":    "p1",
		"title": "Hello",
		"tags":  store.RelateMany{Connect: []any{"t1", "t2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", created["title"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateConnectMissingTarget(t *testing.T) {
	s, mock := newMockStore(t, sqlutil.PostgreSQL)
	posts, err := s.Model("Post")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "User"`).
		WithArgs("u9").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err = posts.Create(context.Background(), store.Data{"title": "x", "author": store.RelateOne{Connect: "u9"}})
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyKeepsBackendCode(t *testing.T) {
	s, mock := newMockStore(t, sqlutil.PostgreSQL)
	users, err := s.Model("User")
	require.NoError(t, err)

	mock.ExpectQuery(`FROM "User"`).WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "User" does not exist`})

	_, err = users.FindMany(context.Background(), store.FindArgs{})
	require.Error(t, err)
	var coded interface{ BackendCode() string }
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, "42P01", coded.BackendCode())
}

func TestDriverName(t *testing.T) {
	for provider, want := range map[string]string{
		store.ProviderMySQL:      "mysql",
		store.ProviderPostgreSQL: "pgx",
		store.ProviderSQLite:     "sqlite",
	} {
		got, err := DriverName(provider)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := DriverName(store.ProviderMongoDB)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	col := func(scalar string) *dbschema.Column { return &dbschema.Column{Name: "c", Scalar: scalar} }

	v, err := normalize(col(schema.ScalarInt), []byte("42"))
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = normalize(col(schema.ScalarBoolean), int64(1))
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = normalize(col(schema.ScalarDateTime), "2021-01-02 03:04:05+00:00")
	require.NoError(t, err)
	assert.Equal(t, 2021, v.(interface{ Year() int }).Year())

	_, err = normalize(col(schema.ScalarFloat), true)
	assert.Error(t, err)

	v, err = normalize(col(schema.ScalarString), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}
