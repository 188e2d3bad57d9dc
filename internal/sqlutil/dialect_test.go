package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"mysql", "postgresql", "sqlite"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.Name())
	}
	_, err := DialectFor("mongodb")
	assert.Error(t, err)
}

func TestQuoteIdentPerDialect(t *testing.T) {
	assert.Equal(t, "`Post`", MySQL.QuoteIdent("Post"))
	assert.Equal(t, `"Post"`, PostgreSQL.QuoteIdent("Post"))
	assert.Equal(t, `"a""b"`, SQLite.QuoteIdent(`a"b`))
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name        string
		dialect     Dialect
		kind        MatchKind
		insensitive bool
		wantSQL     string
		wantArg     string
	}{
		{"postgres contains", PostgreSQL, MatchContains, false, `"title" LIKE ? ESCAPE '\'`, "%50\\%%"},
		{"postgres insensitive", PostgreSQL, MatchStartsWith, true, `"title" ILIKE ? ESCAPE '\'`, "50\\%%"},
		{"mysql endsWith", MySQL, MatchEndsWith, false, `"title" LIKE ?`, "%50\\%"},
		{"mysql insensitive", MySQL, MatchContains, true, `LOWER("title") LIKE LOWER(?)`, "%50\\%%"},
		{"sqlite glob", SQLite, MatchStartsWith, false, `"title" GLOB ?`, "50%*"},
		{"sqlite insensitive", SQLite, MatchEndsWith, true, `LOWER("title") LIKE LOWER(?) ESCAPE '\'`, "%50\\%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.dialect.Match(`"title"`, tt.kind, "50%", tt.insensitive).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, []interface{}{tt.wantArg}, args)
		})
	}
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "a[*]b[?]c[[]d]", EscapeGlob("a*b?c[d]"))
}
