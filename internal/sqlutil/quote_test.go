package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoting(t *testing.T) {
	tests := []struct {
		name  string
		quote func(string) string
		input string
		want  string
	}{
		{"backtick plain", QuoteIdentifier, "Post", "`Post`"},
		{"backtick embedded", QuoteIdentifier, "a`b`c", "`a``b``c`"},
		{"backtick empty", QuoteIdentifier, "", "``"},
		{"double plain", QuoteDoubleIdentifier, "author_id", `"author_id"`},
		{"double reserved word", QuoteDoubleIdentifier, "order", `"order"`},
		{"double embedded", QuoteDoubleIdentifier, `x"y`, `"x""y"`},
		{"string plain", QuoteString, "draft", "'draft'"},
		{"string embedded", QuoteString, "it's", "'it''s'"},
		{"string empty", QuoteString, "", "''"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.quote(tt.input))
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, EscapeLike("100%"))
	assert.Equal(t, `snake\_case`, EscapeLike("snake_case"))
	assert.Equal(t, `C:\\dir`, EscapeLike(`C:\dir`))
	assert.Equal(t, "plain", EscapeLike("plain"))
}
