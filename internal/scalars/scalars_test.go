package scalars

import (
	"encoding/json"
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
)

func TestJSONScalar(t *testing.T) {
	scalar := JSON()

	input := map[string]interface{}{"name": "ava", "active": true}
	assert.Equal(t, input, scalar.Serialize(input))

	decoded := scalar.Serialize(json.RawMessage(`{"ok":true}`))
	assert.Equal(t, map[string]interface{}{"ok": true}, decoded)
	assert.Nil(t, scalar.Serialize([]byte(`{not json`)))

	assert.Equal(t, "x", scalar.ParseValue("x"))
}

func TestJSONScalarParseLiteral(t *testing.T) {
	scalar := JSON()

	literal := &ast.ObjectValue{Fields: []*ast.ObjectField{
		{Name: &ast.Name{Value: "n"}, Value: &ast.IntValue{Value: "3"}},
		{Name: &ast.Name{Value: "tags"}, Value: &ast.ListValue{Values: []ast.Value{
			&ast.StringValue{Value: "a"},
			&ast.BooleanValue{Value: true},
		}}},
	}}
	assert.Equal(t, map[string]interface{}{
		"n":    int64(3),
		"tags": []interface{}{"a", true},
	}, scalar.ParseLiteral(literal))
	assert.Nil(t, scalar.ParseLiteral(&ast.IntValue{Value: "not a number"}))
}
