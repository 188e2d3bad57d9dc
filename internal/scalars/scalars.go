// Package scalars holds the custom GraphQL scalars shared by the generated
// schema.
package scalars

import (
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// JSON is an arbitrary JSON value. Maps and slices are returned as JSON
// structures; raw bytes are decoded first.
func JSON() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "JSON",
		Description: "The `JSON` scalar type represents JSON values as specified by [ECMA-404](http://www.ecma-international.org/publications/files/ECMA-ST/ECMA-404.pdf).",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case json.RawMessage:
				return decodeJSON(v)
			case []byte:
				return decodeJSON(v)
			default:
				return v
			}
		},
		ParseValue: func(value interface{}) interface{} {
			return value
		},
		ParseLiteral: parseLiteral,
	})
}

func decodeJSON(raw []byte) interface{} {
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.Default().Warn("failed to decode JSON scalar", slog.String("error", err.Error()))
		return nil
	}
	return out
}

func parseLiteral(valueAST ast.Value) interface{} {
	switch v := valueAST.(type) {
	case *ast.StringValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.IntValue:
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return nil
		}
		return n
	case *ast.FloatValue:
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil
		}
		return f
	case *ast.EnumValue:
		return v.Value
	case *ast.ListValue:
		out := make([]interface{}, 0, len(v.Values))
		for _, item := range v.Values {
			out = append(out, parseLiteral(item))
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(v.Fields))
		for _, field := range v.Fields {
			out[field.Name.Value] = parseLiteral(field.Value)
		}
		return out
	default:
		return nil
	}
}
