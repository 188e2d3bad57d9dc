package sqlstore

import (
	"fmt"
	"strconv"
	"time"

	"cms-graphql/internal/dbexec"
	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/schema"
)

func scanItems(m *dbschema.Model, rows dbexec.Rows) ([]schema.Item, error) {
	var items []schema.Item
	for rows.Next() {
		raw := make([]any, len(m.Columns))
		dest := make([]any, len(m.Columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		item := make(schema.Item, len(m.Columns))
		for i, c := range m.Columns {
			v, err := normalize(c, raw[i])
			if err != nil {
				return nil, err
			}
			item[c.Name] = v
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// timestampLayouts covers the text forms drivers return for DATETIME
// columns when they do not parse them themselves.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// normalize converts a driver value into the Go type fields expect for the
// column's scalar.
func normalize(c *dbschema.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch c.Scalar {
	case schema.ScalarString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case schema.ScalarInt:
		switch n := v.(type) {
		case int64:
			return int(n), nil
		case int32:
			return int(n), nil
		case int:
			return n, nil
		case float64:
			return int(n), nil
		case string:
			parsed, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			return int(parsed), nil
		}
	case schema.ScalarFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case string:
			parsed, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			return parsed, nil
		}
	case schema.ScalarBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		case string:
			return b == "1" || b == "true" || b == "t", nil
		}
	case schema.ScalarDateTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			for _, layout := range timestampLayouts {
				if parsed, err := time.Parse(layout, t); err == nil {
					return parsed.UTC(), nil
				}
			}
			return nil, fmt.Errorf("column %s: unrecognised timestamp %q", c.Name, t)
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("column %s: unexpected %T for %s", c.Name, v, c.Scalar)
}
