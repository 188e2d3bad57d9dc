package memstore

import (
	"fmt"
	"sort"
	"strings"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"
)

func (s *Store) filter(m *dbschema.Model, where store.Filter) ([]schema.Item, error) {
	var out []schema.Item
	for _, item := range s.items[m.Name] {
		ok, err := s.match(m, item, where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *Store) match(m *dbschema.Model, item schema.Item, where store.Filter) (bool, error) {
	for key, value := range where {
		ok, err := s.matchKey(m, item, key, value)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (s *Store) matchKey(m *dbschema.Model, item schema.Item, key string, value any) (bool, error) {
	if store.IsLogical(key) {
		filters, err := store.FilterList(key, value)
		if err != nil {
			return false, err
		}
		return s.matchLogical(m, item, key, filters)
	}
	if r, ok := m.Relation(key); ok {
		return s.matchRelation(item, r, value)
	}
	if _, ok := m.Column(key); !ok {
		return false, fmt.Errorf("%s has no column %q", m.Name, key)
	}
	ops, err := store.Operators(key, value)
	if err != nil {
		return false, err
	}
	return matchOps(item[key], ops)
}

func (s *Store) matchLogical(m *dbschema.Model, item schema.Item, key string, filters []store.Filter) (bool, error) {
	for _, f := range filters {
		ok, err := s.match(m, item, f)
		if err != nil {
			return false, err
		}
		switch key {
		case "AND":
			if !ok {
				return false, nil
			}
		case "OR":
			if ok {
				return true, nil
			}
		case "NOT":
			if ok {
				return false, nil
			}
		}
	}
	return key != "OR", nil
}

func (s *Store) matchRelation(item schema.Item, r *dbschema.Relation, value any) (bool, error) {
	target, _ := s.schema.Model(r.Target)
	related := s.related(r, item)
	if !r.Many {
		if value == nil {
			return len(related) == 0, nil
		}
		nested, ok := value.(map[string]any)
		if !ok {
			return false, fmt.Errorf("filter for %s must be an object, got %T", r.Field, value)
		}
		if len(related) == 0 {
			return false, nil
		}
		return s.match(target, related[0], nested)
	}

	rf, err := store.ParseRelationFilter(r.Field, value)
	if err != nil {
		return false, err
	}
	count := func(f store.Filter) (int, error) {
		n := 0
		for _, rel := range related {
			ok, err := s.match(target, rel, f)
			if err != nil {
				return 0, err
			}
			if ok {
				n++
			}
		}
		return n, nil
	}
	if rf.HasSome {
		n, err := count(rf.Some)
		if err != nil || n == 0 {
			return false, err
		}
	}
	if rf.HasEvery {
		n, err := count(rf.Every)
		if err != nil || n != len(related) {
			return false, err
		}
	}
	if rf.HasNone {
		n, err := count(rf.None)
		if err != nil || n != 0 {
			return false, err
		}
	}
	return true, nil
}

// matchOps evaluates a scalar operator object. Null values match only
// equality with null, as in SQL.
func matchOps(value any, ops map[string]any) (bool, error) {
	insensitive := store.Insensitive(ops)
	fold := func(v any) any {
		if s, ok := v.(string); ok && insensitive {
			return strings.ToLower(s)
		}
		return v
	}
	v := fold(value)
	for op, operand := range ops {
		var ok bool
		switch op {
		case "mode":
			continue
		case "equals":
			ok = store.Equal(v, fold(operand))
		case "not":
			if operand == nil {
				ok = value != nil
				break
			}
			nested, isMap := operand.(map[string]any)
			if !isMap {
				return false, fmt.Errorf("not must be an object, got %T", operand)
			}
			if value == nil {
				return false, nil
			}
			inner, err := matchOps(value, withMode(nested, ops))
			if err != nil {
				return false, err
			}
			ok = !inner
		case "in", "notIn":
			list, isList := operand.([]any)
			if !isList {
				return false, fmt.Errorf("%s must be a list, got %T", op, operand)
			}
			if value == nil {
				return false, nil
			}
			found := false
			for _, candidate := range list {
				if store.Equal(v, fold(candidate)) {
					found = true
					break
				}
			}
			ok = found == (op == "in")
		case "lt", "lte", "gt", "gte":
			c, comparable := store.Compare(v, fold(operand))
			if !comparable {
				return false, nil
			}
			switch op {
			case "lt":
				ok = c < 0
			case "lte":
				ok = c <= 0
			case "gt":
				ok = c > 0
			default:
				ok = c >= 0
			}
		case "contains", "startsWith", "endsWith":
			str, isStr := v.(string)
			sub, subStr := fold(operand).(string)
			if !isStr || !subStr {
				return false, nil
			}
			switch op {
			case "contains":
				ok = strings.Contains(str, sub)
			case "startsWith":
				ok = strings.HasPrefix(str, sub)
			default:
				ok = strings.HasSuffix(str, sub)
			}
		default:
			return false, fmt.Errorf("unknown filter operator %q", op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// withMode carries the case sensitivity of the outer object into not.
func withMode(nested, outer map[string]any) map[string]any {
	if _, ok := nested["mode"]; ok || outer["mode"] == nil {
		return nested
	}
	out := make(map[string]any, len(nested)+1)
	for k, v := range nested {
		out[k] = v
	}
	out["mode"] = outer["mode"]
	return out
}

// sortItems orders items in place. Nulls sort before every value.
func sortItems(m *dbschema.Model, items []schema.Item, orderBy []store.OrderBy) error {
	for _, o := range orderBy {
		if _, ok := m.Column(o.Field); !ok {
			return fmt.Errorf("%s has no column %q to order by", m.Name, o.Field)
		}
	}
	if len(orderBy) == 0 {
		return nil
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, o := range orderBy {
			c := compareNullsFirst(items[i][o.Field], items[j][o.Field])
			if c == 0 {
				continue
			}
			if o.Direction == store.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}

func compareNullsFirst(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	c, _ := store.Compare(a, b)
	return c
}
