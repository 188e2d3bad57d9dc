package sqlstore

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/sqlutil"
	"cms-graphql/internal/store"
)

// alwaysTrue stands in for an empty filter inside subqueries.
var alwaysTrue = sq.Expr("1=1")

// buildWhereCondition translates a resolved filter over m into a condition.
// Relation filters become uncorrelated IN subqueries, so every column
// reference resolves against the nearest FROM and no aliases are needed.
// A nil condition matches every row.
func (s *Store) buildWhereCondition(m *dbschema.Model, where store.Filter) (sq.Sqlizer, error) {
	if len(where) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(where))
	for key := range where {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conditions := []sq.Sqlizer{}
	for _, key := range keys {
		value := where[key]
		var cond sq.Sqlizer
		var err error
		switch {
		case store.IsLogical(key):
			cond, err = s.buildLogical(m, key, value)
		default:
			if r, ok := m.Relation(key); ok {
				cond, err = s.buildRelationFilterCondition(r, value)
				break
			}
			if _, ok := m.Column(key); !ok {
				return nil, fmt.Errorf("unknown column: %s.%s", m.Name, key)
			}
			cond, err = s.buildColumnCondition(key, value)
		}
		if err != nil {
			return nil, err
		}
		if cond != nil {
			conditions = append(conditions, cond)
		}
	}

	if len(conditions) == 0 {
		return nil, nil
	}
	if len(conditions) == 1 {
		return conditions[0], nil
	}
	return sq.And(conditions), nil
}

func (s *Store) buildLogical(m *dbschema.Model, key string, value any) (sq.Sqlizer, error) {
	filters, err := store.FilterList(key, value)
	if err != nil {
		return nil, err
	}
	parts := make([]sq.Sqlizer, 0, len(filters))
	for _, f := range filters {
		cond, err := s.buildWhereCondition(m, f)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			cond = alwaysTrue
		}
		parts = append(parts, cond)
	}
	switch key {
	case "AND":
		if len(parts) == 0 {
			return nil, nil
		}
		return sq.And(parts), nil
	case "OR":
		// squirrel renders an empty Or as (1=0).
		return sq.Or(parts), nil
	default:
		if len(parts) == 0 {
			return nil, nil
		}
		return not(sq.Or(parts))
	}
}

// not negates cond, treating an unknown (null) result as false so rows with
// null columns pass the negation.
func not(cond sq.Sqlizer) (sq.Sqlizer, error) {
	sql, args, err := cond.ToSql()
	if err != nil {
		return nil, err
	}
	return sq.Expr(fmt.Sprintf("NOT COALESCE((%s), FALSE)", sql), args...), nil
}

func (s *Store) buildColumnCondition(column string, value any) (sq.Sqlizer, error) {
	ops, err := store.Operators(column, value)
	if err != nil {
		return nil, err
	}
	return s.buildOperators(s.dialect.QuoteIdent(column), ops)
}

func (s *Store) buildOperators(col string, ops map[string]any) (sq.Sqlizer, error) {
	insensitive := store.Insensitive(ops)
	lowerCol := fmt.Sprintf("LOWER(%s)", col)

	opNames := make([]string, 0, len(ops))
	for op := range ops {
		opNames = append(opNames, op)
	}
	sort.Strings(opNames)

	conditions := []sq.Sqlizer{}
	for _, op := range opNames {
		operand := ops[op]
		switch op {
		case "mode":
			continue
		case "equals":
			switch str, isStr := operand.(string); {
			case operand == nil:
				conditions = append(conditions, sq.Eq{col: nil})
			case insensitive && isStr:
				conditions = append(conditions, sq.Expr(lowerCol+" = LOWER(?)", str))
			default:
				conditions = append(conditions, sq.Eq{col: operand})
			}
		case "in", "notIn":
			list, ok := operand.([]any)
			if !ok {
				return nil, fmt.Errorf("%s must be a list, got %T", op, operand)
			}
			target := col
			if insensitive {
				target = lowerCol
				list = lowerStrings(list)
			}
			if op == "in" {
				conditions = append(conditions, sq.Eq{target: list})
			} else {
				conditions = append(conditions, sq.NotEq{target: list})
			}
		case "lt":
			conditions = append(conditions, sq.Lt{col: operand})
		case "lte":
			conditions = append(conditions, sq.LtOrEq{col: operand})
		case "gt":
			conditions = append(conditions, sq.Gt{col: operand})
		case "gte":
			conditions = append(conditions, sq.GtOrEq{col: operand})
		case "contains", "startsWith", "endsWith":
			str, ok := operand.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be a string, got %T", op, operand)
			}
			conditions = append(conditions, s.dialect.Match(col, sqlutil.MatchKind(op), str, insensitive))
		case "not":
			if operand == nil {
				conditions = append(conditions, sq.NotEq{col: nil})
				continue
			}
			nested, ok := operand.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("not must be an object, got %T", operand)
			}
			if _, hasMode := nested["mode"]; !hasMode && insensitive {
				nested = withMode(nested, ops["mode"])
			}
			inner, err := s.buildOperators(col, nested)
			if err != nil {
				return nil, err
			}
			if inner == nil {
				continue
			}
			sql, args, err := inner.ToSql()
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, sq.Expr(fmt.Sprintf("NOT (%s)", sql), args...))
		default:
			return nil, fmt.Errorf("unknown filter operator: %s", op)
		}
	}
	if len(conditions) == 0 {
		return nil, nil
	}
	if len(conditions) == 1 {
		return conditions[0], nil
	}
	return sq.And(conditions), nil
}

func withMode(nested map[string]any, mode any) map[string]any {
	out := make(map[string]any, len(nested)+1)
	for k, v := range nested {
		out[k] = v
	}
	out["mode"] = mode
	return out
}

func lowerStrings(list []any) []any {
	out := make([]any, len(list))
	for i, v := range list {
		if str, ok := v.(string); ok {
			out[i] = strings.ToLower(str)
		} else {
			out[i] = v
		}
	}
	return out
}

// buildRelationFilterCondition handles a relation key. To-one relations
// take a nested filter or null; to-many relations take some/every/none.
func (s *Store) buildRelationFilterCondition(r *dbschema.Relation, value any) (sq.Sqlizer, error) {
	target, ok := s.schema.Model(r.Target)
	if !ok {
		return nil, fmt.Errorf("relationship where table not found: %s", r.Target)
	}
	q := s.dialect.QuoteIdent
	id := q(dbschema.IDColumn)

	if !r.Many {
		if value == nil {
			if r.ForeignKey != "" {
				return sq.Eq{q(r.ForeignKey): nil}, nil
			}
			sub, err := s.relatedIDs(r, target, nil, false)
			if err != nil {
				return nil, err
			}
			return inSubquery(id, true, sub)
		}
		nested, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("filter for relationship %s must be an object", r.Field)
		}
		if r.ForeignKey != "" {
			sub, err := s.selectIDs(target, q(dbschema.IDColumn), nested, false)
			if err != nil {
				return nil, err
			}
			return inSubquery(q(r.ForeignKey), false, sub)
		}
		sub, err := s.relatedIDs(r, target, nested, false)
		if err != nil {
			return nil, err
		}
		return inSubquery(id, false, sub)
	}

	rf, err := store.ParseRelationFilter(r.Field, value)
	if err != nil {
		return nil, err
	}
	conditions := []sq.Sqlizer{}
	if rf.HasSome {
		sub, err := s.relatedIDs(r, target, rf.Some, false)
		if err != nil {
			return nil, err
		}
		cond, err := inSubquery(id, false, sub)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	if rf.HasNone {
		sub, err := s.relatedIDs(r, target, rf.None, false)
		if err != nil {
			return nil, err
		}
		cond, err := inSubquery(id, true, sub)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	if rf.HasEvery {
		sub, err := s.relatedIDs(r, target, rf.Every, true)
		if err != nil {
			return nil, err
		}
		cond, err := inSubquery(id, true, sub)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("relationship filter %s must include some, every or none", r.Field)
	}
	if len(conditions) == 1 {
		return conditions[0], nil
	}
	return sq.And(conditions), nil
}

// relatedIDs selects the ids of this side's items that have a related
// target matching nested (or, with negate, failing it). nil nested matches
// every target.
func (s *Store) relatedIDs(r *dbschema.Relation, target *dbschema.Model, nested store.Filter, negate bool) (sq.SelectBuilder, error) {
	q := s.dialect.QuoteIdent
	switch {
	case r.TargetForeignKey != "":
		sub, err := s.selectIDs(target, q(r.TargetForeignKey), nested, negate)
		if err != nil {
			return sub, err
		}
		return sub.Where(sq.NotEq{q(r.TargetForeignKey): nil}), nil
	case r.Junction != nil:
		inner, err := s.selectIDs(target, q(dbschema.IDColumn), nested, negate)
		if err != nil {
			return inner, err
		}
		innerSQL, args, err := inner.ToSql()
		if err != nil {
			return inner, err
		}
		return sq.Select(q(r.Junction.SelfColumn)).
			From(q(r.Junction.Table)).
			Where(sq.Expr(fmt.Sprintf("%s IN (%s)", q(r.Junction.OtherColumn), innerSQL), args...)), nil
	}
	return sq.SelectBuilder{}, fmt.Errorf("relationship %s has no key mapping", r.Field)
}

// selectIDs selects column from target rows matching nested.
func (s *Store) selectIDs(target *dbschema.Model, column string, nested store.Filter, negate bool) (sq.SelectBuilder, error) {
	builder := sq.Select(column).From(s.dialect.QuoteIdent(target.Name))
	cond, err := s.buildWhereCondition(target, nested)
	if err != nil {
		return builder, err
	}
	if negate {
		if cond == nil {
			cond = alwaysTrue
		}
		if cond, err = not(cond); err != nil {
			return builder, err
		}
	}
	if cond != nil {
		builder = builder.Where(cond)
	}
	return builder, nil
}

func inSubquery(column string, negate bool, sub sq.SelectBuilder) (sq.Sqlizer, error) {
	sql, args, err := sub.ToSql()
	if err != nil {
		return nil, err
	}
	op := "IN"
	if negate {
		op = "NOT IN"
	}
	return sq.Expr(fmt.Sprintf("%s %s (%s)", column, op, sql), args...), nil
}
