package mongostore

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/store"
)

// matchNothing is the translation of an empty OR; $or rejects empty arrays.
var matchNothing = bson.D{{Key: idField, Value: bson.D{{Key: "$in", Value: bson.A{}}}}}

func fieldName(column string) string {
	if column == dbschema.IDColumn {
		return idField
	}
	return column
}

// translate converts a resolved filter over m into a query document.
func (s *Store) translate(ctx context.Context, m *dbschema.Model, where store.Filter) (bson.D, error) {
	keys := make([]string, 0, len(where))
	for key := range where {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var clauses []bson.D
	for _, key := range keys {
		value := where[key]
		var (
			out []bson.D
			err error
		)
		switch {
		case store.IsLogical(key):
			out, err = s.translateLogical(ctx, m, key, value)
		default:
			if r, ok := m.Relation(key); ok {
				out, err = s.translateRelation(ctx, r, value)
				break
			}
			if _, ok := m.Column(key); !ok {
				return nil, fmt.Errorf("unknown column: %s.%s", m.Name, key)
			}
			var ops map[string]any
			if ops, err = store.Operators(key, value); err == nil {
				out, err = scalarClauses(fieldName(key), ops)
			}
		}
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, out...)
	}
	return and(clauses), nil
}

func and(clauses []bson.D) bson.D {
	switch len(clauses) {
	case 0:
		return bson.D{}
	case 1:
		return clauses[0]
	}
	return bson.D{{Key: "$and", Value: clauses}}
}

func (s *Store) translateLogical(ctx context.Context, m *dbschema.Model, key string, value any) ([]bson.D, error) {
	filters, err := store.FilterList(key, value)
	if err != nil {
		return nil, err
	}
	docs := make([]bson.D, 0, len(filters))
	for _, f := range filters {
		doc, err := s.translate(ctx, m, f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	switch key {
	case "AND":
		if len(docs) == 0 {
			return nil, nil
		}
		return []bson.D{{{Key: "$and", Value: docs}}}, nil
	case "OR":
		if len(docs) == 0 {
			return []bson.D{matchNothing}, nil
		}
		return []bson.D{{{Key: "$or", Value: docs}}}, nil
	default:
		if len(docs) == 0 {
			return nil, nil
		}
		// $nor also passes documents whose fields are null or missing.
		return []bson.D{{{Key: "$nor", Value: docs}}}, nil
	}
}

// scalarClauses translates an operator object on field. Comparisons never
// match null, so only equals and not with null select on nullness.
func scalarClauses(field string, ops map[string]any) ([]bson.D, error) {
	insensitive := store.Insensitive(ops)
	opNames := make([]string, 0, len(ops))
	for op := range ops {
		opNames = append(opNames, op)
	}
	sort.Strings(opNames)

	cond := func(op string, v any) bson.D {
		return bson.D{{Key: field, Value: bson.D{{Key: op, Value: v}}}}
	}
	var clauses []bson.D
	for _, op := range opNames {
		operand := ops[op]
		switch op {
		case "mode":
			continue
		case "equals":
			switch str, isStr := operand.(string); {
			case operand == nil:
				clauses = append(clauses, bson.D{{Key: field, Value: nil}})
			case insensitive && isStr:
				clauses = append(clauses, bson.D{{Key: field, Value: pattern("^"+regexp.QuoteMeta(str)+"$", true)}})
			default:
				clauses = append(clauses, cond("$eq", operand))
			}
		case "in", "notIn":
			list, ok := operand.([]any)
			if !ok {
				return nil, fmt.Errorf("%s must be a list, got %T", op, operand)
			}
			values := bson.A{}
			for _, v := range list {
				if str, isStr := v.(string); isStr && insensitive {
					values = append(values, pattern("^"+regexp.QuoteMeta(str)+"$", true))
					continue
				}
				values = append(values, v)
			}
			if op == "in" {
				clauses = append(clauses, cond("$in", values))
			} else {
				clauses = append(clauses, bson.D{{Key: field, Value: bson.D{
					{Key: "$nin", Value: values},
					{Key: "$ne", Value: nil},
				}}})
			}
		case "lt", "lte", "gt", "gte":
			clauses = append(clauses, cond("$"+op, operand))
		case "contains", "startsWith", "endsWith":
			str, ok := operand.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be a string, got %T", op, operand)
			}
			expr := regexp.QuoteMeta(str)
			switch op {
			case "startsWith":
				expr = "^" + expr
			case "endsWith":
				expr += "$"
			}
			clauses = append(clauses, bson.D{{Key: field, Value: pattern(expr, insensitive)}})
		case "not":
			notNull := cond("$ne", nil)
			if operand == nil {
				clauses = append(clauses, notNull)
				continue
			}
			nested, ok := operand.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("not must be an object, got %T", operand)
			}
			if _, hasMode := nested["mode"]; !hasMode && insensitive {
				withMode := make(map[string]any, len(nested)+1)
				for k, v := range nested {
					withMode[k] = v
				}
				withMode["mode"] = ops["mode"]
				nested = withMode
			}
			inner, err := scalarClauses(field, nested)
			if err != nil {
				return nil, err
			}
			if len(inner) == 0 {
				continue
			}
			clauses = append(clauses, notNull, bson.D{{Key: "$nor", Value: bson.A{and(inner)}}})
		default:
			return nil, fmt.Errorf("unknown filter operator: %s", op)
		}
	}
	return clauses, nil
}

func pattern(expr string, insensitive bool) primitive.Regex {
	if insensitive {
		return primitive.Regex{Pattern: expr, Options: "i"}
	}
	return primitive.Regex{Pattern: expr}
}

// translateRelation resolves a relation filter to an id set of this model.
func (s *Store) translateRelation(ctx context.Context, r *dbschema.Relation, value any) ([]bson.D, error) {
	target, ok := s.schema.Model(r.Target)
	if !ok {
		return nil, fmt.Errorf("relationship where table not found: %s", r.Target)
	}
	idSet := func(field, op string, ids []any) []bson.D {
		if ids == nil {
			ids = []any{}
		}
		return []bson.D{{{Key: field, Value: bson.D{{Key: op, Value: ids}}}}}
	}

	if !r.Many {
		if value == nil {
			if r.ForeignKey != "" {
				return []bson.D{{{Key: r.ForeignKey, Value: nil}}}, nil
			}
			owners, err := s.relatedIDs(ctx, r, target, nil, false)
			if err != nil {
				return nil, err
			}
			return idSet(idField, "$nin", owners), nil
		}
		nested, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("filter for relationship %s must be an object", r.Field)
		}
		if r.ForeignKey != "" {
			doc, err := s.translate(ctx, target, nested)
			if err != nil {
				return nil, err
			}
			ids, err := s.lookup.distinct(ctx, target.Name, idField, doc)
			if err != nil {
				return nil, err
			}
			return idSet(r.ForeignKey, "$in", ids), nil
		}
		owners, err := s.relatedIDs(ctx, r, target, nested, false)
		if err != nil {
			return nil, err
		}
		return idSet(idField, "$in", owners), nil
	}

	rf, err := store.ParseRelationFilter(r.Field, value)
	if err != nil {
		return nil, err
	}
	var clauses []bson.D
	if rf.HasSome {
		owners, err := s.relatedIDs(ctx, r, target, rf.Some, false)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, idSet(idField, "$in", owners)...)
	}
	if rf.HasNone {
		owners, err := s.relatedIDs(ctx, r, target, rf.None, false)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, idSet(idField, "$nin", owners)...)
	}
	if rf.HasEvery {
		owners, err := s.relatedIDs(ctx, r, target, rf.Every, true)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, idSet(idField, "$nin", owners)...)
	}
	if len(clauses) == 0 {
		return nil, fmt.Errorf("relationship filter %s must include some, every or none", r.Field)
	}
	return clauses, nil
}

// relatedIDs returns the ids of this side's items related to a target
// matching nested, or failing it with negate.
func (s *Store) relatedIDs(ctx context.Context, r *dbschema.Relation, target *dbschema.Model, nested store.Filter, negate bool) ([]any, error) {
	doc, err := s.translate(ctx, target, nested)
	if err != nil {
		return nil, err
	}
	if negate {
		doc = bson.D{{Key: "$nor", Value: bson.A{doc}}}
	}
	switch {
	case r.TargetForeignKey != "":
		clauses := []bson.D{{{Key: r.TargetForeignKey, Value: bson.D{{Key: "$ne", Value: nil}}}}}
		if len(doc) > 0 {
			clauses = append([]bson.D{doc}, clauses...)
		}
		filter := and(clauses)
		return s.lookup.distinct(ctx, target.Name, r.TargetForeignKey, filter)
	case r.Junction != nil:
		targetIDs, err := s.lookup.distinct(ctx, target.Name, idField, doc)
		if err != nil {
			return nil, err
		}
		if targetIDs == nil {
			targetIDs = []any{}
		}
		filter := bson.D{{Key: r.Junction.OtherColumn, Value: bson.D{{Key: "$in", Value: targetIDs}}}}
		return s.lookup.distinct(ctx, r.Junction.Table, r.Junction.SelfColumn, filter)
	}
	return nil, fmt.Errorf("relationship %s has no key mapping", r.Field)
}
