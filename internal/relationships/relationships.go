// Package relationships pairs the two sides of every relationship field and
// decides which side stores the foreign key.
package relationships

import (
	"fmt"
	"sort"

	"cms-graphql/internal/schema"
)

// Lists maps list key to field key to the declared storage of that field.
type Lists map[string]map[string]schema.DBField

// ImplicitFieldKey names the synthetic opposite of a one-sided reference.
func ImplicitFieldKey(listKey, fieldKey string) string {
	return fmt.Sprintf("from_%s_%s", listKey, fieldKey)
}

// Resolve validates every relationship and fills in Relation.Resolved. The
// result contains every input field plus the implicit opposites of one-sided
// references. The input is not modified, and the output depends only on the
// declared configuration, never on map or declaration order.
func Resolve(lists Lists) (Lists, error) {
	out := make(Lists, len(lists))
	for listKey, fields := range lists {
		copied := make(map[string]schema.DBField, len(fields))
		for fieldKey, f := range fields {
			if f.Relation != nil {
				rel := *f.Relation
				rel.Resolved = nil
				f.Relation = &rel
			}
			copied[fieldKey] = f
		}
		out[listKey] = copied
	}

	for _, listKey := range sortedKeys(out) {
		fields := out[listKey]
		for _, fieldKey := range sortedKeys(fields) {
			rel := fields[fieldKey].Relation
			if rel == nil || rel.Field != "" {
				continue
			}
			target, ok := out[rel.List]
			if !ok {
				return nil, fmt.Errorf("%s points to %s, but %s does not exist", schema.Path(listKey, fieldKey), rel.List, rel.List)
			}
			implicit := ImplicitFieldKey(listKey, fieldKey)
			if _, taken := target[implicit]; taken {
				return nil, fmt.Errorf("%s needs the implicit field %s, but %s already declares it",
					schema.Path(listKey, fieldKey), schema.Path(rel.List, implicit), rel.List)
			}
			target[implicit] = schema.DBField{
				Kind: schema.DBRelation,
				Relation: &schema.Relation{
					List:        listKey,
					Field:       fieldKey,
					Cardinality: schema.Many,
					Resolved:    &schema.ResolvedRelation{Implicit: true},
				},
			}
			rel.Field = implicit
		}
	}

	for _, listKey := range sortedKeys(out) {
		fields := out[listKey]
		for _, fieldKey := range sortedKeys(fields) {
			if err := validatePair(out, listKey, fieldKey); err != nil {
				return nil, err
			}
		}
	}

	done := map[string]bool{}
	for _, listKey := range sortedKeys(out) {
		fields := out[listKey]
		for _, fieldKey := range sortedKeys(fields) {
			rel := fields[fieldKey].Relation
			if rel == nil {
				continue
			}
			self := side{list: listKey, field: fieldKey, rel: rel}
			other := side{list: rel.List, field: rel.Field, rel: out[rel.List][rel.Field].Relation}
			winner, loser := order(self, other)
			name := winner.id() + "___" + loser.id()
			if done[name] {
				continue
			}
			done[name] = true
			assign(name, winner, loser)
		}
	}
	return out, nil
}

func validatePair(lists Lists, listKey, fieldKey string) error {
	rel := lists[listKey][fieldKey].Relation
	if rel == nil {
		return nil
	}
	path := schema.Path(listKey, fieldKey)
	targetPath := schema.Path(rel.List, rel.Field)
	target, ok := lists[rel.List]
	if !ok {
		return fmt.Errorf("%s points to %s, but %s does not exist", path, rel.List, rel.List)
	}
	opposite, ok := target[rel.Field]
	if !ok {
		return fmt.Errorf("%s points to %s, but %s does not exist", path, targetPath, targetPath)
	}
	if rel.List == listKey && rel.Field == fieldKey {
		return fmt.Errorf("%s points to itself", path)
	}
	if opposite.Relation == nil {
		return fmt.Errorf("%s points to %s, but %s is not a relationship field", path, targetPath, targetPath)
	}
	back := opposite.Relation
	if back.List != listKey || back.Field != fieldKey {
		return fmt.Errorf("%s points to %s, %s points to %s, expected %s to point to %s",
			path, targetPath, targetPath, schema.Path(back.List, back.Field), targetPath, path)
	}
	if rel.ForeignCardinality != "" && rel.ForeignCardinality != back.Cardinality {
		return fmt.Errorf("%s expects %s to be a to-%s relationship but it is to-%s",
			path, targetPath, rel.ForeignCardinality, back.Cardinality)
	}
	return nil
}

type side struct {
	list  string
	field string
	rel   *schema.Relation
}

func (s side) id() string {
	return s.list + "___" + s.field
}

// order returns the lexicographically larger side first.
func order(a, b side) (side, side) {
	if a.id() > b.id() {
		return a, b
	}
	return b, a
}

func assign(name string, winner, loser side) {
	wr := &schema.ResolvedRelation{Name: name}
	lr := &schema.ResolvedRelation{Name: name}
	if winner.rel.Resolved != nil {
		wr.Implicit = winner.rel.Resolved.Implicit
	}
	if loser.rel.Resolved != nil {
		lr.Implicit = loser.rel.Resolved.Implicit
	}

	switch {
	case winner.rel.Cardinality == schema.One && loser.rel.Cardinality == schema.One:
		wr.ForeignKey = ForeignKeyColumn(winner.field)
		wr.UniqueForeignKey = true
		lr.TargetForeignKey = wr.ForeignKey
	case winner.rel.Cardinality == schema.One:
		wr.ForeignKey = ForeignKeyColumn(winner.field)
		lr.TargetForeignKey = wr.ForeignKey
	case loser.rel.Cardinality == schema.One:
		lr.ForeignKey = ForeignKeyColumn(loser.field)
		wr.TargetForeignKey = lr.ForeignKey
	default:
		// Column A holds ids of the lexicographically smaller side.
		table := "_" + name
		lr.Junction = &schema.Junction{Table: table, SelfColumn: "A", OtherColumn: "B"}
		wr.Junction = &schema.Junction{Table: table, SelfColumn: "B", OtherColumn: "A"}
	}
	winner.rel.Resolved = wr
	loser.rel.Resolved = lr
}

// ForeignKeyColumn is the column holding the target id of a to-one field.
func ForeignKeyColumn(fieldKey string) string {
	return fieldKey + "Id"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
