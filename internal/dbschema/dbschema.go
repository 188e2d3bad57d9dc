// Package dbschema derives the storage model of the initialised lists: one
// model per list, its columns, relations, enums and join tables.
package dbschema

import (
	"fmt"
	"sort"

	"cms-graphql/internal/lists"
	"cms-graphql/internal/schema"
)

// Schema is the storage model of every list.
type Schema struct {
	Models    []*Model
	Junctions []*JunctionTable
	Enums     []*Enum

	byName map[string]*Model
}

// Model returns the model of a list.
func (s *Schema) Model(name string) (*Model, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// Model is the table (or collection) of one list.
type Model struct {
	Name      string
	Columns   []*Column
	Relations []*Relation

	columns   map[string]*Column
	relations map[string]*Relation
}

// Column returns the column called name.
func (m *Model) Column(name string) (*Column, bool) {
	c, ok := m.columns[name]
	return c, ok
}

// Relation returns the relation held by field.
func (m *Model) Relation(field string) (*Relation, bool) {
	r, ok := m.relations[field]
	return r, ok
}

// Column is one stored value of a model. Multi fields contribute one column
// per sub-field, named <field>__<sub>.
type Column struct {
	Name   string
	Scalar string
	// Enum names the enum type of enum columns.
	Enum       string
	EnumValues []string
	Mode       schema.ScalarMode
	Unique     bool
	ID         bool
	// References is the target model of a foreign-key column.
	References string
}

// Nullable reports whether the column accepts null.
func (c *Column) Nullable() bool {
	return c.Mode != schema.ModeRequired
}

// Relation is a relationship field as seen from its model.
type Relation struct {
	Field       string
	Name        string
	Target      string
	TargetField string
	Many        bool
	// ForeignKey is the column of this model holding the target id.
	ForeignKey string
	// TargetForeignKey is the column of the target model pointing back.
	TargetForeignKey string
	Junction         *schema.Junction
}

// JunctionTable joins the two sides of a many-to-many relation. Column A
// references model A, column B model B.
type JunctionTable struct {
	Name string
	A    string
	B    string
}

// Enum is a named set of values backing an enum column.
type Enum struct {
	Name   string
	Values []string
}

// Build derives the storage model of ls.
func Build(ls *lists.Lists) (*Schema, error) {
	s := &Schema{byName: make(map[string]*Model, len(ls.Keys))}
	junctions := map[string]*JunctionTable{}

	for _, key := range ls.Keys {
		list := ls.ByKey[key]
		m := &Model{
			Name:      key,
			columns:   map[string]*Column{},
			relations: map[string]*Relation{},
		}
		for _, f := range list.Fields {
			if err := s.addField(m, f, junctions); err != nil {
				return nil, err
			}
		}
		s.Models = append(s.Models, m)
		s.byName[key] = m
	}

	names := make([]string, 0, len(junctions))
	for name := range junctions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.Junctions = append(s.Junctions, junctions[name])
	}
	return s, nil
}

func (s *Schema) addField(m *Model, f *lists.Field, junctions map[string]*JunctionTable) error {
	db := f.DBField
	switch db.Kind {
	case schema.DBNone:
		return nil
	case schema.DBScalar:
		m.addColumn(&Column{Name: f.Key, Scalar: db.Scalar, Mode: db.Mode, Unique: db.IsUnique, ID: db.IsID})
	case schema.DBEnum:
		name := m.Name + "_" + f.Key
		s.Enums = append(s.Enums, &Enum{Name: name, Values: db.EnumValues})
		m.addColumn(&Column{Name: f.Key, Scalar: schema.ScalarString, Enum: name, EnumValues: db.EnumValues, Mode: db.Mode, Unique: db.IsUnique})
	case schema.DBMulti:
		for _, sub := range db.Multi {
			if sub.DBField.Kind != schema.DBScalar {
				return fmt.Errorf("%s: sub-field %q of a multi field must be a scalar", schema.Path(m.Name, f.Key), sub.Key)
			}
			m.addColumn(&Column{
				Name:   schema.MultiKey(f.Key, sub.Key),
				Scalar: sub.DBField.Scalar,
				Mode:   sub.DBField.Mode,
				Unique: sub.DBField.IsUnique,
			})
		}
	case schema.DBRelation:
		rel := db.Relation
		if rel == nil || rel.Resolved == nil {
			return fmt.Errorf("%s: relationship has not been resolved", schema.Path(m.Name, f.Key))
		}
		r := &Relation{
			Field:            f.Key,
			Name:             rel.Resolved.Name,
			Target:           rel.List,
			TargetField:      rel.Field,
			Many:             rel.Cardinality == schema.Many,
			ForeignKey:       rel.Resolved.ForeignKey,
			TargetForeignKey: rel.Resolved.TargetForeignKey,
			Junction:         rel.Resolved.Junction,
		}
		m.Relations = append(m.Relations, r)
		m.relations[f.Key] = r
		if r.ForeignKey != "" {
			m.addColumn(&Column{
				Name:       r.ForeignKey,
				Scalar:     schema.ScalarString,
				Mode:       schema.ModeOptional,
				Unique:     rel.Resolved.UniqueForeignKey,
				References: r.Target,
			})
		}
		if j := r.Junction; j != nil {
			jt, ok := junctions[j.Table]
			if !ok {
				jt = &JunctionTable{Name: j.Table}
				junctions[j.Table] = jt
			}
			if j.SelfColumn == "A" {
				jt.A = m.Name
			} else {
				jt.B = m.Name
			}
		}
	default:
		return fmt.Errorf("%s: unknown storage kind %q", schema.Path(m.Name, f.Key), db.Kind)
	}
	return nil
}

func (m *Model) addColumn(c *Column) {
	m.Columns = append(m.Columns, c)
	m.columns[c.Name] = c
}

// IDColumn is the identifier column of every model.
const IDColumn = "id"

// RelationWrite is the value written to one relation field.
type RelationWrite struct {
	Relation *Relation
	Value    any
}

// Split separates the column values of a write from its relation writes,
// which come back in field order. Keys the model does not have are an error.
func (m *Model) Split(data map[string]any) (map[string]any, []RelationWrite, error) {
	columns := map[string]any{}
	var relations []RelationWrite
	for key, value := range data {
		if r, ok := m.Relation(key); ok {
			relations = append(relations, RelationWrite{Relation: r, Value: value})
			continue
		}
		if _, ok := m.Column(key); !ok {
			return nil, nil, fmt.Errorf("unknown column: %s.%s", m.Name, key)
		}
		columns[key] = value
	}
	sort.Slice(relations, func(i, j int) bool { return relations[i].Relation.Field < relations[j].Relation.Field })
	return columns, relations, nil
}
