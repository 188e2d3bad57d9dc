package dbschema

import (
	"fmt"
	"strings"

	"cms-graphql/internal/schema"
	"cms-graphql/internal/sqlutil"
)

// SQL renders CREATE TABLE statements for d, one statement per element.
// Tables come first in model order, then join tables, so foreign keys of
// join tables always reference existing tables. Foreign keys between list
// tables are added with ALTER TABLE at the end since lists may reference
// each other in cycles.
func (s *Schema) SQL(d sqlutil.Dialect) []string {
	q := d.QuoteIdent
	var stmts, constraints []string
	for _, m := range s.Models {
		var defs []string
		for _, c := range m.Columns {
			defs = append(defs, columnDDL(d, c))
		}
		if d.Name() == "sqlite" {
			// SQLite cannot add constraints to an existing table.
			for _, c := range m.Columns {
				if c.References != "" {
					defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE SET NULL",
						q(c.Name), q(c.References), q(IDColumn)))
				}
			}
		} else {
			for _, c := range m.Columns {
				if c.References != "" {
					constraints = append(constraints, fmt.Sprintf(
						"ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE SET NULL",
						q(m.Name), q(m.Name+"_"+c.Name+"_fkey"), q(c.Name), q(c.References), q(IDColumn)))
				}
			}
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", q(m.Name), strings.Join(defs, ",\n  ")))
	}
	for _, j := range s.Junctions {
		stringType := d.ColumnType(schema.ScalarString)
		stmts = append(stmts, fmt.Sprintf(
			"CREATE TABLE %s (\n  %s %s NOT NULL,\n  %s %s NOT NULL,\n  PRIMARY KEY (%s, %s),\n  FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE,\n  FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE\n)",
			q(j.Name),
			q("A"), stringType,
			q("B"), stringType,
			q("A"), q("B"),
			q("A"), q(j.A), q(IDColumn),
			q("B"), q(j.B), q(IDColumn),
		))
	}
	return append(stmts, constraints...)
}

func columnDDL(d sqlutil.Dialect, c *Column) string {
	def := d.QuoteIdent(c.Name) + " " + d.ColumnType(c.Scalar)
	if c.ID {
		return def + " NOT NULL PRIMARY KEY"
	}
	if !c.Nullable() {
		def += " NOT NULL"
	}
	if c.Unique {
		def += " UNIQUE"
	}
	if c.Enum != "" {
		quoted := make([]string, len(c.EnumValues))
		for i, v := range c.EnumValues {
			quoted[i] = sqlutil.QuoteString(v)
		}
		def += fmt.Sprintf(" CHECK (%s IN (%s))", d.QuoteIdent(c.Name), strings.Join(quoted, ", "))
	}
	return def
}
