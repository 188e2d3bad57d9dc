package dbschema

import (
	"fmt"
	"strings"

	"cms-graphql/internal/schema"
)

// Prisma renders the schema in Prisma schema language for provider.
func (s *Schema) Prisma(provider string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "datasource %s {\n  url      = env(\"DATABASE_URL\")\n  provider = %q\n}\n\n", provider, provider)
	b.WriteString("generator client {\n  provider = \"prisma-client-js\"\n  output   = \"node_modules/.prisma/client\"\n}\n")

	for _, m := range s.Models {
		fmt.Fprintf(&b, "\nmodel %s {\n", m.Name)
		for _, line := range s.prismaModelLines(m) {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("}\n")
	}
	for _, e := range s.Enums {
		fmt.Fprintf(&b, "\nenum %s {\n", e.Name)
		for _, v := range e.Values {
			b.WriteString("  " + v + "\n")
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func (s *Schema) prismaModelLines(m *Model) []string {
	relByFK := map[string]*Relation{}
	for _, r := range m.Relations {
		if r.ForeignKey != "" {
			relByFK[r.ForeignKey] = r
		}
	}
	var lines []string
	emitted := map[string]bool{}
	for _, c := range m.Columns {
		if r, ok := relByFK[c.Name]; ok {
			lines = append(lines, fmt.Sprintf("%s %s? @relation(%q, fields: [%s], references: [id])", r.Field, r.Target, r.Name, c.Name))
			emitted[r.Field] = true
		}
		lines = append(lines, prismaColumn(c))
	}
	for _, r := range m.Relations {
		if emitted[r.Field] {
			continue
		}
		suffix := "?"
		if r.Many {
			suffix = "[]"
		}
		lines = append(lines, fmt.Sprintf("%s %s%s @relation(%q)", r.Field, r.Target, suffix, r.Name))
	}
	return lines
}

func prismaColumn(c *Column) string {
	t := c.Scalar
	if c.Enum != "" {
		t = c.Enum
	}
	switch c.Mode {
	case schema.ModeOptional:
		t += "?"
	case schema.ModeMany:
		t += "[]"
	}
	line := c.Name + " " + t
	if c.ID {
		return line + " @id @default(uuid())"
	}
	if c.Unique {
		line += " @unique"
	}
	return line
}
