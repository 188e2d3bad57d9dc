package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphql-go/graphql"
)

var builtinScalars = map[string]bool{
	"String": true, "Int": true, "Float": true, "Boolean": true, "ID": true,
}

// printSDL renders the schema in the GraphQL schema definition language with
// types and fields in name order. Introspection and built-in types are left
// out.
func printSDL(s graphql.Schema) string {
	typeMap := s.TypeMap()
	names := make([]string, 0, len(typeMap))
	for name := range typeMap {
		if strings.HasPrefix(name, "__") || builtinScalars[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n")
		}
		switch t := typeMap[name].(type) {
		case *graphql.Scalar:
			fmt.Fprintf(&b, "scalar %s\n", name)
		case *graphql.Enum:
			fmt.Fprintf(&b, "enum %s {\n", name)
			for _, v := range t.Values() {
				fmt.Fprintf(&b, "  %s\n", v.Name)
			}
			b.WriteString("}\n")
		case *graphql.InputObject:
			fmt.Fprintf(&b, "input %s {\n", name)
			fields := t.Fields()
			for _, key := range sortedKeys(fields) {
				fmt.Fprintf(&b, "  %s: %s\n", key, fields[key].Type.String())
			}
			b.WriteString("}\n")
		case *graphql.Object:
			fmt.Fprintf(&b, "type %s {\n", name)
			fields := t.Fields()
			for _, key := range sortedKeys(fields) {
				f := fields[key]
				fmt.Fprintf(&b, "  %s%s: %s\n", key, printArgs(f.Args), f.Type.String())
			}
			b.WriteString("}\n")
		case *graphql.Interface:
			fmt.Fprintf(&b, "interface %s {\n", name)
			fields := t.Fields()
			for _, key := range sortedKeys(fields) {
				f := fields[key]
				fmt.Fprintf(&b, "  %s%s: %s\n", key, printArgs(f.Args), f.Type.String())
			}
			b.WriteString("}\n")
		case *graphql.Union:
			members := make([]string, 0, len(t.Types()))
			for _, m := range t.Types() {
				members = append(members, m.Name())
			}
			fmt.Fprintf(&b, "union %s = %s\n", name, strings.Join(members, " | "))
		}
	}
	return b.String()
}

func printArgs(args []*graphql.Argument) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Name() + ": " + a.Type.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
