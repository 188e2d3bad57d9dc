package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// canonicalOperationAndHash prints op with the fragments it reaches, sorted by
// name, so whitespace, comments and unrelated definitions do not change the
// hash. The operation name is part of the hash.
func canonicalOperationAndHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (string, string, error) {
	if op == nil {
		return "", "", fmt.Errorf("operation is nil")
	}
	doc, err := operationDocument(op, fragments)
	if err != nil {
		return "", "", err
	}
	canonical, ok := printer.Print(doc).(string)
	if !ok {
		return "", "", fmt.Errorf("unexpected canonical document type %T", printer.Print(doc))
	}
	return canonical, framedSHA256(canonical, effectiveOperationName(op)), nil
}

// operationDocument builds a document holding op and every fragment reachable
// from it.
func operationDocument(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (*ast.Document, error) {
	reached := map[string]*ast.FragmentDefinition{}

	var visit func(set *ast.SelectionSet) error
	visit = func(set *ast.SelectionSet) error {
		if set == nil {
			return nil
		}
		for _, selection := range set.Selections {
			var nested *ast.SelectionSet
			switch sel := selection.(type) {
			case *ast.Field:
				nested = sel.SelectionSet
			case *ast.InlineFragment:
				nested = sel.SelectionSet
			case *ast.FragmentSpread:
				if sel.Name == nil || sel.Name.Value == "" {
					continue
				}
				name := sel.Name.Value
				if _, seen := reached[name]; seen {
					continue
				}
				fragment := fragments[name]
				if fragment == nil {
					return fmt.Errorf("fragment %q not found", name)
				}
				reached[name] = fragment
				nested = fragment.SelectionSet
			}
			if err := visit(nested); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(op.SelectionSet); err != nil {
		return nil, err
	}

	definitions := []ast.Node{op}
	for _, name := range slices.Sorted(maps.Keys(reached)) {
		definitions = append(definitions, reached[name])
	}
	return ast.NewDocument(&ast.Document{Definitions: definitions}), nil
}

func effectiveOperationName(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}

// framedSHA256 hashes parts with a length prefix on each, so ("ab","c") and
// ("a","bc") differ.
func framedSHA256(parts ...string) string {
	hash := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(hash, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
