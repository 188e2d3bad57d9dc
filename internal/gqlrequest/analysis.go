package gqlrequest

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// Analysis stores parsed and derived GraphQL request metadata.
type Analysis struct {
	Envelope               Envelope
	RequestedOperationName string

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string

	FieldCount     int
	SelectionDepth int
	VariableCount  int
	// RootFields are the distinct root field names of the operation, e.g.
	// allPosts or createUser, in document order.
	RootFields []string

	CanonicalOperation string
	OperationHash      string

	DecodeError     error
	ParseError      error
	SelectionError  error
	CanonicalizeErr error
}

// AnalyzeRequest decodes and analyzes a GraphQL request payload.
func AnalyzeRequest(r *http.Request) *Analysis {
	envelope, err := DecodeEnvelope(r)
	analysis := AnalyzeEnvelope(envelope)
	if err != nil {
		analysis.DecodeError = err
	}
	return analysis
}

// AnalyzeEnvelope parses env and derives the operation metadata. Failures
// are recorded on the result rather than returned, since the GraphQL handler
// reports them to the client itself.
func AnalyzeEnvelope(env Envelope) *Analysis {
	analysis := &Analysis{
		Envelope:               env,
		RequestedOperationName: env.OperationName,
		Fragments:              map[string]*ast.FragmentDefinition{},
	}
	if strings.TrimSpace(env.Query) == "" {
		return analysis
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(env.Query), Name: "graphql"}),
	})
	if err != nil {
		analysis.ParseError = err
		return analysis
	}
	analysis.Document = doc

	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch def := def.(type) {
		case *ast.OperationDefinition:
			operations = append(operations, def)
		case *ast.FragmentDefinition:
			if def.Name != nil && def.Name.Value != "" {
				analysis.Fragments[def.Name.Value] = def
			}
		}
	}

	op, err := selectOperation(operations, env.OperationName)
	if err != nil {
		analysis.SelectionError = err
		return analysis
	}
	analysis.Operation = op
	analysis.OperationName = effectiveOperationName(op)
	analysis.OperationType = string(op.Operation)
	analysis.VariableCount = len(op.VariableDefinitions)

	walk := selectionWalker{fragments: analysis.Fragments, expanded: map[string]bool{}}
	analysis.FieldCount, analysis.SelectionDepth = walk.measure(op.SelectionSet, 1)
	analysis.RootFields = rootFieldNames(op.SelectionSet, analysis.Fragments)

	analysis.CanonicalOperation, analysis.OperationHash, analysis.CanonicalizeErr = canonicalOperationAndHash(op, analysis.Fragments)
	return analysis
}

// selectOperation picks the operation a request executes, following the
// GraphQL rules for operationName.
func selectOperation(operations []*ast.OperationDefinition, operationName string) (*ast.OperationDefinition, error) {
	if operationName != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == operationName {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", operationName)
	}
	switch len(operations) {
	case 0:
		return nil, fmt.Errorf("request does not include an operation")
	case 1:
		return operations[0], nil
	default:
		return nil, fmt.Errorf("operationName is required when request has multiple operations")
	}
}

// selectionWalker expands fragments while walking an operation. Each named
// fragment is expanded once per walk, which also stops fragment cycles.
type selectionWalker struct {
	fragments map[string]*ast.FragmentDefinition
	expanded  map[string]bool
}

// fields returns the fields selected directly by set, looking through inline
// fragments and fragment spreads.
func (w selectionWalker) fields(set *ast.SelectionSet) []*ast.Field {
	if set == nil {
		return nil
	}
	var out []*ast.Field
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			out = append(out, sel)
		case *ast.InlineFragment:
			out = append(out, w.fields(sel.SelectionSet)...)
		case *ast.FragmentSpread:
			if sel.Name == nil || w.expanded[sel.Name.Value] {
				continue
			}
			w.expanded[sel.Name.Value] = true
			if fragment := w.fragments[sel.Name.Value]; fragment != nil {
				out = append(out, w.fields(fragment.SelectionSet)...)
			}
		}
	}
	return out
}

// measure counts the fields under set and the deepest level reached, where
// set itself sits at depth.
func (w selectionWalker) measure(set *ast.SelectionSet, depth int) (count, deepest int) {
	fields := w.fields(set)
	if len(fields) == 0 {
		return 0, depth - 1
	}
	deepest = depth
	for _, field := range fields {
		count++
		if field.SelectionSet == nil {
			continue
		}
		nested, nestedDepth := w.measure(field.SelectionSet, depth+1)
		count += nested
		deepest = max(deepest, nestedDepth)
	}
	return count, deepest
}

// rootFieldNames lists the distinct root fields of an operation in document
// order, skipping introspection fields.
func rootFieldNames(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition) []string {
	walk := selectionWalker{fragments: fragments, expanded: map[string]bool{}}
	var names []string
	for _, field := range walk.fields(set) {
		if field.Name == nil || strings.HasPrefix(field.Name.Value, "__") || slices.Contains(names, field.Name.Value) {
			continue
		}
		names = append(names, field.Name.Value)
	}
	return names
}
