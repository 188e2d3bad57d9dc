package naming

import (
	"fmt"
	"regexp"
	"strings"
)

var graphqlNamePattern = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// pathPattern is the shape accepted for admin UI paths.
var pathPattern = regexp.MustCompile(`^[a-z-_][a-z0-9-_]*$`)

// graphqlReservedTypeWords contains GraphQL keywords and built-in types
// that should not be used as list keys.
var graphqlReservedTypeWords = map[string]bool{
	// GraphQL language keywords
	"query":        true,
	"mutation":     true,
	"subscription": true,
	"type":         true,
	"schema":       true,
	"scalar":       true,
	"enum":         true,
	"input":        true,
	"interface":    true,
	"union":        true,
	"fragment":     true,
	"directive":    true,
	"extend":       true,
	"implements":   true,
	"on":           true,

	// Built-in scalar types
	"int":      true,
	"float":    true,
	"string":   true,
	"boolean":  true,
	"id":       true,
	"datetime": true,
	"json":     true,

	// Boolean literals
	"true":  true,
	"false": true,
	"null":  true,

	// Types generated for every schema
	"keystonemeta":      true,
	"orderdirection":    true,
	"passwordstate":     true,
	"stringfilter":      true,
	"idfilter":          true,
	"intfilter":         true,
	"floatfilter":       true,
	"booleanfilter":     true,
	"datetimefilter":    true,
	"keystoneadminmeta": true,
}

// ValidateListKey checks that key can be used as a GraphQL type name.
func ValidateListKey(key string) error {
	if !graphqlNamePattern.MatchString(key) {
		return fmt.Errorf("the list key %q is not a valid GraphQL name", key)
	}
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, "__") || graphqlReservedTypeWords[lower] {
		return fmt.Errorf("the list key %q is reserved", key)
	}
	return nil
}

// ValidateFieldKey checks that key can be used as a GraphQL field name.
func ValidateFieldKey(listKey, key string) error {
	if !graphqlNamePattern.MatchString(key) {
		return fmt.Errorf("the field key %q on list %s is not a valid GraphQL name", key, listKey)
	}
	if strings.HasPrefix(key, "__") {
		return fmt.Errorf("the field key %q on list %s is reserved", key, listKey)
	}
	switch key {
	case "AND", "OR", "NOT":
		return fmt.Errorf("the field key %q on list %s is reserved for filter composition", key, listKey)
	}
	return nil
}
