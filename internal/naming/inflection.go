// Package naming derives the GraphQL names and admin labels of lists,
// including pluralization, reserved word checks and collision detection.
package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Config holds the inflection overrides from the naming config section.
// Keys are matched exactly, e.g. PluralOverrides{"Person": "People"}.
type Config struct {
	PluralOverrides   map[string]string `mapstructure:"plural_overrides"`
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

func DefaultConfig() Config {
	return Config{
		PluralOverrides:   map[string]string{},
		SingularOverrides: map[string]string{},
	}
}

// Pluralize returns the plural of word. Only the last word of a multi-word
// label is inflected, so "Blog Post" becomes "Blog Posts".
func (n *Namer) Pluralize(word string) string {
	return inflect(word, n.config.PluralOverrides, inflection.Plural)
}

// Singularize is the inverse of Pluralize.
func (n *Namer) Singularize(word string) string {
	return inflect(word, n.config.SingularOverrides, inflection.Singular)
}

func inflect(word string, overrides map[string]string, fn func(string) string) string {
	if override, ok := overrides[word]; ok {
		return override
	}
	idx := strings.LastIndexByte(word, ' ')
	return word[:idx+1] + fn(word[idx+1:])
}
