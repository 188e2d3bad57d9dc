// Package sqlutil holds the SQL quoting, escaping and dialect helpers shared
// by the relational store and the DDL printer.
package sqlutil

import "strings"

var (
	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	globEscaper = strings.NewReplacer(`[`, `[[]`, `*`, `[*]`, `?`, `[?]`)
)

// enclose wraps s in quote, doubling any quote already inside it.
func enclose(s, quote string) string {
	return quote + strings.ReplaceAll(s, quote, quote+quote) + quote
}

// QuoteIdentifier quotes a MySQL identifier with backticks.
func QuoteIdentifier(name string) string { return enclose(name, "`") }

// QuoteDoubleIdentifier quotes an identifier with double quotes, the ANSI
// form used by PostgreSQL and SQLite.
func QuoteDoubleIdentifier(name string) string { return enclose(name, `"`) }

// QuoteString renders s as a single-quoted SQL literal. Only the DDL printer
// uses it, for select option CHECK constraints; values always go through
// bind parameters.
func QuoteString(s string) string { return enclose(s, "'") }

// EscapeLike escapes the LIKE wildcards of s using backslash.
func EscapeLike(s string) string { return likeEscaper.Replace(s) }

// EscapeGlob escapes the GLOB wildcards of s by wrapping each in brackets.
func EscapeGlob(s string) string { return globEscaper.Replace(s) }
