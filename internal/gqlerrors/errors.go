// Package gqlerrors defines the classified errors returned by the CMS resolvers.
//
// Every error carries a stable machine readable code which graphql-go copies
// into the response as extensions.code.
package gqlerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Code is the stable tag exposed to API callers.
type Code string

const (
	CodeUserInput      Code = "KS_USER_INPUT_ERROR"
	CodeAccessDenied   Code = "KS_ACCESS_DENIED"
	CodeDatabase       Code = "KS_DATABASE_ERROR"
	CodeLimitsExceeded Code = "KS_LIMITS_EXCEEDED_ERROR"
	CodeValidation     Code = "KS_VALIDATION_ERROR"
	CodeExtension      Code = "KS_EXTENSION_ERROR"
	CodeSystem         Code = "KS_SYSTEM_ERROR"
	CodeRelationship   Code = "KS_RELATIONSHIP_ERROR"
)

// Error is a classified CMS error.
type Error struct {
	Code    Code
	Message string
	// Debug holds per-failure details for hook errors.
	Debug []DebugEntry
	// BackendCode is the driver specific error code for database failures.
	BackendCode string
	cause       error
}

// DebugEntry describes one failing hook.
type DebugEntry struct {
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Extensions implements graphql-go's ExtendedError.
func (e *Error) Extensions() map[string]interface{} {
	extensions := map[string]interface{}{
		"code": string(e.Code),
	}
	if len(e.Debug) > 0 {
		debug := make([]map[string]interface{}, 0, len(e.Debug))
		for _, entry := range e.Debug {
			item := map[string]interface{}{"message": entry.Message}
			if entry.Stacktrace != "" {
				item["stacktrace"] = entry.Stacktrace
			}
			debug = append(debug, item)
		}
		extensions["debug"] = debug
	}
	if e.BackendCode != "" {
		extensions["db_code"] = e.BackendCode
	}
	return extensions
}

// CodeOf returns the classification of err, or an empty code when err is not
// a classified error.
func CodeOf(err error) Code {
	var ksErr *Error
	if errors.As(err, &ksErr) {
		return ksErr.Code
	}
	return ""
}

// IsClassified reports whether err already carries a CMS error code.
func IsClassified(err error) bool {
	return CodeOf(err) != ""
}

func UserInput(msg string) error {
	return &Error{Code: CodeUserInput, Message: "Input error: " + msg}
}

func UserInputf(format string, args ...any) error {
	return UserInput(fmt.Sprintf(format, args...))
}

func AccessDenied() error {
	return &Error{Code: CodeAccessDenied, Message: "You do not have access to this resource"}
}

// backendCoder is implemented by store errors that know their driver code.
type backendCoder interface {
	BackendCode() string
}

// Database wraps a persistence failure. Classified errors pass through unchanged.
func Database(err error) error {
	if err == nil {
		return nil
	}
	if IsClassified(err) {
		return err
	}
	out := &Error{Code: CodeDatabase, Message: "Database error: " + err.Error(), cause: err}
	var coder backendCoder
	if errors.As(err, &coder) {
		out.BackendCode = coder.BackendCode()
	}
	return out
}

// LimitKind names the ceiling that was exceeded.
type LimitKind string

const (
	LimitMaxResults      LimitKind = "maxResults"
	LimitMaxTotalResults LimitKind = "maxTotalResults"
)

func LimitsExceeded(listKey string, kind LimitKind, limit int) error {
	return &Error{
		Code:    CodeLimitsExceeded,
		Message: fmt.Sprintf("Your request exceeded server limits. '%s' has %s limit of %d", listKey, kind, limit),
	}
}

func Validation(messages []string) error {
	return &Error{
		Code:    CodeValidation,
		Message: "You provided invalid data for this operation." + bulletList(messages),
	}
}

// HookFailure is one failed hook invocation.
type HookFailure struct {
	Tag   string
	Err   error
	Stack string
}

// Extension reports failing hooks of the named kind (e.g. "beforeChange").
func Extension(name string, failures []HookFailure) error {
	lines := make([]string, 0, len(failures))
	debug := make([]DebugEntry, 0, len(failures))
	for _, f := range failures {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Tag, f.Err.Error()))
		debug = append(debug, DebugEntry{Message: f.Err.Error(), Stacktrace: f.Stack})
	}
	return &Error{
		Code:    CodeExtension,
		Message: fmt.Sprintf("An error occured while running %q.%s", name, bulletList(lines)),
		Debug:   debug,
	}
}

func System(messages ...string) error {
	return &Error{Code: CodeSystem, Message: "System error:" + bulletList(messages)}
}

func Systemf(format string, args ...any) error {
	return System(fmt.Sprintf(format, args...))
}

func Relationship(messages []string) error {
	return &Error{Code: CodeRelationship, Message: "Relationship error:" + bulletList(messages)}
}

func bulletList(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString("\n  - ")
		b.WriteString(line)
	}
	return b.String()
}
