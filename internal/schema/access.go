package schema

import (
	"context"
	"errors"
)

// Operation is the kind of list operation an access rule or hook runs for.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// AccessArgs is passed to dynamic access functions.
type AccessArgs struct {
	Session   any
	ListKey   string
	FieldKey  string
	Operation Operation
	// ItemID is the id of the targeted item, when known.
	ItemID        any
	Item          Item
	OriginalInput map[string]any
}

// AccessResult is the outcome of an access rule. A nil Filter with Allowed
// grants access to every item.
type AccessResult struct {
	Allowed bool
	Filter  map[string]any
}

// AccessFunc evaluates access at request time.
type AccessFunc func(ctx context.Context, args AccessArgs) (AccessResult, error)

// AccessRule is either a static decision or a function. The zero value allows.
type AccessRule struct {
	static *bool
	fn     AccessFunc
}

// Allow grants access unconditionally.
func Allow() AccessRule {
	v := true
	return AccessRule{static: &v}
}

// Deny refuses access unconditionally.
func Deny() AccessRule {
	v := false
	return AccessRule{static: &v}
}

// Static builds a rule from a boolean.
func Static(allowed bool) AccessRule {
	if allowed {
		return Allow()
	}
	return Deny()
}

// Func builds a dynamic rule.
func Func(fn AccessFunc) AccessRule {
	return AccessRule{fn: fn}
}

// FilterFunc builds a dynamic rule that scopes access to items matching the
// returned where filter.
func FilterFunc(fn func(ctx context.Context, args AccessArgs) (map[string]any, error)) AccessRule {
	return Func(func(ctx context.Context, args AccessArgs) (AccessResult, error) {
		filter, err := fn(ctx, args)
		if err != nil {
			return AccessResult{}, err
		}
		return AccessResult{Allowed: true, Filter: filter}, nil
	})
}

// StaticValue reports the static decision and whether the rule is static.
// The zero value is a static allow.
func (r AccessRule) StaticValue() (allowed bool, ok bool) {
	if r.fn != nil {
		return false, false
	}
	if r.static == nil {
		return true, true
	}
	return *r.static, true
}

// IsStaticDeny reports whether the rule always denies.
func (r AccessRule) IsStaticDeny() bool {
	allowed, ok := r.StaticValue()
	return ok && !allowed
}

// Evaluate runs the rule.
func (r AccessRule) Evaluate(ctx context.Context, args AccessArgs) (AccessResult, error) {
	if allowed, ok := r.StaticValue(); ok {
		return AccessResult{Allowed: allowed}, nil
	}
	return r.fn(ctx, args)
}

// ErrFilterNotAllowed is returned when a boolean-only rule produces a filter.
var ErrFilterNotAllowed = errors.New("access rule returned a filter where only a boolean is allowed")

// EvaluateBool runs a rule that must not scope by filter.
func (r AccessRule) EvaluateBool(ctx context.Context, args AccessArgs) (bool, error) {
	res, err := r.Evaluate(ctx, args)
	if err != nil {
		return false, err
	}
	if res.Filter != nil {
		return false, ErrFilterNotAllowed
	}
	return res.Allowed, nil
}

// ListAccess is the per-operation policy of a list.
type ListAccess struct {
	Read   AccessRule
	Create AccessRule
	Update AccessRule
	Delete AccessRule
}

// FieldAccess is the per-operation policy of a field. Field rules are
// boolean only.
type FieldAccess struct {
	Read   AccessRule
	Create AccessRule
	Update AccessRule
}
