package schema

import "context"

// Item is a stored item keyed by field key.
type Item = map[string]any

// HookArgs is passed to list and field hooks.
type HookArgs struct {
	ListKey   string
	FieldKey  string
	Operation Operation
	Session   any
	// OriginalInput is the create/update data as supplied by the caller.
	OriginalInput map[string]any
	// ResolvedData is the database-ready data after input resolution.
	ResolvedData map[string]any
	// ExistingItem is the item before an update or delete.
	ExistingItem Item
	// Item is the item after a create or update.
	Item Item
}

// AddValidationError records one validation message.
type AddValidationError func(msg string)

// ListHooks are run around list mutations.
type ListHooks struct {
	ResolveInput   func(ctx context.Context, args HookArgs) (map[string]any, error)
	ValidateInput  func(ctx context.Context, args HookArgs, addError AddValidationError) error
	BeforeChange   func(ctx context.Context, args HookArgs) error
	AfterChange    func(ctx context.Context, args HookArgs) error
	ValidateDelete func(ctx context.Context, args HookArgs, addError AddValidationError) error
	BeforeDelete   func(ctx context.Context, args HookArgs) error
	AfterDelete    func(ctx context.Context, args HookArgs) error
}

// FieldHooks are run for a single field. ResolveInput returns the new value
// of the field.
type FieldHooks struct {
	ResolveInput   func(ctx context.Context, args HookArgs) (any, error)
	ValidateInput  func(ctx context.Context, args HookArgs, addError AddValidationError) error
	BeforeChange   func(ctx context.Context, args HookArgs) error
	AfterChange    func(ctx context.Context, args HookArgs) error
	ValidateDelete func(ctx context.Context, args HookArgs, addError AddValidationError) error
	BeforeDelete   func(ctx context.Context, args HookArgs) error
	AfterDelete    func(ctx context.Context, args HookArgs) error
}
