package schema

import (
	"context"

	"github.com/graphql-go/graphql"

	"cms-graphql/internal/filters"
)

// InputKind selects which generated input a value was parsed against.
type InputKind string

const (
	KindWhere       InputKind = "where"
	KindUniqueWhere InputKind = "uniqueWhere"
	KindCreate      InputKind = "create"
	KindUpdate      InputKind = "update"
	KindOrderBy     InputKind = "orderBy"
)

// FieldContext is passed to a FieldFunc when a list is initialised.
type FieldContext struct {
	ListKey  string
	FieldKey string
	Filters  *filters.Library
}

// FieldFunc builds a field definition. Every entry of a list's field map must
// be a FieldFunc.
type FieldFunc func(fc FieldContext) (*Field, error)

// FieldEntry is one named field of a list, in declaration order.
type FieldEntry struct {
	Key   string
	Field FieldFunc
}

// Fields collects field entries in declaration order.
func Fields(entries ...FieldEntry) []FieldEntry {
	return entries
}

// F is shorthand for a FieldEntry.
func F(key string, fn FieldFunc) FieldEntry {
	return FieldEntry{Key: key, Field: fn}
}

// FieldInput is the GraphQL argument of a field for one input kind, plus an
// optional resolver from the GraphQL value to the database value.
type FieldInput struct {
	Arg          func(types TypesLookup) graphql.Input
	DefaultValue any
	Resolve      func(ctx context.Context, value any) (any, error)
}

// FieldInputs groups a field's inputs. A nil entry means the field does not
// take part in that input.
type FieldInputs struct {
	Where       *FieldInput
	UniqueWhere *FieldInput
	Create      *FieldInput
	Update      *FieldInput
	OrderBy     *FieldInput
}

// For returns the input of the given kind.
func (fi FieldInputs) For(kind InputKind) *FieldInput {
	switch kind {
	case KindWhere:
		return fi.Where
	case KindUniqueWhere:
		return fi.UniqueWhere
	case KindCreate:
		return fi.Create
	case KindUpdate:
		return fi.Update
	case KindOrderBy:
		return fi.OrderBy
	}
	return nil
}

// OutputParams is passed to a field output resolver.
type OutputParams struct {
	ListKey  string
	FieldKey string
	// Value is the stored value for data fields, or a RelationAccessor for
	// relation fields.
	Value any
	Item  Item
	Args  map[string]any
}

// FieldOutput is the GraphQL output of a field.
type FieldOutput struct {
	Type    func(types TypesLookup) graphql.Output
	Args    func(types TypesLookup) graphql.FieldConfigArgument
	Resolve func(ctx context.Context, p OutputParams) (any, error)
}

// RelationAccessor queries the items related to one item. It is supplied by
// the resolver layer as the value of relation fields.
type RelationAccessor interface {
	FindMany(ctx context.Context, args map[string]any) ([]Item, error)
	Count(ctx context.Context, args map[string]any) (int, error)
	FindOne(ctx context.Context) (Item, error)
}

// Secret is implemented by fields that store a one-way hash.
type Secret interface {
	GenerateHash(plain string) (string, error)
	Compare(plain, hash string) (bool, error)
}

// FieldGraphQLConfig toggles a field's GraphQL exposure. Omit disables it
// entirely; otherwise each nil flag defaults to enabled.
type FieldGraphQLConfig struct {
	Omit    bool
	Read    *bool
	Create  *bool
	Update  *bool
	Filter  *bool
	OrderBy *bool
}

// FieldEnablement is the parsed form of FieldGraphQLConfig.
type FieldEnablement struct {
	Read    bool
	Create  bool
	Update  bool
	Filter  bool
	OrderBy bool
}

// Parse resolves defaults.
func (c FieldGraphQLConfig) Parse() FieldEnablement {
	if c.Omit {
		return FieldEnablement{}
	}
	pick := func(v *bool) bool { return v == nil || *v }
	return FieldEnablement{
		Read:    pick(c.Read),
		Create:  pick(c.Create),
		Update:  pick(c.Update),
		Filter:  pick(c.Filter),
		OrderBy: pick(c.OrderBy),
	}
}

// AdminMetaRoot gives field admin metadata access to other lists.
type AdminMetaRoot interface {
	ListLabelField(listKey string) (string, bool)
}

// FieldUI carries admin hints shared by every field type.
type FieldUI struct {
	Label       string
	Description string
}

// Field is a built field definition.
type Field struct {
	DBField DBField
	Input   FieldInputs
	Output  *FieldOutput
	// ExtraOutputFields are additional output fields contributed by this
	// field, keyed by output name. Their resolvers receive the same Value.
	ExtraOutputFields map[string]*FieldOutput
	Access            FieldAccess
	Hooks             FieldHooks
	GraphQL           FieldGraphQLConfig
	UI                FieldUI
	// AdminMeta returns the field type specific admin metadata.
	AdminMeta func(root AdminMetaRoot) (map[string]any, error)
	// DefaultValue is applied on create when the input omits the field.
	DefaultValue func(ctx context.Context) (any, error)
	IsRequired   bool
	Secret       Secret
	// Type names the field type, e.g. "text".
	Type string
}
