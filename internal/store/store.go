// Package store defines the boundary between the resolvers and a database
// backend. Backends receive resolved filters and data keyed by field (and
// foreign-key column) names and return items keyed the same way.
package store

import (
	"context"
	"errors"
	"fmt"

	"cms-graphql/internal/schema"
)

// Filter is a resolved where input: field keys map to operator objects,
// relation keys map to nested filters, and AND/OR/NOT hold lists of filters.
type Filter = map[string]any

// Direction of an order-by clause.
const (
	Asc  = "asc"
	Desc = "desc"
)

// OrderBy sorts by one column.
type OrderBy struct {
	Field     string
	Direction string
}

// FindArgs are the arguments of FindMany. A nil Take returns every item.
type FindArgs struct {
	Where   Filter
	OrderBy []OrderBy
	Take    *int
	Skip    int
}

// RelateOne is the write applied to a to-one relation field.
type RelateOne struct {
	// Connect is the id of the item to connect.
	Connect    any
	Disconnect bool
}

// RelateMany is the write applied to a to-many relation field. Set replaces
// every connection; it is applied before Disconnect and Connect.
type RelateMany struct {
	Connect    []any
	Disconnect []any
	Set        []any
	SetGiven   bool
}

// Data is the database-ready payload of a create or update. Relation field
// keys hold a RelateOne or RelateMany.
type Data = map[string]any

// Model reads and writes the items of one list.
type Model interface {
	// FindUnique returns the item matching a unique where of exactly one key,
	// or nil.
	FindUnique(ctx context.Context, unique map[string]any) (schema.Item, error)
	// FindFirst returns the first item matching where, or nil.
	FindFirst(ctx context.Context, where Filter) (schema.Item, error)
	FindMany(ctx context.Context, args FindArgs) ([]schema.Item, error)
	Count(ctx context.Context, where Filter) (int, error)
	Create(ctx context.Context, data Data) (schema.Item, error)
	// Update returns ErrNotFound when no item has the id.
	Update(ctx context.Context, id any, data Data) (schema.Item, error)
	// Delete returns the deleted item, or ErrNotFound.
	Delete(ctx context.Context, id any) (schema.Item, error)
}

// Provider describes a backend.
type Provider struct {
	Name string
	// ConcurrentWrites is false for backends that serialise writers.
	ConcurrentWrites bool
}

// Provider names.
const (
	ProviderPostgreSQL = "postgresql"
	ProviderMySQL      = "mysql"
	ProviderSQLite     = "sqlite"
	ProviderMongoDB    = "mongodb"
	ProviderMemory     = "memory"
)

// Client is a connected backend.
type Client interface {
	Model(listKey string) (Model, error)
	Provider() Provider
	Close() error
}

// ErrNotFound is returned by writes that target a missing item.
var ErrNotFound = errors.New("record not found")

// ErrUnknownModel is returned by Client.Model for lists without storage.
var ErrUnknownModel = errors.New("unknown model")

// UnknownModel wraps ErrUnknownModel with the list key.
func UnknownModel(listKey string) error {
	return fmt.Errorf("%w: %s", ErrUnknownModel, listKey)
}

// UniqueFilter converts a unique where into an equality filter.
func UniqueFilter(unique map[string]any) Filter {
	out := make(Filter, len(unique))
	for k, v := range unique {
		out[k] = map[string]any{"equals": v}
	}
	return out
}

// IDFilter matches the item with id.
func IDFilter(id any) Filter {
	return Filter{"id": map[string]any{"equals": id}}
}

// IsLogical reports whether key combines nested filters.
func IsLogical(key string) bool {
	return key == "AND" || key == "OR" || key == "NOT"
}

// FilterList reads the operand of AND/OR/NOT, which may be a single filter
// or a list of filters.
func FilterList(key string, v any) ([]Filter, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []Filter{v}, nil
	case []Filter:
		return v, nil
	case []any:
		out := make([]Filter, 0, len(v))
		for _, item := range v {
			f, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s must contain filters, got %T", key, item)
			}
			out = append(out, f)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s must be a list of filters, got %T", key, v)
}

// Operators reads a scalar operator object.
func Operators(field string, v any) (map[string]any, error) {
	ops, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("filter for %s must be an object, got %T", field, v)
	}
	return ops, nil
}

// Insensitive reports whether an operator object asks for case-insensitive
// string matching.
func Insensitive(ops map[string]any) bool {
	mode, _ := ops["mode"].(string)
	return mode == "insensitive"
}

// RelationFilter reads the some/every/none object of a to-many filter.
type RelationFilter struct {
	Some, Every, None Filter
	HasSome, HasEvery, HasNone bool
}

// ParseRelationFilter reads the operand of a to-many relation key.
func ParseRelationFilter(field string, v any) (RelationFilter, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return RelationFilter{}, fmt.Errorf("filter for %s must be an object, got %T", field, v)
	}
	var rf RelationFilter
	for key, operand := range m {
		nested, ok := operand.(map[string]any)
		if operand != nil && !ok {
			return RelationFilter{}, fmt.Errorf("%s.%s must be a filter, got %T", field, key, operand)
		}
		if nested == nil {
			nested = Filter{}
		}
		switch key {
		case "some":
			rf.Some, rf.HasSome = nested, true
		case "every":
			rf.Every, rf.HasEvery = nested, true
		case "none":
			rf.None, rf.HasNone = nested, true
		default:
			return RelationFilter{}, fmt.Errorf("unknown relation filter operator %s.%s", field, key)
		}
	}
	return rf, nil
}

// ConnectIDs lists the ids a relation write connects to.
func ConnectIDs(field string, value any) ([]any, error) {
	switch w := value.(type) {
	case RelateOne:
		if w.Connect != nil {
			return []any{w.Connect}, nil
		}
		return nil, nil
	case RelateMany:
		return append(append([]any{}, w.Connect...), w.Set...), nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported write %T for relation %s", value, field)
}
