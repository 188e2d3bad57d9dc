// Package filters builds the comparison-operator input types shared by every
// scalar field of every list.
package filters

import (
	"sync"
	"time"

	"github.com/graphql-go/graphql"

	"cms-graphql/internal/gqlerrors"
)

// Mode values accepted by StringFilter.mode.
const (
	ModeDefault     = "default"
	ModeInsensitive = "insensitive"
)

// Library holds the filter input types for one schema build, plus the other
// named types shared across lists. A schema must not mix types from two
// libraries since graphql-go rejects duplicate names.
type Library struct {
	StringFilter   *graphql.InputObject
	IDFilter       *graphql.InputObject
	IntFilter      *graphql.InputObject
	FloatFilter    *graphql.InputObject
	BooleanFilter  *graphql.InputObject
	DateTimeFilter *graphql.InputObject

	CaseSensitivity *graphql.Enum
	OrderDirection  *graphql.Enum

	mu     sync.Mutex
	enums  map[string]*graphql.InputObject
	shared map[string]graphql.Type
}

// New builds a fresh filter library.
func New() *Library {
	lib := &Library{
		enums:  map[string]*graphql.InputObject{},
		shared: map[string]graphql.Type{},
	}
	lib.OrderDirection = graphql.NewEnum(graphql.EnumConfig{
		Name: "OrderDirection",
		Values: graphql.EnumValueConfigMap{
			"asc":  &graphql.EnumValueConfig{Value: "asc"},
			"desc": &graphql.EnumValueConfig{Value: "desc"},
		},
	})
	lib.CaseSensitivity = graphql.NewEnum(graphql.EnumConfig{
		Name: "StringFilterCaseSensitivity",
		Values: graphql.EnumValueConfigMap{
			ModeDefault:     &graphql.EnumValueConfig{Value: ModeDefault},
			ModeInsensitive: &graphql.EnumValueConfig{Value: ModeInsensitive},
		},
	})
	lib.StringFilter = lib.stringFilter("StringFilter", graphql.String)
	lib.IDFilter = lib.stringFilter("IDFilter", graphql.ID)
	lib.IntFilter = numberFilter("IntFilter", graphql.Int)
	lib.FloatFilter = numberFilter("FloatFilter", graphql.Float)
	lib.DateTimeFilter = comparableFilter("DateTimeFilter", graphql.String)

	var booleanFilter *graphql.InputObject
	booleanFilter = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "BooleanFilter",
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			return graphql.InputObjectConfigFieldMap{
				"equals": {Type: graphql.Boolean},
				"not":    {Type: booleanFilter},
			}
		}),
	})
	lib.BooleanFilter = booleanFilter
	return lib
}

func (lib *Library) stringFilter(name string, scalar *graphql.Scalar) *graphql.InputObject {
	var filter *graphql.InputObject
	filter = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: name,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := comparisonFields(scalar)
			fields["contains"] = &graphql.InputObjectFieldConfig{Type: scalar}
			fields["startsWith"] = &graphql.InputObjectFieldConfig{Type: scalar}
			fields["endsWith"] = &graphql.InputObjectFieldConfig{Type: scalar}
			fields["mode"] = &graphql.InputObjectFieldConfig{
				Type:         lib.CaseSensitivity,
				DefaultValue: ModeDefault,
			}
			fields["not"] = &graphql.InputObjectFieldConfig{Type: filter}
			return fields
		}),
	})
	return filter
}

func numberFilter(name string, scalar *graphql.Scalar) *graphql.InputObject {
	return comparableFilter(name, scalar)
}

func comparableFilter(name string, scalar *graphql.Scalar) *graphql.InputObject {
	var filter *graphql.InputObject
	filter = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: name,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := comparisonFields(scalar)
			fields["not"] = &graphql.InputObjectFieldConfig{Type: filter}
			return fields
		}),
	})
	return filter
}

func comparisonFields(scalar graphql.Input) graphql.InputObjectConfigFieldMap {
	return graphql.InputObjectConfigFieldMap{
		"equals": {Type: scalar},
		"in":     {Type: graphql.NewList(graphql.NewNonNull(scalar))},
		"notIn":  {Type: graphql.NewList(graphql.NewNonNull(scalar))},
		"lt":     {Type: scalar},
		"lte":    {Type: scalar},
		"gt":     {Type: scalar},
		"gte":    {Type: scalar},
	}
}

// EnumFilter returns the filter type for enumType, creating it on first use.
// Repeated calls with the same name return the same type.
func (lib *Library) EnumFilter(name string, enumType *graphql.Enum) *graphql.InputObject {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if existing, ok := lib.enums[name]; ok {
		return existing
	}
	var filter *graphql.InputObject
	filter = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: name,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			return graphql.InputObjectConfigFieldMap{
				"equals": {Type: enumType},
				"in":     {Type: graphql.NewList(graphql.NewNonNull(enumType))},
				"notIn":  {Type: graphql.NewList(graphql.NewNonNull(enumType))},
				"not":    {Type: filter},
			}
		}),
	})
	lib.enums[name] = filter
	return filter
}

// Shared returns the schema-wide named type called name, building it on
// first use. Field types use it for output objects and enums that several
// fields may reference.
func (lib *Library) Shared(name string, build func() graphql.Type) graphql.Type {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if existing, ok := lib.shared[name]; ok {
		return existing
	}
	t := build()
	lib.shared[name] = t
	return t
}

// ForScalar returns the filter type for a storage scalar name, or nil when the
// scalar has no filter.
func (lib *Library) ForScalar(scalar string) *graphql.InputObject {
	switch scalar {
	case "String":
		return lib.StringFilter
	case "ID":
		return lib.IDFilter
	case "Int":
		return lib.IntFilter
	case "Float":
		return lib.FloatFilter
	case "Boolean":
		return lib.BooleanFilter
	case "DateTime":
		return lib.DateTimeFilter
	default:
		return nil
	}
}

// ResolveDateTimeFilter converts the ISO strings of a DateTimeFilter value
// into time.Time values, recursing through not.
func ResolveDateTimeFilter(value any) (any, error) {
	filter, ok := value.(map[string]any)
	if !ok || filter == nil {
		return value, nil
	}
	out := make(map[string]any, len(filter))
	for op, operand := range filter {
		switch op {
		case "not":
			nested, err := ResolveDateTimeFilter(operand)
			if err != nil {
				return nil, err
			}
			out[op] = nested
		case "in", "notIn":
			list, ok := operand.([]any)
			if !ok {
				out[op] = operand
				continue
			}
			times := make([]any, 0, len(list))
			for _, item := range list {
				parsed, err := ParseTimestamp(item)
				if err != nil {
					return nil, err
				}
				times = append(times, parsed)
			}
			out[op] = times
		default:
			parsed, err := ParseTimestamp(operand)
			if err != nil {
				return nil, err
			}
			out[op] = parsed
		}
	}
	return out, nil
}

// ParseTimestamp parses an ISO-8601 instant. nil passes through.
func ParseTimestamp(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v, nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z07:00", "2006-01-02"} {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed.UTC(), nil
			}
		}
		return nil, gqlerrors.UserInputf("invalid timestamp %q, expected an ISO-8601 string", v)
	default:
		return nil, gqlerrors.UserInputf("invalid timestamp value of type %T", value)
	}
}

// FormatTimestamp renders an instant the way timestamp fields output it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
