package schema

import "github.com/graphql-go/graphql"

// ListConfig declares a list.
type ListConfig struct {
	Fields      []FieldEntry
	Access      ListAccess
	Hooks       ListHooks
	GraphQL     ListGraphQLConfig
	UI          ListUIConfig
	Description string
}

// ListGraphQLConfig controls the generated API of a list.
type ListGraphQLConfig struct {
	// Plural overrides the plural name used in GraphQL names.
	Plural      string
	Description string
	// Omit disables every generated operation of the list.
	Omit    bool
	Disable ListOperations
	// MaxResults caps the items a single findMany may return. Zero means
	// unlimited.
	MaxResults int
}

// ListOperations flags generated operations.
type ListOperations struct {
	Type   bool
	Query  bool
	Create bool
	Update bool
	Delete bool
}

// Enablement resolves which operations are generated.
func (c ListGraphQLConfig) Enablement() ListOperations {
	if c.Omit {
		return ListOperations{}
	}
	return ListOperations{
		Type:   !c.Disable.Type,
		Query:  !c.Disable.Query,
		Create: !c.Disable.Create,
		Update: !c.Disable.Update,
		Delete: !c.Disable.Delete,
	}
}

// ListUIConfig carries admin labels.
type ListUIConfig struct {
	Label          string
	Singular       string
	Plural         string
	Path           string
	LabelField     string
	Description    string
	InitialColumns []string
	HideCreate     bool
	HideDelete     bool
}

// Config is the full set of lists.
type Config struct {
	Lists map[string]ListConfig
}

// TypesForList are the generated GraphQL types of one list.
type TypesForList struct {
	ListKey     string
	Output      *graphql.Object
	UniqueWhere *graphql.InputObject
	Where       *graphql.InputObject
	Create      *graphql.InputObject
	Update      *graphql.InputObject
	OrderBy     *graphql.InputObject
	// SortBy is the legacy `<field>_ASC`/`<field>_DESC` enum.
	SortBy       *graphql.Enum
	UpdateArgs   *graphql.InputObject
	FindManyArgs graphql.FieldConfigArgument

	ManyRelationFilter    *graphql.InputObject
	RelateToManyForCreate *graphql.InputObject
	RelateToManyForUpdate *graphql.InputObject
	RelateToOneForCreate  *graphql.InputObject
	RelateToOneForUpdate  *graphql.InputObject
}

// TypesLookup finds the generated types of any list. Field type builders are
// called lazily, after every list's types exist.
type TypesLookup map[string]*TypesForList
