package naming

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

// Namer derives list names. A Namer is used for one schema build; call Reset
// before reusing it.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset clears the collision resolver state, allowing the namer to be reused
// for a new schema build.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// Collisions exposes the collision resolver of the current build.
func (n *Namer) Collisions() *CollisionResolver {
	return n.resolver
}

// UIOverrides are the optional admin label overrides of a list.
type UIOverrides struct {
	Label    string
	Singular string
	Plural   string
	Path     string
}

// ListNames are every name derived from a list key.
type ListNames struct {
	Key           string
	PluralGraphQL string
	Label         string
	Singular      string
	Plural        string
	Path          string
	GQL           GQLNames
}

// GQLNames are the generated GraphQL type and root field names of a list.
type GQLNames struct {
	OutputTypeName       string `json:"outputTypeName"`
	ItemQueryName        string `json:"itemQueryName"`
	ListQueryName        string `json:"listQueryName"`
	ListQueryCountName   string `json:"listQueryCountName"`
	ListOrderName        string `json:"listOrderName"`
	ListSortName         string `json:"listSortName"`
	WhereInputName       string `json:"whereInputName"`
	WhereUniqueInputName string `json:"whereUniqueInputName"`
	CreateInputName      string `json:"createInputName"`
	UpdateInputName      string `json:"updateInputName"`
	UpdateManyArgsName   string `json:"updateManyArgsName"`

	CreateMutationName     string `json:"createMutationName"`
	CreateManyMutationName string `json:"createManyMutationName"`
	UpdateMutationName     string `json:"updateMutationName"`
	UpdateManyMutationName string `json:"updateManyMutationName"`
	DeleteMutationName     string `json:"deleteMutationName"`
	DeleteManyMutationName string `json:"deleteManyMutationName"`

	ManyRelationFilterName         string `json:"manyRelationFilterName"`
	RelateToManyForCreateInputName string `json:"relateToManyForCreateInputName"`
	RelateToManyForUpdateInputName string `json:"relateToManyForUpdateInputName"`
	RelateToOneForCreateInputName  string `json:"relateToOneForCreateInputName"`
	RelateToOneForUpdateInputName  string `json:"relateToOneForUpdateInputName"`
}

// ListNames computes the names of a list. graphqlPlural may be empty.
func (n *Namer) ListNames(listKey, graphqlPlural string, ui UIOverrides) (ListNames, error) {
	if err := ValidateListKey(listKey); err != nil {
		return ListNames{}, err
	}
	computedSingular := Humanize(listKey)
	computedPlural := n.Pluralize(computedSingular)

	path := ui.Path
	if path == "" {
		path = LabelToPath(computedPlural)
	} else if !pathPattern.MatchString(path) {
		return ListNames{}, fmt.Errorf("ui.path for %s is %s but it must only contain lowercase letters, numbers, dashes, and underscores and not start with a number", listKey, path)
	}

	pluralGraphQL := graphqlPlural
	if pluralGraphQL == "" {
		pluralGraphQL = LabelToClass(computedPlural)
	}
	if pluralGraphQL == listKey {
		return ListNames{}, fmt.Errorf("the list key and the plural name used in GraphQL must be different but the list key %s is the same as the plural GraphQL name, please specify graphql.plural", listKey)
	}

	names := ListNames{
		Key:           listKey,
		PluralGraphQL: pluralGraphQL,
		Label:         firstNonEmpty(ui.Label, computedPlural),
		Singular:      firstNonEmpty(ui.Singular, computedSingular),
		Plural:        firstNonEmpty(ui.Plural, computedPlural),
		Path:          path,
		GQL:           gqlNames(listKey, pluralGraphQL),
	}
	if err := n.register(names); err != nil {
		return ListNames{}, err
	}
	return names, nil
}

func (n *Namer) register(names ListNames) error {
	source := "list " + names.Key
	g := names.GQL
	for _, typeName := range []string{
		g.OutputTypeName, g.WhereInputName, g.WhereUniqueInputName, g.CreateInputName,
		g.UpdateInputName, g.UpdateManyArgsName, g.ListOrderName, g.ListSortName,
		g.ManyRelationFilterName, g.RelateToManyForCreateInputName, g.RelateToManyForUpdateInputName,
		g.RelateToOneForCreateInputName, g.RelateToOneForUpdateInputName,
	} {
		if err := n.resolver.RegisterType(typeName, source); err != nil {
			return err
		}
	}
	for _, field := range []string{
		g.ItemQueryName, g.ListQueryName, g.ListQueryCountName,
		g.CreateMutationName, g.CreateManyMutationName, g.UpdateMutationName,
		g.UpdateManyMutationName, g.DeleteMutationName, g.DeleteManyMutationName,
	} {
		if err := n.resolver.RegisterRootField(field, source); err != nil {
			return err
		}
	}
	return nil
}

func gqlNames(listKey, plural string) GQLNames {
	return GQLNames{
		OutputTypeName:       listKey,
		ItemQueryName:        listKey,
		ListQueryName:        "all" + plural,
		ListQueryCountName:   "all" + plural + "Count",
		ListOrderName:        listKey + "OrderByInput",
		ListSortName:         "Sort" + plural + "By",
		WhereInputName:       listKey + "WhereInput",
		WhereUniqueInputName: listKey + "WhereUniqueInput",
		CreateInputName:      listKey + "CreateInput",
		UpdateInputName:      listKey + "UpdateInput",
		UpdateManyArgsName:   plural + "UpdateArgs",

		CreateMutationName:     "create" + listKey,
		CreateManyMutationName: "create" + plural,
		UpdateMutationName:     "update" + listKey,
		UpdateManyMutationName: "update" + plural,
		DeleteMutationName:     "delete" + listKey,
		DeleteManyMutationName: "delete" + plural,

		ManyRelationFilterName:         listKey + "ManyRelationFilter",
		RelateToManyForCreateInputName: listKey + "RelateToManyForCreateInput",
		RelateToManyForUpdateInputName: listKey + "RelateToManyForUpdateInput",
		RelateToOneForCreateInputName:  listKey + "RelateToOneForCreateInput",
		RelateToOneForUpdateInputName:  listKey + "RelateToOneForUpdateInput",
	}
}

// Humanize turns a key into a label.
// Example: "BlogPost" -> "Blog Post", "first_name" -> "First Name"
func Humanize(s string) string {
	var words []string
	var current []rune
	runes := []rune(s)
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// LabelToPath converts a label into an admin path.
// Example: "Blog Posts" -> "blog-posts"
func LabelToPath(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), "-"))
}

// LabelToClass converts a label into a PascalCase name.
// Example: "Blog Posts" -> "BlogPosts"
func LabelToClass(label string) string {
	parts := strings.Fields(label)
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, "")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
