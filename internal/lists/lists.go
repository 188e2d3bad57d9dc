// Package lists initialises list declarations: it builds every field,
// resolves relationships, derives names and generates the GraphQL types of
// each list.
package lists

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/graphql-go/graphql"

	"cms-graphql/internal/fields"
	"cms-graphql/internal/filters"
	"cms-graphql/internal/naming"
	"cms-graphql/internal/relationships"
	"cms-graphql/internal/schema"
)

// Field is an initialised field of a list.
type Field struct {
	Key string
	*schema.Field
	// DBField is the resolved storage, with relationship ownership decided.
	DBField schema.DBField
	Enabled schema.FieldEnablement
	// Implicit marks the synthetic opposite of a one-sided reference.
	Implicit bool
}

// Relation returns the resolved relation, or nil for non-relation fields.
func (f *Field) Relation() *schema.Relation {
	return f.DBField.Relation
}

// List is an initialised list.
type List struct {
	Key         string
	Names       naming.ListNames
	Fields      []*Field
	FieldsByKey map[string]*Field
	Access      schema.ListAccess
	Hooks       schema.ListHooks
	Enabled     schema.ListOperations
	MaxResults  int
	UI          schema.ListUIConfig
	LabelField  string
	Description string
	Types       *schema.TypesForList
}

// Field returns the field called key.
func (l *List) Field(key string) (*Field, bool) {
	f, ok := l.FieldsByKey[key]
	return f, ok
}

// Tag identifies the list and kind a generated input object was built for.
type Tag struct {
	ListKey string
	Kind    schema.InputKind
}

// FieldResolverFunc builds the GraphQL resolver of a list output field.
type FieldResolverFunc func(list *List, field *Field, output *schema.FieldOutput) graphql.FieldResolveFn

// Options configure Initialise.
type Options struct {
	Namer   *naming.Namer
	Filters *filters.Library
	Logger  *slog.Logger
	// FieldResolver wraps output resolvers, typically to apply field access
	// and supply relation accessors. When nil the stored value is passed to
	// the field's resolver as is.
	FieldResolver FieldResolverFunc
}

// Lists is the initialised, immutable set of lists.
type Lists struct {
	ByKey   map[string]*List
	Keys    []string
	Types   schema.TypesLookup
	Filters *filters.Library

	tags map[*graphql.InputObject]Tag
}

// Get returns the list called key.
func (ls *Lists) Get(key string) (*List, bool) {
	l, ok := ls.ByKey[key]
	return l, ok
}

// TagOf returns the list and input kind of a generated input object.
func (ls *Lists) TagOf(obj *graphql.InputObject) (Tag, bool) {
	tag, ok := ls.tags[obj]
	return tag, ok
}

// ListLabelField implements schema.AdminMetaRoot.
func (ls *Lists) ListLabelField(listKey string) (string, bool) {
	l, ok := ls.ByKey[listKey]
	if !ok {
		return "", false
	}
	return l.LabelField, true
}

// Initialise builds every list of cfg. Configuration problems are returned
// as errors; nothing is deferred to request time.
func Initialise(cfg schema.Config, opts Options) (*Lists, error) {
	if opts.Namer == nil {
		opts.Namer = naming.Default()
	}
	if opts.Filters == nil {
		opts.Filters = filters.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	keys := make([]string, 0, len(cfg.Lists))
	for key := range cfg.Lists {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ls := &Lists{
		ByKey:   make(map[string]*List, len(keys)),
		Keys:    keys,
		Types:   make(schema.TypesLookup, len(keys)),
		Filters: opts.Filters,
		tags:    map[*graphql.InputObject]Tag{},
	}

	declared := relationships.Lists{}
	for _, key := range keys {
		listCfg := cfg.Lists[key]
		list, err := buildList(key, listCfg, opts)
		if err != nil {
			return nil, err
		}
		ls.ByKey[key] = list
		dbFields := make(map[string]schema.DBField, len(list.Fields))
		for _, f := range list.Fields {
			dbFields[f.Key] = f.DBField
		}
		declared[key] = dbFields
	}

	resolved, err := relationships.Resolve(declared)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		list := ls.ByKey[key]
		for _, f := range list.Fields {
			f.DBField = resolved[key][f.Key]
		}
		for _, fieldKey := range sortedImplicitKeys(resolved[key], list) {
			list.addImplicit(fieldKey, resolved[key][fieldKey])
		}
	}

	for _, key := range keys {
		ls.ByKey[key].applyAccessToEnablement()
	}
	for _, key := range keys {
		ls.declareTypes(ls.ByKey[key], opts)
	}
	opts.Logger.Debug("lists initialised", slog.Int("lists", len(keys)))
	return ls, nil
}

func buildList(key string, cfg schema.ListConfig, opts Options) (*List, error) {
	names, err := opts.Namer.ListNames(key, cfg.GraphQL.Plural, naming.UIOverrides{
		Label:    cfg.UI.Label,
		Singular: cfg.UI.Singular,
		Plural:   cfg.UI.Plural,
		Path:     cfg.UI.Path,
	})
	if err != nil {
		return nil, err
	}
	if cfg.GraphQL.MaxResults < 0 {
		return nil, fmt.Errorf("%s: graphql.maxResults must not be negative", key)
	}

	list := &List{
		Key:         key,
		Names:       names,
		FieldsByKey: map[string]*Field{},
		Access:      cfg.Access,
		Hooks:       cfg.Hooks,
		Enabled:     cfg.GraphQL.Enablement(),
		MaxResults:  cfg.GraphQL.MaxResults,
		UI:          cfg.UI,
		Description: firstNonEmpty(cfg.GraphQL.Description, cfg.Description),
	}

	entries := append([]schema.FieldEntry{{Key: fields.IDFieldKey, Field: fields.ID()}}, cfg.Fields...)
	for i, entry := range entries {
		if i > 0 && entry.Key == fields.IDFieldKey {
			return nil, fmt.Errorf("%s: the field key %q is reserved for the item identifier", key, fields.IDFieldKey)
		}
		if err := naming.ValidateFieldKey(key, entry.Key); err != nil {
			return nil, err
		}
		if _, dup := list.FieldsByKey[entry.Key]; dup {
			return nil, fmt.Errorf("the field %s is declared twice", schema.Path(key, entry.Key))
		}
		if entry.Field == nil {
			return nil, fmt.Errorf("The field at %s does not provide a function", schema.Path(key, entry.Key))
		}
		built, err := entry.Field(schema.FieldContext{ListKey: key, FieldKey: entry.Key, Filters: opts.Filters})
		if err != nil {
			return nil, err
		}
		if built == nil {
			return nil, fmt.Errorf("The field at %s does not provide a function", schema.Path(key, entry.Key))
		}
		f := &Field{Key: entry.Key, Field: built, DBField: built.DBField, Enabled: built.GraphQL.Parse()}
		list.Fields = append(list.Fields, f)
		list.FieldsByKey[f.Key] = f
	}

	list.LabelField = cfg.UI.LabelField
	if list.LabelField == "" {
		list.LabelField = fields.IDFieldKey
		if _, ok := list.FieldsByKey["name"]; ok {
			list.LabelField = "name"
		}
	} else if _, ok := list.FieldsByKey[list.LabelField]; !ok {
		return nil, fmt.Errorf("%s: ui.labelField %q is not a field of the list", key, list.LabelField)
	}
	return list, nil
}

func sortedImplicitKeys(resolved map[string]schema.DBField, list *List) []string {
	var keys []string
	for fieldKey := range resolved {
		if _, ok := list.FieldsByKey[fieldKey]; !ok {
			keys = append(keys, fieldKey)
		}
	}
	sort.Strings(keys)
	return keys
}

func (l *List) addImplicit(fieldKey string, db schema.DBField) {
	f := &Field{
		Key:      fieldKey,
		Field:    &schema.Field{Type: "relationship", DBField: db},
		DBField:  db,
		Implicit: true,
	}
	l.Fields = append(l.Fields, f)
	l.FieldsByKey[fieldKey] = f
}

// applyAccessToEnablement hides operations and inputs that static access
// rules always deny.
func (l *List) applyAccessToEnablement() {
	if l.Access.Read.IsStaticDeny() {
		l.Enabled.Query = false
	}
	if l.Access.Create.IsStaticDeny() {
		l.Enabled.Create = false
	}
	if l.Access.Update.IsStaticDeny() {
		l.Enabled.Update = false
	}
	if l.Access.Delete.IsStaticDeny() {
		l.Enabled.Delete = false
	}
	if !l.Enabled.Type {
		l.Enabled = schema.ListOperations{}
	}
	for _, f := range l.Fields {
		if f.Access.Read.IsStaticDeny() {
			f.Enabled.Read = false
			f.Enabled.Filter = false
			f.Enabled.OrderBy = false
		}
		if f.Access.Create.IsStaticDeny() {
			f.Enabled.Create = false
		}
		if f.Access.Update.IsStaticDeny() {
			f.Enabled.Update = false
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
