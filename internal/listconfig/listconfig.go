// Package listconfig reads list definitions from YAML (or JSON) files and
// turns them into schema.Config.
//
// A definitions file looks like:
//
//	lists:
//	  Post:
//	    access: { read: true, create: authenticated, delete: false }
//	    graphql: { maxResults: 100 }
//	    ui: { labelField: title }
//	    fields:
//	      - { key: title, type: text, isRequired: true }
//	      - { key: status, type: select, dataType: enum, options: [{label: Draft, value: draft}] }
//	      - { key: author, type: relationship, ref: User.posts }
//
// Only static access decisions can be declared: a boolean, or
// "authenticated" to require a session.
package listconfig

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"cms-graphql/internal/fields"
	"cms-graphql/internal/schema"
)

// File is the parsed form of a definitions file.
type File struct {
	Lists map[string]List `json:"lists"`
}

// List declares one list.
type List struct {
	Description string      `json:"description,omitempty"`
	Access      ListAccess  `json:"access,omitempty"`
	GraphQL     ListGraphQL `json:"graphql,omitempty"`
	UI          ListUI      `json:"ui,omitempty"`
	Fields      []Field     `json:"fields"`
}

// ListAccess holds the per-operation access of a list.
type ListAccess struct {
	Read   Access `json:"read,omitempty"`
	Create Access `json:"create,omitempty"`
	Update Access `json:"update,omitempty"`
	Delete Access `json:"delete,omitempty"`
}

// ListGraphQL controls the generated API of a list.
type ListGraphQL struct {
	Plural      string   `json:"plural,omitempty"`
	Description string   `json:"description,omitempty"`
	Omit        bool     `json:"omit,omitempty"`
	Disable     []string `json:"disable,omitempty"`
	MaxResults  int      `json:"maxResults,omitempty"`
}

// ListUI holds the admin labels of a list.
type ListUI struct {
	Label          string   `json:"label,omitempty"`
	Singular       string   `json:"singular,omitempty"`
	Plural         string   `json:"plural,omitempty"`
	Path           string   `json:"path,omitempty"`
	LabelField     string   `json:"labelField,omitempty"`
	Description    string   `json:"description,omitempty"`
	InitialColumns []string `json:"initialColumns,omitempty"`
	HideCreate     bool     `json:"hideCreate,omitempty"`
	HideDelete     bool     `json:"hideDelete,omitempty"`
}

// Field declares one field. Which options apply depends on Type.
type Field struct {
	Key  string `json:"key"`
	Type string `json:"type"`

	IsRequired   bool            `json:"isRequired,omitempty"`
	IsUnique     bool            `json:"isUnique,omitempty"`
	DefaultValue json.RawMessage `json:"defaultValue,omitempty"`
	DisplayMode  string          `json:"displayMode,omitempty"`

	// select
	Options  []fields.SelectOption `json:"options,omitempty"`
	DataType string                `json:"dataType,omitempty"`
	EnumName string                `json:"enumName,omitempty"`

	// password
	MinLength int `json:"minLength,omitempty"`

	// relationship
	Ref         string    `json:"ref,omitempty"`
	Many        bool      `json:"many,omitempty"`
	ForeignMany *bool     `json:"foreignMany,omitempty"`
	HideCreate  bool      `json:"hideCreate,omitempty"`
	Cards       *CardsDef `json:"cards,omitempty"`
	LabelField  string    `json:"labelField,omitempty"`

	Access  FieldAccess  `json:"access,omitempty"`
	GraphQL FieldGraphQL `json:"graphql,omitempty"`
	UI      FieldUI      `json:"ui,omitempty"`
}

// CardsDef selects the cards display of a to-many relationship.
type CardsDef struct {
	CardFields    []string             `json:"cardFields,omitempty"`
	LinkToItem    bool                 `json:"linkToItem,omitempty"`
	RemoveMode    string               `json:"removeMode,omitempty"`
	InlineCreate  *fields.InlineFields `json:"inlineCreate,omitempty"`
	InlineEdit    *fields.InlineFields `json:"inlineEdit,omitempty"`
	InlineConnect bool                 `json:"inlineConnect,omitempty"`
}

// FieldAccess holds the per-operation access of a field.
type FieldAccess struct {
	Read   Access `json:"read,omitempty"`
	Create Access `json:"create,omitempty"`
	Update Access `json:"update,omitempty"`
}

// FieldGraphQL toggles the GraphQL exposure of a field.
type FieldGraphQL struct {
	Omit    bool  `json:"omit,omitempty"`
	Read    *bool `json:"read,omitempty"`
	Create  *bool `json:"create,omitempty"`
	Update  *bool `json:"update,omitempty"`
	Filter  *bool `json:"filter,omitempty"`
	OrderBy *bool `json:"orderBy,omitempty"`
}

// FieldUI holds the admin labels of a field.
type FieldUI struct {
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// Access is a static access decision. The zero value allows.
type Access struct {
	set           bool
	allowed       bool
	authenticated bool
}

// UnmarshalJSON accepts true, false or "authenticated".
func (a *Access) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*a = Access{set: true, allowed: b}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("access must be a boolean or %q", "authenticated")
	}
	if s != "authenticated" {
		return fmt.Errorf("unknown access %q, expected a boolean or %q", s, "authenticated")
	}
	*a = Access{set: true, authenticated: true}
	return nil
}

// MarshalJSON renders the decision the way it is declared.
func (a Access) MarshalJSON() ([]byte, error) {
	switch {
	case a.authenticated:
		return json.Marshal("authenticated")
	case a.set:
		return json.Marshal(a.allowed)
	}
	return json.Marshal(true)
}

// Rule converts the decision to an access rule.
func (a Access) Rule() schema.AccessRule {
	switch {
	case a.authenticated:
		return schema.Func(func(_ context.Context, args schema.AccessArgs) (schema.AccessResult, error) {
			return schema.AccessResult{Allowed: args.Session != nil}, nil
		})
	case a.set:
		return schema.Static(a.allowed)
	}
	return schema.AccessRule{}
}

// Parse decodes a definitions file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("invalid list definitions: %w", err)
	}
	if len(f.Lists) == 0 {
		return nil, errors.New("invalid list definitions: no lists declared")
	}
	return &f, nil
}

// Fingerprint identifies the content of a definitions file.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Load reads, parses and converts the definitions file at path. It also
// returns the fingerprint of the file content.
func Load(path string) (schema.Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Config{}, "", fmt.Errorf("failed to read list definitions: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return schema.Config{}, "", err
	}
	cfg, err := f.Config()
	if err != nil {
		return schema.Config{}, "", err
	}
	return cfg, Fingerprint(data), nil
}

// Config converts the file to list declarations.
func (f *File) Config() (schema.Config, error) {
	cfg := schema.Config{Lists: make(map[string]schema.ListConfig, len(f.Lists))}
	for key, l := range f.Lists {
		lc, err := l.config(key)
		if err != nil {
			return schema.Config{}, err
		}
		cfg.Lists[key] = lc
	}
	return cfg, nil
}

func (l List) config(listKey string) (schema.ListConfig, error) {
	disable, err := parseDisable(l.GraphQL.Disable)
	if err != nil {
		return schema.ListConfig{}, fmt.Errorf("%s: %w", listKey, err)
	}
	if l.GraphQL.MaxResults < 0 {
		return schema.ListConfig{}, fmt.Errorf("%s: maxResults must not be negative", listKey)
	}
	lc := schema.ListConfig{
		Description: l.Description,
		Access: schema.ListAccess{
			Read:   l.Access.Read.Rule(),
			Create: l.Access.Create.Rule(),
			Update: l.Access.Update.Rule(),
			Delete: l.Access.Delete.Rule(),
		},
		GraphQL: schema.ListGraphQLConfig{
			Plural:      l.GraphQL.Plural,
			Description: l.GraphQL.Description,
			Omit:        l.GraphQL.Omit,
			Disable:     disable,
			MaxResults:  l.GraphQL.MaxResults,
		},
		UI: schema.ListUIConfig{
			Label:          l.UI.Label,
			Singular:       l.UI.Singular,
			Plural:         l.UI.Plural,
			Path:           l.UI.Path,
			LabelField:     l.UI.LabelField,
			Description:    l.UI.Description,
			InitialColumns: l.UI.InitialColumns,
			HideCreate:     l.UI.HideCreate,
			HideDelete:     l.UI.HideDelete,
		},
	}
	seen := map[string]bool{}
	for _, fd := range l.Fields {
		if fd.Key == "" {
			return schema.ListConfig{}, fmt.Errorf("%s: a field has no key", listKey)
		}
		if seen[fd.Key] {
			return schema.ListConfig{}, fmt.Errorf("%s.%s is declared twice", listKey, fd.Key)
		}
		seen[fd.Key] = true
		fn, err := fd.fieldFunc()
		if err != nil {
			return schema.ListConfig{}, fmt.Errorf("%s.%s: %w", listKey, fd.Key, err)
		}
		lc.Fields = append(lc.Fields, schema.F(fd.Key, fn))
	}
	return lc, nil
}

func parseDisable(ops []string) (schema.ListOperations, error) {
	var d schema.ListOperations
	for _, op := range ops {
		switch strings.ToLower(op) {
		case "type":
			d.Type = true
		case "query":
			d.Query = true
		case "create":
			d.Create = true
		case "update":
			d.Update = true
		case "delete":
			d.Delete = true
		default:
			return d, fmt.Errorf("unknown operation %q in graphql.disable", op)
		}
	}
	return d, nil
}

func (fd Field) common() fields.Config {
	return fields.Config{
		Access: schema.FieldAccess{
			Read:   fd.Access.Read.Rule(),
			Create: fd.Access.Create.Rule(),
			Update: fd.Access.Update.Rule(),
		},
		GraphQL: schema.FieldGraphQLConfig{
			Omit:    fd.GraphQL.Omit,
			Read:    fd.GraphQL.Read,
			Create:  fd.GraphQL.Create,
			Update:  fd.GraphQL.Update,
			Filter:  fd.GraphQL.Filter,
			OrderBy: fd.GraphQL.OrderBy,
		},
		UI: schema.FieldUI{Label: fd.UI.Label, Description: fd.UI.Description},
	}
}

func (fd Field) fieldFunc() (schema.FieldFunc, error) {
	switch fd.Type {
	case "text":
		cfg := fields.TextConfig{Config: fd.common(), IsRequired: fd.IsRequired, IsUnique: fd.IsUnique, DisplayMode: fd.DisplayMode}
		if fd.DefaultValue != nil {
			var v string
			if err := json.Unmarshal(fd.DefaultValue, &v); err != nil {
				return nil, fmt.Errorf("defaultValue must be a string")
			}
			cfg.DefaultValue = &v
		}
		return fields.Text(cfg), nil
	case "integer":
		cfg := fields.IntegerConfig{Config: fd.common(), IsRequired: fd.IsRequired, IsUnique: fd.IsUnique}
		if fd.DefaultValue != nil {
			var v int
			if err := json.Unmarshal(fd.DefaultValue, &v); err != nil {
				return nil, fmt.Errorf("defaultValue must be an integer")
			}
			cfg.DefaultValue = &v
		}
		return fields.Integer(cfg), nil
	case "float":
		cfg := fields.FloatConfig{Config: fd.common(), IsRequired: fd.IsRequired}
		if fd.DefaultValue != nil {
			var v float64
			if err := json.Unmarshal(fd.DefaultValue, &v); err != nil {
				return nil, fmt.Errorf("defaultValue must be a number")
			}
			cfg.DefaultValue = &v
		}
		return fields.Float(cfg), nil
	case "checkbox":
		cfg := fields.CheckboxConfig{Config: fd.common(), IsRequired: fd.IsRequired}
		if fd.DefaultValue != nil {
			var v bool
			if err := json.Unmarshal(fd.DefaultValue, &v); err != nil {
				return nil, fmt.Errorf("defaultValue must be a boolean")
			}
			cfg.DefaultValue = &v
		}
		return fields.Checkbox(cfg), nil
	case "timestamp":
		cfg := fields.TimestampConfig{Config: fd.common(), IsRequired: fd.IsRequired, IsUnique: fd.IsUnique}
		if fd.DefaultValue != nil {
			if err := json.Unmarshal(fd.DefaultValue, &cfg.DefaultValue); err != nil {
				return nil, fmt.Errorf("defaultValue must be an ISO-8601 string")
			}
		}
		return fields.Timestamp(cfg), nil
	case "select":
		cfg := fields.SelectConfig{
			Config:      fd.common(),
			Options:     normalizeOptions(fd.Options),
			DataType:    fd.DataType,
			EnumName:    fd.EnumName,
			IsRequired:  fd.IsRequired,
			IsUnique:    fd.IsUnique,
			DisplayMode: fd.DisplayMode,
		}
		if fd.DefaultValue != nil {
			var v any
			if err := json.Unmarshal(fd.DefaultValue, &v); err != nil {
				return nil, err
			}
			cfg.DefaultValue = normalizeNumber(v)
		}
		return fields.Select(cfg), nil
	case "password":
		return fields.Password(fields.PasswordConfig{Config: fd.common(), MinLength: fd.MinLength, IsRequired: fd.IsRequired}), nil
	case "relationship":
		cfg := fields.RelationshipConfig{
			Config:      fd.common(),
			Ref:         fd.Ref,
			Many:        fd.Many,
			ForeignMany: fd.ForeignMany,
			HideCreate:  fd.HideCreate,
		}
		switch {
		case fd.Cards != nil:
			cfg.Display = fields.CardsDisplay{
				CardFields:    fd.Cards.CardFields,
				LinkToItem:    fd.Cards.LinkToItem,
				RemoveMode:    fd.Cards.RemoveMode,
				InlineCreate:  fd.Cards.InlineCreate,
				InlineEdit:    fd.Cards.InlineEdit,
				InlineConnect: fd.Cards.InlineConnect,
			}
		case fd.LabelField != "":
			cfg.Display = fields.SelectDisplay{LabelField: fd.LabelField}
		}
		return fields.Relationship(cfg), nil
	case "":
		return nil, errors.New("field type is required")
	}
	return nil, fmt.Errorf("unknown field type %q", fd.Type)
}

// normalizeOptions turns whole JSON numbers into ints so integer selects
// accept them.
func normalizeOptions(opts []fields.SelectOption) []fields.SelectOption {
	out := make([]fields.SelectOption, len(opts))
	for i, opt := range opts {
		out[i] = fields.SelectOption{Label: opt.Label, Value: normalizeNumber(opt.Value)}
	}
	return out
}

func normalizeNumber(v any) any {
	if f, ok := v.(float64); ok && f == float64(int(f)) {
		return int(f)
	}
	return v
}
