package schema

import "fmt"

// DBFieldKind is the storage kind backing a field.
type DBFieldKind string

const (
	DBScalar   DBFieldKind = "scalar"
	DBEnum     DBFieldKind = "enum"
	DBRelation DBFieldKind = "relation"
	DBMulti    DBFieldKind = "multi"
	DBNone     DBFieldKind = "none"
)

// Storage scalars understood by the stores and the schema printers.
const (
	ScalarString   = "String"
	ScalarInt      = "Int"
	ScalarFloat    = "Float"
	ScalarBoolean  = "Boolean"
	ScalarDateTime = "DateTime"
)

// ScalarMode is the nullability/cardinality of a scalar column.
type ScalarMode string

const (
	ModeOptional ScalarMode = "optional"
	ModeRequired ScalarMode = "required"
	ModeMany     ScalarMode = "many"
)

// Cardinality of one side of a relationship.
type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

// DBField describes how a field is persisted.
type DBField struct {
	Kind DBFieldKind
	// Scalar is set for scalar fields and for the value type of enum fields.
	Scalar     string
	Mode       ScalarMode
	IsUnique   bool
	IsID       bool
	EnumValues []string
	Relation   *Relation
	// Multi lists the sub-columns of a multi field, in column order.
	Multi []SubField
}

// SubField is one column of a multi field.
type SubField struct {
	Key     string
	DBField DBField
}

// Relation is the declared, and after initialisation the resolved, shape of
// a relationship field.
type Relation struct {
	List string
	// Field is the opposite field on List. Empty for one-sided references.
	Field       string
	Cardinality Cardinality
	// ForeignCardinality, when set in a declaration, is the cardinality this
	// side expects the opposite to have.
	ForeignCardinality Cardinality

	// Filled in by relationship resolution.
	Resolved *ResolvedRelation
}

// ResolvedRelation carries the ownership decision for a relationship.
type ResolvedRelation struct {
	// Name identifies the relation pair and is identical on both sides.
	Name string
	// ForeignKey is the column on this list holding the target id, when this
	// side owns it.
	ForeignKey string
	// UniqueForeignKey is set for one-to-one relations.
	UniqueForeignKey bool
	// TargetForeignKey is the column on the target list that points back at
	// this list, when the target side owns the key.
	TargetForeignKey string
	// Junction is set for many-to-many relations.
	Junction *Junction
	// Implicit marks a synthetic opposite created for a one-sided reference.
	Implicit bool
}

// Junction describes the join table of a many-to-many relation from the
// point of view of one side.
type Junction struct {
	Table string
	// SelfColumn holds this list's item id, OtherColumn the target's.
	SelfColumn  string
	OtherColumn string
}

// Path renders "List.field" for error messages.
func Path(listKey, fieldKey string) string {
	return fmt.Sprintf("%s.%s", listKey, fieldKey)
}

// Scalar builds a scalar DBField.
func Scalar(scalar string, mode ScalarMode) DBField {
	if mode == "" {
		mode = ModeOptional
	}
	return DBField{Kind: DBScalar, Scalar: scalar, Mode: mode}
}

// MultiKey is the flattened storage key of a multi sub-field.
func MultiKey(fieldKey, subKey string) string {
	return fieldKey + "__" + subKey
}
