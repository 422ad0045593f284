// Package criteria compiles per-field filter criteria into SQL predicates.
//
// Every entity declares a Schema listing its filterable fields, their column
// and their semantic type. The type decides which operators a field accepts,
// so an inapplicable operator is rejected while parsing instead of producing an
// always-false query. Column names only ever come from the Schema; values are
// always bound as arguments.
package criteria

import "fmt"

// FieldType is the semantic type of a filterable field.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInteger
	TypeDecimal
	TypeBoolean
	TypeEnum
	TypeTimestamp
	TypeForeignIdentity
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeDecimal:
		return "decimal"
	case TypeBoolean:
		return "boolean"
	case TypeEnum:
		return "enum"
	case TypeTimestamp:
		return "timestamp"
	case TypeForeignIdentity:
		return "foreign identity"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

func (t FieldType) ordered() bool {
	switch t {
	case TypeInteger, TypeDecimal, TypeTimestamp, TypeForeignIdentity:
		return true
	}
	return false
}

// Operator is a filter operator as it appears in query parameters.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "notEquals"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "notIn"
	OpSpecified          Operator = "specified"
	OpGreaterThan        Operator = "greaterThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThan           Operator = "lessThan"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpContains           Operator = "contains"
	OpDoesNotContain     Operator = "doesNotContain"
)

// operatorOrder fixes the order conditions are emitted in, so identical
// filters always compile to identical SQL.
var operatorOrder = map[Operator]int{
	OpEquals:             0,
	OpNotEquals:          1,
	OpIn:                 2,
	OpNotIn:              3,
	OpSpecified:          4,
	OpGreaterThan:        5,
	OpGreaterThanOrEqual: 6,
	OpLessThan:           7,
	OpLessThanOrEqual:    8,
	OpContains:           9,
	OpDoesNotContain:     10,
}

func (o Operator) known() bool {
	_, ok := operatorOrder[o]
	return ok
}

// Ref names the related table and identity column of a foreign-identity field.
// When Match is set the related table is a link table: Column joins it to the
// local column and Match holds the identity being filtered.
type Ref struct {
	Table  string
	Column string
	Match  string
}

func (r Ref) matched() string {
	if r.Match != "" {
		return r.Match
	}
	return r.Column
}

// Field declares one filterable field.
type Field struct {
	Name   string
	Column string
	Type   FieldType
	Enum   []string
	Ref    *Ref
}

// Allows reports whether op is legal for the field's type.
func (f Field) Allows(op Operator) bool {
	switch op {
	case OpEquals, OpNotEquals, OpIn, OpNotIn, OpSpecified:
		return true
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return f.Type.ordered()
	case OpContains, OpDoesNotContain:
		return f.Type == TypeString
	}
	return false
}

func String(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeString}
}

func Integer(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeInteger}
}

func Decimal(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeDecimal}
}

func Boolean(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeBoolean}
}

func Timestamp(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeTimestamp}
}

// Enum declares a field restricted to the given values.
func Enum(name, column string, values ...string) Field {
	return Field{Name: name, Column: column, Type: TypeEnum, Enum: values}
}

// Foreign declares a filter on a related entity's identity. column is the
// local column holding the relation; table is the related table whose "id"
// column is matched.
func Foreign(name, column, table string) Field {
	return Field{Name: name, Column: column, Type: TypeForeignIdentity, Ref: &Ref{Table: table, Column: "id"}}
}

// Linked declares a filter on the identities an entity is linked to through a
// link table. ownerColumn references the entity's id and targetColumn holds the
// linked identity.
func Linked(name, table, ownerColumn, targetColumn string) Field {
	return Field{Name: name, Column: "id", Type: TypeForeignIdentity, Ref: &Ref{Table: table, Column: ownerColumn, Match: targetColumn}}
}

// Schema is the set of filterable fields of one entity.
type Schema struct {
	entity string
	fields map[string]Field
	order  []string
}

// NewSchema declares a schema. The identity field "id" is always present.
// Duplicate names are a declaration bug and panic.
func NewSchema(entity string, fields ...Field) Schema {
	s := Schema{entity: entity, fields: make(map[string]Field, len(fields)+1)}
	s.add(Integer("id", "id"))
	for _, f := range fields {
		s.add(f)
	}
	return s
}

func (s *Schema) add(f Field) {
	if _, exists := s.fields[f.Name]; exists {
		panic(fmt.Sprintf("criteria: duplicate field %q in schema %q", f.Name, s.entity))
	}
	if f.Type == TypeForeignIdentity && f.Ref == nil {
		panic(fmt.Sprintf("criteria: foreign field %q in schema %q has no reference", f.Name, s.entity))
	}
	s.fields[f.Name] = f
	s.order = append(s.order, f.Name)
}

// Entity returns the entity name the schema was declared for.
func (s Schema) Entity() string {
	return s.entity
}

// Field looks up a declared field by name.
func (s Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields returns the declared fields in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name])
	}
	return out
}
