package graph

import "strings"

// Descriptor is the resolved physical storage metadata of one field.
// A descriptor is never modified after it has been attached to a node.
type Descriptor struct {
	Catalog   string
	Schema    string
	Object    string // source object (table/view) name
	Column    string // source column name
	Nullable  bool
	Size      int
	Precision int
	Scale     int
	DataType  string // declared type, e.g. "NVarChar", "Int", "Text"
}

// Clone returns an independent copy of d.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// QualifiedObject returns catalog.schema.object, skipping empty parts.
func (d *Descriptor) QualifiedObject() string {
	var parts []string
	for _, p := range []string{d.Catalog, d.Schema, d.Object} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

type AggregateFunction string

const (
	AggNone          AggregateFunction = ""
	AggCount         AggregateFunction = "COUNT"
	AggCountDistinct AggregateFunction = "COUNT DISTINCT"
	AggCountRow      AggregateFunction = "COUNT(*)"
	AggSum           AggregateFunction = "SUM"
	AggAvg           AggregateFunction = "AVG"
	AggMin           AggregateFunction = "MIN"
	AggMax           AggregateFunction = "MAX"
)

// Field is a reference to a field of an object in the query graph.
//
// A field whose Descriptor is set at construction is self-describing: the
// resolver hands that descriptor back untouched. Plain fields get one
// synthesized from the metadata below.
type Field struct {
	Object       string // object that defines the field
	ActualObject string // object that physically holds it, when inherited
	Name         string
	Alias        string // alias in the projection
	ObjectAlias  string // alias of Object in the query scope

	DataType   string
	Nullable   bool
	MaxLength  int
	Precision  int
	Scale      int
	PrimaryKey bool

	Aggregate  AggregateFunction
	Expression *Expression

	Descriptor *Descriptor
}

// NewField returns a plain field of object with the given name and declared type.
func NewField(object, name, dataType string) *Field {
	return &Field{Object: object, Name: name, DataType: dataType}
}

// SelfDescribing reports whether f carries its own descriptor.
func (f *Field) SelfDescribing() bool { return f.Descriptor != nil }

// Owner returns the object that physically holds the field.
func (f *Field) Owner() string {
	if f.ActualObject != "" {
		return f.ActualObject
	}
	return f.Object
}

// As sets the projection alias and returns f.
func (f *Field) As(alias string) *Field {
	f.Alias = alias
	return f
}

// In sets the object alias and returns f.
func (f *Field) In(objectAlias string) *Field {
	f.ObjectAlias = objectAlias
	return f
}

// Key identifies f by scope and name, independent of node identity.
func (f *Field) Key() string {
	owner := f.ObjectAlias
	if owner == "" {
		owner = f.Object
	}
	return owner + "." + f.Name + "|" + string(f.Aggregate)
}
