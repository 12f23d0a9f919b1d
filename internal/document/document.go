// Package document decodes query documents: the YAML (or JSON) form of a
// select request, as accepted by the CLI and the HTTP render endpoint.
//
//	select:
//	  - Customer.Name
//	  - {field: Order.Total, aggregate: SUM, as: Spent}
//	joins:
//	  - {pk: Customer.Id, fk: Order.CustomerId}
//	where:
//	  all:
//	    - {field: Order.Total, op: ">", value: 100}
//	group_by: [Customer.Name]
//	limit: 10
package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Document struct {
	Name            string     `yaml:"name" json:"name,omitempty"`
	Dialect         string     `yaml:"dialect" json:"dialect,omitempty"`
	Select          []Column   `yaml:"select" json:"select"`
	Joins           []Join     `yaml:"joins" json:"joins,omitempty"`
	Where           *Condition `yaml:"where" json:"where,omitempty"`
	GroupBy         []FieldRef `yaml:"group_by" json:"group_by,omitempty"`
	Having          *Condition `yaml:"having" json:"having,omitempty"`
	OrderBy         []Order    `yaml:"order_by" json:"order_by,omitempty"`
	Limit           int64      `yaml:"limit" json:"limit,omitempty"`
	AllowDuplicates bool       `yaml:"allow_duplicates" json:"allow_duplicates,omitempty"`
}

// FieldRef names a field. The short form is "Object.Name"; the object part
// may itself be schema-qualified.
type FieldRef struct {
	Object     string `yaml:"object" json:"object"`
	Name       string `yaml:"name" json:"name"`
	In         string `yaml:"in" json:"in,omitempty"` // object alias
	Type       string `yaml:"type" json:"type,omitempty"`
	PrimaryKey bool   `yaml:"pk" json:"pk,omitempty"`
}

func (r *FieldRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		ref, err := ParseRef(node.Value)
		if err != nil {
			return err
		}
		*r = ref
		return nil
	}
	type plain FieldRef
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = FieldRef(p)
	return nil
}

// ParseRef parses the short "Object.Name" form. A bare name is accepted for
// referring to a select list alias.
func ParseRef(s string) (FieldRef, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, ".")
	switch {
	case s == "":
		return FieldRef{}, fmt.Errorf("empty field reference")
	case i < 0:
		return FieldRef{Name: s}, nil
	case i == 0 || i == len(s)-1:
		return FieldRef{}, fmt.Errorf("field reference %q is not of the form Object.Name", s)
	}
	return FieldRef{Object: s[:i], Name: s[i+1:]}, nil
}

func (r FieldRef) String() string {
	if r.In != "" {
		return r.In + "." + r.Name
	}
	return r.Object + "." + r.Name
}

// Column is one entry of the select list: a field, optionally aggregated, or
// a function call computed from Args and attributed to Field's object.
type Column struct {
	Field     FieldRef  `yaml:"field" json:"field"`
	As        string    `yaml:"as" json:"as,omitempty"`
	Aggregate string    `yaml:"aggregate" json:"aggregate,omitempty"`
	Function  string    `yaml:"function" json:"function,omitempty"`
	Args      []Operand `yaml:"args" json:"args,omitempty"`
}

func (c *Column) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&c.Field)
	}
	type plain Column
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Column(p)
	return nil
}

// Operand is a function argument: a field or a literal value.
type Operand struct {
	Field *FieldRef `yaml:"field" json:"field,omitempty"`
	Value any       `yaml:"value" json:"value,omitempty"`
}

type Join struct {
	PK        FieldRef `yaml:"pk" json:"pk"`
	FK        FieldRef `yaml:"fk" json:"fk"`
	Type      string   `yaml:"type" json:"type,omitempty"`
	StartAtFK bool     `yaml:"start_at_fk" json:"start_at_fk,omitempty"`
}

type Order struct {
	Field FieldRef `yaml:"field" json:"field"`
	Desc  bool     `yaml:"desc" json:"desc,omitempty"`
}

func (o *Order) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&o.Field)
	}
	type plain Order
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*o = Order(p)
	return nil
}

// Condition is either a group (All or Any) or a single test on Field.
type Condition struct {
	All []Condition `yaml:"all" json:"all,omitempty"`
	Any []Condition `yaml:"any" json:"any,omitempty"`
	Not bool        `yaml:"not" json:"not,omitempty"`

	Field *FieldRef `yaml:"field" json:"field,omitempty"`
	Op    string    `yaml:"op" json:"op,omitempty"`
	Value any       `yaml:"value" json:"value,omitempty"`
	Other *FieldRef `yaml:"other" json:"other,omitempty"`
	// Type converts literal values: decimal, uuid or datetime.
	Type string `yaml:"type" json:"type,omitempty"`

	Like    *string   `yaml:"like" json:"like,omitempty"`
	In      []any     `yaml:"in" json:"in,omitempty"`
	Between []any     `yaml:"between" json:"between,omitempty"`
	IsNull  *bool     `yaml:"is_null" json:"is_null,omitempty"`
	Search  *Search   `yaml:"search" json:"search,omitempty"`
	InQuery *SubQuery `yaml:"in_query" json:"in_query,omitempty"`
	Exists  *SubQuery `yaml:"exists" json:"exists,omitempty"`
}

type Search struct {
	Mode    string `yaml:"mode" json:"mode,omitempty"` // contains or freetext
	Pattern string `yaml:"pattern" json:"pattern"`
}

// SubQuery selects one field from a filtered, optionally joined set.
type SubQuery struct {
	Select FieldRef   `yaml:"select" json:"select"`
	Joins  []Join     `yaml:"joins" json:"joins,omitempty"`
	Where  *Condition `yaml:"where" json:"where,omitempty"`
	Limit  int64      `yaml:"limit" json:"limit,omitempty"`
}

// Decode reads one document from r. JSON input is accepted as well.
func Decode(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var d Document
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode document: empty input")
		}
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &d, nil
}

// Load reads the document at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if d.Name == "" {
		d.Name = path
	}
	return d, nil
}

// Batch is a list of documents rendered together.
type Batch struct {
	Documents []Document `yaml:"documents" json:"documents"`
}

// DecodeBatch reads a batch from r.
func DecodeBatch(r io.Reader) (*Batch, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var b Batch
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode batch: empty input")
		}
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if len(b.Documents) == 0 {
		return nil, fmt.Errorf("decode batch: no documents")
	}
	return &b, nil
}
