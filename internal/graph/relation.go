package graph

type JoinHint string

const (
	JoinInner JoinHint = "INNER"
	JoinLeft  JoinHint = "LEFT"
	JoinRight JoinHint = "RIGHT"
	JoinCross JoinHint = "CROSS"
)

// Relation is an entry of a RelationCollection.
type Relation interface {
	relation() // marker method
}

// InheritanceInfo describes the hierarchy above an object that is stored
// across several tables.
type InheritanceInfo struct {
	Entity                   string
	RelationsToHierarchyRoot *RelationCollection
}

// FieldPair is one PK/FK field couple of an EntityRelation.
type FieldPair struct {
	PK           *Field
	FK           *Field
	PKDescriptor *Descriptor
	FKDescriptor *Descriptor
}

// EntityRelation joins two objects over foreign key fields.
type EntityRelation struct {
	Pairs []FieldPair
	Hint  JoinHint

	// StartAtFK renders the FK side first; the PK side is first otherwise.
	StartAtFK bool
	PKAlias   string
	FKAlias   string

	CustomFilter      *PredicateExpression
	InheritancePKSide *InheritanceInfo
	InheritanceFKSide *InheritanceInfo
}

// NewEntityRelation returns pk = fk joined with hint.
func NewEntityRelation(pk, fk *Field, hint JoinHint) *EntityRelation {
	return &EntityRelation{Pairs: []FieldPair{{PK: pk, FK: fk}}, Hint: hint}
}

// AddPair appends another PK/FK couple.
func (r *EntityRelation) AddPair(pk, fk *Field) *EntityRelation {
	r.Pairs = append(r.Pairs, FieldPair{PK: pk, FK: fk})
	return r
}

// PKObject returns the object on the PK side.
func (r *EntityRelation) PKObject() string {
	if len(r.Pairs) == 0 || r.Pairs[0].PK == nil {
		return ""
	}
	return r.Pairs[0].PK.Object
}

// FKObject returns the object on the FK side.
func (r *EntityRelation) FKObject() string {
	if len(r.Pairs) == 0 || r.Pairs[0].FK == nil {
		return ""
	}
	return r.Pairs[0].FK.Object
}

// PKSideAlias returns PKAlias, falling back to the alias on the PK field.
func (r *EntityRelation) PKSideAlias() string {
	if r.PKAlias != "" || len(r.Pairs) == 0 || r.Pairs[0].PK == nil {
		return r.PKAlias
	}
	return r.Pairs[0].PK.ObjectAlias
}

// FKSideAlias returns FKAlias, falling back to the alias on the FK field.
func (r *EntityRelation) FKSideAlias() string {
	if r.FKAlias != "" || len(r.Pairs) == 0 || r.Pairs[0].FK == nil {
		return r.FKAlias
	}
	return r.Pairs[0].FK.ObjectAlias
}

// JoinSide is one operand of a DynamicRelation: a field or a derived table.
type JoinSide struct {
	Field       *Field
	Descriptor  *Descriptor
	Derived     *DerivedTable
	Inheritance *InheritanceInfo
}

// IsDerivedTable reports whether the side is a derived table.
func (s *JoinSide) IsDerivedTable() bool { return s != nil && s.Derived != nil }

// Alias returns the alias the side is known by.
func (s *JoinSide) Alias() string {
	switch {
	case s == nil:
		return ""
	case s.Derived != nil:
		return s.Derived.Alias
	case s.Field != nil:
		return s.Field.ObjectAlias
	}
	return ""
}

// DynamicRelation joins arbitrary sources with an explicit ON clause.
// Right is nil for a single-source relation.
type DynamicRelation struct {
	Left     *JoinSide
	Right    *JoinSide
	Hint     JoinHint
	OnClause *PredicateExpression
}

func (*EntityRelation) relation()  {}
func (*DynamicRelation) relation() {}

// RelationCollection is the ordered list of relations to walk.
type RelationCollection struct {
	Relations []Relation
}

// NewRelationCollection returns a collection holding rs.
func NewRelationCollection(rs ...Relation) *RelationCollection {
	return &RelationCollection{Relations: rs}
}

// Add appends r.
func (c *RelationCollection) Add(r Relation) *RelationCollection {
	c.Relations = append(c.Relations, r)
	return c
}

// Len returns the number of relations; a nil collection has none.
func (c *RelationCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Relations)
}
