package graph

// DerivedTable is a named subquery used as a join source.
type DerivedTable struct {
	Alias           string
	Fields          []*Field
	Descriptors     []*Descriptor
	Filter          *PredicateExpression
	GroupBy         *GroupByCollection
	Relations       *RelationCollection
	Sorter          *SortExpression
	Limit           int64
	AllowDuplicates bool
}

// NewDerivedTable returns a derived table selecting fields under alias.
func NewDerivedTable(alias string, fields ...*Field) *DerivedTable {
	return &DerivedTable{Alias: alias, Fields: fields}
}

type SortDirection string

const (
	Ascending  SortDirection = "ASC"
	Descending SortDirection = "DESC"
)

// SortClause orders by one field.
type SortClause struct {
	Field      *Field
	Descriptor *Descriptor
	Direction  SortDirection
}

// SortExpression is an ordered list of sort clauses.
type SortExpression struct {
	Clauses []*SortClause
}

// NewSortExpression returns a sorter over clauses.
func NewSortExpression(clauses ...*SortClause) *SortExpression {
	return &SortExpression{Clauses: clauses}
}

// Asc returns an ascending clause on f.
func Asc(f *Field) *SortClause { return &SortClause{Field: f, Direction: Ascending} }

// Desc returns a descending clause on f.
func Desc(f *Field) *SortClause { return &SortClause{Field: f, Direction: Descending} }

// Len returns the number of clauses; a nil sorter has none.
func (s *SortExpression) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Clauses)
}

// GroupByCollection lists the grouping fields and an optional HAVING filter.
type GroupByCollection struct {
	Fields      []*Field
	Descriptors []*Descriptor
	Having      *PredicateExpression
}

// NewGroupBy returns a group-by over fields.
func NewGroupBy(fields ...*Field) *GroupByCollection {
	return &GroupByCollection{Fields: fields}
}

// Len returns the number of grouping fields; a nil collection has none.
func (g *GroupByCollection) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Fields)
}

// Contains reports whether a field with the same key as f is grouped on.
func (g *GroupByCollection) Contains(f *Field) bool {
	if g == nil {
		return false
	}
	key := f.Key()
	for _, gf := range g.Fields {
		if gf == f || gf.Key() == key {
			return true
		}
	}
	return false
}
