package graph

// Element is an entry of a PredicateExpression: a Predicate or an Operator.
type Element interface {
	element() // marker method
}

// Predicate is a filter node. Every concrete predicate is also an Element.
type Predicate interface {
	Element
	predicate() // marker method
}

// Operator joins two predicates in a PredicateExpression.
type Operator string

const (
	OpAnd Operator = "AND"
	OpOr  Operator = "OR"
)

func (Operator) element() {}

// ComparisonOp is a binary comparison.
type ComparisonOp string

const (
	CmpEqual        ComparisonOp = "="
	CmpNotEqual     ComparisonOp = "<>"
	CmpGreater      ComparisonOp = ">"
	CmpGreaterEqual ComparisonOp = ">="
	CmpLesser       ComparisonOp = "<"
	CmpLesserEqual  ComparisonOp = "<="
)

// CompareValue is field op value.
type CompareValue struct {
	Field      *Field
	Descriptor *Descriptor
	Op         ComparisonOp
	Value      any
	Negate     bool
}

// CompareNull is field IS NULL.
type CompareNull struct {
	Field      *Field
	Descriptor *Descriptor
	Negate     bool
}

// Like is field LIKE pattern.
type Like struct {
	Field      *Field
	Descriptor *Descriptor
	Pattern    string
	Negate     bool
}

// CompareRange is field IN (values...).
type CompareRange struct {
	Field      *Field
	Descriptor *Descriptor
	Values     []any
	Negate     bool
}

// Bound is one end of a Between predicate: a field or a value.
type Bound struct {
	Field      *Field
	Descriptor *Descriptor
	Value      any
}

// IsField reports whether the bound is a field reference.
func (b Bound) IsField() bool { return b.Field != nil }

// Between is field BETWEEN begin AND end.
type Between struct {
	Field      *Field
	Descriptor *Descriptor
	Begin      Bound
	End        Bound
	Negate     bool
}

type FullTextOperator string

const (
	FullTextContains FullTextOperator = "CONTAINS"
	FullTextFreetext FullTextOperator = "FREETEXT"
)

// FullTextSearch is CONTAINS(field, pattern) or FREETEXT(field, pattern).
type FullTextSearch struct {
	Field      *Field
	Descriptor *Descriptor
	Operator   FullTextOperator
	Pattern    string
	Negate     bool
}

// CompareExpression is field op expression.
type CompareExpression struct {
	Field      *Field
	Descriptor *Descriptor
	Op         ComparisonOp
	Expression *Expression
	Negate     bool
}

type SetOperator string

const (
	SetIn           SetOperator = "IN"
	SetExists       SetOperator = "EXISTS"
	SetEqual        SetOperator = "="
	SetNotEqual     SetOperator = "<>"
	SetGreater      SetOperator = ">"
	SetGreaterEqual SetOperator = ">="
	SetLesser       SetOperator = "<"
	SetLesserEqual  SetOperator = "<="
)

// Quantifier applies to the comparison set operators.
type Quantifier string

const (
	QuantNone Quantifier = ""
	QuantAny  Quantifier = "ANY"
	QuantAll  Quantifier = "ALL"
)

// CompareSet compares Field against the set produced by a subquery on SetField.
// Field is nil for EXISTS.
type CompareSet struct {
	Field         *Field
	Descriptor    *Descriptor
	SetField      *Field
	SetDescriptor *Descriptor
	Operator      SetOperator
	Quantifier    Quantifier
	SetFilter     *PredicateExpression
	SetRelations  *RelationCollection
	SetSorter     *SortExpression
	SetGroupBy    *GroupByCollection
	Limit         int64
	Negate        bool
}

type MemberKind string

const (
	MemberAny MemberKind = "ANY"
	MemberAll MemberKind = "ALL"
)

// Member tests the related rows of Target against Filter.
type Member struct {
	Kind   MemberKind
	Target string
	Alias  string
	Filter *PredicateExpression
	Negate bool
}

// AggregateSet compares an aggregate over a related set with Value.
type AggregateSet struct {
	Aggregate     AggregateFunction
	ValueProducer *Expression
	Source        string
	SourceAlias   string
	SetFilter     *PredicateExpression
	Op            ComparisonOp
	Value         any
	Negate        bool
}

// PredicateExpression is a flattened AND/OR tree of predicates.
type PredicateExpression struct {
	Elements []Element
	Negate   bool
}

// NewPredicateExpression returns an expression starting with p.
func NewPredicateExpression(p ...Predicate) *PredicateExpression {
	e := &PredicateExpression{}
	for _, pr := range p {
		e.And(pr)
	}
	return e
}

// Add appends p joined with AND.
func (e *PredicateExpression) Add(p Predicate) *PredicateExpression { return e.And(p) }

// And appends p joined with AND.
func (e *PredicateExpression) And(p Predicate) *PredicateExpression {
	return e.add(OpAnd, p)
}

// Or appends p joined with OR.
func (e *PredicateExpression) Or(p Predicate) *PredicateExpression {
	return e.add(OpOr, p)
}

func (e *PredicateExpression) add(op Operator, p Predicate) *PredicateExpression {
	if p == nil {
		return e
	}
	if len(e.Elements) > 0 {
		e.Elements = append(e.Elements, op)
	}
	e.Elements = append(e.Elements, p)
	return e
}

// Len returns the number of predicates (operators excluded).
func (e *PredicateExpression) Len() int {
	if e == nil {
		return 0
	}
	n := 0
	for _, el := range e.Elements {
		if _, ok := el.(Predicate); ok {
			n++
		}
	}
	return n
}

func (*CompareValue) element()        {}
func (*CompareNull) element()         {}
func (*Like) element()                {}
func (*CompareRange) element()        {}
func (*Between) element()             {}
func (*FullTextSearch) element()      {}
func (*CompareExpression) element()   {}
func (*CompareSet) element()          {}
func (*Member) element()              {}
func (*AggregateSet) element()        {}
func (*PredicateExpression) element() {}

func (*CompareValue) predicate()        {}
func (*CompareNull) predicate()         {}
func (*Like) predicate()                {}
func (*CompareRange) predicate()        {}
func (*Between) predicate()             {}
func (*FullTextSearch) predicate()      {}
func (*CompareExpression) predicate()   {}
func (*CompareSet) predicate()          {}
func (*Member) predicate()              {}
func (*AggregateSet) predicate()        {}
func (*PredicateExpression) predicate() {}

// Eq returns field = value.
func Eq(f *Field, v any) *CompareValue { return &CompareValue{Field: f, Op: CmpEqual, Value: v} }

// Cmp returns field op value.
func Cmp(f *Field, op ComparisonOp, v any) *CompareValue {
	return &CompareValue{Field: f, Op: op, Value: v}
}

// IsNull returns field IS NULL.
func IsNull(f *Field) *CompareNull { return &CompareNull{Field: f} }

// LikePattern returns field LIKE pattern.
func LikePattern(f *Field, pattern string) *Like { return &Like{Field: f, Pattern: pattern} }

// In returns field IN (values...).
func In(f *Field, values ...any) *CompareRange { return &CompareRange{Field: f, Values: values} }
