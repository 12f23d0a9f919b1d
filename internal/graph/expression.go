package graph

// ExOp is an operator joining the two operands of an Expression.
type ExOp string

const (
	ExNone       ExOp = ""
	ExAdd        ExOp = "+"
	ExSub        ExOp = "-"
	ExMul        ExOp = "*"
	ExDiv        ExOp = "/"
	ExMod        ExOp = "%"
	ExEqual      ExOp = "="
	ExNotEqual   ExOp = "<>"
	ExAnd        ExOp = "AND"
	ExOr         ExOp = "OR"
	ExBitwiseAnd ExOp = "&"
	ExBitwiseOr  ExOp = "|"
)

// Expression is a binary node. Right is nil for single-operand expressions.
type Expression struct {
	Left     Operand
	Operator ExOp
	Right    Operand
}

// Operand is one slot of an Expression or a FunctionCall parameter.
type Operand interface {
	operand() // marker method
}

// ExprOperand nests another expression.
type ExprOperand struct {
	Expr *Expression
}

// FieldOperand references a field; Descriptor is filled by the walker.
type FieldOperand struct {
	Field      *Field
	Descriptor *Descriptor
}

// FunctionOperand is a database function call.
type FunctionOperand struct {
	Call *FunctionCall
}

// ScalarQueryOperand is a subquery producing a single value.
type ScalarQueryOperand struct {
	Query *ScalarQuery
}

// ValueOperand is a literal, emitted as a bound parameter.
type ValueOperand struct {
	Value any
}

func (*ExprOperand) operand()        {}
func (*FieldOperand) operand()       {}
func (*FunctionOperand) operand()    {}
func (*ScalarQueryOperand) operand() {}
func (*ValueOperand) operand()       {}

// FunctionCall is name(params...).
type FunctionCall struct {
	Name   string
	Params []Operand
}

// ScalarQuery selects one value from a filtered set.
type ScalarQuery struct {
	Select    Operand
	Aggregate AggregateFunction
	Filter    *PredicateExpression
	Relations *RelationCollection
	Sorter    *SortExpression
	GroupBy   *GroupByCollection
	Limit     int64

	SelectDescriptor *Descriptor
}

// Convenience constructors.

func FieldOp(f *Field) *FieldOperand { return &FieldOperand{Field: f} }

func ValueOp(v any) *ValueOperand { return &ValueOperand{Value: v} }

func ExprOp(e *Expression) *ExprOperand { return &ExprOperand{Expr: e} }

func CallOp(c *FunctionCall) *FunctionOperand { return &FunctionOperand{Call: c} }

func QueryOp(q *ScalarQuery) *ScalarQueryOperand { return &ScalarQueryOperand{Query: q} }

// NewExpression returns left op right.
func NewExpression(left Operand, op ExOp, right Operand) *Expression {
	return &Expression{Left: left, Operator: op, Right: right}
}

// Call returns a function call with the given parameters.
func Call(name string, params ...Operand) *FunctionCall {
	return &FunctionCall{Name: name, Params: params}
}
