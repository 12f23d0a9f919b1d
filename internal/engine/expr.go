package engine

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/query_graph/internal/dialect"
	"github.com/atlekbai/query_graph/internal/graph"
)

// expression renders e. A node with one operand renders as that operand; a
// node with two renders as "(left op right)".
func (b *build) expression(e *graph.Expression) (sq.Sqlizer, error) {
	if e == nil {
		return nil, nil
	}
	left, err := b.operand(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.operand(e.Right)
	if err != nil {
		return nil, err
	}
	switch {
	case left == nil:
		return right, nil
	case right == nil:
		return left, nil
	}
	return sq.ConcatExpr("(", left, " "+string(e.Operator)+" ", right, ")"), nil
}

func (b *build) operand(op graph.Operand) (sq.Sqlizer, error) {
	switch o := op.(type) {
	case *graph.ExprOperand:
		return b.expression(o.Expr)
	case *graph.FieldOperand:
		if o.Field == nil {
			return nil, nil
		}
		return b.value(o.Field, o.Descriptor)
	case *graph.FunctionOperand:
		return b.functionCall(o.Call)
	case *graph.ScalarQueryOperand:
		return b.scalarQuery(o.Query)
	case *graph.ValueOperand:
		return sq.Expr("?", b.params.Create(o.Value)), nil
	}
	return nil, nil
}

func (b *build) functionCall(c *graph.FunctionCall) (sq.Sqlizer, error) {
	if c == nil {
		return nil, nil
	}
	parts := []any{c.Name + "("}
	n := 0
	for _, p := range c.Params {
		s, err := b.operand(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name, err)
		}
		if s == nil {
			continue
		}
		if n > 0 {
			parts = append(parts, ", ")
		}
		parts = append(parts, s)
		n++
	}
	return sq.ConcatExpr(append(parts, ")")...), nil
}

// scalarQuery renders "(SELECT agg(target) FROM ...)". Without relations the
// select target's object is the source.
func (b *build) scalarQuery(q *graph.ScalarQuery) (sq.Sqlizer, error) {
	if q == nil {
		return nil, nil
	}
	c := b.child(q.Relations)
	sub := subquery{
		filter:    q.Filter,
		relations: q.Relations,
		sorter:    q.Sorter,
		groupBy:   q.GroupBy,
		limit:     q.Limit,
	}
	var target sq.Sqlizer
	if fo, ok := q.Select.(*graph.FieldOperand); ok && fo.Field != nil {
		d := q.SelectDescriptor
		if d == nil {
			d = fo.Descriptor
		}
		v, err := c.value(fo.Field, d)
		if err != nil {
			return nil, err
		}
		target, sub.source, sub.sourceD = v, fo.Field, d
	} else {
		v, err := c.operand(q.Select)
		if err != nil {
			return nil, err
		}
		target = v
	}
	sub.columns = aggregate(q.Aggregate, target)
	if sub.columns == nil {
		return nil, fmt.Errorf("scalar query selects nothing")
	}
	s, err := c.subquery(sub)
	if err != nil {
		return nil, err
	}
	return sq.ConcatExpr("(", s, ")"), nil
}

// subquery is the unparenthesized SELECT used inside predicates and scalar
// queries. Its source is, in order of preference, its relations, an explicit
// from text, or the object of source.
type subquery struct {
	columns      sq.Sqlizer
	from         string
	source       *graph.Field
	sourceD      *graph.Descriptor
	filter       *graph.PredicateExpression
	negateFilter bool
	relations    *graph.RelationCollection
	sorter       *graph.SortExpression
	groupBy      *graph.GroupByCollection
	limit        int64
}

func (b *build) subquery(q subquery) (sq.Sqlizer, error) {
	a := newAssembler()
	a.Add("SELECT")
	if q.limit > 0 && b.dialect().Limit == dialect.LimitTop {
		a.Add(b.dialect().LimitClause(q.limit))
	}
	if err := a.add(q.columns); err != nil {
		return nil, err
	}
	a.Add("FROM")
	switch {
	case q.relations.Len() > 0:
		joins, err := b.engine.joins.Joins(q.relations, b)
		if err != nil {
			return nil, fmt.Errorf("render joins: %w", err)
		}
		if err := a.add(joins); err != nil {
			return nil, err
		}
	case q.from != "":
		a.Add(q.from)
	case q.source != nil:
		f := q.source
		a.Add(b.Source(b.Object(f, b.describe(f, q.sourceD)), b.aliases.Resolve(f.Object, f.ObjectAlias, f.ActualObject)))
	default:
		return nil, fmt.Errorf("subquery has no source")
	}
	if err := b.where(a, q.filter, q.negateFilter); err != nil {
		return nil, err
	}
	if err := b.groupBy(a, q.groupBy); err != nil {
		return nil, err
	}
	if _, err := b.orderBy(a, q.sorter); err != nil {
		return nil, err
	}
	if q.limit > 0 && b.dialect().Limit == dialect.LimitSuffix {
		a.Add(b.dialect().LimitClause(q.limit))
	}
	return a.sqlizer(), nil
}
