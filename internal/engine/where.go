package engine

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/query_graph/internal/graph"
	"github.com/atlekbai/query_graph/internal/param"
)

// Filter renders e as "(p1 AND p2 OR p3)". Predicates of unknown kind are
// left out together with the operator in front of them; nil is returned when
// nothing renderable is left.
func (b *build) Filter(e *graph.PredicateExpression) (sq.Sqlizer, error) {
	if e == nil {
		return nil, nil
	}
	var (
		parts   []any
		pending graph.Operator
	)
	for _, el := range e.Elements {
		switch el := el.(type) {
		case graph.Operator:
			pending = el
		case graph.Predicate:
			p, err := b.predicate(el)
			if err != nil {
				return nil, err
			}
			if p == nil {
				continue
			}
			if len(parts) > 0 {
				op := pending
				if op == "" {
					op = graph.OpAnd
				}
				parts = append(parts, " "+string(op)+" ")
			}
			parts = append(parts, p)
			pending = ""
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	parts = append(append([]any{"("}, parts...), ")")
	if e.Negate {
		return sq.ConcatExpr(append([]any{"NOT "}, parts...)...), nil
	}
	return sq.ConcatExpr(parts...), nil
}

func (b *build) predicate(p graph.Predicate) (sq.Sqlizer, error) {
	switch p := p.(type) {
	case *graph.PredicateExpression:
		return b.Filter(p)
	case *graph.CompareValue:
		return b.compareValue(p)
	case *graph.CompareNull:
		col, args, err := b.subject(p.Field, p.Descriptor)
		if err != nil {
			return nil, err
		}
		return nullCheck(col, args, p.Negate), nil
	case *graph.Like:
		return b.like(p)
	case *graph.CompareRange:
		return b.compareRange(p)
	case *graph.Between:
		return b.between(p)
	case *graph.FullTextSearch:
		col, args, err := b.subject(p.Field, p.Descriptor)
		if err != nil {
			return nil, err
		}
		op := p.Operator
		if op == "" {
			op = graph.FullTextContains
		}
		args = append(args, b.params.Create(p.Pattern))
		return negate(sq.Expr(fmt.Sprintf("%s(%s, ?)", op, col), args...), p.Negate), nil
	case *graph.CompareExpression:
		return b.compareExpression(p)
	case *graph.CompareSet:
		return b.compareSet(p)
	case *graph.Member:
		return b.member(p)
	case *graph.AggregateSet:
		return b.aggregateSet(p)
	}
	return nil, nil
}

// subject renders the field a predicate tests.
func (b *build) subject(f *graph.Field, d *graph.Descriptor) (string, []any, error) {
	if f == nil {
		return "", nil, fmt.Errorf("predicate without a field")
	}
	return toSQL(b.value(f, b.describe(f, d)))
}

func (b *build) compareValue(p *graph.CompareValue) (sq.Sqlizer, error) {
	col, args, err := b.subject(p.Field, p.Descriptor)
	if err != nil {
		return nil, err
	}
	v := b.params.Create(p.Value)
	if v.Value == nil && (p.Op == graph.CmpEqual || p.Op == graph.CmpNotEqual) {
		return nullCheck(col, args, (p.Op == graph.CmpNotEqual) != p.Negate), nil
	}
	if len(args) > 0 {
		return negate(sq.Expr(col+" "+string(p.Op)+" ?", append(args, v)...), p.Negate), nil
	}
	var s sq.Sqlizer
	switch p.Op {
	case graph.CmpEqual:
		s = sq.Eq{col: v}
	case graph.CmpNotEqual:
		s = sq.NotEq{col: v}
	case graph.CmpGreater:
		s = sq.Gt{col: v}
	case graph.CmpGreaterEqual:
		s = sq.GtOrEq{col: v}
	case graph.CmpLesser:
		s = sq.Lt{col: v}
	case graph.CmpLesserEqual:
		s = sq.LtOrEq{col: v}
	default:
		return nil, fmt.Errorf("unknown comparison operator %q", p.Op)
	}
	return negate(s, p.Negate), nil
}

// like types its parameter after the declared type of the column.
func (b *build) like(p *graph.Like) (sq.Sqlizer, error) {
	col, args, err := b.subject(p.Field, p.Descriptor)
	if err != nil {
		return nil, err
	}
	v := b.params.CreateLike(p.Pattern, dataType(p.Field, b.describe(p.Field, p.Descriptor)))
	switch {
	case len(args) > 0 && p.Negate:
		return sq.Expr(col+" NOT LIKE ?", append(args, v)...), nil
	case len(args) > 0:
		return sq.Expr(col+" LIKE ?", append(args, v)...), nil
	case p.Negate:
		return sq.NotLike{col: v}, nil
	}
	return sq.Like{col: v}, nil
}

func (b *build) compareRange(p *graph.CompareRange) (sq.Sqlizer, error) {
	col, args, err := b.subject(p.Field, p.Descriptor)
	if err != nil {
		return nil, err
	}
	values := make([]param.Parameter, len(p.Values))
	for i, v := range p.Values {
		values[i] = b.params.Create(v)
	}
	if len(args) == 0 {
		if p.Negate {
			return sq.NotEq{col: values}, nil
		}
		return sq.Eq{col: values}, nil
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty range on computed field %s", p.Field.Name)
	}
	kw := " IN ("
	if p.Negate {
		kw = " NOT IN ("
	}
	for _, v := range values {
		args = append(args, v)
	}
	return sq.Expr(col+kw+sq.Placeholders(len(values))+")", args...), nil
}

func (b *build) between(p *graph.Between) (sq.Sqlizer, error) {
	col, args, err := b.subject(p.Field, p.Descriptor)
	if err != nil {
		return nil, err
	}
	begin, beginArgs, err := b.bound(p.Begin)
	if err != nil {
		return nil, err
	}
	end, endArgs, err := b.bound(p.End)
	if err != nil {
		return nil, err
	}
	kw := " BETWEEN "
	if p.Negate {
		kw = " NOT BETWEEN "
	}
	args = append(append(args, beginArgs...), endArgs...)
	return sq.Expr(col+kw+begin+" AND "+end, args...), nil
}

func (b *build) bound(bd graph.Bound) (string, []any, error) {
	if bd.IsField() {
		return b.subject(bd.Field, bd.Descriptor)
	}
	return "?", []any{b.params.Create(bd.Value)}, nil
}

func (b *build) compareExpression(p *graph.CompareExpression) (sq.Sqlizer, error) {
	col, args, err := b.subject(p.Field, p.Descriptor)
	if err != nil {
		return nil, err
	}
	e, err := b.expression(p.Expression)
	if err != nil || e == nil {
		return nil, err
	}
	return negate(sq.ConcatExpr(sq.Expr(col, args...), " "+string(p.Op)+" ", e), p.Negate), nil
}

func (b *build) compareSet(p *graph.CompareSet) (sq.Sqlizer, error) {
	c := b.child(p.SetRelations)
	var column sq.Sqlizer = sq.Expr("*")
	if p.SetField != nil {
		v, err := c.value(p.SetField, p.SetDescriptor)
		if err != nil {
			return nil, err
		}
		column = v
	}
	sub, err := c.subquery(subquery{
		columns:   column,
		source:    p.SetField,
		sourceD:   p.SetDescriptor,
		filter:    p.SetFilter,
		relations: p.SetRelations,
		sorter:    p.SetSorter,
		groupBy:   p.SetGroupBy,
		limit:     p.Limit,
	})
	if err != nil {
		return nil, err
	}

	if p.Operator == graph.SetExists {
		kw := "EXISTS ("
		if p.Negate {
			kw = "NOT EXISTS ("
		}
		return sq.ConcatExpr(kw, sub, ")"), nil
	}

	col, args, err := b.subject(p.Field, p.Descriptor)
	if err != nil {
		return nil, err
	}
	if p.Operator == graph.SetIn || p.Operator == "" {
		kw := " IN ("
		if p.Negate {
			kw = " NOT IN ("
		}
		return sq.ConcatExpr(sq.Expr(col, args...), kw, sub, ")"), nil
	}
	op := " " + string(p.Operator) + " "
	if p.Quantifier != graph.QuantNone {
		op += string(p.Quantifier) + " "
	}
	return negate(sq.ConcatExpr(sq.Expr(col, args...), op+"(", sub, ")"), p.Negate), nil
}

// member renders ANY as EXISTS over the matching related rows, and ALL as the
// absence of related rows that fail the filter.
func (b *build) member(p *graph.Member) (sq.Sqlizer, error) {
	all := p.Kind == graph.MemberAll
	if all && p.Filter.Len() == 0 {
		return nil, nil
	}
	c := b.child(nil)
	sub, err := c.subquery(subquery{
		columns:      sq.Expr("*"),
		from:         b.Source(p.Target, p.Alias),
		filter:       p.Filter,
		negateFilter: all,
	})
	if err != nil {
		return nil, err
	}
	kw := "EXISTS ("
	if all != p.Negate {
		kw = "NOT EXISTS ("
	}
	return sq.ConcatExpr(kw, sub, ")"), nil
}

func (b *build) aggregateSet(p *graph.AggregateSet) (sq.Sqlizer, error) {
	c := b.child(nil)
	inner, err := c.expression(p.ValueProducer)
	if err != nil {
		return nil, err
	}
	column := aggregate(p.Aggregate, inner)
	if column == nil {
		return nil, fmt.Errorf("aggregate set over %s has nothing to aggregate", p.Source)
	}
	sub, err := c.subquery(subquery{
		columns: column,
		from:    b.Source(p.Source, p.SourceAlias),
		filter:  p.SetFilter,
	})
	if err != nil {
		return nil, err
	}
	op := p.Op
	if op == "" {
		op = graph.CmpEqual
	}
	s := sq.ConcatExpr("(", sub, ") "+string(op)+" ", sq.Expr("?", b.params.Create(p.Value)))
	return negate(s, p.Negate), nil
}

func nullCheck(col string, args []any, not bool) sq.Sqlizer {
	switch {
	case len(args) > 0 && not:
		return sq.Expr(col+" IS NOT NULL", args...)
	case len(args) > 0:
		return sq.Expr(col+" IS NULL", args...)
	case not:
		return sq.NotEq{col: nil}
	}
	return sq.Eq{col: nil}
}

func negate(s sq.Sqlizer, neg bool) sq.Sqlizer {
	if !neg {
		return s
	}
	return sq.ConcatExpr("NOT (", s, ")")
}
