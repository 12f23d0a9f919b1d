package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"

	"github.com/atlekbai/query_graph/internal/engine"
	"github.com/atlekbai/query_graph/internal/graph"
)

// Request converts the document into a select request. Plain field
// references that name the same field share one graph node.
func (d *Document) Request() (engine.SelectRequest, error) {
	b := &builder{fields: make(map[string]*graph.Field)}
	req := engine.SelectRequest{
		Limit:           d.Limit,
		AllowDuplicates: d.AllowDuplicates,
	}
	if len(d.Select) == 0 {
		return req, fmt.Errorf("select: no columns")
	}

	for i, c := range d.Select {
		f, err := b.column(c)
		if err != nil {
			return req, fmt.Errorf("select[%d]: %w", i, err)
		}
		req.Fields = append(req.Fields, f)
	}

	rels, err := b.joins(d.Joins)
	if err != nil {
		return req, err
	}
	req.Relations = rels

	if d.Where != nil {
		if req.Filter, err = b.filter(*d.Where); err != nil {
			return req, fmt.Errorf("where: %w", err)
		}
	}

	if len(d.GroupBy) > 0 {
		req.GroupBy = &graph.GroupByCollection{}
		for i, ref := range d.GroupBy {
			f, err := b.field(ref)
			if err != nil {
				return req, fmt.Errorf("group_by[%d]: %w", i, err)
			}
			req.GroupBy.Fields = append(req.GroupBy.Fields, f)
		}
	}
	if d.Having != nil {
		if req.GroupBy == nil {
			return req, fmt.Errorf("having: no group_by")
		}
		if req.GroupBy.Having, err = b.filter(*d.Having); err != nil {
			return req, fmt.Errorf("having: %w", err)
		}
	}

	if len(d.OrderBy) > 0 {
		req.Sorter = &graph.SortExpression{}
		for i, o := range d.OrderBy {
			f, err := b.sortField(o.Field)
			if err != nil {
				return req, fmt.Errorf("order_by[%d]: %w", i, err)
			}
			clause := graph.Asc(f)
			if o.Desc {
				clause = graph.Desc(f)
			}
			req.Sorter.Clauses = append(req.Sorter.Clauses, clause)
		}
	}
	return req, nil
}

type builder struct {
	fields  map[string]*graph.Field
	columns []*graph.Field // select list, for sorting on projection aliases
}

func (b *builder) field(ref FieldRef) (*graph.Field, error) {
	if ref.Object == "" || ref.Name == "" {
		return nil, fmt.Errorf("field reference needs an object and a name")
	}
	key := ref.In + "|" + ref.Object + "|" + ref.Name
	if f, ok := b.fields[key]; ok {
		if f.DataType == "" {
			f.DataType = ref.Type
		}
		f.PrimaryKey = f.PrimaryKey || ref.PrimaryKey
		return f, nil
	}
	f := graph.NewField(ref.Object, ref.Name, ref.Type).In(ref.In)
	f.PrimaryKey = ref.PrimaryKey
	b.fields[key] = f
	return f, nil
}

// sortField resolves a bare name against the select list aliases first.
func (b *builder) sortField(ref FieldRef) (*graph.Field, error) {
	if ref.Object == "" {
		for _, c := range b.columns {
			if c.Alias != "" && strings.EqualFold(c.Alias, ref.Name) {
				return c, nil
			}
		}
	}
	return b.field(ref)
}

func (b *builder) column(c Column) (*graph.Field, error) {
	if c.Function != "" {
		f, err := b.function(c)
		if err != nil {
			return nil, err
		}
		b.columns = append(b.columns, f)
		return f, nil
	}
	base, err := b.field(c.Field)
	if err != nil {
		return nil, err
	}
	agg, err := aggregateFunction(c.Aggregate)
	if err != nil {
		return nil, err
	}
	if c.As == "" && agg == graph.AggNone {
		b.columns = append(b.columns, base)
		return base, nil
	}
	f := *base
	f.Alias = c.As
	f.Aggregate = agg
	b.columns = append(b.columns, &f)
	return &f, nil
}

func (b *builder) function(c Column) (*graph.Field, error) {
	if c.Field.Object == "" {
		return nil, fmt.Errorf("function %s needs field.object to attribute it to", c.Function)
	}
	params := make([]graph.Operand, 0, len(c.Args))
	for i, a := range c.Args {
		switch {
		case a.Field != nil:
			f, err := b.field(*a.Field)
			if err != nil {
				return nil, fmt.Errorf("args[%d]: %w", i, err)
			}
			params = append(params, graph.FieldOp(f))
		default:
			params = append(params, graph.ValueOp(a.Value))
		}
	}
	name := c.As
	if name == "" {
		name = strings.ToLower(c.Function)
	}
	agg, err := aggregateFunction(c.Aggregate)
	if err != nil {
		return nil, err
	}
	return &graph.Field{
		Object:      c.Field.Object,
		ObjectAlias: c.Field.In,
		Name:        name,
		Alias:       c.As,
		DataType:    c.Field.Type,
		Aggregate:   agg,
		Expression:  graph.NewExpression(graph.CallOp(graph.Call(strings.ToUpper(c.Function), params...)), graph.ExNone, nil),
	}, nil
}

func (b *builder) joins(js []Join) (*graph.RelationCollection, error) {
	if len(js) == 0 {
		return nil, nil
	}
	rc := graph.NewRelationCollection()
	for i, j := range js {
		pk, err := b.field(j.PK)
		if err != nil {
			return nil, fmt.Errorf("joins[%d].pk: %w", i, err)
		}
		fk, err := b.field(j.FK)
		if err != nil {
			return nil, fmt.Errorf("joins[%d].fk: %w", i, err)
		}
		hint, err := joinHint(j.Type)
		if err != nil {
			return nil, fmt.Errorf("joins[%d]: %w", i, err)
		}
		rel := graph.NewEntityRelation(pk, fk, hint)
		rel.StartAtFK = j.StartAtFK
		rc.Add(rel)
	}
	return rc, nil
}

func (b *builder) filter(c Condition) (*graph.PredicateExpression, error) {
	p, err := b.condition(c)
	if err != nil {
		return nil, err
	}
	if e, ok := p.(*graph.PredicateExpression); ok {
		return e, nil
	}
	return graph.NewPredicateExpression(p), nil
}

func (b *builder) condition(c Condition) (graph.Predicate, error) {
	switch {
	case len(c.All) > 0 && len(c.Any) > 0:
		return nil, fmt.Errorf("condition sets both all and any")
	case len(c.All) > 0:
		return b.group(c.All, graph.OpAnd, c.Not, "all")
	case len(c.Any) > 0:
		return b.group(c.Any, graph.OpOr, c.Not, "any")
	case c.Exists != nil:
		return b.exists(c)
	}
	if c.Field == nil {
		return nil, fmt.Errorf("condition has neither a group nor a field")
	}
	f, err := b.field(*c.Field)
	if err != nil {
		return nil, err
	}

	tests := 0
	for _, set := range []bool{c.Op != "", c.Like != nil, c.In != nil, c.Between != nil, c.IsNull != nil, c.Search != nil, c.InQuery != nil} {
		if set {
			tests++
		}
	}
	if tests != 1 {
		return nil, fmt.Errorf("condition on %s must set exactly one of op, like, in, between, is_null, search, in_query", c.Field)
	}

	switch {
	case c.IsNull != nil:
		return &graph.CompareNull{Field: f, Negate: *c.IsNull == c.Not}, nil
	case c.Like != nil:
		return &graph.Like{Field: f, Pattern: *c.Like, Negate: c.Not}, nil
	case c.Search != nil:
		op := graph.FullTextContains
		switch strings.ToLower(c.Search.Mode) {
		case "", "contains":
		case "freetext":
			op = graph.FullTextFreetext
		default:
			return nil, fmt.Errorf("unknown search mode %q", c.Search.Mode)
		}
		return &graph.FullTextSearch{Field: f, Operator: op, Pattern: c.Search.Pattern, Negate: c.Not}, nil
	case c.In != nil:
		values := make([]any, len(c.In))
		for i, v := range c.In {
			if values[i], err = typedValue(v, c.Type); err != nil {
				return nil, err
			}
		}
		return &graph.CompareRange{Field: f, Values: values, Negate: c.Not}, nil
	case c.Between != nil:
		if len(c.Between) != 2 {
			return nil, fmt.Errorf("between on %s needs two values", c.Field)
		}
		lo, err := typedValue(c.Between[0], c.Type)
		if err != nil {
			return nil, err
		}
		hi, err := typedValue(c.Between[1], c.Type)
		if err != nil {
			return nil, err
		}
		return &graph.Between{Field: f, Begin: graph.Bound{Value: lo}, End: graph.Bound{Value: hi}, Negate: c.Not}, nil
	case c.InQuery != nil:
		return b.inQuery(f, c)
	}

	op, err := comparison(c.Op)
	if err != nil {
		return nil, err
	}
	if c.Other != nil {
		other, err := b.field(*c.Other)
		if err != nil {
			return nil, err
		}
		return &graph.CompareExpression{
			Field:      f,
			Op:         op,
			Expression: graph.NewExpression(graph.FieldOp(other), graph.ExNone, nil),
			Negate:     c.Not,
		}, nil
	}
	v, err := typedValue(c.Value, c.Type)
	if err != nil {
		return nil, err
	}
	return &graph.CompareValue{Field: f, Op: op, Value: v, Negate: c.Not}, nil
}

func (b *builder) group(cs []Condition, op graph.Operator, not bool, name string) (graph.Predicate, error) {
	e := &graph.PredicateExpression{Negate: not}
	for i, c := range cs {
		p, err := b.condition(c)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		if op == graph.OpOr {
			e.Or(p)
		} else {
			e.And(p)
		}
	}
	return e, nil
}

func (b *builder) subquery(q *SubQuery) (*graph.Field, *graph.PredicateExpression, *graph.RelationCollection, error) {
	f, err := b.field(q.Select)
	if err != nil {
		return nil, nil, nil, err
	}
	rels, err := b.joins(q.Joins)
	if err != nil {
		return nil, nil, nil, err
	}
	var filter *graph.PredicateExpression
	if q.Where != nil {
		if filter, err = b.filter(*q.Where); err != nil {
			return nil, nil, nil, err
		}
	}
	return f, filter, rels, nil
}

func (b *builder) inQuery(f *graph.Field, c Condition) (graph.Predicate, error) {
	sf, filter, rels, err := b.subquery(c.InQuery)
	if err != nil {
		return nil, fmt.Errorf("in_query: %w", err)
	}
	return &graph.CompareSet{
		Field:        f,
		Operator:     graph.SetIn,
		SetField:     sf,
		SetFilter:    filter,
		SetRelations: rels,
		Limit:        c.InQuery.Limit,
		Negate:       c.Not,
	}, nil
}

func (b *builder) exists(c Condition) (graph.Predicate, error) {
	sf, filter, rels, err := b.subquery(c.Exists)
	if err != nil {
		return nil, fmt.Errorf("exists: %w", err)
	}
	return &graph.CompareSet{
		Operator:     graph.SetExists,
		SetField:     sf,
		SetFilter:    filter,
		SetRelations: rels,
		Limit:        c.Exists.Limit,
		Negate:       c.Not,
	}, nil
}

var comparisons = map[string]graph.ComparisonOp{
	"=":  graph.CmpEqual,
	"==": graph.CmpEqual,
	"<>": graph.CmpNotEqual,
	"!=": graph.CmpNotEqual,
	">":  graph.CmpGreater,
	">=": graph.CmpGreaterEqual,
	"<":  graph.CmpLesser,
	"<=": graph.CmpLesserEqual,
}

func comparison(op string) (graph.ComparisonOp, error) {
	if c, ok := comparisons[op]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown comparison operator %q", op)
}

func aggregateFunction(name string) (graph.AggregateFunction, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "":
		return graph.AggNone, nil
	case "COUNT":
		return graph.AggCount, nil
	case "COUNT DISTINCT", "COUNT_DISTINCT":
		return graph.AggCountDistinct, nil
	case "COUNT(*)", "COUNT_ROWS":
		return graph.AggCountRow, nil
	case "SUM":
		return graph.AggSum, nil
	case "AVG":
		return graph.AggAvg, nil
	case "MIN":
		return graph.AggMin, nil
	case "MAX":
		return graph.AggMax, nil
	}
	return "", fmt.Errorf("unknown aggregate %q", name)
}

func joinHint(t string) (graph.JoinHint, error) {
	switch strings.ToUpper(t) {
	case "", "INNER":
		return graph.JoinInner, nil
	case "LEFT":
		return graph.JoinLeft, nil
	case "RIGHT":
		return graph.JoinRight, nil
	case "CROSS":
		return graph.JoinCross, nil
	}
	return "", fmt.Errorf("unknown join type %q", t)
}

// typedValue converts a decoded literal according to a type hint.
func typedValue(v any, hint string) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch strings.ToLower(hint) {
	case "":
		return v, nil
	case "decimal":
		d, _, err := apd.NewFromString(fmt.Sprint(v))
		if err != nil {
			return nil, fmt.Errorf("decimal %v: %w", v, err)
		}
		return d, nil
	case "uuid":
		id, err := uuid.Parse(fmt.Sprint(v))
		if err != nil {
			return nil, fmt.Errorf("uuid %v: %w", v, err)
		}
		return id, nil
	case "datetime":
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		t, err := time.Parse(time.RFC3339, fmt.Sprint(v))
		if err != nil {
			return nil, fmt.Errorf("datetime %v: %w", v, err)
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown value type %q", hint)
}
