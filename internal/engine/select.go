package engine

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/text/cases"

	"github.com/atlekbai/query_graph/internal/alias"
	"github.com/atlekbai/query_graph/internal/dialect"
	"github.com/atlekbai/query_graph/internal/fragments"
	"github.com/atlekbai/query_graph/internal/graph"
	"github.com/atlekbai/query_graph/internal/param"
	"github.com/atlekbai/query_graph/internal/resolve"
)

// build is the state of one BuildSelect call. Subqueries get a child build
// that shares the walker and factory but resolves aliases against their own
// relations.
type build struct {
	engine  *Engine
	walker  *resolve.Walker
	aliases *alias.Resolver
	params  *param.Factory
}

func (b *build) child(rc *graph.RelationCollection) *build {
	return &build{
		engine:  b.engine,
		walker:  b.walker,
		aliases: alias.New(rc),
		params:  b.params,
	}
}

// statement is the shape shared by the top-level select and derived tables.
type statement struct {
	fields          []*graph.Field
	descriptors     []*graph.Descriptor
	filter          *graph.PredicateExpression
	relations       *graph.RelationCollection
	sorter          *graph.SortExpression
	groupBy         *graph.GroupByCollection
	limit           int64
	allowDuplicates bool

	// nested statements cannot be truncated by the caller, so their limit is
	// always written inline.
	nested bool
}

type rendered struct {
	sql         string
	args        []any
	clientLimit bool
}

// assembler pairs statement fragments with the arguments of the "?" markers
// they contain. Pieces are added in text order so the two stay aligned.
type assembler struct {
	*fragments.Fragments
	args []any
}

func newAssembler() *assembler {
	return &assembler{Fragments: fragments.New()}
}

func (a *assembler) add(s sq.Sqlizer) error {
	if s == nil {
		return nil
	}
	text, args, err := s.ToSql()
	if err != nil {
		return err
	}
	a.Add(text)
	a.args = append(a.args, args...)
	return nil
}

func (a *assembler) sqlizer() sq.Sqlizer {
	return sq.Expr(a.String(), a.args...)
}

// projection records what the select list contains.
type projection struct {
	fold         cases.Caser
	columns      map[string]struct{}
	fields       map[*graph.Field]struct{}
	incompatible bool
	pkSeen       bool
}

func newProjection() *projection {
	return &projection{
		fold:    cases.Fold(),
		columns: make(map[string]struct{}),
		fields:  make(map[*graph.Field]struct{}),
	}
}

func (p *projection) add(d dialect.Dialect, f *graph.Field, desc *graph.Descriptor, column string) {
	p.columns[p.fold.String(column)] = struct{}{}
	p.fields[f] = struct{}{}

	if f.Aggregate != graph.AggNone {
		return
	}
	if d.IsDistinctIncompatible(dataType(f, desc)) {
		p.incompatible = true
	}
	if f.PrimaryKey {
		p.pkSeen = true
	}
}

// has reports whether a sort on f, rendered as column, refers to something
// already selected. A sort on a projection alias shares the projected node.
func (p *projection) has(f *graph.Field, column string) bool {
	if _, ok := p.fields[f]; ok {
		return true
	}
	_, ok := p.columns[p.fold.String(column)]
	return ok
}

func (b *build) dialect() dialect.Dialect { return b.engine.dialect }

func (b *build) selectStatement(s statement) (*rendered, error) {
	a := newAssembler()
	a.Add("SELECT")
	distinct := a.AddPlaceholder()
	top := a.AddPlaceholder()
	columns := a.AddCommaList(false)

	proj := newProjection()
	for i, f := range s.fields {
		d := b.describe(f, descriptorAt(s.descriptors, i))
		text, args, err := toSQL(b.value(f, d))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		proj.add(b.dialect(), f, d, text)
		if as := projectionAlias(f); as != "" {
			text += " AS " + b.dialect().Quote(as)
		}
		columns.Add(text)
		a.args = append(a.args, args...)
	}

	a.Add("FROM")
	if err := b.from(a, s); err != nil {
		return nil, err
	}
	if err := b.where(a, s.filter, false); err != nil {
		return nil, err
	}
	if err := b.groupBy(a, s.groupBy); err != nil {
		return nil, err
	}
	sortKeys, err := b.orderBy(a, s.sorter)
	if err != nil {
		return nil, err
	}
	suffix := a.AddPlaceholder()

	fanOut := s.relations.Len() > 0
	emitted := b.emitDistinct(s, proj, sortKeys, fanOut)
	if emitted {
		distinct.Set("DISTINCT")
	}

	clientLimit := false
	if s.limit > 0 {
		if s.nested || emitted || !fanOut || s.groupBy.Len() > 0 || s.allowDuplicates {
			if b.dialect().Limit == dialect.LimitTop {
				top.Set(b.dialect().LimitClause(s.limit))
			} else {
				suffix.Set(b.dialect().LimitClause(s.limit))
			}
		} else {
			clientLimit = true
		}
	}
	b.engine.logger.Debug("select decisions",
		"distinct", emitted,
		"fan_out", fanOut,
		"limit", s.limit,
		"client_side_limit", clientLimit,
		"nested", s.nested,
	)

	return &rendered{sql: a.String(), args: a.args, clientLimit: clientLimit}, nil
}

type sortKey struct {
	field  *graph.Field
	column string
}

func (b *build) emitDistinct(s statement, p *projection, keys []sortKey, fanOut bool) bool {
	switch {
	case s.allowDuplicates, p.incompatible:
		return false
	case p.pkSeen && !fanOut:
		return false
	}
	for _, k := range keys {
		if !p.has(k.field, k.column) {
			return false
		}
	}
	return true
}

// from writes the join text when relations are present, the first field's
// object otherwise.
func (b *build) from(a *assembler, s statement) error {
	if s.relations.Len() > 0 {
		joins, err := b.engine.joins.Joins(s.relations, b)
		if err != nil {
			return fmt.Errorf("render joins: %w", err)
		}
		return a.add(joins)
	}
	f := s.fields[0]
	d := b.describe(f, descriptorAt(s.descriptors, 0))
	a.Add(b.Source(b.Object(f, d), b.aliases.Resolve(f.Object, f.ObjectAlias, f.ActualObject)))
	return nil
}

func (b *build) where(a *assembler, filter *graph.PredicateExpression, negate bool) error {
	if filter.Len() == 0 {
		return nil
	}
	s, err := b.Filter(filter)
	if err != nil || s == nil {
		return err
	}
	if negate {
		s = sq.ConcatExpr("NOT ", s)
	}
	a.Add("WHERE")
	return a.add(s)
}

func (b *build) groupBy(a *assembler, g *graph.GroupByCollection) error {
	if g.Len() == 0 {
		return nil
	}
	a.Add("GROUP BY")
	list := a.AddCommaList(true)
	for i, f := range g.Fields {
		text, args, err := toSQL(b.value(f, b.describe(f, descriptorAt(g.Descriptors, i))))
		if err != nil {
			return fmt.Errorf("group by %s: %w", f.Name, err)
		}
		n := list.Len()
		list.Add(text)
		if list.Len() > n {
			a.args = append(a.args, args...)
		}
	}
	if g.Having.Len() == 0 {
		return nil
	}
	having, err := b.Filter(g.Having)
	if err != nil || having == nil {
		return err
	}
	a.Add("HAVING")
	return a.add(having)
}

func (b *build) orderBy(a *assembler, s *graph.SortExpression) ([]sortKey, error) {
	if s.Len() == 0 {
		return nil, nil
	}
	var keys []sortKey
	a.Add("ORDER BY")
	list := a.AddCommaList(false)
	for _, c := range s.Clauses {
		if c == nil || c.Field == nil {
			continue
		}
		text, args, err := toSQL(b.value(c.Field, b.describe(c.Field, c.Descriptor)))
		if err != nil {
			return nil, fmt.Errorf("order by %s: %w", c.Field.Name, err)
		}
		keys = append(keys, sortKey{field: c.Field, column: text})
		dir := c.Direction
		if dir == "" {
			dir = graph.Ascending
		}
		list.Add(text + " " + string(dir))
		a.args = append(a.args, args...)
	}
	return keys, nil
}

// describe returns d, or the walker's descriptor for f when d is missing.
func (b *build) describe(f *graph.Field, d *graph.Descriptor) *graph.Descriptor {
	if d != nil {
		return d
	}
	return b.walker.Resolve(f)
}

// value renders f as a value: its expression or its column, wrapped in its
// aggregate function.
func (b *build) value(f *graph.Field, d *graph.Descriptor) (sq.Sqlizer, error) {
	var inner sq.Sqlizer
	if f.Expression != nil {
		e, err := b.expression(f.Expression)
		if err != nil {
			return nil, err
		}
		inner = e
	}
	if inner == nil {
		inner = sq.Expr(b.Column(f, b.describe(f, d), f.ObjectAlias))
	}
	return aggregate(f.Aggregate, inner), nil
}

// Column renders owner.[column]. The owner is the alias governing the field's
// physical object, or the object itself when no alias is in effect.
func (b *build) Column(f *graph.Field, d *graph.Descriptor, given string) string {
	owner := b.aliases.Resolve(f.Object, given, f.ActualObject)
	if owner == "" {
		owner = f.Owner()
		if d != nil && d.Object != "" {
			owner = d.Object
		}
	}
	name := f.Name
	if d != nil && d.Column != "" {
		name = d.Column
	}
	return owner + "." + b.dialect().Quote(name)
}

// Object returns the catalog-qualified name of the object defining f.
func (b *build) Object(f *graph.Field, d *graph.Descriptor) string {
	if d == nil {
		return f.Object
	}
	q := graph.Descriptor{Catalog: d.Catalog, Schema: d.Schema, Object: f.Object}
	return q.QualifiedObject()
}

// Source renders object, aliased when alias differs from it.
func (b *build) Source(object, alias string) string {
	if alias == "" || alias == object {
		return object
	}
	return object + " AS " + b.dialect().Quote(alias)
}

// Dialect returns the dialect being rendered.
func (b *build) Dialect() dialect.Dialect { return b.dialect() }

// DerivedTable renders dt as a parenthesized, aliased subquery.
func (b *build) DerivedTable(dt *graph.DerivedTable) (sq.Sqlizer, error) {
	if len(dt.Fields) == 0 {
		return nil, &ValidationError{Field: dt.Alias, Reason: "derived table selects no fields"}
	}
	if err := validateGroupBy(dt.Fields, dt.GroupBy); err != nil {
		return nil, err
	}
	st, err := b.child(dt.Relations).selectStatement(statement{
		fields:          dt.Fields,
		descriptors:     dt.Descriptors,
		filter:          dt.Filter,
		relations:       dt.Relations,
		sorter:          dt.Sorter,
		groupBy:         dt.GroupBy,
		limit:           dt.Limit,
		allowDuplicates: dt.AllowDuplicates,
		nested:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("derived table %s: %w", dt.Alias, err)
	}
	return sq.ConcatExpr("(", sq.Expr(st.sql, st.args...), ") AS "+b.dialect().Quote(dt.Alias)), nil
}

func projectionAlias(f *graph.Field) string {
	if f.Expression != nil {
		if f.Alias != "" {
			return f.Alias
		}
		return f.Name
	}
	if f.Alias != f.Name {
		return f.Alias
	}
	return ""
}

func aggregate(fn graph.AggregateFunction, inner sq.Sqlizer) sq.Sqlizer {
	switch fn {
	case graph.AggNone:
		return inner
	case graph.AggCountRow:
		return sq.Expr("COUNT(*)")
	}
	if inner == nil {
		inner = sq.Expr("*")
	}
	if fn == graph.AggCountDistinct {
		return sq.ConcatExpr("COUNT(DISTINCT ", inner, ")")
	}
	return sq.ConcatExpr(string(fn)+"(", inner, ")")
}

func dataType(f *graph.Field, d *graph.Descriptor) string {
	if d != nil && d.DataType != "" {
		return d.DataType
	}
	return f.DataType
}

func descriptorAt(ds []*graph.Descriptor, i int) *graph.Descriptor {
	if i < len(ds) {
		return ds[i]
	}
	return nil
}

func toSQL(s sq.Sqlizer, err error) (string, []any, error) {
	if err != nil {
		return "", nil, err
	}
	if s == nil {
		return "", nil, nil
	}
	return s.ToSql()
}
