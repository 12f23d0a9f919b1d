package resolve

import "github.com/atlekbai/query_graph/internal/graph"

// Walker annotates a query graph in place, attaching a descriptor to every
// field slot it reaches.
//
// A walker is good for one pass: fields reachable over several paths are
// resolved once (memo), and composite nodes are entered once (seen). Every
// entry point accepts nil.
type Walker struct {
	resolver *Resolver
	memo     map[*graph.Field]*graph.Descriptor
	seen     map[any]struct{}
}

// Resolved returns the number of distinct fields resolved so far.
func (w *Walker) Resolved() int { return len(w.memo) }

// Resolve returns the descriptor of f, resolving it at most once per walk.
func (w *Walker) Resolve(f *graph.Field) *graph.Descriptor {
	if f == nil {
		return nil
	}
	if d, ok := w.memo[f]; ok {
		return d
	}
	w.Expression(f.Expression)

	d := f.Descriptor
	if !f.SelfDescribing() {
		d = w.resolver.describe(f)
	}
	w.memo[f] = d
	return d
}

// Fields resolves fs and returns their descriptors in order.
func (w *Walker) Fields(fs []*graph.Field) []*graph.Descriptor {
	out := make([]*graph.Descriptor, len(fs))
	for i, f := range fs {
		out[i] = w.Resolve(f)
	}
	return out
}

func (w *Walker) enter(node any) bool {
	if _, ok := w.seen[node]; ok {
		return false
	}
	w.seen[node] = struct{}{}
	return true
}

// attach stores d in slot unless the slot already holds an equal descriptor,
// so a second walk leaves the graph untouched.
func (w *Walker) attach(slot **graph.Descriptor, f *graph.Field) {
	if f == nil {
		return
	}
	d := w.Resolve(f)
	if *slot != nil && d != nil && **slot == *d {
		return
	}
	*slot = d
}

// attachIfAbsent keeps a caller-supplied descriptor.
func (w *Walker) attachIfAbsent(slot **graph.Descriptor, f *graph.Field) {
	if *slot != nil || f == nil {
		return
	}
	*slot = w.Resolve(f)
}

// PredicateExpression walks every predicate of e, skipping operators.
func (w *Walker) PredicateExpression(e *graph.PredicateExpression) {
	if e == nil || !w.enter(e) {
		return
	}
	for _, el := range e.Elements {
		p, ok := el.(graph.Predicate)
		if !ok {
			continue
		}
		w.Predicate(p)
	}
}

// Predicate dispatches on the predicate kind. Unknown kinds are skipped.
func (w *Walker) Predicate(p graph.Predicate) {
	switch p := p.(type) {
	case *graph.PredicateExpression:
		w.PredicateExpression(p)
	case *graph.CompareValue:
		w.attachIfAbsent(&p.Descriptor, p.Field)
	case *graph.CompareNull:
		w.attachIfAbsent(&p.Descriptor, p.Field)
	case *graph.Like:
		w.attachIfAbsent(&p.Descriptor, p.Field)
	case *graph.CompareRange:
		w.attachIfAbsent(&p.Descriptor, p.Field)
	case *graph.FullTextSearch:
		w.attachIfAbsent(&p.Descriptor, p.Field)
	case *graph.Between:
		w.attachIfAbsent(&p.Descriptor, p.Field)
		if p.Begin.IsField() {
			w.attachIfAbsent(&p.Begin.Descriptor, p.Begin.Field)
		}
		if p.End.IsField() {
			w.attachIfAbsent(&p.End.Descriptor, p.End.Field)
		}
	case *graph.CompareExpression:
		w.attachIfAbsent(&p.Descriptor, p.Field)
		w.Expression(p.Expression)
	case *graph.CompareSet:
		w.attachIfAbsent(&p.Descriptor, p.Field)
		w.attachIfAbsent(&p.SetDescriptor, p.SetField)
		w.PredicateExpression(p.SetFilter)
		w.Relations(p.SetRelations)
		w.Sorter(p.SetSorter)
		w.GroupBy(p.SetGroupBy)
	case *graph.Member:
		w.PredicateExpression(p.Filter)
	case *graph.AggregateSet:
		w.PredicateExpression(p.SetFilter)
		w.Expression(p.ValueProducer)
	}
}

// Expression walks both operand slots of e.
func (w *Walker) Expression(e *graph.Expression) {
	if e == nil || !w.enter(e) {
		return
	}
	w.operand(e.Left)
	w.operand(e.Right)
}

func (w *Walker) operand(op graph.Operand) {
	switch o := op.(type) {
	case *graph.ExprOperand:
		w.Expression(o.Expr)
	case *graph.FieldOperand:
		w.attach(&o.Descriptor, o.Field)
	case *graph.FunctionOperand:
		w.FunctionCall(o.Call)
	case *graph.ScalarQueryOperand:
		w.ScalarQuery(o.Query)
	}
}

// FunctionCall walks every parameter of c.
func (w *Walker) FunctionCall(c *graph.FunctionCall) {
	if c == nil || !w.enter(c) {
		return
	}
	for _, p := range c.Params {
		w.operand(p)
	}
}

// ScalarQuery walks a scalar subquery. Only a field select target is resolved;
// its descriptor is attached last, as a private copy.
func (w *Walker) ScalarQuery(q *graph.ScalarQuery) {
	if q == nil || !w.enter(q) {
		return
	}
	fo, isField := q.Select.(*graph.FieldOperand)
	isField = isField && fo.Field != nil
	if isField {
		w.Resolve(fo.Field)
	}
	w.PredicateExpression(q.Filter)
	w.Relations(q.Relations)
	w.Sorter(q.Sorter)
	w.GroupBy(q.GroupBy)

	if !isField {
		return
	}
	d := w.Resolve(fo.Field)
	if q.SelectDescriptor != nil && d != nil && *q.SelectDescriptor == *d {
		return
	}
	q.SelectDescriptor = d.Clone()
}

// Relations walks entity and dynamic relations.
func (w *Walker) Relations(rc *graph.RelationCollection) {
	if rc == nil || !w.enter(rc) {
		return
	}
	for _, r := range rc.Relations {
		switch r := r.(type) {
		case *graph.EntityRelation:
			for i := range r.Pairs {
				w.attach(&r.Pairs[i].FKDescriptor, r.Pairs[i].FK)
				w.attach(&r.Pairs[i].PKDescriptor, r.Pairs[i].PK)
			}
			w.PredicateExpression(r.CustomFilter)
			w.inheritance(r.InheritancePKSide)
			w.inheritance(r.InheritanceFKSide)
		case *graph.DynamicRelation:
			w.joinSide(r.Left)
			w.joinSide(r.Right)
			w.PredicateExpression(r.OnClause)
		}
	}
}

func (w *Walker) inheritance(info *graph.InheritanceInfo) {
	if info == nil {
		return
	}
	w.Relations(info.RelationsToHierarchyRoot)
}

func (w *Walker) joinSide(s *graph.JoinSide) {
	if s == nil {
		return
	}
	if s.IsDerivedTable() {
		w.DerivedTable(s.Derived)
		return
	}
	w.attach(&s.Descriptor, s.Field)
	w.inheritance(s.Inheritance)
}

// DerivedTable walks the fields and clauses of a derived table.
func (w *Walker) DerivedTable(dt *graph.DerivedTable) {
	if dt == nil || !w.enter(dt) {
		return
	}
	dt.Descriptors = fit(dt.Descriptors, len(dt.Fields))
	for i, f := range dt.Fields {
		w.attach(&dt.Descriptors[i], f)
	}
	w.PredicateExpression(dt.Filter)
	w.GroupBy(dt.GroupBy)
	w.Relations(dt.Relations)
	w.Sorter(dt.Sorter)
}

// Sorter attaches a descriptor to every sort clause.
func (w *Walker) Sorter(s *graph.SortExpression) {
	if s == nil {
		return
	}
	for _, c := range s.Clauses {
		if c == nil {
			continue
		}
		w.attach(&c.Descriptor, c.Field)
	}
}

// GroupBy attaches a descriptor to every grouping field and walks HAVING.
func (w *Walker) GroupBy(g *graph.GroupByCollection) {
	if g == nil {
		return
	}
	g.Descriptors = fit(g.Descriptors, len(g.Fields))
	for i, f := range g.Fields {
		w.attach(&g.Descriptors[i], f)
	}
	w.PredicateExpression(g.Having)
}

func fit(ds []*graph.Descriptor, n int) []*graph.Descriptor {
	if len(ds) >= n {
		return ds[:n]
	}
	return append(ds, make([]*graph.Descriptor, n-len(ds))...)
}
