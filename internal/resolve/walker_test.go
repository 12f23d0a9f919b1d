package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/query_graph/internal/graph"
)

type mapCatalog map[string]*graph.Descriptor

func (c mapCatalog) LookupColumn(object, column string) (*graph.Descriptor, bool) {
	d, ok := c[object+"."+column]
	return d, ok
}

func TestResolveSelfDescribing(t *testing.T) {
	d := &graph.Descriptor{Object: "tbl_customer", Column: "cust_name", DataType: "NVarChar"}
	f := &graph.Field{Object: "Customer", Name: "Name", Descriptor: d}

	assert.Same(t, d, New(nil).Resolve(f))
}

func TestResolveSynthesizes(t *testing.T) {
	f := &graph.Field{Object: "Manager", ActualObject: "Employee", Name: "Name", DataType: "NVarChar", MaxLength: 50, Nullable: true}

	d := New(nil).Resolve(f)
	require.NotNil(t, d)
	assert.Equal(t, graph.Descriptor{
		Object:   "Employee",
		Column:   "Name",
		Nullable: true,
		Size:     50,
		DataType: "NVarChar",
	}, *d)
}

func TestResolveWithCatalog(t *testing.T) {
	cat := mapCatalog{
		"Customer.Name": {Catalog: "shop", Schema: "dbo", Object: "Customer", Column: "Name", DataType: "VarChar", Size: 80},
	}
	r := New(cat)

	d := r.Resolve(graph.NewField("Customer", "Name", ""))
	assert.Equal(t, "shop.dbo.Customer", d.QualifiedObject())
	assert.Equal(t, "VarChar", d.DataType)
	assert.Equal(t, 80, d.Size)

	// declared metadata on the field wins over the catalog
	d = r.Resolve(graph.NewField("Customer", "Name", "NVarChar"))
	assert.Equal(t, "NVarChar", d.DataType)

	// unknown columns keep empty catalog and schema
	d = r.Resolve(graph.NewField("Customer", "Missing", "Int"))
	assert.Empty(t, d.Catalog)
	assert.Empty(t, d.Schema)
	assert.Equal(t, "Customer", d.Object)
}

func TestResolveWalksFieldExpression(t *testing.T) {
	a := graph.NewField("T", "A", "Int")
	op := graph.FieldOp(a)
	f := &graph.Field{Object: "T", Name: "Double", Expression: graph.NewExpression(op, graph.ExMul, graph.ValueOp(2))}

	w := New(nil).NewWalker()
	w.Resolve(f)
	require.NotNil(t, op.Descriptor)
	assert.Equal(t, "A", op.Descriptor.Column)
	assert.Equal(t, 2, w.Resolved())
}

// sampleGraph touches every node kind the walker knows about.
type sampleGraph struct {
	filter    *graph.PredicateExpression
	relations *graph.RelationCollection
	sorter    *graph.SortExpression
	groupBy   *graph.GroupByCollection
	scalar    *graph.ScalarQuery
	derived   *graph.DerivedTable
	set       *graph.CompareSet
	between   *graph.Between
	pair      *graph.EntityRelation
}

func newSampleGraph() *sampleGraph {
	cID := graph.NewField("Customer", "Id", "Int")
	cName := graph.NewField("Customer", "Name", "NVarChar")
	oID := graph.NewField("Order", "Id", "Int")
	oCust := graph.NewField("Order", "CustomerId", "Int")
	oTotal := graph.NewField("Order", "Total", "Decimal")
	empID := graph.NewField("Employee", "Id", "Int")
	mgrID := graph.NewField("Manager", "Id", "Int")

	scalar := &graph.ScalarQuery{
		Select:    graph.FieldOp(oTotal),
		Aggregate: graph.AggAvg,
		Filter:    graph.NewPredicateExpression(graph.Cmp(oTotal, graph.CmpGreater, 0)),
	}
	set := &graph.CompareSet{
		Field:     cID,
		SetField:  oCust,
		Operator:  graph.SetIn,
		SetFilter: graph.NewPredicateExpression(graph.IsNull(oID)),
	}
	between := &graph.Between{
		Field: oTotal,
		Begin: graph.Bound{Value: 1},
		End:   graph.Bound{Field: oID},
	}
	derived := graph.NewDerivedTable("o", oCust, oTotal)
	derived.GroupBy = graph.NewGroupBy(oCust)

	pair := graph.NewEntityRelation(cID, oCust, graph.JoinInner)
	pair.InheritancePKSide = &graph.InheritanceInfo{
		Entity:                   "Manager",
		RelationsToHierarchyRoot: graph.NewRelationCollection(graph.NewEntityRelation(empID, mgrID, graph.JoinInner)),
	}
	dyn := &graph.DynamicRelation{
		Left:     &graph.JoinSide{Field: cID},
		Right:    &graph.JoinSide{Derived: derived},
		Hint:     graph.JoinLeft,
		OnClause: graph.NewPredicateExpression(graph.Eq(cName, "x")),
	}

	filter := graph.NewPredicateExpression(
		&graph.CompareExpression{Field: oTotal, Op: graph.CmpGreater, Expression: graph.NewExpression(graph.QueryOp(scalar), graph.ExNone, nil)},
		set,
		between,
		&graph.Member{Kind: graph.MemberAny, Target: "Order", Filter: graph.NewPredicateExpression(graph.LikePattern(cName, "a%"))},
		&graph.AggregateSet{Aggregate: graph.AggSum, ValueProducer: graph.NewExpression(graph.FieldOp(oTotal), graph.ExNone, nil), Source: "Order"},
	)
	filter.Or(graph.NewPredicateExpression(graph.In(cID, 1, 2)))

	return &sampleGraph{
		filter:    filter,
		relations: graph.NewRelationCollection(pair, dyn),
		sorter:    graph.NewSortExpression(graph.Desc(oTotal)),
		groupBy:   &graph.GroupByCollection{Fields: []*graph.Field{cName}, Having: graph.NewPredicateExpression(graph.Eq(cName, "y"))},
		scalar:    scalar,
		derived:   derived,
		set:       set,
		between:   between,
		pair:      pair,
	}
}

func (g *sampleGraph) walk(r *Resolver) {
	w := r.NewWalker()
	w.PredicateExpression(g.filter)
	w.Relations(g.relations)
	w.Sorter(g.sorter)
	w.GroupBy(g.groupBy)
}

func TestWalkAttachesEverywhere(t *testing.T) {
	g := newSampleGraph()
	g.walk(New(nil))

	assert.NotNil(t, g.set.Descriptor)
	assert.NotNil(t, g.set.SetDescriptor)
	assert.NotNil(t, g.between.Descriptor)
	assert.Nil(t, g.between.Begin.Descriptor, "value bounds have no field")
	assert.NotNil(t, g.between.End.Descriptor)
	assert.NotNil(t, g.pair.Pairs[0].PKDescriptor)
	assert.NotNil(t, g.pair.Pairs[0].FKDescriptor)

	hier := g.pair.InheritancePKSide.RelationsToHierarchyRoot.Relations[0].(*graph.EntityRelation)
	assert.NotNil(t, hier.Pairs[0].PKDescriptor)

	require.Len(t, g.derived.Descriptors, 2)
	assert.NotNil(t, g.derived.Descriptors[1])
	require.Len(t, g.derived.GroupBy.Descriptors, 1)
	assert.NotNil(t, g.sorter.Clauses[0].Descriptor)
	assert.NotNil(t, g.groupBy.Descriptors[0])

	require.NotNil(t, g.scalar.SelectDescriptor)
	assert.Equal(t, "Total", g.scalar.SelectDescriptor.Column)
}

func TestWalkIsIdempotent(t *testing.T) {
	g := newSampleGraph()
	r := New(nil)
	g.walk(r)

	before := []*graph.Descriptor{
		g.set.Descriptor,
		g.between.End.Descriptor,
		g.pair.Pairs[0].PKDescriptor,
		g.derived.Descriptors[0],
		g.sorter.Clauses[0].Descriptor,
		g.groupBy.Descriptors[0],
		g.scalar.SelectDescriptor,
	}
	derivedSlice := g.derived.Descriptors

	g.walk(r)

	after := []*graph.Descriptor{
		g.set.Descriptor,
		g.between.End.Descriptor,
		g.pair.Pairs[0].PKDescriptor,
		g.derived.Descriptors[0],
		g.sorter.Clauses[0].Descriptor,
		g.groupBy.Descriptors[0],
		g.scalar.SelectDescriptor,
	}
	for i := range before {
		assert.Same(t, before[i], after[i], "slot %d replaced on second walk", i)
	}
	assert.Same(t, &derivedSlice[0], &g.derived.Descriptors[0])
}

func TestWalkMemoizesPerField(t *testing.T) {
	a := graph.NewField("T", "A", "Int")
	eq := graph.Eq(a, 1)
	sorter := graph.NewSortExpression(graph.Asc(a))

	w := New(nil).NewWalker()
	w.PredicateExpression(graph.NewPredicateExpression(eq))
	w.Sorter(sorter)

	assert.Same(t, eq.Descriptor, sorter.Clauses[0].Descriptor)
	assert.Equal(t, 1, w.Resolved())
}

func TestWalkKeepsCallerDescriptors(t *testing.T) {
	preset := &graph.Descriptor{Object: "Elsewhere", Column: "X"}
	eq := &graph.CompareValue{Field: graph.NewField("T", "A", "Int"), Descriptor: preset, Op: graph.CmpEqual, Value: 1}

	New(nil).NewWalker().PredicateExpression(graph.NewPredicateExpression(eq))
	assert.Same(t, preset, eq.Descriptor)
}

func TestScalarQueryDescriptorIsPrivate(t *testing.T) {
	total := graph.NewField("Order", "Total", "Decimal")
	op := graph.FieldOp(total)
	q := &graph.ScalarQuery{Select: op, Aggregate: graph.AggMax}

	w := New(nil).NewWalker()
	w.ScalarQuery(q)

	shared := w.Resolve(total)
	require.NotNil(t, q.SelectDescriptor)
	assert.NotSame(t, shared, q.SelectDescriptor)
	assert.Equal(t, *shared, *q.SelectDescriptor)
}

func TestScalarQueryWithoutFieldTarget(t *testing.T) {
	a := graph.NewField("T", "A", "Int")
	q := &graph.ScalarQuery{
		Select: graph.CallOp(graph.Call("GETDATE")),
		Filter: graph.NewPredicateExpression(graph.Eq(a, 1)),
	}

	w := New(nil).NewWalker()
	w.ScalarQuery(q)
	assert.Nil(t, q.SelectDescriptor)
	assert.NotNil(t, q.Filter.Elements[0].(*graph.CompareValue).Descriptor)
}

func TestWalkToleratesNil(t *testing.T) {
	w := New(nil).NewWalker()
	assert.NotPanics(t, func() {
		w.Resolve(nil)
		w.PredicateExpression(nil)
		w.Predicate(nil)
		w.Expression(nil)
		w.FunctionCall(nil)
		w.ScalarQuery(nil)
		w.Relations(nil)
		w.DerivedTable(nil)
		w.Sorter(nil)
		w.GroupBy(nil)
		w.Predicate(&graph.CompareSet{Operator: graph.SetExists})
		w.Expression(&graph.Expression{})
		w.Relations(graph.NewRelationCollection(&graph.DynamicRelation{}))
		w.Sorter(graph.NewSortExpression(nil))
	})
}
