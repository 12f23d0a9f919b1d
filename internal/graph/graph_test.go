package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicateExpressionBuilders(t *testing.T) {
	a := NewField("T", "A", "Int")
	e := NewPredicateExpression(Eq(a, 1), nil)
	e.Or(IsNull(a)).And(In(a, 1, 2)).Add(nil)

	assert.Equal(t, 3, e.Len())
	assert.Len(t, e.Elements, 5)
	assert.Equal(t, OpOr, e.Elements[1])
	assert.Equal(t, OpAnd, e.Elements[3])

	var empty *PredicateExpression
	assert.Zero(t, empty.Len())
}

func TestFieldKey(t *testing.T) {
	a := NewField("Order", "Total", "Decimal")
	b := NewField("Order", "Total", "Decimal")
	assert.Equal(t, a.Key(), b.Key())

	b.In("o")
	assert.NotEqual(t, a.Key(), b.Key())

	sum := &Field{Object: "Order", Name: "Total", Aggregate: AggSum}
	assert.NotEqual(t, a.Key(), sum.Key())
}

func TestGroupByContains(t *testing.T) {
	a := NewField("T", "A", "Int")
	g := NewGroupBy(a)

	assert.True(t, g.Contains(a))
	assert.True(t, g.Contains(NewField("T", "A", "Int")))
	assert.False(t, g.Contains(NewField("T", "B", "Int")))

	var none *GroupByCollection
	assert.False(t, none.Contains(a))
}

func TestEntityRelationSides(t *testing.T) {
	r := NewEntityRelation(NewField("Customer", "Id", "Int").In("c"), NewField("Order", "CustomerId", "Int"), JoinLeft)
	assert.Equal(t, "Customer", r.PKObject())
	assert.Equal(t, "Order", r.FKObject())
	assert.Equal(t, "c", r.PKSideAlias())
	assert.Empty(t, r.FKSideAlias())

	r.FKAlias = "o"
	assert.Equal(t, "o", r.FKSideAlias())
}

func TestDescriptorClone(t *testing.T) {
	d := &Descriptor{Schema: "dbo", Object: "T", Column: "A"}
	c := d.Clone()
	assert.Equal(t, *d, *c)
	assert.NotSame(t, d, c)
	assert.Equal(t, "dbo.T", d.QualifiedObject())

	var none *Descriptor
	assert.Nil(t, none.Clone())
}
