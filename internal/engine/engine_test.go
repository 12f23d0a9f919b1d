package engine

import (
	"errors"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/query_graph/internal/dialect"
	"github.com/atlekbai/query_graph/internal/graph"
	"github.com/atlekbai/query_graph/internal/param"
)

// shop is a two-table fixture: Customer 1-n Order.
type shop struct {
	cID, cName, cCredit *graph.Field
	oID, oCust, oTotal  *graph.Field
	oNotes              *graph.Field
	customerOrders      *graph.EntityRelation
}

func newShop() *shop {
	s := &shop{
		cID:     graph.NewField("Customer", "Id", "Int"),
		cName:   graph.NewField("Customer", "Name", "NVarChar"),
		cCredit: graph.NewField("Customer", "Credit", "Decimal"),
		oID:     graph.NewField("Order", "Id", "Int"),
		oCust:   graph.NewField("Order", "CustomerId", "Int"),
		oTotal:  graph.NewField("Order", "Total", "Decimal"),
		oNotes:  graph.NewField("Order", "Notes", "Text"),
	}
	s.cID.PrimaryKey = true
	s.oID.PrimaryKey = true
	s.customerOrders = graph.NewEntityRelation(s.cID, s.oCust, graph.JoinInner)
	return s
}

func (s *shop) relations() *graph.RelationCollection {
	return graph.NewRelationCollection(s.customerOrders)
}

func mustBuild(t *testing.T, req SelectRequest) *Query {
	t.Helper()
	q, err := New(dialect.Pseudo()).BuildSelect(req)
	require.NoError(t, err)
	return q
}

func TestBuildSelectPlain(t *testing.T) {
	// Without fan-out or a primary key the plain select would be DISTINCT.
	q := mustBuild(t, SelectRequest{
		Fields:          []*graph.Field{graph.NewField("T", "A", "Int"), graph.NewField("T", "B", "Int")},
		AllowDuplicates: true,
	})

	assert.Equal(t, "SELECT T.[A], T.[B] FROM T", q.SQL)
	assert.Empty(t, q.Parameters)
	assert.NotNil(t, q.Parameters)
	assert.False(t, q.RequiresClientSideLimit)
}

func TestBuildSelectDistinct(t *testing.T) {
	tests := []struct {
		name string
		req  func(s *shop) SelectRequest
		want string
	}{
		{
			name: "duplicates not allowed",
			req: func(s *shop) SelectRequest {
				return SelectRequest{Fields: []*graph.Field{s.cName}}
			},
			want: "SELECT DISTINCT Customer.[Name] FROM Customer",
		},
		{
			name: "primary key without fan-out is already unique",
			req: func(s *shop) SelectRequest {
				return SelectRequest{Fields: []*graph.Field{s.cID, s.cName}}
			},
			want: "SELECT Customer.[Id], Customer.[Name] FROM Customer",
		},
		{
			name: "primary key with fan-out",
			req: func(s *shop) SelectRequest {
				return SelectRequest{Fields: []*graph.Field{s.cID, s.oTotal}, Relations: s.relations()}
			},
			want: "SELECT DISTINCT Customer.[Id], Order.[Total] FROM Customer INNER JOIN Order ON Customer.[Id] = Order.[CustomerId]",
		},
		{
			name: "incompatible type",
			req: func(s *shop) SelectRequest {
				return SelectRequest{Fields: []*graph.Field{s.cName, s.oNotes}, Relations: s.relations()}
			},
			want: "SELECT Customer.[Name], Order.[Notes] FROM Customer INNER JOIN Order ON Customer.[Id] = Order.[CustomerId]",
		},
		{
			name: "sort on projected field",
			req: func(s *shop) SelectRequest {
				return SelectRequest{Fields: []*graph.Field{s.cName}, Sorter: graph.NewSortExpression(graph.Asc(s.cName))}
			},
			want: "SELECT DISTINCT Customer.[Name] FROM Customer ORDER BY Customer.[Name] ASC",
		},
		{
			name: "sort on field outside the projection",
			req: func(s *shop) SelectRequest {
				return SelectRequest{Fields: []*graph.Field{s.cName}, Sorter: graph.NewSortExpression(graph.Desc(s.cCredit))}
			},
			want: "SELECT Customer.[Name] FROM Customer ORDER BY Customer.[Credit] DESC",
		},
		{
			name: "sort field sharing a projected name",
			req: func(s *shop) SelectRequest {
				return SelectRequest{
					Fields:    []*graph.Field{s.cName},
					Relations: s.relations(),
					Sorter:    graph.NewSortExpression(graph.Asc(s.oTotal.As("Name"))),
				}
			},
			want: "SELECT Customer.[Name] FROM Customer INNER JOIN Order ON Customer.[Id] = Order.[CustomerId] ORDER BY Order.[Total] ASC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := mustBuild(t, tt.req(newShop()))
			assert.Equal(t, tt.want, q.SQL)
		})
	}
}

func TestBuildSelectRowLimit(t *testing.T) {
	t.Run("inline without fan-out", func(t *testing.T) {
		s := newShop()
		q := mustBuild(t, SelectRequest{Fields: []*graph.Field{s.cName}, Limit: 10, AllowDuplicates: true})
		assert.Equal(t, "SELECT TOP 10 Customer.[Name] FROM Customer", q.SQL)
		assert.False(t, q.RequiresClientSideLimit)
	})

	t.Run("inline with distinct under fan-out", func(t *testing.T) {
		s := newShop()
		q := mustBuild(t, SelectRequest{Fields: []*graph.Field{s.cName}, Relations: s.relations(), Limit: 10})
		assert.Equal(t, "SELECT DISTINCT TOP 10 Customer.[Name] FROM Customer INNER JOIN Order ON Customer.[Id] = Order.[CustomerId]", q.SQL)
		assert.False(t, q.RequiresClientSideLimit)
	})

	t.Run("client side under fan-out without distinct", func(t *testing.T) {
		s := newShop()
		q := mustBuild(t, SelectRequest{Fields: []*graph.Field{s.cName, s.oNotes}, Relations: s.relations(), Limit: 10})
		assert.NotContains(t, q.SQL, "TOP")
		assert.NotContains(t, q.SQL, "DISTINCT")
		assert.True(t, q.RequiresClientSideLimit)
		assert.Equal(t, int64(10), q.ClientSideLimit)
	})

	t.Run("inline under fan-out with duplicates allowed", func(t *testing.T) {
		s := newShop()
		q := mustBuild(t, SelectRequest{Fields: []*graph.Field{s.cName, s.oNotes}, Relations: s.relations(), Limit: 3, AllowDuplicates: true})
		assert.Contains(t, q.SQL, "SELECT TOP 3 ")
		assert.False(t, q.RequiresClientSideLimit)
	})

	t.Run("suffix dialect", func(t *testing.T) {
		s := newShop()
		q, err := New(dialect.Postgres()).BuildSelect(SelectRequest{
			Fields:          []*graph.Field{s.cName},
			Filter:          graph.NewPredicateExpression(graph.Eq(s.cName, "Ada")),
			Limit:           5,
			AllowDuplicates: true,
		})
		require.NoError(t, err)
		assert.Equal(t, `SELECT Customer."Name" FROM Customer WHERE (Customer."Name" = $1) LIMIT 5`, q.SQL)
		require.Len(t, q.Parameters, 1)
		assert.Equal(t, "$1", q.Parameters[0].Name)
	})
}

func TestBuildSelectAliases(t *testing.T) {
	a := graph.NewField("T", "A", "Int").In("t").As("X")
	q := mustBuild(t, SelectRequest{Fields: []*graph.Field{a}, AllowDuplicates: true})
	assert.Equal(t, "SELECT t.[A] AS [X] FROM T AS [t]", q.SQL)
}

func TestBuildSelectLikeOnTextColumn(t *testing.T) {
	s := newShop()
	q := mustBuild(t, SelectRequest{
		Fields:          []*graph.Field{s.oID},
		Filter:          graph.NewPredicateExpression(graph.LikePattern(s.oNotes, "%urgent%")),
		AllowDuplicates: true,
	})

	assert.Equal(t, "SELECT Order.[Id] FROM Order WHERE (Order.[Notes] LIKE @p1)", q.SQL)
	require.Len(t, q.Parameters, 1)
	assert.Equal(t, param.Parameter{Name: "@p1", Type: param.NVarChar, Size: 8, Value: "%urgent%"}, q.Parameters[0])
}

func TestBuildSelectGroupByValidation(t *testing.T) {
	a := graph.NewField("T", "A", "Int")
	b := graph.NewField("T", "B", "Int")
	count := &graph.Field{Object: "T", Name: "C", Aggregate: graph.AggCount}

	q, err := New(dialect.Pseudo()).BuildSelect(SelectRequest{
		Fields:  []*graph.Field{a, b},
		Filter:  graph.NewPredicateExpression(graph.Eq(a, 1)),
		GroupBy: graph.NewGroupBy(a),
	})
	require.Error(t, err)
	assert.Nil(t, q)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, IsValidationError(err))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "T.B", verr.Field)

	// aggregates need not be grouped on
	q, err = New(dialect.Pseudo()).BuildSelect(SelectRequest{
		Fields:          []*graph.Field{a, count},
		GroupBy:         graph.NewGroupBy(a),
		AllowDuplicates: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT T.[A], COUNT(T.[C]) FROM T GROUP BY T.[A]", q.SQL)
}

func TestBuildSelectNoFields(t *testing.T) {
	_, err := New(dialect.Pseudo()).BuildSelect(SelectRequest{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBuildSelectPredicates(t *testing.T) {
	tests := []struct {
		name   string
		filter func(s *shop) graph.Predicate
		want   string
		params []param.DbType
	}{
		{
			name:   "null comparison",
			filter: func(s *shop) graph.Predicate { return graph.Eq(s.cCredit, nil) },
			want:   "(Customer.[Credit] IS NULL)",
		},
		{
			name:   "not null comparison",
			filter: func(s *shop) graph.Predicate { return graph.Cmp(s.cCredit, graph.CmpNotEqual, nil) },
			want:   "(Customer.[Credit] IS NOT NULL)",
		},
		{
			name:   "negated is null",
			filter: func(s *shop) graph.Predicate { return &graph.CompareNull{Field: s.cCredit, Negate: true} },
			want:   "(Customer.[Credit] IS NOT NULL)",
		},
		{
			name:   "greater or equal",
			filter: func(s *shop) graph.Predicate { return graph.Cmp(s.cCredit, graph.CmpGreaterEqual, 1.5) },
			want:   "(Customer.[Credit] >= @p1)",
			params: []param.DbType{param.Float},
		},
		{
			name:   "negated comparison",
			filter: func(s *shop) graph.Predicate { return &graph.CompareValue{Field: s.cID, Op: graph.CmpLesser, Value: int32(3), Negate: true} },
			want:   "(NOT (Customer.[Id] < @p1))",
			params: []param.DbType{param.Int},
		},
		{
			name:   "range",
			filter: func(s *shop) graph.Predicate { return graph.In(s.cID, 1, 2, 3) },
			want:   "(Customer.[Id] IN (@p1,@p2,@p3))",
			params: []param.DbType{param.BigInt, param.BigInt, param.BigInt},
		},
		{
			name:   "negated range",
			filter: func(s *shop) graph.Predicate { return &graph.CompareRange{Field: s.cID, Values: []any{"a"}, Negate: true} },
			want:   "(Customer.[Id] NOT IN (@p1))",
			params: []param.DbType{param.NVarChar},
		},
		{
			name: "between",
			filter: func(s *shop) graph.Predicate {
				return &graph.Between{Field: s.cCredit, Begin: graph.Bound{Value: 1}, End: graph.Bound{Field: s.cID}}
			},
			want:   "(Customer.[Credit] BETWEEN @p1 AND Customer.[Id])",
			params: []param.DbType{param.BigInt},
		},
		{
			name:   "not like",
			filter: func(s *shop) graph.Predicate { return &graph.Like{Field: s.cName, Pattern: "A%", Negate: true} },
			want:   "(Customer.[Name] NOT LIKE @p1)",
			params: []param.DbType{param.NVarChar},
		},
		{
			name: "full text",
			filter: func(s *shop) graph.Predicate {
				return &graph.FullTextSearch{Field: s.cName, Operator: graph.FullTextFreetext, Pattern: "acme"}
			},
			want:   "(FREETEXT(Customer.[Name], @p1))",
			params: []param.DbType{param.NVarChar},
		},
		{
			name: "nested or",
			filter: func(s *shop) graph.Predicate {
				return graph.NewPredicateExpression(graph.Eq(s.cName, "a")).Or(graph.Eq(s.cName, "b"))
			},
			want:   "((Customer.[Name] = @p1 OR Customer.[Name] = @p2))",
			params: []param.DbType{param.NVarChar, param.NVarChar},
		},
		{
			name: "member any",
			filter: func(s *shop) graph.Predicate {
				return &graph.Member{
					Kind:   graph.MemberAny,
					Target: "Order",
					Alias:  "o",
					Filter: graph.NewPredicateExpression(&graph.CompareExpression{
						Field:      graph.NewField("Order", "CustomerId", "Int").In("o"),
						Op:         graph.CmpEqual,
						Expression: graph.NewExpression(graph.FieldOp(s.cID), graph.ExNone, nil),
					}),
				}
			},
			want: "(EXISTS (SELECT * FROM Order AS [o] WHERE (o.[CustomerId] = Customer.[Id])))",
		},
		{
			name: "member all",
			filter: func(s *shop) graph.Predicate {
				return &graph.Member{
					Kind:   graph.MemberAll,
					Target: "Order",
					Filter: graph.NewPredicateExpression(graph.Cmp(s.oTotal, graph.CmpGreater, 0)),
				}
			},
			want:   "(NOT EXISTS (SELECT * FROM Order WHERE NOT (Order.[Total] > @p1)))",
			params: []param.DbType{param.BigInt},
		},
		{
			name: "aggregate set",
			filter: func(s *shop) graph.Predicate {
				return &graph.AggregateSet{
					Aggregate:   graph.AggCountRow,
					Source:      "Order",
					SourceAlias: "o",
					SetFilter:   graph.NewPredicateExpression(graph.Eq(graph.NewField("Order", "CustomerId", "Int").In("o"), 7)),
					Op:          graph.CmpGreater,
					Value:       3,
				}
			},
			want:   "((SELECT COUNT(*) FROM Order AS [o] WHERE (o.[CustomerId] = @p1)) > @p2)",
			params: []param.DbType{param.BigInt, param.BigInt},
		},
		{
			name: "exists",
			filter: func(s *shop) graph.Predicate {
				return &graph.CompareSet{
					Operator:  graph.SetExists,
					SetField:  s.oID,
					SetFilter: graph.NewPredicateExpression(graph.Eq(s.oTotal, 0)),
					Negate:    true,
				}
			},
			want:   "(NOT EXISTS (SELECT Order.[Id] FROM Order WHERE (Order.[Total] = @p1)))",
			params: []param.DbType{param.BigInt},
		},
		{
			name: "quantified comparison",
			filter: func(s *shop) graph.Predicate {
				return &graph.CompareSet{
					Field:      s.cCredit,
					Operator:   graph.SetGreater,
					Quantifier: graph.QuantAll,
					SetField:   s.oTotal,
				}
			},
			want: "(Customer.[Credit] > ALL (SELECT Order.[Total] FROM Order))",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newShop()
			q := mustBuild(t, SelectRequest{
				Fields:          []*graph.Field{s.cName},
				Filter:          graph.NewPredicateExpression(tt.filter(s)),
				AllowDuplicates: true,
			})
			assert.Equal(t, "SELECT Customer.[Name] FROM Customer WHERE "+tt.want, q.SQL)

			var types []param.DbType
			for i, p := range q.Parameters {
				assert.Equal(t, dialect.Pseudo().ParameterName(i+1), p.Name)
				types = append(types, p.Type)
			}
			assert.Equal(t, tt.params, types)
		})
	}
}

func TestBuildSelectSkipsUnknownPredicates(t *testing.T) {
	s := newShop()
	filter := graph.NewPredicateExpression(&graph.Member{Kind: graph.MemberAll, Target: "Order"}).
		And(graph.Eq(s.cName, "a"))

	q := mustBuild(t, SelectRequest{Fields: []*graph.Field{s.cName}, Filter: filter, AllowDuplicates: true})
	assert.Equal(t, "SELECT Customer.[Name] FROM Customer WHERE (Customer.[Name] = @p1)", q.SQL)
}

func TestBuildSelectExpressionFields(t *testing.T) {
	s := newShop()
	upper := &graph.Field{
		Object:     "Customer",
		Name:       "Upper",
		Expression: graph.NewExpression(graph.CallOp(graph.Call("UPPER", graph.FieldOp(s.cName))), graph.ExNone, nil),
	}
	plusOne := &graph.Field{
		Object:     "Customer",
		Name:       "Next",
		Alias:      "NextCredit",
		Expression: graph.NewExpression(graph.FieldOp(s.cCredit), graph.ExAdd, graph.ValueOp(1)),
	}

	q := mustBuild(t, SelectRequest{Fields: []*graph.Field{upper, plusOne}, AllowDuplicates: true})
	assert.Equal(t, "SELECT UPPER(Customer.[Name]) AS [Upper], (Customer.[Credit] + @p1) AS [NextCredit] FROM Customer", q.SQL)
	require.Len(t, q.Parameters, 1)
	assert.Equal(t, []any{1}, q.Args())
}

func TestBuildSelectUsesCatalog(t *testing.T) {
	cat := catalogFunc(func(object, column string) (*graph.Descriptor, bool) {
		return &graph.Descriptor{Schema: "sales", Object: object, Column: "col_" + column, DataType: "NText"}, true
	})
	f := graph.NewField("Customer", "Bio", "")

	q, err := New(dialect.Pseudo(), WithCatalog(cat)).BuildSelect(SelectRequest{Fields: []*graph.Field{f}})
	require.NoError(t, err)
	// NText rules out DISTINCT
	assert.Equal(t, "SELECT Customer.[col_Bio] FROM sales.Customer", q.SQL)
}

type catalogFunc func(object, column string) (*graph.Descriptor, bool)

func (f catalogFunc) LookupColumn(object, column string) (*graph.Descriptor, bool) {
	return f(object, column)
}

type fixedJoins string

func (j fixedJoins) Joins(*graph.RelationCollection, Renderer) (sq.Sqlizer, error) {
	return sq.Expr(string(j)), nil
}

func TestBuildSelectCustomJoinRenderer(t *testing.T) {
	s := newShop()
	e := New(dialect.Pseudo(), WithJoinRenderer(fixedJoins("Customer c JOIN Order o USING (Id)")))
	q, err := e.BuildSelect(SelectRequest{Fields: []*graph.Field{s.cName}, Relations: s.relations(), AllowDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, "SELECT Customer.[Name] FROM Customer c JOIN Order o USING (Id)", q.SQL)
}

func TestBuildSelectJoinErrors(t *testing.T) {
	s := newShop()
	unrelated := graph.NewEntityRelation(graph.NewField("Region", "Id", "Int"), graph.NewField("Store", "RegionId", "Int"), graph.JoinInner)

	_, err := New(dialect.Pseudo()).BuildSelect(SelectRequest{
		Fields:    []*graph.Field{s.cName},
		Relations: graph.NewRelationCollection(s.customerOrders, unrelated),
	})
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "neither Region nor Store is joined yet")
}
