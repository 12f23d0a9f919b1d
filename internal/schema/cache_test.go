package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/query_graph/internal/dialect"
	"github.com/atlekbai/query_graph/internal/engine"
	"github.com/atlekbai/query_graph/internal/graph"
)

var informationSchemaColumns = []string{
	"table_schema", "table_name", "column_name", "data_type", "is_nullable",
	"character_maximum_length", "numeric_precision", "numeric_scale", "is_pk",
}

func TestInformationSchemaQuery(t *testing.T) {
	query, args, err := informationSchemaQuery(sq.Dollar)
	require.NoError(t, err)

	assert.Contains(t, query, "FROM information_schema.columns c LEFT JOIN ( SELECT k.table_schema")
	assert.Contains(t, query, "WHERE t.constraint_type = $1")
	assert.Contains(t, query, "c.table_schema NOT IN ($2,$3,$4,$5,$6)")
	assert.Contains(t, query, "ORDER BY c.table_schema, c.table_name, c.ordinal_position")
	assert.Equal(t, []any{"PRIMARY KEY", "information_schema", "pg_catalog", "mysql", "performance_schema", "sys"}, args)
}

func TestCacheLoadInformationSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(informationSchemaColumns).
		AddRow("public", "customer", "id", "integer", "NO", nil, 32, 0, true).
		AddRow("public", "customer", "name", "character varying", "NO", 80, nil, nil, false).
		AddRow("public", "customer", "bio", "text", "YES", nil, nil, nil, false).
		AddRow("sales", "order", "total", "numeric", "YES", nil, 12, 2, false)
	mock.ExpectQuery(`FROM information_schema\.columns c`).WillReturnRows(rows)

	c := NewCache()
	require.NoError(t, c.Load(context.Background(), db, "postgres"))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 2, c.ObjectCount())

	customer := c.Get("Customer")
	require.NotNil(t, customer)
	assert.Equal(t, "public.customer", customer.QualifiedName())
	require.Len(t, customer.Columns, 3)
	assert.True(t, customer.Column("ID").PrimaryKey)
	assert.Equal(t, ColumnDef{Name: "name", DataType: "VarChar", NativeType: "character varying", MaxLength: 80}, *customer.Column("name"))

	assert.Same(t, c.Get("order"), c.Get("sales.order"))

	d, ok := c.LookupColumn("Order", "Total")
	require.True(t, ok)
	assert.Equal(t, &graph.Descriptor{Schema: "sales", Object: "order", Column: "total", Nullable: true, Precision: 12, Scale: 2, DataType: "Decimal"}, d)

	_, ok = c.LookupColumn("order", "missing")
	assert.False(t, ok)
	_, ok = c.LookupColumn("missing", "total")
	assert.False(t, ok)
}

func TestCacheLoadMySQLPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`WHERE t\.constraint_type = \? .* NOT IN \(\?,\?,\?,\?,\?\)`).
		WillReturnRows(sqlmock.NewRows(informationSchemaColumns))

	c := NewCache()
	require.NoError(t, c.Load(context.Background(), db, "mysql"))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Zero(t, c.ObjectCount())
}

func TestCacheLoadErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM information_schema\.columns c`).WillReturnError(errors.New("connection reset"))

	c := NewCache()
	err = c.Load(context.Background(), db, "postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema cache load: connection reset")

	err = c.Load(context.Background(), db, "oracle")
	assert.EqualError(t, err, `schema cache load: unsupported driver "oracle"`)
}

const sqliteSchema = `
CREATE TABLE Customer (
	Id     INTEGER PRIMARY KEY,
	Name   VARCHAR(40) NOT NULL,
	Credit DECIMAL(10, 2),
	Bio    TEXT
);
CREATE VIEW BigCustomers AS SELECT Id, Name FROM Customer WHERE Credit > 100;
`

func TestCacheLoadSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, sqliteSchema)
	require.NoError(t, err)

	c := NewCache()
	require.NoError(t, c.Load(ctx, db, "sqlite3"))
	assert.Equal(t, 2, c.ObjectCount())
	require.NotNil(t, c.Get("bigcustomers"))

	customer := c.Get("customer")
	require.NotNil(t, customer)
	assert.Equal(t, "Customer", customer.QualifiedName())

	id := customer.Column("id")
	require.NotNil(t, id)
	assert.True(t, id.PrimaryKey)
	assert.False(t, id.Nullable)
	assert.Equal(t, "Int", id.DataType)

	name := customer.Column("Name")
	require.NotNil(t, name)
	assert.Equal(t, "VarChar", name.DataType)
	assert.Equal(t, 40, name.MaxLength)
	assert.False(t, name.Nullable)

	credit := customer.Column("Credit")
	require.NotNil(t, credit)
	assert.Equal(t, "Decimal", credit.DataType)
	assert.Equal(t, 10, credit.Precision)
	assert.Equal(t, 2, credit.Scale)
	assert.True(t, credit.Nullable)

	// the catalog feeds the engine: Text rules out DISTINCT
	q, err := engine.New(dialect.SQLite(), engine.WithCatalog(c)).BuildSelect(engine.SelectRequest{
		Fields: []*graph.Field{graph.NewField("Customer", "Name", ""), graph.NewField("Customer", "Bio", "")},
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT Customer."Name", Customer."Bio" FROM Customer`, q.SQL)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "")
	assert.EqualError(t, err, `unsupported catalog driver "oracle"`)
}

func TestDeclaredType(t *testing.T) {
	tests := map[string]string{
		"VARCHAR(40)":              "VarChar",
		"character varying":        "VarChar",
		"timestamp with time zone": "DateTime",
		"DECIMAL(10, 2)":           "Decimal",
		"uuid":                     "UniqueIdentifier",
		"ntext":                    "NText",
		"geometry":                 "geometry",
	}
	for native, want := range tests {
		assert.Equal(t, want, DeclaredType(native), native)
	}
}
