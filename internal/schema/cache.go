package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/query_graph/internal/graph"
)

var systemSchemas = []string{"information_schema", "pg_catalog", "mysql", "performance_schema", "sys"}

// Cache holds the catalog of one database. It is safe for concurrent use;
// Load replaces the whole catalog at once.
type Cache struct {
	mu      sync.RWMutex
	objects map[string]*ObjectDef
	count   int
}

func NewCache() *Cache {
	return &Cache{objects: make(map[string]*ObjectDef)}
}

// Load reads tables, views and their columns from db. driver is one of the
// names accepted by Open.
func (c *Cache) Load(ctx context.Context, db *sql.DB, driver string) error {
	var (
		objects []*ObjectDef
		err     error
	)
	switch driverName(driver) {
	case "pgx":
		objects, err = loadInformationSchema(ctx, db, sq.Dollar)
	case "mysql":
		objects, err = loadInformationSchema(ctx, db, sq.Question)
	case "sqlite":
		objects, err = loadSQLite(ctx, db)
	default:
		return fmt.Errorf("schema cache load: unsupported driver %q", driver)
	}
	if err != nil {
		return err
	}
	c.replace(objects)
	return nil
}

func (c *Cache) replace(objects []*ObjectDef) {
	byName := make(map[string]*ObjectDef, 2*len(objects))
	for _, o := range objects {
		o.index()
		byName[foldKey(o.QualifiedName())] = o
		// unqualified names go to the first schema that has them
		if _, ok := byName[foldKey(o.Name)]; !ok {
			byName[foldKey(o.Name)] = o
		}
	}

	c.mu.Lock()
	c.objects = byName
	c.count = len(objects)
	c.mu.Unlock()
}

// Get finds an object by name or schema-qualified name, ignoring case.
func (c *Cache) Get(name string) *ObjectDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.objects[foldKey(name)]
}

// ObjectCount returns the number of loaded objects.
func (c *Cache) ObjectCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// LookupColumn returns the physical metadata of object.column.
func (c *Cache) LookupColumn(object, column string) (*graph.Descriptor, bool) {
	o := c.Get(object)
	if o == nil {
		return nil, false
	}
	col := o.Column(column)
	if col == nil {
		return nil, false
	}
	return &graph.Descriptor{
		Schema:    o.Schema,
		Object:    o.Name,
		Column:    col.Name,
		Nullable:  col.Nullable,
		Size:      col.MaxLength,
		Precision: col.Precision,
		Scale:     col.Scale,
		DataType:  col.DataType,
	}, true
}

func informationSchemaQuery(format sq.PlaceholderFormat) (string, []any, error) {
	primaryKeys := sq.Select("k.table_schema", "k.table_name", "k.column_name").
		From("information_schema.table_constraints t").
		Join("information_schema.key_column_usage k ON k.constraint_name = t.constraint_name AND k.table_schema = t.table_schema AND k.table_name = t.table_name").
		Where(sq.Eq{"t.constraint_type": "PRIMARY KEY"})

	return sq.Select(
		"c.table_schema", "c.table_name", "c.column_name", "c.data_type", "c.is_nullable",
		"c.character_maximum_length", "c.numeric_precision", "c.numeric_scale",
		"pk.column_name IS NOT NULL",
	).
		From("information_schema.columns c").
		JoinClause(primaryKeys.Prefix("LEFT JOIN (").Suffix(") pk ON pk.table_schema = c.table_schema AND pk.table_name = c.table_name AND pk.column_name = c.column_name")).
		Where(sq.NotEq{"c.table_schema": systemSchemas}).
		OrderBy("c.table_schema", "c.table_name", "c.ordinal_position").
		PlaceholderFormat(format).
		ToSql()
}

func loadInformationSchema(ctx context.Context, db *sql.DB, format sq.PlaceholderFormat) ([]*ObjectDef, error) {
	query, args, err := informationSchemaQuery(format)
	if err != nil {
		return nil, fmt.Errorf("schema cache query: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("schema cache load: %w", err)
	}
	defer rows.Close()

	var (
		objects []*ObjectDef
		current *ObjectDef
	)
	for rows.Next() {
		var (
			schemaName, table, column, dataType, nullable string
			maxLength, precision, scale                   sql.NullInt64
			primaryKey                                    bool
		)
		err := rows.Scan(&schemaName, &table, &column, &dataType, &nullable,
			&maxLength, &precision, &scale, &primaryKey)
		if err != nil {
			return nil, fmt.Errorf("schema cache scan: %w", err)
		}
		if current == nil || current.Schema != schemaName || current.Name != table {
			current = newObject(schemaName, table)
			objects = append(objects, current)
		}
		current.addColumn(ColumnDef{
			Name:       column,
			DataType:   DeclaredType(dataType),
			NativeType: dataType,
			Nullable:   nullable == "YES",
			PrimaryKey: primaryKey,
			MaxLength:  int(maxLength.Int64),
			Precision:  int(precision.Int64),
			Scale:      int(scale.Int64),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema cache rows: %w", err)
	}
	return objects, nil
}

func loadSQLite(ctx context.Context, db *sql.DB) ([]*ObjectDef, error) {
	query, args, err := sq.Select("name").
		From("sqlite_master").
		Where(sq.Eq{"type": []string{"table", "view"}}).
		Where(sq.NotLike{"name": "sqlite_%"}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("schema cache query: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("schema cache load: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("schema cache scan: %w", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema cache rows: %w", err)
	}

	objects := make([]*ObjectDef, 0, len(names))
	for _, name := range names {
		o, err := loadSQLiteTable(ctx, db, name)
		if err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	return objects, nil
}

func loadSQLiteTable(ctx context.Context, db *sql.DB, table string) (*ObjectDef, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("schema cache columns of %s: %w", table, err)
	}
	defer rows.Close()

	o := newObject("", table)
	for rows.Next() {
		var (
			name, native string
			notNull, pk  int
		)
		if err := rows.Scan(&name, &native, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("schema cache scan %s: %w", table, err)
		}
		_, size, scale := splitNativeType(native)
		col := ColumnDef{
			Name:       name,
			DataType:   DeclaredType(native),
			NativeType: native,
			Nullable:   notNull == 0 && pk == 0,
			PrimaryKey: pk > 0,
		}
		if col.DataType == "Decimal" {
			col.Precision, col.Scale = size, scale
		} else {
			col.MaxLength = size
		}
		o.addColumn(col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema cache rows %s: %w", table, err)
	}
	return o, nil
}
