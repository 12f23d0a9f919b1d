package schema

import (
	"regexp"
	"strconv"
	"strings"
)

// ColumnDef is one column of a catalog object as reported by the database.
type ColumnDef struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`   // normalized declared type, e.g. "NVarChar", "Int"
	NativeType string `json:"native_type"` // type name as the database reports it
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	MaxLength  int    `json:"max_length,omitempty"`
	Precision  int    `json:"precision,omitempty"`
	Scale      int    `json:"scale,omitempty"`
}

// ObjectDef is a table or view and its columns in ordinal order.
type ObjectDef struct {
	Schema        string                `json:"schema,omitempty"`
	Name          string                `json:"name"`
	Columns       []ColumnDef           `json:"columns"`
	ColumnsByName map[string]*ColumnDef `json:"-"`
}

func newObject(schema, name string) *ObjectDef {
	return &ObjectDef{Schema: schema, Name: name, ColumnsByName: make(map[string]*ColumnDef)}
}

func (o *ObjectDef) addColumn(c ColumnDef) {
	o.Columns = append(o.Columns, c)
}

// index rebuilds ColumnsByName. It must run after the last addColumn, since
// appending may move the backing array.
func (o *ObjectDef) index() {
	o.ColumnsByName = make(map[string]*ColumnDef, len(o.Columns))
	for i := range o.Columns {
		o.ColumnsByName[foldKey(o.Columns[i].Name)] = &o.Columns[i]
	}
}

// Column finds a column by name, ignoring case.
func (o *ObjectDef) Column(name string) *ColumnDef {
	return o.ColumnsByName[foldKey(name)]
}

// QualifiedName returns schema.name, or name when the schema is empty.
func (o *ObjectDef) QualifiedName() string {
	if o.Schema == "" {
		return o.Name
	}
	return o.Schema + "." + o.Name
}

var sizeSuffix = regexp.MustCompile(`^\s*([^(]+?)\s*\(\s*(\d+)(?:\s*,\s*(\d+))?\s*\)\s*$`)

// splitNativeType separates "VARCHAR(40)" or "DECIMAL(10, 2)" into the bare
// type name and its size arguments.
func splitNativeType(native string) (name string, size, scale int) {
	m := sizeSuffix.FindStringSubmatch(native)
	if m == nil {
		return strings.TrimSpace(native), 0, 0
	}
	size, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		scale, _ = strconv.Atoi(m[3])
	}
	return m[1], size, scale
}

var declaredTypes = map[string]string{
	"varchar":                     "VarChar",
	"character varying":           "VarChar",
	"nvarchar":                    "NVarChar",
	"char":                        "Char",
	"character":                   "Char",
	"bpchar":                      "Char",
	"nchar":                       "NChar",
	"text":                        "Text",
	"tinytext":                    "Text",
	"mediumtext":                  "Text",
	"longtext":                    "Text",
	"clob":                        "Text",
	"ntext":                       "NText",
	"tinyint":                     "TinyInt",
	"smallint":                    "SmallInt",
	"int2":                        "SmallInt",
	"int":                         "Int",
	"integer":                     "Int",
	"int4":                        "Int",
	"mediumint":                   "Int",
	"bigint":                      "BigInt",
	"int8":                        "BigInt",
	"decimal":                     "Decimal",
	"numeric":                     "Decimal",
	"money":                       "Decimal",
	"real":                        "Real",
	"float4":                      "Real",
	"float":                       "Float",
	"float8":                      "Float",
	"double":                      "Float",
	"double precision":            "Float",
	"bit":                         "Bit",
	"bool":                        "Bit",
	"boolean":                     "Bit",
	"date":                        "DateTime",
	"datetime":                    "DateTime",
	"datetime2":                   "DateTime",
	"timestamp":                   "DateTime",
	"timestamptz":                 "DateTime",
	"timestamp without time zone": "DateTime",
	"timestamp with time zone":    "DateTime",
	"uuid":                        "UniqueIdentifier",
	"uniqueidentifier":            "UniqueIdentifier",
	"binary":                      "VarBinary",
	"varbinary":                   "VarBinary",
	"bytea":                       "VarBinary",
	"blob":                        "VarBinary",
	"image":                       "Image",
	"longblob":                    "Image",
	"xml":                         "Xml",
}

// DeclaredType maps a database type name to the declared type vocabulary
// used by query graph fields. Unknown names are returned as they are.
func DeclaredType(native string) string {
	name, _, _ := splitNativeType(native)
	if t, ok := declaredTypes[strings.ToLower(name)]; ok {
		return t
	}
	return name
}

func foldKey(s string) string {
	return strings.ToLower(s)
}
