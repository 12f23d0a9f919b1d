package param

// DbType is the dialect parameter-type tag of a bound value.
type DbType string

const (
	NVarChar         DbType = "NVarChar"
	VarChar          DbType = "VarChar"
	Text             DbType = "Text"
	NText            DbType = "NText"
	Char             DbType = "Char"
	NChar            DbType = "NChar"
	TinyInt          DbType = "TinyInt"
	SmallInt         DbType = "SmallInt"
	Int              DbType = "Int"
	BigInt           DbType = "BigInt"
	DateTime         DbType = "DateTime"
	Decimal          DbType = "Decimal"
	Float            DbType = "Float"
	Real             DbType = "Real"
	Bit              DbType = "Bit"
	VarBinary        DbType = "VarBinary"
	Image            DbType = "Image"
	UniqueIdentifier DbType = "UniqueIdentifier"
)

// Parameter is one bound input value of a statement. Name is empty until the
// statement is finalized and placeholders are numbered.
type Parameter struct {
	Name  string `json:"name"`
	Type  DbType `json:"type"`
	Size  int    `json:"size,omitempty"`
	Value any    `json:"value"`
}
