package param

import (
	"math/big"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/atlekbai/query_graph/internal/dialect"
)

// Factory turns literal values into typed parameters for one dialect.
type Factory struct {
	dialect dialect.Dialect
}

// NewFactory returns a parameter factory for d.
func NewFactory(d dialect.Dialect) *Factory {
	return &Factory{dialect: d}
}

// Create classifies value by its runtime type.
func (f *Factory) Create(value any) Parameter {
	value = deref(value)
	typ, size := f.TypeOf(value)
	return Parameter{Type: typ, Size: size, Value: value}
}

// TypeOf returns the parameter type for value and, for variable-length
// types, the length used to pick the tier. Integers take the smallest signed
// tier that holds their range.
func (f *Factory) TypeOf(value any) (DbType, int) {
	switch v := value.(type) {
	case string:
		n := utf8.RuneCountInString(v)
		switch {
		case n < f.dialect.NarrowStringLimit:
			return NVarChar, n
		case n < f.dialect.WideStringLimit:
			return VarChar, n
		default:
			return Text, n
		}
	case byte:
		return TinyInt, 0
	case int8, int16:
		return SmallInt, 0
	case int32, uint16:
		return Int, 0
	case int64, int, uint32:
		return BigInt, 0
	case uint64, uint, uintptr:
		// wider than any signed integer tier
		return Decimal, 0
	case time.Time:
		return DateTime, 0
	case big.Rat, pgtype.Numeric, apd.Decimal:
		return Decimal, 0
	case float64:
		return Float, 0
	case float32:
		return Real, 0
	case bool:
		return Bit, 0
	case []byte:
		if len(v) < f.dialect.BinaryLimit {
			return VarBinary, len(v)
		}
		return Image, len(v)
	case uuid.UUID:
		return UniqueIdentifier, 0
	default:
		return VarChar, 0
	}
}

// CreateLike builds the parameter for a LIKE pattern. The type follows the
// declared type of the target column, not the pattern: character types keep
// their own type, everything else becomes NVarChar.
func (f *Factory) CreateLike(pattern, declaredType string) Parameter {
	typ := NVarChar
	if f.dialect.IsCharacterType(declaredType) {
		typ = canonical(declaredType)
	}
	return Parameter{Type: typ, Size: utf8.RuneCountInString(pattern), Value: pattern}
}

func canonical(t string) DbType {
	for _, c := range []DbType{Char, NChar, VarChar, NVarChar} {
		if strings.EqualFold(string(c), t) {
			return c
		}
	}
	return DbType(t)
}

// deref unwraps non-nil pointers so *int and int classify alike.
func deref(value any) any {
	for {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Pointer {
			return value
		}
		if rv.IsNil() {
			return nil
		}
		value = rv.Elem().Interface()
	}
}
