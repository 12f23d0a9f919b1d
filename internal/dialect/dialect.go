// Package dialect holds the textual and type-mapping rules of a target SQL
// dialect. A Dialect is a plain value: it is built once, injected into the
// engine, and only read afterwards.
package dialect

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// LimitStyle selects where a row limit is written.
type LimitStyle string

const (
	LimitTop    LimitStyle = "top"    // SELECT TOP n ...
	LimitSuffix LimitStyle = "suffix" // ... LIMIT n
)

// Placeholder names a bound-parameter marker format.
type Placeholder string

const (
	PlaceholderQuestion Placeholder = "question" // ?
	PlaceholderDollar   Placeholder = "dollar"   // $1
	PlaceholderAtP      Placeholder = "atp"      // @p1
	PlaceholderColon    Placeholder = "colon"    // :1
)

const (
	DefaultNarrowStringLimit = 4000
	DefaultWideStringLimit   = 8000
	DefaultBinaryLimit       = 8000
)

type Dialect struct {
	Name       string
	QuoteStart string
	QuoteEnd   string

	// ParameterPrefix is prepended to the ordinal of each parameter name.
	ParameterPrefix string
	Placeholder     Placeholder
	Limit           LimitStyle

	// String values shorter than NarrowStringLimit runes map to the wide
	// unicode tier, shorter than WideStringLimit to the single-byte tier,
	// anything longer to the unbounded text tier.
	NarrowStringLimit int
	WideStringLimit   int
	BinaryLimit       int

	// DistinctIncompatibleTypes are declared types that rule out DISTINCT.
	DistinctIncompatibleTypes []string
	// CharacterTypes keep their own type when used as a LIKE target.
	CharacterTypes []string
}

// Pseudo is the bracket-quoted, TOP-limited dialect the engine was designed
// around. It is the default.
func Pseudo() Dialect {
	return Dialect{
		Name:                      "pseudo",
		QuoteStart:                "[",
		QuoteEnd:                  "]",
		ParameterPrefix:           "@p",
		Placeholder:               PlaceholderAtP,
		Limit:                     LimitTop,
		NarrowStringLimit:         DefaultNarrowStringLimit,
		WideStringLimit:           DefaultWideStringLimit,
		BinaryLimit:               DefaultBinaryLimit,
		DistinctIncompatibleTypes: []string{"Text", "NText", "Image", "Xml"},
		CharacterTypes:            []string{"Char", "NChar", "VarChar", "NVarChar"},
	}
}

// Postgres quotes with double quotes, limits with LIMIT and numbers $n.
func Postgres() Dialect {
	d := Pseudo()
	d.Name = "postgres"
	d.QuoteStart, d.QuoteEnd = `"`, `"`
	d.ParameterPrefix = "$"
	d.Placeholder = PlaceholderDollar
	d.Limit = LimitSuffix
	return d
}

// SQLite quotes with double quotes, limits with LIMIT and uses ? markers.
func SQLite() Dialect {
	d := Postgres()
	d.Name = "sqlite"
	d.ParameterPrefix = "?"
	d.Placeholder = PlaceholderQuestion
	return d
}

// Lookup returns the built-in dialect with the given name.
func Lookup(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "pseudo", "sqlserver", "mssql":
		return Pseudo(), nil
	case "postgres", "postgresql":
		return Postgres(), nil
	case "sqlite", "sqlite3":
		return SQLite(), nil
	default:
		return Dialect{}, fmt.Errorf("unknown dialect %q", name)
	}
}

// Quote wraps an identifier in the dialect's quote characters.
func (d Dialect) Quote(name string) string {
	if d.QuoteEnd != "" {
		name = strings.ReplaceAll(name, d.QuoteEnd, d.QuoteEnd+d.QuoteEnd)
	}
	return d.QuoteStart + name + d.QuoteEnd
}

// Format returns the squirrel placeholder format for the dialect.
func (d Dialect) Format() sq.PlaceholderFormat {
	switch d.Placeholder {
	case PlaceholderDollar:
		return sq.Dollar
	case PlaceholderColon:
		return sq.Colon
	case PlaceholderQuestion:
		return sq.Question
	default:
		return sq.AtP
	}
}

// ParameterName returns the name of the n-th (1-based) parameter.
func (d Dialect) ParameterName(n int) string {
	return fmt.Sprintf("%s%d", d.ParameterPrefix, n)
}

// LimitClause renders a row limit of n.
func (d Dialect) LimitClause(n int64) string {
	if d.Limit == LimitSuffix {
		return fmt.Sprintf("LIMIT %d", n)
	}
	return fmt.Sprintf("TOP %d", n)
}

// IsDistinctIncompatible reports whether a projected column of declared type
// t rules out DISTINCT.
func (d Dialect) IsDistinctIncompatible(t string) bool {
	return containsFold(d.DistinctIncompatibleTypes, t)
}

// IsCharacterType reports whether t belongs to the character family.
func (d Dialect) IsCharacterType(t string) bool {
	return containsFold(d.CharacterTypes, t)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
