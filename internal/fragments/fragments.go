// Package fragments assembles statement text from ordered pieces that can be
// filled in after they have been positioned.
package fragments

import (
	"fmt"
	"strings"
)

type fragment interface {
	text() string
}

type literal string

func (l literal) text() string { return string(l) }

// Placeholder is a slot whose text is supplied later, at most once.
type Placeholder struct {
	value string
	set   bool
}

// Set fills the placeholder; later calls are ignored.
func (p *Placeholder) Set(s string) {
	if p.set {
		return
	}
	p.value, p.set = s, true
}

// SetFormatted fills the placeholder with fmt.Sprintf(format, args...).
func (p *Placeholder) SetFormatted(format string, args ...any) {
	p.Set(fmt.Sprintf(format, args...))
}

// IsSet reports whether the placeholder has been filled.
func (p *Placeholder) IsSet() bool { return p.set }

func (p *Placeholder) text() string { return p.value }

// List is a comma-separated fragment list.
type List struct {
	items  []string
	unique bool
	seen   map[string]struct{}
	sep    string
}

// Add appends s. A duplicate-suppressing list ignores repeats.
func (l *List) Add(s string) {
	if l.unique {
		if _, ok := l.seen[s]; ok {
			return
		}
		l.seen[s] = struct{}{}
	}
	l.items = append(l.items, s)
}

// AddFormatted appends fmt.Sprintf(format, args...).
func (l *List) AddFormatted(format string, args ...any) {
	l.Add(fmt.Sprintf(format, args...))
}

// Len returns the number of items.
func (l *List) Len() int { return len(l.items) }

func (l *List) text() string { return strings.Join(l.items, l.sep) }

// Fragments is an ordered sequence of literals, placeholders and lists.
type Fragments struct {
	parts []fragment
}

// New returns an empty fragment sequence.
func New() *Fragments { return &Fragments{} }

// Add appends a literal.
func (f *Fragments) Add(s string) {
	f.parts = append(f.parts, literal(s))
}

// AddFormatted appends fmt.Sprintf(format, args...).
func (f *Fragments) AddFormatted(format string, args ...any) {
	f.Add(fmt.Sprintf(format, args...))
}

// AddPlaceholder appends an empty placeholder and returns it.
func (f *Fragments) AddPlaceholder() *Placeholder {
	p := &Placeholder{}
	f.parts = append(f.parts, p)
	return p
}

// AddCommaList appends an empty comma-separated list.
func (f *Fragments) AddCommaList(suppressDuplicates bool) *List {
	l := &List{unique: suppressDuplicates, sep: ", "}
	if suppressDuplicates {
		l.seen = make(map[string]struct{})
	}
	f.parts = append(f.parts, l)
	return l
}

// String joins the non-empty fragments with single spaces.
func (f *Fragments) String() string {
	var sb strings.Builder
	for _, p := range f.parts {
		t := p.text()
		if t == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t)
	}
	return sb.String()
}
