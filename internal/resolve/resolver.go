package resolve

import "github.com/atlekbai/query_graph/internal/graph"

// Catalog supplies physical metadata for plain fields. schema.Cache implements it.
type Catalog interface {
	LookupColumn(object, column string) (*graph.Descriptor, bool)
}

// Resolver maps field references to persistence descriptors. It never fails:
// metadata that is not available ends up as empty strings and zero sizes.
type Resolver struct {
	catalog Catalog
}

// New returns a resolver. catalog may be nil.
func New(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve returns the descriptor of f. A field computed from an expression
// gets that expression walked first.
func (r *Resolver) Resolve(f *graph.Field) *graph.Descriptor {
	return r.NewWalker().Resolve(f)
}

// NewWalker returns a walker with an empty memo table.
func (r *Resolver) NewWalker() *Walker {
	return &Walker{
		resolver: r,
		memo:     make(map[*graph.Field]*graph.Descriptor),
		seen:     make(map[any]struct{}),
	}
}

// describe synthesizes a descriptor for a plain field.
func (r *Resolver) describe(f *graph.Field) *graph.Descriptor {
	d := &graph.Descriptor{
		Object:    f.Owner(),
		Column:    f.Name,
		Nullable:  f.Nullable,
		Size:      f.MaxLength,
		Precision: f.Precision,
		Scale:     f.Scale,
		DataType:  f.DataType,
	}
	if r.catalog == nil {
		return d
	}
	col, ok := r.catalog.LookupColumn(f.Owner(), f.Name)
	if !ok {
		return d
	}
	d.Catalog = col.Catalog
	d.Schema = col.Schema
	if col.Object != "" {
		d.Object = col.Object
	}
	if col.Column != "" {
		d.Column = col.Column
	}
	if d.DataType == "" {
		d.DataType = col.DataType
	}
	if d.Size == 0 {
		d.Size = col.Size
	}
	if d.Precision == 0 && d.Scale == 0 {
		d.Precision, d.Scale = col.Precision, col.Scale
	}
	return d
}
