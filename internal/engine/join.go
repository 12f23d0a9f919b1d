package engine

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/query_graph/internal/alias"
	"github.com/atlekbai/query_graph/internal/dialect"
	"github.com/atlekbai/query_graph/internal/graph"
)

// Renderer is the part of a statement build a JoinRenderer may call back into.
type Renderer interface {
	Dialect() dialect.Dialect
	// Column renders f qualified by the alias governing it under given.
	Column(f *graph.Field, d *graph.Descriptor, given string) string
	// Object returns the catalog-qualified object defining f.
	Object(f *graph.Field, d *graph.Descriptor) string
	// Source renders an object reference, aliased when needed.
	Source(object, alias string) string
	Filter(e *graph.PredicateExpression) (sq.Sqlizer, error)
	DerivedTable(dt *graph.DerivedTable) (sq.Sqlizer, error)
}

// JoinRenderer turns a relation collection into FROM-clause text. Returned
// arguments must line up with the "?" markers in the text.
type JoinRenderer interface {
	Joins(rc *graph.RelationCollection, r Renderer) (sq.Sqlizer, error)
}

// DefaultJoins renders relations as ANSI joins, in collection order. The
// first relation contributes both sides; every later one must share a side
// with what has been joined so far.
type DefaultJoins struct{}

func (DefaultJoins) Joins(rc *graph.RelationCollection, r Renderer) (sq.Sqlizer, error) {
	j := &joiner{r: r, present: make(map[string]bool)}
	for i, rel := range rc.Relations {
		var err error
		switch rel := rel.(type) {
		case *graph.EntityRelation:
			err = j.entity(rel)
		case *graph.DynamicRelation:
			err = j.dynamic(rel)
		}
		if err != nil {
			return nil, fmt.Errorf("relation %d: %w", i, err)
		}
	}
	if len(j.parts) == 0 {
		return nil, fmt.Errorf("no renderable relation")
	}
	return sq.ConcatExpr(j.parts...), nil
}

type joiner struct {
	r       Renderer
	parts   []any
	present map[string]bool
}

// joinSource is one side of a join: the key it is known by in the statement
// and the text that introduces it.
type joinSource struct {
	key    string
	source sq.Sqlizer
}

func (j *joiner) join(first, second joinSource, hint graph.JoinHint, on sq.Sqlizer) error {
	switch {
	case len(j.parts) == 0:
		j.parts = append(j.parts, first.source)
		j.present[first.key] = true
	case !j.present[first.key] && j.present[second.key]:
		first, second = second, first
	}
	if !j.present[first.key] {
		return fmt.Errorf("neither %s nor %s is joined yet", first.key, second.key)
	}
	if j.present[second.key] {
		return fmt.Errorf("%s is already joined", second.key)
	}
	if hint == "" {
		hint = graph.JoinInner
	}
	j.parts = append(j.parts, " "+string(hint)+" JOIN ", second.source)
	if hint != graph.JoinCross && on != nil {
		j.parts = append(j.parts, " ON ", on)
	}
	j.present[second.key] = true
	return nil
}

func (j *joiner) entity(rel *graph.EntityRelation) error {
	if len(rel.Pairs) == 0 || rel.Pairs[0].PK == nil || rel.Pairs[0].FK == nil {
		return fmt.Errorf("entity relation without fields")
	}
	head := rel.Pairs[0]
	pk, err := j.entitySide(head.PK, head.PKDescriptor, rel.PKSideAlias(), rel.InheritancePKSide)
	if err != nil {
		return err
	}
	fk, err := j.entitySide(head.FK, head.FKDescriptor, rel.FKSideAlias(), rel.InheritanceFKSide)
	if err != nil {
		return err
	}

	var conds []any
	for _, p := range rel.Pairs {
		if p.PK == nil || p.FK == nil {
			continue
		}
		if len(conds) > 0 {
			conds = append(conds, " AND ")
		}
		conds = append(conds, j.r.Column(p.PK, p.PKDescriptor, rel.PKSideAlias())+" = "+j.r.Column(p.FK, p.FKDescriptor, rel.FKSideAlias()))
	}
	if rel.CustomFilter.Len() > 0 {
		f, err := j.r.Filter(rel.CustomFilter)
		if err != nil {
			return err
		}
		if f != nil {
			conds = append(conds, " AND ", f)
		}
	}
	on := sq.ConcatExpr(conds...)

	if rel.StartAtFK {
		return j.join(fk, pk, rel.Hint, on)
	}
	return j.join(pk, fk, rel.Hint, on)
}

func (j *joiner) entitySide(f *graph.Field, d *graph.Descriptor, given string, info *graph.InheritanceInfo) (joinSource, error) {
	key := given
	if key == "" {
		key = f.Object
	}
	src, err := j.hierarchy(j.r.Object(f, d), f.Object, given, info)
	return joinSource{key: key, source: src}, err
}

// hierarchy renders object together with the supertypes it inherits from,
// each under the alias derived from given.
func (j *joiner) hierarchy(qualified, object, given string, info *graph.InheritanceInfo) (sq.Sqlizer, error) {
	base := j.r.Source(qualified, given)
	if info == nil || info.RelationsToHierarchyRoot.Len() == 0 {
		return sq.Expr(base), nil
	}
	in := func(o string) string {
		if given == "" || o == object {
			return given
		}
		return alias.Derived(given, o)
	}
	parts := []any{"(", base}
	for _, rel := range info.RelationsToHierarchyRoot.Relations {
		er, ok := rel.(*graph.EntityRelation)
		if !ok || len(er.Pairs) == 0 {
			continue
		}
		super := er.Pairs[0]
		parts = append(parts, " INNER JOIN ", j.r.Source(j.r.Object(super.PK, super.PKDescriptor), in(er.PKObject())), " ON ")
		for i, p := range er.Pairs {
			if i > 0 {
				parts = append(parts, " AND ")
			}
			parts = append(parts, j.r.Column(p.FK, p.FKDescriptor, in(p.FK.Object))+" = "+j.r.Column(p.PK, p.PKDescriptor, in(p.PK.Object)))
		}
	}
	return sq.ConcatExpr(append(parts, ")")...), nil
}

func (j *joiner) dynamic(rel *graph.DynamicRelation) error {
	left, err := j.dynamicSide(rel.Left)
	if err != nil {
		return err
	}
	if rel.Right == nil {
		if len(j.parts) > 0 {
			return fmt.Errorf("single-source relation %s after other relations", left.key)
		}
		j.parts = append(j.parts, left.source)
		j.present[left.key] = true
		return nil
	}
	right, err := j.dynamicSide(rel.Right)
	if err != nil {
		return err
	}
	var on sq.Sqlizer
	if rel.OnClause.Len() > 0 {
		f, err := j.r.Filter(rel.OnClause)
		if err != nil {
			return err
		}
		on = f
	}
	if on == nil && rel.Hint != graph.JoinCross {
		return fmt.Errorf("join of %s and %s has no ON clause", left.key, right.key)
	}
	return j.join(left, right, rel.Hint, on)
}

func (j *joiner) dynamicSide(s *graph.JoinSide) (joinSource, error) {
	switch {
	case s == nil:
		return joinSource{}, fmt.Errorf("missing join side")
	case s.IsDerivedTable():
		src, err := j.r.DerivedTable(s.Derived)
		return joinSource{key: s.Derived.Alias, source: src}, err
	case s.Field == nil:
		return joinSource{}, fmt.Errorf("join side without field or derived table")
	}
	return j.entitySide(s.Field, s.Descriptor, s.Field.ObjectAlias, s.Inheritance)
}
