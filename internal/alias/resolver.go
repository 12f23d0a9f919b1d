// Package alias finds the table alias governing a field when a relation graph
// spreads one aliased entity over several physical objects.
package alias

import "github.com/atlekbai/query_graph/internal/graph"

type key struct {
	alias  string
	object string
}

// Resolver maps (given alias, physical owner) to the alias in effect.
type Resolver struct {
	aliases map[key]string
}

// New indexes the inheritance chains recorded on rc. A nil collection yields
// a resolver that returns given aliases unchanged.
func New(rc *graph.RelationCollection) *Resolver {
	r := &Resolver{aliases: make(map[key]string)}
	if rc == nil {
		return r
	}
	for _, rel := range rc.Relations {
		switch rel := rel.(type) {
		case *graph.EntityRelation:
			r.register(rel.PKSideAlias(), rel.PKObject(), rel.InheritancePKSide)
			r.register(rel.FKSideAlias(), rel.FKObject(), rel.InheritanceFKSide)
		case *graph.DynamicRelation:
			r.registerSide(rel.Left)
			r.registerSide(rel.Right)
		}
	}
	return r
}

func (r *Resolver) registerSide(s *graph.JoinSide) {
	if s == nil || s.IsDerivedTable() || s.Field == nil {
		return
	}
	r.register(s.Field.ObjectAlias, s.Field.Object, s.Inheritance)
}

func (r *Resolver) register(given, object string, info *graph.InheritanceInfo) {
	if given == "" || info == nil {
		return
	}
	r.aliases[key{given, object}] = given
	for _, o := range HierarchyObjects(info) {
		if o == object {
			continue
		}
		if _, ok := r.aliases[key{given, o}]; !ok {
			r.aliases[key{given, o}] = Derived(given, o)
		}
	}
}

// Resolve returns the alias to use for a field of owner that is physically
// held by actualOwner. An empty given alias resolves to "".
func (r *Resolver) Resolve(owner, given, actualOwner string) string {
	if given == "" {
		return ""
	}
	if actualOwner == "" || actualOwner == owner {
		return given
	}
	if a, ok := r.aliases[key{given, actualOwner}]; ok {
		return a
	}
	return given
}

// Derived returns the alias assigned to object inside the hierarchy aliased as given.
func Derived(given, object string) string {
	return given + "_" + object
}

// HierarchyObjects lists every object on the chain described by info, in
// first-seen order.
func HierarchyObjects(info *graph.InheritanceInfo) []string {
	if info == nil || info.RelationsToHierarchyRoot == nil {
		return nil
	}
	var (
		out  []string
		seen = make(map[string]bool)
	)
	add := func(o string) {
		if o != "" && !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	for _, rel := range info.RelationsToHierarchyRoot.Relations {
		if er, ok := rel.(*graph.EntityRelation); ok {
			add(er.FKObject())
			add(er.PKObject())
		}
	}
	return out
}
