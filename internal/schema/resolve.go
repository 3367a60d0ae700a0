package schema

import (
	"sort"

	"gql2sql/internal/dsl"
)

// Options tune relation resolution.
type Options struct {
	// AllowOneToMany resolves a list field paired with a to-one field as a
	// foreign key owned by the to-one side, exposing the list side as its
	// reverse direction. Without it such a pair is a validation error.
	AllowOneToMany bool
	// ReverseForOneSided exposes a reverse direction, named after the
	// pluralized owner table, for foreign keys declared on one side only.
	ReverseForOneSided bool
}

// resolved is a relation waiting for its junction name.
type resolved struct {
	rel Relation
	pos position // declaration position of the owner field
}

// Resolve collapses descriptors into canonical relations. Descriptors are
// grouped by relation name; a group holds one side (emitted as is) or both
// sides (collapsed into one relation owned by the first declarer).
func Resolve(entities []*dsl.Entity, descs []Descriptor, opts Options) ([]Relation, error) {
	byName := make(map[string]*dsl.Entity, len(entities))
	for _, e := range entities {
		byName[e.Name] = e
	}

	ordered := append([]Descriptor(nil), descs...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].pos.less(ordered[j].pos) })

	var keys []string
	groups := make(map[string][]Descriptor)
	for _, d := range ordered {
		if _, ok := groups[d.Name]; !ok {
			keys = append(keys, d.Name)
		}
		groups[d.Name] = append(groups[d.Name], d)
	}

	out := make([]resolved, 0, len(keys))
	reverse := make(reverseNames)
	for _, key := range keys {
		group := groups[key]
		if err := checkGroup(group); err != nil {
			return nil, err
		}
		var (
			r   resolved
			err error
		)
		if len(group) == 1 {
			r, err = single(group[0], byName, reverse, opts)
		} else {
			r, err = pair(group[0], group[1], opts)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].pos.less(out[j].pos) })
	if err := nameJunctions(entities, out); err != nil {
		return nil, err
	}

	rels := make([]Relation, len(out))
	for i, r := range out {
		rels[i] = r.rel
	}
	return rels, nil
}

// checkGroup rejects groups that do not describe exactly one entity pair.
func checkGroup(group []Descriptor) error {
	first := group[0]
	if len(group) > 2 {
		d := group[2]
		return invalid(d.Source, d.Field, CodeAmbiguousRelation,
			"relation %q is declared by %d fields; a relation connects exactly two sides, add distinct relation names",
			first.Name, len(group))
	}
	if len(group) == 1 {
		return nil
	}
	second := group[1]
	if first.Source == second.Source && first.Source != first.Target {
		return invalid(second.Source, second.Field, CodeAmbiguousRelation,
			"relation %q is declared twice on %s (fields %s and %s); name each relation explicitly",
			first.Name, first.Source, first.Field, second.Field)
	}
	if first.Target != second.Source || second.Target != first.Source {
		return invalid(second.Source, second.Field, CodeAmbiguousRelation,
			"relation %q connects %s->%s and %s->%s; both sides must reference each other",
			first.Name, first.Source, first.Target, second.Source, second.Target)
	}
	return nil
}

// reverseNames records the computed reverse names claimed on each target.
type reverseNames map[string]map[string]struct{}

// claim reserves name on the target entity unless a field or an earlier
// relation already uses it.
func (rn reverseNames) claim(target *dsl.Entity, name string) bool {
	if _, taken := target.FieldByName(name); taken {
		return false
	}
	names := rn[target.Name]
	if names == nil {
		names = make(map[string]struct{})
		rn[target.Name] = names
	}
	if _, taken := names[name]; taken {
		return false
	}
	names[name] = struct{}{}
	return true
}

// single emits a relation declared on one side only. With
// ReverseForOneSided the first foreign key into a target is exposed as
// plural(owner table); later ones add "_by_" and the owner field.
func single(d Descriptor, entities map[string]*dsl.Entity, reverse reverseNames, opts Options) (resolved, error) {
	if d.Inverse != "" {
		return resolved{}, invalid(d.Source, d.Field, CodeInverseMismatch,
			"reciprocal field %s.%s does not declare relation %q", d.Target, d.Inverse, d.Name)
	}
	rel := baseRelation(d)
	if d.Kind == ForeignKey && opts.ReverseForOneSided {
		if target, ok := entities[d.Target]; ok {
			name := plural(TableName(d.Source))
			for _, candidate := range []string{name, name + "_by_" + snake(d.Field)} {
				if reverse.claim(target, candidate) {
					rel.Inverse = candidate
					break
				}
			}
		}
	}
	return resolved{rel: rel, pos: d.pos}, nil
}

// pair collapses the two sides of one relation. a precedes b in declaration order.
func pair(a, b Descriptor, opts Options) (resolved, error) {
	for _, s := range []struct{ self, peer Descriptor }{{a, b}, {b, a}} {
		if s.self.Inverse != "" && s.self.Inverse != s.peer.Field {
			return resolved{}, invalid(s.self.Source, s.self.Field, CodeInverseMismatch,
				"declares reciprocal field %q but relation %q is declared by %s.%s",
				s.self.Inverse, s.self.Name, s.peer.Source, s.peer.Field)
		}
	}

	switch {
	case a.IsList && b.IsList:
		rel := baseRelation(a)
		rel.Inverse = b.Field
		return resolved{rel: rel, pos: a.pos}, nil

	case !a.IsList && !b.IsList:
		return resolved{}, invalid(b.Source, b.Field, CodeAmbiguousForeignKey,
			"relation %q is to-one on both sides (%s.%s and %s.%s); only one side may own the foreign key",
			a.Name, a.Source, a.Field, b.Source, b.Field)
	}

	owner, list := a, b
	if a.IsList {
		owner, list = b, a
	}
	if owner.Unique {
		return resolved{}, invalid(owner.Source, owner.Field, CodeIncompatibleCardinality,
			"unique to-one field conflicts with list field %s.%s of relation %q",
			list.Source, list.Field, owner.Name)
	}
	if !opts.AllowOneToMany {
		return resolved{}, invalid(owner.Source, owner.Field, CodeMixedCardinality,
			"relation %q is to-one here but a list on %s.%s; enable one-to-many resolution or make both sides lists",
			owner.Name, list.Source, list.Field)
	}
	rel := baseRelation(owner)
	rel.Inverse = list.Field
	return resolved{rel: rel, pos: owner.pos}, nil
}

func baseRelation(d Descriptor) Relation {
	rel := Relation{
		Name:   d.Name,
		Kind:   d.Kind,
		Source: d.Source,
		Target: d.Target,
		Field:  d.Field,
	}
	if d.IsList {
		rel.Kind = ManyToMany
		src, tgt := junctionColumnPair(d)
		rel.Junction = &Junction{SourceColumn: src, TargetColumn: tgt}
		return rel
	}
	rel.Kind = ForeignKey
	rel.Column = ForeignKeyColumn(d.Field)
	rel.Unique = d.Unique
	rel.Required = d.Required
	rel.OnDelete = d.OnDelete
	rel.Default = d.Default
	return rel
}

// junctionColumnPair names the two junction columns. Self relations take the
// target column from the singularized field name.
func junctionColumnPair(d Descriptor) (string, string) {
	src := TableName(d.Source) + "_id"
	tgt := TableName(d.Target) + "_id"
	if src == tgt {
		tgt = snake(singular(d.Field)) + "_id"
	}
	if src == tgt {
		tgt = "related_" + tgt
	}
	return src, tgt
}

// nameJunctions assigns junction table names in owner declaration order.
func nameJunctions(entities []*dsl.Entity, rs []resolved) error {
	used := make(map[string]struct{}, len(entities)+len(rs))
	for _, e := range entities {
		used[TableName(e.Name)] = struct{}{}
	}
	for i := range rs {
		rel := &rs[i].rel
		if rel.Kind != ManyToMany {
			continue
		}
		name := JunctionName(rel.Source, rel.Target)
		if _, taken := used[name]; taken {
			name = name + "_" + snake(rel.Name)
		}
		if _, taken := used[name]; taken {
			return invalid(rel.Source, rel.Field, CodeJunctionCollision,
				"junction table %q for relation %q collides with an existing table", name, rel.Name)
		}
		used[name] = struct{}{}
		rel.Junction.Table = name
	}
	return nil
}
