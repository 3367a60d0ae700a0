package schema

import (
	"fmt"
	"strings"

	"gql2sql/internal/dsl"
)

// On-delete policies as emitted in SQL.
const (
	OnDeleteRestrict = "RESTRICT"
	OnDeleteSetNull  = "SET NULL"
	OnDeleteCascade  = "CASCADE"
)

// onDeletePolicies maps the declared option to its SQL form.
var onDeletePolicies = map[string]string{
	"":         OnDeleteRestrict,
	"restrict": OnDeleteRestrict,
	"set_null": OnDeleteSetNull,
	"cascade":  OnDeleteCascade,
}

// position is the declaration position of a relation field.
type position struct {
	entity int
	field  int
}

func (p position) less(o position) bool {
	if p.entity != o.entity {
		return p.entity < o.entity
	}
	return p.field < o.field
}

// Descriptor is one side of a relation as declared on a single entity,
// before deduplication.
type Descriptor struct {
	Name     string
	Explicit bool // Name was declared, not synthesized
	Kind     Kind // tentative: the resolver may reshape a pair
	Source   string
	Target   string
	Field    string
	Inverse  string
	IsList   bool
	Required bool
	Unique   bool
	Default  string
	OnDelete string

	pos position
}

// Classify inspects one relation field of owner.
func Classify(f dsl.Field, owner *dsl.Entity) (Descriptor, error) {
	if !f.IsRelation() {
		return Descriptor{}, fmt.Errorf("%s.%s is not a relation field", owner.Name, f.Name)
	}
	onDelete, ok := onDeletePolicies[strings.ToLower(strings.TrimSpace(f.Option("on_delete")))]
	if !ok {
		return Descriptor{}, invalid(owner.Name, f.Name, CodeOnDeleteUnknown, "unknown on_delete policy %q", f.Option("on_delete"))
	}

	d := Descriptor{
		Name:     f.RelationName,
		Explicit: f.RelationName != "",
		Kind:     ForeignKey,
		Source:   owner.Name,
		Target:   f.RefTarget,
		Field:    f.Name,
		Inverse:  f.Inverse,
		IsList:   f.IsList,
		Required: f.IsRequired,
		Unique:   f.IsUnique,
		Default:  f.Default,
		OnDelete: onDelete,
	}
	if f.IsList {
		d.Kind = ManyToMany
	}
	if !d.Explicit {
		d.Name = SynthesizeRelationName(owner.Name, f.RefTarget)
	}
	return d, nil
}

// Descriptors classifies every relation field in declaration order.
func Descriptors(entities []*dsl.Entity) ([]Descriptor, error) {
	var out []Descriptor
	for ei, e := range entities {
		for fi, f := range e.Fields {
			if !f.IsRelation() {
				continue
			}
			d, err := Classify(f, e)
			if err != nil {
				return nil, err
			}
			d.pos = position{entity: ei, field: fi}
			out = append(out, d)
		}
	}
	return out, nil
}
