package schema

import (
	"strings"

	"gql2sql/internal/dsl"
)

// Lint checks the entity graph for contradictions that make resolution
// meaningless. It reports every finding instead of stopping at the first.
func Lint(entities []*dsl.Entity) ValidationErrors {
	var issues ValidationErrors
	add := func(entity, field, code, format string, args ...any) {
		issues = append(issues, invalid(entity, field, code, format, args...))
	}

	byName := make(map[string]*dsl.Entity, len(entities))
	tables := make(map[string]string, len(entities))
	for _, e := range entities {
		if _, dup := byName[e.Name]; dup {
			add(e.Name, "", CodeDuplicateEntity, "entity is declared twice")
			continue
		}
		if prev, dup := tables[TableName(e.Name)]; dup {
			add(e.Name, "", CodeDuplicateEntity, "table name %q is shared with entity %s", TableName(e.Name), prev)
			continue
		}
		byName[e.Name] = e
		tables[TableName(e.Name)] = e.Name
	}

	for _, e := range entities {
		fields := make(map[string]struct{}, len(e.Fields))
		for _, f := range e.Fields {
			if _, dup := fields[f.Name]; dup {
				add(e.Name, f.Name, CodeDuplicateField, "field is declared twice")
			}
			fields[f.Name] = struct{}{}

			od := strings.ToLower(strings.TrimSpace(f.Option("on_delete")))
			if _, ok := onDeletePolicies[od]; !ok {
				add(e.Name, f.Name, CodeOnDeleteUnknown, "unknown on_delete policy %q (allowed: restrict|set_null|cascade)", od)
			}

			if !f.IsRelation() {
				if strings.EqualFold(f.Type, "enum") && len(f.Enum) == 0 {
					add(e.Name, f.Name, CodeEnumEmpty, "enum field has no values")
				}
				continue
			}

			target, ok := byName[f.RefTarget]
			if !ok {
				add(e.Name, f.Name, CodeUnknownTarget, "references unknown entity %q", f.RefTarget)
				continue
			}
			if f.IsRequired && od == "set_null" {
				add(e.Name, f.Name, CodeRequiredSetNull, "required relation cannot have on_delete=set_null; use restrict (or make the field optional)")
			}
			if f.Inverse != "" {
				peer, ok := target.FieldByName(f.Inverse)
				if !ok || peer.RefTarget != e.Name {
					add(e.Name, f.Name, CodeInverseMismatch, "reciprocal field %s.%s does not reference %s", target.Name, f.Inverse, e.Name)
				}
			}
		}

		for _, set := range e.Constraints.Unique {
			for _, name := range set {
				if _, ok := fields[name]; !ok {
					add(e.Name, name, CodeUniqueUnknownField, "unique constraint names unknown field")
				}
			}
		}
	}
	return issues
}
