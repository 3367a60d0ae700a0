// api/names.go
package api

import (
	"strings"

	"gql2sql/internal/schema"
)

// ResolveTable finds a table by table name or entity name. An exact match
// wins; otherwise a case-insensitive match must be unique.
func (r *Revision) ResolveTable(name string) (schema.TableDefinition, bool) {
	name = strings.TrimSpace(name)
	if r == nil || r.Schema == nil || name == "" {
		return schema.TableDefinition{}, false
	}
	if t, ok := r.Schema.Table(name); ok {
		return t, true
	}

	var (
		found schema.TableDefinition
		n     int
	)
	for _, t := range r.Schema.Tables {
		if strings.EqualFold(t.Name, name) || strings.EqualFold(t.Entity, name) {
			found = t
			n++
		}
	}
	if n != 1 {
		return schema.TableDefinition{}, false
	}
	return found, true
}
