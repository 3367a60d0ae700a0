package schema

import "gql2sql/internal/dsl"

// Assemble merges translated columns and canonical relations into table
// definitions, in entity declaration order. Foreign-key columns are appended
// to their owner typed after the referenced identity column.
func Assemble(entities []*dsl.Entity, columns map[string][]Column, relations map[string][]Relation) ([]TableDefinition, error) {
	keys := make(map[string]Column, len(entities))
	for _, e := range entities {
		for _, c := range columns[e.Name] {
			if c.PrimaryKey {
				keys[e.Name] = c
				break
			}
		}
	}
	identity := func(rel Relation, entity string) (Column, error) {
		pk, ok := keys[entity]
		if !ok {
			return Column{}, invalid(rel.Source, rel.Field, CodeMissingIdentity,
				"relation %q references %s which has no identity field", rel.Name, entity)
		}
		return pk, nil
	}

	usedLookups := make(map[string]struct{})
	tables := make([]TableDefinition, 0, len(entities))
	for _, e := range entities {
		t := TableDefinition{
			Entity:  e.Name,
			Name:    TableName(e.Name),
			Columns: append([]Column(nil), columns[e.Name]...),
		}
		for _, set := range e.Constraints.Unique {
			t.Unique = append(t.Unique, append([]string(nil), set...))
		}
		seen := make(map[string]struct{}, len(t.Columns))
		for _, c := range t.Columns {
			if _, dup := seen[c.Name]; dup {
				return nil, invalid(e.Name, c.Name, CodeDuplicateColumn, "column %q is declared twice", c.Name)
			}
			seen[c.Name] = struct{}{}
		}

		for _, rel := range relations[e.Name] {
			switch rel.Kind {
			case ForeignKey:
				pk, err := identity(rel, rel.Target)
				if err != nil {
					return nil, err
				}
				if _, dup := seen[rel.Column]; dup {
					return nil, invalid(e.Name, rel.Field, CodeDuplicateColumn,
						"foreign-key column %q collides with an existing column", rel.Column)
				}
				seen[rel.Column] = struct{}{}
				t.Columns = append(t.Columns, Column{
					Name:     rel.Column,
					Tag:      pk.Tag,
					Type:     pk.Type,
					Nullable: !rel.Required,
					Unique:   rel.Unique,
					Default:  rel.Default,
					References: &Reference{
						Table:    TableName(rel.Target),
						Column:   pk.Name,
						OnDelete: rel.OnDelete,
					},
				})
			case ManyToMany:
				if _, err := identity(rel, rel.Source); err != nil {
					return nil, err
				}
				if _, err := identity(rel, rel.Target); err != nil {
					return nil, err
				}
				ls, err := nameLookups(usedLookups, rel, lookups(rel))
				if err != nil {
					return nil, err
				}
				t.Lookups = append(t.Lookups, ls...)
			}
			t.Relations = append(t.Relations, rel)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// lookups derives the forward and backward accessors through a junction.
func lookups(rel Relation) []Lookup {
	src, tgt := TableName(rel.Source), TableName(rel.Target)
	back := plural(src)
	if rel.Inverse != "" {
		back = snake(rel.Inverse)
	}
	return []Lookup{
		{
			Name:       src + "_" + snake(rel.Field),
			Relation:   rel.Name,
			Junction:   rel.Junction.Table,
			From:       src,
			To:         tgt,
			FromColumn: rel.Junction.SourceColumn,
			ToColumn:   rel.Junction.TargetColumn,
		},
		{
			Name:       tgt + "_" + back,
			Relation:   rel.Name,
			Junction:   rel.Junction.Table,
			From:       tgt,
			To:         src,
			FromColumn: rel.Junction.TargetColumn,
			ToColumn:   rel.Junction.SourceColumn,
		},
	}
}

// nameLookups makes every lookup name unique across the snapshot. A name
// already used gets "_" and the snake-cased relation name appended; a name
// that still collides is rejected.
func nameLookups(used map[string]struct{}, rel Relation, ls []Lookup) ([]Lookup, error) {
	for i := range ls {
		name := ls[i].Name
		if _, taken := used[name]; taken {
			name = name + "_" + snake(rel.Name)
		}
		if _, taken := used[name]; taken {
			return nil, invalid(rel.Source, rel.Field, CodeJunctionCollision,
				"lookup function %q for relation %q collides with another lookup", name, rel.Name)
		}
		used[name] = struct{}{}
		ls[i].Name = name
	}
	return ls, nil
}
