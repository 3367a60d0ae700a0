package schema

import "gql2sql/internal/dsl"

// Build runs the whole pipeline over a complete entity set. Any validation
// failure aborts the run: a partially resolved schema is never returned.
func Build(entities []*dsl.Entity, tr *Translator, opts Options) (*Snapshot, error) {
	if issues := Lint(entities); len(issues) > 0 {
		return nil, issues
	}

	columns := make(map[string][]Column, len(entities))
	for _, e := range entities {
		for _, f := range e.Fields {
			col, err := tr.Translate(e.Name, f)
			if err != nil {
				return nil, err
			}
			if col != nil {
				columns[e.Name] = append(columns[e.Name], *col)
			}
		}
	}

	descs, err := Descriptors(entities)
	if err != nil {
		return nil, err
	}
	rels, err := Resolve(entities, descs, opts)
	if err != nil {
		return nil, err
	}

	byOwner := make(map[string][]Relation, len(entities))
	for _, r := range rels {
		byOwner[r.Source] = append(byOwner[r.Source], r)
	}
	tables, err := Assemble(entities, columns, byOwner)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Tables: tables, Relations: rels}, nil
}
