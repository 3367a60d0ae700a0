package pg

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gql2sql/internal/schema"
)

// Phase key prefixes. ApplyDDL runs keys in lexical order, so every table
// exists before a constraint or function refers to it.
const (
	PhaseExtensions  = "000_extensions"
	PhaseFunctions   = "010_functions"
	PhaseTables      = "100_tables"
	PhaseIndexes     = "150_indexes"
	PhaseForeignKeys = "200_fk_"
	PhaseJunctions   = "300_junctions"
	PhaseTriggers    = "400_triggers"
	PhaseLookups     = "500_lookups"
)

// DefaultExtensions are created before any table.
var DefaultExtensions = []string{"uuid-ossp", "citext", "pgcrypto"}

// DDLOptions tune GenerateDDL. The zero value emits everything into the
// search-path schema.
type DDLOptions struct {
	Schema         string // target schema, "" for the search path
	SkipExtensions bool
	SkipTriggers   bool
	SkipLookups    bool
	// OmitJunctions tags junction tables with a Postgraphile @omit comment.
	OmitJunctions bool
}

// updatedAtColumns trigger the updated-at maintenance function.
var updatedAtColumns = map[string]struct{}{"updated_at": {}, "updatedAt": {}}

const updatedAtFunction = "update_updated_at_column"

func ident(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

func literal(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

type emitter struct {
	opts   DDLOptions
	tables map[string]schema.TableDefinition // by entity and table name
}

func (e emitter) qualify(name string) string {
	if e.opts.Schema == "" {
		return ident(name)
	}
	return ident(e.opts.Schema) + "." + ident(name)
}

// GenerateDDL returns phase-keyed SQL for the assembled tables. Every
// statement is idempotent except the foreign-key constraints, which get one
// key each so ApplyDDL can skip the ones that already exist.
func GenerateDDL(tables []schema.TableDefinition, opts DDLOptions) (map[string]string, error) {
	e := emitter{opts: opts, tables: make(map[string]schema.TableDefinition, len(tables)*2)}
	for _, t := range tables {
		e.tables[t.Name] = t
		e.tables[t.Entity] = t
	}
	out := make(map[string]string)

	var pre strings.Builder
	if !opts.SkipExtensions {
		for _, ext := range DefaultExtensions {
			fmt.Fprintf(&pre, "create extension if not exists %s;\n", ident(ext))
		}
	}
	if opts.Schema != "" {
		fmt.Fprintf(&pre, "create schema if not exists %s;\n", ident(opts.Schema))
	}
	if pre.Len() > 0 {
		out[PhaseExtensions] = pre.String()
	}

	var tbls, idx, junctions, triggers, lookups strings.Builder
	needsTriggerFn := false
	for _, t := range tables {
		stmt, err := e.createTable(t)
		if err != nil {
			return nil, err
		}
		tbls.WriteString(stmt)
		e.indexes(&idx, t)

		for _, c := range t.Columns {
			if c.References == nil {
				continue
			}
			name := schema.ConstraintName(t.Name, c.Name)
			out[PhaseForeignKeys+name] = fmt.Sprintf(
				"alter table %s add constraint %s foreign key (%s) references %s(%s) on delete %s;\n",
				e.qualify(t.Name), ident(name), ident(c.Name),
				e.qualify(c.References.Table), ident(c.References.Column), onDelete(c.References.OnDelete))
		}

		for _, r := range t.Relations {
			if r.Kind != schema.ManyToMany {
				continue
			}
			stmt, err := e.junction(r)
			if err != nil {
				return nil, err
			}
			junctions.WriteString(stmt)
		}

		if !opts.SkipTriggers {
			if col, ok := updatedAtColumn(t); ok {
				needsTriggerFn = true
				trg := "update_" + t.Name + "_updated_at_column"
				fmt.Fprintf(&triggers, "drop trigger if exists %s on %s;\n", ident(trg), e.qualify(t.Name))
				fmt.Fprintf(&triggers, "create trigger %s before update on %s for each row execute procedure %s(%s);\n",
					ident(trg), e.qualify(t.Name), e.qualify(updatedAtFunction), literal(col))
			}
		}

		if !opts.SkipLookups {
			for _, l := range t.Lookups {
				stmt, err := e.lookup(l)
				if err != nil {
					return nil, err
				}
				lookups.WriteString(stmt)
			}
		}
	}

	if needsTriggerFn {
		out[PhaseFunctions] = fmt.Sprintf(`create or replace function %s() returns trigger as $$
begin
  NEW := jsonb_populate_record(NEW, jsonb_build_object(TG_ARGV[0], now()));
  return NEW;
end;
$$ language plpgsql;
`, e.qualify(updatedAtFunction))
	}
	for key, b := range map[string]*strings.Builder{
		PhaseTables:    &tbls,
		PhaseIndexes:   &idx,
		PhaseJunctions: &junctions,
		PhaseTriggers:  &triggers,
		PhaseLookups:   &lookups,
	} {
		if b.Len() > 0 {
			out[key] = b.String()
		}
	}
	return out, nil
}

// Keys returns the phase keys of ddl in execution order.
func Keys(ddl map[string]string) []string {
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Script joins ddl into a single script in execution order.
func Script(ddl map[string]string) string {
	var b strings.Builder
	for _, k := range Keys(ddl) {
		fmt.Fprintf(&b, "-- %s\n%s\n", k, strings.TrimSpace(ddl[k]))
	}
	return b.String()
}

func (e emitter) createTable(t schema.TableDefinition) (string, error) {
	var pks []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pks = append(pks, ident(c.Name))
		}
	}
	cols := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Type) == "" {
			return "", fmt.Errorf("%s.%s: column has no storage type", t.Name, c.Name)
		}
		cols = append(cols, columnDef(c, len(pks) == 1))
	}
	if len(pks) > 1 {
		cols = append(cols, "primary key ("+strings.Join(pks, ", ")+")")
	}
	return fmt.Sprintf("create table if not exists %s (\n  %s\n);\n",
		e.qualify(t.Name), strings.Join(cols, ",\n  ")), nil
}

// columnDef renders one column. Identity columns ignore defaults; DateTime
// columns default to now() and UUID keys to gen_random_uuid().
func columnDef(c schema.Column, inlinePK bool) string {
	var b strings.Builder
	b.WriteString(ident(c.Name))
	b.WriteString(" ")
	b.WriteString(c.Type)
	switch {
	case c.AutoIncrement:
		b.WriteString(" generated by default as identity")
	case c.Default != "":
		b.WriteString(" default " + c.Default)
	case c.Tag == "DATETIME" && c.References == nil:
		b.WriteString(" default now()")
	case c.Tag == "UUID" && c.PrimaryKey:
		b.WriteString(" default gen_random_uuid()")
	}
	if c.PrimaryKey && inlinePK {
		b.WriteString(" primary key")
	} else if !c.Nullable {
		b.WriteString(" not null")
	}
	b.WriteString(enumCheck(c))
	return b.String()
}

// enumCheck restricts a column to its enum values. A jsonb list of enum
// values must be an array whose elements all come from the set; lists in
// any other storage are left unchecked.
func enumCheck(c schema.Column) string {
	if len(c.Enum) == 0 {
		return ""
	}
	if c.Tag == "ARRAY" {
		if c.Type != "jsonb" {
			return ""
		}
		set, _ := json.Marshal(c.Enum)
		return fmt.Sprintf(" check (jsonb_typeof(%[1]s) = 'array' and %[1]s <@ %[2]s::jsonb)", ident(c.Name), literal(string(set)))
	}
	vals := make([]string, len(c.Enum))
	for i, v := range c.Enum {
		vals[i] = literal(v)
	}
	return fmt.Sprintf(" check (%s in (%s))", ident(c.Name), strings.Join(vals, ", "))
}

func (e emitter) indexes(b *strings.Builder, t schema.TableDefinition) {
	for _, c := range t.Columns {
		if c.Unique && !c.PrimaryKey {
			fmt.Fprintf(b, "create unique index if not exists %s on %s(%s);\n",
				ident(t.Name+"_"+c.Name+"_uq"), e.qualify(t.Name), ident(c.Name))
		}
	}
	for _, set := range t.Unique {
		if len(set) == 0 {
			continue
		}
		cols := make([]string, len(set))
		names := make([]string, len(set))
		for i, f := range set {
			names[i] = columnFor(t, f)
			cols[i] = ident(names[i])
		}
		fmt.Fprintf(b, "create unique index if not exists %s on %s(%s);\n",
			ident(t.Name+"_"+strings.Join(names, "_")+"_uq"), e.qualify(t.Name), strings.Join(cols, ", "))
	}
}

// columnFor maps a field named in a unique set to its column; relation
// fields map to their foreign-key column.
func columnFor(t schema.TableDefinition, field string) string {
	if _, ok := t.Column(field); ok {
		return field
	}
	if _, ok := t.Column(schema.ForeignKeyColumn(field)); ok {
		return schema.ForeignKeyColumn(field)
	}
	return field
}

func (e emitter) key(entity string) (schema.TableDefinition, schema.Column, error) {
	t, ok := e.tables[entity]
	if !ok {
		return t, schema.Column{}, fmt.Errorf("unknown table %q", entity)
	}
	pk, ok := t.PrimaryKey()
	if !ok {
		return t, pk, fmt.Errorf("table %q has no primary key", t.Name)
	}
	return t, pk, nil
}

func (e emitter) junction(r schema.Relation) (string, error) {
	src, srcPK, err := e.key(r.Source)
	if err != nil {
		return "", fmt.Errorf("junction %s: %w", r.Junction.Table, err)
	}
	tgt, tgtPK, err := e.key(r.Target)
	if err != nil {
		return "", fmt.Errorf("junction %s: %w", r.Junction.Table, err)
	}
	j := r.Junction
	var b strings.Builder
	fmt.Fprintf(&b, "create table if not exists %s (\n", e.qualify(j.Table))
	fmt.Fprintf(&b, "  %s %s not null references %s(%s) on delete cascade,\n",
		ident(j.SourceColumn), srcPK.Type, e.qualify(src.Name), ident(srcPK.Name))
	fmt.Fprintf(&b, "  %s %s not null references %s(%s) on delete cascade,\n",
		ident(j.TargetColumn), tgtPK.Type, e.qualify(tgt.Name), ident(tgtPK.Name))
	fmt.Fprintf(&b, "  primary key (%s, %s)\n);\n", ident(j.SourceColumn), ident(j.TargetColumn))
	if e.opts.OmitJunctions {
		fmt.Fprintf(&b, "comment on table %s is E'@omit';\n", e.qualify(j.Table))
	}
	return b.String(), nil
}

// lookup renders a set-returning function usable as a computed column:
// for a row of From it returns the rows of To linked through the junction.
func (e emitter) lookup(l schema.Lookup) (string, error) {
	from, fromPK, err := e.key(l.From)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", l.Name, err)
	}
	to, toPK, err := e.key(l.To)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", l.Name, err)
	}
	return fmt.Sprintf(`create or replace function %s(src %s) returns setof %s as $$
  select t.* from %s t
  inner join %s j on j.%s = t.%s
  where j.%s = src.%s;
$$ language sql stable;
`,
		e.qualify(l.Name), e.qualify(from.Name), e.qualify(to.Name),
		e.qualify(to.Name),
		e.qualify(l.Junction), ident(l.ToColumn), ident(toPK.Name),
		ident(l.FromColumn), ident(fromPK.Name)), nil
}

func updatedAtColumn(t schema.TableDefinition) (string, bool) {
	for _, c := range t.Columns {
		if _, ok := updatedAtColumns[c.Name]; ok {
			return c.Name, true
		}
	}
	return "", false
}

func onDelete(policy string) string {
	if policy == "" {
		return "restrict"
	}
	return strings.ToLower(policy)
}
