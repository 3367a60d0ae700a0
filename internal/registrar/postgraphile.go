package registrar

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gql2sql/internal/schema"
)

// Execer is the part of *sql.DB the postgraphile flavor needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Postgraphile names relationships with smart comments on foreign-key
// constraints. A constraint can carry tags from several registrations, so
// every Register rewrites the full comment of the constraint it touches.
type Postgraphile struct {
	db     Execer
	schema string

	mu   sync.Mutex
	tags map[constraintRef]map[string]string // tag -> value
}

type constraintRef struct {
	table, name string
}

func NewPostgraphile(db Execer, dbSchema string) *Postgraphile {
	return &Postgraphile{db: db, schema: dbSchema, tags: map[constraintRef]map[string]string{}}
}

func (p *Postgraphile) Name() string { return FlavorPostgraphile }

// Prepare forgets tags from a previous run. Tables need no tracking.
func (p *Postgraphile) Prepare(context.Context, []string) error {
	p.mu.Lock()
	p.tags = map[constraintRef]map[string]string{}
	p.mu.Unlock()
	return nil
}

// Register tags the constraint behind reg. Object registrations name the
// forward field on the owner; array registrations name the backward field
// on the constraint of the remote table that points at the owner.
func (p *Postgraphile) Register(ctx context.Context, reg Registration) error {
	var (
		ref constraintRef
		tag string
	)
	switch reg.Kind {
	case Object:
		ref = constraintRef{table: reg.OwnerTable, name: schema.ConstraintName(reg.OwnerTable, reg.Column)}
		tag = "fieldName"
	case Array:
		ref = constraintRef{table: reg.RemoteTable, name: schema.ConstraintName(reg.RemoteTable, reg.Column)}
		tag = "foreignFieldName"
	default:
		return fmt.Errorf("unknown registration kind %q", reg.Kind)
	}

	p.mu.Lock()
	tags, ok := p.tags[ref]
	if !ok {
		tags = map[string]string{}
		p.tags[ref] = tags
	}
	tags[tag] = reg.Name
	comment := smartComment(tags)
	p.mu.Unlock()

	stmt := fmt.Sprintf("comment on constraint %s on %s is %s;", quoteIdent(ref.name), p.qualify(ref.table), comment)
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("comment on %s.%s: %w", ref.table, ref.name, err)
	}
	return nil
}

func (p *Postgraphile) qualify(table string) string {
	if p.schema == "" {
		return quoteIdent(table)
	}
	return quoteIdent(p.schema) + "." + quoteIdent(table)
}

// smartComment renders tags as an escaped string literal, sorted by tag.
func smartComment(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = "@" + k + " " + tags[k]
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)
	return "E'" + r.Replace(strings.Join(lines, "\n")) + "'"
}

func quoteIdent(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }
