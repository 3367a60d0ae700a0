// Package registrar tells a metadata service about the relations of a
// schema snapshot, so it can expose them without inferring them from
// foreign keys alone.
package registrar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gql2sql/internal/metrics"
	"gql2sql/internal/schema"
)

// Kind is the metadata shape of a registration.
type Kind string

const (
	Object Kind = "object" // to-one, through a column on the owner table
	Array  Kind = "array"  // to-many, through a column on a remote table
)

// Registration is one relationship to declare, keyed by
// {OwnerTable, Name, Kind}.
type Registration struct {
	OwnerTable string `json:"ownerTable"`
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	Relation   string `json:"relation"`

	// Column is the owner-table foreign key of an Object registration, or the
	// RemoteTable column pointing back at the owner for an Array one.
	Column      string `json:"column"`
	RemoteTable string `json:"remoteTable,omitempty"`
	// Reverse marks the metadata-only direction of a relation.
	Reverse bool `json:"reverse,omitempty"`
}

// Key identifies the registration.
func (r Registration) Key() string { return r.OwnerTable + "." + r.Name + "/" + string(r.Kind) }

// Registrar is one metadata service flavor.
type Registrar interface {
	Name() string
	// Prepare resets the service state for tables before registrations.
	Prepare(ctx context.Context, tables []string) error
	Register(ctx context.Context, reg Registration) error
}

// Failure is a registration that did not go through.
type Failure struct {
	Registration Registration
	Err          error
}

// Error prefixes the cause with the registration key.
func (f Failure) Error() string { return f.Registration.Key() + ": " + f.Err.Error() }

// Unwrap returns the cause.
func (f Failure) Unwrap() error { return f.Err }

// Failures lists per-item registration errors.
type Failures []Failure

// Error joins every failure into one message.
func (fs Failures) Error() string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%d registration(s) failed: %s", len(fs), strings.Join(parts, "; "))
}

// Unwrap exposes each failure to errors.Is and errors.As.
func (fs Failures) Unwrap() []error {
	out := make([]error, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}

// Plan derives registrations from canonical relations: an object
// registration per foreign key, an array registration per many-to-many
// relation, and an array registration for every computed reverse direction.
func Plan(relations []schema.Relation) []Registration {
	var out []Registration
	for _, rel := range relations {
		src, tgt := schema.TableName(rel.Source), schema.TableName(rel.Target)
		switch rel.Kind {
		case schema.ForeignKey:
			out = append(out, Registration{
				OwnerTable: src, Name: rel.Field, Kind: Object, Relation: rel.Name, Column: rel.Column,
			})
			if rel.Inverse != "" {
				out = append(out, Registration{
					OwnerTable: tgt, Name: rel.Inverse, Kind: Array, Relation: rel.Name,
					Column: rel.Column, RemoteTable: src, Reverse: true,
				})
			}
		case schema.ManyToMany:
			j := rel.Junction
			out = append(out, Registration{
				OwnerTable: src, Name: rel.Field, Kind: Array, Relation: rel.Name,
				Column: j.SourceColumn, RemoteTable: j.Table,
			})
			if rel.Inverse != "" {
				out = append(out, Registration{
					OwnerTable: tgt, Name: rel.Inverse, Kind: Array, Relation: rel.Name,
					Column: j.TargetColumn, RemoteTable: j.Table, Reverse: true,
				})
			}
		}
	}
	return out
}

// Tables returns the tables a snapshot exposes, junctions included, in
// declaration order.
func Tables(snap *schema.Snapshot) []string {
	var out []string
	for _, t := range snap.Tables {
		out = append(out, t.Name)
	}
	for _, rel := range snap.Relations {
		if rel.Junction != nil {
			out = append(out, rel.Junction.Table)
		}
	}
	return out
}

// Runner drives a Registrar over a plan.
type Runner struct {
	Registrar Registrar
	Logger    *slog.Logger
	Metrics   *metrics.Metrics // optional
}

// Run prepares the service and registers every item. A failed item does
// not stop the rest; the returned Failures lists them. A Prepare error is
// returned as is.
func (r Runner) Run(ctx context.Context, tables []string, regs []Registration) (Failures, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("registrar", r.Registrar.Name())
	if err := r.Registrar.Prepare(ctx, tables); err != nil {
		return nil, fmt.Errorf("%s: prepare: %w", r.Registrar.Name(), err)
	}
	return RegisterAll(ctx, r.Registrar, regs, logger, r.Metrics), nil
}

// RegisterAll registers each item and collects the failures.
func RegisterAll(ctx context.Context, r Registrar, regs []Registration, logger *slog.Logger, m *metrics.Metrics) Failures {
	if logger == nil {
		logger = slog.Default()
	}
	var failed Failures
	for _, reg := range regs {
		err := r.Register(ctx, reg)
		if m != nil {
			m.Registrations.WithLabelValues(r.Name(), string(reg.Kind), metrics.Outcome(err)).Inc()
		}
		if err != nil {
			logger.Warn("registration failed", "key", reg.Key(), "error", err)
			failed = append(failed, Failure{Registration: reg, Err: err})
			continue
		}
		logger.Debug("registered", "key", reg.Key(), "relation", reg.Relation)
	}
	return failed
}

// Flavors.
const (
	FlavorHasura       = "hasura"
	FlavorPostgraphile = "postgraphile"
	FlavorNone         = "none"
)

// None accepts every registration and does nothing.
type None struct{}

func (None) Name() string { return FlavorNone }

func (None) Prepare(context.Context, []string) error { return nil }

func (None) Register(context.Context, Registration) error { return nil }

// Config selects and configures a flavor.
type Config struct {
	Flavor string
	Schema string // database schema the tables live in
	Hasura HasuraConfig
}

// New returns the registrar of cfg.Flavor. The postgraphile flavor writes
// through db; the others ignore it.
func New(cfg Config, db Execer, logger *slog.Logger) (Registrar, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Flavor)) {
	case FlavorHasura:
		h := cfg.Hasura
		if h.Schema == "" {
			h.Schema = cfg.Schema
		}
		r, err := NewHasura(h, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case FlavorPostgraphile:
		if db == nil {
			return nil, schema.NewConfigError("registrar", cfg.Flavor, "postgraphile needs a database connection")
		}
		return NewPostgraphile(db, cfg.Schema), nil
	case FlavorNone, "":
		return None{}, nil
	}
	return nil, schema.NewConfigError("registrar", cfg.Flavor, "unknown flavor (hasura|postgraphile|none)")
}
