// Package schema resolves an entity graph into relational table definitions.
//
// The pipeline is pure and single pass:
//
//	entities -> Lint -> Translate (columns) + Classify (descriptors)
//	         -> Resolve (canonical relations) -> Assemble (tables)
//
// Relation ownership and naming decisions key off entity and field
// declaration order only, so the same input always yields the same output.
package schema

// Kind is the physical shape of a relation.
type Kind int

// Relation kinds. One-to-one is a ForeignKey with a unique owning column.
const (
	ForeignKey Kind = iota + 1
	ManyToMany
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case ForeignKey:
		return "foreign_key"
	case ManyToMany:
		return "many_to_many"
	}
	return "unknown"
}

// MarshalText encodes the kind name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Column is the storage description of one table column.
type Column struct {
	Name          string     `json:"name"`
	Tag           string     `json:"tag"` // normalized scalar tag (ID, DATETIME, UUID, ...)
	Type          string     `json:"type"`
	PrimaryKey    bool       `json:"primaryKey,omitempty"`
	Nullable      bool       `json:"nullable"`
	Unique        bool       `json:"unique,omitempty"`
	Default       string     `json:"default,omitempty"`
	AutoIncrement bool       `json:"autoIncrement,omitempty"`
	Enum          []string   `json:"enum,omitempty"`
	References    *Reference `json:"references,omitempty"`
}

// Reference is the target of a foreign-key column.
type Reference struct {
	Table    string `json:"table"`
	Column   string `json:"column"`
	OnDelete string `json:"onDelete,omitempty"`
}

// Junction is the auxiliary table of a many-to-many relation.
type Junction struct {
	Table        string `json:"table"`
	SourceColumn string `json:"sourceColumn"`
	TargetColumn string `json:"targetColumn"`
}

// Relation is the canonical, deduplicated record of one logical relation.
type Relation struct {
	Name     string    `json:"name"`
	Kind     Kind      `json:"kind"`
	Source   string    `json:"source"` // owning entity
	Target   string    `json:"target"`
	Field    string    `json:"field"`            // owner field name
	Column   string    `json:"column,omitempty"` // ForeignKey only
	Junction *Junction `json:"junction,omitempty"`
	// Inverse names the metadata-only reverse direction exposed on Target.
	Inverse  string `json:"inverse,omitempty"`
	Unique   bool   `json:"unique,omitempty"`
	Required bool   `json:"required,omitempty"`
	OnDelete string `json:"onDelete,omitempty"`
	Default  string `json:"default,omitempty"` // default expression of the FK column
}

// Lookup is a derived read-only accessor through a junction table: for a row
// of From it yields the related rows of To.
type Lookup struct {
	Name       string `json:"name"`
	Relation   string `json:"relation"`
	Junction   string `json:"junction"`
	From       string `json:"from"` // table
	To         string `json:"to"`   // table
	FromColumn string `json:"fromColumn"`
	ToColumn   string `json:"toColumn"`
}

// TableDefinition is the assembled description of one entity table.
type TableDefinition struct {
	Entity    string     `json:"entity"`
	Name      string     `json:"name"`
	Columns   []Column   `json:"columns"`
	Relations []Relation `json:"relations,omitempty"`
	Lookups   []Lookup   `json:"lookups,omitempty"`
	Unique    [][]string `json:"unique,omitempty"`
}

// Column returns the named column.
func (t TableDefinition) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// PrimaryKey returns the first primary key column.
func (t TableDefinition) PrimaryKey() (Column, bool) {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c, true
		}
	}
	return Column{}, false
}

// Snapshot is the output of one Build run.
type Snapshot struct {
	Tables    []TableDefinition `json:"tables"`
	Relations []Relation        `json:"relations"`
}

// Table returns the table definition by table name or entity name.
func (s *Snapshot) Table(name string) (TableDefinition, bool) {
	for _, t := range s.Tables {
		if t.Name == name || t.Entity == name {
			return t, true
		}
	}
	return TableDefinition{}, false
}

// RelationsByOwner groups relations by owning table name, in table order.
func (s *Snapshot) RelationsByOwner() map[string][]Relation {
	out := make(map[string][]Relation, len(s.Tables))
	for _, t := range s.Tables {
		if len(t.Relations) > 0 {
			out[t.Name] = t.Relations
		}
	}
	return out
}
