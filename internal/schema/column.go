package schema

import (
	"strings"

	"gql2sql/internal/dsl"
)

// TypeTable maps upper-case storage keys (INTEGER, STRING, TIMESTAMP, ...) to
// engine-native column types.
type TypeTable struct {
	Engine string            `yaml:"engine" json:"engine"`
	Types  map[string]string `yaml:"types" json:"types"`
}

// Lookup returns the engine type for a storage key.
func (t TypeTable) Lookup(key string) (string, bool) {
	v, ok := t.Types[strings.ToUpper(key)]
	return v, ok && strings.TrimSpace(v) != ""
}

// columnRule describes how a scalar tag becomes a column.
type columnRule struct {
	storage       string
	primaryKey    bool
	autoIncrement bool
}

// columnRules is keyed by normalized tag. Tags without a rule are looked up in
// the type table under their own name.
var columnRules = map[string]columnRule{
	// auto-increment supersedes any declared default
	"ID":       {storage: "INTEGER", primaryKey: true, autoIncrement: true},
	"DATETIME": {storage: "TIMESTAMP"},
	"UUID":     {storage: "UUID"},
	"INT":      {storage: "INTEGER"},
	"BOOL":     {storage: "BOOLEAN"},
}

// NormalizeTag returns the rule key of a scalar type tag.
func NormalizeTag(tag string) string { return strings.ToUpper(strings.TrimSpace(tag)) }

// Translator maps scalar fields to columns using a type table.
type Translator struct {
	types TypeTable
}

// requiredStorage lists the storage keys the identity, date-time and UUID
// rules depend on.
var requiredStorage = []string{"INTEGER", "TIMESTAMP", "UUID"}

// NewTranslator validates that the type table covers requiredStorage.
func NewTranslator(types TypeTable) (*Translator, error) {
	if len(types.Types) == 0 {
		return nil, NewConfigError("types", nil, "type table is empty")
	}
	var missing []string
	for _, key := range requiredStorage {
		if _, ok := types.Lookup(key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, NewConfigError("types", types.Engine, "missing mappings for "+strings.Join(missing, ", "))
	}
	return &Translator{types: types}, nil
}

// Types returns the type table in use.
func (t *Translator) Types() TypeTable { return t.types }

// Translate returns the column of a scalar field. Relation fields yield
// (nil, nil) and belong to Classify.
func (t *Translator) Translate(entity string, f dsl.Field) (*Column, error) {
	if f.IsRelation() {
		return nil, nil
	}
	tag := NormalizeTag(f.Type)
	if tag == "" {
		return nil, invalid(entity, f.Name, CodeUnknownType, "field has no type")
	}
	rule, ok := columnRules[tag]
	if !ok {
		rule = columnRule{storage: tag}
	}
	typ, ok := t.types.Lookup(rule.storage)
	if !ok {
		return nil, invalid(entity, f.Name, CodeUnknownType, "type %q has no %s mapping", f.Type, t.types.Engine)
	}

	col := &Column{
		Name:          f.Name,
		Tag:           tag,
		Type:          typ,
		PrimaryKey:    rule.primaryKey || f.IsID,
		Unique:        f.IsUnique,
		Default:       f.Default,
		AutoIncrement: rule.autoIncrement,
		Enum:          append([]string(nil), f.Enum...),
	}
	col.Nullable = !f.IsRequired && !col.PrimaryKey
	if col.AutoIncrement {
		col.Default = ""
	}
	if len(col.Enum) == 0 {
		col.Enum = nil
	}
	return col, nil
}
