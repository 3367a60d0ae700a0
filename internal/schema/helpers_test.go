package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gql2sql/internal/dsl"
)

var testTypes = TypeTable{
	Engine: "postgres",
	Types: map[string]string{
		"INTEGER":   "integer",
		"STRING":    "text",
		"FLOAT":     "double precision",
		"BOOLEAN":   "boolean",
		"TIMESTAMP": "timestamp with time zone",
		"UUID":      "uuid",
		"JSON":      "jsonb",
		"ENUM":      "text",
		"ARRAY":     "jsonb",
	},
}

func ent(name string, fields ...dsl.Field) *dsl.Entity {
	return &dsl.Entity{Name: name, Fields: fields}
}

func idField() dsl.Field { return dsl.Field{Name: "id", Type: "ID", IsID: true} }

func scalar(name, typ string) dsl.Field { return dsl.Field{Name: name, Type: typ} }

func toOne(name, target, relation string) dsl.Field {
	return dsl.Field{Name: name, RefTarget: target, RelationName: relation}
}

func toMany(name, target, relation string) dsl.Field {
	return dsl.Field{Name: name, RefTarget: target, IsList: true, RelationName: relation}
}

func newTranslator(t *testing.T) *Translator {
	t.Helper()
	tr, err := NewTranslator(testTypes)
	require.NoError(t, err)
	return tr
}

func build(t *testing.T, opts Options, entities ...*dsl.Entity) (*Snapshot, error) {
	t.Helper()
	return Build(entities, newTranslator(t), opts)
}

func resolve(t *testing.T, opts Options, entities ...*dsl.Entity) ([]Relation, error) {
	t.Helper()
	descs, err := Descriptors(entities)
	require.NoError(t, err)
	return Resolve(entities, descs, opts)
}
