package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gql2sql/internal/dsl"
)

func TestTranslate(t *testing.T) {
	tr := newTranslator(t)

	t.Run("identity discards default", func(t *testing.T) {
		col, err := tr.Translate("User", dsl.Field{Name: "id", Type: "ID", IsID: true, Default: "42"})
		require.NoError(t, err)
		require.NotNil(t, col)
		assert.Equal(t, "integer", col.Type)
		assert.True(t, col.PrimaryKey)
		assert.True(t, col.AutoIncrement)
		assert.Empty(t, col.Default)
		assert.False(t, col.Nullable)
	})

	t.Run("datetime gets no synthesized default", func(t *testing.T) {
		col, err := tr.Translate("User", scalar("createdAt", "DateTime"))
		require.NoError(t, err)
		assert.Equal(t, "timestamp with time zone", col.Type)
		assert.Equal(t, "DATETIME", col.Tag)
		assert.Empty(t, col.Default)
		assert.True(t, col.Nullable)
	})

	t.Run("uuid identity keeps default", func(t *testing.T) {
		col, err := tr.Translate("User", dsl.Field{Name: "id", Type: "UUID", IsID: true, Default: "gen_random_uuid()"})
		require.NoError(t, err)
		assert.Equal(t, "uuid", col.Type)
		assert.True(t, col.PrimaryKey)
		assert.False(t, col.AutoIncrement)
		assert.Equal(t, "gen_random_uuid()", col.Default)
	})

	t.Run("fallback uppercases the tag", func(t *testing.T) {
		col, err := tr.Translate("User", dsl.Field{Name: "name", Type: "String", IsRequired: true, IsUnique: true})
		require.NoError(t, err)
		assert.Equal(t, "text", col.Type)
		assert.False(t, col.Nullable)
		assert.True(t, col.Unique)

		col, err = tr.Translate("User", dsl.Field{Name: "role", Type: "enum", Enum: []string{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, col.Enum)
	})

	t.Run("int and bool aliases", func(t *testing.T) {
		col, err := tr.Translate("User", scalar("age", "Int"))
		require.NoError(t, err)
		assert.Equal(t, "integer", col.Type)

		col, err = tr.Translate("User", scalar("active", "bool"))
		require.NoError(t, err)
		assert.Equal(t, "boolean", col.Type)
	})

	t.Run("relation fields are not columns", func(t *testing.T) {
		col, err := tr.Translate("Photo", toOne("owner", "User", ""))
		require.NoError(t, err)
		assert.Nil(t, col)
	})

	t.Run("unknown tag is a validation error", func(t *testing.T) {
		_, err := tr.Translate("User", scalar("location", "Point"))
		require.Error(t, err)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, CodeUnknownType, ve.Code)
		assert.Equal(t, "User", ve.Entity)
		assert.Equal(t, "location", ve.Field)
	})
}

func TestNewTranslatorConfig(t *testing.T) {
	_, err := NewTranslator(TypeTable{Engine: "postgres"})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	_, err = NewTranslator(TypeTable{Engine: "postgres", Types: map[string]string{"INTEGER": "integer"}})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "TIMESTAMP, UUID")
}
