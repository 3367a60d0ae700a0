package dsl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDSL = `
# photo sharing
entity User:
  id: ID id
  email: string required unique
  role: enum[admin, member] default=member
  photos: array[ref[Photo]] relation=UserPhotos inverse=owners
  tags: array[string]
  constraints:
    unique(email, role)

entity Photo:
  id: ID
  takenAt: datetime default=now()  # comment
  owners: array[ref[User]] options: relation=UserPhotos
  author: ref[User] required on_delete=set_null
`

func TestParse(t *testing.T) {
	ents, err := Parse(strings.NewReader(sampleDSL))
	require.NoError(t, err)
	require.Len(t, ents, 2)

	user := ents[0]
	assert.Equal(t, "User", user.Name)
	require.Len(t, user.Fields, 5)
	assert.Equal(t, [][]string{{"email", "role"}}, user.Constraints.Unique)

	id := user.Fields[0]
	assert.Equal(t, "ID", id.Type)
	assert.True(t, id.IsID)

	email := user.Fields[1]
	assert.True(t, email.IsRequired)
	assert.True(t, email.IsUnique)
	assert.False(t, email.IsRelation())

	role := user.Fields[2]
	assert.Equal(t, "enum", role.Type)
	assert.Equal(t, []string{"admin", "member"}, role.Enum)
	assert.Equal(t, "member", role.Default)

	photos := user.Fields[3]
	assert.True(t, photos.IsRelation())
	assert.True(t, photos.IsList)
	assert.Equal(t, "Photo", photos.RefTarget)
	assert.Equal(t, "UserPhotos", photos.RelationName)
	assert.Equal(t, "owners", photos.Inverse)

	tags := user.Fields[4]
	assert.Equal(t, "array", tags.Type)
	assert.False(t, tags.IsRelation())

	photo := ents[1]
	takenAt, ok := photo.FieldByName("takenAt")
	require.True(t, ok)
	assert.Equal(t, "now()", takenAt.Default)

	owners, ok := photo.FieldByName("owners")
	require.True(t, ok)
	assert.Equal(t, "UserPhotos", owners.RelationName)

	author, ok := photo.FieldByName("author")
	require.True(t, ok)
	assert.False(t, author.IsList)
	assert.True(t, author.IsRequired)
	assert.Equal(t, "set_null", author.Option("on_delete"))
}

func TestParseErrors(t *testing.T) {
	t.Run("field outside entity", func(t *testing.T) {
		_, err := Parse(strings.NewReader("name: string\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside of an entity")
	})

	t.Run("malformed type", func(t *testing.T) {
		_, err := Parse(strings.NewReader("entity A:\n  b: ref[B\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed type")
	})
}

func TestSplitOptionTokens(t *testing.T) {
	got := splitOptionTokens(`required default='a b' check=[x y] fn=now()`)
	assert.Equal(t, []string{"required", "default='a b'", "check=[x y]", "fn=now()"}, got)
}

func TestLoadAllEntities(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.dsl"), []byte("entity A:\n  id: ID\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.graphql"), []byte("type B { id: ID! @id }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	ents, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, "A", ents[0].Name)
	assert.Equal(t, "B", ents[1].Name)

	t.Run("duplicate entity across files", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "c.dsl"), []byte("entity A:\n  id: ID\n"), 0o644))
		_, err := Load(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `duplicate entity "A"`)
	})

	t.Run("unsupported file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "README.md"))
		require.Error(t, err)
	})
}
