package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSDL = `
type Query {
  users: [User!]!
}

enum Role {
  ADMIN
  MEMBER
}

type User @unique(fields: ["email", "role"]) {
  id: ID! @id
  email: String! @unique
  role: Role @default(value: "MEMBER")
  roles: [Role]
  nicknames: [String!]
  photos: [Photo!]! @relation(name: "UserPhotos", inverse: "owners")
}

type Photo {
  id: ID! @id
  owners: [User!]! @relation(name: "UserPhotos")
  author: User! @relation(onDelete: SET_NULL)
}
`

func TestParseSDL(t *testing.T) {
	ents, err := ParseSDL("test.graphql", sampleSDL)
	require.NoError(t, err)
	require.Len(t, ents, 2, "Query must not become an entity")

	user := ents[0]
	assert.Equal(t, "User", user.Name)
	assert.Equal(t, [][]string{{"email", "role"}}, user.Constraints.Unique)

	id, _ := user.FieldByName("id")
	assert.Equal(t, "ID", id.Type)
	assert.True(t, id.IsID)
	assert.True(t, id.IsRequired)

	email, _ := user.FieldByName("email")
	assert.Equal(t, "String", email.Type)
	assert.True(t, email.IsUnique)

	role, _ := user.FieldByName("role")
	assert.Equal(t, "enum", role.Type)
	assert.Equal(t, []string{"ADMIN", "MEMBER"}, role.Enum)
	assert.Equal(t, "MEMBER", role.Default)
	assert.False(t, role.IsRequired)

	roles, _ := user.FieldByName("roles")
	assert.Equal(t, "array", roles.Type)
	assert.Equal(t, []string{"ADMIN", "MEMBER"}, roles.Enum)

	nicknames, _ := user.FieldByName("nicknames")
	assert.Equal(t, "array", nicknames.Type)
	assert.False(t, nicknames.IsRelation())

	photos, _ := user.FieldByName("photos")
	assert.Equal(t, "Photo", photos.RefTarget)
	assert.True(t, photos.IsList)
	assert.Equal(t, "UserPhotos", photos.RelationName)
	assert.Equal(t, "owners", photos.Inverse)

	author, _ := ents[1].FieldByName("author")
	assert.Equal(t, "User", author.RefTarget)
	assert.False(t, author.IsList)
	assert.True(t, author.IsRequired)
	assert.Equal(t, "set_null", author.Option("on_delete"))
}

func TestParseSDLErrors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := ParseSDL("empty.graphql", "  ")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SDL string cannot be empty")
	})

	t.Run("syntax", func(t *testing.T) {
		_, err := ParseSDL("bad.graphql", "type A {\n  id: ID\n")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse SDL")
	})

	t.Run("nested list", func(t *testing.T) {
		_, err := ParseSDL("nested.graphql", "type A { id: ID grid: [[Int]] }")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "A.grid")
	})
}
