package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gql2sql/internal/dsl"
)

func codes(issues ValidationErrors) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func TestLintClean(t *testing.T) {
	issues := Lint([]*dsl.Entity{
		ent("User", idField(), toMany("photos", "Photo", "UserPhotos")),
		ent("Photo", idField(), toMany("owners", "User", "UserPhotos")),
	})
	assert.Empty(t, issues)
}

func TestLint(t *testing.T) {
	required := toOne("owner", "User", "")
	required.IsRequired = true
	required.Options = map[string]string{"on_delete": "set_null"}

	badInverse := toOne("owner", "User", "")
	badInverse.Inverse = "name"

	cases := []struct {
		name     string
		entities []*dsl.Entity
		want     []string
	}{
		{
			name:     "duplicate entity",
			entities: []*dsl.Entity{ent("User", idField()), ent("User", idField())},
			want:     []string{CodeDuplicateEntity},
		},
		{
			name:     "table name shared",
			entities: []*dsl.Entity{ent("User", idField()), ent("USER", idField())},
			want:     []string{CodeDuplicateEntity},
		},
		{
			name:     "duplicate field",
			entities: []*dsl.Entity{ent("User", idField(), scalar("name", "String"), scalar("name", "String"))},
			want:     []string{CodeDuplicateField},
		},
		{
			name:     "unknown target",
			entities: []*dsl.Entity{ent("Photo", idField(), toOne("owner", "Ghost", ""))},
			want:     []string{CodeUnknownTarget},
		},
		{
			name:     "empty enum",
			entities: []*dsl.Entity{ent("User", idField(), scalar("role", "enum"))},
			want:     []string{CodeEnumEmpty},
		},
		{
			name:     "required with set null",
			entities: []*dsl.Entity{ent("User", idField()), ent("Photo", idField(), required)},
			want:     []string{CodeRequiredSetNull},
		},
		{
			name: "inverse that does not point back",
			entities: []*dsl.Entity{
				ent("User", idField(), scalar("name", "String")),
				ent("Photo", idField(), badInverse),
			},
			want: []string{CodeInverseMismatch},
		},
		{
			name: "unique set with unknown field",
			entities: []*dsl.Entity{{
				Name:        "User",
				Fields:      []dsl.Field{idField(), scalar("email", "String")},
				Constraints: dsl.Constraints{Unique: [][]string{{"email", "tenant"}}},
			}},
			want: []string{CodeUniqueUnknownField},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			issues := Lint(tc.entities)
			assert.Equal(t, tc.want, codes(issues))
		})
	}
}

func TestLintReportsEveryFinding(t *testing.T) {
	onDelete := toOne("owner", "User", "")
	onDelete.Options = map[string]string{"on_delete": "explode"}

	issues := Lint([]*dsl.Entity{
		ent("User", idField(), scalar("role", "enum")),
		ent("Photo", idField(), onDelete, toOne("album", "Album", "")),
	})
	assert.Equal(t, []string{CodeEnumEmpty, CodeOnDeleteUnknown, CodeUnknownTarget}, codes(issues))

	var err error = issues
	assert.True(t, errors.Is(err, ErrInvalidModel))
	assert.Contains(t, err.Error(), "3 model validation errors")

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "role", ve.Field)
}

func TestValidationErrorMessage(t *testing.T) {
	err := invalid("Photo", "owner", CodeUnknownTarget, "references unknown entity %q", "Ghost")
	assert.Equal(t, `gql2sql: invalid model at Photo.owner [unknown_target]: references unknown entity "Ghost"`, err.Error())
	assert.True(t, IsValidationError(err))
	assert.False(t, IsConfigError(err))

	cfg := NewConfigError("types", "mysql", "type table is empty")
	assert.Equal(t, `gql2sql: config error for "types" (value: mysql): type table is empty`, cfg.Error())
	assert.True(t, IsConfigError(cfg))
	assert.False(t, IsValidationError(cfg))
}
