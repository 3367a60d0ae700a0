package schema

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
)

// TableName returns the table name of an entity.
func TableName(entity string) string { return strings.ToLower(entity) }

// ForeignKeyColumn returns the owning column name of a to-one relation field.
func ForeignKeyColumn(field string) string { return field + "_id" }

// ConstraintName returns the foreign-key constraint name of table.column.
func ConstraintName(table, column string) string { return table + "_" + column + "_fkey" }

// JunctionName returns the default junction table name for owner -> target.
func JunctionName(owner, target string) string {
	return strings.ToLower(owner) + "_" + strings.ToLower(target)
}

// SynthesizeRelationName returns the name of an unnamed relation between two
// entities. It is symmetric: both sides of the relation get the same name.
func SynthesizeRelationName(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "To" + b
}

// snake converts "UserPhotos" / "userPhotos" to "user_photos".
func snake(s string) string {
	var b strings.Builder
	rs := []rune(s)
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(rs[i-1]) || (i+1 < len(rs) && unicode.IsLower(rs[i+1]))) && rs[i-1] != '_' {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// plural returns the plural form of a lower-case table name.
func plural(s string) string { return inflect.Pluralize(s) }

// singular returns the singular form of a field name.
func singular(s string) string { return inflect.Singularize(s) }
