package dsl

// Entity describes one modeled type. Field order is declaration order and is
// significant: relation ownership is decided by it.
type Entity struct {
	Name        string
	Fields      []Field
	Constraints Constraints
}

// Constraints holds table level constraints declared on an entity.
type Constraints struct {
	Unique [][]string // composite unique sets, field names
}

// Field describes one entity field. A field is either a scalar (Type holds
// the tag: ID, String, Int, DateTime, UUID, enum, ...) or a relation
// (RefTarget holds the referenced entity name).
type Field struct {
	Name         string
	Type         string
	RefTarget    string
	Enum         []string
	IsList       bool
	IsRequired   bool
	IsUnique     bool
	IsID         bool
	Default      string
	RelationName string
	Inverse      string            // reciprocal field on RefTarget, if declared
	Options      map[string]string // on_delete and other free-form options
}

// IsRelation reports whether the field references another entity.
func (f Field) IsRelation() bool { return f.RefTarget != "" }

// Option returns a free-form option value or "".
func (f Field) Option(key string) string {
	if f.Options == nil {
		return ""
	}
	return f.Options[key]
}

// FieldByName returns the named field.
func (e *Entity) FieldByName(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
