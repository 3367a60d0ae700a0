package dsl

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// root operation types never become tables
var rootTypes = map[string]struct{}{"Query": {}, "Mutation": {}, "Subscription": {}}

// LoadSDL reads a GraphQL datamodel file.
func LoadSDL(path string) ([]*Entity, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSDL(path, string(b))
}

// ParseSDL converts a datamodel written in GraphQL SDL into entities. Object
// types become entities; fields typed with another object type become
// relations. Supported directives: @id, @unique, @default(value:),
// @relation(name:, onDelete:, inverse:).
func ParseSDL(name, sdl string) ([]*Entity, error) {
	if strings.TrimSpace(sdl) == "" {
		return nil, errors.New("SDL string cannot be empty")
	}
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("failed to parse SDL: %w", err)
	}

	objects := map[string]struct{}{}
	enums := map[string][]string{}
	for _, def := range doc.Definitions {
		switch def.Kind {
		case ast.Object:
			if _, root := rootTypes[def.Name]; !root {
				objects[def.Name] = struct{}{}
			}
		case ast.Enum:
			vals := make([]string, 0, len(def.EnumValues))
			for _, v := range def.EnumValues {
				vals = append(vals, v.Name)
			}
			enums[def.Name] = vals
		}
	}

	var entities []*Entity
	for _, def := range doc.Definitions {
		if def.Kind != ast.Object {
			continue
		}
		if _, root := rootTypes[def.Name]; root {
			continue
		}
		e := &Entity{Name: def.Name}
		for _, fd := range def.Fields {
			f, err := sdlField(fd, objects, enums)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Name, fd.Name, err)
			}
			e.Fields = append(e.Fields, f)
		}
		if d := def.Directives.ForName("unique"); d != nil {
			if set := directiveList(d, "fields"); len(set) > 0 {
				e.Constraints.Unique = append(e.Constraints.Unique, set)
			}
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func sdlField(fd *ast.FieldDefinition, objects map[string]struct{}, enums map[string][]string) (Field, error) {
	if fd.Type == nil {
		return Field{}, errors.New("missing type")
	}
	f := Field{Name: fd.Name, Options: map[string]string{}}
	f.IsRequired = fd.Type.NonNull

	named := fd.Type.NamedType
	if fd.Type.Elem != nil {
		if fd.Type.Elem.Elem != nil {
			return Field{}, errors.New("nested lists are not supported")
		}
		named = fd.Type.Elem.NamedType
		f.IsList = true
	}

	switch vals, isEnum := enums[named]; {
	case isEnum:
		f.Type = "enum"
		f.Enum = append([]string(nil), vals...)
		if f.IsList {
			f.Type = "array"
			f.IsList = false
		}
	default:
		if _, isObject := objects[named]; isObject {
			f.RefTarget = named
		} else if f.IsList {
			f.Type = "array"
			f.IsList = false
		} else {
			f.Type = named
		}
	}

	for _, d := range fd.Directives {
		switch d.Name {
		case "id":
			f.IsID = true
		case "unique":
			f.IsUnique = true
		case "default":
			if v := directiveArg(d, "value"); v != "" {
				f.Default = v
			}
		case "relation":
			f.RelationName = directiveArg(d, "name")
			f.Inverse = directiveArg(d, "inverse")
			if od := directiveArg(d, "onDelete"); od != "" {
				f.Options["on_delete"] = strings.ToLower(od)
			}
		}
	}
	if f.IsRequired {
		f.Options["required"] = "true"
	}
	return f, nil
}

func directiveArg(d *ast.Directive, name string) string {
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return ""
	}
	return arg.Value.Raw
}

func directiveList(d *ast.Directive, name string) []string {
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return nil
	}
	var out []string
	for _, child := range arg.Value.Children {
		if child.Value != nil && child.Value.Raw != "" {
			out = append(out, child.Value.Raw)
		}
	}
	return out
}
