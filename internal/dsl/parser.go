package dsl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var (
	entityRe           = regexp.MustCompile(`^entity\s+(\w+):`)
	fieldRe            = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	enumRe             = regexp.MustCompile(`^enum\[(.*)\]$`)
	refRe              = regexp.MustCompile(`^ref\[([A-Za-z0-9_]+)\]$`)
	arrayRe            = regexp.MustCompile(`^array\[(.+)\]$`)
	reConstraintsStart = regexp.MustCompile(`^\s*constraints\s*:\s*$`)
	reUniqueLine       = regexp.MustCompile(`^\s*unique\s*\(\s*([^)]+)\s*\)\s*$`)
)

// splitOptionTokens splits "k=v k2='v 2' default=now()" on blanks that sit
// outside quotes and brackets.
func splitOptionTokens(s string) []string {
	var (
		out   []string
		start = -1
		quote rune // open quote character, 0 when outside quotes
		depth int  // open [ or (
	)
	for i, r := range s {
		if quote == 0 && depth == 0 && (r == ' ' || r == '\t') {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			if depth == 0 {
				quote = r
			}
		case r == '[' || r == '(':
			depth++
		case (r == ']' || r == ')') && depth > 0:
			depth--
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

func splitEnum(inside string) []string {
	var out []string
	for _, p := range strings.Split(inside, ",") {
		s := strings.Trim(strings.TrimSpace(p), `"'`)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LoadEntities reads one .dsl file.
func LoadEntities(path string) ([]*Entity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads entity declarations in declaration order.
func Parse(r io.Reader) ([]*Entity, error) {
	var entities []*Entity
	var current *Entity
	inConstraints := false
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := entityRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				entities = append(entities, current)
			}
			current = &Entity{Name: m[1]}
			inConstraints = false
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: %q outside of an entity block", lineNo, line)
		}

		if reConstraintsStart.MatchString(line) {
			inConstraints = true
			continue
		}
		if inConstraints {
			if m := reUniqueLine.FindStringSubmatch(line); m != nil {
				set := make([]string, 0, 2)
				for _, p := range strings.Split(m[1], ",") {
					if p = strings.TrimSpace(p); p != "" {
						set = append(set, p)
					}
				}
				if len(set) > 0 {
					current.Constraints.Unique = append(current.Constraints.Unique, set)
				}
				continue
			}
			inConstraints = false
		}

		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: cannot parse %q", lineNo, line)
		}
		f, err := parseField(m[1], m[2], m[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: %s.%s: %w", lineNo, current.Name, m[1], err)
		}
		current.Fields = append(current.Fields, f)
	}

	if current != nil {
		entities = append(entities, current)
	}
	return entities, scanner.Err()
}

func parseField(name, rawType, tail string) (Field, error) {
	// glue types split by the field regexp: enum[a, b] / array[enum[a, b]]
	if (strings.HasPrefix(rawType, "enum[") || strings.HasPrefix(rawType, "array[")) &&
		strings.Count(rawType, "[") > strings.Count(rawType, "]") {
		need := strings.Count(rawType, "[") - strings.Count(rawType, "]")
		for i, r := range tail {
			if r == ']' {
				need--
				if need == 0 {
					rawType += tail[:i+1]
					tail = tail[i+1:]
					break
				}
			}
		}
	}

	optsRaw := strings.TrimSpace(tail)
	if i := strings.IndexByte(optsRaw, '#'); i >= 0 {
		optsRaw = strings.TrimSpace(optsRaw[:i])
	}
	if strings.HasPrefix(strings.ToLower(optsRaw), "options:") {
		optsRaw = strings.TrimSpace(optsRaw[len("options:"):])
	}
	optsRaw = strings.ReplaceAll(optsRaw, ",", " ")

	f := Field{Name: name, Type: rawType, Options: map[string]string{}}

	switch {
	case enumRe.MatchString(rawType):
		f.Type = "enum"
		f.Enum = splitEnum(enumRe.FindStringSubmatch(rawType)[1])
	case refRe.MatchString(rawType):
		f.Type = ""
		f.RefTarget = refRe.FindStringSubmatch(rawType)[1]
	case arrayRe.MatchString(rawType):
		elem := strings.TrimSpace(arrayRe.FindStringSubmatch(rawType)[1])
		if rm := refRe.FindStringSubmatch(elem); rm != nil {
			f.Type = ""
			f.RefTarget = rm[1]
			f.IsList = true
			break
		}
		// arrays of primitives are stored as a single document column
		f.Type = "array"
		if em := enumRe.FindStringSubmatch(elem); em != nil {
			f.Enum = splitEnum(em[1])
		}
	case strings.ContainsAny(rawType, "[]"):
		return Field{}, fmt.Errorf("malformed type %q", rawType)
	}

	for _, tok := range splitOptionTokens(optsRaw) {
		k, v, hasValue := strings.Cut(tok, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if !hasValue {
			f.Options[k] = "true"
			continue
		}
		f.Options[k] = unquote(strings.TrimSpace(v))
	}

	f.IsRequired = f.Options["required"] == "true"
	f.IsUnique = f.Options["unique"] == "true"
	f.IsID = f.Options["id"] == "true"
	f.Default = f.Options["default"]
	f.RelationName = f.Options["relation"]
	f.Inverse = f.Options["inverse"]
	return f, nil
}

// unquote strips one pair of matching single or double quotes.
func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}
