// Package typemap loads engine type tables: the mapping from storage keys
// (INTEGER, STRING, TIMESTAMP, ...) to engine-native column types.
package typemap

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"gql2sql/internal/schema"
)

//go:embed tables/*.yaml
var builtin embed.FS

// Engines lists the engines with a built-in table.
func Engines() []string {
	entries, err := builtin.ReadDir("tables")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(out)
	return out
}

// Default returns the built-in table of an engine.
func Default(engine string) (schema.TypeTable, error) {
	name := strings.ToLower(strings.TrimSpace(engine))
	data, err := builtin.ReadFile("tables/" + name + ".yaml")
	if err != nil {
		return schema.TypeTable{}, schema.NewConfigError("engine", engine,
			fmt.Sprintf("no built-in type table (available: %s)", strings.Join(Engines(), ", ")))
	}
	return Parse(data, name)
}

// Load reads a table from a YAML file. The engine name falls back to the
// file name when the document does not declare one.
func Load(path string) (schema.TypeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.TypeTable{}, fmt.Errorf("read type table %s: %w", path, err)
	}
	base := filepath.Base(path)
	return Parse(data, strings.TrimSuffix(base, filepath.Ext(base)))
}

// Resolve picks the table for a run: an explicit file wins over the
// built-in table of engine.
func Resolve(path, engine string) (schema.TypeTable, error) {
	if strings.TrimSpace(path) != "" {
		return Load(path)
	}
	return Default(engine)
}

// Parse decodes a YAML type table. Keys are upper-cased; empty values are
// rejected.
func Parse(data []byte, engine string) (schema.TypeTable, error) {
	var raw schema.TypeTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return schema.TypeTable{}, schema.NewConfigError("types", engine, "malformed type table: "+err.Error())
	}
	out := schema.TypeTable{
		Engine: strings.TrimSpace(raw.Engine),
		Types:  make(map[string]string, len(raw.Types)),
	}
	if out.Engine == "" {
		out.Engine = engine
	}
	for k, v := range raw.Types {
		key := strings.ToUpper(strings.TrimSpace(k))
		if strings.TrimSpace(v) == "" {
			return schema.TypeTable{}, schema.NewConfigError("types."+key, out.Engine, "empty engine type")
		}
		if _, dup := out.Types[key]; dup {
			return schema.TypeTable{}, schema.NewConfigError("types."+key, out.Engine, "key declared twice")
		}
		out.Types[key] = strings.TrimSpace(v)
	}
	if len(out.Types) == 0 {
		return schema.TypeTable{}, schema.NewConfigError("types", out.Engine, "type table is empty")
	}
	return out, nil
}
