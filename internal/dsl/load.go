package dsl

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Load reads entities from a single schema file or from every schema file
// under a directory. Files are visited in lexical order so declaration order
// is stable between runs.
func Load(path string) ([]*Entity, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return loadFile(path)
	}
	return LoadAllEntities(path)
}

func loadFile(path string) ([]*Entity, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dsl":
		return LoadEntities(path)
	case ".graphql", ".gql", ".prisma":
		return LoadSDL(path)
	default:
		return nil, fmt.Errorf("unsupported schema file %s", path)
	}
}

func isSchemaFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".dsl", ".graphql", ".gql", ".prisma":
		return true
	}
	return false
}

// LoadAllEntities walks root and concatenates the entities of every schema file.
func LoadAllEntities(root string) ([]*Entity, error) {
	var result []*Entity
	seen := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !isSchemaFile(d.Name()) {
			return nil
		}

		ents, err := loadFile(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for _, e := range ents {
			if e == nil || e.Name == "" {
				return fmt.Errorf("empty entity name in %s", path)
			}
			if prev, exists := seen[e.Name]; exists {
				return fmt.Errorf("duplicate entity %q (files: %s, %s)", e.Name, prev, path)
			}
			seen[e.Name] = path
			result = append(result, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
