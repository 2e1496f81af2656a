// Package templates loads comment templates and renders them with Jinja2 syntax.
package templates

import (
	"fmt"
	"io/fs"
	"os"
)

// Store reads templates by name from a directory.
type Store struct {
	fsys fs.FS
}

// NewStore returns a store over fsys.
func NewStore(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

// NewDirStore returns a store over the directory dir.
func NewDirStore(dir string) *Store {
	return NewStore(os.DirFS(dir))
}

// Load returns the exact bytes of the named template.
func (s *Store) Load(name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", name, err)
	}
	return data, nil
}
