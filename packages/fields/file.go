package fields

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// File persists a Store as a flat YAML mapping so saved fields survive
// between runs.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Restore merges the file contents into the store. A missing file is not an error.
func (f *File) Restore(s *Store) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading saved fields: %w", err)
	}

	values := make(map[string]any)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parsing saved fields %s: %w", f.path, err)
	}
	s.Merge(values)
	return nil
}

// Persist writes the full store contents, replacing the file.
func (f *File) Persist(s *Store) error {
	data, err := yaml.Marshal(s.Load())
	if err != nil {
		return fmt.Errorf("encoding saved fields: %w", err)
	}
	return f.write(data)
}

// Reset truncates the file to an empty mapping.
func (f *File) Reset() error {
	return f.write([]byte("{}\n"))
}

func (f *File) write(data []byte) error {
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating saved fields directory: %w", err)
		}
	}
	return os.WriteFile(f.path, data, 0644)
}
