package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileStore reads a flat YAML map of secret names to values. The file is
// re-read when its modification time changes; a missing file holds nothing.
type FileStore struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	values  map[string]string
}

// NewFileStore returns a store backed by the YAML file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Name() string { return "file:" + f.path }

func (f *FileStore) Lookup(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.reload(); err != nil {
		return "", false, err
	}
	v, ok := f.values[name]
	return v, ok, nil
}

func (f *FileStore) reload() error {
	st, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.values, f.modTime = nil, time.Time{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat secrets file: %w", err)
	}
	if f.values != nil && st.ModTime().Equal(f.modTime) {
		return nil
	}

	b, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read secrets file: %w", err)
	}
	values, err := parseYAML(b)
	if err != nil {
		return fmt.Errorf("parse secrets file %s: %w", f.path, err)
	}
	f.values, f.modTime = values, st.ModTime()
	return nil
}

// parseYAML keeps scalar entries only; nested maps and lists are ignored.
func parseYAML(b []byte) (map[string]string, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(doc))
	for k, n := range doc {
		if n.Kind == yaml.ScalarNode {
			out[k] = n.Value
		}
	}
	return out, nil
}
