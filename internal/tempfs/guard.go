// Package tempfs provides a scoped temporary workspace whose contents are
// removed in one call, so every exit path of a pipeline stage can release
// what it created with a single deferred Release.
package tempfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// NamespacePrefix is the directory name prefix of every workspace created by New.
// The cleanup command uses it to find namespaces orphaned by crashed runs.
const NamespacePrefix = "meetscribe-"

// Guard owns one temporary directory
type Guard struct {
	mu       sync.Mutex
	dir      string
	released bool

	removeAll func(path string) error
}

// New creates a fresh workspace under parent (the system temp dir when empty).
// The directory name combines the namespace prefix, the tag and a random suffix.
func New(parent, tag string) (*Guard, error) {
	dir, err := os.MkdirTemp(parent, NamespacePrefix+sanitize(tag)+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary workspace: %w", err)
	}
	return &Guard{
		dir:       dir,
		removeAll: os.RemoveAll,
	}, nil
}

// Dir returns the workspace directory
func (g *Guard) Dir() string {
	return g.dir
}

// Path returns the path of name inside the workspace
func (g *Guard) Path(name string) string {
	return filepath.Join(g.dir, filepath.Base(name))
}

// WriteFile writes data to name inside the workspace and returns its path
func (g *Guard) WriteFile(name string, data []byte) (string, error) {
	path := g.Path(name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write temporary file: %w", err)
	}
	return path, nil
}

// Release removes the workspace and everything in it. It is safe to call more than once.
func (g *Guard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return nil
	}
	g.released = true

	if err := g.removeAll(g.dir); err != nil {
		return fmt.Errorf("failed to remove temporary workspace: %w", err)
	}
	return nil
}

// sanitize keeps tags usable as a path element
func sanitize(tag string) string {
	out := make([]rune, 0, len(tag))
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return string(out)
}
