package tempfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Namespace is a workspace directory found on disk
type Namespace struct {
	Path    string
	ModTime time.Time
}

// FindStale lists workspaces under parent last modified before cutoff, oldest first.
// Entries without the namespace prefix are never returned.
func FindStale(parent string, cutoff time.Time) ([]Namespace, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", parent, err)
	}

	var stale []Namespace
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), NamespacePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		if info.ModTime().Before(cutoff) {
			stale = append(stale, Namespace{
				Path:    filepath.Join(parent, entry.Name()),
				ModTime: info.ModTime(),
			})
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].ModTime.Before(stale[j].ModTime)
	})
	return stale, nil
}
