package storage

import (
	"context"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectStore defines the durable hand-off target for processed artifacts
type ObjectStore interface {
	// Put stores data under key and returns a publicly resolvable URL
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)

	// Delete removes the object stored under key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// Ensure implementations satisfy ObjectStore
var (
	_ ObjectStore = (*GCSStore)(nil)
	_ ObjectStore = (*LocalStore)(nil)
)

// KeyPrefix is the folder processed artifacts are written under
const KeyPrefix = "processed/"

// NewObjectKey returns a collision-resistant key for a processed artifact with
// the given extension (".mp3" or "mp3")
func NewObjectKey(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	return KeyPrefix + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + uuid.New().String() + "." + ext
}

// cleanKey rejects keys that would escape the store root
func cleanKey(key string) (string, bool) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", false
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}
