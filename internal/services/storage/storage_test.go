package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewObjectKey(t *testing.T) {
	key := NewObjectKey(".mp3")
	assert.True(t, strings.HasPrefix(key, KeyPrefix))
	assert.True(t, strings.HasSuffix(key, ".mp3"))
	assert.NotEqual(t, key, NewObjectKey("mp3"))
	assert.True(t, strings.HasSuffix(NewObjectKey(""), ".bin"))
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"processed/a.mp3", "processed/a.mp3", true},
		{"/processed/a.mp3", "processed/a.mp3", true},
		{"processed/../a.mp3", "a.mp3", true},
		{"../escape", "", false},
		{"..", "", false},
		{"", "", false},
		{"/", "", false},
	}
	for _, tt := range tests {
		got, ok := cleanKey(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLocalStore_PutDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8080/files/")
	require.NoError(t, err)

	ctx := context.Background()
	url, err := store.Put(ctx, "processed/1-abc.mp3", "audio/mpeg", []byte("mp3 data"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/processed/1-abc.mp3", url)

	data, err := os.ReadFile(filepath.Join(dir, "processed", "1-abc.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "mp3 data", string(data))

	require.NoError(t, store.Delete(ctx, "processed/1-abc.mp3"))
	_, err = os.Stat(filepath.Join(dir, "processed", "1-abc.mp3"))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, "processed/1-abc.mp3"))
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside.mp3", "audio/mpeg", []byte("x"))
	assert.Error(t, err)
	assert.Error(t, store.Delete(context.Background(), ".."))
}

func TestLocalStore_CancelledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "processed/a.mp3", "audio/mpeg", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewLocalStore_RequiresDir(t *testing.T) {
	_, err := NewLocalStore("", "")
	assert.Error(t, err)
}

// fakeGCS accepts media uploads and deletes for one bucket
type fakeGCS struct {
	mu      sync.Mutex
	uploads map[string]string
	queries []url.Values
	deleted []string
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/upload/storage/v1/b/test-bucket/o"):
		body, _ := io.ReadAll(r.Body)
		f.uploads[r.URL.Path] = string(body)
		f.queries = append(f.queries, r.URL.Query())
		_, _ = w.Write([]byte(`{"name":"uploaded","bucket":"test-bucket"}`))
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/storage/v1/b/test-bucket/o/"):
		key := strings.TrimPrefix(r.URL.Path, "/storage/v1/b/test-bucket/o/")
		if strings.Contains(key, "missing") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
			return
		}
		if strings.Contains(key, "forbidden") {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"Forbidden"}}`))
			return
		}
		f.deleted = append(f.deleted, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"unexpected route"}}`))
	}
}

func newTestGCSStore(t *testing.T) (*GCSStore, *fakeGCS) {
	return newTestGCSStoreWithACL(t, "")
}

func newTestGCSStoreWithACL(t *testing.T, acl string) (*GCSStore, *fakeGCS) {
	t.Helper()
	fake := &fakeGCS{uploads: make(map[string]string)}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := NewGCSStore(context.Background(), GCSOptions{
		Bucket:        "test-bucket",
		PublicBaseURL: "https://cdn.example.com/",
		PredefinedACL: acl,
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(server.URL + "/storage/v1/"),
			option.WithHTTPClient(server.Client()),
		},
	})
	require.NoError(t, err)
	return store, fake
}

func TestGCSStore_Put(t *testing.T) {
	store, fake := newTestGCSStore(t)

	url, err := store.Put(context.Background(), "processed/42-xyz.mp3", "audio/mpeg", []byte("ID3-payload"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/test-bucket/processed/42-xyz.mp3", url)

	require.Len(t, fake.uploads, 1)
	for _, body := range fake.uploads {
		assert.Contains(t, body, "ID3-payload")
		assert.Contains(t, body, "processed/42-xyz.mp3")
	}
	require.Len(t, fake.queries, 1)
	assert.Empty(t, fake.queries[0].Get("predefinedAcl"))
}

func TestGCSStore_PutWithPredefinedACL(t *testing.T) {
	store, fake := newTestGCSStoreWithACL(t, "publicRead")

	_, err := store.Put(context.Background(), "processed/43-abc.mp3", "audio/mpeg", []byte("ID3"))
	require.NoError(t, err)
	require.Len(t, fake.queries, 1)
	assert.Equal(t, "publicRead", fake.queries[0].Get("predefinedAcl"))
}

func TestNewGCSStore_RejectsUnknownACL(t *testing.T) {
	_, err := NewGCSStore(context.Background(), GCSOptions{Bucket: "b", PredefinedACL: "everyone"})
	assert.ErrorContains(t, err, "predefined ACL")
	assert.True(t, IsPredefinedACL("publicRead"))
	assert.False(t, IsPredefinedACL("public-read"))
}

func TestGCSStore_Delete(t *testing.T) {
	store, fake := newTestGCSStore(t)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "processed/1-a.mp3"))
	assert.Equal(t, []string{"processed/1-a.mp3"}, fake.deleted)

	// missing objects are already gone
	assert.NoError(t, store.Delete(ctx, "processed/missing.mp3"))

	err := store.Delete(ctx, "processed/forbidden.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gs://test-bucket/processed/forbidden.mp3")
}

func TestNewGCSStore_RequiresBucket(t *testing.T) {
	_, err := NewGCSStore(context.Background(), GCSOptions{})
	assert.Error(t, err)
}

func TestTokenSource_BadCredentialsFile(t *testing.T) {
	_, err := tokenSource(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0600))
	_, err = tokenSource(context.Background(), bad)
	assert.Error(t, err)
}
