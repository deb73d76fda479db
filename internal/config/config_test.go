package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnzdotmx/meetscribe/internal/utils"
)

// clearEnv unsets every override for the duration of the test
func clearEnv(t *testing.T) {
	for _, env := range []string{
		EnvAPIKey, EnvEngineURL, EnvEngineModel, EnvGCSBucket, EnvGCSCredentials,
		EnvStorageDir, EnvTempDir, EnvListen, EnvConcurrency,
	} {
		t.Setenv(env, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "meetscribe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, int64(4*1024*1024+512*1024), cfg.Server.MaxBodyBytes)
	assert.Equal(t, int64(4*1024*1024), cfg.Chunking.MaxChunkSize)
	assert.Equal(t, int64(512*1024), cfg.Chunking.Overlap)
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Pipeline.Preprocess)
	assert.Equal(t, 1.5, cfg.Preprocess.Profile.SpeedFactor)
	assert.Equal(t, 55*time.Second, cfg.Preprocess.Timeout)
	assert.Equal(t, StorageLocal, cfg.Storage.Backend)
	assert.Equal(t, "whisper-1", cfg.Engine.Model)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  listen: ":9090"
engine:
  model: whisper-large
  language: es
  timeout: 90s
chunking:
  maxChunkSize: 2097152
  overlap: 262144
pipeline:
  concurrency: 3
  preprocess: false
preprocess:
  timeout: 30s
  profile:
    speedFactor: 1.25
    bitrate: 48k
    sampleRate: 16000
    channels: 1
    format: mp3
storage:
  backend: none
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "whisper-large", cfg.Engine.Model)
	assert.Equal(t, "es", cfg.Engine.Language)
	assert.Equal(t, 90*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, int64(2097152), cfg.Chunking.MaxChunkSize)
	assert.Equal(t, int64(262144), cfg.Chunking.Overlap)
	assert.Equal(t, 3, cfg.Pipeline.Concurrency)
	assert.False(t, cfg.Pipeline.Preprocess)
	assert.Equal(t, 30*time.Second, cfg.Preprocess.Timeout)
	assert.Equal(t, 1.25, cfg.Preprocess.Profile.SpeedFactor)
	assert.Equal(t, "48k", cfg.Preprocess.Profile.Bitrate)
	assert.Equal(t, StorageNone, cfg.Storage.Backend)
	// untouched keys keep their defaults
	assert.Equal(t, "https://api.openai.com/v1", cfg.Engine.BaseURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIKey, "sk-test")
	t.Setenv(EnvEngineURL, "http://localhost:9000/v1")
	t.Setenv(EnvEngineModel, "distil-whisper")
	t.Setenv(EnvGCSBucket, "meetings")
	t.Setenv(EnvGCSCredentials, "/etc/creds.json")
	t.Setenv(EnvTempDir, "/scratch")
	t.Setenv(EnvListen, ":7070")
	t.Setenv(EnvConcurrency, "4")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Engine.APIKey)
	assert.Equal(t, "http://localhost:9000/v1", cfg.Engine.BaseURL)
	assert.Equal(t, "distil-whisper", cfg.Engine.Model)
	assert.Equal(t, StorageGCS, cfg.Storage.Backend)
	assert.Equal(t, "meetings", cfg.Storage.Bucket)
	assert.Equal(t, "/etc/creds.json", cfg.Storage.CredentialsFile)
	assert.Equal(t, "/scratch", cfg.TempDir)
	assert.Equal(t, ":7070", cfg.Server.Listen)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
}

func TestLoad_StorageDirOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvStorageDir, "/srv/processed")

	cfg, err := Load(writeConfig(t, "storage:\n  backend: none\n"))
	require.NoError(t, err)
	assert.Equal(t, StorageLocal, cfg.Storage.Backend)
	assert.Equal(t, "/srv/processed", cfg.Storage.Dir)
}

func TestLoad_ExpandsHomeDir(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvStorageDir, "~/processed")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "processed"), cfg.Storage.Dir)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse config file")

	t.Setenv(EnvConcurrency, "many")
	_, err = Load("")
	var vErr *utils.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, EnvConcurrency, vErr.Field)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{name: "overlap not below chunk size", modify: func(c *Config) { c.Chunking.Overlap = c.Chunking.MaxChunkSize }, field: "chunking"},
		{name: "chunk size above engine limit", modify: func(c *Config) { c.Chunking.MaxChunkSize = 8 * 1024 * 1024 }, field: "chunking.maxChunkSize"},
		{name: "body cap below chunk size", modify: func(c *Config) { c.Server.MaxBodyBytes = 1024 }, field: "server.maxBodyBytes"},
		{name: "zero concurrency", modify: func(c *Config) { c.Pipeline.Concurrency = 0 }, field: "pipeline.concurrency"},
		{name: "concurrency above max", modify: func(c *Config) { c.Pipeline.Concurrency = 5 }, field: "pipeline.concurrency"},
		{name: "engine timeout", modify: func(c *Config) { c.Engine.Timeout = 0 }, field: "engine.timeout"},
		{name: "preprocess timeout", modify: func(c *Config) { c.Preprocess.Timeout = -time.Second }, field: "preprocess.timeout"},
		{name: "speed factor", modify: func(c *Config) { c.Preprocess.Profile.SpeedFactor = 3 }, field: "speedFactor"},
		{name: "local without dir", modify: func(c *Config) { c.Storage.Dir = "" }, field: "storage.dir"},
		{name: "gcs without bucket", modify: func(c *Config) { c.Storage.Backend = StorageGCS }, field: "storage.bucket"},
		{name: "unknown gcs acl", modify: func(c *Config) {
			c.Storage.Backend = StorageGCS
			c.Storage.Bucket = "b"
			c.Storage.PredefinedACL = "everyone"
		}, field: "storage.predefinedAcl"},
		{name: "unknown backend", modify: func(c *Config) { c.Storage.Backend = "s3" }, field: "storage.backend"},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			var vErr *utils.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestNewInputConfig(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Weekly Sync.m4a")
	require.NoError(t, os.WriteFile(input, []byte("audio"), 0644))

	cfg, err := NewInputConfig(input, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, "Weekly Sync.m4a", cfg.InputFileName)
	assert.Equal(t, "Weekly Sync", cfg.InputFileBase)
	assert.True(t, cfg.IsSupportedAudio())
	assert.DirExists(t, filepath.Join(dir, "out"))

	cfg, err = NewInputConfig(input, "")
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.OutputPath)

	_, err = NewInputConfig("", "")
	assert.ErrorContains(t, err, "input path is required")

	_, err = NewInputConfig(dir, "")
	assert.ErrorContains(t, err, "not a directory")

	_, err = NewInputConfig(input, input)
	assert.ErrorContains(t, err, "output must be a directory")

	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("x"), 0644))
	cfg, err = NewInputConfig(notes, "")
	require.NoError(t, err)
	assert.False(t, cfg.IsSupportedAudio())
}
