// Package config loads meetscribe settings from a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gnzdotmx/meetscribe/internal/chunker"
	"github.com/gnzdotmx/meetscribe/internal/modules/preprocess"
	"github.com/gnzdotmx/meetscribe/internal/modules/transcribechunk"
	"github.com/gnzdotmx/meetscribe/internal/pipeline"
	"github.com/gnzdotmx/meetscribe/internal/services/storage"
	"github.com/gnzdotmx/meetscribe/internal/services/transcription"
	"github.com/gnzdotmx/meetscribe/internal/utils"
)

// Storage backends
const (
	StorageNone  = "none"
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

// Environment variables that override file settings
const (
	EnvAPIKey         = "OPENAI_API_KEY"
	EnvEngineURL      = "MEETSCRIBE_ENGINE_URL"
	EnvEngineModel    = "MEETSCRIBE_ENGINE_MODEL"
	EnvGCSBucket      = "MEETSCRIBE_GCS_BUCKET"
	EnvGCSCredentials = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvStorageDir     = "MEETSCRIBE_STORAGE_DIR"
	EnvTempDir        = "MEETSCRIBE_TEMP_DIR"
	EnvListen         = "MEETSCRIBE_LISTEN"
	EnvConcurrency    = "MEETSCRIBE_CONCURRENCY"
)

const (
	defaultListen      = ":8080"
	defaultStorageDir  = "./data/processed"
	defaultStorageBase = "/files"
)

// Config holds every tunable setting
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Engine     EngineConfig     `yaml:"engine"`
	Chunking   chunker.Options  `yaml:"chunking"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Storage    StorageConfig    `yaml:"storage"`
	// TempDir is the parent of every per-run temp namespace. Empty means os.TempDir().
	TempDir string `yaml:"tempDir"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// MaxBodyBytes caps chunk and preprocess uploads
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`
}

// EngineConfig configures the speech-to-text engine
type EngineConfig struct {
	APIKey   string        `yaml:"apiKey"`
	BaseURL  string        `yaml:"baseURL"`
	Model    string        `yaml:"model"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// PipelineConfig configures the orchestrator
type PipelineConfig struct {
	Concurrency int  `yaml:"concurrency"`
	Preprocess  bool `yaml:"preprocess"`
}

// PreprocessConfig configures the transcoder
type PreprocessConfig struct {
	Profile     preprocess.Profile `yaml:"profile"`
	Timeout     time.Duration      `yaml:"timeout"`
	InlineLimit int64              `yaml:"inlineLimit"`
	FFmpegPath  string             `yaml:"ffmpegPath"`
}

// StorageConfig selects where large processed artifacts are handed off
type StorageConfig struct {
	Backend         string `yaml:"backend"`
	Dir             string `yaml:"dir"`
	BaseURL         string `yaml:"baseURL"`
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentialsFile"`
	PublicBaseURL   string `yaml:"publicBaseURL"`
	// PredefinedACL is applied to each uploaded object, e.g. "publicRead". When empty
	// the returned URLs only resolve if the bucket itself grants public read access.
	PredefinedACL string `yaml:"predefinedAcl"`
}

// Default returns the production defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:       defaultListen,
			MaxBodyBytes: chunker.DefaultTransportCeiling,
		},
		Engine: EngineConfig{
			BaseURL: transcription.DefaultBaseURL,
			Model:   transcription.DefaultModel,
			Timeout: transcription.DefaultTimeout,
		},
		Chunking: chunker.DefaultOptions(),
		Pipeline: PipelineConfig{
			Concurrency: pipeline.DefaultConcurrency,
			Preprocess:  true,
		},
		Preprocess: PreprocessConfig{
			Profile:     preprocess.DefaultProfile(),
			Timeout:     preprocess.DefaultTimeout,
			InlineLimit: preprocess.DefaultInlineLimit,
			FFmpegPath:  "ffmpeg",
		},
		Storage: StorageConfig{
			Backend: StorageLocal,
			Dir:     defaultStorageDir,
			BaseURL: defaultStorageBase,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		utils.LogVerbose("Loaded configuration from %s", path)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandPaths resolves "~/" in filesystem settings
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.TempDir, &c.Storage.Dir, &c.Storage.CredentialsFile, &c.Preprocess.FFmpegPath} {
		expanded, err := utils.ExpandHomeDir(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
			utils.LogDebug("Using %s from environment", env)
		}
	}

	setString(EnvAPIKey, &c.Engine.APIKey)
	setString(EnvEngineURL, &c.Engine.BaseURL)
	setString(EnvEngineModel, &c.Engine.Model)
	setString(EnvGCSCredentials, &c.Storage.CredentialsFile)
	setString(EnvTempDir, &c.TempDir)
	setString(EnvListen, &c.Server.Listen)

	if v := os.Getenv(EnvGCSBucket); v != "" {
		c.Storage.Backend = StorageGCS
		c.Storage.Bucket = v
	}
	if v := os.Getenv(EnvStorageDir); v != "" {
		c.Storage.Backend = StorageLocal
		c.Storage.Dir = v
	}
	if v := os.Getenv(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &utils.ValidationError{Field: EnvConcurrency, Message: "must be an integer", Err: err}
		}
		c.Pipeline.Concurrency = n
	}
	return nil
}

// Validate checks value bounds
func (c *Config) Validate() error {
	if err := c.Chunking.Validate(); err != nil {
		return &utils.ValidationError{Field: "chunking", Message: "invalid chunk sizing", Err: err}
	}
	if c.Chunking.MaxChunkSize > transcribechunk.MaxPayloadSize {
		return &utils.ValidationError{
			Field:   "chunking.maxChunkSize",
			Message: fmt.Sprintf("must not exceed the engine payload limit %d, got %d", transcribechunk.MaxPayloadSize, c.Chunking.MaxChunkSize),
		}
	}
	if c.Server.MaxBodyBytes < c.Chunking.MaxChunkSize {
		return &utils.ValidationError{
			Field:   "server.maxBodyBytes",
			Message: fmt.Sprintf("must be at least the chunk size %d, got %d", c.Chunking.MaxChunkSize, c.Server.MaxBodyBytes),
		}
	}
	if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > pipeline.MaxConcurrency {
		return &utils.ValidationError{
			Field:   "pipeline.concurrency",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", pipeline.MaxConcurrency, c.Pipeline.Concurrency),
		}
	}
	if c.Engine.Timeout <= 0 {
		return &utils.ValidationError{Field: "engine.timeout", Message: "must be positive"}
	}
	if c.Preprocess.Timeout <= 0 {
		return &utils.ValidationError{Field: "preprocess.timeout", Message: "must be positive"}
	}
	if err := c.Preprocess.Profile.Validate(); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case StorageNone:
	case StorageLocal:
		if c.Storage.Dir == "" {
			return &utils.ValidationError{Field: "storage.dir", Message: "is required for the local backend"}
		}
	case StorageGCS:
		if c.Storage.Bucket == "" {
			return &utils.ValidationError{Field: "storage.bucket", Message: "is required for the gcs backend"}
		}
		if c.Storage.PredefinedACL != "" && !storage.IsPredefinedACL(c.Storage.PredefinedACL) {
			return &utils.ValidationError{
				Field:   "storage.predefinedAcl",
				Message: fmt.Sprintf("unknown predefined ACL %q", c.Storage.PredefinedACL),
			}
		}
	default:
		return &utils.ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("unknown backend %q (use none, local or gcs)", c.Storage.Backend),
		}
	}
	return nil
}
