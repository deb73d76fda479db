// Package app builds the pipeline components from a loaded configuration.
package app

import (
	"context"
	"fmt"

	"github.com/gnzdotmx/meetscribe/internal/config"
	"github.com/gnzdotmx/meetscribe/internal/modules/preprocess"
	"github.com/gnzdotmx/meetscribe/internal/modules/transcribechunk"
	"github.com/gnzdotmx/meetscribe/internal/pipeline"
	"github.com/gnzdotmx/meetscribe/internal/services/storage"
	"github.com/gnzdotmx/meetscribe/internal/services/transcription"
	"github.com/gnzdotmx/meetscribe/internal/utils"
)

// App holds the wired components shared by the CLI and the HTTP server
type App struct {
	Config       *config.Config
	Engine       transcription.Transcriber
	Worker       *transcribechunk.Worker
	Preprocessor *preprocess.Preprocessor
	// Store is nil when the storage backend is "none"
	Store storage.ObjectStore
	// Local is set for the local backend so its directory can be served
	Local *storage.LocalStore
}

// New wires every component described by cfg
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	engine, err := transcription.NewService(transcription.Options{
		APIKey:  cfg.Engine.APIKey,
		BaseURL: cfg.Engine.BaseURL,
		Model:   cfg.Engine.Model,
		Timeout: cfg.Engine.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription engine: %w", err)
	}
	return NewWithEngine(ctx, cfg, engine)
}

// NewWithEngine wires the components around an existing engine
func NewWithEngine(ctx context.Context, cfg *config.Config, engine transcription.Transcriber) (*App, error) {
	a := &App{Config: cfg, Engine: engine}

	switch cfg.Storage.Backend {
	case config.StorageLocal:
		local, err := storage.NewLocalStore(cfg.Storage.Dir, cfg.Storage.BaseURL)
		if err != nil {
			return nil, err
		}
		a.Local = local
		a.Store = local
	case config.StorageGCS:
		store, err := storage.NewGCSStore(ctx, storage.GCSOptions{
			Bucket:          cfg.Storage.Bucket,
			CredentialsFile: cfg.Storage.CredentialsFile,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
			PredefinedACL:   cfg.Storage.PredefinedACL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS store: %w", err)
		}
		a.Store = store
	}
	utils.LogVerbose("Storage backend: %s", cfg.Storage.Backend)

	a.Worker = transcribechunk.New(engine, transcribechunk.Options{
		TempDir:  cfg.TempDir,
		Language: cfg.Engine.Language,
	})
	a.Preprocessor = preprocess.New(preprocess.Options{
		Profile:     cfg.Preprocess.Profile,
		Timeout:     cfg.Preprocess.Timeout,
		TempDir:     cfg.TempDir,
		InlineLimit: cfg.Preprocess.InlineLimit,
		Store:       a.Store,
		FFmpegPath:  cfg.Preprocess.FFmpegPath,
	})
	return a, nil
}

// Orchestrator builds a pipeline run driver. A positive concurrency overrides the
// configured value.
func (a *App) Orchestrator(concurrency int, onProgress pipeline.ProgressFunc) *pipeline.Orchestrator {
	if concurrency <= 0 {
		concurrency = a.Config.Pipeline.Concurrency
	}
	return pipeline.New(a.Worker, a.Preprocessor, pipeline.Options{
		Chunking:    a.Config.Chunking,
		Concurrency: concurrency,
		Preprocess:  a.Config.Pipeline.Preprocess,
		OnProgress:  onProgress,
	})
}
