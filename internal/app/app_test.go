package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnzdotmx/meetscribe/internal/config"
	"github.com/gnzdotmx/meetscribe/internal/modules/transcribechunk"
	"github.com/gnzdotmx/meetscribe/internal/pipelineerr"
	"github.com/gnzdotmx/meetscribe/internal/services/transcription/mocks"
	"github.com/gnzdotmx/meetscribe/internal/transcript"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.StorageNone

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}

func TestNew_WithAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.APIKey = "sk-test"
	cfg.Storage.Backend = config.StorageNone

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.Engine)
	assert.Nil(t, a.Store)
}

func TestNewWithEngine_LocalStore(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Dir = filepath.Join(t.TempDir(), "processed")

	a, err := NewWithEngine(context.Background(), cfg, new(mocks.MockTranscriber))
	require.NoError(t, err)
	require.NotNil(t, a.Local)
	assert.Equal(t, a.Local, a.Store)
	assert.DirExists(t, cfg.Storage.Dir)
	assert.Equal(t, cfg.Preprocess.Profile, a.Preprocessor.Profile())
	assert.NotNil(t, a.Orchestrator(0, nil))
	assert.NotNil(t, a.Orchestrator(3, nil))
}

func TestNewWithEngine_GCSWithBadCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.StorageGCS
	cfg.Storage.Bucket = "meetings"
	cfg.Storage.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")

	_, err := NewWithEngine(context.Background(), cfg, new(mocks.MockTranscriber))
	assert.ErrorContains(t, err, "failed to create GCS store")
}

func TestNewWithEngine_PayloadLimitIgnoresChunkSize(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.StorageNone
	cfg.Chunking.MaxChunkSize = 2 * 1024 * 1024
	cfg.Chunking.Overlap = 256 * 1024
	require.NoError(t, cfg.Validate())

	a, err := NewWithEngine(context.Background(), cfg, new(mocks.MockTranscriber))
	require.NoError(t, err)

	chunk := func(size int) transcribechunk.Request {
		return transcribechunk.Request{
			Chunk: transcript.ChunkDescriptor{
				SessionID:   "s",
				ChunkIndex:  0,
				TotalChunks: 1,
				Payload:     make([]byte, size),
			},
			ContentType: "audio/mpeg",
		}
	}

	// a client may still send chunks up to the engine limit
	assert.NoError(t, a.Worker.Validate(chunk(3*1024*1024)))
	assert.NoError(t, a.Worker.Validate(chunk(transcribechunk.MaxPayloadSize)))
	assert.ErrorIs(t, a.Worker.Validate(chunk(transcribechunk.MaxPayloadSize+1)), pipelineerr.ErrChunkTooLarge)
}
