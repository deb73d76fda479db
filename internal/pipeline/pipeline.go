// Package pipeline drives one asset through preprocessing, chunking, per-chunk
// transcription and merging.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gnzdotmx/meetscribe/internal/chunker"
	"github.com/gnzdotmx/meetscribe/internal/media"
	"github.com/gnzdotmx/meetscribe/internal/modules/merge"
	"github.com/gnzdotmx/meetscribe/internal/modules/preprocess"
	"github.com/gnzdotmx/meetscribe/internal/modules/transcribechunk"
	"github.com/gnzdotmx/meetscribe/internal/pipelineerr"
	"github.com/gnzdotmx/meetscribe/internal/transcript"
	"github.com/gnzdotmx/meetscribe/internal/utils"
)

// Concurrency bounds for chunk transcription
const (
	DefaultConcurrency = 1
	MaxConcurrency     = 4
)

// ChunkTranscriber transcribes a single chunk
type ChunkTranscriber interface {
	Transcribe(ctx context.Context, req transcribechunk.Request) (*transcript.ChunkResult, error)
}

// Preprocessor shrinks an asset before chunking. The result must carry the
// processed bytes.
type Preprocessor interface {
	ProcessInline(ctx context.Context, asset media.Asset) (*preprocess.Result, error)
}

// Ensure the concrete stages satisfy the interfaces
var (
	_ ChunkTranscriber = (*transcribechunk.Worker)(nil)
	_ Preprocessor     = (*preprocess.Preprocessor)(nil)
)

// Progress is reported after every completed chunk
type Progress struct {
	SessionID       string  `json:"sessionId"`
	ChunkIndex      int     `json:"chunkIndex"`
	CompletedChunks int     `json:"completedChunks"`
	TotalChunks     int     `json:"totalChunks"`
	PercentComplete float64 `json:"percentComplete"`
}

// ProgressFunc receives progress updates. Calls are never concurrent.
type ProgressFunc func(Progress)

// Options configures an Orchestrator
type Options struct {
	Chunking    chunker.Options
	Concurrency int
	// Preprocess enables the transcoder for assets that would need more than one chunk
	Preprocess bool
	OnProgress ProgressFunc
}

// Orchestrator runs the transcription pipeline
type Orchestrator struct {
	worker ChunkTranscriber
	pre    Preprocessor
	opts   Options
}

// New creates an Orchestrator. pre may be nil when preprocessing is never wanted.
func New(worker ChunkTranscriber, pre Preprocessor, opts Options) *Orchestrator {
	if opts.Chunking == (chunker.Options{}) {
		opts.Chunking = chunker.DefaultOptions()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Concurrency > MaxConcurrency {
		opts.Concurrency = MaxConcurrency
	}
	return &Orchestrator{worker: worker, pre: pre, opts: opts}
}

// Run transcribes asset end to end. The returned state is non-nil even when the run
// fails, and records what happened. No partial transcript is ever produced.
func (o *Orchestrator) Run(ctx context.Context, asset media.Asset) (*RunState, error) {
	sessionID := chunker.NewSessionID()
	state := newRunState(sessionID, asset.Filename)

	transcriptResult, err := o.run(ctx, state, asset)
	if err != nil {
		if pErr, ok := pipelineerr.As(err); ok && pErr.SessionID == "" {
			pErr.WithSession(sessionID)
		}
		state.finish(RunStatusFailed)
		utils.LogError("Run %s failed after %s: %v", sessionID, state.Duration().Round(time.Millisecond), err)
		return state, err
	}

	state.Lock()
	state.Transcript = transcriptResult
	state.Unlock()
	state.finish(RunStatusComplete)
	utils.LogSuccess("Transcribed %s in %s (%d chunks, %.1fs of audio, %d words)",
		asset.Filename, state.Duration().Round(time.Millisecond),
		transcriptResult.ChunkCount, transcriptResult.TotalDurationSeconds, transcriptResult.WordCount)
	return state, nil
}

func (o *Orchestrator) run(ctx context.Context, state *RunState, asset media.Asset) (*transcript.Merged, error) {
	if asset.Size() == 0 {
		state.AddEvent(StagePlan, pipelineerr.NoChunk, EventFailed, chunker.ErrEmptyAsset.Error(), nil)
		return nil, chunker.ErrEmptyAsset
	}
	originalFilename := asset.Filename

	if o.opts.Preprocess && o.pre != nil && o.opts.Chunking.NeedsChunking(asset.Size()) {
		processed, err := o.preprocess(ctx, state, asset)
		if err != nil {
			return nil, err
		}
		asset = processed.Asset()
	} else {
		state.AddEvent(StagePreprocess, pipelineerr.NoChunk, EventSkipped, "preprocessing not needed or disabled", nil)
	}

	chunks, err := chunker.Plan(state.SessionID, asset.Data, o.opts.Chunking)
	if err != nil {
		state.AddEvent(StagePlan, pipelineerr.NoChunk, EventFailed, err.Error(), nil)
		return nil, fmt.Errorf("failed to plan chunks: %w", err)
	}
	if len(chunks) > transcribechunk.MaxChunks {
		state.AddEvent(StagePlan, pipelineerr.NoChunk, EventFailed, "too many chunks", nil)
		return nil, pipelineerr.New(pipelineerr.ErrInvalidChunkMetadata, "plan", nil).
			WithDetails("asset needs %d chunks, at most %d are allowed", len(chunks), transcribechunk.MaxChunks)
	}
	state.Lock()
	state.TotalChunks = len(chunks)
	state.Unlock()
	state.AddEvent(StagePlan, pipelineerr.NoChunk, EventCompleted, fmt.Sprintf("planned %d chunks", len(chunks)),
		map[string]interface{}{"totalChunks": len(chunks), "size": asset.Size()})
	utils.LogInfo("Session %s: %d bytes in %d chunk(s), concurrency %d", state.SessionID, asset.Size(), len(chunks), o.opts.Concurrency)

	results, err := o.transcribeAll(ctx, state, asset, chunks)
	if err != nil {
		return nil, err
	}

	state.AddEvent(StageMerge, pipelineerr.NoChunk, EventStarted, "merging chunk transcripts", nil)
	merged, err := merge.Merge(merge.Request{
		SessionID:        state.SessionID,
		OriginalFilename: originalFilename,
		TotalChunks:      len(chunks),
		Chunks:           results,
	})
	if err != nil {
		state.AddEvent(StageMerge, pipelineerr.NoChunk, EventFailed, err.Error(), nil)
		return nil, err
	}
	state.AddEvent(StageMerge, pipelineerr.NoChunk, EventCompleted, "merged transcript",
		map[string]interface{}{"words": merged.WordCount, "segments": merged.SegmentCount, "duration": merged.TotalDurationSeconds})
	return merged, nil
}

func (o *Orchestrator) preprocess(ctx context.Context, state *RunState, asset media.Asset) (*preprocess.Result, error) {
	state.AddEvent(StagePreprocess, pipelineerr.NoChunk, EventStarted, "transcoding asset", nil)
	processed, err := o.pre.ProcessInline(ctx, asset)
	if err != nil {
		state.AddEvent(StagePreprocess, pipelineerr.NoChunk, EventFailed, err.Error(), nil)
		return nil, err
	}

	state.Lock()
	state.Preprocessing = processed
	state.Unlock()
	state.AddEvent(StagePreprocess, pipelineerr.NoChunk, EventCompleted, "asset transcoded", map[string]interface{}{
		"originalSize":     processed.OriginalSize,
		"processedSize":    processed.ProcessedSize,
		"compressionRatio": processed.CompressionRatio,
	})
	return processed, nil
}

// transcribeAll runs chunks through a bounded pool. The first failure cancels the rest
// and no results are returned.
func (o *Orchestrator) transcribeAll(ctx context.Context, state *RunState, asset media.Asset, chunks []transcript.ChunkDescriptor) ([]transcript.ChunkResult, error) {
	results := make([]transcript.ChunkResult, len(chunks))
	var progressMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)

	for i := range chunks {
		if gctx.Err() != nil {
			break
		}
		c := chunks[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			state.AddEvent(StageTranscribe, c.ChunkIndex, EventStarted, "transcribing chunk",
				map[string]interface{}{"start": c.ByteRange.Start, "bytes": c.ByteRange.Len()})

			res, err := o.worker.Transcribe(gctx, transcribechunk.Request{
				Chunk:            c,
				OriginalFilename: asset.Filename,
				ContentType:      asset.ContentType,
				Processed:        asset.Processed,
			})
			if err != nil {
				state.AddEvent(StageTranscribe, c.ChunkIndex, EventFailed, err.Error(), nil)
				return err
			}
			results[c.ChunkIndex] = *res
			state.AddEvent(StageTranscribe, c.ChunkIndex, EventCompleted, "chunk transcribed",
				map[string]interface{}{"duration": res.DurationSeconds, "segments": len(res.Segments)})

			// counted under the lock so reported progress only ever increases
			progressMu.Lock()
			defer progressMu.Unlock()
			completed := state.chunkDone()
			p := Progress{
				SessionID:       c.SessionID,
				ChunkIndex:      c.ChunkIndex,
				CompletedChunks: completed,
				TotalChunks:     c.TotalChunks,
				PercentComplete: float64(completed) / float64(c.TotalChunks) * 100,
			}
			utils.LogVerbose("Chunk %d/%d done (%.0f%%)", c.ChunkIndex+1, c.TotalChunks, p.PercentComplete)
			if o.opts.OnProgress != nil {
				o.opts.OnProgress(p)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// the parent context may have been cancelled before any chunk failed
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
