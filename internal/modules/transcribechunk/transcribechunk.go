// Package transcribechunk submits one chunk of an asset to the transcription
// engine and turns the response into a chunk-local transcript.
package transcribechunk

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gnzdotmx/meetscribe/internal/media"
	"github.com/gnzdotmx/meetscribe/internal/pipelineerr"
	"github.com/gnzdotmx/meetscribe/internal/services/transcription"
	"github.com/gnzdotmx/meetscribe/internal/tempfs"
	"github.com/gnzdotmx/meetscribe/internal/transcript"
	"github.com/gnzdotmx/meetscribe/internal/utils"
)

// Limits enforced before the engine is called
const (
	MaxChunks      = 200
	MaxPayloadSize = 4 * 1024 * 1024
)

// Prompts steer the engine towards treating chunks as one continuous recording
const (
	FirstChunkPrompt   = "This is the start of a recording."
	ContinuationPrompt = "This is a continuation of a recording."
)

// Request is one chunk to transcribe
type Request struct {
	Chunk            transcript.ChunkDescriptor
	OriginalFilename string
	// ContentType is the declared type; it is inferred when empty or unsupported
	ContentType string
	// Processed marks chunks cut from a preprocessed artifact
	Processed bool
}

// Options configures a Worker
type Options struct {
	TempDir string
	// Language is an optional ISO-639-1 hint passed to the engine
	Language string
}

// Worker transcribes individual chunks
type Worker struct {
	engine   transcription.Transcriber
	tempDir  string
	language string
}

// New creates a Worker backed by engine
func New(engine transcription.Transcriber, opts Options) *Worker {
	return &Worker{
		engine:   engine,
		tempDir:  opts.TempDir,
		language: opts.Language,
	}
}

// Validate checks chunk metadata and size without calling the engine
func (w *Worker) Validate(req Request) error {
	c := req.Chunk
	if c.TotalChunks < 1 || c.TotalChunks > MaxChunks {
		return pipelineerr.InvalidChunkMetadata(c.ChunkIndex, c.TotalChunks,
			"totalChunks must be between 1 and %d", MaxChunks).WithSession(c.SessionID)
	}
	if c.ChunkIndex < 0 || c.ChunkIndex >= c.TotalChunks {
		return pipelineerr.InvalidChunkMetadata(c.ChunkIndex, c.TotalChunks,
			"chunkIndex must be between 0 and %d", c.TotalChunks-1).WithSession(c.SessionID)
	}
	if size := int64(len(c.Payload)); size > MaxPayloadSize {
		return pipelineerr.ChunkTooLarge(c.ChunkIndex, c.TotalChunks, size, MaxPayloadSize).WithSession(c.SessionID)
	}
	if len(c.Payload) == 0 {
		return pipelineerr.InvalidChunkMetadata(c.ChunkIndex, c.TotalChunks, "chunk payload is empty").WithSession(c.SessionID)
	}
	return nil
}

// Transcribe validates the chunk, sends it to the engine and returns its chunk-local transcript
func (w *Worker) Transcribe(ctx context.Context, req Request) (*transcript.ChunkResult, error) {
	if err := w.Validate(req); err != nil {
		return nil, err
	}
	c := req.Chunk

	contentType, err := media.ResolveContentType(req.ContentType, req.OriginalFilename, c.Payload, req.Processed)
	if err != nil {
		if pErr, ok := pipelineerr.As(err); ok {
			pErr.WithChunk(c.ChunkIndex, c.TotalChunks).WithSession(c.SessionID)
		}
		return nil, err
	}

	guard, err := tempfs.New(w.tempDir, fmt.Sprintf("%s-chunk%d", c.SessionID, c.ChunkIndex))
	if err != nil {
		return nil, pipelineerr.ChunkTranscriptionFailed(c.ChunkIndex, c.TotalChunks, err).WithSession(c.SessionID)
	}
	defer func() {
		if rerr := guard.Release(); rerr != nil {
			utils.LogWarning("Failed to remove temporary chunk files: %v", rerr)
		}
	}()

	filename := fmt.Sprintf("chunk-%d%s", c.ChunkIndex, media.ExtensionFor(contentType))
	path, err := guard.WriteFile(filename, c.Payload)
	if err != nil {
		return nil, pipelineerr.ChunkTranscriptionFailed(c.ChunkIndex, c.TotalChunks, err).WithSession(c.SessionID)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, pipelineerr.ChunkTranscriptionFailed(c.ChunkIndex, c.TotalChunks, err).WithSession(c.SessionID)
	}
	defer func() {
		if err := f.Close(); err != nil {
			utils.LogWarning("Failed to close file: %v", err)
		}
	}()

	utils.LogVerbose("Transcribing chunk %d/%d of session %s (%d bytes, %s)",
		c.ChunkIndex+1, c.TotalChunks, c.SessionID, len(c.Payload), contentType)

	resp, err := w.engine.Transcribe(ctx, transcription.Request{
		Audio:       f,
		Filename:    filename,
		ContentType: contentType,
		Prompt:      Prompt(c),
		Temperature: 0,
		Language:    w.language,
	})
	if err != nil {
		return nil, pipelineerr.ChunkTranscriptionFailed(c.ChunkIndex, c.TotalChunks, err).WithSession(c.SessionID)
	}

	result := BuildResult(resp, c)
	utils.LogDebug("Chunk %d: %.2fs, %d segments, language %q", c.ChunkIndex, result.DurationSeconds, len(result.Segments), result.Language)
	return &result, nil
}

// Prompt returns the context prompt for a chunk
func Prompt(c transcript.ChunkDescriptor) string {
	if c.IsFirst() {
		return FirstChunkPrompt
	}
	return ContinuationPrompt
}

// BuildResult converts an engine response into a chunk result. Words reported at the
// top level are attached to the segment that contains their start time.
func BuildResult(resp *transcription.Response, c transcript.ChunkDescriptor) transcript.ChunkResult {
	segments := make([]transcript.Segment, 0, len(resp.Segments))
	nested := false
	for _, s := range resp.Segments {
		seg := transcript.Segment{
			Start: transcript.LocalTime(s.Start),
			End:   transcript.LocalTime(s.End),
			Text:  s.Text,
		}
		if len(s.Words) > 0 {
			nested = true
			seg.Words = convertWords(s.Words)
		}
		segments = append(segments, seg)
	}

	if !nested && len(resp.Words) > 0 {
		segments = attachWords(segments, convertWords(resp.Words))
	}

	duration := resp.Duration
	if duration <= 0 {
		for _, s := range segments {
			duration = max(duration, float64(s.End))
		}
	}

	return transcript.ChunkResult{
		Text:            resp.Text,
		Language:        resp.Language,
		DurationSeconds: max(duration, 0),
		Segments:        segments,
		ChunkIndex:      c.ChunkIndex,
		TotalChunks:     c.TotalChunks,
		SessionID:       c.SessionID,
	}
}

func convertWords(in []transcription.ResponseWord) []transcript.Word {
	out := make([]transcript.Word, len(in))
	for i, w := range in {
		out[i] = transcript.Word{
			Start: transcript.LocalTime(w.Start),
			End:   transcript.LocalTime(w.End),
			Text:  w.Word,
		}
	}
	return out
}

// attachWords distributes words over segments. Words outside every segment are
// collected into one extra segment so none are lost.
func attachWords(segments []transcript.Segment, words []transcript.Word) []transcript.Segment {
	var orphans []transcript.Word
	for _, w := range words {
		placed := false
		for i := range segments {
			if w.Start >= segments[i].Start && w.Start <= segments[i].End {
				segments[i].Words = append(segments[i].Words, w)
				placed = true
				break
			}
		}
		if !placed {
			orphans = append(orphans, w)
		}
	}

	if len(orphans) > 0 {
		texts := make([]string, len(orphans))
		for i, w := range orphans {
			texts[i] = w.Text
		}
		segments = append(segments, transcript.Segment{
			Start: orphans[0].Start,
			End:   orphans[len(orphans)-1].End,
			Text:  strings.Join(texts, " "),
			Words: orphans,
		})
		sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
	}
	return segments
}
