// Package merge reassembles per-chunk transcripts into one transcript on the
// original asset's time axis.
package merge

import (
	"sort"
	"strings"

	"github.com/gnzdotmx/meetscribe/internal/pipelineerr"
	"github.com/gnzdotmx/meetscribe/internal/transcript"
	"github.com/gnzdotmx/meetscribe/internal/utils"
)

// Request is a set of chunk results for one session, in any order
type Request struct {
	SessionID        string                   `json:"sessionId"`
	OriginalFilename string                   `json:"originalFilename"`
	TotalChunks      int                      `json:"totalChunks,omitempty"` // taken from the chunks when zero
	Chunks           []transcript.ChunkResult `json:"chunks"`
}

// Merge validates that the chunks form a complete contiguous sequence and lays them
// end to end. Each chunk's timestamps are shifted by the summed durations of the
// chunks before it. The input slice is not modified.
func Merge(req Request) (*transcript.Merged, error) {
	if len(req.Chunks) == 0 {
		return nil, pipelineerr.ChunkSequenceInvalid(0, pipelineerr.NoChunk).
			WithSession(req.SessionID).
			WithDetails("no chunk results to merge")
	}

	chunks := make([]transcript.ChunkResult, len(req.Chunks))
	copy(chunks, req.Chunks)
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})

	if err := checkSequence(req, chunks); err != nil {
		return nil, err
	}

	merged := &transcript.Merged{
		SessionID:        req.SessionID,
		OriginalFilename: req.OriginalFilename,
		Language:         chunks[0].Language,
		Segments:         []transcript.MergedSegment{},
		Words:            []transcript.MergedWord{},
		ChunkCount:       len(chunks),
	}

	var offset transcript.GlobalTime
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)

		for _, seg := range c.Segments {
			if transcript.IsBlank(seg.Text) {
				continue
			}
			ms := transcript.MergedSegment{
				Start:      seg.Start.Shift(offset),
				End:        seg.End.Shift(offset),
				Text:       transcript.NormalizeWhitespace(seg.Text),
				ChunkIndex: c.ChunkIndex,
			}
			for _, w := range seg.Words {
				if transcript.IsBlank(w.Text) {
					continue
				}
				mw := transcript.MergedWord{
					Start: w.Start.Shift(offset),
					End:   w.End.Shift(offset),
					Text:  strings.TrimSpace(w.Text),
				}
				ms.Words = append(ms.Words, mw)
				merged.Words = append(merged.Words, mw)
			}
			merged.Segments = append(merged.Segments, ms)
		}

		offset += transcript.GlobalTime(max(c.DurationSeconds, 0))
	}

	merged.Text = transcript.NormalizeWhitespace(strings.Join(texts, " "))
	merged.TotalDurationSeconds = float64(offset)
	merged.SegmentCount = len(merged.Segments)
	merged.WordCount = len(merged.Words)
	if merged.TotalDurationSeconds > 0 {
		merged.AvgWordsPerSecond = float64(merged.WordCount) / merged.TotalDurationSeconds
	}

	utils.LogDebug("Merged %d chunks of session %s: %.2fs, %d segments, %d words",
		merged.ChunkCount, merged.SessionID, merged.TotalDurationSeconds, merged.SegmentCount, merged.WordCount)
	return merged, nil
}

// checkSequence requires sorted chunk indices to be exactly 0..n-1, all agreeing on
// the chunk count and the session
func checkSequence(req Request, chunks []transcript.ChunkResult) error {
	expectedTotal := req.TotalChunks
	if expectedTotal <= 0 {
		expectedTotal = chunks[0].TotalChunks
	}
	if expectedTotal <= 0 {
		expectedTotal = len(chunks)
	}

	for i, c := range chunks {
		if c.ChunkIndex != i {
			return pipelineerr.ChunkSequenceInvalid(i, c.ChunkIndex).WithSession(req.SessionID)
		}
	}
	if len(chunks) != expectedTotal {
		return pipelineerr.ChunkSequenceInvalid(len(chunks), pipelineerr.NoChunk).
			WithSession(req.SessionID).
			WithDetails("received %d of %d chunks", len(chunks), expectedTotal)
	}

	// indices are contiguous here, so the offending chunk is named through WithChunk only
	for _, c := range chunks {
		if c.TotalChunks != 0 && c.TotalChunks != expectedTotal {
			return pipelineerr.ChunkSequenceInvalid(pipelineerr.NoChunk, pipelineerr.NoChunk).
				WithSession(req.SessionID).
				WithChunk(c.ChunkIndex, c.TotalChunks).
				WithDetails("chunk reports %d total chunks, expected %d", c.TotalChunks, expectedTotal)
		}
		if req.SessionID != "" && c.SessionID != "" && c.SessionID != req.SessionID {
			return pipelineerr.ChunkSequenceInvalid(pipelineerr.NoChunk, pipelineerr.NoChunk).
				WithSession(req.SessionID).
				WithChunk(c.ChunkIndex, c.TotalChunks).
				WithDetails("chunk belongs to session %s", c.SessionID)
		}
	}
	return nil
}
