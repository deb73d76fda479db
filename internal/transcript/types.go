// Package transcript defines the chunk and transcript data model shared by the
// planner, the chunk worker, the merger and the HTTP API.
package transcript

import (
	"regexp"
	"strings"
)

// LocalTime is a timestamp in seconds measured from the start of one chunk's audio.
type LocalTime float64

// GlobalTime is a timestamp in seconds measured from the start of the original asset.
type GlobalTime float64

// Shift converts a chunk-local timestamp to asset time given the chunk's start offset.
// It is the only place where the two time axes meet.
func (t LocalTime) Shift(offset GlobalTime) GlobalTime {
	return offset + GlobalTime(t)
}

// ByteRange is a half-open [Start, End) range into the source asset
type ByteRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len returns the number of bytes covered by the range
func (r ByteRange) Len() int64 {
	return r.End - r.Start
}

// ChunkDescriptor describes one bounded slice of an asset
type ChunkDescriptor struct {
	SessionID   string    `json:"sessionId"`
	ChunkIndex  int       `json:"chunkIndex"`
	TotalChunks int       `json:"totalChunks"`
	ByteRange   ByteRange `json:"byteRange"`
	Payload     []byte    `json:"-"`
}

// IsFirst reports whether this is the first chunk of its session
func (c ChunkDescriptor) IsFirst() bool {
	return c.ChunkIndex == 0
}

// IsLast reports whether this is the last chunk of its session
func (c ChunkDescriptor) IsLast() bool {
	return c.ChunkIndex == c.TotalChunks-1
}

// Word is one recognized word with chunk-local timing
type Word struct {
	Start LocalTime `json:"start"`
	End   LocalTime `json:"end"`
	Text  string    `json:"word"`
}

// Segment is one recognized phrase with chunk-local timing
type Segment struct {
	Start LocalTime `json:"start"`
	End   LocalTime `json:"end"`
	Text  string    `json:"text"`
	Words []Word    `json:"words,omitempty"`
}

// ChunkResult is the transcription of a single chunk. All timestamps are chunk-local.
type ChunkResult struct {
	Text            string    `json:"text"`
	Language        string    `json:"language"`
	DurationSeconds float64   `json:"duration"`
	Segments        []Segment `json:"segments"`
	ChunkIndex      int       `json:"chunkIndex"`
	TotalChunks     int       `json:"totalChunks"`
	SessionID       string    `json:"sessionId"`
}

// MergedWord is a word placed on the asset time axis
type MergedWord struct {
	Start GlobalTime `json:"start"`
	End   GlobalTime `json:"end"`
	Text  string     `json:"word"`
}

// MergedSegment is a segment placed on the asset time axis
type MergedSegment struct {
	Start      GlobalTime   `json:"start"`
	End        GlobalTime   `json:"end"`
	Text       string       `json:"text"`
	Words      []MergedWord `json:"words,omitempty"`
	ChunkIndex int          `json:"chunkIndex"`
}

// Merged is the final transcript assembled from every chunk of one session
type Merged struct {
	SessionID            string          `json:"sessionId"`
	OriginalFilename     string          `json:"originalFilename,omitempty"`
	Text                 string          `json:"text"`
	Language             string          `json:"language"`
	Segments             []MergedSegment `json:"segments"`
	Words                []MergedWord    `json:"words"`
	TotalDurationSeconds float64         `json:"duration"`
	WordCount            int             `json:"wordCount"`
	SegmentCount         int             `json:"segmentCount"`
	AvgWordsPerSecond    float64         `json:"avgWordsPerSecond"`
	ChunkCount           int             `json:"chunkCount"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeWhitespace collapses every run of whitespace to one space and trims the ends
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// IsBlank reports whether s has no visible characters
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
