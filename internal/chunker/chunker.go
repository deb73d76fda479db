// Package chunker partitions an audio asset into bounded, indexed, overlapping
// byte ranges that can each be sent to the transcription engine on their own.
package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gnzdotmx/meetscribe/internal/transcript"
)

// Size limits. The chunk ceiling keeps headroom below the 4.5MB request limit of
// the serving platform.
const (
	DefaultMaxChunkSize     int64 = 4 * 1024 * 1024
	DefaultOverlap          int64 = 512 * 1024
	DefaultTransportCeiling int64 = 4*1024*1024 + 512*1024
)

// ErrEmptyAsset is returned when asked to plan a zero-length asset
var ErrEmptyAsset = errors.New("asset is empty")

// ErrInvalidOptions is returned for a chunk size/overlap combination that cannot make progress
var ErrInvalidOptions = errors.New("invalid chunking options")

// Options controls chunk sizing
type Options struct {
	MaxChunkSize int64 `yaml:"maxChunkSize"`
	Overlap      int64 `yaml:"overlap"`
}

// DefaultOptions returns the production chunk sizing
func DefaultOptions() Options {
	return Options{
		MaxChunkSize: DefaultMaxChunkSize,
		Overlap:      DefaultOverlap,
	}
}

// Validate checks that chunks advance by a positive step
func (o Options) Validate() error {
	if o.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: maxChunkSize must be positive, got %d", ErrInvalidOptions, o.MaxChunkSize)
	}
	if o.Overlap < 0 || o.Overlap >= o.MaxChunkSize {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidOptions, o.Overlap, o.MaxChunkSize)
	}
	return nil
}

// Step is the distance between the starts of two consecutive chunks
func (o Options) Step() int64 {
	return o.MaxChunkSize - o.Overlap
}

// NeedsChunking reports whether an asset of size bytes is split into more than one chunk
func (o Options) NeedsChunking(size int64) bool {
	return size > o.Step()
}

// ChunkCount returns the number of chunks an asset of size bytes is split into
func (o Options) ChunkCount(size int64) int {
	if size <= 0 {
		return 0
	}
	step := o.Step()
	return int((size + step - 1) / step)
}

// Ranges computes the byte ranges for an asset of size bytes
func Ranges(size int64, opts Options) ([]transcript.ByteRange, error) {
	if size <= 0 {
		return nil, ErrEmptyAsset
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if !opts.NeedsChunking(size) {
		return []transcript.ByteRange{{Start: 0, End: size}}, nil
	}

	step := opts.Step()
	total := opts.ChunkCount(size)
	ranges := make([]transcript.ByteRange, 0, total)
	for i := 0; i < total; i++ {
		start := int64(i) * step
		end := min(start+opts.MaxChunkSize, size)
		ranges = append(ranges, transcript.ByteRange{Start: start, End: end})
	}
	return ranges, nil
}

// Plan slices data into chunk descriptors tagged with sessionID.
// Payloads share memory with data.
func Plan(sessionID string, data []byte, opts Options) ([]transcript.ChunkDescriptor, error) {
	ranges, err := Ranges(int64(len(data)), opts)
	if err != nil {
		return nil, err
	}

	chunks := make([]transcript.ChunkDescriptor, len(ranges))
	for i, r := range ranges {
		chunks[i] = transcript.ChunkDescriptor{
			SessionID:   sessionID,
			ChunkIndex:  i,
			TotalChunks: len(ranges),
			ByteRange:   r,
			Payload:     data[r.Start:r.End:r.End],
		}
	}
	return chunks, nil
}

// NewSessionID returns a collision-resistant session token: a millisecond
// timestamp followed by a random UUID.
func NewSessionID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + uuid.New().String()
}
