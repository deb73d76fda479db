// Package pipelineerr provides structured error handling for the transcription pipeline.
// It defines the error kinds the pipeline can fail with and a single error type that
// carries enough chunk and session context for a caller to decide what to re-run.
package pipelineerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors, one per failure kind. Match them with errors.Is.
var (
	// ErrInvalidChunkMetadata indicates a chunk index out of bounds or a chunk count outside [1,MaxChunks]
	ErrInvalidChunkMetadata = errors.New("invalid chunk metadata")

	// ErrChunkTooLarge indicates a chunk payload above the transport ceiling
	ErrChunkTooLarge = errors.New("chunk too large")

	// ErrUnsupportedMediaType indicates no acceptable content type could be resolved
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrChunkTranscriptionFailed indicates the remote engine call failed
	ErrChunkTranscriptionFailed = errors.New("chunk transcription failed")

	// ErrPreprocessingTimeout indicates the transcoder did not finish within its budget
	ErrPreprocessingTimeout = errors.New("preprocessing timed out")

	// ErrPreprocessingFailed indicates the transcoder itself failed
	ErrPreprocessingFailed = errors.New("preprocessing failed")

	// ErrChunkSequenceInvalid indicates a gap, duplicate or out-of-range index at merge time
	ErrChunkSequenceInvalid = errors.New("chunk sequence invalid")
)

// NoChunk marks an Error that is not tied to a specific chunk.
const NoChunk = -1

// Error provides structured error information with pipeline context
type Error struct {
	Kind        error  // One of the sentinel errors above
	Op          string // Operation that failed (e.g. "validate_chunk", "merge")
	SessionID   string
	ChunkIndex  int
	TotalChunks int
	Expected    int // Expected chunk index, for sequence errors
	Found       int // Found chunk index, for sequence errors
	Details     string
	Err         error // Underlying cause
}

// New creates an Error of the given kind with no chunk context
func New(kind error, op string, cause error) *Error {
	return &Error{
		Kind:       kind,
		Op:         op,
		ChunkIndex: NoChunk,
		Expected:   NoChunk,
		Found:      NoChunk,
		Err:        cause,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.ChunkIndex != NoChunk {
		msg = fmt.Sprintf("%s (chunk %d/%d)", msg, e.ChunkIndex, e.TotalChunks)
	}
	if e.Expected != NoChunk || e.Found != NoChunk {
		msg = fmt.Sprintf("%s (expected index %d, found %d)", msg, e.Expected, e.Found)
	}
	if e.SessionID != "" {
		msg = fmt.Sprintf("%s [session %s]", msg, e.SessionID)
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is this error's kind
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// WithSession adds session context to the error
func (e *Error) WithSession(sessionID string) *Error {
	e.SessionID = sessionID
	return e
}

// WithChunk adds chunk context to the error
func (e *Error) WithChunk(index, total int) *Error {
	e.ChunkIndex = index
	e.TotalChunks = total
	return e
}

// WithDetails attaches a human-readable explanation
func (e *Error) WithDetails(format string, args ...interface{}) *Error {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

// Retryable reports whether resubmitting the same input might succeed.
// Only remote engine failures qualify; everything else needs a different input.
func (e *Error) Retryable() bool {
	return e.Kind == ErrChunkTranscriptionFailed
}

// InvalidChunkMetadata creates a metadata validation error for one chunk
func InvalidChunkMetadata(index, total int, format string, args ...interface{}) *Error {
	return New(ErrInvalidChunkMetadata, "validate_chunk", nil).WithChunk(index, total).WithDetails(format, args...)
}

// ChunkTooLarge creates a size validation error for one chunk
func ChunkTooLarge(index, total int, size, limit int64) *Error {
	return New(ErrChunkTooLarge, "validate_chunk", nil).
		WithChunk(index, total).
		WithDetails("payload is %d bytes, limit is %d bytes", size, limit)
}

// ChunkTranscriptionFailed wraps a remote engine failure for one chunk
func ChunkTranscriptionFailed(index, total int, cause error) *Error {
	return New(ErrChunkTranscriptionFailed, "transcribe_chunk", cause).WithChunk(index, total)
}

// ChunkSequenceInvalid creates a merge-time sequencing error
func ChunkSequenceInvalid(expected, found int) *Error {
	e := New(ErrChunkSequenceInvalid, "merge", nil)
	e.Expected = expected
	e.Found = found
	return e
}

// As extracts an *Error from err, if there is one
func As(err error) (*Error, bool) {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr, true
	}
	return nil, false
}

// HTTPStatus maps an error to the status code the API responds with
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidChunkMetadata), errors.Is(err, ErrChunkSequenceInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrChunkTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrChunkTranscriptionFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrPreprocessingTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
