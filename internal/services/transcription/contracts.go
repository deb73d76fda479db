package transcription

import (
	"context"
	"io"
)

// Transcriber defines the interface for speech-to-text engine operations
type Transcriber interface {
	// Transcribe sends one audio payload to the engine and returns its verbose result
	Transcribe(ctx context.Context, req Request) (*Response, error)
}

// Ensure Service implements Transcriber
var _ Transcriber = (*Service)(nil)

// Request is one engine call
type Request struct {
	Audio       io.Reader
	Filename    string
	ContentType string
	Prompt      string
	Temperature float64
	Language    string // optional ISO-639-1 hint
}

// Response mirrors the engine's verbose_json response
type Response struct {
	Task     string            `json:"task"`
	Language string            `json:"language"`
	Duration float64           `json:"duration"`
	Text     string            `json:"text"`
	Segments []ResponseSegment `json:"segments"`
	// Words is filled when word granularity is requested and the engine reports
	// words at the top level rather than per segment
	Words []ResponseWord `json:"words"`
}

// ResponseSegment is one segment as the engine reports it
type ResponseSegment struct {
	ID    int            `json:"id"`
	Start float64        `json:"start"`
	End   float64        `json:"end"`
	Text  string         `json:"text"`
	Words []ResponseWord `json:"words,omitempty"`
}

// ResponseWord is one word as the engine reports it
type ResponseWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
