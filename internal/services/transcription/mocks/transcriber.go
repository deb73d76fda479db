package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gnzdotmx/meetscribe/internal/services/transcription"
)

// MockTranscriber is a mock implementation of transcription.Transcriber
type MockTranscriber struct {
	mock.Mock
}

// Transcribe records the call and returns the configured response
func (m *MockTranscriber) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transcription.Response), args.Error(1)
}
