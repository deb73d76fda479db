package transcription

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)

	svc, err := NewService(Options{APIKey: "k", BaseURL: "http://engine.local/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "http://engine.local/v1", svc.baseURL)
	assert.Equal(t, DefaultModel, svc.model)
	assert.Equal(t, DefaultTimeout, svc.client.Timeout)
}

func TestTranscribe_SendsVerboseRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "0", r.FormValue("temperature"))
		assert.Equal(t, "This is the start of a recording.", r.FormValue("prompt"))
		assert.Equal(t, []string{"segment", "word"}, r.MultipartForm.Value["timestamp_granularities[]"])
		assert.Empty(t, r.FormValue("language"))

		files := r.MultipartForm.File["file"]
		require.Len(t, files, 1)
		assert.Equal(t, "chunk-0.mp3", files[0].Filename)
		assert.Equal(t, "audio/mpeg", files[0].Header.Get("Content-Type"))
		f, err := files[0].Open()
		require.NoError(t, err)
		defer f.Close()
		payload, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "ID3fake", string(payload))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"task": "transcribe",
			"language": "english",
			"duration": 30.0,
			"text": " Hello there. General Kenobi.",
			"segments": [
				{"id": 0, "start": 0.0, "end": 1.5, "text": " Hello there."},
				{"id": 1, "start": 1.5, "end": 3.0, "text": " General Kenobi."}
			],
			"words": [
				{"word": "Hello", "start": 0.0, "end": 0.5},
				{"word": "there", "start": 0.5, "end": 1.0}
			]
		}`))
	}))
	defer server.Close()

	svc, err := NewService(Options{APIKey: "secret", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	resp, err := svc.Transcribe(context.Background(), Request{
		Audio:       strings.NewReader("ID3fake"),
		Filename:    "chunk-0.mp3",
		ContentType: "audio/mpeg",
		Prompt:      "This is the start of a recording.",
	})
	require.NoError(t, err)
	assert.Equal(t, "english", resp.Language)
	assert.InDelta(t, 30.0, resp.Duration, 1e-9)
	require.Len(t, resp.Segments, 2)
	assert.Equal(t, " General Kenobi.", resp.Segments[1].Text)
	assert.InDelta(t, 1.5, resp.Segments[1].Start, 1e-9)
	require.Len(t, resp.Words, 2)
	assert.Equal(t, "there", resp.Words[1].Word)
}

func TestTranscribe_LanguageHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "es", r.FormValue("language"))
		assert.Equal(t, "custom-model", r.FormValue("model"))
		assert.Equal(t, "application/octet-stream", r.MultipartForm.File["file"][0].Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"text":"hola","segments":[]}`))
	}))
	defer server.Close()

	svc, err := NewService(Options{APIKey: "k", BaseURL: server.URL, Model: "custom-model"})
	require.NoError(t, err)

	resp, err := svc.Transcribe(context.Background(), Request{Audio: strings.NewReader("x"), Language: "es"})
	require.NoError(t, err)
	assert.Equal(t, "hola", resp.Text)
}

func TestTranscribe_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "json error envelope",
			status:      http.StatusBadRequest,
			body:        `{"error":{"message":"Invalid file format.","type":"invalid_request_error","code":"bad_file"}}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid file format.",
		},
		{
			name:        "plain text body",
			status:      http.StatusBadGateway,
			body:        "upstream unavailable\n",
			wantStatus:  http.StatusBadGateway,
			wantMessage: "upstream unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc, err := NewService(Options{APIKey: "k", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = svc.Transcribe(context.Background(), Request{Audio: strings.NewReader("x")})
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Contains(t, err.Error(), tt.wantMessage)
		})
	}
}

func TestTranscribe_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	svc, err := NewService(Options{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = svc.Transcribe(context.Background(), Request{Audio: strings.NewReader("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}

func TestTranscribe_MissingAudio(t *testing.T) {
	svc, err := NewService(Options{APIKey: "k"})
	require.NoError(t, err)

	_, err = svc.Transcribe(context.Background(), Request{})
	assert.Error(t, err)
}

func TestTranscribe_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	svc, err := NewService(Options{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Transcribe(ctx, Request{Audio: strings.NewReader("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
