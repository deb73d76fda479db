package server

import (
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gnzdotmx/meetscribe/internal/media"
	"github.com/gnzdotmx/meetscribe/internal/modules/merge"
	"github.com/gnzdotmx/meetscribe/internal/modules/preprocess"
	"github.com/gnzdotmx/meetscribe/internal/modules/transcribechunk"
	"github.com/gnzdotmx/meetscribe/internal/pipelineerr"
	"github.com/gnzdotmx/meetscribe/internal/transcript"
)

// PreprocessResponse is the body returned by POST /api/preprocess. Exactly one of
// URL and AudioBase64 is set.
type PreprocessResponse struct {
	Processed bool `json:"processed"`
	*preprocess.Result
	AudioBase64 string `json:"audioBase64,omitempty"`
}

// health handles GET /healthz
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// transcribeChunk handles POST /api/transcribe-chunk
func (s *Server) transcribeChunk(c *gin.Context) {
	if s.opts.Worker == nil {
		respondError(c, &requestError{status: http.StatusServiceUnavailable, message: "chunk transcription is not configured"})
		return
	}

	data, header, err := readUpload(c, "file")
	if err != nil {
		respondError(c, err)
		return
	}

	chunkIndex, err := formInt(c, "chunkIndex")
	if err != nil {
		respondError(c, err)
		return
	}
	totalChunks, err := formInt(c, "totalChunks")
	if err != nil {
		respondError(c, err)
		return
	}
	sessionID := strings.TrimSpace(c.PostForm("sessionId"))
	if sessionID == "" {
		respondError(c, pipelineerr.InvalidChunkMetadata(chunkIndex, totalChunks, "sessionId is required"))
		return
	}

	req := transcribechunk.Request{
		Chunk: transcript.ChunkDescriptor{
			SessionID:   sessionID,
			ChunkIndex:  chunkIndex,
			TotalChunks: totalChunks,
			ByteRange:   transcript.ByteRange{Start: 0, End: int64(len(data))},
			Payload:     data,
		},
		OriginalFilename: c.DefaultPostForm("originalFilename", header.Filename),
		ContentType:      c.DefaultPostForm("contentType", header.Header.Get("Content-Type")),
		Processed:        formBool(c, "processed"),
	}

	result, err := s.opts.Worker.Transcribe(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// mergeTranscripts handles POST /api/merge-transcripts
func (s *Server) mergeTranscripts(c *gin.Context) {
	var request merge.Request
	if err := c.ShouldBindJSON(&request); err != nil {
		if isBodyTooLarge(err) {
			respondError(c, errBodyTooLarge(s.opts.MaxAssetBytes))
			return
		}
		respondError(c, errBadRequest("Invalid request format", err))
		return
	}

	merged, err := merge.Merge(request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, merged)
}

// preprocess handles POST /api/preprocess
func (s *Server) preprocess(c *gin.Context) {
	if s.opts.Preprocessor == nil {
		respondError(c, &requestError{status: http.StatusServiceUnavailable, message: "preprocessing is not configured"})
		return
	}

	data, header, err := readUpload(c, "file")
	if err != nil {
		respondError(c, err)
		return
	}

	var speed float64
	if raw := strings.TrimSpace(c.PostForm("speedFactor")); raw != "" {
		speed, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(c, errBadRequest("speedFactor must be a number", err))
			return
		}
	}

	asset := media.Asset{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	result, err := s.opts.Preprocessor.ProcessWithSpeed(c.Request.Context(), asset, speed)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := PreprocessResponse{Processed: true, Result: result}
	if !result.Uploaded() {
		resp.AudioBase64 = base64.StdEncoding.EncodeToString(result.Data)
	}
	c.JSON(http.StatusOK, resp)
}

// transcribe handles POST /api/transcribe
func (s *Server) transcribe(c *gin.Context) {
	if s.opts.Pipeline == nil {
		respondError(c, &requestError{status: http.StatusServiceUnavailable, message: "pipeline is not configured"})
		return
	}

	data, header, err := readUpload(c, "file")
	if err != nil {
		respondError(c, err)
		return
	}

	asset := media.Asset{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	state, err := s.opts.Pipeline.Run(c.Request.Context(), asset)
	if state != nil {
		c.Header("X-Session-Id", state.SessionID)
		c.Header("X-Run-Status", string(state.GetStatus()))
	}
	if err != nil {
		respondError(c, err)
		return
	}

	state.RLock()
	merged := state.Transcript
	state.RUnlock()
	c.JSON(http.StatusOK, merged)
}

// readUpload reads a whole multipart file field into memory
func readUpload(c *gin.Context, field string) ([]byte, *multipart.FileHeader, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if isBodyTooLarge(err) {
			return nil, nil, &requestError{status: http.StatusRequestEntityTooLarge, message: "request body too large", err: err}
		}
		return nil, nil, errBadRequest("multipart field \""+field+"\" is required", err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, nil, errBadRequest("failed to open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, errBadRequest("failed to read upload", err)
	}
	return data, fh, nil
}

// formInt parses a required integer form field
func formInt(c *gin.Context, field string) (int, error) {
	raw, ok := c.GetPostForm(field)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, pipelineerr.New(pipelineerr.ErrInvalidChunkMetadata, "parse_request", nil).
			WithDetails("%s is required", field)
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, pipelineerr.New(pipelineerr.ErrInvalidChunkMetadata, "parse_request", errors.Unwrap(err)).
			WithDetails("%s must be an integer, got %q", field, raw)
	}
	return n, nil
}

// formBool parses an optional boolean form field, false when absent or malformed
func formBool(c *gin.Context, field string) bool {
	v, err := strconv.ParseBool(c.PostForm(field))
	return err == nil && v
}
