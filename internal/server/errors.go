package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gnzdotmx/meetscribe/internal/chunker"
	"github.com/gnzdotmx/meetscribe/internal/pipelineerr"
	"github.com/gnzdotmx/meetscribe/internal/utils"
)

// requestError is a client error that is not a pipeline failure
type requestError struct {
	status  int
	message string
	err     error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *requestError) Unwrap() error {
	return e.err
}

func errBadRequest(message string, err error) error {
	return &requestError{status: http.StatusBadRequest, message: message, err: err}
}

func errBodyTooLarge(max int64) error {
	return &requestError{
		status:  http.StatusRequestEntityTooLarge,
		message: fmt.Sprintf("request body exceeds %d bytes", max),
	}
}

// isBodyTooLarge reports whether err came from an http.MaxBytesReader
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

// statusFor maps any handler error onto a status code
func statusFor(err error) int {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.status
	}
	var vErr *utils.ValidationError
	if errors.As(err, &vErr) || errors.Is(err, chunker.ErrEmptyAsset) {
		return http.StatusBadRequest
	}
	return pipelineerr.HTTPStatus(err)
}

// respondError writes {error, details, chunkIndex, totalChunks, expected, found}
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": http.StatusText(status)}

	var reqErr *requestError
	if pErr, ok := pipelineerr.As(err); ok {
		body["error"] = pErr.Kind.Error()
		body["details"] = pErr.Error()
		if pErr.SessionID != "" {
			body["sessionId"] = pErr.SessionID
		}
		if pErr.ChunkIndex != pipelineerr.NoChunk {
			body["chunkIndex"] = pErr.ChunkIndex
		}
		if pErr.TotalChunks > 0 {
			body["totalChunks"] = pErr.TotalChunks
		}
		if pErr.Expected != pipelineerr.NoChunk || pErr.Found != pipelineerr.NoChunk {
			body["expected"] = pErr.Expected
			body["found"] = pErr.Found
		}
		body["retryable"] = pErr.Retryable()
	} else if errors.As(err, &reqErr) {
		body["error"] = reqErr.message
		if reqErr.err != nil {
			body["details"] = reqErr.err.Error()
		}
	} else {
		body["details"] = err.Error()
	}

	if status >= http.StatusInternalServerError {
		utils.LogError("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		utils.LogVerbose("%s %s rejected: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, body)
}
