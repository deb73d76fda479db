// Package server exposes the pipeline stages over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gnzdotmx/meetscribe/internal/chunker"
	"github.com/gnzdotmx/meetscribe/internal/media"
	"github.com/gnzdotmx/meetscribe/internal/modules/preprocess"
	"github.com/gnzdotmx/meetscribe/internal/pipeline"
	"github.com/gnzdotmx/meetscribe/internal/utils"
)

// DefaultMaxAssetBytes caps whole-asset uploads to /api/transcribe
const DefaultMaxAssetBytes int64 = 512 * 1024 * 1024

const shutdownTimeout = 30 * time.Second

// Preprocessor transcodes an uploaded asset at a caller-chosen speed
type Preprocessor interface {
	ProcessWithSpeed(ctx context.Context, asset media.Asset, speed float64) (*preprocess.Result, error)
}

// Runner runs the whole pipeline on one asset
type Runner interface {
	Run(ctx context.Context, asset media.Asset) (*pipeline.RunState, error)
}

// Ensure the concrete stages satisfy the interfaces
var (
	_ Preprocessor = (*preprocess.Preprocessor)(nil)
	_ Runner       = (*pipeline.Orchestrator)(nil)
)

// Options configures the HTTP API
type Options struct {
	Worker       pipeline.ChunkTranscriber
	Preprocessor Preprocessor
	Pipeline     Runner
	// MaxBodyBytes caps chunk and preprocess uploads
	MaxBodyBytes int64
	// MaxAssetBytes caps whole-asset uploads
	MaxAssetBytes int64
	// FilesDir is served under FilesPrefix when set, so local artifact URLs resolve
	FilesDir    string
	FilesPrefix string
}

// Server is the HTTP front of the pipeline
type Server struct {
	opts   Options
	router *gin.Engine
	server *http.Server
	wg     sync.WaitGroup
}

// New creates a Server and registers its routes
func New(opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = chunker.DefaultTransportCeiling
	}
	if opts.MaxAssetBytes <= 0 {
		opts.MaxAssetBytes = DefaultMaxAssetBytes
	}
	if opts.FilesPrefix == "" {
		opts.FilesPrefix = "/files"
	}

	s := &Server{opts: opts}
	s.router = s.setupRouter()
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", s.health)

	api := r.Group("/api")
	{
		api.POST("/transcribe-chunk", limitBody(s.opts.MaxBodyBytes), s.transcribeChunk)
		api.POST("/preprocess", limitBody(s.opts.MaxBodyBytes), s.preprocess)
		api.POST("/merge-transcripts", limitBody(s.opts.MaxAssetBytes), s.mergeTranscripts)
		api.POST("/transcribe", limitBody(s.opts.MaxAssetBytes), s.transcribe)
	}

	if s.opts.FilesDir != "" {
		r.Static(s.opts.FilesPrefix, s.opts.FilesDir)
	}
	return r
}

// Start listens on addr in the background. The bound address is returned so ":0" can be used.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.LogError("HTTP server error: %v", err)
		}
	}()

	utils.LogSuccess("Listening on %s", ln.Addr())
	return ln.Addr().String(), nil
}

// Stop drains in-flight requests and stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	s.wg.Wait()
	return nil
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	if _, err := s.Start(addr); err != nil {
		return err
	}
	<-ctx.Done()
	utils.LogInfo("Shutting down HTTP server...")
	return s.Stop(context.WithoutCancel(ctx))
}

// requestLogger logs each request at verbose level
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		utils.LogVerbose("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Millisecond))
	}
}

// limitBody rejects bodies above max with 413
func limitBody(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > max {
			respondError(c, errBodyTooLarge(max))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		c.Next()
	}
}
