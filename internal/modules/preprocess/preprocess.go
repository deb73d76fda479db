// Package preprocess shrinks an audio asset before transcription. It re-encodes
// to mono low-bitrate mp3 at a reduced sample rate, optionally sped up, using ffmpeg
// under a hard wall-clock budget.
package preprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/gnzdotmx/meetscribe/internal/media"
	"github.com/gnzdotmx/meetscribe/internal/pipelineerr"
	"github.com/gnzdotmx/meetscribe/internal/services/storage"
	"github.com/gnzdotmx/meetscribe/internal/tempfs"
	"github.com/gnzdotmx/meetscribe/internal/utils"
)

// execCommand allows us to mock exec.CommandContext in tests
var execCommand = exec.CommandContext

// Defaults for the transcoder invocation
const (
	DefaultTimeout     = 55 * time.Second
	DefaultInlineLimit = 4 * 1024 * 1024
	// waitDelay bounds how long Wait blocks on output pipes after the process is killed
	waitDelay = 2 * time.Second
)

// Profile is the target encoding
type Profile struct {
	SpeedFactor float64 `yaml:"speedFactor" json:"speedFactor"`
	Bitrate     string  `yaml:"bitrate" json:"bitrate"`
	SampleRate  int     `yaml:"sampleRate" json:"sampleRate"`
	Channels    int     `yaml:"channels" json:"channels"`
	Format      string  `yaml:"format" json:"format"`
}

// DefaultProfile returns the speech-optimized profile: 1.5x, 64 kbps, 16 kHz mono mp3
func DefaultProfile() Profile {
	return Profile{
		SpeedFactor: 1.5,
		Bitrate:     "64k",
		SampleRate:  16000,
		Channels:    1,
		Format:      "mp3",
	}
}

// Validate checks the profile values ffmpeg will be given
func (p Profile) Validate() error {
	if p.SpeedFactor < 1 || p.SpeedFactor > 2 {
		return &utils.ValidationError{Field: "speedFactor", Message: fmt.Sprintf("must be between 1 and 2, got %g", p.SpeedFactor)}
	}
	if _, err := p.BitsPerSecond(); err != nil {
		return &utils.ValidationError{Field: "bitrate", Message: "must look like 64k or 64000", Err: err}
	}
	if p.SampleRate < 8000 || p.SampleRate > 48000 {
		return &utils.ValidationError{Field: "sampleRate", Message: fmt.Sprintf("must be between 8000 and 48000, got %d", p.SampleRate)}
	}
	if p.Channels < 1 || p.Channels > 2 {
		return &utils.ValidationError{Field: "channels", Message: fmt.Sprintf("must be 1 or 2, got %d", p.Channels)}
	}
	if p.Format != "mp3" {
		return &utils.ValidationError{Field: "format", Message: fmt.Sprintf("unsupported output format %q", p.Format)}
	}
	return nil
}

// BitsPerSecond parses Bitrate ("64k", "128K" or "64000")
func (p Profile) BitsPerSecond() (int, error) {
	s := strings.TrimSpace(strings.ToLower(p.Bitrate))
	mult := 1
	if strings.HasSuffix(s, "k") {
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("bitrate must be positive")
	}
	return n * mult, nil
}

// Args builds the ffmpeg argument list. The atempo filter is only added when speeding up.
func (p Profile) Args(in, out string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", in,
		"-vn",
		"-ac", strconv.Itoa(p.Channels),
		"-ar", strconv.Itoa(p.SampleRate),
		"-b:a", p.Bitrate,
	}
	if p.SpeedFactor > 1 {
		args = append(args, "-filter:a", "atempo="+strconv.FormatFloat(p.SpeedFactor, 'f', -1, 64))
	}
	return append(args, "-f", p.Format, out)
}

// Options configures a Preprocessor
type Options struct {
	Profile Profile
	Timeout time.Duration
	// TempDir is the parent of per-call workspaces; the system temp dir when empty
	TempDir string
	// InlineLimit is the largest processed size Process returns as bytes only. Anything
	// larger is handed to Store and returned as a URL too.
	InlineLimit int64
	Store       storage.ObjectStore
	FFmpegPath  string
}

// Result describes one processed asset
type Result struct {
	// Data is the processed audio. It is kept even when the artifact was uploaded.
	Data             []byte  `json:"-"`
	URL              string  `json:"url,omitempty"`
	ObjectKey        string  `json:"objectKey,omitempty"`
	Filename         string  `json:"filename"`
	ContentType      string  `json:"contentType"`
	OriginalSize     int64   `json:"originalSize"`
	ProcessedSize    int64   `json:"processedSize"`
	CompressionRatio float64 `json:"compressionRatio"`
	DurationSeconds  float64 `json:"durationSeconds"`
	SpeedFactor      float64 `json:"speedFactor"`
}

// Uploaded reports whether the artifact was handed off to object storage
func (r *Result) Uploaded() bool {
	return r.URL != ""
}

// Asset returns the processed audio as a pipeline asset
func (r *Result) Asset() media.Asset {
	return media.Asset{
		Filename:    r.Filename,
		ContentType: r.ContentType,
		Data:        r.Data,
		Processed:   true,
	}
}

// Preprocessor runs the transcoder
type Preprocessor struct {
	opts Options
}

// New creates a Preprocessor, filling in defaults for zero options
func New(opts Options) *Preprocessor {
	if opts.Profile == (Profile{}) {
		opts.Profile = DefaultProfile()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.InlineLimit <= 0 {
		opts.InlineLimit = DefaultInlineLimit
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	return &Preprocessor{opts: opts}
}

// Profile returns the encoding profile in use
func (p *Preprocessor) Profile() Profile {
	return p.opts.Profile
}

// Process transcodes asset with the configured profile. Temporary files are removed
// before it returns, whatever the outcome.
func (p *Preprocessor) Process(ctx context.Context, asset media.Asset) (*Result, error) {
	return p.process(ctx, asset, p.opts.Profile, true)
}

// ProcessWithSpeed is Process with the speed factor overridden. A zero speed keeps
// the configured one.
func (p *Preprocessor) ProcessWithSpeed(ctx context.Context, asset media.Asset, speed float64) (*Result, error) {
	profile := p.opts.Profile
	if speed != 0 {
		profile.SpeedFactor = speed
	}
	return p.process(ctx, asset, profile, true)
}

// ProcessInline is Process for in-process callers. The artifact is never handed to
// the object store, whatever its size.
func (p *Preprocessor) ProcessInline(ctx context.Context, asset media.Asset) (*Result, error) {
	return p.process(ctx, asset, p.opts.Profile, false)
}

func (p *Preprocessor) process(ctx context.Context, asset media.Asset, profile Profile, handOff bool) (*Result, error) {
	if len(asset.Data) == 0 {
		return nil, pipelineerr.New(pipelineerr.ErrPreprocessingFailed, "preprocess", errors.New("asset is empty"))
	}
	if err := profile.Validate(); err != nil {
		return nil, pipelineerr.New(pipelineerr.ErrPreprocessingFailed, "preprocess", err)
	}

	guard, err := tempfs.New(p.opts.TempDir, "preprocess")
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.ErrPreprocessingFailed, "preprocess", err)
	}
	defer func() {
		if rerr := guard.Release(); rerr != nil {
			utils.LogWarning("Failed to remove temporary files: %v", rerr)
		}
	}()

	inName := "input" + inputExtension(asset)
	inPath, err := guard.WriteFile(inName, asset.Data)
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.ErrPreprocessingFailed, "preprocess", err)
	}
	outPath := guard.Path("output." + profile.Format)

	utils.LogVerbose("Preprocessing %s (%d bytes) at %gx", asset.Filename, len(asset.Data), profile.SpeedFactor)
	start := time.Now()
	if err := p.transcode(ctx, profile.Args(inPath, outPath)); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.ErrPreprocessingFailed, "preprocess", fmt.Errorf("failed to read transcoder output: %w", err))
	}
	if len(data) == 0 {
		return nil, pipelineerr.New(pipelineerr.ErrPreprocessingFailed, "preprocess", errors.New("transcoder produced no output"))
	}

	result := &Result{
		Data:             data,
		Filename:         processedFilename(asset.Filename, profile.Format),
		ContentType:      media.DefaultProcessedType,
		OriginalSize:     asset.Size(),
		ProcessedSize:    int64(len(data)),
		CompressionRatio: float64(asset.Size()) / float64(len(data)),
		DurationSeconds:  p.duration(data),
		SpeedFactor:      profile.SpeedFactor,
	}

	utils.LogInfo("Preprocessed %s: %d -> %d bytes (ratio %.2f) in %s",
		asset.Filename, result.OriginalSize, result.ProcessedSize, result.CompressionRatio, time.Since(start).Round(time.Millisecond))

	if handOff && result.ProcessedSize > p.opts.InlineLimit && p.opts.Store != nil {
		key := storage.NewObjectKey(profile.Format)
		url, err := p.opts.Store.Put(ctx, key, result.ContentType, data)
		if err != nil {
			return nil, pipelineerr.New(pipelineerr.ErrPreprocessingFailed, "upload_processed", err)
		}
		result.URL = url
		result.ObjectKey = key
		utils.LogVerbose("Processed artifact exceeds %d bytes, handed off to %s", p.opts.InlineLimit, url)
	}

	return result, nil
}

// transcode runs ffmpeg under the configured timeout. On timeout the process is killed.
func (p *Preprocessor) transcode(ctx context.Context, args []string) error {
	tctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	cmd := execCommand(tctx, p.opts.FFmpegPath, args...)
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return pipelineerr.New(pipelineerr.ErrPreprocessingTimeout, "preprocess", tctx.Err()).
			WithDetails("transcoder did not finish within %s", p.opts.Timeout)
	}
	if ctx.Err() != nil {
		return pipelineerr.New(pipelineerr.ErrPreprocessingFailed, "preprocess", ctx.Err())
	}

	msg := strings.TrimSpace(stderr.String())
	if msg != "" {
		return pipelineerr.New(pipelineerr.ErrPreprocessingFailed, "preprocess", fmt.Errorf("ffmpeg command failed: %w", err)).
			WithDetails("%s", lastLine(msg))
	}
	return pipelineerr.New(pipelineerr.ErrPreprocessingFailed, "preprocess", fmt.Errorf("ffmpeg command failed: %w", err))
}

// duration measures the decoded length of an mp3, falling back to a bitrate estimate
func (p *Preprocessor) duration(data []byte) float64 {
	if seconds, err := MP3Duration(data); err == nil && seconds > 0 {
		return seconds
	} else if err != nil {
		utils.LogDebug("Could not decode processed mp3 for duration: %v", err)
	}
	bps, err := p.opts.Profile.BitsPerSecond()
	if err != nil || bps == 0 {
		return 0
	}
	return float64(len(data)*8) / float64(bps)
}

// MP3Duration returns the decoded duration of an mp3 stream in seconds
func MP3Duration(data []byte) (float64, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	if dec.SampleRate() <= 0 {
		return 0, errors.New("unknown sample rate")
	}
	length := dec.Length()
	if length < 0 {
		return 0, errors.New("unknown stream length")
	}
	// go-mp3 always decodes to 16-bit stereo, 4 bytes per sample frame
	return float64(length) / 4 / float64(dec.SampleRate()), nil
}

func inputExtension(asset media.Asset) string {
	if ext := filepath.Ext(asset.Filename); ext != "" && len(ext) <= 6 {
		return strings.ToLower(ext)
	}
	return media.ExtensionFor(asset.ContentType)
}

func processedFilename(original, format string) string {
	base := filepath.Base(original)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "audio"
	}
	return base + "-processed." + format
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
