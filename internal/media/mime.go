// Package media holds the audio asset type and content type resolution
package media

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/gnzdotmx/meetscribe/internal/pipelineerr"
)

// DefaultProcessedType is assumed for chunks cut from a preprocessed artifact
const DefaultProcessedType = "audio/mpeg"

// Asset is one audio file as it moves through the pipeline
type Asset struct {
	Filename    string
	ContentType string
	Data        []byte
	// Processed is set once the asset has been through the preprocessor
	Processed bool
}

// Size returns the asset size in bytes
func (a Asset) Size() int64 {
	return int64(len(a.Data))
}

// supportedTypes lists the content types the transcription engine accepts
var supportedTypes = map[string]bool{
	"audio/mpeg": true,
	"audio/mp4":  true,
	"audio/wav":  true,
	"audio/webm": true,
	"audio/ogg":  true,
	"audio/flac": true,
	"video/mp4":  true,
	"video/webm": true,
}

// aliases maps common non-canonical names onto supportedTypes keys
var aliases = map[string]string{
	"audio/mp3":      "audio/mpeg",
	"audio/mpeg3":    "audio/mpeg",
	"audio/x-mpeg":   "audio/mpeg",
	"audio/mpga":     "audio/mpeg",
	"audio/x-wav":    "audio/wav",
	"audio/wave":     "audio/wav",
	"audio/vnd.wave": "audio/wav",
	"audio/x-m4a":    "audio/mp4",
	"audio/m4a":      "audio/mp4",
	"audio/x-flac":   "audio/flac",
}

// extensionTypes maps file extensions onto supportedTypes keys
var extensionTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".mpga": "audio/mpeg",
	".mpeg": "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
}

// typeExtensions is the reverse of extensionTypes for naming files
var typeExtensions = map[string]string{
	"audio/mpeg": ".mp3",
	"audio/mp4":  ".m4a",
	"audio/wav":  ".wav",
	"audio/webm": ".webm",
	"audio/ogg":  ".ogg",
	"audio/flac": ".flac",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// Normalize lowercases a content type, drops its parameters and resolves aliases
func Normalize(contentType string) string {
	ct := strings.TrimSpace(strings.ToLower(contentType))
	if ct == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		ct = parsed
	}
	if canonical, ok := aliases[ct]; ok {
		return canonical
	}
	return ct
}

// IsSupported reports whether the engine accepts contentType
func IsSupported(contentType string) bool {
	return supportedTypes[Normalize(contentType)]
}

// TypeFromFilename infers a content type from the file extension
func TypeFromFilename(filename string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(filename))]
}

// ExtensionFor returns the file extension used for contentType, ".bin" when unknown
func ExtensionFor(contentType string) string {
	if ext, ok := typeExtensions[Normalize(contentType)]; ok {
		return ext
	}
	return ".bin"
}

// ResolveContentType picks the content type sent to the engine. The declared type
// wins, then the filename extension, then the payload signature. A processed chunk
// with none of those falls back to DefaultProcessedType.
func ResolveContentType(declared, filename string, data []byte, processed bool) (string, error) {
	if ct := Normalize(declared); supportedTypes[ct] {
		return ct, nil
	}
	if ct := TypeFromFilename(filename); ct != "" {
		return ct, nil
	}
	if len(data) > 0 {
		if ct := Normalize(mimetype.Detect(data).String()); supportedTypes[ct] {
			return ct, nil
		}
	}
	if processed {
		return DefaultProcessedType, nil
	}
	return "", pipelineerr.New(pipelineerr.ErrUnsupportedMediaType, "resolve_content_type", nil).
		WithDetails("declared %q, filename %q", declared, filename)
}
