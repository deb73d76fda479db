// Package output renders a merged transcript as JSON, subtitles or notes.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gnzdotmx/meetscribe/internal/transcript"
	"github.com/gnzdotmx/meetscribe/internal/utils"
)

// Format is an output format name
type Format string

const (
	FormatJSON     Format = "json"
	FormatSRT      Format = "srt"
	FormatVTT      Format = "vtt"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
)

// Formats lists every supported format
var Formats = []Format{FormatJSON, FormatSRT, FormatVTT, FormatText, FormatMarkdown}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	switch f {
	case FormatJSON, FormatSRT, FormatVTT, FormatText, FormatMarkdown:
		return f, nil
	case "text":
		return FormatText, nil
	case "markdown":
		return FormatMarkdown, nil
	case "webvtt":
		return FormatVTT, nil
	}
	return "", &utils.ValidationError{
		Field:   "format",
		Message: fmt.Sprintf("unsupported output format %q (use json, srt, vtt, txt or md)", s),
	}
}

// Extension returns the file extension for the format
func (f Format) Extension() string {
	return "." + string(f)
}

// Render writes m to w in format f
func Render(w io.Writer, m *transcript.Merged, f Format) error {
	bw := bufio.NewWriter(w)
	var err error
	switch f {
	case FormatJSON:
		err = renderJSON(bw, m)
	case FormatSRT:
		err = renderSRT(bw, m)
	case FormatVTT:
		err = renderVTT(bw, m)
	case FormatText:
		err = renderText(bw, m)
	case FormatMarkdown:
		err = renderMarkdown(bw, m)
	default:
		return fmt.Errorf("unsupported output format %q", f)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile renders m into dir/<base><ext> and returns the written path
func WriteFile(dir, base string, m *transcript.Merged, f Format) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, base+f.Extension())

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			utils.LogWarning("Failed to close output file: %v", err)
		}
	}()

	if err := Render(file, m, f); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", f, err)
	}
	return path, nil
}

func renderJSON(w io.Writer, m *transcript.Merged) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

func renderSRT(w io.Writer, m *transcript.Merged) error {
	for i, seg := range m.Segments {
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(seg.Start), srtTimestamp(seg.End), seg.Text); err != nil {
			return err
		}
	}
	return nil
}

func renderVTT(w io.Writer, m *transcript.Merged) error {
	if _, err := io.WriteString(w, "WEBVTT\n\n"); err != nil {
		return err
	}
	for _, seg := range m.Segments {
		if _, err := fmt.Fprintf(w, "%s --> %s\n%s\n\n",
			vttTimestamp(seg.Start), vttTimestamp(seg.End), seg.Text); err != nil {
			return err
		}
	}
	return nil
}

func renderText(w io.Writer, m *transcript.Merged) error {
	_, err := fmt.Fprintln(w, m.Text)
	return err
}

func renderMarkdown(w io.Writer, m *transcript.Merged) error {
	title := m.OriginalFilename
	if title == "" {
		title = m.SessionID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Transcript: %s\n\n", title)
	fmt.Fprintf(&b, "- **Duration:** %s\n", clockTimestamp(transcript.GlobalTime(m.TotalDurationSeconds)))
	if m.Language != "" {
		fmt.Fprintf(&b, "- **Language:** %s\n", m.Language)
	}
	fmt.Fprintf(&b, "- **Words:** %d (%.2f per second)\n", m.WordCount, m.AvgWordsPerSecond)
	fmt.Fprintf(&b, "- **Segments:** %d from %d chunk(s)\n", m.SegmentCount, m.ChunkCount)
	if m.SessionID != "" {
		fmt.Fprintf(&b, "- **Session:** `%s`\n", m.SessionID)
	}
	b.WriteString("\n## Transcript\n\n")
	if len(m.Segments) == 0 {
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	for _, seg := range m.Segments {
		fmt.Fprintf(&b, "**[%s]** %s\n\n", clockTimestamp(seg.Start), seg.Text)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// splitTimestamp breaks seconds into hours, minutes, seconds and milliseconds
func splitTimestamp(t transcript.GlobalTime) (int, int, int, int) {
	totalMs := int(math.Round(math.Max(float64(t), 0) * 1000))
	hours := totalMs / (3600 * 1000)
	totalMs %= 3600 * 1000
	minutes := totalMs / (60 * 1000)
	totalMs %= 60 * 1000
	return hours, minutes, totalMs / 1000, totalMs % 1000
}

// formatTimestamp formats hours, minutes, seconds, and milliseconds with the given
// millisecond separator
func formatTimestamp(hours, minutes, seconds, milliseconds int, sep string) string {
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, seconds, sep, milliseconds)
}

func srtTimestamp(t transcript.GlobalTime) string {
	h, m, s, ms := splitTimestamp(t)
	return formatTimestamp(h, m, s, ms, ",")
}

func vttTimestamp(t transcript.GlobalTime) string {
	h, m, s, ms := splitTimestamp(t)
	return formatTimestamp(h, m, s, ms, ".")
}

func clockTimestamp(t transcript.GlobalTime) string {
	h, m, s, _ := splitTimestamp(t)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
