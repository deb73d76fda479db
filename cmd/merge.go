package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gnzdotmx/meetscribe/internal/modules/merge"
	"github.com/gnzdotmx/meetscribe/internal/output"
	"github.com/gnzdotmx/meetscribe/internal/transcript"
	"github.com/gnzdotmx/meetscribe/internal/utils"

	"github.com/spf13/cobra"
)

var (
	mergeInputPath  string
	mergeOutputPath string
	mergeFormat     string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge saved chunk results into one transcript",
	Long: `Merge chunk transcription results saved as JSON, either a merge request object
{sessionId, originalFilename, chunks} or a bare array of chunk results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(mergeFormat)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(mergeInputPath)
		if err != nil {
			return fmt.Errorf("failed to read chunk results: %w", err)
		}
		req, err := decodeMergeRequest(data)
		if err != nil {
			return err
		}

		merged, err := merge.Merge(req)
		if err != nil {
			return fmt.Errorf("merge failed: %w", err)
		}
		utils.LogVerbose("Merged %d chunks: %.1fs, %d words", merged.ChunkCount, merged.TotalDurationSeconds, merged.WordCount)

		var w io.Writer = cmd.OutOrStdout()
		if mergeOutputPath != "" {
			f, err := os.Create(mergeOutputPath)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() {
				if err := f.Close(); err != nil {
					utils.LogWarning("Failed to close output file: %v", err)
				}
			}()
			w = f
		}
		if err := output.Render(w, merged, format); err != nil {
			return fmt.Errorf("failed to write transcript: %w", err)
		}
		if mergeOutputPath != "" {
			utils.LogSuccess("Wrote %s", mergeOutputPath)
		}
		return nil
	},
}

// decodeMergeRequest accepts a merge request object or a bare array of chunk results
func decodeMergeRequest(data []byte) (merge.Request, error) {
	var req merge.Request
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &req.Chunks); err != nil {
			return req, fmt.Errorf("failed to parse chunk results: %w", err)
		}
	} else if err := json.Unmarshal(trimmed, &req); err != nil {
		return req, fmt.Errorf("failed to parse merge request: %w", err)
	}

	if req.SessionID == "" && len(req.Chunks) > 0 {
		req.SessionID = sessionOf(req.Chunks)
	}
	return req, nil
}

func sessionOf(chunks []transcript.ChunkResult) string {
	for _, c := range chunks {
		if c.SessionID != "" {
			return c.SessionID
		}
	}
	return ""
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeInputPath, "input", "i", "", "JSON file with chunk results (required)")
	mergeCmd.Flags().StringVarP(&mergeOutputPath, "output", "o", "", "Output file (defaults to stdout)")
	mergeCmd.Flags().StringVarP(&mergeFormat, "format", "f", "json", "Output format: json, srt, vtt, txt, md")
	_ = mergeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(mergeCmd)
}
