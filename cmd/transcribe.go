package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gnzdotmx/meetscribe/internal/app"
	"github.com/gnzdotmx/meetscribe/internal/config"
	"github.com/gnzdotmx/meetscribe/internal/media"
	"github.com/gnzdotmx/meetscribe/internal/output"
	"github.com/gnzdotmx/meetscribe/internal/pipeline"
	"github.com/gnzdotmx/meetscribe/internal/utils"
	"github.com/gnzdotmx/meetscribe/internal/validator"

	"github.com/spf13/cobra"
)

var (
	inputFilePath   string
	outputDirPath   string
	outputFormats   string
	noPreprocess    bool
	concurrency     int
	languageHint    string
	speedFactorFlag float64
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe a local recording",
	Long: `Run the whole pipeline on a local file: transcode it when it is too large for
one request, split it into chunks, transcribe every chunk and write the merged transcript.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formats, err := parseFormats(outputFormats)
		if err != nil {
			return err
		}

		input, err := config.NewInputConfig(inputFilePath, outputDirPath)
		if err != nil {
			return err
		}
		if !input.IsSupportedAudio() {
			utils.LogWarning("%s has an unrecognized extension, the content will be sniffed", input.InputFileName)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if noPreprocess {
			cfg.Pipeline.Preprocess = false
		}
		if languageHint != "" {
			cfg.Engine.Language = languageHint
		}
		if speedFactorFlag != 0 {
			cfg.Preprocess.Profile.SpeedFactor = speedFactorFlag
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		// Validate that external dependencies are installed
		if cfg.Pipeline.Preprocess {
			if err := validator.ValidateExternalTools(cfg.Preprocess.FFmpegPath); err != nil {
				return fmt.Errorf("dependency validation failed (use --no-preprocess to skip transcoding): %w", err)
			}
		}

		data, err := os.ReadFile(input.InputPath)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}

		utils.LogInfo("Transcribing %s (%s)", input.InputFileName, humanBytes(int64(len(data))))
		orchestrator := a.Orchestrator(concurrency, func(p pipeline.Progress) {
			utils.LogInfo("Chunk %d/%d complete (%.0f%%)", p.CompletedChunks, p.TotalChunks, p.PercentComplete)
		})

		state, err := orchestrator.Run(ctx, media.Asset{
			Filename:    input.InputFileName,
			ContentType: input.InputFileType,
			Data:        data,
		})
		if err != nil {
			for _, ev := range state.Events() {
				utils.LogDebug("[%s] %s %s: %s", ev.Timestamp.Format(time.TimeOnly), ev.Stage, ev.Type, ev.Message)
			}
			return fmt.Errorf("transcription failed: %w", err)
		}

		for _, f := range formats {
			path, err := output.WriteFile(input.OutputPath, input.InputFileBase, state.Transcript, f)
			if err != nil {
				return err
			}
			utils.LogSuccess("Wrote %s", path)
		}
		return nil
	},
}

// parseFormats splits a comma-separated list of output formats
func parseFormats(list string) ([]output.Format, error) {
	var formats []output.Format
	seen := make(map[output.Format]bool)
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		f, err := output.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return []output.Format{output.FormatJSON}, nil
	}
	return formats, nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	transcribeCmd.Flags().StringVarP(&inputFilePath, "input", "i", "", "Input audio or video file (required)")
	transcribeCmd.Flags().StringVarP(&outputDirPath, "output", "o", "", "Output directory (defaults to the input's directory)")
	transcribeCmd.Flags().StringVarP(&outputFormats, "format", "f", "json", "Comma-separated output formats: json, srt, vtt, txt, md")
	transcribeCmd.Flags().BoolVar(&noPreprocess, "no-preprocess", false, "Send the file as-is instead of transcoding it first")
	transcribeCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Chunks transcribed in parallel, 1-4 (defaults to the configuration)")
	transcribeCmd.Flags().StringVar(&languageHint, "language", "", "ISO-639-1 language hint for the engine")
	transcribeCmd.Flags().Float64Var(&speedFactorFlag, "speed", 0, "Playback speed-up applied while transcoding, 1-2")
	_ = transcribeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(transcribeCmd)
}
