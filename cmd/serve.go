package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gnzdotmx/meetscribe/internal/app"
	"github.com/gnzdotmx/meetscribe/internal/server"
	"github.com/gnzdotmx/meetscribe/internal/utils"
	"github.com/gnzdotmx/meetscribe/internal/validator"

	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve the chunk transcription, merge, preprocess and whole-file transcription
endpoints over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.Server.Listen = listenAddr
		}

		if err := validator.ValidateExternalTools(cfg.Preprocess.FFmpegPath); err != nil {
			utils.LogWarning("Preprocessing will fail until ffmpeg is available: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}

		opts := server.Options{
			Worker:       a.Worker,
			Preprocessor: a.Preprocessor,
			Pipeline:     a.Orchestrator(0, nil),
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		}
		// serve the local store so the URLs it hands out resolve
		if a.Local != nil {
			if u, err := url.Parse(cfg.Storage.BaseURL); err == nil && strings.HasPrefix(u.Path, "/") {
				opts.FilesDir = a.Local.Dir()
				opts.FilesPrefix = strings.TrimRight(u.Path, "/")
			}
		}

		if err := server.New(opts).Run(ctx, cfg.Server.Listen); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		utils.LogInfo("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Address to listen on (overrides the configuration)")
	rootCmd.AddCommand(serveCmd)
}
