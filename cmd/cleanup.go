package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/gnzdotmx/meetscribe/internal/tempfs"
	"github.com/gnzdotmx/meetscribe/internal/utils"

	"github.com/spf13/cobra"
)

var (
	cleanupDir    string
	keepLatest    int
	olderThanDays int
	cleanupDryRun bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove temporary workspaces left behind by interrupted runs",
	Long: `Remove meetscribe-* temporary directories older than the given age.
Every run removes its own workspace on exit; this only matters after a crash or kill.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cleanupDir
		if dir == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir = cfg.TempDir
		}
		if dir == "" {
			dir = os.TempDir()
		}
		if olderThanDays < 0 {
			return fmt.Errorf("--older-than must not be negative")
		}

		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		stale, err := tempfs.FindStale(dir, cutoff)
		if err != nil {
			return err
		}

		// keep the newest entries regardless of age
		if keepLatest > 0 {
			if keepLatest >= len(stale) {
				stale = nil
			} else {
				stale = stale[:len(stale)-keepLatest]
			}
		}

		if len(stale) == 0 {
			utils.LogInfo("No workspaces to delete in %s.", dir)
			return nil
		}

		utils.LogInfo("Found %d workspaces to delete:", len(stale))
		for _, ns := range stale {
			utils.LogInfo("- %s (last modified %s)", ns.Path, ns.ModTime.Format(time.RFC3339))
		}

		if cleanupDryRun {
			utils.LogInfo("Dry run - no directories were deleted.")
			return nil
		}

		failed := 0
		for _, ns := range stale {
			utils.LogVerbose("Deleting %s...", ns.Path)
			if err := os.RemoveAll(ns.Path); err != nil {
				utils.LogError("Error deleting %s: %v", ns.Path, err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("failed to delete %d of %d workspaces", failed, len(stale))
		}

		utils.LogSuccess("Cleanup completed.")
		return nil
	},
}

func init() {
	cleanupCmd.Flags().StringVarP(&cleanupDir, "dir", "d", "", "Temp directory to scan (defaults to the configured temp dir)")
	cleanupCmd.Flags().IntVarP(&keepLatest, "keep-latest", "k", 0, "Keep this many of the most recent stale workspaces")
	cleanupCmd.Flags().IntVarP(&olderThanDays, "older-than", "o", 1, "Delete workspaces older than this many days")
	cleanupCmd.Flags().BoolVarP(&cleanupDryRun, "dry-run", "n", false, "Show what would be deleted without actually deleting")

	rootCmd.AddCommand(cleanupCmd)
}
