package cmd

import (
	"fmt"

	"github.com/gnzdotmx/meetscribe/internal/utils"
	"github.com/gnzdotmx/meetscribe/internal/validator"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate environment setup",
	Long:  `Check that ffmpeg is installed, the engine API key is set and the configuration is valid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		utils.LogInfo("Validating environment...")

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		utils.LogSuccess("Configuration: OK")

		if err := validator.ValidateExternalTools(cfg.Preprocess.FFmpegPath); err != nil {
			return fmt.Errorf("external tools validation failed: %w", err)
		}
		utils.LogSuccess("External tools: OK")

		if err := validator.ValidateEnvVars(); err != nil {
			return fmt.Errorf("environment variables validation failed: %w", err)
		}
		utils.LogSuccess("Environment variables: OK")

		utils.LogSuccess("Environment validation completed successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
