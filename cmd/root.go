package cmd

import (
	"github.com/gnzdotmx/meetscribe/internal/config"
	"github.com/gnzdotmx/meetscribe/internal/utils"
	"github.com/spf13/cobra"
)

var (
	// verbosityLevel is the command-line flag for setting the log level
	verbosityLevel string
	// configFilePath points at an optional YAML configuration file
	configFilePath string
)

var rootCmd = &cobra.Command{
	Use:   "meetscribe",
	Short: "Transcribe long meeting recordings",
	Long: `meetscribe turns long audio and video recordings into timestamped transcripts.
Large files are transcoded, split into bounded chunks, transcribed chunk by chunk
and merged back into a single transcript on the original time axis.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set the global log level based on the flag
		logLevel := utils.LogLevelFromString(verbosityLevel)
		utils.SetLogLevel(logLevel)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the --config file, if any, with environment overrides applied
func loadConfig() (*config.Config, error) {
	return config.Load(configFilePath)
}

func init() {
	// Initialize global flags
	rootCmd.PersistentFlags().StringVarP(&verbosityLevel, "log-level", "l", "normal",
		"Set the logging verbosity level: quiet, normal, verbose, debug")
	rootCmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", "",
		"Path to a YAML configuration file")
}
