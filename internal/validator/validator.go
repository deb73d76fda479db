package validator

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/gnzdotmx/meetscribe/internal/utils"
)

// Allow tests to replace tool discovery and execution
var (
	lookPath    = exec.LookPath
	execCommand = exec.Command
)

// ExternalTool represents an external command-line tool requirement
type ExternalTool struct {
	Name        string
	VersionArgs []string
	Validate    func(output string) bool
}

// FFmpeg returns the transcoder requirement for the given binary name or path
func FFmpeg(path string) ExternalTool {
	if path == "" {
		path = "ffmpeg"
	}
	return ExternalTool{
		Name:        path,
		VersionArgs: []string{"-version"},
		Validate: func(output string) bool {
			return strings.Contains(output, "ffmpeg version")
		},
	}
}

// optionalTools lists tools that are checked but not required
var optionalTools = []ExternalTool{
	{
		Name:        "ffprobe",
		VersionArgs: []string{"-version"},
		Validate: func(output string) bool {
			return strings.Contains(output, "ffprobe version")
		},
	},
}

// requiredEnvVars lists required environment variables
var requiredEnvVars = []string{
	"OPENAI_API_KEY",
}

// ValidateExternalTools checks that the transcoder is installed and answers -version
func ValidateExternalTools(ffmpegPath string) error {
	for _, tool := range []ExternalTool{FFmpeg(ffmpegPath)} {
		path, err := lookPath(tool.Name)
		if err != nil {
			return fmt.Errorf("tool %s not found in PATH: %w", tool.Name, err)
		}

		output, err := execCommand(path, tool.VersionArgs...).Output()
		if err != nil {
			return fmt.Errorf("failed to run %s: %w", tool.Name, err)
		}

		if !tool.Validate(string(output)) {
			return fmt.Errorf("invalid version of %s detected", tool.Name)
		}

		utils.LogVerbose("✓ %s found at %s", tool.Name, path)
	}

	for _, tool := range optionalTools {
		path, err := lookPath(tool.Name)
		if err != nil {
			utils.LogVerbose("ℹ️ Optional tool %s not found: %v", tool.Name, err)
			continue
		}

		output, err := execCommand(path, tool.VersionArgs...).CombinedOutput()
		if err != nil {
			utils.LogVerbose("ℹ️ Optional tool %s found but couldn't verify version: %v", tool.Name, err)
			continue
		}

		if !tool.Validate(string(output)) {
			utils.LogVerbose("ℹ️ Optional tool %s found but may not be the correct version", tool.Name)
			continue
		}

		utils.LogVerbose("✓ Optional tool %s found at %s", tool.Name, path)
	}

	return nil
}

// ValidateEnvVars checks if all required environment variables are set
func ValidateEnvVars() error {
	var missing []string
	for _, envVar := range requiredEnvVars {
		if os.Getenv(envVar) == "" {
			missing = append(missing, envVar)
			continue
		}
		// Don't print the actual value for security
		utils.LogVerbose("✓ %s is set", envVar)
	}

	if len(missing) > 0 {
		return fmt.Errorf("environment variable(s) not set: %s", strings.Join(missing, ", "))
	}
	return nil
}
