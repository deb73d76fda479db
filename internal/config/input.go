package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gnzdotmx/meetscribe/internal/media"
)

// InputConfig holds the input file and output directory of a local transcription
type InputConfig struct {
	InputPath     string
	OutputPath    string
	InputFileName string
	InputFileBase string
	InputFileType string
}

// NewInputConfig creates a new input configuration
func NewInputConfig(inputPath, outputPath string) (*InputConfig, error) {
	config := &InputConfig{
		InputPath:  inputPath,
		OutputPath: outputPath,
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *InputConfig) validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("input path is required")
	}
	fileInfo, err := os.Stat(c.InputPath)
	if err != nil {
		return fmt.Errorf("input path does not exist: %w", err)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf("input must be a file, not a directory: %s", c.InputPath)
	}
	c.InputFileName = filepath.Base(c.InputPath)
	c.InputFileBase = strings.TrimSuffix(c.InputFileName, filepath.Ext(c.InputFileName))
	c.InputFileType = media.TypeFromFilename(c.InputFileName)

	if c.OutputPath == "" {
		c.OutputPath = filepath.Dir(c.InputPath)
	}
	fileInfo, err = os.Stat(c.OutputPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access output path: %w", err)
		}
		if err := os.MkdirAll(c.OutputPath, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	} else if !fileInfo.IsDir() {
		return fmt.Errorf("output must be a directory, not a file: %s", c.OutputPath)
	}

	return nil
}

// IsSupportedAudio reports whether the input's extension maps to an accepted media type
func (c *InputConfig) IsSupportedAudio() bool {
	return c.InputFileType != "" && media.IsSupported(c.InputFileType)
}
