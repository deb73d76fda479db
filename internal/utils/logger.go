package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the level of logging verbosity
type LogLevel int

const (
	// LevelQuiet suppresses all output except errors
	LevelQuiet LogLevel = iota
	// LevelNormal shows run progress
	LevelNormal
	// LevelVerbose shows detailed information about each chunk and request
	LevelVerbose
	// LevelDebug shows all debugging information
	LevelDebug
)

var (
	// CurrentLogLevel is the global log level setting
	CurrentLogLevel LogLevel = LevelNormal

	// outMu serializes writes; chunks are logged from several goroutines
	outMu  sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetLogLevel sets the global logging level
func SetLogLevel(level LogLevel) {
	CurrentLogLevel = level
}

// SetOutput redirects normal and error output, mainly for tests
func SetOutput(out, errOut io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	stdout = out
	stderr = errOut
}

// LogLevelFromString converts a string level name to LogLevel
func LogLevelFromString(level string) LogLevel {
	switch strings.ToLower(level) {
	case "quiet", "q":
		return LevelQuiet
	case "normal", "n":
		return LevelNormal
	case "verbose", "v":
		return LevelVerbose
	case "debug", "d":
		return LevelDebug
	default:
		return LevelNormal
	}
}

// String returns the level name accepted by LogLevelFromString
func (l LogLevel) String() string {
	switch l {
	case LevelQuiet:
		return "quiet"
	case LevelVerbose:
		return "verbose"
	case LevelDebug:
		return "debug"
	default:
		return "normal"
	}
}

func write(w *io.Writer, line string) {
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintln(*w, line)
}

// LogError logs an error message (always shown)
func LogError(format string, args ...interface{}) {
	write(&stderr, Error(fmt.Sprintf(format, args...)))
}

// LogInfo logs an informational message at Normal+ level
func LogInfo(format string, args ...interface{}) {
	if CurrentLogLevel >= LevelNormal {
		write(&stdout, Info(fmt.Sprintf(format, args...)))
	}
}

// LogSuccess logs a success message at Normal+ level
func LogSuccess(format string, args ...interface{}) {
	if CurrentLogLevel >= LevelNormal {
		write(&stdout, Success(fmt.Sprintf(format, args...)))
	}
}

// LogVerbose logs a message at Verbose+ level
func LogVerbose(format string, args ...interface{}) {
	if CurrentLogLevel >= LevelVerbose {
		write(&stdout, "\t"+Info(fmt.Sprintf(format, args...)))
	}
}

// LogDebug logs a debug message at Debug level
func LogDebug(format string, args ...interface{}) {
	if CurrentLogLevel >= LevelDebug {
		write(&stdout, "\t"+Debug(fmt.Sprintf(format, args...)))
	}
}

// LogWarning logs a warning message at Normal+ level. Warnings go to stderr.
func LogWarning(format string, args ...interface{}) {
	if CurrentLogLevel >= LevelNormal {
		write(&stderr, Warning(fmt.Sprintf(format, args...)))
	}
}
