package utils

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T, level LogLevel) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	prevLevel, prevColors := CurrentLogLevel, ColorsEnabled
	SetOutput(&out, &errOut)
	SetLogLevel(level)
	ColorsEnabled = false
	t.Cleanup(func() {
		SetOutput(os.Stdout, os.Stderr)
		SetLogLevel(prevLevel)
		ColorsEnabled = prevColors
	})
	return &out, &errOut
}

func TestLogLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"quiet", LevelQuiet},
		{"Q", LevelQuiet},
		{"normal", LevelNormal},
		{"verbose", LevelVerbose},
		{"DEBUG", LevelDebug},
		{"bogus", LevelNormal},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LogLevelFromString(tt.in))
			assert.Equal(t, tt.want, LogLevelFromString(tt.want.String()))
		})
	}
}

func TestLogging_RespectsLevel(t *testing.T) {
	out, errOut := captureLogs(t, LevelNormal)

	LogInfo("chunk %d done", 1)
	LogVerbose("hidden")
	LogDebug("hidden")
	LogWarning("slow engine")
	LogError("failed")

	assert.Equal(t, "chunk 1 done\n", out.String())
	assert.Equal(t, "slow engine\nfailed\n", errOut.String())
}

func TestLogging_Quiet(t *testing.T) {
	out, errOut := captureLogs(t, LevelQuiet)

	LogInfo("hidden")
	LogSuccess("hidden")
	LogWarning("hidden")
	LogError("shown")

	assert.Empty(t, out.String())
	assert.Equal(t, "shown\n", errOut.String())
}

func TestLogging_Debug(t *testing.T) {
	out, _ := captureLogs(t, LevelDebug)

	LogVerbose("v")
	LogDebug("d")

	assert.Equal(t, "\tv\n\td\n", out.String())
}

func TestColoredText(t *testing.T) {
	prev := ColorsEnabled
	t.Cleanup(func() { ColorsEnabled = prev })

	ColorsEnabled = true
	assert.Equal(t, RedColor+"x"+ResetColor, Error("x"))
	ColorsEnabled = false
	assert.Equal(t, "x", Error("x"))
}

func TestValidationError(t *testing.T) {
	cause := errors.New("boom")
	err := &ValidationError{Field: "format", Message: "unsupported", Err: cause}

	assert.Equal(t, "format: unsupported (boom)", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "format: unsupported", (&ValidationError{Field: "format", Message: "unsupported"}).Error())
}

func TestExpandHomeDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandHomeDir("~/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), got)

	for _, p := range []string{"", "~", "/abs/path", "rel/path"} {
		got, err := ExpandHomeDir(p)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}
