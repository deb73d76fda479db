package validator

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTools replaces tool discovery; tools maps a name to its -version output,
// and a missing entry means the tool is not installed
func fakeTools(t *testing.T, tools map[string]string) {
	origLook, origExec := lookPath, execCommand
	t.Cleanup(func() {
		lookPath, execCommand = origLook, origExec
	})

	lookPath = func(name string) (string, error) {
		if _, ok := tools[name]; !ok {
			return "", exec.ErrNotFound
		}
		return "/usr/bin/" + name, nil
	}
	execCommand = func(name string, args ...string) *exec.Cmd {
		base := name[len("/usr/bin/"):]
		cs := []string{"-test.run=TestHelperProcess", "--", tools[base]}
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
}

// TestHelperProcess prints its first argument and exits
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) > 1 {
		fmt.Fprint(os.Stdout, args[1])
	}
	os.Exit(0)
}

func TestValidateExternalTools(t *testing.T) {
	t.Run("ffmpeg present", func(t *testing.T) {
		fakeTools(t, map[string]string{"ffmpeg": "ffmpeg version 6.1 Copyright"})
		assert.NoError(t, ValidateExternalTools(""))
	})

	t.Run("custom path", func(t *testing.T) {
		fakeTools(t, map[string]string{"ffmpeg6": "ffmpeg version 6.1", "ffprobe": "ffprobe version 6.1"})
		assert.NoError(t, ValidateExternalTools("ffmpeg6"))
	})

	t.Run("missing", func(t *testing.T) {
		fakeTools(t, map[string]string{})
		err := ValidateExternalTools("ffmpeg")
		require.Error(t, err)
		assert.True(t, errors.Is(err, exec.ErrNotFound))
	})

	t.Run("unexpected version output", func(t *testing.T) {
		fakeTools(t, map[string]string{"ffmpeg": "something else"})
		assert.ErrorContains(t, ValidateExternalTools("ffmpeg"), "invalid version")
	})
}

func TestValidateEnvVars(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	assert.ErrorContains(t, ValidateEnvVars(), "OPENAI_API_KEY")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	assert.NoError(t, ValidateEnvVars())
}
