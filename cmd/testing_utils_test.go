package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/PolarWolf314/cipherdesk/internal/configs"
	"github.com/PolarWolf314/cipherdesk/internal/utils"
)

// testHome holds the temp directory shared by the simulated users of a test.
type testHome struct {
	t   *testing.T
	dir string
}

// setupTestEnvironment points the settings at a temp dir and supplies the
// vault password through the environment.
func setupTestEnvironment(t *testing.T) *testHome {
	t.Helper()
	original := configs.CipherdeskSettings
	t.Cleanup(func() {
		configs.CipherdeskSettings = original
		ResetGlobalState()
	})
	t.Setenv(utils.PasswordEnv, "correct horse")
	return &testHome{t: t, dir: t.TempDir()}
}

// as switches to another user. Users share the database and audit log but
// have their own config and runtime dir.
func (h *testHome) as(name string) {
	configs.CipherdeskSettings = &configs.Settings{
		ConfigPath:  filepath.Join(h.dir, "config", name+".toml"),
		DataPath:    filepath.Join(h.dir, "data"),
		RuntimePath: filepath.Join(h.dir, "run", name),
	}
}

// run executes the CLI with args and returns everything written to stdout
// and stderr.
func (h *testHome) run(args ...string) (string, error) {
	h.t.Helper()
	ResetGlobalState()
	RootCmd.SetArgs(args)
	return captureOutput(func() error {
		_, err := RootCmd.ExecuteC()
		return err
	})
}

// mustRun is run that fails the test on error.
func (h *testHome) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%v failed: %v\n%s", args, err, out)
	}
	return out
}

// captureOutput captures both stdout and stderr during function execution.
func captureOutput(fn func() error) (string, error) {
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	reader, writer, err := os.Pipe()
	if err != nil {
		return "", err
	}
	os.Stdout = writer
	os.Stderr = writer

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, reader)
		done <- buf.String()
	}()

	err = fn()

	writer.Close()
	os.Stdout = originalStdout
	os.Stderr = originalStderr

	return <-done, err
}
