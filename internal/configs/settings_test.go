package configs

import (
	"path/filepath"
	"testing"
)

func TestRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	if got := runtimeDir(); got != filepath.Join("/run/user/1000", "cipherdesk") {
		t.Errorf("Expected a dir under XDG_RUNTIME_DIR, got %q", got)
	}

	t.Setenv("XDG_RUNTIME_DIR", "")
	if got := runtimeDir(); got != "" {
		t.Errorf("Expected no runtime dir without XDG_RUNTIME_DIR, got %q", got)
	}
	if (&Settings{}).HasRuntimeDir() {
		t.Errorf("Expected HasRuntimeDir to be false for an empty RuntimePath")
	}
}
