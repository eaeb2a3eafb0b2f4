package configs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
	"github.com/PolarWolf314/cipherdesk/internal/secrets"

	"github.com/go-test/deep"
)

// useTempSettings points CipherdeskSettings at a temp dir for one test.
func useTempSettings(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	original := CipherdeskSettings
	CipherdeskSettings = &Settings{
		ConfigPath:  filepath.Join(tempDir, "config", "config.toml"),
		DataPath:    filepath.Join(tempDir, "data"),
		RuntimePath: filepath.Join(tempDir, "run"),
	}
	t.Cleanup(func() { CipherdeskSettings = original })
	return tempDir
}

func TestGenerateUserID(t *testing.T) {
	id := GenerateUserID()
	if len(id) != 36 {
		t.Fatalf("Expected UUID length 36, got %d", len(id))
	}
	if id == GenerateUserID() {
		t.Errorf("Expected distinct IDs")
	}
}

func TestLoadConfigNonExistent(t *testing.T) {
	useTempSettings(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := deep.Equal(config, DefaultConfig()); diff != nil {
		t.Errorf("Expected defaults: %v", diff)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	useTempSettings(t)

	config := &Config{
		User:    User{ID: "user-123", Email: "alice@example.com"},
		Storage: Storage{Database: "/tmp/other.db"},
		Vault:   Vault{Iterations: 200000},
		Revoke:  Revoke{Rekey: true},
		Migrate: Migrate{Concurrency: 8},
	}
	if err := SaveConfig(config); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(CipherdeskSettings.ConfigPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("Expected 0600 config permissions, got %o", perm)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := deep.Equal(loaded, config); diff != nil {
		t.Errorf("Loaded config differs: %v", diff)
	}
	if loaded.DatabasePath() != "/tmp/other.db" {
		t.Errorf("Expected configured database path, got %s", loaded.DatabasePath())
	}
}

func TestEnsureConfigAssignsStableID(t *testing.T) {
	useTempSettings(t)

	first, err := EnsureConfig()
	if err != nil {
		t.Fatalf("EnsureConfig failed: %v", err)
	}
	if first.User.ID == "" {
		t.Fatalf("Expected a user ID to be assigned")
	}

	second, err := EnsureConfig()
	if err != nil {
		t.Fatalf("EnsureConfig failed: %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Errorf("User ID changed between runs: %s vs %s", first.User.ID, second.User.ID)
	}
	if !errors.Is(second.RequireUser(), kerrors.ErrUserNotConfigured) {
		t.Errorf("Expected ErrUserNotConfigured without an email")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{"defaults", *DefaultConfig(), nil},
		{"bad email", Config{User: User{Email: "not-an-email"}}, kerrors.ErrInvalidEmail},
		{"weak iterations", Config{Vault: Vault{Iterations: 1000}}, kerrors.ErrWeakIterations},
		{"floor iterations", Config{Vault: Vault{Iterations: secrets.DefaultIterations}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if err := (&Config{Migrate: Migrate{Concurrency: -1}}).Validate(); err == nil {
		t.Errorf("Expected negative concurrency to be rejected")
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	useTempSettings(t)

	if err := os.MkdirAll(filepath.Dir(CipherdeskSettings.ConfigPath), 0700); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	content := "[user]\nemail = \"alice@example.com\"\n\n[vault]\niteratons = 5\n"
	if err := os.WriteFile(CipherdeskSettings.ConfigPath, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	var unknown *UnknownKeysError
	if _, err := LoadConfig(); !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownKeysError, got %v", err)
	}
}

func TestDefaultDatabasePath(t *testing.T) {
	tempDir := useTempSettings(t)

	want := filepath.Join(tempDir, "data", "cipherdesk.db")
	if got := DefaultConfig().DatabasePath(); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if got := CipherdeskSettings.AuditLogPath(); got != filepath.Join(tempDir, "data", "audit.jsonl") {
		t.Errorf("Unexpected audit log path %s", got)
	}
}
