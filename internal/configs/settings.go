package configs

import (
	"log"
	"os"
	"path/filepath"
)

// Settings holds the filesystem locations cipherdesk uses.
type Settings struct {
	// ConfigPath is the TOML config file.
	ConfigPath string
	// DataPath holds the local database and the audit log.
	DataPath string
	// RuntimePath holds the unlocked session key. It lives on the per-login
	// tmpfs that the OS clears at logout, and is empty when there is none.
	RuntimePath string
}

var CipherdeskSettings *Settings

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("error getting home directory: %s", err)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatalf("error getting config directory: %s", err)
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	// This is independent of the working directory, so it is ok to init here
	CipherdeskSettings = &Settings{
		ConfigPath:  filepath.Join(configDir, "cipherdesk", "config.toml"),
		DataPath:    filepath.Join(dataDir, "cipherdesk"),
		RuntimePath: runtimeDir(),
	}
}

// runtimeDir returns the session directory under $XDG_RUNTIME_DIR, or ""
// when the login session has no runtime dir. The system temp dir is not a
// substitute since it may be backed by disk.
func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "cipherdesk")
	}
	return ""
}

// HasRuntimeDir reports whether session keys can outlive a single command.
func (s *Settings) HasRuntimeDir() bool {
	return s.RuntimePath != ""
}

// AuditLogPath returns the path of the JSON Lines audit log.
func (s *Settings) AuditLogPath() string {
	return filepath.Join(s.DataPath, "audit.jsonl")
}

// DefaultDatabasePath returns the SQLite database used when the config does
// not name one.
func (s *Settings) DefaultDatabasePath() string {
	return filepath.Join(s.DataPath, "cipherdesk.db")
}
