package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/PolarWolf314/cipherdesk/internal/configs"
)

// Entry represents a single audit log entry. It never carries key
// material, ciphertext or field content.
type Entry struct {
	Timestamp string `json:"ts"`      // RFC3339 with microseconds.
	User      string `json:"user"`    // Email of user performing action.
	UserID    string `json:"user_id"` // ID of user performing action.
	Operation string `json:"op"`      // Operation name.

	// Optional fields depending on operation.
	ResourceID   string   `json:"resource_id,omitempty"`   // For create/share/revoke/rekey/delete.
	ResourceType string   `json:"resource_type,omitempty"` // For create.
	Sealed       bool     `json:"sealed,omitempty"`        // For create.
	TargetUser   string   `json:"target_user,omitempty"`   // For share/revoke.
	TargetID     string   `json:"target_id,omitempty"`     // For share/revoke.
	Rekeyed      bool     `json:"rekeyed,omitempty"`       // For revoke/rekey.
	Resources    []string `json:"resources,omitempty"`     // For migrate.
	FailedCount  int      `json:"failed_count,omitempty"`  // For migrate.
	Match        string   `json:"match,omitempty"`         // For migrate.
	OldEmail     string   `json:"old_email,omitempty"`     // For repair-email.
}

// Log appends an entry to the audit log.
// If logging fails, it does not return an error.
// Operations should not fail just because audit logging failed.
func Log(entry Entry) {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	}

	logPath := LogPath()
	if logPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	_, _ = f.Write(append(data, '\n'))
}

// LogWithUser is a convenience function that populates user fields from config.
func LogWithUser(op string) Entry {
	entry := Entry{Operation: op}

	config, err := configs.LoadConfig()
	if err != nil {
		return entry
	}

	entry.User = config.User.Email
	entry.UserID = config.User.ID

	return entry
}

// LogPath returns the path to the audit log file.
func LogPath() string {
	if configs.CipherdeskSettings == nil || configs.CipherdeskSettings.DataPath == "" {
		return ""
	}
	return configs.CipherdeskSettings.AuditLogPath()
}

// ReadEntries reads all entries from the audit log.
// Returns an empty slice if the log doesn't exist.
func ReadEntries() ([]Entry, error) {
	logPath := LogPath()
	if logPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, scanner.Err()
}

// Tail returns the last n entries, or all of them when n <= 0.
func Tail(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[len(entries)-n:]
}
