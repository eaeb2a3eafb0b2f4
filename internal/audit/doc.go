// Package audit provides the audit trail of cipherdesk operations.
//
// Every operation that changes who can read what (vault setup, share,
// revoke, rekey, migrate and so on) is recorded in a per-user log. Entries
// name users and resources but never contain keys, ciphertext or field
// content.
//
// # Log Format
//
// The audit log is stored as JSON Lines (one JSON object per line) at:
//
//	$XDG_DATA_HOME/cipherdesk/audit.jsonl
//
// # Usage
//
//	entry := audit.LogWithUser("share")
//	entry.ResourceID = resourceID
//	entry.TargetUser = recipientEmail
//	audit.Log(entry)
//
// # Failure Handling
//
// Audit logging is best-effort. If logging fails (permissions, disk full,
// etc.), the operation continues without error.
//
// Use ReadEntries to parse the log for display. Malformed entries are
// skipped to handle partial writes.
package audit
