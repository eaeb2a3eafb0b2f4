// Package utils provides shared helpers for the cipherdesk CLI.
//
// # String Utilities
//
//   - IsValidEmail: checks an email address format
//   - ParseAssignments: parses name=value field flags
//   - FormatList: formats IDs or emails for human-readable output
//
// # Terminal Utilities
//
//   - ReadVaultPassword: reads the vault password from CIPHERDESK_PASSWORD
//     or a hidden prompt
//   - ReadPassphrase: prompts without echo
//   - IsTerminal: checks whether stdin is a terminal
//
// # I/O Utilities
//
//   - ReadFieldFromStdin: reads a piped field value, capped at MaxFieldSize
package utils
