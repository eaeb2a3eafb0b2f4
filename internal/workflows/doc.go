// Package workflows provides high-level orchestration for cipherdesk commands.
//
// Workflows coordinate the config, store, session, documents and audit
// packages to implement complete user-facing features. Each workflow handles
// a single command's business logic, independent of CLI concerns like flag
// parsing, spinners, and output formatting.
//
// # Design Philosophy
//
// The cmd/ package should be a thin layer that:
//   - Parses command-line flags and arguments
//   - Calls the appropriate workflow function
//   - Formats the result for display
//
// Workflows handle everything else:
//   - Loading configuration and opening the database
//   - Restoring an unlocked session left by an earlier command
//   - Performing the core operation
//   - Recording audit trail entries
//
// # Available Workflows
//
//   - Setup, Unlock, Lock, Status, RepairEmail: manage the user's vault
//   - CreateResource, ShowResource, ListResources, SetFields, DeleteResource
//   - Share, Revoke, Rekey, Grants: manage who can open a sealed resource
//   - Migrate: seal existing plaintext resources
//   - Log: read the local audit trail
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package, allowing
// the CLI layer to provide appropriate user-facing messages without string
// matching:
//
//	_, err := workflows.Share(ctx, opts)
//	if errors.Is(err, kerrors.ErrVaultLocked) {
//	    // Ask the user to run `cipherdesk vault unlock`
//	}
package workflows
