// Package errors provides typed error values for cipherdesk.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching. This makes
// error handling more robust and refactoring-safe.
//
// # Error Categories
//
// Errors are grouped by category:
//
//   - Vault errors: Vault lifecycle failures (ErrVaultUnlock, ErrVaultLocked)
//   - Access errors: Missing grants or recipients (ErrGrantMissing, ErrRecipientNotFound)
//   - Crypto errors: Cipher failures (ErrIntegrity, ErrInvalidKeyLength)
//   - Store errors: Persistence conflicts and lookups (ErrGrantExists, ErrResourceNotFound)
//
// # Usage
//
// Return errors from internal packages:
//
//	if !c.IsUnlocked() {
//	    return nil, errors.ErrVaultLocked
//	}
//
// Handle errors in the CLI layer:
//
//	result, err := workflows.Share(ctx, opts)
//	if errors.Is(err, kerrors.ErrRecipientNotFound) {
//	    // Tell the user the recipient must run `cipherdesk vault setup` first
//	}
//
// Wrap errors with additional context:
//
//	return fmt.Errorf("unwrapping key for resource %s: %w", resourceID, errors.ErrIntegrity)
//
// Messages never include key bytes, ciphertext or plaintext.
package errors
