package errors

import "errors"

// Vault errors indicate problems with the user's vault lifecycle.
var (
	// ErrVaultUnlock indicates a wrong password or a corrupted vault record.
	// The message deliberately does not say which.
	ErrVaultUnlock = errors.New("unable to unlock vault")

	// ErrVaultLocked indicates an operation needed the private key while the vault was locked.
	ErrVaultLocked = errors.New("vault is locked")

	// ErrVaultExists indicates a vault has already been set up for this user.
	ErrVaultExists = errors.New("vault has already been set up")

	// ErrVaultNotFound indicates no vault has been set up for this user.
	ErrVaultNotFound = errors.New("vault has not been set up")

	// ErrInsecureRuntimeDir indicates the session directory is not a private directory owned by the current user.
	ErrInsecureRuntimeDir = errors.New("session directory is not private")

	// ErrWeakIterations indicates a key derivation iteration count below the allowed floor.
	ErrWeakIterations = errors.New("key derivation iteration count is too low")
)

// Access errors indicate the caller cannot reach a resource's document key.
var (
	// ErrGrantMissing indicates the caller holds no access grant for an encrypted resource.
	ErrGrantMissing = errors.New("no access grant for this resource")

	// ErrRecipientNotFound indicates the sharing target has no vault identity.
	ErrRecipientNotFound = errors.New("recipient has not set up a vault")

	// ErrSelfRevoke indicates an attempt to revoke the resource owner's own grant.
	ErrSelfRevoke = errors.New("cannot revoke the owner's access")

	// ErrNotOwner indicates the operation is reserved to the resource owner.
	ErrNotOwner = errors.New("only the resource owner can do this")
)

// Cryptographic errors indicate failures during encryption or decryption operations.
var (
	// ErrIntegrity indicates authenticated decryption failed: tampered data, wrong key
	// or corrupted storage.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrInvalidKeyLength indicates a symmetric key has an unexpected length.
	ErrInvalidKeyLength = errors.New("invalid symmetric key length")

	// ErrInvalidPublicKey indicates a public key is malformed or not RSA.
	ErrInvalidPublicKey = errors.New("invalid or unsupported public key")

	// ErrInvalidPrivateKey indicates a private key is malformed or not RSA.
	ErrInvalidPrivateKey = errors.New("invalid or unsupported private key")
)

// Store errors indicate issues with the persisted collaborators.
var (
	// ErrGrantExists indicates the ledger already holds a grant for (resource, user).
	ErrGrantExists = errors.New("access grant already exists")

	// ErrResourceNotFound indicates the resource could not be located.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrResourceExists indicates a resource with this ID already exists.
	ErrResourceExists = errors.New("resource already exists")

	// ErrResourceNotEncrypted indicates a key operation on a resource stored in plaintext.
	ErrResourceNotEncrypted = errors.New("resource is not encrypted")

	// ErrIdentityExists indicates an identity with this user ID or email already exists.
	ErrIdentityExists = errors.New("identity already exists")
)

// User errors indicate issues with local user configuration or input.
var (
	// ErrUserNotConfigured indicates no user email has been configured yet.
	ErrUserNotConfigured = errors.New("user is not configured")

	// ErrInvalidEmail indicates the email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrEmptyPassword indicates an empty vault password was supplied.
	ErrEmptyPassword = errors.New("password must not be empty")

	// ErrInvalidDateFormat indicates a date flag is not in YYYY-MM-DD format.
	ErrInvalidDateFormat = errors.New("invalid date format")
)
