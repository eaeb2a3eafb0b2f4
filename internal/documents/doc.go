// Package documents implements envelope encryption of resources.
//
// A Protocol acts for the user of one vault session. Sealing a resource
// generates a random DocumentKey, encrypts each field under it with its own
// IV and wraps the key with the owner's public key as an access grant.
// Sharing wraps the same key for another user; revoking removes a grant
// and can re-key the resource so the old key stops working.
//
// Stored resources become Documents through FromResource, which yields a
// PlainDocument or a SealedDocument depending on the resource's Encrypted
// flag. Open turns either into an OpenedDocument. Fields the caller cannot
// decrypt are shown as placeholders instead of failing the whole document:
//
//	[encrypted: no access]     the caller holds no grant
//	[encrypted: vault locked]  the caller's vault is locked
//	[decryption error]         the field or the wrapped key failed authentication
//
// Unwrapped document keys are cached per resource and dropped when the
// session locks.
//
// Migrate seals existing plaintext resources in bulk. It is safe to run
// repeatedly: encrypted resources are skipped and per-resource failures are
// collected rather than stopping the run.
package documents
