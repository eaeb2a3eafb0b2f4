// Package session holds the vault session controller.
//
// A Controller is created per user and starts Locked. Setup creates the
// vault and Unlock opens it with the vault password; both leave the
// controller Unlocked and mirror the private key as a JWK into an
// EphemeralStore under PrivateKeyEntry. Restore picks that copy back up in
// a later process without asking for the password. Lock forgets the key,
// evicts the copy and notifies OnLock hooks.
//
// RuntimeStore keeps entries as 0600 files in the per-login runtime
// directory. MemoryStore keeps them in process memory.
package session
