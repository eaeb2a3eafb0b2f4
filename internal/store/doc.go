// Package store defines the persistence boundary of cipherdesk.
//
// Three contracts live here: IdentityStore holds each user's vault
// (public key plus password-encrypted private key), GrantLedger holds the
// per-user wrapped document keys, and ResourceStore holds the resources
// themselves with their fields in stored form.
//
// Two implementations are provided. Memory is used by tests and embedders.
// SQLite persists to a local database file through gorm.
//
// Lookups return (nil, nil) when nothing matches. The grant ledger enforces
// uniqueness of (ResourceID, UserID); a conflicting Create returns
// errors.ErrGrantExists and the first writer wins.
package store
