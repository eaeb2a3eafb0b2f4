// Package secrets provides the cryptographic primitives of cipherdesk.
//
// This package is stateless and knows nothing about users, resources or
// storage. It covers symmetric encryption, key wrapping, password-based key
// derivation and the vault key manager.
//
// # Encryption Architecture
//
// cipherdesk uses envelope encryption:
//
//  1. A random 256-bit DocumentKey encrypts each field of a resource with
//     AES-256-GCM and a fresh 12-byte IV per field
//  2. Each authorized user's RSA-OAEP (2048-bit, SHA-256) public key wraps a
//     copy of the DocumentKey
//  3. Users unwrap the DocumentKey with their private key, then decrypt fields
//
// # Vault
//
// A user's RSA keypair is their vault. The private key is exported as PKCS8
// and encrypted with a key derived from the vault password using
// PBKDF2-HMAC-SHA256 (at least 100,000 iterations) and a random 16-byte
// salt. SetupVault and UnlockVault implement both directions.
//
// # Stored Field Format
//
// An encrypted field is persisted as the JSON string
//
//	{"ciphertext":"<base64>","iv":"<base64>"}
//
// ParseField turns stored strings into the Field sum type (PlainField or
// EncryptedField) at the storage boundary.
//
// # Security Considerations
//
// Errors never include key bytes, ciphertext or plaintext. Authentication
// failures surface as errors.ErrIntegrity and are never swallowed here.
// Temporary raw key buffers are wiped after use.
package secrets
