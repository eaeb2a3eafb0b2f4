package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of AES-256 keys in bytes.
	KeySize = 32

	// IVSize is the AES-GCM nonce size in bytes.
	IVSize = 12

	// SaltSize is the PBKDF2 salt size in bytes.
	SaltSize = 16

	// RSABits is the modulus size of vault keypairs.
	RSABits = 2048

	// DefaultIterations is the PBKDF2 iteration count used for new vaults.
	// It is also the lowest count DeriveKey accepts.
	DefaultIterations = 100000
)

// DocumentKey is an AES-256-GCM key. The zero value is not a valid key.
type DocumentKey struct {
	raw [KeySize]byte
	set bool
}

// NewDocumentKey imports raw key bytes. The slice is copied.
func NewDocumentKey(raw []byte) (DocumentKey, error) {
	var k DocumentKey
	if len(raw) != KeySize {
		return k, fmt.Errorf("%w: expected %d bytes, got %d", kerrors.ErrInvalidKeyLength, KeySize, len(raw))
	}
	copy(k.raw[:], raw)
	k.set = true
	return k, nil
}

// Raw exports the key bytes. Callers must not persist the result unencrypted.
func (k DocumentKey) Raw() []byte {
	out := make([]byte, KeySize)
	copy(out, k.raw[:])
	return out
}

// IsZero reports whether k holds no key.
func (k DocumentKey) IsZero() bool {
	return !k.set
}

// Equal compares two keys.
func (k DocumentKey) Equal(other DocumentKey) bool {
	return k.set == other.set && k.raw == other.raw
}

// Zero wipes the key in place.
func (k *DocumentKey) Zero() {
	for i := range k.raw {
		k.raw[i] = 0
	}
	k.set = false
}

// String never reveals key material.
func (k DocumentKey) String() string {
	return "DocumentKey(redacted)"
}

// GenerateSymmetricKey generates a new random document key.
func GenerateSymmetricKey() (DocumentKey, error) {
	raw := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return DocumentKey{}, fmt.Errorf("failed to generate symmetric key: %w", err)
	}
	defer wipe(raw)
	return NewDocumentKey(raw)
}

// GenerateSalt returns SaltSize random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey runs PBKDF2-HMAC-SHA256 over the UTF-8 password and salt.
// The same (password, salt, iterations) always yields the same key.
func DeriveKey(password string, salt []byte, iterations int) (DocumentKey, error) {
	if iterations < DefaultIterations {
		return DocumentKey{}, fmt.Errorf("%w: %d < %d", kerrors.ErrWeakIterations, iterations, DefaultIterations)
	}
	if len(salt) == 0 {
		return DocumentKey{}, fmt.Errorf("failed to derive key: empty salt")
	}
	raw := pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha256.New)
	defer wipe(raw)
	return NewDocumentKey(raw)
}

// EncryptSymmetric encrypts plaintext with AES-256-GCM under a fresh random IV.
// The returned ciphertext carries the authentication tag.
func EncryptSymmetric(plaintext []byte, key DocumentKey) (EncryptedField, error) {
	aead, err := newGCM(key)
	if err != nil {
		return EncryptedField{}, err
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return EncryptedField{}, fmt.Errorf("failed to generate IV: %w", err)
	}

	ciphertext := aead.Seal(nil, iv, plaintext, nil)

	return EncryptedField{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// DecryptSymmetric reverses EncryptSymmetric. Any decoding or authentication
// failure is reported as ErrIntegrity and no plaintext is returned.
func DecryptSymmetric(field EncryptedField, key DocumentKey) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv, err := base64.StdEncoding.DecodeString(field.IV)
	if err != nil || len(iv) != IVSize {
		return nil, fmt.Errorf("%w: malformed IV", kerrors.ErrIntegrity)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(field.Ciphertext)
	if err != nil || len(ciphertext) < aead.Overhead() {
		return nil, fmt.Errorf("%w: malformed ciphertext", kerrors.ErrIntegrity)
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", kerrors.ErrIntegrity)
	}

	return plaintext, nil
}

// GenerateKeyPair creates a new RSA-OAEP vault keypair (2048 bits, e=65537).
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, RSABits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key pair: %w", err)
	}
	return privateKey, nil
}

// WrapKey encrypts the raw document key with RSA-OAEP/SHA-256 and returns base64.
func WrapKey(key DocumentKey, publicKey *rsa.PublicKey) (string, error) {
	if key.IsZero() {
		return "", fmt.Errorf("%w: empty document key", kerrors.ErrInvalidKeyLength)
	}
	if publicKey == nil {
		return "", kerrors.ErrInvalidPublicKey
	}

	raw := key.Raw()
	defer wipe(raw)

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, raw, nil)
	if err != nil {
		return "", fmt.Errorf("failed to wrap symmetric key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// UnwrapKey reverses WrapKey. A grant wrapped for a different key, or a
// corrupted grant, is reported as ErrIntegrity.
func UnwrapKey(wrapped string, privateKey *rsa.PrivateKey) (DocumentKey, error) {
	if privateKey == nil {
		return DocumentKey{}, kerrors.ErrInvalidPrivateKey
	}

	ciphertext, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return DocumentKey{}, fmt.Errorf("%w: malformed wrapped key", kerrors.ErrIntegrity)
	}

	raw, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, privateKey, ciphertext, nil)
	if err != nil {
		return DocumentKey{}, fmt.Errorf("%w: failed to unwrap symmetric key", kerrors.ErrIntegrity)
	}
	defer wipe(raw)

	return NewDocumentKey(raw)
}

func newGCM(key DocumentKey) (cipher.AEAD, error) {
	if key.IsZero() {
		return nil, fmt.Errorf("%w: empty document key", kerrors.ErrInvalidKeyLength)
	}
	block, err := aes.NewCipher(key.raw[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
