package secrets

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
)

// VaultKeys is the persisted form of a user's vault. Only PublicKey is
// meaningful without the password.
type VaultKeys struct {
	// PublicKey is the base64 SPKI export of the vault public key.
	PublicKey string

	// EncryptedPrivateKey is the base64 AES-GCM ciphertext of the PKCS8 private key.
	EncryptedPrivateKey string

	// Salt is the base64 PBKDF2 salt.
	Salt string

	// IV is the base64 AES-GCM IV used for EncryptedPrivateKey.
	IV string

	// Iterations is the PBKDF2 count the wrapping key was derived with.
	Iterations int
}

// SetupVault creates a new vault keypair and protects the private key with
// a key derived from password. It returns the persisted form and the
// unlocked private key.
//
// SetupVault does not check whether a vault already exists; that is the
// caller's job.
func SetupVault(password string, iterations int) (*VaultKeys, *rsa.PrivateKey, error) {
	if password == "" {
		return nil, nil, kerrors.ErrEmptyPassword
	}
	if iterations == 0 {
		iterations = DefaultIterations
	}

	privateKey, err := GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}

	publicKey, err := EncodePublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	der, err := EncodePrivateKey(privateKey)
	if err != nil {
		return nil, nil, err
	}
	defer wipe(der)

	salt, err := GenerateSalt()
	if err != nil {
		return nil, nil, err
	}

	wrappingKey, err := DeriveKey(password, salt, iterations)
	if err != nil {
		return nil, nil, err
	}
	defer wrappingKey.Zero()

	sealed, err := EncryptSymmetric(der, wrappingKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encrypt private key: %w", err)
	}

	return &VaultKeys{
		PublicKey:           publicKey,
		EncryptedPrivateKey: sealed.Ciphertext,
		Salt:                base64.StdEncoding.EncodeToString(salt),
		IV:                  sealed.IV,
		Iterations:          iterations,
	}, privateKey, nil
}

// UnlockVault recovers the private key from its persisted form. Every
// failure, whether a wrong password or a damaged record, returns the same
// ErrVaultUnlock so the caller cannot tell which factor was wrong.
func UnlockVault(keys VaultKeys, password string) (*rsa.PrivateKey, error) {
	iterations := keys.Iterations
	if iterations == 0 {
		iterations = DefaultIterations
	}

	salt, err := base64.StdEncoding.DecodeString(keys.Salt)
	if err != nil || len(salt) == 0 {
		return nil, kerrors.ErrVaultUnlock
	}

	wrappingKey, err := DeriveKey(password, salt, iterations)
	if err != nil {
		return nil, kerrors.ErrVaultUnlock
	}
	defer wrappingKey.Zero()

	der, err := DecryptSymmetric(EncryptedField{Ciphertext: keys.EncryptedPrivateKey, IV: keys.IV}, wrappingKey)
	if err != nil {
		return nil, kerrors.ErrVaultUnlock
	}
	defer wipe(der)

	privateKey, err := ParsePrivateKey(der)
	if err != nil {
		return nil, kerrors.ErrVaultUnlock
	}

	// A private key that does not belong to the stored public key means the
	// record was tampered with or mixed up.
	publicKey, err := ParsePublicKey(keys.PublicKey)
	if err != nil || !SamePublicKey(publicKey, &privateKey.PublicKey) {
		return nil, kerrors.ErrVaultUnlock
	}

	return privateKey, nil
}
