package secrets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
)

func TestSetupVault_ThenUnlock(t *testing.T) {
	keys, setupKey, err := SetupVault("pw", DefaultIterations)
	if err != nil {
		t.Fatalf("SetupVault failed: %v", err)
	}

	salt, err := base64.StdEncoding.DecodeString(keys.Salt)
	if err != nil || len(salt) != SaltSize {
		t.Errorf("Expected %d byte base64 salt, got %d (%v)", SaltSize, len(salt), err)
	}
	iv, err := base64.StdEncoding.DecodeString(keys.IV)
	if err != nil || len(iv) != IVSize {
		t.Errorf("Expected %d byte base64 IV, got %d (%v)", IVSize, len(iv), err)
	}
	if keys.Iterations != DefaultIterations {
		t.Errorf("Expected %d iterations, got %d", DefaultIterations, keys.Iterations)
	}

	unlocked, err := UnlockVault(*keys, "pw")
	if err != nil {
		t.Fatalf("UnlockVault failed: %v", err)
	}
	if !unlocked.Equal(setupKey) {
		t.Fatalf("Unlocked key differs from the generated key")
	}

	// The unlocked key must unwrap a key wrapped with the vault's own public key.
	publicKey, err := ParsePublicKey(keys.PublicKey)
	if err != nil {
		t.Fatalf("ParsePublicKey failed: %v", err)
	}
	docKey := mustSymmetricKey(t)
	wrapped, err := WrapKey(docKey, publicKey)
	if err != nil {
		t.Fatalf("WrapKey failed: %v", err)
	}
	got, err := UnwrapKey(wrapped, unlocked)
	if err != nil {
		t.Fatalf("UnwrapKey failed: %v", err)
	}
	if !bytes.Equal(got.Raw(), docKey.Raw()) {
		t.Errorf("Unwrapped key differs")
	}
}

func TestUnlockVault_WrongPassword(t *testing.T) {
	keys, _, err := SetupVault("pw", DefaultIterations)
	if err != nil {
		t.Fatalf("SetupVault failed: %v", err)
	}

	for _, password := range []string{"wrong-pw", "", "PW", "pw "} {
		if _, err := UnlockVault(*keys, password); !errors.Is(err, kerrors.ErrVaultUnlock) {
			t.Errorf("Password %q: expected ErrVaultUnlock, got %v", password, err)
		}
	}
}

func TestUnlockVault_CorruptRecord(t *testing.T) {
	keys, _, err := SetupVault("pw", DefaultIterations)
	if err != nil {
		t.Fatalf("SetupVault failed: %v", err)
	}
	other, _, err := SetupVault("pw", DefaultIterations)
	if err != nil {
		t.Fatalf("SetupVault failed: %v", err)
	}

	corrupt := map[string]VaultKeys{
		"bad salt":           {PublicKey: keys.PublicKey, EncryptedPrivateKey: keys.EncryptedPrivateKey, Salt: "***", IV: keys.IV},
		"bad iv":             {PublicKey: keys.PublicKey, EncryptedPrivateKey: keys.EncryptedPrivateKey, Salt: keys.Salt, IV: other.IV},
		"swapped public key": {PublicKey: other.PublicKey, EncryptedPrivateKey: keys.EncryptedPrivateKey, Salt: keys.Salt, IV: keys.IV},
		"truncated":          {PublicKey: keys.PublicKey, EncryptedPrivateKey: keys.EncryptedPrivateKey[:16], Salt: keys.Salt, IV: keys.IV},
	}

	for name, record := range corrupt {
		t.Run(name, func(t *testing.T) {
			if _, err := UnlockVault(record, "pw"); !errors.Is(err, kerrors.ErrVaultUnlock) {
				t.Errorf("Expected ErrVaultUnlock, got %v", err)
			}
		})
	}
}

func TestUnlockVault_ErrorIsGeneric(t *testing.T) {
	keys, _, err := SetupVault("pw", DefaultIterations)
	if err != nil {
		t.Fatalf("SetupVault failed: %v", err)
	}

	_, wrongPassword := UnlockVault(*keys, "nope")
	broken := *keys
	broken.Salt = "***"
	_, brokenRecord := UnlockVault(broken, "pw")

	if wrongPassword.Error() != brokenRecord.Error() {
		t.Errorf("Unlock errors differ: %q vs %q", wrongPassword, brokenRecord)
	}
}

func TestSetupVault_EmptyPassword(t *testing.T) {
	if _, _, err := SetupVault("", DefaultIterations); !errors.Is(err, kerrors.ErrEmptyPassword) {
		t.Errorf("Expected ErrEmptyPassword, got %v", err)
	}
}

func TestPrivateJWK_RoundTrip(t *testing.T) {
	priv := sharedTestKey(t)

	data, err := MarshalPrivateJWK(priv)
	if err != nil {
		t.Fatalf("MarshalPrivateJWK failed: %v", err)
	}

	got, err := ParsePrivateJWK(data)
	if err != nil {
		t.Fatalf("ParsePrivateJWK failed: %v", err)
	}
	if !got.Equal(priv) {
		t.Errorf("JWK round trip produced a different key")
	}

	if _, err := ParsePrivateJWK([]byte(`{"kty":"oct"}`)); !errors.Is(err, kerrors.ErrInvalidPrivateKey) {
		t.Errorf("Expected ErrInvalidPrivateKey, got %v", err)
	}
}

func TestPublicKey_RoundTrip(t *testing.T) {
	priv := sharedTestKey(t)

	encoded, err := EncodePublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("EncodePublicKey failed: %v", err)
	}
	got, err := ParsePublicKey(encoded)
	if err != nil {
		t.Fatalf("ParsePublicKey failed: %v", err)
	}
	if !SamePublicKey(got, &priv.PublicKey) {
		t.Errorf("Public key round trip mismatch")
	}

	if _, err := ParsePublicKey("bm90IGEga2V5"); !errors.Is(err, kerrors.ErrInvalidPublicKey) {
		t.Errorf("Expected ErrInvalidPublicKey, got %v", err)
	}
}
