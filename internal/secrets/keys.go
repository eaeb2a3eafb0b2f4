package secrets

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"

	jose "gopkg.in/square/go-jose.v2"
)

// jwkAlgorithm labels exported vault keys in their JSON Web Key form.
const jwkAlgorithm = "RSA-OAEP-256"

// EncodePublicKey exports an RSA public key as base64 SPKI DER.
func EncodePublicKey(publicKey *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ParsePublicKey imports a base64 SPKI DER public key.
func ParsePublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64", kerrors.ErrInvalidPublicKey)
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPublicKey, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", kerrors.ErrInvalidPublicKey)
	}
	return rsaPub, nil
}

// EncodePrivateKey exports an RSA private key as PKCS8 DER.
// The result is secret and must be encrypted before it leaves memory.
func EncodePrivateKey(privateKey *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return der, nil
}

// ParsePrivateKey imports a PKCS8 DER private key.
func ParsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, kerrors.ErrInvalidPrivateKey
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA private key", kerrors.ErrInvalidPrivateKey)
	}
	return rsaKey, nil
}

// MarshalPrivateJWK exports a private key as a JSON Web Key.
func MarshalPrivateJWK(privateKey *rsa.PrivateKey) ([]byte, error) {
	jwk := jose.JSONWebKey{
		Key:       privateKey,
		Algorithm: jwkAlgorithm,
		Use:       "enc",
	}
	data, err := jwk.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JWK: %w", err)
	}
	return data, nil
}

// ParsePrivateJWK imports a private key previously exported by MarshalPrivateJWK.
func ParsePrivateJWK(data []byte) (*rsa.PrivateKey, error) {
	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%w: malformed JWK", kerrors.ErrInvalidPrivateKey)
	}
	if !jwk.Valid() || jwk.IsPublic() {
		return nil, fmt.Errorf("%w: JWK holds no private key", kerrors.ErrInvalidPrivateKey)
	}
	rsaKey, ok := jwk.Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: JWK is not an RSA key", kerrors.ErrInvalidPrivateKey)
	}
	if err := rsaKey.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPrivateKey, err)
	}
	return rsaKey, nil
}

// SamePublicKey reports whether two RSA public keys are identical.
func SamePublicKey(a, b *rsa.PublicKey) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Equal(b)
}
