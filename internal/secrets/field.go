package secrets

import (
	"encoding/json"
)

// Field is a stored resource field: either a PlainField or an EncryptedField.
// Stored strings are classified once by ParseField, so callers switch on the
// concrete type instead of sniffing content.
type Field interface {
	// Encode returns the string persisted on the resource store.
	Encode() string

	isField()
}

// PlainField is a field stored as plaintext.
type PlainField struct {
	Value string
}

func (f PlainField) Encode() string { return f.Value }

func (PlainField) isField() {}

// EncryptedField is the AES-GCM envelope of one field. It is stored as
// {"ciphertext":"<base64>","iv":"<base64>"}.
type EncryptedField struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

func (f EncryptedField) Encode() string {
	// Marshalling two string fields cannot fail.
	data, _ := json.Marshal(f)
	return string(data)
}

func (EncryptedField) isField() {}

// ParseField classifies a stored string. A JSON object carrying a string
// "ciphertext" member is an EncryptedField; anything else is plaintext.
func ParseField(stored string) Field {
	if len(stored) == 0 || stored[0] != '{' {
		return PlainField{Value: stored}
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stored), &probe); err != nil {
		return PlainField{Value: stored}
	}
	if _, ok := probe["ciphertext"]; !ok {
		return PlainField{Value: stored}
	}

	var field EncryptedField
	if err := json.Unmarshal([]byte(stored), &field); err != nil {
		return PlainField{Value: stored}
	}
	return field
}

// IsEncrypted reports whether a stored string holds an encrypted envelope.
func IsEncrypted(stored string) bool {
	_, ok := ParseField(stored).(EncryptedField)
	return ok
}

// EncryptString encrypts a text field.
func EncryptString(plaintext string, key DocumentKey) (EncryptedField, error) {
	return EncryptSymmetric([]byte(plaintext), key)
}

// DecryptString decrypts a text field.
func DecryptString(field EncryptedField, key DocumentKey) (string, error) {
	plaintext, err := DecryptSymmetric(field, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
