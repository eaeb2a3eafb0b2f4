package documents

import (
	"sort"
	"time"

	"github.com/PolarWolf314/cipherdesk/internal/secrets"
	"github.com/PolarWolf314/cipherdesk/internal/store"
)

// Placeholders shown in place of encrypted fields that cannot be read.
const (
	PlaceholderNoAccess    = "[encrypted: no access]"
	PlaceholderLocked      = "[encrypted: vault locked]"
	PlaceholderDecryptFail = "[decryption error]"
)

// Info is the non-secret metadata shared by both document variants.
type Info struct {
	ID        string
	Type      store.ResourceType
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is either a PlainDocument or a SealedDocument.
type Document interface {
	Info() Info
	isDocument()
}

// PlainDocument is a resource stored entirely in plaintext.
type PlainDocument struct {
	Meta   Info
	Fields map[string]string
}

func (d PlainDocument) Info() Info { return d.Meta }

func (PlainDocument) isDocument() {}

// SealedDocument is a resource whose fields are protected by a document key.
// Individual fields may still be plain, for example fields added by a
// client that does not encrypt.
type SealedDocument struct {
	Meta   Info
	Fields map[string]secrets.Field
}

func (d SealedDocument) Info() Info { return d.Meta }

func (SealedDocument) isDocument() {}

// FromResource converts a stored resource into a Document. The Encrypted
// flag decides the variant; field content is never used to guess it.
func FromResource(r store.Resource) Document {
	meta := Info{
		ID:        r.ID,
		Type:      r.Type,
		OwnerID:   r.OwnerID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if !r.Encrypted {
		fields := make(map[string]string, len(r.Fields))
		for name, value := range r.Fields {
			fields[name] = value
		}
		return PlainDocument{Meta: meta, Fields: fields}
	}

	fields := make(map[string]secrets.Field, len(r.Fields))
	for name, value := range r.Fields {
		fields[name] = secrets.ParseField(value)
	}
	return SealedDocument{Meta: meta, Fields: fields}
}

// Access describes how an opened document's fields were obtained.
type Access int

const (
	// AccessPlain means the document was never encrypted.
	AccessPlain Access = iota
	// AccessDecrypted means the caller's grant was used to decrypt.
	AccessDecrypted
	// AccessNoGrant means the caller holds no grant for the document.
	AccessNoGrant
	// AccessLocked means the caller's vault is locked.
	AccessLocked
	// AccessKeyError means the caller's wrapped key could not be unwrapped.
	AccessKeyError
)

func (a Access) String() string {
	switch a {
	case AccessPlain:
		return "plain"
	case AccessDecrypted:
		return "decrypted"
	case AccessNoGrant:
		return "no access"
	case AccessLocked:
		return "vault locked"
	case AccessKeyError:
		return "key error"
	default:
		return "unknown"
	}
}

// OpenedDocument is a document ready for display. Fields that could not be
// decrypted hold one of the placeholders.
type OpenedDocument struct {
	Info
	Access Access
	Fields map[string]string
	// FailedFields lists fields that failed authenticated decryption.
	FailedFields []string
}

// FieldNames returns the document's field names in sorted order.
func (d *OpenedDocument) FieldNames() []string {
	return sortedKeys(d.Fields)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
