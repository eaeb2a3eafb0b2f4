package store

import (
	"context"
	"strings"
	"time"

	"github.com/PolarWolf314/cipherdesk/internal/secrets"
)

// ResourceType discriminates the kinds of encrypted resources.
type ResourceType string

const (
	ResourceProject   ResourceType = "project"
	ResourceWiki      ResourceType = "wiki"
	ResourceSnippet   ResourceType = "snippet"
	ResourceTaskGroup ResourceType = "task_group"
)

// ResourceTypes lists every known resource type.
var ResourceTypes = []ResourceType{ResourceProject, ResourceWiki, ResourceSnippet, ResourceTaskGroup}

// Valid reports whether t is a known resource type.
func (t ResourceType) Valid() bool {
	for _, known := range ResourceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Identity is a user's persisted vault. Everything but Email is immutable
// after creation.
type Identity struct {
	UserID              string    `gorm:"primaryKey;type:text" json:"user_id"`
	Email               string    `gorm:"uniqueIndex;not null" json:"email"`
	PublicKey           string    `gorm:"type:text;not null" json:"public_key"`
	EncryptedPrivateKey string    `gorm:"type:text;not null" json:"encrypted_private_key"`
	Salt                string    `gorm:"not null" json:"salt"`
	IV                  string    `gorm:"not null" json:"iv"`
	Iterations          int       `gorm:"not null" json:"iterations"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// VaultKeys returns the key material in the form the vault key manager uses.
func (i Identity) VaultKeys() secrets.VaultKeys {
	return secrets.VaultKeys{
		PublicKey:           i.PublicKey,
		EncryptedPrivateKey: i.EncryptedPrivateKey,
		Salt:                i.Salt,
		IV:                  i.IV,
		Iterations:          i.Iterations,
	}
}

// IdentityUpdate holds the non-secret fields that may change. Nil fields are left alone.
type IdentityUpdate struct {
	Email *string
}

// Grant binds one user to one resource through the user's wrapped copy of
// the resource's document key. (ResourceID, UserID) is unique.
type Grant struct {
	ID           string       `gorm:"primaryKey;type:text" json:"id"`
	ResourceID   string       `gorm:"uniqueIndex:idx_grants_resource_user;not null" json:"resource_id"`
	ResourceType ResourceType `gorm:"type:text;not null" json:"resource_type"`
	UserID       string       `gorm:"uniqueIndex:idx_grants_resource_user;index;not null" json:"user_id"`
	EncryptedKey string       `gorm:"type:text;not null" json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Resource is the stored form of a project, guide, snippet or task group.
// Fields hold either plaintext or an encrypted envelope per field; the
// Encrypted flag is set explicitly and is not inferred from content.
type Resource struct {
	ID        string            `gorm:"primaryKey;type:text" json:"id"`
	Type      ResourceType      `gorm:"type:text;index;not null" json:"type"`
	OwnerID   string            `gorm:"index;not null" json:"owner_id"`
	Encrypted bool              `gorm:"index;not null;default:false" json:"encrypted"`
	Fields    map[string]string `gorm:"serializer:json" json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ResourceFilter narrows List. Zero fields match everything.
type ResourceFilter struct {
	OwnerID   string
	Type      ResourceType
	Encrypted *bool
}

// IdentityStore is the vault key store. Get and FindByEmail return
// (nil, nil) when nothing matches.
type IdentityStore interface {
	Get(ctx context.Context, userID string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	Create(ctx context.Context, identity Identity) (*Identity, error)
	Update(ctx context.Context, userID string, update IdentityUpdate) (*Identity, error)
}

// GrantLedger is the access control ledger. Create returns
// errors.ErrGrantExists when (ResourceID, UserID) is already present.
type GrantLedger interface {
	Get(ctx context.Context, resourceID, userID string) (*Grant, error)
	List(ctx context.Context, resourceID string) ([]Grant, error)
	Create(ctx context.Context, grant Grant) (*Grant, error)
	Delete(ctx context.Context, grantID string) error
}

// GrantReplacer is implemented by ledgers that can swap every grant of a
// resource in one step. Re-keying uses it when available.
type GrantReplacer interface {
	ReplaceGrants(ctx context.Context, resourceID string, grants []Grant) error
}

// ResourceStore persists resources. Get returns (nil, nil) when the
// resource does not exist; Put creates or replaces.
type ResourceStore interface {
	Get(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, filter ResourceFilter) ([]Resource, error)
	Put(ctx context.Context, resource Resource) (*Resource, error)
	Delete(ctx context.Context, id string) error
}

// NormalizeEmail lowercases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyFields(fields map[string]string) map[string]string {
	if fields == nil {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (f ResourceFilter) matches(r Resource) bool {
	if f.OwnerID != "" && r.OwnerID != f.OwnerID {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Encrypted != nil && r.Encrypted != *f.Encrypted {
		return false
	}
	return true
}
