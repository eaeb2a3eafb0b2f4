package documents

import (
	"context"
	"errors"
	"fmt"
	"sync"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
	"github.com/PolarWolf314/cipherdesk/internal/secrets"
	"github.com/PolarWolf314/cipherdesk/internal/store"

	"github.com/google/uuid"
	"github.com/grailbio/base/traverse"
)

// NewResource describes a resource to create. An empty ID is assigned a
// uuid. Sealed selects encryption; unsealed resources are stored as given.
type NewResource struct {
	ID     string
	Type   store.ResourceType
	Fields map[string]string
	Sealed bool
}

// Create stores a new resource owned by the session's user. A sealed
// resource gets a fresh document key, every field is encrypted under its
// own IV, and the owner's grant is written before the resource itself.
func (p *Protocol) Create(ctx context.Context, nr NewResource) (*store.Resource, error) {
	if !nr.Type.Valid() {
		return nil, fmt.Errorf("unknown resource type %q", nr.Type)
	}
	if nr.ID == "" {
		nr.ID = uuid.New().String()
	}

	existing, err := p.resources.Get(ctx, nr.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrResourceExists, nr.ID)
	}

	resource := store.Resource{
		ID:      nr.ID,
		Type:    nr.Type,
		OwnerID: p.session.UserID(),
		Fields:  nr.Fields,
	}
	if !nr.Sealed {
		p.log.Debugf("Creating plaintext %s %s", resource.Type, resource.ID)
		return p.resources.Put(ctx, resource)
	}

	return p.seal(ctx, resource)
}

// seal encrypts every field of a plaintext resource under a new document
// key, grants the owner and stores the resource as encrypted.
func (p *Protocol) seal(ctx context.Context, resource store.Resource) (*store.Resource, error) {
	publicKey, err := p.publicKey(ctx, resource.OwnerID)
	if err != nil {
		if errors.Is(err, kerrors.ErrRecipientNotFound) {
			return nil, fmt.Errorf("%w: owner %s", kerrors.ErrVaultNotFound, resource.OwnerID)
		}
		return nil, err
	}

	key, err := secrets.GenerateSymmetricKey()
	if err != nil {
		return nil, err
	}

	sealed, err := encryptFields(resource.Fields, key)
	if err != nil {
		return nil, err
	}

	wrapped, err := secrets.WrapKey(key, publicKey)
	if err != nil {
		return nil, err
	}
	if err := p.putOwnerGrant(ctx, resource, wrapped); err != nil {
		return nil, err
	}

	resource.Fields = sealed
	resource.Encrypted = true
	stored, err := p.resources.Put(ctx, resource)
	if err != nil {
		return nil, err
	}

	if resource.OwnerID == p.session.UserID() {
		p.cacheIfUnlocked(resource.ID, key)
	}
	p.log.Debugf("Sealed %s %s with %d field(s)", resource.Type, resource.ID, len(sealed))
	return stored, nil
}

// putOwnerGrant writes the owner's grant. A grant left behind by an
// interrupted earlier attempt belongs to a key that was never used for the
// stored resource, so it is replaced.
func (p *Protocol) putOwnerGrant(ctx context.Context, resource store.Resource, wrapped string) error {
	grant := store.Grant{
		ResourceID:   resource.ID,
		ResourceType: resource.Type,
		UserID:       resource.OwnerID,
		EncryptedKey: wrapped,
	}

	_, err := p.ledger.Create(ctx, grant)
	if !errors.Is(err, kerrors.ErrGrantExists) {
		return err
	}

	stale, err := p.ledger.Get(ctx, resource.ID, resource.OwnerID)
	if err != nil {
		return err
	}
	if stale != nil {
		p.log.Debugf("Replacing stale owner grant for %s", resource.ID)
		if err := p.ledger.Delete(ctx, stale.ID); err != nil {
			return err
		}
	}
	_, err = p.ledger.Create(ctx, grant)
	return err
}

// Open prepares a document for display. Plain documents pass through.
// Sealed documents are decrypted with the caller's key; when the key is out
// of reach every encrypted field is replaced by a placeholder, and a field
// failing authentication gets PlaceholderDecryptFail on its own.
func (p *Protocol) Open(ctx context.Context, doc Document) (*OpenedDocument, error) {
	switch d := doc.(type) {
	case PlainDocument:
		fields := make(map[string]string, len(d.Fields))
		for name, value := range d.Fields {
			fields[name] = value
		}
		return &OpenedDocument{Info: d.Meta, Access: AccessPlain, Fields: fields}, nil

	case SealedDocument:
		return p.openSealed(ctx, d)

	default:
		return nil, fmt.Errorf("unsupported document type %T", doc)
	}
}

// OpenResource loads and opens the resource with the given ID.
func (p *Protocol) OpenResource(ctx context.Context, resourceID string) (*OpenedDocument, error) {
	resource, err := p.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return p.Open(ctx, FromResource(*resource))
}

func (p *Protocol) openSealed(ctx context.Context, d SealedDocument) (*OpenedDocument, error) {
	opened := &OpenedDocument{Info: d.Meta, Fields: make(map[string]string, len(d.Fields))}

	key, err := p.ResolveKey(ctx, d.Meta.ID)
	placeholder := ""
	switch {
	case err == nil:
		opened.Access = AccessDecrypted
	case errors.Is(err, kerrors.ErrVaultLocked):
		opened.Access, placeholder = AccessLocked, PlaceholderLocked
	case errors.Is(err, kerrors.ErrGrantMissing):
		opened.Access, placeholder = AccessNoGrant, PlaceholderNoAccess
	case errors.Is(err, kerrors.ErrIntegrity):
		p.log.Warnf("Could not unwrap the document key of %s", d.Meta.ID)
		opened.Access, placeholder = AccessKeyError, PlaceholderDecryptFail
	default:
		return nil, err
	}

	names := sortedKeys(d.Fields)
	values := make([]string, len(names))
	failed := make([]bool, len(names))

	err = traverse.Each(len(names), func(i int) error {
		switch f := d.Fields[names[i]].(type) {
		case secrets.PlainField:
			values[i] = f.Value
		case secrets.EncryptedField:
			if placeholder != "" {
				values[i] = placeholder
				failed[i] = opened.Access == AccessKeyError
				return nil
			}
			plaintext, err := secrets.DecryptString(f, key)
			if err != nil {
				values[i] = PlaceholderDecryptFail
				failed[i] = true
				return nil
			}
			values[i] = plaintext
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, name := range names {
		opened.Fields[name] = values[i]
		if failed[i] {
			opened.FailedFields = append(opened.FailedFields, name)
		}
	}
	if len(opened.FailedFields) > 0 && opened.Access == AccessDecrypted {
		p.log.Warnf("%d field(s) of %s failed integrity checks", len(opened.FailedFields), d.Meta.ID)
	}
	return opened, nil
}

// SetFields adds or overwrites fields of an existing resource. Values for a
// sealed resource are encrypted with its document key first.
func (p *Protocol) SetFields(ctx context.Context, resourceID string, fields map[string]string) (*store.Resource, error) {
	resource, err := p.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	stored := fields
	if resource.Encrypted {
		key, err := p.ResolveKey(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		if stored, err = encryptFields(fields, key); err != nil {
			return nil, err
		}
	}

	if resource.Fields == nil {
		resource.Fields = make(map[string]string, len(stored))
	}
	for name, value := range stored {
		resource.Fields[name] = value
	}
	return p.resources.Put(ctx, *resource)
}

// Delete removes a resource and all of its grants. Only the owner may
// delete.
func (p *Protocol) Delete(ctx context.Context, resourceID string) error {
	resource, err := p.loadResource(ctx, resourceID)
	if err != nil {
		return err
	}
	if resource.OwnerID != p.session.UserID() {
		return fmt.Errorf("%w: delete %s", kerrors.ErrNotOwner, resourceID)
	}

	if err := p.replaceGrants(ctx, resourceID, nil); err != nil {
		return err
	}
	if err := p.resources.Delete(ctx, resourceID); err != nil {
		return err
	}
	p.cache.forget(resourceID)
	return nil
}

// encryptFields encrypts each value under key concurrently. Every field
// gets its own IV.
func encryptFields(fields map[string]string, key secrets.DocumentKey) (map[string]string, error) {
	names := sortedKeys(fields)
	encoded := make([]string, len(names))

	err := traverse.Each(len(names), func(i int) error {
		field, err := secrets.EncryptString(fields[names[i]], key)
		if err != nil {
			return fmt.Errorf("encrypting field %s: %w", names[i], err)
		}
		encoded[i] = field.Encode()
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(names))
	for i, name := range names {
		out[name] = encoded[i]
	}
	return out, nil
}

// reencryptFields moves every encrypted field from oldKey to newKey. Plain
// fields are kept as they are. Any field that fails to decrypt aborts the
// whole operation so no field is left under a key nobody holds.
func reencryptFields(fields map[string]string, oldKey, newKey secrets.DocumentKey) (map[string]string, error) {
	names := sortedKeys(fields)
	out := make(map[string]string, len(names))
	var mu sync.Mutex

	err := traverse.Each(len(names), func(i int) error {
		name := names[i]
		value := fields[name]
		if enc, ok := secrets.ParseField(value).(secrets.EncryptedField); ok {
			plaintext, err := secrets.DecryptSymmetric(enc, oldKey)
			if err != nil {
				return fmt.Errorf("decrypting field %s: %w", name, err)
			}
			field, err := secrets.EncryptSymmetric(plaintext, newKey)
			for j := range plaintext {
				plaintext[j] = 0
			}
			if err != nil {
				return fmt.Errorf("encrypting field %s: %w", name, err)
			}
			value = field.Encode()
		}
		mu.Lock()
		out[name] = value
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
