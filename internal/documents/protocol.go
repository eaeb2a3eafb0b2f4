package documents

import (
	"context"
	"crypto/rsa"
	"fmt"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
	logger "github.com/PolarWolf314/cipherdesk/internal/logging"
	"github.com/PolarWolf314/cipherdesk/internal/secrets"
	"github.com/PolarWolf314/cipherdesk/internal/store"
)

// DefaultMigrateConcurrency bounds how many resources Migrate seals at once.
const DefaultMigrateConcurrency = 4

// Session is the part of the vault session the protocol needs.
// *session.Controller implements it.
type Session interface {
	UserID() string
	PrivateKey() (*rsa.PrivateKey, error)
	OnLock(fn func())
}

// Protocol implements envelope encryption of resources on behalf of the
// session's user.
type Protocol struct {
	session    Session
	identities store.IdentityStore
	ledger     store.GrantLedger
	resources  store.ResourceStore
	cache      *keyCache

	log         logger.Logger
	concurrency int
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithLogger sets the logger used for protocol diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(p *Protocol) { p.log = l }
}

// WithConcurrency sets the default number of resources Migrate processes
// in parallel.
func WithConcurrency(n int) Option {
	return func(p *Protocol) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New returns a Protocol acting for the session's user. Cached document
// keys are dropped whenever the session locks.
func New(sess Session, identities store.IdentityStore, ledger store.GrantLedger, resources store.ResourceStore, opts ...Option) *Protocol {
	p := &Protocol{
		session:     sess,
		identities:  identities,
		ledger:      ledger,
		resources:   resources,
		cache:       newKeyCache(),
		concurrency: DefaultMigrateConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	sess.OnLock(p.cache.purge)
	return p
}

// CreateDocumentKey generates a fresh document key.
func (p *Protocol) CreateDocumentKey() (secrets.DocumentKey, error) {
	return secrets.GenerateSymmetricKey()
}

// EncryptField encrypts one field value under key.
func (p *Protocol) EncryptField(plaintext string, key secrets.DocumentKey) (secrets.EncryptedField, error) {
	return secrets.EncryptString(plaintext, key)
}

// DecryptField decrypts one field. Failures wrap errors.ErrIntegrity.
func (p *Protocol) DecryptField(field secrets.EncryptedField, key secrets.DocumentKey) (string, error) {
	return secrets.DecryptString(field, key)
}

// WrapForUser wraps key with the public key of userID's vault.
func (p *Protocol) WrapForUser(ctx context.Context, key secrets.DocumentKey, userID string) (string, error) {
	publicKey, err := p.publicKey(ctx, userID)
	if err != nil {
		return "", err
	}
	return secrets.WrapKey(key, publicKey)
}

// UnwrapForSelf unwraps a key wrapped for the session's user. It needs an
// unlocked session.
func (p *Protocol) UnwrapForSelf(wrapped string) (secrets.DocumentKey, error) {
	privateKey, err := p.session.PrivateKey()
	if err != nil {
		return secrets.DocumentKey{}, err
	}
	return secrets.UnwrapKey(wrapped, privateKey)
}

// ResolveKey returns the document key of resourceID for the session's user.
// It returns errors.ErrVaultLocked or errors.ErrGrantMissing when the key is
// out of reach.
func (p *Protocol) ResolveKey(ctx context.Context, resourceID string) (secrets.DocumentKey, error) {
	if key, ok := p.cache.get(resourceID); ok {
		return key, nil
	}

	privateKey, err := p.session.PrivateKey()
	if err != nil {
		return secrets.DocumentKey{}, err
	}

	grant, err := p.ledger.Get(ctx, resourceID, p.session.UserID())
	if err != nil {
		return secrets.DocumentKey{}, err
	}
	if grant == nil {
		return secrets.DocumentKey{}, fmt.Errorf("%w: resource %s", kerrors.ErrGrantMissing, resourceID)
	}

	key, err := secrets.UnwrapKey(grant.EncryptedKey, privateKey)
	if err != nil {
		return secrets.DocumentKey{}, fmt.Errorf("unwrapping key for resource %s: %w", resourceID, err)
	}

	p.cache.put(resourceID, key)
	return key, nil
}

// publicKey looks up the vault public key of userID.
func (p *Protocol) publicKey(ctx context.Context, userID string) (*rsa.PublicKey, error) {
	identity, err := p.identities.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, fmt.Errorf("%w: user %s", kerrors.ErrRecipientNotFound, userID)
	}
	return secrets.ParsePublicKey(identity.PublicKey)
}

// cacheIfUnlocked remembers a key the session's user was just granted, but
// only while the session could have unwrapped it anyway.
func (p *Protocol) cacheIfUnlocked(resourceID string, key secrets.DocumentKey) {
	if _, err := p.session.PrivateKey(); err == nil {
		p.cache.put(resourceID, key)
	}
}

func (p *Protocol) loadResource(ctx context.Context, resourceID string) (*store.Resource, error) {
	resource, err := p.resources.Get(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrResourceNotFound, resourceID)
	}
	return resource, nil
}
