package session

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
	logger "github.com/PolarWolf314/cipherdesk/internal/logging"
	"github.com/PolarWolf314/cipherdesk/internal/secrets"
	"github.com/PolarWolf314/cipherdesk/internal/store"
)

// State is the lock state of a Controller.
type State int

const (
	Locked State = iota
	Unlocked
)

func (s State) String() string {
	if s == Unlocked {
		return "unlocked"
	}
	return "locked"
}

// Controller owns one user's private key for the lifetime of a session.
// It starts Locked. While Unlocked the key is read-only and is mirrored to
// the EphemeralStore so later processes can Restore it without a password.
type Controller struct {
	userID     string
	identities store.IdentityStore
	ephemeral  EphemeralStore
	iterations int
	log        logger.Logger

	mu         sync.RWMutex
	privateKey *rsa.PrivateKey

	hooksMu sync.Mutex
	hooks   []func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithIterations sets the PBKDF2 iteration count used by Setup.
func WithIterations(iterations int) Option {
	return func(c *Controller) { c.iterations = iterations }
}

// WithLogger sets the logger used for session diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New returns a locked controller for userID. A nil ephemeral store means
// the session does not outlive the process.
func New(userID string, identities store.IdentityStore, ephemeral EphemeralStore, opts ...Option) *Controller {
	if ephemeral == nil {
		ephemeral = NewMemoryStore()
	}
	c := &Controller{
		userID:     userID,
		identities: identities,
		ephemeral:  ephemeral,
		iterations: secrets.DefaultIterations,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserID returns the user this controller acts for.
func (c *Controller) UserID() string {
	return c.userID
}

// State returns the current lock state.
func (c *Controller) State() State {
	if c.IsUnlocked() {
		return Unlocked
	}
	return Locked
}

// IsUnlocked reports whether the private key is available.
func (c *Controller) IsUnlocked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.privateKey != nil
}

// PrivateKey returns the unlocked private key, or ErrVaultLocked.
func (c *Controller) PrivateKey() (*rsa.PrivateKey, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.privateKey == nil {
		return nil, kerrors.ErrVaultLocked
	}
	return c.privateKey, nil
}

// OnLock registers fn to run every time the session locks. Caches of
// unwrapped document keys hook in here.
func (c *Controller) OnLock(fn func()) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Setup creates the user's vault, persists it and leaves the session
// unlocked. A user who already has a vault gets ErrVaultExists.
func (c *Controller) Setup(ctx context.Context, password, email string) (*store.Identity, error) {
	existing, err := c.identities.Get(ctx, c.userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, kerrors.ErrVaultExists
	}

	keys, privateKey, err := secrets.SetupVault(password, c.iterations)
	if err != nil {
		return nil, err
	}

	identity, err := c.identities.Create(ctx, store.Identity{
		UserID:              c.userID,
		Email:               email,
		PublicKey:           keys.PublicKey,
		EncryptedPrivateKey: keys.EncryptedPrivateKey,
		Salt:                keys.Salt,
		IV:                  keys.IV,
		Iterations:          keys.Iterations,
	})
	if err != nil {
		if errors.Is(err, kerrors.ErrIdentityExists) {
			if raced, getErr := c.identities.Get(ctx, c.userID); getErr == nil && raced != nil {
				return nil, kerrors.ErrVaultExists
			}
		}
		return nil, fmt.Errorf("failed to store vault: %w", err)
	}

	if err := c.activate(privateKey); err != nil {
		return identity, err
	}
	c.log.Debugf("Vault created for user %s", c.userID)
	return identity, nil
}

// Unlock decrypts the vault with password. A failed attempt on a locked
// session evicts any stale ephemeral key. A failed attempt on an unlocked
// session leaves it unlocked: a mistyped password does not log the user out.
func (c *Controller) Unlock(ctx context.Context, password string) error {
	identity, err := c.identities.Get(ctx, c.userID)
	if err != nil {
		return err
	}
	if identity == nil {
		return kerrors.ErrVaultNotFound
	}

	privateKey, err := secrets.UnlockVault(identity.VaultKeys(), password)
	if err != nil {
		if c.IsUnlocked() {
			return err
		}
		if lockErr := c.Lock(); lockErr != nil {
			c.log.Warnf("Failed to clear session after unsuccessful unlock: %v", lockErr)
		}
		return err
	}

	if err := c.activate(privateKey); err != nil {
		return err
	}
	c.log.Debugf("Vault unlocked for user %s", c.userID)
	return nil
}

// Restore re-hydrates the session from the ephemeral store. It reports
// whether the session ended up unlocked. An entry that cannot be parsed or
// that does not belong to the stored identity is evicted.
func (c *Controller) Restore(ctx context.Context) (bool, error) {
	if c.IsUnlocked() {
		return true, nil
	}

	data, ok, err := c.ephemeral.Get(PrivateKeyEntry)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	privateKey, err := secrets.ParsePrivateJWK(data)
	if err != nil {
		c.log.Debugf("Discarding unreadable session key: %v", err)
		return false, c.ephemeral.Delete(PrivateKeyEntry)
	}

	identity, err := c.identities.Get(ctx, c.userID)
	if err != nil {
		return false, err
	}
	if identity == nil {
		c.log.Debugf("Discarding session key for user %s with no vault", c.userID)
		return false, c.ephemeral.Delete(PrivateKeyEntry)
	}

	publicKey, err := secrets.ParsePublicKey(identity.PublicKey)
	if err != nil || !secrets.SamePublicKey(publicKey, &privateKey.PublicKey) {
		c.log.Debugf("Discarding session key that does not match the vault of user %s", c.userID)
		return false, c.ephemeral.Delete(PrivateKeyEntry)
	}

	c.mu.Lock()
	c.privateKey = privateKey
	c.mu.Unlock()
	c.log.Debugf("Session restored for user %s", c.userID)
	return true, nil
}

// Lock forgets the private key, evicts the ephemeral copy and runs the lock
// hooks. Locking a locked session still evicts and runs the hooks.
func (c *Controller) Lock() error {
	c.mu.Lock()
	c.privateKey = nil
	c.mu.Unlock()

	err := c.ephemeral.Delete(PrivateKeyEntry)

	c.hooksMu.Lock()
	hooks := append([]func(){}, c.hooks...)
	c.hooksMu.Unlock()
	for _, hook := range hooks {
		hook()
	}

	if err != nil {
		return fmt.Errorf("failed to evict session key: %w", err)
	}
	return nil
}

// activate mirrors the key to the ephemeral store and then installs it.
// Nothing is installed if the mirror cannot be written.
func (c *Controller) activate(privateKey *rsa.PrivateKey) error {
	jwk, err := secrets.MarshalPrivateJWK(privateKey)
	if err != nil {
		return err
	}
	if err := c.ephemeral.Put(PrivateKeyEntry, jwk); err != nil {
		return fmt.Errorf("failed to persist session key: %w", err)
	}

	c.mu.Lock()
	c.privateKey = privateKey
	c.mu.Unlock()
	return nil
}
