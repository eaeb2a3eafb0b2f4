package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/cipherdesk/internal/audit"
	"github.com/PolarWolf314/cipherdesk/internal/configs"
	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
	"github.com/PolarWolf314/cipherdesk/internal/store"
	"github.com/PolarWolf314/cipherdesk/internal/utils"
)

// SetupOptions configures the vault setup workflow.
type SetupOptions struct {
	// Email identifies the user to people sharing with them. Defaults to
	// the configured email.
	Email string

	// Password protects the vault's private key.
	Password string

	Verbose bool
	Debug   bool
}

// SetupResult contains the outcome of a vault setup.
type SetupResult struct {
	UserID     string
	Email      string
	Iterations int
}

// Setup creates the user's vault and leaves it unlocked.
//
// Returns ErrVaultExists if the user already has a vault.
// Returns ErrInvalidEmail if the email is malformed.
// Returns ErrIdentityExists if another vault uses the email.
func Setup(ctx context.Context, opts SetupOptions) (*SetupResult, error) {
	env, err := openEnvironment(ctx, false, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	email := store.NormalizeEmail(opts.Email)
	if email == "" {
		email = env.config.User.Email
	}
	if email == "" {
		return nil, kerrors.ErrUserNotConfigured
	}
	if !utils.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrInvalidEmail, email)
	}

	identity, err := env.session.Setup(ctx, opts.Password, email)
	if err != nil {
		return nil, err
	}

	if env.config.User.Email != identity.Email {
		env.config.User.Email = identity.Email
		if err := configs.SaveConfig(env.config); err != nil {
			return nil, err
		}
	}

	entry := env.auditEntry("setup")
	audit.Log(entry)

	return &SetupResult{
		UserID:     identity.UserID,
		Email:      identity.Email,
		Iterations: identity.Iterations,
	}, nil
}

// UnlockOptions configures the unlock workflow.
type UnlockOptions struct {
	Password string
	Verbose  bool
	Debug    bool
}

// Unlock opens the vault with the password. The unlocked key is kept in
// the runtime directory until Lock or logout. Without a runtime directory
// the vault is unlocked for this command only.
//
// Returns ErrVaultUnlock for a wrong password or a corrupt vault.
// Returns ErrVaultNotFound if the user has no vault.
func Unlock(ctx context.Context, opts UnlockOptions) error {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.session.Unlock(ctx, opts.Password); err != nil {
		return err
	}

	audit.Log(env.auditEntry("unlock"))
	return nil
}

// LockOptions configures the lock workflow.
type LockOptions struct {
	Verbose bool
	Debug   bool
}

// LockResult contains the outcome of a lock.
type LockResult struct {
	// WasUnlocked is false when there was no session to end.
	WasUnlocked bool
}

// Lock ends the session and removes the unlocked key from the runtime
// directory.
func Lock(ctx context.Context, opts LockOptions) (*LockResult, error) {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	result := &LockResult{WasUnlocked: env.session.IsUnlocked()}
	if err := env.session.Lock(); err != nil {
		return nil, err
	}

	if result.WasUnlocked {
		audit.Log(env.auditEntry("lock"))
	}
	return result, nil
}

// StatusOptions configures the status workflow.
type StatusOptions struct {
	Verbose bool
	Debug   bool
}

// StatusResult describes the user's vault and data.
type StatusResult struct {
	UserID       string
	Email        string
	VaultExists  bool
	Unlocked     bool
	Iterations   int
	DatabasePath string

	// OwnedResources and OwnedEncrypted count the user's own resources.
	OwnedResources int
	OwnedEncrypted int
}

// Status reports whether the vault exists and is unlocked, and how much of
// the user's data is encrypted.
func Status(ctx context.Context, opts StatusOptions) (*StatusResult, error) {
	env, err := openEnvironment(ctx, false, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	result := &StatusResult{
		UserID:       env.config.User.ID,
		Email:        env.config.User.Email,
		Unlocked:     env.session.IsUnlocked(),
		DatabasePath: env.config.DatabasePath(),
	}

	identity, err := env.db.Identities().Get(ctx, env.config.User.ID)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		result.VaultExists = true
		result.Iterations = identity.Iterations
		result.Email = identity.Email
	}

	owned, err := env.db.Resources().List(ctx, store.ResourceFilter{OwnerID: env.config.User.ID})
	if err != nil {
		return nil, err
	}
	result.OwnedResources = len(owned)
	for _, resource := range owned {
		if resource.Encrypted {
			result.OwnedEncrypted++
		}
	}

	return result, nil
}

// RepairEmailOptions configures the repair-email workflow.
type RepairEmailOptions struct {
	NewEmail string
	Verbose  bool
	Debug    bool
}

// RepairEmailResult contains the outcome of an email repair.
type RepairEmailResult struct {
	OldEmail string
	NewEmail string
}

// RepairEmail changes the lookup email stored with the vault. Key material
// is untouched. The vault must be unlocked so only its holder can do this.
func RepairEmail(ctx context.Context, opts RepairEmailOptions) (*RepairEmailResult, error) {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	if !utils.IsValidEmail(opts.NewEmail) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrInvalidEmail, opts.NewEmail)
	}
	if _, err := env.session.PrivateKey(); err != nil {
		return nil, err
	}

	identity, err := env.db.Identities().Get(ctx, env.config.User.ID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, kerrors.ErrVaultNotFound
	}

	email := opts.NewEmail
	updated, err := env.db.Identities().Update(ctx, env.config.User.ID, store.IdentityUpdate{Email: &email})
	if err != nil {
		return nil, err
	}

	env.config.User.Email = updated.Email
	if err := configs.SaveConfig(env.config); err != nil {
		return nil, err
	}

	entry := env.auditEntry("repair-email")
	entry.OldEmail = identity.Email
	audit.Log(entry)

	return &RepairEmailResult{OldEmail: identity.Email, NewEmail: updated.Email}, nil
}
