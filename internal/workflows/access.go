package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/cipherdesk/internal/audit"
	"github.com/PolarWolf314/cipherdesk/internal/documents"
	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
	"github.com/PolarWolf314/cipherdesk/internal/store"
)

// ShareOptions configures the share workflow.
type ShareOptions struct {
	ResourceID string
	// Email of the user to share with. They must have set up a vault.
	Email string

	Verbose bool
	Debug   bool
}

// Share gives another user access to a sealed resource.
//
// Returns ErrRecipientNotFound if the recipient has no vault.
// Returns ErrVaultLocked if the user's vault is locked.
// Returns ErrGrantMissing if the user cannot read the resource themselves.
func Share(ctx context.Context, opts ShareOptions) (*documents.ShareResult, error) {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	result, err := env.protocol.Share(ctx, opts.ResourceID, opts.Email)
	if err != nil {
		return nil, err
	}

	if !result.AlreadyHadAccess {
		entry := env.auditEntry("share")
		entry.ResourceID = opts.ResourceID
		entry.TargetUser = result.RecipientEmail
		entry.TargetID = result.RecipientID
		audit.Log(entry)
	}
	return result, nil
}

// RevokeOptions configures the revoke workflow.
type RevokeOptions struct {
	ResourceID string
	Email      string

	// Rekey re-encrypts the resource after revoking. When false the
	// configured revoke.rekey default applies.
	Rekey bool

	Verbose bool
	Debug   bool
}

// RevokeResult contains the outcome of a revoke.
type RevokeResult struct {
	ResourceID string
	Email      string
	Rekey      *documents.RekeyResult
}

// Rekeyed reports whether the resource moved to a new document key.
func (r *RevokeResult) Rekeyed() bool {
	return r.Rekey != nil
}

// Revoke removes another user's access to a resource the user owns.
//
// Returns ErrSelfRevoke when targeting the owner.
// Returns ErrGrantMissing if the target has no access.
func Revoke(ctx context.Context, opts RevokeOptions) (*RevokeResult, error) {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	target, err := env.db.Identities().FindByEmail(ctx, opts.Email)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrRecipientNotFound, store.NormalizeEmail(opts.Email))
	}

	revoked, err := env.protocol.Revoke(ctx, opts.ResourceID, target.UserID, documents.RevokeOptions{
		Rekey: opts.Rekey || env.config.Revoke.Rekey,
	})
	if revoked != nil {
		entry := env.auditEntry("revoke")
		entry.ResourceID = opts.ResourceID
		entry.TargetUser = target.Email
		entry.TargetID = target.UserID
		entry.Rekeyed = revoked.Rekey != nil
		audit.Log(entry)
	}
	if err != nil {
		return nil, err
	}

	return &RevokeResult{ResourceID: opts.ResourceID, Email: target.Email, Rekey: revoked.Rekey}, nil
}

// RekeyOptions configures the rekey workflow.
type RekeyOptions struct {
	ResourceID string
	Verbose    bool
	Debug      bool
}

// Rekey moves a sealed resource the user owns to a new document key.
func Rekey(ctx context.Context, opts RekeyOptions) (*documents.RekeyResult, error) {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	result, err := env.protocol.Rekey(ctx, opts.ResourceID)
	if err != nil {
		return nil, err
	}

	entry := env.auditEntry("rekey")
	entry.ResourceID = opts.ResourceID
	entry.Rekeyed = true
	audit.Log(entry)
	return result, nil
}

// GrantsOptions configures the grants workflow.
type GrantsOptions struct {
	ResourceID string
	Verbose    bool
	Debug      bool
}

// Grants lists who can open a resource.
func Grants(ctx context.Context, opts GrantsOptions) ([]documents.GrantInfo, error) {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	return env.protocol.Grants(ctx, opts.ResourceID)
}
