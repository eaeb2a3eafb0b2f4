package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
	"github.com/PolarWolf314/cipherdesk/internal/secrets"
	"github.com/PolarWolf314/cipherdesk/internal/store"
)

// ShareResult describes the outcome of a Share.
type ShareResult struct {
	ResourceID     string
	RecipientID    string
	RecipientEmail string
	// AlreadyHadAccess is set when the recipient held a grant before the
	// call, including one written concurrently by someone else.
	AlreadyHadAccess bool
}

// Share grants the user registered under recipientEmail access to a sealed
// resource. The caller must hold the document key, so a locked vault fails
// with ErrVaultLocked and a caller without a grant with ErrGrantMissing.
// Sharing with someone who already has access then succeeds without changes.
func (p *Protocol) Share(ctx context.Context, resourceID, recipientEmail string) (*ShareResult, error) {
	resource, err := p.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if !resource.Encrypted {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrResourceNotEncrypted, resourceID)
	}

	recipient, err := p.identities.FindByEmail(ctx, recipientEmail)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrRecipientNotFound, store.NormalizeEmail(recipientEmail))
	}

	result := &ShareResult{
		ResourceID:     resourceID,
		RecipientID:    recipient.UserID,
		RecipientEmail: recipient.Email,
	}

	// Resolved before the existing-grant shortcut: only key holders may share.
	key, err := p.ResolveKey(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	existing, err := p.ledger.Get(ctx, resourceID, recipient.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		result.AlreadyHadAccess = true
		return result, nil
	}

	publicKey, err := secrets.ParsePublicKey(recipient.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("recipient %s: %w", recipient.Email, err)
	}
	wrapped, err := secrets.WrapKey(key, publicKey)
	if err != nil {
		return nil, err
	}

	_, err = p.ledger.Create(ctx, store.Grant{
		ResourceID:   resourceID,
		ResourceType: resource.Type,
		UserID:       recipient.UserID,
		EncryptedKey: wrapped,
	})
	if errors.Is(err, kerrors.ErrGrantExists) {
		p.log.Debugf("Grant for %s on %s was created concurrently", recipient.Email, resourceID)
		result.AlreadyHadAccess = true
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	p.log.Debugf("Shared %s with %s", resourceID, recipient.Email)
	return result, nil
}

// RevokeOptions configures Revoke.
type RevokeOptions struct {
	// Rekey re-encrypts the resource under a new document key after the
	// grant is removed, so a copy of the old key no longer opens it.
	Rekey bool
}

// RevokeResult describes the outcome of a Revoke.
type RevokeResult struct {
	ResourceID string
	UserID     string
	Rekey      *RekeyResult
}

// Revoke removes userID's grant on a resource. Only the owner may revoke,
// and the owner's own grant cannot be revoked.
//
// Without RevokeOptions.Rekey the document key is unchanged: a revoked user
// who kept the unwrapped key, or the ciphertext, can still read the content
// as it was. With it the resource is re-keyed before Revoke returns.
func (p *Protocol) Revoke(ctx context.Context, resourceID, userID string, opts RevokeOptions) (*RevokeResult, error) {
	resource, err := p.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if resource.OwnerID != p.session.UserID() {
		return nil, fmt.Errorf("%w: revoke on %s", kerrors.ErrNotOwner, resourceID)
	}
	if userID == resource.OwnerID {
		return nil, kerrors.ErrSelfRevoke
	}

	grant, err := p.ledger.Get(ctx, resourceID, userID)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, fmt.Errorf("%w: user %s on %s", kerrors.ErrGrantMissing, userID, resourceID)
	}

	// Resolve the key first so a locked vault does not leave the grant
	// deleted and the rekey undone.
	if opts.Rekey {
		if _, err := p.ResolveKey(ctx, resourceID); err != nil {
			return nil, err
		}
	}

	if err := p.ledger.Delete(ctx, grant.ID); err != nil {
		return nil, err
	}
	result := &RevokeResult{ResourceID: resourceID, UserID: userID}
	p.log.Debugf("Revoked %s on %s", userID, resourceID)

	if opts.Rekey {
		rekeyed, err := p.rekey(ctx, resource)
		if err != nil {
			return result, fmt.Errorf("access revoked but re-keying failed: %w", err)
		}
		result.Rekey = rekeyed
	}
	return result, nil
}

// RekeyResult describes the outcome of a Rekey.
type RekeyResult struct {
	ResourceID string
	// Fields is the number of encrypted fields moved to the new key.
	Fields int
	// Grantees are the users whose grants were re-wrapped.
	Grantees []string
	// Dropped are grantees whose vault no longer exists; their grants were removed.
	Dropped []string
}

// Rekey moves a sealed resource to a new document key. Every encrypted
// field is re-encrypted and every remaining grant is re-wrapped. Only the
// owner may rekey.
func (p *Protocol) Rekey(ctx context.Context, resourceID string) (*RekeyResult, error) {
	resource, err := p.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if resource.OwnerID != p.session.UserID() {
		return nil, fmt.Errorf("%w: rekey %s", kerrors.ErrNotOwner, resourceID)
	}
	return p.rekey(ctx, resource)
}

func (p *Protocol) rekey(ctx context.Context, resource *store.Resource) (*RekeyResult, error) {
	if !resource.Encrypted {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrResourceNotEncrypted, resource.ID)
	}

	oldKey, err := p.ResolveKey(ctx, resource.ID)
	if err != nil {
		return nil, err
	}
	newKey, err := secrets.GenerateSymmetricKey()
	if err != nil {
		return nil, err
	}

	fields, err := reencryptFields(resource.Fields, oldKey, newKey)
	if err != nil {
		return nil, err
	}

	oldGrants, err := p.ledger.List(ctx, resource.ID)
	if err != nil {
		return nil, err
	}

	result := &RekeyResult{ResourceID: resource.ID}
	newGrants := make([]store.Grant, 0, len(oldGrants))
	for _, grant := range oldGrants {
		publicKey, err := p.publicKey(ctx, grant.UserID)
		if errors.Is(err, kerrors.ErrRecipientNotFound) {
			p.log.Warnf("Dropping grant of %s on %s: vault no longer exists", grant.UserID, resource.ID)
			result.Dropped = append(result.Dropped, grant.UserID)
			continue
		}
		if err != nil {
			return nil, err
		}
		wrapped, err := secrets.WrapKey(newKey, publicKey)
		if err != nil {
			return nil, err
		}
		newGrants = append(newGrants, store.Grant{
			ResourceID:   grant.ResourceID,
			ResourceType: grant.ResourceType,
			UserID:       grant.UserID,
			EncryptedKey: wrapped,
			CreatedAt:    grant.CreatedAt,
		})
		result.Grantees = append(result.Grantees, grant.UserID)
	}

	if err := p.replaceGrants(ctx, resource.ID, newGrants); err != nil {
		return nil, err
	}

	updated := *resource
	for name := range fields {
		if secrets.IsEncrypted(fields[name]) {
			result.Fields++
		}
	}
	updated.Fields = fields
	if _, err := p.resources.Put(ctx, updated); err != nil {
		// Put the old grants back so the stored fields stay readable.
		if restoreErr := p.replaceGrants(ctx, resource.ID, oldGrants); restoreErr != nil {
			p.log.Errorf("Failed to restore grants of %s after an aborted rekey: %v", resource.ID, restoreErr)
		}
		return nil, err
	}

	p.cache.put(resource.ID, newKey)
	p.log.Debugf("Re-keyed %s for %d grantee(s)", resource.ID, len(result.Grantees))
	return result, nil
}

// replaceGrants swaps every grant of a resource, atomically when the ledger
// supports it.
func (p *Protocol) replaceGrants(ctx context.Context, resourceID string, grants []store.Grant) error {
	if replacer, ok := p.ledger.(store.GrantReplacer); ok {
		return replacer.ReplaceGrants(ctx, resourceID, grants)
	}

	existing, err := p.ledger.List(ctx, resourceID)
	if err != nil {
		return err
	}
	for _, grant := range existing {
		if err := p.ledger.Delete(ctx, grant.ID); err != nil {
			return err
		}
	}
	for _, grant := range grants {
		if _, err := p.ledger.Create(ctx, grant); err != nil {
			return err
		}
	}
	return nil
}

// GrantInfo is a grant as shown to users.
type GrantInfo struct {
	UserID    string
	Email     string
	Owner     bool
	CreatedAt time.Time
}

// Grants lists who can open a resource.
func (p *Protocol) Grants(ctx context.Context, resourceID string) ([]GrantInfo, error) {
	resource, err := p.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	grants, err := p.ledger.List(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	infos := make([]GrantInfo, 0, len(grants))
	for _, grant := range grants {
		info := GrantInfo{
			UserID:    grant.UserID,
			Owner:     grant.UserID == resource.OwnerID,
			CreatedAt: grant.CreatedAt,
		}
		identity, err := p.identities.Get(ctx, grant.UserID)
		if err != nil {
			return nil, err
		}
		if identity != nil {
			info.Email = identity.Email
		}
		infos = append(infos, info)
	}
	return infos, nil
}
