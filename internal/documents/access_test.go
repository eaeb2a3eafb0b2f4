package documents

import (
	"context"
	"errors"
	"testing"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
	"github.com/PolarWolf314/cipherdesk/internal/secrets"
	"github.com/PolarWolf314/cipherdesk/internal/store"
)

func TestRevoke_WithoutRekey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	createSealed(t, alice, "plan", map[string]string{"title": "Q4 Plan"})
	if _, err := alice.protocol.Share(ctx, "plan", bob.email); err != nil {
		t.Fatalf("Share failed: %v", err)
	}
	keyBefore := mustResolve(t, alice.protocol, "plan")

	result, err := alice.protocol.Revoke(ctx, "plan", bob.id, RevokeOptions{})
	if err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if result.Rekey != nil {
		t.Errorf("Did not expect a rekey")
	}

	if got := openAs(t, env.freshProtocol(bob), "plan"); got.Access != AccessNoGrant {
		t.Errorf("Expected bob to lose access, got %v", got.Access)
	}
	if got := openAs(t, alice.protocol, "plan"); got.Fields["title"] != "Q4 Plan" {
		t.Errorf("Expected alice to keep access")
	}
	if keyAfter := mustResolve(t, env.freshProtocol(alice), "plan"); !keyAfter.Equal(keyBefore) {
		t.Errorf("Revoke without rekey should keep the document key")
	}
}

func TestRevoke_WithRekey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")
	carol := env.newUser(t, "carol")

	createSealed(t, alice, "plan", map[string]string{"title": "Q4 Plan", "notes": "launch"})
	for _, u := range []*testUser{bob, carol} {
		if _, err := alice.protocol.Share(ctx, "plan", u.email); err != nil {
			t.Fatalf("Share failed: %v", err)
		}
	}

	// Bob keeps a copy of the document key before losing access.
	bobsKey := mustResolve(t, bob.protocol, "plan")

	result, err := alice.protocol.Revoke(ctx, "plan", bob.id, RevokeOptions{Rekey: true})
	if err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if result.Rekey == nil || result.Rekey.Fields != 2 || len(result.Rekey.Grantees) != 2 {
		t.Fatalf("Unexpected rekey result: %+v", result.Rekey)
	}

	stored, _ := env.resources.Get(ctx, "plan")
	for name, value := range stored.Fields {
		field := secrets.ParseField(value).(secrets.EncryptedField)
		if _, err := secrets.DecryptString(field, bobsKey); !errors.Is(err, kerrors.ErrIntegrity) {
			t.Errorf("Field %s still opens with the revoked key", name)
		}
	}

	for _, u := range []*testUser{alice, carol} {
		got := openAs(t, env.freshProtocol(u), "plan")
		if got.Fields["title"] != "Q4 Plan" || got.Fields["notes"] != "launch" {
			t.Errorf("%s lost access after rekey: %+v", u.id, got.Fields)
		}
	}
	if got := openAs(t, env.freshProtocol(bob), "plan"); got.Access != AccessNoGrant {
		t.Errorf("Expected bob to have no grant, got %v", got.Access)
	}
}

func TestRevoke_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")
	carol := env.newUser(t, "carol")

	createSealed(t, alice, "plan", map[string]string{"title": "Q4 Plan"})
	if _, err := alice.protocol.Share(ctx, "plan", bob.email); err != nil {
		t.Fatalf("Share failed: %v", err)
	}

	if _, err := alice.protocol.Revoke(ctx, "plan", alice.id, RevokeOptions{}); !errors.Is(err, kerrors.ErrSelfRevoke) {
		t.Errorf("Expected ErrSelfRevoke, got %v", err)
	}
	if _, err := bob.protocol.Revoke(ctx, "plan", bob.id, RevokeOptions{}); !errors.Is(err, kerrors.ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner, got %v", err)
	}
	if _, err := alice.protocol.Revoke(ctx, "plan", carol.id, RevokeOptions{}); !errors.Is(err, kerrors.ErrGrantMissing) {
		t.Errorf("Expected ErrGrantMissing, got %v", err)
	}

	if err := alice.session.Lock(); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if _, err := alice.protocol.Revoke(ctx, "plan", bob.id, RevokeOptions{Rekey: true}); !errors.Is(err, kerrors.ErrVaultLocked) {
		t.Errorf("Expected ErrVaultLocked, got %v", err)
	}
	if grant, _ := env.ledger.Get(ctx, "plan", bob.id); grant == nil {
		t.Errorf("A refused rekeying revoke must keep the grant")
	}
}

// plainLedger hides the GrantReplacer of the wrapped ledger.
type plainLedger struct {
	store.GrantLedger
}

func TestRekey_WithoutReplacer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	ledger := plainLedger{env.ledger}
	p := New(alice.session, env.mem.Identities(), ledger, env.resources)
	if _, err := p.Create(ctx, NewResource{ID: "snip", Type: store.ResourceSnippet, Fields: map[string]string{"code": "fmt.Println()"}, Sealed: true}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := p.Share(ctx, "snip", bob.email); err != nil {
		t.Fatalf("Share failed: %v", err)
	}
	oldKey := mustResolve(t, p, "snip")

	result, err := p.Rekey(ctx, "snip")
	if err != nil {
		t.Fatalf("Rekey failed: %v", err)
	}
	if len(result.Grantees) != 2 {
		t.Errorf("Expected 2 grantees, got %v", result.Grantees)
	}
	if newKey := mustResolve(t, p, "snip"); newKey.Equal(oldKey) {
		t.Errorf("Expected a new document key")
	}

	if got := openAs(t, env.freshProtocol(bob), "snip"); got.Fields["code"] != "fmt.Println()" {
		t.Errorf("Bob cannot read after rekey: %+v", got)
	}
	if grants, _ := env.ledger.List(ctx, "snip"); len(grants) != 2 {
		t.Errorf("Expected 2 grants after rekey, got %d", len(grants))
	}
}

func TestRekey_NotOwnerOrPlain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	createSealed(t, alice, "plan", map[string]string{"title": "Q4 Plan"})
	if _, err := alice.protocol.Share(ctx, "plan", bob.email); err != nil {
		t.Fatalf("Share failed: %v", err)
	}
	if _, err := bob.protocol.Rekey(ctx, "plan"); !errors.Is(err, kerrors.ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner, got %v", err)
	}

	if _, err := alice.protocol.Create(ctx, NewResource{ID: "open", Type: store.ResourceWiki}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := alice.protocol.Rekey(ctx, "open"); !errors.Is(err, kerrors.ErrResourceNotEncrypted) {
		t.Errorf("Expected ErrResourceNotEncrypted, got %v", err)
	}
}

func TestGrants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	createSealed(t, alice, "plan", map[string]string{"title": "Q4 Plan"})
	if _, err := alice.protocol.Share(ctx, "plan", bob.email); err != nil {
		t.Fatalf("Share failed: %v", err)
	}

	grants, err := alice.protocol.Grants(ctx, "plan")
	if err != nil {
		t.Fatalf("Grants failed: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("Expected 2 grants, got %d", len(grants))
	}
	byEmail := map[string]GrantInfo{}
	for _, g := range grants {
		byEmail[g.Email] = g
	}
	if !byEmail[alice.email].Owner || byEmail[bob.email].Owner {
		t.Errorf("Owner flag wrong: %+v", grants)
	}
}
