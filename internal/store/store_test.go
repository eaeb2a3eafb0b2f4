package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"

	"github.com/go-test/deep"
)

// backend bundles the three stores of one implementation.
type backend struct {
	identities IdentityStore
	grants     GrantLedger
	resources  ResourceStore
}

func backends(t *testing.T) map[string]backend {
	t.Helper()

	mem := NewMemory()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "cipherdesk.db"))
	if err != nil {
		t.Fatalf("Failed to open SQLite store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return map[string]backend{
		"memory": {mem.Identities(), mem.Grants(), mem.Resources()},
		"sqlite": {db.Identities(), db.Grants(), db.Resources()},
	}
}

func testIdentity(userID, email string) Identity {
	return Identity{
		UserID:              userID,
		Email:               email,
		PublicKey:           "cHVibGlj",
		EncryptedPrivateKey: "c2VhbGVk",
		Salt:                "c2FsdA==",
		IV:                  "aXY=",
		Iterations:          100000,
	}
}

func TestIdentityStore(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			missing, err := b.identities.Get(ctx, "nobody")
			if err != nil || missing != nil {
				t.Fatalf("Expected (nil, nil) for a missing identity, got (%v, %v)", missing, err)
			}

			created, err := b.identities.Create(ctx, testIdentity("alice-id", " Alice@Example.com "))
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if created.Email != "alice@example.com" {
				t.Errorf("Expected normalized email, got %q", created.Email)
			}

			got, err := b.identities.Get(ctx, "alice-id")
			if err != nil || got == nil {
				t.Fatalf("Get failed: %v", err)
			}
			want := testIdentity("alice-id", "alice@example.com")
			want.CreatedAt, want.UpdatedAt = got.CreatedAt, got.UpdatedAt
			if diff := deep.Equal(*got, want); diff != nil {
				t.Errorf("Stored identity differs: %v", diff)
			}

			byEmail, err := b.identities.FindByEmail(ctx, "ALICE@example.com")
			if err != nil || byEmail == nil || byEmail.UserID != "alice-id" {
				t.Fatalf("FindByEmail failed: %v, %v", byEmail, err)
			}

			if _, err := b.identities.Create(ctx, testIdentity("alice-id", "other@example.com")); !errors.Is(err, kerrors.ErrIdentityExists) {
				t.Errorf("Expected ErrIdentityExists for duplicate user, got %v", err)
			}
			if _, err := b.identities.Create(ctx, testIdentity("imposter", "alice@example.com")); !errors.Is(err, kerrors.ErrIdentityExists) {
				t.Errorf("Expected ErrIdentityExists for duplicate email, got %v", err)
			}
		})
	}
}

func TestIdentityStore_UpdateEmailOnly(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := b.identities.Create(ctx, testIdentity("alice-id", "alice@old.example")); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if _, err := b.identities.Create(ctx, testIdentity("bob-id", "bob@example.com")); err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			email := "Alice@New.example"
			updated, err := b.identities.Update(ctx, "alice-id", IdentityUpdate{Email: &email})
			if err != nil {
				t.Fatalf("Update failed: %v", err)
			}
			if updated.Email != "alice@new.example" {
				t.Errorf("Expected updated email, got %q", updated.Email)
			}
			if updated.PublicKey != "cHVibGlj" || updated.EncryptedPrivateKey != "c2VhbGVk" {
				t.Errorf("Update touched key material")
			}

			taken := "bob@example.com"
			if _, err := b.identities.Update(ctx, "alice-id", IdentityUpdate{Email: &taken}); !errors.Is(err, kerrors.ErrIdentityExists) {
				t.Errorf("Expected ErrIdentityExists, got %v", err)
			}
			if _, err := b.identities.Update(ctx, "ghost", IdentityUpdate{Email: &email}); !errors.Is(err, kerrors.ErrVaultNotFound) {
				t.Errorf("Expected ErrVaultNotFound, got %v", err)
			}
		})
	}
}

func TestGrantLedger(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			none, err := b.grants.Get(ctx, "res-1", "alice-id")
			if err != nil || none != nil {
				t.Fatalf("Expected (nil, nil) for a missing grant, got (%v, %v)", none, err)
			}

			created, err := b.grants.Create(ctx, Grant{ResourceID: "res-1", ResourceType: ResourceProject, UserID: "alice-id", EncryptedKey: "d3JhcA=="})
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if created.ID == "" {
				t.Errorf("Expected an ID to be assigned")
			}

			if _, err := b.grants.Create(ctx, Grant{ResourceID: "res-1", ResourceType: ResourceProject, UserID: "alice-id", EncryptedKey: "b3RoZXI="}); !errors.Is(err, kerrors.ErrGrantExists) {
				t.Fatalf("Expected ErrGrantExists, got %v", err)
			}

			if _, err := b.grants.Create(ctx, Grant{ResourceID: "res-1", ResourceType: ResourceProject, UserID: "bob-id", EncryptedKey: "Ym9i"}); err != nil {
				t.Fatalf("Create for second user failed: %v", err)
			}
			if _, err := b.grants.Create(ctx, Grant{ResourceID: "res-2", ResourceType: ResourceWiki, UserID: "alice-id", EncryptedKey: "YWxpY2U="}); err != nil {
				t.Fatalf("Create for second resource failed: %v", err)
			}

			grants, err := b.grants.List(ctx, "res-1")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(grants) != 2 {
				t.Fatalf("Expected 2 grants for res-1, got %d", len(grants))
			}

			got, err := b.grants.Get(ctx, "res-1", "alice-id")
			if err != nil || got == nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.EncryptedKey != "d3JhcA==" {
				t.Errorf("First write should win, got %q", got.EncryptedKey)
			}

			if err := b.grants.Delete(ctx, got.ID); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			gone, err := b.grants.Get(ctx, "res-1", "alice-id")
			if err != nil || gone != nil {
				t.Errorf("Expected grant to be gone, got (%v, %v)", gone, err)
			}
		})
	}
}

func TestGrantLedger_ConcurrentCreateKeepsOne(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const writers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				created   int
				conflicts int
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := b.grants.Create(ctx, Grant{ResourceID: "res-1", ResourceType: ResourceSnippet, UserID: "bob-id", EncryptedKey: "a2V5"})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						created++
					case errors.Is(err, kerrors.ErrGrantExists):
						conflicts++
					default:
						t.Errorf("Unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			if created != 1 || conflicts != writers-1 {
				t.Errorf("Expected 1 create and %d conflicts, got %d and %d", writers-1, created, conflicts)
			}
		})
	}
}

func TestGrantReplacer(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			replacer, ok := b.grants.(GrantReplacer)
			if !ok {
				t.Fatalf("%s ledger does not implement GrantReplacer", name)
			}

			for _, user := range []string{"alice-id", "bob-id", "carol-id"} {
				if _, err := b.grants.Create(ctx, Grant{ResourceID: "res-1", ResourceType: ResourceProject, UserID: user, EncryptedKey: "b2xk"}); err != nil {
					t.Fatalf("Create failed: %v", err)
				}
			}

			err := replacer.ReplaceGrants(ctx, "res-1", []Grant{
				{ResourceID: "res-1", ResourceType: ResourceProject, UserID: "alice-id", EncryptedKey: "bmV3LWE="},
				{ResourceID: "res-1", ResourceType: ResourceProject, UserID: "carol-id", EncryptedKey: "bmV3LWM="},
			})
			if err != nil {
				t.Fatalf("ReplaceGrants failed: %v", err)
			}

			grants, err := b.grants.List(ctx, "res-1")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			keys := map[string]string{}
			for _, g := range grants {
				keys[g.UserID] = g.EncryptedKey
			}
			want := map[string]string{"alice-id": "bmV3LWE=", "carol-id": "bmV3LWM="}
			if diff := deep.Equal(keys, want); diff != nil {
				t.Errorf("Grants after replace differ: %v", diff)
			}
		})
	}
}

func TestResourceStore(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			missing, err := b.resources.Get(ctx, "nope")
			if err != nil || missing != nil {
				t.Fatalf("Expected (nil, nil) for a missing resource, got (%v, %v)", missing, err)
			}

			plan, err := b.resources.Put(ctx, Resource{
				ID:      "plan",
				Type:    ResourceProject,
				OwnerID: "alice-id",
				Fields:  map[string]string{"title": "Q4 Plan", "notes": "draft"},
			})
			if err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if plan.CreatedAt.IsZero() {
				t.Errorf("Expected CreatedAt to be set")
			}

			if _, err := b.resources.Put(ctx, Resource{ID: "guide", Type: ResourceWiki, OwnerID: "bob-id", Encrypted: true, Fields: map[string]string{"content": "x"}}); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			plan.Encrypted = true
			plan.Fields["title"] = `{"ciphertext":"Y2lwaGVy","iv":"aXY="}`
			updated, err := b.resources.Put(ctx, *plan)
			if err != nil {
				t.Fatalf("Update failed: %v", err)
			}
			if !updated.CreatedAt.Equal(plan.CreatedAt) {
				t.Errorf("CreatedAt changed on update")
			}

			got, err := b.resources.Get(ctx, "plan")
			if err != nil || got == nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !got.Encrypted || got.Fields["title"] != `{"ciphertext":"Y2lwaGVy","iv":"aXY="}` || got.Fields["notes"] != "draft" {
				t.Errorf("Unexpected stored resource: %+v", got)
			}

			encrypted := true
			all, err := b.resources.List(ctx, ResourceFilter{Encrypted: &encrypted})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(all) != 2 {
				t.Errorf("Expected 2 encrypted resources, got %d", len(all))
			}

			owned, err := b.resources.List(ctx, ResourceFilter{OwnerID: "bob-id", Type: ResourceWiki})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(owned) != 1 || owned[0].ID != "guide" {
				t.Errorf("Expected only 'guide', got %+v", owned)
			}

			if err := b.resources.Delete(ctx, "plan"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if gone, _ := b.resources.Get(ctx, "plan"); gone != nil {
				t.Errorf("Expected resource to be deleted")
			}
		})
	}
}

func TestMemoryResourceStore_CopiesFields(t *testing.T) {
	ctx := context.Background()
	resources := NewMemory().Resources()

	fields := map[string]string{"title": "original"}
	if _, err := resources.Put(ctx, Resource{ID: "r", Type: ResourceSnippet, OwnerID: "o", Fields: fields}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	fields["title"] = "mutated"

	got, _ := resources.Get(ctx, "r")
	if got.Fields["title"] != "original" {
		t.Errorf("Stored fields alias the caller's map")
	}
}

func TestResourceType_Valid(t *testing.T) {
	for _, rt := range ResourceTypes {
		if !rt.Valid() {
			t.Errorf("Expected %q to be valid", rt)
		}
	}
	if ResourceType("spreadsheet").Valid() {
		t.Errorf("Expected unknown type to be invalid")
	}
}
