package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"

	"github.com/google/uuid"
)

// Memory keeps identities, grants and resources in process memory.
// It implements IdentityStore, GrantLedger, GrantReplacer and ResourceStore.
type Memory struct {
	mu         sync.Mutex
	identities map[string]Identity
	grants     map[string]Grant
	resources  map[string]Resource
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		identities: make(map[string]Identity),
		grants:     make(map[string]Grant),
		resources:  make(map[string]Resource),
	}
}

// Identities returns the store as an IdentityStore.
func (m *Memory) Identities() IdentityStore { return memoryIdentities{m} }

// Grants returns the store as a GrantLedger.
func (m *Memory) Grants() GrantLedger { return memoryGrants{m} }

// Resources returns the store as a ResourceStore.
func (m *Memory) Resources() ResourceStore { return memoryResources{m} }

type memoryIdentities struct{ m *Memory }

func (s memoryIdentities) Get(ctx context.Context, userID string) (*Identity, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	identity, ok := s.m.identities[userID]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

func (s memoryIdentities) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	email = NormalizeEmail(email)
	for _, identity := range s.m.identities {
		if identity.Email == email {
			found := identity
			return &found, nil
		}
	}
	return nil, nil
}

func (s memoryIdentities) Create(ctx context.Context, identity Identity) (*Identity, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	identity.Email = NormalizeEmail(identity.Email)
	if _, ok := s.m.identities[identity.UserID]; ok {
		return nil, fmt.Errorf("%w: user %s", kerrors.ErrIdentityExists, identity.UserID)
	}
	for _, existing := range s.m.identities {
		if existing.Email == identity.Email {
			return nil, fmt.Errorf("%w: email %s", kerrors.ErrIdentityExists, identity.Email)
		}
	}

	now := time.Now().UTC()
	identity.CreatedAt = now
	identity.UpdatedAt = now
	s.m.identities[identity.UserID] = identity
	return &identity, nil
}

func (s memoryIdentities) Update(ctx context.Context, userID string, update IdentityUpdate) (*Identity, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	identity, ok := s.m.identities[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", kerrors.ErrVaultNotFound, userID)
	}

	if update.Email != nil {
		email := NormalizeEmail(*update.Email)
		for id, existing := range s.m.identities {
			if id != userID && existing.Email == email {
				return nil, fmt.Errorf("%w: email %s", kerrors.ErrIdentityExists, email)
			}
		}
		identity.Email = email
	}

	identity.UpdatedAt = time.Now().UTC()
	s.m.identities[userID] = identity
	return &identity, nil
}

type memoryGrants struct{ m *Memory }

func (s memoryGrants) Get(ctx context.Context, resourceID, userID string) (*Grant, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	for _, grant := range s.m.grants {
		if grant.ResourceID == resourceID && grant.UserID == userID {
			found := grant
			return &found, nil
		}
	}
	return nil, nil
}

func (s memoryGrants) List(ctx context.Context, resourceID string) ([]Grant, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	var grants []Grant
	for _, grant := range s.m.grants {
		if grant.ResourceID == resourceID {
			grants = append(grants, grant)
		}
	}
	sortGrants(grants)
	return grants, nil
}

func (s memoryGrants) Create(ctx context.Context, grant Grant) (*Grant, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	for _, existing := range s.m.grants {
		if existing.ResourceID == grant.ResourceID && existing.UserID == grant.UserID {
			return nil, fmt.Errorf("%w: resource %s, user %s", kerrors.ErrGrantExists, grant.ResourceID, grant.UserID)
		}
	}

	prepareGrant(&grant)
	s.m.grants[grant.ID] = grant
	return &grant, nil
}

func (s memoryGrants) Delete(ctx context.Context, grantID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	delete(s.m.grants, grantID)
	return nil
}

func (s memoryGrants) ReplaceGrants(ctx context.Context, resourceID string, grants []Grant) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	seen := make(map[string]bool, len(grants))
	for _, grant := range grants {
		if grant.ResourceID != resourceID {
			return fmt.Errorf("grant for resource %s passed to replace grants of %s", grant.ResourceID, resourceID)
		}
		if seen[grant.UserID] {
			return fmt.Errorf("%w: resource %s, user %s", kerrors.ErrGrantExists, resourceID, grant.UserID)
		}
		seen[grant.UserID] = true
	}

	for id, existing := range s.m.grants {
		if existing.ResourceID == resourceID {
			delete(s.m.grants, id)
		}
	}
	for _, grant := range grants {
		prepareGrant(&grant)
		s.m.grants[grant.ID] = grant
	}
	return nil
}

type memoryResources struct{ m *Memory }

func (s memoryResources) Get(ctx context.Context, id string) (*Resource, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	resource, ok := s.m.resources[id]
	if !ok {
		return nil, nil
	}
	resource.Fields = copyFields(resource.Fields)
	return &resource, nil
}

func (s memoryResources) List(ctx context.Context, filter ResourceFilter) ([]Resource, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	var resources []Resource
	for _, resource := range s.m.resources {
		if filter.matches(resource) {
			resource.Fields = copyFields(resource.Fields)
			resources = append(resources, resource)
		}
	}
	sort.Slice(resources, func(i, j int) bool {
		if !resources[i].CreatedAt.Equal(resources[j].CreatedAt) {
			return resources[i].CreatedAt.Before(resources[j].CreatedAt)
		}
		return resources[i].ID < resources[j].ID
	})
	return resources, nil
}

func (s memoryResources) Put(ctx context.Context, resource Resource) (*Resource, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if resource.ID == "" {
		resource.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if existing, ok := s.m.resources[resource.ID]; ok {
		resource.CreatedAt = existing.CreatedAt
	} else if resource.CreatedAt.IsZero() {
		resource.CreatedAt = now
	}
	resource.UpdatedAt = now
	resource.Fields = copyFields(resource.Fields)

	s.m.resources[resource.ID] = resource

	out := resource
	out.Fields = copyFields(resource.Fields)
	return &out, nil
}

func (s memoryResources) Delete(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	delete(s.m.resources, id)
	return nil
}

func prepareGrant(grant *Grant) {
	if grant.ID == "" {
		grant.ID = uuid.New().String()
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
}

func sortGrants(grants []Grant) {
	sort.Slice(grants, func(i, j int) bool {
		if !grants[i].CreatedAt.Equal(grants[j].CreatedAt) {
			return grants[i].CreatedAt.Before(grants[j].CreatedAt)
		}
		return grants[i].UserID < grants[j].UserID
	})
}
