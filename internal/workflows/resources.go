package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/cipherdesk/internal/audit"
	"github.com/PolarWolf314/cipherdesk/internal/documents"
	"github.com/PolarWolf314/cipherdesk/internal/store"

	"github.com/bmatcuk/doublestar/v4"
)

// CreateResourceOptions configures the resource create workflow.
type CreateResourceOptions struct {
	// ID of the new resource. Empty assigns a uuid.
	ID     string
	Type   store.ResourceType
	Fields map[string]string

	// Plain stores the resource without encryption.
	Plain bool

	Verbose bool
	Debug   bool
}

// CreateResourceResult contains the created resource.
type CreateResourceResult struct {
	Resource *store.Resource
}

// CreateResource stores a new resource owned by the user, sealed unless
// Plain is set. Sealing needs the user's vault but not an unlocked session.
func CreateResource(ctx context.Context, opts CreateResourceOptions) (*CreateResourceResult, error) {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	resource, err := env.protocol.Create(ctx, documents.NewResource{
		ID:     opts.ID,
		Type:   opts.Type,
		Fields: opts.Fields,
		Sealed: !opts.Plain,
	})
	if err != nil {
		return nil, err
	}

	entry := env.auditEntry("create")
	entry.ResourceID = resource.ID
	entry.ResourceType = string(resource.Type)
	entry.Sealed = resource.Encrypted
	audit.Log(entry)

	return &CreateResourceResult{Resource: resource}, nil
}

// SetFieldsOptions configures the resource set workflow.
type SetFieldsOptions struct {
	ID      string
	Fields  map[string]string
	Verbose bool
	Debug   bool
}

// SetFields adds or overwrites fields on an existing resource, encrypting
// them when the resource is sealed.
func SetFields(ctx context.Context, opts SetFieldsOptions) (*store.Resource, error) {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	resource, err := env.protocol.SetFields(ctx, opts.ID, opts.Fields)
	if err != nil {
		return nil, err
	}

	entry := env.auditEntry("update")
	entry.ResourceID = resource.ID
	audit.Log(entry)

	return resource, nil
}

// ShowResourceOptions configures the resource show workflow.
type ShowResourceOptions struct {
	ID      string
	Verbose bool
	Debug   bool
}

// ShowResource opens a resource for display. Fields the user cannot read
// come back as placeholders rather than an error.
func ShowResource(ctx context.Context, opts ShowResourceOptions) (*documents.OpenedDocument, error) {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	return env.protocol.OpenResource(ctx, opts.ID)
}

// ListResourcesOptions configures the resource list workflow.
type ListResourcesOptions struct {
	Type store.ResourceType

	// Match is a doublestar glob over resource IDs.
	Match string

	// Mine restricts the list to resources the user owns.
	Mine bool

	Verbose bool
	Debug   bool
}

// ResourceSummary is one row of a resource listing.
type ResourceSummary struct {
	ID        string             `json:"id"`
	Type      store.ResourceType `json:"type"`
	OwnerID   string             `json:"owner_id"`
	Encrypted bool               `json:"encrypted"`
	// Readable is true for plain resources and for sealed ones the user
	// holds a grant for.
	Readable bool `json:"readable"`
	Owned    bool `json:"owned"`
}

// ListResources lists resources with whether the user can read them.
func ListResources(ctx context.Context, opts ListResourcesOptions) ([]ResourceSummary, error) {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	if opts.Match != "" && !doublestar.ValidatePattern(opts.Match) {
		return nil, fmt.Errorf("invalid match pattern %q", opts.Match)
	}

	filter := store.ResourceFilter{Type: opts.Type}
	if opts.Mine {
		filter.OwnerID = env.config.User.ID
	}
	resources, err := env.db.Resources().List(ctx, filter)
	if err != nil {
		return nil, err
	}

	var summaries []ResourceSummary
	for _, resource := range resources {
		if opts.Match != "" {
			if ok, _ := doublestar.Match(opts.Match, resource.ID); !ok {
				continue
			}
		}

		summary := ResourceSummary{
			ID:        resource.ID,
			Type:      resource.Type,
			OwnerID:   resource.OwnerID,
			Encrypted: resource.Encrypted,
			Readable:  !resource.Encrypted,
			Owned:     resource.OwnerID == env.config.User.ID,
		}
		if resource.Encrypted {
			grant, err := env.db.Grants().Get(ctx, resource.ID, env.config.User.ID)
			if err != nil {
				return nil, err
			}
			summary.Readable = grant != nil
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// DeleteResourceOptions configures the resource delete workflow.
type DeleteResourceOptions struct {
	ID      string
	Verbose bool
	Debug   bool
}

// DeleteResource removes a resource the user owns together with its grants.
func DeleteResource(ctx context.Context, opts DeleteResourceOptions) error {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.protocol.Delete(ctx, opts.ID); err != nil {
		return err
	}

	entry := env.auditEntry("delete")
	entry.ResourceID = opts.ID
	audit.Log(entry)
	return nil
}
