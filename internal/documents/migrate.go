package documents

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/PolarWolf314/cipherdesk/internal/store"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/grailbio/base/sync/multierror"
	"github.com/grailbio/base/traverse"
)

// MigrateOptions selects which of the caller's plaintext resources Migrate
// seals.
type MigrateOptions struct {
	// Match is a doublestar glob over resource IDs. Empty matches all.
	Match string
	// Type restricts migration to one resource type. Empty means all types.
	Type store.ResourceType
	// DryRun lists what would be sealed without changing anything.
	DryRun bool
	// Concurrency overrides the protocol's default parallelism.
	Concurrency int
}

// MigrateFailure records one resource that could not be sealed.
type MigrateFailure struct {
	ResourceID string
	Err        error
}

// MigrateResult summarises a migration run.
type MigrateResult struct {
	// Sealed lists resources encrypted by this run (or that would be, on a dry run).
	Sealed []string
	// Skipped counts matching resources that were already encrypted.
	Skipped  int
	Failures []MigrateFailure
	DryRun   bool
}

// Err returns an aggregate of all per-resource failures, or nil.
func (r *MigrateResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := multierror.NewMultiError(len(r.Failures))
	for _, failure := range r.Failures {
		errs.Add(fmt.Errorf("%s: %w", failure.ResourceID, failure.Err))
	}
	return errs.Err()
}

// Migrate seals the session user's plaintext resources. Each resource is
// handled independently: a failure is recorded and the rest carry on.
// Encrypted resources are skipped, so running Migrate again after an
// interrupted run finishes the job.
func (p *Protocol) Migrate(ctx context.Context, opts MigrateOptions) (*MigrateResult, error) {
	if opts.Match != "" && !doublestar.ValidatePattern(opts.Match) {
		return nil, fmt.Errorf("invalid match pattern %q", opts.Match)
	}
	if opts.Type != "" && !opts.Type.Valid() {
		return nil, fmt.Errorf("unknown resource type %q", opts.Type)
	}

	owned, err := p.resources.List(ctx, store.ResourceFilter{
		OwnerID: p.session.UserID(),
		Type:    opts.Type,
	})
	if err != nil {
		return nil, err
	}

	result := &MigrateResult{DryRun: opts.DryRun}
	var pending []store.Resource
	for _, resource := range owned {
		if opts.Match != "" {
			if ok, _ := doublestar.Match(opts.Match, resource.ID); !ok {
				continue
			}
		}
		if resource.Encrypted {
			result.Skipped++
			continue
		}
		pending = append(pending, resource)
	}

	if opts.DryRun {
		for _, resource := range pending {
			result.Sealed = append(result.Sealed, resource.ID)
		}
		return result, nil
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = p.concurrency
	}

	var mu sync.Mutex
	sealed := make([]bool, len(pending))
	err = traverse.Limit(concurrency).Each(len(pending), func(i int) error {
		resource := pending[i]
		if err := ctx.Err(); err != nil {
			mu.Lock()
			result.Failures = append(result.Failures, MigrateFailure{ResourceID: resource.ID, Err: err})
			mu.Unlock()
			return nil
		}

		if _, err := p.seal(ctx, resource); err != nil {
			p.log.Debugf("Failed to seal %s: %v", resource.ID, err)
			mu.Lock()
			result.Failures = append(result.Failures, MigrateFailure{ResourceID: resource.ID, Err: err})
			mu.Unlock()
			return nil
		}
		sealed[i] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, resource := range pending {
		if sealed[i] {
			result.Sealed = append(result.Sealed, resource.ID)
		}
	}
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].ResourceID < result.Failures[j].ResourceID
	})
	p.log.Debugf("Migration sealed %d, skipped %d, failed %d", len(result.Sealed), result.Skipped, len(result.Failures))
	return result, nil
}
