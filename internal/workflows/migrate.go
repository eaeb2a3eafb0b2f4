package workflows

import (
	"context"

	"github.com/PolarWolf314/cipherdesk/internal/audit"
	"github.com/PolarWolf314/cipherdesk/internal/documents"
	"github.com/PolarWolf314/cipherdesk/internal/store"
)

// MigrateOptions configures the migrate workflow.
type MigrateOptions struct {
	// Match is a doublestar glob over resource IDs.
	Match string
	Type  store.ResourceType

	// DryRun lists what would be sealed without changing anything.
	DryRun bool

	// Concurrency overrides migrate.concurrency from the config.
	Concurrency int

	Verbose bool
	Debug   bool
}

// Migrate seals the user's plaintext resources. Individual failures are
// reported in the result; the returned error is only for failures that
// stop the whole run.
func Migrate(ctx context.Context, opts MigrateOptions) (*documents.MigrateResult, error) {
	env, err := openEnvironment(ctx, true, newLogger(opts.Verbose, opts.Debug))
	if err != nil {
		return nil, err
	}
	defer env.Close()

	result, err := env.protocol.Migrate(ctx, documents.MigrateOptions{
		Match:       opts.Match,
		Type:        opts.Type,
		DryRun:      opts.DryRun,
		Concurrency: opts.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	if !result.DryRun && (len(result.Sealed) > 0 || len(result.Failures) > 0) {
		entry := env.auditEntry("migrate")
		entry.Resources = result.Sealed
		entry.FailedCount = len(result.Failures)
		entry.Match = opts.Match
		audit.Log(entry)
	}
	return result, nil
}
