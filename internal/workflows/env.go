package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/cipherdesk/internal/audit"
	"github.com/PolarWolf314/cipherdesk/internal/configs"
	"github.com/PolarWolf314/cipherdesk/internal/documents"
	logger "github.com/PolarWolf314/cipherdesk/internal/logging"
	"github.com/PolarWolf314/cipherdesk/internal/session"
	"github.com/PolarWolf314/cipherdesk/internal/store"
)

// environment wires the configured user's stores, session and protocol.
type environment struct {
	config   *configs.Config
	db       *store.SQLite
	session  *session.Controller
	protocol *documents.Protocol
}

// openEnvironment loads the config, opens the database and restores any
// unlocked session left by an earlier command. With requireUser it fails
// with ErrUserNotConfigured until an email is configured.
func openEnvironment(ctx context.Context, requireUser bool, log logger.Logger) (*environment, error) {
	config, err := configs.EnsureConfig()
	if err != nil {
		return nil, err
	}
	if requireUser {
		if err := config.RequireUser(); err != nil {
			return nil, err
		}
	}

	log.Debugf("Opening database %s", config.DatabasePath())
	db, err := store.OpenSQLite(config.DatabasePath())
	if err != nil {
		return nil, err
	}

	ctrl := session.New(
		config.User.ID,
		db.Identities(),
		ephemeralStore(log),
		session.WithIterations(config.Vault.Iterations),
		session.WithLogger(log),
	)
	if _, err := ctrl.Restore(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("restoring session: %w", err)
	}

	protocol := documents.New(ctrl, db.Identities(), db.Grants(), db.Resources(),
		documents.WithLogger(log),
		documents.WithConcurrency(config.Migrate.Concurrency),
	)

	return &environment{
		config:   config,
		db:       db,
		session:  ctrl,
		protocol: protocol,
	}, nil
}

// ephemeralStore keeps the unlocked key in the runtime dir. Without one the
// key stays in memory and the session ends with the command.
func ephemeralStore(log logger.Logger) session.EphemeralStore {
	if !configs.CipherdeskSettings.HasRuntimeDir() {
		log.Debugf("No runtime directory, keeping the session in memory")
		return session.NewMemoryStore()
	}
	return session.NewRuntimeStore(configs.CipherdeskSettings.RuntimePath)
}

func (e *environment) Close() error {
	return e.db.Close()
}

// auditEntry starts an audit entry for the configured user.
func (e *environment) auditEntry(op string) audit.Entry {
	return audit.Entry{Operation: op, User: e.config.User.Email, UserID: e.config.User.ID}
}

func newLogger(verbose, debug bool) logger.Logger {
	return logger.Logger{Verbose: verbose, Debug: debug}
}
