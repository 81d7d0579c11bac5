package config

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/esr/pkg/backend/chromem"
	"github.com/secmon-lab/esr/pkg/backend/firestore"
	"github.com/secmon-lab/esr/pkg/backend/kv"
	"github.com/secmon-lab/esr/pkg/backend/sqlite"
	"github.com/secmon-lab/esr/pkg/domain/interfaces"
	"github.com/secmon-lab/esr/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Backend holds CLI flags for the storage backend set. Every enabled
// backend participates in the store-everywhere fan-out.
type Backend struct {
	enableKV          bool
	sqlitePath        string
	enableChromem     bool
	firestoreProject  string
	firestoreDatabase string
	timeout           time.Duration
}

// Flags returns CLI flags for backend configuration
func (b *Backend) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "backend-kv",
			Usage:       "Enable the in-memory key-value backend",
			Value:       true,
			Sources:     cli.EnvVars("ESR_BACKEND_KV"),
			Destination: &b.enableKV,
		},
		&cli.StringFlag{
			Name:        "backend-sqlite-path",
			Usage:       "SQLite database path (empty disables the SQLite backend)",
			Sources:     cli.EnvVars("ESR_BACKEND_SQLITE_PATH"),
			Destination: &b.sqlitePath,
		},
		&cli.BoolFlag{
			Name:        "backend-chromem",
			Usage:       "Enable the chromem vector backend (requires an embedder)",
			Sources:     cli.EnvVars("ESR_BACKEND_CHROMEM"),
			Destination: &b.enableChromem,
		},
		&cli.StringFlag{
			Name:        "backend-firestore-project",
			Usage:       "Firestore project ID (empty disables the Firestore backend)",
			Sources:     cli.EnvVars("ESR_BACKEND_FIRESTORE_PROJECT"),
			Destination: &b.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "backend-firestore-database",
			Usage:       "Firestore database ID",
			Sources:     cli.EnvVars("ESR_BACKEND_FIRESTORE_DATABASE"),
			Destination: &b.firestoreDatabase,
		},
		&cli.DurationFlag{
			Name:        "backend-timeout",
			Usage:       "Per-backend operation timeout",
			Value:       3 * time.Second,
			Sources:     cli.EnvVars("ESR_BACKEND_TIMEOUT"),
			Destination: &b.timeout,
		},
	}
}

// Timeout returns the per-backend operation timeout
func (b *Backend) Timeout() time.Duration {
	return b.timeout
}

// Configure builds the enabled backend set. The embedder may be nil, in
// which case enabling the chromem backend is a configuration error.
func (b *Backend) Configure(ctx context.Context, embedder interfaces.Embedder) (map[string]interfaces.Backend, error) {
	backends := make(map[string]interfaces.Backend)
	logger := logging.From(ctx)

	if b.enableKV {
		backends["kv"] = kv.New("kv")
		logger.Info("kv backend enabled")
	}

	if b.sqlitePath != "" {
		backend, err := sqlite.New("sqlite", b.sqlitePath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open sqlite backend", goerr.V("path", b.sqlitePath))
		}
		backends["sqlite"] = backend
		logger.Info("sqlite backend enabled", "path", b.sqlitePath)
	}

	if b.enableChromem {
		if embedder == nil {
			return nil, goerr.Wrap(ErrInvalidOption, "chromem backend requires an embedder (set --gemini-project)")
		}
		backend, err := chromem.New("chromem", embedder)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create chromem backend")
		}
		backends["chromem"] = backend
		logger.Info("chromem backend enabled")
	}

	if b.firestoreProject != "" {
		backend, err := firestore.New(ctx, "firestore", b.firestoreProject, b.firestoreDatabase)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create firestore backend",
				goerr.V("project", b.firestoreProject))
		}
		backends["firestore"] = backend
		logger.Info("firestore backend enabled", "project", b.firestoreProject)
	}

	if len(backends) == 0 {
		return nil, goerr.Wrap(ErrNoBackends, "enable at least one backend")
	}

	return backends, nil
}
