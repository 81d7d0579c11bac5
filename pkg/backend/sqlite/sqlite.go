package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/esr/pkg/domain/interfaces"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	namespace  TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_namespace ON memories(namespace);
`

// Backend is a relational adapter backed by an embedded SQLite database
// (pure Go driver, no cgo). Writes are last-write-wins per key via upsert.
type Backend struct {
	name string
	db   *sql.DB
}

var (
	_ interfaces.Backend  = &Backend{}
	_ interfaces.Searcher = &Backend{}
	_ interfaces.Closer   = &Backend{}
)

// New opens (or creates) the SQLite database at path and prepares the
// memories table. Use ":memory:" for an ephemeral store.
func New(name, path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize sqlite schema", goerr.V("path", path))
	}

	return &Backend{name: name, db: db}, nil
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Store(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	if key == "" {
		return goerr.New("key is required")
	}

	const query = `INSERT INTO memories (key, value, namespace, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, namespace = excluded.namespace, updated_at = excluded.updated_at`

	if _, err := b.db.ExecContext(ctx, query, key, value, metadata["namespace"], time.Now().UTC()); err != nil {
		return goerr.Wrap(err, "failed to store memory", goerr.V("key", key))
	}
	return nil
}

func (b *Backend) Retrieve(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.QueryRowContext(ctx, `SELECT value FROM memories WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "sqlite backend miss", goerr.V("key", key))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve memory", goerr.V("key", key))
	}
	return value, nil
}

// Search matches values by case-insensitive LIKE over the stored payload
func (b *Backend) Search(ctx context.Context, query string, limit int) ([][]byte, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := b.db.QueryContext(ctx,
		`SELECT value FROM memories WHERE value LIKE '%' || ? || '%' ORDER BY updated_at DESC LIMIT ?`,
		query, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search memories", goerr.V("query", query))
	}
	defer func() { _ = rows.Close() }()

	var results [][]byte
	for rows.Next() {
		var value []byte
		if err := rows.Scan(&value); err != nil {
			return nil, goerr.Wrap(err, "failed to scan memory row")
		}
		results = append(results, value)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate memory rows")
	}

	return results, nil
}

func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close sqlite database")
	}
	return nil
}
