package interfaces

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// Sentinel errors shared by all backend adapters
var (
	// ErrNotFound signals that a backend does not hold the key. Absence
	// is routine control flow, not a failure of the backend.
	ErrNotFound = goerr.New("key not found")

	// ErrSearchUnsupported signals that a backend has no search
	// capability. Adapters must return this rather than silently
	// returning wrong results.
	ErrSearchUnsupported = goerr.New("search not supported by backend")
)

// Backend is the minimal contract a storage technology must satisfy to
// participate in the fan-out. Implementations must be safe for concurrent
// use; a failed call affects that backend only and never aborts the
// overall fan-out.
type Backend interface {
	// Name returns the backend's registered name
	Name() string

	// Store persists value under key. Metadata is backend-specific
	// annotation and may be ignored.
	Store(ctx context.Context, key string, value []byte, metadata map[string]string) error

	// Retrieve returns the value for key, or ErrNotFound
	Retrieve(ctx context.Context, key string) ([]byte, error)
}

// Searcher is the optional search capability of a backend. Detected at
// runtime via type assertion; backends without it are skipped during
// search fan-out.
type Searcher interface {
	// Search returns up to limit values matching the query
	Search(ctx context.Context, query string, limit int) ([][]byte, error)
}

// Closer is implemented by backends that hold external resources
type Closer interface {
	Close() error
}

// Embedder provides text embeddings for semantic search. Its absence
// degrades search to keyword matching, never a hard failure.
type Embedder interface {
	// Embed returns a vector embedding for the given text
	Embed(ctx context.Context, text string) ([]float32, error)
}
