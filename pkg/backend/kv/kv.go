package kv

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/esr/pkg/domain/interfaces"
)

type entry struct {
	value    []byte
	metadata map[string]string
}

// Backend is an in-memory key/value adapter. It is always available and
// doubles as the development-mode store, mirroring the role of the
// in-memory repository in server deployments.
type Backend struct {
	name    string
	mu      sync.RWMutex
	entries map[string]entry
}

var (
	_ interfaces.Backend  = &Backend{}
	_ interfaces.Searcher = &Backend{}
)

// New creates an in-memory key/value backend with the given name
func New(name string) *Backend {
	return &Backend{
		name:    name,
		entries: make(map[string]entry),
	}
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Store(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	if key == "" {
		return goerr.New("key is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)
	if metadata != nil {
		e.metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			e.metadata[k] = v
		}
	}

	b.entries[key] = e
	return nil
}

func (b *Backend) Retrieve(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, exists := b.entries[key]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "kv backend miss", goerr.V("key", key))
	}

	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, nil
}

// Search performs case-insensitive substring matching over stored values
func (b *Backend) Search(ctx context.Context, query string, limit int) ([][]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	needle := strings.ToLower(query)
	var results [][]byte
	for _, e := range b.entries {
		if limit > 0 && len(results) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(string(e.value)), needle) {
			value := make([]byte, len(e.value))
			copy(value, e.value)
			results = append(results, value)
		}
	}

	return results, nil
}

// Len returns the number of stored entries
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
