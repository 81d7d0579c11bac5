package chromem

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	chromem "github.com/philippgille/chromem-go"
	"github.com/secmon-lab/esr/pkg/domain/interfaces"
)

// Backend is a vector adapter backed by chromem-go, a pure Go embedded
// vector database. Every stored value is embedded through the configured
// Embedder; Search runs cosine-similarity queries over the collection.
// chromem has no direct get-by-ID, so a side map mirrors values for
// Retrieve.
type Backend struct {
	name       string
	collection *chromem.Collection
	embedder   interfaces.Embedder

	mu     sync.RWMutex
	values map[string][]byte
}

var (
	_ interfaces.Backend  = &Backend{}
	_ interfaces.Searcher = &Backend{}
)

// New creates a vector backend. The embedder is required: without one the
// adapter cannot index content and construction fails.
func New(name string, embedder interfaces.Embedder) (*Backend, error) {
	if embedder == nil {
		return nil, goerr.New("chromem backend requires an embedder")
	}

	db := chromem.NewDB()

	embedFn := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	collection, err := db.CreateCollection(name, nil, embedFn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chromem collection", goerr.V("name", name))
	}

	return &Backend{
		name:       name,
		collection: collection,
		embedder:   embedder,
		values:     make(map[string][]byte),
	}, nil
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Store(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	if key == "" {
		return goerr.New("key is required")
	}

	embedding, err := b.embedder.Embed(ctx, string(value))
	if err != nil {
		return goerr.Wrap(err, "failed to embed value", goerr.V("key", key))
	}

	doc := chromem.Document{
		ID:        key,
		Content:   string(value),
		Embedding: embedding,
		Metadata:  metadata,
	}
	if err := b.collection.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to add document", goerr.V("key", key))
	}

	b.mu.Lock()
	stored := make([]byte, len(value))
	copy(stored, value)
	b.values[key] = stored
	b.mu.Unlock()

	return nil
}

func (b *Backend) Retrieve(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, exists := b.values[key]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "chromem backend miss", goerr.V("key", key))
	}

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// Search embeds the query and returns the most similar stored values
func (b *Backend) Search(ctx context.Context, query string, limit int) ([][]byte, error) {
	if limit <= 0 {
		limit = 10
	}

	// chromem rejects nResults larger than the collection size
	if count := b.collection.Count(); count < limit {
		limit = count
	}
	if limit == 0 {
		return nil, nil
	}

	embedding, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query", goerr.V("query", query))
	}

	results, err := b.collection.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query collection", goerr.V("query", query))
	}

	values := make([][]byte, 0, len(results))
	for _, r := range results {
		values = append(values, []byte(r.Content))
	}
	return values, nil
}
