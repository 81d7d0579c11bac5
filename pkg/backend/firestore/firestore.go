package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/esr/pkg/domain/interfaces"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// memoryDoc is the Firestore document representation of one stored value
type memoryDoc struct {
	Key       string            `firestore:"Key"`
	Value     []byte            `firestore:"Value"`
	Metadata  map[string]string `firestore:"Metadata,omitempty"`
	UpdatedAt time.Time         `firestore:"UpdatedAt"`
}

// Backend is a document adapter backed by Google Cloud Firestore. It has
// no search capability in the base design; the encoder skips it during
// search fan-out.
type Backend struct {
	name       string
	client     *firestore.Client
	collection string
}

var (
	_ interfaces.Backend = &Backend{}
	_ interfaces.Closer  = &Backend{}
)

type Option func(*Backend)

// WithCollection overrides the default "memories" collection name
func WithCollection(name string) Option {
	return func(b *Backend) {
		b.collection = name
	}
}

// New creates a Firestore document backend for the given project. An empty
// databaseID selects the default database.
func New(ctx context.Context, name, projectID, databaseID string, opts ...Option) (*Backend, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	b := &Backend{
		name:       name,
		client:     client,
		collection: "memories",
	}
	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Store(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	if key == "" {
		return goerr.New("key is required")
	}

	doc := &memoryDoc{
		Key:       key,
		Value:     value,
		Metadata:  metadata,
		UpdatedAt: time.Now().UTC(),
	}

	if _, err := b.client.Collection(b.collection).Doc(key).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to store memory", goerr.V("key", key))
	}
	return nil
}

func (b *Backend) Retrieve(ctx context.Context, key string) ([]byte, error) {
	snap, err := b.client.Collection(b.collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "firestore backend miss", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to retrieve memory", goerr.V("key", key))
	}

	var doc memoryDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory", goerr.V("key", key))
	}

	return doc.Value, nil
}

func (b *Backend) Close() error {
	if err := b.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}
