package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/esr/pkg/domain/model"
	"github.com/secmon-lab/esr/pkg/domain/types"
	"github.com/secmon-lab/esr/pkg/utils/logging"
)

// Forgetting criteria: a thought is eligible only when both hold
const (
	forgetMaxConfidence = 0.3
	forgetMinAge        = time.Hour
)

// StoreThoughtInput carries the caller-facing fields of a store operation.
// Everything except Content is optional and falls back to a default.
type StoreThoughtInput struct {
	Content    string
	Type       types.ThoughtType
	Confidence float64
	CIID       types.CIID
	Namespace  types.Namespace
	Context    map[string]string
}

// StoreThought validates and persists a thought to every backend, placing
// it in the promotion cache on the way. The thought ID is derived from
// namespace and content, so storing the same content twice is idempotent.
func (uc *UseCases) StoreThought(ctx context.Context, input StoreThoughtInput) (*model.Thought, error) {
	thought := model.NewThought(input.Content, input.Type, input.Confidence, input.CIID, input.Namespace)
	thought.Context = input.Context

	if err := thought.Validate(); err != nil {
		return nil, err
	}

	data, err := thought.Encode()
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"namespace": thought.Namespace.String(),
		"type":      thought.Type.String(),
		"ci_id":     thought.CIID.String(),
	}

	uc.cache.StoreWithKey(thought.ID.String(), data, thought.Type.String(), metadata, thought.CIID.String())

	results, err := uc.encoder.StoreEverywhere(ctx, thought.ID.String(), data, metadata)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to store thought", goerr.V("id", thought.ID))
	}

	uc.trackStore(thought)

	logging.From(ctx).Info("stored thought",
		"id", thought.ID,
		"type", thought.Type,
		"namespace", thought.Namespace,
		"backends", results,
	)

	return thought, nil
}

// RecallThought retrieves a thought by ID for the given cognitive
// instance, serving from the promotion cache when possible and otherwise
// synthesizing across all backends. Forgotten thoughts remain reachable
// here: direct recall by ID is the one path forgetting does not close.
func (uc *UseCases) RecallThought(ctx context.Context, id types.MemoryID, ci types.CIID) (*model.SynthesisResult, error) {
	if entry, ok := uc.cache.Retrieve(id.String(), ci.OrDefault().String()); ok {
		return &model.SynthesisResult{
			Status:        types.SynthesisSuccess,
			Sources:       []string{"cache"},
			PrimaryMemory: entry.Content,
			Synthesis:     "served from promotion cache",
		}, nil
	}

	result := uc.encoder.RecallFromEverywhere(ctx, id.String())
	if result.Status == types.SynthesisSuccess {
		// Warm the cache so repeated recalls accumulate access counts
		uc.cache.StoreWithKey(id.String(), result.PrimaryMemory, "", nil, "")
	}

	return result, nil
}

// PromoteThought marks a thought as promoted to long-term relevance and
// rewrites it everywhere.
func (uc *UseCases) PromoteThought(ctx context.Context, id types.MemoryID) error {
	thought, err := uc.fetchThought(ctx, id)
	if err != nil {
		return err
	}
	if thought.Promoted {
		return nil
	}

	thought.Promoted = true
	if err := uc.rewrite(ctx, thought); err != nil {
		return err
	}

	uc.cache.MarkPromoted(id.String())
	logging.From(ctx).Debug("promoted thought", "id", id)
	return nil
}

// ForgetThought soft-deletes a thought, but only when it is both low
// confidence and old enough. Forgetting is reversible in principle: the
// record stays in every backend with the flag set.
func (uc *UseCases) ForgetThought(ctx context.Context, id types.MemoryID) error {
	thought, err := uc.fetchThought(ctx, id)
	if err != nil {
		return err
	}
	if thought.Forgotten {
		return nil
	}

	if thought.Confidence >= forgetMaxConfidence || thought.Age(time.Now().UTC()) <= forgetMinAge {
		return goerr.Wrap(ErrNotForgettable, "forgetting requires low confidence and age",
			goerr.V("id", id),
			goerr.V("confidence", thought.Confidence),
			goerr.V("age", thought.Age(time.Now().UTC()).String()),
		)
	}

	thought.Forgotten = true
	if err := uc.rewrite(ctx, thought); err != nil {
		return err
	}

	logging.From(ctx).Debug("forgot thought", "id", id)
	return nil
}

// fetchThought recalls and decodes a thought, mapping absence and
// non-thought payloads to ErrThoughtNotFound.
func (uc *UseCases) fetchThought(ctx context.Context, id types.MemoryID) (*model.Thought, error) {
	result, err := uc.RecallThought(ctx, id, "")
	if err != nil {
		return nil, err
	}
	thought := result.PrimaryThought()
	if thought == nil {
		return nil, goerr.Wrap(ErrThoughtNotFound, "no thought for ID", goerr.V("id", id))
	}
	return thought, nil
}

// rewrite encodes an updated thought and stores it everywhere under the
// same ID, refreshing the cached copy.
func (uc *UseCases) rewrite(ctx context.Context, thought *model.Thought) error {
	data, err := thought.Encode()
	if err != nil {
		return err
	}

	uc.cache.StoreWithKey(thought.ID.String(), data, thought.Type.String(), nil, thought.CIID.String())

	if _, err := uc.encoder.StoreEverywhere(ctx, thought.ID.String(), data, map[string]string{
		"namespace": thought.Namespace.String(),
		"type":      thought.Type.String(),
		"ci_id":     thought.CIID.String(),
	}); err != nil {
		return goerr.Wrap(err, "failed to rewrite thought", goerr.V("id", thought.ID))
	}
	return nil
}
