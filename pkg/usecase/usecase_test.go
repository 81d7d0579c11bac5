package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/esr/pkg/backend/kv"
	"github.com/secmon-lab/esr/pkg/domain/interfaces"
	"github.com/secmon-lab/esr/pkg/domain/model"
	"github.com/secmon-lab/esr/pkg/domain/types"
	"github.com/secmon-lab/esr/pkg/service/encoder"
	"github.com/secmon-lab/esr/pkg/usecase"
)

func newUseCases(t *testing.T) (*usecase.UseCases, *kv.Backend) {
	t.Helper()

	backend := kv.New("kv")
	enc, err := encoder.New(map[string]interfaces.Backend{"kv": backend})
	gt.NoError(t, err).Required()

	return usecase.New(enc), backend
}

// seedThought writes a crafted thought directly to the backend, bypassing
// the workflow layer. Used to set up aged or flagged records.
func seedThought(t *testing.T, backend *kv.Backend, thought *model.Thought) {
	t.Helper()

	data, err := thought.Encode()
	gt.NoError(t, err).Required()
	gt.NoError(t, backend.Store(context.Background(), thought.ID.String(), data, nil))
}

func TestStoreAndRecallThought(t *testing.T) {
	uc, backend := newUseCases(t)
	ctx := context.Background()

	stored, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{
		Content:    "the retro surfaced three action items",
		Type:       types.ThoughtTypeObservation,
		Confidence: 0.8,
		CIID:       "agent-1",
		Namespace:  "work",
	})
	gt.NoError(t, err).Required()
	gt.Number(t, backend.Len()).Equal(1)

	result, err := uc.RecallThought(ctx, stored.ID, "")
	gt.NoError(t, err).Required()
	gt.Value(t, result.Status).Equal(types.SynthesisSuccess)

	thought := result.PrimaryThought()
	gt.Value(t, thought).NotNil().Required()
	gt.Value(t, thought.Content).Equal("the retro surfaced three action items")
	gt.Value(t, thought.Type).Equal(types.ThoughtTypeObservation)
	gt.Value(t, thought.Namespace).Equal(types.Namespace("work"))
}

func TestStoreThoughtRejectsEmptyContent(t *testing.T) {
	uc, backend := newUseCases(t)

	_, err := uc.StoreThought(context.Background(), usecase.StoreThoughtInput{})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrEmptyContent))
	gt.Number(t, backend.Len()).Equal(0)
}

func TestStoreThoughtIsIdempotent(t *testing.T) {
	uc, backend := newUseCases(t)
	ctx := context.Background()

	first, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "same idea"})
	gt.NoError(t, err).Required()
	second, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "same idea"})
	gt.NoError(t, err).Required()

	gt.Value(t, first.ID).Equal(second.ID)
	gt.Number(t, backend.Len()).Equal(1)
}

func TestRecallThoughtServesFromCache(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()

	stored, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "cached thought"})
	gt.NoError(t, err).Required()

	result, err := uc.RecallThought(ctx, stored.ID, "")
	gt.NoError(t, err).Required()
	gt.Array(t, result.Sources).Length(1)
	gt.Value(t, result.Sources[0]).Equal("cache")
	gt.Number(t, uc.CacheStats().Hits).Equal(1)
}

func TestRecallThoughtNotFound(t *testing.T) {
	uc, _ := newUseCases(t)

	result, err := uc.RecallThought(context.Background(), "does-not-exist", "")
	gt.NoError(t, err).Required()
	gt.Value(t, result.Status).Equal(types.SynthesisNoData)
}

func TestCreateAssociationAccumulatesStrength(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()

	a, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "thought a"})
	gt.NoError(t, err).Required()
	b, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "thought b"})
	gt.NoError(t, err).Required()

	first, err := uc.CreateAssociation(ctx, a.ID, b.ID, types.AssociationRelated, 0.6)
	gt.NoError(t, err).Required()
	gt.Value(t, first.Strength).Equal(0.6)
	gt.Number(t, uc.AssociationCount()).Equal(1)

	// Reinforcing the same edge caps at 1.0 and creates no new edge
	second, err := uc.CreateAssociation(ctx, a.ID, b.ID, types.AssociationRelated, 0.6)
	gt.NoError(t, err).Required()
	gt.Value(t, second.Strength).Equal(1.0)
	gt.Number(t, uc.AssociationCount()).Equal(1)
}

func TestCreateAssociationRejectsSelfLoop(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()

	a, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "lonely thought"})
	gt.NoError(t, err).Required()

	_, err = uc.CreateAssociation(ctx, a.ID, a.ID, types.AssociationRelated, 0.5)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, usecase.ErrSelfAssociation))
}

func TestCreateAssociationRequiresBothThoughts(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()

	a, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "existing"})
	gt.NoError(t, err).Required()

	_, err = uc.CreateAssociation(ctx, a.ID, "ghost", types.AssociationRelated, 0.5)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, usecase.ErrThoughtNotFound))
}

func TestBuildContextGathersPrimaryAndAssociated(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()

	a, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "release checklist drafted"})
	gt.NoError(t, err).Required()
	b, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "staging looks healthy"})
	gt.NoError(t, err).Required()
	c, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "rollback plan agreed"})
	gt.NoError(t, err).Required()

	_, err = uc.CreateAssociation(ctx, a.ID, b.ID, types.AssociationSequence, 0.5)
	gt.NoError(t, err).Required()
	_, err = uc.CreateAssociation(ctx, b.ID, c.ID, types.AssociationSequence, 0.5)
	gt.NoError(t, err).Required()

	// Only the first thought matches the topic; the rest is reached
	// through the association chain
	result, err := uc.BuildContext(ctx, "release", 2, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, result.Primary).Length(1).Required()
	gt.Value(t, result.Primary[0].ID).Equal(a.ID)
	gt.Array(t, result.Associated).Length(2).Required()
	gt.Value(t, result.Associated[0].ID).Equal(b.ID)
	gt.Value(t, result.Associated[1].ID).Equal(c.ID)
}

func TestBuildContextTerminatesOnCycle(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()

	a, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "chicken"})
	gt.NoError(t, err).Required()
	b, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "egg"})
	gt.NoError(t, err).Required()

	_, err = uc.CreateAssociation(ctx, a.ID, b.ID, types.AssociationCause, 0.5)
	gt.NoError(t, err).Required()
	_, err = uc.CreateAssociation(ctx, b.ID, a.ID, types.AssociationCause, 0.5)
	gt.NoError(t, err).Required()

	result, err := uc.BuildContext(ctx, "chicken", 10, 100)
	gt.NoError(t, err).Required()
	gt.Array(t, result.Primary).Length(1)
	gt.Array(t, result.Associated).Length(1)
}

func TestBuildContextRespectsMaxItems(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()

	hub, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "incident review"})
	gt.NoError(t, err).Required()
	for _, content := range []string{"alert fired", "pager woke me", "dashboard was red", "postmortem filed"} {
		spoke, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: content})
		gt.NoError(t, err).Required()
		_, err = uc.CreateAssociation(ctx, hub.ID, spoke.ID, types.AssociationRelated, 0.5)
		gt.NoError(t, err).Required()
	}

	result, err := uc.BuildContext(ctx, "incident", 2, 3)
	gt.NoError(t, err).Required()
	gt.Array(t, result.Primary).Length(1)
	gt.Array(t, result.Associated).Length(3)
}

func TestBuildContextNoMatches(t *testing.T) {
	uc, _ := newUseCases(t)

	result, err := uc.BuildContext(context.Background(), "ghost topic", 2, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, result.Primary).Length(0)
	gt.Array(t, result.Associated).Length(0)
}

func TestForgetThoughtRequiresBothCriteria(t *testing.T) {
	uc, backend := newUseCases(t)
	ctx := context.Background()

	t.Run("fresh low-confidence thought is kept", func(t *testing.T) {
		thought := model.NewThought("fresh doubt", "", 0.1, "", "")
		seedThought(t, backend, thought)

		err := uc.ForgetThought(ctx, thought.ID)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, usecase.ErrNotForgettable))
	})

	t.Run("old high-confidence thought is kept", func(t *testing.T) {
		thought := model.NewThought("old certainty", "", 0.9, "", "")
		thought.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
		seedThought(t, backend, thought)

		err := uc.ForgetThought(ctx, thought.ID)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, usecase.ErrNotForgettable))
	})

	t.Run("old low-confidence thought is forgotten", func(t *testing.T) {
		thought := model.NewThought("old doubt", "", 0.1, "", "")
		thought.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
		seedThought(t, backend, thought)

		gt.NoError(t, uc.ForgetThought(ctx, thought.ID))

		// Still reachable by direct ID, with the flag set
		result, err := uc.RecallThought(ctx, thought.ID, "")
		gt.NoError(t, err).Required()
		recalled := result.PrimaryThought()
		gt.Value(t, recalled).NotNil().Required()
		gt.True(t, recalled.Forgotten)
	})
}

func TestPromoteThought(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()

	stored, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "worth keeping"})
	gt.NoError(t, err).Required()

	gt.NoError(t, uc.PromoteThought(ctx, stored.ID))

	result, err := uc.RecallThought(ctx, stored.ID, "")
	gt.NoError(t, err).Required()
	recalled := result.PrimaryThought()
	gt.Value(t, recalled).NotNil().Required()
	gt.True(t, recalled.Promoted)

	// Promoting again is a no-op
	gt.NoError(t, uc.PromoteThought(ctx, stored.ID))
}

func TestRecallSimilar(t *testing.T) {
	uc, backend := newUseCases(t)
	ctx := context.Background()

	_, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{
		Content:    "deployment pipeline is flaky",
		Type:       types.ThoughtTypeObservation,
		Confidence: 0.9,
	})
	gt.NoError(t, err).Required()
	_, err = uc.StoreThought(ctx, usecase.StoreThoughtInput{
		Content:    "deployment should move to blue-green",
		Type:       types.ThoughtTypeIdea,
		Confidence: 0.5,
	})
	gt.NoError(t, err).Required()
	_, err = uc.StoreThought(ctx, usecase.StoreThoughtInput{
		Content: "lunch was pasta",
	})
	gt.NoError(t, err).Required()

	// A forgotten thought matching the query must not surface
	forgotten := model.NewThought("deployment horror story", "", 0.2, "", "")
	forgotten.Forgotten = true
	seedThought(t, backend, forgotten)

	t.Run("substring match", func(t *testing.T) {
		thoughts, err := uc.RecallSimilar(ctx, "deployment", 10, usecase.SimilarFilter{})
		gt.NoError(t, err).Required()
		gt.Array(t, thoughts).Length(2).Required()
		// Ordered by confidence
		gt.Value(t, thoughts[0].Confidence).Equal(0.9)
	})

	t.Run("type filter", func(t *testing.T) {
		thoughts, err := uc.RecallSimilar(ctx, "deployment", 10, usecase.SimilarFilter{
			Type: types.ThoughtTypeIdea,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, thoughts).Length(1).Required()
		gt.Value(t, thoughts[0].Type).Equal(types.ThoughtTypeIdea)
	})

	t.Run("confidence filter", func(t *testing.T) {
		thoughts, err := uc.RecallSimilar(ctx, "deployment", 10, usecase.SimilarFilter{
			MinConfidence: 0.8,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, thoughts).Length(1)
	})

	t.Run("limit", func(t *testing.T) {
		thoughts, err := uc.RecallSimilar(ctx, "deployment", 1, usecase.SimilarFilter{})
		gt.NoError(t, err).Required()
		gt.Array(t, thoughts).Length(1)
	})
}

func TestNamespacesAreTracked(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()

	_, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "a", Namespace: "work"})
	gt.NoError(t, err).Required()
	_, err = uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "b", Namespace: "home"})
	gt.NoError(t, err).Required()
	_, err = uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: "c"})
	gt.NoError(t, err).Required()

	namespaces := uc.Namespaces()
	gt.Array(t, namespaces).Length(3).Required()
	gt.Value(t, namespaces[0]).Equal(types.Namespace("esr"))
	gt.Value(t, namespaces[1]).Equal(types.Namespace("home"))
	gt.Value(t, namespaces[2]).Equal(types.Namespace("work"))
}

func TestContextShiftsAndConsume(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()

	for i, topic := range []string{"build", "build", "lunch", "build"} {
		_, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{
			Content: "thought " + string(rune('a'+i)),
			Context: map[string]string{"topic": topic},
		})
		gt.NoError(t, err).Required()
	}

	gt.Number(t, uc.PendingCount()).Equal(4)
	gt.Number(t, uc.ContextShifts()).Equal(2)

	pending := uc.RecentThoughts()
	gt.Array(t, pending).Length(4)
	gt.Number(t, uc.PendingCount()).Equal(4)

	// Consuming only part of the snapshot leaves the rest queued
	uc.ConsumeRecentThoughts([]types.MemoryID{pending[0].ID, pending[1].ID})
	gt.Number(t, uc.PendingCount()).Equal(2)
	gt.Number(t, uc.ContextShifts()).Equal(0)

	ids := make([]types.MemoryID, 0, 2)
	for _, thought := range uc.RecentThoughts() {
		ids = append(ids, thought.ID)
	}
	uc.ConsumeRecentThoughts(ids)
	gt.Number(t, uc.PendingCount()).Equal(0)
}

func TestRecentBufferIsBounded(t *testing.T) {
	backend := kv.New("kv")
	enc, err := encoder.New(map[string]interfaces.Backend{"kv": backend})
	gt.NoError(t, err).Required()
	uc := usecase.New(enc, usecase.WithRecentLimit(2))
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		_, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{Content: content})
		gt.NoError(t, err).Required()
	}

	recent := uc.RecentThoughts()
	gt.Array(t, recent).Length(2).Required()
	gt.Value(t, recent[0].Content).Equal("second")
	gt.Value(t, recent[1].Content).Equal("third")
}

func TestRecallThoughtTracksAccessorCI(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()

	stored, err := uc.StoreThought(ctx, usecase.StoreThoughtInput{
		Content: "shared memory",
		CIID:    "agent-1",
	})
	gt.NoError(t, err).Required()

	_, err = uc.RecallThought(ctx, stored.ID, "agent-2")
	gt.NoError(t, err).Required()
	_, err = uc.RecallThought(ctx, stored.ID, "agent-3")
	gt.NoError(t, err).Required()

	gt.Number(t, uc.CacheUsage().UniqueCIs).Equal(3)
}
