package usecase

import (
	"context"
	"sort"

	"github.com/secmon-lab/esr/pkg/domain/model"
	"github.com/secmon-lab/esr/pkg/domain/types"
	"github.com/secmon-lab/esr/pkg/utils/logging"
)

const (
	defaultSearchLimit = 10
	defaultDepth       = 2
	defaultMaxItems    = 10
)

// SimilarFilter narrows the result set of RecallSimilar. Zero values mean
// no filtering on that axis.
type SimilarFilter struct {
	Namespace     types.Namespace
	Type          types.ThoughtType
	MinConfidence float64
}

// RecallSimilar finds thoughts related to a free-text query by fanning it
// out to every search-capable backend. Results are deduplicated by ID,
// filtered, and ordered by confidence. Forgotten thoughts never surface
// through search.
func (uc *UseCases) RecallSimilar(ctx context.Context, query string, limit int, filter SimilarFilter) ([]*model.Thought, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	// Over-fetch so post-filtering can still fill the limit
	responses := uc.encoder.SearchEverywhere(ctx, query, limit*2)

	seen := make(map[types.MemoryID]struct{})
	var thoughts []*model.Thought
	for _, resp := range responses {
		thought := resp.Thought()
		if thought == nil {
			continue
		}
		if _, dup := seen[thought.ID]; dup {
			continue
		}
		seen[thought.ID] = struct{}{}

		if !uc.matchFilter(thought, filter) {
			continue
		}
		thoughts = append(thoughts, thought)
	}

	sort.SliceStable(thoughts, func(i, j int) bool {
		return thoughts[i].Confidence > thoughts[j].Confidence
	})
	if len(thoughts) > limit {
		thoughts = thoughts[:limit]
	}

	logging.From(ctx).Debug("similarity recall",
		"query", query,
		"responses", len(responses),
		"matched", len(thoughts),
	)

	return thoughts, nil
}

func (uc *UseCases) matchFilter(thought *model.Thought, filter SimilarFilter) bool {
	if thought.Forgotten {
		return false
	}
	if filter.Namespace != "" && thought.Namespace != filter.Namespace {
		return false
	}
	if filter.Type != "" && thought.Type != filter.Type {
		return false
	}
	if thought.Confidence < filter.MinConfidence {
		return false
	}
	return true
}

// ContextResult is the assembled context for a topic: the thoughts that
// match the topic directly, and the thoughts reached from them through
// the association graph.
type ContextResult struct {
	Topic      string           `json:"topic"`
	Primary    []*model.Thought `json:"primary"`
	Associated []*model.Thought `json:"associated"`
}

// BuildContext gathers the thoughts matching a topic, then walks the
// association graph outward from them, breadth first, collecting the
// related thoughts encountered along the way. A visited set makes
// circular association chains terminate.
func (uc *UseCases) BuildContext(ctx context.Context, topic string, depth, maxItems int) (*ContextResult, error) {
	if depth <= 0 {
		depth = defaultDepth
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	primary, err := uc.RecallSimilar(ctx, topic, maxItems, SimilarFilter{})
	if err != nil {
		return nil, err
	}

	result := &ContextResult{
		Topic:      topic,
		Primary:    primary,
		Associated: []*model.Thought{},
	}
	if result.Primary == nil {
		result.Primary = []*model.Thought{}
	}

	visited := make(map[types.MemoryID]struct{}, len(primary))
	for _, thought := range primary {
		visited[thought.ID] = struct{}{}
	}

	frontier := primary
	for level := 0; level < depth && len(result.Associated) < maxItems; level++ {
		var next []*model.Thought
		for _, current := range frontier {
			for _, neighbor := range uc.neighbors(current) {
				if _, ok := visited[neighbor]; ok {
					continue
				}
				visited[neighbor] = struct{}{}

				thought, err := uc.fetchThought(ctx, neighbor)
				if err != nil {
					// Dangling edges are tolerated: the target may live in
					// a backend that is currently unavailable
					continue
				}
				if thought.Forgotten {
					continue
				}

				result.Associated = append(result.Associated, thought)
				next = append(next, thought)
				if len(result.Associated) >= maxItems {
					return result, nil
				}
			}
		}
		frontier = next
	}

	return result, nil
}

// neighbors collects associated memory IDs from both the in-process graph
// and the associations persisted on the thought itself.
func (uc *UseCases) neighbors(thought *model.Thought) []types.MemoryID {
	ids := make([]types.MemoryID, 0, len(thought.Associations))
	seen := make(map[types.MemoryID]struct{})

	add := func(id types.MemoryID) {
		if id == thought.ID {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, assoc := range thought.Associations {
		add(assoc.To)
	}

	uc.mu.Lock()
	for key := range uc.graph {
		if key.from == thought.ID {
			add(key.to)
		}
	}
	uc.mu.Unlock()

	return ids
}
