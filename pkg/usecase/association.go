package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/esr/pkg/domain/model"
	"github.com/secmon-lab/esr/pkg/domain/types"
	"github.com/secmon-lab/esr/pkg/utils/logging"
)

// CreateAssociation links two thoughts with a typed, weighted edge. The
// edge is recorded in the in-process graph and persisted onto the source
// thought. Repeating the same association reinforces it: strengths
// accumulate but never exceed 1.0.
func (uc *UseCases) CreateAssociation(ctx context.Context, from, to types.MemoryID, typ types.AssociationType, strength float64) (*model.Association, error) {
	if from == to {
		return nil, goerr.Wrap(ErrSelfAssociation, "self loops are not allowed", goerr.V("id", from))
	}
	if !typ.IsValid() {
		typ = types.AssociationRelated
	}
	if strength <= 0 || strength > 1.0 {
		strength = 0.5
	}

	source, err := uc.fetchThought(ctx, from)
	if err != nil {
		return nil, goerr.Wrap(err, "association source not found", goerr.V("from", from))
	}
	if _, err := uc.fetchThought(ctx, to); err != nil {
		return nil, goerr.Wrap(err, "association target not found", goerr.V("to", to))
	}

	assoc := uc.upsertEdge(from, to, typ, strength)

	// Persist the edge on the source thought so it survives restarts
	replaced := false
	for i, existing := range source.Associations {
		if existing.To == to && existing.Type == typ {
			source.Associations[i] = *assoc
			replaced = true
			break
		}
	}
	if !replaced {
		source.Associations = append(source.Associations, *assoc)
	}

	if err := uc.rewrite(ctx, source); err != nil {
		return nil, err
	}

	logging.From(ctx).Info("created association",
		"from", from,
		"to", to,
		"type", typ,
		"strength", assoc.Strength,
	)

	return assoc, nil
}

// upsertEdge merges the edge into the in-process graph under the mutex,
// returning a copy of the resulting edge.
func (uc *UseCases) upsertEdge(from, to types.MemoryID, typ types.AssociationType, strength float64) *model.Association {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	key := edgeKey{from: from, to: to, typ: typ}
	if existing, ok := uc.graph[key]; ok {
		existing.Strength += strength
		if existing.Strength > 1.0 {
			existing.Strength = 1.0
		}
		dup := *existing
		return &dup
	}

	edge := &model.Association{From: from, To: to, Type: typ, Strength: strength}
	uc.graph[key] = edge
	dup := *edge
	return &dup
}

// AssociationCount reports the number of distinct edges in the in-process
// graph
func (uc *UseCases) AssociationCount() int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return len(uc.graph)
}
