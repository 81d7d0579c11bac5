package metabolism

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/esr/pkg/domain/model"
	"github.com/secmon-lab/esr/pkg/domain/types"
	"github.com/secmon-lab/esr/pkg/service/cache"
	"github.com/secmon-lab/esr/pkg/utils/logging"
)

// Memory is the surface the metabolism process needs from the workflow
// layer. It is deliberately narrow: reflection reads pending thoughts and
// applies promote/forget/associate decisions, nothing more.
type Memory interface {
	RecentThoughts() []*model.Thought
	ConsumeRecentThoughts(ids []types.MemoryID)
	PendingCount() int
	ContextShifts() int
	PromotionCandidates() []*cache.Entry
	ClearPromotedCache() int
	CreateAssociation(ctx context.Context, from, to types.MemoryID, typ types.AssociationType, strength float64) (*model.Association, error)
	PromoteThought(ctx context.Context, id types.MemoryID) error
	ForgetThought(ctx context.Context, id types.MemoryID) error
}

// Trigger identifies what started a reflection pass
type Trigger string

const (
	TriggerInterval       Trigger = "interval"
	TriggerMemoryPressure Trigger = "memory_pressure"
	TriggerContextShift   Trigger = "context_shift"
	TriggerExplicit       Trigger = "explicit"
)

// Reflection tuning constants
const (
	patternMinMembers  = 3
	patternScaleFactor = 10
	promoteConfidence  = 0.8
)

// Report summarizes one completed reflection pass
type Report struct {
	Trigger             Trigger         `json:"trigger"`
	ThoughtsProcessed   int             `json:"thoughts_processed"`
	Patterns            []model.Pattern `json:"-"`
	PatternsIdentified  int             `json:"patterns_identified"`
	AssociationsCreated int             `json:"associations_created"`
	Promoted            int             `json:"promoted"`
	Forgotten           int             `json:"forgotten"`
	Duration            time.Duration   `json:"duration"`
}

// Reflect runs one full reflection pass through all phases. On any phase
// failure the worker logs, drops back to IDLE, and leaves the cumulative
// statistics untouched; a failed pass never poisons the counters.
func (w *Worker) Reflect(ctx context.Context, trigger Trigger) (report *Report, err error) {
	logger := logging.From(ctx)
	start := time.Now()

	defer func() {
		w.setPhase(types.PhaseIdle)
		if r := recover(); r != nil {
			err = goerr.New("reflection pass panicked", goerr.V("panic", r))
		}
		if err != nil {
			logger.Error("reflection pass failed", "trigger", trigger, "error", err)
		}
	}()

	// GATHERING takes a snapshot; the pending buffer is consumed only once
	// the whole pass succeeds, so a mid-phase failure leaves the thoughts
	// in place for the next trigger to gather again.
	w.setPhase(types.PhaseGathering)
	thoughts := w.memory.RecentThoughts()
	candidates := w.memory.PromotionCandidates()

	w.setPhase(types.PhaseSynthesizing)
	patterns := identifyPatterns(thoughts)

	w.setPhase(types.PhaseAssociating)
	associations, err := w.associate(ctx, patterns)
	if err != nil {
		return nil, err
	}

	w.setPhase(types.PhasePromoting)
	promoted, err := w.promote(ctx, thoughts, patterns, candidates)
	if err != nil {
		return nil, err
	}

	w.setPhase(types.PhaseForgetting)
	forgotten, err := w.forget(ctx, thoughts)
	if err != nil {
		return nil, err
	}

	gathered := make([]types.MemoryID, 0, len(thoughts))
	for _, t := range thoughts {
		gathered = append(gathered, t.ID)
	}
	w.memory.ConsumeRecentThoughts(gathered)

	report = &Report{
		Trigger:             trigger,
		ThoughtsProcessed:   len(thoughts),
		Patterns:            patterns,
		PatternsIdentified:  len(patterns),
		AssociationsCreated: associations,
		Promoted:            promoted,
		Forgotten:           forgotten,
		Duration:            time.Since(start),
	}
	w.commit(report)

	logger.Info("reflection pass complete",
		"trigger", trigger,
		"thoughts", report.ThoughtsProcessed,
		"patterns", report.PatternsIdentified,
		"associations", report.AssociationsCreated,
		"promoted", report.Promoted,
		"forgotten", report.Forgotten,
		"duration", report.Duration,
	)

	return report, nil
}

// identifyPatterns groups thoughts by type and turns every group with
// enough members into a pattern. Confidence scales with group size and
// saturates at 1.0.
func identifyPatterns(thoughts []*model.Thought) []model.Pattern {
	groups := make(map[types.ThoughtType][]types.MemoryID)
	for _, t := range thoughts {
		groups[t.Type] = append(groups[t.Type], t.ID)
	}

	var patterns []model.Pattern
	for _, theme := range types.AllThoughtTypes() {
		members := groups[theme]
		if len(members) < patternMinMembers {
			continue
		}
		confidence := float64(len(members)) / patternScaleFactor
		if confidence > 1.0 {
			confidence = 1.0
		}
		patterns = append(patterns, model.Pattern{
			Theme:      theme,
			MemberIDs:  members,
			Confidence: confidence,
		})
	}
	return patterns
}

// associate links consecutive members of each pattern with sequence
// edges at the pattern's confidence. Individual dangling edges are
// skipped; the phase only fails when every attempted association fails.
func (w *Worker) associate(ctx context.Context, patterns []model.Pattern) (int, error) {
	created, attempted := 0, 0
	for _, pattern := range patterns {
		for i := 0; i+1 < len(pattern.MemberIDs); i++ {
			attempted++
			_, err := w.memory.CreateAssociation(ctx, pattern.MemberIDs[i], pattern.MemberIDs[i+1], types.AssociationSequence, pattern.Confidence)
			if err != nil {
				logging.From(ctx).Debug("skipping association", "error", err)
				continue
			}
			created++
		}
	}
	if attempted > 0 && created == 0 {
		return 0, goerr.New("all associations failed", goerr.V("attempted", attempted))
	}
	return created, nil
}

// promote elevates thoughts that belong to a pattern or carry high
// confidence, plus every cache entry that crossed the access threshold.
func (w *Worker) promote(ctx context.Context, thoughts []*model.Thought, patterns []model.Pattern, candidates []*cache.Entry) (int, error) {
	inPattern := make(map[types.MemoryID]struct{})
	for _, pattern := range patterns {
		for _, id := range pattern.MemberIDs {
			inPattern[id] = struct{}{}
		}
	}

	targets := make(map[types.MemoryID]struct{})
	for _, t := range thoughts {
		_, patterned := inPattern[t.ID]
		if patterned || t.Confidence > promoteConfidence {
			targets[t.ID] = struct{}{}
		}
	}
	for _, entry := range candidates {
		targets[types.MemoryID(entry.Key)] = struct{}{}
	}

	promoted := 0
	for id := range targets {
		if err := w.memory.PromoteThought(ctx, id); err != nil {
			logging.From(ctx).Debug("skipping promotion", "id", id, "error", err)
			continue
		}
		promoted++
	}
	if len(targets) > 0 && promoted == 0 {
		return 0, goerr.New("all promotions failed", goerr.V("attempted", len(targets)))
	}

	cleared := w.memory.ClearPromotedCache()
	if cleared > 0 {
		logging.From(ctx).Debug("cleared promoted cache entries", "count", cleared)
	}

	return promoted, nil
}

// forget flags thoughts that are both stale and low confidence. The
// eligibility check lives in the workflow layer, so ineligible thoughts
// are simply skipped here.
func (w *Worker) forget(ctx context.Context, thoughts []*model.Thought) (int, error) {
	forgotten := 0
	for _, t := range thoughts {
		if err := w.memory.ForgetThought(ctx, t.ID); err != nil {
			continue
		}
		forgotten++
	}
	return forgotten, nil
}
