package model

import "github.com/secmon-lab/esr/pkg/domain/types"

// SynthesisResult is the reconciled answer to one recall across all
// backends. Divergence between backends is expected, so contradictions are
// a first-class, inspectable outcome rather than an error.
type SynthesisResult struct {
	Status         types.SynthesisStatus
	Sources        []string
	Contradictions []Contradiction
	PrimaryMemory  []byte
	Synthesis      string
}

// PrimaryThought decodes the primary memory as a thought, or nil when the
// result has no data or the payload is not a thought document
func (r *SynthesisResult) PrimaryThought() *Thought {
	if r == nil || len(r.PrimaryMemory) == 0 {
		return nil
	}
	t, err := DecodeThought(r.PrimaryMemory)
	if err != nil {
		return nil
	}
	return t
}

// Contradiction is a distinct claim that lost the synthesis vote, kept so
// callers can audit disagreement instead of having it silently hidden
type Contradiction struct {
	Content    []byte
	Sources    []string
	Confidence float64
}

// Pattern is a recurring theme detected by the metabolism process: a group
// of recent thoughts sharing a type, with confidence scaled by group size
type Pattern struct {
	Theme      types.ThoughtType
	MemberIDs  []types.MemoryID
	Confidence float64
}
