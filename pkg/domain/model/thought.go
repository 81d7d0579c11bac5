package model

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/esr/pkg/domain/types"
)

// Thought is the atomic memory unit. Once written to backends a thought is
// never mutated in place: updates are new writes under the same ID,
// reconciled by the synthesizer on read. Promoted and Forgotten are soft
// annotations; a forgotten thought stays retrievable by direct ID but is
// excluded from default recall.
type Thought struct {
	ID           types.MemoryID    `json:"id"`
	Content      string            `json:"content"`
	Type         types.ThoughtType `json:"type"`
	Confidence   float64           `json:"confidence"`
	CreatedAt    time.Time         `json:"created_at"`
	Namespace    types.Namespace   `json:"namespace"`
	CIID         types.CIID        `json:"ci_id"`
	Context      map[string]string `json:"context,omitempty"`
	Associations []Association     `json:"associations,omitempty"`
	Promoted     bool              `json:"promoted,omitempty"`
	Forgotten    bool              `json:"forgotten,omitempty"`
}

// NewThought constructs a thought with defaults applied: type falls back to
// MEMORY, confidence to 1.0, CI to "system", and the ID is derived from
// namespace and content so re-storing identical content is idempotent.
func NewThought(content string, thoughtType types.ThoughtType, confidence float64, ciID types.CIID, ns types.Namespace) *Thought {
	if !thoughtType.IsValid() {
		thoughtType = types.ThoughtTypeMemory
	}
	if confidence <= 0 || confidence > 1.0 {
		confidence = 1.0
	}
	ns = ns.OrDefault()

	return &Thought{
		ID:         types.DeriveMemoryID(ns, content),
		Content:    content,
		Type:       thoughtType,
		Confidence: confidence,
		CreatedAt:  time.Now().UTC(),
		Namespace:  ns,
		CIID:       ciID.OrDefault(),
	}
}

// Validate checks the thought for required fields
func (t *Thought) Validate() error {
	if t.Content == "" {
		return goerr.Wrap(ErrEmptyContent, "thought content is required")
	}
	if t.Confidence < 0 || t.Confidence > 1.0 {
		return goerr.New("confidence must be in [0, 1]", goerr.V("confidence", t.Confidence))
	}
	return nil
}

// Age returns the time elapsed since the thought was created
func (t *Thought) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// Encode serializes the thought for backend storage
func (t *Thought) Encode() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode thought", goerr.V("id", t.ID))
	}
	return data, nil
}

// DecodeThought deserializes a thought from backend storage
func DecodeThought(data []byte) (*Thought, error) {
	var t Thought
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, goerr.Wrap(err, "failed to decode thought")
	}
	return &t, nil
}

// Association is a directed weighted edge between two thoughts
type Association struct {
	From     types.MemoryID        `json:"from"`
	To       types.MemoryID        `json:"to"`
	Type     types.AssociationType `json:"type"`
	Strength float64               `json:"strength"`
}
