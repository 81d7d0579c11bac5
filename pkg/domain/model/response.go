package model

import "time"

// MemoryResponse is one backend's answer to a recall fan-out. Responses
// are ephemeral: created per query, consumed by the synthesizer, never
// persisted.
type MemoryResponse struct {
	Content       []byte
	SourceBackend string
	Confidence    float64
	RetrievalTime time.Duration
	Metadata      map[string]string
}

// Thought decodes the response payload as a thought. Returns nil when the
// payload is not a valid thought document.
func (r *MemoryResponse) Thought() *Thought {
	t, err := DecodeThought(r.Content)
	if err != nil {
		return nil
	}
	return t
}
