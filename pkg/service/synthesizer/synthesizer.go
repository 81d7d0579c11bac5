package synthesizer

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/secmon-lab/esr/pkg/domain/model"
	"github.com/secmon-lab/esr/pkg/domain/types"
)

// Synthesizer merges heterogeneous backend responses for one logical key
// into a single answer with an explicit account of disagreement. Because
// writes fan out to every backend without reconciliation, divergence is
// expected; the synthesizer is where it becomes inspectable.
type Synthesizer struct{}

// New creates a Synthesizer
func New() *Synthesizer {
	return &Synthesizer{}
}

// claim is a set of responses agreeing on the same normalized content
type claim struct {
	content    []byte
	sources    []string
	confidence float64
	latest     time.Time
}

// Synthesize reconciles the responses for one recall. All responses agree:
// success with no contradictions. Responses disagree: distinct claims are
// ranked by confidence, then recency, then backend majority; the winner
// becomes the primary memory and every loser is recorded as a
// contradiction with its supporting sources. Zero responses: no_data.
func (s *Synthesizer) Synthesize(responses []model.MemoryResponse) *model.SynthesisResult {
	if len(responses) == 0 {
		return &model.SynthesisResult{
			Status:    types.SynthesisNoData,
			Synthesis: "no backend had data",
		}
	}

	claims := groupClaims(responses)

	sort.SliceStable(claims, func(i, j int) bool {
		if claims[i].confidence != claims[j].confidence {
			return claims[i].confidence > claims[j].confidence
		}
		if !claims[i].latest.Equal(claims[j].latest) {
			return claims[i].latest.After(claims[j].latest)
		}
		return len(claims[i].sources) > len(claims[j].sources)
	})

	primary := claims[0]
	result := &model.SynthesisResult{
		Status:        types.SynthesisSuccess,
		Sources:       primary.sources,
		PrimaryMemory: primary.content,
	}

	for _, c := range claims[1:] {
		result.Contradictions = append(result.Contradictions, model.Contradiction{
			Content:    c.content,
			Sources:    c.sources,
			Confidence: c.confidence,
		})
	}

	result.Synthesis = narrative(claims)
	return result
}

// groupClaims buckets responses by whole-value equality of their
// normalized content. Each bucket keeps its supporting backends, the
// highest confidence reported for it, and the most recent source
// timestamp seen.
func groupClaims(responses []model.MemoryResponse) []claim {
	index := make(map[string]int)
	var claims []claim

	for _, r := range responses {
		key := normalize(r.Content)

		if i, exists := index[key]; exists {
			c := &claims[i]
			c.sources = append(c.sources, r.SourceBackend)
			if r.Confidence > c.confidence {
				c.confidence = r.Confidence
			}
			if ts := sourceTimestamp(&r); ts.After(c.latest) {
				c.latest = ts
			}
			continue
		}

		index[key] = len(claims)
		claims = append(claims, claim{
			content:    r.Content,
			sources:    []string{r.SourceBackend},
			confidence: r.Confidence,
			latest:     sourceTimestamp(&r),
		})
	}

	return claims
}

// normalize reduces content to its comparison form. Whole-value equality
// after whitespace trimming is the comparison bar; structured payloads are
// compared as their full serialized value.
func normalize(content []byte) string {
	return strings.TrimSpace(string(bytes.ToValidUTF8(content, nil)))
}

// sourceTimestamp extracts the source-reported creation time when the
// payload is a thought document
func sourceTimestamp(r *model.MemoryResponse) time.Time {
	if t := r.Thought(); t != nil {
		return t.CreatedAt
	}
	return time.Time{}
}

// narrative renders a human-readable account of the merge decision. It is
// diagnostic only; no downstream logic consumes it.
func narrative(claims []claim) string {
	if len(claims) == 1 {
		if n := len(claims[0].sources); n > 1 {
			return fmt.Sprintf("%d backends agree", n)
		}
		return "single backend response"
	}

	return fmt.Sprintf("primary claim from %s (confidence %.2f), %d contradicting claim(s) recorded",
		strings.Join(claims[0].sources, ","), claims[0].confidence, len(claims)-1)
}
