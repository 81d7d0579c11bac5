package usecase

import (
	"sort"
	"sync"

	"github.com/secmon-lab/esr/pkg/domain/model"
	"github.com/secmon-lab/esr/pkg/domain/types"
	"github.com/secmon-lab/esr/pkg/service/cache"
	"github.com/secmon-lab/esr/pkg/service/encoder"
)

// DefaultRecentLimit bounds the in-process buffer of thoughts awaiting the
// next reflection pass
const DefaultRecentLimit = 100

// UseCases is the cognitive workflow layer: thought-level operations built
// on top of the raw store-everywhere encoder and the promotion cache.
type UseCases struct {
	encoder     *encoder.Encoder
	cache       *cache.Cache
	recentLimit int

	mu            sync.Mutex
	namespaces    map[types.Namespace]struct{}
	recent        []*model.Thought
	lastTopic     string
	contextShifts int
	graph         map[edgeKey]*model.Association
}

type edgeKey struct {
	from types.MemoryID
	to   types.MemoryID
	typ  types.AssociationType
}

type Option func(*UseCases)

// WithCache replaces the default promotion cache
func WithCache(c *cache.Cache) Option {
	return func(uc *UseCases) {
		uc.cache = c
	}
}

// WithRecentLimit sets how many recently stored thoughts are retained for
// the next reflection pass
func WithRecentLimit(n int) Option {
	return func(uc *UseCases) {
		if n > 0 {
			uc.recentLimit = n
		}
	}
}

func New(enc *encoder.Encoder, opts ...Option) *UseCases {
	uc := &UseCases{
		encoder:     enc,
		cache:       cache.New(),
		recentLimit: DefaultRecentLimit,
		namespaces:  make(map[types.Namespace]struct{}),
		graph:       make(map[edgeKey]*model.Association),
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Namespaces returns all namespaces seen since startup, sorted
func (uc *UseCases) Namespaces() []types.Namespace {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	namespaces := make([]types.Namespace, 0, len(uc.namespaces))
	for ns := range uc.namespaces {
		namespaces = append(namespaces, ns)
	}
	sort.Slice(namespaces, func(i, j int) bool { return namespaces[i] < namespaces[j] })
	return namespaces
}

// RecentThoughts returns a snapshot of thoughts stored since the last
// reflection pass, oldest first.
func (uc *UseCases) RecentThoughts() []*model.Thought {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	snapshot := make([]*model.Thought, len(uc.recent))
	copy(snapshot, uc.recent)
	return snapshot
}

// ConsumeRecentThoughts removes the given thoughts from the pending buffer
// and resets the context shift counter. Called by the metabolism process
// after a reflection pass completes; thoughts stored mid-pass stay queued,
// and a failed pass that never consumes leaves the buffer intact for the
// next trigger.
func (uc *UseCases) ConsumeRecentThoughts(ids []types.MemoryID) {
	if len(ids) == 0 {
		return
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	consumed := make(map[types.MemoryID]struct{}, len(ids))
	for _, id := range ids {
		consumed[id] = struct{}{}
	}

	kept := make([]*model.Thought, 0, len(uc.recent))
	for _, thought := range uc.recent {
		if _, ok := consumed[thought.ID]; ok {
			continue
		}
		kept = append(kept, thought)
	}
	uc.recent = kept
	uc.contextShifts = 0
}

// PendingCount reports how many thoughts are waiting for reflection
func (uc *UseCases) PendingCount() int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return len(uc.recent)
}

// ContextShifts reports how many topic changes occurred since the last
// reflection pass
func (uc *UseCases) ContextShifts() int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.contextShifts
}

// PromotionCandidates exposes the cache entries eligible for promotion
func (uc *UseCases) PromotionCandidates() []*cache.Entry {
	return uc.cache.PromotionCandidates()
}

// ClearPromotedCache evicts cache entries already promoted to long-term
// storage, returning how many were removed
func (uc *UseCases) ClearPromotedCache() int {
	return uc.cache.ClearPromoted()
}

// EncoderStats exposes the fan-out counters for the status surface
func (uc *UseCases) EncoderStats() encoder.Stats {
	return uc.encoder.Stats()
}

// CacheStats exposes the promotion cache counters for the status surface
func (uc *UseCases) CacheStats() cache.Stats {
	return uc.cache.Stats()
}

// CacheUsage exposes the aggregated cache access pattern
func (uc *UseCases) CacheUsage() cache.UsagePattern {
	return uc.cache.AnalyzePatterns()
}

// trackStore records bookkeeping for a freshly stored thought: namespace
// registry, the recent buffer, and context shift detection via the
// thought's "topic" context value.
func (uc *UseCases) trackStore(thought *model.Thought) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.namespaces[thought.Namespace] = struct{}{}

	uc.recent = append(uc.recent, thought)
	if len(uc.recent) > uc.recentLimit {
		uc.recent = uc.recent[len(uc.recent)-uc.recentLimit:]
	}

	topic := thought.Context["topic"]
	if topic != "" && uc.lastTopic != "" && topic != uc.lastTopic {
		uc.contextShifts++
	}
	if topic != "" {
		uc.lastTopic = topic
	}
}
