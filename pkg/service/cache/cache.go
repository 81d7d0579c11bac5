package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultPromotionThreshold is the access count at which a cache entry
// becomes a promotion candidate. The threshold is inclusive.
const DefaultPromotionThreshold = 2

// DefaultMaxEntries bounds the cache before LRU eviction kicks in
const DefaultMaxEntries = 1024

// Entry is a cached memory plus the usage bookkeeping that drives
// promotion decisions.
type Entry struct {
	Key          string
	Content      []byte
	ContentType  string
	Metadata     map[string]string
	CIID         string
	CISources    map[string]struct{}
	AccessCount  uint64
	StoredAt     time.Time
	LastAccessed time.Time
	Promoted     bool
}

func (e *Entry) clone() *Entry {
	dup := *e
	dup.Content = append([]byte(nil), e.Content...)
	if e.Metadata != nil {
		dup.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			dup.Metadata[k] = v
		}
	}
	if e.CISources != nil {
		dup.CISources = make(map[string]struct{}, len(e.CISources))
		for ci := range e.CISources {
			dup.CISources[ci] = struct{}{}
		}
	}
	return &dup
}

func (e *Entry) recordCI(ciID string) {
	if ciID == "" {
		return
	}
	if e.CISources == nil {
		e.CISources = make(map[string]struct{})
	}
	e.CISources[ciID] = struct{}{}
}

// Cache is the working-memory layer in front of the backends. Frequently
// re-accessed entries cross the promotion threshold and get surfaced as
// candidates for long-term storage; cold entries fall off the LRU tail.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*list.Element
	order     *list.List // front = most recently used
	maxSize   int
	threshold uint64
	now       func() time.Time

	hits      uint64
	misses    uint64
	stores    uint64
	evictions uint64
}

type Option func(*Cache)

// WithMaxEntries sets the LRU capacity
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithPromotionThreshold sets the inclusive access count for promotion
func WithPromotionThreshold(n uint64) Option {
	return func(c *Cache) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithClock overrides the time source. Test use only.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[string]*list.Element),
		order:     list.New(),
		maxSize:   DefaultMaxEntries,
		threshold: DefaultPromotionThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DeriveKey produces the content-addressed cache key. The same content
// always maps to the same key, so re-storing a memory refreshes the
// existing entry instead of duplicating it.
func DeriveKey(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:16])
}

// Store inserts content into the cache and returns its derived key. If the
// content is already cached the entry is refreshed in recency order but
// its access count does not change: storing is not accessing.
func (c *Cache) Store(content []byte, contentType string, metadata map[string]string, ciID string) string {
	return c.StoreWithKey(DeriveKey(content), content, contentType, metadata, ciID)
}

// StoreWithKey is Store under a caller-chosen key, used when the entry
// already has a stable identity (e.g. a memory ID).
func (c *Cache) StoreWithKey(key string, content []byte, contentType string, metadata map[string]string, ciID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stores++

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*Entry)
		entry.Content = append([]byte(nil), content...)
		entry.StoredAt = c.now()
		entry.recordCI(ciID)
		return key
	}

	entry := &Entry{
		Key:          key,
		Content:      append([]byte(nil), content...),
		ContentType:  contentType,
		Metadata:     metadata,
		CIID:         ciID,
		StoredAt:     c.now(),
		LastAccessed: c.now(),
	}
	entry.recordCI(ciID)
	c.entries[key] = c.order.PushFront(entry)

	for c.order.Len() > c.maxSize {
		c.evictOldest()
	}

	return key
}

// Retrieve looks a key up and counts the access against the given
// cognitive instance. Every hit bumps the entry's access count, records
// the accessor, and moves the entry to the front of the recency order.
func (c *Cache) Retrieve(key, ciID string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	c.hits++
	c.order.MoveToFront(elem)
	entry := elem.Value.(*Entry)
	entry.AccessCount++
	entry.LastAccessed = c.now()
	entry.recordCI(ciID)

	return entry.clone(), true
}

// PromotionCandidates returns all entries whose access count has reached
// the threshold and that have not yet been promoted. The threshold is
// inclusive: an entry accessed exactly threshold times qualifies.
func (c *Cache) PromotionCandidates() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var candidates []*Entry
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*Entry)
		if !entry.Promoted && entry.AccessCount >= c.threshold {
			candidates = append(candidates, entry.clone())
		}
	}
	return candidates
}

// MarkPromoted flags the given keys so that subsequent candidate scans
// skip them. Unknown keys are ignored.
func (c *Cache) MarkPromoted(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if elem, ok := c.entries[key]; ok {
			elem.Value.(*Entry).Promoted = true
		}
	}
}

// ClearPromoted drops all entries already promoted to long-term storage
// and returns how many were removed.
func (c *Cache) ClearPromoted() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*Entry)
		if entry.Promoted {
			c.order.Remove(elem)
			delete(c.entries, entry.Key)
			removed++
		}
		elem = next
	}
	return removed
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*Entry)
	c.order.Remove(elem)
	delete(c.entries, entry.Key)
	c.evictions++
}
