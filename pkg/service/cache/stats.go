package cache

// Stats is a point-in-time snapshot of the cache counters
type Stats struct {
	Entries   int     `json:"entries"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Stores    uint64  `json:"stores"`
	Evictions uint64  `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// Stats returns a consistent snapshot of hit/miss/store/eviction counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries:   c.order.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Stores:    c.stores,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// UsagePattern summarizes how the cache is being used across all entries
// and cognitive instances.
type UsagePattern struct {
	TotalEntries        int     `json:"total_entries"`
	TotalAccesses       uint64  `json:"total_accesses"`
	UniqueCIs           int     `json:"unique_cis"`
	AvgAccessesPerEntry float64 `json:"avg_accesses_per_entry"`
}

// AnalyzePatterns aggregates per-entry access counts into a usage summary
func (c *Cache) AnalyzePatterns() UsagePattern {
	c.mu.Lock()
	defer c.mu.Unlock()

	pattern := UsagePattern{TotalEntries: c.order.Len()}
	cis := make(map[string]struct{})

	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*Entry)
		pattern.TotalAccesses += entry.AccessCount
		for ci := range entry.CISources {
			cis[ci] = struct{}{}
		}
	}
	pattern.UniqueCIs = len(cis)
	if pattern.TotalEntries > 0 {
		pattern.AvgAccessesPerEntry = float64(pattern.TotalAccesses) / float64(pattern.TotalEntries)
	}
	return pattern
}
