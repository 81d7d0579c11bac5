package encoder

// BackendStats is a point-in-time snapshot of one backend's counters
type BackendStats struct {
	Stores           uint64  `json:"stores"`
	StoreFailures    uint64  `json:"store_failures"`
	Recalls          uint64  `json:"recalls"`
	RecallMisses     uint64  `json:"recall_misses"`
	Timeouts         uint64  `json:"timeouts"`
	StoreSuccessRate float64 `json:"store_success_rate"`
}

// Stats aggregates fan-out counters across all backends
type Stats struct {
	TotalStores  uint64                  `json:"total_stores"`
	TotalRecalls uint64                  `json:"total_recalls"`
	Backends     map[string]BackendStats `json:"backends"`
}

// Stats returns a consistent snapshot of the encoder's counters
func (e *Encoder) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := Stats{
		TotalStores:  e.stats.totalStores,
		TotalRecalls: e.stats.totalRecalls,
		Backends:     make(map[string]BackendStats, len(e.stats.perBackend)),
	}
	for name, bs := range e.stats.perBackend {
		entry := BackendStats{
			Stores:        bs.stores,
			StoreFailures: bs.storeFailures,
			Recalls:       bs.recalls,
			RecallMisses:  bs.recallMisses,
			Timeouts:      bs.timeouts,
		}
		if total := bs.stores + bs.storeFailures; total > 0 {
			entry.StoreSuccessRate = float64(bs.stores) / float64(total)
		}
		snapshot.Backends[name] = entry
	}
	return snapshot
}
