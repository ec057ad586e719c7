package cache

import "time"

// Stats is a point-in-time, read-only snapshot of cache state. It is
// recomputed on every request and never persisted.
type Stats struct {
	// Connected reports whether the backend was reachable when the
	// snapshot was taken
	Connected bool `json:"connected"`

	// Hits and Misses are the backend keyspace counters
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`

	// HitRate is hits/(hits+misses) as a percentage, 0 when both are zero
	HitRate float64 `json:"hit_rate"`

	// TotalKeys is the number of keys in the store's database
	TotalKeys int64 `json:"total_keys"`

	// Categories maps key-prefix categories to entry counts
	Categories map[string]int `json:"categories"`

	// LocalEntries is the in-process layer size, when one is configured
	LocalEntries int `json:"local_entries,omitempty"`

	// Backend memory usage
	UsedMemoryBytes int64  `json:"used_memory_bytes"`
	UsedMemoryHuman string `json:"used_memory_human,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// HitRate computes the hit rate percentage, defined as 0 when there has
// been no traffic at all
func HitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
