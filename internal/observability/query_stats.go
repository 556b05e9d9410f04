// Package observability tracks how the database is queried: which predicates
// are used, with which values, and how many queries come back empty.
package observability

import (
	"sort"
	"sync"
	"time"
)

// QueryStats tracks predicate frequency and result sizes of queries.
type QueryStats struct {
	mu         sync.RWMutex
	predicates map[string]*PredicateStats
	queries    int64
	empty      int64
	rows       int64
	window     time.Duration
}

// PredicateStats holds statistics for one condition key.
type PredicateStats struct {
	Key       string
	Frequency int64
	LastSeen  time.Time
	Values    map[string]int // requested value → count (e.g., "ozone" → 5)
}

// NewQueryStats creates a new query statistics tracker.
// window: time duration for pruning old entries (e.g., 1 hour)
func NewQueryStats(window time.Duration) *QueryStats {
	return &QueryStats{
		predicates: make(map[string]*PredicateStats),
		window:     window,
	}
}

// RecordPredicate records one use of a condition key with its values.
// This method is thread-safe.
func (q *QueryStats) RecordPredicate(key string, values []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats, exists := q.predicates[key]
	if !exists {
		stats = &PredicateStats{
			Key:    key,
			Values: make(map[string]int),
		}
		q.predicates[key] = stats
	}

	stats.Frequency++
	stats.LastSeen = time.Now()
	for _, v := range values {
		stats.Values[v]++
	}
}

// RecordResult records the size of one query result.
func (q *QueryStats) RecordResult(rows int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.queries++
	q.rows += int64(rows)
	if rows == 0 {
		q.empty++
	}
}

// Summary is a snapshot of the result counters.
type Summary struct {
	Queries int64
	Empty   int64
	Rows    int64
}

// Summary returns the result counters.
func (q *QueryStats) Summary() Summary {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return Summary{Queries: q.queries, Empty: q.empty, Rows: q.rows}
}

// TopPredicates returns the top N condition keys by frequency.
// Returns a copy of the stats sorted by frequency (descending), ties by key.
func (q *QueryStats) TopPredicates(n int) []PredicateStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n <= 0 || len(q.predicates) == 0 {
		return []PredicateStats{}
	}

	stats := make([]PredicateStats, 0, len(q.predicates))
	for _, s := range q.predicates {
		// Deep copy to prevent external modification
		c := PredicateStats{
			Key:       s.Key,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Values:    make(map[string]int, len(s.Values)),
		}
		for v, count := range s.Values {
			c.Values[v] = count
		}
		stats = append(stats, c)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Key < stats[j].Key
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes keys where time.Since(LastSeen) > window.
func (q *QueryStats) Prune() {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := time.Now().Add(-q.window)
	for key, stats := range q.predicates {
		if stats.LastSeen.Before(threshold) {
			delete(q.predicates, key)
		}
	}
}
