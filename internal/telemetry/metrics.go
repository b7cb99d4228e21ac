// Package telemetry keeps in-memory statistics about the queries a search
// daemon answers. Nothing leaves the process; status replies expose a
// snapshot.
package telemetry

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/docsearch/internal/query"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one answered search.
type QueryEvent struct {
	Query       string
	ResultCount int
	Latency     time.Duration
	Failed      bool
}

// TermCount represents a condition and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	FailedQueries       int64                   `json:"failed_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of successful queries that
// matched nothing.
func (s Snapshot) ZeroResultPercentage() float64 {
	answered := s.TotalQueries - s.FailedQueries
	if answered <= 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(answered) * 100
}

// Config bounds the memory the collector uses.
type Config struct {
	TopTermsCapacity      int // distinct conditions tracked (default: 100)
	ZeroResultsCapacity   int // recent zero-result queries kept (default: 20)
	RecentQueriesCapacity int // canonical queries kept for repeat detection (default: 500)
}

// DefaultConfig returns the collector defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   20,
		RecentQueriesCapacity: 500,
	}
}

// QueryMetrics collects query statistics. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	topTerms      *lru.Cache[string, int64]
	recentQueries *lru.Cache[string, struct{}]
	zeroResults   *ring[string]
	latencies     map[LatencyBucket]int64

	total      int64
	failed     int64
	zeroResult int64
	repeats    int64
	since      time.Time
}

// New creates a collector. Non-positive capacities take the defaults.
func New(cfg Config) *QueryMetrics {
	def := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	// lru.New only fails on a non-positive size
	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	return &QueryMetrics{
		topTerms:      topTerms,
		recentQueries: recent,
		zeroResults:   newRing[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		since:         time.Now(),
	}
}

// Record adds one query. Terms are the normalized conditions of the
// parsed query, so "Devis & 2024" and "devis&2024" count alike.
func (m *QueryMetrics) Record(e QueryEvent) {
	parsed := query.Parse(e.Query)
	canonical := parsed.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.latencies[LatencyToBucket(e.Latency)]++

	if _, seen := m.recentQueries.Get(canonical); seen {
		m.repeats++
	}
	m.recentQueries.Add(canonical, struct{}{})

	for _, group := range parsed.Groups {
		for _, cond := range group {
			if cond == query.Wildcard {
				continue
			}
			n, _ := m.topTerms.Get(string(cond))
			m.topTerms.Add(string(cond), n+1)
		}
	}

	switch {
	case e.Failed:
		m.failed++
	case e.ResultCount == 0:
		m.zeroResult++
		m.zeroResults.add(canonical)
	}
}

// Snapshot returns a copy of the current metrics. TopTerms is ordered by
// count, then term.
func (m *QueryMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	terms := make([]TermCount, 0, m.topTerms.Len())
	for _, key := range m.topTerms.Keys() {
		if n, ok := m.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: n})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	return Snapshot{
		TotalQueries:        m.total,
		FailedQueries:       m.failed,
		ZeroResultCount:     m.zeroResult,
		ExactRepeatCount:    m.repeats,
		TopTerms:            terms,
		ZeroResultQueries:   m.zeroResults.items(),
		LatencyDistribution: latencies,
		Since:               m.since,
	}
}

// ring is a fixed-capacity FIFO that evicts the oldest item. Callers hold
// the collector lock.
type ring[T any] struct {
	items []T
	head  int
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) add(item T) {
	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	if r.size < len(r.items) {
		r.size++
	}
}

// items returns the contents oldest first.
func (r *ring[T]) items() []T {
	out := make([]T, 0, r.size)
	start := (r.head - r.size + len(r.items)) % len(r.items)
	for i := 0; i < r.size; i++ {
		out = append(out, r.items[(start+i)%len(r.items)])
	}
	return out
}
