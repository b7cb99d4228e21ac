package index

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Report is the outcome of comparing the index with the file catalog.
type Report struct {
	// Indexed is the number of documents in the index.
	Indexed int `json:"indexed"`
	// Expected is the number of ids the catalog knows.
	Expected int `json:"expected"`
	// Missing lists catalog ids absent from the index.
	Missing []string `json:"missing"`
	// Orphans lists indexed ids the catalog no longer knows.
	Orphans []string `json:"orphans"`
	// Duration is how long the check took.
	Duration time.Duration `json:"duration"`
}

// Consistent reports whether the index matches the catalog exactly.
func (r *Report) Consistent() bool {
	return len(r.Missing) == 0 && len(r.Orphans) == 0
}

// Verify compares the indexed ids with expected, the ids the relational
// catalog holds. Both lists in the report are sorted.
func (s *Store) Verify(ctx context.Context, expected []string) (*Report, error) {
	start := time.Now()

	indexed, err := s.AllIDs(ctx)
	if err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(expected))
	for _, id := range expected {
		want[id] = true
	}
	have := make(map[string]bool, len(indexed))
	for _, id := range indexed {
		have[id] = true
	}

	report := &Report{Indexed: len(have), Expected: len(want)}
	for id := range want {
		if !have[id] {
			report.Missing = append(report.Missing, id)
		}
	}
	for _, id := range indexed {
		if !want[id] {
			report.Orphans = append(report.Orphans, id)
		}
	}
	sort.Strings(report.Missing)
	sort.Strings(report.Orphans)
	report.Duration = time.Since(start)

	s.logger.Info("index_verified",
		slog.Int("indexed", report.Indexed),
		slog.Int("expected", report.Expected),
		slog.Int("missing", len(report.Missing)),
		slog.Int("orphans", len(report.Orphans)))
	return report, nil
}

// Prune deletes the orphans found by Verify.
func (s *Store) Prune(ctx context.Context, r *Report) (int, error) {
	if r == nil || len(r.Orphans) == 0 {
		return 0, nil
	}
	if err := s.DeleteMany(ctx, r.Orphans); err != nil {
		return 0, err
	}
	s.logger.Info("orphans_pruned", slog.Int("count", len(r.Orphans)))
	return len(r.Orphans), nil
}
