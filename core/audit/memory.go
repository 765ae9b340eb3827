package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps decisions in memory for tests or lightweight usage.
type MemoryStore struct {
	mu      sync.Mutex
	records []Decision
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a copy of the decision.
func (s *MemoryStore) Append(_ context.Context, d Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, copyDecision(d))
	return nil
}

// Query returns matching decisions ordered by timestamp.
func (s *MemoryStore) Query(_ context.Context, q Query) ([]Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Decision
	for _, d := range s.records {
		if !match(d, q) {
			continue
		}
		res = append(res, copyDecision(d))
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func match(d Decision, q Query) bool {
	if q.JobID != "" && d.JobID != q.JobID {
		return false
	}
	if !q.Start.IsZero() && d.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && d.Timestamp.After(q.End) {
		return false
	}
	return true
}

func copyDecision(d Decision) Decision {
	cp := d
	cp.Sources = append([]SignalProvenance(nil), d.Sources...)
	cp.Candidates = append([]CandidateOutcome(nil), d.Candidates...)
	cp.Rejections = append([]string(nil), d.Rejections...)
	if d.Selected != nil {
		sel := *d.Selected
		cp.Selected = &sel
	}
	if d.Baseline != nil {
		base := *d.Baseline
		cp.Baseline = &base
	}
	return cp
}
