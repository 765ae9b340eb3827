package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gridshift/carbonsched/core/model"
)

// MemoryStore is an in-memory Repository for tests and lightweight
// deployments. All returned records are copies.
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[string]model.ComputeAsset
	jobs   map[string]model.Job
	slots  map[string]model.FlexibilitySlot
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets: make(map[string]model.ComputeAsset),
		jobs:   make(map[string]model.Job),
		slots:  make(map[string]model.FlexibilitySlot),
	}
}

func (s *MemoryStore) PutAsset(_ context.Context, a model.ComputeAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.ID] = a
	return nil
}

func (s *MemoryStore) Asset(_ context.Context, id string) (model.ComputeAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return model.ComputeAsset{}, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (s *MemoryStore) Assets(_ context.Context) ([]model.ComputeAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ComputeAsset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) PutJob(_ context.Context, j model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = copyJob(j)
	return nil
}

func (s *MemoryStore) Job(_ context.Context, id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return model.Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return copyJob(j), nil
}

func (s *MemoryStore) Jobs(_ context.Context, f JobFilter) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Job
	for _, j := range s.jobs {
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		if f.Priority != nil && j.Priority != *f.Priority {
			continue
		}
		if f.Region != nil && !jobAllows(j, *f.Region) {
			continue
		}
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) AttachSchedule(_ context.Context, jobID string, sched model.Schedule, at time.Time) (model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return model.Job{}, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	sc := sched
	j.Schedule = &sc
	j.Status = model.StatusScheduled
	ts := at.UTC()
	j.ScheduledAt = &ts
	s.jobs[jobID] = j
	return copyJob(j), nil
}

func (s *MemoryStore) UpdateJobStatus(_ context.Context, jobID string, status model.JobStatus, at time.Time) (model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return model.Job{}, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	j.Status = status
	ts := at.UTC()
	switch status {
	case model.StatusScheduled:
		j.ScheduledAt = &ts
	case model.StatusExecuting:
		j.StartedAt = &ts
	case model.StatusCompleted, model.StatusCancelled, model.StatusFailedToSchedule:
		j.CompletedAt = &ts
	}
	s.jobs[jobID] = j
	return copyJob(j), nil
}

func (s *MemoryStore) PutSlot(_ context.Context, sl model.FlexibilitySlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[sl.ID] = sl
	return nil
}

func (s *MemoryStore) Slot(_ context.Context, id string) (model.FlexibilitySlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[id]
	if !ok {
		return model.FlexibilitySlot{}, fmt.Errorf("slot %s: %w", id, ErrNotFound)
	}
	return sl, nil
}

func (s *MemoryStore) Slots(_ context.Context, f SlotFilter) ([]model.FlexibilitySlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.FlexibilitySlot
	for _, sl := range s.slots {
		if f.State != nil && sl.State != *f.State {
			continue
		}
		if f.Region != nil && sl.Region != *f.Region {
			continue
		}
		if !f.From.IsZero() && sl.End.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && sl.Start.After(f.To) {
			continue
		}
		if f.MinCapacityKWh > 0 && sl.CapacityKWh < f.MinCapacityKWh {
			continue
		}
		out = append(out, sl)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) TransitionSlot(_ context.Context, id string, from, to model.SlotState, at time.Time) (model.FlexibilitySlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return model.FlexibilitySlot{}, fmt.Errorf("slot %s: %w", id, ErrNotFound)
	}
	if sl.State != from {
		return model.FlexibilitySlot{}, fmt.Errorf("slot %s is %s: %w", id, sl.State, ErrConflict)
	}
	sl.State = to
	if to == model.SlotConfirmed {
		ts := at.UTC()
		sl.ConfirmedAt = &ts
	}
	s.slots[id] = sl
	return sl, nil
}

func jobAllows(j model.Job, r model.Region) bool {
	for _, a := range j.AllowedRegions {
		if a == r {
			return true
		}
	}
	return false
}

func copyJob(j model.Job) model.Job {
	cp := j
	cp.AllowedRegions = append([]model.Region(nil), j.AllowedRegions...)
	if j.Schedule != nil {
		sc := *j.Schedule
		sc.DataSources = append([]string(nil), j.Schedule.DataSources...)
		cp.Schedule = &sc
	}
	return cp
}
