package model

import (
	"errors"
	"testing"
	"time"
)

func validSubmission() JobSubmission {
	now := time.Date(2025, 11, 22, 10, 0, 0, 0, time.UTC)
	return JobSubmission{
		JobName:          "training run",
		JobType:          "AI_TRAINING",
		AssetID:          "gpu-1",
		DurationHours:    4,
		EarliestStart:    now,
		LatestFinish:     now.Add(24 * time.Hour),
		AllowedRegions:   []Region{RegionLondon, RegionScotland},
		EstimatedPowerKW: 200,
	}
}

func TestJobSubmission_Valid(t *testing.T) {
	s := validSubmission()
	if err := s.Validate(AllRegions()); err != nil {
		t.Fatalf("expected valid submission, got %v", err)
	}
	job := s.Job(time.Now())
	if job.Status != StatusPending {
		t.Fatalf("new job must be pending, got %s", job.Status)
	}
	if job.Flexibility != FlexDeferrable || job.Priority != PriorityNormal {
		t.Fatalf("defaults not applied: %s %s", job.Flexibility, job.Priority)
	}
	if job.ID == "" {
		t.Fatal("job id not generated")
	}
	if job.MaxDeferralHours() != 20 {
		t.Fatalf("expected 20h deferral, got %.1f", job.MaxDeferralHours())
	}
}

func TestJobSubmission_WindowInvariants(t *testing.T) {
	cases := map[string]func(*JobSubmission){
		"finish before start": func(s *JobSubmission) {
			s.LatestFinish = s.EarliestStart.Add(-time.Hour)
		},
		"window smaller than duration": func(s *JobSubmission) {
			s.LatestFinish = s.EarliestStart.Add(2 * time.Hour)
		},
		"no regions": func(s *JobSubmission) {
			s.AllowedRegions = nil
		},
		"unknown region": func(s *JobSubmission) {
			s.AllowedRegions = []Region{"atlantis"}
		},
		"zero power": func(s *JobSubmission) {
			s.EstimatedPowerKW = 0
		},
		"negative carbon cap": func(s *JobSubmission) {
			bad := -5.0
			s.CarbonCapGPerKWh = &bad
		},
		"unknown priority": func(s *JobSubmission) {
			s.Priority = "urgent"
		},
	}
	for name, mutate := range cases {
		s := validSubmission()
		mutate(&s)
		err := s.Validate(AllRegions())
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("%s: error not tagged as invalid configuration: %v", name, err)
		}
	}
}

func TestJobSubmission_RegionNotConfigured(t *testing.T) {
	s := validSubmission()
	err := s.Validate([]Region{RegionScotland})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}

func TestComputeAsset_Validate(t *testing.T) {
	a := ComputeAsset{ID: "gpu-1", Type: "GPU_CLUSTER", Region: RegionLondon, MaxPowerKW: 200, Flexibility: FlexDeferrable}
	if err := a.Validate(); err != nil {
		t.Fatalf("valid asset rejected: %v", err)
	}
	a.MinPowerKW = 300
	if err := a.Validate(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}

func TestSchedule_ComputeSavings(t *testing.T) {
	s := Schedule{CarbonKg: 40, CostGBP: 80, BaselineCarbonKg: 280, BaselineCostGBP: 120}
	s.ComputeSavings()
	if s.CarbonSavedKg != 240 || s.CostSavedGBP != 40 {
		t.Fatalf("savings wrong: %f %f", s.CarbonSavedKg, s.CostSavedGBP)
	}
	if s.CarbonReductionPct < 85 || s.CarbonReductionPct > 86 {
		t.Fatalf("carbon reduction pct wrong: %f", s.CarbonReductionPct)
	}
}

func TestAlignSlot(t *testing.T) {
	ts := time.Date(2025, 11, 22, 10, 17, 3, 0, time.UTC)
	if got := AlignSlot(ts); !got.Equal(time.Date(2025, 11, 22, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("align: %v", got)
	}
	if got := NextSlot(ts); !got.Equal(time.Date(2025, 11, 22, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("next: %v", got)
	}
	on := time.Date(2025, 11, 22, 10, 30, 0, 0, time.UTC)
	if got := NextSlot(on); !got.Equal(on) {
		t.Fatalf("next on boundary: %v", got)
	}
}
