package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gridshift/carbonsched/core/audit"
	"github.com/gridshift/carbonsched/core/logger"
	"github.com/gridshift/carbonsched/core/model"
	"github.com/gridshift/carbonsched/core/store"
)

var base = time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)

// mapSource serves pre-built signals, failing for regions it does not
// know about.
type mapSource struct {
	signals map[model.Region][]model.GridSignal
}

func (m *mapSource) Get(_ context.Context, region model.Region, from, to time.Time) ([]model.GridSignal, error) {
	sigs, ok := m.signals[region]
	if !ok {
		return nil, errors.New("region not covered")
	}
	var out []model.GridSignal
	for _, s := range sigs {
		if !s.Timestamp.Before(from) && s.Timestamp.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

// halfHourly builds signals over [start, start+hours) with the given
// intensity curve and a flat price.
func halfHourly(region model.Region, start time.Time, hours int, price float64, intensity func(t time.Time) float64) []model.GridSignal {
	var out []model.GridSignal
	for t := start; t.Before(start.Add(time.Duration(hours) * time.Hour)); t = t.Add(model.SlotDuration) {
		out = append(out, model.GridSignal{
			Region:          region,
			Timestamp:       t,
			CarbonIntensity: intensity(t),
			PricePerKWh:     price,
			DataSource:      "test_feed",
		})
	}
	return out
}

// dipIntensity is 300 g/kWh except for a clean-grid dip in the last
// two hours of the job window.
func dipIntensity(t time.Time) float64 {
	if !t.Before(base.Add(10 * time.Hour)) {
		return 100
	}
	return 300
}

func submitTestJob(t *testing.T, repo store.Repository, mutate func(*model.Job)) model.Job {
	t.Helper()
	job := model.Job{
		ID:               "job_plan01",
		Name:             "batch-render",
		Type:             "render",
		AssetID:          "asset_1",
		DurationHours:    2,
		EarliestStart:    base,
		LatestFinish:     base.Add(12 * time.Hour),
		AllowedRegions:   []model.Region{model.RegionScotland},
		Flexibility:      model.FlexDeferrable,
		Priority:         model.PriorityNormal,
		EstimatedPowerKW: 100,
		Status:           model.StatusPending,
		SubmittedAt:      base,
	}
	if mutate != nil {
		mutate(&job)
	}
	if err := repo.PutJob(context.Background(), job); err != nil {
		t.Fatalf("put job: %v", err)
	}
	return job
}

func newTestPlanner(t *testing.T, repo store.Repository, aud audit.Store, src SignalSource) *Planner {
	t.Helper()
	p, err := New(Deps{Repo: repo, Signals: src, Audit: aud, Log: logger.Nop{}}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.now = func() time.Time { return base }
	return p
}

func TestSchedulePicksCleanWindow(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryStore()
	aud := audit.NewMemoryStore()
	src := &mapSource{signals: map[model.Region][]model.GridSignal{
		model.RegionScotland: halfHourly(model.RegionScotland, base, 12, 0.15, dipIntensity),
	}}
	p := newTestPlanner(t, repo, aud, src)
	job := submitTestJob(t, repo, nil)

	sched, err := p.Schedule(ctx, job.ID)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !sched.Start.Equal(base.Add(10 * time.Hour)) {
		t.Fatalf("start = %s, want the clean dip at +10h", sched.Start)
	}
	if sched.Region != model.RegionScotland {
		t.Fatalf("region = %s", sched.Region)
	}
	// 200 kWh at 300 vs 100 g/kWh.
	if sched.BaselineCarbonKg != 60 || sched.CarbonKg != 20 {
		t.Fatalf("carbon: baseline %.1f selected %.1f, want 60/20", sched.BaselineCarbonKg, sched.CarbonKg)
	}
	if sched.CarbonSavedKg != 40 {
		t.Fatalf("saved %.1f kg, want 40", sched.CarbonSavedKg)
	}
	if len(sched.DataSources) != 1 || sched.DataSources[0] != "test_feed" {
		t.Fatalf("data sources = %v", sched.DataSources)
	}

	stored, err := repo.Job(ctx, job.ID)
	if err != nil {
		t.Fatalf("job lookup: %v", err)
	}
	if stored.Status != model.StatusScheduled || stored.Schedule == nil {
		t.Fatalf("job not committed: status=%s schedule=%v", stored.Status, stored.Schedule)
	}
	if stored.ScheduledAt == nil {
		t.Fatal("scheduled_at not stamped")
	}
}

func TestScheduleWritesOneDecisionPerPass(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryStore()
	aud := audit.NewMemoryStore()
	src := &mapSource{signals: map[model.Region][]model.GridSignal{
		model.RegionScotland: halfHourly(model.RegionScotland, base, 12, 0.15, dipIntensity),
	}}
	p := newTestPlanner(t, repo, aud, src)
	job := submitTestJob(t, repo, nil)

	var first model.Schedule
	for i := 0; i < 3; i++ {
		sched, err := p.Schedule(ctx, job.ID)
		if err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		if i == 0 {
			first = sched
			continue
		}
		// Re-optimizing against unchanged signals must land on the
		// same placement.
		if sched.Region != first.Region || !sched.Start.Equal(first.Start) || !sched.End.Equal(first.End) {
			t.Fatalf("pass %d moved the schedule: [%s %s..%s] vs [%s %s..%s]",
				i, sched.Region, sched.Start, sched.End, first.Region, first.Start, first.End)
		}
	}
	history, err := aud.Query(ctx, audit.Query{JobID: job.ID})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("decisions = %d, want exactly one per pass", len(history))
	}
	d := history[0]
	if d.Outcome != audit.OutcomeScheduled || d.Selected == nil || d.Baseline == nil {
		t.Fatalf("decision incomplete: %+v", d)
	}
	if len(d.Candidates) == 0 {
		t.Fatal("decision lists no candidates")
	}
	if d.WeightsUsed.Carbon != 0.6 || d.WeightsUsed.Cost != 0.3 || d.WeightsUsed.Deadline != 0.1 {
		t.Fatalf("weights = %+v", d.WeightsUsed)
	}
}

func TestScheduleIsDeterministic(t *testing.T) {
	ctx := context.Background()
	src := &mapSource{signals: map[model.Region][]model.GridSignal{
		model.RegionScotland: halfHourly(model.RegionScotland, base, 12, 0.15, dipIntensity),
	}}

	var first model.Schedule
	for i := 0; i < 5; i++ {
		repo := store.NewMemoryStore()
		p := newTestPlanner(t, repo, audit.NewMemoryStore(), src)
		job := submitTestJob(t, repo, nil)
		sched, err := p.Schedule(ctx, job.ID)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if i == 0 {
			first = sched
			continue
		}
		if sched.Region != first.Region || !sched.Start.Equal(first.Start) {
			t.Fatalf("run %d picked %s@%s, first run picked %s@%s",
				i, sched.Region, sched.Start, first.Region, first.Start)
		}
	}
}

func TestScheduleTieBreaksByRegionName(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryStore()
	flat := func(time.Time) float64 { return 200 }
	src := &mapSource{signals: map[model.Region][]model.GridSignal{
		model.RegionLondon:   halfHourly(model.RegionLondon, base, 12, 0.15, flat),
		model.RegionScotland: halfHourly(model.RegionScotland, base, 12, 0.15, flat),
	}}
	p := newTestPlanner(t, repo, audit.NewMemoryStore(), src)
	job := submitTestJob(t, repo, func(j *model.Job) {
		j.AllowedRegions = []model.Region{model.RegionScotland, model.RegionLondon}
	})

	sched, err := p.Schedule(ctx, job.ID)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	// Flat signals make every candidate identical: earliest start wins,
	// then the lexicographically smaller region.
	if !sched.Start.Equal(base) {
		t.Fatalf("start = %s, want earliest", sched.Start)
	}
	if sched.Region != model.RegionLondon {
		t.Fatalf("region = %s, want london", sched.Region)
	}
}

func TestScheduleCarbonCapUnmeetable(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryStore()
	aud := audit.NewMemoryStore()
	src := &mapSource{signals: map[model.Region][]model.GridSignal{
		model.RegionScotland: halfHourly(model.RegionScotland, base, 12, 0.15, func(time.Time) float64 { return 400 }),
	}}
	p := newTestPlanner(t, repo, aud, src)
	cap := 50.0
	job := submitTestJob(t, repo, func(j *model.Job) { j.CarbonCapGPerKWh = &cap })

	_, err := p.Schedule(ctx, job.ID)
	if !errors.Is(err, ErrNoFeasibleWindow) {
		t.Fatalf("err = %v, want ErrNoFeasibleWindow", err)
	}
	var nfw *NoFeasibleWindowError
	if !errors.As(err, &nfw) || len(nfw.Rejections) == 0 {
		t.Fatalf("error carries no rejections: %v", err)
	}

	stored, _ := repo.Job(ctx, job.ID)
	if stored.Status != model.StatusFailedToSchedule {
		t.Fatalf("status = %s, want failed_to_schedule", stored.Status)
	}
	history, _ := aud.Query(ctx, audit.Query{JobID: job.ID})
	if len(history) != 1 || history[0].Outcome != audit.OutcomeNoFeasibleWindow {
		t.Fatalf("audit history = %+v", history)
	}
	if history[0].Selected != nil {
		t.Fatal("failed pass must not record a selection")
	}
	if len(history[0].Rejections) == 0 {
		t.Fatal("failed pass must record rejections")
	}
}

func TestSchedulePriceCapFiltersBeforeScoring(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryStore()
	// Cheap power coincides with dirty power. The price cap must win:
	// candidates over the cap never compete however clean they are.
	intensity := func(t time.Time) float64 {
		if t.Before(base.Add(6 * time.Hour)) {
			return 100
		}
		return 300
	}
	sigs := halfHourly(model.RegionScotland, base, 12, 0, intensity)
	for i := range sigs {
		if sigs[i].Timestamp.Before(base.Add(6 * time.Hour)) {
			sigs[i].PricePerKWh = 0.30
		} else {
			sigs[i].PricePerKWh = 0.10
		}
	}
	p := newTestPlanner(t, repo, audit.NewMemoryStore(), &mapSource{signals: map[model.Region][]model.GridSignal{model.RegionScotland: sigs}})
	maxPrice := 0.12
	job := submitTestJob(t, repo, func(j *model.Job) { j.MaxPricePerKWh = &maxPrice })

	sched, err := p.Schedule(ctx, job.ID)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if sched.Start.Before(base.Add(6 * time.Hour)) {
		t.Fatalf("selected a window over the price cap: start %s", sched.Start)
	}
}

func TestScheduleAllRegionsUnavailable(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryStore()
	aud := audit.NewMemoryStore()
	p := newTestPlanner(t, repo, aud, &mapSource{signals: map[model.Region][]model.GridSignal{}})
	job := submitTestJob(t, repo, nil)

	if _, err := p.Schedule(ctx, job.ID); err == nil {
		t.Fatal("expected error when no region has data")
	}
	// A transient data outage must not fail the job.
	stored, _ := repo.Job(ctx, job.ID)
	if stored.Status != model.StatusPending {
		t.Fatalf("status = %s, want pending", stored.Status)
	}
	history, _ := aud.Query(ctx, audit.Query{JobID: job.ID})
	if len(history) != 0 {
		t.Fatalf("outage wrote %d decisions", len(history))
	}
}

func TestSchedulePartialRegionOutage(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryStore()
	src := &mapSource{signals: map[model.Region][]model.GridSignal{
		model.RegionScotland: halfHourly(model.RegionScotland, base, 12, 0.15, dipIntensity),
	}}
	p := newTestPlanner(t, repo, audit.NewMemoryStore(), src)
	job := submitTestJob(t, repo, func(j *model.Job) {
		j.AllowedRegions = []model.Region{model.RegionScotland, model.RegionLondon}
	})

	sched, err := p.Schedule(ctx, job.ID)
	if err != nil {
		t.Fatalf("pass must proceed on partial coverage: %v", err)
	}
	if sched.Region != model.RegionScotland {
		t.Fatalf("region = %s", sched.Region)
	}
}

type failingAudit struct {
	audit.Store
}

func (failingAudit) Append(context.Context, audit.Decision) error {
	return errors.New("disk full")
}

func TestScheduleRollsBackOnAuditFailure(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryStore()
	src := &mapSource{signals: map[model.Region][]model.GridSignal{
		model.RegionScotland: halfHourly(model.RegionScotland, base, 12, 0.15, dipIntensity),
	}}
	p := newTestPlanner(t, repo, failingAudit{audit.NewMemoryStore()}, src)
	job := submitTestJob(t, repo, nil)

	if _, err := p.Schedule(ctx, job.ID); err == nil {
		t.Fatal("expected audit append failure to surface")
	}
	stored, _ := repo.Job(ctx, job.ID)
	if stored.Status != model.StatusPending || stored.Schedule != nil {
		t.Fatalf("commit not rolled back: status=%s schedule=%v", stored.Status, stored.Schedule)
	}
}

func TestScheduleRejectsConcurrentPass(t *testing.T) {
	repo := store.NewMemoryStore()
	src := &mapSource{signals: map[model.Region][]model.GridSignal{}}
	p := newTestPlanner(t, repo, audit.NewMemoryStore(), src)
	job := submitTestJob(t, repo, nil)

	if err := p.acquire(job.ID); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer p.release(job.ID)

	if _, err := p.Schedule(context.Background(), job.ID); !errors.Is(err, ErrPassInFlight) {
		t.Fatalf("err = %v, want ErrPassInFlight", err)
	}
}

func TestScheduleFixedJobOnlyRunsNow(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryStore()
	src := &mapSource{signals: map[model.Region][]model.GridSignal{
		model.RegionScotland: halfHourly(model.RegionScotland, base, 12, 0.15, dipIntensity),
	}}
	p := newTestPlanner(t, repo, audit.NewMemoryStore(), src)
	job := submitTestJob(t, repo, func(j *model.Job) { j.Flexibility = model.FlexFixed })

	sched, err := p.Schedule(ctx, job.ID)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !sched.Start.Equal(base) {
		t.Fatalf("fixed job deferred to %s", sched.Start)
	}
	if sched.CarbonSavedKg != 0 {
		t.Fatalf("fixed job claims %.1f kg savings", sched.CarbonSavedKg)
	}
}

func TestScheduleCompletedJobRefused(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryStore()
	p := newTestPlanner(t, repo, audit.NewMemoryStore(), &mapSource{})
	job := submitTestJob(t, repo, func(j *model.Job) { j.Status = model.StatusCompleted })

	if _, err := p.Schedule(ctx, job.ID); err == nil {
		t.Fatal("completed job must not be rescheduled")
	}
}

func TestWeightsValidate(t *testing.T) {
	cases := []struct {
		name string
		w    Weights
		ok   bool
	}{
		{"defaults", Weights{0.6, 0.3, 0.1}, true},
		{"cost only", Weights{0, 1, 0}, true},
		{"sum below one", Weights{0.5, 0.3, 0.1}, false},
		{"negative", Weights{-0.1, 1.0, 0.1}, false},
		{"above one", Weights{1.2, 0, 0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.w.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, model.ErrInvalidConfiguration) {
					t.Fatalf("err = %v, want ErrInvalidConfiguration", err)
				}
			}
		})
	}
}
