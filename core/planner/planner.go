package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridshift/carbonsched/core/audit"
	"github.com/gridshift/carbonsched/core/catalog"
	"github.com/gridshift/carbonsched/core/logger"
	"github.com/gridshift/carbonsched/core/metrics"
	"github.com/gridshift/carbonsched/core/model"
	"github.com/gridshift/carbonsched/core/signal"
	"github.com/gridshift/carbonsched/core/store"
	"github.com/gridshift/carbonsched/internal/eventbus"
)

// ErrPassInFlight is returned when a scheduling pass for the same job
// is already running.
var ErrPassInFlight = errors.New("scheduling pass already in flight")

// flexValueGBPPerKgCO2 prices avoided carbon when estimating what a
// deferral could earn on a flexibility market.
const flexValueGBPPerKgCO2 = 0.05

// SignalSource serves grid forecasts for a region and range. The signal
// cache is the production implementation.
type SignalSource interface {
	Get(ctx context.Context, region model.Region, from, to time.Time) ([]model.GridSignal, error)
}

// Deps wires the planner's collaborators. Repo, Signals and Audit are
// required; the rest default to no-ops.
type Deps struct {
	Repo    store.Repository
	Signals SignalSource
	Audit   audit.Store
	Catalog *catalog.Catalog
	Sink    metrics.MetricsSink
	Bus     *eventbus.Bus
	Log     logger.Logger
}

// Planner runs scheduling passes: it gathers forecasts, asks the
// optimizer for a plan, commits the winning schedule and writes the
// audit record. A job's committed state and its audit record move
// together; an audit write failure rolls the commitment back.
type Planner struct {
	repo    store.Repository
	signals SignalSource
	audit   audit.Store
	catalog *catalog.Catalog
	opt     *Optimizer
	sink    metrics.MetricsSink
	bus     *eventbus.Bus
	log     logger.Logger
	horizon time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}

	now func() time.Time
}

// New builds a Planner.
func New(d Deps, cfg Config) (*Planner, error) {
	if d.Repo == nil || d.Signals == nil || d.Audit == nil {
		return nil, fmt.Errorf("%w: planner needs a repository, signal source and audit store", model.ErrInvalidConfiguration)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opt, err := NewOptimizer(cfg.Weights)
	if err != nil {
		return nil, err
	}
	if d.Sink == nil {
		d.Sink = metrics.NopSink{}
	}
	if d.Log == nil {
		d.Log = logger.Nop{}
	}
	return &Planner{
		repo:     d.Repo,
		signals:  d.Signals,
		audit:    d.Audit,
		catalog:  d.Catalog,
		opt:      opt,
		sink:     d.Sink,
		bus:      d.Bus,
		log:      d.Log,
		horizon:  time.Duration(cfg.HorizonHours) * time.Hour,
		inflight: make(map[string]struct{}),
		now:      time.Now,
	}, nil
}

// Schedule runs one optimization pass for the job and returns the
// committed schedule. At most one pass per job runs at a time; a
// concurrent call returns ErrPassInFlight.
func (p *Planner) Schedule(ctx context.Context, jobID string) (model.Schedule, error) {
	if err := p.acquire(jobID); err != nil {
		return model.Schedule{}, err
	}
	defer p.release(jobID)

	started := p.now()
	job, err := p.repo.Job(ctx, jobID)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("load job %s: %w", jobID, err)
	}
	switch job.Status {
	case model.StatusPending, model.StatusScheduled, model.StatusFailedToSchedule:
	default:
		return model.Schedule{}, fmt.Errorf("job %s is %s and cannot be scheduled", jobID, job.Status)
	}

	prev := job
	now := p.now().UTC()
	if now.After(job.EarliestStart) {
		job.EarliestStart = now
	}

	signals, sources, err := p.gather(ctx, job)
	if err != nil {
		p.recordPass(metrics.PassResult{JobID: jobID, Outcome: metrics.PassSignalUnavailable, Duration: p.now().Sub(started), Time: now})
		return model.Schedule{}, err
	}

	plan, planErr := p.opt.Plan(job, signals)
	sortCandidates(plan.Candidates)
	decision := p.decision(now, job, plan, sources)

	if planErr != nil {
		if _, serr := p.repo.UpdateJobStatus(ctx, jobID, model.StatusFailedToSchedule, now); serr != nil {
			p.log.Errorf("mark job %s failed: %v", jobID, serr)
		}
		if aerr := p.audit.Append(ctx, decision); aerr != nil {
			return model.Schedule{}, fmt.Errorf("append audit decision: %w", aerr)
		}
		p.recordPass(metrics.PassResult{JobID: jobID, Outcome: metrics.PassNoFeasibleWindow, Candidates: len(plan.Candidates), Duration: p.now().Sub(started), Time: now})
		p.log.Warnf("no feasible window for job %s: %d candidates rejected", jobID, len(plan.Candidates))
		return model.Schedule{}, planErr
	}

	sched := p.buildSchedule(now, job, plan, signals)
	decision.Selected = candidateOutcome(*plan.Selected, job)
	decision.CarbonSavedKg = sched.CarbonSavedKg
	decision.CostSavedGBP = sched.CostSavedGBP

	committed, err := p.repo.AttachSchedule(ctx, jobID, sched, now)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("commit schedule for job %s: %w", jobID, err)
	}
	if err := p.audit.Append(ctx, decision); err != nil {
		// The schedule and its audit record stand or fall together.
		if rerr := p.repo.PutJob(ctx, prev); rerr != nil {
			p.log.Errorf("rollback job %s after audit failure: %v", jobID, rerr)
		}
		return model.Schedule{}, fmt.Errorf("append audit decision: %w", err)
	}

	if p.catalog != nil {
		if _, cerr := p.catalog.OfferSlack(ctx, committed, sched, plan.Selected.RenewableFraction); cerr != nil {
			p.log.Warnf("offer flexibility slack for job %s: %v", jobID, cerr)
		}
	}

	result := metrics.PassResult{
		JobID:         jobID,
		Outcome:       metrics.PassScheduled,
		Region:        sched.Region,
		Candidates:    len(plan.Candidates),
		CarbonSavedKg: sched.CarbonSavedKg,
		CostSavedGBP:  sched.CostSavedGBP,
		Duration:      p.now().Sub(started),
		Time:          now,
	}
	p.recordPass(result)
	if p.bus != nil {
		p.bus.Publish(result)
	}
	p.log.Infof("scheduled job %s in %s at %s (%.2f kg CO2, £%.2f saved)",
		jobID, sched.Region, sched.Start.Format(time.RFC3339), sched.CarbonSavedKg, sched.CostSavedGBP)
	return sched, nil
}

// gather fetches forecasts for every allowed region. A pass proceeds as
// long as at least one region has data; when every region fails the
// pass aborts without touching the job.
func (p *Planner) gather(ctx context.Context, job model.Job) (map[model.Region][]model.GridSignal, []audit.SignalProvenance, error) {
	from := model.AlignSlot(job.EarliestStart)
	to := job.LatestFinish
	if max := from.Add(p.horizon); to.After(max) {
		to = max
	}

	signals := make(map[model.Region][]model.GridSignal, len(job.AllowedRegions))
	var sources []audit.SignalProvenance
	var lastErr error
	for _, region := range job.AllowedRegions {
		sigs, err := p.signals.Get(ctx, region, from, to)
		if err != nil {
			p.log.Warnf("forecast unavailable for %s: %v", region, err)
			lastErr = err
			continue
		}
		if len(sigs) == 0 {
			continue
		}
		signals[region] = sigs
		sources = append(sources, audit.SignalProvenance{
			Region:    region,
			Source:    sigs[0].DataSource,
			FetchedAt: p.now().UTC(),
		})
	}
	if len(signals) == 0 {
		if lastErr != nil {
			return nil, nil, fmt.Errorf("job %s: all regions unavailable: %w", job.ID, lastErr)
		}
		return nil, nil, fmt.Errorf("job %s: %w: no forecast data in any allowed region", job.ID, signal.ErrUnavailable)
	}
	return signals, sources, nil
}

func (p *Planner) buildSchedule(now time.Time, job model.Job, plan Plan, signals map[model.Region][]model.GridSignal) model.Schedule {
	sel := *plan.Selected
	sched := model.Schedule{
		ID:        "sched_" + uuid.NewString()[:8],
		JobID:     job.ID,
		Region:    sel.Region,
		Start:     sel.Start,
		End:       sel.End,
		EnergyKWh: sel.EnergyKWh,
		CarbonKg:  sel.CarbonKg,
		CostGBP:   sel.CostGBP,
		CreatedAt: now,
	}

	// Without forecast coverage of the run-now placement the selected
	// candidate is its own baseline and savings are zero.
	base := plan.Baseline
	if base == nil {
		base = plan.Selected
	}
	sched.BaselineCarbonKg = base.CarbonKg
	sched.BaselineCostGBP = base.CostGBP
	sched.ComputeSavings()
	if sched.CarbonSavedKg > 0 {
		sched.FlexibilityValueGBP = sched.CarbonSavedKg * flexValueGBPPerKgCO2
	}

	seen := make(map[string]struct{})
	for _, sigs := range signals {
		for _, s := range sigs {
			if _, ok := seen[s.DataSource]; !ok && s.DataSource != "" {
				seen[s.DataSource] = struct{}{}
				sched.DataSources = append(sched.DataSources, s.DataSource)
			}
		}
	}
	return sched
}

func (p *Planner) decision(now time.Time, job model.Job, plan Plan, sources []audit.SignalProvenance) audit.Decision {
	d := audit.Decision{
		ID:        "dec_" + uuid.NewString()[:8],
		Timestamp: now,
		JobID:     job.ID,
		Outcome:   audit.OutcomeScheduled,
		Sources:   sources,
		WeightsUsed: audit.Weights{
			Carbon:   plan.Weights.Carbon,
			Cost:     plan.Weights.Cost,
			Deadline: plan.Weights.Deadline,
		},
		Rejections: plan.Rejections,
	}
	if plan.Selected == nil {
		d.Outcome = audit.OutcomeNoFeasibleWindow
	}
	for _, c := range plan.Candidates {
		d.Candidates = append(d.Candidates, *candidateOutcome(c, job))
	}
	if plan.Baseline != nil {
		d.Baseline = candidateOutcome(*plan.Baseline, job)
	}
	return d
}

func candidateOutcome(c model.Candidate, job model.Job) *audit.CandidateOutcome {
	return &audit.CandidateOutcome{
		Region:    c.Region,
		Start:     c.Start,
		End:       c.End,
		CarbonKg:  c.CarbonKg,
		CostGBP:   c.CostGBP,
		Composite: c.Composite,
		Feasible:  c.Feasible(),
		Rejection: rejectionFor(c, job),
	}
}

func (p *Planner) recordPass(r metrics.PassResult) {
	if err := p.sink.RecordPass(r); err != nil {
		p.log.Warnf("record pass metric: %v", err)
	}
}

func (p *Planner) acquire(jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inflight[jobID]; ok {
		return fmt.Errorf("%w: job %s", ErrPassInFlight, jobID)
	}
	p.inflight[jobID] = struct{}{}
	return nil
}

func (p *Planner) release(jobID string) {
	p.mu.Lock()
	delete(p.inflight, jobID)
	p.mu.Unlock()
}
