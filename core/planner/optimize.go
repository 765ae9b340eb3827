package planner

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gridshift/carbonsched/core/model"
)

// ErrNoFeasibleWindow is the sentinel matched by errors.Is when a pass
// finds no placement satisfying every hard constraint.
var ErrNoFeasibleWindow = errors.New("no feasible window")

// NoFeasibleWindowError carries the per-window rejection reasons.
type NoFeasibleWindowError struct {
	JobID      string
	Rejections []string
}

func (e *NoFeasibleWindowError) Error() string {
	return fmt.Sprintf("no feasible window for job %s (%d rejections)", e.JobID, len(e.Rejections))
}

func (e *NoFeasibleWindowError) Is(target error) bool { return target == ErrNoFeasibleWindow }

// Plan is the outcome of one optimization pass over a job.
type Plan struct {
	// Selected is the winning feasible candidate, nil when none exists.
	Selected *model.Candidate
	// Baseline is the run-now placement in the job's primary region,
	// evaluated without caps. Nil when forecasts do not cover it.
	Baseline *model.Candidate
	// Candidates holds every evaluated placement, feasible or not.
	Candidates []model.Candidate
	// Rejections explains infeasible candidates and skipped regions.
	Rejections []string
	Weights    Weights
}

// Optimizer turns a job plus regional forecasts into a Plan. It is
// stateless and safe for concurrent use.
type Optimizer struct {
	weights Weights
}

// NewOptimizer validates the weights and builds an Optimizer.
func NewOptimizer(w Weights) (*Optimizer, error) {
	w.SetDefaults()
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{weights: w}, nil
}

// Plan enumerates, filters and scores every covered placement for the
// job and picks the minimum-composite feasible candidate. Ties break
// deterministically: earliest start first, then region name.
func (o *Optimizer) Plan(job model.Job, signals map[model.Region][]model.GridSignal) (Plan, error) {
	candidates, rejections := enumerate(job, signals)
	applyCaps(job, candidates)
	score(job, candidates, o.weights)

	for _, c := range candidates {
		if !c.Feasible() {
			rejections = append(rejections, fmt.Sprintf("region %s start %s: %s",
				c.Region, c.Start.Format("2006-01-02T15:04Z"), rejectionFor(c, job)))
		}
	}

	plan := Plan{
		Candidates: candidates,
		Rejections: rejections,
		Weights:    o.weights,
		Baseline:   baseline(job, candidates),
	}

	selected := selectBest(candidates)
	if selected == nil {
		return plan, &NoFeasibleWindowError{JobID: job.ID, Rejections: rejections}
	}
	plan.Selected = selected
	return plan, nil
}

// selectBest returns the feasible candidate with the lowest composite
// score. The ordering is total so repeated passes over identical input
// pick the identical placement.
func selectBest(candidates []model.Candidate) *model.Candidate {
	best := -1
	for i, c := range candidates {
		if !c.Feasible() {
			continue
		}
		if best < 0 || better(c, candidates[best]) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	out := candidates[best]
	return &out
}

func better(a, b model.Candidate) bool {
	if a.Composite != b.Composite {
		return a.Composite < b.Composite
	}
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	return a.Region < b.Region
}

// baseline finds the run-now placement in the primary region, the
// reference every saving is measured against. Caps are deliberately
// ignored: the baseline is what a naive immediate run would do.
func baseline(job model.Job, candidates []model.Candidate) *model.Candidate {
	primary := job.PrimaryRegion()
	first := model.NextSlot(job.EarliestStart)
	for _, c := range candidates {
		if c.Region == primary && c.Start.Equal(first) {
			out := c
			return &out
		}
	}
	return nil
}

// sortCandidates orders candidates for stable audit output.
func sortCandidates(candidates []model.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].Start.Equal(candidates[j].Start) {
			return candidates[i].Start.Before(candidates[j].Start)
		}
		return candidates[i].Region < candidates[j].Region
	})
}
