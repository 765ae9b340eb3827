package planner

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/gridshift/carbonsched/core/model"
)

// applyCaps marks each candidate against the job's hard constraints.
// Caps are checked before any scoring happens: a candidate over a cap
// never competes on its composite score.
func applyCaps(job model.Job, candidates []model.Candidate) {
	for i := range candidates {
		c := &candidates[i]
		c.WithinCarbonCap = job.CarbonCapGPerKWh == nil || c.AvgIntensity <= *job.CarbonCapGPerKWh
		c.WithinPriceCap = job.MaxPricePerKWh == nil || c.AvgPricePerKWh <= *job.MaxPricePerKWh
	}
}

// rejectionFor names the first violated constraint, or empty for a
// feasible candidate.
func rejectionFor(c model.Candidate, job model.Job) string {
	switch {
	case !c.WithinDeadline:
		return "finishes after deadline"
	case !c.WithinCarbonCap:
		return fmt.Sprintf("avg intensity %.0f g/kWh exceeds cap %.0f", c.AvgIntensity, *job.CarbonCapGPerKWh)
	case !c.WithinPriceCap:
		return fmt.Sprintf("avg price £%.3f/kWh exceeds cap £%.3f", c.AvgPricePerKWh, *job.MaxPricePerKWh)
	}
	return ""
}

// score fills DeadlineRisk and Composite on every feasible candidate.
// Carbon and cost are min-max normalized across the feasible set so the
// weights compare like with like; deadline risk grows linearly as the
// completion time approaches the deadline. When every feasible
// candidate has the same carbon (or cost) that term contributes zero.
func score(job model.Job, candidates []model.Candidate, w Weights) {
	var feasible []int
	for i, c := range candidates {
		if c.Feasible() {
			feasible = append(feasible, i)
		}
	}
	if len(feasible) == 0 {
		return
	}

	carbon := make([]float64, len(feasible))
	cost := make([]float64, len(feasible))
	for k, i := range feasible {
		carbon[k] = candidates[i].CarbonKg
		cost[k] = candidates[i].CostGBP
	}
	cMin, cMax := floats.Min(carbon), floats.Max(carbon)
	pMin, pMax := floats.Min(cost), floats.Max(cost)

	earliestEnd := candidates[feasible[0]].End
	for _, i := range feasible[1:] {
		if candidates[i].End.Before(earliestEnd) {
			earliestEnd = candidates[i].End
		}
	}
	riskSpan := job.LatestFinish.Sub(earliestEnd).Seconds()

	for k, i := range feasible {
		c := &candidates[i]
		c.DeadlineRisk = 0
		if riskSpan > 0 {
			c.DeadlineRisk = c.End.Sub(earliestEnd).Seconds() / riskSpan
		}
		c.Composite = w.Carbon*normalize(carbon[k], cMin, cMax) +
			w.Cost*normalize(cost[k], pMin, pMax) +
			w.Deadline*c.DeadlineRisk
	}
}

func normalize(v, min, max float64) float64 {
	if max <= min {
		return 0
	}
	return (v - min) / (max - min)
}
