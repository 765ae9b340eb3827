package planner

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/gridshift/carbonsched/core/model"
)

// enumerate generates every slot-aligned (region, start) placement that
// fits inside the job's window and is fully covered by forecast data.
// Windows with gaps in forecast coverage are dropped, never padded with
// invented values. The returned rejections explain regions that yielded
// no candidate at all.
func enumerate(job model.Job, signals map[model.Region][]model.GridSignal) ([]model.Candidate, []string) {
	duration := job.Duration()
	firstStart := model.NextSlot(job.EarliestStart)
	latestStart := job.LatestFinish.Add(-duration)

	var candidates []model.Candidate
	var rejections []string

	for _, region := range job.AllowedRegions {
		sigs := signals[region]
		if len(sigs) == 0 {
			rejections = append(rejections, fmt.Sprintf("region %s: no forecast data", region))
			continue
		}
		if firstStart.After(latestStart) {
			rejections = append(rejections, fmt.Sprintf("region %s: window shorter than %.1fh duration after slot alignment", region, job.DurationHours))
			continue
		}

		index := make(map[time.Time]model.GridSignal, len(sigs))
		for _, s := range sigs {
			index[s.Timestamp.UTC()] = s
		}

		uncovered := 0
		starts := 0
		for start := firstStart; !start.After(latestStart); start = start.Add(model.SlotDuration) {
			starts++
			c, ok := aggregate(job, region, start, duration, index)
			if !ok {
				uncovered++
				continue
			}
			candidates = append(candidates, c)
		}
		if uncovered == starts {
			rejections = append(rejections, fmt.Sprintf("region %s: no fully covered window among %d considered", region, starts))
		}

		// Fixed jobs may only start at their earliest slot.
		if !job.Deferrable() {
			candidates = keepEarliest(candidates, region, firstStart)
		}
	}
	return candidates, rejections
}

// aggregate sums carbon, cost and renewable share over the slots of one
// placement. It fails when any slot lacks a forecast signal.
func aggregate(job model.Job, region model.Region, start time.Time, duration time.Duration, index map[time.Time]model.GridSignal) (model.Candidate, bool) {
	end := start.Add(duration)
	var carbonKg, costGBP, energyKWh float64
	var renewables []float64

	for slot := start; slot.Before(end); slot = slot.Add(model.SlotDuration) {
		sig, ok := index[slot]
		if !ok {
			return model.Candidate{}, false
		}
		slotEnd := slot.Add(model.SlotDuration)
		if slotEnd.After(end) {
			slotEnd = end
		}
		e := job.EstimatedPowerKW * slotEnd.Sub(slot).Hours()
		energyKWh += e
		carbonKg += e * sig.CarbonIntensity / 1000
		costGBP += e * sig.PricePerKWh
		renewables = append(renewables, sig.RenewableFraction)
	}
	if energyKWh == 0 {
		return model.Candidate{}, false
	}

	return model.Candidate{
		Region:            region,
		Start:             start,
		End:               end,
		EnergyKWh:         energyKWh,
		CarbonKg:          carbonKg,
		CostGBP:           costGBP,
		AvgIntensity:      carbonKg * 1000 / energyKWh,
		AvgPricePerKWh:    costGBP / energyKWh,
		RenewableFraction: stat.Mean(renewables, nil),
		WithinDeadline:    true,
	}, true
}

func keepEarliest(candidates []model.Candidate, region model.Region, start time.Time) []model.Candidate {
	out := candidates[:0]
	for _, c := range candidates {
		if c.Region == region && !c.Start.Equal(start) {
			continue
		}
		out = append(out, c)
	}
	return out
}
