package app

import (
	"context"

	"github.com/gridshift/carbonsched/core/model"
	"github.com/gridshift/carbonsched/core/store"
)

// JobStatistics aggregates lifecycle and savings figures over every
// known job.
type JobStatistics struct {
	Total    int                      `json:"total"`
	ByStatus map[model.JobStatus]int  `json:"by_status"`

	CarbonSavedKg       float64 `json:"carbon_saved_kg"`
	CostSavedGBP        float64 `json:"cost_saved_gbp"`
	FlexibilityValueGBP float64 `json:"flexibility_value_gbp"`
	// AvgCarbonReductionPct averages over scheduled jobs only.
	AvgCarbonReductionPct float64 `json:"avg_carbon_reduction_percent"`
}

// FlexibilitySummary aggregates the slot catalog.
type FlexibilitySummary struct {
	ByState              map[model.SlotState]int `json:"by_state"`
	OfferedCapacityKWh   float64                 `json:"offered_capacity_kwh"`
	ConfirmedCapacityKWh float64                 `json:"confirmed_capacity_kwh"`
}

// Statistics computes aggregate job figures.
func (s *Service) Statistics(ctx context.Context) (JobStatistics, error) {
	jobs, err := s.repo.Jobs(ctx, store.JobFilter{})
	if err != nil {
		return JobStatistics{}, err
	}
	stats := JobStatistics{ByStatus: make(map[model.JobStatus]int)}
	scheduled := 0
	for _, j := range jobs {
		stats.Total++
		stats.ByStatus[j.Status]++
		if j.Schedule == nil {
			continue
		}
		scheduled++
		stats.CarbonSavedKg += j.Schedule.CarbonSavedKg
		stats.CostSavedGBP += j.Schedule.CostSavedGBP
		stats.FlexibilityValueGBP += j.Schedule.FlexibilityValueGBP
		stats.AvgCarbonReductionPct += j.Schedule.CarbonReductionPct
	}
	if scheduled > 0 {
		stats.AvgCarbonReductionPct /= float64(scheduled)
	}
	return stats, nil
}

// Flexibility computes aggregate slot figures.
func (s *Service) Flexibility(ctx context.Context) (FlexibilitySummary, error) {
	slots, err := s.repo.Slots(ctx, store.SlotFilter{})
	if err != nil {
		return FlexibilitySummary{}, err
	}
	sum := FlexibilitySummary{ByState: make(map[model.SlotState]int)}
	for _, sl := range slots {
		sum.ByState[sl.State]++
		switch sl.State {
		case model.SlotOffered:
			sum.OfferedCapacityKWh += sl.CapacityKWh
		case model.SlotConfirmed:
			sum.ConfirmedCapacityKWh += sl.CapacityKWh
		}
	}
	return sum, nil
}
