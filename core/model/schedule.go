package model

import "time"

// Schedule is the committed placement of a job. It is created once per
// successful optimization pass and replaced if the job is re-optimized.
type Schedule struct {
	ID     string    `json:"schedule_id"`
	JobID  string    `json:"job_id"`
	Region Region    `json:"region"`
	Start  time.Time `json:"start_time"`
	End    time.Time `json:"end_time"`

	EnergyKWh float64 `json:"estimated_energy_kwh"`
	CarbonKg  float64 `json:"estimated_carbon_kg"`
	CostGBP   float64 `json:"estimated_cost_gbp"`

	BaselineCarbonKg float64 `json:"baseline_carbon_kg"`
	BaselineCostGBP  float64 `json:"baseline_cost_gbp"`

	CarbonSavedKg      float64 `json:"carbon_saved_kg"`
	CostSavedGBP       float64 `json:"cost_saved_gbp"`
	CarbonReductionPct float64 `json:"carbon_reduction_percent"`
	CostReductionPct   float64 `json:"cost_reduction_percent"`

	// FlexibilityValueGBP estimates the revenue the deferral could earn
	// on a flexibility market.
	FlexibilityValueGBP float64 `json:"flexibility_value_gbp"`

	CreatedAt   time.Time `json:"created_at"`
	DataSources []string  `json:"data_sources"`
}

// ComputeSavings derives the saving fields from the selected and
// baseline aggregates already present on the schedule.
func (s *Schedule) ComputeSavings() {
	s.CarbonSavedKg = s.BaselineCarbonKg - s.CarbonKg
	s.CostSavedGBP = s.BaselineCostGBP - s.CostGBP
	if s.BaselineCarbonKg > 0 {
		s.CarbonReductionPct = s.CarbonSavedKg / s.BaselineCarbonKg * 100
	}
	if s.BaselineCostGBP > 0 {
		s.CostReductionPct = s.CostSavedGBP / s.BaselineCostGBP * 100
	}
}
