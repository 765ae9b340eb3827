package model

import "time"

// Candidate is one (region, start-time) placement under evaluation.
// Candidates are ephemeral: generated, scored and discarded within a
// single optimization pass.
type Candidate struct {
	Region Region    `json:"region"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`

	// Aggregates over the window.
	EnergyKWh         float64 `json:"energy_kwh"`
	CarbonKg          float64 `json:"carbon_kg"`
	CostGBP           float64 `json:"cost_gbp"`
	AvgIntensity      float64 `json:"avg_intensity_g_per_kwh"`
	AvgPricePerKWh    float64 `json:"avg_price_per_kwh"`
	RenewableFraction float64 `json:"renewable_fraction"`

	// Scores, filled by the score engine for feasible candidates.
	DeadlineRisk float64 `json:"deadline_risk"`
	Composite    float64 `json:"composite"`

	// Feasibility flags.
	WithinDeadline  bool `json:"within_deadline"`
	WithinCarbonCap bool `json:"within_carbon_cap"`
	WithinPriceCap  bool `json:"within_price_cap"`
}

// Feasible reports whether the candidate passes every hard constraint.
func (c Candidate) Feasible() bool {
	return c.WithinDeadline && c.WithinCarbonCap && c.WithinPriceCap
}

// SameWindow reports whether two candidates describe the same placement.
func (c Candidate) SameWindow(o Candidate) bool {
	return c.Region == o.Region && c.Start.Equal(o.Start) && c.End.Equal(o.End)
}
