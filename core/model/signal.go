package model

import "time"

// SlotDuration is the native resolution of the upstream forecast
// sources. All signal timestamps are aligned to this granularity.
const SlotDuration = 30 * time.Minute

// GridSignal is one half-hour observation or forecast point for a
// region. Signals are produced by external providers and are read-only
// to the core.
type GridSignal struct {
	Region            Region    `json:"region"`
	Timestamp         time.Time `json:"timestamp"`
	CarbonIntensity   float64   `json:"carbon_intensity_g_per_kwh"` // gCO2/kWh
	RenewableFraction float64   `json:"renewable_fraction"`         // 0-1
	PricePerKWh       float64   `json:"price_per_kwh"`              // GBP/kWh
	DataSource        string    `json:"data_source"`
}

// AlignSlot floors t to the start of its half-hour slot in UTC.
func AlignSlot(t time.Time) time.Time {
	return t.UTC().Truncate(SlotDuration)
}

// NextSlot returns the first slot boundary at or after t.
func NextSlot(t time.Time) time.Time {
	aligned := AlignSlot(t)
	if aligned.Equal(t.UTC()) {
		return aligned
	}
	return aligned.Add(SlotDuration)
}
