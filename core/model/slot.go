package model

import "time"

// SlotState tracks the flexibility slot lifecycle. A slot is offered
// when created, becomes confirmed through an explicit booking, or
// expires when its window passes unconfirmed. Confirmed is terminal.
type SlotState string

const (
	SlotOffered   SlotState = "offered"
	SlotConfirmed SlotState = "confirmed"
	SlotExpired   SlotState = "expired"
)

// FlexibilitySlot is a discoverable, bookable offer representing unused
// scheduling slack of a committed job.
type FlexibilitySlot struct {
	ID      string `json:"slot_id"`
	JobID   string `json:"job_id"`
	AssetID string `json:"asset_id"`

	Region Region    `json:"region"`
	Start  time.Time `json:"start_time"`
	End    time.Time `json:"end_time"`

	CapacityKWh       float64 `json:"capacity_kwh"`
	ValueGBPPerKgCO2  float64 `json:"value_gbp_per_kg_co2"`
	RenewableFraction float64 `json:"renewable_fraction"`

	ProviderID string `json:"provider_id"`
	ItemType   string `json:"item_type"`

	State       SlotState  `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// ExpiredBy reports whether the slot window has passed at t.
func (s FlexibilitySlot) ExpiredBy(t time.Time) bool {
	return !t.Before(s.End)
}
