package metrics

import (
	"time"

	"github.com/gridshift/carbonsched/core/model"
)

// PassOutcome labels how an optimization pass ended for metrics.
type PassOutcome string

const (
	PassScheduled         PassOutcome = "scheduled"
	PassNoFeasibleWindow  PassOutcome = "no_feasible_window"
	PassSignalUnavailable PassOutcome = "signal_unavailable"
	PassError             PassOutcome = "error"
)

// PassResult summarizes one optimization pass for observability.
type PassResult struct {
	JobID         string
	Outcome       PassOutcome
	Region        model.Region
	Candidates    int
	CarbonSavedKg float64
	CostSavedGBP  float64
	Duration      time.Duration
	Time          time.Time
}

// SlotResult captures a flexibility slot lifecycle change.
type SlotResult struct {
	SlotID string
	JobID  string
	Region model.Region
	State  model.SlotState
	Time   time.Time
}

// MetricsSink records optimization passes for observability purposes.
type MetricsSink interface {
	RecordPass(r PassResult) error
}

// SlotRecorder records slot lifecycle changes. Sinks implement it
// optionally.
type SlotRecorder interface {
	RecordSlot(r SlotResult) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordPass(PassResult) error { return nil }
func (NopSink) RecordSlot(SlotResult) error { return nil }

// Config selects which metric backends are active.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}
