package audit

import (
	"context"
	"time"

	"github.com/gridshift/carbonsched/core/model"
)

// Outcome classifies how a scheduling pass ended.
type Outcome string

const (
	OutcomeScheduled        Outcome = "scheduled"
	OutcomeNoFeasibleWindow Outcome = "no_feasible_window"
)

// Weights records the objective weights in force for a pass.
type Weights struct {
	Carbon   float64 `json:"carbon"`
	Cost     float64 `json:"cost"`
	Deadline float64 `json:"deadline"`
}

// SignalProvenance names one upstream data source used in a pass.
type SignalProvenance struct {
	Region    model.Region `json:"region"`
	Source    string       `json:"source"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// CandidateOutcome is the audit view of one evaluated candidate.
type CandidateOutcome struct {
	Region    model.Region `json:"region"`
	Start     time.Time    `json:"start"`
	End       time.Time    `json:"end"`
	CarbonKg  float64      `json:"carbon_kg"`
	CostGBP   float64      `json:"cost_gbp"`
	Composite float64      `json:"composite"`
	Feasible  bool         `json:"feasible"`
	// Rejection explains infeasibility; empty for feasible candidates.
	Rejection string `json:"rejection,omitempty"`
}

// Decision is one immutable audit record: every candidate considered in
// a pass, the winner, the baseline and the explicit trade-off deltas.
// Decisions are append-only and never mutated after being written.
type Decision struct {
	ID        string    `json:"decision_id"`
	Timestamp time.Time `json:"timestamp"`
	JobID     string    `json:"job_id"`
	Outcome   Outcome   `json:"outcome"`

	Sources    []SignalProvenance `json:"sources"`
	Candidates []CandidateOutcome `json:"candidates"`
	Selected   *CandidateOutcome  `json:"selected,omitempty"`
	Baseline   *CandidateOutcome  `json:"baseline,omitempty"`

	CarbonSavedKg float64 `json:"carbon_saved_kg"`
	CostSavedGBP  float64 `json:"cost_saved_gbp"`
	WeightsUsed   Weights `json:"weights_used"`

	// Rejections lists why considered windows were discarded when the
	// pass found no feasible candidate.
	Rejections []string `json:"rejections,omitempty"`
}

// Query filters decision history reads.
type Query struct {
	JobID string
	Start time.Time
	End   time.Time
	Limit int
}

// Store persists Decisions and supports timestamp-ordered querying.
// Append must not fail silently: a persistence error aborts the
// scheduling pass that produced the decision.
type Store interface {
	Append(ctx context.Context, d Decision) error
	Query(ctx context.Context, q Query) ([]Decision, error)
	Close() error
}
