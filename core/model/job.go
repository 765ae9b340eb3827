package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// FlexibilityType classifies how a workload may be shifted.
type FlexibilityType string

const (
	FlexFixed       FlexibilityType = "fixed"
	FlexDeferrable  FlexibilityType = "deferrable"
	FlexCurtailable FlexibilityType = "curtailable"
)

// Valid reports whether t is a known flexibility type.
func (t FlexibilityType) Valid() bool {
	switch t {
	case FlexFixed, FlexDeferrable, FlexCurtailable:
		return true
	}
	return false
}

// Priority expresses scheduling urgency.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Valid reports whether p is a known priority level.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// JobStatus tracks the job lifecycle.
type JobStatus string

const (
	StatusPending          JobStatus = "pending"
	StatusScheduled        JobStatus = "scheduled"
	StatusExecuting        JobStatus = "executing"
	StatusCompleted        JobStatus = "completed"
	StatusFailedToSchedule JobStatus = "failed_to_schedule"
	StatusCancelled        JobStatus = "cancelled"
)

// JobSubmission is the boundary payload for submitting a compute job.
// It is validated into a strict Job before the core ever sees it.
type JobSubmission struct {
	JobID            string          `json:"job_id"`
	JobName          string          `json:"job_name" validate:"required"`
	JobType          string          `json:"job_type" validate:"required"`
	AssetID          string          `json:"asset_id" validate:"required"`
	DurationHours    float64         `json:"duration_hours" validate:"required,gt=0"`
	EarliestStart    time.Time       `json:"earliest_start" validate:"required"`
	LatestFinish     time.Time       `json:"latest_finish" validate:"required"`
	AllowedRegions   []Region        `json:"allowed_regions" validate:"required,min=1"`
	Flexibility      FlexibilityType `json:"flexibility_type"`
	Priority         Priority        `json:"priority"`
	CarbonCapGPerKWh *float64        `json:"carbon_cap_g_per_kwh" validate:"omitempty,gt=0"`
	MaxPricePerKWh   *float64        `json:"max_price_per_kwh" validate:"omitempty,gt=0"`
	EstimatedPowerKW float64         `json:"estimated_power_kw" validate:"required,gt=0"`
}

// Validate rejects malformed submissions. configured is the set of
// regions the installation knows about; allowed regions must be a
// subset of it.
func (s JobSubmission) Validate(configured []Region) error {
	if err := validate.Struct(s); err != nil {
		return invalidf("job submission: %v", err)
	}
	if !s.LatestFinish.After(s.EarliestStart) {
		return invalidf("latest_finish must be after earliest_start")
	}
	window := s.LatestFinish.Sub(s.EarliestStart).Hours()
	if window < s.DurationHours {
		return invalidf("time window (%.1fh) is smaller than job duration (%.1fh)", window, s.DurationHours)
	}
	known := make(map[Region]struct{}, len(configured))
	for _, r := range configured {
		known[r] = struct{}{}
	}
	for _, r := range s.AllowedRegions {
		if !r.Valid() {
			return invalidf("unknown region %q", r)
		}
		if _, ok := known[r]; !ok {
			return invalidf("region %q is not configured", r)
		}
	}
	if s.Flexibility != "" && !s.Flexibility.Valid() {
		return invalidf("unknown flexibility type %q", s.Flexibility)
	}
	if s.Priority != "" && !s.Priority.Valid() {
		return invalidf("unknown priority %q", s.Priority)
	}
	return nil
}

// Job builds the internal job record from a validated submission.
func (s JobSubmission) Job(now time.Time) Job {
	id := s.JobID
	if id == "" {
		id = "job_" + uuid.NewString()[:8]
	}
	flex := s.Flexibility
	if flex == "" {
		flex = FlexDeferrable
	}
	prio := s.Priority
	if prio == "" {
		prio = PriorityNormal
	}
	return Job{
		ID:               id,
		Name:             s.JobName,
		Type:             s.JobType,
		AssetID:          s.AssetID,
		DurationHours:    s.DurationHours,
		EarliestStart:    s.EarliestStart.UTC(),
		LatestFinish:     s.LatestFinish.UTC(),
		AllowedRegions:   append([]Region(nil), s.AllowedRegions...),
		Flexibility:      flex,
		Priority:         prio,
		CarbonCapGPerKWh: s.CarbonCapGPerKWh,
		MaxPricePerKWh:   s.MaxPricePerKWh,
		EstimatedPowerKW: s.EstimatedPowerKW,
		Status:           StatusPending,
		SubmittedAt:      now.UTC(),
	}
}

// Job is the internal job representation with full lifecycle state.
// Status and schedule fields are mutated only by the optimizer or by
// explicit cancellation.
type Job struct {
	ID               string          `json:"job_id"`
	Name             string          `json:"job_name"`
	Type             string          `json:"job_type"`
	AssetID          string          `json:"asset_id"`
	DurationHours    float64         `json:"duration_hours"`
	EarliestStart    time.Time       `json:"earliest_start"`
	LatestFinish     time.Time       `json:"latest_finish"`
	AllowedRegions   []Region        `json:"allowed_regions"`
	Flexibility      FlexibilityType `json:"flexibility_type"`
	Priority         Priority        `json:"priority"`
	CarbonCapGPerKWh *float64        `json:"carbon_cap_g_per_kwh,omitempty"`
	MaxPricePerKWh   *float64        `json:"max_price_per_kwh,omitempty"`
	EstimatedPowerKW float64         `json:"estimated_power_kw"`

	Status   JobStatus `json:"status"`
	Schedule *Schedule `json:"schedule,omitempty"`

	SubmittedAt time.Time  `json:"submitted_at"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns the job runtime as a time.Duration.
func (j Job) Duration() time.Duration {
	return time.Duration(j.DurationHours * float64(time.Hour))
}

// EnergyKWh is the estimated total energy consumed by a full run.
func (j Job) EnergyKWh() float64 {
	return j.EstimatedPowerKW * j.DurationHours
}

// MaxDeferralHours returns how far the start may slide inside the window.
func (j Job) MaxDeferralHours() float64 {
	return j.LatestFinish.Sub(j.EarliestStart).Hours() - j.DurationHours
}

// PrimaryRegion is the first-listed allowed region, used for the
// "run now" baseline comparison.
func (j Job) PrimaryRegion() Region {
	if len(j.AllowedRegions) == 0 {
		return ""
	}
	return j.AllowedRegions[0]
}

// Deferrable reports whether the job start may be shifted at all.
func (j Job) Deferrable() bool {
	return j.Flexibility != FlexFixed && j.MaxDeferralHours() > 0
}

func (j Job) String() string {
	return fmt.Sprintf("%s (%s, %.1fh, %.0fkW)", j.ID, j.Name, j.DurationHours, j.EstimatedPowerKW)
}
