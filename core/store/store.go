package store

import (
	"context"
	"errors"
	"time"

	"github.com/gridshift/carbonsched/core/model"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a compare-and-swap state transition
// fails because the record is not in the expected state.
var ErrConflict = errors.New("state conflict")

// JobFilter narrows job listings. Nil fields match everything.
type JobFilter struct {
	Status   *model.JobStatus
	Priority *model.Priority
	Region   *model.Region
}

// SlotFilter narrows flexibility slot listings.
type SlotFilter struct {
	State          *model.SlotState
	Region         *model.Region
	From           time.Time
	To             time.Time
	MinCapacityKWh float64
}

// Repository is durable keyed storage for jobs, assets, schedules and
// flexibility slots. The optimizer treats it as a transactional
// resource: AttachSchedule replaces the job's schedule and status in a
// single step, and TransitionSlot is an atomic compare-and-swap.
type Repository interface {
	PutAsset(ctx context.Context, a model.ComputeAsset) error
	Asset(ctx context.Context, id string) (model.ComputeAsset, error)
	Assets(ctx context.Context) ([]model.ComputeAsset, error)

	PutJob(ctx context.Context, j model.Job) error
	Job(ctx context.Context, id string) (model.Job, error)
	Jobs(ctx context.Context, f JobFilter) ([]model.Job, error)
	// AttachSchedule stores s on the job, marks it scheduled and stamps
	// scheduled_at. It returns the updated job.
	AttachSchedule(ctx context.Context, jobID string, s model.Schedule, at time.Time) (model.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, at time.Time) (model.Job, error)

	PutSlot(ctx context.Context, s model.FlexibilitySlot) error
	Slot(ctx context.Context, id string) (model.FlexibilitySlot, error)
	Slots(ctx context.Context, f SlotFilter) ([]model.FlexibilitySlot, error)
	// TransitionSlot moves the slot from one state to another atomically,
	// returning ErrConflict when the slot is not in the from state.
	TransitionSlot(ctx context.Context, id string, from, to model.SlotState, at time.Time) (model.FlexibilitySlot, error)
}
