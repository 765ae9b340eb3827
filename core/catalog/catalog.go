package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gridshift/carbonsched/core/logger"
	"github.com/gridshift/carbonsched/core/metrics"
	"github.com/gridshift/carbonsched/core/model"
	"github.com/gridshift/carbonsched/core/store"
)

// ErrSlotUnavailable is returned when a confirm targets a slot that is
// no longer offered, either because another party confirmed it first or
// because its window has passed.
var ErrSlotUnavailable = errors.New("flexibility slot unavailable")

// Config tunes the flexibility catalog.
type Config struct {
	// ProviderID identifies this installation in published offers.
	ProviderID string `json:"provider_id"`
	// ItemType labels the offered item in published offers.
	ItemType string `json:"item_type"`
	// MinSlackHours is the smallest deferral slack worth offering.
	MinSlackHours float64 `json:"min_slack_hours"`
}

// SetDefaults fills zero fields with working values.
func (c *Config) SetDefaults() {
	if c.ProviderID == "" {
		c.ProviderID = "carbonsched"
	}
	if c.ItemType == "" {
		c.ItemType = "compute_flexibility"
	}
	if c.MinSlackHours == 0 {
		c.MinSlackHours = 0.5
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MinSlackHours < 0 {
		return fmt.Errorf("%w: min_slack_hours must not be negative", model.ErrInvalidConfiguration)
	}
	return nil
}

// EventType labels a slot lifecycle announcement.
type EventType string

const (
	EventOffered   EventType = "slot_offered"
	EventConfirmed EventType = "slot_confirmed"
	EventExpired   EventType = "slot_expired"
)

// SlotEvent is the payload announced on slot lifecycle changes.
type SlotEvent struct {
	Type EventType             `json:"event_type"`
	Slot model.FlexibilitySlot `json:"slot"`
}

// Announcer publishes slot lifecycle events to an external network,
// typically a message broker watched by flexibility aggregators.
type Announcer interface {
	Announce(ctx context.Context, e SlotEvent) error
}

// NopAnnouncer discards all events.
type NopAnnouncer struct{}

func (NopAnnouncer) Announce(context.Context, SlotEvent) error { return nil }

// Catalog manages the lifecycle of flexibility slots: offering the
// unused slack of committed schedules, serving discovery queries and
// handling confirmations.
type Catalog struct {
	repo store.Repository
	ann  Announcer
	rec  metrics.SlotRecorder
	log  logger.Logger
	cfg  Config

	now func() time.Time
}

// New builds a Catalog. A nil announcer, recorder or logger falls back
// to the no-op implementation.
func New(repo store.Repository, cfg Config, ann Announcer, rec metrics.SlotRecorder, log logger.Logger) (*Catalog, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("catalog config: %w", err)
	}
	if ann == nil {
		ann = NopAnnouncer{}
	}
	if rec == nil {
		rec = metrics.NopSink{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Catalog{
		repo: repo,
		ann:  ann,
		rec:  rec,
		log:  log,
		cfg:  cfg,
		now:  time.Now,
	}, nil
}

// OfferSlack publishes the scheduling slack left by a committed
// schedule as a discoverable slot. It returns nil without error when
// the slack is below the configured minimum.
func (c *Catalog) OfferSlack(ctx context.Context, job model.Job, sched model.Schedule, renewable float64) (*model.FlexibilitySlot, error) {
	slack := job.LatestFinish.Sub(sched.End)
	if slack.Hours() < c.cfg.MinSlackHours {
		return nil, nil
	}

	value := 0.0
	if sched.CarbonSavedKg > 0 {
		value = sched.CostSavedGBP / sched.CarbonSavedKg
	}

	slot := model.FlexibilitySlot{
		ID:                "slot_" + uuid.NewString()[:8],
		JobID:             job.ID,
		AssetID:           job.AssetID,
		Region:            sched.Region,
		Start:             sched.End,
		End:               job.LatestFinish,
		CapacityKWh:       job.EnergyKWh(),
		ValueGBPPerKgCO2:  value,
		RenewableFraction: renewable,
		ProviderID:        c.cfg.ProviderID,
		ItemType:          c.cfg.ItemType,
		State:             model.SlotOffered,
		CreatedAt:         c.now().UTC(),
	}
	if err := c.repo.PutSlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("store slot: %w", err)
	}

	c.announce(ctx, EventOffered, slot)
	c.record(slot)
	c.log.Infof("offered flexibility slot %s for job %s (%.1f kWh, %.1fh slack)",
		slot.ID, job.ID, slot.CapacityKWh, slack.Hours())
	return &slot, nil
}

// Discover lists offered slots matching the filter. Offered slots whose
// window has already passed are transitioned to expired on the way out
// and excluded from the result.
func (c *Catalog) Discover(ctx context.Context, f store.SlotFilter) ([]model.FlexibilitySlot, error) {
	offered := model.SlotOffered
	if f.State == nil {
		f.State = &offered
	}
	slots, err := c.repo.Slots(ctx, f)
	if err != nil {
		return nil, err
	}
	now := c.now()
	live := slots[:0]
	for _, s := range slots {
		if s.State == model.SlotOffered && s.ExpiredBy(now) {
			c.expire(ctx, s, now)
			continue
		}
		live = append(live, s)
	}
	return live, nil
}

// Confirm books an offered slot. The transition is a compare-and-swap
// so concurrent confirms of the same slot cannot both succeed. It
// returns the confirmed slot together with the owning job's schedule.
func (c *Catalog) Confirm(ctx context.Context, slotID string) (model.FlexibilitySlot, *model.Schedule, error) {
	slot, err := c.repo.Slot(ctx, slotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.FlexibilitySlot{}, nil, fmt.Errorf("%w: %s", ErrSlotUnavailable, slotID)
		}
		return model.FlexibilitySlot{}, nil, err
	}

	now := c.now()
	if slot.State == model.SlotOffered && slot.ExpiredBy(now) {
		c.expire(ctx, slot, now)
		return model.FlexibilitySlot{}, nil, fmt.Errorf("%w: slot %s window has passed", ErrSlotUnavailable, slotID)
	}

	confirmed, err := c.repo.TransitionSlot(ctx, slotID, model.SlotOffered, model.SlotConfirmed, now)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.FlexibilitySlot{}, nil, fmt.Errorf("%w: slot %s is %s", ErrSlotUnavailable, slotID, slot.State)
		}
		return model.FlexibilitySlot{}, nil, err
	}

	c.announce(ctx, EventConfirmed, confirmed)
	c.record(confirmed)
	c.log.Infof("confirmed flexibility slot %s (job %s)", confirmed.ID, confirmed.JobID)

	job, err := c.repo.Job(ctx, confirmed.JobID)
	if err != nil {
		return confirmed, nil, nil
	}
	return confirmed, job.Schedule, nil
}

// ExpireDue sweeps offered slots whose window has passed at now and
// returns how many were expired.
func (c *Catalog) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	offered := model.SlotOffered
	slots, err := c.repo.Slots(ctx, store.SlotFilter{State: &offered})
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, s := range slots {
		if s.ExpiredBy(now) {
			if c.expire(ctx, s, now) {
				expired++
			}
		}
	}
	return expired, nil
}

func (c *Catalog) expire(ctx context.Context, s model.FlexibilitySlot, now time.Time) bool {
	out, err := c.repo.TransitionSlot(ctx, s.ID, model.SlotOffered, model.SlotExpired, now)
	if err != nil {
		// Lost the race to a confirm or another sweep.
		return false
	}
	c.announce(ctx, EventExpired, out)
	c.record(out)
	c.log.Debugf("expired flexibility slot %s (job %s)", out.ID, out.JobID)
	return true
}

func (c *Catalog) announce(ctx context.Context, t EventType, s model.FlexibilitySlot) {
	if err := c.ann.Announce(ctx, SlotEvent{Type: t, Slot: s}); err != nil {
		c.log.Warnf("announce %s for slot %s: %v", t, s.ID, err)
	}
}

func (c *Catalog) record(s model.FlexibilitySlot) {
	if err := c.rec.RecordSlot(metrics.SlotResult{
		SlotID: s.ID,
		JobID:  s.JobID,
		Region: s.Region,
		State:  s.State,
		Time:   c.now(),
	}); err != nil {
		c.log.Warnf("record slot metric: %v", err)
	}
}
