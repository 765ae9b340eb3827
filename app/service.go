package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridshift/carbonsched/config"
	"github.com/gridshift/carbonsched/core/audit"
	"github.com/gridshift/carbonsched/core/catalog"
	coremetrics "github.com/gridshift/carbonsched/core/metrics"
	"github.com/gridshift/carbonsched/core/model"
	"github.com/gridshift/carbonsched/core/planner"
	"github.com/gridshift/carbonsched/core/signal"
	"github.com/gridshift/carbonsched/core/store"
	"github.com/gridshift/carbonsched/infra/logger"
	"github.com/gridshift/carbonsched/infra/metrics"
	"github.com/gridshift/carbonsched/infra/mqtt"
	"github.com/gridshift/carbonsched/internal/eventbus"
)

// maintenanceInterval paces slot expiry sweeps and cache eviction.
const maintenanceInterval = time.Minute

// Service wires the scheduler together and exposes the operations an
// embedding program needs: asset registration, job submission,
// scheduling passes, flexibility discovery and decision history.
type Service struct {
	cfg  *config.Config
	repo store.Repository

	cache     *signal.Cache
	audit     audit.Store
	catalog   *catalog.Catalog
	planner   *planner.Planner
	bus       *eventbus.Bus
	announcer *mqtt.Announcer
	log       logger.Logger

	now func() time.Time
}

// New builds a Service from the configuration. A nil provider selects
// the synthetic forecast generator; production callers pass their live
// grid data provider.
func New(cfg *config.Config, provider signal.Provider) (*Service, error) {
	log := logger.New("service")

	if provider == nil {
		provider = signal.NewGenerator(cfg.Generator)
	}
	cache, err := signal.NewCache(provider, cfg.Cache, logger.New("signal-cache"))
	if err != nil {
		return nil, fmt.Errorf("signal cache: %w", err)
	}

	auditStore, err := cfg.Audit.OpenStore()
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}

	sink, err := metrics.NewFromConfig(cfg.Metrics, log)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	var announcer *mqtt.Announcer
	var catalogAnnouncer catalog.Announcer
	if cfg.MQTT.Enabled {
		announcer, err = mqtt.NewAnnouncer(cfg.MQTT)
		if err != nil {
			log.Warnf("mqtt announcer unavailable, slot offers stay local: %v", err)
		} else {
			catalogAnnouncer = announcer
		}
	}

	repo := store.NewMemoryStore()
	var slotRec coremetrics.SlotRecorder
	if rec, ok := sink.(coremetrics.SlotRecorder); ok {
		slotRec = rec
	}
	cat, err := catalog.New(repo, cfg.Catalog, catalogAnnouncer, slotRec, logger.New("catalog"))
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	bus := eventbus.New()
	pl, err := planner.New(planner.Deps{
		Repo:    repo,
		Signals: cache,
		Audit:   auditStore,
		Catalog: cat,
		Sink:    sink,
		Bus:     bus,
		Log:     logger.New("planner"),
	}, cfg.Planner)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	return &Service{
		cfg:       cfg,
		repo:      repo,
		cache:     cache,
		audit:     auditStore,
		catalog:   cat,
		planner:   pl,
		bus:       bus,
		announcer: announcer,
		log:       log,
		now:       time.Now,
	}, nil
}

// RegisterAsset validates and stores a compute asset.
func (s *Service) RegisterAsset(ctx context.Context, a model.ComputeAsset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if !contains(s.cfg.Regions, a.Region) {
		return fmt.Errorf("%w: asset region %q is not configured", model.ErrInvalidConfiguration, a.Region)
	}
	if err := s.repo.PutAsset(ctx, a); err != nil {
		return err
	}
	s.log.Infof("registered asset %s (%s, %.0f kW) in %s", a.ID, a.Type, a.MaxPowerKW, a.Region)
	return nil
}

// Assets lists registered assets.
func (s *Service) Assets(ctx context.Context) ([]model.ComputeAsset, error) {
	return s.repo.Assets(ctx)
}

// SubmitJob validates the submission against the configured regions and
// the target asset and stores the pending job.
func (s *Service) SubmitJob(ctx context.Context, sub model.JobSubmission) (model.Job, error) {
	if err := sub.Validate(s.cfg.Regions); err != nil {
		return model.Job{}, err
	}
	asset, err := s.repo.Asset(ctx, sub.AssetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Job{}, fmt.Errorf("%w: asset %q is not registered", model.ErrInvalidConfiguration, sub.AssetID)
		}
		return model.Job{}, err
	}
	if sub.EstimatedPowerKW > asset.MaxPowerKW {
		return model.Job{}, fmt.Errorf("%w: job power %.0f kW exceeds asset limit %.0f kW",
			model.ErrInvalidConfiguration, sub.EstimatedPowerKW, asset.MaxPowerKW)
	}

	job := sub.Job(s.now())
	if err := s.repo.PutJob(ctx, job); err != nil {
		return model.Job{}, err
	}
	s.log.Infof("submitted %s", job)
	return job, nil
}

// Job returns one job by id.
func (s *Service) Job(ctx context.Context, id string) (model.Job, error) {
	return s.repo.Job(ctx, id)
}

// Jobs lists jobs matching the filter.
func (s *Service) Jobs(ctx context.Context, f store.JobFilter) ([]model.Job, error) {
	return s.repo.Jobs(ctx, f)
}

// CancelJob marks a job cancelled. Completed and executing jobs cannot
// be cancelled.
func (s *Service) CancelJob(ctx context.Context, id string) (model.Job, error) {
	job, err := s.repo.Job(ctx, id)
	if err != nil {
		return model.Job{}, err
	}
	switch job.Status {
	case model.StatusPending, model.StatusScheduled, model.StatusFailedToSchedule:
	default:
		return model.Job{}, fmt.Errorf("job %s is %s and cannot be cancelled", id, job.Status)
	}
	return s.repo.UpdateJobStatus(ctx, id, model.StatusCancelled, s.now())
}

// ScheduleJob runs one optimization pass for the job.
func (s *Service) ScheduleJob(ctx context.Context, id string) (model.Schedule, error) {
	return s.planner.Schedule(ctx, id)
}

// ScheduleReport summarizes a bulk scheduling run.
type ScheduleReport struct {
	Scheduled []model.Schedule
	// NoWindow lists jobs for which no feasible window exists.
	NoWindow []string
	// Errors lists jobs that failed for transient reasons, typically
	// forecast outages.
	Errors map[string]error
}

// ScheduleAllPending runs a pass for every pending job, in submission
// order. One job's failure never aborts the rest.
func (s *Service) ScheduleAllPending(ctx context.Context) (ScheduleReport, error) {
	pending := model.StatusPending
	jobs, err := s.repo.Jobs(ctx, store.JobFilter{Status: &pending})
	if err != nil {
		return ScheduleReport{}, err
	}
	report := ScheduleReport{Errors: make(map[string]error)}
	for _, job := range jobs {
		sched, err := s.planner.Schedule(ctx, job.ID)
		switch {
		case err == nil:
			report.Scheduled = append(report.Scheduled, sched)
		case errors.Is(err, planner.ErrNoFeasibleWindow):
			report.NoWindow = append(report.NoWindow, job.ID)
		default:
			report.Errors[job.ID] = err
		}
	}
	s.log.Infof("bulk pass: %d scheduled, %d without window, %d errors",
		len(report.Scheduled), len(report.NoWindow), len(report.Errors))
	return report, nil
}

// History returns timestamp-ordered scheduling decisions.
func (s *Service) History(ctx context.Context, q audit.Query) ([]audit.Decision, error) {
	return s.audit.Query(ctx, q)
}

// DiscoverSlots lists bookable flexibility slots.
func (s *Service) DiscoverSlots(ctx context.Context, f store.SlotFilter) ([]model.FlexibilitySlot, error) {
	return s.catalog.Discover(ctx, f)
}

// ConfirmSlot books a flexibility slot.
func (s *Service) ConfirmSlot(ctx context.Context, id string) (model.FlexibilitySlot, *model.Schedule, error) {
	return s.catalog.Confirm(ctx, id)
}

// Run starts background maintenance and the optional metrics endpoint,
// blocking until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled {
		metrics.StartPromServer(ctx, ":"+s.cfg.Metrics.PrometheusPort, s.log)
	}
	metrics.StartEventLogger(ctx, s.bus, logger.New("events"))

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n, err := s.catalog.ExpireDue(ctx, s.now()); err != nil {
				s.log.Warnf("slot expiry sweep: %v", err)
			} else if n > 0 {
				s.log.Debugf("expired %d flexibility slots", n)
			}
			if n := s.cache.Sweep(); n > 0 {
				s.log.Debugf("evicted %d signal cache entries", n)
			}
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.announcer != nil {
		s.announcer.Close()
	}
	return s.audit.Close()
}

func contains(regions []model.Region, r model.Region) bool {
	for _, x := range regions {
		if x == r {
			return true
		}
	}
	return false
}
