package metrics

import (
	coremetrics "github.com/gridshift/carbonsched/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records optimization passes and slot events in Prometheus
// metrics.
type PromSink struct {
	passes      *prometheus.CounterVec
	duration    prometheus.Histogram
	carbonSaved prometheus.Counter
	costSaved   prometheus.Counter
	slots       *prometheus.CounterVec
}

// NewPromSink registers scheduling metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	passes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_passes_total",
		Help: "Total number of optimization passes by outcome",
	}, []string{"outcome", "region"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduling_pass_duration_seconds",
		Help:    "Wall time of one optimization pass",
		Buckets: prometheus.DefBuckets,
	})
	carbonSaved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduling_carbon_saved_kg_total",
		Help: "Cumulative carbon avoided versus the run-now baseline",
	})
	costSaved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduling_cost_saved_gbp_total",
		Help: "Cumulative cost avoided versus the run-now baseline",
	})
	slots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flexibility_slot_events_total",
		Help: "Flexibility slot lifecycle transitions",
	}, []string{"state", "region"})

	if err := reg.Register(passes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			passes = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(carbonSaved); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			carbonSaved = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(costSaved); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			costSaved = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(slots); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			slots = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		passes:      passes,
		duration:    duration,
		carbonSaved: carbonSaved,
		costSaved:   costSaved,
		slots:       slots,
	}, nil
}

// RecordPass increments the pass counter and saving totals.
func (s *PromSink) RecordPass(r coremetrics.PassResult) error {
	s.passes.WithLabelValues(string(r.Outcome), string(r.Region)).Inc()
	s.duration.Observe(r.Duration.Seconds())
	if r.CarbonSavedKg > 0 {
		s.carbonSaved.Add(r.CarbonSavedKg)
	}
	if r.CostSavedGBP > 0 {
		s.costSaved.Add(r.CostSavedGBP)
	}
	return nil
}

// RecordSlot counts slot lifecycle transitions.
func (s *PromSink) RecordSlot(r coremetrics.SlotResult) error {
	s.slots.WithLabelValues(string(r.State), string(r.Region)).Inc()
	return nil
}
