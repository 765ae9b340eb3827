package metrics

import (
	coremetrics "github.com/gridshift/carbonsched/core/metrics"
	"github.com/gridshift/carbonsched/infra/logger"
)

// NewFromConfig assembles the configured sinks into one MetricsSink.
// With nothing enabled it returns a NopSink so callers never need a nil
// check.
func NewFromConfig(cfg coremetrics.Config, log logger.Logger) (coremetrics.MetricsSink, error) {
	var sinks []coremetrics.MetricsSink
	if cfg.PrometheusEnabled {
		prom, err := NewPromSink(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, prom)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}
	switch len(sinks) {
	case 0:
		log.Debugf("no metrics backend enabled")
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
