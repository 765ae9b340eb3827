package metrics

import coremetrics "github.com/gridshift/carbonsched/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPass forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordPass(r coremetrics.PassResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordPass(r); err != nil {
			return err
		}
	}
	return nil
}

// RecordSlot forwards slot events to sinks that support them.
func (m *MultiSink) RecordSlot(r coremetrics.SlotResult) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.SlotRecorder); ok {
			if err := rec.RecordSlot(r); err != nil {
				return err
			}
		}
	}
	return nil
}
