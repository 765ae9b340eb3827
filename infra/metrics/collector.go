package metrics

import (
	"context"

	coremetrics "github.com/gridshift/carbonsched/core/metrics"
	"github.com/gridshift/carbonsched/infra/logger"
	"github.com/gridshift/carbonsched/internal/eventbus"
)

// StartEventLogger subscribes to the event bus and emits a structured
// log line per scheduling event. It stops when the context is canceled.
func StartEventLogger(ctx context.Context, bus *eventbus.Bus, log logger.Logger) {
	if bus == nil || log == nil {
		return
	}
	sub := bus.Subscribe(16)
	go func() {
		defer sub.Cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case coremetrics.PassResult:
					log.Debugw("optimization pass", map[string]any{
						"job_id":          e.JobID,
						"outcome":         string(e.Outcome),
						"region":          string(e.Region),
						"candidates":      e.Candidates,
						"carbon_saved_kg": e.CarbonSavedKg,
						"cost_saved_gbp":  e.CostSavedGBP,
						"duration_ms":     e.Duration.Milliseconds(),
					})
				case coremetrics.SlotResult:
					log.Debugw("slot event", map[string]any{
						"slot_id": e.SlotID,
						"job_id":  e.JobID,
						"region":  string(e.Region),
						"state":   string(e.State),
					})
				}
			}
		}
	}()
}
