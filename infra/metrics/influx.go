package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/gridshift/carbonsched/core/metrics"
	"github.com/gridshift/carbonsched/infra/logger"
)

// InfluxSink writes scheduling events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPass writes the pass outcome as line protocol.
func (s *InfluxSink) RecordPass(r coremetrics.PassResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("optimization_pass").
		AddTag("job_id", r.JobID).
		AddTag("outcome", string(r.Outcome)).
		AddTag("region", string(r.Region)).
		AddTag("component", "planner").
		AddField("candidates", r.Candidates).
		AddField("carbon_saved_kg", round3(r.CarbonSavedKg)).
		AddField("cost_saved_gbp", round3(r.CostSavedGBP)).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000)).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSlot writes a slot lifecycle transition.
func (s *InfluxSink) RecordSlot(r coremetrics.SlotResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("slot_event").
		AddTag("slot_id", r.SlotID).
		AddTag("job_id", r.JobID).
		AddTag("region", string(r.Region)).
		AddTag("state", string(r.State)).
		AddTag("component", "catalog").
		AddField("count", 1).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
