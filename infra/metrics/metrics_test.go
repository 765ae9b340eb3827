package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/gridshift/carbonsched/core/metrics"
	"github.com/gridshift/carbonsched/core/model"
)

func passResult() coremetrics.PassResult {
	return coremetrics.PassResult{
		JobID:         "job_1",
		Outcome:       coremetrics.PassScheduled,
		Region:        model.RegionScotland,
		Candidates:    12,
		CarbonSavedKg: 4.2,
		CostSavedGBP:  1.5,
		Duration:      120 * time.Millisecond,
		Time:          time.Now(),
	}
}

func TestPromSinkRecordsPasses(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if err := sink.RecordPass(passResult()); err != nil {
		t.Fatalf("record pass: %v", err)
	}
	if err := sink.RecordSlot(coremetrics.SlotResult{SlotID: "slot_1", Region: model.RegionScotland, State: model.SlotOffered}); err != nil {
		t.Fatalf("record slot: %v", err)
	}

	if got := testutil.ToFloat64(sink.passes.WithLabelValues("scheduled", "scotland")); got != 1 {
		t.Fatalf("passes counter = %v", got)
	}
	if got := testutil.ToFloat64(sink.carbonSaved); got != 4.2 {
		t.Fatalf("carbon saved = %v", got)
	}
	if got := testutil.ToFloat64(sink.slots.WithLabelValues("offered", "scotland")); got != 1 {
		t.Fatalf("slots counter = %v", got)
	}
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("second registration must reuse collectors: %v", err)
	}
}

func TestInfluxSinkRecordPass(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	if err := sink.RecordPass(passResult()); err != nil {
		t.Fatalf("record pass: %v", err)
	}
	if !strings.Contains(body, "optimization_pass") || !strings.Contains(body, "job_id=job_1") {
		t.Fatalf("unexpected line protocol: %q", body)
	}
}

type countSink struct {
	passes int
	slots  int
}

func (c *countSink) RecordPass(coremetrics.PassResult) error { c.passes++; return nil }
func (c *countSink) RecordSlot(coremetrics.SlotResult) error { c.slots++; return nil }

type passOnlySink struct{ passes int }

func (p *passOnlySink) RecordPass(coremetrics.PassResult) error { p.passes++; return nil }

func TestMultiSinkFanOut(t *testing.T) {
	full := &countSink{}
	passOnly := &passOnlySink{}
	m := NewMultiSink(full, passOnly)

	if err := m.RecordPass(passResult()); err != nil {
		t.Fatalf("record pass: %v", err)
	}
	if err := m.RecordSlot(coremetrics.SlotResult{}); err != nil {
		t.Fatalf("record slot: %v", err)
	}
	if full.passes != 1 || full.slots != 1 {
		t.Fatalf("full sink got %d/%d", full.passes, full.slots)
	}
	if passOnly.passes != 1 {
		t.Fatalf("pass-only sink got %d", passOnly.passes)
	}
}
