package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveCartMutation("add", ResultOK, 250*time.Millisecond)
	m.ObserveCartMutation("add", ResultRejected, 10*time.Millisecond)
	m.IncEntryValidation("correct")
	m.IncEntryValidation("correct")
	m.IncEntryValidation("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "cart_mutations_total", "result", ResultOK); err != nil {
		t.Fatalf("fetch ok: %v", err)
	} else if got != 1 {
		t.Fatalf("expected ok=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "entry_validations_total", "outcome", "correct"); err != nil {
		t.Fatalf("fetch correct: %v", err)
	} else if got != 2 {
		t.Fatalf("expected correct=2, got %f", got)
	}

	if _, err := fetchCounterValue(mfs, "entry_validations_total", "outcome", "unknown"); err != nil {
		t.Fatalf("blank outcome should be normalized: %v", err)
	}

	if got, err := fetchHistogramSum(mfs, "cart_mutation_duration_seconds", "op", "add"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0.25 {
		t.Fatalf("expected duration sum > 0.25, got %f", got)
	}
}

func TestObserveJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveJob("cart-expiry", ResultOK, 2*time.Second)
	m.ObserveJob("cart-expiry", ResultError, time.Second)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "housekeeping_job_runs_total", "result", ResultError); err != nil {
		t.Fatalf("fetch error runs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected error=1, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "housekeeping_job_duration_seconds", "job", "cart-expiry"); err != nil {
		t.Fatalf("fetch job duration: %v", err)
	} else if got != 3 {
		t.Fatalf("expected duration sum 3, got %f", got)
	}
}

func TestObserveHTTPUsesStatusLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveHTTP("POST", "/api/v1/cart/items", 201, 20*time.Millisecond)
	m.ObserveHTTP("POST", "/api/v1/cart/items", 404, 5*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", "status", "201"); err != nil || got != 1 {
		t.Fatalf("expected one 201, got %f err=%v", got, err)
	}
	if _, err := fetchHistogramSum(mfs, "http_request_duration_seconds", "route", "/api/v1/cart/items"); err != nil {
		t.Fatalf("fetch http duration: %v", err)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	m.ObserveCartMutation("add", ResultOK, time.Second)
	m.ObserveJob("outbox-retention", ResultOK, time.Second)
	m.IncEntryValidation("correct")
	New(nil).IncEntryValidation("correct")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestObserveOutboxPublish(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveOutboxPublish("checkout_submitted", ResultOK, 3*time.Second)
	m.ObserveOutboxPublish("checkout_submitted", ResultError, time.Hour)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_publish_total", "result", ResultError); err != nil || got != 1 {
		t.Fatalf("expected one failed publish, got %f (%v)", got, err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "outbox_publish_lag_seconds" {
			continue
		}
		h := mf.GetMetric()[0].GetHistogram()
		if h.GetSampleCount() != 1 || h.GetSampleSum() != 3 {
			t.Fatalf("lag should only include successful publishes, got count=%d sum=%f", h.GetSampleCount(), h.GetSampleSum())
		}
		return
	}
	t.Fatal("outbox_publish_lag_seconds not gathered")
}

func TestHandlerExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).ObserveJob("cart-expiry", ResultOK, time.Second)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "housekeeping_job_runs_total") {
		t.Fatalf("expected job counter in exposition, got %s", rec.Body.String())
	}
}

func TestServeBlankAddrWaitsForContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "", prometheus.NewRegistry(), nil) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
