package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCollectionFansOut(t *testing.T) {
	ctx := context.Background()
	a := NewLogMetrics(nil)
	b := NewLogMetrics(nil)
	c := NewCollection(a)
	c.Add(b)
	c.Add(NewNoopMetrics())

	if err := c.IncrementCounter(ctx, MetricLendCount, 2); err != nil {
		t.Fatal(err)
	}
	if err := c.IncrementCounter(ctx, MetricLendCount, 3); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateGauge(ctx, MetricLedgerSlot, 42); err != nil {
		t.Fatal(err)
	}

	for i, m := range []*LogMetrics{a, b} {
		if got := m.Counter(MetricLendCount); got != 5 {
			t.Errorf("backend %d: expected counter 5, got %d", i, got)
		}
		if got := m.Gauge(MetricLedgerSlot); got != 42 {
			t.Errorf("backend %d: expected gauge 42, got %v", i, got)
		}
	}
	if c.Len() != 3 {
		t.Errorf("expected 3 backends, got %d", c.Len())
	}
}

func TestOrNoop(t *testing.T) {
	if err := OrNoop(nil).IncrementCounter(context.Background(), "x", 1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPrometheusExposition(t *testing.T) {
	ctx := context.Background()
	p := NewPrometheusMetrics("cash")

	if err := p.IncrementCounter(ctx, MetricLendVolume, 120); err != nil {
		t.Fatal(err)
	}
	if err := p.UpdateGauge(ctx, MetricLedgerSlot, 7); err != nil {
		t.Fatal(err)
	}
	if err := p.RecordHistogram(ctx, MetricTransactionLatencyMs, 3); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		"cash_cash_lend_volume_total 120",
		"cash_ledger_slot 7",
		"cash_transaction_latency_milliseconds_count 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
