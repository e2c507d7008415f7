package storefront

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("disabled metrics should snapshot empty")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 16
	const perG = 2000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	if got, want := m.Value(MetricRefreshSuccess), uint64(goroutines*perG); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricValidateLatency, time.Millisecond)
	m.Observe(MetricValidateLatency, 20*time.Millisecond)
	m.Observe(MetricValidateLatency, 2*time.Second)
	m.Observe(MetricLoginSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricValidateLatency]
	if len(buckets) != latencyBuckets {
		t.Fatalf("expected %d buckets, got %d", latencyBuckets, len(buckets))
	}
	if buckets[0] != 1 || buckets[2] != 1 || buckets[latencyBuckets-1] != 1 {
		t.Fatalf("unexpected buckets: %v", buckets)
	}
}

func TestMetricNamesAreUnique(t *testing.T) {
	seen := map[string]MetricID{}
	for id := MetricID(0); id < metricIDCount; id++ {
		name := id.String()
		if name == "" {
			t.Fatalf("metric %d has no name", id)
		}
		if prev, ok := seen[name]; ok {
			t.Fatalf("metric name %q used by %d and %d", name, prev, id)
		}
		seen[name] = id
	}
	if MetricID(999).String() != "unknown" {
		t.Fatal("out of range id should be unknown")
	}
}

func TestEngineCountsLoginOutcomes(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.registerVerified(t, "metrics@example.com", "correct-horse-1")
	ctx := context.Background()

	_, _ = env.engine.Login(ctx, LoginInput{Email: "metrics@example.com", Password: "wrong-pass-1"})
	if _, err := env.engine.Login(ctx, LoginInput{Email: "metrics@example.com", Password: "correct-horse-1"}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginFailure] != 1 || snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
	if snap.Counters[MetricSessionCreated] != 1 || snap.Counters[MetricAccountCreationSuccess] != 1 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
}
