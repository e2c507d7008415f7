package prometheus

import (
	"strings"
	"testing"

	"github.com/MrEthical07/storefront"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot storefront.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() storefront.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestCollectorExportsCountersAndDropped(t *testing.T) {
	c := NewCollector(fakeSource{
		snapshot: storefront.MetricsSnapshot{
			Counters: map[storefront.MetricID]uint64{
				storefront.MetricLoginSuccess: 7,
			},
			Histograms: map[storefront.MetricID][]uint64{},
		},
		dropped: 2,
	})

	expected := `
# HELP storefront_auth_login_success_total Engine counter login_success.
# TYPE storefront_auth_login_success_total counter
storefront_auth_login_success_total 7
# HELP storefront_auth_audit_dropped_total Audit events dropped because the dispatcher buffer was full.
# TYPE storefront_auth_audit_dropped_total counter
storefront_auth_audit_dropped_total 2
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"storefront_auth_login_success_total", "storefront_auth_audit_dropped_total")
	if err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestCollectorHistogramIsCumulative(t *testing.T) {
	c := NewCollector(fakeSource{
		snapshot: storefront.MetricsSnapshot{
			Counters: map[storefront.MetricID]uint64{},
			Histograms: map[storefront.MetricID][]uint64{
				storefront.MetricValidateLatency: {1, 0, 2, 0, 0, 0, 0, 3},
			},
		},
	})

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != "storefront_auth_validate_latency_seconds" {
			continue
		}
		h := mf.GetMetric()[0].GetHistogram()
		if h.GetSampleCount() != 6 {
			t.Fatalf("expected 6 samples, got %d", h.GetSampleCount())
		}
		buckets := h.GetBucket()
		if buckets[0].GetCumulativeCount() != 1 || buckets[2].GetCumulativeCount() != 3 {
			t.Fatalf("unexpected buckets: %v", buckets)
		}
		return
	}
	t.Fatal("latency histogram not exported")
}

func TestCollectorCoversEveryCounter(t *testing.T) {
	c := NewCollector(fakeSource{})
	want := len(counterIDs()) + 1
	if got := testutil.CollectAndCount(c); got != want {
		t.Fatalf("expected %d series, got %d", want, got)
	}
}
