package prometheus

import (
	"github.com/MrEthical07/storefront"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront_auth"

// Source is what the collector reads on each scrape. *storefront.Engine
// implements it.
type Source interface {
	MetricsSnapshot() storefront.MetricsSnapshot
	AuditDropped() uint64
}

// Collector exposes engine counters to a Prometheus registry.
type Collector struct {
	source   Source
	counters map[storefront.MetricID]*prometheus.Desc
	latency  *prometheus.Desc
	dropped  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a Collector reading from source.
func NewCollector(source Source) *Collector {
	c := &Collector{
		source:   source,
		counters: make(map[storefront.MetricID]*prometheus.Desc),
		latency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "validate_latency_seconds"),
			"Access token validation latency.",
			nil, nil,
		),
		dropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "audit_dropped_total"),
			"Audit events dropped because the dispatcher buffer was full.",
			nil, nil,
		),
	}
	for _, id := range counterIDs() {
		c.counters[id] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", id.String()+"_total"),
			"Engine counter "+id.String()+".",
			nil, nil,
		)
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d
	}
	ch <- c.latency
	ch <- c.dropped
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	snap := c.source.MetricsSnapshot()

	for id, desc := range c.counters {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(snap.Counters[id]))
	}

	if raw, ok := snap.Histograms[storefront.MetricValidateLatency]; ok {
		count, buckets := cumulative(raw)
		// Snapshots do not track a sum.
		ch <- prometheus.MustNewConstHistogram(c.latency, count, 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

func counterIDs() []storefront.MetricID {
	var ids []storefront.MetricID
	for id := storefront.MetricID(0); id.String() != "unknown"; id++ {
		if id == storefront.MetricValidateLatency {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// cumulative turns per-bucket counts into the cumulative upper-bound map
// client_golang expects. The last raw bucket is +Inf and only adds to
// the total count.
func cumulative(raw []uint64) (uint64, map[float64]uint64) {
	out := make(map[float64]uint64, len(storefront.HistogramBounds))
	var running uint64
	for i, bound := range storefront.HistogramBounds {
		if i < len(raw) {
			running += raw[i]
		}
		out[bound] = running
	}
	for i := len(storefront.HistogramBounds); i < len(raw); i++ {
		running += raw[i]
	}
	return running, out
}
