// Package qhtprom exports qht table statistics to Prometheus.
package qhtprom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/llxisdsh/qht"
)

// StatsSource is anything that can produce a statistics snapshot,
// typically a *qht.Table.
type StatsSource interface {
	Stats() *qht.Stats
}

// chainBuckets are the upper bounds of the chain length histogram, in
// buckets per chain.
var chainBuckets = []float64{1, 2, 3, 4, 6, 8, 12, 16, 32}

// Collector is a prometheus.Collector that takes one statistics snapshot
// of its source per scrape.
type Collector struct {
	src StatsSource

	headBuckets     *prometheus.Desc
	usedHeadBuckets *prometheus.Desc
	entries         *prometheus.Desc
	resizes         *prometheus.Desc
	chainAvg        *prometheus.Desc
	occupancyAvg    *prometheus.Desc
	chainLength     *prometheus.Desc
}

// NewCollector creates a collector for src. Metric names are prefixed
// with namespace and "qht".
func NewCollector(namespace string, src StatsSource, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "qht", name), help, nil, constLabels)
	}
	return &Collector{
		src:             src,
		headBuckets:     desc("head_buckets", "Number of head buckets in the table."),
		usedHeadBuckets: desc("used_head_buckets", "Number of head buckets holding at least one entry."),
		entries:         desc("entries", "Number of entries in the table."),
		resizes:         desc("resizes_total", "Number of times the bucket array was replaced."),
		chainAvg:        desc("chain_buckets_avg", "Mean length of the non-empty chains, in buckets."),
		occupancyAvg:    desc("occupancy_ratio_avg", "Mean fraction of used slots per chain."),
		chainLength:     desc("chain_length_buckets", "Distribution of the length of the non-empty chains, in buckets."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.headBuckets
	ch <- c.usedHeadBuckets
	ch <- c.entries
	ch <- c.resizes
	ch <- c.chainAvg
	ch <- c.occupancyAvg
	ch <- c.chainLength
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.headBuckets, prometheus.GaugeValue, float64(s.HeadBuckets))
	ch <- prometheus.MustNewConstMetric(c.usedHeadBuckets, prometheus.GaugeValue, float64(s.UsedHeadBuckets))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(c.resizes, prometheus.CounterValue, float64(s.Resizes))
	ch <- prometheus.MustNewConstMetric(c.chainAvg, prometheus.GaugeValue, s.ChainAvg())
	ch <- prometheus.MustNewConstMetric(c.occupancyAvg, prometheus.GaugeValue, s.OccupancyAvg())

	var sum float64
	buckets := make(map[float64]uint64, len(chainBuckets))
	for _, ub := range chainBuckets {
		buckets[ub] = 0
	}
	for _, e := range s.Chain.Entries() {
		sum += e.X * float64(e.Count)
		for _, ub := range chainBuckets {
			if e.X <= ub {
				buckets[ub] += e.Count
			}
		}
	}
	ch <- prometheus.MustNewConstHistogram(c.chainLength, s.Chain.SampleCount(), sum, buckets)
}
