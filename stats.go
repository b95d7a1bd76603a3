package qht

import (
	"fmt"
	"math"
	"strings"

	"github.com/llxisdsh/qht/qdist"
)

// BucketEntries is the number of entries a single bucket holds.
const BucketEntries = bucketEntries

// Stats is a snapshot of the table's layout. Chains are read lock-free,
// so under concurrent writes the totals may mix states from slightly
// different moments.
type Stats struct {
	// HeadBuckets is the size of the bucket array.
	HeadBuckets int
	// UsedHeadBuckets is the number of head buckets holding at least
	// one entry.
	UsedHeadBuckets int
	// Entries is the number of entries in the table.
	Entries int
	// Chain is the distribution of chain lengths, in buckets, over the
	// non-empty chains.
	Chain qdist.Dist
	// Occupancy is the distribution of the fraction of slots used per
	// chain, over all head buckets.
	Occupancy qdist.Dist
	// Resizes is the number of times the bucket array was replaced.
	Resizes uint32
}

// Stats walks every chain and returns the table's statistics.
func (t *Table[T]) Stats() *Stats {
	s := &Stats{Resizes: t.resizes.Load()}

	r, m := t.enter()
	defer t.domain.ReadUnlock(r)
	s.HeadBuckets = len(m.buckets)
	for i := range m.buckets {
		buckets, entries := m.buckets[i].countUnlocked()
		if entries == 0 {
			s.Occupancy.Inc(0)
			continue
		}
		s.UsedHeadBuckets++
		s.Entries += entries
		s.Chain.Inc(float64(buckets))
		s.Occupancy.Inc(float64(entries) / float64(bucketEntries) / float64(buckets))
	}
	return s
}

// ChainAvg returns the mean length of the non-empty chains, in buckets,
// or 0 if the table is empty.
func (s *Stats) ChainAvg() float64 {
	return orZero(s.Chain.Avg())
}

// OccupancyAvg returns the mean chain occupancy in [0, 1].
func (s *Stats) OccupancyAvg() float64 {
	return orZero(s.Occupancy.Avg())
}

// HeadBucketsUsedRatio returns the fraction of head buckets in use.
func (s *Stats) HeadBucketsUsedRatio() float64 {
	if s.HeadBuckets == 0 {
		return 0
	}
	return float64(s.UsedHeadBuckets) / float64(s.HeadBuckets)
}

func orZero(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return f
}

func (s *Stats) String() string {
	return s.Report(10)
}

// Report renders the statistics as a short report with histograms of the
// two distributions, using at most bins bins each.
func (s *Stats) Report(bins int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "head buckets      %d/%d (%.2f%% used)\n",
		s.UsedHeadBuckets, s.HeadBuckets, 100*s.HeadBucketsUsedRatio())
	fmt.Fprintf(&sb, "entries           %d\n", s.Entries)
	fmt.Fprintf(&sb, "occupancy         %.2f%% avg chain occ. Histogram: %s\n",
		100*s.OccupancyAvg(),
		s.Occupancy.Histogram(bins, qdist.Border|qdist.Labels|qdist.Percent|qdist.Times100|qdist.NoBinRange))

	chainBins, opt := bins, qdist.Border|qdist.Labels
	if s.Chain.UniqueEntries() > 0 {
		// one bin per length when they fit
		if r := int(s.Chain.Xmax()-s.Chain.Xmin()) + 1; r <= bins {
			chainBins = r
			opt |= qdist.NoDecimal | qdist.NoBinRange
		}
	}
	fmt.Fprintf(&sb, "chain length      %.2f buckets avg. Histogram: %s\n",
		s.ChainAvg(), s.Chain.Histogram(chainBins, opt))
	fmt.Fprintf(&sb, "resizes           %d\n", s.Resizes)
	return sb.String()
}
