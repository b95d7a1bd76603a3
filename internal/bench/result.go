package bench

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/llxisdsh/qht"
)

// Result holds the operation counts of a run and the table statistics
// before and after it.
type Result struct {
	Config  Config
	Elapsed time.Duration

	Lookups, LookupHits uint64
	Inserts, InsertsOK  uint64
	Removes, RemovesOK  uint64
	Resizes, ResizesOK  uint64

	InitStats *qht.Stats
	Stats     *qht.Stats
}

// Ops returns the number of lookups and updates performed.
func (r *Result) Ops() uint64 {
	return r.Lookups + r.Inserts + r.Removes
}

// MopsPerSec returns the lookup and update throughput in millions of
// operations per second.
func (r *Result) MopsPerSec() float64 {
	return mops(r.Ops(), r.Elapsed)
}

func mops(n uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds() / 1e6
}

func ratio(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

// Report writes the parameters, the statistics before and after the run
// and the throughput of each kind of operation to w.
func (r *Result) Report(w io.Writer) error {
	c := r.Config
	var sb strings.Builder
	sb.WriteString("Parameters:\n")
	fmt.Fprintf(&sb, " duration:          %s\n", c.Duration)
	fmt.Fprintf(&sb, " # of threads:      %d\n", c.Threads)
	fmt.Fprintf(&sb, " update rate:       %.2f%%\n", c.UpdateRate)
	fmt.Fprintf(&sb, " resize rate:       %.2f%%\n", c.ResizeRate)
	fmt.Fprintf(&sb, " resize delay:      %s\n", c.ResizeDelay)
	fmt.Fprintf(&sb, " resize min:        %d\n", c.ResizeMin)
	fmt.Fprintf(&sb, " resize max:        %d\n", c.ResizeMax)
	fmt.Fprintf(&sb, " resize threads:    %d\n", c.ResizeThreads)
	fmt.Fprintf(&sb, " auto-resize:       %t\n", c.AutoResize)
	fmt.Fprintf(&sb, " precompute hashes: %t\n", c.PrecomputeHashes)
	fmt.Fprintf(&sb, " size hint:         %d\n", c.SizeHint)
	fmt.Fprintf(&sb, " initial keys:      %d\n", c.InitKeys)
	fmt.Fprintf(&sb, " key range:         [%d, %d)\n", c.KeyOffset, c.KeyOffset+uint64(c.KeyRange))
	fmt.Fprintf(&sb, " lookup range:      [%d, %d)\n", c.KeyOffset, c.KeyOffset+uint64(c.LookupRange))
	fmt.Fprintf(&sb, " update range:      [%d, %d)\n", c.KeyOffset, c.KeyOffset+uint64(c.UpdateRange))
	sb.WriteString(strings.Repeat("-", 60) + "\n")

	if r.InitStats != nil {
		sb.WriteString("Table before the run:\n")
		sb.WriteString(r.InitStats.Report(c.Bins))
	}
	if r.Stats != nil {
		sb.WriteString("Table after the run:\n")
		sb.WriteString(r.Stats.Report(c.Bins))
	}
	sb.WriteString(strings.Repeat("-", 60) + "\n")

	fmt.Fprintf(&sb, "Lookups: %.2f MT/s (%.2f%% hits)\n",
		mops(r.Lookups, r.Elapsed), ratio(r.LookupHits, r.Lookups))
	fmt.Fprintf(&sb, "Inserts: %.2f MT/s (%.2f%% succeeded)\n",
		mops(r.Inserts, r.Elapsed), ratio(r.InsertsOK, r.Inserts))
	fmt.Fprintf(&sb, "Removes: %.2f MT/s (%.2f%% succeeded)\n",
		mops(r.Removes, r.Elapsed), ratio(r.RemovesOK, r.Removes))
	fmt.Fprintf(&sb, "Resizes: %d (%d succeeded)\n", r.Resizes, r.ResizesOK)
	fmt.Fprintf(&sb, "Total:   %.2f MT/s over %s\n", r.MopsPerSec(), r.Elapsed.Round(time.Millisecond))

	_, err := io.WriteString(w, sb.String())
	return err
}
