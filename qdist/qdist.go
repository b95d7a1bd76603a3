// Package qdist records discrete distributions of float64 samples and
// renders them as compact one-line histograms.
//
//	[1.0,1.7)|▁▃█|[2.3,3.0]
package qdist

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Entry is one distinct sample value and the number of times it was seen.
type Entry struct {
	X     float64
	Count uint64
}

// Dist is a distribution of samples, kept sorted by X.
// The zero value is an empty distribution ready to use.
type Dist struct {
	entries []Entry
}

// Opt controls Histogram output.
type Opt uint32

const (
	// Border wraps the histogram in '|' characters.
	Border Opt = 1 << iota
	// Labels prints the range of the leftmost and rightmost bins.
	Labels
	// NoDecimal prints labels without a decimal digit.
	NoDecimal
	// Percent appends '%' to the labels.
	Percent
	// Times100 multiplies label values by 100, e.g. for ratios shown as
	// percentages.
	Times100
	// NoBinRange prints only the bin's edge value instead of its range.
	NoBinRange
)

var blocks = [...]rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Inc records one sample of x.
func (d *Dist) Inc(x float64) {
	d.Add(x, 1)
}

// Add records count samples of x.
func (d *Dist) Add(x float64, count uint64) {
	i, found := slices.BinarySearchFunc(d.entries, x, func(e Entry, x float64) int {
		switch {
		case e.X < x:
			return -1
		case e.X > x:
			return 1
		}
		return 0
	})
	if found {
		d.entries[i].Count += count
		return
	}
	d.entries = slices.Insert(d.entries, i, Entry{X: x, Count: count})
}

// Merge adds every sample of from into d.
func (d *Dist) Merge(from *Dist) {
	for _, e := range from.entries {
		d.Add(e.X, e.Count)
	}
}

// Entries returns a copy of the distribution's entries, sorted by X.
func (d *Dist) Entries() []Entry {
	return slices.Clone(d.entries)
}

// UniqueEntries returns the number of distinct sample values.
func (d *Dist) UniqueEntries() int {
	return len(d.entries)
}

// SampleCount returns the total number of samples.
func (d *Dist) SampleCount() uint64 {
	var n uint64
	for _, e := range d.entries {
		n += e.Count
	}
	return n
}

// Avg returns the mean sample value, or NaN when there are no samples.
func (d *Dist) Avg() float64 {
	if d.SampleCount() == 0 {
		return math.NaN()
	}
	xs := make([]float64, len(d.entries))
	ws := make([]float64, len(d.entries))
	for i, e := range d.entries {
		xs[i] = e.X
		ws[i] = float64(e.Count)
	}
	return stat.Mean(xs, ws)
}

// Xmin returns the smallest sample value, or NaN when empty.
func (d *Dist) Xmin() float64 {
	if len(d.entries) == 0 {
		return math.NaN()
	}
	return d.entries[0].X
}

// Xmax returns the largest sample value, or NaN when empty.
func (d *Dist) Xmax() float64 {
	if len(d.entries) == 0 {
		return math.NaN()
	}
	return d.entries[len(d.entries)-1].X
}

// Bin returns the distribution re-binned into n consecutive, equally sized
// intervals between Xmin and Xmax. Each bin is keyed by its left edge and
// captures [left, right), except the last one which captures [left, right].
// Bins that receive no samples are kept with a zero count.
//
// If n is zero or d has a single entry, n is the number of entries. When n
// equals the number of entries and they are already evenly spaced, they are
// copied unchanged.
// Binning an already binned distribution is not meaningful.
func (d *Dist) Bin(n int) *Dist {
	to := &Dist{}
	if len(d.entries) == 0 {
		return to
	}
	if n <= 0 || len(d.entries) == 1 {
		n = len(d.entries)
	}
	xmin, xmax := d.Xmin(), d.Xmax()

	if n == len(d.entries) && d.evenlySpaced() {
		to.entries = slices.Clone(d.entries)
		return to
	}

	step := (xmax - xmin) / float64(n)
	j := 0
	for i := 0; i < n; i++ {
		left := xmin + float64(i)*step
		right := xmin + float64(i+1)*step
		to.Add(left, 0)
		for j < len(d.entries) && (d.entries[j].X < right || i == n-1) {
			to.Add(left, d.entries[j].Count)
			j++
		}
	}
	return to
}

func (d *Dist) evenlySpaced() bool {
	if len(d.entries) <= 2 {
		return true
	}
	xmin := d.Xmin()
	step := (d.Xmax() - xmin) / float64(len(d.entries)-1)
	for i, e := range d.entries {
		if e.X != xmin+float64(i)*step {
			return false
		}
	}
	return true
}

// Plain renders the distribution binned into n bins as a row of block
// characters, one per bin, scaled between the smallest and largest count.
// Bins with no samples are rendered as a space.
func (d *Dist) Plain(n int) string {
	if len(d.entries) == 0 {
		return "(empty)"
	}
	return d.Bin(n).render()
}

func (d *Dist) render() string {
	full := blocks[len(blocks)-1]
	if len(d.entries) == 1 {
		if d.entries[0].Count == 0 {
			return " "
		}
		return string(full)
	}

	lo, hi := d.entries[0].Count, d.entries[0].Count
	for _, e := range d.entries {
		lo = min(lo, e.Count)
		hi = max(hi, e.Count)
	}

	var sb strings.Builder
	for _, e := range d.entries {
		switch {
		case e.Count == 0:
			sb.WriteByte(' ')
		case hi == lo:
			sb.WriteRune(full)
		default:
			// divide first so that e.Count == hi maps exactly to the last block
			idx := int(float64(e.Count-lo) / float64(hi-lo) * float64(len(blocks)-1))
			sb.WriteRune(blocks[idx])
		}
	}
	return sb.String()
}

// Histogram renders the distribution binned into nBins bins, decorated
// according to opt.
func (d *Dist) Histogram(nBins int, opt Opt) string {
	if len(d.entries) == 0 {
		return "(empty)"
	}
	border := ""
	if opt&Border != 0 {
		border = "|"
	}
	return d.label(nBins, opt, true) + border + d.Plain(nBins) + border +
		d.label(nBins, opt, false)
}

func (d *Dist) label(nBins int, opt Opt, left bool) string {
	if opt&Labels == 0 {
		return ""
	}
	dec := 1
	if opt&NoDecimal != 0 {
		dec = 0
	}
	percent := ""
	if opt&Percent != 0 {
		percent = "%"
	}
	n := float64(nBins)
	if nBins <= 0 {
		n = float64(len(d.entries))
	}

	x := d.Xmax()
	if left {
		x = d.Xmin()
	}
	step := (d.Xmax() - d.Xmin()) / n
	if opt&Times100 != 0 {
		x *= 100
		step *= 100
	}

	if opt&NoBinRange != 0 {
		return fmt.Sprintf("%.*f%s", dec, x, percent)
	}
	if left {
		return fmt.Sprintf("[%.*f,%.*f)%s", dec, x, dec, x+step, percent)
	}
	return fmt.Sprintf("[%.*f,%.*f]%s", dec, x-step, dec, x, percent)
}
