package bench

import (
	"math/bits"
	"time"

	"github.com/pkg/errors"
)

// Config describes one benchmark run.
type Config struct {
	// Duration of the measured phase.
	Duration time.Duration
	// Threads is the number of lookup/update workers.
	Threads int
	// ResizeThreads is the number of workers that resize the table.
	ResizeThreads int

	// KeyRange is the number of distinct keys. Rounded up to a power of two.
	KeyRange int
	// InitKeys is the number of keys inserted before the measured phase.
	InitKeys int
	// LookupRange and UpdateRange restrict lookups and updates to the first
	// keys of the range. Zero means the whole key range.
	LookupRange int
	UpdateRange int
	// KeyOffset is added to every key.
	KeyOffset uint64
	// SizeHint is the table's initial size hint. Zero means InitKeys.
	SizeHint int

	// UpdateRate is the percentage of worker operations that are updates,
	// split evenly between inserts and removes.
	UpdateRate float64
	// ResizeRate is the percentage of resize worker iterations that resize.
	ResizeRate float64
	// ResizeDelay is the pause between resize worker iterations.
	ResizeDelay time.Duration
	// ResizeMin and ResizeMax are the size hints resize workers alternate
	// between. Zero means KeyRange/2 and KeyRange.
	ResizeMin int
	ResizeMax int

	AutoResize bool
	// PrecomputeHashes makes workers use a table of key hashes instead of
	// hashing each key.
	PrecomputeHashes bool

	// Bins is the number of histogram bins in the report.
	Bins int
	// Seed makes runs reproducible. Zero seeds from the OS.
	Seed uint64
}

// DefaultConfig returns a read-only run on a small table.
func DefaultConfig() Config {
	return Config{
		Duration:    time.Second,
		Threads:     1,
		KeyRange:    4096,
		InitKeys:    4096,
		ResizeDelay: time.Millisecond,
		Bins:        10,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Duration <= 0:
		return errors.Errorf("duration must be positive, got %s", c.Duration)
	case c.Threads < 0 || c.ResizeThreads < 0:
		return errors.Errorf("thread counts must not be negative, got %d and %d", c.Threads, c.ResizeThreads)
	case c.Threads+c.ResizeThreads == 0:
		return errors.New("at least one worker is required")
	case c.KeyRange <= 0:
		return errors.Errorf("key range must be positive, got %d", c.KeyRange)
	case c.InitKeys < 0 || c.InitKeys > c.KeyRange:
		return errors.Errorf("initial keys must be within [0, %d], got %d", c.KeyRange, c.InitKeys)
	case c.LookupRange < 0 || c.LookupRange > c.KeyRange:
		return errors.Errorf("lookup range must be within [0, %d], got %d", c.KeyRange, c.LookupRange)
	case c.UpdateRange < 0 || c.UpdateRange > c.KeyRange:
		return errors.Errorf("update range must be within [0, %d], got %d", c.KeyRange, c.UpdateRange)
	case c.SizeHint < 0:
		return errors.Errorf("size hint must not be negative, got %d", c.SizeHint)
	case c.UpdateRate < 0 || c.UpdateRate > 100:
		return errors.Errorf("update rate must be within [0, 100], got %v", c.UpdateRate)
	case c.ResizeRate < 0 || c.ResizeRate > 100:
		return errors.Errorf("resize rate must be within [0, 100], got %v", c.ResizeRate)
	case c.ResizeDelay < 0:
		return errors.Errorf("resize delay must not be negative, got %s", c.ResizeDelay)
	case c.ResizeMin < 0 || c.ResizeMax < 0:
		return errors.Errorf("resize sizes must not be negative, got %d and %d", c.ResizeMin, c.ResizeMax)
	case c.ResizeMax != 0 && c.ResizeMin > c.ResizeMax:
		return errors.Errorf("resize min %d exceeds resize max %d", c.ResizeMin, c.ResizeMax)
	case c.Bins <= 0:
		return errors.Errorf("histogram bins must be positive, got %d", c.Bins)
	}
	return nil
}

// normalized returns a copy of c with defaults filled in and the key
// range rounded up to a power of two. c must be valid.
func (c Config) normalized() Config {
	c.KeyRange = 1 << bits.Len(uint(c.KeyRange-1))
	if c.LookupRange == 0 {
		c.LookupRange = c.KeyRange
	}
	if c.UpdateRange == 0 {
		c.UpdateRange = c.KeyRange
	}
	if c.SizeHint == 0 {
		c.SizeHint = c.InitKeys
	}
	if c.ResizeMax == 0 {
		c.ResizeMax = c.KeyRange
	}
	if c.ResizeMin == 0 {
		c.ResizeMin = min(c.KeyRange/2, c.ResizeMax)
	}
	return c
}
