// Package rcu implements read-copy-update style deferred reclamation for
// read-mostly data structures.
//
// Readers bracket their accesses with ReadLock/ReadUnlock. The sections are
// nestable, never block and never allocate. A writer that unpublishes an
// object hands its destructor to Defer; the destructor runs on a background
// goroutine only after every reader that was inside a read section at the
// time of the call has left it.
//
// Readers are counted on cache-line padded stripes, one counter pair per
// stripe. A grace period waits for the inactive phase to drain, flips the
// phase so new readers stop joining the old counters, and then waits for
// the previous phase to drain.
package rcu

import (
	"math/bits"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/cpu"
)

const cacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})

// stripesPerProc spreads concurrent readers so that two of them rarely
// share a counter line.
const stripesPerProc = 4

type stripe struct {
	readers [2]atomic.Int64

	//lint:ignore U1000 prevents false sharing
	pad [(cacheLineSize - unsafe.Sizeof([2]atomic.Int64{})%cacheLineSize) % cacheLineSize]byte
}

// Reader is the token returned by ReadLock. It must be passed to the
// matching ReadUnlock and must not be reused.
type Reader struct {
	s     *stripe
	phase uint32
}

// Domain is an independent reclamation domain. The zero value is not
// usable; create one with NewDomain or use Default.
type Domain struct {
	phase   atomic.Uint32
	stripes []stripe
	mask    uint32

	gpMu         sync.Mutex // serializes grace periods
	gracePeriods atomic.Uint64

	mu      sync.Mutex
	pending []func()
	started bool
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

var (
	defaultOnce   sync.Once
	defaultDomain *Domain
)

// Default returns the process-wide domain, creating it on first use.
func Default() *Domain {
	defaultOnce.Do(func() {
		defaultDomain = NewDomain()
	})
	return defaultDomain
}

// NewDomain creates a domain sized for the current GOMAXPROCS.
func NewDomain() *Domain {
	n := runtime.GOMAXPROCS(0) * stripesPerProc
	n = 1 << bits.Len(uint(n-1))
	return &Domain{
		stripes: make([]stripe, n),
		mask:    uint32(n - 1),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// ReadLock enters a read section.
func (d *Domain) ReadLock() Reader {
	s := &d.stripes[rand.Uint32()&d.mask]
	p := d.phase.Load() & 1
	s.readers[p].Add(1)
	return Reader{s: s, phase: p}
}

// ReadUnlock leaves the read section entered by the ReadLock that returned r.
func (d *Domain) ReadUnlock(r Reader) {
	r.s.readers[r.phase].Add(-1)
}

// Synchronize blocks until every read section that was active when it was
// called has ended. It must not be called from inside a read section.
func (d *Domain) Synchronize() {
	d.gpMu.Lock()
	defer d.gpMu.Unlock()

	cur := d.phase.Load() & 1
	d.waitDrained(cur ^ 1)
	d.phase.Store(cur ^ 1)
	d.waitDrained(cur)
	d.gracePeriods.Add(1)
}

// GracePeriods returns the number of completed grace periods.
func (d *Domain) GracePeriods() uint64 {
	return d.gracePeriods.Load()
}

func (d *Domain) drained(phase uint32) bool {
	var sum int64
	for i := range d.stripes {
		sum += d.stripes[i].readers[phase].Load()
	}
	return sum == 0
}

func (d *Domain) waitDrained(phase uint32) {
	const (
		yieldSpins = 64
		backoff    = 20 * time.Microsecond
	)
	for spins := 0; !d.drained(phase); spins++ {
		if spins < yieldSpins {
			runtime.Gosched()
		} else {
			time.Sleep(backoff)
		}
	}
}

// Defer queues fn to run after a grace period. Callbacks run one at a time,
// in the order they were queued, on the domain's reclaimer goroutine.
// It panics if the domain has been closed.
func (d *Domain) Defer(fn func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		panic("rcu: Defer on closed domain")
	}
	d.pending = append(d.pending, fn)
	if !d.started {
		d.started = true
		go d.reclaim()
	}
	d.mu.Unlock()
	d.signal()
}

// Barrier waits until every callback queued by Defer before the call has
// run. Like Synchronize, it must not be called from inside a read section.
func (d *Domain) Barrier() {
	done := make(chan struct{})
	d.Defer(func() { close(done) })
	<-done
}

// Close runs the callbacks still queued and stops the reclaimer goroutine.
// Defer must not be called after Close.
func (d *Domain) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	started := d.started
	d.mu.Unlock()
	if started {
		d.signal()
		<-d.done
	}
}

func (d *Domain) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Domain) reclaim() {
	defer close(d.done)
	for range d.wake {
		d.mu.Lock()
		batch := d.pending
		d.pending = nil
		closed := d.closed
		d.mu.Unlock()

		if len(batch) != 0 {
			d.Synchronize()
			for _, fn := range batch {
				fn()
			}
		}
		if closed {
			return
		}
	}
}
