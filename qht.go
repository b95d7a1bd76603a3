// Package qht implements a concurrent, resizable hash table optimized for
// lookup-heavy workloads.
//
// The table stores references (*T) keyed by a caller-computed 32-bit hash.
// Lookups take no locks: each head bucket is one cache line holding a
// spinlock, a sequence counter and a few (hash, pointer) slots, and readers
// validate what they saw against the sequence counter, retrying if a
// writer overlapped. Writers serialize per chain on the head bucket's
// spinlock. Resizing builds a new bucket array, publishes it atomically and
// hands the old one to an RCU domain for reclamation.
//
// The table never dereferences the stored values itself; equality is
// decided by the caller's functions.
package qht

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/llxisdsh/qht/rcu"
)

// CmpFunc reports whether two values are equal. It is called with a
// stored value as a and the value being inserted or probed as b.
type CmpFunc[T any] func(a, b *T) bool

// Table is a concurrent hash table of *T values.
//
// Values are never nil. A value may be stored at most once and under
// exactly one hash; callers that break this rule get undefined results
// (debug builds panic where they can tell).
//
// A Table must not be copied after first use.
type Table[T any] struct {
	_ noCopy

	m       atomic.Pointer[qhtMap]
	resizes atomic.Uint32
	lock    sync.Mutex // serializes map replacement

	cmp        func(a, b *T) bool
	eq         equalFunc
	autoResize bool
	domain     *rcu.Domain
	logger     *slog.Logger
}

// Config holds the options applied by New.
type Config struct {
	autoResize bool
	domain     *rcu.Domain
	logger     *slog.Logger
}

// WithAutoResize makes insertions double the table once too many
// overflow buckets have been added to it. Growth is best-effort: an
// insert that cannot immediately take the table lock leaves the growth to
// a later insert.
func WithAutoResize() func(*Config) {
	return func(c *Config) {
		c.autoResize = true
	}
}

// WithRCU sets the reclamation domain retired bucket arrays are handed to.
// The default is rcu.Default().
func WithRCU(d *rcu.Domain) func(*Config) {
	return func(c *Config) {
		c.domain = d
	}
}

// WithLogger makes the table log every resize at debug level.
func WithLogger(logger *slog.Logger) func(*Config) {
	return func(c *Config) {
		c.logger = logger
	}
}

// New creates a table sized for about sizeHint entries.
//
// cmp decides whether an inserted value duplicates a stored one with the
// same hash and is used by Lookup. If cmp is nil, values are compared by
// identity.
func New[T any](cmp CmpFunc[T], sizeHint int, options ...func(*Config)) *Table[T] {
	c := &Config{}
	for _, o := range options {
		o(c)
	}

	t := &Table[T]{
		autoResize: c.autoResize,
		domain:     c.domain,
		logger:     c.logger,
	}
	if t.domain == nil {
		t.domain = rcu.Default()
	}
	if cmp != nil {
		t.cmp = cmp
		t.eq = func(a, b unsafe.Pointer) bool {
			return cmp((*T)(a), (*T)(b))
		}
	} else {
		t.cmp = func(a, b *T) bool {
			return a == b
		}
	}
	t.m.Store(newMap(elemsToBuckets(sizeHint)))
	return t
}

// Destroy releases the table's buckets. The caller must guarantee that no
// other goroutine is using the table; any use afterwards panics.
// Values are not touched.
func (t *Table[T]) Destroy() {
	if m := t.m.Swap(nil); m != nil {
		m.destroy()
	}
}

func (t *Table[T]) loadMap() *qhtMap {
	m := t.m.Load()
	if m == nil {
		panic("qht: use of destroyed table")
	}
	return m
}

// enter opens a read section and loads the current map.
func (t *Table[T]) enter() (rcu.Reader, *qhtMap) {
	r := t.domain.ReadLock()
	m := t.m.Load()
	if m == nil {
		t.domain.ReadUnlock(r)
		panic("qht: use of destroyed table")
	}
	return r, m
}

// Insert adds p under hash. It returns false, leaving the table
// unchanged, if p (or a value equal to it, when the table has a cmp) is
// already stored under hash.
func (t *Table[T]) Insert(p *T, hash uint32) bool {
	_, loaded := t.LoadOrInsert(p, hash)
	return !loaded
}

// LoadOrInsert returns the value stored under hash that duplicates p, if
// any. Otherwise it stores p and returns it. loaded is true if the value
// was already present.
func (t *Table[T]) LoadOrInsert(p *T, hash uint32) (actual *T, loaded bool) {
	if p == nil {
		panic("qht: nil value")
	}

	r, m := t.enter()
	m, head := t.lockBucket(m, hash)
	prev, grown := head.insertLocked(m, unsafe.Pointer(p), hash, t.eq)
	if debugChecks {
		head.checkLocked()
	}
	head.lock.Unlock()
	t.domain.ReadUnlock(r)

	if grown && t.autoResize {
		t.growMaybe()
	}
	if prev != nil {
		return (*T)(prev), true
	}
	return p, false
}

// Remove deletes the entry (hash, p). Values are compared by identity.
// It returns false if the entry is not in the table.
func (t *Table[T]) Remove(p *T, hash uint32) bool {
	if p == nil {
		panic("qht: nil value")
	}

	r, m := t.enter()
	_, head := t.lockBucket(m, hash)
	ok := head.removeLocked(unsafe.Pointer(p), hash)
	if debugChecks {
		head.checkLocked()
	}
	head.lock.Unlock()
	t.domain.ReadUnlock(r)
	return ok
}

// lockBucket locks the head bucket for hash in m and returns m, or, if a
// resize has replaced m by the time the lock is held, locks the bucket in
// the current map under the table lock, which no resize can hold
// concurrently.
//
// Caller is inside a read section.
func (t *Table[T]) lockBucket(m *qhtMap, hash uint32) (*qhtMap, *bucket) {
	b := m.bucket(hash)
	b.lock.Lock()
	if t.m.Load() == m {
		return m, b
	}
	b.lock.Unlock()

	t.lock.Lock()
	defer t.lock.Unlock()
	m = t.loadMap()
	b = m.bucket(hash)
	b.lock.Lock()
	return m, b
}

// growMaybe doubles the table if it still needs it and no other resize
// is in progress.
//
//go:noinline
func (t *Table[T]) growMaybe() {
	if !t.lock.TryLock() {
		return
	}
	defer t.lock.Unlock()

	m := t.m.Load()
	if m == nil || !m.needsResize() {
		return
	}
	t.doResizeReset(newMap(len(m.buckets)*2), false, true)
}

// noCopy may be added to structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
//
// Note that it must not be embedded, due to the Lock and Unlock methods.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
