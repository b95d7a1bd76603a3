package qht

import (
	"unsafe"
)

// Resize replaces the table's bucket array with one sized for about
// sizeHint entries, copying every entry. It returns false if the table
// already has that many head buckets.
//
// Lookups proceed during the copy; writers to the table wait for it.
func (t *Table[T]) Resize(sizeHint int) bool {
	n := elemsToBuckets(sizeHint)

	t.lock.Lock()
	defer t.lock.Unlock()
	if n == len(t.loadMap().buckets) {
		return false
	}
	t.doResizeReset(newMap(n), false, false)
	return true
}

// Reset removes every entry. The bucket array and any overflow buckets
// are kept.
func (t *Table[T]) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.doResizeReset(nil, true, false)
}

// ResetSize removes every entry and then resizes the table for about
// sizeHint entries. It returns whether a new bucket array was installed.
func (t *Table[T]) ResetSize(sizeHint int) bool {
	n := elemsToBuckets(sizeHint)

	t.lock.Lock()
	defer t.lock.Unlock()
	var nm *qhtMap
	if n != len(t.loadMap().buckets) {
		nm = newMap(n)
	}
	t.doResizeReset(nm, true, false)
	return nm != nil
}

// doResizeReset locks every bucket of the current map, optionally clears
// it, and if nm is not nil copies the entries into nm, publishes it and
// retires the old map. Caller holds t.lock.
func (t *Table[T]) doResizeReset(nm *qhtMap, reset, auto bool) {
	old := t.loadMap()
	old.lockBuckets()

	if reset {
		old.resetLocked()
	}
	if nm == nil {
		if debugChecks {
			old.checkLocked()
		}
		old.unlockBuckets()
		return
	}

	n := old.copyLocked(nm)
	if debugChecks {
		nm.checkLocked()
	}
	t.m.Store(nm)
	old.unlockBuckets()
	t.resizes.Add(1)

	if t.logger != nil {
		t.logger.Debug("qht resized",
			"old_buckets", len(old.buckets),
			"new_buckets", len(nm.buckets),
			"entries", n,
			"auto", auto)
	}
	t.domain.Defer(old.destroy)
}

// lockBucketsNoStale locks every bucket of m and returns it. If m was
// replaced while its buckets were being locked, it is unlocked and the
// current map is locked under t.lock instead.
func (t *Table[T]) lockBucketsNoStale(m *qhtMap) *qhtMap {
	m.lockBuckets()
	if t.m.Load() == m {
		return m
	}
	m.unlockBuckets()

	t.lock.Lock()
	defer t.lock.Unlock()
	m = t.loadMap()
	m.lockBuckets()
	return m
}

// Iter calls fn for every entry. Writers are blocked for the duration
// of the call, so fn must not insert into or remove from the table.
func (t *Table[T]) Iter(fn func(p *T, hash uint32)) {
	r, m := t.enter()
	m = t.lockBucketsNoStale(m)
	m.iterLocked(func(p unsafe.Pointer, hash uint32) {
		fn((*T)(p), hash)
	})
	m.unlockBuckets()
	t.domain.ReadUnlock(r)
}

// IterRemove calls fn for every entry and removes those for which it
// returns true. It returns the number of entries removed. The same
// restrictions as for Iter apply to fn.
func (t *Table[T]) IterRemove(fn func(p *T, hash uint32) bool) int {
	r, m := t.enter()
	m = t.lockBucketsNoStale(m)
	n := m.iterRemoveLocked(func(p unsafe.Pointer, hash uint32) bool {
		return fn((*T)(p), hash)
	})
	if debugChecks {
		m.checkLocked()
	}
	m.unlockBuckets()
	t.domain.ReadUnlock(r)
	return n
}
