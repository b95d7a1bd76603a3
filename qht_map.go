package qht

import (
	"math/bits"
	"sync/atomic"
	"unsafe"
)

// A map grows when more than 1/addedBucketsThresholdDiv of its head
// buckets' worth of overflow buckets have been allocated.
const addedBucketsThresholdDiv = 8

// qhtMap is one generation of the table: a power-of-two array of head
// buckets. A map is replaced, never resized in place.
type qhtMap struct {
	buckets       []bucket
	mask          uintptr
	nAddedBuckets atomic.Int64
	threshold     int64

	//lint:ignore U1000 prevents false sharing
	pad [(CacheLineSize - unsafe.Sizeof(struct {
		buckets       []bucket
		mask          uintptr
		nAddedBuckets atomic.Int64
		threshold     int64
	}{})%CacheLineSize) % CacheLineSize]byte
}

func newMap(nBuckets int) *qhtMap {
	if nBuckets <= 0 || nBuckets&(nBuckets-1) != 0 {
		panic("qht: bucket count must be a power of two")
	}
	return &qhtMap{
		buckets:   make([]bucket, nBuckets),
		mask:      uintptr(nBuckets - 1),
		threshold: int64(nBuckets / addedBucketsThresholdDiv),
	}
}

// elemsToBuckets returns the head bucket count for a size hint of n
// entries. Always at least 1.
func elemsToBuckets(n int) int {
	if n < 0 {
		panic("qht: negative size hint")
	}
	return nextPowOf2(n / bucketEntries)
}

// nextPowOf2 returns the smallest power of two >= n, and 1 for n <= 1.
func nextPowOf2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// bucket returns the head bucket for hash.
//
//go:nosplit
func (m *qhtMap) bucket(hash uint32) *bucket {
	return &m.buckets[uintptr(hash)&m.mask]
}

// addBucket records an overflow bucket allocation and reports whether the
// map is now over its threshold.
func (m *qhtMap) addBucket() bool {
	return m.nAddedBuckets.Add(1) > m.threshold
}

func (m *qhtMap) needsResize() bool {
	return m.nAddedBuckets.Load() > m.threshold
}

// lockBuckets locks every head bucket, in index order.
func (m *qhtMap) lockBuckets() {
	for i := range m.buckets {
		m.buckets[i].lock.Lock()
	}
}

func (m *qhtMap) unlockBuckets() {
	for i := range m.buckets {
		m.buckets[i].lock.Unlock()
	}
}

// Caller holds every bucket lock.
func (m *qhtMap) resetLocked() {
	for i := range m.buckets {
		m.buckets[i].resetLocked()
	}
}

// iterLocked calls fn for every entry and returns the number of entries.
// Caller holds every bucket lock.
func (m *qhtMap) iterLocked(fn func(p unsafe.Pointer, hash uint32)) int {
	n := 0
	for i := range m.buckets {
		m.buckets[i].iterLocked(func(p unsafe.Pointer, hash uint32) {
			n++
			fn(p, hash)
		})
	}
	return n
}

// Caller holds every bucket lock.
func (m *qhtMap) iterRemoveLocked(fn func(p unsafe.Pointer, hash uint32) bool) int {
	n := 0
	for i := range m.buckets {
		n += m.buckets[i].iterRemoveLocked(fn)
	}
	return n
}

// copyLocked inserts every entry of m into dst, which must not be visible
// to other goroutines yet. Returns the number of entries copied.
func (m *qhtMap) copyLocked(dst *qhtMap) int {
	return m.iterLocked(func(p unsafe.Pointer, hash uint32) {
		dst.bucket(hash).insertLocked(dst, p, hash, nil)
	})
}

// destroy drops every reference the map holds so that values removed
// from the table are not kept alive by a retired generation. It runs once
// no reader can still be traversing m.
func (m *qhtMap) destroy() {
	for i := range m.buckets {
		head := &m.buckets[i]
		for b := head; b != nil; {
			next := (*bucket)(b.next)
			for j := 0; j < bucketEntries; j++ {
				storeHash(&b.hashes[j], 0)
				storePtr(&b.pointers[j], nil)
			}
			storePtr(&b.next, nil)
			b = next
		}
	}
	m.buckets = nil
}
