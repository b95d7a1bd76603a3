package qht

import (
	"unsafe"
)

// bucketEntries is the number of (hash, pointer) slots per bucket: as many
// as fit in a cache line next to the lock, the sequence counter and the
// chain link. It is 4 on 64-bit hosts with 64-byte cache lines.
const bucketEntries = int((CacheLineSize - unsafe.Sizeof(struct {
	lock     spinLock
	sequence seqLock
	next     unsafe.Pointer
}{})) / (unsafe.Sizeof(uint32(0)) + unsafe.Sizeof(unsafe.Pointer(nil))))

// bucket is one cache line of the table. Head buckets live in the map's
// array and are the only ones whose lock and sequence are used; overflow
// buckets are chained from a head through next and carry unused copies of
// those fields so every bucket has the same layout.
//
// Slots are left-packed across the whole chain: the first nil pointer ends
// the chain's valid entries.
type bucket struct {
	lock     spinLock
	sequence seqLock
	hashes   [bucketEntries]uint32
	pointers [bucketEntries]unsafe.Pointer

	// pad must not be the last field: a trailing zero-size field makes the
	// compiler grow the struct past the cache line.
	//lint:ignore U1000 prevents false sharing
	pad [(CacheLineSize - unsafe.Sizeof(struct {
		lock     spinLock
		sequence seqLock
		hashes   [bucketEntries]uint32
		pointers [bucketEntries]unsafe.Pointer
		next     unsafe.Pointer
	}{})%CacheLineSize) % CacheLineSize]byte

	next unsafe.Pointer // *bucket
}

// equalFunc reports whether a stored value a is equal to the value b being
// inserted. Both are non-nil.
type equalFunc func(a, b unsafe.Pointer) bool

// nextBucket follows the chain without the lock.
//
//go:nosplit
func (b *bucket) nextBucket() *bucket {
	return (*bucket)(loadPtr(&b.next))
}

// insertLocked stores (hash, p) in the first free slot of head's chain,
// growing the chain by one bucket if it is full. If an entry with the same
// hash whose value is p, or equal to p according to eq, is already
// present, nothing is written and that value is returned.
//
// grown reports whether the map crossed its resize threshold because of a
// bucket added here.
//
// head must be locked, or belong to a map no other goroutine can see yet.
func (head *bucket) insertLocked(
	m *qhtMap,
	p unsafe.Pointer,
	hash uint32,
	eq equalFunc,
) (existing unsafe.Pointer, grown bool) {
	var prev *bucket
	for b := head; b != nil; b = (*bucket)(b.next) {
		for i := 0; i < bucketEntries; i++ {
			q := b.pointers[i]
			if q == nil {
				head.sequence.writeBegin()
				storeHash(&b.hashes[i], hash)
				storePtr(&b.pointers[i], p)
				head.sequence.writeEnd()
				return nil, false
			}
			if b.hashes[i] == hash && (q == p || eq != nil && eq(q, p)) {
				return q, false
			}
		}
		prev = b
	}

	// The chain is full. The new bucket is filled before it is linked so a
	// reader following next never sees a half-written bucket.
	nb := &bucket{}
	nb.hashes[0] = hash
	nb.pointers[0] = p
	head.sequence.writeBegin()
	storePtr(&prev.next, unsafe.Pointer(nb))
	head.sequence.writeEnd()
	return nil, m.addBucket()
}

// removeLocked removes the entry (hash, p) from head's chain.
// Caller holds head's lock.
func (head *bucket) removeLocked(p unsafe.Pointer, hash uint32) bool {
	for b := head; b != nil; b = (*bucket)(b.next) {
		for i := 0; i < bucketEntries; i++ {
			q := b.pointers[i]
			if q == nil {
				return false
			}
			if q != p {
				continue
			}
			if b.hashes[i] != hash {
				if debugChecks {
					panic("qht: value is stored under a different hash")
				}
				continue
			}
			head.sequence.writeBegin()
			b.removeEntry(i)
			head.sequence.writeEnd()
			return true
		}
	}
	return false
}

// entryIsLast reports whether slot pos of b holds the last valid entry of
// the chain.
func (b *bucket) entryIsLast(pos int) bool {
	if pos == bucketEntries-1 {
		next := (*bucket)(b.next)
		return next == nil || next.pointers[0] == nil
	}
	return b.pointers[pos+1] == nil
}

// entryMove moves from[j] into to[i] and clears from[j].
func entryMove(to *bucket, i int, from *bucket, j int) {
	storeHash(&to.hashes[i], from.hashes[j])
	storePtr(&to.pointers[i], from.pointers[j])
	storeHash(&from.hashes[j], 0)
	storePtr(&from.pointers[j], nil)
}

// removeEntry invalidates orig[pos] and fills the hole with the chain's
// last valid entry, keeping the chain left-packed.
// Caller holds the head lock and has opened a sequence write section.
func (orig *bucket) removeEntry(pos int) {
	if orig.entryIsLast(pos) {
		storeHash(&orig.hashes[pos], 0)
		storePtr(&orig.pointers[pos], nil)
		return
	}

	var prev *bucket
	for b := orig; b != nil; b = (*bucket)(b.next) {
		for i := 0; i < bucketEntries; i++ {
			if b.pointers[i] != nil {
				continue
			}
			if i > 0 {
				entryMove(orig, pos, b, i-1)
				return
			}
			// b is an empty overflow bucket; the last entry closes prev
			entryMove(orig, pos, prev, bucketEntries-1)
			return
		}
		prev = b
	}
	// every slot of the chain is used: the last one is the tail's last slot
	entryMove(orig, pos, prev, bucketEntries-1)
}

// resetLocked clears every entry of head's chain. Overflow buckets stay
// linked. Caller holds head's lock.
func (head *bucket) resetLocked() {
	head.sequence.writeBegin()
chain:
	for b := head; b != nil; b = (*bucket)(b.next) {
		for i := 0; i < bucketEntries; i++ {
			if b.pointers[i] == nil {
				break chain
			}
			storeHash(&b.hashes[i], 0)
			storePtr(&b.pointers[i], nil)
		}
	}
	head.sequence.writeEnd()
}

// iterLocked calls fn for every entry of head's chain, in slot order.
// Caller holds head's lock.
func (head *bucket) iterLocked(fn func(p unsafe.Pointer, hash uint32)) {
	for b := head; b != nil; b = (*bucket)(b.next) {
		for i := 0; i < bucketEntries; i++ {
			p := b.pointers[i]
			if p == nil {
				return
			}
			fn(p, b.hashes[i])
		}
	}
}

// iterRemoveLocked calls fn for every entry of head's chain and removes
// the entries for which it returns true. Returns the number removed.
// Caller holds head's lock.
func (head *bucket) iterRemoveLocked(fn func(p unsafe.Pointer, hash uint32) bool) (removed int) {
	for b := head; b != nil; b = (*bucket)(b.next) {
		for i := 0; i < bucketEntries; i++ {
			p := b.pointers[i]
			if p == nil {
				return
			}
			if fn(p, b.hashes[i]) {
				head.sequence.writeBegin()
				b.removeEntry(i)
				head.sequence.writeEnd()
				removed++
				// slot i now holds the entry moved from the tail
				i--
			}
		}
	}
	return
}

// countUnlocked returns the number of buckets and entries in head's chain
// as seen by a consistent optimistic read.
func (head *bucket) countUnlocked() (buckets, entries int) {
	for {
		version := head.sequence.readBegin()
		buckets, entries = 0, 0
		for b := head; b != nil; b = b.nextBucket() {
			for i := 0; i < bucketEntries; i++ {
				if loadPtr(&b.pointers[i]) == nil {
					break
				}
				entries++
			}
			buckets++
		}
		if !head.sequence.readRetry(version) {
			return
		}
	}
}

// lookupChain scans head's chain for an entry with the given hash whose
// value satisfies fn. It must be validated against head's sequence by the
// caller.
func lookupChain[T, C any](head *bucket, hash uint32, ctx C, fn func(p *T, ctx C) bool) *T {
	for b := head; b != nil; b = b.nextBucket() {
		for i := 0; i < bucketEntries; i++ {
			if loadHash(&b.hashes[i]) != hash {
				continue
			}
			if p := loadPtr(&b.pointers[i]); p != nil && fn((*T)(p), ctx) {
				return (*T)(p)
			}
		}
	}
	return nil
}
