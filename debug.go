package qht

import (
	"fmt"
	"unsafe"
)

// checkLocked panics if head's chain is not left-packed, if an empty slot
// keeps a hash, or if a value appears twice in the chain.
// Caller holds head's lock.
func (head *bucket) checkLocked() {
	var seen map[uintptr]struct{}
	empty := false
	pos := 0
	for b := head; b != nil; b = (*bucket)(b.next) {
		for i := 0; i < bucketEntries; i, pos = i+1, pos+1 {
			p := b.pointers[i]
			if p == nil {
				if b.hashes[i] != 0 {
					panic(fmt.Sprintf("qht: empty slot %d keeps hash %#x", pos, b.hashes[i]))
				}
				empty = true
				continue
			}
			if empty {
				panic(fmt.Sprintf("qht: entry at slot %d follows an empty slot", pos))
			}
			if seen == nil {
				seen = make(map[uintptr]struct{})
			}
			if _, dup := seen[uintptr(p)]; dup {
				panic(fmt.Sprintf("qht: value %p stored twice in one chain", p))
			}
			seen[uintptr(p)] = struct{}{}
		}
	}
}

// checkLocked runs the chain check on every bucket and verifies that each
// entry sits in the head bucket its hash selects.
// Caller holds every bucket lock.
func (m *qhtMap) checkLocked() {
	for i := range m.buckets {
		head := &m.buckets[i]
		head.checkLocked()
		head.iterLocked(func(p unsafe.Pointer, hash uint32) {
			if m.bucket(hash) != head {
				panic(fmt.Sprintf("qht: value %p with hash %#x is in bucket %d", p, hash, i))
			}
		})
	}
}
