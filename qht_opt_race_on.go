//go:build race

package qht

import (
	"sync/atomic"
	"unsafe"
)

// Under the race detector every unlocked slot access goes through
// sync/atomic so the seqlock read path is not reported.
const isTSO = false

//go:nosplit
func loadPtr(addr *unsafe.Pointer) unsafe.Pointer {
	return atomic.LoadPointer(addr)
}

//go:nosplit
func storePtr(addr *unsafe.Pointer, val unsafe.Pointer) {
	atomic.StorePointer(addr, val)
}

//go:nosplit
func loadHash(addr *uint32) uint32 {
	return atomic.LoadUint32(addr)
}

//go:nosplit
func storeHash(addr *uint32, val uint32) {
	atomic.StoreUint32(addr, val)
}
