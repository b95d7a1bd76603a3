//go:build !race

package qht

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// On TSO architectures plain loads and stores of aligned words are already
// ordered the way the seqlock read path needs.
const isTSO = runtime.GOARCH == "amd64" ||
	runtime.GOARCH == "386" ||
	runtime.GOARCH == "s390x"

// loadPtr reads a slot pointer or chain link outside the bucket lock.
//
//go:nosplit
func loadPtr(addr *unsafe.Pointer) unsafe.Pointer {
	//goland:noinspection ALL
	if isTSO {
		return *addr
	} else {
		return atomic.LoadPointer(addr)
	}
}

// storePtr publishes a slot pointer or chain link; caller holds the bucket lock.
//
//go:nosplit
func storePtr(addr *unsafe.Pointer, val unsafe.Pointer) {
	//goland:noinspection ALL
	if isTSO {
		*addr = val
	} else {
		atomic.StorePointer(addr, val)
	}
}

//go:nosplit
func loadHash(addr *uint32) uint32 {
	//goland:noinspection ALL
	if isTSO {
		return *addr
	} else {
		return atomic.LoadUint32(addr)
	}
}

//go:nosplit
func storeHash(addr *uint32, val uint32) {
	//goland:noinspection ALL
	if isTSO {
		*addr = val
	} else {
		atomic.StoreUint32(addr, val)
	}
}
