package qht

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize is the size every bucket is padded to.
// It's derived from the target architecture by `golang.org/x/sys/cpu`.
const CacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})
