package qht

import (
	"sync/atomic"
	"time"
	_ "unsafe" // for linkname
)

// enableSpin lets waiters call runtime_doSpin (PAUSE) before falling back to
// sleeping.
const enableSpin = true

// spinLock guards one bucket chain.
// Replace Mutex with a 4-byte spinlock so lock, sequence and slots share
// the bucket's cache line.
//
// Partially references:
// [https://github.com/facebook/folly/blob/main/folly/synchronization/PicoSpinLock.h]
type spinLock struct {
	state uint32
}

func (l *spinLock) Lock() {
	if atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		return
	}
	l.slowLock()
}

//go:noinline
func (l *spinLock) slowLock() {
	spins := 0
	for !l.TryLock() {
		delay(&spins)
	}
}

func (l *spinLock) TryLock() bool {
	return atomic.LoadUint32(&l.state) == 0 &&
		atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

func (l *spinLock) Unlock() {
	atomic.StoreUint32(&l.state, 0)
}

func (l *spinLock) locked() bool {
	return atomic.LoadUint32(&l.state) != 0
}

func delay(spins *int) {
	const yieldSleep = 50 * time.Microsecond
	//goland:noinspection ALL
	if enableSpin && runtime_canSpin(*spins) {
		runtime_doSpin()
		*spins++
	} else {
		// A resize holds every bucket lock while it copies.
		time.Sleep(yieldSleep)
		*spins = 0
	}
}

// nolint:all
//
//go:linkname runtime_canSpin sync.runtime_canSpin
//go:nosplit
func runtime_canSpin(i int) bool

// nolint:all
//
//go:linkname runtime_doSpin sync.runtime_doSpin
//go:nosplit
func runtime_doSpin()
