package qht

import "sync/atomic"

// seqLock is a sequence counter: even while the protected data is stable,
// odd while a writer is mutating it. Writers must already be serialized
// (the bucket spinLock does that); seqLock only lets lock-free readers
// detect that they overlapped a write.
type seqLock struct {
	sequence uint32
}

// writeBegin makes the sequence odd. Stores issued after it are not visible
// before the odd value.
func (s *seqLock) writeBegin() {
	atomic.AddUint32(&s.sequence, 1)
}

// writeEnd makes the sequence even again, publishing the write.
func (s *seqLock) writeEnd() {
	atomic.AddUint32(&s.sequence, 1)
}

// readBegin returns the version to validate against. An odd sequence is
// rounded down so that readRetry always fails for a read that started
// during a write.
func (s *seqLock) readBegin() uint32 {
	return atomic.LoadUint32(&s.sequence) &^ 1
}

// readRetry reports whether a write happened since readBegin returned start.
func (s *seqLock) readRetry(start uint32) bool {
	return atomic.LoadUint32(&s.sequence) != start
}
