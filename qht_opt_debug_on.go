//go:build qht_debug

package qht

// debugChecks enables chain invariant verification after every write.
// It walks the whole chain under the bucket lock, so it is for tests only.
const debugChecks = true
