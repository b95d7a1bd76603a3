//go:build !qht_debug

package qht

// debugChecks enables chain invariant verification after every write.
// Build with `-tags qht_debug` to turn it on.
const debugChecks = false
