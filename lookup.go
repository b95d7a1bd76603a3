package qht

// LookupCtx returns a value stored under hash for which fn(value, ctx)
// returns true, or nil. It takes no locks.
//
// fn may be called with values that a concurrent writer is moving and
// more than once for the same value; the result is only returned once the
// read has been validated. fn must not modify the table.
func LookupCtx[T, C any](t *Table[T], hash uint32, ctx C, fn func(p *T, ctx C) bool) *T {
	r, m := t.enter()
	head := m.bucket(hash)
	var p *T
	for {
		version := head.sequence.readBegin()
		p = lookupChain(head, hash, ctx, fn)
		if !head.sequence.readRetry(version) {
			break
		}
	}
	t.domain.ReadUnlock(r)
	return p
}

// Lookup returns the value stored under hash that is equal to probe
// according to the table's cmp, or nil.
func (t *Table[T]) Lookup(hash uint32, probe *T) *T {
	return LookupCtx[T, *T](t, hash, probe, t.cmp)
}

// LookupFunc returns a value stored under hash for which fn returns true,
// or nil.
func (t *Table[T]) LookupFunc(hash uint32, fn func(p *T) bool) *T {
	return LookupCtx(t, hash, fn, callMatch[T])
}

func callMatch[T any](p *T, fn func(p *T) bool) bool {
	return fn(p)
}
