package qht

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"
)

const (
	// number of entries to use in benchmarks
	benchmarkNumEntries = 1_000
)

var benchmarkCases = []struct {
	name           string
	readPercentage int
}{
	{"reads=100%", 100}, // 100% lookups,    0% inserts,    0% removes
	{"reads=99%", 99},   //  99% lookups,  0.5% inserts,  0.5% removes
	{"reads=90%", 90},   //  90% lookups,    5% inserts,    5% removes
	{"reads=75%", 75},   //  75% lookups, 12.5% inserts, 12.5% removes
}

var (
	benchmarkItems  = newItems(benchmarkNumEntries)
	benchmarkHashes = func() []uint32 {
		hashes := make([]uint32, benchmarkNumEntries)
		for i := range hashes {
			hashes[i] = hashOf(uint64(i))
		}
		return hashes
	}()
)

func runParallel(b *testing.B, benchFn func(pb *testing.PB)) {
	b.ResetTimer()
	start := time.Now()
	b.RunParallel(benchFn)
	opsPerSec := float64(b.N) / float64(time.Since(start).Seconds())
	b.ReportMetric(opsPerSec, "ops/s")
}

func benchmarkItemKeys(
	b *testing.B,
	lookupFn func(i int) bool,
	insertFn func(i int),
	removeFn func(i int),
	readPercentage int,
) {
	runParallel(b, func(pb *testing.PB) {
		// convert percent to permille to support 99% case
		insertThreshold := 10 * readPercentage
		removeThreshold := 10*readPercentage + ((1000 - 10*readPercentage) / 2)
		for pb.Next() {
			op := rand.IntN(1000)
			i := rand.IntN(benchmarkNumEntries)
			if op >= removeThreshold {
				removeFn(i)
			} else if op >= insertThreshold {
				insertFn(i)
			} else {
				lookupFn(i)
			}
		}
	})
}

func BenchmarkTable_NoWarmUp(b *testing.B) {
	for _, bc := range benchmarkCases {
		if bc.readPercentage == 100 {
			// This benchmark doesn't make sense without a warm-up.
			continue
		}
		b.Run(bc.name, func(b *testing.B) {
			tbl := New[testItem](itemEqual, 0, WithAutoResize())
			benchmarkTable(b, tbl, bc.readPercentage)
		})
	}
}

func BenchmarkTable_WarmUp(b *testing.B) {
	for _, bc := range benchmarkCases {
		b.Run(bc.name, func(b *testing.B) {
			tbl := New[testItem](itemEqual, benchmarkNumEntries, WithAutoResize())
			for i := range benchmarkItems {
				tbl.Insert(&benchmarkItems[i], benchmarkHashes[i])
			}
			benchmarkTable(b, tbl, bc.readPercentage)
		})
	}
}

func benchmarkTable(b *testing.B, tbl *Table[testItem], readPercentage int) {
	benchmarkItemKeys(b, func(i int) bool {
		return tbl.Lookup(benchmarkHashes[i], &benchmarkItems[i]) != nil
	}, func(i int) {
		tbl.Insert(&benchmarkItems[i], benchmarkHashes[i])
	}, func(i int) {
		tbl.Remove(&benchmarkItems[i], benchmarkHashes[i])
	}, readPercentage)
}

// BenchmarkTable_LookupDuringResize measures lookups while another
// goroutine keeps resizing the table between two sizes.
func BenchmarkTable_LookupDuringResize(b *testing.B) {
	tbl := New[testItem](itemEqual, benchmarkNumEntries)
	for i := range benchmarkItems {
		tbl.Insert(&benchmarkItems[i], benchmarkHashes[i])
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sizes := [2]int{benchmarkNumEntries / 8, benchmarkNumEntries * 8}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				tbl.Resize(sizes[i%2])
			}
		}
	}()

	benchmarkItemKeys(b, func(i int) bool {
		return tbl.Lookup(benchmarkHashes[i], &benchmarkItems[i]) != nil
	}, nil, nil, 100)
	close(stop)
	wg.Wait()
}

func BenchmarkSyncMap_WarmUp(b *testing.B) {
	for _, bc := range benchmarkCases {
		b.Run(bc.name, func(b *testing.B) {
			var m sync.Map
			for i := range benchmarkItems {
				m.Store(benchmarkItems[i].key, &benchmarkItems[i])
			}
			benchmarkItemKeys(b, func(i int) bool {
				_, ok := m.Load(benchmarkItems[i].key)
				return ok
			}, func(i int) {
				m.LoadOrStore(benchmarkItems[i].key, &benchmarkItems[i])
			}, func(i int) {
				m.Delete(benchmarkItems[i].key)
			}, bc.readPercentage)
		})
	}
}

func BenchmarkStats(b *testing.B) {
	tbl := New[testItem](itemEqual, benchmarkNumEntries)
	for i := range benchmarkItems {
		tbl.Insert(&benchmarkItems[i], benchmarkHashes[i])
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tbl.Stats()
	}
}
