// Package bench stresses a qht table with concurrent lookups, updates and
// resizes and reports throughput and table statistics.
package bench

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"

	"github.com/llxisdsh/qht"
)

// HashKey is the hash the benchmark stores keys under.
func HashKey(k uint64) uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], k)
	return uint32(xxhash.Sum64(b[:]))
}

func keyEqual(a, b *uint64) bool {
	return *a == *b
}

// Bench is a populated table and the key set the workers draw from.
type Bench struct {
	cfg    Config
	logger *slog.Logger
	table  *qht.Table[uint64]
	keys   []uint64
	hashes []uint32 // nil unless cfg.PrecomputeHashes

	initStats *qht.Stats
}

// New validates cfg, creates the table and inserts the initial keys.
func New(cfg Config, logger *slog.Logger) (*Bench, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid bench config")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg = cfg.normalized()

	opts := []func(*qht.Config){qht.WithLogger(logger)}
	if cfg.AutoResize {
		opts = append(opts, qht.WithAutoResize())
	}
	b := &Bench{
		cfg:    cfg,
		logger: logger,
		table:  qht.New[uint64](keyEqual, cfg.SizeHint, opts...),
		keys:   make([]uint64, cfg.KeyRange),
	}
	for i := range b.keys {
		b.keys[i] = cfg.KeyOffset + uint64(i)
	}
	if cfg.PrecomputeHashes {
		b.hashes = make([]uint32, len(b.keys))
		for i, k := range b.keys {
			b.hashes[i] = HashKey(k)
		}
	}

	rng := newRNG(cfg.Seed, 0)
	for _, i := range rng.Perm(len(b.keys))[:cfg.InitKeys] {
		b.table.Insert(&b.keys[i], b.hash(i))
	}
	b.initStats = b.table.Stats()
	logger.Info("table populated",
		"entries", b.initStats.Entries,
		"head_buckets", b.initStats.HeadBuckets,
		"key_range", cfg.KeyRange)
	return b, nil
}

// Table returns the benchmarked table.
func (b *Bench) Table() *qht.Table[uint64] {
	return b.table
}

// Config returns the normalized configuration.
func (b *Bench) Config() Config {
	return b.cfg
}

func (b *Bench) hash(i int) uint32 {
	if b.hashes != nil {
		return b.hashes[i]
	}
	return HashKey(b.keys[i])
}

// newRNG returns a generator seeded from seed and stream, or from the OS
// when seed is zero.
func newRNG(seed uint64, stream int) *frand.RNG {
	if seed == 0 {
		return frand.New()
	}
	var s [32]byte
	binary.LittleEndian.PutUint64(s[0:], seed)
	binary.LittleEndian.PutUint64(s[8:], uint64(stream))
	return frand.NewCustom(s[:], 1024, 12)
}

// Run runs the configured workers for cfg.Duration or until ctx is done.
func (b *Bench) Run(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Duration)
	defer cancel()

	// the first failing worker cancels gctx, which stops the others
	eg, gctx := errgroup.WithContext(ctx)
	var stop atomic.Bool
	go func() {
		<-gctx.Done()
		stop.Store(true)
	}()

	rw := make([]rwCounts, b.cfg.Threads)
	rz := make([]rzCounts, b.cfg.ResizeThreads)
	start := time.Now()
	for i := range rw {
		rng := newRNG(b.cfg.Seed, 1+i)
		eg.Go(func() error {
			return b.rwWorker(&stop, rng, &rw[i])
		})
	}
	for i := range rz {
		rng := newRNG(b.cfg.Seed, 1+len(rw)+i)
		eg.Go(func() error {
			b.rzWorker(gctx, &stop, rng, i%2 == 1, &rz[i])
			return nil
		})
	}
	err := eg.Wait()
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Config:    b.cfg,
		Elapsed:   elapsed,
		InitStats: b.initStats,
		Stats:     b.table.Stats(),
	}
	for i := range rw {
		res.Lookups += rw[i].lookups
		res.LookupHits += rw[i].hits
		res.Inserts += rw[i].inserts
		res.InsertsOK += rw[i].insertsOK
		res.Removes += rw[i].removes
		res.RemovesOK += rw[i].removesOK
	}
	for i := range rz {
		res.Resizes += rz[i].resizes
		res.ResizesOK += rz[i].resizesOK
	}
	b.logger.Info("run finished",
		"elapsed", elapsed,
		"ops", res.Ops(),
		"mops_per_sec", res.MopsPerSec())
	return res, nil
}

// Run creates a benchmark from cfg and runs it.
func Run(ctx context.Context, cfg Config, logger *slog.Logger) (*Result, error) {
	b, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return b.Run(ctx)
}

type rwCounts struct {
	lookups, hits      uint64
	inserts, insertsOK uint64
	removes, removesOK uint64
}

type rzCounts struct {
	resizes, resizesOK uint64
}

// stopCheckInterval is the number of operations between checks of the
// stop flag.
const stopCheckInterval = 64

func (b *Bench) rwWorker(stop *atomic.Bool, rng *frand.RNG, c *rwCounts) error {
	var local rwCounts
	defer func() { *c = local }()

	for n := 0; ; n++ {
		if n%stopCheckInterval == 0 && stop.Load() {
			return nil
		}
		if b.cfg.UpdateRate > 0 && rng.Float64()*100 < b.cfg.UpdateRate {
			i := rng.Intn(b.cfg.UpdateRange)
			if rng.Intn(2) == 0 {
				local.inserts++
				if b.table.Insert(&b.keys[i], b.hash(i)) {
					local.insertsOK++
				}
			} else {
				local.removes++
				if b.table.Remove(&b.keys[i], b.hash(i)) {
					local.removesOK++
				}
			}
			continue
		}

		i := rng.Intn(b.cfg.LookupRange)
		hash := b.hash(i)
		local.lookups++
		p := b.table.Lookup(hash, &b.keys[i])
		if p == nil {
			continue
		}
		local.hits++
		if *p != b.keys[i] || HashKey(*p) != hash {
			return errors.Errorf("lookup of key %d (hash %#x) returned key %d", b.keys[i], hash, *p)
		}
	}
}

func (b *Bench) rzWorker(ctx context.Context, stop *atomic.Bool, rng *frand.RNG, down bool, c *rzCounts) {
	var local rzCounts
	defer func() { *c = local }()

	var timer *time.Timer
	if b.cfg.ResizeDelay > 0 {
		timer = time.NewTimer(b.cfg.ResizeDelay)
		defer timer.Stop()
	}
	for !stop.Load() {
		if rng.Float64()*100 < b.cfg.ResizeRate {
			size := b.cfg.ResizeMax
			if down {
				size = b.cfg.ResizeMin
			}
			local.resizes++
			if b.table.Resize(size) {
				local.resizesOK++
			}
			down = !down
		}
		if timer == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			timer.Reset(b.cfg.ResizeDelay)
		}
	}
}
