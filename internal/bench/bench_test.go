package bench

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Duration = 50 * time.Millisecond
	cfg.Threads = 2
	cfg.KeyRange = 1000
	cfg.InitKeys = 500
	cfg.Seed = 1
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(c *Config)
		errMsg string
	}{
		{"zero duration", func(c *Config) { c.Duration = 0 }, "duration"},
		{"no workers", func(c *Config) { c.Threads = 0 }, "at least one worker"},
		{"negative threads", func(c *Config) { c.ResizeThreads = -1 }, "thread counts"},
		{"empty key range", func(c *Config) { c.KeyRange = 0 }, "key range"},
		{"too many initial keys", func(c *Config) { c.InitKeys = c.KeyRange + 1 }, "initial keys"},
		{"lookup range", func(c *Config) { c.LookupRange = c.KeyRange + 1 }, "lookup range"},
		{"update range", func(c *Config) { c.UpdateRange = -1 }, "update range"},
		{"update rate", func(c *Config) { c.UpdateRate = 101 }, "update rate"},
		{"resize rate", func(c *Config) { c.ResizeRate = -0.5 }, "resize rate"},
		{"resize order", func(c *Config) { c.ResizeMin, c.ResizeMax = 10, 5 }, "exceeds"},
		{"bins", func(c *Config) { c.Bins = 0 }, "bins"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_Normalized(t *testing.T) {
	cfg := Config{KeyRange: 1000, InitKeys: 300}
	n := cfg.normalized()
	require.Equal(t, 1024, n.KeyRange)
	require.Equal(t, 1024, n.LookupRange)
	require.Equal(t, 1024, n.UpdateRange)
	require.Equal(t, 300, n.SizeHint)
	require.Equal(t, 1024, n.ResizeMax)
	require.Equal(t, 512, n.ResizeMin)

	cfg = Config{KeyRange: 1, LookupRange: 1, ResizeMax: 8}
	n = cfg.normalized()
	require.Equal(t, 1, n.KeyRange)
	require.Equal(t, 0, n.ResizeMin)
	require.Equal(t, 8, n.ResizeMax)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Duration = -1
	_, err := New(cfg, nil)
	require.ErrorContains(t, err, "invalid bench config")
}

func TestNew_Populates(t *testing.T) {
	for _, precompute := range []bool{false, true} {
		cfg := testConfig()
		cfg.PrecomputeHashes = precompute
		cfg.KeyOffset = 1 << 40
		b, err := New(cfg, nil)
		require.NoError(t, err)
		require.Equal(t, 500, b.Table().Stats().Entries)

		found := 0
		for i := range b.keys {
			if b.Table().Lookup(HashKey(b.keys[i]), &b.keys[i]) != nil {
				found++
			}
		}
		require.Equal(t, 500, found)
	}
}

func TestNew_SeedIsReproducible(t *testing.T) {
	members := func() map[uint64]bool {
		b, err := New(testConfig(), nil)
		require.NoError(t, err)
		set := make(map[uint64]bool)
		b.Table().Iter(func(p *uint64, _ uint32) {
			set[*p] = true
		})
		return set
	}
	require.Equal(t, members(), members())
}

func TestRun_ReadOnly(t *testing.T) {
	res, err := Run(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	require.NotZero(t, res.Lookups)
	require.Zero(t, res.Inserts+res.Removes)
	// half of the keys are in the table
	require.InDelta(t, 0.5, float64(res.LookupHits)/float64(res.Lookups), 0.1)
	require.Equal(t, 500, res.Stats.Entries)
	require.Positive(t, res.MopsPerSec())
}

func TestRun_UpdatesAndResizes(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := testConfig()
	cfg.Duration = 100 * time.Millisecond
	cfg.UpdateRate = 20
	cfg.ResizeThreads = 1
	cfg.ResizeRate = 100
	cfg.ResizeDelay = time.Millisecond
	cfg.AutoResize = true
	res, err := Run(context.Background(), cfg, logger)
	require.NoError(t, err)

	require.NotZero(t, res.Inserts)
	require.NotZero(t, res.Removes)
	require.NotZero(t, res.ResizesOK)
	require.Equal(t, res.Config.KeyRange, 1024)

	// every successful update changes the entry count by one
	want := 500 + int(res.InsertsOK) - int(res.RemovesOK)
	require.Equal(t, want, res.Stats.Entries)
	require.Contains(t, logs.String(), "qht resized")
	require.Contains(t, logs.String(), "run finished")

	var report bytes.Buffer
	require.NoError(t, res.Report(&report))
	require.Contains(t, report.String(), "Lookups:")
	require.Contains(t, report.String(), "Table after the run:")
}

func TestRun_Canceled(t *testing.T) {
	cfg := testConfig()
	cfg.Duration = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := Run(ctx, cfg, nil)
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Minute)
}

func TestRun_LookupMismatchStopsAllWorkers(t *testing.T) {
	cfg := testConfig()
	cfg.Duration = time.Hour
	cfg.Threads = 4
	cfg.ResizeThreads = 1
	cfg.KeyRange = 16
	cfg.InitKeys = 0
	cfg.LookupRange = 1
	cfg.UpdateRate = 0
	cfg.PrecomputeHashes = true

	b, err := New(cfg, nil)
	require.NoError(t, err)

	// key 0 is stored and probed under key 1's hash, so every hit fails
	// the hash check
	wrong := HashKey(b.keys[1])
	require.True(t, b.Table().Insert(&b.keys[0], wrong))
	b.hashes[0] = wrong

	start := time.Now()
	_, err = b.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "returned key")
	require.Less(t, time.Since(start), time.Minute)
}

func TestHashKey(t *testing.T) {
	require.Equal(t, HashKey(42), HashKey(42))
	require.NotEqual(t, HashKey(1), HashKey(2))
}
