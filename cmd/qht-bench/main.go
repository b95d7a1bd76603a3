// Command qht-bench measures qht throughput under concurrent lookups,
// updates and resizes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/llxisdsh/qht/internal/bench"
	"github.com/llxisdsh/qht/qhtprom"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := bench.DefaultConfig()
	var (
		logLevel    string
		logFormat   string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "qht-bench",
		Short: "Benchmark a qht table under concurrent lookups, updates and resizes",
		Args:  cobra.NoArgs,

		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), logFormat, logLevel)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, err := bench.New(cfg, logger)
			if err != nil {
				return err
			}

			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				reg.MustRegister(qhtprom.NewCollector("qht_bench", b.Table(), nil))
				shutdown, err := serveMetrics(metricsAddr, reg)
				if err != nil {
					return err
				}
				defer shutdown()
				logger.Info("serving metrics", "addr", metricsAddr)
			}

			res, err := b.Run(ctx)
			if err != nil {
				return pkgerrors.Wrap(err, "benchmark failed")
			}
			return res.Report(cmd.OutOrStdout())
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	f := cmd.Flags()
	f.DurationVarP(&cfg.Duration, "duration", "d", cfg.Duration, "duration of the measured phase")
	f.IntVarP(&cfg.Threads, "threads", "n", cfg.Threads, "number of lookup/update workers")
	f.IntVar(&cfg.ResizeThreads, "resize-threads", cfg.ResizeThreads, "number of resize workers")
	f.IntVarP(&cfg.KeyRange, "key-range", "K", cfg.KeyRange, "number of distinct keys (rounded up to a power of two)")
	f.IntVarP(&cfg.InitKeys, "init-keys", "N", cfg.InitKeys, "number of keys inserted before the run")
	f.IntVarP(&cfg.LookupRange, "lookup-range", "l", cfg.LookupRange, "lookups use the first N keys (0: all)")
	f.IntVarP(&cfg.UpdateRange, "update-range", "r", cfg.UpdateRange, "updates use the first N keys (0: all)")
	f.Uint64VarP(&cfg.KeyOffset, "key-offset", "k", cfg.KeyOffset, "value of the first key")
	f.IntVarP(&cfg.SizeHint, "size-hint", "s", cfg.SizeHint, "initial table size hint (0: init-keys)")
	f.Float64VarP(&cfg.UpdateRate, "update-rate", "u", cfg.UpdateRate, "percentage of operations that are updates")
	f.Float64Var(&cfg.ResizeRate, "resize-rate", cfg.ResizeRate, "percentage of resize worker iterations that resize")
	f.DurationVar(&cfg.ResizeDelay, "resize-delay", cfg.ResizeDelay, "pause between resize worker iterations")
	f.IntVar(&cfg.ResizeMin, "resize-min", cfg.ResizeMin, "smaller size resize workers use (0: key-range/2)")
	f.IntVar(&cfg.ResizeMax, "resize-max", cfg.ResizeMax, "larger size resize workers use (0: key-range)")
	f.BoolVarP(&cfg.AutoResize, "auto-resize", "R", cfg.AutoResize, "let inserts grow the table")
	f.BoolVarP(&cfg.PrecomputeHashes, "precompute-hashes", "p", cfg.PrecomputeHashes, "look hashes up in a table instead of hashing keys")
	f.IntVar(&cfg.Bins, "bins", cfg.Bins, "number of histogram bins in the report")
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed (0: seed from the OS)")

	f.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.StringVar(&logFormat, "log-format", "dev", "log format: dev, text or json")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics at this address while running")
	return cmd
}

// serveMetrics serves reg at addr in the background and returns a
// function that shuts the server down.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "listening on %s", addr)
	}
	srv := &http.Server{
		Handler:           qhtprom.NewMetricsAPI(qhtprom.Opts{Gatherer: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "metrics server:", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
