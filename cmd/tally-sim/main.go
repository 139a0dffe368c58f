// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// tally-sim hammers a counter with concurrent writers and verifies the
// quiescent-sum identity at the end. It doubles as a demo of the telemetry
// and export glue: run with -metrics-addr to scrape engine stats, and with
// -redis to snapshot aggregates into Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tally"
	"tally/internal/export"
	"tally/internal/session"
	"tally/internal/telemetry"
)

func main() {
	var (
		widthBytes   = flag.Int("width", 8, "cell width in bytes (1, 2, 4 or 8)")
		dimsFlag     = flag.String("dims", "16,8", "comma-separated max_nr_elem per dimension")
		shards       = flag.Int("shards", 0, "writer shards (0 = derive from GOMAXPROCS)")
		step         = flag.Int64("step", 1024, "global sum step")
		writers      = flag.Int("writers", 8, "concurrent writer goroutines")
		duration     = flag.Duration("duration", 3*time.Second, "how long writers run")
		metricsAddr  = flag.String("metrics-addr", "", "address for /metrics (empty to disable)")
		redisAddr    = flag.String("redis", "", "redis address for snapshot export (empty = log sink)")
		exportEvery  = flag.Duration("export-interval", time.Second, "snapshot export interval")
		strayPercent = flag.Int("stray", 5, "percent of writes with out-of-range indexes")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	dims, err := parseDims(*dimsFlag)
	if err != nil {
		logger.Fatal("bad -dims", zap.Error(err))
	}

	cfg := tally.Config{
		Alloc:      tally.AllocSharded,
		Sync:       tally.SyncSharded,
		Arithmetic: tally.ArithmeticWrapWithFlag,
		Width:      tally.Width(*widthBytes),
	}
	var opts []tally.Option
	opts = append(opts, tally.WithLogger(logger))
	if *shards > 0 {
		opts = append(opts, tally.WithShards(*shards))
	}

	registry := session.NewRegistry(logger)
	counter, err := registry.Create("sim", cfg, dims, *step, opts...)
	if err != nil {
		logger.Fatal("create counter", zap.Error(err))
	}
	defer registry.DestroyAll()

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(telemetry.NewCollector(telemetry.Source{Name: "sim", Counter: counter}))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			logger.Info("serving metrics", zap.String("addr", *metricsAddr))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	var sink export.Sink = export.NewLoggingSink(logger)
	if *redisAddr != "" {
		sink = export.NewRedisSink(export.NewGoRedisHashSetter(*redisAddr), "tally")
	}
	probeIdx := probeIndexes(dims)
	exporter := export.NewExporter(sink, *exportEvery, logger, export.Probe{
		Session: "sim",
		Counter: counter,
		Indexes: probeIdx,
	})
	exporter.Start()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	logger.Info("starting writers",
		zap.Int("writers", *writers),
		zap.Int("shards", counter.Shards()),
		zap.Duration("duration", *duration))

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	totals := make([]int64, *writers)
	for w := 0; w < *writers; w++ {
		w := w
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(w)))
			idx := make([]int64, len(dims))
			for {
				select {
				case <-ctx.Done():
					return nil
				default:
				}
				for i, d := range dims {
					if rng.Intn(100) < *strayPercent {
						idx[i] = d.MaxNrElem + rng.Int63n(1000) // clamps to overflow slot
					} else {
						idx[i] = rng.Int63n(d.MaxNrElem)
					}
				}
				counter.Increment(idx)
				totals[w]++
			}
		})
	}
	if err := g.Wait(); err != nil {
		logger.Fatal("writer failed", zap.Error(err))
	}
	elapsed := time.Since(start)
	exporter.Stop()

	var written int64
	for _, n := range totals {
		written += n
	}

	// Quiescence: writers are done, so the fold must equal per-layout sums
	// and the grand total must match what the writers counted.
	var grand int64
	for _, idx := range probeIdx {
		sum, _, _, err := counter.Aggregate(idx)
		if err != nil {
			logger.Fatal("aggregate", zap.Error(err))
		}
		grand += sum
	}
	st := counter.Stats()
	logger.Info("simulation finished",
		zap.Int64("writes", written),
		zap.Int64("aggregated", grand),
		zap.Duration("elapsed", elapsed),
		zap.Float64("writes_per_sec", float64(written)/elapsed.Seconds()),
		zap.Int64("rebalances", st.Rebalances),
		zap.Int64("flags_set", st.FlagsSet),
		zap.Int64("dropped", st.DroppedUpdates))

	// Narrow widths wrap under sustained load, so the identity only holds
	// exactly at 64-bit cells.
	if cfg.Width == tally.Width64Bit && grand != written {
		logger.Fatal("quiescent sum mismatch",
			zap.Int64("writes", written),
			zap.Int64("aggregated", grand))
	}
}

// parseDims turns "16,8" into a dimension set.
func parseDims(s string) ([]tally.Dimension, error) {
	parts := strings.Split(s, ",")
	dims := make([]tally.Dimension, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("dimension %q: %w", p, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("dimension %q: must be positive", p)
		}
		dims = append(dims, tally.Dimension{MaxNrElem: n})
	}
	return dims, nil
}

// probeIndexes enumerates every logical index tuple, sentinel slots included,
// so the final fold covers all cells a writer can have touched.
func probeIndexes(dims []tally.Dimension) [][]int64 {
	out := [][]int64{{}}
	for _, d := range dims {
		var next [][]int64
		for _, prefix := range out {
			// -1 probes the underflow slot, MaxNrElem the overflow slot.
			for i := int64(-1); i <= d.MaxNrElem; i++ {
				idx := append(append([]int64(nil), prefix...), i)
				next = append(next, idx)
			}
		}
		out = next
	}
	return out
}
