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

package export

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tally"
)

// Probe names a counter and the index tuples to snapshot from it.
type Probe struct {
	Session string
	Counter *tally.Counter
	Indexes [][]int64
}

// Exporter periodically aggregates the probed indexes and writes the
// readings to a sink. Snapshots taken while writers are in flight are
// eventually consistent within one rebalance move; that is inherent to the
// engine and acceptable for export.
type Exporter struct {
	sink     Sink
	probes   []Probe
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// NewExporter configures an exporter over a fixed probe set. A nil logger
// defaults to a no-op; a non-positive interval defaults to one second.
func NewExporter(sink Sink, interval time.Duration, logger *zap.Logger, probes ...Probe) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Exporter{
		sink:     sink,
		probes:   probes,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background snapshot loop.
func (e *Exporter) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := e.Flush(context.Background()); err != nil {
					e.logger.Warn("snapshot flush failed", zap.Error(err))
				}
			case <-e.stopChan:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight flush. Safe to call more
// than once.
func (e *Exporter) Stop() {
	if !atomic.CompareAndSwapUint32(&e.stopped, 0, 1) {
		return
	}
	close(e.stopChan)
	e.wg.Wait()
}

// Flush snapshots every probed index once. The first error aborts the pass.
func (e *Exporter) Flush(ctx context.Context) error {
	for _, p := range e.probes {
		for _, idx := range p.Indexes {
			sum, of, uf, err := p.Counter.Aggregate(idx)
			if err != nil {
				return err
			}
			rec := Record{Session: p.Session, Indexes: idx, Sum: sum, Overflow: of, Underflow: uf}
			if err := e.sink.Write(ctx, rec); err != nil {
				return err
			}
		}
	}
	return nil
}
