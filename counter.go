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

// Package tally implements a sharded, lock-free, multi-dimensional counter
// engine. Many concurrent writers increment cells without locks; per-shard
// values can be read individually or folded into a global total, with
// overflow and underflow tracked per logical index.
//
// Storage is replicated once per writer shard plus one global block. Writers
// update their own shard with a CAS retry loop; when a shard-local value's
// magnitude exceeds the configured global sum step, half the step is moved
// into the global block, bounding shard-local magnitude. Aggregate is exact
// at quiescence and eventually consistent within one rebalance move while
// writers are in flight.
package tally

import (
	"fmt"
	"sync"
	_ "unsafe"

	"go.uber.org/zap"
)

//go:linkname runtime_procPin runtime.procPin
func runtime_procPin() int

//go:linkname runtime_procUnpin runtime.procUnpin
func runtime_procUnpin()

// GlobalShard selects the global layout in Read and AddShard.
const GlobalShard = -1

// Counter is the root aggregate: it owns the dimension array, the immutable
// configuration, the global layout and the shard layouts. All storage is
// allocated eagerly at creation and never resized.
//
// All mutable storage is exclusively owned by the Counter; nothing outside
// this package mutates cells or flags directly.
type Counter struct {
	config        Config
	dims          []Dimension
	allocatedElem int64
	globalSumStep int64

	global    *layout
	shards    []*layout
	shardMask int

	logger   *zap.Logger
	warnOnce sync.Once
	stats    engineStats
}

// New creates a counter with a fixed dimension set, width and global sum
// step. The dimension slice is copied; strides are computed right-to-left.
// Returns ErrInvalidConfig for an unsupported width/mode/step combination and
// ErrAllocation when the dimension product exceeds the storage guard.
func New(cfg Config, dims []Dimension, globalSumStep int64, opts ...Option) (*Counter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: at least one dimension required", ErrInvalidConfig)
	}
	if globalSumStep < 0 || globalSumStep > cfg.Width.signedMax() {
		return nil, fmt.Errorf("%w: global sum step %d does not fit width %d",
			ErrInvalidConfig, globalSumStep, cfg.Width)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Counter{
		config:        cfg,
		dims:          make([]Dimension, len(dims)),
		globalSumStep: globalSumStep,
		logger:        o.logger,
	}
	for i, d := range dims {
		if d.MaxNrElem < 0 {
			return nil, fmt.Errorf("%w: dimension %d has negative max_nr_elem", ErrInvalidConfig, i)
		}
		c.dims[i].MaxNrElem = d.MaxNrElem
	}
	initStrides(c.dims)

	// Total cell count, guarded against multiplication overflow and the
	// configured cap so creation fails cleanly instead of exhausting memory.
	nrElem := int64(1)
	for _, d := range c.dims {
		n := d.nrElem()
		if nrElem > o.maxCells/n {
			return nil, fmt.Errorf("%w: %d elements exceed cap %d", ErrAllocation, nrElem, o.maxCells)
		}
		nrElem *= n
	}
	c.allocatedElem = nrElem

	c.global = newLayout(cfg.Width, nrElem)
	if cfg.Alloc == AllocSharded {
		c.shards = make([]*layout, o.shards)
		c.shardMask = o.shards - 1
		for i := range c.shards {
			c.shards[i] = newLayout(cfg.Width, nrElem)
		}
	}
	return c, nil
}

// Destroy releases the shard layouts, the global layout and the dimension
// array. The caller must guarantee quiescence: no concurrent reader or writer
// may be active, and any access after Destroy is outside the contract.
func (c *Counter) Destroy() {
	c.shards = nil
	c.global = nil
	c.dims = nil
}

// Config returns the counter's immutable configuration.
func (c *Counter) Config() Config { return c.config }

// Shards returns the number of writer shards (zero for AllocGlobal).
func (c *Counter) Shards() int { return len(c.shards) }

// NrDimensions returns the number of dimensions.
func (c *Counter) NrDimensions() int { return len(c.dims) }

// currentShard derives a shard from the calling goroutine's P, so a writer
// normally lands on a shard it does not share. Correctness does not depend on
// this: the engine always uses CAS.
func (c *Counter) currentShard() int {
	pid := runtime_procPin()
	runtime_procUnpin()
	return pid & c.shardMask
}

// Add applies delta at the given dimension indexes. Out-of-range index values
// clamp to the dimension's sentinel slots; a mismatched dimension count drops
// the update. Add never blocks and never returns an error.
func (c *Counter) Add(indexes []int64, delta int64) {
	c.AddShard(c.currentShard(), indexes, delta)
}

// Increment is Add(indexes, 1).
func (c *Counter) Increment(indexes []int64) { c.Add(indexes, 1) }

// Decrement is Add(indexes, -1).
func (c *Counter) Decrement(indexes []int64) { c.Add(indexes, -1) }

// AddShard applies delta on an explicit shard, for callers that manage their
// own writer contexts. The shard is masked into range; for AllocGlobal
// counters it is ignored. Semantics otherwise match Add.
func (c *Counter) AddShard(shard int, indexes []int64, delta int64) {
	offset, err := c.flatten(indexes)
	if err != nil {
		c.dropUpdate(err)
		return
	}
	if offset >= c.allocatedElem {
		c.dropUpdate(ErrIndexOutOfRange)
		return
	}
	switch c.config.Alloc {
	case AllocSharded:
		lay := c.shards[shard&c.shardMask]
		move := c.addLayout(lay, c.config.Sync, offset, delta)
		if move != 0 {
			// Second, separate global add: a reader between the two stores
			// observes a total low by exactly move. Bounded, documented.
			c.addLayout(c.global, SyncGlobal, offset, move)
			c.stats.rebalances.Add(1)
		}
	case AllocGlobal:
		c.addLayout(c.global, SyncGlobal, offset, delta)
	}
}

// dropUpdate records a dropped update. Update operations are tracepoint-safe
// and never return errors; caller bugs are counted and logged once.
func (c *Counter) dropUpdate(err error) {
	c.stats.drops.Add(1)
	c.warnOnce.Do(func() {
		c.logger.Warn("dropping counter update", zap.Error(err))
	})
}

// layoutFor resolves a shard selector: GlobalShard or a shard id valid for
// the allocation mode.
func (c *Counter) layoutFor(shard int) (*layout, error) {
	switch c.config.Alloc {
	case AllocSharded:
		if shard == GlobalShard {
			return c.global, nil
		}
		if shard < 0 || shard >= len(c.shards) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidShard, shard)
		}
		return c.shards[shard], nil
	default: // AllocGlobal
		if shard != GlobalShard {
			return nil, fmt.Errorf("%w: %d (counter is global-only)", ErrInvalidShard, shard)
		}
		return c.global, nil
	}
}

// Read returns the value and overflow/underflow flags at the given indexes
// from one layout: a specific shard, or the global layout when shard is
// GlobalShard.
func (c *Counter) Read(indexes []int64, shard int) (value int64, overflow, underflow bool, err error) {
	offset, err := c.flatten(indexes)
	if err != nil {
		return 0, false, false, err
	}
	if offset >= c.allocatedElem {
		return 0, false, false, ErrIndexOutOfRange
	}
	lay, err := c.layoutFor(shard)
	if err != nil {
		return 0, false, false, err
	}
	return lay.cells.load(offset), lay.overflow.test(offset), lay.underflow.test(offset), nil
}

// Aggregate folds the global layout and every shard into a total, using the
// same wrap-defined addition and overflow detection as the update engine so
// overflow of the fold itself is surfaced, and ORs all flags encountered.
//
// The result is exact at quiescence; while writers are in flight it is
// eventually consistent within one rebalance move.
func (c *Counter) Aggregate(indexes []int64) (sum int64, overflow, underflow bool, err error) {
	v, of, uf, err := c.Read(indexes, GlobalShard)
	if err != nil {
		return 0, false, false, err
	}
	sum, overflow, underflow = v, of, uf

	if c.config.Alloc == AllocSharded {
		for shard := range c.shards {
			v, of, uf, err = c.Read(indexes, shard)
			if err != nil {
				return 0, false, false, err
			}
			overflow = overflow || of
			underflow = underflow || uf
			old := sum
			// Overflow is defined on unsigned types.
			sum = int64(uint64(old) + uint64(v))
			if v > 0 && sum < old {
				overflow = true
			} else if v < 0 && sum > old {
				underflow = true
			}
		}
	}
	return sum, overflow, underflow, nil
}

// Clear atomically zeroes the cell at the given indexes in the global layout
// and in every shard. Overflow/underflow flags are monotonic and are left
// set. Clears racing concurrent adds zero each layout independently.
func (c *Counter) Clear(indexes []int64) error {
	offset, err := c.flatten(indexes)
	if err != nil {
		return err
	}
	if offset >= c.allocatedElem {
		return ErrIndexOutOfRange
	}
	c.global.cells.store(offset, 0)
	for _, lay := range c.shards {
		lay.cells.store(offset, 0)
	}
	return nil
}
