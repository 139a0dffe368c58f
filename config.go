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

package tally

import (
	"fmt"
	"math"
	"runtime"

	"go.uber.org/zap"
)

// AllocMode selects how counter storage is laid out.
type AllocMode int

const (
	// AllocSharded replicates the cell array once per writer shard, plus one
	// extra block holding the global sum.
	AllocSharded AllocMode = iota
	// AllocGlobal allocates a single shared block; every writer updates it
	// directly.
	AllocGlobal
)

// SyncMode selects the update discipline applied by the engine.
type SyncMode int

const (
	// SyncSharded updates the calling context's own shard and rebalances
	// excess magnitude into the global block.
	SyncSharded SyncMode = iota
	// SyncGlobal updates a single multi-writer block with no rebalancing.
	SyncGlobal
)

// Arithmetic selects the overflow behavior of cell arithmetic.
type Arithmetic int

const (
	// ArithmeticWrapWithFlag wraps on overflow/underflow at the configured
	// width and records the event once in a per-offset flag. This is the only
	// supported mode; saturating arithmetic is intentionally not provided.
	ArithmeticWrapWithFlag Arithmetic = iota
)

// Width is the cell size in bytes.
type Width int

const (
	Width8Bit  Width = 1
	Width16Bit Width = 2
	Width32Bit Width = 4
	Width64Bit Width = 8
)

func (w Width) valid() bool {
	switch w {
	case Width8Bit, Width16Bit, Width32Bit, Width64Bit:
		return true
	}
	return false
}

// signedMax returns the largest positive value representable at width w.
func (w Width) signedMax() int64 {
	switch w {
	case Width8Bit:
		return math.MaxInt8
	case Width16Bit:
		return math.MaxInt16
	case Width32Bit:
		return math.MaxInt32
	default:
		return math.MaxInt64
	}
}

// unsignedMax returns the largest unsigned value representable at width w.
// Only meaningful for widths below 8 bytes; a delta of this magnitude or more
// wraps at least once regardless of the starting value.
func (w Width) unsignedMax() int64 {
	switch w {
	case Width8Bit:
		return math.MaxUint8
	case Width16Bit:
		return math.MaxUint16
	default:
		return math.MaxUint32
	}
}

// Config describes the immutable shape of a Counter. It is fixed at creation
// and never changes for the counter's lifetime.
type Config struct {
	Alloc      AllocMode
	Sync       SyncMode
	Arithmetic Arithmetic
	Width      Width
}

func (cfg Config) validate() error {
	if !cfg.Width.valid() {
		return fmt.Errorf("%w: unsupported width %d", ErrInvalidConfig, cfg.Width)
	}
	if cfg.Arithmetic != ArithmeticWrapWithFlag {
		return fmt.Errorf("%w: unsupported arithmetic mode %d", ErrInvalidConfig, cfg.Arithmetic)
	}
	if cfg.Alloc == AllocGlobal && cfg.Sync != SyncGlobal {
		return fmt.Errorf("%w: global-only allocation requires global synchronization", ErrInvalidConfig)
	}
	return nil
}

// defaultMaxCells caps allocated_elem so a malformed dimension set fails with
// ErrAllocation instead of exhausting memory.
const defaultMaxCells = int64(1) << 30

// Option configures optional Counter behavior at creation.
type Option func(*options)

type options struct {
	shards   int
	maxCells int64
	logger   *zap.Logger
}

func defaultOptions() options {
	return options{
		shards:   defaultShards(),
		maxCells: defaultMaxCells,
		logger:   zap.NewNop(),
	}
}

// WithShards sets the number of writer shards, sized to the maximum expected
// concurrency. The value is rounded up to a power of two and clamped to
// [1, 1024]. Ignored for AllocGlobal counters.
func WithShards(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shards = nextPow2(min(1024, n))
		}
	}
}

// WithMaxCells overrides the allocation guard on the total number of cells
// per layout.
func WithMaxCells(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxCells = n
		}
	}
}

// WithLogger attaches a logger used for caller-bug diagnostics (out-of-range
// updates are logged at most once per counter). Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// defaultShards sizes the shard count from GOMAXPROCS, clamped to [8, 64]
// like the stripe default, and rounded to a power of two so shard selection
// is a mask.
func defaultShards() int {
	p := runtime.GOMAXPROCS(0)
	return nextPow2(max(8, min(64, p)))
}

func nextPow2(x int) int {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	return x + 1
}
