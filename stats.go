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

import "sync/atomic"

// engineStats counts rare engine events. These tick only off the per-add
// fast path (rebalances, first flag sets, dropped updates), so plain atomic
// counters are cheap enough.
type engineStats struct {
	rebalances atomic.Int64
	flagsSet   atomic.Int64
	drops      atomic.Int64
}

// Stats is a snapshot of engine event counters.
type Stats struct {
	// Rebalances counts moves of magnitude from a shard into the global
	// layout.
	Rebalances int64
	// FlagsSet counts first-time overflow/underflow flag sets across all
	// layouts.
	FlagsSet int64
	// DroppedUpdates counts updates discarded for a mismatched dimension
	// count or an out-of-range offset.
	DroppedUpdates int64
}

// Stats returns a snapshot of the engine's event counters.
func (c *Counter) Stats() Stats {
	return Stats{
		Rebalances:     c.stats.rebalances.Load(),
		FlagsSet:       c.stats.flagsSet.Load(),
		DroppedUpdates: c.stats.drops.Load(),
	}
}
