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

// wrap truncates v to the configured width and sign-extends it back to
// int64, making overflow arithmetic explicitly modular.
func (c *Counter) wrap(v int64) int64 {
	switch c.config.Width {
	case Width8Bit:
		return int64(int8(v))
	case Width16Bit:
		return int64(int16(v))
	case Width32Bit:
		return int64(int32(v))
	default:
		return v
	}
}

// addLayout applies delta to the cell at offset with an optimistic CAS retry
// loop. Under SyncSharded it also computes the rebalance move: when the
// candidate value's magnitude exceeds the global sum step, half the step is
// withheld from the local store and returned for the caller to sum into the
// global layout. The retry loop is unbounded but each attempt is O(1);
// same-shard contention is rare by construction and the global layout
// tolerates true multi-writer contention.
//
// Returns the amount which should be summed into the global layout, zero if
// none.
func (c *Counter) addLayout(lay *layout, mode SyncMode, offset, delta int64) (moveSum int64) {
	var old, cand, n int64
	step := c.globalSumStep
	for {
		moveSum = 0
		old = lay.cells.load(offset)
		cand = c.wrap(old + delta)
		n = cand
		if mode == SyncSharded {
			if cand > step {
				moveSum = step / 2
			} else if cand < -step {
				moveSum = -(step / 2)
			}
			n = c.wrap(cand - moveSum)
		}
		if lay.cells.cas(offset, old, n) {
			break
		}
	}

	// Detection runs on the pre-move candidate: the rebalance withhold can
	// place the stored value on the far side of old without any width wrap,
	// and that must not flag.
	var overflow, underflow bool
	if c.config.Width == Width64Bit {
		// At native width a wrap is visible purely as movement in the wrong
		// direction.
		if delta > 0 && cand < old {
			overflow = true
		} else if delta < 0 && cand > old {
			underflow = true
		}
	} else {
		umax := c.config.Width.unsignedMax()
		if delta > 0 && (delta >= umax || cand < old) {
			overflow = true
		} else if delta < 0 && (delta <= -umax || cand > old) {
			underflow = true
		}
	}
	if overflow {
		if lay.overflow.set(offset) {
			c.stats.flagsSet.Add(1)
		}
	} else if underflow {
		if lay.underflow.set(offset) {
			c.stats.flagsSet.Add(1)
		}
	}
	return moveSum
}
