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
	"errors"
	"testing"
)

func TestInitStrides(t *testing.T) {
	// Innermost stride is 1; each enclosing stride is the product of the
	// nested dimensions' (max_nr_elem + 2) extents.
	dims := []Dimension{{MaxNrElem: 4}, {MaxNrElem: 3}, {MaxNrElem: 2}}
	initStrides(dims)

	if got := dims[2].stride; got != 1 {
		t.Errorf("innermost stride = %d, want 1", got)
	}
	if got := dims[1].stride; got != 4 { // (2+2)
		t.Errorf("middle stride = %d, want 4", got)
	}
	if got := dims[0].stride; got != 20 { // (3+2)*(2+2)
		t.Errorf("outer stride = %d, want 20", got)
	}
}

func TestFlattenClamping(t *testing.T) {
	c, err := NewSharded64([]Dimension{{MaxNrElem: 4}}, 0)
	if err != nil {
		t.Fatalf("NewSharded64: %v", err)
	}
	defer c.Destroy()

	testCases := []struct {
		name       string
		index      int64
		wantOffset int64
	}{
		{"InRangeLow", 0, 0},
		{"InRangeHigh", 3, 3},
		{"UnderflowByOne", -1, 4},
		{"UnderflowLarge", -1000, 4},
		{"OverflowAtMax", 4, 5},
		{"OverflowLarge", 999, 5},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.flatten([]int64{tc.index})
			if err != nil {
				t.Fatalf("flatten(%d): %v", tc.index, err)
			}
			if got != tc.wantOffset {
				t.Errorf("flatten(%d) = %d, want %d", tc.index, got, tc.wantOffset)
			}
		})
	}
}

func TestFlattenMultiDimensional(t *testing.T) {
	c, err := NewSharded64([]Dimension{{MaxNrElem: 3}, {MaxNrElem: 2}}, 0)
	if err != nil {
		t.Fatalf("NewSharded64: %v", err)
	}
	defer c.Destroy()

	// Inner extent is 4, so offset = outer*4 + inner.
	got, err := c.flatten([]int64{2, 1})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if got != 9 {
		t.Errorf("flatten([2 1]) = %d, want 9", got)
	}

	// Each dimension clamps independently.
	got, err = c.flatten([]int64{-1, 50})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if want := int64(3*4 + 3); got != want {
		t.Errorf("flatten([-1 50]) = %d, want %d", got, want)
	}
}

func TestFlattenDimensionCount(t *testing.T) {
	c, err := NewSharded64([]Dimension{{MaxNrElem: 4}, {MaxNrElem: 4}}, 0)
	if err != nil {
		t.Fatalf("NewSharded64: %v", err)
	}
	defer c.Destroy()

	if _, err := c.flatten([]int64{1}); !errors.Is(err, ErrDimensionCount) {
		t.Errorf("flatten with 1 index: err = %v, want ErrDimensionCount", err)
	}
	if _, err := c.flatten([]int64{1, 2, 3}); !errors.Is(err, ErrDimensionCount) {
		t.Errorf("flatten with 3 indexes: err = %v, want ErrDimensionCount", err)
	}
}

func TestSentinelSlotsCollapse(t *testing.T) {
	// All underflowing indexes of a dimension land on the identical slot, and
	// likewise for overflowing ones, regardless of magnitude.
	c, err := NewSharded64([]Dimension{{MaxNrElem: 4}}, 0)
	if err != nil {
		t.Fatalf("NewSharded64: %v", err)
	}
	defer c.Destroy()

	c.AddShard(0, []int64{-1}, 1)
	c.AddShard(0, []int64{-1000}, 1)
	c.AddShard(0, []int64{4}, 1)
	c.AddShard(0, []int64{999}, 1)

	under, _, _, err := c.Read([]int64{-7}, 0)
	if err != nil {
		t.Fatalf("Read underflow slot: %v", err)
	}
	if under != 2 {
		t.Errorf("underflow slot = %d, want 2", under)
	}
	over, _, _, err := c.Read([]int64{12345}, 0)
	if err != nil {
		t.Fatalf("Read overflow slot: %v", err)
	}
	if over != 2 {
		t.Errorf("overflow slot = %d, want 2", over)
	}
}
