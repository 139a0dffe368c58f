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

import "fmt"

// Dimension describes one axis of a multi-dimensional counter.
//
// Each dimension reserves two sentinel slots after its last regular index:
// slot MaxNrElem captures every access with a negative index (underflow) and
// slot MaxNrElem+1 captures every access at or beyond MaxNrElem (overflow).
// The allocated extent of a dimension is therefore MaxNrElem+2.
//
// Indexes are signed so that out-of-range values are representable before
// clamping.
type Dimension struct {
	// MaxNrElem is the number of regular, indexable elements.
	MaxNrElem int64

	// stride is the multiplication factor applied to this dimension's index
	// to account for the dimensions nested inside it. Fixed at creation.
	stride int64
}

// nrElem returns the allocated extent, including both sentinel slots.
func (d Dimension) nrElem() int64 { return d.MaxNrElem + 2 }

func (d Dimension) underflowIndex() int64 { return d.MaxNrElem }
func (d Dimension) overflowIndex() int64  { return d.MaxNrElem + 1 }

// clamp substitutes the sentinel slot for an out-of-range index.
func (d Dimension) clamp(idx int64) int64 {
	if idx < 0 {
		return d.underflowIndex()
	}
	if idx >= d.MaxNrElem {
		return d.overflowIndex()
	}
	return idx
}

// initStrides computes strides right-to-left: the innermost dimension has
// stride 1, each enclosing dimension's stride is the product of all nested
// dimensions' allocated extents.
func initStrides(dims []Dimension) {
	stride := int64(1)
	for i := len(dims) - 1; i >= 0; i-- {
		dims[i].stride = stride
		stride *= dims[i].nrElem()
	}
}

// flatten collapses a multi-dimensional logical index into a single cell
// offset, clamping each dimension's index to its sentinel slots. Out-of-range
// values are not an error; only a mismatched dimension count is.
func (c *Counter) flatten(indexes []int64) (int64, error) {
	if len(indexes) != len(c.dims) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimensionCount, len(indexes), len(c.dims))
	}
	var offset int64
	for i, d := range c.dims {
		offset += d.clamp(indexes[i]) * d.stride
	}
	return offset, nil
}
