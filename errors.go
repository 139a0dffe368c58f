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

import "errors"

var (
	// ErrInvalidConfig reports an invalid width/allocation/step combination
	// at creation time. The counter is not created.
	ErrInvalidConfig = errors.New("tally: invalid configuration")

	// ErrAllocation reports that the requested dimensions exceed the storage
	// guard. Nothing is retained from a failed creation.
	ErrAllocation = errors.New("tally: storage allocation failed")

	// ErrIndexOutOfRange reports a flattened offset beyond the allocated
	// element count. This is a caller bug; no state is mutated.
	ErrIndexOutOfRange = errors.New("tally: flattened index out of range")

	// ErrInvalidShard reports a shard selector outside the valid range for
	// the counter's allocation mode.
	ErrInvalidShard = errors.New("tally: invalid shard selector")

	// ErrDimensionCount reports an index slice whose length does not match
	// the counter's dimension count.
	ErrDimensionCount = errors.New("tally: wrong number of dimension indexes")
)
