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

// Prebuilt counter profiles covering the common configurations.

// NewSharded64 creates a per-shard 64-bit wrap counter with rebalancing.
func NewSharded64(dims []Dimension, globalSumStep int64, opts ...Option) (*Counter, error) {
	return New(Config{
		Alloc:      AllocSharded,
		Sync:       SyncSharded,
		Arithmetic: ArithmeticWrapWithFlag,
		Width:      Width64Bit,
	}, dims, globalSumStep, opts...)
}

// NewSharded32 creates a per-shard 32-bit wrap counter with rebalancing.
func NewSharded32(dims []Dimension, globalSumStep int64, opts ...Option) (*Counter, error) {
	return New(Config{
		Alloc:      AllocSharded,
		Sync:       SyncSharded,
		Arithmetic: ArithmeticWrapWithFlag,
		Width:      Width32Bit,
	}, dims, globalSumStep, opts...)
}

// NewGlobal32 creates a single-block 32-bit wrap counter with no sharding;
// every writer updates the global layout directly.
func NewGlobal32(dims []Dimension, opts ...Option) (*Counter, error) {
	return New(Config{
		Alloc:      AllocGlobal,
		Sync:       SyncGlobal,
		Arithmetic: ArithmeticWrapWithFlag,
		Width:      Width32Bit,
	}, dims, 0, opts...)
}
