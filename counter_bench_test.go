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

import "testing"

func BenchmarkAddSharded(b *testing.B) {
	c, err := New(shardedCfg(Width64Bit), []Dimension{{MaxNrElem: 16}}, 1<<20)
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	idx := []int64{7}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Add(idx, 1)
		}
	})
}

func BenchmarkAddGlobal(b *testing.B) {
	c, err := New(globalCfg(Width64Bit), []Dimension{{MaxNrElem: 16}}, 0)
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	idx := []int64{7}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Add(idx, 1)
		}
	})
}

func BenchmarkAddSharded8Bit(b *testing.B) {
	c, err := New(shardedCfg(Width8Bit), []Dimension{{MaxNrElem: 16}}, 64)
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	idx := []int64{7}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Add(idx, 1)
		}
	})
}

func BenchmarkAggregate(b *testing.B) {
	c, err := New(shardedCfg(Width64Bit), []Dimension{{MaxNrElem: 16}}, 1<<20, WithShards(16))
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	idx := []int64{7}
	for shard := 0; shard < 16; shard++ {
		c.AddShard(shard, idx, int64(shard))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, _, err := c.Aggregate(idx); err != nil {
			b.Fatalf("Aggregate: %v", err)
		}
	}
}
