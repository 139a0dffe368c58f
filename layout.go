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

// cellArray is the width-polymorphic storage behind one layout. Values cross
// the interface sign-extended to int64; implementations truncate to their
// width on store. cas compares the single cell at i, not its containing word:
// a false return only means the caller must reload and retry.
type cellArray interface {
	load(i int64) int64
	cas(i int64, old, new int64) bool
	store(i int64, v int64)
}

// cells64 and cells32 map directly onto native atomic cells.

type cells64 struct{ c []atomic.Int64 }

func (a *cells64) load(i int64) int64         { return a.c[i].Load() }
func (a *cells64) cas(i, old, new int64) bool { return a.c[i].CompareAndSwap(old, new) }
func (a *cells64) store(i, v int64)           { a.c[i].Store(v) }

type cells32 struct{ c []atomic.Int32 }

func (a *cells32) load(i int64) int64         { return int64(a.c[i].Load()) }
func (a *cells32) cas(i, old, new int64) bool { return a.c[i].CompareAndSwap(int32(old), int32(new)) }
func (a *cells32) store(i, v int64)           { a.c[i].Store(int32(v)) }

// cells16 and cells8 pack sub-word cells into atomic uint32 words. A cell CAS
// is a word CAS with the other lanes preserved; a concurrent update to a
// neighboring lane fails the word CAS and the caller's retry loop rereads.

type cells16 struct{ words []atomic.Uint32 }

func (a *cells16) load(i int64) int64 {
	w := a.words[i>>1].Load()
	return int64(int16(w >> (uint(i&1) * 16)))
}

func (a *cells16) cas(i, old, new int64) bool {
	word := &a.words[i>>1]
	shift := uint(i&1) * 16
	cur := word.Load()
	if uint16(cur>>shift) != uint16(old) {
		return false
	}
	next := (cur &^ (uint32(0xffff) << shift)) | uint32(uint16(new))<<shift
	return word.CompareAndSwap(cur, next)
}

func (a *cells16) store(i, v int64) {
	word := &a.words[i>>1]
	shift := uint(i&1) * 16
	for {
		cur := word.Load()
		next := (cur &^ (uint32(0xffff) << shift)) | uint32(uint16(v))<<shift
		if word.CompareAndSwap(cur, next) {
			return
		}
	}
}

type cells8 struct{ words []atomic.Uint32 }

func (a *cells8) load(i int64) int64 {
	w := a.words[i>>2].Load()
	return int64(int8(w >> (uint(i&3) * 8)))
}

func (a *cells8) cas(i, old, new int64) bool {
	word := &a.words[i>>2]
	shift := uint(i&3) * 8
	cur := word.Load()
	if uint8(cur>>shift) != uint8(old) {
		return false
	}
	next := (cur &^ (uint32(0xff) << shift)) | uint32(uint8(new))<<shift
	return word.CompareAndSwap(cur, next)
}

func (a *cells8) store(i, v int64) {
	word := &a.words[i>>2]
	shift := uint(i&3) * 8
	for {
		cur := word.Load()
		next := (cur &^ (uint32(0xff) << shift)) | uint32(uint8(v))<<shift
		if word.CompareAndSwap(cur, next) {
			return
		}
	}
}

func newCellArray(w Width, n int64) cellArray {
	switch w {
	case Width8Bit:
		return &cells8{words: make([]atomic.Uint32, (n+3)/4)}
	case Width16Bit:
		return &cells16{words: make([]atomic.Uint32, (n+1)/2)}
	case Width32Bit:
		return &cells32{c: make([]atomic.Int32, n)}
	default:
		return &cells64{c: make([]atomic.Int64, n)}
	}
}

// bitset is a fixed-size bit array with atomic test-and-set. Bits are only
// ever set, never cleared, so a plain load suffices for test.
type bitset struct{ words []atomic.Uint64 }

func newBitset(n int64) bitset {
	return bitset{words: make([]atomic.Uint64, (n+63)/64)}
}

// set sets bit i and reports whether this call set it first; the fetch-OR
// keeps the answer exact under concurrent setters.
func (b bitset) set(i int64) bool {
	mask := uint64(1) << (uint(i) & 63)
	return b.words[i>>6].Or(mask)&mask == 0
}

func (b bitset) test(i int64) bool { return b.words[i>>6].Load()&(uint64(1)<<(uint(i)&63)) != 0 }

// layout is one storage block: the cell array plus the per-offset overflow
// and underflow flags. One layout exists per shard, plus one global.
type layout struct {
	cells     cellArray
	overflow  bitset
	underflow bitset
}

func newLayout(w Width, n int64) *layout {
	return &layout{
		cells:     newCellArray(w, n),
		overflow:  newBitset(n),
		underflow: newBitset(n),
	}
}
