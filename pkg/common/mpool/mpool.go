// Copyright 2023 The Vex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mpool implements the memory pool all vector and hash table
// storage is allocated from.  The pool does byte-level accounting with a
// hard cap; every Alloc must be paired with a Free or returned through a
// growing Grow call.
package mpool

import (
	"sync/atomic"

	"github.com/vexdb/vex/pkg/common/moerr"
)

// NoCap means the pool has no enforced limit.
const NoCap int64 = 0

// Allocations are rounded up to the next multiple of 8 so typed
// reinterpretation of the buffer stays aligned.
const kAlignment = 8

type MPool struct {
	name string
	cap  int64

	currNB atomic.Int64
	highNB atomic.Int64

	allocs atomic.Int64
	frees  atomic.Int64
}

func New(name string, cap int64) (*MPool, error) {
	if cap < 0 {
		return nil, moerr.NewInvalidArgNoCtx("mpool cap", cap)
	}
	return &MPool{name: name, cap: cap}, nil
}

// MustNewZero returns an uncapped pool, panicking on failure.  Used by
// tests and by callers that do their own budget enforcement.
func MustNewZero() *MPool {
	mp, err := New("", NoCap)
	if err != nil {
		panic(err)
	}
	return mp
}

func (mp *MPool) Name() string {
	return mp.name
}

func (mp *MPool) Cap() int64 {
	return mp.cap
}

// CurrNB returns the number of bytes currently accounted to the pool.
func (mp *MPool) CurrNB() int64 {
	return mp.currNB.Load()
}

// HighWaterMark returns the peak of CurrNB over the pool's lifetime.
func (mp *MPool) HighWaterMark() int64 {
	return mp.highNB.Load()
}

func roundUp(sz int) int {
	return (sz + kAlignment - 1) &^ (kAlignment - 1)
}

func (mp *MPool) charge(sz int64) error {
	nb := mp.currNB.Add(sz)
	if mp.cap != NoCap && nb > mp.cap {
		mp.currNB.Add(-sz)
		return moerr.NewOOMNoCtx()
	}
	for {
		high := mp.highNB.Load()
		if nb <= high || mp.highNB.CompareAndSwap(high, nb) {
			return nil
		}
	}
}

// Alloc returns a zeroed buffer of exactly sz bytes.  The capacity may
// be larger than sz due to alignment.
func (mp *MPool) Alloc(sz int) ([]byte, error) {
	if sz < 0 {
		return nil, moerr.NewInvalidArgNoCtx("mpool alloc size", sz)
	}
	if sz == 0 {
		return nil, nil
	}
	rsz := roundUp(sz)
	if err := mp.charge(int64(rsz)); err != nil {
		return nil, err
	}
	mp.allocs.Add(1)
	return make([]byte, sz, rsz), nil
}

// Free releases bs back to the pool.  Freeing nil is a no-op.
func (mp *MPool) Free(bs []byte) {
	if bs == nil {
		return
	}
	mp.frees.Add(1)
	mp.currNB.Add(-int64(roundUp(cap(bs))))
}

// Grow reallocates old to hold at least sz bytes, preserving content.
// old is released; the returned buffer has length sz.
func (mp *MPool) Grow(old []byte, sz int) ([]byte, error) {
	if sz < len(old) {
		return nil, moerr.NewInvalidArgNoCtx("mpool grow size", sz)
	}
	if sz <= cap(old) {
		return old[:sz], nil
	}
	// grow by doubling to amortize repeated appends
	newCap := cap(old) * 2
	if newCap < sz {
		newCap = sz
	}
	bs, err := mp.Alloc(newCap)
	if err != nil {
		return nil, err
	}
	copy(bs, old)
	mp.Free(old)
	return bs[:sz], nil
}

// Report returns a one-line usage summary for logging.
func (mp *MPool) Report() (curr, high, allocs, frees int64) {
	return mp.currNB.Load(), mp.highNB.Load(), mp.allocs.Load(), mp.frees.Load()
}
