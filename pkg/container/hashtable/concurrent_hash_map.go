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

package hashtable

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/common/mpool"
)

// Cell publication protocol.  A writer claims an empty cell by moving
// its status from empty to claimed, fills the key and group id, then
// publishes.  Readers that observe a claimed cell spin until it is
// published before comparing keys.
const (
	cellEmpty uint64 = iota
	cellClaimed
	cellPublished
)

// The concurrent tables never resize.  Capacity is fixed at build time
// to the next power of two holding all rows at or below half load, so a
// full wrap of the probe ring means the caller lied about row count.
func concurrentCellCnt(rows int) uint64 {
	cnt := uint64(kInitialCellCnt)
	for cnt < 2*uint64(rows) {
		cnt <<= 1
	}
	return cnt
}

type concurrentInt64Cell struct {
	status uint64
	key    uint64
	mapped uint64
}

// ConcurrentInt64HashMap is a fixed-capacity insert-only table safe for
// parallel writers.  Group ids are dense and 1-based; the first writer
// to claim a key's cell assigns its id.
type ConcurrentInt64HashMap struct {
	cellCnt    uint64
	groupCount uint64
	rawData    []byte
	cells      []concurrentInt64Cell
}

func NewConcurrentInt64HashMap(rows int, mp *mpool.MPool) (*ConcurrentInt64HashMap, error) {
	cellCnt := concurrentCellCnt(rows)
	rawData, err := mp.Alloc(int(cellCnt) * int(unsafe.Sizeof(concurrentInt64Cell{})))
	if err != nil {
		return nil, err
	}
	return &ConcurrentInt64HashMap{
		cellCnt: cellCnt,
		rawData: rawData,
		cells:   cellSliceOf[concurrentInt64Cell](rawData),
	}, nil
}

func (ht *ConcurrentInt64HashMap) Free(mp *mpool.MPool) {
	mp.Free(ht.rawData)
	ht.rawData, ht.cells = nil, nil
}

// Cardinality returns the number of groups created so far.  Only exact
// after all writers have finished.
func (ht *ConcurrentInt64HashMap) Cardinality() uint64 {
	return atomic.LoadUint64(&ht.groupCount)
}

// Insert returns the group id for key, creating a group if the key is
// new.  Safe to call from multiple goroutines.
func (ht *ConcurrentInt64HashMap) Insert(hash uint64, key uint64) (uint64, error) {
	mask := ht.cellCnt - 1
	idx := hash & mask
	for probe := uint64(0); probe < ht.cellCnt; probe++ {
		cell := &ht.cells[idx]
		if atomic.LoadUint64(&cell.status) == cellEmpty &&
			atomic.CompareAndSwapUint64(&cell.status, cellEmpty, cellClaimed) {
			cell.key = key
			cell.mapped = atomic.AddUint64(&ht.groupCount, 1)
			atomic.StoreUint64(&cell.status, cellPublished)
			return cell.mapped, nil
		}
		for atomic.LoadUint64(&cell.status) != cellPublished {
			runtime.Gosched()
		}
		if cell.key == key {
			return cell.mapped, nil
		}
		idx = (idx + 1) & mask
	}
	return 0, moerr.NewInternalErrorNoCtx("concurrent hash table is full")
}

// Find returns the group id for key, or 0 if absent.  Must not run
// concurrently with Insert of the same key set unless the caller
// tolerates missing in-flight groups.
func (ht *ConcurrentInt64HashMap) Find(hash uint64, key uint64) uint64 {
	mask := ht.cellCnt - 1
	idx := hash & mask
	for probe := uint64(0); probe < ht.cellCnt; probe++ {
		cell := &ht.cells[idx]
		status := atomic.LoadUint64(&cell.status)
		if status == cellEmpty {
			return 0
		}
		for status != cellPublished {
			runtime.Gosched()
			status = atomic.LoadUint64(&cell.status)
		}
		if cell.key == key {
			return cell.mapped
		}
		idx = (idx + 1) & mask
	}
	return 0
}

type concurrentStrCell struct {
	status uint64
	state  [3]uint64
	mapped uint64
}

// ConcurrentStringHashMap is the wide-key counterpart of
// ConcurrentInt64HashMap, keyed by the 192-bit hash state.
type ConcurrentStringHashMap struct {
	cellCnt    uint64
	groupCount uint64
	rawData    []byte
	cells      []concurrentStrCell
}

func NewConcurrentStringHashMap(rows int, mp *mpool.MPool) (*ConcurrentStringHashMap, error) {
	cellCnt := concurrentCellCnt(rows)
	rawData, err := mp.Alloc(int(cellCnt) * int(unsafe.Sizeof(concurrentStrCell{})))
	if err != nil {
		return nil, err
	}
	return &ConcurrentStringHashMap{
		cellCnt: cellCnt,
		rawData: rawData,
		cells:   cellSliceOf[concurrentStrCell](rawData),
	}, nil
}

func (ht *ConcurrentStringHashMap) Free(mp *mpool.MPool) {
	mp.Free(ht.rawData)
	ht.rawData, ht.cells = nil, nil
}

func (ht *ConcurrentStringHashMap) Cardinality() uint64 {
	return atomic.LoadUint64(&ht.groupCount)
}

func (ht *ConcurrentStringHashMap) Insert(state [3]uint64) (uint64, error) {
	mask := ht.cellCnt - 1
	idx := state[0] & mask
	for probe := uint64(0); probe < ht.cellCnt; probe++ {
		cell := &ht.cells[idx]
		if atomic.LoadUint64(&cell.status) == cellEmpty &&
			atomic.CompareAndSwapUint64(&cell.status, cellEmpty, cellClaimed) {
			cell.state = state
			cell.mapped = atomic.AddUint64(&ht.groupCount, 1)
			atomic.StoreUint64(&cell.status, cellPublished)
			return cell.mapped, nil
		}
		for atomic.LoadUint64(&cell.status) != cellPublished {
			runtime.Gosched()
		}
		if cell.state == state {
			return cell.mapped, nil
		}
		idx = (idx + 1) & mask
	}
	return 0, moerr.NewInternalErrorNoCtx("concurrent hash table is full")
}

func (ht *ConcurrentStringHashMap) Find(state [3]uint64) uint64 {
	mask := ht.cellCnt - 1
	idx := state[0] & mask
	for probe := uint64(0); probe < ht.cellCnt; probe++ {
		cell := &ht.cells[idx]
		status := atomic.LoadUint64(&cell.status)
		if status == cellEmpty {
			return 0
		}
		for status != cellPublished {
			runtime.Gosched()
			status = atomic.LoadUint64(&cell.status)
		}
		if cell.state == state {
			return cell.mapped
		}
		idx = (idx + 1) & mask
	}
	return 0
}
