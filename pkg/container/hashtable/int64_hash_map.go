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
	"unsafe"

	"github.com/vexdb/vex/pkg/common/mpool"
)

const (
	kInitialCellCnt = 1024

	// The table resizes once it is half full.
	kLoadFactorNumerator   = 1
	kLoadFactorDenominator = 2
)

// Int64HashMapCell maps one packed 8-byte key to a 1-based group id.
// Mapped == 0 marks an empty cell, so any key value, zero included, can
// be stored.
type Int64HashMapCell struct {
	Key    uint64
	Mapped uint64
}

// Int64HashMap is a linear-probing table for keys that pack into a
// single 8-byte word.  It is single-writer; concurrent builds use
// ConcurrentInt64HashMap instead.
type Int64HashMap struct {
	cellCnt    uint64
	elemCnt    uint64
	maxElemCnt uint64
	rawData    []byte
	cells      []Int64HashMapCell
}

func NewInt64HashMap(mp *mpool.MPool) (*Int64HashMap, error) {
	ht := &Int64HashMap{}
	if err := ht.init(mp); err != nil {
		return nil, err
	}
	return ht, nil
}

func (ht *Int64HashMap) init(mp *mpool.MPool) error {
	rawData, err := mp.Alloc(kInitialCellCnt * int(cellSize()))
	if err != nil {
		return err
	}
	ht.rawData = rawData
	ht.cells = cellSliceOf[Int64HashMapCell](rawData)
	ht.cellCnt = kInitialCellCnt
	ht.maxElemCnt = kInitialCellCnt * kLoadFactorNumerator / kLoadFactorDenominator
	return nil
}

func cellSize() uintptr {
	return unsafe.Sizeof(Int64HashMapCell{})
}

// cellSliceOf views an mpool buffer as a slice of cells.
func cellSliceOf[T any](raw []byte) []T {
	var t T
	sz := int(unsafe.Sizeof(t))
	if len(raw) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), len(raw)/sz)
}

func (ht *Int64HashMap) Free(mp *mpool.MPool) {
	mp.Free(ht.rawData)
	ht.rawData, ht.cells = nil, nil
	ht.cellCnt, ht.elemCnt, ht.maxElemCnt = 0, 0, 0
}

// Cardinality returns the number of distinct keys inserted.
func (ht *Int64HashMap) Cardinality() uint64 {
	return ht.elemCnt
}

func (ht *Int64HashMap) findCell(hash uint64, key uint64) *Int64HashMapCell {
	mask := ht.cellCnt - 1
	for idx := hash & mask; ; idx = (idx + 1) & mask {
		cell := &ht.cells[idx]
		if cell.Mapped == 0 || cell.Key == key {
			return cell
		}
	}
}

// InsertBatch assigns a group id to each of keys[:n], creating new
// groups as needed.  hashes[i] == 0 requests hashing in place; values
// receives the 1-based group ids.
func (ht *Int64HashMap) InsertBatch(n int, hashes []uint64, keys []uint64, values []uint64, mp *mpool.MPool) error {
	if err := ht.resizeOnDemand(uint64(n), mp); err != nil {
		return err
	}
	if hashes[0] == 0 {
		Int64BatchHash(keys, hashes, n)
	}
	for i := 0; i < n; i++ {
		cell := ht.findCell(hashes[i], keys[i])
		if cell.Mapped == 0 {
			ht.elemCnt++
			cell.Key = keys[i]
			cell.Mapped = ht.elemCnt
		}
		values[i] = cell.Mapped
	}
	return nil
}

// InsertBatchWithRing behaves like InsertBatch but skips rows whose
// zValues entry is zero, writing group id 0 for them.  Null-killed rows
// come through the ring.
func (ht *Int64HashMap) InsertBatchWithRing(n int, zValues []int64, hashes []uint64, keys []uint64, values []uint64, mp *mpool.MPool) error {
	if err := ht.resizeOnDemand(uint64(n), mp); err != nil {
		return err
	}
	if hashes[0] == 0 {
		Int64BatchHash(keys, hashes, n)
	}
	for i := 0; i < n; i++ {
		if zValues[i] == 0 {
			values[i] = 0
			continue
		}
		cell := ht.findCell(hashes[i], keys[i])
		if cell.Mapped == 0 {
			ht.elemCnt++
			cell.Key = keys[i]
			cell.Mapped = ht.elemCnt
		}
		values[i] = cell.Mapped
	}
	return nil
}

// FindBatch looks up keys[:n]; values[i] == 0 means absent.
func (ht *Int64HashMap) FindBatch(n int, hashes []uint64, keys []uint64, values []uint64) {
	if hashes[0] == 0 {
		Int64BatchHash(keys, hashes, n)
	}
	for i := 0; i < n; i++ {
		values[i] = ht.findCell(hashes[i], keys[i]).Mapped
	}
}

func (ht *Int64HashMap) resizeOnDemand(n uint64, mp *mpool.MPool) error {
	targetCnt := ht.elemCnt + n
	if targetCnt <= ht.maxElemCnt {
		return nil
	}
	newCellCnt := ht.cellCnt
	newMaxElemCnt := ht.maxElemCnt
	for targetCnt > newMaxElemCnt {
		newCellCnt <<= 1
		newMaxElemCnt = newCellCnt * kLoadFactorNumerator / kLoadFactorDenominator
	}

	oldCells := ht.cells
	oldData := ht.rawData
	newData, err := mp.Alloc(int(newCellCnt) * int(cellSize()))
	if err != nil {
		return err
	}
	ht.rawData = newData
	ht.cells = cellSliceOf[Int64HashMapCell](newData)
	ht.cellCnt = newCellCnt
	ht.maxElemCnt = newMaxElemCnt

	for i := range oldCells {
		cell := &oldCells[i]
		if cell.Mapped != 0 {
			newCell := ht.findCell(Int64Hash(cell.Key), cell.Key)
			*newCell = *cell
		}
	}
	mp.Free(oldData)
	return nil
}
