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

// StringHashMapCell maps a 192-bit key hash state to a 1-based group
// id.  Mapped == 0 marks an empty cell; the all-zero state is not
// produced by the hash, so emptiness never aliases a real key.
type StringHashMapCell struct {
	HashState [3]uint64
	Mapped    uint64
}

// StringHashMap is a linear-probing table for keys wider than 8 bytes.
// Keys are condensed to their hash state before insertion.
type StringHashMap struct {
	cellCnt    uint64
	elemCnt    uint64
	maxElemCnt uint64
	rawData    []byte
	cells      []StringHashMapCell
}

func NewStringHashMap(mp *mpool.MPool) (*StringHashMap, error) {
	ht := &StringHashMap{}
	rawData, err := mp.Alloc(kInitialCellCnt * int(unsafe.Sizeof(StringHashMapCell{})))
	if err != nil {
		return nil, err
	}
	ht.rawData = rawData
	ht.cells = cellSliceOf[StringHashMapCell](rawData)
	ht.cellCnt = kInitialCellCnt
	ht.maxElemCnt = kInitialCellCnt * kLoadFactorNumerator / kLoadFactorDenominator
	return ht, nil
}

func (ht *StringHashMap) Free(mp *mpool.MPool) {
	mp.Free(ht.rawData)
	ht.rawData, ht.cells = nil, nil
	ht.cellCnt, ht.elemCnt, ht.maxElemCnt = 0, 0, 0
}

func (ht *StringHashMap) Cardinality() uint64 {
	return ht.elemCnt
}

func (ht *StringHashMap) findCell(state [3]uint64) *StringHashMapCell {
	mask := ht.cellCnt - 1
	for idx := state[0] & mask; ; idx = (idx + 1) & mask {
		cell := &ht.cells[idx]
		if cell.Mapped == 0 || cell.HashState == state {
			return cell
		}
	}
}

// InsertStringBatch assigns group ids to states[:n]; values receives
// the 1-based ids.
func (ht *StringHashMap) InsertStringBatch(states [][3]uint64, n int, values []uint64, mp *mpool.MPool) error {
	if err := ht.resizeOnDemand(uint64(n), mp); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		cell := ht.findCell(states[i])
		if cell.Mapped == 0 {
			ht.elemCnt++
			cell.HashState = states[i]
			cell.Mapped = ht.elemCnt
		}
		values[i] = cell.Mapped
	}
	return nil
}

// InsertStringBatchWithRing skips rows whose zValues entry is zero,
// writing group id 0 for them.
func (ht *StringHashMap) InsertStringBatchWithRing(zValues []int64, states [][3]uint64, n int, values []uint64, mp *mpool.MPool) error {
	if err := ht.resizeOnDemand(uint64(n), mp); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if zValues[i] == 0 {
			values[i] = 0
			continue
		}
		cell := ht.findCell(states[i])
		if cell.Mapped == 0 {
			ht.elemCnt++
			cell.HashState = states[i]
			cell.Mapped = ht.elemCnt
		}
		values[i] = cell.Mapped
	}
	return nil
}

// FindStringBatch looks up states[:n]; values[i] == 0 means absent.
func (ht *StringHashMap) FindStringBatch(states [][3]uint64, n int, values []uint64) {
	for i := 0; i < n; i++ {
		values[i] = ht.findCell(states[i]).Mapped
	}
}

func (ht *StringHashMap) resizeOnDemand(n uint64, mp *mpool.MPool) error {
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
	newData, err := mp.Alloc(int(newCellCnt) * int(unsafe.Sizeof(StringHashMapCell{})))
	if err != nil {
		return err
	}
	ht.rawData = newData
	ht.cells = cellSliceOf[StringHashMapCell](newData)
	ht.cellCnt = newCellCnt
	ht.maxElemCnt = newMaxElemCnt

	for i := range oldCells {
		cell := &oldCells[i]
		if cell.Mapped != 0 {
			*ht.findCell(cell.HashState) = *cell
		}
	}
	mp.Free(oldData)
	return nil
}
