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

package hashmap

import (
	"github.com/vexdb/vex/pkg/common/mpool"
	"github.com/vexdb/vex/pkg/container/hashtable"
	"github.com/vexdb/vex/pkg/container/vector"
)

// StrHashMap groups rows whose serialized key exceeds 8 bytes or
// contains a varlen column.
type StrHashMap struct {
	hasNull bool
	mp      *mpool.MPool
	hashMap *hashtable.StringHashMap
}

type strHashMapIterator struct {
	mp *StrHashMap

	keys    [UnitLimit][]byte
	states  [UnitLimit][3]uint64
	zValues [UnitLimit]int64
	values  [UnitLimit]uint64
}

func NewStrHashMap(hasNull bool, mp *mpool.MPool) (*StrHashMap, error) {
	ht, err := hashtable.NewStringHashMap(mp)
	if err != nil {
		return nil, err
	}
	return &StrHashMap{hasNull: hasNull, mp: mp, hashMap: ht}, nil
}

func (m *StrHashMap) HasNulls() bool {
	return m.hasNull
}

func (m *StrHashMap) GroupCount() uint64 {
	return m.hashMap.Cardinality()
}

func (m *StrHashMap) Size() int64 {
	return int64(m.hashMap.Cardinality()) * 32
}

func (m *StrHashMap) Free() {
	m.hashMap.Free(m.mp)
}

func (m *StrHashMap) NewIterator() Iterator {
	return &strHashMapIterator{mp: m}
}

func (itr *strHashMapIterator) reset(count int) {
	for i := 0; i < count; i++ {
		itr.keys[i] = itr.keys[i][:0]
		itr.zValues[i] = 1
	}
}

func (itr *strHashMapIterator) encode(start, count int, vecs []*vector.Vector) {
	m := itr.mp
	encodeStrKeys(vecs, start, count, m.hasNull, itr.keys[:count], itr.zValues[:count])
	hashtable.BytesBatchGenHashStates(itr.keys[:count], itr.states[:count], count)
}

func (itr *strHashMapIterator) Insert(start, count int, vecs []*vector.Vector) ([]uint64, []int64, error) {
	m := itr.mp
	itr.reset(count)
	itr.encode(start, count, vecs)
	var err error
	if m.hasNull {
		err = m.hashMap.InsertStringBatch(itr.states[:count], count, itr.values[:count], m.mp)
	} else {
		err = m.hashMap.InsertStringBatchWithRing(itr.zValues[:count], itr.states[:count], count, itr.values[:count], m.mp)
	}
	if err != nil {
		return nil, nil, err
	}
	return itr.values[:count], itr.zValues[:count], nil
}

func (itr *strHashMapIterator) Find(start, count int, vecs []*vector.Vector) ([]uint64, []int64) {
	m := itr.mp
	itr.reset(count)
	itr.encode(start, count, vecs)
	m.hashMap.FindStringBatch(itr.states[:count], count, itr.values[:count])
	if !m.hasNull {
		for i := 0; i < count; i++ {
			if itr.zValues[i] == 0 {
				itr.values[i] = 0
			}
		}
	}
	return itr.values[:count], itr.zValues[:count]
}
