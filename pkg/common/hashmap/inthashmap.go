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

// IntHashMap groups rows whose serialized key packs into 8 bytes.
type IntHashMap struct {
	hasNull bool
	mp      *mpool.MPool
	hashMap *hashtable.Int64HashMap
}

type intHashMapIterator struct {
	mp *IntHashMap

	keys    [UnitLimit]uint64
	keyOffs [UnitLimit]uint32
	hashes  [UnitLimit]uint64
	zValues [UnitLimit]int64
	values  [UnitLimit]uint64
}

func NewIntHashMap(hasNull bool, mp *mpool.MPool) (*IntHashMap, error) {
	ht, err := hashtable.NewInt64HashMap(mp)
	if err != nil {
		return nil, err
	}
	return &IntHashMap{hasNull: hasNull, mp: mp, hashMap: ht}, nil
}

func (m *IntHashMap) HasNulls() bool {
	return m.hasNull
}

func (m *IntHashMap) GroupCount() uint64 {
	return m.hashMap.Cardinality()
}

func (m *IntHashMap) Size() int64 {
	return int64(m.hashMap.Cardinality()) * 16
}

func (m *IntHashMap) Free() {
	m.hashMap.Free(m.mp)
}

func (m *IntHashMap) NewIterator() Iterator {
	return &intHashMapIterator{mp: m}
}

func (itr *intHashMapIterator) reset(count int) {
	for i := 0; i < count; i++ {
		itr.keys[i] = 0
		itr.keyOffs[i] = 0
		itr.hashes[i] = 0
		itr.zValues[i] = 1
	}
}

func (itr *intHashMapIterator) Insert(start, count int, vecs []*vector.Vector) ([]uint64, []int64, error) {
	m := itr.mp
	itr.reset(count)
	encodePackedKeys(vecs, start, count, m.hasNull, itr.keys[:count], itr.keyOffs[:count], itr.zValues[:count])
	var err error
	if m.hasNull {
		err = m.hashMap.InsertBatch(count, itr.hashes[:count], itr.keys[:count], itr.values[:count], m.mp)
	} else {
		err = m.hashMap.InsertBatchWithRing(count, itr.zValues[:count], itr.hashes[:count], itr.keys[:count], itr.values[:count], m.mp)
	}
	if err != nil {
		return nil, nil, err
	}
	return itr.values[:count], itr.zValues[:count], nil
}

func (itr *intHashMapIterator) Find(start, count int, vecs []*vector.Vector) ([]uint64, []int64) {
	m := itr.mp
	itr.reset(count)
	encodePackedKeys(vecs, start, count, m.hasNull, itr.keys[:count], itr.keyOffs[:count], itr.zValues[:count])
	m.hashMap.FindBatch(count, itr.hashes[:count], itr.keys[:count], itr.values[:count])
	if !m.hasNull {
		for i := 0; i < count; i++ {
			if itr.zValues[i] == 0 {
				itr.values[i] = 0
			}
		}
	}
	return itr.values[:count], itr.zValues[:count]
}
