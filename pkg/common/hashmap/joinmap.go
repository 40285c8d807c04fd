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
	"sync/atomic"

	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/common/mpool"
	"github.com/vexdb/vex/pkg/container/hashtable"
	"github.com/vexdb/vex/pkg/container/types"
	"github.com/vexdb/vex/pkg/container/vector"
)

// JoinMap is the build side of a hash join: a fixed-capacity table
// mapping key to group id, plus per-group chains of build row numbers
// so a probe hit yields every matching build row.
//
// The table accepts parallel writers during the build phase; the row
// chains are assembled afterwards by a single FinishBuild call.  After
// FinishBuild the map is read-only and may be probed by any number of
// goroutines, each with its own iterator.
type JoinMap struct {
	refCnt  int64
	hasNull bool
	useInt  bool
	rowCnt  int64
	mp      *mpool.MPool

	intMap *hashtable.ConcurrentInt64HashMap
	strMap *hashtable.ConcurrentStringHashMap

	// multiSels[gid-1] lists the build rows of group gid in build
	// order.
	multiSels [][]int64
}

// NewJoinMap sizes a join map for rows build rows keyed by the given
// column types.  hasNull selects whether null keys match each other.
func NewJoinMap(rows int, keyTypes []types.Type, hasNull bool, mp *mpool.MPool) (*JoinMap, error) {
	if len(keyTypes) == 0 {
		return nil, moerr.NewInvalidArgNoCtx("join key count", 0)
	}
	jm := &JoinMap{
		refCnt:  1,
		hasNull: hasNull,
		useInt:  UseIntMap(keyTypes, hasNull),
		mp:      mp,
	}
	var err error
	if jm.useInt {
		jm.intMap, err = hashtable.NewConcurrentInt64HashMap(rows, mp)
	} else {
		jm.strMap, err = hashtable.NewConcurrentStringHashMap(rows, mp)
	}
	if err != nil {
		return nil, err
	}
	return jm, nil
}

func (jm *JoinMap) HasNulls() bool {
	return jm.hasNull
}

func (jm *JoinMap) GroupCount() uint64 {
	if jm.useInt {
		return jm.intMap.Cardinality()
	}
	return jm.strMap.Cardinality()
}

// RowCount returns the number of build rows, set by FinishBuild.
func (jm *JoinMap) RowCount() int64 {
	return jm.rowCnt
}

func (jm *JoinMap) Size() int64 {
	sz := int64(0)
	for _, sels := range jm.multiSels {
		sz += int64(len(sels)) * 8
	}
	if jm.useInt {
		sz += int64(jm.intMap.Cardinality()) * 24
	} else {
		sz += int64(jm.strMap.Cardinality()) * 40
	}
	return sz
}

// Sels returns the build rows of group gid, or nil for gid 0.
func (jm *JoinMap) Sels(gid uint64) []int64 {
	if gid == 0 {
		return nil
	}
	return jm.multiSels[gid-1]
}

// FinishBuild records the group id of every build row (0 for rows
// killed by a null key) and assembles the per-group row chains.
// Must be called once, after all writers have finished.
func (jm *JoinMap) FinishBuild(values []uint64) {
	jm.rowCnt = int64(len(values))
	jm.multiSels = make([][]int64, jm.GroupCount())
	for row, v := range values {
		if v == 0 {
			continue
		}
		jm.multiSels[v-1] = append(jm.multiSels[v-1], int64(row))
	}
}

func (jm *JoinMap) IncRef(n int64) {
	atomic.AddInt64(&jm.refCnt, n)
}

func (jm *JoinMap) Free() {
	if atomic.AddInt64(&jm.refCnt, -1) > 0 {
		return
	}
	if jm.intMap != nil {
		jm.intMap.Free(jm.mp)
	}
	if jm.strMap != nil {
		jm.strMap.Free(jm.mp)
	}
	jm.multiSels = nil
}

// JoinMapIterator serializes key rows and runs them through the
// concurrent table.  One iterator per goroutine.
type JoinMapIterator struct {
	jm *JoinMap

	keys    [UnitLimit]uint64
	keyOffs [UnitLimit]uint32
	strKeys [UnitLimit][]byte
	states  [UnitLimit][3]uint64
	zValues [UnitLimit]int64
	values  [UnitLimit]uint64
}

func (jm *JoinMap) NewIterator() *JoinMapIterator {
	return &JoinMapIterator{jm: jm}
}

func (itr *JoinMapIterator) reset(count int) {
	for i := 0; i < count; i++ {
		itr.keys[i] = 0
		itr.keyOffs[i] = 0
		itr.strKeys[i] = itr.strKeys[i][:0]
		itr.zValues[i] = 1
	}
}

// Insert maps rows [start, start+count) to group ids, creating groups
// for unseen keys.  Safe for concurrent use across iterators.
func (itr *JoinMapIterator) Insert(start, count int, vecs []*vector.Vector) ([]uint64, error) {
	jm := itr.jm
	itr.reset(count)
	if jm.useInt {
		encodePackedKeys(vecs, start, count, jm.hasNull, itr.keys[:count], itr.keyOffs[:count], itr.zValues[:count])
		for i := 0; i < count; i++ {
			if itr.zValues[i] == 0 {
				itr.values[i] = 0
				continue
			}
			v, err := jm.intMap.Insert(hashtable.Int64Hash(itr.keys[i]), itr.keys[i])
			if err != nil {
				return nil, err
			}
			itr.values[i] = v
		}
		return itr.values[:count], nil
	}
	encodeStrKeys(vecs, start, count, jm.hasNull, itr.strKeys[:count], itr.zValues[:count])
	for i := 0; i < count; i++ {
		if itr.zValues[i] == 0 {
			itr.values[i] = 0
			continue
		}
		v, err := jm.strMap.Insert(hashtable.BytesHashState(itr.strKeys[i]))
		if err != nil {
			return nil, err
		}
		itr.values[i] = v
	}
	return itr.values[:count], nil
}

// Find maps rows [start, start+count) to group ids without creating
// groups; vs[i] == 0 means no build row matches.
func (itr *JoinMapIterator) Find(start, count int, vecs []*vector.Vector) []uint64 {
	jm := itr.jm
	itr.reset(count)
	if jm.useInt {
		encodePackedKeys(vecs, start, count, jm.hasNull, itr.keys[:count], itr.keyOffs[:count], itr.zValues[:count])
		for i := 0; i < count; i++ {
			if itr.zValues[i] == 0 {
				itr.values[i] = 0
				continue
			}
			itr.values[i] = jm.intMap.Find(hashtable.Int64Hash(itr.keys[i]), itr.keys[i])
		}
		return itr.values[:count]
	}
	encodeStrKeys(vecs, start, count, jm.hasNull, itr.strKeys[:count], itr.zValues[:count])
	for i := 0; i < count; i++ {
		if itr.zValues[i] == 0 {
			itr.values[i] = 0
			continue
		}
		itr.values[i] = jm.strMap.Find(hashtable.BytesHashState(itr.strKeys[i]))
	}
	return itr.values[:count]
}
