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

// Package group implements hash aggregation: one output row per
// distinct key combination, one output column per aggregation request.
package group

import (
	"time"

	"github.com/vexdb/vex/pkg/common/hashmap"
	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/common/mpool"
	"github.com/vexdb/vex/pkg/container/batch"
	"github.com/vexdb/vex/pkg/container/types"
	"github.com/vexdb/vex/pkg/container/vector"
	"github.com/vexdb/vex/pkg/logutil"
	"github.com/vexdb/vex/pkg/perfcounter"
	"github.com/vexdb/vex/pkg/sql/colexec/agg"
	"github.com/vexdb/vex/pkg/vm/process"
)

const parallelThreshold = 8192

// Request asks for one aggregate over one value column.
type Request struct {
	Col int32
	Op  agg.Op
}

// Group runs hash aggregation over one key schema.
type Group struct {
	proc           *process.Process
	keyCols        []int32
	reqs           []Request
	ignoreNullKeys bool
	spill          *SpillManager
}

// New prepares an aggregation over the given key columns.  With
// ignoreNullKeys, rows holding a null key column are dropped; without
// it, null keys group together.
func New(proc *process.Process, keyCols []int32, reqs []Request, ignoreNullKeys bool) *Group {
	return &Group{
		proc:           proc,
		keyCols:        keyCols,
		reqs:           reqs,
		ignoreNullKeys: ignoreNullKeys,
	}
}

// SetSpill bounds in-memory aggregation state; partial states above
// the limit go to disk and merge back at the end.
func (g *Group) SetSpill(sm *SpillManager) {
	g.spill = sm
}

// Aggregate is the one-shot form of Group.Aggregate.
func Aggregate(proc *process.Process, bat *batch.Batch, keyCols []int32, reqs []Request, ignoreNullKeys bool) (*batch.Batch, []*vector.Vector, error) {
	return New(proc, keyCols, reqs, ignoreNullKeys).Aggregate(bat)
}

// Aggregate groups bat and returns the distinct key batch plus one
// result vector per request, aligned with the key batch rows.  The
// caller frees both.
func (g *Group) Aggregate(bat *batch.Batch) (*batch.Batch, []*vector.Vector, error) {
	keyVecs, keyTypes, valueVecs, valueTypes, err := g.resolve(bat)
	if err != nil {
		return nil, nil, err
	}
	rows := bat.RowCount()
	start := time.Now()
	mp := g.proc.Mp()

	st, err := g.newState(keyTypes, valueTypes)
	if err != nil {
		return nil, nil, err
	}

	if g.spill == nil && g.proc.Parallelism() > 1 && rows >= parallelThreshold {
		err = g.fillParallel(st, keyVecs, keyTypes, valueTypes, valueVecs, rows)
	} else {
		err = g.fillRange(st, keyVecs, valueVecs, 0, rows, g.spill != nil)
	}
	if err != nil {
		st.free(mp)
		return nil, nil, err
	}

	if g.spill != nil && g.spill.Count() > 0 {
		st, err = g.mergeSpilled(st, keyTypes, valueTypes)
		if err != nil {
			return nil, nil, err
		}
	}

	keyBat, outs, err := st.finalize(mp, bat, g.keyCols)
	if err != nil {
		st.free(mp)
		return nil, nil, err
	}
	perfcounter.GroupsCreated.Add(float64(keyBat.RowCount()))
	logutil.Debugf("group: %d rows into %d groups in %s",
		rows, keyBat.RowCount(), time.Since(start))
	return keyBat, outs, nil
}

func (g *Group) resolve(bat *batch.Batch) ([]*vector.Vector, []types.Type, []*vector.Vector, []types.Type, error) {
	if len(g.keyCols) == 0 {
		return nil, nil, nil, nil, moerr.NewInvalidArgNoCtx("group key count", 0)
	}
	if err := bat.Validate(); err != nil {
		return nil, nil, nil, nil, err
	}
	keyVecs := make([]*vector.Vector, len(g.keyCols))
	keyTypes := make([]types.Type, len(g.keyCols))
	for i, col := range g.keyCols {
		if col < 0 || int(col) >= bat.VectorCount() {
			return nil, nil, nil, nil, moerr.NewInvalidArgNoCtx("group key column", col)
		}
		keyVecs[i] = bat.GetVector(col)
		keyTypes[i] = *keyVecs[i].GetType()
	}
	valueVecs := make([]*vector.Vector, len(g.reqs))
	valueTypes := make([]types.Type, len(g.reqs))
	for i, req := range g.reqs {
		if req.Col < 0 || int(req.Col) >= bat.VectorCount() {
			return nil, nil, nil, nil, moerr.NewInvalidArgNoCtx("aggregate column", req.Col)
		}
		valueVecs[i] = bat.GetVector(req.Col)
		valueTypes[i] = *valueVecs[i].GetType()
	}
	return keyVecs, keyTypes, valueVecs, valueTypes, nil
}

// groupState is one partial aggregation: the hash map, the key row of
// every group and the per-group aggregate states.  Group i+1 owns key
// row i of keyVecs.
type groupState struct {
	m          hashmap.HashMap
	itr        hashmap.Iterator
	keyVecs    []*vector.Vector
	aggs       []agg.Agg
	groupCount int
}

func (g *Group) newState(keyTypes, valueTypes []types.Type) (*groupState, error) {
	hasNull := !g.ignoreNullKeys
	st := &groupState{}
	var err error
	if hashmap.UseIntMap(keyTypes, hasNull) {
		var m *hashmap.IntHashMap
		if m, err = hashmap.NewIntHashMap(hasNull, g.proc.Mp()); err != nil {
			return nil, err
		}
		st.m, st.itr = m, m.NewIterator()
	} else {
		var m *hashmap.StrHashMap
		if m, err = hashmap.NewStrHashMap(hasNull, g.proc.Mp()); err != nil {
			return nil, err
		}
		st.m, st.itr = m, m.NewIterator()
	}
	st.keyVecs = make([]*vector.Vector, len(keyTypes))
	for i, typ := range keyTypes {
		st.keyVecs[i] = vector.NewVec(typ)
	}
	st.aggs = make([]agg.Agg, len(g.reqs))
	for i, req := range g.reqs {
		a, aerr := agg.New(req.Op, valueTypes[i])
		if aerr != nil {
			st.free(g.proc.Mp())
			return nil, aerr
		}
		st.aggs[i] = a
	}
	return st, nil
}

func (st *groupState) free(mp *mpool.MPool) {
	if st == nil {
		return
	}
	if st.m != nil {
		st.m.Free()
		st.m = nil
	}
	for _, v := range st.keyVecs {
		if v != nil {
			v.Free(mp)
		}
	}
	st.keyVecs = nil
	for _, a := range st.aggs {
		if a != nil {
			a.Free(mp)
		}
	}
	st.aggs = nil
}

// size estimates the in-memory footprint used by the spill check.
func (st *groupState) size() int64 {
	sz := st.m.Size()
	for _, v := range st.keyVecs {
		sz += int64(v.Size())
	}
	sz += int64(st.groupCount*len(st.aggs)) * 16
	return sz
}

// finalize renders the state as the output key batch and result
// vectors.  The hash map is freed; key vectors move into the batch.
func (st *groupState) finalize(mp *mpool.MPool, in *batch.Batch, keyCols []int32) (*batch.Batch, []*vector.Vector, error) {
	outs := make([]*vector.Vector, len(st.aggs))
	for i, a := range st.aggs {
		vec, err := a.Eval(mp)
		if err != nil {
			for _, o := range outs {
				if o != nil {
					o.Free(mp)
				}
			}
			return nil, nil, err
		}
		outs[i] = vec
	}

	keyBat := batch.NewWithSize(len(st.keyVecs))
	keyBat.Attrs = make([]string, len(st.keyVecs))
	for i, v := range st.keyVecs {
		keyBat.SetVector(int32(i), v)
		if int(keyCols[i]) < len(in.Attrs) {
			keyBat.Attrs[i] = in.Attrs[keyCols[i]]
		}
	}
	keyBat.SetRowCount(st.groupCount)
	st.keyVecs = nil

	st.m.Free()
	st.m = nil
	for _, a := range st.aggs {
		a.Free(mp)
	}
	st.aggs = nil
	return keyBat, outs, nil
}
