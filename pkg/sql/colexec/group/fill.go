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

package group

import (
	"github.com/vexdb/vex/pkg/common/hashmap"
	"github.com/vexdb/vex/pkg/container/types"
	"github.com/vexdb/vex/pkg/container/vector"
	"github.com/vexdb/vex/pkg/logutil"
	"github.com/vexdb/vex/pkg/sql/colexec/agg"
)

// fillRange feeds rows [lo, hi) of the key and value vectors into st.
// Group ids are dense, so a row whose id exceeds the current group
// count opens a new group: its key row is appended and every aggregate
// grows by one.
func (g *Group) fillRange(st *groupState, keyVecs, valueVecs []*vector.Vector, lo, hi int, allowSpill bool) error {
	mp := g.proc.Mp()
	for i := lo; i < hi; i += hashmap.UnitLimit {
		n := hi - i
		if n > hashmap.UnitLimit {
			n = hashmap.UnitLimit
		}
		vs, _, err := st.itr.Insert(i, n, keyVecs)
		if err != nil {
			return err
		}
		for k, v := range vs {
			if int(v) > st.groupCount {
				st.groupCount++
				for j, kv := range keyVecs {
					if err := vector.AppendRow(st.keyVecs[j], kv, int64(i+k), mp); err != nil {
						return err
					}
				}
				for _, a := range st.aggs {
					if err := a.Grows(1, mp); err != nil {
						return err
					}
				}
			}
		}
		for j, a := range st.aggs {
			if err := a.BatchFill(int64(i), vs, valueVecs[j]); err != nil {
				return err
			}
		}
		if allowSpill && g.spill.Enabled() && st.size() > g.spill.Limit() {
			if err := g.spillState(st); err != nil {
				return err
			}
		}
	}
	return nil
}

// fillParallel aggregates disjoint row ranges into per-worker partial
// states and folds them into st.  Aggregation is associative, so the
// fold gives the same groups and values as a sequential pass.
func (g *Group) fillParallel(st *groupState, keyVecs []*vector.Vector, keyTypes, valueTypes []types.Type, valueVecs []*vector.Vector, rows int) error {
	workers := g.proc.Parallelism()
	if workers > rows {
		workers = rows
	}
	chunk := (rows + workers - 1) / workers
	partials := make([]*groupState, (rows+chunk-1)/chunk)

	err := g.proc.ParallelRange(rows, func(lo, hi int) error {
		part, err := g.newState(keyTypes, valueTypes)
		if err != nil {
			return err
		}
		if err := g.fillRange(part, keyVecs, valueVecs, lo, hi, false); err != nil {
			part.free(g.proc.Mp())
			return err
		}
		partials[lo/chunk] = part
		return nil
	})
	if err != nil {
		for _, part := range partials {
			part.free(g.proc.Mp())
		}
		return err
	}

	for _, part := range partials {
		if part == nil {
			continue
		}
		if err := g.mergePartial(st, part); err != nil {
			for _, p := range partials {
				p.free(g.proc.Mp())
			}
			return err
		}
		part.free(g.proc.Mp())
	}
	return nil
}

// mergePartial folds src into dst: src's key rows are re-inserted into
// dst's map and each src group state merges into its dst group.
func (g *Group) mergePartial(dst, src *groupState) error {
	mp := g.proc.Mp()
	rows := src.groupCount
	for i := 0; i < rows; i += hashmap.UnitLimit {
		n := rows - i
		if n > hashmap.UnitLimit {
			n = hashmap.UnitLimit
		}
		vs, _, err := dst.itr.Insert(i, n, src.keyVecs)
		if err != nil {
			return err
		}
		for k, v := range vs {
			if int(v) > dst.groupCount {
				dst.groupCount++
				for j, kv := range src.keyVecs {
					if err := vector.AppendRow(dst.keyVecs[j], kv, int64(i+k), mp); err != nil {
						return err
					}
				}
				for _, a := range dst.aggs {
					if err := a.Grows(1, mp); err != nil {
						return err
					}
				}
			}
			// src group i+k+1 folds into dst group v
			for j, a := range dst.aggs {
				if err := a.Merge(src.aggs[j], uint64(v), uint64(i+k+1)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// spillState writes st's partial aggregation to disk and resets st in
// place to an empty state.
func (g *Group) spillState(st *groupState) error {
	frames := make([][]byte, 0, len(st.keyVecs)+len(st.aggs))
	for _, v := range st.keyVecs {
		data, err := v.MarshalBinary()
		if err != nil {
			return err
		}
		frames = append(frames, data)
	}
	for _, a := range st.aggs {
		data, err := a.MarshalBinary()
		if err != nil {
			return err
		}
		frames = append(frames, data)
	}
	if err := g.spill.Write(frames); err != nil {
		return err
	}
	logutil.Infof("group: spilled %d groups (%d bytes of state)",
		st.groupCount, st.size())

	keyTypes := make([]types.Type, len(st.keyVecs))
	for i, v := range st.keyVecs {
		keyTypes[i] = *v.GetType()
	}
	valueTypes := make([]types.Type, len(st.aggs))
	for i, a := range st.aggs {
		valueTypes[i] = a.InputType()
	}
	fresh, err := g.newState(keyTypes, valueTypes)
	if err != nil {
		return err
	}
	st.free(g.proc.Mp())
	*st = *fresh
	return nil
}

// mergeSpilled folds every spilled partial plus the live state into a
// fresh final state.
func (g *Group) mergeSpilled(live *groupState, keyTypes, valueTypes []types.Type) (*groupState, error) {
	mp := g.proc.Mp()
	final, err := g.newState(keyTypes, valueTypes)
	if err != nil {
		live.free(mp)
		return nil, err
	}
	if err := g.mergePartial(final, live); err != nil {
		live.free(mp)
		final.free(mp)
		return nil, err
	}
	live.free(mp)

	for i := 0; i < g.spill.Count(); i++ {
		part, err := g.loadPartial(i, keyTypes, valueTypes)
		if err != nil {
			final.free(mp)
			return nil, err
		}
		err = g.mergePartial(final, part)
		part.free(mp)
		if err != nil {
			final.free(mp)
			return nil, err
		}
	}
	g.spill.Cleanup()
	return final, nil
}

// loadPartial restores spill file i as a map-less partial state.
func (g *Group) loadPartial(i int, keyTypes, valueTypes []types.Type) (*groupState, error) {
	mp := g.proc.Mp()
	frames, err := g.spill.Read(i)
	if err != nil {
		return nil, err
	}
	st := &groupState{}
	st.keyVecs = make([]*vector.Vector, len(keyTypes))
	for j := range keyTypes {
		st.keyVecs[j] = vector.NewVec(keyTypes[j])
		if err := st.keyVecs[j].UnmarshalBinary(frames[j], mp); err != nil {
			st.free(mp)
			return nil, err
		}
	}
	st.groupCount = st.keyVecs[0].Length()
	st.aggs = make([]agg.Agg, len(g.reqs))
	for j, req := range g.reqs {
		a, err := agg.New(req.Op, valueTypes[j])
		if err != nil {
			st.free(mp)
			return nil, err
		}
		if err := a.UnmarshalBinary(frames[len(keyTypes)+j], mp); err != nil {
			st.free(mp)
			return nil, err
		}
		st.aggs[j] = a
	}
	return st, nil
}
