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

package agg

import (
	"bytes"
	"encoding/binary"

	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/common/mpool"
	"github.com/vexdb/vex/pkg/container/nulls"
	"github.com/vexdb/vex/pkg/container/types"
	"github.com/vexdb/vex/pkg/container/vector"
)

// fixedAgg covers SUM, MIN and MAX over fixed-width numeric input.
// empty[i] means group i+1 has seen no valid input yet and evaluates
// to null.
type fixedAgg[TIn, TOut types.OrderedT] struct {
	op    Op
	ityp  types.Type
	otyp  types.Type
	vals  []TOut
	empty []bool

	fill  func(state TOut, v TIn, stateEmpty bool) TOut
	merge func(a, b TOut) TOut
}

func (a *fixedAgg[TIn, TOut]) Grows(n int, _ *mpool.MPool) error {
	for i := 0; i < n; i++ {
		var zero TOut
		a.vals = append(a.vals, zero)
		a.empty = append(a.empty, true)
	}
	return nil
}

func (a *fixedAgg[TIn, TOut]) GroupCount() int {
	return len(a.vals)
}

func (a *fixedAgg[TIn, TOut]) Fill(group uint64, sel int64, vec *vector.Vector) error {
	if group == 0 || group > uint64(len(a.vals)) {
		return moerr.NewOutOfRangeNoCtx("group", "%d of %d", group, len(a.vals))
	}
	if vec.IsNull(uint64(sel)) {
		return nil
	}
	col := vector.MustFixedCol[TIn](vec)
	g := group - 1
	a.vals[g] = a.fill(a.vals[g], col[sel], a.empty[g])
	a.empty[g] = false
	return nil
}

func (a *fixedAgg[TIn, TOut]) BatchFill(offset int64, groups []uint64, vec *vector.Vector) error {
	col := vector.MustFixedCol[TIn](vec)
	hasNulls := nulls.Any(vec.GetNulls())
	for i, group := range groups {
		if group == 0 {
			continue
		}
		if group > uint64(len(a.vals)) {
			return moerr.NewOutOfRangeNoCtx("group", "%d of %d", group, len(a.vals))
		}
		row := offset + int64(i)
		if hasNulls && vec.IsNull(uint64(row)) {
			continue
		}
		g := group - 1
		a.vals[g] = a.fill(a.vals[g], col[row], a.empty[g])
		a.empty[g] = false
	}
	return nil
}

func (a *fixedAgg[TIn, TOut]) Merge(b Agg, aGroup, bGroup uint64) error {
	other, ok := b.(*fixedAgg[TIn, TOut])
	if !ok || other.op != a.op {
		return moerr.NewTypeMismatchNoCtx(a.op.String(), "merge source")
	}
	ag, bg := aGroup-1, bGroup-1
	if other.empty[bg] {
		return nil
	}
	if a.empty[ag] {
		a.vals[ag] = other.vals[bg]
		a.empty[ag] = false
		return nil
	}
	a.vals[ag] = a.merge(a.vals[ag], other.vals[bg])
	return nil
}

func (a *fixedAgg[TIn, TOut]) Eval(mp *mpool.MPool) (*vector.Vector, error) {
	vec := vector.NewVec(a.otyp)
	nullRows := make([]uint64, 0)
	for i, e := range a.empty {
		if e {
			nullRows = append(nullRows, uint64(i))
		}
	}
	if err := vector.AppendFixedList(vec, a.vals, nullRows, mp); err != nil {
		vec.Free(mp)
		return nil, err
	}
	return vec, nil
}

func (a *fixedAgg[TIn, TOut]) OutputType() types.Type {
	return a.otyp
}

func (a *fixedAgg[TIn, TOut]) InputType() types.Type {
	return a.ityp
}

func (a *fixedAgg[TIn, TOut]) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	n := uint64(len(a.vals))
	if err := binary.Write(&buf, binary.BigEndian, n); err != nil {
		return nil, err
	}
	buf.Write(types.EncodeSlice(a.vals))
	for _, e := range a.empty {
		if e {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes(), nil
}

func (a *fixedAgg[TIn, TOut]) UnmarshalBinary(data []byte, _ *mpool.MPool) error {
	if len(data) < 8 {
		return moerr.NewInvalidInputNoCtx("aggregate state too short")
	}
	n := int(binary.BigEndian.Uint64(data))
	data = data[8:]
	sz := a.otyp.TypeSize()
	if len(data) != n*sz+n {
		return moerr.NewInvalidInputNoCtx("aggregate state length %d", len(data))
	}
	a.vals = append(a.vals[:0], types.DecodeSlice[TOut](data[:n*sz])...)
	a.empty = a.empty[:0]
	for _, b := range data[n*sz:] {
		a.empty = append(a.empty, b == 1)
	}
	return nil
}

func (a *fixedAgg[TIn, TOut]) Free(_ *mpool.MPool) {
	a.vals, a.empty = nil, nil
}

// countAgg counts valid input rows per group.  Its result is never
// null; a group with no valid input counts zero.
type countAgg struct {
	ityp types.Type
	cnts []int64
}

func (a *countAgg) Grows(n int, _ *mpool.MPool) error {
	for i := 0; i < n; i++ {
		a.cnts = append(a.cnts, 0)
	}
	return nil
}

func (a *countAgg) GroupCount() int {
	return len(a.cnts)
}

func (a *countAgg) Fill(group uint64, sel int64, vec *vector.Vector) error {
	if group == 0 || group > uint64(len(a.cnts)) {
		return moerr.NewOutOfRangeNoCtx("group", "%d of %d", group, len(a.cnts))
	}
	if !vec.IsNull(uint64(sel)) {
		a.cnts[group-1]++
	}
	return nil
}

func (a *countAgg) BatchFill(offset int64, groups []uint64, vec *vector.Vector) error {
	hasNulls := nulls.Any(vec.GetNulls())
	for i, group := range groups {
		if group == 0 {
			continue
		}
		if group > uint64(len(a.cnts)) {
			return moerr.NewOutOfRangeNoCtx("group", "%d of %d", group, len(a.cnts))
		}
		if hasNulls && vec.IsNull(uint64(offset+int64(i))) {
			continue
		}
		a.cnts[group-1]++
	}
	return nil
}

func (a *countAgg) Merge(b Agg, aGroup, bGroup uint64) error {
	other, ok := b.(*countAgg)
	if !ok {
		return moerr.NewTypeMismatchNoCtx("count", "merge source")
	}
	a.cnts[aGroup-1] += other.cnts[bGroup-1]
	return nil
}

func (a *countAgg) Eval(mp *mpool.MPool) (*vector.Vector, error) {
	vec := vector.NewVec(types.New(types.T_int64))
	if err := vector.AppendFixedList(vec, a.cnts, nil, mp); err != nil {
		vec.Free(mp)
		return nil, err
	}
	return vec, nil
}

func (a *countAgg) OutputType() types.Type {
	return types.New(types.T_int64)
}

func (a *countAgg) InputType() types.Type {
	return a.ityp
}

func (a *countAgg) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	n := uint64(len(a.cnts))
	if err := binary.Write(&buf, binary.BigEndian, n); err != nil {
		return nil, err
	}
	buf.Write(types.EncodeSlice(a.cnts))
	return buf.Bytes(), nil
}

func (a *countAgg) UnmarshalBinary(data []byte, _ *mpool.MPool) error {
	if len(data) < 8 {
		return moerr.NewInvalidInputNoCtx("aggregate state too short")
	}
	n := int(binary.BigEndian.Uint64(data))
	data = data[8:]
	if len(data) != n*8 {
		return moerr.NewInvalidInputNoCtx("aggregate state length %d", len(data))
	}
	a.cnts = append(a.cnts[:0], types.DecodeSlice[int64](data)...)
	return nil
}

func (a *countAgg) Free(_ *mpool.MPool) {
	a.cnts = nil
}

// avgAgg keeps the sum and count halves of an average in one state so
// both ride a single hash pass; Eval divides.  Output is float64.
type avgAgg[TIn types.OrderedT] struct {
	ityp types.Type
	sums []float64
	cnts []int64
}

func (a *avgAgg[TIn]) Grows(n int, _ *mpool.MPool) error {
	for i := 0; i < n; i++ {
		a.sums = append(a.sums, 0)
		a.cnts = append(a.cnts, 0)
	}
	return nil
}

func (a *avgAgg[TIn]) GroupCount() int {
	return len(a.cnts)
}

func (a *avgAgg[TIn]) Fill(group uint64, sel int64, vec *vector.Vector) error {
	if group == 0 || group > uint64(len(a.cnts)) {
		return moerr.NewOutOfRangeNoCtx("group", "%d of %d", group, len(a.cnts))
	}
	if vec.IsNull(uint64(sel)) {
		return nil
	}
	col := vector.MustFixedCol[TIn](vec)
	a.sums[group-1] += float64(col[sel])
	a.cnts[group-1]++
	return nil
}

func (a *avgAgg[TIn]) BatchFill(offset int64, groups []uint64, vec *vector.Vector) error {
	col := vector.MustFixedCol[TIn](vec)
	hasNulls := nulls.Any(vec.GetNulls())
	for i, group := range groups {
		if group == 0 {
			continue
		}
		if group > uint64(len(a.cnts)) {
			return moerr.NewOutOfRangeNoCtx("group", "%d of %d", group, len(a.cnts))
		}
		row := offset + int64(i)
		if hasNulls && vec.IsNull(uint64(row)) {
			continue
		}
		a.sums[group-1] += float64(col[row])
		a.cnts[group-1]++
	}
	return nil
}

func (a *avgAgg[TIn]) Merge(b Agg, aGroup, bGroup uint64) error {
	other, ok := b.(*avgAgg[TIn])
	if !ok {
		return moerr.NewTypeMismatchNoCtx("avg", "merge source")
	}
	a.sums[aGroup-1] += other.sums[bGroup-1]
	a.cnts[aGroup-1] += other.cnts[bGroup-1]
	return nil
}

func (a *avgAgg[TIn]) Eval(mp *mpool.MPool) (*vector.Vector, error) {
	vec := vector.NewVec(types.New(types.T_float64))
	for i := range a.cnts {
		if a.cnts[i] == 0 {
			if err := vector.AppendFixed[float64](vec, 0, true, mp); err != nil {
				vec.Free(mp)
				return nil, err
			}
			continue
		}
		if err := vector.AppendFixed(vec, a.sums[i]/float64(a.cnts[i]), false, mp); err != nil {
			vec.Free(mp)
			return nil, err
		}
	}
	return vec, nil
}

func (a *avgAgg[TIn]) OutputType() types.Type {
	return types.New(types.T_float64)
}

func (a *avgAgg[TIn]) InputType() types.Type {
	return a.ityp
}

func (a *avgAgg[TIn]) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	n := uint64(len(a.cnts))
	if err := binary.Write(&buf, binary.BigEndian, n); err != nil {
		return nil, err
	}
	buf.Write(types.EncodeSlice(a.sums))
	buf.Write(types.EncodeSlice(a.cnts))
	return buf.Bytes(), nil
}

func (a *avgAgg[TIn]) UnmarshalBinary(data []byte, _ *mpool.MPool) error {
	if len(data) < 8 {
		return moerr.NewInvalidInputNoCtx("aggregate state too short")
	}
	n := int(binary.BigEndian.Uint64(data))
	data = data[8:]
	if len(data) != n*16 {
		return moerr.NewInvalidInputNoCtx("aggregate state length %d", len(data))
	}
	a.sums = append(a.sums[:0], types.DecodeSlice[float64](data[:n*8])...)
	a.cnts = append(a.cnts[:0], types.DecodeSlice[int64](data[n*8:])...)
	return nil
}

func (a *avgAgg[TIn]) Free(_ *mpool.MPool) {
	a.sums, a.cnts = nil, nil
}
