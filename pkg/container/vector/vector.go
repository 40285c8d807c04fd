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

package vector

import (
	"bytes"
	"fmt"

	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/common/mpool"
	"github.com/vexdb/vex/pkg/container/nulls"
	"github.com/vexdb/vex/pkg/container/types"
)

// Vector represents a column: a typed element buffer, an optional null
// mask and, for varlen types, an area buffer holding the bytes the
// inline Varlena descriptors point into.
//
// A vector is mutated only through the Append/Gather functions below;
// once handed to an operator it is treated as read-only.
type Vector struct {
	typ types.Type
	nsp *nulls.Nulls

	// data holds fixed-width elements, or Varlena descriptors for
	// varlen types.
	data []byte
	area []byte

	length   int
	capacity int
}

func NewVec(typ types.Type) *Vector {
	return &Vector{
		typ: typ,
		nsp: nulls.New(),
	}
}

func (v *Vector) Length() int {
	return v.length
}

func (v *Vector) SetLength(n int) {
	v.length = n
}

func (v *Vector) Capacity() int {
	return v.capacity
}

func (v *Vector) GetType() *types.Type {
	return &v.typ
}

func (v *Vector) GetNulls() *nulls.Nulls {
	return v.nsp
}

func (v *Vector) SetNulls(nsp *nulls.Nulls) {
	v.nsp = nsp
}

// IsNull reports whether row i holds a null.
func (v *Vector) IsNull(i uint64) bool {
	return nulls.Contains(v.nsp, i)
}

// Size returns the memory footprint of the element storage.
func (v *Vector) Size() int {
	return len(v.data) + len(v.area)
}

// UnsafeGetRawData exposes the raw element bytes for hashing.
func (v *Vector) UnsafeGetRawData() []byte {
	return v.data[:v.length*v.typ.TypeSize()]
}

// Area exposes the varlen byte storage.
func (v *Vector) Area() []byte {
	return v.area
}

func (v *Vector) Free(mp *mpool.MPool) {
	mp.Free(v.data)
	mp.Free(v.area)
	v.data, v.area = nil, nil
	v.length, v.capacity = 0, 0
	v.nsp = nulls.New()
}

// MustFixedCol returns the typed view over the vector's elements.  The
// caller must dispatch on the vector's type tag; a mismatched T is a
// logic error.
func MustFixedCol[T types.FixedSizeT](v *Vector) []T {
	if len(v.data) == 0 {
		return nil
	}
	return types.DecodeSlice[T](v.data)[:v.length]
}

// GetFixedAt returns the element at row i.
func GetFixedAt[T types.FixedSizeT](v *Vector, i int) T {
	return types.DecodeSlice[T](v.data)[i]
}

// GetBytesAt returns the varlen element bytes at row i.
func (v *Vector) GetBytesAt(i int) []byte {
	va := types.DecodeSlice[types.Varlena](v.data)[i]
	return va.GetByteSlice(v.area)
}

// GetStringAt returns the varlen element at row i as a string.
func (v *Vector) GetStringAt(i int) string {
	return string(v.GetBytesAt(i))
}

// PreExtend reserves capacity for at least rows additional elements.
func (v *Vector) PreExtend(rows int, mp *mpool.MPool) error {
	return extend(v, rows, mp)
}

func extend(v *Vector, rows int, mp *mpool.MPool) error {
	sz := v.typ.TypeSize()
	need := (v.length + rows) * sz
	if need <= cap(v.data) {
		v.data = v.data[:need]
		v.capacity = cap(v.data) / sz
		return nil
	}
	data, err := mp.Grow(v.data, need)
	if err != nil {
		return err
	}
	v.data = data
	v.capacity = cap(v.data) / sz
	return nil
}

// AppendFixed appends one fixed-width element; a null appends the zero
// value and sets the null bit.
func AppendFixed[T types.FixedSizeT](v *Vector, val T, isNull bool, mp *mpool.MPool) error {
	if err := extend(v, 1, mp); err != nil {
		return err
	}
	col := types.DecodeSlice[T](v.data)
	if isNull {
		var zero T
		col[v.length] = zero
		nulls.Add(v.nsp, uint64(v.length))
	} else {
		col[v.length] = val
	}
	v.length++
	return nil
}

// AppendFixedList bulk-appends vals, marking the listed rows (relative
// to the appended range) null.
func AppendFixedList[T types.FixedSizeT](v *Vector, vals []T, nullRows []uint64, mp *mpool.MPool) error {
	if len(vals) == 0 {
		return nil
	}
	start := v.length
	if err := extend(v, len(vals), mp); err != nil {
		return err
	}
	col := types.DecodeSlice[T](v.data)
	copy(col[start:], vals)
	v.length += len(vals)
	for _, row := range nullRows {
		if row >= uint64(len(vals)) {
			return moerr.NewInvalidArgNoCtx("null row index", row)
		}
		col[start+int(row)] = *new(T)
		nulls.Add(v.nsp, uint64(start)+row)
	}
	return nil
}

// AppendBytes appends one varlen element.
func AppendBytes(v *Vector, val []byte, isNull bool, mp *mpool.MPool) error {
	if v.typ.Oid != types.T_varchar {
		return moerr.NewTypeMismatchNoCtx("VARCHAR", v.typ.String())
	}
	if err := extend(v, 1, mp); err != nil {
		return err
	}
	col := types.DecodeSlice[types.Varlena](v.data)
	if isNull {
		col[v.length] = types.Varlena{}
		nulls.Add(v.nsp, uint64(v.length))
		v.length++
		return nil
	}
	offset := len(v.area)
	area, err := mp.Grow(v.area, offset+len(val))
	if err != nil {
		return err
	}
	copy(area[offset:], val)
	v.area = area
	col[v.length] = types.Varlena{Offset: uint32(offset), Length: uint32(len(val))}
	v.length++
	return nil
}

// AppendStringList bulk-appends string values.
func AppendStringList(v *Vector, vals []string, nullRows []uint64, mp *mpool.MPool) error {
	nullSet := make(map[uint64]bool, len(nullRows))
	for _, r := range nullRows {
		nullSet[r] = true
	}
	for i, s := range vals {
		if err := AppendBytes(v, []byte(s), nullSet[uint64(i)], mp); err != nil {
			return err
		}
	}
	return nil
}

// AppendRow copies row sel of src onto the end of v.  The vectors must
// share an element type.
func AppendRow(v, src *Vector, sel int64, mp *mpool.MPool) error {
	if v.typ.Oid != src.typ.Oid {
		return moerr.NewTypeMismatchNoCtx(v.typ.String(), src.typ.String())
	}
	isNull := src.IsNull(uint64(sel))
	if v.typ.Oid == types.T_varchar {
		var bs []byte
		if !isNull {
			bs = src.GetBytesAt(int(sel))
		}
		return AppendBytes(v, bs, isNull, mp)
	}
	if err := extend(v, 1, mp); err != nil {
		return err
	}
	sz := v.typ.TypeSize()
	copy(v.data[v.length*sz:], src.data[int(sel)*sz:(int(sel)+1)*sz])
	if isNull {
		nulls.Add(v.nsp, uint64(v.length))
	}
	v.length++
	return nil
}

func (v *Vector) String() string {
	var buf bytes.Buffer
	buf.WriteString(v.typ.String())
	buf.WriteString(fmt.Sprintf("[len=%d", v.length))
	if nulls.Any(v.nsp) {
		buf.WriteString(fmt.Sprintf(" nulls=%s", nulls.String(v.nsp)))
	}
	buf.WriteString("]")
	return buf.String()
}
