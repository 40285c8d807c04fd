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
	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/common/mpool"
	"github.com/vexdb/vex/pkg/container/nulls"
	"github.com/vexdb/vex/pkg/container/types"
)

// NullRow marks a gather position with no source row; the output row
// becomes null.
const NullRow int64 = -1

// Gather builds a new vector holding src rows in sels order.  A
// negative sel produces a null output row.
func Gather(src *Vector, sels []int64, mp *mpool.MPool) (*Vector, error) {
	out := NewVec(src.typ)
	if len(sels) == 0 {
		return out, nil
	}
	if src.typ.Oid == types.T_varchar {
		if err := gatherBytes(out, src, sels, mp); err != nil {
			out.Free(mp)
			return nil, err
		}
		return out, nil
	}
	if err := gatherFixed(out, src, sels, mp); err != nil {
		out.Free(mp)
		return nil, err
	}
	return out, nil
}

func gatherFixed(out, src *Vector, sels []int64, mp *mpool.MPool) error {
	if err := extend(out, len(sels), mp); err != nil {
		return err
	}
	sz := src.typ.TypeSize()
	srcNulls := nulls.Any(src.nsp)
	for i, sel := range sels {
		if sel < 0 || (srcNulls && src.IsNull(uint64(sel))) {
			nulls.Add(out.nsp, uint64(i))
			continue
		}
		if int(sel) >= src.length {
			return moerr.NewOutOfRangeNoCtx("row", "gather index %d", sel)
		}
		copy(out.data[i*sz:(i+1)*sz], src.data[int(sel)*sz:(int(sel)+1)*sz])
	}
	out.length = len(sels)
	return nil
}

func gatherBytes(out, src *Vector, sels []int64, mp *mpool.MPool) error {
	for _, sel := range sels {
		if sel < 0 || src.IsNull(uint64(sel)) {
			if err := AppendBytes(out, nil, true, mp); err != nil {
				return err
			}
			continue
		}
		if int(sel) >= src.length {
			return moerr.NewOutOfRangeNoCtx("row", "gather index %d", sel)
		}
		if err := AppendBytes(out, src.GetBytesAt(int(sel)), false, mp); err != nil {
			return err
		}
	}
	return nil
}

// GatherCoalesce builds one output vector from two aligned source
// vectors: row i takes the build row when bsels[i] is valid, otherwise
// the probe row, and is null only when both sides are missing or null.
// Used to merge the two copies of an equi-join key column.
func GatherCoalesce(bsrc, psrc *Vector, bsels, psels []int64, mp *mpool.MPool) (*Vector, error) {
	if bsrc.typ.Oid != psrc.typ.Oid {
		return nil, moerr.NewTypeMismatchNoCtx(bsrc.typ.String(), psrc.typ.String())
	}
	if len(bsels) != len(psels) {
		return nil, moerr.NewInvalidArgNoCtx("selection lengths", len(psels))
	}
	out := NewVec(bsrc.typ)
	for i := range bsels {
		src, sel := bsrc, bsels[i]
		if sel < 0 || src.IsNull(uint64(sel)) {
			src, sel = psrc, psels[i]
		}
		if sel < 0 {
			sel = NullRow
		}
		if err := appendSel(out, src, sel, mp); err != nil {
			out.Free(mp)
			return nil, err
		}
	}
	return out, nil
}

func appendSel(out, src *Vector, sel int64, mp *mpool.MPool) error {
	if sel < 0 {
		if out.typ.Oid == types.T_varchar {
			return AppendBytes(out, nil, true, mp)
		}
		if err := extend(out, 1, mp); err != nil {
			return err
		}
		sz := out.typ.TypeSize()
		for j := out.length * sz; j < (out.length+1)*sz; j++ {
			out.data[j] = 0
		}
		nulls.Add(out.nsp, uint64(out.length))
		out.length++
		return nil
	}
	return AppendRow(out, src, sel, mp)
}
