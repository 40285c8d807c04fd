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
	"github.com/vexdb/vex/pkg/container/hashtable"
	"github.com/vexdb/vex/pkg/container/nulls"
	"github.com/vexdb/vex/pkg/container/types"
	"github.com/vexdb/vex/pkg/container/vector"
)

// PackedKeyWidth returns the serialized width of one key row, or -1 if
// the key contains a varlen column.  Keys at most 8 bytes wide go to
// the packed int table, wider keys to the string table.
func PackedKeyWidth(typs []types.Type, hasNull bool) int {
	width := 0
	for _, typ := range typs {
		if typ.Oid.FixedLength() < 0 {
			return -1
		}
		width += typ.Oid.FixedLength()
		if hasNull {
			width++
		}
	}
	return width
}

// UseIntMap reports whether the key columns fit the packed int table.
func UseIntMap(typs []types.Type, hasNull bool) bool {
	w := PackedKeyWidth(typs, hasNull)
	return w >= 0 && w <= 8
}

// encodePackedKeys serializes count rows of fixed-width key columns
// starting at row start into 8-byte packed keys.
//
// With hasNull, each column contributes a validity marker byte; a null
// contributes the marker alone, so null keys compare equal.  Without
// hasNull, a null kills the row: its zValues entry drops to zero and
// the row must get no group.  keys, keyOffs and zValues are caller
// scratch of at least count entries; keys and keyOffs must arrive
// zeroed and zValues set to one.
func encodePackedKeys(vecs []*vector.Vector, start, count int, hasNull bool, keys []uint64, keyOffs []uint32, zValues []int64) {
	data := types.EncodeSlice(keys[:count])
	for _, vec := range vecs {
		sz := uint32(vec.GetType().TypeSize())
		raw := vec.UnsafeGetRawData()
		hasVecNulls := nulls.Any(vec.GetNulls())
		switch {
		case hasNull:
			for i := 0; i < count; i++ {
				row := start + i
				base := i*8 + int(keyOffs[i])
				if hasVecNulls && vec.IsNull(uint64(row)) {
					data[base] = 0
					keyOffs[i]++
					continue
				}
				data[base] = 1
				copy(data[base+1:base+1+int(sz)], raw[uint32(row)*sz:(uint32(row)+1)*sz])
				keyOffs[i] += 1 + sz
			}
		case hasVecNulls:
			for i := 0; i < count; i++ {
				row := start + i
				if vec.IsNull(uint64(row)) {
					zValues[i] = 0
					continue
				}
				base := i*8 + int(keyOffs[i])
				copy(data[base:base+int(sz)], raw[uint32(row)*sz:(uint32(row)+1)*sz])
				keyOffs[i] += sz
			}
		default:
			for i := 0; i < count; i++ {
				row := start + i
				base := i*8 + int(keyOffs[i])
				copy(data[base:base+int(sz)], raw[uint32(row)*sz:(uint32(row)+1)*sz])
				keyOffs[i] += sz
			}
		}
	}
}

// encodeStrKeys serializes count rows of arbitrary key columns into
// per-row byte keys for the string table.  Varlen values carry a length
// prefix so adjacent columns cannot alias; short keys are padded up to
// hashtable.StrKeyPadding.  Scratch contract matches encodePackedKeys,
// with keys arriving as empty (but reusable) byte slices.
func encodeStrKeys(vecs []*vector.Vector, start, count int, hasNull bool, keys [][]byte, zValues []int64) {
	for _, vec := range vecs {
		isVarlen := !vec.GetType().IsFixedLen()
		sz := vec.GetType().TypeSize()
		hasVecNulls := nulls.Any(vec.GetNulls())
		for i := 0; i < count; i++ {
			row := start + i
			if hasVecNulls && vec.IsNull(uint64(row)) {
				if hasNull {
					keys[i] = append(keys[i], 0)
				} else {
					zValues[i] = 0
				}
				continue
			}
			if hasNull {
				keys[i] = append(keys[i], 1)
			}
			if isVarlen {
				bs := vec.GetBytesAt(row)
				length := uint32(len(bs))
				keys[i] = append(keys[i], types.EncodeFixed(length)...)
				keys[i] = append(keys[i], bs...)
			} else {
				raw := vec.UnsafeGetRawData()
				keys[i] = append(keys[i], raw[row*sz:(row+1)*sz]...)
			}
		}
	}
	for i := 0; i < count; i++ {
		if zValues[i] != 0 && len(keys[i]) < hashtable.StrKeyPadding {
			keys[i] = append(keys[i], strKeyPadBytes[len(keys[i]):]...)
		}
	}
}

var strKeyPadBytes [hashtable.StrKeyPadding]byte
