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
	"encoding/binary"

	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/common/mpool"
	"github.com/vexdb/vex/pkg/container/nulls"
	"github.com/vexdb/vex/pkg/container/types"
)

// MarshalBinary flattens the vector for spill files.  Layout: type,
// length, then length-prefixed data, area and null mask sections.
func (v *Vector) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(types.EncodeType(&v.typ))
	if err := binary.Write(&buf, binary.BigEndian, int64(v.length)); err != nil {
		return nil, err
	}
	nspData, err := v.nsp.Show()
	if err != nil {
		return nil, err
	}
	for _, section := range [][]byte{v.data[:v.length*v.typ.TypeSize()], v.area, nspData} {
		if err := binary.Write(&buf, binary.BigEndian, int32(len(section))); err != nil {
			return nil, err
		}
		buf.Write(section)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a vector written by MarshalBinary into
// mpool-backed storage.
func (v *Vector) UnmarshalBinary(data []byte, mp *mpool.MPool) error {
	const hdr = 8 + 8
	if len(data) < hdr {
		return moerr.NewInvalidInputNoCtx("vector header too short")
	}
	v.typ = types.DecodeType(data[:8])
	v.length = int(int64(binary.BigEndian.Uint64(data[8:16])))
	data = data[hdr:]

	sections := make([][]byte, 3)
	for i := range sections {
		if len(data) < 4 {
			return moerr.NewInvalidInputNoCtx("vector section header too short")
		}
		n := int(int32(binary.BigEndian.Uint32(data)))
		data = data[4:]
		if n < 0 || len(data) < n {
			return moerr.NewInvalidInputNoCtx("vector section length %d", n)
		}
		sections[i] = data[:n]
		data = data[n:]
	}

	var err error
	if v.data, err = mp.Alloc(len(sections[0])); err != nil {
		return err
	}
	copy(v.data, sections[0])
	v.capacity = cap(v.data) / v.typ.TypeSize()
	if len(sections[1]) > 0 {
		if v.area, err = mp.Alloc(len(sections[1])); err != nil {
			return err
		}
		copy(v.area, sections[1])
	}
	nsp := nulls.New()
	if err := nsp.Read(sections[2]); err != nil {
		return err
	}
	v.SetNulls(nsp)
	return nil
}
