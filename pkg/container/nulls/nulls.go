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

// Package nulls wraps the roaring bitmap library into the engine's null
// mask.  A set bit marks a null row; an absent or empty bitmap means
// every row is valid.
package nulls

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

type Nulls struct {
	np *roaring.Bitmap
}

func New() *Nulls {
	return &Nulls{}
}

// Build returns a null mask with the given rows set.
func Build(rows ...uint64) *Nulls {
	nsp := New()
	Add(nsp, rows...)
	return nsp
}

func (nsp *Nulls) Clone() *Nulls {
	if nsp == nil || nsp.np == nil {
		return New()
	}
	return &Nulls{np: nsp.np.Clone()}
}

// Any returns true if any null is present.
func Any(nsp *Nulls) bool {
	return nsp != nil && nsp.np != nil && !nsp.np.IsEmpty()
}

// Contains returns true if the row is null.
func Contains(nsp *Nulls, row uint64) bool {
	return nsp != nil && nsp.np != nil && nsp.np.Contains(uint32(row))
}

func Add(nsp *Nulls, rows ...uint64) {
	if nsp == nil || len(rows) == 0 {
		return
	}
	if nsp.np == nil {
		nsp.np = roaring.New()
	}
	for _, row := range rows {
		nsp.np.Add(uint32(row))
	}
}

func AddRange(nsp *Nulls, start, end uint64) {
	if nsp == nil || start >= end {
		return
	}
	if nsp.np == nil {
		nsp.np = roaring.New()
	}
	nsp.np.AddRange(start, end)
}

// Set unions m into nsp.
func Set(nsp, m *Nulls) {
	if m == nil || m.np == nil {
		return
	}
	if nsp.np == nil {
		nsp.np = roaring.New()
	}
	nsp.np.Or(m.np)
}

// Length returns the number of null rows.
func Length(nsp *Nulls) int {
	if nsp == nil || nsp.np == nil {
		return 0
	}
	return int(nsp.np.GetCardinality())
}

// Size estimates the mask's memory footprint in bytes.
func Size(nsp *Nulls) int {
	if nsp == nil || nsp.np == nil {
		return 0
	}
	return int(nsp.np.GetSizeInBytes())
}

func String(nsp *Nulls) string {
	if nsp == nil || nsp.np == nil {
		return "[]"
	}
	return fmt.Sprintf("%v", nsp.np.ToArray())
}

func (nsp *Nulls) Any() bool {
	return Any(nsp)
}

func (nsp *Nulls) Contains(row uint64) bool {
	return Contains(nsp, row)
}

func (nsp *Nulls) Add(row uint64) {
	Add(nsp, row)
}

func (nsp *Nulls) Count() int {
	return Length(nsp)
}

func (nsp *Nulls) IsSame(m *Nulls) bool {
	switch {
	case nsp == nil && m == nil:
		return true
	case nsp == nil || nsp.np == nil:
		return !Any(m)
	case m == nil || m.np == nil:
		return !Any(nsp)
	default:
		return nsp.np.Equals(m.np)
	}
}

func (nsp *Nulls) ToArray() []uint64 {
	if nsp == nil || nsp.np == nil {
		return nil
	}
	rows := nsp.np.ToArray()
	out := make([]uint64, len(rows))
	for i, r := range rows {
		out[i] = uint64(r)
	}
	return out
}

// Show serializes the mask; Read restores it.
func (nsp *Nulls) Show() ([]byte, error) {
	if nsp == nil || nsp.np == nil {
		return nil, nil
	}
	return nsp.np.ToBytes()
}

func (nsp *Nulls) Read(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	nsp.np = roaring.New()
	return nsp.np.UnmarshalBinary(data)
}
