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

// Package batch defines the unit of data flowing between operators: a
// set of equal-length column vectors with attribute names.
package batch

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/common/mpool"
	"github.com/vexdb/vex/pkg/container/vector"
)

type Batch struct {
	// Attrs names the columns; Attrs[i] labels Vecs[i].
	Attrs []string
	Vecs  []*vector.Vector

	rowCount int

	// Cnt is a reference count; Clean releases storage only when the
	// last reference drops.
	Cnt int64
}

func New(attrs []string) *Batch {
	return &Batch{
		Attrs: attrs,
		Vecs:  make([]*vector.Vector, len(attrs)),
		Cnt:   1,
	}
}

func NewWithSize(n int) *Batch {
	return &Batch{
		Vecs: make([]*vector.Vector, n),
		Cnt:  1,
	}
}

func (bat *Batch) VectorCount() int {
	return len(bat.Vecs)
}

func (bat *Batch) RowCount() int {
	return bat.rowCount
}

func (bat *Batch) SetRowCount(n int) {
	bat.rowCount = n
}

func (bat *Batch) GetVector(i int32) *vector.Vector {
	return bat.Vecs[i]
}

func (bat *Batch) SetVector(i int32, vec *vector.Vector) {
	bat.Vecs[i] = vec
}

// Validate checks that every vector holds exactly RowCount rows.
func (bat *Batch) Validate() error {
	for i, vec := range bat.Vecs {
		if vec == nil {
			return moerr.NewInvalidStateNoCtx("batch column %d is nil", i)
		}
		if vec.Length() != bat.rowCount {
			return moerr.NewInvalidStateNoCtx(
				"batch column %d has %d rows, batch has %d",
				i, vec.Length(), bat.rowCount)
		}
	}
	return nil
}

// SyncRowCount sets the batch row count from its first column and
// validates the rest against it.
func (bat *Batch) SyncRowCount() error {
	if len(bat.Vecs) == 0 {
		bat.rowCount = 0
		return nil
	}
	bat.rowCount = bat.Vecs[0].Length()
	return bat.Validate()
}

func (bat *Batch) IsEmpty() bool {
	return bat == nil || bat.rowCount == 0
}

// Size returns the memory footprint of all column storage.
func (bat *Batch) Size() int {
	var sz int
	for _, vec := range bat.Vecs {
		if vec != nil {
			sz += vec.Size()
		}
	}
	return sz
}

func (bat *Batch) AddCnt(n int64) {
	atomic.AddInt64(&bat.Cnt, n)
}

// Clean drops one reference and frees column storage when the count
// reaches zero.
func (bat *Batch) Clean(mp *mpool.MPool) {
	if bat == nil {
		return
	}
	if atomic.AddInt64(&bat.Cnt, -1) > 0 {
		return
	}
	for _, vec := range bat.Vecs {
		if vec != nil {
			vec.Free(mp)
		}
	}
	bat.Vecs = nil
	bat.Attrs = nil
	bat.rowCount = 0
}

func (bat *Batch) String() string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("batch(rows=%d){", bat.rowCount))
	for i, vec := range bat.Vecs {
		if i > 0 {
			buf.WriteString(", ")
		}
		if i < len(bat.Attrs) {
			buf.WriteString(bat.Attrs[i])
			buf.WriteString("=")
		}
		buf.WriteString(vec.String())
	}
	buf.WriteString("}")
	return buf.String()
}
