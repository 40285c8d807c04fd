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

// Package hashmap layers key extraction over the raw hash tables: it
// serializes rows of key vectors, routes them to the packed int table
// or the string table, and hands out dense 1-based group ids.
package hashmap

import (
	"github.com/vexdb/vex/pkg/container/vector"
)

// UnitLimit bounds how many rows one Insert or Find call processes, so
// scratch buffers stay fixed-size.
const UnitLimit = 256

// HashMap is a grouping table over multi-column keys.
type HashMap interface {
	// HasNulls reports whether null keys group together.  When false,
	// rows with a null key column get group id 0.
	HasNulls() bool

	// GroupCount returns the number of groups created.
	GroupCount() uint64

	// Size returns the memory footprint in bytes.
	Size() int64

	Free()
}

// Iterator batches key rows through a HashMap.  Not safe for
// concurrent use; create one iterator per goroutine.  The returned
// slices alias the iterator's scratch and are overwritten by the next
// Insert or Find call.
type Iterator interface {
	// Insert serializes rows [start, start+count) of the key vectors
	// and returns their group ids, allocating new groups for unseen
	// keys.  vs[i] == 0 marks a row killed by a null key.  zs is the
	// row liveness scratch; zs[i] == 0 means killed.  count must not
	// exceed UnitLimit.
	Insert(start, count int, vecs []*vector.Vector) (vs []uint64, zs []int64, err error)

	// Find is Insert without group creation; unseen keys get vs[i] == 0.
	Find(start, count int, vecs []*vector.Vector) (vs []uint64, zs []int64)
}
