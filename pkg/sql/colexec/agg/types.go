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

// Package agg implements the per-group aggregate states driven by the
// group operator.
package agg

import (
	"github.com/vexdb/vex/pkg/common/mpool"
	"github.com/vexdb/vex/pkg/container/types"
	"github.com/vexdb/vex/pkg/container/vector"
)

// Op identifies an aggregate function.
type Op int

const (
	AggregateSum Op = iota
	AggregateCount
	AggregateMin
	AggregateMax
	AggregateAvg
)

func (op Op) String() string {
	switch op {
	case AggregateSum:
		return "sum"
	case AggregateCount:
		return "count"
	case AggregateMin:
		return "min"
	case AggregateMax:
		return "max"
	case AggregateAvg:
		return "avg"
	}
	return "unknown"
}

// Agg is one aggregate over all groups.  Groups are addressed by the
// 1-based ids the hash map hands out; state i belongs to group i+1.
//
// A group whose inputs were all null (or that received no input at
// all) evaluates to null, except COUNT which evaluates to 0.
type Agg interface {
	// Grows appends n fresh groups initialized to the identity.
	Grows(n int, mp *mpool.MPool) error

	// Fill accumulates input row sel of vec into group (1-based).
	Fill(group uint64, sel int64, vec *vector.Vector) error

	// BatchFill accumulates rows [offset, offset+len(groups)) of vec;
	// groups[i] == 0 skips the row.
	BatchFill(offset int64, groups []uint64, vec *vector.Vector) error

	// Merge folds group bGroup of b into group aGroup.  b must be the
	// same aggregate kind over the same input type.
	Merge(b Agg, aGroup, bGroup uint64) error

	// Eval renders all group results as a vector.  The aggregate keeps
	// ownership of nothing afterwards; callers free the result.
	Eval(mp *mpool.MPool) (*vector.Vector, error)

	// OutputType is the result type after promotion.
	OutputType() types.Type

	// InputType is the accepted argument type.
	InputType() types.Type

	// GroupCount returns the number of groups grown so far.
	GroupCount() int

	// MarshalBinary and UnmarshalBinary move the whole state through
	// the spill path.
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte, mp *mpool.MPool) error

	Free(mp *mpool.MPool)
}
