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
	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/container/types"
)

// New builds the aggregate state for op over input typ, applying the
// output promotion rules: COUNT always yields int64; SUM promotes
// integral input to its 64-bit form and keeps float width; MIN and MAX
// keep the input type; AVG yields float64.  Unsupported combinations
// fail before any work starts.
func New(op Op, typ types.Type) (Agg, error) {
	switch op {
	case AggregateCount:
		return &countAgg{ityp: typ}, nil
	case AggregateSum:
		return newSum(typ)
	case AggregateMin:
		return newMinMax(typ, AggregateMin)
	case AggregateMax:
		return newMinMax(typ, AggregateMax)
	case AggregateAvg:
		return newAvg(typ)
	}
	return nil, moerr.NewInvalidArgNoCtx("aggregate operator", op)
}

func sumAgg[TIn, TOut types.OrderedT](ityp types.Type, oid types.T) Agg {
	return &fixedAgg[TIn, TOut]{
		op:    AggregateSum,
		ityp:  ityp,
		otyp:  types.New(oid),
		fill:  func(s TOut, v TIn, _ bool) TOut { return s + TOut(v) },
		merge: func(a, b TOut) TOut { return a + b },
	}
}

func newSum(typ types.Type) (Agg, error) {
	switch typ.Oid {
	case types.T_int8:
		return sumAgg[int8, int64](typ, types.T_int64), nil
	case types.T_int16:
		return sumAgg[int16, int64](typ, types.T_int64), nil
	case types.T_int32:
		return sumAgg[int32, int64](typ, types.T_int64), nil
	case types.T_int64:
		return sumAgg[int64, int64](typ, types.T_int64), nil
	case types.T_uint8:
		return sumAgg[uint8, uint64](typ, types.T_uint64), nil
	case types.T_uint16:
		return sumAgg[uint16, uint64](typ, types.T_uint64), nil
	case types.T_uint32:
		return sumAgg[uint32, uint64](typ, types.T_uint64), nil
	case types.T_uint64:
		return sumAgg[uint64, uint64](typ, types.T_uint64), nil
	case types.T_float32:
		return sumAgg[float32, float32](typ, types.T_float32), nil
	case types.T_float64:
		return sumAgg[float64, float64](typ, types.T_float64), nil
	}
	return nil, moerr.NewInvalidArgNoCtx("sum input type", typ.String())
}

func minMaxAgg[T types.OrderedT](typ types.Type, op Op) Agg {
	less := op == AggregateMin
	return &fixedAgg[T, T]{
		op:   op,
		ityp: typ,
		otyp: typ,
		fill: func(s T, v T, empty bool) T {
			if empty || (less && v < s) || (!less && v > s) {
				return v
			}
			return s
		},
		merge: func(a, b T) T {
			if (less && b < a) || (!less && b > a) {
				return b
			}
			return a
		},
	}
}

func newMinMax(typ types.Type, op Op) (Agg, error) {
	switch typ.Oid {
	case types.T_int8:
		return minMaxAgg[int8](typ, op), nil
	case types.T_int16:
		return minMaxAgg[int16](typ, op), nil
	case types.T_int32:
		return minMaxAgg[int32](typ, op), nil
	case types.T_int64:
		return minMaxAgg[int64](typ, op), nil
	case types.T_uint8:
		return minMaxAgg[uint8](typ, op), nil
	case types.T_uint16:
		return minMaxAgg[uint16](typ, op), nil
	case types.T_uint32:
		return minMaxAgg[uint32](typ, op), nil
	case types.T_uint64:
		return minMaxAgg[uint64](typ, op), nil
	case types.T_float32:
		return minMaxAgg[float32](typ, op), nil
	case types.T_float64:
		return minMaxAgg[float64](typ, op), nil
	}
	return nil, moerr.NewInvalidArgNoCtx(op.String()+" input type", typ.String())
}

func newAvg(typ types.Type) (Agg, error) {
	switch typ.Oid {
	case types.T_int8:
		return &avgAgg[int8]{ityp: typ}, nil
	case types.T_int16:
		return &avgAgg[int16]{ityp: typ}, nil
	case types.T_int32:
		return &avgAgg[int32]{ityp: typ}, nil
	case types.T_int64:
		return &avgAgg[int64]{ityp: typ}, nil
	case types.T_uint8:
		return &avgAgg[uint8]{ityp: typ}, nil
	case types.T_uint16:
		return &avgAgg[uint16]{ityp: typ}, nil
	case types.T_uint32:
		return &avgAgg[uint32]{ityp: typ}, nil
	case types.T_uint64:
		return &avgAgg[uint64]{ityp: typ}, nil
	case types.T_float32:
		return &avgAgg[float32]{ityp: typ}, nil
	case types.T_float64:
		return &avgAgg[float64]{ityp: typ}, nil
	}
	return nil, moerr.NewInvalidArgNoCtx("avg input type", typ.String())
}
