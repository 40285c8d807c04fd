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

package group

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/common/mpool"
	"github.com/vexdb/vex/pkg/container/batch"
	"github.com/vexdb/vex/pkg/container/types"
	"github.com/vexdb/vex/pkg/container/vector"
	"github.com/vexdb/vex/pkg/sql/colexec/agg"
	"github.com/vexdb/vex/pkg/vm/process"
)

func twoColBatch(t *testing.T, mp *mpool.MPool, keys []int64, keyNulls []uint64, vals []int32, valNulls []uint64) *batch.Batch {
	bat := batch.New([]string{"k", "v"})
	kv := vector.NewVec(types.New(types.T_int64))
	require.NoError(t, vector.AppendFixedList(kv, keys, keyNulls, mp))
	vv := vector.NewVec(types.New(types.T_int32))
	require.NoError(t, vector.AppendFixedList(vv, vals, valNulls, mp))
	bat.SetVector(0, kv)
	bat.SetVector(1, vv)
	require.NoError(t, bat.SyncRowCount())
	return bat
}

// groupsOf collects key -> aggregate value rows for order-free
// comparison.
func groupsOf[T types.OrderedT](t *testing.T, keyBat *batch.Batch, out *vector.Vector) map[int64]T {
	res := make(map[int64]T)
	keys := vector.MustFixedCol[int64](keyBat.GetVector(0))
	vals := vector.MustFixedCol[T](out)
	require.Equal(t, len(keys), len(vals))
	for i, k := range keys {
		res[k] = vals[i]
	}
	return res
}

func TestSumScenario(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()
	mp := proc.Mp()

	bat := twoColBatch(t, mp,
		[]int64{3, 1, 2, 0, 2}, nil,
		[]int32{10, 20, 30, 40, 50}, nil)

	keyBat, outs, err := Aggregate(proc, bat, []int32{0},
		[]Request{{Col: 1, Op: agg.AggregateSum}}, false)
	require.NoError(t, err)
	require.Equal(t, 4, keyBat.RowCount())

	sums := groupsOf[int64](t, keyBat, outs[0])
	require.Equal(t, map[int64]int64{3: 10, 1: 20, 2: 80, 0: 40}, sums)

	keyBat.Clean(mp)
	outs[0].Free(mp)
}

func TestAvgSharesOnePass(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()
	mp := proc.Mp()

	bat := twoColBatch(t, mp,
		[]int64{1, 1, 2}, nil,
		[]int32{4, 6, 9}, nil)

	keyBat, outs, err := Aggregate(proc, bat, []int32{0},
		[]Request{{Col: 1, Op: agg.AggregateAvg}}, false)
	require.NoError(t, err)

	avgs := groupsOf[float64](t, keyBat, outs[0])
	require.Equal(t, 5.0, avgs[1])
	require.Equal(t, 9.0, avgs[2])
	require.Equal(t, types.T_float64, outs[0].GetType().Oid)

	keyBat.Clean(mp)
	outs[0].Free(mp)
}

func TestNullKeyPolicies(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()
	mp := proc.Mp()

	bat := twoColBatch(t, mp,
		[]int64{1, 0, 1, 0}, []uint64{1, 3},
		[]int32{10, 20, 30, 40}, nil)

	// null keys dropped
	keyBat, outs, err := Aggregate(proc, bat, []int32{0},
		[]Request{{Col: 1, Op: agg.AggregateSum}}, true)
	require.NoError(t, err)
	require.Equal(t, 1, keyBat.RowCount())
	sums := groupsOf[int64](t, keyBat, outs[0])
	require.Equal(t, int64(40), sums[1])
	keyBat.Clean(mp)
	outs[0].Free(mp)

	// null keys form one group; the key row reads null
	keyBat, outs, err = Aggregate(proc, bat, []int32{0},
		[]Request{{Col: 1, Op: agg.AggregateSum}}, false)
	require.NoError(t, err)
	require.Equal(t, 2, keyBat.RowCount())
	kv := keyBat.GetVector(0)
	nullGroup := -1
	for i := 0; i < keyBat.RowCount(); i++ {
		if kv.IsNull(uint64(i)) {
			nullGroup = i
		}
	}
	require.NotEqual(t, -1, nullGroup)
	require.Equal(t, int64(60), vector.MustFixedCol[int64](outs[0])[nullGroup])
	keyBat.Clean(mp)
	outs[0].Free(mp)
}

func TestNullValuesSkipped(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()
	mp := proc.Mp()

	bat := twoColBatch(t, mp,
		[]int64{1, 1, 2}, nil,
		[]int32{5, 0, 0}, []uint64{1, 2})

	keyBat, outs, err := Aggregate(proc, bat, []int32{0}, []Request{
		{Col: 1, Op: agg.AggregateSum},
		{Col: 1, Op: agg.AggregateCount},
	}, false)
	require.NoError(t, err)

	sums := groupsOf[int64](t, keyBat, outs[0])
	cnts := groupsOf[int64](t, keyBat, outs[1])
	require.Equal(t, int64(5), sums[1])
	require.Equal(t, int64(1), cnts[1])
	require.Equal(t, int64(0), cnts[2]) // count of all-null group is 0

	// sum of the all-null group is null
	keys := vector.MustFixedCol[int64](keyBat.GetVector(0))
	for i, k := range keys {
		if k == 2 {
			require.True(t, outs[0].IsNull(uint64(i)))
		}
	}
	keyBat.Clean(mp)
	outs[0].Free(mp)
	outs[1].Free(mp)
}

func TestMultiKeyGrouping(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()
	mp := proc.Mp()

	bat := batch.New([]string{"a", "b", "v"})
	av := vector.NewVec(types.New(types.T_int64))
	require.NoError(t, vector.AppendFixedList(av, []int64{1, 1, 2, 1}, nil, mp))
	bv := vector.NewVec(types.New(types.T_varchar))
	require.NoError(t, vector.AppendStringList(bv, []string{"x", "y", "x", "x"}, nil, mp))
	vv := vector.NewVec(types.New(types.T_int32))
	require.NoError(t, vector.AppendFixedList(vv, []int32{1, 1, 1, 1}, nil, mp))
	bat.SetVector(0, av)
	bat.SetVector(1, bv)
	bat.SetVector(2, vv)
	require.NoError(t, bat.SyncRowCount())

	keyBat, outs, err := Aggregate(proc, bat, []int32{0, 1},
		[]Request{{Col: 2, Op: agg.AggregateCount}}, false)
	require.NoError(t, err)
	require.Equal(t, 3, keyBat.RowCount())

	// (1,"x") appears twice
	ka := vector.MustFixedCol[int64](keyBat.GetVector(0))
	cnts := vector.MustFixedCol[int64](outs[0])
	total := int64(0)
	for i := range ka {
		total += cnts[i]
		if ka[i] == 1 && keyBat.GetVector(1).GetStringAt(i) == "x" {
			require.Equal(t, int64(2), cnts[i])
		}
	}
	require.Equal(t, int64(4), total)
	keyBat.Clean(mp)
	outs[0].Free(mp)
}

func TestInvalidRequests(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()
	mp := proc.Mp()

	bat := twoColBatch(t, mp, []int64{1}, nil, []int32{1}, nil)
	_, _, err := Aggregate(proc, bat, nil, nil, false)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	_, _, err = Aggregate(proc, bat, []int32{0},
		[]Request{{Col: 7, Op: agg.AggregateSum}}, false)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	// sum over varchar is rejected before any work
	sbat := batch.New([]string{"k", "s"})
	kv := vector.NewVec(types.New(types.T_int64))
	require.NoError(t, vector.AppendFixedList(kv, []int64{1}, nil, mp))
	sv := vector.NewVec(types.New(types.T_varchar))
	require.NoError(t, vector.AppendStringList(sv, []string{"a"}, nil, mp))
	sbat.SetVector(0, kv)
	sbat.SetVector(1, sv)
	require.NoError(t, sbat.SyncRowCount())
	_, _, err = Aggregate(proc, sbat, []int32{0},
		[]Request{{Col: 1, Op: agg.AggregateSum}}, false)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
}

func TestEmptyInput(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()
	mp := proc.Mp()

	bat := twoColBatch(t, mp, nil, nil, nil, nil)
	keyBat, outs, err := Aggregate(proc, bat, []int32{0},
		[]Request{{Col: 1, Op: agg.AggregateSum}}, false)
	require.NoError(t, err)
	require.Equal(t, 0, keyBat.RowCount())
	require.Equal(t, 0, outs[0].Length())
	keyBat.Clean(mp)
	outs[0].Free(mp)
}

func TestParallelMatchesSequential(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()
	mp := proc.Mp()

	const rows = 30000
	keys := make([]int64, rows)
	vals := make([]int32, rows)
	for i := range keys {
		keys[i] = int64(i % 100)
		vals[i] = int32(i)
	}
	bat := twoColBatch(t, mp, keys, nil, vals, nil)

	// rows exceeds the parallel threshold, so this run fans out
	keyBat, outs, err := Aggregate(proc, bat, []int32{0}, []Request{
		{Col: 1, Op: agg.AggregateSum},
		{Col: 1, Op: agg.AggregateMin},
		{Col: 1, Op: agg.AggregateCount},
	}, false)
	require.NoError(t, err)
	require.Equal(t, 100, keyBat.RowCount())

	sums := groupsOf[int64](t, keyBat, outs[0])
	mins := groupsOf[int32](t, keyBat, outs[1])
	cnts := groupsOf[int64](t, keyBat, outs[2])
	for k := int64(0); k < 100; k++ {
		var wantSum int64
		for i := int(k); i < rows; i += 100 {
			wantSum += int64(i)
		}
		require.Equal(t, wantSum, sums[k], "key %d", k)
		require.Equal(t, int32(k), mins[k])
		require.Equal(t, int64(rows/100), cnts[k])
	}
	keyBat.Clean(mp)
	for _, o := range outs {
		o.Free(mp)
	}
}

func TestDistinctKeysMatchInput(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()
	mp := proc.Mp()

	keys := []int64{5, 3, 5, 9, 3, 5}
	bat := twoColBatch(t, mp, keys, nil, []int32{1, 1, 1, 1, 1, 1}, nil)

	keyBat, outs, err := Aggregate(proc, bat, []int32{0},
		[]Request{{Col: 1, Op: agg.AggregateCount}}, false)
	require.NoError(t, err)

	got := append([]int64(nil), vector.MustFixedCol[int64](keyBat.GetVector(0))...)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	require.Equal(t, []int64{3, 5, 9}, got)
	keyBat.Clean(mp)
	outs[0].Free(mp)
}
