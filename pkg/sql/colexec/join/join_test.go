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

package join

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vexdb/vex/pkg/common/hashmap"
	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/container/batch"
	"github.com/vexdb/vex/pkg/container/types"
	"github.com/vexdb/vex/pkg/container/vector"
	"github.com/vexdb/vex/pkg/sql/colexec/hashbuild"
	"github.com/vexdb/vex/pkg/vm/process"
)

type pair struct {
	b, p int64
}

func sortedPairs(res *Result) []pair {
	out := make([]pair, res.Len())
	for i := range out {
		out[i] = pair{res.BuildSels[i], res.ProbeSels[i]}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].b != out[j].b {
			return out[i].b < out[j].b
		}
		return out[i].p < out[j].p
	})
	return out
}

func keyBatch(t *testing.T, proc *process.Process, keys []int64, nullRows []uint64) *batch.Batch {
	bat := batch.New([]string{"k"})
	v := vector.NewVec(types.New(types.T_int64))
	require.NoError(t, vector.AppendFixedList(v, keys, nullRows, proc.Mp()))
	bat.SetVector(0, v)
	require.NoError(t, bat.SyncRowCount())
	return bat
}

func build(t *testing.T, proc *process.Process, bat *batch.Batch, hasNull bool) *hashmap.JoinMap {
	jm, err := hashbuild.BuildHashTable(proc, bat, []int32{0}, hasNull)
	require.NoError(t, err)
	return jm
}

func TestInnerJoinGold(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()

	buildBat := keyBatch(t, proc, []int64{2, 2, 0, 4, 3}, []uint64{3})
	probeBat := keyBatch(t, proc, []int64{3, 1, 2, 0, 3}, nil)

	jm := build(t, proc, buildBat, true)
	defer jm.Free()

	res, err := ProbeInner(proc, jm, probeBat, []int32{0})
	require.NoError(t, err)

	gold := []pair{{0, 2}, {1, 2}, {2, 3}, {4, 0}, {4, 4}}
	require.Equal(t, gold, sortedPairs(res))
}

func TestInnerJoinCardinality(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()

	// key 9 occurs 3 times on the build side and 2 on the probe side:
	// the join emits all 6 combinations
	buildBat := keyBatch(t, proc, []int64{9, 9, 9, 1}, nil)
	probeBat := keyBatch(t, proc, []int64{9, 9, 2}, nil)

	jm := build(t, proc, buildBat, false)
	defer jm.Free()

	res, err := ProbeInner(proc, jm, probeBat, []int32{0})
	require.NoError(t, err)
	require.Equal(t, 6, res.Len())
	gold := []pair{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}, {2, 1}}
	require.Equal(t, gold, sortedPairs(res))
}

func TestLeftJoinCompleteness(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()

	buildBat := keyBatch(t, proc, []int64{1, 2}, nil)
	probeBat := keyBatch(t, proc, []int64{2, 7, 1, 8}, nil)

	jm := build(t, proc, buildBat, false)
	defer jm.Free()

	res, err := ProbeLeft(proc, jm, probeBat, []int32{0})
	require.NoError(t, err)
	require.Equal(t, 4, res.Len())

	// every probe row appears exactly once here; misses carry NoMatch
	seen := map[int64]int64{}
	for i := range res.ProbeSels {
		seen[res.ProbeSels[i]] = res.BuildSels[i]
	}
	require.Len(t, seen, 4)
	require.Equal(t, int64(1), seen[0])
	require.Equal(t, NoMatch, seen[1])
	require.Equal(t, int64(0), seen[2])
	require.Equal(t, NoMatch, seen[3])
}

func TestFullJoin(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()

	buildBat := keyBatch(t, proc, []int64{1, 5, 3}, nil)
	probeBat := keyBatch(t, proc, []int64{3, 9}, nil)

	jm := build(t, proc, buildBat, false)
	defer jm.Free()

	res, err := ProbeFull(proc, jm, probeBat, []int32{0})
	require.NoError(t, err)

	// matched: (2,0); probe-only: 9; build-only: 1 and 5
	gold := []pair{{NoMatch, 1}, {0, NoMatch}, {1, NoMatch}, {2, 0}}
	require.Equal(t, gold, sortedPairs(res))
}

func TestEmptyShortCircuits(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()

	emptyBat := keyBatch(t, proc, nil, nil)
	someBat := keyBatch(t, proc, []int64{1, 2}, nil)

	// empty build: inner empty, left passes probe rows through
	jm := build(t, proc, emptyBat, false)
	res, err := ProbeInner(proc, jm, someBat, []int32{0})
	require.NoError(t, err)
	require.Equal(t, 0, res.Len())

	res, err = ProbeLeft(proc, jm, someBat, []int32{0})
	require.NoError(t, err)
	require.Equal(t, []pair{{NoMatch, 0}, {NoMatch, 1}}, sortedPairs(res))
	jm.Free()

	// empty probe: inner empty, full passes build rows through
	jm = build(t, proc, someBat, false)
	defer jm.Free()
	res, err = ProbeInner(proc, jm, emptyBat, []int32{0})
	require.NoError(t, err)
	require.Equal(t, 0, res.Len())

	res, err = ProbeFull(proc, jm, emptyBat, []int32{0})
	require.NoError(t, err)
	require.Equal(t, []pair{{0, NoMatch}, {1, NoMatch}}, sortedPairs(res))
}

func TestNullKeyPolicies(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()

	buildBat := keyBatch(t, proc, []int64{0, 6}, []uint64{0})
	probeBat := keyBatch(t, proc, []int64{0, 6}, []uint64{0})

	// nulls never match
	jm := build(t, proc, buildBat, false)
	res, err := ProbeInner(proc, jm, probeBat, []int32{0})
	require.NoError(t, err)
	require.Equal(t, []pair{{1, 1}}, sortedPairs(res))
	jm.Free()

	// nulls match each other
	jm = build(t, proc, buildBat, true)
	defer jm.Free()
	res, err = ProbeInner(proc, jm, probeBat, []int32{0})
	require.NoError(t, err)
	require.Equal(t, []pair{{0, 0}, {1, 1}}, sortedPairs(res))
}

func TestReprobeIdempotent(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()

	buildBat := keyBatch(t, proc, []int64{4, 4, 2}, nil)
	probeBat := keyBatch(t, proc, []int64{2, 4}, nil)

	jm := build(t, proc, buildBat, false)
	defer jm.Free()

	first, err := ProbeInner(proc, jm, probeBat, []int32{0})
	require.NoError(t, err)
	second, err := ProbeInner(proc, jm, probeBat, []int32{0})
	require.NoError(t, err)
	require.Equal(t, sortedPairs(first), sortedPairs(second))
}

func TestLargeProbeSampledEstimation(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()

	// probe is far larger than build, which flips estimation to the
	// sampling path; results must be exact regardless
	buildBat := keyBatch(t, proc, []int64{0, 1, 2, 3}, nil)
	probeKeys := make([]int64, 50000)
	for i := range probeKeys {
		probeKeys[i] = int64(i % 8)
	}
	probeBat := keyBatch(t, proc, probeKeys, nil)

	jm := build(t, proc, buildBat, false)
	defer jm.Free()

	res, err := ProbeInner(proc, jm, probeBat, []int32{0})
	require.NoError(t, err)
	// keys 0..3 each hit once; half of the probe rows match
	require.Equal(t, 25000, res.Len())
}

func TestMaterialize(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()
	mp := proc.Mp()

	buildBat := batch.New([]string{"k", "name"})
	bk := vector.NewVec(types.New(types.T_int64))
	require.NoError(t, vector.AppendFixedList(bk, []int64{1, 2}, nil, mp))
	bn := vector.NewVec(types.New(types.T_varchar))
	require.NoError(t, vector.AppendStringList(bn, []string{"one", "two"}, nil, mp))
	buildBat.SetVector(0, bk)
	buildBat.SetVector(1, bn)
	require.NoError(t, buildBat.SyncRowCount())

	probeBat := batch.New([]string{"k", "score"})
	pk := vector.NewVec(types.New(types.T_int64))
	require.NoError(t, vector.AppendFixedList(pk, []int64{2, 3}, nil, mp))
	ps := vector.NewVec(types.New(types.T_float64))
	require.NoError(t, vector.AppendFixedList(ps, []float64{2.5, 3.5}, nil, mp))
	probeBat.SetVector(0, pk)
	probeBat.SetVector(1, ps)
	require.NoError(t, probeBat.SyncRowCount())

	jm := build(t, proc, buildBat, false)
	defer jm.Free()

	res, err := ProbeFull(proc, jm, probeBat, []int32{0})
	require.NoError(t, err)

	out, err := Materialize(proc, res, buildBat, probeBat,
		[]int32{0}, []int32{0}, []int32{1}, []int32{1},
		[]CommonCol{{Build: 0, Probe: 0}})
	require.NoError(t, err)
	defer out.Clean(mp)

	require.Equal(t, []string{"k", "name", "score"}, out.Attrs)
	require.Equal(t, 3, out.RowCount())

	type outRow struct {
		k       int64
		kNull   bool
		name    string
		nmNull  bool
		score   float64
		scNull  bool
	}
	kCol := out.GetVector(0)
	nCol := out.GetVector(1)
	sCol := out.GetVector(2)
	rows := make([]outRow, out.RowCount())
	for i := range rows {
		rows[i] = outRow{
			k:      vector.GetFixedAt[int64](kCol, i),
			kNull:  kCol.IsNull(uint64(i)),
			nmNull: nCol.IsNull(uint64(i)),
			scNull: sCol.IsNull(uint64(i)),
		}
		if !rows[i].nmNull {
			rows[i].name = nCol.GetStringAt(i)
		}
		if !rows[i].scNull {
			rows[i].score = vector.GetFixedAt[float64](sCol, i)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].k < rows[j].k })

	// build-only row 1, matched row 2, probe-only row 3; the common
	// key column is populated from whichever side is present
	require.Equal(t, int64(1), rows[0].k)
	require.True(t, rows[0].scNull)
	require.Equal(t, "one", rows[0].name)
	require.Equal(t, int64(2), rows[1].k)
	require.Equal(t, "two", rows[1].name)
	require.Equal(t, 2.5, rows[1].score)
	require.Equal(t, int64(3), rows[2].k)
	require.True(t, rows[2].nmNull)
	require.Equal(t, 3.5, rows[2].score)
}

func TestMaterializeBadColumns(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()

	buildBat := keyBatch(t, proc, []int64{1}, nil)
	probeBat := keyBatch(t, proc, []int64{1}, nil)
	res := &Result{BuildSels: []int64{0}, ProbeSels: []int64{0}}

	_, err := Materialize(proc, res, buildBat, probeBat,
		[]int32{0}, []int32{0}, []int32{5}, nil, nil)
	require.Error(t, err)
	_, err = Materialize(proc, res, buildBat, probeBat,
		[]int32{0}, []int32{0}, nil, nil,
		[]CommonCol{{Build: 0, Probe: 9}})
	require.Error(t, err)
}

func TestMaterializeRejectsNonKeyCommon(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()
	mp := proc.Mp()

	mkBat := func() *batch.Batch {
		bat := batch.New([]string{"k", "score"})
		kv := vector.NewVec(types.New(types.T_int64))
		require.NoError(t, vector.AppendFixedList(kv, []int64{1, 2}, nil, mp))
		sv := vector.NewVec(types.New(types.T_float64))
		require.NoError(t, vector.AppendFixedList(sv, []float64{0.5, 1.5}, nil, mp))
		bat.SetVector(0, kv)
		bat.SetVector(1, sv)
		require.NoError(t, bat.SyncRowCount())
		return bat
	}
	buildBat, probeBat := mkBat(), mkBat()
	res := &Result{BuildSels: []int64{0, 1}, ProbeSels: []int64{0, 1}}

	// the score columns share a type but are not join keys, so the
	// pair must be rejected rather than coalesced
	_, err := Materialize(proc, res, buildBat, probeBat,
		[]int32{0}, []int32{0}, nil, nil,
		[]CommonCol{{Build: 1, Probe: 1}})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	// pairing the keys themselves stays valid
	out, err := Materialize(proc, res, buildBat, probeBat,
		[]int32{0}, []int32{0}, nil, nil,
		[]CommonCol{{Build: 0, Probe: 0}})
	require.NoError(t, err)
	out.Clean(mp)
}
