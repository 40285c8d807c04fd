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
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vexdb/vex/pkg/sql/colexec/agg"
	"github.com/vexdb/vex/pkg/vm/process"
)

func TestSpillManagerRoundTrip(t *testing.T) {
	sm := NewSpillManager(t.TempDir(), 1)
	require.True(t, sm.Enabled())
	require.Equal(t, 0, sm.Count())

	frames := [][]byte{[]byte("alpha"), {}, []byte("gamma-gamma")}
	require.NoError(t, sm.Write(frames))
	require.NoError(t, sm.Write([][]byte{[]byte("second file")}))
	require.Equal(t, 2, sm.Count())

	got, err := sm.Read(0)
	require.NoError(t, err)
	require.Equal(t, 3, len(got))
	require.Equal(t, []byte("alpha"), got[0])
	require.Equal(t, 0, len(got[1]))
	require.Equal(t, []byte("gamma-gamma"), got[2])

	got, err = sm.Read(1)
	require.NoError(t, err)
	require.Equal(t, []byte("second file"), got[0])

	_, err = sm.Read(5)
	require.Error(t, err)

	sm.Cleanup()
	require.Equal(t, 0, sm.Count())
}

func TestSpillDisabled(t *testing.T) {
	var sm *SpillManager
	require.False(t, sm.Enabled())
	require.Equal(t, 0, sm.Count())
	require.False(t, NewSpillManager("", 0).Enabled())
}

func TestAggregateWithSpill(t *testing.T) {
	proc := process.NewTestProcess()
	defer proc.Free()
	mp := proc.Mp()

	const rows = 5000
	keys := make([]int64, rows)
	vals := make([]int32, rows)
	for i := range keys {
		keys[i] = int64(i % 1000)
		vals[i] = int32(i % 7)
	}
	bat := twoColBatch(t, mp, keys, nil, vals, nil)

	reqs := []Request{
		{Col: 1, Op: agg.AggregateSum},
		{Col: 1, Op: agg.AggregateAvg},
	}

	// reference run without spilling
	wantKeys, wantOuts, err := Aggregate(proc, bat, []int32{0}, reqs, false)
	require.NoError(t, err)

	// spill run: a zero-byte threshold forces a spill on every chunk
	g := New(proc, []int32{0}, reqs, false)
	sm := NewSpillManager(t.TempDir(), 1)
	sm.limit = 1 // bytes, so every chunk spills
	g.SetSpill(sm)
	gotKeys, gotOuts, err := g.Aggregate(bat)
	require.NoError(t, err)
	require.Equal(t, 0, sm.Count()) // merged and cleaned up

	require.Equal(t, wantKeys.RowCount(), gotKeys.RowCount())
	wantSums := groupsOf[int64](t, wantKeys, wantOuts[0])
	gotSums := groupsOf[int64](t, gotKeys, gotOuts[0])
	require.Equal(t, wantSums, gotSums)
	wantAvgs := groupsOf[float64](t, wantKeys, wantOuts[1])
	gotAvgs := groupsOf[float64](t, gotKeys, gotOuts[1])
	require.Equal(t, wantAvgs, gotAvgs)

	wantKeys.Clean(mp)
	gotKeys.Clean(mp)
	for _, o := range wantOuts {
		o.Free(mp)
	}
	for _, o := range gotOuts {
		o.Free(mp)
	}
}
