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
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vexdb/vex/pkg/common/mpool"
	"github.com/vexdb/vex/pkg/container/types"
)

func TestAppendFixed(t *testing.T) {
	mp := mpool.MustNewZero()
	v := NewVec(types.New(types.T_int64))
	require.NoError(t, AppendFixed[int64](v, 10, false, mp))
	require.NoError(t, AppendFixed[int64](v, 0, true, mp))
	require.NoError(t, AppendFixed[int64](v, -3, false, mp))

	require.Equal(t, 3, v.Length())
	require.Equal(t, []int64{10, 0, -3}, MustFixedCol[int64](v))
	require.False(t, v.IsNull(0))
	require.True(t, v.IsNull(1))
	require.False(t, v.IsNull(2))

	v.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestAppendFixedList(t *testing.T) {
	mp := mpool.MustNewZero()
	v := NewVec(types.New(types.T_int32))
	require.NoError(t, AppendFixedList(v, []int32{2, 2, 9, 4, 3}, []uint64{2}, mp))

	require.Equal(t, 5, v.Length())
	require.Equal(t, []int32{2, 2, 0, 4, 3}, MustFixedCol[int32](v))
	require.True(t, v.IsNull(2))
	v.Free(mp)
}

func TestAppendBytes(t *testing.T) {
	mp := mpool.MustNewZero()
	v := NewVec(types.New(types.T_varchar))
	require.NoError(t, AppendBytes(v, []byte("alpha"), false, mp))
	require.NoError(t, AppendBytes(v, nil, true, mp))
	require.NoError(t, AppendBytes(v, []byte("b"), false, mp))

	require.Equal(t, 3, v.Length())
	require.Equal(t, "alpha", v.GetStringAt(0))
	require.True(t, v.IsNull(1))
	require.Equal(t, "b", v.GetStringAt(2))

	// appending bytes to a numeric vector is rejected
	w := NewVec(types.New(types.T_int8))
	require.Error(t, AppendBytes(w, []byte("x"), false, mp))
	v.Free(mp)
}

func TestGatherFixed(t *testing.T) {
	mp := mpool.MustNewZero()
	src := NewVec(types.New(types.T_int64))
	require.NoError(t, AppendFixedList(src, []int64{10, 20, 30, 40}, []uint64{1}, mp))

	out, err := Gather(src, []int64{3, NullRow, 0, 1, 3}, mp)
	require.NoError(t, err)
	require.Equal(t, []int64{40, 0, 10, 0, 40}, MustFixedCol[int64](out))
	require.True(t, out.IsNull(1))  // no source row
	require.True(t, out.IsNull(3))  // null source row
	require.False(t, out.IsNull(4))

	src.Free(mp)
	out.Free(mp)
}

func TestGatherBytes(t *testing.T) {
	mp := mpool.MustNewZero()
	src := NewVec(types.New(types.T_varchar))
	require.NoError(t, AppendStringList(src, []string{"a", "bb", "ccc"}, nil, mp))

	out, err := Gather(src, []int64{2, NullRow, 0}, mp)
	require.NoError(t, err)
	require.Equal(t, "ccc", out.GetStringAt(0))
	require.True(t, out.IsNull(1))
	require.Equal(t, "a", out.GetStringAt(2))

	src.Free(mp)
	out.Free(mp)
}

func TestGatherOutOfRange(t *testing.T) {
	mp := mpool.MustNewZero()
	src := NewVec(types.New(types.T_int64))
	require.NoError(t, AppendFixed[int64](src, 1, false, mp))

	_, err := Gather(src, []int64{5}, mp)
	require.Error(t, err)
	src.Free(mp)
}

func TestGatherCoalesce(t *testing.T) {
	mp := mpool.MustNewZero()
	b := NewVec(types.New(types.T_int64))
	require.NoError(t, AppendFixedList(b, []int64{1, 2, 3}, nil, mp))
	p := NewVec(types.New(types.T_int64))
	require.NoError(t, AppendFixedList(p, []int64{7, 8, 9}, nil, mp))

	// row 0 from build, row 1 from probe, row 2 from neither
	out, err := GatherCoalesce(b, p, []int64{1, NullRow, NullRow}, []int64{1, 2, NullRow}, mp)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 9, 0}, MustFixedCol[int64](out))
	require.False(t, out.IsNull(0))
	require.False(t, out.IsNull(1))
	require.True(t, out.IsNull(2))

	b.Free(mp)
	p.Free(mp)
	out.Free(mp)
}

func TestMarshalRoundTrip(t *testing.T) {
	mp := mpool.MustNewZero()
	v := NewVec(types.New(types.T_varchar))
	require.NoError(t, AppendStringList(v, []string{"aa", "", "ccc"}, []uint64{1}, mp))

	data, err := v.MarshalBinary()
	require.NoError(t, err)

	w := NewVec(types.New(types.T_varchar))
	require.NoError(t, w.UnmarshalBinary(data, mp))
	require.Equal(t, 3, w.Length())
	require.Equal(t, "aa", w.GetStringAt(0))
	require.True(t, w.IsNull(1))
	require.Equal(t, "ccc", w.GetStringAt(2))

	v.Free(mp)
	w.Free(mp)
}

func TestPreExtend(t *testing.T) {
	mp := mpool.MustNewZero()
	v := NewVec(types.New(types.T_float64))
	require.NoError(t, v.PreExtend(100, mp))
	require.GreaterOrEqual(t, v.Capacity(), 100)
	require.Equal(t, 0, v.Length())
	v.Free(mp)
}
