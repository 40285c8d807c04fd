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

package mpool

import (
	"testing"

	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/stretchr/testify/require"
)

func TestAllocFree(t *testing.T) {
	mp := MustNewZero()
	bs, err := mp.Alloc(100)
	require.NoError(t, err)
	require.Equal(t, 100, len(bs))
	require.True(t, mp.CurrNB() >= 100)

	mp.Free(bs)
	require.Equal(t, int64(0), mp.CurrNB())
	require.True(t, mp.HighWaterMark() >= 100)
}

func TestAllocZero(t *testing.T) {
	mp := MustNewZero()
	bs, err := mp.Alloc(0)
	require.NoError(t, err)
	require.Nil(t, bs)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestCapEnforced(t *testing.T) {
	mp, err := New("capped", 1024)
	require.NoError(t, err)

	bs, err := mp.Alloc(512)
	require.NoError(t, err)

	_, err = mp.Alloc(1024)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))

	mp.Free(bs)
	bs2, err := mp.Alloc(1024)
	require.NoError(t, err)
	mp.Free(bs2)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestGrow(t *testing.T) {
	mp := MustNewZero()
	bs, err := mp.Alloc(8)
	require.NoError(t, err)
	copy(bs, "abcdefgh")

	bs, err = mp.Grow(bs, 64)
	require.NoError(t, err)
	require.Equal(t, 64, len(bs))
	require.Equal(t, "abcdefgh", string(bs[:8]))

	mp.Free(bs)
	require.Equal(t, int64(0), mp.CurrNB())
}
