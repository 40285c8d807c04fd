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

package nulls

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddContains(t *testing.T) {
	nsp := New()
	require.False(t, Any(nsp))
	require.False(t, Contains(nsp, 3))

	Add(nsp, 3, 7)
	require.True(t, Any(nsp))
	require.True(t, Contains(nsp, 3))
	require.True(t, Contains(nsp, 7))
	require.False(t, Contains(nsp, 4))
	require.Equal(t, 2, Length(nsp))
}

func TestNilSafety(t *testing.T) {
	var nsp *Nulls
	require.False(t, Any(nsp))
	require.False(t, Contains(nsp, 0))
	require.Equal(t, 0, Length(nsp))
	Add(nsp, 1) // no-op, must not panic
}

func TestSetAndIsSame(t *testing.T) {
	a := Build(1, 2)
	b := Build(2, 5)
	Set(a, b)
	require.Equal(t, []uint64{1, 2, 5}, a.ToArray())

	c := Build(1, 2, 5)
	require.True(t, a.IsSame(c))
	require.False(t, a.IsSame(b))
	require.True(t, New().IsSame(nil))
}

func TestShowRead(t *testing.T) {
	a := Build(0, 9, 1000)
	data, err := a.Show()
	require.NoError(t, err)

	b := New()
	require.NoError(t, b.Read(data))
	require.True(t, a.IsSame(b))
}
