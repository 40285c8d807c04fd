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

package moerr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	err := NewInvalidArgNoCtx("key column", -1)
	require.True(t, IsMoErrCode(err, ErrInvalidArg))
	require.False(t, IsMoErrCode(err, ErrInternal))
	require.Contains(t, err.Error(), "key column")

	require.True(t, IsMoErrCode(NewInternalErrorNoCtx("hash table is full"), ErrInternal))
	require.True(t, IsMoErrCode(NewOOMNoCtx(), ErrOOM))
	require.True(t, IsMoErrCode(nil, Ok))
	require.False(t, IsMoErrCode(fmt.Errorf("plain"), ErrInternal))
}
