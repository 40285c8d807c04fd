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

package hashtable

import (
	"github.com/twmb/murmur3"
	"github.com/vexdb/vex/pkg/container/types"
)

// StrKeyPadding pads serialized string keys so short keys of different
// lengths never alias byte-for-byte.
const StrKeyPadding = 16

// Int64Hash hashes one packed 8-byte key.
func Int64Hash(key uint64) uint64 {
	return murmur3.Sum64(types.EncodeUint64(&key))
}

// Int64BatchHash fills hashes[i] for keys[:n].
func Int64BatchHash(keys []uint64, hashes []uint64, n int) {
	for i := 0; i < n; i++ {
		hashes[i] = Int64Hash(keys[i])
	}
}

// BytesHashState condenses a variable-length key into a 192-bit state.
// Two keys are treated as equal iff their states are equal; the state
// replaces the key bytes in the table, which keeps cells fixed-width.
func BytesHashState(key []byte) [3]uint64 {
	h1, h2 := murmur3.Sum128(key)
	return [3]uint64{h1, h2, murmur3.SeedSum64(h1, key)}
}

// BytesBatchGenHashStates fills states[i] for keys[:n].
func BytesBatchGenHashStates(keys [][]byte, states [][3]uint64, n int) {
	for i := 0; i < n; i++ {
		states[i] = BytesHashState(keys[i])
	}
}
