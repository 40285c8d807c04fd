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

package types

// VarlenaSize is the fixed in-vector width of a varlen descriptor.
const VarlenaSize = 8

// Varlena is the fixed-size descriptor of a variable-length element.
// The bytes themselves live in the owning vector's area buffer.
type Varlena struct {
	Offset uint32
	Length uint32
}

// GetByteSlice returns the element bytes out of the given area.
func (v Varlena) GetByteSlice(area []byte) []byte {
	return area[v.Offset : v.Offset+v.Length]
}

// GetString returns the element as a string, copying out of area.
func (v Varlena) GetString(area []byte) string {
	return string(v.GetByteSlice(area))
}
