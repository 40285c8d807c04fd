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

import (
	"fmt"
)

// T is the type tag of a column element.
type T uint8

const (
	T_any T = iota
	T_bool

	T_int8
	T_int16
	T_int32
	T_int64

	T_uint8
	T_uint16
	T_uint32
	T_uint64

	T_float32
	T_float64

	T_varchar
)

// Type describes the element type of a vector.
type Type struct {
	Oid T
	// Size is the fixed element width in bytes, -1 for varlen types.
	Size int32
}

func New(oid T) Type {
	return Type{Oid: oid, Size: int32(oid.TypeLen())}
}

func (t Type) String() string {
	return t.Oid.String()
}

// TypeSize returns the in-vector element width.  Varlen elements are
// stored as fixed-size Varlena descriptors.
func (t Type) TypeSize() int {
	if t.Oid == T_varchar {
		return VarlenaSize
	}
	return int(t.Size)
}

// IsFixedLen reports whether values are stored inline in the data buffer.
func (t Type) IsFixedLen() bool {
	return t.Oid.FixedLength() >= 0
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_bool:
		return "BOOL"
	case T_int8:
		return "TINYINT"
	case T_int16:
		return "SMALLINT"
	case T_int32:
		return "INT"
	case T_int64:
		return "BIGINT"
	case T_uint8:
		return "TINYINT UNSIGNED"
	case T_uint16:
		return "SMALLINT UNSIGNED"
	case T_uint32:
		return "INT UNSIGNED"
	case T_uint64:
		return "BIGINT UNSIGNED"
	case T_float32:
		return "FLOAT"
	case T_float64:
		return "DOUBLE"
	case T_varchar:
		return "VARCHAR"
	}
	return fmt.Sprintf("unexpected type tag %d", t)
}

// TypeLen returns the logical width of the type, -1 for varlen.
func (t T) TypeLen() int {
	switch t {
	case T_bool, T_int8, T_uint8:
		return 1
	case T_int16, T_uint16:
		return 2
	case T_int32, T_uint32, T_float32:
		return 4
	case T_int64, T_uint64, T_float64:
		return 8
	case T_varchar:
		return -1
	}
	return 0
}

// FixedLength is TypeLen for fixed types, -1 otherwise.
func (t T) FixedLength() int {
	return t.TypeLen()
}

// IsInteger reports whether t is a signed or unsigned integer type.
func (t T) IsInteger() bool {
	return t >= T_int8 && t <= T_uint64
}

// IsSignedInt reports whether t is a signed integer type.
func (t T) IsSignedInt() bool {
	return t >= T_int8 && t <= T_int64
}

// IsUnsignedInt reports whether t is an unsigned integer type.
func (t T) IsUnsignedInt() bool {
	return t >= T_uint8 && t <= T_uint64
}

// IsFloat reports whether t is a floating point type.
func (t T) IsFloat() bool {
	return t == T_float32 || t == T_float64
}

// IsNumeric reports whether t supports arithmetic aggregation.
func (t T) IsNumeric() bool {
	return t.IsInteger() || t.IsFloat()
}

// FixedSizeT constrains the element types stored inline in vectors.
type FixedSizeT interface {
	bool | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64 | Varlena
}

// OrderedT constrains the element types comparable with < and >.
type OrderedT interface {
	int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}
