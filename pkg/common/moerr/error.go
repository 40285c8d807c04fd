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
)

const (
	// Ok is not an error.
	Ok uint16 = 0

	// Group 1: internal errors.  These are invariant violations that
	// should be unreachable given correct argument checking; they are
	// not recoverable and terminate the operation.
	ErrInternal uint16 = 20101
	ErrNYI      uint16 = 20102
	ErrOOM      uint16 = 20103

	// Group 2: numeric and functions.
	ErrDivByZero  uint16 = 20200
	ErrOutOfRange uint16 = 20201
	ErrInvalidArg uint16 = 20203

	// Group 3: invalid input.  Malformed arguments detected before any
	// work is launched; always surfaced synchronously to the caller.
	ErrBadConfig    uint16 = 20300
	ErrInvalidInput uint16 = 20301

	// Group 4: unexpected state.
	ErrInvalidState uint16 = 20400
	ErrEmptyVector  uint16 = 20404
	ErrTypeMismatch uint16 = 20405
)

type Error struct {
	code    uint16
	message string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func newError(code uint16, msg string) *Error {
	return &Error{code: code, message: msg}
}

// IsMoErrCode reports whether err is a moerr with the given code.
func IsMoErrCode(err error, code uint16) bool {
	if err == nil {
		return code == Ok
	}
	me, ok := err.(*Error)
	if !ok {
		return false
	}
	return me.code == code
}

func NewInternalErrorNoCtx(msg string, args ...any) *Error {
	return newError(ErrInternal, "internal error: "+fmt.Sprintf(msg, args...))
}

func NewOOMNoCtx() *Error {
	return newError(ErrOOM, "out of memory")
}

func NewOutOfRangeNoCtx(typ string, msg string, args ...any) *Error {
	return newError(ErrOutOfRange,
		fmt.Sprintf("data out of range: data type %s, ", typ)+fmt.Sprintf(msg, args...))
}

func NewInvalidArgNoCtx(arg string, val any) *Error {
	return newError(ErrInvalidArg, fmt.Sprintf("invalid argument %s, bad value %v", arg, val))
}

func NewBadConfigNoCtx(msg string, args ...any) *Error {
	return newError(ErrBadConfig, "invalid configuration: "+fmt.Sprintf(msg, args...))
}

func NewInvalidInputNoCtx(msg string, args ...any) *Error {
	return newError(ErrInvalidInput, "invalid input: "+fmt.Sprintf(msg, args...))
}

func NewInvalidStateNoCtx(msg string, args ...any) *Error {
	return newError(ErrInvalidState, "invalid state: "+fmt.Sprintf(msg, args...))
}

func NewTypeMismatchNoCtx(expected, got string) *Error {
	return newError(ErrTypeMismatch, fmt.Sprintf("type mismatch: expected %s, got %s", expected, got))
}
