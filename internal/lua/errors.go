// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"errors"
	"fmt"
)

// Status codes reported by [Error],
// mirroring the constants of the Lua C API.
const (
	StatusOK           = 0
	StatusYield        = 1
	StatusRuntimeError = 2
	StatusSyntaxError  = 3
	StatusMemoryError  = 4
	StatusHandlerError = 5
	StatusFileError    = 6
)

// Error is an error from loading or running a chunk,
// carrying one of the Status* codes.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode classifies an error returned by [State.Load],
// [State.Call], or the Do* helpers.
// StatusCode(nil) returns [StatusOK];
// errors of unknown provenance report [StatusRuntimeError].
func StatusCode(err error) int {
	if err == nil {
		return StatusOK
	}
	var statusErr *Error
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return StatusRuntimeError
}

// A CallbackError records a Go panic that unwound out of a [Function]
// while the interpreter was invoking it inside a protected call.
// It is distinct from an error returned by the function,
// which is treated as an ordinary Lua error.
type CallbackError struct {
	// Value is the value that was passed to panic.
	Value any
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("panic in Go callback: %v", e.Value)
}

// errorObject wraps a Lua value raised by error() or a runtime fault.
type errorObject struct {
	value any
}

func (obj *errorObject) Error() string {
	s, ok := toString(obj.value)
	if !ok {
		return fmt.Sprintf("(error object is a %v value)", valueType(obj.value))
	}
	return s
}

func newRuntimeError(format string, args ...any) error {
	return &errorObject{value: fmt.Sprintf(format, args...)}
}

// errorToValue converts a Go error to a Lua value
// for presentation on the stack or to pcall.
func errorToValue(err error) any {
	if err == nil {
		return nil
	}
	var obj *errorObject
	if errors.As(err, &obj) {
		return obj.value
	}
	return err.Error()
}
