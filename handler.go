// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package sela

import (
	"fmt"
	"io"
	"os"

	"sela.dev/pkg/internal/lua"
)

// A HandlerFunc receives every error a session intercepts.
// code is one of the lua.Status* values.
// ex is non-nil only when the failure originated
// from a Go error or panic that unwound out of a Go callback
// invoked by the VM; a handler may rethrow such a failure
// by panicking with it.
// Nothing else in this package throws past the VM boundary.
type HandlerFunc func(code int, msg string, ex error)

// An ExceptionHandler is the replaceable error sink of a session.
// Installing a new handler fully replaces the previous one;
// there is no chaining.
type ExceptionHandler struct {
	fn HandlerFunc
}

// NewExceptionHandler returns a handler invoking fn.
func NewExceptionHandler(fn HandlerFunc) *ExceptionHandler {
	return &ExceptionHandler{fn: fn}
}

// NewPrintHandler returns the default handler:
// it prints the message to w and continues.
// If w is nil, standard output is used.
func NewPrintHandler(w io.Writer) *ExceptionHandler {
	if w == nil {
		w = os.Stdout
	}
	return &ExceptionHandler{fn: func(code int, msg string, ex error) {
		fmt.Fprintln(w, msg)
	}}
}

// Handle invokes the handler with an already extracted message.
func (h *ExceptionHandler) Handle(code int, msg string, ex error) {
	if h == nil || h.fn == nil {
		return
	}
	h.fn(code, msg, ex)
}

// HandleTopOfStack invokes the handler
// with the error message a failed protected call left
// on top of the VM stack.
// If the top of the stack holds no string,
// a generic message is used instead.
// The message is not popped.
func (h *ExceptionHandler) HandleTopOfStack(code int, l *lua.State, ex error) {
	msg := "an unknown error has occurred"
	if l != nil && l.Top() > 0 {
		if s, ok := l.ToString(-1); ok {
			msg = s
		}
	}
	h.Handle(code, msg, ex)
}
