// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package sela

import "sela.dev/pkg/internal/lua"

// A StackGuard records the VM stack depth at creation
// and restores it on [StackGuard.Restore].
// It is the safety net around every operation that touches the stack:
//
//	defer sela.SaveStack(l).Restore()
//
// Values an operation must keep have to be copied off the VM stack
// before the guard releases.
type StackGuard struct {
	l   *lua.State
	top int
}

// SaveStack captures the current stack depth of l.
// A nil state produces an inert guard.
func SaveStack(l *lua.State) StackGuard {
	if l == nil {
		return StackGuard{}
	}
	return StackGuard{l: l, top: l.Top()}
}

// Restore sets the stack back to the depth recorded by [SaveStack].
// Restore cannot fail and is safe to call on an inert guard.
func (g StackGuard) Restore() {
	if g.l == nil {
		return
	}
	g.l.SetTop(g.top)
}
