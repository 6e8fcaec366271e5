// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package sela

import "sela.dev/pkg/internal/lua"

// Registry interns named references to VM values.
// A reference pins the value in the VM registry table
// so it survives independently of the globals that produced it.
// Each session exclusively owns one Registry.
type Registry struct {
	l    *lua.State
	refs map[string]int64
}

// NewRegistry returns a registry bound to the given VM handle.
func NewRegistry(l *lua.State) *Registry {
	return &Registry{l: l, refs: make(map[string]int64)}
}

// Bind rebinds the registry to another VM handle,
// dropping all cached references.
func (r *Registry) Bind(l *lua.State) {
	r.l = l
	r.refs = make(map[string]int64)
}

// Intern pops the value on top of the VM stack
// and caches a reference to it under name.
// An existing reference under the same name is released first.
func (r *Registry) Intern(name string) {
	if r == nil || r.l == nil {
		return
	}
	if old, ok := r.refs[name]; ok {
		r.l.Unref(old)
	}
	r.refs[name] = r.l.Ref()
}

// Push pushes the value cached under name onto the VM stack
// and reports whether such a reference exists.
// Nothing is pushed when the reference is absent.
func (r *Registry) Push(name string) bool {
	if r == nil || r.l == nil {
		return false
	}
	ref, ok := r.refs[name]
	if !ok {
		return false
	}
	r.l.PushRef(ref)
	return true
}

// Release drops the reference cached under name, if any.
func (r *Registry) Release(name string) {
	if r == nil || r.l == nil {
		return
	}
	if ref, ok := r.refs[name]; ok {
		r.l.Unref(ref)
		delete(r.refs, name)
	}
}

// Clear releases every cached reference.
func (r *Registry) Clear() {
	if r == nil || r.l == nil {
		return
	}
	for name, ref := range r.refs {
		r.l.Unref(ref)
		delete(r.refs, name)
	}
}
