// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

// Names of the standard libraries as passed to [Require].
const (
	GName = "_G"

	DebugLibraryName  = "debug"
	IOLibraryName     = "io"
	JSONLibraryName   = "json"
	MathLibraryName   = "math"
	OSLibraryName     = "os"
	StringLibraryName = "string"
	TableLibraryName  = "table"
)

// StdlibOptions holds the parameters for [OpenLibraries].
type StdlibOptions struct {
	Base  *BaseOptions
	IO    *IOOptions
	Debug *DebugOptions
}

// OpenLibraries opens all standard libraries into the state,
// each stored as a global under its library name.
func OpenLibraries(l *State, opts *StdlibOptions) error {
	if opts == nil {
		opts = new(StdlibOptions)
	}
	libs := []struct {
		name  string
		openf Function
	}{
		{GName, NewOpenBase(opts.Base)},
		{StringLibraryName, OpenString},
		{TableLibraryName, OpenTable},
		{MathLibraryName, OpenMath},
		{OSLibraryName, OpenOS},
		{IOLibraryName, NewOpenIO(opts.IO)},
		{DebugLibraryName, NewOpenDebug(opts.Debug)},
		{JSONLibraryName, OpenJSON},
	}
	for _, lib := range libs {
		if err := Require(l, lib.name, true, lib.openf); err != nil {
			return err
		}
		l.Pop(1)
	}
	return nil
}
