// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package sela

import (
	"errors"

	"sela.dev/pkg/internal/lua"
)

// statusMapping maps the abstract error taxonomy of this package
// (Ok, SyntaxError, FileError, RuntimeError)
// to the status codes of the embedded VM.
// Before version 5.2 the success sentinel was the bare number zero;
// from 5.2 on it is the named StatusOK constant.
// The mapping is resolved once so that supporting another VM version
// stays a change local to this file.
type statusMapping struct {
	ok           int
	syntaxError  int
	fileError    int
	runtimeError int
}

var statuses = resolveStatuses(lua.VersionNum)

func resolveStatuses(versionNum int) statusMapping {
	m := statusMapping{
		syntaxError:  lua.StatusSyntaxError,
		fileError:    lua.StatusFileError,
		runtimeError: lua.StatusRuntimeError,
	}
	if versionNum >= 502 {
		m.ok = lua.StatusOK
	} else {
		m.ok = 0
	}
	return m
}

// classify maps an error from the VM to an abstract status code.
// Any unrecognized failure is treated as a runtime error.
func classify(err error) int {
	if err == nil {
		return statuses.ok
	}
	switch lua.StatusCode(err) {
	case lua.StatusOK:
		return statuses.ok
	case lua.StatusSyntaxError:
		return statuses.syntaxError
	case lua.StatusFileError:
		return statuses.fileError
	default:
		return statuses.runtimeError
	}
}

// capturedException extracts the cross-boundary payload of err:
// a Go error or panic that unwound out of a Go callback
// invoked by the VM.
// It returns nil for VM-originated errors.
func capturedException(err error) error {
	var cbErr *lua.CallbackError
	if errors.As(err, &cbErr) {
		return cbErr
	}
	return nil
}
