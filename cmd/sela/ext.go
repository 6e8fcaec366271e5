// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package main

import (
	"os"

	"github.com/google/uuid"

	"sela.dev/pkg/internal/lua"
)

// openExt loads the host extension library:
// small host-side helpers exposed to scripts
// beyond the standard set.
func openExt(l *lua.State) (int, error) {
	funcs := map[string]lua.Function{
		"uuid":     extUUID,
		"hostname": extHostname,
	}
	if err := lua.NewLib(l, funcs); err != nil {
		return 0, err
	}
	return 1, nil
}

// extUUID returns a fresh random UUID string.
func extUUID(l *lua.State) (int, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return 0, err
	}
	l.PushString(u.String())
	return 1, nil
}

func extHostname(l *lua.State) (int, error) {
	name, err := os.Hostname()
	if err != nil {
		l.PushNil()
		l.PushString(err.Error())
		return 2, nil
	}
	l.PushString(name)
	return 1, nil
}
