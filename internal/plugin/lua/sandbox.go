package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// blockedGlobals are base functions that load code from disk or strings.
var blockedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"module",
}

// installSandbox removes the blocked globals.
func installSandbox(L *lua.LState) {
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}
