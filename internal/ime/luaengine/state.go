package luaengine

import (
	lua "github.com/yuin/gopher-lua"
)

// newState creates a sandboxed Lua state.
func newState() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	openSafeLibraries(L)
	installSandbox(L)
	return L
}

// openSafeLibraries opens only the libraries engines need.
func openSafeLibraries(L *lua.LState) {
	lua.OpenPackage(L)
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// io, os and debug stay closed.
}

// installSandbox removes the loaders that could reach the file system and
// replaces require with a whitelist.
func installSandbox(L *lua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		L.SetField(pkg, "path", lua.LString(""))
		L.SetField(pkg, "cpath", lua.LString(""))
	}

	safeModules := map[string]bool{
		"string": true,
		"table":  true,
		"math":   true,
	}
	originalRequire := L.GetGlobal("require")

	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !safeModules[name] {
			L.RaiseError("module %q is not available", name)
			return 0
		}
		L.Push(originalRequire)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}
