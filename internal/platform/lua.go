package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// InjectPlatformTable exposes desc to Lua as a read-only global "platform"
// table. Call it before running any catalog code.
func InjectPlatformTable(L *lua.LState, desc *Descriptor) error {
	platformTable := L.NewTable()

	L.SetField(platformTable, "os", lua.LString(desc.Family))
	L.SetField(platformTable, "arch", lua.LString(desc.Arch))
	L.SetField(platformTable, "arch_raw", lua.LString(desc.ArchRaw))

	L.SetField(platformTable, "is_linux", lua.LBool(desc.IsLinux()))
	L.SetField(platformTable, "is_macos", lua.LBool(desc.IsMacOS()))
	L.SetField(platformTable, "is_windows", lua.LBool(desc.IsWindows()))
	L.SetField(platformTable, "is_amd64", lua.LBool(desc.IsAMD64()))
	L.SetField(platformTable, "is_arm64", lua.LBool(desc.IsARM64()))
	L.SetField(platformTable, "is_apple_silicon", lua.LBool(desc.IsAppleSilicon()))

	if desc.IsLinux() && desc.Distro != "" {
		distroTable := L.NewTable()
		L.SetField(distroTable, "id", lua.LString(desc.Distro))
		L.SetField(distroTable, "family", lua.LString(desc.DistroFamily))
		L.SetField(distroTable, "version", lua.LString(desc.DistroVersion))
		L.SetField(platformTable, "distro", distroTable)
	} else {
		L.SetField(platformTable, "distro", lua.LNil)
	}

	// when(cond, value) returns value if cond is true, nil otherwise
	whenFunc := L.NewFunction(func(L *lua.LState) int {
		cond := L.CheckBool(1)
		value := L.Get(2)
		if cond {
			L.Push(value)
		} else {
			L.Push(lua.LNil)
		}
		return 1
	})
	L.SetField(platformTable, "when", whenFunc)

	L.SetGlobal("platform", makeReadOnly(L, platformTable))

	return nil
}

// makeReadOnly wraps table in a proxy whose metatable forwards reads and
// rejects writes.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only and cannot be modified")
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
