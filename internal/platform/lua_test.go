package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestInjectPlatformTable_Linux(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	desc := &Descriptor{
		Family:        FamilyLinux,
		Arch:          ArchAMD64,
		ArchRaw:       "x86_64",
		Distro:        "ubuntu",
		DistroFamily:  "debian",
		DistroVersion: "22.04",
	}
	require.NoError(t, InjectPlatformTable(L, desc))

	tests := []struct {
		name string
		code string
		want lua.LValue
	}{
		{"os", `return platform.os`, lua.LString("linux")},
		{"arch", `return platform.arch`, lua.LString("amd64")},
		{"arch_raw", `return platform.arch_raw`, lua.LString("x86_64")},
		{"is_linux", `return platform.is_linux`, lua.LTrue},
		{"is_macos", `return platform.is_macos`, lua.LFalse},
		{"is_windows", `return platform.is_windows`, lua.LFalse},
		{"is_amd64", `return platform.is_amd64`, lua.LTrue},
		{"is_apple_silicon", `return platform.is_apple_silicon`, lua.LFalse},
		{"distro.id", `return platform.distro.id`, lua.LString("ubuntu")},
		{"when true", `return platform.when(platform.is_linux, "x")`, lua.LString("x")},
		{"when false", `return platform.when(platform.is_windows, "x")`, lua.LNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, L.DoString(tt.code))
			got := L.Get(-1)
			L.Pop(1)

			assert.Equal(t, tt.want.Type(), got.Type())
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestInjectPlatformTable_WindowsHasNoDistro(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	require.NoError(t, InjectPlatformTable(L, &Descriptor{Family: FamilyWindows, Arch: ArchAMD64}))
	require.NoError(t, L.DoString(`return platform.distro`))
	assert.Equal(t, lua.LTNil, L.Get(-1).Type())
}

func TestInjectPlatformTable_ReadOnly(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	require.NoError(t, InjectPlatformTable(L, &Descriptor{Family: FamilyLinux, Arch: ArchARM64}))

	err := L.DoString(`platform.os = "windows"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")

	err = L.DoString(`setmetatable(platform, {})`)
	require.Error(t, err, "metatable must be protected")
}
