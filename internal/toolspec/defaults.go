package toolspec

import (
	"github.com/embydev/embytools/internal/platform"
)

// Built-in tool names.
const (
	ARMToolchain = "arm-toolchain"
	OpenOCD      = "openocd"
	Renode       = "renode"
)

// DefaultVersions pins the statically resolved tools.
var DefaultVersions = map[string]string{
	ARMToolchain: "14.2.1-1.1",
	OpenOCD:      "0.12.0-6",
}

// xpackArchNames maps architectures to xPack asset naming.
var xpackArchNames = map[platform.Arch]string{
	platform.ArchAMD64: "x64",
	platform.ArchARM64: "arm64",
}

// Defaults returns the built-in tool specs in installation order.
func Defaults() []Spec {
	return []Spec{
		{
			Name:        ARMToolchain,
			Description: "xPack GNU Arm Embedded GCC cross-compiler",
			Subdir:      ARMToolchain,
			Resolution:  ResolutionStatic,
			Version:     DefaultVersions[ARMToolchain],
			URLTemplate: "https://github.com/xpack-dev-tools/arm-none-eabi-gcc-xpack/releases/download/" +
				"v{version}/xpack-arm-none-eabi-gcc-{version}-{os}-{arch}{ext}",
			ArchNames: xpackArchNames,
			ZipRoot:   "xpack-arm-none-eabi-gcc-{version}",
			PathDirs:  []string{"bin"},
			ExecDirs:  []string{"bin"},
			Markers: map[platform.Family]string{
				platform.FamilyLinux:   "bin/arm-none-eabi-gcc",
				platform.FamilyDarwin:  "bin/arm-none-eabi-gcc",
				platform.FamilyWindows: "bin/arm-none-eabi-gcc.exe",
			},
		},
		{
			Name:        OpenOCD,
			Description: "xPack OpenOCD on-chip debugger",
			Subdir:      OpenOCD,
			Resolution:  ResolutionStatic,
			Version:     DefaultVersions[OpenOCD],
			URLTemplate: "https://github.com/xpack-dev-tools/openocd-xpack/releases/download/" +
				"v{version}/xpack-openocd-{version}-{os}-{arch}{ext}",
			ArchNames: xpackArchNames,
			ZipRoot:   "xpack-openocd-{version}",
			PathDirs:  []string{"bin"},
			ExecDirs:  []string{"bin"},
			Markers: map[platform.Family]string{
				platform.FamilyLinux:   "bin/openocd",
				platform.FamilyDarwin:  "bin/openocd",
				platform.FamilyWindows: "bin/openocd.exe",
			},
		},
		{
			Name:         Renode,
			Description:  "Renode multi-node embedded simulator (portable build)",
			Subdir:       Renode,
			Resolution:   ResolutionDynamic,
			Owner:        "renode",
			Repo:         "renode",
			AssetPattern: "{platform}-portable.tar.gz",
			PathDirs:     []string{"."},
			Executables:  []string{"renode", "mono/bin/mono"},
			LibDirs:      []string{"mono/lib"},
			Markers: map[platform.Family]string{
				platform.FamilyLinux:   "renode",
				platform.FamilyDarwin:  "renode",
				platform.FamilyWindows: "renode.bat",
			},
		},
	}
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(Defaults()...)
	if err != nil {
		panic("toolspec: invalid built-in catalog: " + err.Error())
	}
	return c
}
