package platform

import (
	"strings"
)

// ParseFamily maps an operating-system name to its Family. It accepts Go's
// GOOS values as well as the "win32"/"macos" spellings used by release pages.
func ParseFamily(os string) (Family, error) {
	switch normalizeName(os) {
	case "linux":
		return FamilyLinux, nil
	case "darwin", "macos", "osx":
		return FamilyDarwin, nil
	case "windows", "win32":
		return FamilyWindows, nil
	default:
		return "", &UnsupportedError{OS: os}
	}
}

// ParseArch converts GOARCH values and their common aliases to an Arch.
func ParseArch(arch string) (Arch, error) {
	switch normalizeName(arch) {
	case "amd64", "x86_64", "x64":
		return ArchAMD64, nil
	case "arm64", "aarch64":
		return ArchARM64, nil
	default:
		return "", &UnsupportedError{Arch: arch}
	}
}

// Parse builds a Descriptor from an "os" or "os/arch" string. When arch is
// omitted, fallbackArch is used.
func Parse(value string, fallbackArch string) (*Descriptor, error) {
	osName, archName, found := strings.Cut(value, "/")
	if !found {
		archName = fallbackArch
	}

	family, err := ParseFamily(osName)
	if err != nil {
		return nil, err
	}
	arch, err := ParseArch(archName)
	if err != nil {
		return nil, err
	}

	return &Descriptor{Family: family, Arch: arch, ArchRaw: archName}, nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
