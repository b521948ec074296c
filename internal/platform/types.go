// Package platform describes the host an installer runs on.
//
// A Descriptor pairs a closed operating-system Family with a normalized CPU
// Arch. It is derived once per process, either from the running host (using
// runtime and gopsutil) or from an explicit override, and is never mutated
// afterwards. Linux distribution details are carried along for diagnostics
// only; no resolution decision depends on them.
package platform

import (
	"context"
	"errors"
	"fmt"
)

// Family is the operating-system family of a host.
type Family string

const (
	// FamilyLinux covers every Linux distribution.
	FamilyLinux Family = "linux"
	// FamilyDarwin covers macOS.
	FamilyDarwin Family = "darwin"
	// FamilyWindows covers Windows.
	FamilyWindows Family = "windows"
)

// Families lists every supported family in a stable order.
var Families = []Family{FamilyLinux, FamilyDarwin, FamilyWindows}

// String returns the string representation of the family
func (f Family) String() string {
	return string(f)
}

// IsValid reports whether f is one of the supported families.
func (f Family) IsValid() bool {
	switch f {
	case FamilyLinux, FamilyDarwin, FamilyWindows:
		return true
	default:
		return false
	}
}

// Arch is a normalized CPU architecture.
type Arch string

const (
	// ArchAMD64 is 64-bit x86.
	ArchAMD64 Arch = "amd64"
	// ArchARM64 is 64-bit ARM.
	ArchARM64 Arch = "arm64"
)

// String returns the string representation of the architecture
func (a Arch) String() string {
	return string(a)
}

// ErrUnsupported is matched by every UnsupportedError.
var ErrUnsupported = errors.New("unsupported platform")

// UnsupportedError reports an operating system or architecture outside the
// supported set.
type UnsupportedError struct {
	OS   string
	Arch string
}

func (e *UnsupportedError) Error() string {
	switch {
	case e.OS != "" && e.Arch != "":
		return fmt.Sprintf("unsupported platform: %s/%s", e.OS, e.Arch)
	case e.Arch != "":
		return fmt.Sprintf("unsupported architecture: %s (supported: amd64, arm64)", e.Arch)
	default:
		return fmt.Sprintf("unsupported platform: %s (supported: linux, darwin, windows)", e.OS)
	}
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// Descriptor identifies the platform an installation targets.
type Descriptor struct {
	Family  Family
	Arch    Arch
	ArchRaw string // original GOARCH (e.g., "x86_64", "aarch64")

	// Linux only, empty elsewhere or when detection failed.
	Distro        string
	DistroFamily  string
	DistroVersion string
}

// String returns "family/arch".
func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%s", d.Family, d.Arch)
}

// IsLinux returns true if the platform is Linux.
func (d Descriptor) IsLinux() bool {
	return d.Family == FamilyLinux
}

// IsMacOS returns true if the platform is macOS.
func (d Descriptor) IsMacOS() bool {
	return d.Family == FamilyDarwin
}

// IsWindows returns true if the platform is Windows.
func (d Descriptor) IsWindows() bool {
	return d.Family == FamilyWindows
}

// IsAMD64 returns true if the architecture is amd64.
func (d Descriptor) IsAMD64() bool {
	return d.Arch == ArchAMD64
}

// IsARM64 returns true if the architecture is arm64.
func (d Descriptor) IsARM64() bool {
	return d.Arch == ArchARM64
}

// IsAppleSilicon returns true if running on Apple Silicon (macOS + arm64).
func (d Descriptor) IsAppleSilicon() bool {
	return d.Family == FamilyDarwin && d.Arch == ArchARM64
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Descriptor, error)
}
