package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual platform detection.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect uses runtime.GOOS and runtime.GOARCH for the family and
// architecture, and gopsutil for Linux distribution details.
//
// Distribution detection is best effort: when gopsutil fails the distro
// fields stay empty and detection still succeeds. A cancelled context is a
// hard failure.
func (d *RealDetector) Detect(ctx context.Context) (*Descriptor, error) {
	family, err := ParseFamily(runtime.GOOS)
	if err != nil {
		return nil, fmt.Errorf("platform detection failed: %w", err)
	}

	arch, err := ParseArch(runtime.GOARCH)
	if err != nil {
		return nil, fmt.Errorf("platform detection failed: %w", err)
	}

	desc := &Descriptor{
		Family:  family,
		Arch:    arch,
		ArchRaw: runtime.GOARCH,
	}

	if family == FamilyLinux {
		distro, distroFamily, version, err := host.PlatformInformationWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
			return desc, nil
		}
		desc.Distro = normalizeName(distro)
		desc.DistroFamily = normalizeName(distroFamily)
		desc.DistroVersion = normalizeName(version)
	}

	return desc, nil
}

// StaticDetector returns a fixed descriptor. It backs the --platform override
// and tests.
type StaticDetector struct {
	desc Descriptor
}

// NewStaticDetector creates a detector that always reports desc.
func NewStaticDetector(desc Descriptor) Detector {
	return &StaticDetector{desc: desc}
}

// Detect returns a copy of the configured descriptor.
func (d *StaticDetector) Detect(ctx context.Context) (*Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	desc := d.desc
	return &desc, nil
}
