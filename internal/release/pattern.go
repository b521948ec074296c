package release

import (
	"fmt"
	"strings"

	"github.com/embydev/embytools/internal/platform"
)

// AssetPattern renders a dynamic tool's pattern for family.
//
// Darwin deliberately uses the Linux pattern: the simulator ships a portable
// build that runs on macOS with a system Mono, and no native asset is
// published. Windows swaps the tar.gz suffix for zip.
func AssetPattern(pattern string, family platform.Family) (string, error) {
	switch family {
	case platform.FamilyLinux, platform.FamilyDarwin:
		return strings.ReplaceAll(pattern, "{platform}", "linux"), nil
	case platform.FamilyWindows:
		p := strings.ReplaceAll(pattern, "{platform}", "windows")
		return strings.Replace(p, ExtTarGz, ExtZip, 1), nil
	default:
		return "", fmt.Errorf("%w: OS family %q", ErrUnsupportedPlatform, family)
	}
}

// SelectAsset returns the first asset, in list order, whose name contains
// pattern. No scoring is applied: an earlier partial match beats a later
// exact one.
func SelectAsset(assets []Asset, pattern string) (Asset, bool) {
	for _, a := range assets {
		if strings.Contains(a.Name, pattern) {
			return a, true
		}
	}
	return Asset{}, false
}
