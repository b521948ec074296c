package release

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/embydev/embytools/internal/platform"
	"github.com/embydev/embytools/internal/toolspec"
)

// Archive extensions chosen per family.
const (
	ExtTarGz = ".tar.gz"
	ExtZip   = ".zip"
)

var leftoverToken = regexp.MustCompile(`\{[a-z_]+\}`)

// OSToken maps a family to the name upstream release assets use.
func OSToken(family platform.Family) (string, error) {
	switch family {
	case platform.FamilyLinux:
		return "linux", nil
	case platform.FamilyDarwin:
		return "darwin", nil
	case platform.FamilyWindows:
		return "win32", nil
	default:
		return "", fmt.Errorf("%w: OS family %q", ErrUnsupportedPlatform, family)
	}
}

// Extension returns the archive extension assets use on family.
func Extension(family platform.Family) string {
	if family == platform.FamilyWindows {
		return ExtZip
	}
	return ExtTarGz
}

// ArchToken maps arch to the tool's asset naming. Without an ArchNames
// table the Go name is used.
func ArchToken(spec toolspec.Spec, arch platform.Arch) (string, error) {
	if len(spec.ArchNames) == 0 {
		return string(arch), nil
	}
	name, ok := spec.ArchNames[arch]
	if !ok || name == "" {
		return "", fmt.Errorf("%w: %s has no asset for architecture %s", ErrUnsupportedPlatform, spec.Name, arch)
	}
	return name, nil
}

// RenderStatic substitutes {version}, {os}, {arch} and {ext} into the spec's
// URL template.
func RenderStatic(spec toolspec.Spec, desc platform.Descriptor) (*Resolved, error) {
	if !spec.Supports(desc.Family) {
		return nil, fmt.Errorf("%w: %s does not support %s", ErrUnsupportedPlatform, spec.Name, desc.Family)
	}

	osName, err := OSToken(desc.Family)
	if err != nil {
		return nil, err
	}
	archName, err := ArchToken(spec, desc.Arch)
	if err != nil {
		return nil, err
	}

	r := strings.NewReplacer(
		"{version}", spec.Version,
		"{os}", osName,
		"{arch}", archName,
		"{ext}", Extension(desc.Family),
	)
	url := r.Replace(spec.URLTemplate)

	if tok := leftoverToken.FindString(url); tok != "" {
		return nil, fmt.Errorf("%w: url template for %s leaves %s unresolved", ErrMetadata, spec.Name, tok)
	}

	return &Resolved{
		Tool:     spec.Name,
		URL:      url,
		FileName: fileNameFromURL(url),
		Version:  spec.Version,
	}, nil
}

// fileNameFromURL returns the last path segment of rawURL, ignoring any
// query string.
func fileNameFromURL(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return path.Base(rawURL)
}
