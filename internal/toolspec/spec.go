// Package toolspec defines the installable tools.
//
// A Spec is plain configuration: where a tool comes from, how its download
// URL is found, and how its files are laid out once extracted. Specs are
// created at startup (built-in defaults, optionally overridden by a Lua
// catalog) and never change while an installation runs.
package toolspec

import (
	"fmt"
	"path"
	"strings"

	"github.com/embydev/embytools/internal/platform"
)

// Resolution selects how a tool's download URL is found.
type Resolution string

const (
	// ResolutionStatic renders a version-pinned URL template.
	ResolutionStatic Resolution = "static"
	// ResolutionDynamic queries the latest release of a repository.
	ResolutionDynamic Resolution = "dynamic"
)

// String returns the string representation of the resolution
func (r Resolution) String() string {
	return string(r)
}

// VersionFile is the optional marker inside an installation subdirectory
// whose content is reported by status.
const VersionFile = "VERSION"

// Spec identifies one installable tool.
type Spec struct {
	Name        string
	Description string
	// Subdir is the tool's directory under the installation root.
	Subdir     string
	Resolution Resolution

	// Static resolution. URLTemplate understands {version}, {os}, {arch}
	// and {ext}.
	Version     string
	URLTemplate string
	ArchNames   map[platform.Arch]string

	// Dynamic resolution. AssetPattern may contain {platform}.
	Owner        string
	Repo         string
	AssetPattern string

	// Platforms restricts the families a tool installs on. Empty means all.
	Platforms []platform.Family

	// ZipRoot is the top-level directory Windows zip assets wrap their
	// content in. Zip extraction keeps it, so on Windows every layout path
	// below is relative to it. {version} is expanded.
	ZipRoot string

	// Layout, all relative to the layout root. PathDirs are exported on PATH,
	// every file directly inside ExecDirs is made executable, as is every
	// entry of Executables. LibDirs are prepended to LD_LIBRARY_PATH.
	PathDirs    []string
	ExecDirs    []string
	Executables []string
	LibDirs     []string

	// Markers maps a family to the file whose presence means "installed".
	// {version} is expanded.
	Markers map[platform.Family]string
}

// Supports reports whether the tool can be installed on family.
func (s Spec) Supports(family platform.Family) bool {
	if len(s.Platforms) == 0 {
		return true
	}
	for _, f := range s.Platforms {
		if f == family {
			return true
		}
	}
	return false
}

// LayoutRoot returns the directory, relative to Subdir, that layout paths
// are resolved against on family.
func (s Spec) LayoutRoot(family platform.Family) string {
	if family == platform.FamilyWindows && s.ZipRoot != "" {
		return s.expand(s.ZipRoot)
	}
	return "."
}

// LayoutPath joins rel onto the layout root for family. The result is
// slash-separated and relative to Subdir.
func (s Spec) LayoutPath(family platform.Family, rel string) string {
	return path.Join(s.LayoutRoot(family), s.expand(rel))
}

// Marker returns the installed-marker path for family, relative to Subdir.
func (s Spec) Marker(family platform.Family) (string, bool) {
	marker, ok := s.Markers[family]
	if !ok || marker == "" {
		return "", false
	}
	return s.LayoutPath(family, marker), true
}

func (s Spec) expand(p string) string {
	return strings.ReplaceAll(p, "{version}", s.Version)
}

// Repository returns "owner/repo" for dynamic specs.
func (s Spec) Repository() string {
	if s.Owner == "" && s.Repo == "" {
		return ""
	}
	return s.Owner + "/" + s.Repo
}

// WithRepository returns a copy of s pointing at another repository. Empty
// arguments keep the current value.
func (s Spec) WithRepository(owner, repo string) Spec {
	out := s.Clone()
	if owner != "" {
		out.Owner = owner
	}
	if repo != "" {
		out.Repo = repo
	}
	return out
}

// Clone returns a deep copy so callers cannot mutate shared slices or maps.
func (s Spec) Clone() Spec {
	out := s
	out.Platforms = append([]platform.Family(nil), s.Platforms...)
	out.PathDirs = append([]string(nil), s.PathDirs...)
	out.ExecDirs = append([]string(nil), s.ExecDirs...)
	out.Executables = append([]string(nil), s.Executables...)
	out.LibDirs = append([]string(nil), s.LibDirs...)
	if s.ArchNames != nil {
		out.ArchNames = make(map[platform.Arch]string, len(s.ArchNames))
		for k, v := range s.ArchNames {
			out.ArchNames[k] = v
		}
	}
	if s.Markers != nil {
		out.Markers = make(map[platform.Family]string, len(s.Markers))
		for k, v := range s.Markers {
			out.Markers[k] = v
		}
	}
	return out
}

// ValidationError reports an invalid field of a Spec.
type ValidationError struct {
	Tool    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("invalid tool spec: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid tool spec %q: %s: %s", e.Tool, e.Field, e.Message)
}

// Validate checks that s is complete for its resolution strategy and that
// every layout path stays inside the tool's subdirectory.
func (s Spec) Validate() error {
	invalid := func(field, msg string) error {
		return &ValidationError{Tool: s.Name, Field: field, Message: msg}
	}

	if s.Name == "" {
		return invalid("name", "required")
	}
	if strings.ContainsAny(s.Name, `/\ `) {
		return invalid("name", "must not contain slashes or spaces")
	}
	if err := validateSubdir(s.Subdir); err != nil {
		return invalid("subdir", err.Error())
	}

	switch s.Resolution {
	case ResolutionStatic:
		if s.URLTemplate == "" {
			return invalid("url_template", "required for static resolution")
		}
		if strings.Contains(s.URLTemplate, "{version}") && s.Version == "" {
			return invalid("version", "required when url_template uses {version}")
		}
	case ResolutionDynamic:
		if s.Owner == "" || s.Repo == "" {
			return invalid("repository", "owner and repo are required for dynamic resolution")
		}
		if s.AssetPattern == "" {
			return invalid("asset_pattern", "required for dynamic resolution")
		}
	default:
		return invalid("resolution", fmt.Sprintf("unknown resolution %q (want static or dynamic)", s.Resolution))
	}

	for _, f := range s.Platforms {
		if !f.IsValid() {
			return invalid("platforms", fmt.Sprintf("unknown family %q", f))
		}
	}
	for f := range s.Markers {
		if !f.IsValid() {
			return invalid("markers", fmt.Sprintf("unknown family %q", f))
		}
	}

	groups := map[string][]string{
		"path_dirs":   s.PathDirs,
		"exec_dirs":   s.ExecDirs,
		"executables": s.Executables,
		"lib_dirs":    s.LibDirs,
	}
	for field, paths := range groups {
		for _, p := range paths {
			if err := validateRelative(p); err != nil {
				return invalid(field, err.Error())
			}
		}
	}
	if s.ZipRoot != "" {
		if err := validateRelative(s.ZipRoot); err != nil {
			return invalid("zip_root", err.Error())
		}
	}
	for _, marker := range s.Markers {
		if err := validateRelative(marker); err != nil {
			return invalid("markers", err.Error())
		}
	}

	return nil
}

// validateSubdir requires a single clean path component.
func validateSubdir(subdir string) error {
	if subdir == "" {
		return fmt.Errorf("required")
	}
	if strings.ContainsAny(subdir, `/\`) {
		return fmt.Errorf("%q must be a single directory name", subdir)
	}
	if subdir == "." || subdir == ".." || strings.HasPrefix(subdir, ".") {
		return fmt.Errorf("%q must not be a dot directory", subdir)
	}
	return nil
}

// validateRelative requires a slash-separated path that cannot escape.
func validateRelative(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if strings.Contains(p, `\`) {
		return fmt.Errorf("%q must use forward slashes", p)
	}
	if path.IsAbs(p) {
		return fmt.Errorf("%q must be relative", p)
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("%q escapes the tool directory", p)
	}
	return nil
}
