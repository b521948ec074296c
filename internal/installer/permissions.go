package installer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/embydev/embytools/internal/platform"
	"github.com/embydev/embytools/internal/toolspec"
)

// executableMode is rwxr-xr-x.
const executableMode = 0755

// chmodFunc is swapped in tests to simulate permission failures.
var chmodFunc = os.Chmod

// FixPermissions marks every regular file directly inside the spec's exec
// dirs, plus each listed executable, as executable. Nothing is done on
// Windows. Problems are returned as warnings and never abort an install.
func FixPermissions(installDir string, spec toolspec.Spec, family platform.Family) []Warning {
	if family == platform.FamilyWindows {
		return nil
	}

	var warnings []Warning
	warn := func(path string, err error) {
		warnings = append(warnings, Warning{Kind: KindPermissionWarning, Path: path, Err: err})
	}

	for _, rel := range spec.ExecDirs {
		dir := filepath.Join(installDir, filepath.FromSlash(spec.LayoutPath(family, rel)))
		entries, err := os.ReadDir(dir)
		if err != nil {
			warn(dir, fmt.Errorf("read exec dir: %w", err))
			continue
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := chmodFunc(path, executableMode); err != nil {
				warn(path, fmt.Errorf("set executable: %w", err))
			}
		}
	}

	for _, rel := range spec.Executables {
		path := filepath.Join(installDir, filepath.FromSlash(spec.LayoutPath(family, rel)))
		if err := chmodFunc(path, executableMode); err != nil {
			warn(path, fmt.Errorf("set executable: %w", err))
		}
	}

	return warnings
}
