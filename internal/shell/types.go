package shell

import (
	"fmt"

	"github.com/embydev/embytools/internal/platform"
)

// ScriptType is the flavour of environment script.
type ScriptType string

const (
	// ScriptPOSIX is a bash script for linux and darwin
	ScriptPOSIX ScriptType = "sh"
	// ScriptBatch is a cmd.exe batch file for windows
	ScriptBatch ScriptType = "bat"
)

// String returns the string representation of the script type
func (s ScriptType) String() string {
	return string(s)
}

// FileName returns the script's file name in the installation root.
func (s ScriptType) FileName() string {
	return "setup-env." + string(s)
}

// ScriptTypeFor returns the script flavour for family.
func ScriptTypeFor(family platform.Family) (ScriptType, error) {
	switch family {
	case platform.FamilyLinux, platform.FamilyDarwin:
		return ScriptPOSIX, nil
	case platform.FamilyWindows:
		return ScriptBatch, nil
	default:
		return "", &platform.UnsupportedError{OS: string(family)}
	}
}

// ScriptError represents an error generating or writing the script
type ScriptError struct {
	Path    string
	Message string
	Cause   error
}

func (e *ScriptError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("environment script error (%s): %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("environment script error (%s): %s", e.Path, e.Message)
}

func (e *ScriptError) Unwrap() error {
	return e.Cause
}
