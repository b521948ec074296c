package shell

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/kballard/go-shellquote"

	"github.com/embydev/embytools/internal/platform"
	"github.com/embydev/embytools/internal/toolspec"
)

var posixTemplate = template.Must(template.New("setup-env.sh").Parse(`#!/bin/bash
# Generated by embytools. Source this file to use the installed tools.
TOOLS_DIR="$(cd "$(dirname "${BASH_SOURCE[0]}")" && pwd)"
export PATH="{{range .PathDirs}}$TOOLS_DIR/{{.}}:{{end}}$PATH"
{{- if .LibDirs}}
export LD_LIBRARY_PATH="{{range .LibDirs}}$TOOLS_DIR/{{.}}:{{end}}$LD_LIBRARY_PATH"
{{- end}}
echo "Embedded development environment configured!"
echo "Available tools:"
{{- range .Tools}}
if command -v {{.Command}} >/dev/null 2>&1; then echo "  - {{.Command}}: Available"; else echo "  - {{.Command}}: Not found"; fi
{{- end}}
`))

var batchTemplate = template.Must(template.New("setup-env.bat").Parse(`@echo off
rem Generated by embytools. Run with: call setup-env.bat
set TOOLS_DIR=%~dp0
set PATH={{range .PathDirs}}%TOOLS_DIR%{{.}};{{end}}%PATH%
echo Embedded development environment configured!
echo Available tools:
{{- range .Tools}}
where {{.Command}} >nul 2>&1 && echo   - {{.Command}}: Available || echo   - {{.Command}}: Not found
{{- end}}
`))

type scriptTool struct {
	Name    string
	Command string
}

type scriptData struct {
	PathDirs []string
	LibDirs  []string
	Tools    []scriptTool
}

// Render returns the script file name and content for family. Directories
// appear in catalog order.
func Render(family platform.Family, specs []toolspec.Spec) (string, string, error) {
	kind, err := ScriptTypeFor(family)
	if err != nil {
		return "", "", err
	}

	data := scriptData{}
	for _, spec := range specs {
		for _, dir := range spec.PathDirs {
			p, err := scriptPath(kind, spec, family, dir)
			if err != nil {
				return "", "", err
			}
			data.PathDirs = append(data.PathDirs, p)
		}
		if kind == ScriptPOSIX {
			for _, dir := range spec.LibDirs {
				p, err := scriptPath(kind, spec, family, dir)
				if err != nil {
					return "", "", err
				}
				data.LibDirs = append(data.LibDirs, p)
			}
		}
		if cmd := commandName(spec, family); cmd != "" {
			data.Tools = append(data.Tools, scriptTool{Name: spec.Name, Command: cmd})
		}
	}

	tmpl := posixTemplate
	if kind == ScriptBatch {
		tmpl = batchTemplate
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", &ScriptError{Path: kind.FileName(), Message: "failed to render", Cause: err}
	}

	content := buf.String()
	if kind == ScriptBatch {
		content = strings.ReplaceAll(content, "\n", "\r\n")
	}
	return kind.FileName(), content, nil
}

// Write renders the script for family into root and returns its path. The
// file is replaced atomically.
func Write(root string, family platform.Family, specs []toolspec.Spec) (string, error) {
	name, content, err := Render(family, specs)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return "", &ScriptError{Path: root, Message: "failed to create installation root", Cause: err}
	}

	scriptPath := filepath.Join(root, name)
	tmp, err := os.CreateTemp(root, "."+name+".*")
	if err != nil {
		return "", &ScriptError{Path: scriptPath, Message: "failed to create temp file", Cause: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", &ScriptError{Path: scriptPath, Message: "failed to write", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", &ScriptError{Path: scriptPath, Message: "failed to close", Cause: err}
	}
	if err := os.Chmod(tmpPath, 0755); err != nil {
		os.Remove(tmpPath)
		return "", &ScriptError{Path: scriptPath, Message: "failed to set permissions", Cause: err}
	}
	if err := os.Rename(tmpPath, scriptPath); err != nil {
		os.Remove(tmpPath)
		return "", &ScriptError{Path: scriptPath, Message: "failed to replace", Cause: err}
	}

	return scriptPath, nil
}

// ActivationHint returns the command a user runs to load the script.
func ActivationHint(family platform.Family, scriptPath string) string {
	if family == platform.FamilyWindows {
		return fmt.Sprintf(`call "%s"`, scriptPath)
	}
	return shellquote.Join("source", scriptPath)
}

// scriptPath returns dir as seen from the script: subdir-relative, with the
// separators of the script's platform.
func scriptPath(kind ScriptType, spec toolspec.Spec, family platform.Family, dir string) (string, error) {
	p := path.Join(spec.Subdir, spec.LayoutPath(family, dir))

	unsafe := `"$` + "`" + `\`
	if kind == ScriptBatch {
		unsafe = `"%&|<>^`
	}
	if strings.ContainsAny(p, unsafe) {
		return "", &ScriptError{Path: kind.FileName(), Message: fmt.Sprintf("tool %s: directory %q contains characters the script cannot quote", spec.Name, p)}
	}

	if kind == ScriptBatch {
		return strings.ReplaceAll(p, "/", `\`), nil
	}
	return p, nil
}

// commandName derives the command a tool provides from its marker.
func commandName(spec toolspec.Spec, family platform.Family) string {
	marker, ok := spec.Marker(family)
	if !ok {
		return ""
	}
	base := path.Base(marker)
	for _, ext := range []string{".exe", ".bat", ".cmd"} {
		base = strings.TrimSuffix(base, ext)
	}
	if strings.ContainsAny(base, " \"'$`%&|<>^;") {
		return ""
	}
	return base
}
