// Package installer runs the tool acquisition pipeline: resolve an asset,
// download it into the installation root, extract it into the tool's
// subdirectory, fix permissions and clean up.
//
// Every attempt walks the stages Idle, Resolving, Downloading, Extracting,
// PermissionFixing, Finalizing and Done in order. A fatal problem stops the
// attempt in StageFailed and is returned as an *Error that records the kind
// and the stage it happened in. Permission, cleanup and verification problems
// are collected as warnings on the Outcome instead.
//
// Installedness lives on disk only: a tool is installed when its subdirectory
// exists, and an install is skipped when the tool's marker file is present.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/embydev/embytools/internal/config"
	"github.com/embydev/embytools/internal/platform"
	"github.com/embydev/embytools/internal/release"
	"github.com/embydev/embytools/internal/toolspec"
)

// removeFunc deletes the downloaded archive; swapped in tests.
var removeFunc = os.Remove

// UnknownVersion is reported when an installed tool has no VERSION file.
const UnknownVersion = "unknown"

// Resolver finds the asset to install for a spec.
type Resolver interface {
	Resolve(ctx context.Context, spec toolspec.Spec, desc platform.Descriptor) (*release.Resolved, error)
}

// Config holds configuration for the installer
type Config struct {
	// Root is the installation root shared by every tool.
	Root string
	// Platform is the target the assets are chosen for.
	Platform platform.Descriptor
	// Resolver defaults to a release.Resolver against the public API.
	Resolver Resolver
	// HTTPClient is used for asset downloads. Defaults to NewHTTPClient.
	HTTPClient *http.Client
	Logger     config.Logger
}

// Options tunes one Install call.
type Options struct {
	// Force reinstalls even when the marker is present.
	Force bool
	// Progress is called during the download when its size is known.
	Progress ProgressFunc
}

// Outcome reports what an Install call did.
type Outcome struct {
	Tool    string
	Stage   Stage
	Version string
	Path    string
	Asset   *release.Resolved
	// Skipped is set when the tool was already installed.
	Skipped  bool
	Warnings []Warning
	Elapsed  time.Duration
}

// State is the installedness of one tool.
type State int

const (
	StateNotInstalled State = iota
	StateInstalled
)

// String returns the string representation of the state
func (s State) String() string {
	if s == StateInstalled {
		return "installed"
	}
	return "not installed"
}

// MarshalText renders the state for JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Record is the on-disk status of one tool.
type Record struct {
	Tool    string `json:"tool" yaml:"tool"`
	State   State  `json:"state" yaml:"state"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Path    string `json:"path" yaml:"path"`
	// Complete reports whether the marker file is present.
	Complete bool `json:"complete" yaml:"complete"`
}

// Installer installs, inspects and removes tools under one root.
type Installer struct {
	root       string
	desc       platform.Descriptor
	resolver   Resolver
	downloader *Downloader
	extractor  *Extractor
	logger     config.Logger
}

// New creates an Installer.
func New(cfg Config) (*Installer, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("Root is required")
	}
	if !cfg.Platform.Family.IsValid() {
		return nil, &platform.UnsupportedError{OS: string(cfg.Platform.Family), Arch: string(cfg.Platform.Arch)}
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	logger := config.LoggerOrNoop(cfg.Logger)
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = release.NewResolver(release.NewClient(cfg.HTTPClient, ""), logger)
	}

	return &Installer{
		root:       root,
		desc:       cfg.Platform,
		resolver:   resolver,
		downloader: NewDownloader(cfg.HTTPClient),
		extractor:  NewExtractor(),
		logger:     logger,
	}, nil
}

// Root returns the absolute installation root.
func (i *Installer) Root() string {
	return i.root
}

// Platform returns the target platform.
func (i *Installer) Platform() platform.Descriptor {
	return i.desc
}

// InstallDir returns the tool's subdirectory.
func (i *Installer) InstallDir(spec toolspec.Spec) string {
	return filepath.Join(i.root, spec.Subdir)
}

// markerPath returns the absolute marker for the target family, if any.
func (i *Installer) markerPath(spec toolspec.Spec) (string, bool) {
	marker, ok := spec.Marker(i.desc.Family)
	if !ok {
		return "", false
	}
	return filepath.Join(i.InstallDir(spec), filepath.FromSlash(marker)), true
}

// IsInstalled reports whether the tool's marker file exists. Tools without a
// marker are never considered installed, so they always reinstall.
func (i *Installer) IsInstalled(spec toolspec.Spec) bool {
	marker, ok := i.markerPath(spec)
	if !ok {
		return false
	}
	info, err := os.Stat(marker)
	return err == nil && !info.IsDir()
}

// Install runs the pipeline for spec. The returned Outcome is never nil; on
// failure its Stage is StageFailed and the error is an *Error.
func (i *Installer) Install(ctx context.Context, spec toolspec.Spec, opts Options) (*Outcome, error) {
	start := time.Now()
	m := NewMachine()
	dir := i.InstallDir(spec)
	out := &Outcome{Tool: spec.Name, Path: dir}

	finish := func() *Outcome {
		out.Stage = m.Stage()
		out.Elapsed = time.Since(start)
		return out
	}
	fail := func(kind Kind, err error) (*Outcome, error) {
		stage := m.Fail()
		i.logger.Error("install failed", "tool", spec.Name, "stage", stage.String(), "kind", kind.String(), "error", err)
		return finish(), &Error{Kind: kind, Stage: stage, Tool: spec.Name, Err: err}
	}
	warn := func(w Warning) {
		i.logger.Warn(w.Err.Error(), "tool", spec.Name, "kind", w.Kind.String(), "path", w.Path)
		out.Warnings = append(out.Warnings, w)
	}

	if !opts.Force && i.IsInstalled(spec) {
		if err := m.Advance(StageDone); err != nil {
			return fail(KindUnknown, err)
		}
		out.Skipped = true
		out.Version = readVersion(dir)
		i.logger.Info("already installed, skipping", "tool", spec.Name, "path", dir)
		return finish(), nil
	}

	// Resolving
	if err := m.Advance(StageResolving); err != nil {
		return fail(KindUnknown, err)
	}
	resolved, err := i.resolver.Resolve(ctx, spec, i.desc)
	if err != nil {
		return fail(classify(err, KindNetworkError), err)
	}
	fileName := filepath.Base(filepath.FromSlash(resolved.FileName))
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		return fail(KindMetadataError, fmt.Errorf("%w: asset for %s has no file name", release.ErrMetadata, spec.Name))
	}
	out.Asset = resolved
	out.Version = resolved.Version

	// Downloading
	if err := m.Advance(StageDownloading); err != nil {
		return fail(KindUnknown, err)
	}
	lock, err := AcquireLock(i.root, spec.Name)
	if err != nil {
		return fail(classify(err, KindDownloadError), err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			i.logger.Warn("failed to release lock", "tool", spec.Name, "error", err)
		}
	}()

	archivePath := filepath.Join(i.root, spec.Name+"-"+fileName)
	i.logger.Info("downloading", "tool", spec.Name, "url", resolved.URL, "dest", archivePath)
	n, err := i.downloader.DownloadToFile(ctx, resolved.URL, archivePath, opts.Progress)
	if err != nil {
		return fail(KindDownloadError, err)
	}
	i.logger.Debug("download complete", "tool", spec.Name, "bytes", n)

	// Extracting
	if err := m.Advance(StageExtracting); err != nil {
		return fail(KindUnknown, err)
	}
	i.logger.Info("extracting", "tool", spec.Name, "archive", fileName, "dest", dir)
	if err := i.extractor.Extract(archivePath, fileName, dir); err != nil {
		return fail(classify(err, KindExtractError), err)
	}

	// PermissionFixing
	if err := m.Advance(StagePermissionFixing); err != nil {
		return fail(KindUnknown, err)
	}
	for _, w := range FixPermissions(dir, spec, i.desc.Family) {
		warn(w)
	}

	// Finalizing
	if err := m.Advance(StageFinalizing); err != nil {
		return fail(KindUnknown, err)
	}
	if err := removeFunc(archivePath); err != nil {
		warn(Warning{Kind: KindCleanupWarning, Path: archivePath, Err: fmt.Errorf("remove archive: %w", err)})
	}
	if err := writeVersion(dir, resolved.Version); err != nil {
		warn(Warning{Kind: KindCleanupWarning, Path: filepath.Join(dir, toolspec.VersionFile), Err: err})
	}
	if marker, ok := i.markerPath(spec); ok && !fileExists(marker) {
		warn(Warning{Kind: KindVerifyWarning, Path: marker, Err: fmt.Errorf("expected file missing after extraction")})
	}

	if err := m.Advance(StageDone); err != nil {
		return fail(KindUnknown, err)
	}
	i.logger.Info("installed", "tool", spec.Name, "version", resolved.Version, "path", dir)
	return finish(), nil
}

// Status probes the tool's subdirectory. It never touches the network.
func (i *Installer) Status(spec toolspec.Spec) (*Record, error) {
	dir := i.InstallDir(spec)
	rec := &Record{Tool: spec.Name, State: StateNotInstalled, Path: dir}

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return rec, nil
	}

	rec.State = StateInstalled
	rec.Version = readVersion(dir)
	rec.Complete = i.IsInstalled(spec)
	return rec, nil
}

// Uninstall removes the tool's subdirectory. A missing directory is success.
func (i *Installer) Uninstall(spec toolspec.Spec) error {
	dir := i.InstallDir(spec)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	i.logger.Info("uninstalled", "tool", spec.Name, "path", dir)
	return nil
}

// UninstallAll removes the whole installation root after checking it is
// not a system or home directory.
func (i *Installer) UninstallAll() error {
	if err := ValidateRootForRemoval(i.root); err != nil {
		return err
	}
	if err := os.RemoveAll(i.root); err != nil {
		return fmt.Errorf("remove %s: %w", i.root, err)
	}
	i.logger.Info("removed installation root", "path", i.root)
	return nil
}

// ValidateRootForRemoval refuses to delete "/", the home directory and
// well-known system directories.
func ValidateRootForRemoval(root string) error {
	cleaned := filepath.Clean(root)

	for _, part := range strings.Split(filepath.ToSlash(cleaned), "/") {
		if part == ".." {
			return fmt.Errorf("invalid root: contains path traversal sequence")
		}
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return fmt.Errorf("invalid root: cannot resolve absolute path: %w", err)
	}

	if filepath.Dir(absPath) == absPath {
		return fmt.Errorf("invalid root: cannot remove filesystem root %s", absPath)
	}

	systemDirs := []string{"/usr", "/bin", "/sbin", "/etc", "/var", "/lib", "/boot", "/opt", "/tmp"}
	for _, sysDir := range systemDirs {
		if absPath == filepath.Clean(sysDir) {
			return fmt.Errorf("invalid root: cannot remove system directory %s", absPath)
		}
	}

	if home, err := os.UserHomeDir(); err == nil && absPath == filepath.Clean(home) {
		return fmt.Errorf("invalid root: cannot remove home directory %s", absPath)
	}

	return nil
}

// readVersion returns the trimmed VERSION file content or UnknownVersion.
func readVersion(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, toolspec.VersionFile))
	if err != nil {
		return UnknownVersion
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return UnknownVersion
	}
	return v
}

// writeVersion records version unless the archive shipped its own file.
func writeVersion(dir, version string) error {
	if version == "" {
		return nil
	}
	path := filepath.Join(dir, toolspec.VersionFile)
	if fileExists(path) {
		return nil
	}
	if err := os.WriteFile(path, []byte(version+"\n"), 0644); err != nil {
		return fmt.Errorf("write version file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
