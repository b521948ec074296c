package installer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embydev/embytools/internal/platform"
	"github.com/embydev/embytools/internal/release"
	"github.com/embydev/embytools/internal/testutil"
	"github.com/embydev/embytools/internal/toolspec"
)

const latestPath = "/repos/acme/tool/releases/latest"

// fixture fakes the release API and the asset host behind one transport.
type fixture struct {
	t         *testing.T
	root      string
	metadata  string
	assets    map[string][]byte
	assetCode int
	transport *testutil.Transport
	client    *http.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:    t,
		root: filepath.Join(t.TempDir(), "tools"),
		metadata: `{"tag_name":"v1.2.0","assets":[` +
			`{"name":"tool-linux-portable.tar.gz","browser_download_url":"https://x/tool.tar.gz","size":1024},` +
			`{"name":"tool-windows-portable.zip","browser_download_url":"https://x/tool.zip","size":1024}]}`,
		assets: map[string][]byte{
			"/tool.tar.gz": testutil.TarGz(t,
				testutil.Entry{Name: "X/"},
				testutil.Entry{Name: "X/bin/"},
				testutil.Entry{Name: "X/bin/tool", Body: "#!/bin/sh\necho tool\n", Mode: 0o644},
				testutil.Entry{Name: "X/bin/helper", Body: "#!/bin/sh\n", Mode: 0o600},
				testutil.Entry{Name: "X/share/doc.txt", Body: "docs"},
			),
			"/tool.zip": testutil.Zip(t,
				testutil.Entry{Name: "X/"},
				testutil.Entry{Name: "X/bin/tool.exe", Body: "MZ"},
			),
		},
		assetCode: http.StatusOK,
	}

	f.client, f.transport = testutil.NewClient(http.HandlerFunc(f.serve))
	return f
}

func (f *fixture) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Host == "api.github.com" {
		if r.URL.Path != latestPath {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(f.metadata))
		return
	}

	body, ok := f.assets[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if f.assetCode != http.StatusOK {
		w.WriteHeader(f.assetCode)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

func (f *fixture) installer(family platform.Family) *Installer {
	f.t.Helper()
	inst, err := New(Config{
		Root:       f.root,
		Platform:   platform.Descriptor{Family: family, Arch: platform.ArchAMD64},
		Resolver:   release.NewResolver(release.NewClient(f.client, ""), nil),
		HTTPClient: f.client,
	})
	require.NoError(f.t, err)
	return inst
}

func toolSpec() toolspec.Spec {
	return toolspec.Spec{
		Name:         "tool",
		Subdir:       "tool",
		Resolution:   toolspec.ResolutionDynamic,
		Owner:        "acme",
		Repo:         "tool",
		AssetPattern: "{platform}-portable.tar.gz",
		ZipRoot:      "X",
		PathDirs:     []string{"bin"},
		ExecDirs:     []string{"bin"},
		Markers: map[platform.Family]string{
			platform.FamilyLinux:   "bin/tool",
			platform.FamilyDarwin:  "bin/tool",
			platform.FamilyWindows: "bin/tool.exe",
		},
	}
}

func TestInstall_EndToEndLinux(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	out, err := inst.Install(context.Background(), toolSpec(), Options{})
	require.NoError(t, err)

	assert.Equal(t, StageDone, out.Stage)
	assert.False(t, out.Skipped)
	assert.Equal(t, "v1.2.0", out.Version)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, []string{
		"https://api.github.com" + latestPath,
		"https://x/tool.tar.gz",
	}, f.transport.URLs())

	dir := filepath.Join(f.root, "tool")
	assert.FileExists(t, filepath.Join(dir, "bin", "tool"))
	assert.FileExists(t, filepath.Join(dir, "share", "doc.txt"))
	assert.NoDirExists(t, filepath.Join(dir, "X"), "top-level directory is stripped")

	if runtime.GOOS != "windows" {
		for _, name := range []string{"tool", "helper"} {
			info, err := os.Stat(filepath.Join(dir, "bin", name))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o755), info.Mode().Perm(), name)
		}
	}

	assert.NoFileExists(t, filepath.Join(f.root, "tool-tool-linux-portable.tar.gz"), "archive removed")
	assert.NoFileExists(t, LockPath(f.root, "tool"), "lock released")

	rec, err := inst.Status(toolSpec())
	require.NoError(t, err)
	assert.Equal(t, StateInstalled, rec.State)
	assert.Equal(t, "v1.2.0", rec.Version)
	assert.True(t, rec.Complete)
}

func TestInstall_IdempotentMakesNoRequests(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	_, err := inst.Install(context.Background(), toolSpec(), Options{})
	require.NoError(t, err)
	before := f.transport.Requests()

	out, err := inst.Install(context.Background(), toolSpec(), Options{})
	require.NoError(t, err)

	assert.True(t, out.Skipped)
	assert.Equal(t, StageDone, out.Stage)
	assert.Equal(t, "v1.2.0", out.Version)
	assert.Equal(t, before, f.transport.Requests(), "second install must not touch the network")
}

func TestInstall_ForceReinstalls(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	_, err := inst.Install(context.Background(), toolSpec(), Options{})
	require.NoError(t, err)
	before := f.transport.Requests()

	out, err := inst.Install(context.Background(), toolSpec(), Options{Force: true})
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Equal(t, before+2, f.transport.Requests())
}

func TestInstall_WindowsWithoutMatchWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.metadata = `{"tag_name":"v1.2.0","assets":[` +
		`{"name":"tool-linux-portable.tar.gz","browser_download_url":"https://x/tool.tar.gz","size":1024}]}`
	inst := f.installer(platform.FamilyWindows)

	out, err := inst.Install(context.Background(), toolSpec(), Options{})
	require.Error(t, err)

	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, KindNotFound, ierr.Kind)
	assert.Equal(t, StageResolving, ierr.Stage)
	assert.Equal(t, StageFailed, out.Stage)
	assert.ErrorIs(t, err, release.ErrNotFound)

	assert.NoDirExists(t, f.root, "nothing written under the root")
}

func TestInstall_WindowsZipKeepsStructure(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyWindows)

	out, err := inst.Install(context.Background(), toolSpec(), Options{})
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)

	assert.FileExists(t, filepath.Join(f.root, "tool", "X", "bin", "tool.exe"))
	assert.True(t, inst.IsInstalled(toolSpec()), "marker is found under the zip root")
}

func TestInstall_DownloadError(t *testing.T) {
	f := newFixture(t)
	f.assetCode = http.StatusInternalServerError
	inst := f.installer(platform.FamilyLinux)

	out, err := inst.Install(context.Background(), toolSpec(), Options{})

	assert.True(t, IsKind(err, KindDownloadError), "got %v", err)
	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, StageDownloading, ierr.Stage)
	assert.Equal(t, StageFailed, out.Stage)

	var derr *DownloadError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, http.StatusInternalServerError, derr.StatusCode)
	assert.NoFileExists(t, LockPath(f.root, "tool"))
}

func TestInstall_UnsupportedFormat(t *testing.T) {
	f := newFixture(t)
	f.metadata = `{"tag_name":"v1","assets":[{"name":"tool-linux-portable.7z","browser_download_url":"https://x/tool.7z"}]}`
	f.assets["/tool.7z"] = []byte("7z")
	inst := f.installer(platform.FamilyLinux)

	spec := toolSpec()
	spec.AssetPattern = "{platform}-portable"

	_, err := inst.Install(context.Background(), spec, Options{})

	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, KindUnsupportedFormat, ierr.Kind)
	assert.Equal(t, StageExtracting, ierr.Stage)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestInstall_PermissionFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	orig := chmodFunc
	chmodFunc = func(string, os.FileMode) error { return errors.New("operation not permitted") }
	t.Cleanup(func() { chmodFunc = orig })

	out, err := inst.Install(context.Background(), toolSpec(), Options{})
	require.NoError(t, err)
	assert.Equal(t, StageDone, out.Stage)

	require.NotEmpty(t, out.Warnings)
	for _, w := range out.Warnings {
		assert.Equal(t, KindPermissionWarning, w.Kind)
		assert.False(t, w.Kind.Fatal())
	}
}

func TestInstall_CleanupFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	orig := removeFunc
	removeFunc = func(string) error { return errors.New("device or resource busy") }
	t.Cleanup(func() { removeFunc = orig })

	out, err := inst.Install(context.Background(), toolSpec(), Options{})
	require.NoError(t, err)
	assert.Equal(t, StageDone, out.Stage)

	require.Len(t, out.Warnings, 1)
	assert.Equal(t, KindCleanupWarning, out.Warnings[0].Kind)
	assert.Contains(t, out.Warnings[0].Err.Error(), "remove archive")
	assert.True(t, inst.IsInstalled(toolSpec()))
}

func TestInstall_MissingMarkerWarns(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	spec := toolSpec()
	spec.Markers = map[platform.Family]string{platform.FamilyLinux: "bin/absent"}

	out, err := inst.Install(context.Background(), spec, Options{})
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, KindVerifyWarning, out.Warnings[0].Kind)
	assert.False(t, inst.IsInstalled(spec))
}

func TestInstall_Locked(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	held, err := AcquireLock(f.root, "tool")
	require.NoError(t, err)
	defer held.Release()

	_, err = inst.Install(context.Background(), toolSpec(), Options{})

	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, KindLocked, ierr.Kind)
	assert.Equal(t, StageDownloading, ierr.Stage)
	assert.FileExists(t, LockPath(f.root, "tool"), "someone else's lock is left alone")
}

func TestInstall_ReportsProgress(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	var last, total int64
	calls := 0
	_, err := inst.Install(context.Background(), toolSpec(), Options{
		Progress: func(received, size int64) {
			calls++
			last, total = received, size
		},
	})
	require.NoError(t, err)

	require.Positive(t, calls)
	assert.Equal(t, int64(len(f.assets["/tool.tar.gz"])), total)
	assert.Equal(t, total, last)
}

func TestInstall_StaticSpec(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	spec := toolSpec()
	spec.Resolution = toolspec.ResolutionStatic
	spec.Version = "9.9"
	spec.URLTemplate = "https://x/tool{ext}"

	out, err := inst.Install(context.Background(), spec, Options{})
	require.NoError(t, err)
	assert.Equal(t, "9.9", out.Version)
	assert.Equal(t, []string{"https://x/tool.tar.gz"}, f.transport.URLs(), "static tools skip the API")
}

func TestStatus_NotInstalled(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	rec, err := inst.Status(toolSpec())
	require.NoError(t, err)
	assert.Equal(t, StateNotInstalled, rec.State)
	assert.Empty(t, rec.Version)
	assert.Zero(t, f.transport.Requests())
}

func TestStatus_UnknownVersion(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "tool"), 0o755))

	rec, err := inst.Status(toolSpec())
	require.NoError(t, err)
	assert.Equal(t, StateInstalled, rec.State)
	assert.Equal(t, UnknownVersion, rec.Version)
	assert.False(t, rec.Complete)
}

func TestUninstall_Idempotent(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	require.NoError(t, inst.Uninstall(toolSpec()), "never installed")

	_, err := inst.Install(context.Background(), toolSpec(), Options{})
	require.NoError(t, err)

	require.NoError(t, inst.Uninstall(toolSpec()))
	require.NoError(t, inst.Uninstall(toolSpec()))

	rec, err := inst.Status(toolSpec())
	require.NoError(t, err)
	assert.Equal(t, StateNotInstalled, rec.State)
}

func TestUninstallAll(t *testing.T) {
	f := newFixture(t)
	inst := f.installer(platform.FamilyLinux)

	_, err := inst.Install(context.Background(), toolSpec(), Options{})
	require.NoError(t, err)

	require.NoError(t, inst.UninstallAll())
	assert.NoDirExists(t, f.root)
	require.NoError(t, inst.UninstallAll(), "removing a missing root succeeds")
}

func TestValidateRootForRemoval(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	tests := []struct {
		root    string
		wantErr bool
	}{
		{"/", true},
		{"/usr", true},
		{"/etc/", true},
		{home, true},
		{"../../x", true},
		{filepath.Join(home, ".emby", "embedded-tools"), false},
	}

	for _, tt := range tests {
		t.Run(tt.root, func(t *testing.T) {
			err := ValidateRootForRemoval(tt.root)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Platform: platform.Descriptor{Family: platform.FamilyLinux}})
	require.Error(t, err)

	_, err = New(Config{Root: t.TempDir(), Platform: platform.Descriptor{Family: "win32"}})
	require.ErrorIs(t, err, platform.ErrUnsupported)
}

func ExampleInstaller_Status() {
	inst, _ := New(Config{
		Root:     filepath.Join(os.TempDir(), "embytools-example-root-that-does-not-exist"),
		Platform: platform.Descriptor{Family: platform.FamilyLinux, Arch: platform.ArchAMD64},
	})
	rec, _ := inst.Status(toolSpec())
	fmt.Println(rec.Tool, rec.State)
	// Output: tool not installed
}
