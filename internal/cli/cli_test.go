package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/embydev/embytools/internal/config"
	"github.com/embydev/embytools/internal/installer"
	"github.com/embydev/embytools/internal/platform"
	"github.com/embydev/embytools/internal/testutil"
	"github.com/embydev/embytools/internal/toolspec"
)

const renodeLatest = `{"tag_name":"v1.15.3","assets":[` +
	`{"name":"renode-1.15.3.dmg","browser_download_url":"https://builds.renode.io/renode-1.15.3.dmg"},` +
	`{"name":"renode-1.15.3.linux-portable.tar.gz","browser_download_url":"https://builds.renode.io/renode-1.15.3.linux-portable.tar.gz"}]}`

// env runs commands against a fake network that serves the default catalog.
type env struct {
	t         *testing.T
	root      string
	archive   []byte
	apiStatus int
	transport *testutil.Transport
	client    *http.Client
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		t:    t,
		root: testutil.SetupTestEnv(t),
		// One archive carries every marker so it can stand in for all three
		// tools.
		archive: testutil.TarGz(t,
			testutil.Entry{Name: "pkg/"},
			testutil.Entry{Name: "pkg/bin/arm-none-eabi-gcc", Body: "#!/bin/sh\n"},
			testutil.Entry{Name: "pkg/bin/openocd", Body: "#!/bin/sh\n"},
			testutil.Entry{Name: "pkg/renode", Body: "#!/bin/sh\n"},
			testutil.Entry{Name: "pkg/mono/bin/mono", Body: "#!/bin/sh\n"},
			testutil.Entry{Name: "pkg/mono/lib/libmono.so", Body: "ELF"},
		),
		apiStatus: http.StatusOK,
	}
	e.client, e.transport = testutil.NewClient(http.HandlerFunc(e.serve))
	return e
}

func (e *env) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Host == "api.github.com" {
		if e.apiStatus != http.StatusOK {
			http.Error(w, `{"message":"Not Found"}`, e.apiStatus)
			return
		}
		if r.URL.Path != "/repos/renode/renode/releases/latest" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(renodeLatest))
		return
	}
	if !strings.HasSuffix(r.URL.Path, ".tar.gz") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(e.archive)))
	_, _ = w.Write(e.archive)
}

// run executes one command line and returns stdout and stderr.
func (e *env) run(args ...string) (string, string, error) {
	e.t.Helper()
	a := &app{
		httpClient: e.client,
		detector:   platform.NewStaticDetector(platform.Descriptor{Family: platform.FamilyLinux, Arch: platform.ArchAMD64}),
	}
	cmd := newRootCmd("test", a)

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{}, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestInstall_AllTools(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run("install")
	require.NoError(t, err)

	for _, name := range []string{toolspec.ARMToolchain, toolspec.OpenOCD, toolspec.Renode} {
		assert.Contains(t, stdout, "Installing "+name+"...")
	}
	assert.Contains(t, stdout, "Progress: 100.0%")
	assert.Contains(t, stdout, "renode v1.15.3 installed to "+filepath.Join(e.root, "renode"))
	assert.FileExists(t, filepath.Join(e.root, "arm-toolchain", "bin", "arm-none-eabi-gcc"))
	assert.FileExists(t, filepath.Join(e.root, "openocd", "bin", "openocd"))
	assert.FileExists(t, filepath.Join(e.root, "renode", "renode"))

	script := filepath.Join(e.root, "setup-env.sh")
	assert.FileExists(t, script)
	assert.Contains(t, stdout, "source "+script)

	// One metadata request plus three downloads.
	assert.Equal(t, 4, e.transport.Requests())
	assert.Equal(t, "https://github.com/xpack-dev-tools/arm-none-eabi-gcc-xpack/releases/download/v14.2.1-1.1/xpack-arm-none-eabi-gcc-14.2.1-1.1-linux-x64.tar.gz",
		e.transport.URLs()[0])
}

func TestRoot_NoCommandInstallsAll(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run()
	require.NoError(t, err)

	for _, name := range []string{toolspec.ARMToolchain, toolspec.OpenOCD, toolspec.Renode} {
		assert.Contains(t, stdout, "Installing "+name+"...")
	}
	assert.FileExists(t, filepath.Join(e.root, "setup-env.sh"))
	assert.Equal(t, 4, e.transport.Requests())
}

func TestRoot_UnknownCommand(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
	assert.Zero(t, e.transport.Requests())
}

func TestRoot_BindsEveryFlag(t *testing.T) {
	a := &app{}
	var cmd *cobra.Command
	require.NotPanics(t, func() { cmd = newRootCmd("test", a) })

	flags := cmd.PersistentFlags()
	require.NoError(t, flags.Set("root", "/opt/tools"))
	require.NoError(t, flags.Set("log-level", "debug"))
	require.NoError(t, flags.Set("no-progress", "true"))

	assert.Equal(t, "/opt/tools", a.v.GetString(config.KeyRoot))
	assert.Equal(t, "debug", a.v.GetString(config.KeyLogLevel))
	assert.True(t, a.v.GetBool(config.KeyNoProgress))
}

func TestInstall_SecondRunSkips(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run("install", "renode")
	require.NoError(t, err)
	requests := e.transport.Requests()

	stdout, _, err := e.run("install", "renode")
	require.NoError(t, err)
	assert.Contains(t, stdout, "renode is already installed (version v1.15.3), skipping")
	assert.Equal(t, requests, e.transport.Requests())

	_, _, err = e.run("install", "renode", "--force")
	require.NoError(t, err)
	assert.Equal(t, requests*2, e.transport.Requests())
}

func TestInstall_NoProgress(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run("install", "openocd", "--no-progress")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "Progress:")
}

func TestInstall_FailureStopsRun(t *testing.T) {
	e := newEnv(t)
	e.apiStatus = http.StatusNotFound

	stdout, _, err := e.run("install", "renode", "openocd")
	require.Error(t, err)
	assert.True(t, installer.IsKind(err, installer.KindNotFound), "got %v", err)
	assert.NotContains(t, stdout, "Installing openocd")
	assert.NoFileExists(t, filepath.Join(e.root, "setup-env.sh"))
}

func TestInstall_UnknownTool(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run("install", "jlink")
	var unknown *toolspec.UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "jlink", unknown.Name)
	assert.Zero(t, e.transport.Requests())
}

func TestStatus_Text(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.run("install", "openocd")
	require.NoError(t, err)

	stdout, _, err := e.run("status")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Installation root: "+e.root)
	lines := strings.Split(stdout, "\n")
	var openocd, renode string
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "openocd "):
			openocd = l
		case strings.HasPrefix(l, "renode "):
			renode = l
		}
	}
	assert.Contains(t, openocd, "0.12.0-6")
	assert.Contains(t, openocd, "installed")
	assert.Contains(t, renode, "not installed")
	assert.Equal(t, 1, e.transport.Requests(), "status makes no requests")
}

func TestStatus_JSONAndYAML(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.run("install", "renode")
	require.NoError(t, err)

	stdout, _, err := e.run("status", "renode", "--output", "json")
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "renode", records[0]["tool"])
	assert.Equal(t, "installed", records[0]["state"])
	assert.Equal(t, "v1.15.3", records[0]["version"])
	assert.Equal(t, true, records[0]["complete"])

	stdout, _, err = e.run("status", "openocd", "-o", "yaml")
	require.NoError(t, err)

	var yrecords []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &yrecords))
	require.Len(t, yrecords, 1)
	assert.Equal(t, "not installed", yrecords[0]["state"])
	assert.NotContains(t, yrecords[0], "version")
}

func TestStatus_RejectsUnknownFormat(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run("status", "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown output format "xml"`)
}

func TestUninstall(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.run("install")
	require.NoError(t, err)

	stdout, _, err := e.run("uninstall", "renode")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed "+filepath.Join(e.root, "renode"))
	assert.NoDirExists(t, filepath.Join(e.root, "renode"))
	assert.DirExists(t, filepath.Join(e.root, "openocd"))

	// Removing again is not an error.
	_, _, err = e.run("uninstall", "renode")
	require.NoError(t, err)

	stdout, _, err = e.run("uninstall")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed "+e.root)
	assert.NoDirExists(t, e.root)
}

func TestEnv_WritesScript(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run("env")
	require.NoError(t, err)

	script := filepath.Join(e.root, "setup-env.sh")
	assert.FileExists(t, script)
	assert.Contains(t, stdout, "source "+script)
	assert.Zero(t, e.transport.Requests())
}

func TestEnv_PrintForWindows(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run("env", "--print", "--platform", "win32")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stdout, "@echo off\r\n"))
	assert.Contains(t, stdout, `%TOOLS_DIR%renode;%PATH%`)
	assert.NoDirExists(t, e.root)
}

func TestTools_ListsCatalog(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run("tools")
	require.NoError(t, err)

	assert.Contains(t, stdout, "NAME")
	assert.Regexp(t, `arm-toolchain\s+static\s+14\.2\.1-1\.1\s+arm-toolchain\s+yes`, stdout)
	assert.Regexp(t, `renode\s+dynamic\s+renode/renode@latest\s+renode\s+yes`, stdout)
}

func TestCatalogFlag(t *testing.T) {
	e := newEnv(t)
	catalog := filepath.Join(t.TempDir(), "tools.lua")
	require.NoError(t, os.WriteFile(catalog, []byte(`
		embytools = {
			tools = {
				{ name = "renode", owner = "antmicro" },
				platform.is_linux and {
					name = "gdb",
					version = "15.1",
					url_template = "https://example.com/gdb-{version}-{os}-{arch}{ext}",
					path_dirs = { "bin" },
				} or nil,
			},
		}
	`), 0o644))

	stdout, _, err := e.run("tools", "--catalog", catalog)
	require.NoError(t, err)
	assert.Contains(t, stdout, "antmicro/renode@latest")
	assert.Regexp(t, `gdb\s+static\s+15\.1`, stdout)
}

func TestCatalogFlag_InvalidCatalog(t *testing.T) {
	e := newEnv(t)
	catalog := filepath.Join(t.TempDir(), "tools.lua")
	require.NoError(t, os.WriteFile(catalog, []byte(`embytools = { tools = { { name = "renode", mirror = "x" } } }`), 0o644))

	_, _, err := e.run("status", "--catalog", catalog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renode.mirror: unknown field")
}

func TestRepositoryOverrideFromEnvironment(t *testing.T) {
	e := newEnv(t)
	t.Setenv("RENODE_REPO_OWNER", "antmicro")

	_, _, err := e.run("install", "renode")
	require.Error(t, err)
	assert.True(t, installer.IsKind(err, installer.KindNotFound))
	assert.Equal(t, []string{"https://api.github.com/repos/antmicro/renode/releases/latest"}, e.transport.URLs())
}

func TestRootFlagOverridesEnvironment(t *testing.T) {
	e := newEnv(t)
	other := filepath.Join(t.TempDir(), "elsewhere")

	_, _, err := e.run("install", "openocd", "--root", other, "--no-progress")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(other, "openocd", "bin", "openocd"))
	assert.NoDirExists(t, filepath.Join(e.root, "openocd"))
}

func TestLogLevelDebug(t *testing.T) {
	e := newEnv(t)

	_, stderr, err := e.run("status", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, stderr, `msg="target platform"`)

	_, _, err = e.run("status", "--log-level", "chatty")
	require.Error(t, err)
}
