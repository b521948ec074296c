package testutil_test

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embydev/embytools/internal/testutil"
)

func TestSetupTestEnv(t *testing.T) {
	t.Setenv("EMBYTOOLS_API_URL", "https://example.invalid")
	t.Setenv("RENODE_REPO_OWNER", "someone")

	root := testutil.SetupTestEnv(t)

	assert.Equal(t, root, os.Getenv("EMBYTOOLS_ROOT"))
	_, set := os.LookupEnv("EMBYTOOLS_API_URL")
	assert.False(t, set, "EMBYTOOLS_API_URL should be cleared")
	_, set = os.LookupEnv("RENODE_REPO_OWNER")
	assert.False(t, set, "RENODE_REPO_OWNER should be cleared")

	home := os.Getenv("HOME")
	require.DirExists(t, home)
	assert.Equal(t, filepath.Dir(home), filepath.Dir(root), "root and home share the temp dir")
	assert.NoDirExists(t, root)
}

func TestTransport(t *testing.T) {
	client, tr := testutil.NewClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Host)
	}))

	resp, err := client.Get("https://x/tool.tar.gz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, "x", string(body))
	assert.Equal(t, 1, tr.Requests())
	assert.Equal(t, []string{"https://x/tool.tar.gz"}, tr.URLs())
}

func TestArchivesAreNonEmpty(t *testing.T) {
	tgz := testutil.TarGz(t, testutil.Entry{Name: "X/"}, testutil.Entry{Name: "X/bin/tool", Body: "#!/bin/sh\n"})
	zip := testutil.Zip(t, testutil.Entry{Name: "X/"}, testutil.Entry{Name: "X/bin/tool", Body: "#!/bin/sh\n"})

	assert.True(t, len(tgz) > 0)
	assert.True(t, strings.HasPrefix(string(zip), "PK"))
}
