// Package testutil provides utilities for testing embytools in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SetupTestEnv isolates a test from the user's real installation: HOME and
// the installation root point into a temp directory and every EMBYTOOLS_*
// and RENODE_REPO_* variable is cleared. It returns the installation root,
// which is not created.
//
// The cleanup function is automatically handled by t.TempDir() and
// t.Setenv(), so callers don't need to manually clean up.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	home := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(home, 0o750); err != nil {
		t.Fatalf("failed to create test home %s: %v", home, err)
	}

	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "EMBYTOOLS_") || strings.HasPrefix(key, "RENODE_REPO_") {
			// Setenv first so the original value is restored after the test.
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}

	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	root := filepath.Join(tmpDir, "tools")
	t.Setenv("EMBYTOOLS_ROOT", root)
	return root
}
