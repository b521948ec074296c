package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/embydev/embytools/internal/toolspec"
)

// EnvPrefix is the prefix of every environment variable read by Settings.
const EnvPrefix = "EMBYTOOLS"

// Setting keys. Each is also readable from EMBYTOOLS_<KEY>.
const (
	KeyRoot       = "root"
	KeyCatalog    = "catalog"
	KeyAPIURL     = "api_url"
	KeyLogLevel   = "log_level"
	KeyPlatform   = "platform"
	KeyNoProgress = "no_progress"
)

// Per-tool repository override keys, "<tool>.repo_owner" and
// "<tool>.repo_name", read from EMBYTOOLS_<TOOL>_REPO_OWNER and
// EMBYTOOLS_<TOOL>_REPO_NAME.
const (
	repoOwnerSuffix = "repo_owner"
	repoNameSuffix  = "repo_name"
)

// DefaultLogLevel is used when no level is configured.
const DefaultLogLevel = "warn"

// Settings is the resolved runtime configuration.
type Settings struct {
	// Root is the absolute installation root.
	Root string
	// Catalog is an optional Lua catalog file.
	Catalog string
	// APIURL overrides the GitHub API base URL.
	APIURL string
	// LogLevel is a logrus level name.
	LogLevel string
	// Platform overrides detection ("linux", "win32/arm64", ...).
	Platform string
	// NoProgress disables download progress output.
	NoProgress bool

	v *viper.Viper
}

// NewViper returns a viper instance wired to EMBYTOOLS_* variables. Flags
// are bound by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyNoProgress, false)

	// Renode's repository was historically overridden without the prefix.
	mustBindEnv(v, toolspec.Renode+"."+repoOwnerSuffix, "EMBYTOOLS_RENODE_REPO_OWNER", "RENODE_REPO_OWNER")
	mustBindEnv(v, toolspec.Renode+"."+repoNameSuffix, "EMBYTOOLS_RENODE_REPO_NAME", "RENODE_REPO_NAME")

	return v
}

// mustBindEnv panics on a malformed binding.
func mustBindEnv(v *viper.Viper, input ...string) {
	if err := v.BindEnv(input...); err != nil {
		panic(fmt.Sprintf("bind env %v: %v", input, err))
	}
}

// Load reads Settings from v. An empty root falls back to DefaultRoot.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Root:       strings.TrimSpace(v.GetString(KeyRoot)),
		Catalog:    strings.TrimSpace(v.GetString(KeyCatalog)),
		APIURL:     strings.TrimRight(strings.TrimSpace(v.GetString(KeyAPIURL)), "/"),
		LogLevel:   strings.TrimSpace(v.GetString(KeyLogLevel)),
		Platform:   strings.TrimSpace(v.GetString(KeyPlatform)),
		NoProgress: v.GetBool(KeyNoProgress),
		v:          v,
	}

	if s.Root == "" {
		root, err := DefaultRoot()
		if err != nil {
			return nil, err
		}
		s.Root = root
	}
	root, err := expandHome(s.Root)
	if err != nil {
		return nil, err
	}
	if root, err = filepath.Abs(root); err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", s.Root, err)
	}
	s.Root = root

	if s.Catalog != "" {
		if s.Catalog, err = expandHome(s.Catalog); err != nil {
			return nil, err
		}
	}
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}

	return s, nil
}

// DefaultRoot returns ~/.emby/embedded-tools.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".emby", "embedded-tools"), nil
}

// ApplyRepositoryOverrides returns catalog with the configured repository
// overrides applied to its dynamic tools.
func (s *Settings) ApplyRepositoryOverrides(catalog *toolspec.Catalog) (*toolspec.Catalog, error) {
	if s.v == nil {
		return catalog, nil
	}

	var overrides []toolspec.Spec
	for _, spec := range catalog.Specs() {
		if spec.Resolution != toolspec.ResolutionDynamic {
			continue
		}
		owner := strings.TrimSpace(s.v.GetString(spec.Name + "." + repoOwnerSuffix))
		repo := strings.TrimSpace(s.v.GetString(spec.Name + "." + repoNameSuffix))
		if owner == "" && repo == "" {
			continue
		}
		overrides = append(overrides, spec.WithRepository(owner, repo))
	}
	if len(overrides) == 0 {
		return catalog, nil
	}
	return catalog.Merge(overrides...)
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}
