// Package cli implements the embytools command line.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/embydev/embytools/internal/config"
	"github.com/embydev/embytools/internal/installer"
	"github.com/embydev/embytools/internal/platform"
	"github.com/embydev/embytools/internal/release"
	"github.com/embydev/embytools/internal/toolspec"
)

// Execute runs the root command and returns the process exit code.
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(version, &app{})
}

// app carries what every subcommand needs. The zero value detects the host
// platform and talks to the real network; tests inject httpClient and
// detector.
type app struct {
	httpClient *http.Client
	detector   platform.Detector

	v         *viper.Viper
	settings  *config.Settings
	logger    config.Logger
	desc      platform.Descriptor
	catalog   *toolspec.Catalog
	installer *installer.Installer
}

func newRootCmd(version string, a *app) *cobra.Command {
	a.v = config.NewViper()

	cmd := &cobra.Command{
		Use:   "embytools",
		Short: "Install the embedded development toolchain",
		Long: `embytools downloads the ARM GNU toolchain, OpenOCD and Renode into a
single directory and writes a setup-env script that puts them on PATH.

Run without a command it installs every tool, like "embytools install".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(cmd); err != nil {
				return err
			}
			return a.runInstall(cmd, nil, false)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("root", "", "Installation root (default ~/.emby/embedded-tools)")
	flags.String("catalog", "", "Lua file overriding or extending the tool catalog")
	flags.String("api-url", "", "GitHub API base URL")
	flags.String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	flags.String("platform", "", "Target platform instead of the detected one (linux, darwin, win32[/arch])")
	flags.Bool("no-progress", false, "Do not report download progress")

	for key, name := range map[string]string{
		config.KeyRoot:       "root",
		config.KeyCatalog:    "catalog",
		config.KeyAPIURL:     "api-url",
		config.KeyLogLevel:   "log-level",
		config.KeyPlatform:   "platform",
		config.KeyNoProgress: "no-progress",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag --%s: %v", name, err))
		}
	}

	cmd.AddCommand(newInstallCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newUninstallCmd(a))
	cmd.AddCommand(newEnvCmd(a))
	cmd.AddCommand(newToolsCmd(a))

	return cmd
}

// prepare loads settings and builds the catalog and installer. It is called
// by each subcommand so that help never touches the filesystem.
func (a *app) prepare(cmd *cobra.Command) error {
	if a.installer != nil {
		return nil
	}
	ctx := cmd.Context()

	settings, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.settings = settings

	logger, err := config.NewLogrusLogger(cmd.ErrOrStderr(), settings.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger

	desc, err := a.detectPlatform(ctx)
	if err != nil {
		return err
	}
	a.desc = *desc
	logger.Debug("target platform", "platform", desc.String(), "distro", desc.Distro)

	catalog := toolspec.DefaultCatalog()
	if settings.Catalog != "" {
		parser := config.NewCatalogParser(platform.NewStaticDetector(a.desc)).WithLogger(logger)
		catalog, err = parser.ParseFile(ctx, settings.Catalog, catalog)
		if err != nil {
			return fmt.Errorf("load catalog %s: %s", settings.Catalog, config.FormatError(err, false))
		}
	}
	if catalog, err = settings.ApplyRepositoryOverrides(catalog); err != nil {
		return err
	}
	a.catalog = catalog

	httpClient := a.httpClient
	if httpClient == nil {
		httpClient = installer.NewHTTPClient()
	}
	resolver := release.NewResolver(release.NewClient(httpClient, settings.APIURL), logger)

	a.installer, err = installer.New(installer.Config{
		Root:       settings.Root,
		Platform:   a.desc,
		Resolver:   resolver,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	return err
}

func (a *app) detectPlatform(ctx context.Context) (*platform.Descriptor, error) {
	if a.settings.Platform != "" {
		return platform.Parse(a.settings.Platform, runtime.GOARCH)
	}
	detector := a.detector
	if detector == nil {
		detector = platform.NewDetector()
	}
	return detector.Detect(ctx)
}
