package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/embydev/embytools/internal/installer"
	"github.com/embydev/embytools/internal/shell"
	"github.com/embydev/embytools/internal/toolspec"
)

func newInstallCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "install [tool...]",
		Short: "Install tools (all catalog tools when none are named)",
		Long: `Install downloads, extracts and prepares each tool in order. Tools that
are already installed are skipped unless --force is given. The first failure
stops the run.

After a successful run the setup-env script in the installation root is
regenerated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(cmd); err != nil {
				return err
			}
			return a.runInstall(cmd, args, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Reinstall even if the tool is already present")
	return cmd
}

func (a *app) runInstall(cmd *cobra.Command, names []string, force bool) error {
	specs, err := a.catalog.Select(names...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	family := a.desc.Family
	for _, spec := range specs {
		if len(names) == 0 && !spec.Supports(family) {
			fmt.Fprintf(out, "Skipping %s: not available on %s\n", spec.Name, family)
			continue
		}

		fmt.Fprintf(out, "Installing %s...\n", spec.Name)
		opts := installer.Options{
			Force:    force,
			Progress: newProgress(out, a.settings.NoProgress),
		}
		outcome, err := a.installer.Install(cmd.Context(), spec, opts)
		if err != nil {
			return err
		}
		printOutcome(cmd, spec, outcome)
	}

	scriptPath, err := shell.Write(a.installer.Root(), family, a.catalog.Specs())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nEnvironment script written to %s\n", scriptPath)
	fmt.Fprintf(out, "To use the tools, run:\n  %s\n", shell.ActivationHint(family, scriptPath))
	return nil
}

func printOutcome(cmd *cobra.Command, spec toolspec.Spec, outcome *installer.Outcome) {
	out := cmd.OutOrStdout()

	if outcome.Skipped {
		fmt.Fprintf(out, "%s is already installed (version %s), skipping\n", spec.Name, outcome.Version)
		return
	}

	for _, w := range outcome.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	fmt.Fprintf(out, "%s %s installed to %s (%s)\n",
		spec.Name, outcome.Version, outcome.Path, outcome.Elapsed.Round(100*time.Millisecond))
}
