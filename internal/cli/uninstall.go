package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUninstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall [tool...]",
		Short: "Remove tools (the whole installation root when none are named)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(cmd); err != nil {
				return err
			}
			return a.runUninstall(cmd, args)
		},
	}
}

func (a *app) runUninstall(cmd *cobra.Command, names []string) error {
	out := cmd.OutOrStdout()

	if len(names) == 0 {
		if err := a.installer.UninstallAll(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %s\n", a.installer.Root())
		return nil
	}

	specs, err := a.catalog.Select(names...)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if err := a.installer.Uninstall(spec); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %s\n", a.installer.InstallDir(spec))
	}
	return nil
}
