package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embydev/embytools/internal/shell"
)

func newEnvCmd(a *app) *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Write the setup-env script and show how to load it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.prepare(cmd); err != nil {
				return err
			}

			family := a.desc.Family
			out := cmd.OutOrStdout()

			if printOnly {
				_, content, err := shell.Render(family, a.catalog.Specs())
				if err != nil {
					return err
				}
				fmt.Fprint(out, content)
				return nil
			}

			path, err := shell.Write(a.installer.Root(), family, a.catalog.Specs())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Environment script written to %s\n", path)
			fmt.Fprintf(out, "To use the tools, run:\n  %s\n", shell.ActivationHint(family, path))
			return nil
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the script instead of writing it")
	return cmd
}
