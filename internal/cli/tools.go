package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/embydev/embytools/internal/toolspec"
)

func newToolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.prepare(cmd); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tRESOLUTION\tSOURCE\tSUBDIR\tAVAILABLE")
			for _, spec := range a.catalog.Specs() {
				available := "yes"
				if !spec.Supports(a.desc.Family) {
					available = "no"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					spec.Name, spec.Resolution, toolSource(spec), spec.Subdir, available)
			}
			return tw.Flush()
		},
	}
}

// toolSource describes where a tool's archive comes from.
func toolSource(spec toolspec.Spec) string {
	if spec.Resolution == toolspec.ResolutionDynamic {
		return spec.Repository() + "@latest"
	}
	return spec.Version
}
