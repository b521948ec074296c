package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/embydev/embytools/internal/installer"
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func newStatusCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status [tool...]",
		Short: "Show which tools are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case outputText, outputJSON, outputYAML:
			default:
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", output)
			}
			if err := a.prepare(cmd); err != nil {
				return err
			}
			return a.runStatus(cmd, args, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")
	return cmd
}

func (a *app) runStatus(cmd *cobra.Command, names []string, output string) error {
	specs, err := a.catalog.Select(names...)
	if err != nil {
		return err
	}

	records := make([]installer.Record, 0, len(specs))
	for _, spec := range specs {
		rec, err := a.installer.Status(spec)
		if err != nil {
			return err
		}
		records = append(records, *rec)
	}

	out := cmd.OutOrStdout()
	switch output {
	case outputJSON:
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case outputYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		printStatusTable(out, a.installer.Root(), records)
	}
	return nil
}

func printStatusTable(w io.Writer, root string, records []installer.Record) {
	r := lipgloss.NewRenderer(w)
	header := r.NewStyle().Bold(true)
	installed := r.NewStyle().Foreground(lipgloss.Color("2"))
	incomplete := r.NewStyle().Foreground(lipgloss.Color("3"))
	missing := r.NewStyle().Foreground(lipgloss.Color("1"))

	fmt.Fprintf(w, "Installation root: %s\n\n", root)
	fmt.Fprintln(w, header.Render(fmt.Sprintf("%-16s %-14s %s", "TOOL", "VERSION", "STATUS")))

	for _, rec := range records {
		var state string
		switch {
		case rec.State != installer.StateInstalled:
			state = missing.Render(rec.State.String())
		case !rec.Complete:
			state = incomplete.Render(rec.State.String() + " (incomplete)")
		default:
			state = installed.Render(rec.State.String())
		}

		version := rec.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(w, "%-16s %-14s %s\n", rec.Tool, version, state)
	}
}
