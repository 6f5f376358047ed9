package main

import (
	"fmt"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/scantpaper/internal/tool"
)

// NewDepsCmd creates the deps command.
func NewDepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps [tool...]",
		Short: "Show which external tools are installed",
		Long: `Deps probes the external tools scantpaper can use and prints where they
were found. Tool paths from the configuration file are honoured.

Steps that need a missing tool fail with DependencyMissing; everything
else keeps working.`,
		Args: cobra.ArbitraryArgs,
		RunE: runDepsCmd,
	}
	cmd.Flags().BoolP("markdown", "m", false, "Print the table as Markdown")
	return cmd
}

func runDepsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	runner := tool.NewExec(
		tool.WithToolPaths(cfg.Settings.Tools),
		tool.WithLogger(setupLogger(cmd.ErrOrStderr(), cfg)),
	)
	deps := runner.Check(args...)

	if cfg.MarkdownReport {
		rows := make([][]string, 0, len(deps))
		for _, d := range deps {
			rows = append(rows, []string{d.Name, status(d), d.Path, d.Purpose})
		}
		return markdown.NewMarkdown(cmd.OutOrStdout()).
			H2("External tools").
			Table(markdown.TableSet{
				Header: []string{"Tool", "Status", "Path", "Used for"},
				Rows:   rows,
			}).
			Build()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-8s %s\n", "TOOL", "STATUS", "PATH")
	fmt.Fprintln(out, strings.Repeat("-", 60))
	missing := 0
	for _, d := range deps {
		path := d.Path
		if !d.Found {
			missing++
			path = "needed for " + d.Purpose
		}
		fmt.Fprintf(out, "%-10s %-8s %s\n", d.Name, status(d), path)
	}
	if missing > 0 {
		fmt.Fprintf(out, "\n%d tool(s) missing\n", missing)
	}
	return nil
}

func status(d tool.Dependency) string {
	if d.Found {
		return "found"
	}
	return "missing"
}
