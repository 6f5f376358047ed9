package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/scantpaper/internal/app"
	"github.com/nao1215/scantpaper/internal/config"
	"github.com/nao1215/scantpaper/internal/session"
)

// NewSessionCmd creates the session command and its subcommands.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "List and restore kept sessions",
		Long: `A session is the directory that holds the page images and the session
database of a run. It is removed on exit unless --keep-session is given;
a kept session can be listed and restored, and more steps can be run on it.`,
	}
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionRestoreCmd())
	return cmd
}

func newSessionListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List kept sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			sessions, err := session.List(cfg.SessionRoot)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintf(out, "No sessions in %s\n", cfg.SessionRoot)
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintf(out, "%s  %s\n", s.Modified.Format(time.DateTime), s.Dir)
			}
			return nil
		},
	}
	cmd.Flags().String("session-root", "",
		"Directory for session directories (default: XDG cache directory)")
	return cmd
}

func newSessionRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <session-dir> [image...]",
		Short: "Reopen a kept session and run more steps on it",
		Long: `Restore reopens a session kept with --keep-session, optionally imports more
images after its last page, runs the given steps and prints the report.
The session is kept again unless --keep-session=false is given.

Examples:
  # Save a kept session as PDF
  scantpaper session restore ~/.cache/scantpaper/sessions/session-123 -s save-pdf:out.pdf

  # Add a page and OCR everything
  scantpaper session restore ./session-123 p9.png -s ocr`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			return runSession(cmd, args[1:], func(cfg *config.Config, opts ...app.Option) (*app.Coordinator, error) {
				return app.Restore(cfg, dir, opts...)
			})
		},
	}
	addRunFlags(cmd, true)
	return cmd
}
