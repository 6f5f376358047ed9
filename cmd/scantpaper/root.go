package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for scantpaper.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scantpaper",
		Short: "Turn scanned pages into PDF and DjVu documents",
		Long: `scantpaper processes scanned page images into finished documents.

Pages are imported into a session directory, processed by a queue of
operations (rotate, crop, split, threshold, negate, brightness-contrast,
unsharp, unpaper, OCR, user-defined tools) and saved as PDF or DjVu.
Operations on different pages run in parallel; operations on the same page
run in the order they were given.

External tools (ImageMagick, unpaper, tesseract, DjVuLibre) are used when
installed. Run "scantpaper deps" to see which ones are available.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .scantpaper in current or home directory)")

	cmd.AddCommand(NewProcessCmd())
	cmd.AddCommand(NewDepsCmd())
	cmd.AddCommand(NewSessionCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
