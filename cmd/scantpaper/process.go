package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/scantpaper/internal/app"
	"github.com/nao1215/scantpaper/internal/config"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
)

// NewProcessCmd creates the process command.
func NewProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process [image...]",
		Short: "Import scanned images, process them and save documents",
		Long: `Process imports image files (PNG, JPEG, PNM) into a new session and runs
the given steps on the pages, in order. Each step is applied to every page
in the page range before the next step starts; pages are processed in
parallel within a step.

Steps:
  rotate[:90|180|270]          crop:x,y,width,height
  split:v|h,position           threshold[:percent]
  negate                       clear-ocr
  brightness-contrast:b,c      unsharp:radius,sigma,percent,threshold
  unpaper[:ltr|rtl[,pages]]    ocr[:language]
  user-defined:name            undo   redo
  save-pdf[:path]              save-djvu[:path]

A save step without a path, or with a directory, names the file from the
configured filename pattern.

Examples:
  # Straighten, recognise and save as PDF
  scantpaper process p1.png p2.png -s unpaper -s ocr -s save-pdf:letter.pdf

  # Split double pages and save as DjVu
  scantpaper process book-*.pnm -s split:v,2480 -s save-djvu:book.djvu

  # Keep the session to continue later with "scantpaper session restore"
  scantpaper process scan.jpg -s rotate:180 -k`,
		Args: cobra.ArbitraryArgs,
		RunE: runProcessCmd,
	}
	addRunFlags(cmd, false)
	return cmd
}

// runProcessCmd executes the process command.
func runProcessCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no input images provided (specify one or more image files as arguments)")
	}
	return runSession(cmd, args, func(cfg *config.Config, opts ...app.Option) (*app.Coordinator, error) {
		return app.New(cfg, opts...)
	})
}

// openFunc creates or restores the coordinator of a run.
type openFunc func(cfg *config.Config, opts ...app.Option) (*app.Coordinator, error)

// runSession runs the --step list over inputs in the session open returns
// and prints the processing report.
func runSession(cmd *cobra.Command, inputs []string, open openFunc) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	steps, err := parseSteps(cmd)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord, err := open(cfg,
		app.WithLogger(logger),
		app.WithCallbacks(progressCallbacks(cmd.ErrOrStderr())),
	)
	if err != nil {
		return err
	}

	logger.Info("processing",
		"session", coord.SessionDir(),
		"inputs", len(inputs),
		"steps", len(steps),
		"workers", cfg.Workers,
	)

	start := time.Now()
	runErr := coord.Run(ctx, inputs, steps, cfg.PageRange)
	if runErr != nil && ctx.Err() != nil {
		logger.Warn("interrupted, cancelling outstanding jobs")
	}

	// a cancelled run still reports what was done
	r, reportErr := coord.Report(context.Background())

	// Close drains the callback queue, so nothing else writes to stderr
	// after this point.
	keep := cfg.KeepSession
	if err := coord.Close(keep); err != nil {
		logger.Error("failed to close session", "error", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Processing completed in %s\n\n", time.Since(start).Round(time.Millisecond))
	if keep {
		fmt.Fprintf(cmd.ErrOrStderr(), "Session kept in %s\n", coord.SessionDir())
	}

	if reportErr == nil {
		reportErr = outputReport(cmd, cfg, r)
	}
	return errors.Join(runErr, reportErr)
}

// progressCallbacks prints one line per finished, failed or cancelled job.
func progressCallbacks(w io.Writer) pipeline.Callbacks {
	line := func(job *pipeline.Job, status string) {
		fmt.Fprintf(w, "[%s] %s (%d page(s)) %s\n",
			time.Since(job.Submitted).Round(time.Millisecond), job.Op, len(job.Targets), status)
	}
	return pipeline.Callbacks{
		Finished: func(job *pipeline.Job, r *pipeline.Result) {
			if r != nil && r.Output != "" {
				line(job, "saved "+r.Output)
				return
			}
			line(job, "done")
		},
		Error: func(job *pipeline.Job, err error) {
			line(job, "failed: "+model.Kind(err))
		},
		Cancelled: func(job *pipeline.Job) {
			line(job, "cancelled")
		},
	}
}
