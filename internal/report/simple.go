package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/scantpaper/internal/model"
)

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose lists every job, not only failures and outputs.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose lists every job.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeOutputs(&sb, report)
	w.writeFailures(&sb, report)
	if w.verbose {
		w.writeJobs(&sb, report)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      SCANTPAPER PROCESSING REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Session:        %s\n", report.Session)
	fmt.Fprintf(sb, "Generated:      %s\n", report.Generated.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Pages:          %d (%d with text, %d unsaved)\n",
		report.Pages.Total, report.Pages.WithText, report.Pages.Unsaved)

	if report.HasFailures() {
		fmt.Fprintf(sb, "Status:         %d JOB(S) FAILED\n", report.Count(model.JobFailed))
	} else {
		sb.WriteString("Status:         Complete\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.Report) {
	section(sb, "JOB SUMMARY")
	for _, state := range states {
		n := report.Count(state)
		if n == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "  %-10s %d\n", strings.ToUpper(state)+":", n)
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:     %d jobs\n\n", len(report.Jobs))
}

func (w *SimpleWriter) writeOutputs(sb *strings.Builder, report *model.Report) {
	outputs := report.Outputs()
	if len(outputs) == 0 && !w.showEmpty {
		return
	}
	section(sb, "SAVED DOCUMENTS")
	if len(outputs) == 0 {
		sb.WriteString("  Nothing saved\n")
	}
	for _, out := range outputs {
		fmt.Fprintf(sb, "  [+] %s\n", out)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.Report) {
	failed := report.Failed()
	if len(failed) == 0 && !w.showEmpty {
		return
	}
	section(sb, "FAILURES")
	if len(failed) == 0 {
		sb.WriteString("  No failures\n")
	}
	for _, j := range failed {
		fmt.Fprintf(sb, "  [!] %s (%d page(s))\n", opTitle(j.Op), j.Pages)
		fmt.Fprintf(sb, "      %s\n", j.Error)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeJobs(sb *strings.Builder, report *model.Report) {
	section(sb, "JOBS")
	for i, j := range report.Jobs {
		fmt.Fprintf(sb, "  %3d. %-22s %-10s %s\n", i+1, opTitle(j.Op), j.State, j.Duration.Round(time.Millisecond))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by scantpaper\n")
	sb.WriteString("https://github.com/nao1215/scantpaper\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
