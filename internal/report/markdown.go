package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/scantpaper/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, for pasting into
// tickets or notes.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeOutputs(md, report)
	w.writeJobs(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("scantpaper Processing Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + report.Session + "`"},
			{"Generated", report.Generated.Format("2006-01-02 15:04:05 MST")},
			{"Pages", strconv.Itoa(report.Pages.Total)},
			{"Pages with text", strconv.Itoa(report.Pages.WithText)},
			{"Unsaved pages", strconv.Itoa(report.Pages.Unsaved)},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) getStatusText(report *model.Report) string {
	if report.HasFailures() {
		return "❌ " + strconv.Itoa(report.Count(model.JobFailed)) + " job(s) failed"
	}
	if report.Count(model.JobCancelled) > 0 {
		return "⚠️ Complete, some jobs cancelled"
	}
	return "✅ Complete"
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.Report) {
	md.H2("Job Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(states)+1)
	for _, state := range states {
		rows = append(rows, []string{opTitle(state), strconv.Itoa(report.Count(state))})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(len(report.Jobs)) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"State", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(report.Jobs) > 0 {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of job states.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.Report) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Job States"),
		piechart.WithShowData(true),
	)
	for _, state := range states {
		if n := report.Count(state); n > 0 {
			chart.LabelAndIntValue(opTitle(state), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.Report) {
	switch {
	case report.HasFailures():
		md.Cautionf("%d job(s) failed. Their pages were left unchanged.", report.Count(model.JobFailed))
	case report.Pages.Unsaved > 0:
		md.Warningf("%d page(s) have changes that were not saved to a document.", report.Pages.Unsaved)
	case len(report.Jobs) == 0:
		md.Note("No jobs were run.")
	default:
		md.Tip("All jobs finished and every page is saved.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeOutputs(md *markdown.Markdown, report *model.Report) {
	md.H2("Saved Documents")
	md.PlainText("")

	outputs := report.Outputs()
	if len(outputs) == 0 {
		md.PlainText("Nothing was saved.")
		md.PlainText("")
		return
	}
	md.BulletList(outputs...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeJobs(md *markdown.Markdown, report *model.Report) {
	md.H2("Jobs")
	md.PlainText("")

	if len(report.Jobs) == 0 {
		md.PlainText("No jobs were run.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Jobs))
	for i, j := range report.Jobs {
		errText := j.Error
		if errText == "" {
			errText = "-"
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			opTitle(j.Op),
			j.State,
			strconv.Itoa(j.Pages),
			j.Duration.Round(time.Millisecond).String(),
			truncateString(errText, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Operation", "State", "Pages", "Duration", "Error"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, j := range report.Failed() {
		if len(j.Error) > 60 {
			md.Details(opTitle(j.Op)+" "+j.ID, j.Error)
		}
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [scantpaper](https://github.com/nao1215/scantpaper)*")
}
