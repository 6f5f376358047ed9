// Package report writes the summary of a processing run.
//
// This package contains writers for different output formats:
//   - SimpleWriter: plain text for terminal display
//   - MarkdownWriter: Markdown with a job state chart, for sharing
//   - JSONWriter: structured JSON for scripts
//
// Writers implement the Writer interface and can be combined with
// MultiWriter. The report data itself is model.Report.
package report
