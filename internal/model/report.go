package model

import (
	"time"
)

// Job states as they appear in reports and the job log.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobFinished  = "finished"
	JobFailed    = "error"
	JobCancelled = "cancelled"
)

// Report summarises a processing run: the document it left behind and
// every job that was submitted.
type Report struct {
	// Session is the session directory the run worked in.
	Session string `json:"session"`

	// Generated is when the report was built.
	Generated time.Time `json:"generated"`

	Pages PageSummary  `json:"pages"`
	Jobs  []JobSummary `json:"jobs"`
}

// PageSummary counts the pages of the document.
type PageSummary struct {
	Total int `json:"total"`

	// WithText have an OCR text layer.
	WithText int `json:"with_text"`

	// Unsaved changed since they were last exported.
	Unsaved int `json:"unsaved"`
}

// JobSummary is one job of a run.
type JobSummary struct {
	ID       string        `json:"id"`
	Op       string        `json:"op"`
	State    string        `json:"state"`
	Pages    int           `json:"pages"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// NewReport creates a report for the given document pages.
func NewReport(session string, pages []Page, generated time.Time) *Report {
	r := &Report{
		Session:   session,
		Generated: generated,
		Jobs:      make([]JobSummary, 0),
	}
	r.Pages.Total = len(pages)
	for _, p := range pages {
		if p.HasText() {
			r.Pages.WithText++
		}
		if p.Dirty() {
			r.Pages.Unsaved++
		}
	}
	return r
}

// AddJob appends a job in submission order.
func (r *Report) AddJob(j JobSummary) {
	r.Jobs = append(r.Jobs, j)
}

// Count returns the number of jobs in state.
func (r *Report) Count(state string) int {
	n := 0
	for _, j := range r.Jobs {
		if j.State == state {
			n++
		}
	}
	return n
}

// Failed returns the jobs that ended with an error.
func (r *Report) Failed() []JobSummary {
	var out []JobSummary
	for _, j := range r.Jobs {
		if j.State == JobFailed {
			out = append(out, j)
		}
	}
	return out
}

// HasFailures reports whether any job failed.
func (r *Report) HasFailures() bool {
	return r.Count(JobFailed) > 0
}

// Outputs returns the files written by export jobs.
func (r *Report) Outputs() []string {
	var out []string
	for _, j := range r.Jobs {
		if j.State == JobFinished && j.Output != "" {
			out = append(out, j.Output)
		}
	}
	return out
}
