package pipeline

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/scantpaper/internal/model"
)

// State is where a job is in its life cycle.
type State int32

const (
	// StateQueued: submitted, waiting for a worker or for its pages.
	StateQueued State = iota
	// StateRunning: a worker is executing the handler.
	StateRunning
	// StateFinished: the job succeeded and its changes are applied.
	StateFinished
	// StateFailed: the job ended in the error callback.
	StateFailed
	// StateCancelled: the job was cancelled before its changes were applied.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "error"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether no further callbacks follow.
func (s State) Terminal() bool {
	return s >= StateFinished
}

// Progress is reported through the running callback.
type Progress struct {
	// Fraction is 0-1, or negative when only steps are known.
	Fraction float64

	// Message describes the current step, e.g. "page 2 of 5".
	Message string
}

// Result is passed to the finished callback and returned by Handle.Wait.
type Result struct {
	JobID uuid.UUID
	Op    string

	// Pages are the page states the job produced, in change order.
	Pages []model.Page

	// Output is the file written by export jobs.
	Output string

	// Value is handler specific, e.g. the recognised text of an OCR job.
	Value any
}

// Callbacks are the per-stage notifications of one job. Any of them may be
// nil. For a single job they fire in the order
// Queued, Started, Running*, then exactly one of Finished, Error or
// Cancelled. A job cancelled while queued goes from Queued to Cancelled.
type Callbacks struct {
	Queued    func(job *Job)
	Started   func(job *Job)
	Running   func(job *Job, p Progress)
	Finished  func(job *Job, r *Result)
	Error     func(job *Job, err error)
	Cancelled func(job *Job)
}

// Job is one submitted operation.
type Job struct {
	// ID is assigned on submission.
	ID uuid.UUID

	// Op is the registered handler name.
	Op string

	// Targets are the pages the job works on, in the order the handler
	// should see them.
	Targets []uuid.UUID

	// Params is the handler-specific parameter value.
	Params any

	// Callbacks receive the stage notifications.
	Callbacks Callbacks

	// Submitted is when Submit accepted the job.
	Submitted time.Time

	state atomic.Int32

	// barrier jobs wait for every earlier job and hold back every later one
	barrier bool
	serial  bool
	handler Handler

	ctx       context.Context
	cancel    context.CancelFunc
	cancelled bool // guarded by Engine.mu
	committed bool // guarded by Engine.mu; changes are being applied
	done      chan struct{}
	result    *Result
	err       error
}

// serialLane is held by the running serial job. Page UUIDs are random
// (version 4), so they never collide with it.
var serialLane = uuid.Max

// lanes are the keys the job holds while it runs.
func (j *Job) lanes() []uuid.UUID {
	if !j.serial {
		return j.Targets
	}
	return append(slices.Clone(j.Targets), serialLane)
}

// State returns the current state.
func (j *Job) State() State {
	return State(j.state.Load())
}

func (j *Job) setState(s State) {
	j.state.Store(int32(s))
}

// Handle is the caller's grip on a submitted job.
type Handle struct {
	job    *Job
	engine *Engine
}

// Job returns the job.
func (h *Handle) Job() *Job { return h.job }

// ID returns the job ID.
func (h *Handle) ID() uuid.UUID { return h.job.ID }

// Cancel asks the job to stop. A queued job is dropped at once; a running
// job's context is cancelled and its handler stops at the next safe point.
// It reports false if the job already reached, or is committed to, a
// terminal state.
func (h *Handle) Cancel() bool {
	return h.engine.cancelJob(h.job)
}

// Done is closed when the job reaches a terminal state and its terminal
// callback has been dispatched.
func (h *Handle) Done() <-chan struct{} { return h.job.done }

// Wait blocks until the job is terminal or ctx is done. A cancelled job
// returns an error wrapping model.ErrCancelled.
func (h *Handle) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-h.job.done:
		return h.job.result, h.job.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
