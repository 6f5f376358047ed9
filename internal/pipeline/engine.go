package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/scantpaper/internal/config"
	"github.com/nao1215/scantpaper/internal/document"
	"github.com/nao1215/scantpaper/internal/history"
	"github.com/nao1215/scantpaper/internal/model"
)

// EventKind is the stage an Event reports.
type EventKind int

const (
	EventQueued EventKind = iota
	EventStarted
	EventRunning
	EventFinished
	EventError
	EventCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventQueued:
		return "queued"
	case EventStarted:
		return "started"
	case EventRunning:
		return "running"
	case EventFinished:
		return "finished"
	case EventError:
		return "error"
	case EventCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Event is what subscribers receive for every job stage.
type Event struct {
	Kind     EventKind
	Job      *Job
	Progress Progress
	Result   *Result
	Err      error
}

// Task describes a job to submit.
type Task struct {
	Op        string
	Targets   []uuid.UUID
	Params    any
	Callbacks Callbacks

	// Serial jobs start one at a time, in submission order, while other
	// jobs keep running beside them.
	Serial bool
}

// Engine schedules and runs jobs against a document.
type Engine struct {
	doc        *document.Document
	registry   *Registry
	history    *history.History
	cfg        *config.Config
	dispatcher Dispatcher
	logger     *slog.Logger
	workers    int
	checkTool  func(tool string) error
	afterJob   func(job *Job)

	ctx      context.Context
	stop     context.CancelFunc
	group    *errgroup.Group
	wake     chan struct{}
	loopDone chan struct{}

	mu      sync.Mutex
	pending []*Job
	busy    map[uuid.UUID]bool
	running int
	barrier bool
	closed  bool
	active  int
	idle    chan struct{}
	subs    map[int]func(Event)
	nextSub int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithWorkers sets how many jobs may run at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithDispatcher sets how callbacks are delivered.
func WithDispatcher(d Dispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithHistory records successful jobs for undo and enables Undo and Redo.
func WithHistory(h *history.History) Option {
	return func(e *Engine) {
		e.history = h
	}
}

// WithConfig passes cfg to every handler invocation.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithToolCheck sets the function used to verify, before a handler runs,
// that each tool it requires is installed. It should return a
// *model.DependencyError for a missing tool.
func WithToolCheck(fn func(tool string) error) Option {
	return func(e *Engine) {
		e.checkTool = fn
	}
}

// WithAfterJob registers fn to run on the worker after each job's terminal
// callback has been dispatched.
func WithAfterJob(fn func(job *Job)) Option {
	return func(e *Engine) {
		e.afterJob = fn
	}
}

// New creates an Engine for doc and starts its coordinator. Close must be
// called to release it.
func New(doc *document.Document, registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		doc:        doc,
		registry:   registry,
		cfg:        config.NewConfig(),
		dispatcher: DirectDispatcher{},
		logger:     slog.Default(),
		workers:    config.DefaultWorkers(),
		wake:       make(chan struct{}, 1),
		loopDone:   make(chan struct{}),
		busy:       make(map[uuid.UUID]bool),
		idle:       closedChan(),
		subs:       make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.stop = context.WithCancel(context.Background())
	e.group = &errgroup.Group{}
	e.group.SetLimit(e.workers)
	go e.loop()
	return e
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Workers returns the worker count.
func (e *Engine) Workers() int { return e.workers }

// Subscribe registers fn for every job event. Events go through the
// engine's dispatcher, after the job's own callback for the same stage.
func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Submit queues a job for the registered handler of t.Op. The queued
// callback runs before Submit returns.
func (e *Engine) Submit(t Task) (*Handle, error) {
	h, ok := e.registry.Lookup(t.Op)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, t.Op)
	}
	return e.submit(t, h, false)
}

// CanUndo reports whether an undo job would have something to revert.
func (e *Engine) CanUndo() bool { return e.history != nil && e.history.CanUndo() }

// CanRedo reports whether a redo job would have something to reapply.
func (e *Engine) CanRedo() bool { return e.history != nil && e.history.CanRedo() }

// Undo queues a job reverting the most recent recorded operation. It waits
// for every job submitted before it, and jobs submitted after it wait for
// it, so it always reverts the operation that was last when it runs.
func (e *Engine) Undo(cb Callbacks) (*Handle, error) {
	return e.submit(Task{Op: "undo", Callbacks: cb}, &undoHandler{history: e.history}, true)
}

// Redo queues a job reapplying the most recently undone operation.
func (e *Engine) Redo(cb Callbacks) (*Handle, error) {
	return e.submit(Task{Op: "redo", Callbacks: cb}, &undoHandler{history: e.history, redo: true}, true)
}

func (e *Engine) submit(t Task, h Handler, barrier bool) (*Handle, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	job := &Job{
		ID:        uuid.New(),
		Op:        t.Op,
		Targets:   slices.Clone(t.Targets),
		Params:    t.Params,
		Callbacks: t.Callbacks,
		Submitted: time.Now(),
		barrier:   barrier,
		serial:    t.Serial,
		handler:   h,
		done:      make(chan struct{}),
	}
	job.ctx, job.cancel = context.WithCancel(e.ctx)
	handle := &Handle{job: job, engine: e}

	if job.Callbacks.Queued != nil {
		job.Callbacks.Queued(job)
	}
	e.publish(Event{Kind: EventQueued, Job: job})

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		job.cancel()
		return nil, ErrClosed
	}
	e.pending = append(e.pending, job)
	if e.active == 0 {
		e.idle = make(chan struct{})
	}
	e.active++
	e.mu.Unlock()

	e.logger.Debug("job queued", "job", job.ID, "op", job.Op, "pages", len(job.Targets))
	e.signal()
	return handle, nil
}

// Wait blocks until no job is queued or running, or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued jobs.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Running returns the number of running jobs.
func (e *Engine) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Close cancels queued and running jobs, waits for the workers to return
// and stops the coordinator. Submit fails afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	pending := e.pending
	e.pending = nil
	for _, job := range pending {
		job.cancelled = true
	}
	e.mu.Unlock()

	for _, job := range pending {
		e.dropQueued(job)
	}
	e.stop()
	<-e.loopDone
	_ = e.group.Wait()
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) loop() {
	defer close(e.loopDone)
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.wake:
		}
		for _, job := range e.schedule() {
			e.group.Go(func() error {
				e.run(job)
				return nil
			})
		}
	}
}

// schedule picks the jobs that can start now. A job waits while any of its
// pages is held by a running job or by an earlier queued job, so jobs on a
// page start in submission order.
func (e *Engine) schedule() []*Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.barrier {
		return nil
	}

	var (
		start []*Job
		keep  []*Job
		held  = make(map[uuid.UUID]bool)
	)
	for i, job := range e.pending {
		if job.barrier {
			if e.running == 0 && len(keep) == 0 {
				e.running++
				e.barrier = true
				start = append(start, job)
				keep = append(keep, e.pending[i+1:]...)
			} else {
				keep = append(keep, e.pending[i:]...)
			}
			break
		}
		if e.running >= e.workers || e.conflicts(job, held) {
			for _, id := range job.lanes() {
				held[id] = true
			}
			keep = append(keep, job)
			continue
		}
		for _, id := range job.lanes() {
			e.busy[id] = true
		}
		e.running++
		start = append(start, job)
	}
	e.pending = keep
	return start
}

func (e *Engine) conflicts(job *Job, held map[uuid.UUID]bool) bool {
	for _, id := range job.lanes() {
		if e.busy[id] || held[id] {
			return true
		}
	}
	return false
}

func (e *Engine) run(job *Job) {
	job.setState(StateRunning)
	e.logger.Debug("job started", "job", job.ID, "op", job.Op)
	e.emit(Event{Kind: EventStarted, Job: job}, func() {
		if job.Callbacks.Started != nil {
			job.Callbacks.Started(job)
		}
	})

	start := time.Now()
	result, err := e.execute(job)
	e.terminate(job, result, err)
	e.logger.Debug("job done", "job", job.ID, "op", job.Op, "state", job.State().String(), "duration", time.Since(start))
	if e.afterJob != nil {
		e.afterJob(job)
	}

	e.mu.Lock()
	for _, id := range job.lanes() {
		delete(e.busy, id)
	}
	e.running--
	if job.barrier {
		e.barrier = false
	}
	e.deactivate()
	e.mu.Unlock()
	e.signal()
}

func (e *Engine) execute(job *Job) (*Result, error) {
	pages, err := e.resolve(job)
	if err != nil {
		return nil, err
	}
	if e.checkTool != nil {
		for _, name := range job.handler.Requires() {
			if err := e.checkTool(name); err != nil {
				return nil, fmt.Errorf("%s: %w", job.Op, err)
			}
		}
	}

	req := &Request{
		Job:    job,
		Pages:  pages,
		Config: e.cfg,
		progress: func(p Progress) {
			e.emit(Event{Kind: EventRunning, Job: job, Progress: p}, func() {
				if job.Callbacks.Running != nil {
					job.Callbacks.Running(job, p)
				}
			})
		},
	}
	out, err := invoke(job.ctx, job.handler, req)
	if job.ctx.Err() != nil {
		discard(out)
		return nil, cancelledErr(job)
	}
	if err != nil {
		discard(out)
		return nil, fmt.Errorf("%s: %w", job.Op, err)
	}
	if out == nil {
		out = &Outcome{}
	}

	if !e.commit(job) {
		discard(out)
		return nil, cancelledErr(job)
	}
	if err := e.doc.Apply(out.Changes); err != nil {
		discard(out)
		return nil, fmt.Errorf("%s: %w", job.Op, err)
	}
	switch {
	case out.applied != nil:
		out.applied()
	case e.history != nil && !out.NoHistory:
		e.history.Record(history.Entry{Op: job.Op, Forward: out.Changes, JobID: job.ID, Time: time.Now()})
	}

	res := &Result{JobID: job.ID, Op: job.Op, Output: out.Output, Value: out.Value}
	for _, c := range out.Changes {
		if c.After != nil {
			res.Pages = append(res.Pages, *c.After)
		}
	}
	return res, nil
}

// resolve looks the targets up in the current document. Targets are UUIDs
// rather than indices so that edits made while the job waited do not
// redirect it.
func (e *Engine) resolve(job *Job) ([]model.Page, error) {
	snap := e.doc.Snapshot()
	pages := make([]model.Page, 0, len(job.Targets))
	for _, id := range job.Targets {
		p, ok := snap.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%s: page %s: %w", job.Op, id, model.ErrPageNotFound)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func invoke(ctx context.Context, h Handler, req *Request) (out *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, h.Name(), r)
		}
	}()
	return h.Do(ctx, req)
}

func discard(out *Outcome) {
	if out != nil && out.discarded != nil {
		out.discarded()
	}
}

func cancelledErr(job *Job) error {
	return fmt.Errorf("%s: job %s: %w", job.Op, job.ID, model.ErrCancelled)
}

// commit marks job as past the point of cancellation. It fails if Cancel
// got there first.
func (e *Engine) commit(job *Job) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if job.cancelled {
		return false
	}
	job.committed = true
	return true
}

func (e *Engine) cancelJob(job *Job) bool {
	e.mu.Lock()
	if job.cancelled || job.committed || job.State().Terminal() {
		e.mu.Unlock()
		return false
	}
	job.cancelled = true
	i := slices.Index(e.pending, job)
	if i < 0 {
		e.mu.Unlock()
		e.logger.Debug("cancelling running job", "job", job.ID, "op", job.Op)
		job.cancel()
		return true
	}
	e.pending = slices.Delete(e.pending, i, i+1)
	e.mu.Unlock()

	e.dropQueued(job)
	e.signal()
	return true
}

// dropQueued ends a job that never started.
func (e *Engine) dropQueued(job *Job) {
	job.cancel()
	e.terminate(job, nil, cancelledErr(job))
	e.mu.Lock()
	e.deactivate()
	e.mu.Unlock()
}

// terminate records the outcome and dispatches the terminal callback.
func (e *Engine) terminate(job *Job, result *Result, err error) {
	job.result, job.err = result, err
	cb := job.Callbacks
	switch {
	case err == nil:
		job.setState(StateFinished)
		e.emit(Event{Kind: EventFinished, Job: job, Result: result}, func() {
			if cb.Finished != nil {
				cb.Finished(job, result)
			}
		})
	case errors.Is(err, model.ErrCancelled):
		job.setState(StateCancelled)
		e.emit(Event{Kind: EventCancelled, Job: job, Err: err}, func() {
			if cb.Cancelled != nil {
				cb.Cancelled(job)
			}
		})
	default:
		job.setState(StateFailed)
		e.logger.Warn("job failed", "job", job.ID, "op", job.Op, "kind", model.Kind(err), "error", err)
		e.emit(Event{Kind: EventError, Job: job, Err: err}, func() {
			if cb.Error != nil {
				cb.Error(job, err)
			}
		})
	}
	job.cancel()
	close(job.done)
}

// deactivate must be called with mu held.
func (e *Engine) deactivate() {
	e.active--
	if e.active == 0 {
		close(e.idle)
	}
}

func (e *Engine) emit(ev Event, callback func()) {
	subs := e.subscribers()
	e.dispatcher.Dispatch(func() {
		callback()
		for _, fn := range subs {
			fn(ev)
		}
	})
}

func (e *Engine) publish(ev Event) {
	subs := e.subscribers()
	if len(subs) == 0 {
		return
	}
	e.dispatcher.Dispatch(func() {
		for _, fn := range subs {
			fn(ev)
		}
	})
}

func (e *Engine) subscribers() []func(Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int, 0, len(e.subs))
	for id := range e.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, e.subs[id])
	}
	return out
}
