package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/scantpaper/internal/config"
	"github.com/nao1215/scantpaper/internal/database"
	"github.com/nao1215/scantpaper/internal/document"
	"github.com/nao1215/scantpaper/internal/handler"
	"github.com/nao1215/scantpaper/internal/history"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
	"github.com/nao1215/scantpaper/internal/session"
	"github.com/nao1215/scantpaper/internal/tool"
)

// toolFinder is implemented by runners that can tell whether a tool is
// installed, such as *tool.Exec.
type toolFinder interface {
	Executable(tool string) (string, error)
}

// Coordinator owns one open document and the machinery that works on it.
type Coordinator struct {
	cfg         *config.Config
	logger      *slog.Logger
	runner      tool.Runner
	sessionOpts []session.Option
	callbacks   pipeline.Callbacks

	session  *session.Session
	store    *database.Store
	doc      *document.Document
	history  *history.History
	registry *pipeline.Registry
	engine   *pipeline.Engine

	queue     *pipeline.QueueDispatcher
	queueDone chan struct{}

	// dirty is set by document events and cleared when the page list is
	// written to the store.
	dirty     atomic.Bool
	persistMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithRunner replaces the external tool runner.
func WithRunner(r tool.Runner) Option {
	return func(c *Coordinator) {
		c.runner = r
	}
}

// WithSessionOptions passes options to the session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *Coordinator) {
		c.sessionOpts = append(c.sessionOpts, opts...)
	}
}

// WithCallbacks sets the callbacks every job submitted by Run gets.
func WithCallbacks(cb pipeline.Callbacks) Option {
	return func(c *Coordinator) {
		c.callbacks = cb
	}
}

func newCoordinator(cfg *config.Config, opts []Option) (*Coordinator, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.runner == nil {
		var paths map[string]string
		if cfg.Settings != nil {
			paths = cfg.Settings.Tools
		}
		c.runner = tool.NewExec(
			tool.WithTimeout(cfg.ToolTimeout),
			tool.WithToolPaths(paths),
			tool.WithLogger(c.logger),
		)
	}
	c.sessionOpts = append([]session.Option{
		session.WithLogger(c.logger),
		session.WithLowWater(cfg.AvailableTmpWarning),
	}, c.sessionOpts...)
	return c, nil
}

// New creates a Coordinator with a fresh session under cfg.SessionRoot.
func New(cfg *config.Config, opts ...Option) (*Coordinator, error) {
	c, err := newCoordinator(cfg, opts)
	if err != nil {
		return nil, err
	}
	sess, err := session.New(c.cfg.SessionRoot, c.sessionOpts...)
	if err != nil {
		return nil, err
	}
	store, err := database.Open(sess.Dir(), database.DefaultOptions())
	if err != nil {
		_ = sess.Close(false)
		return nil, err
	}
	if err := c.start(sess, store, nil); err != nil {
		_ = store.Close()
		_ = sess.Close(false)
		return nil, err
	}
	c.logger.Debug("session created", "dir", sess.Dir())
	return c, nil
}

// Restore reopens a kept session directory with its pages.
func Restore(cfg *config.Config, dir string, opts ...Option) (*Coordinator, error) {
	c, err := newCoordinator(cfg, opts)
	if err != nil {
		return nil, err
	}
	sess, err := session.Open(dir, c.sessionOpts...)
	if err != nil {
		return nil, err
	}
	store, err := database.Open(sess.Dir(), database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return nil, err
	}
	pages, err := store.LoadPages(context.Background())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	kept := pages[:0]
	for _, p := range pages {
		if _, err := os.Stat(p.ImagePath); err != nil {
			c.logger.Warn("page image is missing, dropping the page", "page", p.UUID, "path", p.ImagePath)
			continue
		}
		kept = append(kept, p)
	}
	if err := c.start(sess, store, kept); err != nil {
		_ = store.Close()
		return nil, err
	}
	c.logger.Debug("session restored", "dir", sess.Dir(), "pages", len(kept))
	return c, nil
}

func (c *Coordinator) start(sess *session.Session, store *database.Store, pages []model.Page) error {
	c.session = sess
	c.store = store
	c.doc = document.New(document.WithLogger(c.logger))
	if len(pages) > 0 {
		if err := c.doc.Append(pages...); err != nil {
			return fmt.Errorf("restore pages: %w", err)
		}
	}
	c.doc.Subscribe(func(document.Event) { c.dirty.Store(true) })
	c.history = history.New(c.cfg.HistoryLimit)

	env := &handler.Env{Workspace: sess, Runner: c.runner, Logger: c.logger}
	c.registry = handler.NewRegistry(env)

	c.queue = pipeline.NewQueueDispatcher()
	c.queueDone = make(chan struct{})
	go func() {
		defer close(c.queueDone)
		c.queue.Run(context.Background())
	}()

	c.engine = pipeline.New(c.doc, c.registry,
		pipeline.WithLogger(c.logger),
		pipeline.WithWorkers(c.cfg.Workers),
		pipeline.WithHistory(c.history),
		pipeline.WithConfig(c.cfg),
		pipeline.WithDispatcher(c.queue),
		pipeline.WithToolCheck(c.checkTool),
		pipeline.WithAfterJob(c.afterJob),
	)
	c.engine.Subscribe(c.record)
	return nil
}

// Document returns the open document.
func (c *Coordinator) Document() *document.Document { return c.doc }

// Engine returns the job engine.
func (c *Coordinator) Engine() *pipeline.Engine { return c.engine }

// SessionDir returns the session directory.
func (c *Coordinator) SessionDir() string { return c.session.Dir() }

// Ops returns the operation names that can be submitted.
func (c *Coordinator) Ops() []string { return c.registry.Names() }

// Submit queues op on targets.
func (c *Coordinator) Submit(op string, targets []uuid.UUID, params any, cb pipeline.Callbacks) (*pipeline.Handle, error) {
	return c.engine.Submit(pipeline.Task{Op: op, Targets: targets, Params: params, Callbacks: cb})
}

// Targets resolves a page range (all, selected or 1) against the current
// document. A range that selects nothing yields no targets and no error.
func (c *Coordinator) Targets(mode string) ([]uuid.UUID, error) {
	snap := c.doc.Snapshot()
	idx, err := snap.Resolve(mode)
	if err != nil {
		return nil, err
	}
	return snap.UUIDs(idx), nil
}

// Import queues an import of image files after the last page. Imports run
// one after another, so pages keep the order the imports were queued in.
func (c *Coordinator) Import(paths []string, cb pipeline.Callbacks) (*pipeline.Handle, error) {
	return c.engine.Submit(pipeline.Task{
		Op:        handler.OpImport,
		Params:    handler.ImportParams{Paths: paths, Append: true},
		Callbacks: cb,
		Serial:    true,
	})
}

// Undo queues an undo of the last operation.
func (c *Coordinator) Undo(cb pipeline.Callbacks) (*pipeline.Handle, error) {
	return c.engine.Undo(cb)
}

// Redo queues a redo of the last undone operation.
func (c *Coordinator) Redo(cb pipeline.Callbacks) (*pipeline.Handle, error) {
	return c.engine.Redo(cb)
}

// Run imports inputs and then applies steps in order to the pages in mode.
// Each step waits for the previous one, because steps such as split add
// pages the next step must see. Within a step, pages are processed in
// parallel. A failed step does not stop the run; all failures are
// returned together.
func (c *Coordinator) Run(ctx context.Context, inputs []string, steps []Step, mode string) error {
	if len(inputs) > 0 {
		h, err := c.Import(inputs, c.callbacks)
		if err != nil {
			return err
		}
		if _, err := h.Wait(ctx); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}
	if c.doc.Len() == 0 {
		return ErrNoInput
	}

	var errs []error
	for _, s := range steps {
		if err := c.runStep(ctx, s, mode); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, err)
		}
	}
	if err := c.Wait(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Coordinator) runStep(ctx context.Context, s Step, mode string) error {
	var handles []*pipeline.Handle
	switch {
	case s.Op == OpUndo || s.Op == OpRedo:
		undo := c.Undo
		if s.Op == OpRedo {
			undo = c.Redo
		}
		h, err := undo(c.callbacks)
		if err != nil {
			return err
		}
		handles = append(handles, h)

	case !s.perPage():
		targets, err := c.targets(s, mode)
		if err != nil || len(targets) == 0 {
			return err
		}
		h, err := c.Submit(s.Op, targets, s.Params, c.callbacks)
		if err != nil {
			return err
		}
		handles = append(handles, h)

	default:
		targets, err := c.targets(s, mode)
		if err != nil || len(targets) == 0 {
			return err
		}
		for _, id := range targets {
			h, err := c.Submit(s.Op, []uuid.UUID{id}, s.Params, c.callbacks)
			if err != nil {
				return err
			}
			handles = append(handles, h)
		}
	}

	var errs []error
	for _, h := range handles {
		if _, err := h.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// targets resolves mode for step s. An empty range skips the step.
func (c *Coordinator) targets(s Step, mode string) ([]uuid.UUID, error) {
	targets, err := c.Targets(mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Op, err)
	}
	if len(targets) == 0 {
		c.logger.Debug("no pages in range, skipping step", "op", s.Op, "range", mode)
	}
	return targets, nil
}

// Wait blocks until every queued job has finished and its callbacks have
// run, then writes the page list to the session database. It must not be
// called after Close.
func (c *Coordinator) Wait(ctx context.Context) error {
	if err := c.engine.Wait(ctx); err != nil {
		return err
	}
	// the queue is FIFO, so this runs after every callback dispatched so far
	flushed := make(chan struct{})
	c.queue.Dispatch(func() { close(flushed) })
	select {
	case <-flushed:
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.persist()
}

// Report builds the processing report from the job log and the document.
func (c *Coordinator) Report(ctx context.Context) (*model.Report, error) {
	jobs, err := c.store.Jobs(ctx)
	if err != nil {
		return nil, err
	}
	r := model.NewReport(c.session.Dir(), c.doc.Snapshot().Pages(), time.Now())
	for _, j := range jobs {
		r.AddJob(model.JobSummary{
			ID:       j.ID,
			Op:       j.Op,
			State:    j.State,
			Pages:    j.Pages,
			Output:   j.Output,
			Error:    j.Error,
			Duration: j.Duration(),
		})
	}
	return r, nil
}

// Close cancels outstanding jobs, saves the page list and releases the
// session. The session directory is kept when keep or the configuration's
// KeepSession is set.
func (c *Coordinator) Close(keep bool) error {
	c.closeOnce.Do(func() {
		c.engine.Close()
		c.queue.Close()
		<-c.queueDone

		keep = keep || c.cfg.KeepSession
		errs := []error{c.persist(), c.store.Close()}
		errs = append(errs, c.session.Close(keep))
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

func (c *Coordinator) checkTool(name string) error {
	f, ok := c.runner.(toolFinder)
	if !ok {
		return nil
	}
	_, err := f.Executable(name)
	return err
}

// afterJob runs on the worker once a job has ended.
func (c *Coordinator) afterJob(*pipeline.Job) {
	c.session.CheckLowWater()
	_ = c.persist()
}

// persist writes the page list to the store if it changed.
func (c *Coordinator) persist() error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if !c.dirty.Swap(false) {
		return nil
	}
	if err := c.store.SavePages(context.Background(), c.doc.Snapshot().Pages()); err != nil {
		c.dirty.Store(true)
		c.logger.Warn("cannot save the page list", "error", err)
		return err
	}
	return nil
}

// record writes job state changes to the job log.
func (c *Coordinator) record(ev pipeline.Event) {
	job := ev.Job
	r := &database.JobRecord{
		ID:        job.ID.String(),
		Op:        job.Op,
		Pages:     len(job.Targets),
		Submitted: job.Submitted,
	}
	switch ev.Kind {
	case pipeline.EventQueued:
		r.State = model.JobQueued
	case pipeline.EventStarted:
		r.State = model.JobRunning
	case pipeline.EventFinished:
		r.State = model.JobFinished
		r.Finished = time.Now()
		if ev.Result != nil {
			r.Output = ev.Result.Output
		}
	case pipeline.EventError:
		r.State = model.JobFailed
		r.Finished = time.Now()
		r.Error = model.Kind(ev.Err) + ": " + ev.Err.Error()
	case pipeline.EventCancelled:
		r.State = model.JobCancelled
		r.Finished = time.Now()
	default:
		return
	}
	if err := c.store.RecordJob(context.Background(), r); err != nil {
		c.logger.Warn("cannot record job", "job", job.ID, "error", err)
	}
}
