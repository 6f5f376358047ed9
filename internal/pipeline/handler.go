package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nao1215/scantpaper/internal/config"
	"github.com/nao1215/scantpaper/internal/document"
	"github.com/nao1215/scantpaper/internal/model"
)

// Handler implements one operation kind.
//
// Do receives the target pages as they were when the job started and
// returns the changes to apply. It must not modify the document itself and
// must not overwrite image files it did not create. When ctx is cancelled
// it should return promptly; whatever it returns then is discarded.
type Handler interface {
	// Name is the operation name jobs refer to.
	Name() string

	// Requires lists the external tools the handler runs.
	Requires() []string

	// Do executes the operation.
	Do(ctx context.Context, req *Request) (*Outcome, error)
}

// Request is the input of one handler invocation.
type Request struct {
	Job *Job

	// Pages are the resolved targets in job order.
	Pages []model.Page

	// Config is the run configuration.
	Config *config.Config

	progress func(Progress)
}

// Report forwards progress to the job's running callback.
func (r *Request) Report(fraction float64, format string, args ...any) {
	if r.progress == nil {
		return
	}
	r.progress(Progress{Fraction: fraction, Message: fmt.Sprintf(format, args...)})
}

// Outcome is what a handler produced.
type Outcome struct {
	// Changes are applied to the document in one atomic update.
	Changes []document.Change

	// Output is a file written outside the session, e.g. an exported PDF.
	Output string

	// Value is passed through to Result.Value.
	Value any

	// NoHistory keeps the changes out of the undo history. Export jobs use
	// it when they only mark pages as saved.
	NoHistory bool

	applied   func()
	discarded func()
}

// Registry maps operation names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates a Registry holding handlers.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register adds h, replacing any handler of the same name.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Name()] = h
}

// Lookup returns the handler for op.
func (r *Registry) Lookup(op string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[op]
	return h, ok
}

// Names returns the registered operation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Requires returns the union of the tools all handlers need, sorted.
func (r *Registry) Requires() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var tools []string
	for _, h := range r.handlers {
		for _, t := range h.Requires() {
			if !seen[t] {
				seen[t] = true
				tools = append(tools, t)
			}
		}
	}
	sort.Strings(tools)
	return tools
}
