package history

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/scantpaper/internal/document"
)

// Entry is one undoable operation.
type Entry struct {
	// Op is the operation name, e.g. "rotate".
	Op string

	// Forward are the changes the operation applied.
	Forward []document.Change

	// JobID is the job that produced the entry.
	JobID uuid.UUID

	Time time.Time
}

// Inverse returns the changes that revert the entry.
func (e Entry) Inverse() []document.Change {
	return document.Invert(e.Forward)
}

// Pages returns the UUIDs the entry touches.
func (e Entry) Pages() []uuid.UUID {
	return document.UUIDs(e.Forward)
}

// History holds the undo and redo stacks. It is safe for concurrent use.
type History struct {
	mu    sync.Mutex
	undo  []Entry
	redo  []Entry
	limit int
}

// New creates a History. A limit of zero keeps every entry; otherwise the
// oldest entries are dropped beyond limit.
func New(limit int) *History {
	return &History{limit: max(limit, 0)}
}

// Record pushes a new entry from a forward job. It clears the redo stack,
// since the redone states would no longer follow from the document.
func (h *History) Record(e Entry) {
	if len(e.Forward) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = h.push(h.undo, e)
	h.redo = nil
}

func (h *History) push(stack []Entry, e Entry) []Entry {
	stack = append(stack, e)
	if h.limit > 0 && len(stack) > h.limit {
		stack = append(stack[:0:0], stack[len(stack)-h.limit:]...)
	}
	return stack
}

// CanUndo reports whether there is something to undo.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

// CanRedo reports whether there is something to redo.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// TakeUndo pops the most recent entry. The caller applies its inverse and
// then calls Undone, or drops the entry if the pages are gone.
func (h *History) TakeUndo() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undo) == 0 {
		return Entry{}, false
	}
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	return e, true
}

// Undone moves an applied undo entry onto the redo stack.
func (h *History) Undone(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.redo = h.push(h.redo, e)
}

// TakeRedo pops the most recently undone entry.
func (h *History) TakeRedo() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.redo) == 0 {
		return Entry{}, false
	}
	e := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	return e, true
}

// Redone moves an applied redo entry back onto the undo stack without
// clearing the remaining redo entries.
func (h *History) Redone(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = h.push(h.undo, e)
}

// Len returns the sizes of the undo and redo stacks.
func (h *History) Len() (undo, redo int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo), len(h.redo)
}
