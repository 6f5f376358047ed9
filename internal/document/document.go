package document

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nao1215/scantpaper/internal/model"
)

// EventKind identifies what changed.
type EventKind int

const (
	// PageInserted: New was inserted at Index.
	PageInserted EventKind = iota
	// PageRemoved: Old was removed from Index.
	PageRemoved
	// PageMoved: New moved from From to Index.
	PageMoved
	// PageReplaced: Old was replaced by New at Index.
	PageReplaced
	// SelectionChanged: the selection changed.
	SelectionChanged
	// Renumbered: the display numbering scheme changed.
	Renumbered
)

func (k EventKind) String() string {
	switch k {
	case PageInserted:
		return "inserted"
	case PageRemoved:
		return "removed"
	case PageMoved:
		return "moved"
	case PageReplaced:
		return "replaced"
	case SelectionChanged:
		return "selection"
	case Renumbered:
		return "renumbered"
	}
	return "unknown"
}

// Event describes one change to the document.
type Event struct {
	Kind  EventKind
	Index int
	From  int
	Old   *model.Page
	New   *model.Page
}

// Observer receives events.
type Observer func(Event)

type subscriber struct {
	id int
	fn Observer
}

// Document is the ordered page list of one open document.
type Document struct {
	mu        sync.Mutex
	snap      atomic.Pointer[Snapshot]
	observers []subscriber
	nextSub   int
	clipboard []model.Page
	logger    *slog.Logger
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		d.logger = logger
	}
}

// New creates an empty document.
func New(opts ...Option) *Document {
	d := &Document{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.snap.Store(emptySnapshot())
	return d
}

// Snapshot returns the current state without locking.
func (d *Document) Snapshot() *Snapshot {
	return d.snap.Load()
}

// Len returns the number of pages.
func (d *Document) Len() int { return d.Snapshot().Len() }

// FindByUUID returns the current index of the page, if it is still present.
func (d *Document) FindByUUID(id uuid.UUID) (int, bool) {
	return d.Snapshot().FindByUUID(id)
}

// Subscribe registers an observer and returns a function that removes it.
func (d *Document) Subscribe(fn Observer) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.observers = append(d.observers, subscriber{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.observers = slices.DeleteFunc(d.observers, func(s subscriber) bool { return s.id == id })
	}
}

// update runs fn on a private copy of the current snapshot and publishes
// it if fn succeeds. Nothing is published on error.
func (d *Document) update(fn func(s *Snapshot) ([]Event, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.snap.Load().clone()
	events, err := fn(next)
	if err != nil {
		return err
	}
	next.seal()
	d.snap.Store(next)

	for _, ev := range events {
		for _, o := range d.observers {
			o.fn(ev)
		}
	}
	return nil
}

func checkIndex(index, n int) error {
	if index < 0 || index >= n {
		return &model.IndexError{Index: index, Len: n}
	}
	return nil
}

func duplicate(id uuid.UUID) error {
	return &model.ParameterError{Name: "page", Value: id.String(), Reason: "uuid already in the document"}
}

func insertAt(s *Snapshot, index int, pages ...model.Page) ([]Event, error) {
	if index < 0 || index > len(s.pages) {
		return nil, &model.IndexError{Index: index, Len: len(s.pages)}
	}
	seen := make(map[uuid.UUID]bool, len(pages))
	for _, p := range pages {
		if _, ok := s.index[p.UUID]; ok || seen[p.UUID] {
			return nil, duplicate(p.UUID)
		}
		seen[p.UUID] = true
	}
	s.pages = slices.Insert(s.pages, index, pages...)
	s.index = indexOf(s.pages)
	events := make([]Event, len(pages))
	for i := range pages {
		p := pages[i]
		events[i] = Event{Kind: PageInserted, Index: index + i, New: &p}
	}
	return events, nil
}

// Insert puts page at index, shifting later pages. index may equal Len to
// append.
func (d *Document) Insert(page model.Page, index int) error {
	return d.update(func(s *Snapshot) ([]Event, error) {
		return insertAt(s, index, page)
	})
}

// Append adds pages at the end.
func (d *Document) Append(pages ...model.Page) error {
	return d.update(func(s *Snapshot) ([]Event, error) {
		return insertAt(s, len(s.pages), pages...)
	})
}

// InsertAfter inserts pages right after the page with the anchor UUID.
// uuid.Nil inserts at the start.
func (d *Document) InsertAfter(anchor uuid.UUID, pages ...model.Page) error {
	return d.update(func(s *Snapshot) ([]Event, error) {
		at, err := afterAnchor(s, anchor)
		if err != nil {
			return nil, err
		}
		return insertAt(s, at, pages...)
	})
}

func afterAnchor(s *Snapshot, anchor uuid.UUID) (int, error) {
	if anchor == uuid.Nil {
		return 0, nil
	}
	i, ok := s.index[anchor]
	if !ok {
		return 0, fmt.Errorf("anchor %s: %w", anchor, model.ErrPageNotFound)
	}
	return i + 1, nil
}

// Remove deletes the page at index and returns it.
func (d *Document) Remove(index int) (model.Page, error) {
	var removed model.Page
	err := d.update(func(s *Snapshot) ([]Event, error) {
		if err := checkIndex(index, len(s.pages)); err != nil {
			return nil, err
		}
		removed = s.pages[index]
		s.pages = slices.Delete(s.pages, index, index+1)
		s.index = indexOf(s.pages)
		return []Event{{Kind: PageRemoved, Index: index, Old: &removed}}, nil
	})
	return removed, err
}

// RemoveUUIDs deletes the given pages. Unknown UUIDs are ignored.
func (d *Document) RemoveUUIDs(ids ...uuid.UUID) ([]model.Page, error) {
	var removed []model.Page
	err := d.update(func(s *Snapshot) ([]Event, error) {
		events := removeIDs(s, ids, &removed)
		return events, nil
	})
	return removed, err
}

func removeIDs(s *Snapshot, ids []uuid.UUID, removed *[]model.Page) []Event {
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var events []Event
	kept := make([]model.Page, 0, len(s.pages))
	for _, p := range s.pages {
		if drop[p.UUID] {
			old := p
			*removed = append(*removed, old)
			// Index is the position before the removal
			events = append(events, Event{Kind: PageRemoved, Index: len(kept) + len(events), Old: &old})
			continue
		}
		kept = append(kept, p)
	}
	s.pages = kept
	s.index = indexOf(kept)
	return events
}

func indexOf(pages []model.Page) map[uuid.UUID]int {
	m := make(map[uuid.UUID]int, len(pages))
	for i, p := range pages {
		m[p.UUID] = i
	}
	return m
}

// Move takes the page at from and puts it at to, where to is an index in
// the resulting list.
func (d *Document) Move(from, to int) error {
	return d.update(func(s *Snapshot) ([]Event, error) {
		n := len(s.pages)
		if err := checkIndex(from, n); err != nil {
			return nil, err
		}
		if err := checkIndex(to, n); err != nil {
			return nil, err
		}
		if from == to {
			return nil, nil
		}
		p := s.pages[from]
		s.pages = slices.Delete(s.pages, from, from+1)
		s.pages = slices.Insert(s.pages, to, p)
		s.index = indexOf(s.pages)
		return []Event{{Kind: PageMoved, Index: to, From: from, New: &p}}, nil
	})
}

// ReplaceAt swaps the page at index for page in one step. The new page
// normally keeps the old UUID; a different UUID must not already be in the
// document.
func (d *Document) ReplaceAt(index int, page model.Page) (model.Page, error) {
	var old model.Page
	err := d.update(func(s *Snapshot) ([]Event, error) {
		if err := checkIndex(index, len(s.pages)); err != nil {
			return nil, err
		}
		old = s.pages[index]
		if page.UUID != old.UUID {
			if _, ok := s.index[page.UUID]; ok {
				return nil, duplicate(page.UUID)
			}
		}
		s.pages[index] = page
		s.index = indexOf(s.pages)
		n := page
		return []Event{{Kind: PageReplaced, Index: index, Old: &old, New: &n}}, nil
	})
	return old, err
}

// Replace swaps the page with page's UUID for page.
func (d *Document) Replace(page model.Page) (model.Page, error) {
	i, ok := d.FindByUUID(page.UUID)
	if !ok {
		return model.Page{}, fmt.Errorf("page %s: %w", page.UUID, model.ErrPageNotFound)
	}
	return d.ReplaceAt(i, page)
}

// Renumber sets the display numbering to start, start+step, ... and
// reports whether anything changed. Renumbering with the current scheme
// is a no-op and notifies nobody.
func (d *Document) Renumber(start, step int) (bool, error) {
	if step == 0 {
		return false, &model.ParameterError{Name: "step", Value: step, Reason: "must not be zero"}
	}
	if n := d.Len(); start < 1 || (n > 1 && start+step*(n-1) < 1) {
		return false, &model.ParameterError{Name: "start", Value: start, Reason: "page numbers must stay positive"}
	}
	changed := false
	err := d.update(func(s *Snapshot) ([]Event, error) {
		if s.start == start && s.step == step {
			return nil, nil
		}
		changed = true
		s.start, s.step = start, step
		return []Event{{Kind: Renumbered, Index: -1}}, nil
	})
	return changed, err
}
