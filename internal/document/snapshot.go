package document

import (
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/nao1215/scantpaper/internal/model"
)

// Snapshot is an immutable view of the document at one point in time.
type Snapshot struct {
	pages    []model.Page
	numbers  []int
	selected []uuid.UUID // in selection order; the first is the focus
	index    map[uuid.UUID]int
	start    int
	step     int
}

func emptySnapshot() *Snapshot {
	return &Snapshot{index: map[uuid.UUID]int{}, start: 1, step: 1}
}

func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{
		pages:    slices.Clone(s.pages),
		numbers:  slices.Clone(s.numbers),
		selected: slices.Clone(s.selected),
		index:    maps.Clone(s.index),
		start:    s.start,
		step:     s.step,
	}
}

// seal rebuilds the derived fields after a mutation: the UUID index, the
// display numbers and the selection, which drops pages that are gone.
func (s *Snapshot) seal() {
	s.index = indexOf(s.pages)
	s.numbers = sequence(len(s.pages), s.start, s.step)
	s.selected = slices.DeleteFunc(s.selected, func(id uuid.UUID) bool {
		_, ok := s.index[id]
		return !ok
	})
}

func sequence(n, start, step int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i*step
	}
	return out
}

// Len returns the number of pages.
func (s *Snapshot) Len() int { return len(s.pages) }

// Page returns the page at index.
func (s *Snapshot) Page(index int) (model.Page, error) {
	if index < 0 || index >= len(s.pages) {
		return model.Page{}, &model.IndexError{Index: index, Len: len(s.pages)}
	}
	return s.pages[index], nil
}

// Pages returns a copy of the page list.
func (s *Snapshot) Pages() []model.Page { return slices.Clone(s.pages) }

// Number returns the display number of the page at index.
func (s *Snapshot) Number(index int) int {
	if index < 0 || index >= len(s.numbers) {
		return 0
	}
	return s.numbers[index]
}

// FindByUUID returns the current index of a page.
func (s *Snapshot) FindByUUID(id uuid.UUID) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Lookup returns the current state of a page.
func (s *Snapshot) Lookup(id uuid.UUID) (model.Page, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.Page{}, false
	}
	return s.pages[i], true
}

// Selected returns the selected indices in ascending order.
func (s *Snapshot) Selected() []int {
	out := make([]int, 0, len(s.selected))
	for _, id := range s.selected {
		out = append(out, s.index[id])
	}
	slices.Sort(out)
	return out
}

// Focus returns the first-selected index, or -1 with an empty selection.
func (s *Snapshot) Focus() int {
	if len(s.selected) == 0 {
		return -1
	}
	return s.index[s.selected[0]]
}

// UUIDs maps indices to page UUIDs.
func (s *Snapshot) UUIDs(indices []int) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(s.pages) {
			out = append(out, s.pages[i].UUID)
		}
	}
	return out
}
